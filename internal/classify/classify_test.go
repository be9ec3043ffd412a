package classify

import (
	"strings"
	"testing"

	"mindshift/internal/protocol"
)

var problemStep = &protocol.Step{
	ID:     "test_problem",
	Expect: protocol.ExpectProblem,
	Rules: []protocol.ValidationRule{
		protocol.RuleMaxWords,
		protocol.RuleMultipleProblems,
		protocol.RuleGoalLanguage,
		protocol.RuleQuestionForm,
		protocol.RuleBareEmotion,
	},
}

var yesNoStep = &protocol.Step{
	ID:     "test_confirm",
	Expect: protocol.ExpectConfirmation,
	Rules:  []protocol.ValidationRule{protocol.RuleYesNo},
}

func TestClassifyAcceptsPlainProblem(t *testing.T) {
	r := Classify(problemStep, "my fear of public speaking", DefaultLimits())
	if r.Outcome != Accept {
		t.Fatalf("outcome = %s (%s), want accept", r.Outcome, r.Reason)
	}
}

func TestClassifyTooLong(t *testing.T) {
	long := strings.Repeat("word ", 31)
	r := Classify(problemStep, long, DefaultLimits())
	if r.Outcome != RejectScripted {
		t.Fatalf("outcome = %s, want reject", r.Outcome)
	}
	if r.Reason != "too_long" {
		t.Fatalf("reason = %s, want too_long", r.Reason)
	}
	if r.Correction != protocol.CorrectionTooLong {
		t.Fatalf("correction = %q", r.Correction)
	}
}

func TestClassifyConfigurableWordLimit(t *testing.T) {
	input := "one two three four five six"
	if r := Classify(problemStep, input, Limits{MaxWords: 5}); r.Reason != "too_long" {
		t.Fatalf("6 words with limit 5: reason = %q, want too_long", r.Reason)
	}
	if r := Classify(problemStep, input, Limits{MaxWords: 6}); r.Outcome != Accept {
		t.Fatalf("6 words with limit 6: outcome = %s, want accept", r.Outcome)
	}
}

func TestClassifyLengthRunsBeforeEnumeration(t *testing.T) {
	// An over-long multi-problem answer must be cut off as too long, not
	// enumerated: rule order is contractual.
	long := strings.Repeat("thing and ", 20) + "more"
	r := Classify(problemStep, long, DefaultLimits())
	if r.Reason != "too_long" {
		t.Fatalf("reason = %s, want too_long before multiple_problems", r.Reason)
	}
}

func TestClassifyMultipleProblems(t *testing.T) {
	r := Classify(problemStep, "my job and my relationship", DefaultLimits())
	if r.Outcome != RejectScripted || r.Reason != "multiple_problems" {
		t.Fatalf("outcome = %s reason = %s", r.Outcome, r.Reason)
	}
	if !strings.Contains(r.Correction, "1. my job") || !strings.Contains(r.Correction, "2. my relationship") {
		t.Fatalf("correction should enumerate both problems:\n%s", r.Correction)
	}
	if !strings.Contains(r.Correction, "Which one would you like to work on first?") {
		t.Fatalf("correction missing choice prompt:\n%s", r.Correction)
	}
}

func TestSplitProblems(t *testing.T) {
	cases := []struct {
		in   string
		want int
	}{
		{"my job and my relationship", 2},
		{"my job, my boss and money", 3},
		{"my job; my health", 2},
		{"my fear of public speaking", 1},
	}
	for _, c := range cases {
		got := SplitProblems(c.in)
		if len(got) != c.want {
			t.Errorf("SplitProblems(%q) = %v (%d parts), want %d", c.in, got, len(got), c.want)
		}
	}
}

func TestClassifyGoalAsProblem(t *testing.T) {
	for _, in := range []string{
		"I want to be more confident",
		"my goal is financial freedom",
		"I wish I was happier",
	} {
		r := Classify(problemStep, in, DefaultLimits())
		if r.Reason != "goal_as_problem" {
			t.Errorf("Classify(%q) reason = %s, want goal_as_problem", in, r.Reason)
		}
	}

	// Work-framing lead-ins are not goal language.
	r := Classify(problemStep, "I want to work on my anxiety", DefaultLimits())
	if r.Outcome != Accept {
		t.Fatalf("work-framed problem rejected: %s (%s)", r.Outcome, r.Reason)
	}
}

func TestClassifyQuestionAsProblem(t *testing.T) {
	for _, in := range []string{
		"why am I like this?",
		"should I quit my job",
		"How do I fix my marriage",
	} {
		r := Classify(problemStep, in, DefaultLimits())
		if r.Reason != "question_as_problem" {
			t.Errorf("Classify(%q) reason = %s, want question_as_problem", in, r.Reason)
		}
	}
}

func TestClassifyBareEmotionDefersToAI(t *testing.T) {
	for _, in := range []string{"I feel sad", "anxious", "I'm angry", "feeling overwhelmed"} {
		r := Classify(problemStep, in, DefaultLimits())
		if r.Outcome != NeedsAIValidation {
			t.Errorf("Classify(%q) outcome = %s, want needs_ai_validation", in, r.Outcome)
			continue
		}
		if r.Kind != protocol.KindGeneralEmotion {
			t.Errorf("Classify(%q) kind = %s, want general_emotion", in, r.Kind)
		}
		if r.Reason != "AI_VALIDATION_NEEDED:general_emotion" {
			t.Errorf("Classify(%q) reason = %s", in, r.Reason)
		}
	}
}

func TestClassifyEmotionWithObjectIsWorkable(t *testing.T) {
	for _, in := range []string{
		"I feel sad about my job",
		"angry at my brother",
		"anxious when I have to present",
	} {
		r := Classify(problemStep, in, DefaultLimits())
		if r.Outcome != Accept {
			t.Errorf("Classify(%q) = %s (%s), want accept", in, r.Outcome, r.Reason)
		}
	}
}

func TestClassifyYesNo(t *testing.T) {
	for _, in := range []string{"yes", "Yeah.", "nope", "not really"} {
		if r := Classify(yesNoStep, in, DefaultLimits()); r.Outcome != Accept {
			t.Errorf("Classify(%q) = %s, want accept", in, r.Outcome)
		}
	}

	r := Classify(yesNoStep, "maybe", DefaultLimits())
	if r.Outcome != RejectScripted || r.Correction != protocol.CorrectionYesNo {
		t.Fatalf("unclear answer: outcome = %s correction = %q", r.Outcome, r.Correction)
	}
}

func TestNormalizeYesNo(t *testing.T) {
	cases := []struct {
		in   string
		want string
		ok   bool
	}{
		{"Yes", "yes", true},
		{"yep!", "yes", true},
		{"it does", "yes", true},
		{"Nope.", "no", true},
		{"not anymore", "no", true},
		{"kind of", "", false},
	}
	for _, c := range cases {
		got, ok := NormalizeYesNo(c.in)
		if got != c.want || ok != c.ok {
			t.Errorf("NormalizeYesNo(%q) = (%q, %v), want (%q, %v)", c.in, got, ok, c.want, c.ok)
		}
	}
}

func TestExtractProblem(t *testing.T) {
	cases := []struct{ in, want string }{
		{"I want to work on my fear of public speaking", "my fear of public speaking"},
		{"I need help with my marriage.", "my marriage"},
		{"my procrastination", "my procrastination"},
		{"The problem is my temper!", "my temper"},
	}
	for _, c := range cases {
		if got := ExtractProblem(c.in); got != c.want {
			t.Errorf("ExtractProblem(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}
