// Package classify holds the stateless input heuristics that run before
// every step transition. Rule evaluation order is part of the engine
// contract: the length check always precedes semantic checks, so an overly
// long multi-problem answer is interrupted before enumeration logic runs.
package classify

import (
	"fmt"
	"strings"

	"mindshift/internal/protocol"
)

// Outcome is the classifier verdict for one input.
type Outcome string

const (
	// Accept passes the input through to the transition.
	Accept Outcome = "accept"
	// RejectScripted keeps the user on the step with a fixed correction.
	RejectScripted Outcome = "reject_scripted"
	// NeedsAIValidation defers the decision to the AI gateway.
	NeedsAIValidation Outcome = "needs_ai_validation"
)

// Result carries the verdict plus whatever the engine needs to act on it.
type Result struct {
	Outcome    Outcome
	Correction string                  // scripted correction, RejectScripted only
	Kind       protocol.ValidationKind // AI validation kind, NeedsAIValidation only
	Reason     string                  // machine-readable tag
}

// Limits holds the configurable thresholds.
type Limits struct {
	// MaxWords interrupts answers beyond this many words. The original
	// behavior only asserted the threshold implicitly, so it is config
	// driven rather than hardcoded.
	MaxWords int
}

// DefaultLimits matches the engine's default configuration.
func DefaultLimits() Limits { return Limits{MaxWords: 30} }

func accepted() Result { return Result{Outcome: Accept} }

// Classify runs the step's declared rules in order against the raw input.
func Classify(step *protocol.Step, input string, limits Limits) Result {
	if limits.MaxWords <= 0 {
		limits.MaxWords = DefaultLimits().MaxWords
	}

	trimmed := strings.TrimSpace(input)
	for _, rule := range step.Rules {
		var r Result
		switch rule {
		case protocol.RuleMaxWords:
			r = checkMaxWords(trimmed, limits.MaxWords)
		case protocol.RuleMultipleProblems:
			r = checkMultipleProblems(trimmed)
		case protocol.RuleGoalLanguage:
			r = checkGoalLanguage(trimmed)
		case protocol.RuleQuestionForm:
			r = checkQuestionForm(trimmed)
		case protocol.RuleBareEmotion:
			r = checkBareEmotion(trimmed)
		case protocol.RuleYesNo:
			r = checkYesNo(trimmed)
		default:
			continue
		}
		if r.Outcome != Accept {
			return r
		}
	}
	return accepted()
}

func checkMaxWords(input string, max int) Result {
	if len(strings.Fields(input)) <= max {
		return accepted()
	}
	return Result{
		Outcome:    RejectScripted,
		Correction: protocol.CorrectionTooLong,
		Reason:     "too_long",
	}
}

// checkMultipleProblems detects enumerations like "X and Y and Z" or
// comma-separated lists and answers with an enumerated choice script.
func checkMultipleProblems(input string) Result {
	parts := SplitProblems(input)
	if len(parts) < 2 {
		return accepted()
	}

	var b strings.Builder
	b.WriteString("I heard more than one problem there. Which one would you like to work on first?\n")
	for i, p := range parts {
		fmt.Fprintf(&b, "%d. %s\n", i+1, p)
	}

	return Result{
		Outcome:    RejectScripted,
		Correction: strings.TrimRight(b.String(), "\n"),
		Reason:     "multiple_problems",
	}
}

// SplitProblems splits an input into enumerable problem clauses. Exported
// so the engine can resolve a numeric pick against the same split.
func SplitProblems(input string) []string {
	normalized := strings.ReplaceAll(input, ";", ",")
	normalized = strings.ReplaceAll(normalized, " and also ", ",")
	normalized = strings.ReplaceAll(normalized, " and ", ",")

	raw := strings.Split(normalized, ",")
	parts := make([]string, 0, len(raw))
	for _, p := range raw {
		p = strings.TrimSpace(p)
		// Fragments under three words are usually list tails ("my job,
		// my boss and money"), keep them; single connectives are noise.
		if p == "" || isConnective(p) {
			continue
		}
		parts = append(parts, p)
	}
	return parts
}

func isConnective(s string) bool {
	switch strings.ToLower(s) {
	case "and", "also", "too", "etc", "etc.":
		return true
	}
	return false
}

// goalLeadIns are aspiration phrasings that signal a goal where a problem
// is expected. Work-framing lead-ins ("I want to work on X") are stripped
// before this check runs, so they never trip it.
var goalLeadIns = []string{
	"i want to be",
	"i want more",
	"i wish",
	"my goal",
	"i would like to be",
	"i'd like to be",
	"i hope to",
}

func checkGoalLanguage(input string) Result {
	stripped := strings.ToLower(StripLeadIn(input))
	for _, lead := range goalLeadIns {
		if strings.HasPrefix(stripped, lead) {
			return Result{
				Outcome:    RejectScripted,
				Correction: protocol.CorrectionGoalAsProblem,
				Reason:     "goal_as_problem",
			}
		}
	}
	return accepted()
}

var questionStarts = []string{
	"why ", "how ", "what ", "when ", "where ", "who ",
	"should ", "could ", "can ", "will ", "do i", "am i", "is it",
}

func checkQuestionForm(input string) Result {
	lower := strings.ToLower(input)
	isQuestion := strings.HasSuffix(strings.TrimSpace(lower), "?")
	if !isQuestion {
		for _, qs := range questionStarts {
			if strings.HasPrefix(lower, qs) {
				isQuestion = true
				break
			}
		}
	}
	if !isQuestion {
		return accepted()
	}
	return Result{
		Outcome:    RejectScripted,
		Correction: protocol.CorrectionQuestion,
		Reason:     "question_as_problem",
	}
}

// emotionWords is the bare-emotion lexicon. A short answer consisting of
// only an emotion ("I feel sad", "anxious") has no object to work on, so
// it is deferred to AI validation to elicit the missing context.
var emotionWords = map[string]bool{
	"sad": true, "angry": true, "anxious": true, "scared": true,
	"afraid": true, "depressed": true, "stressed": true, "worried": true,
	"frustrated": true, "lonely": true, "overwhelmed": true, "guilty": true,
	"ashamed": true, "hopeless": true, "nervous": true, "upset": true,
	"hurt": true, "empty": true, "numb": true, "jealous": true,
}

var emotionObjectMarkers = []string{" about ", " when ", " because ", " of ", " at ", " with "}

func checkBareEmotion(input string) Result {
	lower := strings.ToLower(strings.TrimSpace(input))
	if lower == "" {
		return accepted()
	}

	// An emotion with an object is a workable problem statement.
	for _, marker := range emotionObjectMarkers {
		if strings.Contains(lower, marker) {
			return accepted()
		}
	}

	words := strings.Fields(strings.Trim(lower, ".!"))
	if len(words) > 4 {
		return accepted()
	}

	bare := false
	if len(words) == 1 && emotionWords[words[0]] {
		bare = true
	}
	// "I feel sad", "I am angry", "feeling anxious"
	if !bare && len(words) >= 2 && emotionWords[words[len(words)-1]] {
		switch strings.Join(words[:len(words)-1], " ") {
		case "i feel", "i am", "i'm", "im", "feeling", "i feel so", "i am so":
			bare = true
		}
	}
	if !bare {
		return accepted()
	}

	return Result{
		Outcome: NeedsAIValidation,
		Kind:    protocol.KindGeneralEmotion,
		Reason:  "AI_VALIDATION_NEEDED:" + string(protocol.KindGeneralEmotion),
	}
}

func checkYesNo(input string) Result {
	if _, ok := NormalizeYesNo(input); ok {
		return accepted()
	}
	return Result{
		Outcome:    RejectScripted,
		Correction: protocol.CorrectionYesNo,
		Reason:     "unclear_yes_no",
	}
}

// NormalizeYesNo maps confirmation variants onto "yes"/"no". The engine
// uses the same normalization when matching transition branches.
func NormalizeYesNo(input string) (string, bool) {
	switch strings.ToLower(strings.Trim(strings.TrimSpace(input), ".!")) {
	case "yes", "yeah", "yep", "yup", "y", "sure", "definitely", "absolutely", "it does", "i do":
		return "yes", true
	case "no", "nope", "nah", "n", "not really", "it doesn't", "i don't", "not anymore", "no more":
		return "no", true
	}
	return "", false
}

// problemLeadIns are framing phrases users wrap around the actual problem.
// They are stripped before capture so scripted templates quote only the
// user's own words for the issue itself.
var problemLeadIns = []string{
	"i want to work on",
	"i'd like to work on",
	"i would like to work on",
	"i need to work on",
	"i want to talk about",
	"i need help with",
	"i want help with",
	"let's work on",
	"the problem is",
	"my problem is",
}

// StripLeadIn removes a recognized framing phrase from the front of an
// input, returning the remainder (or the input unchanged).
func StripLeadIn(input string) string {
	trimmed := strings.TrimSpace(input)
	lower := strings.ToLower(trimmed)
	for _, lead := range problemLeadIns {
		if strings.HasPrefix(lower, lead) {
			rest := strings.TrimSpace(trimmed[len(lead):])
			if rest != "" {
				return rest
			}
		}
	}
	return trimmed
}

// ExtractProblem normalizes an accepted problem answer into the statement
// stored on the context: lead-in stripped, trailing punctuation dropped.
func ExtractProblem(input string) string {
	return strings.TrimRight(StripLeadIn(input), ".!? ")
}
