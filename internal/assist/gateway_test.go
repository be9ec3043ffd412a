package assist

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"mindshift/internal/protocol"
)

// fakeProvider returns a canned completion or error.
type fakeProvider struct {
	text string
	err  error
}

func (f fakeProvider) Complete(ctx context.Context, prompt string) (Completion, error) {
	if f.err != nil {
		return Completion{}, f.err
	}
	return Completion{Text: f.text, InputTokens: 10, OutputTokens: 5}, nil
}

// slowProvider blocks until its context is cancelled.
type slowProvider struct{}

func (slowProvider) Complete(ctx context.Context, prompt string) (Completion, error) {
	<-ctx.Done()
	return Completion{}, ctx.Err()
}

func TestLinguisticSubstitutesQuotedUserText(t *testing.T) {
	g := NewGateway(fakeProvider{text: "this fear of speaking in front of people"}, nil, "m", time.Second)

	scripted := "Feel the problem 'my fear'. What can you feel in your body now?"
	got, _, used := g.Linguistic(context.Background(), "s1", "problem_shifting_intro", scripted, "my fear")
	if !used {
		t.Fatal("expected the rewrite to be applied")
	}
	want := "Feel the problem 'this fear of speaking in front of people'. What can you feel in your body now?"
	if got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestLinguisticFallsBackOnProviderError(t *testing.T) {
	g := NewGateway(fakeProvider{err: fmt.Errorf("quota exceeded")}, nil, "m", time.Second)

	scripted := "Feel the problem 'my fear'."
	got, _, used := g.Linguistic(context.Background(), "s1", "problem_shifting_intro", scripted, "my fear")
	if used {
		t.Fatal("a failed call must not count as AI-assisted")
	}
	if got != scripted {
		t.Fatalf("fallback must be the unmodified scripted text, got %q", got)
	}
}

func TestLinguisticFallsBackOnTimeout(t *testing.T) {
	g := NewGateway(slowProvider{}, nil, "m", 50*time.Millisecond)

	scripted := "Feel the problem 'my fear'."
	start := time.Now()
	got, _, used := g.Linguistic(context.Background(), "s1", "problem_shifting_intro", scripted, "my fear")
	if used || got != scripted {
		t.Fatalf("timeout must fall back to scripted text (used=%v, got=%q)", used, got)
	}
	if time.Since(start) > 2*time.Second {
		t.Fatal("gateway did not honor its timeout")
	}
}

func TestLinguisticFallsBackWhenRewriteDoesNotFit(t *testing.T) {
	g := NewGateway(fakeProvider{text: "rewritten"}, nil, "m", time.Second)

	// The scripted text does not quote the user's words, so the default
	// substitution strategy has nowhere safe to place the rewrite.
	scripted := "What needs to happen next?"
	got, _, used := g.Linguistic(context.Background(), "s1", "some_step", scripted, "my fear")
	if used || got != scripted {
		t.Fatalf("unplaceable rewrite must fall back (used=%v, got=%q)", used, got)
	}
}

func TestLinguisticWrapStrategy(t *testing.T) {
	g := NewGateway(fakeProvider{text: "we will gently revisit what happened at the accident"}, nil, "m", time.Second)

	got, _, used := g.Linguistic(context.Background(), "s1", "trauma_shifting_intro", "scripted intro", "the accident")
	if !used {
		t.Fatal("expected the rewrite to be applied")
	}
	if !strings.HasPrefix(got, "Take a slow breath. ") {
		t.Fatalf("wrap strategy must keep the framing sentence, got %q", got)
	}
}

func TestLinguisticVerbatimStrategy(t *testing.T) {
	g := NewGateway(fakeProvider{text: "Close your eyes and feel that stuck sensation."}, nil, "m", time.Second)

	got, _, used := g.Linguistic(context.Background(), "s1", "blockage_shifting_intro", "scripted intro", "stuck")
	if !used {
		t.Fatal("expected the rewrite to be applied")
	}
	if got != "Close your eyes and feel that stuck sensation." {
		t.Fatalf("verbatim strategy must return the rewrite as-is, got %q", got)
	}
}

func TestLinguisticDisabledGateway(t *testing.T) {
	g := NewGateway(nil, nil, "m", time.Second)

	scripted := "Feel the problem 'my fear'."
	got, tok, used := g.Linguistic(context.Background(), "s1", "problem_shifting_intro", scripted, "my fear")
	if used || got != scripted || tok.Input != 0 {
		t.Fatalf("disabled gateway must be scripted-only (used=%v, got=%q)", used, got)
	}
}

func TestValidateEmotionParsesProviderResult(t *testing.T) {
	g := NewGateway(fakeProvider{text: "EMOTION: sadness"}, nil, "m", time.Second)

	v, _, usedAI := g.ValidateEmotion(context.Background(), "s1", protocol.KindGeneralEmotion, "I feel sad", "")
	if !usedAI {
		t.Fatal("expected the provider to be consulted")
	}
	if !v.NeedsCorrection {
		t.Fatal("a bare emotion needs a clarification round")
	}
	if v.Emotion != "sadness" {
		t.Fatalf("emotion = %q, want sadness", v.Emotion)
	}
	if v.Correction != "I hear that you feel sadness. What is this feeling about?" {
		t.Fatalf("correction = %q", v.Correction)
	}
}

func TestValidateEmotionHeuristicFallback(t *testing.T) {
	g := NewGateway(fakeProvider{err: fmt.Errorf("down")}, nil, "m", time.Second)

	v, _, usedAI := g.ValidateEmotion(context.Background(), "s1", protocol.KindGeneralEmotion, "I feel sad", "")
	if usedAI {
		t.Fatal("failed provider call must not count as AI-assisted")
	}
	if v.Emotion != "sad" {
		t.Fatalf("heuristic emotion = %q, want sad", v.Emotion)
	}
	if !v.NeedsCorrection {
		t.Fatal("fallback still needs the clarification round")
	}
}

func TestValidateEmotionContextPairing(t *testing.T) {
	g := NewGateway(nil, nil, "m", time.Second)

	v, _, _ := g.ValidateEmotion(context.Background(), "s1", protocol.KindIncompleteEmotionContext, "my job.", "sad")
	if v.NeedsCorrection {
		t.Fatalf("a non-empty context answer resolves the round: %+v", v)
	}
	if v.Emotion != "sad" || v.Context != "my job" {
		t.Fatalf("pair = (%q, %q), want (sad, my job)", v.Emotion, v.Context)
	}
}

func TestValidateEmotionEmptyContextReprompts(t *testing.T) {
	g := NewGateway(nil, nil, "m", time.Second)

	v, _, _ := g.ValidateEmotion(context.Background(), "s1", protocol.KindIncompleteEmotionContext, "  ...  ", "sad")
	if !v.NeedsCorrection {
		t.Fatal("an empty context answer must re-prompt")
	}
}

func TestParseTaggedLine(t *testing.T) {
	cases := []struct{ in, want string }{
		{"EMOTION: Anger", "anger"},
		{"Some preamble\nemotion: fear\n", "fear"},
		{"no tag here", ""},
	}
	for _, c := range cases {
		if got := parseTaggedLine(c.in, "EMOTION:"); got != c.want {
			t.Errorf("parseTaggedLine(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}
