package assist

import (
	"context"
	"fmt"
	"strings"
	"time"

	"mindshift/internal/logging"
	"mindshift/internal/protocol"
	"mindshift/internal/usage"
)

// TokenUsage reports the tokens and estimated cost of one gateway call.
type TokenUsage struct {
	Input  int
	Output int
	Cost   float64
}

// Gateway orchestrates provider calls with a bounded timeout, tracks token
// cost per session, and converts every failure into the scripted fallback.
type Gateway struct {
	provider Provider // nil disables AI assistance entirely
	tracker  *usage.Tracker
	model    string
	timeout  time.Duration
}

// NewGateway wires the gateway. provider may be nil for scripted-only
// operation; tracker may be nil to skip cost accounting (tests).
func NewGateway(provider Provider, tracker *usage.Tracker, model string, timeout time.Duration) *Gateway {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Gateway{
		provider: provider,
		tracker:  tracker,
		model:    model,
		timeout:  timeout,
	}
}

// Enabled reports whether a provider is configured.
func (g *Gateway) Enabled() bool { return g != nil && g.provider != nil }

// complete runs one provider call under the gateway timeout and records
// usage. All errors are returned for the caller to convert into fallback.
func (g *Gateway) complete(ctx context.Context, sessionID, operation, prompt string) (Completion, TokenUsage, error) {
	cctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	c, err := g.provider.Complete(cctx, prompt)
	if err != nil {
		return Completion{}, TokenUsage{}, err
	}

	tok := TokenUsage{Input: c.InputTokens, Output: c.OutputTokens}
	if g.tracker != nil {
		tok.Cost = g.tracker.Track(sessionID, g.model, operation, c.InputTokens, c.OutputTokens)
	}
	return c, tok, nil
}

// Linguistic asks the provider for a natural-language variant of a scripted
// template woven around the user's own words, then applies the step's
// insertion strategy. On any failure the unmodified scripted text is
// returned with used=false.
func (g *Gateway) Linguistic(ctx context.Context, sessionID string, stepID protocol.StepID, scripted, userText string) (string, TokenUsage, bool) {
	if !g.Enabled() {
		return scripted, TokenUsage{}, false
	}

	prompt := fmt.Sprintf(
		"You are assisting a strictly scripted therapeutic protocol. Rewrite the user's words %q "+
			"so they read naturally inside the following instruction, without changing the instruction's "+
			"meaning, adding advice, or commentary. Reply with the rewritten fragment only.\n\nInstruction: %s",
		userText, scripted)

	c, tok, err := g.complete(ctx, sessionID, "linguistic", prompt)
	if err != nil {
		logging.AssistWarn("Linguistic rewrite failed for step %s, using scripted text: %v", stepID, err)
		return scripted, TokenUsage{}, false
	}

	text, ok := applyInsertion(stepID, scripted, userText, c.Text)
	if !ok {
		logging.AssistWarn("Linguistic result did not fit step %s, using scripted text", stepID)
		return scripted, tok, false
	}

	logging.AssistDebug("Linguistic rewrite applied: session=%s step=%s", sessionID, stepID)
	return text, tok, true
}

// applyInsertion places a rewritten fragment into the response using one of
// three strategies keyed by step id: wrap in a fixed surrounding sentence,
// exact-match substitution of the quoted user text, or verbatim.
func applyInsertion(stepID protocol.StepID, scripted, userText, rewritten string) (string, bool) {
	rewritten = strings.TrimSpace(rewritten)
	if rewritten == "" {
		return "", false
	}

	switch stepID {
	case "trauma_shifting_intro":
		// Wrap: keep the fixed framing sentence around the rewrite.
		return "Take a slow breath. " + rewritten, true
	case "blockage_shifting_intro":
		// Verbatim: the rewrite is the whole response.
		return rewritten, true
	default:
		// Substitute: replace the quoted user text inside the scripted
		// template. No match means the rewrite cannot be placed safely.
		quoted := "'" + userText + "'"
		if !strings.Contains(scripted, quoted) {
			return "", false
		}
		return strings.Replace(scripted, quoted, "'"+rewritten+"'", 1), true
	}
}

// EmotionValidation is the outcome of an emotion-validation round.
type EmotionValidation struct {
	// NeedsCorrection keeps the user on the same step with Correction.
	NeedsCorrection bool
	Correction      string

	// Emotion/Context are derived metadata to merge into the pending
	// clarification state when the input resolved.
	Emotion string
	Context string
}

// ValidateEmotion handles the AI-deferred emotion kinds. For
// general_emotion it extracts the emotion and elicits the missing object;
// for incomplete_emotion_context it pairs the stored emotion with the
// user's follow-up. Provider failures fall back to deterministic handling
// so the turn never stalls.
func (g *Gateway) ValidateEmotion(ctx context.Context, sessionID string, kind protocol.ValidationKind, input, pendingEmotion string) (EmotionValidation, TokenUsage, bool) {
	switch kind {
	case protocol.KindGeneralEmotion:
		emotion := extractEmotionWord(input)

		if g.Enabled() {
			prompt := fmt.Sprintf(
				"The user answered %q where a problem statement was expected. Extract the single "+
					"emotion word they expressed. Reply with exactly one line: EMOTION: <word>",
				input)
			if c, tok, err := g.complete(ctx, sessionID, "validation", prompt); err == nil {
				if parsed := parseTaggedLine(c.Text, "EMOTION:"); parsed != "" {
					return EmotionValidation{
						NeedsCorrection: true,
						Correction:      fmt.Sprintf("I hear that you feel %s. What is this feeling about?", parsed),
						Emotion:         parsed,
					}, tok, true
				}
				logging.AssistWarn("Emotion validation returned malformed result, using heuristic")
			} else {
				logging.AssistWarn("Emotion validation failed, using heuristic: %v", err)
			}
		}

		return EmotionValidation{
			NeedsCorrection: true,
			Correction:      fmt.Sprintf("I hear that you feel %s. What is this feeling about?", emotion),
			Emotion:         emotion,
		}, TokenUsage{}, false

	case protocol.KindIncompleteEmotionContext:
		context := strings.TrimRight(strings.TrimSpace(input), ".!?")
		if context == "" {
			return EmotionValidation{
				NeedsCorrection: true,
				Correction:      "Tell me in a word or two what the feeling is about.",
			}, TokenUsage{}, false
		}
		return EmotionValidation{
			Emotion: pendingEmotion,
			Context: context,
		}, TokenUsage{}, false

	default:
		return EmotionValidation{
			NeedsCorrection: true,
			Correction:      protocol.CorrectionRestateProblem,
		}, TokenUsage{}, false
	}
}

// extractEmotionWord pulls the last word of a short emotion answer
// ("I feel sad" -> "sad").
func extractEmotionWord(input string) string {
	words := strings.Fields(strings.ToLower(strings.Trim(strings.TrimSpace(input), ".!?")))
	if len(words) == 0 {
		return "that way"
	}
	return words[len(words)-1]
}

// parseTaggedLine finds "TAG: value" in a completion and returns the value.
func parseTaggedLine(text, tag string) string {
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if strings.HasPrefix(strings.ToUpper(line), tag) {
			return strings.ToLower(strings.TrimSpace(line[len(tag):]))
		}
	}
	return ""
}
