// Package protocol holds the static Mind Shifting protocol definition:
// phases, steps, scripted response templates and the validation/AI metadata
// attached to each step. The package is pure data plus lookups - it contains
// no turn-processing behavior.
package protocol

// StepID identifies a single protocol step.
type StepID string

// PhaseID identifies a named stage of the protocol.
type PhaseID string

// ResponseType describes what kind of answer a step expects.
type ResponseType string

const (
	ExpectProblem      ResponseType = "problem"
	ExpectSelection    ResponseType = "selection"
	ExpectConfirmation ResponseType = "confirmation"
	ExpectGoal         ResponseType = "goal"
	ExpectOpen         ResponseType = "open"
)

// ValidationRule names one classifier heuristic. The order in which rules
// appear on a step is the order they are evaluated in.
type ValidationRule string

const (
	RuleMaxWords         ValidationRule = "max_words"
	RuleMultipleProblems ValidationRule = "multiple_problems"
	RuleGoalLanguage     ValidationRule = "goal_language"
	RuleQuestionForm     ValidationRule = "question_form"
	RuleBareEmotion      ValidationRule = "bare_emotion"
	RuleYesNo            ValidationRule = "yes_no"
)

// ValidationKind is an AI-deferred validation category. The classifier
// returns one of these when scripted heuristics cannot decide alone.
type ValidationKind string

const (
	KindGeneralEmotion           ValidationKind = "general_emotion"
	KindIncompleteEmotionContext ValidationKind = "incomplete_emotion_context"
)

// CaptureKind declares which context field an accepted answer populates.
type CaptureKind string

const (
	CaptureNone         CaptureKind = ""
	CaptureProblem      CaptureKind = "problem"
	CaptureMethod       CaptureKind = "method"
	CaptureGoal         CaptureKind = "goal"
	CaptureDeadlineDate CaptureKind = "deadline_date"
	CaptureNewProblem   CaptureKind = "new_problem"
	CaptureIdentity     CaptureKind = "identity"
	CaptureBelief       CaptureKind = "belief"
	CaptureAction       CaptureKind = "action"
)

// Branch is one conditional edge out of a step. WhenAnswer matches the
// normalized (lowercased, trimmed) user answer; yes/no steps normalize
// variants like "yeah" and "nope" before matching.
type Branch struct {
	WhenAnswer string
	To         StepID
}

// Transition declares where a step goes after an accepted answer.
// Branches are evaluated in order; the first match wins, otherwise Next.
type Transition struct {
	Next     StepID
	Branches []Branch
}

// Step is the smallest unit of the protocol. It owns one scripted template
// and the validation/AI metadata the engine consults before advancing.
type Step struct {
	ID       StepID
	Template string
	Expect   ResponseType

	// Rules run in declared order; length checks always precede semantic
	// checks on the standard rule sets.
	Rules []ValidationRule

	// NeedsLinguistic marks templates that the AI gateway may rewrite
	// around the user's own words before the response text is fixed.
	NeedsLinguistic bool

	// AutoAdvance steps have no user-visible content: the engine moves
	// straight through them to the next step.
	AutoAdvance bool

	Capture    CaptureKind
	Transition Transition
}

// Phase groups an ordered list of steps. A step belongs to exactly one
// phase; the reverse lookup is derived by the registry, never duplicated.
type Phase struct {
	ID    PhaseID
	Steps []StepID
}

// Method is one selectable shifting sub-protocol.
type Method struct {
	Name      string
	Ordinal   string // "1".."6", accepted as a selection shorthand
	FirstStep StepID
}

// Phase identifiers.
const (
	PhaseIntroduction     PhaseID = "introduction"
	PhaseMethodSelection  PhaseID = "method_selection"
	PhaseProblemShifting  PhaseID = "problem_shifting"
	PhaseIdentityShifting PhaseID = "identity_shifting"
	PhaseBeliefShifting   PhaseID = "belief_shifting"
	PhaseRealityShifting  PhaseID = "reality_shifting"
	PhaseTraumaShifting   PhaseID = "trauma_shifting"
	PhaseBlockageShifting PhaseID = "blockage_shifting"
	PhaseDiggingDeeper    PhaseID = "digging_deeper"
	PhaseIntegration      PhaseID = "integration"
)

// Step identifiers referenced outside the step tables.
const (
	StepWelcome      StepID = "welcome"
	StepChooseMethod StepID = "choose_method"

	StepProblemShiftingIntro StepID = "problem_shifting_intro"

	StepRealityGoalCapture StepID = "reality_goal_capture"
	StepGoalDeadlineCheck  StepID = "goal_deadline_check"
	StepGoalDeadlineDate   StepID = "goal_deadline_date"
	StepGoalConfirmation   StepID = "goal_confirmation"

	StepDiggingDeeperStart StepID = "digging_deeper_start"
	StepRestateProblem     StepID = "restate_problem"

	StepSessionComplete StepID = "integration_session_complete"
)

// Correction scripts shared by the classifier and engine. These are
// protocol-mandated wording and must be emitted exactly.
const (
	CorrectionTooLong = "I'm hearing a lot there. Please tell me what the problem is in just a few words."

	CorrectionQuestion = "It sounds like you're asking a question. Please state it as a problem instead, in a few words."

	CorrectionGoalAsProblem = "That sounds like a goal. For this part we work on problems. Please state what the problem is, in a few words."

	CorrectionYesNo = "Please answer yes or no."

	CorrectionRestateProblem = "OK, please tell me in a few words what the problem is."

	// EmotionConfirmTemplate asks the user to confirm an AI-derived
	// emotion/context pair. {emotion} and {context} are substituted.
	EmotionConfirmTemplate = "Are you saying you feel {emotion} about {context}? Please answer yes or no."

	// SynthesizedProblemTemplate builds a full problem statement from a
	// confirmed emotion/context pair.
	SynthesizedProblemTemplate = "I feel {emotion} about {context}"
)
