package protocol

import "fmt"

// The six shifting sub-protocols share one shape: a linear chain of guided
// steps ending in a "does it still feel like a problem?" check that either
// loops back or falls through to a hidden completion step, which hands off
// to digging deeper. buildChain generates that shape from per-protocol
// wording so the chains cannot drift apart structurally.

// chainStep is one step of a shifting chain, before ids are assigned.
type chainStep struct {
	suffix   string
	id       StepID // optional explicit id; default is "<chain>_<suffix>"
	template string
	expect   ResponseType
	rules    []ValidationRule
	capture  CaptureKind

	needsLinguistic bool

	// branches, when set, add conditional edges ahead of the default
	// linear next. Targets are chain-local suffixes, or absolute step ids
	// for the rare cross-chain edge.
	branches []chainBranch
}

type chainBranch struct {
	whenAnswer string
	toSuffix   string
	toStep     StepID
}

// chainConfig parameterizes one shifting protocol.
type chainConfig struct {
	name  string
	phase PhaseID
	steps []chainStep
}

// completeSuffix is the hidden auto-advance step appended to every chain.
const completeSuffix = "complete"

func (c chainConfig) stepID(suffix string) StepID {
	return StepID(fmt.Sprintf("%s_%s", c.name, suffix))
}

// buildChain expands a chainConfig into concrete steps and the owning phase.
// Every chain ends in an auto-advance "<name>_complete" step that moves
// into digging deeper without surfacing any text.
func buildChain(c chainConfig) (Phase, []*Step) {
	phase := Phase{ID: c.phase}
	steps := make([]*Step, 0, len(c.steps)+1)

	ids := make(map[string]StepID, len(c.steps)+1)
	for _, cs := range c.steps {
		if cs.id != "" {
			ids[cs.suffix] = cs.id
		} else {
			ids[cs.suffix] = c.stepID(cs.suffix)
		}
	}
	ids[completeSuffix] = c.stepID(completeSuffix)

	for i, cs := range c.steps {
		id := ids[cs.suffix]
		phase.Steps = append(phase.Steps, id)

		next := ids[completeSuffix]
		if i+1 < len(c.steps) {
			next = ids[c.steps[i+1].suffix]
		}

		tr := Transition{Next: next}
		for _, b := range cs.branches {
			to := b.toStep
			if to == "" {
				to = ids[b.toSuffix]
			}
			tr.Branches = append(tr.Branches, Branch{
				WhenAnswer: b.whenAnswer,
				To:         to,
			})
		}

		rules := cs.rules
		if rules == nil && cs.expect == ExpectConfirmation {
			rules = []ValidationRule{RuleYesNo}
		}

		steps = append(steps, &Step{
			ID:              id,
			Template:        cs.template,
			Expect:          cs.expect,
			Rules:           rules,
			Capture:         cs.capture,
			NeedsLinguistic: cs.needsLinguistic,
			Transition:      tr,
		})
	}

	completeID := c.stepID(completeSuffix)
	phase.Steps = append(phase.Steps, completeID)
	steps = append(steps, &Step{
		ID:          completeID,
		AutoAdvance: true,
		Transition:  Transition{Next: StepDiggingDeeperStart},
	})

	return phase, steps
}

// problemStatementRules is the standard rule set for steps that capture a
// problem statement. Length runs before every semantic check.
var problemStatementRules = []ValidationRule{
	RuleMaxWords,
	RuleMultipleProblems,
	RuleGoalLanguage,
	RuleQuestionForm,
	RuleBareEmotion,
}

// openAnswerRules only bounds length; guided-step answers are free-form.
var openAnswerRules = []ValidationRule{RuleMaxWords}

func problemShiftingChain() chainConfig {
	return chainConfig{
		name:  "problem_shifting",
		phase: PhaseProblemShifting,
		steps: []chainStep{
			{
				suffix:          "intro",
				template:        "Please close your eyes and keep them closed throughout the process. Feel the problem '{problem}'. What can you feel in your body now?",
				expect:          ExpectOpen,
				rules:           openAnswerRules,
				needsLinguistic: true,
			},
			{
				suffix:   "body_sensation",
				template: "Feel '{lastResponse}'. What happens in yourself when you feel '{lastResponse}'?",
				expect:   ExpectOpen,
				rules:    openAnswerRules,
			},
			{
				suffix:   "whats_needed",
				template: "What needs to happen for '{problem}' to not be a problem?",
				expect:   ExpectOpen,
				rules:    openAnswerRules,
			},
			{
				suffix:   "feel_solution",
				template: "What would you feel like if '{lastResponse}' had already happened?",
				expect:   ExpectOpen,
				rules:    openAnswerRules,
			},
			{
				suffix:   "feel_good",
				template: "Feel '{lastResponse}'. What does '{lastResponse}' feel like?",
				expect:   ExpectOpen,
				rules:    openAnswerRules,
			},
			{
				suffix:   "still_problem_check",
				template: "Feel the problem '{problem}'. Does it still feel like a problem?",
				expect:   ExpectConfirmation,
				branches: []chainBranch{{whenAnswer: "yes", toSuffix: "intro"}},
			},
		},
	}
}

func identityShiftingChain() chainConfig {
	return chainConfig{
		name:  "identity_shifting",
		phase: PhaseIdentityShifting,
		steps: []chainStep{
			{
				suffix:   "intro",
				template: "Please close your eyes. Feel the problem '{problem}'. What kind of person are you being when you have this problem?",
				expect:   ExpectOpen,
				rules:    openAnswerRules,
				capture:  CaptureIdentity,
			},
			{
				suffix:   "dissolve_a",
				template: "Feel yourself being '{identity}'. What does it feel like?",
				expect:   ExpectOpen,
				rules:    openAnswerRules,
			},
			{
				suffix:   "dissolve_b",
				template: "Feel '{lastResponse}'. What happens in yourself when you feel '{lastResponse}'?",
				expect:   ExpectOpen,
				rules:    openAnswerRules,
			},
			{
				suffix:   "dissolve_c",
				template: "What are you when you are not being '{identity}'?",
				expect:   ExpectOpen,
				rules:    openAnswerRules,
			},
			{
				suffix:   "dissolve_d",
				template: "Feel yourself being '{lastResponse}'. What does that feel like?",
				expect:   ExpectOpen,
				rules:    openAnswerRules,
			},
			{
				suffix:   "identity_check",
				template: "Can you still feel yourself being '{identity}'?",
				expect:   ExpectConfirmation,
				branches: []chainBranch{{whenAnswer: "yes", toSuffix: "dissolve_a"}},
			},
			{
				suffix:   "future_check",
				template: "Do you think you might feel yourself being '{identity}' in the future?",
				expect:   ExpectConfirmation,
				branches: []chainBranch{{whenAnswer: "yes", toSuffix: "dissolve_a"}},
			},
		},
	}
}

func beliefShiftingChain() chainConfig {
	return chainConfig{
		name:  "belief_shifting",
		phase: PhaseBeliefShifting,
		steps: []chainStep{
			{
				suffix:   "intro",
				template: "Please close your eyes. Feel the problem '{problem}'. What do you believe about yourself that makes this a problem?",
				expect:   ExpectOpen,
				rules:    openAnswerRules,
				capture:  CaptureBelief,
			},
			{
				suffix:   "dissolve_a",
				template: "Feel yourself believing '{belief}'. What does it feel like?",
				expect:   ExpectOpen,
				rules:    openAnswerRules,
			},
			{
				suffix:   "dissolve_b",
				template: "Feel '{lastResponse}'. What happens in yourself when you feel '{lastResponse}'?",
				expect:   ExpectOpen,
				rules:    openAnswerRules,
			},
			{
				suffix:   "dissolve_c",
				template: "What would you feel like if you didn't believe '{belief}'?",
				expect:   ExpectOpen,
				rules:    openAnswerRules,
			},
			{
				suffix:   "dissolve_d",
				template: "Feel '{lastResponse}'. What does '{lastResponse}' feel like?",
				expect:   ExpectOpen,
				rules:    openAnswerRules,
			},
			{
				suffix:   "belief_check",
				template: "Do you still believe '{belief}'?",
				expect:   ExpectConfirmation,
				branches: []chainBranch{{whenAnswer: "yes", toSuffix: "dissolve_a"}},
			},
		},
	}
}

// realityShiftingChain is goal-oriented: it captures what the user wants
// (plus an optional deadline) before the guided steps.
func realityShiftingChain() chainConfig {
	return chainConfig{
		name:  "reality",
		phase: PhaseRealityShifting,
		steps: []chainStep{
			{
				suffix:   "goal_capture",
				template: "Tell me what you want in a few words.",
				expect:   ExpectGoal,
				rules:    []ValidationRule{RuleMaxWords, RuleQuestionForm},
				capture:  CaptureGoal,
			},
			{
				suffix:   "deadline_check",
				id:       StepGoalDeadlineCheck,
				template: "Is there a deadline by which you want this?",
				expect:   ExpectConfirmation,
				branches: []chainBranch{{whenAnswer: "no", toSuffix: "goal_confirm"}},
			},
			{
				suffix:   "deadline_date",
				id:       StepGoalDeadlineDate,
				template: "By when do you want it?",
				expect:   ExpectOpen,
				rules:    openAnswerRules,
				capture:  CaptureDeadlineDate,
			},
			{
				suffix:   "goal_confirm",
				id:       StepGoalConfirmation,
				template: "So you want '{goal}'. Is that right?",
				expect:   ExpectConfirmation,
				branches: []chainBranch{{whenAnswer: "no", toSuffix: "goal_capture"}},
			},
			{
				suffix:   "step_a",
				template: "Please close your eyes. Feel that you have '{goal}'. What does it feel like?",
				expect:   ExpectOpen,
				rules:    openAnswerRules,
			},
			{
				suffix:   "step_b",
				template: "Feel '{lastResponse}'. What happens in yourself when you feel '{lastResponse}'?",
				expect:   ExpectOpen,
				rules:    openAnswerRules,
			},
			{
				suffix:   "why_not",
				template: "Why don't you have '{goal}' already?",
				expect:   ExpectOpen,
				rules:    openAnswerRules,
			},
			{
				suffix:   "obstacle_process",
				template: "Feel '{lastResponse}'. What would it feel like if that was not in the way?",
				expect:   ExpectOpen,
				rules:    openAnswerRules,
			},
			{
				suffix:   "certainty_check",
				template: "Feel that you have '{goal}'. Are there any doubts left that you will get it?",
				expect:   ExpectConfirmation,
				branches: []chainBranch{{whenAnswer: "yes", toSuffix: "why_not"}},
			},
		},
	}
}

func traumaShiftingChain() chainConfig {
	return chainConfig{
		name:  "trauma_shifting",
		phase: PhaseTraumaShifting,
		steps: []chainStep{
			{
				suffix:          "intro",
				template:        "We will work with the worst moment of this experience. Will you be comfortable briefly re-living it?",
				expect:          ExpectConfirmation,
				needsLinguistic: true,
				// Not comfortable: treat having had the experience as a
				// plain problem and run problem shifting instead.
				branches: []chainBranch{{whenAnswer: "no", toStep: StepProblemShiftingIntro}},
			},
			{
				suffix:   "identity_step",
				template: "Feel yourself in the worst moment of '{problem}'. What kind of person are you being?",
				expect:   ExpectOpen,
				rules:    openAnswerRules,
				capture:  CaptureIdentity,
			},
			{
				suffix:   "dissolve_a",
				template: "Feel yourself being '{identity}'. What does it feel like?",
				expect:   ExpectOpen,
				rules:    openAnswerRules,
			},
			{
				suffix:   "dissolve_b",
				template: "Feel '{lastResponse}'. What happens in yourself when you feel '{lastResponse}'?",
				expect:   ExpectOpen,
				rules:    openAnswerRules,
			},
			{
				suffix:   "experience_check",
				template: "Think about the experience. Does it still feel like a problem?",
				expect:   ExpectConfirmation,
				branches: []chainBranch{{whenAnswer: "yes", toSuffix: "identity_step"}},
			},
			{
				suffix:   "future_check",
				template: "If the same thing happened in the future, would it be a problem for you?",
				expect:   ExpectConfirmation,
				branches: []chainBranch{{whenAnswer: "yes", toSuffix: "identity_step"}},
			},
		},
	}
}

func blockageShiftingChain() chainConfig {
	return chainConfig{
		name:  "blockage_shifting",
		phase: PhaseBlockageShifting,
		steps: []chainStep{
			{
				suffix:          "intro",
				template:        "Please close your eyes. Feel '{problem}'. What does it feel like?",
				expect:          ExpectOpen,
				rules:           openAnswerRules,
				needsLinguistic: true,
			},
			{
				suffix:   "not_problem",
				template: "Feel '{lastResponse}'. What would it feel like to not have this problem?",
				expect:   ExpectOpen,
				rules:    openAnswerRules,
			},
			{
				suffix:   "feel_state",
				template: "Feel '{lastResponse}'. What does '{lastResponse}' feel like?",
				expect:   ExpectOpen,
				rules:    openAnswerRules,
			},
			{
				// Blockage shifting restates the problem every cycle; the
				// freshest statement drives the next loop's wording.
				suffix:   "whats_problem_now",
				template: "What's the problem now?",
				expect:   ExpectProblem,
				rules:    []ValidationRule{RuleMaxWords, RuleMultipleProblems},
				capture:  CaptureNewProblem,
			},
			{
				suffix:   "blockage_check",
				template: "Does '{problem}' still feel like a problem?",
				expect:   ExpectConfirmation,
				branches: []chainBranch{{whenAnswer: "yes", toSuffix: "intro"}},
			},
		},
	}
}
