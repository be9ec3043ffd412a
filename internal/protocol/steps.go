package protocol

// Step tables for the phases that are not generated from a chain config.

func introductionSteps() (Phase, []*Step) {
	phase := Phase{ID: PhaseIntroduction, Steps: []StepID{StepWelcome}}
	steps := []*Step{
		{
			ID: StepWelcome,
			Template: "Welcome to Mind Shifting. Mind Shifting works on one problem at a time. " +
				"Tell me what you would like to work on, in just a few words.",
			Expect:     ExpectProblem,
			Rules:      problemStatementRules,
			Capture:    CaptureProblem,
			Transition: Transition{Next: StepChooseMethod},
		},
	}
	return phase, steps
}

func methodSelectionSteps() (Phase, []*Step) {
	phase := Phase{ID: PhaseMethodSelection, Steps: []StepID{StepChooseMethod}}
	steps := []*Step{
		{
			ID: StepChooseMethod,
			Template: "We will work on '{problem}'. Which method would you like to use?\n" +
				"1. Problem Shifting\n" +
				"2. Identity Shifting\n" +
				"3. Belief Shifting\n" +
				"4. Reality Shifting\n" +
				"5. Trauma Shifting\n" +
				"6. Blockage Shifting",
			Expect:  ExpectSelection,
			Capture: CaptureMethod,
			Transition: Transition{
				// Unrecognized selections fall through to problem shifting,
				// the default method.
				Next: StepProblemShiftingIntro,
				Branches: []Branch{
					{WhenAnswer: "problem shifting", To: StepProblemShiftingIntro},
					{WhenAnswer: "identity shifting", To: "identity_shifting_intro"},
					{WhenAnswer: "belief shifting", To: "belief_shifting_intro"},
					{WhenAnswer: "reality shifting", To: StepRealityGoalCapture},
					{WhenAnswer: "trauma shifting", To: "trauma_shifting_intro"},
					{WhenAnswer: "blockage shifting", To: "blockage_shifting_intro"},
				},
			},
		},
	}
	return phase, steps
}

func diggingDeeperSteps() (Phase, []*Step) {
	phase := Phase{
		ID: PhaseDiggingDeeper,
		Steps: []StepID{
			StepDiggingDeeperStart,
			StepRestateProblem,
			"future_problem_check",
			"anything_else_check",
			"digging_complete",
		},
	}
	steps := []*Step{
		{
			ID:       StepDiggingDeeperStart,
			Template: "Is there anything else about this that is still a problem for you?",
			Expect:   ExpectConfirmation,
			Rules:    []ValidationRule{RuleYesNo},
			Transition: Transition{
				Next:     "digging_complete",
				Branches: []Branch{{WhenAnswer: "yes", To: StepRestateProblem}},
			},
		},
		{
			ID:         StepRestateProblem,
			Template:   "Tell me what the problem is now, in a few words.",
			Expect:     ExpectProblem,
			Rules:      problemStatementRules,
			Capture:    CaptureNewProblem,
			Transition: Transition{Next: "future_problem_check"},
		},
		{
			ID:       "future_problem_check",
			Template: "Do you think '{problem}' might come back in the future?",
			Expect:   ExpectConfirmation,
			Rules:    []ValidationRule{RuleYesNo},
			Transition: Transition{
				Next:     "anything_else_check",
				Branches: []Branch{{WhenAnswer: "yes", To: StepProblemShiftingIntro}},
			},
		},
		{
			ID:       "anything_else_check",
			Template: "Is there anything else that needs to shift for this to be fully resolved?",
			Expect:   ExpectConfirmation,
			Rules:    []ValidationRule{RuleYesNo},
			Transition: Transition{
				Next:     "digging_complete",
				Branches: []Branch{{WhenAnswer: "yes", To: StepRestateProblem}},
			},
		},
		{
			ID:          "digging_complete",
			AutoAdvance: true,
			Transition:  Transition{Next: "integration_start"},
		},
	}
	return phase, steps
}

func integrationSteps() (Phase, []*Step) {
	phase := Phase{
		ID: PhaseIntegration,
		Steps: []StepID{
			"integration_start",
			"integration_awareness",
			"integration_action",
			"integration_action_when",
			StepSessionComplete,
		},
	}
	steps := []*Step{
		{
			ID:         "integration_start",
			Template:   "Take a moment and open your eyes. How do you feel about '{problem}' now?",
			Expect:     ExpectOpen,
			Rules:      openAnswerRules,
			Transition: Transition{Next: "integration_awareness"},
		},
		{
			ID:         "integration_awareness",
			Template:   "What are you more aware of now than before we started?",
			Expect:     ExpectOpen,
			Transition: Transition{Next: "integration_action"},
		},
		{
			ID:         "integration_action",
			Template:   "What needs to happen next, outside this session? Name one action you can commit to.",
			Expect:     ExpectOpen,
			Capture:    CaptureAction,
			Transition: Transition{Next: "integration_action_when"},
		},
		{
			ID:         "integration_action_when",
			Template:   "When will you do '{lastResponse}'?",
			Expect:     ExpectOpen,
			Transition: Transition{Next: StepSessionComplete},
		},
		{
			ID:       StepSessionComplete,
			Template: "Great work today. Your session is complete.",
			Expect:   ExpectOpen,
			// Terminal: the transition points at itself and the engine
			// stops once a *_session_complete step is reached.
			Transition: Transition{Next: StepSessionComplete},
		},
	}
	return phase, steps
}

// methods lists the selectable sub-protocols in menu order. Ordinals are
// accepted as selection shorthand ("4" picks Reality Shifting).
func methods() []Method {
	return []Method{
		{Name: "problem shifting", Ordinal: "1", FirstStep: StepProblemShiftingIntro},
		{Name: "identity shifting", Ordinal: "2", FirstStep: "identity_shifting_intro"},
		{Name: "belief shifting", Ordinal: "3", FirstStep: "belief_shifting_intro"},
		{Name: "reality shifting", Ordinal: "4", FirstStep: StepRealityGoalCapture},
		{Name: "trauma shifting", Ordinal: "5", FirstStep: "trauma_shifting_intro"},
		{Name: "blockage shifting", Ordinal: "6", FirstStep: "blockage_shifting_intro"},
	}
}
