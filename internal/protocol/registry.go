package protocol

import (
	"fmt"
	"strings"
)

// Registry is the assembled protocol: every phase, every step, and a
// derived step→phase reverse index. It is immutable after construction.
type Registry struct {
	phases  []Phase
	steps   map[StepID]*Step
	phaseOf map[StepID]PhaseID
	methods []Method
}

// NewRegistry builds the full Mind Shifting protocol.
func NewRegistry() *Registry {
	r := &Registry{
		steps:   make(map[StepID]*Step),
		phaseOf: make(map[StepID]PhaseID),
		methods: methods(),
	}

	r.add(introductionSteps())
	r.add(methodSelectionSteps())
	r.add(buildChain(problemShiftingChain()))
	r.add(buildChain(identityShiftingChain()))
	r.add(buildChain(beliefShiftingChain()))
	r.add(buildChain(realityShiftingChain()))
	r.add(buildChain(traumaShiftingChain()))
	r.add(buildChain(blockageShiftingChain()))
	r.add(diggingDeeperSteps())
	r.add(integrationSteps())

	return r
}

// add registers one phase and its steps, building the reverse index as it
// goes. Duplicate step ids are a programming error in the step tables.
func (r *Registry) add(phase Phase, steps []*Step) {
	r.phases = append(r.phases, phase)
	for _, id := range phase.Steps {
		r.phaseOf[id] = phase.ID
	}
	for _, s := range steps {
		if _, exists := r.steps[s.ID]; exists {
			panic(fmt.Sprintf("protocol: duplicate step id %q", s.ID))
		}
		r.steps[s.ID] = s
	}
}

// InitialStep is the protocol entry point.
func (r *Registry) InitialStep() StepID { return StepWelcome }

// InitialPhase is the phase owning the entry point.
func (r *Registry) InitialPhase() PhaseID { return PhaseIntroduction }

// Step returns the step definition, or nil for an unknown id.
func (r *Registry) Step(id StepID) *Step {
	return r.steps[id]
}

// PhaseOf resolves a step to its owning phase. Unknown step ids (stale
// names from callers after a deploy, corrupted contexts) resolve to the
// introduction phase rather than failing.
func (r *Registry) PhaseOf(id StepID) PhaseID {
	if p, ok := r.phaseOf[id]; ok {
		return p
	}
	return PhaseIntroduction
}

// Known reports whether the step id exists.
func (r *Registry) Known(id StepID) bool {
	_, ok := r.steps[id]
	return ok
}

// PhaseSteps returns the ordered step ids of a phase.
func (r *Registry) PhaseSteps(phase PhaseID) []StepID {
	for _, p := range r.phases {
		if p.ID == phase {
			out := make([]StepID, len(p.Steps))
			copy(out, p.Steps)
			return out
		}
	}
	return nil
}

// Methods returns the selectable sub-protocols in menu order.
func (r *Registry) Methods() []Method {
	out := make([]Method, len(r.methods))
	copy(out, r.methods)
	return out
}

// ResolveMethod matches a normalized selection answer ("2", "identity
// shifting", "identity") to a method. Returns false when nothing matches.
func (r *Registry) ResolveMethod(answer string) (Method, bool) {
	a := strings.ToLower(strings.TrimSpace(answer))
	a = strings.TrimSuffix(a, ".")
	for _, m := range r.methods {
		if a == m.Name || a == m.Ordinal {
			return m, true
		}
		if short := strings.TrimSuffix(m.Name, " shifting"); a == short {
			return m, true
		}
	}
	return Method{}, false
}

// IsTerminal reports whether a step ends the session.
func (r *Registry) IsTerminal(id StepID) bool {
	return strings.HasSuffix(string(id), "_session_complete")
}

// StepIDs returns every registered step id (unordered).
func (r *Registry) StepIDs() []StepID {
	out := make([]StepID, 0, len(r.steps))
	for id := range r.steps {
		out = append(out, id)
	}
	return out
}

// Vars carries the captured text available for placeholder substitution.
// The engine resolves the fallback priority chain before populating it.
type Vars struct {
	Problem      string
	Goal         string
	LastResponse string
	Identity     string
	Belief       string
	Emotion      string
	Context      string
}

// Render substitutes placeholders in a scripted template. Unfilled
// placeholders are replaced by the empty string; the engine's fallback
// chain guarantees the common ones are never empty at render time.
func Render(template string, v Vars) string {
	replacer := strings.NewReplacer(
		"{problem}", v.Problem,
		"{goal}", v.Goal,
		"{lastResponse}", v.LastResponse,
		"{identity}", v.Identity,
		"{belief}", v.Belief,
		"{emotion}", v.Emotion,
		"{context}", v.Context,
	)
	return replacer.Replace(template)
}

// HasPlaceholders reports whether a template needs per-session substitution.
// Placeholder-free templates are eligible for the preload cache.
func HasPlaceholders(template string) bool {
	return strings.Contains(template, "{")
}
