// Package planner orders proposed multi-app actions by their declared
// dependencies. It never executes or resolves anything.
package planner

import (
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// Step is one proposed action. Other steps refer to it by ID, or by Type
// when ID is empty.
type Step struct {
	ID        string                 `json:"id,omitempty" yaml:"id"`
	Type      string                 `json:"type" yaml:"type"`
	Params    map[string]interface{} `json:"params" yaml:"params"`
	DependsOn []string               `json:"dependsOn" yaml:"dependsOn"`
}

// Key is the identifier dependencies use to reference s.
func (s Step) Key() string {
	if s.ID != "" {
		return s.ID
	}
	return s.Type
}

// ErrInvalidStep is returned for a step without a type.
var ErrInvalidStep = errors.New("invalid step")

// Plan is a dependency-ordered list of actions: every step appears after
// all of the steps it depends on.
type Plan struct {
	ID      string `json:"id"`
	Actions []Step `json:"actions"`
}

// CyclicPlanError reports steps that take part in, or wait on, a dependency cycle.
type CyclicPlanError struct {
	Steps []string
}

func (e *CyclicPlanError) Error() string {
	return fmt.Sprintf("cyclic plan: steps %s form a dependency cycle", strings.Join(e.Steps, ", "))
}

// DanglingDependencyError reports a dependency on a step not in the plan.
type DanglingDependencyError struct {
	Step    string
	Missing string
}

func (e *DanglingDependencyError) Error() string {
	return fmt.Sprintf("step %s depends on unknown step %s", e.Step, e.Missing)
}

// DuplicateStepError reports two steps sharing one identifier.
type DuplicateStepError struct {
	ID string
}

func (e *DuplicateStepError) Error() string {
	return fmt.Sprintf("duplicate step identifier %s", e.ID)
}

// Build validates steps and returns them in topological order. Among steps
// that are ready at the same time the one given first comes first, so the
// same input always yields the same plan. No partial plan is returned on error.
func Build(steps []Step) (*Plan, error) {
	index := make(map[string]int, len(steps))
	for i, s := range steps {
		if s.Type == "" {
			return nil, fmt.Errorf("%w: step %d has no type", ErrInvalidStep, i)
		}
		k := s.Key()
		if _, dup := index[k]; dup {
			return nil, &DuplicateStepError{ID: k}
		}
		index[k] = i
	}

	indegree := make([]int, len(steps))
	dependents := make([][]int, len(steps))
	for i, s := range steps {
		seen := make(map[string]bool, len(s.DependsOn))
		for _, dep := range s.DependsOn {
			if seen[dep] {
				continue
			}
			seen[dep] = true
			j, ok := index[dep]
			if !ok {
				return nil, &DanglingDependencyError{Step: s.Key(), Missing: dep}
			}
			indegree[i]++
			dependents[j] = append(dependents[j], i)
		}
		if UsesPlaceholder(s) && len(s.DependsOn) == 0 {
			log.Warn().Str("step", s.Key()).Msg("step uses a placeholder but declares no dependencies")
		}
	}

	// Kahn's algorithm; picking the lowest ready index keeps input order on ties.
	done := make([]bool, len(steps))
	ordered := make([]Step, 0, len(steps))
	for len(ordered) < len(steps) {
		next := -1
		for i := range steps {
			if !done[i] && indegree[i] == 0 {
				next = i
				break
			}
		}
		if next < 0 {
			var stuck []string
			for i, s := range steps {
				if !done[i] {
					stuck = append(stuck, s.Key())
				}
			}
			return nil, &CyclicPlanError{Steps: stuck}
		}
		done[next] = true
		ordered = append(ordered, normalize(steps[next]))
		for _, d := range dependents[next] {
			indegree[d]--
		}
	}

	return &Plan{ID: uuid.NewString(), Actions: ordered}, nil
}

// IsPlanError reports whether err is a validation failure from Build or a
// malformed action list from ParseActions.
func IsPlanError(err error) bool {
	var (
		cyc *CyclicPlanError
		dng *DanglingDependencyError
		dup *DuplicateStepError
	)
	return errors.Is(err, ErrInvalidStep) || errors.Is(err, ErrMalformedPlan) || errors.As(err, &cyc) || errors.As(err, &dng) || errors.As(err, &dup)
}

func normalize(s Step) Step {
	if s.Params == nil {
		s.Params = map[string]interface{}{}
	}
	if s.DependsOn == nil {
		s.DependsOn = []string{}
	}
	return s
}
