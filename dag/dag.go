// Package dag orders workflow steps by their dependency edges.
package dag

import (
	"fmt"
	"sort"

	"github.com/xraph/cascade"
	"github.com/xraph/cascade/workflow"
)

// Sort returns a total order over the steps that respects every
// dependency edge. Steps the edges leave unordered run in order-hint
// sequence, ties broken by step id ascending, so the result is
// deterministic for a fixed definition. A dependency cycle or an edge
// to an unknown step rejects the whole set with an error wrapping
// cascade.ErrInvalidDefinition.
func Sort(steps []workflow.Step) ([]string, error) {
	byID := make(map[string]*workflow.Step, len(steps))
	for i := range steps {
		byID[steps[i].ID] = &steps[i]
	}

	// Roots are visited in hint order so unconstrained steps come out
	// sorted; dependencies are hoisted ahead of their dependents by
	// the depth-first walk below.
	seq := make([]*workflow.Step, 0, len(steps))
	for i := range steps {
		seq = append(seq, &steps[i])
	}
	sort.SliceStable(seq, func(i, j int) bool {
		if seq[i].Order != seq[j].Order {
			return seq[i].Order < seq[j].Order
		}
		return seq[i].ID < seq[j].ID
	})

	const (
		unvisited = iota
		visiting
		visited
	)
	state := make(map[string]int, len(steps))
	order := make([]string, 0, len(steps))

	var visit func(s *workflow.Step) error
	visit = func(s *workflow.Step) error {
		switch state[s.ID] {
		case visited:
			return nil
		case visiting:
			return fmt.Errorf("%w: dependency cycle through step %q", cascade.ErrInvalidDefinition, s.ID)
		}
		state[s.ID] = visiting

		for _, dep := range s.DependsOn {
			d, ok := byID[dep]
			if !ok {
				return fmt.Errorf("%w: step %q depends on unknown step %q", cascade.ErrInvalidDefinition, s.ID, dep)
			}
			if err := visit(d); err != nil {
				return err
			}
		}

		state[s.ID] = visited
		order = append(order, s.ID)
		return nil
	}

	for _, s := range seq {
		if err := visit(s); err != nil {
			return nil, err
		}
	}
	return order, nil
}
