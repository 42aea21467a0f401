package dag_test

import (
	"errors"
	"strings"
	"testing"

	"github.com/xraph/cascade"
	"github.com/xraph/cascade/dag"
	"github.com/xraph/cascade/workflow"
)

func steps(ss ...workflow.Step) []workflow.Step { return ss }

func indexOf(order []string, id string) int {
	for i, s := range order {
		if s == id {
			return i
		}
	}
	return -1
}

func TestSort_LinearChain(t *testing.T) {
	order, err := dag.Sort(steps(
		workflow.Step{ID: "c", DependsOn: []string{"b"}},
		workflow.Step{ID: "a"},
		workflow.Step{ID: "b", DependsOn: []string{"a"}},
	))
	if err != nil {
		t.Fatalf("Sort() = %v", err)
	}

	want := []string{"a", "b", "c"}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("order = %v, want %v", order, want)
		}
	}
}

func TestSort_Diamond(t *testing.T) {
	order, err := dag.Sort(steps(
		workflow.Step{ID: "top"},
		workflow.Step{ID: "left", DependsOn: []string{"top"}},
		workflow.Step{ID: "right", DependsOn: []string{"top"}},
		workflow.Step{ID: "bottom", DependsOn: []string{"left", "right"}},
	))
	if err != nil {
		t.Fatalf("Sort() = %v", err)
	}

	if len(order) != 4 {
		t.Fatalf("len(order) = %d, want 4", len(order))
	}
	top, left, right, bottom := indexOf(order, "top"), indexOf(order, "left"), indexOf(order, "right"), indexOf(order, "bottom")
	if top > left || top > right {
		t.Errorf("top not before branches: %v", order)
	}
	if bottom < left || bottom < right {
		t.Errorf("bottom not after branches: %v", order)
	}
}

func TestSort_IndependentStepsByHint(t *testing.T) {
	order, err := dag.Sort(steps(
		workflow.Step{ID: "third", Order: 30},
		workflow.Step{ID: "first", Order: 10},
		workflow.Step{ID: "second", Order: 20},
	))
	if err != nil {
		t.Fatalf("Sort() = %v", err)
	}

	want := []string{"first", "second", "third"}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("order = %v, want %v", order, want)
		}
	}
}

func TestSort_HintTiesBrokenByID(t *testing.T) {
	order, err := dag.Sort(steps(
		workflow.Step{ID: "zeta"},
		workflow.Step{ID: "alpha"},
		workflow.Step{ID: "mike"},
	))
	if err != nil {
		t.Fatalf("Sort() = %v", err)
	}

	want := []string{"alpha", "mike", "zeta"}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("order = %v, want %v", order, want)
		}
	}
}

func TestSort_Deterministic(t *testing.T) {
	in := steps(
		workflow.Step{ID: "d", DependsOn: []string{"b", "c"}},
		workflow.Step{ID: "b", DependsOn: []string{"a"}, Order: 5},
		workflow.Step{ID: "c", DependsOn: []string{"a"}, Order: 1},
		workflow.Step{ID: "a"},
		workflow.Step{ID: "e", Order: 2},
	)

	first, err := dag.Sort(in)
	if err != nil {
		t.Fatalf("Sort() = %v", err)
	}
	for range 20 {
		again, err := dag.Sort(in)
		if err != nil {
			t.Fatalf("Sort() = %v", err)
		}
		if strings.Join(again, ",") != strings.Join(first, ",") {
			t.Fatalf("order changed between runs: %v vs %v", first, again)
		}
	}
}

func TestSort_CycleRejected(t *testing.T) {
	_, err := dag.Sort(steps(
		workflow.Step{ID: "a", DependsOn: []string{"c"}},
		workflow.Step{ID: "b", DependsOn: []string{"a"}},
		workflow.Step{ID: "c", DependsOn: []string{"b"}},
	))
	if err == nil {
		t.Fatal("Sort() = nil, want cycle error")
	}
	if !errors.Is(err, cascade.ErrInvalidDefinition) {
		t.Errorf("Sort() = %v, want ErrInvalidDefinition", err)
	}
	if !strings.Contains(err.Error(), "cycle") {
		t.Errorf("error %q does not mention the cycle", err)
	}
}

func TestSort_SelfCycleNamesStep(t *testing.T) {
	_, err := dag.Sort(steps(
		workflow.Step{ID: "loop", DependsOn: []string{"loop"}},
	))
	if err == nil {
		t.Fatal("Sort() = nil, want cycle error")
	}
	if !strings.Contains(err.Error(), `"loop"`) {
		t.Errorf("error %q does not name the offending step", err)
	}
}

func TestSort_UnknownDependency(t *testing.T) {
	_, err := dag.Sort(steps(
		workflow.Step{ID: "a", DependsOn: []string{"ghost"}},
	))
	if !errors.Is(err, cascade.ErrInvalidDefinition) {
		t.Errorf("Sort() = %v, want ErrInvalidDefinition", err)
	}
}

func TestSort_SingleStep(t *testing.T) {
	order, err := dag.Sort(steps(workflow.Step{ID: "only"}))
	if err != nil {
		t.Fatalf("Sort() = %v", err)
	}
	if len(order) != 1 || order[0] != "only" {
		t.Errorf("order = %v, want [only]", order)
	}
}

func TestSort_Empty(t *testing.T) {
	order, err := dag.Sort(nil)
	if err != nil {
		t.Fatalf("Sort() = %v", err)
	}
	if len(order) != 0 {
		t.Errorf("order = %v, want empty", order)
	}
}
