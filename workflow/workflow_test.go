package workflow_test

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/xraph/cascade"
	"github.com/xraph/cascade/workflow"
)

func validDefinition() *workflow.Definition {
	return &workflow.Definition{
		ID:   "order-fulfillment",
		Name: "Order Fulfillment",
		Steps: []workflow.Step{
			{ID: "reserve", Kind: "connector", Backend: "inventory"},
			{ID: "charge", Kind: "connector", Backend: "payments", DependsOn: []string{"reserve"}},
			{ID: "notify", Kind: "delay", Config: json.RawMessage(`{"duration":"1ms"}`), DependsOn: []string{"charge"}},
		},
	}
}

func TestDefinition_ValidateOK(t *testing.T) {
	if err := validDefinition().Validate(); err != nil {
		t.Fatalf("Validate() = %v, want nil", err)
	}
}

func TestDefinition_ValidateErrors(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*workflow.Definition)
	}{
		{"missing id", func(d *workflow.Definition) { d.ID = "" }},
		{"missing name", func(d *workflow.Definition) { d.Name = "" }},
		{"no steps", func(d *workflow.Definition) { d.Steps = nil }},
		{"step without id", func(d *workflow.Definition) { d.Steps[0].ID = "" }},
		{"step without kind", func(d *workflow.Definition) { d.Steps[1].Kind = "" }},
		{"duplicate step id", func(d *workflow.Definition) { d.Steps[2].ID = "reserve" }},
		{"invalid config json", func(d *workflow.Definition) { d.Steps[2].Config = json.RawMessage(`{oops`) }},
		{"unknown dependency", func(d *workflow.Definition) { d.Steps[1].DependsOn = []string{"ghost"} }},
		{"self dependency", func(d *workflow.Definition) { d.Steps[0].DependsOn = []string{"reserve"} }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := validDefinition()
			tt.mutate(d)
			err := d.Validate()
			if err == nil {
				t.Fatal("Validate() = nil, want error")
			}
			if !errors.Is(err, cascade.ErrInvalidDefinition) {
				t.Errorf("Validate() = %v, want ErrInvalidDefinition", err)
			}
		})
	}
}

func TestDefinition_ValidateNil(t *testing.T) {
	var d *workflow.Definition
	if err := d.Validate(); !errors.Is(err, cascade.ErrInvalidDefinition) {
		t.Errorf("Validate() = %v, want ErrInvalidDefinition", err)
	}
}

func TestDefinition_StepByID(t *testing.T) {
	d := validDefinition()

	if s := d.StepByID("charge"); s == nil || s.Backend != "payments" {
		t.Errorf("StepByID(charge) = %+v, want payments step", s)
	}
	if s := d.StepByID("ghost"); s != nil {
		t.Errorf("StepByID(ghost) = %+v, want nil", s)
	}
}

func TestStatus_Terminal(t *testing.T) {
	tests := []struct {
		status   workflow.Status
		terminal bool
	}{
		{workflow.StatusPending, false},
		{workflow.StatusRunning, false},
		{workflow.StatusCompleted, true},
		{workflow.StatusFailed, true},
		{workflow.StatusCancelled, true},
		{workflow.StatusTimeout, true},
	}
	for _, tt := range tests {
		if got := tt.status.Terminal(); got != tt.terminal {
			t.Errorf("%s.Terminal() = %v, want %v", tt.status, got, tt.terminal)
		}
	}
}

func TestNewExecution(t *testing.T) {
	d := validDefinition()
	payload := json.RawMessage(`{"order_id":"o-42"}`)

	e := workflow.NewExecution(d, payload)

	if e.ID.IsNil() {
		t.Error("execution id is nil")
	}
	if e.WorkflowID != d.ID || e.WorkflowName != d.Name {
		t.Errorf("workflow identity = (%q, %q), want (%q, %q)", e.WorkflowID, e.WorkflowName, d.ID, d.Name)
	}
	if e.Status != workflow.StatusPending {
		t.Errorf("status = %s, want pending", e.Status)
	}
	if string(e.Payload) != string(payload) {
		t.Errorf("payload = %s, want %s", e.Payload, payload)
	}
	if e.CreatedAt.IsZero() {
		t.Error("CreatedAt is zero")
	}
}

func TestExecution_Failed(t *testing.T) {
	e := &workflow.Execution{
		Steps: []workflow.StepResult{
			{StepID: "a", Status: workflow.StepCompleted},
			{StepID: "b", Status: workflow.StepFailed},
		},
	}
	if !e.Failed() {
		t.Error("Failed() = false, want true")
	}

	e.Steps[1].Status = workflow.StepCompleted
	if e.Failed() {
		t.Error("Failed() = true, want false")
	}

	e.Steps[1].Status = workflow.StepTimeout
	if !e.Failed() {
		t.Error("Failed() = false with timeout step, want true")
	}
}

func TestExecution_StepResult(t *testing.T) {
	e := &workflow.Execution{
		Steps: []workflow.StepResult{
			{StepID: "a", Status: workflow.StepCompleted},
		},
	}
	if r := e.StepResult("a"); r == nil || r.Status != workflow.StepCompleted {
		t.Errorf("StepResult(a) = %+v, want completed", r)
	}
	if r := e.StepResult("missing"); r != nil {
		t.Errorf("StepResult(missing) = %+v, want nil", r)
	}
}

func TestExecution_Duration(t *testing.T) {
	e := &workflow.Execution{}
	if d := e.Duration(); d != 0 {
		t.Errorf("Duration() before start = %v, want 0", d)
	}

	start := time.Now().Add(-time.Minute)
	end := start.Add(30 * time.Second)
	e.StartedAt = start
	e.CompletedAt = &end
	if d := e.Duration(); d != 30*time.Second {
		t.Errorf("Duration() = %v, want 30s", d)
	}
}

func TestExecution_MarshalRoundTrip(t *testing.T) {
	d := validDefinition()
	e := workflow.NewExecution(d, json.RawMessage(`{"k":"v"}`))
	e.Status = workflow.StatusCompleted

	data, err := json.Marshal(e)
	if err != nil {
		t.Fatalf("Marshal() = %v", err)
	}

	var back workflow.Execution
	if err := json.Unmarshal(data, &back); err != nil {
		t.Fatalf("Unmarshal() = %v", err)
	}
	if back.ID != e.ID {
		t.Errorf("round-tripped id = %v, want %v", back.ID, e.ID)
	}
	if back.Status != workflow.StatusCompleted {
		t.Errorf("round-tripped status = %s, want completed", back.Status)
	}
}
