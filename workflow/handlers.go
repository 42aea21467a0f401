package workflow

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/tidwall/gjson"

	"github.com/xraph/cascade"
)

// Built-in step kinds registered by RegisterBuiltins.
const (
	// KindDelay pauses the execution for a configured duration.
	KindDelay = "delay"
	// KindCondition gates the run on a JSON path in the payload.
	KindCondition = "condition"
	// KindTransform projects payload fields into a new output object.
	KindTransform = "transform"
)

// RegisterBuiltins registers the built-in step handlers on the
// registry.
func RegisterBuiltins(r *Registry) error {
	if err := RegisterKind(r, KindDelay, delayStep); err != nil {
		return err
	}
	if err := RegisterKind(r, KindCondition, conditionStep); err != nil {
		return err
	}
	return RegisterKind(r, KindTransform, transformStep)
}

// DelayConfig configures a delay step. Duration uses Go duration
// syntax, e.g. "250ms" or "2s".
type DelayConfig struct {
	Duration string `json:"duration"`
}

func delayStep(ctx context.Context, cfg DelayConfig, payload json.RawMessage) (json.RawMessage, error) {
	d, err := time.ParseDuration(cfg.Duration)
	if err != nil {
		return nil, cascade.WithKind(cascade.KindValidation,
			fmt.Errorf("parse delay duration %q: %w", cfg.Duration, err))
	}

	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-timer.C:
	}
	return payload, nil
}

// ConditionConfig configures a condition step. Path is a gjson path
// into the payload. When Equals is empty the step passes if the path
// exists; otherwise the path's string form must match Equals.
type ConditionConfig struct {
	Path   string `json:"path"`
	Equals string `json:"equals,omitempty"`
}

func conditionStep(_ context.Context, cfg ConditionConfig, payload json.RawMessage) (json.RawMessage, error) {
	if cfg.Path == "" {
		return nil, cascade.WithKind(cascade.KindValidation,
			fmt.Errorf("condition step has no path"))
	}

	result := gjson.GetBytes(payload, cfg.Path)
	if !result.Exists() {
		return nil, cascade.WithKind(cascade.KindExecution,
			fmt.Errorf("condition path %q not present in payload", cfg.Path))
	}
	if cfg.Equals != "" && result.String() != cfg.Equals {
		return nil, cascade.WithKind(cascade.KindExecution,
			fmt.Errorf("condition %q = %q, want %q", cfg.Path, result.String(), cfg.Equals))
	}
	return payload, nil
}

// TransformConfig configures a transform step: each output field is
// filled from a gjson path into the payload.
type TransformConfig struct {
	Fields map[string]string `json:"fields"`
}

func transformStep(_ context.Context, cfg TransformConfig, payload json.RawMessage) (json.RawMessage, error) {
	if len(cfg.Fields) == 0 {
		return nil, cascade.WithKind(cascade.KindValidation,
			fmt.Errorf("transform step has no fields"))
	}

	out := make(map[string]any, len(cfg.Fields))
	for field, path := range cfg.Fields {
		result := gjson.GetBytes(payload, path)
		if !result.Exists() {
			return nil, cascade.WithKind(cascade.KindExecution,
				fmt.Errorf("transform path %q not present in payload", path))
		}
		out[field] = result.Value()
	}

	data, err := json.Marshal(out)
	if err != nil {
		return nil, fmt.Errorf("marshal transform output: %w", err)
	}
	return data, nil
}

// Connector invokes an external automation backend on behalf of a
// step. Implementations own their transport; the engine only sees the
// returned payload or error.
type Connector interface {
	Invoke(ctx context.Context, requestID string, payload json.RawMessage, timeout time.Duration) (json.RawMessage, error)
}

// ConnectorHandler adapts a Connector into a step handler. The request
// id is "<execution id>/<step id>" so backends can deduplicate
// re-submitted work.
func ConnectorHandler(c Connector) HandlerFunc {
	return func(ctx context.Context, step *Step, payload json.RawMessage) (json.RawMessage, error) {
		requestID := step.ID
		if execID, ok := cascade.ExecutionIDFrom(ctx); ok {
			requestID = execID.String() + "/" + step.ID
		}
		return c.Invoke(ctx, requestID, payload, step.Timeout)
	}
}
