package nodes

import (
	"context"
	"testing"

	"github.com/flowcraft/workflow-core/pkg/types"
)

func TestSchemaValidatorExecutor_ValidInput(t *testing.T) {
	exec := NewSchemaValidatorExecutor()
	ec := newFakeExecutionContext()
	ec.inputs["sv1"] = []types.NodeResult{types.Ok(map[string]any{"name": "ok"})}

	node := types.Node{
		ID:   "sv1",
		Kind: "SchemaValidator",
		Parameters: map[string]interface{}{
			"schema": map[string]any{
				"type":     "object",
				"required": []any{"name"},
				"properties": map[string]any{
					"name": map[string]any{"type": "string"},
				},
			},
		},
	}

	result := exec.Execute(context.Background(), ec, node)
	if !result.Success {
		t.Fatalf("expected success, got %v", result.Err)
	}
	data := result.Data.(map[string]any)
	if data["valid"] != true {
		t.Fatalf("expected valid=true, got %+v", data)
	}
}

func TestSchemaValidatorExecutor_LenientModeReportsViolations(t *testing.T) {
	exec := NewSchemaValidatorExecutor()
	ec := newFakeExecutionContext()
	ec.inputs["sv1"] = []types.NodeResult{types.Ok(map[string]any{})}

	node := types.Node{
		ID:   "sv1",
		Kind: "SchemaValidator",
		Parameters: map[string]interface{}{
			"schema": map[string]any{
				"type":     "object",
				"required": []any{"name"},
			},
		},
	}

	result := exec.Execute(context.Background(), ec, node)
	if !result.Success {
		t.Fatalf("expected lenient mode to succeed, got %v", result.Err)
	}
	data := result.Data.(map[string]any)
	if data["valid"] != false {
		t.Fatalf("expected valid=false, got %+v", data)
	}
	if errs, ok := data["errors"].([]map[string]any); !ok || len(errs) == 0 {
		t.Fatalf("expected non-empty errors, got %+v", data["errors"])
	}
}

func TestSchemaValidatorExecutor_StrictModeFails(t *testing.T) {
	exec := NewSchemaValidatorExecutor()
	ec := newFakeExecutionContext()
	ec.inputs["sv1"] = []types.NodeResult{types.Ok(map[string]any{})}

	node := types.Node{
		ID:   "sv1",
		Kind: "SchemaValidator",
		Parameters: map[string]interface{}{
			"strict": true,
			"schema": map[string]any{
				"type":     "object",
				"required": []any{"name"},
			},
		},
	}

	result := exec.Execute(context.Background(), ec, node)
	if result.Success {
		t.Fatal("expected strict mode to fail on a schema violation")
	}
	if result.Err == nil || result.Err.Kind != types.ErrorKindValidation {
		t.Fatalf("expected ErrorKindValidation, got %+v", result.Err)
	}
}

func TestSchemaValidatorExecutor_ValidateRequiresSchemaWithType(t *testing.T) {
	exec := NewSchemaValidatorExecutor()

	if err := exec.Validate(types.Node{Kind: "SchemaValidator"}); err == nil {
		t.Fatal("expected error when schema is missing")
	}
	if err := exec.Validate(types.Node{
		Kind:       "SchemaValidator",
		Parameters: map[string]interface{}{"schema": map[string]any{}},
	}); err == nil {
		t.Fatal("expected error when schema has no type field")
	}
	if err := exec.Validate(types.Node{
		Kind:       "SchemaValidator",
		Parameters: map[string]interface{}{"schema": map[string]any{"type": "object"}},
	}); err != nil {
		t.Fatalf("expected valid schema to pass, got %v", err)
	}
}
