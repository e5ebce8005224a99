package nodes

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/xeipuuv/gojsonschema"

	"github.com/flowcraft/workflow-core/pkg/executor"
	"github.com/flowcraft/workflow-core/pkg/types"
)

// SchemaValidatorExecutor validates the upstream input against a JSON
// Schema (§4.7). In lenient mode (the default) it always succeeds and
// reports valid/errors as output data; in strict mode a schema violation
// fails the node.
type SchemaValidatorExecutor struct{}

// NewSchemaValidatorExecutor constructs a SchemaValidatorExecutor.
func NewSchemaValidatorExecutor() *SchemaValidatorExecutor { return &SchemaValidatorExecutor{} }

// Execute validates ec.Inputs(node.ID)[0] against node.Parameters["schema"].
func (e *SchemaValidatorExecutor) Execute(ctx context.Context, ec executor.ExecutionContext, node types.Node) types.NodeResult {
	inputs := ec.Inputs(node.ID)
	var input any
	if len(inputs) > 0 && inputs[0].Success {
		input = inputs[0].Data
	}

	schema := node.Parameters["schema"]
	strict := paramBool(node.Parameters, "strict", false)

	schemaBytes, err := json.Marshal(schema)
	if err != nil {
		return types.Fail(types.ErrorKindValidation, fmt.Sprintf("schema validator: invalid schema: %v", err), err)
	}
	inputBytes, err := json.Marshal(input)
	if err != nil {
		return types.Fail(types.ErrorKindExecution, fmt.Sprintf("schema validator: failed serializing input: %v", err), err)
	}

	result, err := gojsonschema.Validate(
		gojsonschema.NewBytesLoader(schemaBytes),
		gojsonschema.NewBytesLoader(inputBytes),
	)
	if err != nil {
		return types.Fail(types.ErrorKindValidation, fmt.Sprintf("schema validator: %v", err), err)
	}

	if result.Valid() {
		return types.Ok(map[string]any{"valid": true, "data": input})
	}

	violations := make([]map[string]any, 0, len(result.Errors()))
	for _, e := range result.Errors() {
		violations = append(violations, map[string]any{
			"field":       e.Field(),
			"type":        e.Type(),
			"description": e.Description(),
		})
	}

	if strict {
		return types.Fail(types.ErrorKindValidation, fmt.Sprintf("schema validator: %d violation(s)", len(violations)), nil)
	}
	return types.Ok(map[string]any{"valid": false, "data": input, "errors": violations})
}

// Kind returns "SchemaValidator".
func (e *SchemaValidatorExecutor) Kind() string { return "SchemaValidator" }

// Validate requires a schema object with a "type" field.
func (e *SchemaValidatorExecutor) Validate(node types.Node) error {
	schema, ok := node.Parameters["schema"].(map[string]any)
	if !ok {
		return fmt.Errorf("schema validator node: schema is required and must be an object")
	}
	if _, ok := schema["type"]; !ok {
		return fmt.Errorf("schema validator node: schema must have a 'type' field")
	}
	return nil
}

// Definition describes the SchemaValidator node kind.
func (e *SchemaValidatorExecutor) Definition() executor.NodeDefinition {
	return executor.NodeDefinition{
		Kind:        "SchemaValidator",
		DisplayName: "Schema Validator",
		Category:    "data",
		Description: "Validates the upstream input against a JSON Schema, in strict or lenient mode.",
		Parameters: []executor.ParameterSpec{
			{Name: "schema", Kind: executor.ParamObject, Required: true, Description: "JSON Schema document"},
			{Name: "strict", Kind: executor.ParamBoolean, Required: false, Default: false, Description: "Fail the node on a schema violation instead of reporting it"},
		},
		Outputs: []string{types.OutputDefault},
	}
}
