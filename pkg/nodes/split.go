package nodes

import (
	"context"
	"fmt"

	"github.com/flowcraft/workflow-core/pkg/executor"
	"github.com/flowcraft/workflow-core/pkg/types"
)

// SplitExecutor divides an upstream array into batches (§4.7); the
// scheduler is responsible for handing consumers the batches in order.
type SplitExecutor struct{}

// NewSplitExecutor constructs a SplitExecutor.
func NewSplitExecutor() *SplitExecutor { return &SplitExecutor{} }

// Execute batches the resolved items per the configured mode.
func (e *SplitExecutor) Execute(ctx context.Context, ec executor.ExecutionContext, node types.Node) types.NodeResult {
	items, err := resolveUpstreamItems(ec, node)
	if err != nil {
		return types.Fail(types.ErrorKindExecution, fmt.Sprintf("split node: %v", err), err)
	}

	mode := paramString(node.Parameters, "mode", "itemPerOutput")
	switch mode {
	case "itemPerOutput":
		batches := make([]interface{}, len(items))
		for i, item := range items {
			batches[i] = []interface{}{item}
		}
		return types.Ok(batches)

	case "batchSize":
		size := paramInt(node.Parameters, "batchSize", 1)
		if size < 1 {
			size = 1
		}
		var batches []interface{}
		for i := 0; i < len(items); i += size {
			end := i + size
			if end > len(items) {
				end = len(items)
			}
			batches = append(batches, append([]interface{}{}, items[i:end]...))
		}
		return types.Ok(batches)

	case "byProperty":
		property := paramString(node.Parameters, "property", "")
		if property == "" {
			return types.Fail(types.ErrorKindValidation, "split node: byProperty requires property", nil)
		}
		groups := map[string][]interface{}{}
		var order []string
		for _, item := range items {
			key := groupKey(item, property)
			if _, seen := groups[key]; !seen {
				order = append(order, key)
			}
			groups[key] = append(groups[key], item)
		}
		batches := make([]interface{}, len(order))
		for i, key := range order {
			batches[i] = groups[key]
		}
		return types.Ok(batches)

	default:
		return types.Fail(types.ErrorKindValidation, fmt.Sprintf("split node: unknown mode %q", mode), nil)
	}
}

func resolveUpstreamItems(ec executor.ExecutionContext, node types.Node) ([]interface{}, error) {
	if raw, ok := node.Parameters["items"]; ok {
		resolved, err := ec.ResolveParameter(raw)
		if err != nil {
			return nil, err
		}
		if items, ok := resolved.([]interface{}); ok {
			return items, nil
		}
		return nil, fmt.Errorf("items did not resolve to an array")
	}
	for _, r := range ec.Inputs(node.ID) {
		if items, ok := r.Data.([]interface{}); ok {
			return items, nil
		}
	}
	return nil, fmt.Errorf("no items parameter and no upstream array input")
}

func groupKey(item interface{}, property string) string {
	if m, ok := item.(map[string]interface{}); ok {
		return fmt.Sprintf("%v", m[property])
	}
	return fmt.Sprintf("%v", item)
}

// Kind returns "Split".
func (e *SplitExecutor) Kind() string { return "Split" }

// Validate checks mode and mode-specific requirements.
func (e *SplitExecutor) Validate(node types.Node) error {
	mode := paramString(node.Parameters, "mode", "itemPerOutput")
	switch mode {
	case "itemPerOutput":
		return nil
	case "batchSize":
		if paramInt(node.Parameters, "batchSize", 0) < 1 {
			return fmt.Errorf("split node: batchSize mode requires batchSize >= 1")
		}
		return nil
	case "byProperty":
		if paramString(node.Parameters, "property", "") == "" {
			return fmt.Errorf("split node: byProperty mode requires property")
		}
		return nil
	default:
		return fmt.Errorf("split node: mode must be one of itemPerOutput|batchSize|byProperty, got %q", mode)
	}
}

// Definition describes the Split node kind.
func (e *SplitExecutor) Definition() executor.NodeDefinition {
	return executor.NodeDefinition{
		Kind:        "Split",
		DisplayName: "Split",
		Category:    "data",
		Description: "Divides an upstream array into batches.",
		Parameters: []executor.ParameterSpec{
			{Name: "mode", Kind: executor.ParamEnum, Required: true, Default: "itemPerOutput", Options: []string{"itemPerOutput", "batchSize", "byProperty"}},
			{Name: "batchSize", Kind: executor.ParamNumber, Required: false, ShowIf: "mode", ShowIfValue: "batchSize"},
			{Name: "property", Kind: executor.ParamString, Required: false, ShowIf: "mode", ShowIfValue: "byProperty"},
		},
		Outputs: []string{types.OutputDefault},
	}
}
