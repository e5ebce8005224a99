package nodes

import (
	"context"
	"fmt"
	"sort"

	"github.com/flowcraft/workflow-core/pkg/executor"
	"github.com/flowcraft/workflow-core/pkg/types"
)

// FunctionExecutor applies a map/filter/reduce/sort operation over an
// item collection (§4.7). Each element's expression evaluates with
// $item/$json/$index (and, for reduce, $accumulator) bound alongside the
// usual node/variable/context environment.
type FunctionExecutor struct{}

// NewFunctionExecutor constructs a FunctionExecutor.
func NewFunctionExecutor() *FunctionExecutor { return &FunctionExecutor{} }

// Execute dispatches to the configured operation.
func (e *FunctionExecutor) Execute(ctx context.Context, ec executor.ExecutionContext, node types.Node) types.NodeResult {
	operation := paramString(node.Parameters, "operation", "")
	expr := paramString(node.Parameters, "expression", "")
	if operation == "" || expr == "" {
		return types.Fail(types.ErrorKindValidation, "function node requires operation and expression", nil)
	}

	items, err := e.resolveItems(ec, node)
	if err != nil {
		return types.Fail(types.ErrorKindExecution, fmt.Sprintf("function node: %v", err), err)
	}

	switch operation {
	case "map":
		return e.runMap(ec, expr, items)
	case "filter":
		return e.runFilter(ec, expr, items)
	case "reduce":
		return e.runReduce(ec, expr, items, node.Parameters["initial"])
	case "sort":
		return e.runSort(ec, expr, items, paramString(node.Parameters, "sortOrder", "ascending"))
	default:
		return types.Fail(types.ErrorKindValidation, fmt.Sprintf("function node: unknown operation %q", operation), nil)
	}
}

func (e *FunctionExecutor) resolveItems(ec executor.ExecutionContext, node types.Node) ([]interface{}, error) {
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

	for _, result := range ec.AllNodeResults() {
		if items, ok := result.Data.([]interface{}); ok {
			return items, nil
		}
	}
	return nil, fmt.Errorf("no items parameter and no upstream array result found")
}

func (e *FunctionExecutor) runMap(ec executor.ExecutionContext, expr string, items []interface{}) types.NodeResult {
	out := make([]interface{}, len(items))
	for i, item := range items {
		v, err := ec.EvaluateWithBindings(expr, map[string]interface{}{"item": item, "json": item, "index": i})
		if err != nil {
			return types.Fail(types.ErrorKindExecution, fmt.Sprintf("function node: map at index %d: %v", i, err), err)
		}
		out[i] = v
	}
	return types.Ok(out)
}

func (e *FunctionExecutor) runFilter(ec executor.ExecutionContext, expr string, items []interface{}) types.NodeResult {
	out := make([]interface{}, 0, len(items))
	for i, item := range items {
		v, err := ec.EvaluateWithBindings(expr, map[string]interface{}{"item": item, "json": item, "index": i})
		if err != nil {
			return types.Fail(types.ErrorKindExecution, fmt.Sprintf("function node: filter at index %d: %v", i, err), err)
		}
		if coerceBool(v) {
			out = append(out, item)
		}
	}
	return types.Ok(out)
}

func (e *FunctionExecutor) runReduce(ec executor.ExecutionContext, expr string, items []interface{}, initial interface{}) types.NodeResult {
	var accumulator interface{} = initial
	for i, item := range items {
		v, err := ec.EvaluateWithBindings(expr, map[string]interface{}{
			"item":        item,
			"json":        item,
			"index":       i,
			"accumulator": accumulator,
		})
		if err != nil {
			return types.Fail(types.ErrorKindExecution, fmt.Sprintf("function node: reduce at index %d: %v", i, err), err)
		}
		accumulator = v
	}
	return types.Ok(accumulator)
}

func (e *FunctionExecutor) runSort(ec executor.ExecutionContext, expr string, items []interface{}, order string) types.NodeResult {
	keys := make([]interface{}, len(items))
	for i, item := range items {
		v, err := ec.EvaluateWithBindings(expr, map[string]interface{}{"item": item, "json": item, "index": i})
		if err != nil {
			return types.Fail(types.ErrorKindExecution, fmt.Sprintf("function node: sort at index %d: %v", i, err), err)
		}
		keys[i] = v
	}

	idx := make([]int, len(items))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool {
		less := lessValue(keys[idx[a]], keys[idx[b]])
		if order == "descending" {
			return !less && keys[idx[a]] != keys[idx[b]]
		}
		return less
	})

	out := make([]interface{}, len(items))
	for i, j := range idx {
		out[i] = items[j]
	}
	return types.Ok(out)
}

func lessValue(a, b interface{}) bool {
	switch av := a.(type) {
	case float64:
		if bv, ok := b.(float64); ok {
			return av < bv
		}
	case string:
		if bv, ok := b.(string); ok {
			return av < bv
		}
	}
	return fmt.Sprintf("%v", a) < fmt.Sprintf("%v", b)
}

// Kind returns "Function".
func (e *FunctionExecutor) Kind() string { return "Function" }

// Validate requires operation and expression; sort requires a valid order.
func (e *FunctionExecutor) Validate(node types.Node) error {
	operation := paramString(node.Parameters, "operation", "")
	switch operation {
	case "map", "filter", "reduce", "sort":
	default:
		return fmt.Errorf("function node: operation must be one of map|filter|reduce|sort, got %q", operation)
	}
	if paramString(node.Parameters, "expression", "") == "" {
		return fmt.Errorf("function node requires an expression parameter")
	}
	if operation == "sort" {
		order := paramString(node.Parameters, "sortOrder", "ascending")
		if order != "ascending" && order != "descending" {
			return fmt.Errorf("function node: sortOrder must be ascending or descending, got %q", order)
		}
	}
	return nil
}

// Definition describes the Function node kind.
func (e *FunctionExecutor) Definition() executor.NodeDefinition {
	return executor.NodeDefinition{
		Kind:        "Function",
		DisplayName: "Function",
		Category:    "data",
		Description: "Applies map/filter/reduce/sort over an item collection.",
		Parameters: []executor.ParameterSpec{
			{Name: "operation", Kind: executor.ParamEnum, Required: true, Options: []string{"map", "filter", "reduce", "sort"}},
			{Name: "expression", Kind: executor.ParamString, Required: true, Description: "Per-item expression binding $item/$index(/$accumulator)"},
			{Name: "items", Kind: executor.ParamArray, Required: false, Description: "Explicit item array; defaults to the upstream array result"},
			{Name: "sortOrder", Kind: executor.ParamEnum, Required: false, Default: "ascending", Options: []string{"ascending", "descending"}, ShowIf: "operation", ShowIfValue: "sort"},
		},
		Outputs: []string{types.OutputDefault},
	}
}
