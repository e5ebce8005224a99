package nodes

import (
	"context"
	"fmt"

	"github.com/flowcraft/workflow-core/pkg/executor"
	"github.com/flowcraft/workflow-core/pkg/types"
)

// MergeExecutor combines the results of every direct predecessor once all
// of them have reached a terminal state (§4.7). The scheduler is
// responsible for holding Merge out of the ready set until that wait
// condition is satisfied; Execute only does the combining.
type MergeExecutor struct{}

// NewMergeExecutor constructs a MergeExecutor.
func NewMergeExecutor() *MergeExecutor { return &MergeExecutor{} }

// Execute combines ec.Inputs(node.ID) per the configured mode.
func (e *MergeExecutor) Execute(ctx context.Context, ec executor.ExecutionContext, node types.Node) types.NodeResult {
	mode := paramString(node.Parameters, "mode", "append")
	inputs := ec.Inputs(node.ID)

	live := make([]types.NodeResult, 0, len(inputs))
	for _, in := range inputs {
		if in.Success {
			live = append(live, in)
		}
	}

	switch mode {
	case "append":
		out := make([]interface{}, len(live))
		for i, r := range live {
			out[i] = r.Data
		}
		return types.Ok(out)

	case "merge":
		merged := map[string]interface{}{}
		for _, r := range live {
			if m, ok := r.Data.(map[string]interface{}); ok {
				for k, v := range m {
					merged[k] = v
				}
			}
		}
		return types.Ok(merged)

	case "keepKeyMatches":
		mergeBy := paramString(node.Parameters, "mergeBy", "")
		if mergeBy == "" {
			return types.Fail(types.ErrorKindValidation, "merge node: keepKeyMatches requires mergeBy", nil)
		}
		return types.Ok(keepKeyMatches(live, mergeBy))

	case "chooseBranch":
		idx := paramInt(node.Parameters, "branchIndex", 0)
		if idx < 0 || idx >= len(inputs) {
			return types.Fail(types.ErrorKindValidation, fmt.Sprintf("merge node: branchIndex %d out of range (%d inputs)", idx, len(inputs)), nil)
		}
		return types.Ok(inputs[idx].Data)

	default:
		return types.Fail(types.ErrorKindValidation, fmt.Sprintf("merge node: unknown mode %q", mode), nil)
	}
}

// keepKeyMatches keeps only the map entries whose value under mergeBy is
// identical across every live input.
func keepKeyMatches(live []types.NodeResult, mergeBy string) []interface{} {
	if len(live) == 0 {
		return nil
	}
	counts := map[interface{}][]interface{}{}
	for _, r := range live {
		m, ok := r.Data.(map[string]interface{})
		if !ok {
			continue
		}
		key, ok := m[mergeBy]
		if !ok {
			continue
		}
		counts[key] = append(counts[key], m)
	}

	out := make([]interface{}, 0)
	for key, group := range counts {
		if len(group) == len(live) {
			out = append(out, map[string]interface{}{mergeBy: key, "matches": group})
		}
	}
	return out
}

// Kind returns "Merge".
func (e *MergeExecutor) Kind() string { return "Merge" }

// Validate checks mode and mode-specific requirements.
func (e *MergeExecutor) Validate(node types.Node) error {
	mode := paramString(node.Parameters, "mode", "append")
	switch mode {
	case "append", "merge":
		return nil
	case "keepKeyMatches":
		if paramString(node.Parameters, "mergeBy", "") == "" {
			return fmt.Errorf("merge node: keepKeyMatches requires mergeBy")
		}
		return nil
	case "chooseBranch":
		return nil
	default:
		return fmt.Errorf("merge node: mode must be one of append|merge|keepKeyMatches|chooseBranch, got %q", mode)
	}
}

// Definition describes the Merge node kind.
func (e *MergeExecutor) Definition() executor.NodeDefinition {
	return executor.NodeDefinition{
		Kind:        "Merge",
		DisplayName: "Merge",
		Category:    "data",
		Description: "Combines the results of every inbound branch once all have reached a terminal state.",
		Parameters: []executor.ParameterSpec{
			{Name: "mode", Kind: executor.ParamEnum, Required: true, Default: "append", Options: []string{"append", "merge", "keepKeyMatches", "chooseBranch"}},
			{Name: "mergeBy", Kind: executor.ParamString, Required: false, ShowIf: "mode", ShowIfValue: "keepKeyMatches"},
			{Name: "branchIndex", Kind: executor.ParamNumber, Required: false, Default: 0, ShowIf: "mode", ShowIfValue: "chooseBranch"},
		},
		Outputs: []string{types.OutputDefault},
	}
}
