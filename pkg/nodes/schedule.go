package nodes

import (
	"context"
	"fmt"
	"strings"
	"time"

	cron "github.com/robfig/cron/v3"

	"github.com/flowcraft/workflow-core/pkg/executor"
	"github.com/flowcraft/workflow-core/pkg/types"
)

// scheduleParser accepts the standard 5-field form and, via SecondOptional,
// the 6-field form with a leading seconds field — both are valid per
// §4.7, dispatch itself happens outside the core.
var scheduleParser = cron.NewParser(
	cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
)

// ScheduleExecutor is the trigger node for time-based execution. The core
// only validates the cron expression and reports {timestamp, next-run};
// an external dispatcher is responsible for actually invoking the
// workflow on schedule.
type ScheduleExecutor struct{}

// NewScheduleExecutor constructs a ScheduleExecutor.
func NewScheduleExecutor() *ScheduleExecutor { return &ScheduleExecutor{} }

// Execute computes the next scheduled run from the node's cron parameter.
func (e *ScheduleExecutor) Execute(ctx context.Context, ec executor.ExecutionContext, node types.Node) types.NodeResult {
	cronExpr := paramString(node.Parameters, "cron", "")
	now := time.Now().UTC()

	if cronExpr == "" {
		return types.Ok(map[string]any{
			"timestamp": now,
			"next_run":  nil,
		})
	}

	schedule, err := scheduleParser.Parse(cronExpr)
	if err != nil {
		return types.Fail(types.ErrorKindValidation, fmt.Sprintf("invalid cron expression %q: %v", cronExpr, err), err)
	}

	return types.Ok(map[string]any{
		"timestamp": now,
		"next_run":  schedule.Next(now),
	})
}

// Kind returns "Schedule".
func (e *ScheduleExecutor) Kind() string { return "Schedule" }

// Validate checks the cron expression has 5 or 6 whitespace-separated
// fields and parses under the standard/seconds-optional grammar.
func (e *ScheduleExecutor) Validate(node types.Node) error {
	cronExpr := paramString(node.Parameters, "cron", "")
	if cronExpr == "" {
		return nil
	}
	fields := strings.Fields(cronExpr)
	if len(fields) != 5 && len(fields) != 6 {
		return fmt.Errorf("schedule node: cron expression must have 5 or 6 fields, got %d", len(fields))
	}
	if _, err := scheduleParser.Parse(cronExpr); err != nil {
		return fmt.Errorf("schedule node: %w", err)
	}
	return nil
}

// Definition describes the Schedule node kind.
func (e *ScheduleExecutor) Definition() executor.NodeDefinition {
	return executor.NodeDefinition{
		Kind:        "Schedule",
		DisplayName: "Schedule",
		Category:    "trigger",
		Description: "Entry point invoked on a cron schedule.",
		Parameters: []executor.ParameterSpec{
			{Name: "cron", Kind: executor.ParamString, Required: true, Description: "5 or 6 field cron expression"},
		},
		Outputs: []string{types.OutputDefault},
	}
}
