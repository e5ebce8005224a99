package nodes

import "github.com/flowcraft/workflow-core/pkg/executor"

// RegisterAll registers every built-in node kind (§4.7) into reg. Callers
// assembling a scheduler call this once at startup.
func RegisterAll(reg *executor.Registry) {
	reg.MustRegister(NewStartExecutor())
	reg.MustRegister(NewWebhookExecutor())
	reg.MustRegister(NewScheduleExecutor())
	reg.MustRegister(NewHTTPRequestExecutor())
	reg.MustRegister(NewIfExecutor())
	reg.MustRegister(NewSwitchExecutor())
	reg.MustRegister(NewSetExecutor())
	reg.MustRegister(NewCodeExecutor())
	reg.MustRegister(NewFunctionExecutor())
	reg.MustRegister(NewMergeExecutor())
	reg.MustRegister(NewSplitExecutor())
	reg.MustRegister(NewNoOpExecutor())
	reg.MustRegister(NewSchemaValidatorExecutor())
}
