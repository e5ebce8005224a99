package nodes

import (
	"context"

	"github.com/flowcraft/workflow-core/pkg/executor"
	"github.com/flowcraft/workflow-core/pkg/types"
)

// WebhookExecutor is the trigger node for workflows invoked through the
// inbound webhook transport. The transport packages the concrete request
// into the trigger payload (§6); this node just reshapes that payload into
// its published output fields.
type WebhookExecutor struct{}

// NewWebhookExecutor constructs a WebhookExecutor.
func NewWebhookExecutor() *WebhookExecutor { return &WebhookExecutor{} }

// Execute extracts headers/query/body/method from the trigger payload.
func (e *WebhookExecutor) Execute(ctx context.Context, ec executor.ExecutionContext, node types.Node) types.NodeResult {
	raw, _ := ec.GetVariable("trigger")
	payload, _ := raw.(map[string]any)

	get := func(key string) any {
		if payload == nil {
			return nil
		}
		return payload[key]
	}

	return types.Ok(map[string]any{
		"headers": orEmptyMap(get("headers")),
		"query":   orEmptyMap(get("query")),
		"body":    get("body"),
		"method":  paramString(map[string]any{"method": get("method")}, "method", ""),
	})
}

func orEmptyMap(v any) map[string]any {
	if m, ok := v.(map[string]any); ok {
		return m
	}
	return map[string]any{}
}

// Kind returns "Webhook".
func (e *WebhookExecutor) Kind() string { return "Webhook" }

// Validate always succeeds; Webhook takes no parameters.
func (e *WebhookExecutor) Validate(node types.Node) error { return nil }

// Definition describes the Webhook node kind.
func (e *WebhookExecutor) Definition() executor.NodeDefinition {
	return executor.NodeDefinition{
		Kind:        "Webhook",
		DisplayName: "Webhook",
		Category:    "trigger",
		Description: "Entry point invoked via the inbound webhook transport.",
		Outputs:     []string{types.OutputDefault},
	}
}
