// Package webhook is the inbound wire transport for the workflow core
// (§6). It accepts an arbitrary path under a mounted prefix, with any
// HTTP method, and packages the concrete request into the trigger
// payload the Webhook node expects: method, path, query, headers, the
// raw body, and the body parsed as JSON when the content type says so.
// The core itself does not authenticate or route requests to a
// workflow; both concerns are pushed to the injected Resolver, exactly
// as §6 describes the CRUD surface as an external collaborator.
package webhook

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"github.com/flowcraft/workflow-core/pkg/logging"
	"github.com/flowcraft/workflow-core/pkg/types"
)

// Runner executes a resolved workflow against a trigger payload. Satisfied
// by *scheduler.Scheduler.
type Runner interface {
	Execute(ctx context.Context, wf types.Workflow, mode types.TriggerMode, triggerData interface{}) (types.WorkflowExecution, error)
}

// Resolver maps an inbound method+path to the workflow that should run,
// the way a CRUD collaborator owns the `workflows` table (§6 persistence
// layout). A false ok yields a 404.
type Resolver interface {
	Resolve(method, path string) (types.Workflow, bool, error)
}

// MaxBodyBytes bounds how much of a webhook request body is read before
// the handler gives up, independent of any per-node resource limit.
const MaxBodyBytes = 10 * 1024 * 1024

// Handler is the http.Handler mounted at the webhook base URL.
type Handler struct {
	runner   Runner
	resolver Resolver
	logger   *logging.Logger
}

// New constructs a webhook Handler. runner is typically a *scheduler.Scheduler.
func New(runner Runner, resolver Resolver, logger *logging.Logger) *Handler {
	return &Handler{runner: runner, resolver: resolver, logger: logger}
}

// ServeHTTP resolves the request to a workflow, builds the trigger
// payload, runs it synchronously, and reports the resulting execution.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	wf, ok, err := h.resolver.Resolve(r.Method, r.URL.Path)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]any{"error": "resolving webhook route: " + err.Error()})
		return
	}
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]any{"error": "no workflow is registered for this webhook path"})
		return
	}

	payload, err := buildPayload(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": err.Error()})
		return
	}

	exec, err := h.runner.Execute(r.Context(), wf, types.TriggerWebhook, payload)
	if err != nil {
		h.logger.WithError(err).WithField("workflow_id", wf.ID).Error("webhook execution rejected")
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": err.Error()})
		return
	}

	h.logger.WithExecutionID(exec.ID).WithWorkflowID(wf.ID).
		WithField("status", string(exec.Status)).Info("webhook execution finished")

	status := http.StatusOK
	if exec.Status == types.ExecutionError {
		status = http.StatusUnprocessableEntity
	}
	writeJSON(w, status, map[string]any{
		"execution_id": exec.ID,
		"status":       exec.Status,
		"error":        exec.ErrorMessage,
	})
}

func buildPayload(r *http.Request) (map[string]any, error) {
	body, err := io.ReadAll(io.LimitReader(r.Body, MaxBodyBytes))
	if err != nil {
		return nil, err
	}

	headers := map[string]any{}
	for k, v := range r.Header {
		if len(v) > 0 {
			headers[k] = v[0]
		}
	}
	query := map[string]any{}
	for k, v := range r.URL.Query() {
		if len(v) > 0 {
			query[k] = v[0]
		}
	}

	payload := map[string]any{
		"method":  r.Method,
		"path":    r.URL.Path,
		"headers": headers,
		"query":   query,
		"body":    string(body),
	}
	if isJSONContentType(r.Header.Get("Content-Type")) && len(body) > 0 {
		var parsed any
		if err := json.Unmarshal(body, &parsed); err == nil {
			payload["json"] = parsed
		}
	}
	return payload, nil
}

func isJSONContentType(ct string) bool {
	ct = strings.ToLower(ct)
	if idx := strings.Index(ct, ";"); idx >= 0 {
		ct = ct[:idx]
	}
	return strings.TrimSpace(ct) == "application/json"
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
