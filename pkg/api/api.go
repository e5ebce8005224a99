// Package api exposes the journal queries and broadcast subscriptions
// §6 names as the core's outward interfaces: execution listing/detail,
// per-workflow stats, and a live event stream by execution id or global,
// mounted on gorilla/mux the way the example pack's workflow services
// build their HTTP surface. The event stream is available both as
// Server-Sent Events and, for clients that prefer it, a gorilla/websocket
// connection carrying the same broadcast.Event payloads.
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"github.com/flowcraft/workflow-core/pkg/broadcast"
	"github.com/flowcraft/workflow-core/pkg/journal"
	"github.com/flowcraft/workflow-core/pkg/logging"
	"github.com/flowcraft/workflow-core/pkg/types"
)

var errStreamingUnsupported = errors.New("response writer does not support streaming")

// wsPingInterval keeps idle WebSocket connections from being dropped by
// intermediate proxies.
const wsPingInterval = 30 * time.Second

// upgrader accepts connections from any origin: this surface has no
// browser session/cookie auth to protect, unlike a same-origin dashboard.
var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// API wires the journal store and broadcast hub to an HTTP router.
type API struct {
	store  journal.Store
	hub    *broadcast.Hub
	logger *logging.Logger
}

// New constructs an API.
func New(store journal.Store, hub *broadcast.Hub, logger *logging.Logger) *API {
	return &API{store: store, hub: hub, logger: logger}
}

// Register mounts every route under router, typically a PathPrefix
// subrouter such as mainRouter.PathPrefix("/api/v1").Subrouter().
func (a *API) Register(router *mux.Router) {
	router.HandleFunc("/executions", a.listExecutions).Methods(http.MethodGet)
	router.HandleFunc("/executions/{id}", a.getExecution).Methods(http.MethodGet)
	router.HandleFunc("/executions/{id}/nodes", a.listNodeExecutions).Methods(http.MethodGet)
	router.HandleFunc("/executions/{id}/logs", a.listLogs).Methods(http.MethodGet)
	router.HandleFunc("/executions/{id}/events", a.streamExecution).Methods(http.MethodGet)
	router.HandleFunc("/events", a.streamGlobal).Methods(http.MethodGet)
	router.HandleFunc("/stats", a.stats).Methods(http.MethodGet)
	router.HandleFunc("/ws/executions/{id}/events", a.streamExecutionWS).Methods(http.MethodGet)
	router.HandleFunc("/ws/events", a.streamGlobalWS).Methods(http.MethodGet)
}

// listExecutions handles GET /executions, filtered by the §4.5 ListFilter
// fields passed as query parameters.
func (a *API) listExecutions(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := journal.ListFilter{
		WorkflowID:  q.Get("workflow_id"),
		Status:      types.ExecutionStatus(q.Get("status")),
		Environment: types.Environment(q.Get("environment")),
		Limit:       queryInt(q, "limit", 50),
		Offset:      queryInt(q, "offset", 0),
	}
	if since := q.Get("since"); since != "" {
		if t, err := time.Parse(time.RFC3339, since); err == nil {
			filter.Since = t
		}
	}
	if until := q.Get("until"); until != "" {
		if t, err := time.Parse(time.RFC3339, until); err == nil {
			filter.Until = t
		}
	}

	execs, err := a.store.ListExecutions(r.Context(), filter)
	if err != nil {
		a.writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, execs)
}

// getExecution handles GET /executions/{id}, including nodes and logs
// when the respective query flags are set.
func (a *API) getExecution(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	q := r.URL.Query()
	detail, err := a.store.GetExecution(r.Context(), id, q.Get("nodes") == "true", q.Get("logs") == "true")
	if err != nil {
		a.writeError(w, http.StatusNotFound, err)
		return
	}
	writeJSON(w, http.StatusOK, detail)
}

// listNodeExecutions handles GET /executions/{id}/nodes.
func (a *API) listNodeExecutions(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	nodes, err := a.store.ListNodeExecutions(r.Context(), id)
	if err != nil {
		a.writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, nodes)
}

// listLogs handles GET /executions/{id}/logs?min_level=info.
func (a *API) listLogs(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	minLevel := types.LogLevel(r.URL.Query().Get("min_level"))
	if minLevel == "" {
		minLevel = types.LogTrace
	}
	logs, err := a.store.ListLogs(r.Context(), id, minLevel)
	if err != nil {
		a.writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, logs)
}

// stats handles GET /stats?workflow_id=... (workflow_id empty = global).
func (a *API) stats(w http.ResponseWriter, r *http.Request) {
	stats, err := a.store.Stats(r.Context(), r.URL.Query().Get("workflow_id"))
	if err != nil {
		a.writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

// streamExecution handles GET /executions/{id}/events: a Server-Sent
// Events feed of that execution's lifecycle/node/log events (§4.6).
func (a *API) streamExecution(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	a.stream(w, r, a.hub.Subscribe(id))
}

// streamGlobal handles GET /events: lifecycle events across every
// execution (§4.6 ExecutionById/Global subscription scopes).
func (a *API) streamGlobal(w http.ResponseWriter, r *http.Request) {
	a.stream(w, r, a.hub.SubscribeGlobal())
}

func (a *API) stream(w http.ResponseWriter, r *http.Request, sub *broadcast.Subscription) {
	defer sub.Close()

	flusher, ok := w.(http.Flusher)
	if !ok {
		a.writeError(w, http.StatusInternalServerError, errStreamingUnsupported)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			return
		case event, ok := <-sub.Events:
			if !ok {
				return
			}
			body, err := json.Marshal(event)
			if err != nil {
				continue
			}
			if _, err := w.Write([]byte("event: " + string(event.Kind) + "\ndata: ")); err != nil {
				return
			}
			if _, err := w.Write(body); err != nil {
				return
			}
			if _, err := w.Write([]byte("\n\n")); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}

// streamExecutionWS handles GET /ws/executions/{id}/events: the same
// per-execution event feed as streamExecution, over a WebSocket instead
// of SSE, for clients that want a bidirectional connection (§4.6).
func (a *API) streamExecutionWS(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	a.streamWS(w, r, a.hub.Subscribe(id))
}

// streamGlobalWS handles GET /ws/events: the WebSocket counterpart of
// streamGlobal.
func (a *API) streamGlobalWS(w http.ResponseWriter, r *http.Request) {
	a.streamWS(w, r, a.hub.SubscribeGlobal())
}

func (a *API) streamWS(w http.ResponseWriter, r *http.Request, sub *broadcast.Subscription) {
	defer sub.Close()

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		a.logger.WithError(err).Warn("websocket upgrade failed")
		return
	}
	defer conn.Close()

	ticker := time.NewTicker(wsPingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-ticker.C:
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case event, ok := <-sub.Events:
			if !ok {
				return
			}
			if err := conn.WriteJSON(event); err != nil {
				return
			}
		}
	}
}

func (a *API) writeError(w http.ResponseWriter, status int, err error) {
	a.logger.WithError(err).WithField("status_code", status).Error("api request failed")
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func queryInt(q map[string][]string, key string, def int) int {
	v, ok := q[key]
	if !ok || len(v) == 0 {
		return def
	}
	n, err := strconv.Atoi(v[0])
	if err != nil {
		return def
	}
	return n
}
