package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"github.com/flowcraft/workflow-core/pkg/broadcast"
	"github.com/flowcraft/workflow-core/pkg/journal"
	"github.com/flowcraft/workflow-core/pkg/logging"
	"github.com/flowcraft/workflow-core/pkg/types"
)

func newTestAPI(t *testing.T) (*API, journal.Store, *httptest.Server) {
	t.Helper()
	store := journal.NewMemoryStore()
	hub := broadcast.NewHub()
	a := New(store, hub, logging.New(logging.DefaultConfig()))

	router := mux.NewRouter()
	a.Register(router)
	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)
	return a, store, srv
}

func seedExecution(t *testing.T, store journal.Store, id string) types.WorkflowExecution {
	t.Helper()
	exec := types.WorkflowExecution{
		ID:         id,
		WorkflowID: "wf-1",
		Status:     types.ExecutionSuccess,
		StartedAt:  time.Now().Add(-time.Minute),
	}
	finished := time.Now()
	exec.FinishedAt = &finished
	if err := store.CreateExecution(t.Context(), exec); err != nil {
		t.Fatalf("seed execution: %v", err)
	}
	return exec
}

func TestAPI_ListExecutions(t *testing.T) {
	_, store, srv := newTestAPI(t)
	seedExecution(t, store, "exec-1")

	resp, err := http.Get(srv.URL + "/executions")
	if err != nil {
		t.Fatalf("GET /executions: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	var execs []types.WorkflowExecution
	if err := json.NewDecoder(resp.Body).Decode(&execs); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(execs) != 1 || execs[0].ID != "exec-1" {
		t.Errorf("expected [exec-1], got %+v", execs)
	}
}

func TestAPI_GetExecution_NotFound(t *testing.T) {
	_, _, srv := newTestAPI(t)

	resp, err := http.Get(srv.URL + "/executions/missing")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("expected 404, got %d", resp.StatusCode)
	}
}

func TestAPI_Stats(t *testing.T) {
	_, store, srv := newTestAPI(t)
	seedExecution(t, store, "exec-1")

	resp, err := http.Get(srv.URL + "/stats")
	if err != nil {
		t.Fatalf("GET /stats: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
}

func TestAPI_StreamGlobal_SSE(t *testing.T) {
	a, _, srv := newTestAPI(t)

	req, _ := http.NewRequest(http.MethodGet, srv.URL+"/events", nil)
	client := &http.Client{Timeout: 2 * time.Second}

	done := make(chan string, 1)
	go func() {
		resp, err := client.Do(req)
		if err != nil {
			done <- ""
			return
		}
		defer resp.Body.Close()
		buf := make([]byte, 4096)
		n, _ := resp.Body.Read(buf)
		done <- string(buf[:n])
	}()

	time.Sleep(50 * time.Millisecond)
	a.hub.ExecutionStarted(types.WorkflowExecution{ID: "exec-2", Status: types.ExecutionRunning})

	select {
	case body := <-done:
		if !strings.Contains(body, "ExecutionStarted") {
			t.Errorf("expected ExecutionStarted event in stream, got %q", body)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for SSE event")
	}
}

func TestAPI_StreamGlobal_WebSocket(t *testing.T) {
	a, _, srv := newTestAPI(t)

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/events"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	a.hub.ExecutionStarted(types.WorkflowExecution{ID: "exec-3", Status: types.ExecutionRunning})

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var event broadcast.Event
	if err := conn.ReadJSON(&event); err != nil {
		t.Fatalf("read websocket event: %v", err)
	}
	if event.Kind != broadcast.EventExecutionStarted {
		t.Errorf("expected EventExecutionStarted, got %v", event.Kind)
	}
}
