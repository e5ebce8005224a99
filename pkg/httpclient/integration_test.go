package httpclient_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/flowcraft/workflow-core/pkg/broadcast"
	"github.com/flowcraft/workflow-core/pkg/config"
	"github.com/flowcraft/workflow-core/pkg/executor"
	"github.com/flowcraft/workflow-core/pkg/httpclient"
	"github.com/flowcraft/workflow-core/pkg/journal"
	"github.com/flowcraft/workflow-core/pkg/nodes"
	"github.com/flowcraft/workflow-core/pkg/scheduler"
	"github.com/flowcraft/workflow-core/pkg/types"
)

// TestNamedHTTPClient_Integration exercises an HTTPRequest node running
// through the scheduler with a named client resolved from an
// httpclient.Registry, covering per-client auth and default headers.
func TestNamedHTTPClient_Integration(t *testing.T) {
	basicAuthServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		username, password, ok := r.BasicAuth()
		if !ok || username != "testuser" || password != "testpass" {
			w.WriteHeader(http.StatusUnauthorized)
			w.Write([]byte("unauthorized"))
			return
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("authenticated with basic auth"))
	}))
	defer basicAuthServer.Close()

	bearerServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer secret-token-123" {
			w.WriteHeader(http.StatusUnauthorized)
			w.Write([]byte("unauthorized"))
			return
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("authenticated with bearer token"))
	}))
	defer bearerServer.Close()

	customHeaderServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-API-Key") != "my-api-key" {
			w.WriteHeader(http.StatusUnauthorized)
			w.Write([]byte("missing api key"))
			return
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("custom headers validated"))
	}))
	defer customHeaderServer.Close()

	simpleServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("default client response"))
	}))
	defer simpleServer.Close()

	cfg := config.Testing()
	cfg.AllowHTTP = true
	cfg.AllowLocalhost = true
	cfg.HTTPClients = []config.HTTPClientConfig{
		{Name: "basic-auth-client", AuthType: "basic", Username: "testuser", Password: "testpass", Timeout: 5 * time.Second},
		{Name: "bearer-token-client", AuthType: "bearer", Token: "secret-token-123", Timeout: 5 * time.Second},
		{Name: "custom-headers-client", AuthType: "none", Timeout: 5 * time.Second, DefaultHeaders: map[string]string{"X-API-Key": "my-api-key"}},
	}

	builder := httpclient.NewBuilder(*cfg)
	registry := httpclient.NewRegistry()
	for _, clientCfg := range cfg.HTTPClients {
		client, err := builder.Build(httpclient.FromConfigHTTPClient(clientCfg))
		if err != nil {
			t.Fatalf("building client %q: %v", clientCfg.Name, err)
		}
		if err := registry.Register(clientCfg.Name, client); err != nil {
			t.Fatalf("registering client %q: %v", clientCfg.Name, err)
		}
	}

	var lastStore journal.Store

	run := func(t *testing.T, url, clientName string) types.WorkflowExecution {
		t.Helper()
		params := map[string]any{"method": "GET", "url": url}
		if clientName != "" {
			params["client"] = clientName
		}
		wf := types.Workflow{
			ID: "wf-http",
			Definition: types.WorkflowDefinition{
				Nodes:    []types.Node{{ID: "req", Kind: "HTTPRequest", Enabled: true, Parameters: params}},
				Settings: types.DefaultSettings(),
			},
		}
		store := journal.NewMemoryStore()
		lastStore = store
		reg := executor.NewRegistry()
		nodes.RegisterAll(reg)
		sched := scheduler.New(reg, store, broadcast.NewHub(), *cfg, scheduler.WithHTTPClients(registry))
		exec, err := sched.Execute(context.Background(), wf, types.TriggerManual, nil)
		if err != nil {
			t.Fatalf("Execute returned error: %v", err)
		}
		return exec
	}

	body := func(t *testing.T, exec types.WorkflowExecution, store journal.Store) string {
		t.Helper()
		nodeExecs, err := store.ListNodeExecutions(context.Background(), exec.ID)
		if err != nil || len(nodeExecs) == 0 {
			t.Fatalf("no node execution recorded: %v", err)
		}
		out, _ := nodeExecs[0].OutputData.(map[string]interface{})
		b, _ := out["body"].(string)
		return b
	}

	t.Run("basic auth client", func(t *testing.T) {
		exec := run(t, basicAuthServer.URL, "basic-auth-client")
		if exec.Status != types.ExecutionSuccess {
			t.Fatalf("expected success, got %s (%s)", exec.Status, exec.ErrorMessage)
		}
		if got := body(t, exec, lastStore); got != "authenticated with basic auth" {
			t.Errorf("response body = %q, want %q", got, "authenticated with basic auth")
		}
	})

	t.Run("bearer token client", func(t *testing.T) {
		exec := run(t, bearerServer.URL, "bearer-token-client")
		if exec.Status != types.ExecutionSuccess {
			t.Fatalf("expected success, got %s (%s)", exec.Status, exec.ErrorMessage)
		}
		if got := body(t, exec, lastStore); got != "authenticated with bearer token" {
			t.Errorf("response body = %q, want %q", got, "authenticated with bearer token")
		}
	})

	t.Run("custom headers client", func(t *testing.T) {
		exec := run(t, customHeaderServer.URL, "custom-headers-client")
		if exec.Status != types.ExecutionSuccess {
			t.Fatalf("expected success, got %s (%s)", exec.Status, exec.ErrorMessage)
		}
		if got := body(t, exec, lastStore); got != "custom headers validated" {
			t.Errorf("response body = %q, want %q", got, "custom headers validated")
		}
	})

	t.Run("default client when none named", func(t *testing.T) {
		exec := run(t, simpleServer.URL, "")
		if exec.Status != types.ExecutionSuccess {
			t.Fatalf("expected success, got %s (%s)", exec.Status, exec.ErrorMessage)
		}
	})

	t.Run("non-existent client is a validation failure", func(t *testing.T) {
		exec := run(t, basicAuthServer.URL, "no-such-client")
		if exec.Status != types.ExecutionError {
			t.Fatalf("expected error status for unknown client, got %s", exec.Status)
		}
	})
}

// TestHTTPClientConfig_FromConfig tests the conversion from config.HTTPClientConfig
func TestHTTPClientConfig_FromConfig(t *testing.T) {
	configClient := config.HTTPClientConfig{
		Name:                "test-client",
		Description:         "Test client",
		AuthType:            "basic",
		Username:            "user",
		Password:            "pass",
		Timeout:             60 * time.Second,
		MaxIdleConns:        50,
		MaxIdleConnsPerHost: 5,
		MaxConnsPerHost:     50,
		IdleConnTimeout:     120 * time.Second,
		TLSHandshakeTimeout: 15 * time.Second,
		DisableKeepAlives:   true,
		MaxRedirects:        5,
		MaxResponseSize:     5 * 1024 * 1024,
		FollowRedirects:     false,
		DefaultHeaders: map[string]string{
			"X-Custom": "value",
		},
		DefaultQueryParams: map[string]string{
			"api_key": "secret",
		},
		BaseURL: "https://api.example.com",
	}

	httpClient := httpclient.FromConfigHTTPClient(configClient)

	if httpClient.Name != configClient.Name {
		t.Errorf("Name = %v, want %v", httpClient.Name, configClient.Name)
	}
	if httpClient.Description != configClient.Description {
		t.Errorf("Description = %v, want %v", httpClient.Description, configClient.Description)
	}
	if string(httpClient.AuthType) != configClient.AuthType {
		t.Errorf("AuthType = %v, want %v", httpClient.AuthType, configClient.AuthType)
	}
	if httpClient.Username != configClient.Username {
		t.Errorf("Username = %v, want %v", httpClient.Username, configClient.Username)
	}
	if httpClient.Password.Value() != configClient.Password {
		t.Errorf("Password = %v, want %v", httpClient.Password, configClient.Password)
	}
	if httpClient.Timeout != configClient.Timeout {
		t.Errorf("Timeout = %v, want %v", httpClient.Timeout, configClient.Timeout)
	}
	if httpClient.MaxIdleConns != configClient.MaxIdleConns {
		t.Errorf("MaxIdleConns = %v, want %v", httpClient.MaxIdleConns, configClient.MaxIdleConns)
	}
	if httpClient.BaseURL != configClient.BaseURL {
		t.Errorf("BaseURL = %v, want %v", httpClient.BaseURL, configClient.BaseURL)
	}

	if httpClient.DefaultHeaders["X-Custom"] != "value" {
		t.Error("DefaultHeaders not copied correctly")
	}
	if httpClient.DefaultQueryParams["api_key"] != "secret" {
		t.Error("DefaultQueryParams not copied correctly")
	}
}
