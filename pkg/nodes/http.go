package nodes

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/flowcraft/workflow-core/pkg/executor"
	"github.com/flowcraft/workflow-core/pkg/httpclient"
	"github.com/flowcraft/workflow-core/pkg/security"
	"github.com/flowcraft/workflow-core/pkg/types"
)

var httpMethods = map[string]bool{
	http.MethodGet: true, http.MethodPost: true, http.MethodPut: true,
	http.MethodDelete: true, http.MethodPatch: true,
}

// HTTPRequestExecutor performs an outbound HTTP call (§4.7). It shares
// the calculator runtime's connection-pooling and SSRF-protection
// approach, generalized from a GET-only client to the full
// method/headers/body/auth parameter surface.
type HTTPRequestExecutor struct {
	mu     sync.RWMutex
	client *http.Client
}

// NewHTTPRequestExecutor constructs an HTTPRequestExecutor.
func NewHTTPRequestExecutor() *HTTPRequestExecutor { return &HTTPRequestExecutor{} }

// Execute resolves the node's parameters, issues the request, and reports
// the response (or a transport-level failure) as a NodeResult.
func (e *HTTPRequestExecutor) Execute(ctx context.Context, ec executor.ExecutionContext, node types.Node) types.NodeResult {
	method := strings.ToUpper(paramString(node.Parameters, "method", "GET"))
	if !httpMethods[method] {
		return types.Fail(types.ErrorKindValidation, fmt.Sprintf("http request node: unsupported method %q", method), nil)
	}

	rawURL, err := ec.ResolveParameter(paramString(node.Parameters, "url", ""))
	if err != nil {
		return types.Fail(types.ErrorKindExecution, fmt.Sprintf("http request node: url resolution failed: %v", err), err)
	}
	url, _ := rawURL.(string)
	if url == "" {
		return types.Fail(types.ErrorKindValidation, "http request node missing url", nil)
	}
	if !strings.HasPrefix(url, "http://") && !strings.HasPrefix(url, "https://") {
		return types.Fail(types.ErrorKindValidation, "http request node: url must start with http:// or https://", nil)
	}

	cfg := ec.Config()
	if !cfg.AllowHTTP {
		return types.Fail(types.ErrorKindExecution, "http requests are not allowed (AllowHTTP=false)", nil)
	}
	if err := validateRequestURL(url, cfg); err != nil {
		return types.Fail(types.ErrorKindExecution, fmt.Sprintf("http request node: %v", err), err)
	}

	timeoutSeconds := paramInt(node.Parameters, "timeoutSeconds", 30)
	if timeoutSeconds < 1 || timeoutSeconds > 300 {
		timeoutSeconds = 30
	}
	reqCtx, cancel := context.WithTimeout(ctx, time.Duration(timeoutSeconds)*time.Second)
	defer cancel()

	var bodyReader io.Reader
	if raw, ok := node.Parameters["body"]; ok {
		resolvedBody, err := ec.ResolveParameter(raw)
		if err != nil {
			return types.Fail(types.ErrorKindExecution, fmt.Sprintf("http request node: body resolution failed: %v", err), err)
		}
		bodyReader, err = encodeBody(resolvedBody)
		if err != nil {
			return types.Fail(types.ErrorKindExecution, fmt.Sprintf("http request node: %v", err), err)
		}
	}

	req, err := http.NewRequestWithContext(reqCtx, method, url, bodyReader)
	if err != nil {
		return types.Fail(types.ErrorKindExecution, fmt.Sprintf("http request node: building request: %v", err), err)
	}

	if err := applyHeaders(req, ec, node.Parameters); err != nil {
		return types.Fail(types.ErrorKindExecution, fmt.Sprintf("http request node: %v", err), err)
	}
	if err := applyAuth(req, ec, node); err != nil {
		return types.Fail(types.ErrorKindExecution, fmt.Sprintf("http request node: %v", err), err)
	}

	client, err := e.resolveClient(ec, node.Parameters, cfg)
	if err != nil {
		return types.Fail(types.ErrorKindValidation, fmt.Sprintf("http request node: %v", err), err)
	}
	resp, err := client.Do(req)
	if err != nil {
		if reqCtx.Err() != nil {
			return types.Fail(types.ErrorKindTimeout, fmt.Sprintf("http request timed out after %ds", timeoutSeconds), err)
		}
		return types.Fail(types.ErrorKindExternal, fmt.Sprintf("http request failed: %v", err), err)
	}
	defer resp.Body.Close()

	limited := io.LimitReader(resp.Body, cfg.MaxResponseSize)
	rawBody, err := io.ReadAll(limited)
	if err != nil {
		return types.Fail(types.ErrorKindExternal, fmt.Sprintf("http request node: reading response: %v", err), err)
	}

	headers := map[string]interface{}{}
	for k, v := range resp.Header {
		if len(v) > 0 {
			headers[k] = v[0]
		}
	}

	return types.Ok(map[string]interface{}{
		"statusCode": resp.StatusCode,
		"statusText": resp.Status,
		"headers":    headers,
		"body":       parseBody(resp.Header.Get("Content-Type"), rawBody),
		"isSuccess":  resp.StatusCode >= 200 && resp.StatusCode < 300,
	})
}

func encodeBody(v interface{}) (io.Reader, error) {
	switch b := v.(type) {
	case nil:
		return nil, nil
	case string:
		return strings.NewReader(b), nil
	default:
		encoded, err := json.Marshal(b)
		if err != nil {
			return nil, fmt.Errorf("encoding body: %w", err)
		}
		return bytes.NewReader(encoded), nil
	}
}

func parseBody(contentType string, raw []byte) interface{} {
	if strings.Contains(contentType, "application/json") {
		var parsed interface{}
		if err := json.Unmarshal(raw, &parsed); err == nil {
			return parsed
		}
	}
	return string(raw)
}

func applyHeaders(req *http.Request, ec executor.ExecutionContext, params map[string]interface{}) error {
	headers := paramMap(params, "headers")
	for k, v := range headers {
		resolved, err := ec.ResolveParameter(v)
		if err != nil {
			return fmt.Errorf("resolving header %q: %w", k, err)
		}
		req.Header.Set(k, fmt.Sprintf("%v", resolved))
	}
	return nil
}

func applyAuth(req *http.Request, ec executor.ExecutionContext, node types.Node) error {
	auth := paramMap(node.Parameters, "auth")
	authType := paramString(auth, "type", "none")

	ref, hasRef := node.Credentials["auth"]
	var creds map[string]string
	if hasRef {
		resolved, err := ec.Credential(ref)
		if err != nil {
			return fmt.Errorf("resolving credential %q: %w", ref, err)
		}
		creds = resolved
	}

	switch strings.ToLower(authType) {
	case "", "none":
		return nil
	case "basic":
		user, pass := creds["username"], creds["password"]
		if user == "" {
			user = paramString(auth, "username", "")
		}
		if pass == "" {
			pass = paramString(auth, "password", "")
		}
		token := base64.StdEncoding.EncodeToString([]byte(user + ":" + pass))
		req.Header.Set("Authorization", "Basic "+token)
		return nil
	case "bearer":
		token := creds["token"]
		if token == "" {
			token = paramString(auth, "token", "")
		}
		req.Header.Set("Authorization", "Bearer "+token)
		return nil
	default:
		return fmt.Errorf("unknown auth type %q", authType)
	}
}

func validateRequestURL(url string, cfg types.Config) error {
	protection := security.NewSSRFProtectionWithConfig(security.SSRFConfig{
		AllowedSchemes:     []string{"http", "https"},
		BlockPrivateIPs:    !cfg.AllowPrivateIPs,
		BlockLocalhost:     !cfg.AllowLocalhost,
		BlockLinkLocal:     !cfg.AllowLinkLocal,
		BlockCloudMetadata: !cfg.AllowCloudMetadata,
		AllowedDomains:     cfg.AllowedDomains,
	})
	return protection.ValidateURL(url)
}

// resolveClient returns the named client from the scheduler's
// httpclient.Registry when the node specifies one. An unset "client"
// parameter falls back to the executor's own pooled client; a named
// client that isn't registered is a validation failure rather than a
// silent fallback, since it usually means a misconfigured auth/header
// profile the caller meant to apply.
func (e *HTTPRequestExecutor) resolveClient(ec executor.ExecutionContext, params map[string]interface{}, cfg types.Config) (*http.Client, error) {
	name := paramString(params, "client", "")
	if name == "" {
		return e.getOrCreateClient(cfg), nil
	}
	raw, ok := ec.HTTPClient(name)
	if !ok {
		return nil, fmt.Errorf("named HTTP client %q is not registered", name)
	}
	named, ok := raw.(*httpclient.Client)
	if !ok {
		return nil, fmt.Errorf("named HTTP client %q has an unexpected type", name)
	}
	return named.Client, nil
}

func (e *HTTPRequestExecutor) getOrCreateClient(cfg types.Config) *http.Client {
	e.mu.RLock()
	if e.client != nil {
		defer e.mu.RUnlock()
		return e.client
	}
	e.mu.RUnlock()

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.client != nil {
		return e.client
	}

	e.client = &http.Client{
		Transport: &http.Transport{
			MaxIdleConns:        100,
			MaxIdleConnsPerHost: 10,
			MaxConnsPerHost:     100,
			IdleConnTimeout:     90 * time.Second,
		},
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= cfg.MaxHTTPRedirects {
				return fmt.Errorf("too many redirects (max %d)", cfg.MaxHTTPRedirects)
			}
			return validateRequestURL(req.URL.String(), cfg)
		},
	}
	return e.client
}

// Kind returns "HTTPRequest".
func (e *HTTPRequestExecutor) Kind() string { return "HTTPRequest" }

// Validate checks method and url shape without making a request.
func (e *HTTPRequestExecutor) Validate(node types.Node) error {
	method := strings.ToUpper(paramString(node.Parameters, "method", "GET"))
	if !httpMethods[method] {
		return fmt.Errorf("http request node: unsupported method %q", method)
	}
	url := paramString(node.Parameters, "url", "")
	if url == "" {
		return fmt.Errorf("http request node missing url")
	}
	if !strings.HasPrefix(url, "{{") && !strings.HasPrefix(url, "http://") && !strings.HasPrefix(url, "https://") {
		return fmt.Errorf("http request node: url must start with http:// or https://")
	}
	timeoutSeconds := paramInt(node.Parameters, "timeoutSeconds", 30)
	if timeoutSeconds < 1 || timeoutSeconds > 300 {
		return fmt.Errorf("http request node: timeoutSeconds must be between 1 and 300")
	}
	return nil
}

// Definition describes the HTTPRequest node kind.
func (e *HTTPRequestExecutor) Definition() executor.NodeDefinition {
	return executor.NodeDefinition{
		Kind:        "HTTPRequest",
		DisplayName: "HTTP Request",
		Category:    "action",
		Description: "Issues an outbound HTTP request.",
		Retryable:   true,
		Parameters: []executor.ParameterSpec{
			{Name: "method", Kind: executor.ParamEnum, Required: true, Default: "GET", Options: []string{"GET", "POST", "PUT", "DELETE", "PATCH"}},
			{Name: "url", Kind: executor.ParamString, Required: true},
			{Name: "headers", Kind: executor.ParamObject, Required: false},
			{Name: "body", Kind: executor.ParamObject, Required: false},
			{Name: "auth", Kind: executor.ParamObject, Required: false, Description: "{type: none|basic|bearer, ...}"},
			{Name: "timeoutSeconds", Kind: executor.ParamNumber, Required: false, Default: 30},
			{Name: "client", Kind: executor.ParamString, Required: false, Description: "named client from the configured httpclient.Registry; falls back to the default pooled client"},
		},
		Outputs: []string{types.OutputDefault},
	}
}
