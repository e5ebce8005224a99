package httpclient

import (
	"fmt"
	"net/http"
)

// Middleware is a function that wraps an http.RoundTripper
type Middleware func(http.RoundTripper) http.RoundTripper

// Chain composes middlewares into a single RoundTripper, applying them in
// the order given: the first middleware sees the request first.
func Chain(middlewares ...Middleware) Middleware {
	return func(base http.RoundTripper) http.RoundTripper {
		for i := len(middlewares) - 1; i >= 0; i-- {
			base = middlewares[i](base)
		}
		return base
	}
}

// authMiddleware adds basic or bearer authentication headers to requests.
func authMiddleware(config *ClientConfig) Middleware {
	return func(next http.RoundTripper) http.RoundTripper {
		return &authRoundTripper{next: next, config: config}
	}
}

type authRoundTripper struct {
	next   http.RoundTripper
	config *ClientConfig
}

func (t *authRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	clonedReq := req.Clone(req.Context())

	switch t.config.AuthType {
	case AuthTypeBasic:
		clonedReq.SetBasicAuth(t.config.Username, t.config.Password.Value())
	case AuthTypeBearer:
		clonedReq.Header.Set("Authorization", "Bearer "+t.config.Token.Value())
	}

	return t.next.RoundTrip(clonedReq)
}

// headersMiddleware adds a named client's default headers to requests,
// without overriding headers the caller already set.
func headersMiddleware(headers map[string]string) Middleware {
	return func(next http.RoundTripper) http.RoundTripper {
		return &headersRoundTripper{next: next, headers: headers}
	}
}

type headersRoundTripper struct {
	next    http.RoundTripper
	headers map[string]string
}

func (t *headersRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	clonedReq := req.Clone(req.Context())

	for key, value := range t.headers {
		if clonedReq.Header.Get(key) == "" {
			clonedReq.Header.Set(key, value)
		}
	}

	return t.next.RoundTrip(clonedReq)
}

// queryParamsMiddleware adds a named client's default query parameters to
// requests, without overriding query parameters the caller already set.
func queryParamsMiddleware(params map[string]string) Middleware {
	return func(next http.RoundTripper) http.RoundTripper {
		return &queryParamsRoundTripper{next: next, params: params}
	}
}

type queryParamsRoundTripper struct {
	next   http.RoundTripper
	params map[string]string
}

func (t *queryParamsRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	clonedReq := req.Clone(req.Context())

	q := clonedReq.URL.Query()
	for key, value := range t.params {
		if !q.Has(key) {
			q.Set(key, value)
		}
	}
	clonedReq.URL.RawQuery = q.Encode()

	return t.next.RoundTrip(clonedReq)
}

// ssrfProtectionMiddleware validates a request's URL before it is sent,
// using the same validator Builder applies to redirect targets (§6 SSRF
// protection) so the initial request is covered too, not just redirects.
func ssrfProtectionMiddleware(validate func(url string) error) Middleware {
	return func(next http.RoundTripper) http.RoundTripper {
		return &ssrfProtectionRoundTripper{next: next, validate: validate}
	}
}

type ssrfProtectionRoundTripper struct {
	next     http.RoundTripper
	validate func(url string) error
}

func (t *ssrfProtectionRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	if err := t.validate(req.URL.String()); err != nil {
		return nil, fmt.Errorf("SSRF validation failed: %w", err)
	}
	return t.next.RoundTrip(req)
}
