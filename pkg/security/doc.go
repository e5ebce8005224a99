// Package security provides network-level protections for node execution,
// currently Server-Side Request Forgery (SSRF) guarding for HTTPRequest
// nodes (§4.7).
//
// # SSRF Protection
//
//	protection := security.NewSSRFProtectionWithConfig(security.SSRFConfig{
//	    AllowedDomains:  []string{"api.example.com"},
//	    BlockPrivateIPs: true,
//	})
//
//	if err := protection.ValidateURL(requestURL); err != nil {
//	    return fmt.Errorf("request blocked: %w", err)
//	}
//
// ValidateURL resolves the host, rejects loopback/link-local/private
// ranges by default, and enforces an allowlist when one is configured.
// A disallowed scheme is rejected. A host name that does not resolve is
// checked by name only (localhost and the known cloud metadata host
// names) and is otherwise allowed.
//
// # Thread Safety
//
// SSRFProtection holds no mutable state after construction and is safe
// for concurrent use.
package security
