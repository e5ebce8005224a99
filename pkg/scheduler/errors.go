package scheduler

import "fmt"

// errCredentialUnavailable reports that no CredentialProvider was wired
// to resolve ref.
func errCredentialUnavailable(ref string) error {
	return fmt.Errorf("credential %q is not available: no credential provider configured", ref)
}
