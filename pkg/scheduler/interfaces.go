package scheduler

import "time"

// CredentialProvider resolves a credential reference configured on a node
// (types.Node.Credentials) to the secret values a node executor needs —
// an API key, a bearer token, a username/password pair. The scheduler
// never stores or logs what a provider returns.
type CredentialProvider interface {
	Get(ref string) (map[string]string, error)
}

// EnvironmentProvider resolves a named environment value exposed to
// expressions as $env.NAME (§4.3). Distinct from CredentialProvider so a
// workflow's environment variables can be audited and rotated separately
// from secrets.
type EnvironmentProvider interface {
	Get(name string) (string, bool)
}

// Clock abstracts wall-clock time so scheduler tests can control timeout
// and backoff behavior deterministically instead of racing real timers.
type Clock interface {
	Now() time.Time
	After(d time.Duration) <-chan time.Time
}

// systemClock is the production Clock backed by the real wall clock.
type systemClock struct{}

func (systemClock) Now() time.Time                  { return time.Now() }
func (systemClock) After(d time.Duration) <-chan time.Time { return time.After(d) }

// noopCredentials rejects every credential lookup — the default when a
// Scheduler is built without a CredentialProvider, so a workflow that
// references a credential fails loudly instead of silently running with
// no secret.
type noopCredentials struct{}

func (noopCredentials) Get(ref string) (map[string]string, error) {
	return nil, errCredentialUnavailable(ref)
}

// noopEnvironment reports every name as unset.
type noopEnvironment struct{}

func (noopEnvironment) Get(name string) (string, bool) { return "", false }
