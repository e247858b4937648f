package secrets

import "errors"

// Names of the secrets billtool reads.
const (
	BillingAPIKey = "billing_api_key"
	GatewayToken  = "gateway_auth_token"
	JournalURL    = "journal_url" // remote libsql URLs embed an auth token
)

// Known lists the secret names the CLI accepts.
var Known = []string{BillingAPIKey, GatewayToken, JournalURL}

// SecretsManager stores and retrieves secrets without writing them to config.
type SecretsManager interface {
	// Get returns the secret for key. Returns ErrNotFound if missing.
	Get(key string) (string, error)
	// Set stores the secret for key, overwriting any previous value.
	Set(key, value string) error
	// Delete removes the secret for key. No error if it did not exist.
	Delete(key string) error
}

var (
	// ErrNotFound is returned when a secret is not found.
	ErrNotFound = errors.New("secret not found")
	// ErrWrongKey is returned when the secrets file cannot be decrypted with
	// the current key, e.g. after BILLTOOL_SECRETS_PASSPHRASE changed.
	ErrWrongKey = errors.New("secrets file cannot be decrypted with the current key")
)

// Resolve returns the first non-empty value among overrides, then the stored
// secret. Overrides are typically an environment variable and a config field.
func Resolve(m SecretsManager, key string, overrides ...string) (string, error) {
	for _, v := range overrides {
		if v != "" {
			return v, nil
		}
	}
	if m == nil {
		return "", ErrNotFound
	}
	return m.Get(key)
}
