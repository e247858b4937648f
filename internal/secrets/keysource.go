package secrets

import (
	"crypto/sha256"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Hooks for tests.
var (
	keySourceReadFile      = os.ReadFile
	keySourceUserConfigDir = os.UserConfigDir
	keySourceMkdirAll      = os.MkdirAll
)

const (
	// EnvPassphrase overrides the machine id as key material.
	EnvPassphrase = "BILLTOOL_SECRETS_PASSPHRASE"
	// EnvSecretsFile moves the secrets file, e.g. onto a mounted volume.
	EnvSecretsFile = "BILLTOOL_SECRETS_FILE"
)

// machineIDPaths are tried in order; dbus keeps a copy on older systems.
var machineIDPaths = []string{"/etc/machine-id", "/var/lib/dbus/machine-id"}

// DefaultKeySource returns a 32-byte key from BILLTOOL_SECRETS_PASSPHRASE or
// the machine id.
func DefaultKeySource() ([]byte, error) {
	if s := os.Getenv(EnvPassphrase); s != "" {
		return deriveKey(s), nil
	}
	var errs []error
	for _, p := range machineIDPaths {
		b, err := keySourceReadFile(p)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		line, _, _ := strings.Cut(string(b), "\n")
		if id := strings.TrimSpace(line); id != "" {
			return deriveKey(id), nil
		}
		errs = append(errs, fmt.Errorf("%s is empty", p))
	}
	return nil, fmt.Errorf("secrets: set %s or provide a machine-id: %w", EnvPassphrase, errors.Join(errs...))
}

// DeriveKeyFromPassphrase returns a 32-byte key from a passphrase.
func DeriveKeyFromPassphrase(passphrase string) []byte {
	return deriveKey(passphrase)
}

func deriveKey(input string) []byte {
	const salt = "billtool-secrets-v1"
	h := sha256.Sum256([]byte(salt + input))
	return h[:]
}

// SecretsDir returns UserConfigDir/billtool, creating it with mode 0700.
func SecretsDir() (string, error) {
	base, err := keySourceUserConfigDir()
	if err != nil {
		return "", fmt.Errorf("secrets dir: %w", err)
	}
	dir := filepath.Join(base, "billtool")
	if err := keySourceMkdirAll(dir, 0o700); err != nil {
		return "", fmt.Errorf("secrets dir mkdir: %w", err)
	}
	return dir, nil
}

// DefaultSecretsPath returns $BILLTOOL_SECRETS_FILE or SecretsDir()/.secrets.
func DefaultSecretsPath() (string, error) {
	if p := os.Getenv(EnvSecretsFile); p != "" {
		return filepath.Clean(p), nil
	}
	dir, err := SecretsDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, ".secrets"), nil
}
