package cli

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"billtool/internal/billing"
	"billtool/internal/config"
	"billtool/internal/secrets"
)

// CheckOptions holds options for the check command.
type CheckOptions struct {
	Path string // config file; empty means config.DefaultPath(".")
	Fix  bool   // if true, write default config and create missing journal directories
}

// RunCheck checks config, billing credentials, gateway, journal and the tool
// catalogue, optionally repairing what it can. Returns the exit code.
func RunCheck(opts CheckOptions, stdout, stderr io.Writer) int {
	cfgPath := opts.Path
	if cfgPath == "" {
		cfgPath = config.DefaultPath(".")
	}

	failed := false
	note := func(section, message string) {
		fmt.Fprintf(stdout, "  [%s] %s\n", section, message)
	}
	fail := func(section, message string) {
		failed = true
		note(section, "FAIL "+message)
	}

	// 1. Config
	cfg, err := configLoad(cfgPath)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		note("Config", fmt.Sprintf("No config at %s.", cfgPath))
		if !opts.Fix {
			note("Config", "Run with --fix to create a default "+filepath.Base(cfgPath)+".")
			cfg = config.Default()
			break
		}
		if writeErr := configWriteDefault(cfgPath); writeErr != nil {
			fmt.Fprintf(stderr, "  failed to write default config: %v\n", writeErr)
			return 1
		}
		note("Config", fmt.Sprintf("Wrote default config to %s.", cfgPath))
		cfg = config.Default()
	case err != nil:
		fail("Config", err.Error())
		fmt.Fprintln(stdout, "  Check complete.")
		return 1
	default:
		note("Config", fmt.Sprintf("Loaded %s.", cfgPath))
	}
	config.ApplyEnv(cfg, os.Getenv)
	if err := config.Validate(cfg); err != nil {
		for _, line := range strings.Split(err.Error(), "\n") {
			fail("Config", line)
		}
	}

	// 2. Billing
	if base, err := baseURL(cfg.Billing.BaseURL, cfg.Billing.Environment); err == nil {
		note("Billing", fmt.Sprintf("environment=%s url=%s", cfg.Billing.Environment, base))
	}
	if key := apiKeySource(cfg.Billing.APIKey); key != "" {
		note("Billing", "API key found in "+key+".")
	} else {
		fail("Billing", fmt.Sprintf("no API key: set %s, billing.apiKey or the %q secret", config.EnvAPIKey, secrets.BillingAPIKey))
	}

	// 3. Gateway
	auth := "token"
	if cfg.Gateway.AuthToken == "" {
		auth = "none"
	}
	note("Gateway", fmt.Sprintf("port=%d auth=%s", cfg.Gateway.Port, auth))
	if auth == "none" {
		note("Gateway", "Auth is disabled. Consider setting gateway.authToken before exposing the gateway.")
	}

	// 4. Journal
	switch dir, local := journalDir(cfg.Journal.URL); {
	case cfg.Journal.URL == "":
		note("Journal", "Disabled.")
	case !local:
		note("Journal", "Remote database "+redactURL(cfg.Journal.URL)+".")
	default:
		if err := ensureDir(dir, "journal.url", opts.Fix); err != nil {
			fail("Journal", err.Error())
		} else {
			note("Journal", fmt.Sprintf("journal.url %s ok.", cfg.Journal.URL))
		}
	}

	// 5. Tools
	reg, err := defaultRegistry()
	if err != nil {
		fail("Tools", err.Error())
	} else {
		note("Tools", fmt.Sprintf("%d tools, %d disabled, %d jobs.", reg.Len(), len(cfg.Tools.Disabled), len(cfg.Jobs)))
	}

	fmt.Fprintln(stdout, "  Check complete.")
	if failed {
		return 1
	}
	return 0
}

func baseURL(override, env string) (string, error) {
	if override != "" {
		return override, nil
	}
	return billing.BaseURLFor(env)
}

// apiKeySource names where the API key was found, or "" if nowhere.
func apiKeySource(fromConfig string) string {
	if os.Getenv(config.EnvAPIKey) != "" {
		return config.EnvAPIKey
	}
	if fromConfig != "" {
		return "config"
	}
	m, err := secretsManager()
	if err != nil {
		return ""
	}
	if v, err := m.Get(secrets.BillingAPIKey); err == nil && v != "" {
		return "secrets store"
	}
	return ""
}

// journalDir returns the parent directory of a local journal database.
func journalDir(url string) (string, bool) {
	if strings.Contains(url, "://") {
		return "", false
	}
	path := strings.TrimPrefix(url, "file:")
	if i := strings.IndexByte(path, '?'); i >= 0 {
		path = path[:i]
	}
	return filepath.Dir(path), true
}

func redactURL(url string) string {
	if i := strings.IndexByte(url, '?'); i >= 0 {
		return url[:i] + "?..."
	}
	return url
}

func ensureDir(dir, label string, create bool) error {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return fmt.Errorf("%s: %w", label, err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		if !os.IsNotExist(err) {
			return fmt.Errorf("%s %q: %w", label, abs, err)
		}
		if !create {
			return fmt.Errorf("%s %q: directory missing (run with --fix)", label, abs)
		}
		if mkErr := osMkdirAll(abs, 0755); mkErr != nil {
			return fmt.Errorf("%s %q: mkdir failed: %w", label, abs, mkErr)
		}
		return nil
	}
	if !info.IsDir() {
		return fmt.Errorf("%s %q: not a directory", label, abs)
	}
	return nil
}
