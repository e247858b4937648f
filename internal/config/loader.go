package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"billtool/internal/domain"
)

// Environment variables read by ApplyEnv and DefaultPath.
const (
	EnvConfigPath  = "BILLTOOL_CONFIG"
	EnvAPIKey      = "BILLTOOL_API_KEY"
	EnvEnvironment = "BILLTOOL_ENVIRONMENT"
	EnvBaseURL     = "BILLTOOL_BASE_URL"
	EnvLogLevel    = "BILLTOOL_LOG_LEVEL"
)

// candidates are tried in order by DefaultPath.
var candidates = []string{"billtool.yaml", "billtool.yml", "billtool.json"}

// marshalJSON, marshalYAML and writeFile are used by WriteDefault and Save;
// tests may replace them to force errors.
var (
	marshalJSON = func(v any) ([]byte, error) { return json.MarshalIndent(v, "", "  ") }
	marshalYAML = yaml.Marshal
	writeFile   = os.WriteFile
)

// Default returns the configuration used when no file exists.
func Default() *domain.Config {
	return &domain.Config{
		Billing: domain.BillingConfig{
			Environment:       "production",
			RequestsPerSecond: 10,
			Burst:             5,
			TimeoutMillis:     30000,
		},
		Gateway: domain.GatewayConfig{Port: 8080},
		Retry: domain.RetryConfig{
			MaxRetries:     3,
			InitialBackoff: 500,
			MaxBackoff:     30000,
			Multiplier:     2,
		},
		Infra:   domain.InfraConfig{LogFormat: "text", LogLevel: "info"},
		Tools:   domain.ToolsConfig{Disabled: []string{}, Encoding: "cl100k_base"},
		Journal: domain.JournalConfig{URL: "file:billtool.db"},
	}
}

// DefaultPath returns $BILLTOOL_CONFIG, the first candidate file that exists
// in dir, or billtool.json in dir.
func DefaultPath(dir string) string {
	if p := os.Getenv(EnvConfigPath); p != "" {
		return filepath.Clean(p)
	}
	for _, name := range candidates {
		p := filepath.Join(dir, name)
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return filepath.Join(dir, "billtool.json")
}

func isYAML(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return ext == ".yaml" || ext == ".yml"
}

func encode(path string, cfg *domain.Config) ([]byte, error) {
	if isYAML(path) {
		return marshalYAML(cfg)
	}
	return marshalJSON(cfg)
}

// WriteDefault writes Default() to path, as YAML for .yaml/.yml and JSON
// otherwise. Parent directories are not created.
func WriteDefault(path string) error {
	data, err := encode(path, Default())
	if err != nil {
		return err
	}
	return writeFile(path, data, 0600)
}

// Load reads path into a Config layered over Default(). Fields missing from
// the file keep their defaults.
func Load(path string) (*domain.Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config load: %w", err)
	}
	c := Default()
	if isYAML(path) {
		err = yaml.Unmarshal(data, c)
	} else {
		err = json.Unmarshal(data, c)
	}
	if err != nil {
		return nil, fmt.Errorf("config parse %s: %w", filepath.Base(path), err)
	}
	CleanPaths(c)
	return c, nil
}

// LoadOrDefault is Load, except a missing file yields Default().
func LoadOrDefault(path string) (*domain.Config, error) {
	c, err := Load(path)
	if errors.Is(err, fs.ErrNotExist) {
		return Default(), nil
	}
	return c, err
}

// CleanPaths cleans the journal file path to prevent traversal tricks.
// Remote URLs are left as they are.
func CleanPaths(cfg *domain.Config) {
	if cfg == nil {
		return
	}
	u := cfg.Journal.URL
	if strings.HasPrefix(u, "file:") && !strings.HasPrefix(u, "file::memory:") {
		path, query, _ := strings.Cut(strings.TrimPrefix(u, "file:"), "?")
		cfg.Journal.URL = "file:" + filepath.Clean(path)
		if query != "" {
			cfg.Journal.URL += "?" + query
		}
	}
}

// LoadEnvFiles loads .env style files into the process environment. Missing
// files are skipped; existing variables are not overwritten.
func LoadEnvFiles(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		if _, err := os.Stat(p); err != nil {
			continue
		}
		if err := godotenv.Load(p); err != nil {
			return fmt.Errorf("load %s: %w", p, err)
		}
	}
	return nil
}

// ApplyEnv overrides cfg from environment variables read through getenv.
func ApplyEnv(cfg *domain.Config, getenv func(string) string) {
	if cfg == nil {
		return
	}
	if getenv == nil {
		getenv = os.Getenv
	}
	if v := getenv(EnvAPIKey); v != "" {
		cfg.Billing.APIKey = v
	}
	if v := getenv(EnvEnvironment); v != "" {
		cfg.Billing.Environment = v
	}
	if v := getenv(EnvBaseURL); v != "" {
		cfg.Billing.BaseURL = v
	}
	if v := getenv(EnvLogLevel); v != "" {
		cfg.Infra.LogLevel = v
	}
}

// Save writes cfg to path in the format its extension selects, creating
// parent directories. The API key is never written; keep it in the
// environment or the secrets store.
func Save(path string, cfg *domain.Config) error {
	if cfg == nil {
		return fmt.Errorf("config save: nil config")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("config save mkdir: %w", err)
	}
	out := *cfg
	out.Billing.APIKey = ""
	data, err := encode(path, &out)
	if err != nil {
		return fmt.Errorf("config save marshal: %w", err)
	}
	if err := writeFile(path, data, 0600); err != nil {
		return fmt.Errorf("config save write: %w", err)
	}
	return nil
}
