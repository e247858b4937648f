package prefs

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
)

// Config holds per-user CLI preferences. They apply when neither a flag nor
// the project config says otherwise.
type Config struct {
	Environment string `json:"environment,omitempty"` // "production" | "sandbox"
	Color       string `json:"color,omitempty"`       // "auto" | "always" | "never"
	Output      string `json:"output,omitempty"`      // "text" | "json"
}

// Keys lists the supported preference keys.
var Keys = []string{"environment", "color", "output"}

var allowed = map[string][]string{
	"environment": {"production", "sandbox"},
	"color":       {"auto", "always", "never"},
	"output":      {"text", "json"},
}

var (
	// ErrUnknownKey is returned for an unsupported preference key.
	ErrUnknownKey = errors.New("unknown preference key")
	// ErrInvalidValue is returned when a value is not allowed for its key.
	ErrInvalidValue = errors.New("invalid preference value")
)

// Manager loads and saves user preferences from a JSON file.
type Manager struct {
	path   string
	config *Config
}

// NewManager returns a manager that reads/writes the given path.
func NewManager(path string) *Manager {
	return &Manager{path: path, config: &Config{}}
}

// Load reads the file. A missing file leaves zero values and is not an error.
func (m *Manager) Load() error {
	data, err := os.ReadFile(m.path)
	if err != nil {
		if os.IsNotExist(err) {
			m.config = &Config{}
			return nil
		}
		return fmt.Errorf("prefs load: %w", err)
	}
	var c Config
	if err := json.Unmarshal(data, &c); err != nil {
		return fmt.Errorf("prefs parse: %w", err)
	}
	m.config = &c
	return nil
}

// Config returns the current in-memory config (never nil).
func (m *Manager) Config() *Config {
	if m.config == nil {
		m.config = &Config{}
	}
	return m.config
}

func (m *Manager) field(key string) (*string, error) {
	c := m.Config()
	switch strings.ToLower(key) {
	case "environment":
		return &c.Environment, nil
	case "color":
		return &c.Color, nil
	case "output":
		return &c.Output, nil
	}
	return nil, fmt.Errorf("%w: %q (want one of %s)", ErrUnknownKey, key, strings.Join(Keys, ", "))
}

// Get returns the value for key; "" means unset.
func (m *Manager) Get(key string) (string, error) {
	f, err := m.field(key)
	if err != nil {
		return "", err
	}
	return *f, nil
}

// SetPreference validates and stores value, then writes the file. An empty
// value clears the key.
func (m *Manager) SetPreference(key, value string) error {
	f, err := m.field(key)
	if err != nil {
		return err
	}
	value = strings.ToLower(strings.TrimSpace(value))
	if ok := allowed[strings.ToLower(key)]; value != "" && !slices.Contains(ok, value) {
		return fmt.Errorf("%w for %s: %q (want one of %s)", ErrInvalidValue, key, value, strings.Join(ok, ", "))
	}
	*f = value
	return m.save()
}

func (m *Manager) save() error {
	if err := prefsMkdirAll(filepath.Dir(m.path), 0755); err != nil {
		return fmt.Errorf("prefs save mkdir: %w", err)
	}
	data, err := prefsMarshalIndent(m.config, "", "  ")
	if err != nil {
		return fmt.Errorf("prefs save marshal: %w", err)
	}
	if err := prefsWriteFile(m.path, data, 0644); err != nil {
		return fmt.Errorf("prefs save write: %w", err)
	}
	return nil
}

// ConfigPath returns UserConfigDir()/billtool/prefs.json, creating the
// directory if missing.
func ConfigPath() (string, error) {
	base, err := userConfigDir()
	if err != nil {
		return "", fmt.Errorf("prefs config path: %w", err)
	}
	dir := filepath.Join(base, "billtool")
	if err := prefsMkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("prefs config path mkdir: %w", err)
	}
	return filepath.Join(dir, "prefs.json"), nil
}

// Hooks for tests to force error paths.
var (
	prefsMarshalIndent = json.MarshalIndent
	prefsWriteFile     = os.WriteFile
	userConfigDir      = os.UserConfigDir
	prefsMkdirAll      = os.MkdirAll
)
