package prefs

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

// =============================================================================
// Load
// =============================================================================

func TestManager_Load_WhenFileDoesNotExist_ShouldReturnZeroConfig(t *testing.T) {
	m := NewManager(filepath.Join(t.TempDir(), "prefs.json"))
	if err := m.Load(); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if *m.Config() != (Config{}) {
		t.Errorf("expected zero config, got %+v", *m.Config())
	}
}

func TestManager_Load_WhenFileExistsWithValidJSON_ShouldReturnParsedConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "prefs.json")
	if err := os.WriteFile(path, []byte(`{"environment":"sandbox","color":"never"}`), 0644); err != nil {
		t.Fatal(err)
	}
	m := NewManager(path)
	if err := m.Load(); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if c := m.Config(); c.Environment != "sandbox" || c.Color != "never" || c.Output != "" {
		t.Errorf("unexpected config %+v", *c)
	}
}

func TestManager_Load_WhenFileIsInvalidJSON_ShouldReturnError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "prefs.json")
	if err := os.WriteFile(path, []byte(`{`), 0644); err != nil {
		t.Fatal(err)
	}
	if err := NewManager(path).Load(); err == nil {
		t.Fatal("expected parse error")
	}
}

// =============================================================================
// Get / SetPreference
// =============================================================================

func TestManager_SetPreference_ShouldNormaliseAndPersist(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sub", "prefs.json")
	m := NewManager(path)
	if err := m.SetPreference("Environment", " Sandbox "); err != nil {
		t.Fatalf("SetPreference: %v", err)
	}
	if err := m.SetPreference("output", "json"); err != nil {
		t.Fatalf("SetPreference: %v", err)
	}

	m2 := NewManager(path)
	if err := m2.Load(); err != nil {
		t.Fatal(err)
	}
	if got, _ := m2.Get("environment"); got != "sandbox" {
		t.Errorf("environment after reload = %q", got)
	}
	if got, _ := m2.Get("OUTPUT"); got != "json" {
		t.Errorf("output after reload = %q", got)
	}
}

func TestManager_SetPreference_WhenEmpty_ShouldClear(t *testing.T) {
	m := NewManager(filepath.Join(t.TempDir(), "prefs.json"))
	_ = m.SetPreference("color", "always")
	if err := m.SetPreference("color", ""); err != nil {
		t.Fatal(err)
	}
	if m.Config().Color != "" {
		t.Errorf("color should be cleared, got %q", m.Config().Color)
	}
}

func TestManager_SetPreference_WhenKeyOrValueInvalid_ShouldReturnError(t *testing.T) {
	m := NewManager(filepath.Join(t.TempDir(), "prefs.json"))
	if err := m.SetPreference("theme", "dark"); !errors.Is(err, ErrUnknownKey) {
		t.Errorf("want ErrUnknownKey, got %v", err)
	}
	if err := m.SetPreference("environment", "staging"); !errors.Is(err, ErrInvalidValue) {
		t.Errorf("want ErrInvalidValue, got %v", err)
	}
	if _, err := m.Get("nope"); !errors.Is(err, ErrUnknownKey) {
		t.Errorf("Get: want ErrUnknownKey, got %v", err)
	}
}

func TestManager_Config_WhenConfigIsNil_ShouldAllocateAndReturn(t *testing.T) {
	m := &Manager{}
	if m.Config() == nil {
		t.Fatal("Config() must never return nil")
	}
}

// =============================================================================
// save error paths
// =============================================================================

func TestManager_save_WhenParentIsFile_ShouldReturnError(t *testing.T) {
	dir := t.TempDir()
	blocker := filepath.Join(dir, "billtool")
	if err := os.WriteFile(blocker, []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}
	m := NewManager(filepath.Join(blocker, "prefs.json"))
	if err := m.SetPreference("color", "never"); err == nil {
		t.Fatal("expected mkdir error")
	}
}

func TestManager_save_WhenMarshalIndentFails_ShouldReturnError(t *testing.T) {
	orig := prefsMarshalIndent
	prefsMarshalIndent = func(any, string, string) ([]byte, error) { return nil, errors.New("marshal") }
	defer func() { prefsMarshalIndent = orig }()
	m := NewManager(filepath.Join(t.TempDir(), "prefs.json"))
	if err := m.SetPreference("color", "never"); err == nil {
		t.Fatal("expected marshal error")
	}
}

func TestManager_save_WhenWriteFileFails_ShouldReturnError(t *testing.T) {
	orig := prefsWriteFile
	prefsWriteFile = func(string, []byte, os.FileMode) error { return errors.New("disk full") }
	defer func() { prefsWriteFile = orig }()
	m := NewManager(filepath.Join(t.TempDir(), "prefs.json"))
	if err := m.SetPreference("color", "never"); err == nil {
		t.Fatal("expected write error")
	}
}

// =============================================================================
// ConfigPath
// =============================================================================

func TestConfigPath_ShouldReturnFileUnderUserConfigAndCreateDir(t *testing.T) {
	dir := t.TempDir()
	orig := userConfigDir
	userConfigDir = func() (string, error) { return dir, nil }
	defer func() { userConfigDir = orig }()

	path, err := ConfigPath()
	if err != nil {
		t.Fatal(err)
	}
	if path != filepath.Join(dir, "billtool", "prefs.json") {
		t.Errorf("path = %q", path)
	}
	if info, err := os.Stat(filepath.Join(dir, "billtool")); err != nil || !info.IsDir() {
		t.Error("billtool dir should be created")
	}
}

func TestConfigPath_WhenUserConfigDirFails_ShouldReturnError(t *testing.T) {
	orig := userConfigDir
	userConfigDir = func() (string, error) { return "", errors.New("no home") }
	defer func() { userConfigDir = orig }()
	if _, err := ConfigPath(); err == nil {
		t.Fatal("expected error")
	}
}
