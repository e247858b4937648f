package cli

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"billtool/internal/config"
)

func writeDefaultAt(t *testing.T, name string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := config.WriteDefault(path); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestConfigCommand_WhenGet_ShouldReturnValue(t *testing.T) {
	for _, name := range []string{"billtool.json", "billtool.yaml"} {
		t.Run(name, func(t *testing.T) {
			path := writeDefaultAt(t, name)
			var out, errOut bytes.Buffer
			code := RunConfig(ConfigOptions{File: path, Action: "get", Path: "gateway.port"}, &out, &errOut)
			if code != 0 {
				t.Fatalf("want exit code 0, got %d. stderr: %s", code, errOut.String())
			}
			if got := strings.TrimSpace(out.String()); got != "8080" {
				t.Errorf("gateway.port: want '8080', got %q", got)
			}
		})
	}
}

func TestConfigCommand_WhenGetObject_ShouldPrintJSON(t *testing.T) {
	path := writeDefaultAt(t, "billtool.json")
	var out, errOut bytes.Buffer
	if code := RunConfig(ConfigOptions{File: path, Action: "get", Path: "retry"}, &out, &errOut); code != 0 {
		t.Fatalf("exit %d: %s", code, errOut.String())
	}
	if !strings.HasPrefix(out.String(), "{") || !strings.Contains(out.String(), `"maxRetries":3`) {
		t.Errorf("expected JSON object, got %q", out.String())
	}
}

func TestConfigCommand_WhenGetMissingPath_ShouldFail(t *testing.T) {
	path := writeDefaultAt(t, "billtool.json")
	var out, errOut bytes.Buffer
	if code := RunConfig(ConfigOptions{File: path, Action: "get", Path: "gateway.nope"}, &out, &errOut); code != 1 {
		t.Errorf("want exit code 1, got %d", code)
	}
	if !strings.Contains(errOut.String(), "not found") {
		t.Errorf("stderr = %q", errOut.String())
	}
}

func TestConfigCommand_WhenSet_ShouldPersistTypedValue(t *testing.T) {
	for _, name := range []string{"billtool.json", "billtool.yml"} {
		t.Run(name, func(t *testing.T) {
			path := writeDefaultAt(t, name)
			var out, errOut bytes.Buffer
			if code := RunConfig(ConfigOptions{File: path, Action: "set", Path: "gateway.port", Value: "9090"}, &out, &errOut); code != 0 {
				t.Fatalf("exit %d: %s", code, errOut.String())
			}
			cfg, err := config.Load(path)
			if err != nil {
				t.Fatal(err)
			}
			if cfg.Gateway.Port != 9090 {
				t.Errorf("port = %d, want 9090", cfg.Gateway.Port)
			}
			if cfg.Retry.MaxRetries != 3 {
				t.Error("unrelated settings should survive the rewrite")
			}
		})
	}
}

func TestConfigCommand_WhenSetMakesConfigInvalid_ShouldRollBack(t *testing.T) {
	path := writeDefaultAt(t, "billtool.json")
	before, _ := os.ReadFile(path)

	var out, errOut bytes.Buffer
	code := RunConfig(ConfigOptions{File: path, Action: "set", Path: "billing.environment", Value: "staging"}, &out, &errOut)
	if code != 1 {
		t.Fatalf("want exit code 1, got %d", code)
	}
	if !strings.Contains(errOut.String(), "change rejected") {
		t.Errorf("stderr = %q", errOut.String())
	}
	after, _ := os.ReadFile(path)
	if !bytes.Equal(before, after) {
		t.Error("file should be restored after a rejected change")
	}
}

func TestConfigCommand_WhenUnset_ShouldRemoveKey(t *testing.T) {
	path := writeDefaultAt(t, "billtool.json")
	var out, errOut bytes.Buffer
	if code := RunConfig(ConfigOptions{File: path, Action: "unset", Path: "journal.url"}, &out, &errOut); code != 0 {
		t.Fatalf("exit %d: %s", code, errOut.String())
	}
	data, _ := os.ReadFile(path)
	if strings.Contains(string(data), "billtool.db") {
		t.Errorf("journal.url should be gone:\n%s", data)
	}
}

func TestConfigCommand_WhenUnsetThroughScalar_ShouldFail(t *testing.T) {
	path := writeDefaultAt(t, "billtool.json")
	var out, errOut bytes.Buffer
	if code := RunConfig(ConfigOptions{File: path, Action: "unset", Path: "gateway.port.x"}, &out, &errOut); code != 1 {
		t.Errorf("want exit code 1, got %d", code)
	}
}

func TestConfigCommand_WhenFileMissing_ShouldSuggestCheckFix(t *testing.T) {
	var out, errOut bytes.Buffer
	code := RunConfig(ConfigOptions{File: filepath.Join(t.TempDir(), "billtool.json"), Action: "get", Path: "x"}, &out, &errOut)
	if code != 1 {
		t.Errorf("want exit code 1, got %d", code)
	}
	if !strings.Contains(errOut.String(), "check --fix") {
		t.Errorf("stderr = %q", errOut.String())
	}
}

func TestConfigCommand_WhenUnknownAction_ShouldFail(t *testing.T) {
	path := writeDefaultAt(t, "billtool.json")
	var out, errOut bytes.Buffer
	if code := RunConfig(ConfigOptions{File: path, Action: "frobnicate", Path: "x"}, &out, &errOut); code != 1 {
		t.Errorf("want exit code 1, got %d", code)
	}
}

func TestConfigCommand_WhenSetHookFails_ShouldFail(t *testing.T) {
	orig := setValueAtPathFn
	setValueAtPathFn = func(map[string]interface{}, []string, interface{}) error { return errors.New("boom") }
	defer func() { setValueAtPathFn = orig }()
	path := writeDefaultAt(t, "billtool.json")
	var out, errOut bytes.Buffer
	if code := RunConfig(ConfigOptions{File: path, Action: "set", Path: "a", Value: "b"}, &out, &errOut); code != 1 {
		t.Errorf("want exit code 1, got %d", code)
	}
}

func TestParseValue(t *testing.T) {
	tests := []struct {
		in   string
		want interface{}
	}{
		{"42", int64(42)},
		{"2.5", 2.5},
		{"true", true},
		{"sandbox", "sandbox"},
	}
	for _, tt := range tests {
		if got := parseValue(tt.in); got != tt.want {
			t.Errorf("parseValue(%q) = %#v, want %#v", tt.in, got, tt.want)
		}
	}
}

func TestSetValueAtPath_ShouldCreateIntermediateObjects(t *testing.T) {
	m := map[string]interface{}{"a": "scalar"}
	if err := setValueAtPath(m, []string{"a", "b", "c"}, 1); err != nil {
		t.Fatal(err)
	}
	if getValueAtPath(m, []string{"a", "b", "c"}) != 1 {
		t.Errorf("value not set: %#v", m)
	}
	if err := setValueAtPath(m, []string{""}, 1); err == nil {
		t.Error("expected empty path error")
	}
}
