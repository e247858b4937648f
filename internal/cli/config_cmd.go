package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"billtool/internal/config"
)

// ConfigOptions holds options for the config command.
type ConfigOptions struct {
	File   string // config file; empty means config.DefaultPath(".")
	Action string // "get", "set", or "unset"
	Path   string // dot notation, e.g. "gateway.port"
	Value  string // value to set (for set action)
}

// RunConfig runs the config subcommand: non-interactive get/set/unset on the
// raw config file. Edits that leave the file invalid are rolled back.
// Returns exit code (0 for success, 1 for error).
func RunConfig(opts ConfigOptions, stdout, stderr io.Writer) int {
	configPath := opts.File
	if configPath == "" {
		configPath = config.DefaultPath(".")
	}

	original, err := osReadFile(configPath)
	if errors.Is(err, fs.ErrNotExist) {
		fmt.Fprintf(stderr, "Error: no configuration found at %s\n", configPath)
		fmt.Fprintf(stderr, "Run 'billtool check --fix' first to create one.\n")
		return 1
	}
	if err != nil {
		fmt.Fprintf(stderr, "Error: failed to read config: %v\n", err)
		return 1
	}

	cfg, err := decodeConfigMap(configPath, original)
	if err != nil {
		fmt.Fprintf(stderr, "Error: failed to parse config: %v\n", err)
		return 1
	}

	parts := strings.Split(opts.Path, ".")
	switch opts.Action {
	case "get":
		return runConfigGet(cfg, opts.Path, stdout, stderr)
	case "set":
		if err := setValueAtPathFn(cfg, parts, parseValue(opts.Value)); err != nil {
			fmt.Fprintf(stderr, "Error: %v\n", err)
			return 1
		}
	case "unset":
		if err := unsetValueAtPath(cfg, parts); err != nil {
			fmt.Fprintf(stderr, "Error: %v\n", err)
			return 1
		}
	default:
		fmt.Fprintf(stderr, "Error: unknown action %q (use 'get', 'set', or 'unset')\n", opts.Action)
		return 1
	}

	if err := saveConfig(configPath, cfg); err != nil {
		fmt.Fprintf(stderr, "Error: failed to save config: %v\n", err)
		return 1
	}
	if err := validateFile(configPath); err != nil {
		_ = osWriteFile(configPath, original, 0600)
		fmt.Fprintf(stderr, "Error: change rejected: %v\n", err)
		return 1
	}
	fmt.Fprintf(stdout, "ok\n")
	return 0
}

func validateFile(path string) error {
	cfg, err := configLoad(path)
	if err != nil {
		return err
	}
	return config.Validate(cfg)
}

func isYAMLPath(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return ext == ".yaml" || ext == ".yml"
}

func decodeConfigMap(path string, data []byte) (map[string]interface{}, error) {
	cfg := map[string]interface{}{}
	var err error
	if isYAMLPath(path) {
		err = yaml.Unmarshal(data, &cfg)
	} else {
		err = json.Unmarshal(data, &cfg)
	}
	if err != nil {
		return nil, err
	}
	return cfg, nil
}

// parseValue reads value as an integer, float or bool, otherwise a string.
func parseValue(value string) interface{} {
	if intVal, err := strconv.ParseInt(value, 10, 64); err == nil {
		return intVal
	}
	if floatVal, err := strconv.ParseFloat(value, 64); err == nil {
		return floatVal
	}
	if boolVal, err := strconv.ParseBool(value); err == nil {
		return boolVal
	}
	return value
}

// runConfigGet retrieves a value from the config using dot notation path.
func runConfigGet(cfg map[string]interface{}, path string, stdout, stderr io.Writer) int {
	value := getValueAtPath(cfg, strings.Split(path, "."))
	if value == nil {
		fmt.Fprintf(stderr, "Error: path %q not found in config\n", path)
		return 1
	}

	switch v := value.(type) {
	case string:
		fmt.Fprintln(stdout, v)
	case float64:
		if v == float64(int64(v)) {
			fmt.Fprintf(stdout, "%d\n", int64(v))
		} else {
			fmt.Fprintf(stdout, "%g\n", v)
		}
	case int, int64, bool:
		fmt.Fprintf(stdout, "%v\n", v)
	default:
		jsonBytes, _ := json.Marshal(v)
		fmt.Fprintln(stdout, string(jsonBytes))
	}
	return 0
}

// getValueAtPath retrieves a value from a nested map using a path.
func getValueAtPath(data map[string]interface{}, path []string) interface{} {
	if len(path) == 0 {
		return nil
	}
	value, exists := data[path[0]]
	if !exists {
		return nil
	}
	if len(path) == 1 {
		return value
	}
	nextMap, ok := value.(map[string]interface{})
	if !ok {
		return nil
	}
	return getValueAtPath(nextMap, path[1:])
}

// setValueAtPath sets a value in a nested map using a path, creating
// intermediate objects as needed.
func setValueAtPath(data map[string]interface{}, path []string, value interface{}) error {
	if len(path) == 0 || path[0] == "" {
		return fmt.Errorf("empty path")
	}
	if len(path) == 1 {
		data[path[0]] = value
		return nil
	}
	nextMap, ok := data[path[0]].(map[string]interface{})
	if !ok {
		nextMap = make(map[string]interface{})
		data[path[0]] = nextMap
	}
	return setValueAtPath(nextMap, path[1:], value)
}

// unsetValueAtPath removes a value from a nested map using a path.
func unsetValueAtPath(data map[string]interface{}, path []string) error {
	if len(path) == 0 || path[0] == "" {
		return fmt.Errorf("empty path")
	}
	if len(path) == 1 {
		delete(data, path[0])
		return nil
	}
	nextValue, exists := data[path[0]]
	if !exists {
		return fmt.Errorf("path %q not found", strings.Join(path, "."))
	}
	nextMap, ok := nextValue.(map[string]interface{})
	if !ok {
		return fmt.Errorf("path %q is not an object", strings.Join(path[:len(path)-1], "."))
	}
	return unsetValueAtPath(nextMap, path[1:])
}

// saveConfig writes the config map back in the file's own format.
func saveConfig(path string, cfg map[string]interface{}) error {
	var (
		data []byte
		err  error
	)
	if isYAMLPath(path) {
		data, err = yaml.Marshal(cfg)
	} else {
		data, err = json.MarshalIndent(cfg, "", "  ")
	}
	if err != nil {
		return err
	}
	return osWriteFile(path, data, 0600)
}
