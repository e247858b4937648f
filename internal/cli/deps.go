package cli

import (
	"os"

	"billtool/internal/config"
	"billtool/internal/secrets"
	"billtool/internal/tooling"
)

// Function variables for dependency injection in tests.
// Default values are the real implementations; tests may temporarily swap them.
var (
	osMkdirAll         = os.MkdirAll
	osReadFile         = os.ReadFile
	osWriteFile        = os.WriteFile
	configWriteDefault = config.WriteDefault
	configLoad         = config.Load
	defaultRegistry    = tooling.Default
	secretsManager     = secrets.DefaultManager
	setValueAtPathFn   = setValueAtPath
)
