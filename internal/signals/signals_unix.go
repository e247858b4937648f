//go:build unix

package signals

import (
	"os"
	"syscall"
)

// SIGTERM comes from systemd, Docker and MCP hosts closing the server.
var shutdownSignals = []os.Signal{os.Interrupt, syscall.SIGTERM}
