//go:build !unix

package signals

import "os"

// Windows only delivers Interrupt.
var shutdownSignals = []os.Signal{os.Interrupt}
