// Package security holds process and file hardening checks.
package security

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
)

// ErrRunningAsRoot is returned when the process effective user ID is 0 (root).
var ErrRunningAsRoot = errors.New("refusing to run as root: run as a non-root user for security")

// ErrWorldReadable is returned when a file holding credentials can be read
// by group or others.
var ErrWorldReadable = errors.New("file is readable by group or others")

// effectiveUIDGetter is set by init in root_unix.go on Unix; otherwise defaultEUID (returns -1).
var effectiveUIDGetter func() int = defaultEUID

// defaultEUID returns -1 (not root); used when not on Unix so the default getter is testable.
func defaultEUID() int { return -1 }

// statFile is the stat used by RequirePrivateFile; tests replace it.
var statFile = os.Stat

// EffectiveUIDGetter returns the platform effective-UID getter for use with RequireNonRoot.
func EffectiveUIDGetter() func() int {
	return effectiveUIDGetter
}

// RequireNonRoot returns an error if the effective user ID from the given getter is 0 (root).
func RequireNonRoot(euidGetter func() int) error {
	if euidGetter == nil {
		return nil
	}
	if euidGetter() == 0 {
		return ErrRunningAsRoot
	}
	return nil
}

// RequirePrivateFile returns ErrWorldReadable when path has any group or
// other permission bits. A missing file is not an error.
func RequirePrivateFile(path string) error {
	info, err := statFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return err
	}
	if perm := info.Mode().Perm(); perm&0o077 != 0 {
		return fmt.Errorf("%s (mode %04o): %w", path, perm, ErrWorldReadable)
	}
	return nil
}
