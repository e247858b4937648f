// Package banner prints the gateway startup banner.
package banner

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/fatih/color"
)

// StartupOpts allows tests to capture output.
// If nil, Startup writes to os.Stderr, since stdout may carry MCP frames.
type StartupOpts struct {
	Writer io.Writer
	Lines  []string // extra "key value" lines printed under the title
}

const bannerArt = `
 _     _ _ _ _              _
| |__ (_) | | |_ ___   ___ | |
| '_ \| | | | __/ _ \ / _ \| |
| |_) | | | | || (_) | (_) | |
|_.__/|_|_|_|\__\___/ \___/|_|
`

// Startup prints the banner, the version line and any extra lines.
func Startup(version string, opts *StartupOpts) {
	w := io.Writer(os.Stderr)
	var extra []string
	if opts != nil {
		if opts.Writer != nil {
			w = opts.Writer
		}
		extra = opts.Lines
	}
	for _, line := range splitLines(bannerArt) {
		fmt.Fprintln(w, line)
	}
	fmt.Fprintf(w, "%s  v%s\n", color.CyanString("  billing tools gateway"), version)
	for _, l := range extra {
		fmt.Fprintf(w, "  %s\n", l)
	}
	fmt.Fprintln(w)
}

func splitLines(s string) []string {
	var out []string
	for _, line := range strings.Split(s, "\n") {
		if line == "" && out == nil {
			continue
		}
		out = append(out, line)
	}
	for len(out) > 0 && out[len(out)-1] == "" {
		out = out[:len(out)-1]
	}
	return out
}
