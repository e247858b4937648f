package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"runtime"
	"strings"

	"github.com/spf13/cobra"

	"billtool/internal/cli"
	"billtool/internal/security"
)

// buildMeta holds version and build metadata (injectable via ldflags).
type buildMeta struct {
	Version string
	GoOS    string
	GoArch  string
}

func newBuildMeta(version, goos, goarch string) buildMeta {
	if goos == "" {
		goos = runtime.GOOS
	}
	if goarch == "" {
		goarch = runtime.GOARCH
	}
	return buildMeta{Version: version, GoOS: goos, GoArch: goarch}
}

func (m buildMeta) String() string {
	return fmt.Sprintf("billtool %s %s/%s", m.Version, m.GoOS, m.GoArch)
}

func newRootCommand(bm buildMeta) *cobra.Command {
	g := &globalOptions{}
	root := &cobra.Command{
		Use:   "billtool",
		Short: "Billing API tools for MCP hosts, HTTP callers and cron",
		Long: "billtool exposes the billing REST API as named tools. With no subcommand it\n" +
			"serves them over MCP on stdin/stdout.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			mode := loadUserPrefs().Color
			if g.noColor {
				mode = "never"
			}
			cli.SetColorMode(mode)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			if showVersion, _ := cmd.Flags().GetBool("version"); showVersion {
				fmt.Fprintln(cmd.OutOrStdout(), bm.String())
				return nil
			}
			return runServe(cmd, *g, bm.Version)
		},
	}
	root.Flags().BoolP("version", "V", false, "print version and build metadata")
	pf := root.PersistentFlags()
	pf.StringVarP(&g.configPath, "config", "c", "", "config file (default $BILLTOOL_CONFIG or ./billtool.{yaml,yml,json})")
	pf.StringSliceVar(&g.envFiles, "env-file", []string{".env"}, "dotenv files to load; missing files are skipped")
	pf.StringVar(&g.logLevel, "log-level", "", "override infra.logLevel (debug, info, warn, error)")
	pf.BoolVar(&g.noColor, "no-color", false, "disable coloured output")

	root.AddCommand(
		newServeCommand(g, bm),
		newGatewayCommand(g, bm),
		newToolsCommand(g, bm),
		newCallCommand(g, bm),
		newPaylinkQRCommand(g, bm),
		newJournalCommand(g, bm),
		newJobsCommand(g, bm),
		newCheckCommand(g),
		newConfigCommand(g),
		newSecretsCommand(),
		newPrefsCommand(),
	)
	return root
}

func getVersion() string {
	if version != "" {
		return version
	}
	b, err := os.ReadFile("VERSION")
	if err != nil {
		return "dev"
	}
	return strings.TrimSpace(string(b))
}

// version is set at build time via ldflags for build metadata, e.g.:
//
//	go build -ldflags "-X main.version=1.0.8" -o billtool ./cmd/billtool
var version string

// exitCodeErr carries an exit code for the process. When returned from a command, runApp exits with that code.
type exitCodeErr int

func (e exitCodeErr) Error() string { return fmt.Sprintf("exit %d", int(e)) }
func (e exitCodeErr) ExitCode() int { return int(e) }

// stdout and stderr are the command streams; tests capture them.
var (
	stdout io.Writer = os.Stdout
	stderr io.Writer = os.Stderr
)

// runApp runs the root command with the given args and returns the exit code (0, 1, or 2).
func runApp(args []string) int {
	bm := newBuildMeta(version, "", "")
	if bm.Version == "" {
		bm.Version = getVersion()
	}
	root := newRootCommand(bm)
	root.SetArgs(args[1:])
	root.SetOut(stdout)
	root.SetErr(stderr)
	if err := root.Execute(); err != nil {
		if errors.Is(err, security.ErrRunningAsRoot) {
			fmt.Fprintln(stderr, err)
			return 2
		}
		var ec interface{ ExitCode() int }
		if errors.As(err, &ec) {
			return ec.ExitCode()
		}
		fmt.Fprintln(stderr, "Error:", err)
		return 1
	}
	return 0
}
