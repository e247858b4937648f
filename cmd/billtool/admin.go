package main

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/spf13/cobra"

	"billtool/internal/cli"
	"billtool/internal/config"
	"billtool/internal/prefs"
	"billtool/internal/secrets"
)

func newCheckCommand(g *globalOptions) *cobra.Command {
	var fix bool
	cmd := &cobra.Command{
		Use:   "check",
		Short: "Check config, credentials and the journal",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := config.LoadEnvFiles(g.envFiles...); err != nil {
				return err
			}
			code := cli.RunCheck(cli.CheckOptions{Path: g.configPath, Fix: fix}, cmd.OutOrStdout(), cmd.ErrOrStderr())
			if code != 0 {
				return exitCodeErr(code)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&fix, "fix", false, "write a default config and create the journal directory when missing")
	return cmd
}

func newConfigCommand(g *globalOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Read or edit config values by dotted path (e.g. gateway.port)",
	}
	run := func(action string) func(*cobra.Command, []string) error {
		return func(cmd *cobra.Command, args []string) error {
			opts := cli.ConfigOptions{File: g.configPath, Action: action, Path: args[0]}
			if len(args) > 1 {
				opts.Value = args[1]
			}
			if code := cli.RunConfig(opts, cmd.OutOrStdout(), cmd.ErrOrStderr()); code != 0 {
				return exitCodeErr(code)
			}
			return nil
		}
	}
	cmd.AddCommand(
		&cobra.Command{Use: "get <path>", Short: "Print a config value", Args: cobra.ExactArgs(1), RunE: run("get")},
		&cobra.Command{Use: "set <path> <value>", Short: "Set a config value", Args: cobra.ExactArgs(2), RunE: run("set")},
		&cobra.Command{Use: "unset <path>", Short: "Remove a config value", Args: cobra.ExactArgs(1), RunE: run("unset")},
	)
	return cmd
}

// =============================================================================
// secrets
// =============================================================================

func checkSecretName(name string) error {
	if slices.Contains(secrets.Known, name) {
		return nil
	}
	return fmt.Errorf("unknown secret %q (known: %s)", name, strings.Join(secrets.Known, ", "))
}

func newSecretsCommand() *cobra.Command {
	cmd := &cobra.Command{Use: "secrets", Short: "Store or retrieve API keys and tokens (encrypted, not in config)"}
	cmd.AddCommand(
		&cobra.Command{Use: "set <name> <value>", Short: "Store a secret by name", Args: cobra.ExactArgs(2), RunE: runSecretsSet},
		&cobra.Command{Use: "get <name>", Short: "Retrieve a secret by name", Args: cobra.ExactArgs(1), RunE: runSecretsGet},
		&cobra.Command{Use: "delete <name>", Short: "Remove a secret by name", Args: cobra.ExactArgs(1), RunE: runSecretsDelete},
	)
	return cmd
}

func runSecretsSet(cmd *cobra.Command, args []string) error {
	if err := checkSecretName(args[0]); err != nil {
		return err
	}
	m, err := secretsManager()
	if err != nil {
		return err
	}
	if err := m.Set(args[0], args[1]); err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), "ok")
	return nil
}

func runSecretsGet(cmd *cobra.Command, args []string) error {
	if err := checkSecretName(args[0]); err != nil {
		return err
	}
	m, err := secretsManager()
	if err != nil {
		return err
	}
	value, err := m.Get(args[0])
	if err != nil {
		if errors.Is(err, secrets.ErrNotFound) {
			return fmt.Errorf("secret %q not found", args[0])
		}
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), value)
	return nil
}

func runSecretsDelete(cmd *cobra.Command, args []string) error {
	if err := checkSecretName(args[0]); err != nil {
		return err
	}
	m, err := secretsManager()
	if err != nil {
		return err
	}
	return m.Delete(args[0])
}

// =============================================================================
// prefs
// =============================================================================

func openPrefs() (*prefs.Manager, error) {
	path, err := prefsPath()
	if err != nil {
		return nil, err
	}
	m := prefs.NewManager(path)
	if err := m.Load(); err != nil {
		return nil, err
	}
	return m, nil
}

func newPrefsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "prefs",
		Short: "Get or set user preferences (" + strings.Join(prefs.Keys, ", ") + ")",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "get <key>",
		Short: "Get a preference value",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := openPrefs()
			if err != nil {
				return err
			}
			v, err := m.Get(args[0])
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), v)
			return nil
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "set <key> <value>",
		Short: "Set a preference value; an empty value clears it",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := openPrefs()
			if err != nil {
				return err
			}
			if err := m.SetPreference(args[0], args[1]); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "ok")
			return nil
		},
	})
	return cmd
}
