package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	qrterminal "github.com/mdp/qrterminal/v3"
	"github.com/spf13/cobra"
	"github.com/tidwall/gjson"

	"billtool/internal/cli"
	"billtool/internal/domain"
	"billtool/internal/journal"
	"billtool/internal/scheduler"
	"billtool/internal/tooling"
)

// pretty reports whether listings should be decorated: --plain and --json
// win, then the user's output preference.
func pretty(a *app, plain bool) bool {
	return !plain && a.prefs.Output != "json"
}

func wantJSON(a *app, flag bool) bool {
	return flag || a.prefs.Output == "json"
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// =============================================================================
// tools
// =============================================================================

func newToolsCommand(g *globalOptions, bm buildMeta) *cobra.Command {
	var asJSON, plain bool
	var domainFilter string
	cmd := &cobra.Command{
		Use:   "tools",
		Short: "List the registered tools",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context(), *g, bm.Version, cmd.ErrOrStderr(), false)
			if err != nil {
				return err
			}
			defer a.Close()

			defs := a.dispatcher.Definitions()
			if domainFilter != "" {
				kept := defs[:0]
				for _, d := range defs {
					if tooling.Name(d.Name).Domain() == domainFilter {
						kept = append(kept, d)
					}
				}
				defs = kept
			}
			if wantJSON(a, asJSON) {
				return writeJSON(cmd.OutOrStdout(), map[string]any{"tools": defs})
			}
			fmt.Fprint(cmd.OutOrStdout(), cli.NewRenderer(pretty(a, plain)).Tools(defs))
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print definitions with their input schemas as JSON")
	cmd.Flags().BoolVar(&plain, "plain", false, "print one tool name per line")
	cmd.Flags().StringVar(&domainFilter, "domain", "", "only list tools of this domain (e.g. invoice)")
	return cmd
}

// =============================================================================
// call
// =============================================================================

// readArguments returns the JSON argument object from args[0], or stdin when it is "-".
func readArguments(in io.Reader, args []string) (json.RawMessage, error) {
	if len(args) == 0 {
		return nil, nil
	}
	raw := []byte(args[0])
	if args[0] == "-" {
		b, err := io.ReadAll(in)
		if err != nil {
			return nil, fmt.Errorf("read arguments: %w", err)
		}
		raw = b
	}
	raw = []byte(strings.TrimSpace(string(raw)))
	if len(raw) == 0 {
		return nil, nil
	}
	if !gjson.ValidBytes(raw) {
		return nil, errors.New("arguments are not valid JSON")
	}
	return raw, nil
}

func newCallCommand(g *globalOptions, bm buildMeta) *cobra.Command {
	var envelope bool
	cmd := &cobra.Command{
		Use:   "call <tool> [arguments-json|-]",
		Short: "Call one tool and print its response",
		Example: `  billtool call get_invoice '{"id": 42}'
  echo '{"filter": {"status": "past_due"}}' | billtool call list_invoices -`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, err := readArguments(cmd.InOrStdin(), args[1:])
			if err != nil {
				return err
			}
			a, err := newApp(cmd.Context(), *g, bm.Version, cmd.ErrOrStderr(), true)
			if err != nil {
				return err
			}
			defer a.Close()
			client, err := a.client()
			if err != nil {
				return err
			}
			resp, err := a.dispatcher.HandleToolCall(cmd.Context(), args[0], client, raw)
			if err != nil {
				return err
			}
			if envelope {
				return writeJSON(cmd.OutOrStdout(), resp)
			}
			fmt.Fprintln(cmd.OutOrStdout(), resp.Text())
			return nil
		},
	}
	cmd.Flags().BoolVar(&envelope, "envelope", false, "print the full {\"content\": [...]} response")
	return cmd
}

// =============================================================================
// paylink-qr
// =============================================================================

// renderQR draws content as a QR code; tests swap it to skip terminal art.
var renderQR = func(w io.Writer, content string, half bool) {
	if half {
		qrterminal.GenerateHalfBlock(content, qrterminal.L, w)
		return
	}
	qrterminal.GenerateWithConfig(content, qrterminal.Config{
		Level:     qrterminal.M,
		Writer:    w,
		BlackChar: qrterminal.BLACK,
		WhiteChar: qrterminal.WHITE,
		QuietZone: 1,
	})
}

func newPaylinkQRCommand(g *globalOptions, bm buildMeta) *cobra.Command {
	var half bool
	cmd := &cobra.Command{
		Use:   "paylink-qr <payment-link-id>",
		Short: "Show a payment link as a QR code",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context(), *g, bm.Version, cmd.ErrOrStderr(), true)
			if err != nil {
				return err
			}
			defer a.Close()
			client, err := a.client()
			if err != nil {
				return err
			}
			idArgs, err := json.Marshal(map[string]string{"id": args[0]})
			if err != nil {
				return err
			}
			resp, err := a.dispatcher.HandleToolCall(cmd.Context(), string(tooling.GetPaymentLink), client, idArgs)
			if err != nil {
				return err
			}
			link := paymentLinkURL(resp.Text())
			if link == "" {
				return fmt.Errorf("payment link %s has no url", args[0])
			}
			renderQR(cmd.OutOrStdout(), link, half)
			fmt.Fprintln(cmd.OutOrStdout(), link)
			return nil
		},
	}
	cmd.Flags().BoolVar(&half, "half", false, "use half-block characters for a smaller code")
	return cmd
}

// paymentLinkURL finds the link url in a get_payment_link response. The
// response is either the raw object or formatted text holding it.
func paymentLinkURL(text string) string {
	if gjson.Valid(text) {
		return gjson.Get(text, "url").String()
	}
	if i := strings.IndexByte(text, '{'); i >= 0 && gjson.Valid(text[i:]) {
		return gjson.Get(text[i:], "url").String()
	}
	return ""
}

// =============================================================================
// journal
// =============================================================================

func requireJournal(a *app) error {
	if a.journal == nil {
		return errors.New("journal disabled: set journal.url in the config")
	}
	return nil
}

func newJournalCommand(g *globalOptions, bm buildMeta) *cobra.Command {
	var (
		limit   int
		tool    string
		failed  bool
		asJSON  bool
		summary bool
		since   time.Duration
	)
	cmd := &cobra.Command{
		Use:   "journal",
		Short: "Show recorded tool calls",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context(), *g, bm.Version, cmd.ErrOrStderr(), true)
			if err != nil {
				return err
			}
			defer a.Close()
			if err := requireJournal(a); err != nil {
				return err
			}
			var from time.Time
			if since > 0 {
				from = time.Now().Add(-since)
			}
			out := cmd.OutOrStdout()

			if summary {
				rows, err := a.journal.Summary(cmd.Context(), from)
				if err != nil {
					return err
				}
				if wantJSON(a, asJSON) {
					return writeJSON(out, map[string]any{"summary": rows})
				}
				tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
				fmt.Fprintln(tw, "TOOL\tCALLS\tFAILURES\tAVG MS")
				for _, r := range rows {
					fmt.Fprintf(tw, "%s\t%d\t%d\t%.0f\n", r.Tool, r.Calls, r.Failures, r.AvgDurationMS)
				}
				return tw.Flush()
			}

			records, err := a.journal.List(cmd.Context(), journal.Filter{Tool: tool, Since: from, Limit: limit})
			if err != nil {
				return err
			}
			if failed {
				kept := records[:0]
				for _, r := range records {
					if r.Outcome != domain.OutcomeOK {
						kept = append(kept, r)
					}
				}
				records = kept
			}
			if wantJSON(a, asJSON) {
				return writeJSON(out, map[string]any{"calls": records})
			}
			fmt.Fprint(out, cli.NewRenderer(pretty(a, false)).Calls(records))
			return nil
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 50, "maximum number of calls to show")
	cmd.Flags().StringVar(&tool, "tool", "", "only show calls of this tool")
	cmd.Flags().BoolVar(&failed, "failed", false, "only show calls that did not succeed")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print as JSON")
	cmd.Flags().BoolVar(&summary, "summary", false, "aggregate calls per tool")
	cmd.Flags().DurationVar(&since, "since", 0, "only consider calls newer than this (e.g. 24h)")
	cmd.AddCommand(newJournalPruneCommand(g, bm))
	return cmd
}

func newJournalPruneCommand(g *globalOptions, bm buildMeta) *cobra.Command {
	var olderThan time.Duration
	cmd := &cobra.Command{
		Use:   "prune",
		Short: "Delete old journal entries",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if olderThan <= 0 {
				return errors.New("--older-than must be positive")
			}
			a, err := newApp(cmd.Context(), *g, bm.Version, cmd.ErrOrStderr(), true)
			if err != nil {
				return err
			}
			defer a.Close()
			if err := requireJournal(a); err != nil {
				return err
			}
			n, err := a.journal.Prune(cmd.Context(), time.Now().Add(-olderThan))
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Pruned %d entries\n", n)
			return nil
		},
	}
	cmd.Flags().DurationVar(&olderThan, "older-than", 30*24*time.Hour, "delete entries older than this")
	return cmd
}

// =============================================================================
// jobs
// =============================================================================

func newJobsCommand(g *globalOptions, bm buildMeta) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "jobs",
		Short: "Inspect and run scheduled tool calls",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List configured jobs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context(), *g, bm.Version, cmd.ErrOrStderr(), false)
			if err != nil {
				return err
			}
			defer a.Close()
			jobs, err := scheduler.JobsFromConfig(a.cfg.Jobs)
			if err != nil {
				return err
			}
			if len(jobs) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No jobs configured")
				return nil
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tCRON\tTOOL\tNAME")
			for _, j := range jobs {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", j.ID, j.CronExpr, j.Tool, j.Name)
			}
			return tw.Flush()
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "run <job-id>",
		Short: "Run one job now, outside its schedule",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context(), *g, bm.Version, cmd.ErrOrStderr(), true)
			if err != nil {
				return err
			}
			defer a.Close()
			client, err := a.client()
			if err != nil {
				return err
			}
			jobs, err := scheduler.JobsFromConfig(a.cfg.Jobs)
			if err != nil {
				return err
			}
			runner := scheduler.NewToolRunner(a.dispatcher, client,
				scheduler.WithRunnerLogger(a.logger), scheduler.WithRunnerMetrics(a.metrics))
			defer runner.Close()
			sched := scheduler.NewScheduler(scheduler.NewRobfigCronEngine(schedulerLocation), runner.Run,
				scheduler.WithLogger(a.logger))
			defer sched.Stop()
			if _, err := sched.Sync(jobs); err != nil {
				return err
			}
			if err := sched.RunJob(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Job %s ran\n", args[0])
			return nil
		},
	})
	return cmd
}
