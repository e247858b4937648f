// Package cli holds the non-interactive subcommands behind cmd/billtool and
// the terminal rendering they share.
package cli

import (
	"fmt"
	"strings"
	"time"

	"github.com/fatih/color"

	"billtool/internal/domain"
	"billtool/internal/tooling"
)

// SetColorMode applies a "auto" | "always" | "never" preference. Anything
// else, including "", keeps fatih/color's terminal detection.
func SetColorMode(mode string) {
	switch strings.ToLower(mode) {
	case "always":
		color.NoColor = false
	case "never":
		color.NoColor = true
	}
}

// Renderer formats tool and journal listings for the terminal.
type Renderer struct {
	pretty bool
}

// NewRenderer returns a renderer. pretty adds headings, colour and
// descriptions; otherwise output is one bare line per item.
func NewRenderer(pretty bool) *Renderer {
	return &Renderer{pretty: pretty}
}

// Tools lists definitions grouped by domain in catalogue order.
func (r *Renderer) Tools(defs []domain.ToolDefinition) string {
	if len(defs) == 0 {
		return "No tools registered\n"
	}
	var sb strings.Builder
	if !r.pretty {
		for _, d := range defs {
			sb.WriteString(d.Name + "\n")
		}
		return sb.String()
	}

	groups := map[string][]domain.ToolDefinition{}
	var order []string
	for _, d := range defs {
		dom := tooling.Name(d.Name).Domain()
		if _, ok := groups[dom]; !ok {
			order = append(order, dom)
		}
		groups[dom] = append(groups[dom], d)
	}
	for _, dom := range tooling.Domains() {
		list, ok := groups[dom]
		if !ok {
			continue
		}
		sb.WriteString(color.CyanString("%s (%d)\n", dom, len(list)))
		for _, d := range list {
			fmt.Fprintf(&sb, "  %s  %s\n", color.GreenString("%-34s", d.Name), color.HiBlackString(firstLine(d.Description)))
		}
		delete(groups, dom)
	}
	// Names outside the catalogue domains still get listed.
	for _, dom := range order {
		for _, d := range groups[dom] {
			fmt.Fprintf(&sb, "  %s  %s\n", color.YellowString("%-34s", d.Name), firstLine(d.Description))
		}
	}
	fmt.Fprintf(&sb, "%s\n", strings.Repeat("─", 60))
	fmt.Fprintf(&sb, "%d tools\n", len(defs))
	return sb.String()
}

// Calls formats journal entries, newest first as given.
func (r *Renderer) Calls(records []domain.CallRecord) string {
	if len(records) == 0 {
		return "No calls recorded\n"
	}
	var sb strings.Builder
	if r.pretty {
		sb.WriteString(color.CyanString("Recent tool calls\n"))
		sb.WriteString(strings.Repeat("─", 60) + "\n")
	}
	for _, rec := range records {
		ts := rec.StartedAt.Local().Format(time.DateTime)
		if !r.pretty {
			fmt.Fprintf(&sb, "%s\t%s\t%s\t%dms\t%s\n", ts, rec.Tool, rec.Outcome, rec.DurationMS, rec.Error)
			continue
		}
		status := color.GreenString("✓")
		if rec.Outcome != domain.OutcomeOK {
			status = color.RedString("✗")
		}
		fmt.Fprintf(&sb, "%s %s %s (%dms)", status, color.HiBlackString(ts), rec.Tool, rec.DurationMS)
		if rec.Error != "" {
			fmt.Fprintf(&sb, " %s", color.RedString("%s: %s", rec.Outcome, rec.Error))
		}
		sb.WriteString("\n")
	}
	return sb.String()
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
