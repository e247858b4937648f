package config

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"billtool/internal/billing"
	"billtool/internal/domain"
	"billtool/internal/tooling"
)

// ErrUnknownTool is returned when a tool name is not in the catalogue.
var ErrUnknownTool = errors.New("unknown tool")

// DisableTool adds name to cfg.Tools.Disabled if it is a known tool and not
// already there.
func DisableTool(cfg *domain.Config, name string) error {
	if cfg == nil {
		return nil
	}
	name = strings.TrimSpace(name)
	if !tooling.Name(name).Known() {
		return fmt.Errorf("%w: %q", ErrUnknownTool, name)
	}
	if slices.Contains(cfg.Tools.Disabled, name) {
		return nil
	}
	cfg.Tools.Disabled = append(cfg.Tools.Disabled, name)
	slices.Sort(cfg.Tools.Disabled)
	return nil
}

// EnableTool removes name from cfg.Tools.Disabled.
func EnableTool(cfg *domain.Config, name string) {
	if cfg == nil || len(cfg.Tools.Disabled) == 0 {
		return
	}
	name = strings.TrimSpace(name)
	cfg.Tools.Disabled = slices.DeleteFunc(cfg.Tools.Disabled, func(n string) bool { return n == name })
}

// Validate checks cfg and returns every problem found, joined.
func Validate(cfg *domain.Config) error {
	if cfg == nil {
		return errors.New("config: nil")
	}
	var errs []error
	if cfg.Billing.BaseURL == "" {
		if _, err := billing.BaseURLFor(cfg.Billing.Environment); err != nil {
			errs = append(errs, err)
		}
	}
	if cfg.Billing.RequestsPerSecond < 0 {
		errs = append(errs, fmt.Errorf("billing.requestsPerSecond must be >= 0, got %v", cfg.Billing.RequestsPerSecond))
	}
	if p := cfg.Gateway.Port; p < 0 || p > 65535 {
		errs = append(errs, fmt.Errorf("gateway.port out of range: %d", p))
	}
	switch strings.ToLower(cfg.Infra.LogFormat) {
	case "", "text", "json":
	default:
		errs = append(errs, fmt.Errorf("infra.logFormat must be text or json, got %q", cfg.Infra.LogFormat))
	}
	if cfg.Tools.MaxResponseTokens < 0 {
		errs = append(errs, fmt.Errorf("tools.maxResponseTokens must be >= 0"))
	}
	for _, n := range cfg.Tools.Disabled {
		if !tooling.Name(n).Known() {
			errs = append(errs, fmt.Errorf("tools.disabled: %w: %q", ErrUnknownTool, n))
		}
	}
	seen := map[string]bool{}
	for i, j := range cfg.Jobs {
		switch {
		case j.ID == "":
			errs = append(errs, fmt.Errorf("jobs[%d]: id is required", i))
		case seen[j.ID]:
			errs = append(errs, fmt.Errorf("jobs[%d]: duplicate id %q", i, j.ID))
		}
		seen[j.ID] = true
		if !tooling.Name(j.Tool).Known() {
			errs = append(errs, fmt.Errorf("jobs[%d]: %w: %q", i, ErrUnknownTool, j.Tool))
		} else if slices.Contains(cfg.Tools.Disabled, j.Tool) {
			errs = append(errs, fmt.Errorf("jobs[%d]: tool %q is disabled", i, j.Tool))
		}
	}
	return errors.Join(errs...)
}
