package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"time"

	"billtool/internal/billing"
	"billtool/internal/config"
	"billtool/internal/dispatch"
	"billtool/internal/domain"
	"billtool/internal/journal"
	"billtool/internal/logging"
	"billtool/internal/metrics"
	"billtool/internal/prefs"
	"billtool/internal/retry"
	"billtool/internal/secrets"
	"billtool/internal/security"
	"billtool/internal/tokenizer"
	"billtool/internal/tooling"
)

// Function variables for dependency injection in tests.
var (
	secretsManager  = secrets.DefaultManager
	prefsPath       = prefs.ConfigPath
	defaultRegistry = tooling.Default
	openJournal     = func(ctx context.Context, url string) (*journal.Store, error) { return journal.Open(ctx, url) }
	// newBillingClient builds the real client; tests point it at httptest.
	newBillingClient = func(apiKey string, opts ...billing.Option) (tooling.Client, error) {
		return billing.New(apiKey, opts...)
	}
)

// globalOptions are the persistent root flags.
type globalOptions struct {
	configPath string
	envFiles   []string
	logLevel   string
	noColor    bool
}

// app is the wired process: config, logger, registry and dispatcher, plus
// the optional journal. The billing client is built on demand because only
// some commands talk to the API.
type app struct {
	cfg        *domain.Config
	cfgPath    string
	cfgFound   bool
	prefs      prefs.Config
	logger     *slog.Logger
	metrics    *metrics.Collector
	registry   *tooling.Registry
	dispatcher *dispatch.Dispatcher
	journal    *journal.Store
	version    string
}

// loadUserPrefs reads per-user preferences; failures leave them empty.
func loadUserPrefs() prefs.Config {
	path, err := prefsPath()
	if err != nil {
		return prefs.Config{}
	}
	m := prefs.NewManager(path)
	if err := m.Load(); err != nil {
		return prefs.Config{}
	}
	return *m.Config()
}

// loadConfig resolves the config the way every command sees it: .env files,
// then the config file (or defaults), then user prefs for a missing file,
// then environment variables and flags.
func loadConfig(g globalOptions, p prefs.Config) (*domain.Config, string, bool, error) {
	if err := config.LoadEnvFiles(g.envFiles...); err != nil {
		return nil, "", false, err
	}
	path := g.configPath
	if path == "" {
		path = config.DefaultPath(".")
	}
	found := true
	cfg, err := config.Load(path)
	if errors.Is(err, fs.ErrNotExist) {
		found = false
		cfg, err = config.Default(), nil
	}
	if err != nil {
		return nil, path, found, err
	}
	if !found && p.Environment != "" {
		cfg.Billing.Environment = p.Environment
	}
	config.ApplyEnv(cfg, os.Getenv)
	if g.logLevel != "" {
		cfg.Infra.LogLevel = g.logLevel
	}
	if err := config.Validate(cfg); err != nil {
		return nil, path, found, fmt.Errorf("invalid config %s:\n%w", path, err)
	}
	return cfg, path, found, nil
}

// newApp wires everything except the billing client. stderr receives logs.
// The journal is opened only when withJournal is set.
func newApp(ctx context.Context, g globalOptions, version string, stderr io.Writer, withJournal bool) (*app, error) {
	p := loadUserPrefs()
	cfg, path, found, err := loadConfig(g, p)
	if err != nil {
		return nil, err
	}
	logger := logging.New(cfg.Infra, stderr)

	if found && cfg.Billing.APIKey != "" {
		if err := security.RequirePrivateFile(path); err != nil {
			logger.Warn("config holds an API key but is not private; chmod 600 it or use the secrets store", "error", err)
		}
	}

	reg, err := defaultRegistry()
	if err != nil {
		return nil, err
	}
	if len(cfg.Tools.Disabled) > 0 {
		if reg, err = reg.Without(cfg.Tools.Disabled...); err != nil {
			return nil, err
		}
	}

	a := &app{
		cfg:      cfg,
		cfgPath:  path,
		cfgFound: found,
		prefs:    p,
		logger:   logger,
		metrics:  metrics.NewCollector("billtool"),
		registry: reg,
		version:  version,
	}

	opts := []dispatch.Option{dispatch.WithLogger(logger), dispatch.WithMetrics(a.metrics)}
	if withJournal && cfg.Journal.URL != "" {
		store, err := openJournal(ctx, a.journalURL())
		if err != nil {
			logger.Warn("journal disabled", "error", err)
		} else {
			a.journal = store
			opts = append(opts, dispatch.WithRecorder(store))
		}
	}
	if cfg.Tools.MaxResponseTokens > 0 {
		tok, err := tokenizer.NewTikToken(cfg.Tools.Encoding)
		if err != nil {
			return nil, fmt.Errorf("response budget: %w", err)
		}
		opts = append(opts, dispatch.WithResponseBudget(tok, cfg.Tools.MaxResponseTokens))
	}
	if cfg.Tools.ScanResponses {
		opts = append(opts, dispatch.WithInjectionScan())
	}
	if cfg.Tools.FileRoot != "" {
		opts = append(opts, dispatch.WithFileRoot(cfg.Tools.FileRoot))
	}
	a.dispatcher = dispatch.New(reg, opts...)
	return a, nil
}

// journalURL prefers the journal_url secret, since remote URLs embed a token.
func (a *app) journalURL() string {
	if a.cfg.Journal.URL == "" {
		return ""
	}
	if sm, err := secretsManager(); err == nil {
		if v, err := sm.Get(secrets.JournalURL); err == nil && v != "" {
			return v
		}
	}
	return a.cfg.Journal.URL
}

// apiKey resolves the billing API key: env or config, then the secrets store.
func (a *app) apiKey() (string, error) {
	sm, err := secretsManager()
	if err != nil {
		a.logger.Debug("secrets store unavailable", "error", err)
		sm = nil
	}
	key, err := secrets.Resolve(sm, secrets.BillingAPIKey, a.cfg.Billing.APIKey)
	if err != nil || key == "" {
		return "", fmt.Errorf("no billing API key: set %s, billing.apiKey, or run 'billtool secrets set %s <key>'",
			config.EnvAPIKey, secrets.BillingAPIKey)
	}
	return key, nil
}

// client builds the billing client from config.
func (a *app) client() (tooling.Client, error) {
	key, err := a.apiKey()
	if err != nil {
		return nil, err
	}
	b := a.cfg.Billing
	base := b.BaseURL
	if base == "" {
		if base, err = billing.BaseURLFor(b.Environment); err != nil {
			return nil, err
		}
	}
	timeout := 30 * time.Second
	if b.TimeoutMillis > 0 {
		timeout = time.Duration(b.TimeoutMillis) * time.Millisecond
	}
	return newBillingClient(key,
		billing.WithBaseURL(base),
		billing.WithHTTPClient(&http.Client{Timeout: timeout}),
		billing.WithRateLimit(b.RequestsPerSecond, b.Burst),
		billing.WithRetrier(retry.New(retry.FromDomain(&a.cfg.Retry))),
		billing.WithLogger(a.logger),
		billing.WithObserver(a.metrics),
		billing.WithUserAgent("billtool/"+a.version),
	)
}

// Close releases the journal.
func (a *app) Close() error {
	if a.journal != nil {
		return a.journal.Close()
	}
	return nil
}
