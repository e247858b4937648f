package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"billtool/internal/banner"
	"billtool/internal/config"
	"billtool/internal/domain"
	"billtool/internal/gateway"
	"billtool/internal/mcpserver"
	"billtool/internal/scheduler"
	"billtool/internal/secrets"
	"billtool/internal/security"
	"billtool/internal/signals"
	"billtool/internal/tooling"
)

// Test hooks. Production leaves them at their defaults.
var (
	// shutdownContext turns SIGINT/SIGTERM into cancellation.
	shutdownContext = signals.ShutdownContext
	// daemonEUIDGetter is set by tests to avoid RequireNonRoot failing when tests run as root.
	daemonEUIDGetter func() int
	// daemonBindWaitIterations is the max loop count waiting for the gateway to bind.
	daemonBindWaitIterations = 50
	// gatewayReady is called with the bound address once the gateway listens.
	gatewayReady = func(addr string) {}
	// schedulerLocation is the time zone cron expressions are read in.
	schedulerLocation = time.Local
)

func newServeCommand(g *globalOptions, bm buildMeta) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve tools over MCP on stdin/stdout (the default)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd, *g, bm.Version)
		},
	}
}

func newGatewayCommand(g *globalOptions, bm buildMeta) *cobra.Command {
	var port int
	cmd := &cobra.Command{
		Use:   "gateway",
		Short: "Serve tools over HTTP and WebSocket",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runGateway(cmd, *g, bm.Version, port)
		},
	}
	cmd.Flags().IntVarP(&port, "port", "p", -1, "override gateway.port (0 picks a free port)")
	return cmd
}

// runServe speaks MCP on the command's stdin/stdout until EOF or a signal.
// Logs go to stderr so they never mix with protocol frames.
func runServe(cmd *cobra.Command, g globalOptions, ver string) error {
	ctx, stop := shutdownContext(cmd.Context())
	defer stop()

	a, err := newApp(ctx, g, ver, cmd.ErrOrStderr(), true)
	if err != nil {
		return err
	}
	defer a.Close()
	client, err := a.client()
	if err != nil {
		return err
	}
	stopJobs, err := startJobs(ctx, a, client)
	if err != nil {
		return err
	}
	defer stopJobs()

	srv := mcpserver.New(a.dispatcher, client, mcpserver.WithLogger(a.logger), mcpserver.WithVersion(ver))
	err = srv.ServeStdio(ctx, cmd.InOrStdin(), cmd.OutOrStdout())
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// runGateway serves HTTP until a signal. port < 0 keeps the configured port.
func runGateway(cmd *cobra.Command, g globalOptions, ver string, port int) error {
	euidGetter := security.EffectiveUIDGetter()
	if daemonEUIDGetter != nil {
		euidGetter = daemonEUIDGetter
	}
	if err := security.RequireNonRoot(euidGetter); err != nil {
		return err
	}

	ctx, stop := shutdownContext(cmd.Context())
	defer stop()

	a, err := newApp(ctx, g, ver, cmd.ErrOrStderr(), true)
	if err != nil {
		return err
	}
	defer a.Close()
	client, err := a.client()
	if err != nil {
		return err
	}

	gwCfg := a.cfg.Gateway
	if port >= 0 {
		gwCfg.Port = port
	}
	gwCfg.AuthToken = gatewayToken(gwCfg.AuthToken)
	srv, err := gateway.NewServer(&gwCfg, a.dispatcher, client,
		gateway.WithLogger(a.logger), gateway.WithMetrics(a.metrics))
	if err != nil {
		return err
	}

	stopJobs, err := startJobs(ctx, a, client)
	if err != nil {
		return err
	}
	defer stopJobs()

	shutdown := make(chan struct{})
	runErr := make(chan error, 1)
	go func() { runErr <- srv.Run(shutdown) }()

	// Wait until the server has bound so "ready" means clients can connect.
	var bound string
	for i := 0; i < daemonBindWaitIterations && bound == ""; i++ {
		select {
		case err := <-runErr:
			return fmt.Errorf("gateway failed to bind: %w", err)
		case <-time.After(20 * time.Millisecond):
			bound = srv.Addr()
		}
	}
	if bound == "" {
		close(shutdown)
		return errors.New("gateway failed to bind (check port or permissions)")
	}

	auth := "none"
	if gwCfg.AuthToken != "" {
		auth = "token"
	}
	banner.Startup(ver, &banner.StartupOpts{
		Writer: cmd.ErrOrStderr(),
		Lines: []string{
			"listen   " + bound,
			"auth     " + auth,
			"billing  " + a.cfg.Billing.Environment,
			fmt.Sprintf("tools    %d", a.registry.Len()),
			"ready.",
		},
	})
	gatewayReady(bound)

	select {
	case <-ctx.Done():
	case err := <-runErr:
		return err
	}
	close(shutdown)
	return <-runErr
}

// gatewayToken prefers the configured token, then the gateway_auth_token secret.
func gatewayToken(configured string) string {
	sm, err := secretsManager()
	if err != nil {
		sm = nil
	}
	token, err := secrets.Resolve(sm, secrets.GatewayToken, configured)
	if err != nil {
		return ""
	}
	return token
}

// startJobs schedules the configured jobs and, when a config file exists,
// re-syncs them whenever it changes. The returned func stops everything.
func startJobs(ctx context.Context, a *app, client tooling.Client) (func(), error) {
	runner := scheduler.NewToolRunner(a.dispatcher, client,
		scheduler.WithRunnerLogger(a.logger), scheduler.WithRunnerMetrics(a.metrics))
	sched := scheduler.NewScheduler(scheduler.NewRobfigCronEngine(schedulerLocation), runner.Run,
		scheduler.WithLogger(a.logger))

	jobs, err := scheduler.JobsFromConfig(a.cfg.Jobs)
	if err != nil {
		runner.Close()
		return nil, err
	}
	if _, err := sched.Sync(jobs); err != nil {
		runner.Close()
		return nil, err
	}
	sched.Start()
	if len(jobs) > 0 {
		a.logger.Info("scheduler started", "jobs", len(jobs))
	}

	var watcher *config.Watcher
	if a.cfgFound {
		watcher = config.NewWatcher(a.cfgPath, a.logger)
		err := watcher.Start(func(cfg *domain.Config) {
			syncJobs(a, sched, cfg)
		})
		if err != nil {
			a.logger.Warn("config watcher disabled", "error", err)
			watcher = nil
		}
	}

	return func() {
		if watcher != nil {
			_ = watcher.Stop()
		}
		sched.Stop()
		runner.Close()
	}, nil
}

func syncJobs(a *app, sched *scheduler.Scheduler, cfg *domain.Config) {
	jobs, err := scheduler.JobsFromConfig(cfg.Jobs)
	if err != nil {
		a.logger.Warn("config reload: jobs rejected", "error", err)
		return
	}
	res, err := sched.Sync(jobs)
	if err != nil {
		a.logger.Warn("config reload: some jobs failed", "error", err)
	}
	a.logger.Info("config reloaded", "jobs_added", res.Added, "jobs_updated", res.Updated, "jobs_removed", res.Removed)
}
