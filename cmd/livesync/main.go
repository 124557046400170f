package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"

	"livesync/internal/config"
	"livesync/internal/engine"
	"livesync/internal/gateway/snapshot"
	appLog "livesync/internal/log"
	"livesync/internal/web"
)

// flagConfig holds CLI flag values.
type flagConfig struct {
	configPath string
	listen     string
	snapshot   string
	once       bool
	force      bool
}

func main() {
	appLog.Info("livesync starting", "version", "0.3.0")

	flags := parseFlags()

	conf, err := config.Load(flags.configPath)
	if err != nil {
		appLog.Error("failed to load config", err, "config_path", flags.configPath)
		os.Exit(1)
	}

	// CLI flags override the config file where provided.
	if flags.listen != "" {
		conf.Listen = flags.listen
	}
	if flags.snapshot != "" {
		conf.SnapshotFile = flags.snapshot
	}
	if err := conf.Validate(); err != nil {
		appLog.Error("invalid config", err, "config_path", flags.configPath)
		os.Exit(1)
	}
	appLog.SetLevel(appLog.ParseLevel(conf.LogLevel))

	appLog.Info("effective config",
		"listen", conf.Listen,
		"timezone", conf.Timezone,
		"refresh", conf.RefreshCron,
		"days_ahead", conf.Events.DaysAhead,
		"publish_enabled", conf.Publish.Enabled,
		"snapshot_file", conf.SnapshotFile,
		"once", flags.once,
		"force", flags.force,
	)

	eng, err := buildEngine(conf)
	if err != nil {
		appLog.Error("failed to build engine", err)
		os.Exit(1)
	}

	// Root context with cancellation on SIGINT/SIGTERM.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		appLog.Info("signal received, shutting down", "signal", sig.String())
		cancel()
	}()

	if flags.once {
		report, err := eng.Run(ctx, flags.force)
		if err != nil {
			appLog.Error("run failed", err)
			os.Exit(1)
		}
		fmt.Println(report.Outcome)
		for _, f := range report.Failures {
			fmt.Println(f.String())
		}
		return
	}

	if err := runDaemon(ctx, conf, eng, flags.force); err != nil {
		appLog.Error("daemon failed", err)
		os.Exit(1)
	}
	appLog.Info("livesync exiting")
}

// buildEngine wires the snapshot-backed gateways into a reconciliation
// engine. The snapshot serves all three gateway roles.
func buildEngine(conf *config.Config) (*engine.Engine, error) {
	if conf.SnapshotFile == "" {
		return nil, errors.New("no snapshot_file configured")
	}
	loc, err := conf.Location()
	if err != nil {
		return nil, err
	}
	gw, err := snapshot.Load(conf.SnapshotFile, loc)
	if err != nil {
		return nil, fmt.Errorf("load snapshot: %w", err)
	}
	return engine.New(conf, gw, gw, gw)
}

// runDaemon runs scheduled reconciliation plus the status HTTP server
// until the context is canceled.
func runDaemon(ctx context.Context, conf *config.Config, eng *engine.Engine, force bool) error {
	server := web.NewServer(conf)

	runOnce := func() {
		report, err := eng.Run(ctx, force)
		server.SetReport(report, err)
	}

	sched := cron.New()
	if _, err := sched.AddFunc(conf.RefreshCron, runOnce); err != nil {
		return fmt.Errorf("invalid refresh schedule %q: %w", conf.RefreshCron, err)
	}

	httpSrv := &http.Server{
		Addr:              conf.Listen,
		Handler:           server.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		appLog.Info("http server listening", "addr", conf.Listen)
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	// One immediate run so the daemon does not sit idle until the first tick.
	runOnce()
	sched.Start()

	var err error
	select {
	case <-ctx.Done():
	case err = <-errCh:
	}

	stopCtx := sched.Stop()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if sErr := httpSrv.Shutdown(shutdownCtx); sErr != nil && err == nil {
		err = sErr
	}
	<-stopCtx.Done()
	return err
}

func parseFlags() flagConfig {
	var cfg flagConfig

	flag.StringVar(&cfg.configPath, "config", "/etc/livesync/config.yaml", "Path to config file")
	flag.StringVar(&cfg.listen, "listen", "", "HTTP listen address (overrides config if set)")
	flag.StringVar(&cfg.snapshot, "snapshot", "", "Gateway snapshot file (overrides config if set)")
	flag.BoolVar(&cfg.once, "once", false, "Run one reconciliation cycle and exit")
	flag.BoolVar(&cfg.force, "force", false, "Run even when no change fingerprint difference is detected")

	flag.Parse()

	return cfg
}
