// Command echod runs the Echo agent daemon: the heartbeat scheduler plus
// an HTTP surface for executing plan steps and inspecting agent state.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/echohq/echo/pkg/audit"
	"github.com/echohq/echo/pkg/config"
	"github.com/echohq/echo/pkg/executor"
	"github.com/echohq/echo/pkg/guardrail"
	"github.com/echohq/echo/pkg/heartbeat"
	"github.com/echohq/echo/pkg/logging"
	"github.com/echohq/echo/pkg/notify"
	"github.com/echohq/echo/pkg/ratelimit"
	"github.com/echohq/echo/pkg/telemetry"
)

// Version information - set via ldflags during build
var (
	version   = "1.0.0-dev"
	commit    = "unknown"
	buildDate = "unknown"
)

func main() {
	var (
		configPath  = flag.String("config", "", "path to config.yaml (default: ~/.echo/config.yaml)")
		showVersion = flag.Bool("version", false, "print version and exit")
	)
	flag.Parse()

	if *showVersion {
		fmt.Printf("echod %s (%s, built %s)\n", version, commit, buildDate)
		return
	}

	if err := run(*configPath); err != nil {
		log.Fatalf("echod: %v", err)
	}
}

func run(configPath string) error {
	var cfg *config.Config
	var err error
	if configPath != "" {
		cfg, err = config.LoadFromPath(configPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger, err := logging.NewLogger(cfg.Logging.Dir, cfg.Agent.ID)
	if err != nil {
		return fmt.Errorf("open logs: %w", err)
	}
	defer logger.Close()
	logger.SetMinLevel(logging.Level(cfg.Logging.MinLevel))

	tracer, err := telemetry.NewTracerProvider("echod")
	if err != nil {
		return fmt.Errorf("init tracing: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		tracer.Shutdown(shutdownCtx)
	}()

	recorder, err := audit.NewSQLiteRecorder(cfg.Storage.AuditDBPath)
	if err != nil {
		return fmt.Errorf("open audit store: %w", err)
	}
	defer recorder.Close()

	notifier, err := buildNotifier(cfg)
	if err != nil {
		return fmt.Errorf("init notifications: %w", err)
	}
	if notifier != nil {
		defer notifier.Close()
	}

	store := ratelimit.NewMemoryStore()
	defer store.Close()

	engine := guardrail.NewEngine()
	limiter := ratelimit.NewLimiter(store)
	exec := executor.New(nil, nil, nil, nil, logger)

	var publisher heartbeat.FindingPublisher
	if notifier != nil {
		publisher = notify.NewFindingBridge(notifier, cfg.Agent.ID)
	}
	sched := heartbeat.NewScheduler(cfg.Heartbeat, integrationQuery(), publisher, logger)

	srv := newServer(cfg, engine, limiter, exec, recorder, sched, notifier, logger)
	httpServer := &http.Server{
		Addr:              cfg.Server.Bind,
		Handler:           srv.routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		sched.Run(ctx)
		return nil
	})

	g.Go(func() error {
		logger.Info(logging.CategoryConfig, "daemon_started", "echod listening", map[string]any{
			"bind":    cfg.Server.Bind,
			"version": version,
		})
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

// buildNotifier assembles the notification manager from config. Returns
// nil when notifications are disabled.
func buildNotifier(cfg *config.Config) (*notify.Manager, error) {
	if !cfg.Notify.Enabled {
		return nil, nil
	}

	var publisher notify.Publisher
	if cfg.Notify.NATS.Enabled {
		p, err := notify.NewNATSPublisher(notify.NATSConfig{
			URL:     cfg.Notify.NATS.URL,
			Subject: cfg.Notify.NATS.Subject,
		})
		if err != nil {
			return nil, err
		}
		publisher = p
	}

	var adapters []notify.Adapter
	if cfg.Notify.Slack.Enabled {
		slack, err := notify.NewSlackAdapter(notify.SlackConfig{
			WebhookURL: cfg.Notify.Slack.WebhookURL,
			Channel:    cfg.Notify.Slack.Channel,
		})
		if err != nil {
			return nil, err
		}
		adapters = append(adapters, slack)
	}

	return notify.NewManager(publisher, adapters...), nil
}

// integrationQuery is the seam where integration backends plug in. Until
// one is configured, heartbeat checks see no connected integrations and
// no-op cleanly.
func integrationQuery() heartbeat.QueryFunc {
	return func(ctx context.Context, integration, query string) (string, error) {
		return executor.NoIntegrationsSentinel(), nil
	}
}
