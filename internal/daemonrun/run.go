// Package daemonrun bootstraps the daemon process for both `quill daemon`
// and the standalone quilld binary.
package daemonrun

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"quill/internal/config"
	"quill/internal/daemon"
	"quill/internal/engine"
	"quill/internal/logging"
	"quill/internal/notifications"
	"quill/internal/preflight"
	"quill/internal/store"
	"quill/internal/tracing"
	"quill/internal/workflow"
)

// Options configures daemon process runtime behavior.
type Options struct {
	LogLevel    string
	Development bool
}

// Run starts the quill daemon and blocks until SIGINT/SIGTERM or cmdCtx ends.
func Run(cmdCtx context.Context, cfg *config.Config, opts Options) error {
	if cfg == nil {
		return fmt.Errorf("config is required")
	}

	signalCtx, cancel := signal.NotifyContext(cmdCtx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := cfg.EnsureDirectories(); err != nil {
		return err
	}
	logger, err := newLogger(cfg, opts)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}

	shutdownTracing, err := tracing.Setup(signalCtx, cfg.Tracing)
	if err != nil {
		return fmt.Errorf("init tracing: %w", err)
	}
	defer func() {
		flushCtx, flushCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer flushCancel()
		if err := shutdownTracing(flushCtx); err != nil {
			logger.Warn("tracing shutdown failed", logging.Error(err))
		}
	}()

	logPreflight(logger, preflight.RunLocal(cfg))

	d, err := Build(cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := d.Close(); err != nil {
			logger.Warn("daemon close failed", logging.Error(err))
		}
	}()

	// Shutdown is driven by Close with the configured timeout, so the
	// daemon's own context must outlive the signal.
	if err := d.Start(context.WithoutCancel(cmdCtx)); err != nil {
		logging.ErrorWithContext(logger, "daemon start failed", "daemon_start_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check the api bind address and that no other daemon uses "+cfg.Paths.DataDir),
		)
		return fmt.Errorf("start daemon: %w", err)
	}

	// Only the lock holder owns the pid file.
	if err := writePIDFile(cfg.PIDPath()); err != nil {
		return fmt.Errorf("write pid file: %w", err)
	}
	defer os.Remove(cfg.PIDPath())

	<-signalCtx.Done()
	logger.Info("quill daemon shutting down",
		logging.Duration("shutdown_timeout", cfg.ShutdownTimeout()),
	)
	return nil
}

// Build wires the store, event bus, notifiers, scheduler, and API engine into
// a daemon that is ready to Start. The daemon owns the store once built.
func Build(cfg *config.Config, logger *slog.Logger) (*daemon.Daemon, error) {
	if cfg == nil {
		return nil, errors.New("config is required")
	}
	if logger == nil {
		logger = logging.NewNop()
	}

	st, err := store.Open(cfg)
	if err != nil {
		logger.Error("open workflow store", logging.Error(err))
		return nil, err
	}

	bus := notifications.NewEventBus(cfg.Notifications.EventBuffer, logging.NewComponentLogger(logger, "event-bus"))
	sinks := []notifications.Notifier{bus}
	ntfy := notifications.NewNtfy(cfg, logging.NewComponentLogger(logger, "ntfy"))
	if ntfy != nil {
		sinks = append(sinks, ntfy)
	}
	notifier := notifications.NewMulti(logger, sinks...)
	locks := engine.NewLocks()

	llmCfg := cfg.GetLLM()
	factory := workflow.NewEngineFactory(llmCfg, st, logger,
		engine.WithLocks(locks),
		engine.WithNotifier(notifier),
	)
	mgr := workflow.NewManager(workflow.SettingsFromConfig(cfg), factory, logger, workflow.WithResumer(st))

	gen, err := workflow.NewGenerator(llmCfg, logger)
	if err != nil {
		_ = ntfy.Close()
		_ = st.Close()
		return nil, err
	}
	eng, err := engine.New(st, gen,
		engine.WithLogger(logger),
		engine.WithLocks(locks),
		engine.WithNotifier(notifier),
		engine.WithScheduler(mgr),
	)
	if err != nil {
		_ = ntfy.Close()
		_ = st.Close()
		return nil, fmt.Errorf("build engine: %w", err)
	}

	d, err := daemon.New(cfg, st, eng, mgr, bus, logger)
	if err != nil {
		_ = ntfy.Close()
		_ = st.Close()
		return nil, fmt.Errorf("create daemon: %w", err)
	}
	if ntfy != nil {
		d.CloseWith(ntfy)
	}
	return d, nil
}

func newLogger(cfg *config.Config, opts Options) (*slog.Logger, error) {
	if strings.TrimSpace(opts.LogLevel) == "" && !opts.Development {
		return logging.NewFromConfig(cfg)
	}
	level := cfg.Logging.Level
	if strings.TrimSpace(opts.LogLevel) != "" {
		level = opts.LogLevel
	}
	logPath := cfg.LogPath()
	return logging.New(logging.Options{
		Level:       level,
		Format:      cfg.Logging.Format,
		Outputs:     []string{"stdout", logPath},
		Development: opts.Development,
	})
}

func logPreflight(logger *slog.Logger, results []preflight.Result) {
	for _, result := range preflight.Failed(results) {
		logging.WarnWithContext(logger, "preflight check failed", "preflight_failed",
			logging.String("check", result.Name),
			logging.String("detail", result.Detail),
			logging.String(logging.FieldImpact, "workflows may fail until this is fixed"),
		)
	}
}

func writePIDFile(path string) error {
	if path == "" {
		return nil
	}
	value := strconv.Itoa(os.Getpid()) + "\n"
	return os.WriteFile(path, []byte(value), 0o644)
}
