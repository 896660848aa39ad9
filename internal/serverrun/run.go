// Package serverrun runs the beatshop HTTP server process: logging, storage,
// the single-instance lock and graceful shutdown.
package serverrun

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/gofrs/flock"

	"beatshop/internal/api"
	"beatshop/internal/config"
	"beatshop/internal/logging"
	"beatshop/internal/preflight"
)

const shutdownTimeout = 5 * time.Second

// Options configures server process runtime behavior.
type Options struct {
	LogLevel    string
	Development bool
	// Bind overrides cfg.Server.Bind when set.
	Bind string
	// Ready, when set, receives the bound address once the listener is up.
	Ready func(addr string)
}

// Run starts the server and blocks until cmdCtx is cancelled or SIGINT/SIGTERM
// arrives.
func Run(cmdCtx context.Context, cfg *config.Config, opts Options) error {
	if cfg == nil {
		return fmt.Errorf("config is required")
	}

	signalCtx, cancel := signal.NotifyContext(cmdCtx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := cfg.EnsureDirectories(); err != nil {
		return fmt.Errorf("ensure directories: %w", err)
	}

	level := opts.LogLevel
	if strings.TrimSpace(level) == "" {
		level = cfg.Logging.Level
	}
	logger, err := logging.New(logging.Options{
		Level:            level,
		Format:           cfg.Logging.Format,
		OutputPaths:      []string{"stdout"},
		ErrorOutputPaths: []string{"stderr"},
		FilePath:         filepath.Join(cfg.Paths.LogDir, logging.LogFileName),
		Development:      opts.Development,
	})
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}

	lock := flock.New(filepath.Join(cfg.Paths.LogDir, "beatshop.lock"))
	locked, err := lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire server lock: %w", err)
	}
	if !locked {
		return fmt.Errorf("another beatshop server is already running (lock %s)", lock.Path())
	}
	defer func() { _ = lock.Unlock() }()

	pidPath := filepath.Join(cfg.Paths.LogDir, "beatshop.pid")
	if err := writePIDFile(pidPath); err != nil {
		return fmt.Errorf("write pid file: %w", err)
	}
	defer os.Remove(pidPath)

	rt, err := Assemble(signalCtx, cfg, logger)
	if err != nil {
		logger.Error("assemble runtime", logging.Error(err))
		return err
	}
	defer func() {
		if err := rt.Close(); err != nil {
			logger.Warn("close storage", logging.Error(err))
		}
	}()

	logDependencySnapshot(signalCtx, logger, cfg)
	for _, result := range preflight.RunAll(signalCtx, cfg, rt.Backend) {
		if result.Passed {
			continue
		}
		logging.WarnWithContext(logger, "preflight check failed", "preflight_failed",
			logging.String("check", result.Name),
			logging.String("detail", result.Detail),
			logging.String(logging.FieldErrorHint, "run `beatshop status` for details"),
			logging.String(logging.FieldImpact, "related requests may fail until fixed"),
		)
	}

	handler := api.NewServer(api.Options{
		Config:   cfg,
		Catalog:  rt.Catalog,
		Ingest:   rt.Ingest,
		Backend:  rt.Backend,
		Notifier: rt.Notifier,
		Logger:   logger,
	})
	server := &http.Server{
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       seconds(cfg.Server.ReadTimeoutSeconds),
		WriteTimeout:      seconds(cfg.Server.WriteTimeoutSeconds),
		IdleTimeout:       seconds(cfg.Server.IdleTimeoutSeconds),
		ErrorLog:          slog.NewLogLogger(logger.Handler(), slog.LevelWarn),
		BaseContext:       func(net.Listener) context.Context { return signalCtx },
	}

	bind := strings.TrimSpace(opts.Bind)
	if bind == "" {
		bind = cfg.Server.Bind
	}
	listener, err := net.Listen("tcp", bind)
	if err != nil {
		return fmt.Errorf("api listen: %w", err)
	}

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- server.Serve(listener)
	}()
	logger.Info("beatshop server listening",
		logging.String("address", listener.Addr().String()),
		logging.String("storage_backend", rt.Backend.Name()),
		logging.String(logging.FieldEventType, "server_started"),
	)
	if opts.Ready != nil {
		opts.Ready(listener.Addr().String())
	}

	select {
	case err := <-serveErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("api server error", logging.Error(err))
			return fmt.Errorf("serve: %w", err)
		}
		return nil
	case <-signalCtx.Done():
	}

	logger.Info("beatshop server shutting down")
	shutdownCtx, cancelShutdown := context.WithTimeout(context.WithoutCancel(signalCtx), shutdownTimeout)
	defer cancelShutdown()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Warn("graceful shutdown incomplete", logging.Error(err))
	}
	return nil
}

func seconds(n int) time.Duration {
	return time.Duration(n) * time.Second
}

func writePIDFile(path string) error {
	if path == "" {
		return nil
	}
	value := strconv.Itoa(os.Getpid()) + "\n"
	return os.WriteFile(path, []byte(value), 0o644)
}

func logDependencySnapshot(ctx context.Context, logger *slog.Logger, cfg *config.Config) {
	if logger == nil || cfg == nil {
		return
	}
	attrs := []logging.Attr{
		logging.String(logging.FieldEventType, "dependency_snapshot"),
		logging.String("storage_backend", cfg.Storage.Backend),
		logging.Int("categories", len(cfg.Catalog.Categories)),
		logging.Bool("secret_code_present", strings.TrimSpace(cfg.Ingest.SecretCode) != ""),
		logging.Bool("ntfy_enabled", strings.TrimSpace(cfg.Notifications.NtfyTopic) != ""),
		logging.Bool("email_enabled", cfg.Notifications.Email.Enabled),
	}
	for _, dep := range preflight.CheckSystemDeps(ctx, cfg) {
		key := strings.ToLower(dep.Name)
		attrs = append(attrs,
			logging.Bool(key+"_available", dep.Available),
			logging.String(key+"_binary", dep.Command),
		)
	}
	logger.Info("dependency snapshot", logging.Args(attrs...)...)
}
