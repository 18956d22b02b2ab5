package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/stevemurr/xapi-server/config"
	"github.com/stevemurr/xapi-server/handler"
	"github.com/stevemurr/xapi-server/server"
	"github.com/stevemurr/xapi-server/store"
)

// NewServeCommand runs the HTTP API until interrupted.
func NewServeCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the xAPI HTTP server",
		Long: `Run the xAPI HTTP server until SIGINT or SIGTERM.

Settings come from defaults, then xapi.yaml (or --config), then XAPI_*
environment variables, then flags.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd, rootOpts)
		},
	}

	d := config.DefaultConfig()
	f := cmd.Flags()
	f.String("host", d.Host, "listen host")
	f.Int("port", d.Port, "listen port")
	f.String("store-backend", d.StoreBackend, fmt.Sprintf("document store (%s)", strings.Join(store.Backends, "|")))
	f.String("seed-dir", d.SeedDir, "directory of <kind>.json files loaded at startup")
	f.Bool("reject-duplicate-ids", d.RejectDuplicateIDs, "answer 409 when a POSTed id already exists")
	f.String("log-level", d.Log.Level, "log level (debug|info|warn|error)")
	f.String("log-format", d.Log.Format, "log format (text|json)")

	return cmd
}

func runServe(cmd *cobra.Command, rootOpts *RootOptions) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	cfg, err := config.Load(rootOpts.ConfigPath, cmd.Flags())
	if err != nil {
		return WrapExitError(ExitCommandError, "load config", err)
	}
	logger := newLogger(cfg.Log, cmd.ErrOrStderr())

	s, err := store.New(cfg.StoreBackend)
	if err != nil {
		return WrapExitError(ExitCommandError, "open store", err)
	}
	defer s.Close()

	if cfg.SeedDir != "" {
		loaded, err := store.LoadSeedDir(ctx, s, cfg.SeedDir)
		if err != nil {
			return WrapExitError(ExitCommandError, "load seed data", err)
		}
		for _, kind := range store.Kinds {
			if n := loaded[kind]; n > 0 {
				logger.Info("seeded", "kind", kind.String(), "count", n)
			}
		}
	}

	h := handler.New(s, handler.Options{
		RejectDuplicateIDs: cfg.RejectDuplicateIDs,
		MaxBodyBytes:       cfg.MaxBodyBytes,
		Logger:             logger,
	})
	root := handler.LogRequests(handler.CORS(h, cfg.AllowedOrigins), logger)

	srv := server.New(root, server.Options{
		Addr:            cfg.Addr(),
		ReadTimeout:     cfg.ReadTimeout,
		WriteTimeout:    cfg.WriteTimeout,
		IdleTimeout:     cfg.IdleTimeout,
		ShutdownTimeout: cfg.ShutdownTimeout,
		Logger:          logger,
	})
	if err := srv.Start(); err != nil {
		return WrapExitError(ExitCommandError, "listen", err)
	}
	logger.Info("xAPI reference server started",
		"addr", srv.Addr(),
		"store", cfg.StoreBackend,
		"reject_duplicate_ids", cfg.RejectDuplicateIDs,
	)

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()
	return waitForShutdown(ctx, srv, logger)
}

// runningServer is the part of *server.Server that serve waits on.
type runningServer interface {
	Done() <-chan error
	Stop(ctx context.Context) error
}

// waitForShutdown blocks until ctx ends or the server fails. A serve or
// shutdown failure exits with ExitCommandError.
func waitForShutdown(ctx context.Context, srv runningServer, logger *slog.Logger) error {
	select {
	case <-ctx.Done():
	case err := <-srv.Done():
		if err != nil {
			return WrapExitError(ExitCommandError, "serve", err)
		}
		return nil
	}

	logger.Info("shutting down")
	if err := srv.Stop(context.Background()); err != nil {
		logger.Error("shutdown", "err", err)
		return WrapExitError(ExitCommandError, "shutdown", err)
	}
	return nil
}

func newLogger(c config.LogConfig, w io.Writer) *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.Level)); err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if strings.EqualFold(c.Format, "json") {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}
