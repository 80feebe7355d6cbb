package main

import (
	"context"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/vango-dev/eventwire/internal/source"
	"github.com/vango-dev/eventwire/pkg/dispatch"
	"github.com/vango-dev/eventwire/pkg/server"
)

func newServeCmd(a *app) *cobra.Command {
	var (
		watch       bool
		maxSessions int
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the document over HTTP and WebSocket",
		Long: `Serve starts an HTTP server. Every WebSocket session on /ws gets its own
copy of the document with the manifest's controllers bound to it. POST
/api/events fires a single event against a fresh copy.

With --watch, local document and manifest files are reloaded when they
change. Sessions opened afterwards see the new version.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return a.serve(ctx, watch, maxSessions)
		},
	}

	cmd.Flags().String("host", "", "listen host")
	cmd.Flags().Int("port", 0, "listen port")
	cmd.Flags().Duration("timeout", 0, "timeout for outbound route calls")
	cmd.Flags().Bool("metrics", true, "record invocation metrics")
	cmd.Flags().Bool("tracing", false, "trace invocations with OpenTelemetry")
	cmd.Flags().BoolVar(&watch, "watch", false, "reload local sources when they change")
	cmd.Flags().IntVar(&maxSessions, "max-sessions", 0, "maximum concurrent sessions (0 = unlimited)")
	return cmd
}

func (a *app) serve(ctx context.Context, watch bool, maxSessions int) error {
	b, err := a.loadBundle(ctx)
	if err != nil {
		return err
	}
	var current atomic.Pointer[bundle]
	current.Store(b)

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	mw := a.middlewares(reg)

	srv := server.New(func(context.Context) (*dispatch.Engine, error) {
		return a.engine(current.Load(), mw...)
	}, &server.Config{
		Address:     a.cfg.Address(),
		MaxSessions: maxSessions,
		Gatherer:    reg,
	}, server.WithLogger(a.logger))

	eg, egctx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		return srv.Serve(egctx)
	})

	if watch {
		paths := []string{a.cfg.Document}
		if a.cfg.Manifest != "" {
			paths = append(paths, a.cfg.Manifest)
		}
		w := source.NewWatcher(source.WatcherConfig{
			Paths:  paths,
			Logger: a.logger,
		})
		w.OnChange(func(path string) {
			nb, err := a.loadBundle(egctx)
			if err != nil {
				a.logger.Error("reload failed, keeping previous version", "path", path, "error", err)
				return
			}
			current.Store(nb)
			a.logger.Info("sources reloaded", "path", path)
		})
		a.logger.Info("watching sources", "files", w.Len())
		eg.Go(func() error {
			return w.Start(egctx)
		})
	}

	return eg.Wait()
}
