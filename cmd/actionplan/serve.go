package main

import (
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"actionplan/internal/audit/handler"
	"actionplan/internal/platform/httpserver"
	"actionplan/internal/platform/metrics"
	httptransport "actionplan/internal/transport/http"
)

const shutdownTimeout = 10 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API",
	Args:  cobra.NoArgs,
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, logger, err := loadConfig(os.Stdout)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, cfg, logger, true)
	if err != nil {
		return err
	}
	defer a.Close()

	router := httptransport.NewRouter(httptransport.Deps{
		Logger:         logger,
		Metrics:        metrics.New(a.registry),
		Gatherer:       a.registry,
		MaxUploadBytes: cfg.MaxUploadBytes,
		Files:          a.files,
		Health:         a.health,
		Routes: []httptransport.RouteRegistrar{
			handler.New(a.svc, logger, handler.WithMaxUploadBytes(cfg.MaxUploadBytes)),
		},
	})
	srv := httpserver.New(cfg.Addr, router)

	g, gctx := errgroup.WithContext(ctx)
	if a.dispatcher != nil {
		g.Go(func() error { return a.dispatcher.Run(gctx) })
	}
	g.Go(func() error { return httpserver.Run(gctx, srv, shutdownTimeout, logger) })
	return g.Wait()
}
