package cmd

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/fx"

	"mindvault/internal/bootstrap"
	"mindvault/internal/bootstrap/logging"
	"mindvault/internal/errs"
	"mindvault/internal/usecase/review"
)

// serveCmd runs the HTTP API together with the stage queue workers.
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the review engine: HTTP API plus stage workers",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := logging.WithAttrs(
			cmd.Context(),
			slog.String("command", cmd.CommandPath()),
			slog.String("config_file", cfgFile),
		)

		var app *bootstrap.App
		var svc *review.Service
		var router http.Handler
		fxApp := fx.New(
			bootstrap.Module,
			fx.Provide(func() context.Context { return ctx }),
			fx.Provide(
				fx.Annotate(
					func() string { return cfgFile },
					fx.ResultTags(`name:"configFile"`),
				),
			),
			fx.Populate(&app, &svc, &router),
		)

		startCtx, cancelStart := context.WithTimeout(ctx, 10*time.Second)
		defer cancelStart()
		if err := fxApp.Start(startCtx); err != nil {
			logging.Error(ctx, "bootstrap application failed", slog.Any("err", errs.Loggable(err)))
			return errs.Wrap(err, "start fx application")
		}
		defer func() {
			stopCtx, cancelStop := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancelStop()
			if err := fxApp.Stop(stopCtx); err != nil {
				logging.Error(ctx, "fx application stop failed", slog.Any("err", errs.Loggable(err)))
			}
		}()

		if err := app.InitSchema(ctx); err != nil {
			return errs.Wrap(err, "initialize schema")
		}
		if err := svc.RegisterWorkers(); err != nil {
			return errs.Wrap(err, "register stage workers")
		}

		server := &http.Server{
			Addr:        app.Config.Server.ListenAddr,
			Handler:     router,
			BaseContext: func(net.Listener) context.Context { return ctx },
		}

		runCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		serveErr := make(chan error, 1)
		go func() {
			logging.Info(ctx, "http server listening", slog.String("addr", server.Addr))
			if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				serveErr <- err
			}
		}()

		select {
		case err := <-serveErr:
			return errs.Wrap(err, "serve http")
		case <-runCtx.Done():
		}

		logging.Info(ctx, "shutting down", slog.Duration("timeout", app.Config.Server.ShutdownTimeout))
		shutdownCtx, cancel := context.WithTimeout(context.Background(), app.Config.Server.ShutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			return errs.Wrap(err, "shutdown http server")
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}
