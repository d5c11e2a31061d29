package main

import (
	"context"
	"log/slog"
	"time"

	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"

	httpadapter "graphorm/src/adapters/http"
	"graphorm/src/helper/bootstrap"
	"graphorm/src/helper/env"
	"graphorm/src/services/graph"
)

func main() {
	app := fx.New(
		bootstrap.Module,
		fx.WithLogger(func(logger *slog.Logger) fxevent.Logger {
			return &fxevent.SlogLogger{Logger: logger.With("component", "fx")}
		}),
		fx.StartTimeout(env.GetDuration("STARTUP_TIMEOUT", 30*time.Second)),
		fx.StopTimeout(env.GetDuration("SHUTDOWN_TIMEOUT", 10*time.Second)),

		fx.Provide(newServer),
		fx.Invoke(registerServerHooks),
	)

	// Run bloqueia até SIGINT/SIGTERM ou um Shutdown vindo do servidor
	app.Run()
}

func newServer(
	logger *slog.Logger,
	graphService *graph.GraphService,
) *httpadapter.Server {
	return httpadapter.NewServer(logger, env.GetString("SERVER_ADDR", ":8888"), graphService)
}

func registerServerHooks(lc fx.Lifecycle, shutdowner fx.Shutdowner, logger *slog.Logger, srv *httpadapter.Server) {
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			ln, err := srv.Listen()
			if err != nil {
				return err
			}

			go func() {
				if err := srv.Serve(ln); err != nil {
					logger.Error("Server failed", "error", err)
					_ = shutdowner.Shutdown(fx.ExitCode(1))
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			return srv.Shutdown(ctx)
		},
	})
}
