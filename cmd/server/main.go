package main

import (
	"context"

	"go.uber.org/fx"

	"lab-management-platform/internal/config"
	"lab-management-platform/internal/container"
	"lab-management-platform/internal/logger"
	"lab-management-platform/internal/server"
)

func main() {
	app := fx.New(
		container.Module,
		fx.Invoke(func(lc fx.Lifecycle, cfg *config.Config, log *logger.Logger, srv *server.Server) {
			lc.Append(fx.Hook{
				OnStart: func(ctx context.Context) error {
					log.WithField("driver", cfg.Store.Driver).Info("Starting lab management platform")

					go func() {
						if err := srv.Start(context.Background()); err != nil {
							log.WithError(err).Error("Server error")
						}
					}()

					return nil
				},
				OnStop: func(ctx context.Context) error {
					log.Info("Shutting down lab management platform")
					return srv.Stop(ctx)
				},
			})
		}),
	)

	app.Run()
}
