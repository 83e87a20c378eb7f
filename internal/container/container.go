package container

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/fx"

	"lab-management-platform/internal/config"
	"lab-management-platform/internal/database"
	"lab-management-platform/internal/handlers"
	"lab-management-platform/internal/integrations/eventsink"
	"lab-management-platform/internal/integrations/notification"
	"lab-management-platform/internal/integrations/parameters"
	"lab-management-platform/internal/logger"
	"lab-management-platform/internal/models"
	"lab-management-platform/internal/repositories"
	"lab-management-platform/internal/security"
	"lab-management-platform/internal/server"
	"lab-management-platform/internal/services"
	"lab-management-platform/internal/store"
)

// Module provides dependency injection configuration
var Module = fx.Options(
	// Configuration
	fx.Provide(LoadConfig),

	// Logging
	fx.Provide(logger.NewLogger),

	// Metrics
	fx.Provide(NewRegistry),
	fx.Provide(func(r *prometheus.Registry) prometheus.Registerer { return r }),

	// Store
	fx.Provide(NewStore),
	fx.Provide(database.NewMigrator),
	fx.Provide(repositories.NewSet),

	// Integrations
	fx.Provide(NewSender),
	fx.Provide(NewParameterStore),
	fx.Provide(NewEventSinks),

	// Security
	fx.Provide(func(log *logger.Logger, repos *repositories.Set, sinks []security.EventSink) *security.AuthEventRecorder {
		return security.NewAuthEventRecorder(log, repos.AuthEvents, sinks...)
	}),
	fx.Provide(func(r *security.AuthEventRecorder) services.AuthEventRecorder { return r }),

	// Services
	fx.Provide(models.NewValidationService),
	fx.Provide(services.NewAccessMetrics),
	fx.Provide(services.NewAccessService),
	fx.Provide(func(log *logger.Logger, cfg *config.Config) services.TokenService {
		return services.NewTokenService(log, cfg.Tokens)
	}),
	fx.Provide(func(
		log *logger.Logger,
		cfg *config.Config,
		access services.AccessService,
		tokens services.TokenService,
		sender notification.Sender,
		events services.AuthEventRecorder,
		validator *models.ValidationService,
	) services.InvitationService {
		return services.NewInvitationService(log, access, tokens, sender, events, validator, cfg.Email.BaseURL)
	}),
	fx.Provide(func(log *logger.Logger, repos *repositories.Set, params parameters.Store) services.IntegrationService {
		return services.NewIntegrationService(log, repos.Laboratories, params)
	}),

	// Handlers and server
	fx.Provide(handlers.NewHealthHandler),
	fx.Provide(server.NewServer),
)

// LoadConfig loads and validates the configuration
func LoadConfig() (*config.Config, error) {
	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// NewRegistry creates the metrics registry with the runtime collectors
func NewRegistry() *prometheus.Registry {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return registry
}

// NewStore migrates and opens the configured store and closes it on shutdown.
// Migration runs first because the DynamoDB ping needs the table.
func NewStore(lc fx.Lifecycle, cfg *config.Config, log *logger.Logger, migrator *database.Migrator) (store.Store, error) {
	ctx := context.Background()
	if err := migrator.Up(ctx); err != nil {
		return nil, err
	}
	st, err := database.NewStore(ctx, cfg, log)
	if err != nil {
		return nil, err
	}
	lc.Append(fx.Hook{
		OnStop: func(context.Context) error { return st.Close() },
	})
	return st, nil
}

// NewSender delivers email over SMTP when enabled, otherwise logs it
func NewSender(cfg *config.Config, log *logger.Logger) notification.Sender {
	if !cfg.Email.Enabled {
		log.Warn("Email delivery disabled; notifications are logged only")
		return notification.NewLogSender(log)
	}
	return notification.NewSMTPSender(log, cfg.Email)
}

// NewParameterStore reads laboratory secrets from SSM Parameter Store
func NewParameterStore(cfg *config.Config) (parameters.Store, error) {
	client, err := parameters.NewSSMClient(context.Background(), cfg.Parameters)
	if err != nil {
		return nil, err
	}
	return parameters.NewSSMStore(client, cfg.Parameters.Prefix), nil
}

// NewEventSinks adds the S3 archive when an archive bucket is configured
func NewEventSinks(cfg *config.Config, log *logger.Logger) ([]security.EventSink, error) {
	if cfg.AuthEvents.ArchiveBucket == "" {
		return nil, nil
	}
	client, err := eventsink.NewS3Client(context.Background(), cfg.AuthEvents)
	if err != nil {
		return nil, err
	}
	log.WithField("bucket", cfg.AuthEvents.ArchiveBucket).Info("Archiving authentication events to S3")
	return []security.EventSink{eventsink.NewS3Archive(client, cfg.AuthEvents.ArchiveBucket)}, nil
}
