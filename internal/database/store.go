package database

import (
	"context"
	"fmt"

	"lab-management-platform/internal/config"
	"lab-management-platform/internal/logger"
	"lab-management-platform/internal/store"
	"lab-management-platform/internal/store/dynamo"
	"lab-management-platform/internal/store/memory"
	"lab-management-platform/internal/store/redisstore"
	"lab-management-platform/internal/store/sqlstore"
)

// DynamoConfig maps the configuration onto the DynamoDB store parameters
func DynamoConfig(cfg *config.Config) dynamo.Config {
	return dynamo.Config{
		Region:           cfg.DynamoDB.Region,
		Endpoint:         cfg.DynamoDB.Endpoint,
		Table:            cfg.DynamoDB.Table,
		MaxTransactItems: cfg.Store.MaxTransactItems,
	}
}

// NewStore opens the keyed collection store selected by store.driver
func NewStore(ctx context.Context, cfg *config.Config, log *logger.Logger) (store.Store, error) {
	entry := log.WithField("driver", cfg.Store.Driver)

	var (
		st  store.Store
		err error
	)
	switch cfg.Store.Driver {
	case config.DriverMemory:
		entry.Warn("Using the in-memory store; data is lost on exit")
		st = memory.NewStore(memory.WithMaxTransactItems(cfg.Store.MaxTransactItems))
	case config.DriverDynamoDB:
		client, clientErr := dynamo.NewClient(ctx, DynamoConfig(cfg))
		if clientErr != nil {
			return nil, clientErr
		}
		st, err = dynamo.New(client, DynamoConfig(cfg))
	case config.DriverRedis:
		st = redisstore.New(NewRedisClient(cfg), redisstore.Config{
			Prefix:           cfg.Redis.Prefix,
			MaxTransactItems: cfg.Store.MaxTransactItems,
			MaxRetries:       cfg.Redis.MaxRetries,
		})
	case config.DriverPostgres, config.DriverSQLite:
		db, openErr := NewConnection(cfg)
		if openErr != nil {
			return nil, openErr
		}
		st = sqlstore.New(db, cfg.Store.MaxTransactItems)
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.Store.Driver)
	}
	if err != nil {
		return nil, err
	}

	if err := st.Ping(ctx); err != nil {
		st.Close()
		return nil, fmt.Errorf("store %s unreachable: %w", cfg.Store.Driver, err)
	}

	entry.WithField("max_transact_items", st.MaxTransactItems()).Info("Store opened")
	return st, nil
}
