package database

import (
	"context"
	"time"

	"lab-management-platform/internal/config"
	"lab-management-platform/internal/logger"
	"lab-management-platform/internal/repositories"
	"lab-management-platform/internal/store/dynamo"
	"lab-management-platform/internal/store/sqlstore"
)

// tableWait bounds how long Up waits for a new DynamoDB table to turn active
const tableWait = 2 * time.Minute

// Migrator prepares the backing tables of the configured store driver
type Migrator struct {
	cfg    *config.Config
	logger *logger.Logger
}

// NewMigrator creates a new migrator instance
func NewMigrator(cfg *config.Config, logger *logger.Logger) *Migrator {
	return &Migrator{cfg: cfg, logger: logger}
}

// Up creates the tables and indexes the store needs. Memory and Redis
// stores need no schema.
func (m *Migrator) Up(ctx context.Context) error {
	entry := m.logger.WithField("driver", m.cfg.Store.Driver)

	switch m.cfg.Store.Driver {
	case config.DriverPostgres, config.DriverSQLite:
		db, err := NewConnection(m.cfg)
		if err != nil {
			return err
		}
		st := sqlstore.New(db, m.cfg.Store.MaxTransactItems)
		defer st.Close()
		if err := st.Migrate(ctx); err != nil {
			return err
		}
	case config.DriverDynamoDB:
		client, err := dynamo.NewClient(ctx, DynamoConfig(m.cfg))
		if err != nil {
			return err
		}
		if err := dynamo.CreateTable(ctx, client, m.cfg.DynamoDB.Table, repositories.IndexNames(), tableWait); err != nil {
			return err
		}
	default:
		entry.Info("Store driver has no schema to migrate")
		return nil
	}

	entry.Info("Store schema up to date")
	return nil
}

// Down drops the relational store tables (for testing purposes)
func (m *Migrator) Down(ctx context.Context) error {
	switch m.cfg.Store.Driver {
	case config.DriverPostgres, config.DriverSQLite:
		db, err := NewConnection(m.cfg)
		if err != nil {
			return err
		}
		defer func() {
			if sqlDB, err := db.DB(); err == nil {
				sqlDB.Close()
			}
		}()
		return db.WithContext(ctx).Migrator().DropTable(sqlstore.Models()...)
	default:
		return nil
	}
}
