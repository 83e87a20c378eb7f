package config

import (
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() *Config {
	return &Config{
		Store: StoreConfig{Driver: DriverMemory, MaxTransactItems: 25},
		Tokens: TokensConfig{
			SigningSecret:         "signing",
			VerificationKey:       "verification",
			InvitationTTLHours:    168,
			PasswordResetTTLHours: 1,
		},
	}
}

func TestProperty_OnlyKnownDriversValidate(t *testing.T) {
	properties := gopter.NewProperties(nil)
	known := map[string]bool{
		DriverMemory: true, DriverDynamoDB: true, DriverRedis: true, DriverPostgres: true, DriverSQLite: true,
	}

	properties.Property("a driver validates exactly when it is known", prop.ForAll(
		func(driver string) bool {
			cfg := validConfig()
			cfg.Store.Driver = driver
			return (cfg.Validate() == nil) == known[driver]
		},
		gen.OneGenOf(
			gen.OneConstOf(DriverMemory, DriverDynamoDB, DriverRedis, DriverPostgres, DriverSQLite),
			gen.AlphaString(),
		),
	))

	properties.Property("transaction limit must be positive", prop.ForAll(
		func(limit int) bool {
			cfg := validConfig()
			cfg.Store.MaxTransactItems = limit
			return (cfg.Validate() == nil) == (limit > 0)
		},
		gen.IntRange(-10, 100),
	))

	properties.TestingRun(t, gopter.ConsoleReporter(false))
}

func TestValidateTokenSecrets(t *testing.T) {
	cfg := validConfig()
	require.NoError(t, cfg.Validate())

	cfg.Tokens.VerificationKey = cfg.Tokens.SigningSecret
	assert.Error(t, cfg.Validate())

	cfg = validConfig()
	cfg.Tokens.SigningSecret = ""
	assert.Error(t, cfg.Validate())

	cfg = validConfig()
	cfg.Tokens.PasswordResetTTLHours = 0
	assert.Error(t, cfg.Validate())
}

func TestLoadConfig(t *testing.T) {
	config, err := LoadConfig()
	require.NoError(t, err)
	assert.NotNil(t, config)

	// Verify default values are set
	assert.Equal(t, "8080", config.Server.Port)
	assert.Equal(t, DriverMemory, config.Store.Driver)
	assert.Equal(t, 25, config.Store.MaxTransactItems)
	assert.Equal(t, "lab-management", config.DynamoDB.Table)
	assert.Equal(t, 5432, config.Database.Port)
	assert.Equal(t, "info", config.Logging.Level)
	assert.Equal(t, "json", config.Logging.Format)
	assert.Equal(t, 168, config.Tokens.InvitationTTLHours)
	assert.Equal(t, 1, config.Tokens.PasswordResetTTLHours)
}
