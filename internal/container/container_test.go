package container

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/fx"

	"lab-management-platform/internal/config"
	"lab-management-platform/internal/integrations/notification"
	"lab-management-platform/internal/logger"
)

func TestModuleGraphIsComplete(t *testing.T) {
	require.NoError(t, fx.ValidateApp(Module))
}

func TestNewSenderFollowsEmailSwitch(t *testing.T) {
	log := logger.NewDiscardLogger()

	_, ok := NewSender(&config.Config{}, log).(*notification.LogSender)
	assert.True(t, ok)

	_, ok = NewSender(&config.Config{Email: config.EmailConfig{Enabled: true, Host: "smtp.example.com", Port: 587}}, log).(*notification.SMTPSender)
	assert.True(t, ok)
}

func TestNewEventSinksWithoutBucket(t *testing.T) {
	sinks, err := NewEventSinks(&config.Config{}, logger.NewDiscardLogger())
	require.NoError(t, err)
	assert.Empty(t, sinks)
}

func TestNewRegistryCollectsRuntimeMetrics(t *testing.T) {
	count, err := testutil.GatherAndCount(NewRegistry(), "go_goroutines")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}
