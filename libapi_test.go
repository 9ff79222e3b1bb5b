package kafkarelay

import (
	"context"
	"errors"
	"testing"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func nopLogger() ServiceLogger {
	return NewWatermillServiceLogger(watermill.NopLogger{})
}

func TestBuildExport(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Source = SideConfig{
		BootstrapServerAndTopic: "broker1:9092,broker2:9092;orders",
		AuthenticationMode:      string(AuthSASLPlain),
		UsernameSecretID:        "u",
		PasswordSecretID:        "p",
	}
	cfg.Destination = cfg.Source
	cfg.Destination.BootstrapServerAndTopic = "broker1:9092;"

	_, err := Build(cfg)
	require.ErrorIs(t, err, ErrInvalidEndpointDescriptor)
	kind, ok := ErrorKindOf(err)
	assert.True(t, ok)
	assert.Equal(t, KindInvalidEndpointDescriptor, kind)
}

func TestParseEndpointExport(t *testing.T) {
	ep, err := ParseEndpoint("broker1:9092,broker2:9092;orders")
	require.NoError(t, err)
	assert.Equal(t, Endpoint{BootstrapServers: []string{"broker1:9092", "broker2:9092"}, Topic: "orders"}, ep)
}

func TestTemplateExport(t *testing.T) {
	meta, ok := LookupTemplate(KafkaToKafkaTemplate().Name)
	require.True(t, ok)
	assert.True(t, meta.SupportsAtLeastOnce)

	data, err := Marshal(meta)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"flex_container_name":"kafka-to-kafka"`)
}

func TestStartRequiresInputs(t *testing.T) {
	_, err := Start(context.Background(), nil, nopLogger(), nil)
	assert.ErrorIs(t, err, ErrConfigRequired)

	_, err = Start(context.Background(), DefaultConfig(), nil, nil)
	assert.ErrorIs(t, err, ErrLoggerRequired)
}

func TestStartRejectsInvalidConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.InitialOffset = "yesterday"

	_, err := Start(context.Background(), cfg, nopLogger(), nil)
	var cve ConfigValidationError
	assert.True(t, errors.As(err, &cve))
}

func TestStartUnknownSecretBackend(t *testing.T) {
	cfg := DefaultConfig()
	cfg.SecretBackend = "vault"

	_, err := Start(context.Background(), cfg, nopLogger(), nil)
	assert.ErrorContains(t, err, "vault")
}

func TestStartFailsBeforeResolvingSecrets(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Source.AuthenticationMode = "NONE"

	_, err := Start(context.Background(), cfg, nopLogger(), nil)
	assert.ErrorIs(t, err, ErrUnsupportedAuthenticationMode)
}
