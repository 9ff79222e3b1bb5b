package config

import (
	"errors"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/drblury/kafkarelay/internal/runtime/auth"
)

func TestConfigStringRedaction(t *testing.T) {
	cfg := Config{
		AWSAccessKeyID:     "my-access-key",
		AWSSecretAccessKey: "my-secret-key",
		AWSRegion:          "us-east-1",
	}

	str := cfg.String()

	assert.NotContains(t, str, "my-access-key")
	assert.NotContains(t, str, "my-secret-key")
	assert.Contains(t, str, "***REDACTED***")
	assert.Contains(t, str, "us-east-1")
	assert.Equal(t, "my-secret-key", cfg.AWSSecretAccessKey)
}

func TestDefaultIsValid(t *testing.T) {
	require.NoError(t, Default().Validate())
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Config)
		want   string
	}{
		{"bad initial offset", func(c *Config) { c.InitialOffset = "middle" }, "consumer: initial offset must be earliest or latest"},
		{"negative retries", func(c *Config) { c.ProducerRetries = -1 }, "producer: retries must be at least 1"},
		{"zero retries", func(c *Config) { c.ProducerRetries = 0 }, "producer: retries must be at least 1"},
		{"no backend", func(c *Config) { c.SecretBackend = "" }, "secrets: backend is required"},
		{"file without dir", func(c *Config) { c.SecretBackend = "file" }, "secrets: directory is required"},
		{"aws without region", func(c *Config) { c.SecretBackend = "aws" }, "aws: region is required"},
		{"negative secret timeout", func(c *Config) { c.SecretTimeout = -time.Second }, "secrets: timeout cannot be negative"},
		{"negative connect timeout", func(c *Config) { c.ConnectTimeout = -time.Second }, "kafka: connect timeout cannot be negative"},
		{"negative start timeout", func(c *Config) { c.StartTimeout = -time.Second }, "relay: start timeout cannot be negative"},
		{"metrics port too high", func(c *Config) { c.MetricsPort = 70000 }, "metrics: invalid port"},
		{"metrics without port", func(c *Config) { c.MetricsEnabled = true; c.MetricsPort = 0 }, "metrics: port is required"},
		{"unknown log level", func(c *Config) { c.LogLevel = "loud" }, "logging: unknown level"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.modify(cfg)
			assert.ErrorContains(t, cfg.Validate(), tt.want)
		})
	}
}

func TestValidateCollectsEveryProblem(t *testing.T) {
	cfg := Default()
	cfg.MetricsPort = -1
	cfg.LogLevel = "loud"

	err := cfg.Validate()
	assert.ErrorContains(t, err, "metrics: invalid port")
	assert.ErrorContains(t, err, "logging: unknown level")
}

func TestValidateIgnoresRelaySettings(t *testing.T) {
	cfg := Default()
	cfg.Source.AuthenticationMode = "KERBEROS"
	cfg.Destination.BootstrapServerAndTopic = "not a descriptor"
	assert.NoError(t, cfg.Validate())
}

func TestValidateConfigNil(t *testing.T) {
	assert.ErrorContains(t, ValidateConfig(nil), "nil")
	assert.NoError(t, ValidateConfig(Default()))
}

func TestCredentialFields(t *testing.T) {
	s := Side{UsernameSecretID: "user", KeyPasswordSecretID: "key-pass"}
	fields := s.CredentialFields()

	assert.Equal(t, "user", fields[auth.FieldUsernameSecretID])
	assert.Equal(t, "key-pass", fields[auth.FieldKeyPasswordSecretID])
	assert.Contains(t, fields, auth.FieldTruststoreLocation)
	assert.Len(t, fields, 7)
}

func TestConfigGetters(t *testing.T) {
	cfg := Config{
		SecretBackend:      "aws",
		SecretEnvPrefix:    "RELAY_",
		SecretDir:          "/run/secrets",
		AWSRegion:          "us-east-1",
		AWSAccessKeyID:     "access-key",
		AWSSecretAccessKey: "secret-key",
		AWSEndpoint:        "http://localhost:4566",
	}

	assert.Equal(t, "aws", cfg.GetSecretBackend())
	assert.Equal(t, "RELAY_", cfg.GetSecretEnvPrefix())
	assert.Equal(t, "/run/secrets", cfg.GetSecretDir())
	assert.Equal(t, "us-east-1", cfg.GetAWSRegion())
	assert.Equal(t, "access-key", cfg.GetAWSAccessKeyID())
	assert.Equal(t, "secret-key", cfg.GetAWSSecretAccessKey())
	assert.Equal(t, "http://localhost:4566", cfg.GetAWSEndpoint())
}

const sampleTOML = `
commitOffsets = true
initialOffset = "earliest"
connectTimeout = "5s"

[source]
bootstrapServerAndTopic = "src1:9092,src2:9092;orders"
authenticationMode = "SASL_PLAIN"
usernameSecretId = "src-user"
passwordSecretId = "src-pass"

[destination]
bootstrapServerAndTopic = "dst1:9093;orders-copy"
authenticationMode = "SSL"
truststoreLocation = "/etc/kafka/trust.p12"
truststorePasswordSecretId = "trust-pass"
keystoreLocation = "/etc/kafka/key.p12"
keystorePasswordSecretId = "store-pass"
keyPasswordSecretId = "key-pass"

[secrets]
backend = "file"
dir = "/run/secrets"
timeout = "2s"

[metrics]
enabled = true

[log]
level = "debug"
`

func TestDecodeOverlaysDefaults(t *testing.T) {
	cfg := Default()
	require.NoError(t, Decode([]byte(sampleTOML), cfg))

	assert.Equal(t, "src1:9092,src2:9092;orders", cfg.Source.BootstrapServerAndTopic)
	assert.Equal(t, "SASL_PLAIN", cfg.Source.AuthenticationMode)
	assert.Equal(t, "src-pass", cfg.Source.PasswordSecretID)
	assert.Equal(t, "key-pass", cfg.Destination.KeyPasswordSecretID)
	assert.True(t, cfg.CommitOffsets)
	assert.Equal(t, "earliest", cfg.InitialOffset)
	assert.Equal(t, 5*time.Second, cfg.ConnectTimeout)
	assert.Equal(t, 2*time.Second, cfg.SecretTimeout)
	assert.Equal(t, "file", cfg.SecretBackend)
	assert.True(t, cfg.MetricsEnabled)
	assert.Equal(t, "debug", cfg.LogLevel)

	// untouched keys keep their defaults
	assert.Equal(t, 60*time.Second, cfg.StartTimeout)
	assert.Equal(t, 9090, cfg.MetricsPort)
	assert.Equal(t, 10, cfg.ProducerRetries)
	require.NoError(t, cfg.Validate())
}

func TestDecodeRejectsBadInput(t *testing.T) {
	assert.ErrorContains(t, Decode([]byte("commitOffsets = "), Default()), "decode config")
	assert.ErrorContains(t, Decode([]byte(`startTimeout = "soon"`), Default()), "startTimeout")
}

func TestLoadFile(t *testing.T) {
	orig := ReadFile
	t.Cleanup(func() { ReadFile = orig })

	ReadFile = func(name string) ([]byte, error) {
		if name != "relay.toml" {
			return nil, os.ErrNotExist
		}
		return []byte(sampleTOML), nil
	}

	cfg := Default()
	require.NoError(t, LoadFile("relay.toml", cfg))
	assert.Equal(t, "dst1:9093;orders-copy", cfg.Destination.BootstrapServerAndTopic)

	err := LoadFile("missing.toml", Default())
	assert.True(t, errors.Is(err, os.ErrNotExist))
	assert.ErrorContains(t, err, "missing.toml")
}
