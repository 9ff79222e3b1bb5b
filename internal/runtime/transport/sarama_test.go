package transport

import (
	"testing"
	"time"

	"github.com/IBM/sarama"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/drblury/kafkarelay/internal/runtime/clientconfig"
)

func TestSaramaConfigCommonSettings(t *testing.T) {
	cfg := consumerConfig(true)
	cfg[clientconfig.KeyClientID] = "relay-01"
	cfg[clientconfig.KeyKafkaVersion] = "2.8.0"
	cfg[clientconfig.KeyConnectTimeoutMs] = "1500"

	sc, err := SaramaConfig(cfg, clientconfig.Consumer)
	require.NoError(t, err)
	assert.Equal(t, "relay-01", sc.ClientID)
	assert.Equal(t, sarama.V2_8_0_0, sc.Version)
	assert.Equal(t, 1500*time.Millisecond, sc.Net.DialTimeout)
	assert.True(t, sc.Consumer.Return.Errors)
	assert.False(t, sc.Net.SASL.Enable)
	assert.False(t, sc.Net.TLS.Enable)
}

func TestSaramaConfigSASLPlain(t *testing.T) {
	cfg := producerConfig()
	cfg[clientconfig.KeySecurityProtocol] = clientconfig.ProtocolSASLPlaintext
	cfg[clientconfig.KeySASLMechanism] = clientconfig.MechanismPlain
	cfg[clientconfig.KeySASLUsername] = "alice"
	cfg[clientconfig.KeySASLPassword] = "pw"

	sc, err := SaramaConfig(cfg, clientconfig.Producer)
	require.NoError(t, err)
	assert.True(t, sc.Net.SASL.Enable)
	assert.Equal(t, sarama.SASLMechanism(sarama.SASLTypePlaintext), sc.Net.SASL.Mechanism)
	assert.Equal(t, "alice", sc.Net.SASL.User)
	assert.Equal(t, "pw", sc.Net.SASL.Password)
}

func TestSaramaConfigLatestByDefault(t *testing.T) {
	cfg := consumerConfig(false)
	delete(cfg, clientconfig.KeyAutoOffsetReset)

	sc, err := SaramaConfig(cfg, clientconfig.Consumer)
	require.NoError(t, err)
	assert.Equal(t, sarama.OffsetNewest, sc.Consumer.Offsets.Initial)
}

func TestSaramaConfigRejects(t *testing.T) {
	tests := []struct {
		name   string
		role   clientconfig.Role
		mutate func(clientconfig.ClientConfig)
		want   string
	}{
		{"no servers", clientconfig.Producer, func(c clientconfig.ClientConfig) { delete(c, clientconfig.KeyBootstrapServers) }, "bootstrap.servers"},
		{"bad version", clientconfig.Producer, func(c clientconfig.ClientConfig) { c[clientconfig.KeyKafkaVersion] = "x.y" }, "kafka.version"},
		{"bad timeout", clientconfig.Producer, func(c clientconfig.ClientConfig) { c[clientconfig.KeyConnectTimeoutMs] = "-1" }, "socket.connection.setup.timeout.ms"},
		{"bad protocol", clientconfig.Producer, func(c clientconfig.ClientConfig) { c[clientconfig.KeySecurityProtocol] = "SASL_SSL" }, "security.protocol"},
		{"bad mechanism", clientconfig.Producer, func(c clientconfig.ClientConfig) {
			c[clientconfig.KeySecurityProtocol] = clientconfig.ProtocolSASLPlaintext
			c[clientconfig.KeySASLMechanism] = "SCRAM-SHA-512"
		}, "sasl.mechanism"},
		{"bad acks", clientconfig.Producer, func(c clientconfig.ClientConfig) { c[clientconfig.KeyAcks] = "some" }, "acks"},
		{"bad retries", clientconfig.Producer, func(c clientconfig.ClientConfig) { c[clientconfig.KeyRetries] = "many" }, "retries"},
		{"idempotence needs one in flight", clientconfig.Producer, func(c clientconfig.ClientConfig) { c[clientconfig.KeyMaxInFlight] = "5" }, "invalid producer configuration"},
		{"unknown role", clientconfig.Role("admin"), func(clientconfig.ClientConfig) {}, "unknown client role"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := producerConfig()
			tt.mutate(cfg)
			_, err := SaramaConfig(cfg, tt.role)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}
