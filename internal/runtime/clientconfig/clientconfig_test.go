package clientconfig

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/drblury/kafkarelay/internal/runtime/auth"
	"github.com/drblury/kafkarelay/internal/runtime/endpoint"
	errspkg "github.com/drblury/kafkarelay/internal/runtime/errors"
	"github.com/drblury/kafkarelay/secrets"
)

var testEndpoint = endpoint.Endpoint{
	BootstrapServers: []string{"broker1:9093", "broker2:9093"},
	Topic:            "orders",
}

func sslCreds() auth.SSL {
	return auth.SSL{
		TruststoreLocation:         "/etc/kafka/truststore.p12",
		TruststorePasswordSecretID: "trust-pass",
		KeystoreLocation:           "/etc/kafka/keystore.p12",
		KeystorePasswordSecretID:   "store-pass",
		KeyPasswordSecretID:        "key-pass",
	}
}

func sslResolver() *secrets.Static {
	return secrets.NewStatic(map[string]string{
		"trust-pass": "t",
		"store-pass": "s",
		"key-pass":   "k",
	})
}

func newBuilder(t *testing.T, r secrets.Resolver) *Builder {
	t.Helper()
	b, err := NewBuilder(r)
	require.NoError(t, err)
	return b
}

func TestNewBuilderRequiresResolver(t *testing.T) {
	_, err := NewBuilder(nil)
	assert.ErrorIs(t, err, errspkg.ErrResolverRequired)
}

func TestBuildSASLPlainConsumer(t *testing.T) {
	r := secrets.NewStatic(map[string]string{"user-ref": "alice", "pass-ref": "pw"})
	b := newBuilder(t, r)

	cfg, err := b.Build(context.Background(), testEndpoint,
		auth.SASLPlain{UsernameSecretID: "user-ref", PasswordSecretID: "pass-ref"},
		Consumer, Options{Side: auth.Source, CommitOffsets: true, ConsumerGroup: "relay"})
	require.NoError(t, err)

	assert.Equal(t, "broker1:9093,broker2:9093", cfg[KeyBootstrapServers])
	assert.Equal(t, ProtocolSASLPlaintext, cfg[KeySecurityProtocol])
	assert.Equal(t, MechanismPlain, cfg[KeySASLMechanism])
	assert.Equal(t, "alice", cfg[KeySASLUsername])
	assert.Equal(t, "pw", cfg[KeySASLPassword])
	assert.Equal(t, "relay", cfg[KeyGroupID])
	assert.Equal(t, "false", cfg[KeyEnableAutoCommit])
	assert.True(t, cfg.Bool(KeyCommitOnAck))
	assert.Equal(t, OffsetLatest, cfg[KeyAutoOffsetReset])
	assert.Equal(t, FormatBytes, cfg[KeyKeyDeserializer])
	assert.Equal(t, []string{"user-ref", "pass-ref"}, r.Lookups())
}

func TestBuildConsumerWithoutCommitHasNoGroup(t *testing.T) {
	b := newBuilder(t, sslResolver())

	cfg, err := b.Build(context.Background(), testEndpoint, sslCreds(), Consumer, Options{ConsumerGroup: "ignored"})
	require.NoError(t, err)

	_, hasGroup := cfg[KeyGroupID]
	assert.False(t, hasGroup)
	assert.False(t, cfg.Bool(KeyCommitOnAck))
}

func TestBuildConsumerDefaultsGroupFromTopic(t *testing.T) {
	b := newBuilder(t, sslResolver())

	cfg, err := b.Build(context.Background(), testEndpoint, sslCreds(), Consumer, Options{CommitOffsets: true, InitialOffset: OffsetEarliest})
	require.NoError(t, err)
	assert.Equal(t, "kafkarelay-orders", cfg[KeyGroupID])
	assert.Equal(t, OffsetEarliest, cfg[KeyAutoOffsetReset])
}

func TestBuildSSLProducer(t *testing.T) {
	b := newBuilder(t, sslResolver())

	cfg, err := b.Build(context.Background(), testEndpoint, sslCreds(), Producer, Options{
		Side:           auth.Destination,
		ClientID:       "relay-1",
		KafkaVersion:   "3.6.0",
		ConnectTimeout: 5 * time.Second,
	})
	require.NoError(t, err)

	assert.Equal(t, ProtocolSSL, cfg[KeySecurityProtocol])
	assert.Equal(t, "/etc/kafka/truststore.p12", cfg[KeyTruststoreLoc])
	assert.Equal(t, "t", cfg[KeyTruststorePass])
	assert.Equal(t, "/etc/kafka/keystore.p12", cfg[KeyKeystoreLoc])
	assert.Equal(t, "s", cfg[KeyKeystorePass])
	assert.Equal(t, "k", cfg[KeyKeyPass])
	assert.Equal(t, "all", cfg[KeyAcks])
	assert.Equal(t, "true", cfg[KeyIdempotence])
	assert.Equal(t, "1", cfg[KeyMaxInFlight])
	assert.Equal(t, "10", cfg[KeyRetries])
	assert.Equal(t, FormatBytes, cfg[KeyValueSerializer])
	assert.Equal(t, "relay-1", cfg[KeyClientID])
	assert.Equal(t, "3.6.0", cfg[KeyKafkaVersion])
	assert.Equal(t, "5000", cfg[KeyConnectTimeoutMs])
	_, hasGroup := cfg[KeyGroupID]
	assert.False(t, hasGroup)
}

func TestBuildProducerKeepsExplicitRetries(t *testing.T) {
	b := newBuilder(t, sslResolver())

	cfg, err := b.Build(context.Background(), testEndpoint, sslCreds(), Producer, Options{ProducerRetries: 3})
	require.NoError(t, err)
	assert.Equal(t, "3", cfg[KeyRetries])
}

func TestBuildIsDeterministic(t *testing.T) {
	opts := Options{Side: auth.Source, CommitOffsets: true}
	first, err := newBuilder(t, sslResolver()).Build(context.Background(), testEndpoint, sslCreds(), Consumer, opts)
	require.NoError(t, err)
	second, err := newBuilder(t, sslResolver()).Build(context.Background(), testEndpoint, sslCreds(), Consumer, opts)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestBuildFailsOnSecretResolution(t *testing.T) {
	r := sslResolver().Fail("key-pass", secrets.ErrAccessDenied)
	b := newBuilder(t, r)

	cfg, err := b.Build(context.Background(), testEndpoint, sslCreds(), Producer, Options{Side: auth.Destination})
	require.Error(t, err)
	assert.Nil(t, cfg)
	assert.True(t, errors.Is(err, errspkg.ErrSecretResolutionFailed))
	assert.True(t, errors.Is(err, secrets.ErrAccessDenied))

	var re *errspkg.RelayError
	require.True(t, errors.As(err, &re))
	assert.Equal(t, auth.FieldKeyPasswordSecretID, re.Field)
	assert.Equal(t, "key-pass", re.SecretID)
	assert.Equal(t, "destination", re.Side)
}

func TestBuildStopsAtFirstFailure(t *testing.T) {
	r := sslResolver().Fail("trust-pass", secrets.ErrNotFound)
	b := newBuilder(t, r)

	_, err := b.Build(context.Background(), testEndpoint, sslCreds(), Producer, Options{})
	require.Error(t, err)
	assert.Equal(t, []string{"trust-pass"}, r.Lookups())
}

func TestBuildReportsTimeoutDistinctly(t *testing.T) {
	slow := secrets.ResolverFunc(func(ctx context.Context, id string) (string, error) {
		<-ctx.Done()
		return "", ctx.Err()
	})
	b := newBuilder(t, slow)

	_, err := b.Build(context.Background(), testEndpoint,
		auth.SASLPlain{UsernameSecretID: "u", PasswordSecretID: "p"},
		Consumer, Options{SecretTimeout: 10 * time.Millisecond})
	require.Error(t, err)
	assert.True(t, errors.Is(err, errspkg.ErrSecretResolutionTimeout))
	assert.False(t, errors.Is(err, errspkg.ErrSecretResolutionFailed))
	assert.False(t, errors.Is(err, errspkg.ErrMissingCredentialField))
}

func TestBuildRejectsNilCredentials(t *testing.T) {
	_, err := newBuilder(t, sslResolver()).Build(context.Background(), testEndpoint, nil, Consumer, Options{})
	assert.Error(t, err)
}

func TestBuildRejectsUnknownRole(t *testing.T) {
	_, err := newBuilder(t, sslResolver()).Build(context.Background(), testEndpoint, sslCreds(), Role("admin"), Options{})
	assert.Error(t, err)
}

func TestRedacted(t *testing.T) {
	cfg := ClientConfig{
		KeySASLUsername:     "alice",
		KeySASLPassword:     "pw",
		KeyKeyPass:          "k",
		KeyBootstrapServers: "b:1",
	}

	r := cfg.Redacted()
	assert.Equal(t, "alice", r[KeySASLUsername])
	assert.Equal(t, redacted, r[KeySASLPassword])
	assert.Equal(t, redacted, r[KeyKeyPass])
	assert.Equal(t, "pw", cfg[KeySASLPassword], "original must stay untouched")

	s := cfg.String()
	assert.False(t, strings.Contains(s, "=pw"))
	assert.True(t, strings.HasPrefix(s, "bootstrap.servers=b:1"))
}

func TestServers(t *testing.T) {
	assert.Equal(t, []string{"a:1", "b:2"}, ClientConfig{KeyBootstrapServers: "a:1,b:2"}.Servers())
	assert.Nil(t, ClientConfig{}.Servers())
}
