// Package clientconfig turns a validated endpoint and credential bundle into
// the property map of a Kafka consumer or producer. Secret references are
// resolved here, and only here.
package clientconfig

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/drblury/kafkarelay/internal/runtime/auth"
	"github.com/drblury/kafkarelay/internal/runtime/endpoint"
	errspkg "github.com/drblury/kafkarelay/internal/runtime/errors"
	"github.com/drblury/kafkarelay/secrets"
)

// Role selects which half of the relay a configuration is for.
type Role string

const (
	Consumer Role = "consumer"
	Producer Role = "producer"
)

// Property keys. Names follow the Kafka client configuration vocabulary.
const (
	KeyBootstrapServers  = "bootstrap.servers"
	KeyClientID          = "client.id"
	KeyKafkaVersion      = "kafka.version"
	KeyConnectTimeoutMs  = "socket.connection.setup.timeout.ms"
	KeySecurityProtocol  = "security.protocol"
	KeySASLMechanism     = "sasl.mechanism"
	KeySASLUsername      = "sasl.username"
	KeySASLPassword      = "sasl.password"
	KeyTruststoreLoc     = "ssl.truststore.location"
	KeyTruststorePass    = "ssl.truststore.password"
	KeyKeystoreLoc       = "ssl.keystore.location"
	KeyKeystorePass      = "ssl.keystore.password"
	KeyKeyPass           = "ssl.key.password"
	KeyGroupID           = "group.id"
	KeyEnableAutoCommit  = "enable.auto.commit"
	KeyCommitOnAck       = "commit.offsets.on.ack"
	KeyAutoOffsetReset   = "auto.offset.reset"
	KeyKeyDeserializer   = "key.deserializer"
	KeyValueDeserializer = "value.deserializer"
	KeyAcks              = "acks"
	KeyIdempotence       = "enable.idempotence"
	KeyMaxInFlight       = "max.in.flight.requests.per.connection"
	KeyRetries           = "retries"
	KeyKeySerializer     = "key.serializer"
	KeyValueSerializer   = "value.serializer"
)

const (
	ProtocolSASLPlaintext = "SASL_PLAINTEXT"
	ProtocolSSL           = "SSL"
	MechanismPlain        = "PLAIN"
	FormatBytes           = "bytes"
	OffsetEarliest        = "earliest"
	OffsetLatest          = "latest"

	redacted = "***REDACTED***"
)

var secretKeys = map[string]bool{
	KeySASLPassword:   true,
	KeyTruststorePass: true,
	KeyKeystorePass:   true,
	KeyKeyPass:        true,
}

// ClientConfig is the property map handed to the Kafka transport.
type ClientConfig map[string]string

// Clone returns a shallow copy of the map.
func (c ClientConfig) Clone() ClientConfig {
	cloned := make(ClientConfig, len(c))
	for k, v := range c {
		cloned[k] = v
	}
	return cloned
}

// Redacted returns a copy with every secret value masked, safe to log.
func (c ClientConfig) Redacted() ClientConfig {
	cloned := c.Clone()
	for k := range cloned {
		if secretKeys[k] {
			cloned[k] = redacted
		}
	}
	return cloned
}

// String renders the redacted properties sorted by key.
func (c ClientConfig) String() string {
	r := c.Redacted()
	keys := make([]string, 0, len(r))
	for k := range r {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = k + "=" + r[k]
	}
	return strings.Join(parts, " ")
}

// Servers returns the bootstrap server list.
func (c ClientConfig) Servers() []string {
	if c[KeyBootstrapServers] == "" {
		return nil
	}
	return strings.Split(c[KeyBootstrapServers], ",")
}

// Bool reports whether key is set to "true".
func (c ClientConfig) Bool(key string) bool {
	return c[key] == "true"
}

// DefaultProducerRetries is used when Options leaves ProducerRetries unset.
const DefaultProducerRetries = 10

// Options carries the role-independent settings that shape a ClientConfig.
type Options struct {
	// Side is used for error reporting only.
	Side          auth.Side
	ClientID      string
	KafkaVersion  string
	ConsumerGroup string
	// CommitOffsets lets the consumer commit offsets once records are acknowledged downstream.
	CommitOffsets bool
	// InitialOffset is "earliest" or "latest"; empty means latest.
	InitialOffset string
	// ProducerRetries of zero selects DefaultProducerRetries.
	ProducerRetries int
	// SecretTimeout bounds each secret lookup. Zero disables the bound.
	SecretTimeout  time.Duration
	ConnectTimeout time.Duration
}

// Builder resolves secrets and assembles client configurations.
type Builder struct {
	resolver secrets.Resolver
}

// NewBuilder returns a Builder backed by resolver.
func NewBuilder(resolver secrets.Resolver) (*Builder, error) {
	if resolver == nil {
		return nil, errspkg.ErrResolverRequired
	}
	return &Builder{resolver: resolver}, nil
}

// Build returns the configuration for role. It fails on the first secret that
// cannot be resolved and never returns a partial map.
func (b *Builder) Build(ctx context.Context, ep endpoint.Endpoint, creds auth.Credentials, role Role, opts Options) (ClientConfig, error) {
	if creds == nil {
		return nil, fmt.Errorf("clientconfig: credentials are required for %s", opts.Side)
	}

	cfg := ClientConfig{
		KeyBootstrapServers: strings.Join(ep.BootstrapServers, ","),
	}
	if opts.ClientID != "" {
		cfg[KeyClientID] = opts.ClientID
	}
	if opts.KafkaVersion != "" {
		cfg[KeyKafkaVersion] = opts.KafkaVersion
	}
	if opts.ConnectTimeout > 0 {
		cfg[KeyConnectTimeoutMs] = strconv.FormatInt(opts.ConnectTimeout.Milliseconds(), 10)
	}

	w := &credentialWriter{ctx: ctx, builder: b, opts: opts, cfg: cfg}
	if err := creds.Accept(w); err != nil {
		return nil, err
	}

	switch role {
	case Consumer:
		applyConsumer(cfg, ep, opts)
	case Producer:
		applyProducer(cfg, opts)
	default:
		return nil, fmt.Errorf("clientconfig: unknown role %q", role)
	}

	return cfg, nil
}

func applyConsumer(cfg ClientConfig, ep endpoint.Endpoint, opts Options) {
	// Offsets are only ever committed for records the destination accepted,
	// so the client's own periodic auto-commit stays off.
	cfg[KeyEnableAutoCommit] = "false"
	cfg[KeyCommitOnAck] = strconv.FormatBool(opts.CommitOffsets)
	if opts.CommitOffsets {
		group := opts.ConsumerGroup
		if group == "" {
			group = "kafkarelay-" + ep.Topic
		}
		cfg[KeyGroupID] = group
	}

	reset := opts.InitialOffset
	if reset == "" {
		reset = OffsetLatest
	}
	cfg[KeyAutoOffsetReset] = reset
	cfg[KeyKeyDeserializer] = FormatBytes
	cfg[KeyValueDeserializer] = FormatBytes
}

func applyProducer(cfg ClientConfig, opts Options) {
	retries := opts.ProducerRetries
	if retries <= 0 {
		retries = DefaultProducerRetries
	}
	cfg[KeyAcks] = "all"
	cfg[KeyIdempotence] = "true"
	cfg[KeyMaxInFlight] = "1"
	cfg[KeyRetries] = strconv.Itoa(retries)
	cfg[KeyKeySerializer] = FormatBytes
	cfg[KeyValueSerializer] = FormatBytes
}

// credentialWriter resolves the secrets of one Credentials variant into cfg.
type credentialWriter struct {
	ctx     context.Context
	builder *Builder
	opts    Options
	cfg     ClientConfig
}

func (w *credentialWriter) VisitSASLPlain(c auth.SASLPlain) error {
	user, err := w.builder.resolve(w.ctx, w.opts, auth.FieldUsernameSecretID, c.UsernameSecretID)
	if err != nil {
		return err
	}
	pass, err := w.builder.resolve(w.ctx, w.opts, auth.FieldPasswordSecretID, c.PasswordSecretID)
	if err != nil {
		return err
	}

	w.cfg[KeySecurityProtocol] = ProtocolSASLPlaintext
	w.cfg[KeySASLMechanism] = MechanismPlain
	w.cfg[KeySASLUsername] = user
	w.cfg[KeySASLPassword] = pass
	return nil
}

func (w *credentialWriter) VisitSSL(c auth.SSL) error {
	trustPass, err := w.builder.resolve(w.ctx, w.opts, auth.FieldTruststorePasswordSecretID, c.TruststorePasswordSecretID)
	if err != nil {
		return err
	}
	storePass, err := w.builder.resolve(w.ctx, w.opts, auth.FieldKeystorePasswordSecretID, c.KeystorePasswordSecretID)
	if err != nil {
		return err
	}
	keyPass, err := w.builder.resolve(w.ctx, w.opts, auth.FieldKeyPasswordSecretID, c.KeyPasswordSecretID)
	if err != nil {
		return err
	}

	w.cfg[KeySecurityProtocol] = ProtocolSSL
	w.cfg[KeyTruststoreLoc] = c.TruststoreLocation
	w.cfg[KeyTruststorePass] = trustPass
	w.cfg[KeyKeystoreLoc] = c.KeystoreLocation
	w.cfg[KeyKeystorePass] = storePass
	w.cfg[KeyKeyPass] = keyPass
	return nil
}

func (b *Builder) resolve(ctx context.Context, opts Options, field, secretID string) (string, error) {
	if opts.SecretTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.SecretTimeout)
		defer cancel()
	}

	v, err := b.resolver.Resolve(ctx, secretID)
	if err == nil {
		return v, nil
	}

	kind := errspkg.KindSecretResolutionFailed
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		kind = errspkg.KindSecretResolutionTimeout
	}
	return "", &errspkg.RelayError{
		Kind:     kind,
		Side:     string(opts.Side),
		Field:    field,
		SecretID: secretID,
		Err:      err,
	}
}
