package transport

import (
	"fmt"
	"strconv"
	"time"

	"github.com/IBM/sarama"
	"github.com/ThreeDotsLabs/watermill-kafka/v3/pkg/kafka"

	"github.com/drblury/kafkarelay/internal/runtime/clientconfig"
)

// SaramaConfig translates a client property map into a sarama configuration
// for role. Unknown property keys are ignored.
func SaramaConfig(cfg clientconfig.ClientConfig, role clientconfig.Role) (*sarama.Config, error) {
	var sc *sarama.Config
	switch role {
	case clientconfig.Consumer:
		sc = kafka.DefaultSaramaSubscriberConfig()
	case clientconfig.Producer:
		sc = kafka.DefaultSaramaSyncPublisherConfig()
	default:
		return nil, fmt.Errorf("unknown client role %q", role)
	}

	if len(cfg.Servers()) == 0 {
		return nil, fmt.Errorf("%s is required", clientconfig.KeyBootstrapServers)
	}

	if id := cfg[clientconfig.KeyClientID]; id != "" {
		sc.ClientID = id
	}
	if v := cfg[clientconfig.KeyKafkaVersion]; v != "" {
		version, err := sarama.ParseKafkaVersion(v)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", clientconfig.KeyKafkaVersion, err)
		}
		sc.Version = version
	}
	if raw := cfg[clientconfig.KeyConnectTimeoutMs]; raw != "" {
		ms, err := positiveInt(clientconfig.KeyConnectTimeoutMs, raw)
		if err != nil {
			return nil, err
		}
		sc.Net.DialTimeout = time.Duration(ms) * time.Millisecond
	}

	if err := applySecurity(sc, cfg); err != nil {
		return nil, err
	}

	var err error
	if role == clientconfig.Consumer {
		err = applyConsumer(sc, cfg)
	} else {
		err = applyProducer(sc, cfg)
	}
	if err != nil {
		return nil, err
	}

	if err := sc.Validate(); err != nil {
		return nil, fmt.Errorf("invalid %s configuration: %w", role, err)
	}
	return sc, nil
}

func applySecurity(sc *sarama.Config, cfg clientconfig.ClientConfig) error {
	switch protocol := cfg[clientconfig.KeySecurityProtocol]; protocol {
	case "", "PLAINTEXT":
		return nil
	case clientconfig.ProtocolSASLPlaintext:
		if mech := cfg[clientconfig.KeySASLMechanism]; mech != clientconfig.MechanismPlain {
			return fmt.Errorf("unsupported %s %q", clientconfig.KeySASLMechanism, mech)
		}
		sc.Net.SASL.Enable = true
		sc.Net.SASL.Mechanism = sarama.SASLTypePlaintext
		sc.Net.SASL.Handshake = true
		sc.Net.SASL.User = cfg[clientconfig.KeySASLUsername]
		sc.Net.SASL.Password = cfg[clientconfig.KeySASLPassword]
		return nil
	case clientconfig.ProtocolSSL:
		tc, err := tlsConfig(cfg)
		if err != nil {
			return err
		}
		sc.Net.TLS.Enable = true
		sc.Net.TLS.Config = tc
		return nil
	default:
		return fmt.Errorf("unsupported %s %q", clientconfig.KeySecurityProtocol, protocol)
	}
}

func applyConsumer(sc *sarama.Config, cfg clientconfig.ClientConfig) error {
	switch reset := cfg[clientconfig.KeyAutoOffsetReset]; reset {
	case "", clientconfig.OffsetLatest:
		sc.Consumer.Offsets.Initial = sarama.OffsetNewest
	case clientconfig.OffsetEarliest:
		sc.Consumer.Offsets.Initial = sarama.OffsetOldest
	default:
		return fmt.Errorf("unsupported %s %q", clientconfig.KeyAutoOffsetReset, reset)
	}

	sc.Consumer.Return.Errors = true
	// The subscriber marks an offset only after the message was acked, and
	// sarama's periodic commit flushes marked offsets only. With commits
	// disabled nothing is flushed at all.
	sc.Consumer.Offsets.AutoCommit.Enable = cfg.Bool(clientconfig.KeyCommitOnAck)
	return nil
}

func applyProducer(sc *sarama.Config, cfg clientconfig.ClientConfig) error {
	switch acks := cfg[clientconfig.KeyAcks]; acks {
	case "", "all", "-1":
		sc.Producer.RequiredAcks = sarama.WaitForAll
	case "1":
		sc.Producer.RequiredAcks = sarama.WaitForLocal
	case "0":
		sc.Producer.RequiredAcks = sarama.NoResponse
	default:
		return fmt.Errorf("unsupported %s %q", clientconfig.KeyAcks, acks)
	}

	if raw := cfg[clientconfig.KeyMaxInFlight]; raw != "" {
		n, err := positiveInt(clientconfig.KeyMaxInFlight, raw)
		if err != nil {
			return err
		}
		sc.Net.MaxOpenRequests = n
	}
	if raw := cfg[clientconfig.KeyRetries]; raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			return fmt.Errorf("%s must be a non-negative integer, got %q", clientconfig.KeyRetries, raw)
		}
		sc.Producer.Retry.Max = n
	}

	// Idempotence needs broker protocol 0.11 or newer; Validate rejects an
	// older explicit kafka.version.
	sc.Producer.Idempotent = cfg.Bool(clientconfig.KeyIdempotence)

	sc.Producer.Return.Successes = true
	sc.Producer.Return.Errors = true
	return nil
}

func positiveInt(key, raw string) (int, error) {
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("%s must be a positive integer, got %q", key, raw)
	}
	return n, nil
}
