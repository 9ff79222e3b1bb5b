// Package transport builds the watermill-kafka subscriber and publisher that
// form the two ends of a relay.
package transport

import (
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill-kafka/v3/pkg/kafka"
	"github.com/ThreeDotsLabs/watermill/message"

	"github.com/drblury/kafkarelay/internal/runtime/clientconfig"
)

const (
	// NackResendSleep is how long the subscriber waits before redelivering a
	// record whose publish failed.
	NackResendSleep     = 250 * time.Millisecond
	ReconnectRetrySleep = time.Second
)

var (
	PublisherFactory = func(cfg kafka.PublisherConfig, logger watermill.LoggerAdapter) (message.Publisher, error) {
		return kafka.NewPublisher(cfg, logger)
	}
	SubscriberFactory = func(cfg kafka.SubscriberConfig, logger watermill.LoggerAdapter) (message.Subscriber, error) {
		return kafka.NewSubscriber(cfg, logger)
	}
)

// NewSubscriber returns a subscriber for the source side. Without
// commit.offsets.on.ack it reads partitions directly and joins no consumer
// group, so no offsets are ever committed.
func NewSubscriber(cfg clientconfig.ClientConfig, logger watermill.LoggerAdapter) (message.Subscriber, error) {
	sc, err := SaramaConfig(cfg, clientconfig.Consumer)
	if err != nil {
		return nil, err
	}

	group := ""
	if cfg.Bool(clientconfig.KeyCommitOnAck) {
		group = cfg[clientconfig.KeyGroupID]
	}

	return SubscriberFactory(
		kafka.SubscriberConfig{
			Brokers:               cfg.Servers(),
			Unmarshaler:           RecordCodec{},
			OverwriteSaramaConfig: sc,
			ConsumerGroup:         group,
			NackResendSleep:       NackResendSleep,
			ReconnectRetrySleep:   ReconnectRetrySleep,
		},
		logger,
	)
}

// NewPublisher returns a synchronous publisher for the destination side.
func NewPublisher(cfg clientconfig.ClientConfig, logger watermill.LoggerAdapter) (message.Publisher, error) {
	sc, err := SaramaConfig(cfg, clientconfig.Producer)
	if err != nil {
		return nil, err
	}

	return PublisherFactory(
		kafka.PublisherConfig{
			Brokers:               cfg.Servers(),
			Marshaler:             RecordCodec{},
			OverwriteSaramaConfig: sc,
		},
		logger,
	)
}
