// Package relay wires a source subscriber to a destination publisher through
// an identity handler and hands the result to an execution engine.
//
// A source record is acknowledged only after the destination publish
// returned successfully. A failed publish nacks the record and the subscriber
// redelivers it, so delivery is at-least-once. Offsets, when committed at all,
// are committed for acknowledged records only.
package relay

import (
	"context"
	"errors"
	"fmt"
	"net"

	"github.com/IBM/sarama"
	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"

	"github.com/drblury/kafkarelay/internal/runtime/auth"
	"github.com/drblury/kafkarelay/internal/runtime/clientconfig"
	"github.com/drblury/kafkarelay/internal/runtime/endpoint"
	errspkg "github.com/drblury/kafkarelay/internal/runtime/errors"
	"github.com/drblury/kafkarelay/internal/runtime/logging"
	"github.com/drblury/kafkarelay/internal/runtime/transport"
)

// Topology is the read → identity → write graph submitted to an Engine.
type Topology struct {
	Name             string
	SourceTopic      string
	DestinationTopic string
	Subscriber       message.Subscriber
	Publisher        message.Publisher
}

func (t Topology) validate() error {
	var errs []error
	if t.Name == "" {
		errs = append(errs, errors.New("topology name is required"))
	}
	if t.SourceTopic == "" || t.DestinationTopic == "" {
		errs = append(errs, errspkg.ErrTopicRequired)
	}
	if t.Subscriber == nil {
		errs = append(errs, errors.New("subscriber is required"))
	}
	if t.Publisher == nil {
		errs = append(errs, errors.New("publisher is required"))
	}
	return errors.Join(errs...)
}

// Handle controls a submitted relay.
type Handle interface {
	Name() string
	// Done is closed once the relay stopped, for whatever reason.
	Done() <-chan struct{}
	// Err reports why the relay stopped. It is nil while running and after a
	// clean shutdown.
	Err() error
	Stats() Stats
	Close() error
}

// Engine runs topologies. Submit returns once the topology is running or has
// failed to start.
type Engine interface {
	Submit(ctx context.Context, t Topology) (Handle, error)
}

// SubscriberBuilder creates the source side from its client configuration.
type SubscriberBuilder func(clientconfig.ClientConfig, watermill.LoggerAdapter) (message.Subscriber, error)

// PublisherBuilder creates the destination side from its client configuration.
type PublisherBuilder func(clientconfig.ClientConfig, watermill.LoggerAdapter) (message.Publisher, error)

// Assembler builds both relay ends and submits them to Engine. Nil builders
// fall back to the Kafka transport.
type Assembler struct {
	Engine        Engine
	Logger        logging.ServiceLogger
	NewSubscriber SubscriberBuilder
	NewPublisher  PublisherBuilder
}

// Assemble creates the continuous relay from the source endpoint to the
// destination endpoint. Failures are reported as RelaySubmissionFailed, or
// BrokerConnectionTimeout when a broker could not be reached in time.
func (a *Assembler) Assemble(
	ctx context.Context,
	sourceCfg, destinationCfg clientconfig.ClientConfig,
	source, destination endpoint.Endpoint,
) (Handle, error) {
	if a.Engine == nil {
		return nil, errspkg.ErrEngineRequired
	}
	if a.Logger == nil {
		return nil, errspkg.ErrLoggerRequired
	}

	newSub, newPub := a.NewSubscriber, a.NewPublisher
	if newSub == nil {
		newSub = transport.NewSubscriber
	}
	if newPub == nil {
		newPub = transport.NewPublisher
	}

	name := fmt.Sprintf("relay[%s->%s]", source.Topic, destination.Topic)
	logger := a.Logger.With(logging.LogFields{
		"relay":               name,
		"source_servers":      source.BootstrapServers,
		"destination_servers": destination.BootstrapServers,
	})
	wmLogger := logging.NewWatermillAdapter(logger)

	sub, err := newSub(sourceCfg, wmLogger)
	if err != nil {
		return nil, submissionError(auth.Source, err)
	}
	pub, err := newPub(destinationCfg, wmLogger)
	if err != nil {
		_ = sub.Close()
		return nil, submissionError(auth.Destination, err)
	}

	h, err := a.Engine.Submit(ctx, Topology{
		Name:             name,
		SourceTopic:      source.Topic,
		DestinationTopic: destination.Topic,
		Subscriber:       sub,
		Publisher:        pub,
	})
	if err != nil {
		_ = pub.Close()
		_ = sub.Close()
		return nil, submissionError("", err)
	}

	logger.Info("Relay running", nil)
	return h, nil
}

// submissionError classifies an engine or client failure. Errors that are
// already classified pass through.
func submissionError(side auth.Side, err error) error {
	var re *errspkg.RelayError
	if errors.As(err, &re) {
		return err
	}

	kind := errspkg.KindRelaySubmissionFailed
	if isConnectTimeout(err) {
		kind = errspkg.KindBrokerConnectionTimeout
	}
	return &errspkg.RelayError{Kind: kind, Side: string(side), Err: err}
}

// isConnectTimeout reports a dial that timed out or a client that gave up
// after exhausting every bootstrap broker.
func isConnectTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, sarama.ErrOutOfBrokers) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}
