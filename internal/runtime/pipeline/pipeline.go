// Package pipeline turns a loaded configuration into a running relay.
//
// Construction is fail-fast and ordered: source authentication, destination
// authentication, source endpoint, destination endpoint. The validated result
// is frozen into a RelaySpec before any secret is resolved or any broker is
// contacted. Client configurations are then built (consumer first) and the
// relay is submitted.
package pipeline

import (
	"context"
	"errors"

	"github.com/drblury/kafkarelay/internal/runtime/auth"
	"github.com/drblury/kafkarelay/internal/runtime/clientconfig"
	"github.com/drblury/kafkarelay/internal/runtime/config"
	"github.com/drblury/kafkarelay/internal/runtime/endpoint"
	errspkg "github.com/drblury/kafkarelay/internal/runtime/errors"
	"github.com/drblury/kafkarelay/internal/runtime/ids"
	"github.com/drblury/kafkarelay/internal/runtime/logging"
	"github.com/drblury/kafkarelay/internal/runtime/relay"
	"github.com/drblury/kafkarelay/secrets"
)

// RelaySpec is the validated, immutable description of a relay.
type RelaySpec struct {
	source      endpoint.Endpoint
	destination endpoint.Endpoint
	sourceAuth  auth.Credentials
	destAuth    auth.Credentials
	commit      bool
}

// Source returns a copy of the source endpoint.
func (s RelaySpec) Source() endpoint.Endpoint { return s.source.Clone() }

// Destination returns a copy of the destination endpoint.
func (s RelaySpec) Destination() endpoint.Endpoint { return s.destination.Clone() }

// SourceCredentials returns the source credentials. Variants are values and never alias the RelaySpec.
func (s RelaySpec) SourceCredentials() auth.Credentials { return s.sourceAuth }

func (s RelaySpec) DestinationCredentials() auth.Credentials { return s.destAuth }

// CommitOffsets reports whether consumed offsets are committed after the
// destination accepted the record.
func (s RelaySpec) CommitOffsets() bool { return s.commit }

// Build validates cfg and freezes the result. It never contacts a secret
// backend or a broker.
func Build(cfg *config.Config) (RelaySpec, error) {
	if cfg == nil {
		return RelaySpec{}, errspkg.ErrConfigRequired
	}

	srcAuth, err := auth.Validate(auth.Source, auth.Mode(cfg.Source.AuthenticationMode), cfg.Source.CredentialFields())
	if err != nil {
		return RelaySpec{}, err
	}
	dstAuth, err := auth.Validate(auth.Destination, auth.Mode(cfg.Destination.AuthenticationMode), cfg.Destination.CredentialFields())
	if err != nil {
		return RelaySpec{}, err
	}

	src, err := parseEndpoint(auth.Source, cfg.Source.BootstrapServerAndTopic)
	if err != nil {
		return RelaySpec{}, err
	}
	dst, err := parseEndpoint(auth.Destination, cfg.Destination.BootstrapServerAndTopic)
	if err != nil {
		return RelaySpec{}, err
	}

	return RelaySpec{
		source:      src,
		destination: dst,
		sourceAuth:  srcAuth,
		destAuth:    dstAuth,
		commit:      cfg.CommitOffsets,
	}, nil
}

func parseEndpoint(side auth.Side, descriptor string) (endpoint.Endpoint, error) {
	ep, err := endpoint.Parse(descriptor)
	if err != nil {
		var re *errspkg.RelayError
		if errors.As(err, &re) {
			re.Side = string(side)
		}
		return endpoint.Endpoint{}, err
	}
	return ep, nil
}

// Deps are the collaborators Run needs. Resolver, Engine and Logger are
// required; nil builders use the Kafka transport.
type Deps struct {
	Resolver      secrets.Resolver
	Engine        relay.Engine
	Logger        logging.ServiceLogger
	NewSubscriber relay.SubscriberBuilder
	NewPublisher  relay.PublisherBuilder
}

func (d Deps) validate() error {
	switch {
	case d.Resolver == nil:
		return errspkg.ErrResolverRequired
	case d.Engine == nil:
		return errspkg.ErrEngineRequired
	case d.Logger == nil:
		return errspkg.ErrLoggerRequired
	}
	return nil
}

// Run validates cfg, builds both client configurations and submits the relay.
// Nothing is submitted when any step fails.
func Run(ctx context.Context, cfg *config.Config, deps Deps) (relay.Handle, error) {
	if err := deps.validate(); err != nil {
		return nil, err
	}
	if err := config.ValidateConfig(cfg); err != nil {
		return nil, errspkg.NewConfigValidationError(err)
	}

	spec, err := Build(cfg)
	if err != nil {
		return nil, err
	}

	builder, err := clientconfig.NewBuilder(deps.Resolver)
	if err != nil {
		return nil, err
	}

	opts := Options(cfg, spec)

	opts.Side = auth.Source
	sourceCfg, err := builder.Build(ctx, spec.Source(), spec.SourceCredentials(), clientconfig.Consumer, opts)
	if err != nil {
		return nil, err
	}
	opts.Side = auth.Destination
	destCfg, err := builder.Build(ctx, spec.Destination(), spec.DestinationCredentials(), clientconfig.Producer, opts)
	if err != nil {
		return nil, err
	}

	deps.Logger.Debug("Client configurations built", logging.LogFields{
		"source":      sourceCfg.Redacted().String(),
		"destination": destCfg.Redacted().String(),
	})

	assembler := &relay.Assembler{
		Engine:        deps.Engine,
		Logger:        deps.Logger,
		NewSubscriber: deps.NewSubscriber,
		NewPublisher:  deps.NewPublisher,
	}
	h, err := assembler.Assemble(ctx, sourceCfg, destCfg, spec.Source(), spec.Destination())
	if err != nil {
		return nil, err
	}
	return h, nil
}

// Options derives the client options shared by both sides. A missing client
// id becomes "kafkarelay-<ULID>".
func Options(cfg *config.Config, spec RelaySpec) clientconfig.Options {
	clientID := cfg.ClientID
	if clientID == "" {
		clientID = ids.ClientID("kafkarelay")
	}
	return clientconfig.Options{
		ClientID:        clientID,
		KafkaVersion:    cfg.KafkaVersion,
		ConsumerGroup:   cfg.ConsumerGroup,
		CommitOffsets:   spec.CommitOffsets(),
		InitialOffset:   cfg.InitialOffset,
		ProducerRetries: cfg.ProducerRetries,
		SecretTimeout:   cfg.SecretTimeout,
		ConnectTimeout:  cfg.ConnectTimeout,
	}
}
