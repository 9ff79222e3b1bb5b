package kafkarelay

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"

	authpkg "github.com/drblury/kafkarelay/internal/runtime/auth"
	configpkg "github.com/drblury/kafkarelay/internal/runtime/config"
	endpointpkg "github.com/drblury/kafkarelay/internal/runtime/endpoint"
	errspkg "github.com/drblury/kafkarelay/internal/runtime/errors"
	jsoncodec "github.com/drblury/kafkarelay/internal/runtime/jsoncodec"
	loggingpkg "github.com/drblury/kafkarelay/internal/runtime/logging"
	"github.com/drblury/kafkarelay/internal/runtime/pipeline"
	relaypkg "github.com/drblury/kafkarelay/internal/runtime/relay"
	templatepkg "github.com/drblury/kafkarelay/internal/runtime/template"
	"github.com/drblury/kafkarelay/secrets"
	_ "github.com/drblury/kafkarelay/secrets/backends"
)

type (
	Config     = configpkg.Config
	SideConfig = configpkg.Side

	RelaySpec = pipeline.RelaySpec
	Deps      = pipeline.Deps

	Endpoint    = endpointpkg.Endpoint
	Credentials = authpkg.Credentials
	SASLPlain   = authpkg.SASLPlain
	SSL         = authpkg.SSL
	AuthMode    = authpkg.Mode

	Engine                 = relaypkg.Engine
	EngineConfig           = relaypkg.EngineConfig
	Handle                 = relaypkg.Handle
	Stats                  = relaypkg.Stats
	MiddlewareRegistration = relaypkg.MiddlewareRegistration
	MiddlewareEnv          = relaypkg.MiddlewareEnv

	SecretResolver = secrets.Resolver

	LogFields     = loggingpkg.LogFields
	ServiceLogger = loggingpkg.ServiceLogger

	TemplateMetadata = templatepkg.Metadata

	RelayError            = errspkg.RelayError
	ErrorKind             = errspkg.Kind
	ConfigValidationError = errspkg.ConfigValidationError
)

const (
	AuthSASLPlain = authpkg.ModeSASLPlain
	AuthSSL       = authpkg.ModeSSL

	KindMissingEndpointDescriptor     = errspkg.KindMissingEndpointDescriptor
	KindInvalidEndpointDescriptor     = errspkg.KindInvalidEndpointDescriptor
	KindMissingCredentialField        = errspkg.KindMissingCredentialField
	KindUnsupportedAuthenticationMode = errspkg.KindUnsupportedAuthenticationMode
	KindSecretResolutionFailed        = errspkg.KindSecretResolutionFailed
	KindSecretResolutionTimeout       = errspkg.KindSecretResolutionTimeout
	KindRelaySubmissionFailed         = errspkg.KindRelaySubmissionFailed
	KindBrokerConnectionTimeout       = errspkg.KindBrokerConnectionTimeout
)

var (
	DefaultConfig  = configpkg.Default
	LoadConfigFile = configpkg.LoadFile
	ValidateConfig = configpkg.ValidateConfig

	Build = pipeline.Build
	Run   = pipeline.Run

	ParseEndpoint      = endpointpkg.Parse
	ValidateCredential = authpkg.Validate

	NewWatermillEngine = relaypkg.NewWatermillEngine
	DefaultMiddlewares = relaypkg.DefaultMiddlewares

	NewSecretResolver = secrets.Build
	NewStaticSecrets  = secrets.NewStatic

	NewSlogServiceLogger      = loggingpkg.NewSlogServiceLogger
	NewWatermillServiceLogger = loggingpkg.NewWatermillServiceLogger

	KafkaToKafkaTemplate = templatepkg.KafkaToKafka
	LookupTemplate       = templatepkg.Lookup

	ErrorKindOf = errspkg.KindOf

	Marshal       = jsoncodec.Marshal
	MarshalIndent = jsoncodec.MarshalIndent
	Unmarshal     = jsoncodec.Unmarshal

	ErrMissingEndpointDescriptor     = errspkg.ErrMissingEndpointDescriptor
	ErrInvalidEndpointDescriptor     = errspkg.ErrInvalidEndpointDescriptor
	ErrMissingCredentialField        = errspkg.ErrMissingCredentialField
	ErrUnsupportedAuthenticationMode = errspkg.ErrUnsupportedAuthenticationMode
	ErrSecretResolutionFailed        = errspkg.ErrSecretResolutionFailed
	ErrSecretResolutionTimeout       = errspkg.ErrSecretResolutionTimeout
	ErrRelaySubmissionFailed         = errspkg.ErrRelaySubmissionFailed
	ErrBrokerConnectionTimeout       = errspkg.ErrBrokerConnectionTimeout

	ErrConfigRequired   = errspkg.ErrConfigRequired
	ErrLoggerRequired   = errspkg.ErrLoggerRequired
	ErrResolverRequired = errspkg.ErrResolverRequired
	ErrEngineRequired   = errspkg.ErrEngineRequired
)

// Start resolves the secret backend named by cfg and runs the relay on a
// Watermill engine. reg may be nil to disable metrics.
func Start(ctx context.Context, cfg *Config, logger ServiceLogger, reg prometheus.Registerer) (Handle, error) {
	if cfg == nil {
		return nil, ErrConfigRequired
	}
	if logger == nil {
		return nil, ErrLoggerRequired
	}
	if err := cfg.Validate(); err != nil {
		return nil, errspkg.NewConfigValidationError(err)
	}

	resolver, err := secrets.Build(ctx, cfg, loggingpkg.NewWatermillAdapter(logger))
	if err != nil {
		return nil, err
	}
	engine, err := relaypkg.NewWatermillEngine(logger, relaypkg.EngineConfig{
		Registerer:   reg,
		StartTimeout: cfg.StartTimeout,
	})
	if err != nil {
		return nil, err
	}
	return pipeline.Run(ctx, cfg, pipeline.Deps{Resolver: resolver, Engine: engine, Logger: logger})
}
