package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/drblury/kafkarelay/internal/runtime/auth"
)

// Side groups the options of one end of the relay. Values are taken as given;
// validation happens when the relay is built.
type Side struct {
	// BootstrapServerAndTopic is the "<servers>;<topic>" descriptor.
	BootstrapServerAndTopic string
	// AuthenticationMode is SASL_PLAIN or SSL.
	AuthenticationMode string

	UsernameSecretID           string
	PasswordSecretID           string
	TruststoreLocation         string
	TruststorePasswordSecretID string
	KeystoreLocation           string
	KeystorePasswordSecretID   string
	KeyPasswordSecretID        string
}

// CredentialFields returns the credential options keyed by their field names.
// Blank options are included so validation can name them.
func (s Side) CredentialFields() auth.Fields {
	return auth.Fields{
		auth.FieldUsernameSecretID:           s.UsernameSecretID,
		auth.FieldPasswordSecretID:           s.PasswordSecretID,
		auth.FieldTruststoreLocation:         s.TruststoreLocation,
		auth.FieldTruststorePasswordSecretID: s.TruststorePasswordSecretID,
		auth.FieldKeystoreLocation:           s.KeystoreLocation,
		auth.FieldKeystorePasswordSecretID:   s.KeystorePasswordSecretID,
		auth.FieldKeyPasswordSecretID:        s.KeyPasswordSecretID,
	}
}

// Config is everything needed to build and run one relay.
type Config struct {
	Source      Side
	Destination Side

	// CommitOffsets commits source offsets for records the destination accepted.
	CommitOffsets bool
	// ConsumerGroup defaults to "kafkarelay-<source topic>" when commits are on.
	ConsumerGroup string
	// InitialOffset is "earliest" or "latest" and applies when the group has no
	// committed offset, or always when commits are off.
	InitialOffset   string
	ClientID        string
	KafkaVersion    string
	ProducerRetries int

	// Secret backend configuration. SecretBackend is "env", "file" or "aws".
	SecretBackend   string
	SecretEnvPrefix string
	SecretDir       string

	AWSRegion          string
	AWSAccessKeyID     string
	AWSSecretAccessKey string
	// AWSEndpoint optionally points to a custom endpoint (for example, LocalStack
	// in local development).
	AWSEndpoint string

	// SecretTimeout bounds each secret lookup.
	SecretTimeout time.Duration
	// ConnectTimeout bounds each broker dial.
	ConnectTimeout time.Duration
	// StartTimeout bounds how long the relay may take to start consuming.
	StartTimeout time.Duration

	// Metrics configuration.
	MetricsEnabled bool
	// MetricsPort is the port where Prometheus metrics and relay stats are exposed.
	MetricsPort int

	// LogLevel is one of debug, info, warn or error.
	LogLevel string
	// Verbose routes the Kafka client's own log lines to the debug log.
	Verbose bool
}

// Default returns a configuration with every optional value filled in.
func Default() *Config {
	return &Config{
		InitialOffset:   "latest",
		ProducerRetries: 10,
		SecretBackend:   "env",
		SecretTimeout:   10 * time.Second,
		ConnectTimeout:  30 * time.Second,
		StartTimeout:    60 * time.Second,
		MetricsPort:     9090,
		LogLevel:        "info",
	}
}

// Getter methods to implement secrets.Config.
func (c *Config) GetSecretBackend() string      { return c.SecretBackend }
func (c *Config) GetSecretEnvPrefix() string    { return c.SecretEnvPrefix }
func (c *Config) GetSecretDir() string          { return c.SecretDir }
func (c *Config) GetAWSRegion() string          { return c.AWSRegion }
func (c *Config) GetAWSAccessKeyID() string     { return c.AWSAccessKeyID }
func (c *Config) GetAWSSecretAccessKey() string { return c.AWSSecretAccessKey }
func (c *Config) GetAWSEndpoint() string        { return c.AWSEndpoint }

func (c Config) String() string {
	redacted := c
	if redacted.AWSSecretAccessKey != "" {
		redacted.AWSSecretAccessKey = "***REDACTED***"
	}
	if redacted.AWSAccessKeyID != "" {
		redacted.AWSAccessKeyID = "***REDACTED***"
	}
	// Use a type alias to avoid infinite recursion when printing
	type configAlias Config
	return fmt.Sprintf("%+v", configAlias(redacted))
}

// Validate checks the ambient settings. Endpoint descriptors and credentials
// are validated when the relay is built, in a fixed order and with dedicated
// error kinds, so they are not looked at here.
func (c *Config) Validate() error {
	var errs []error

	errs = append(errs, c.validateConsumer()...)
	errs = append(errs, c.validateSecrets()...)
	errs = append(errs, c.validateTimeouts()...)
	errs = append(errs, c.validatePorts()...)
	errs = append(errs, c.validateLogging()...)

	return errors.Join(errs...)
}

func (c *Config) validateConsumer() []error {
	var errs []error
	switch c.InitialOffset {
	case "", "earliest", "latest":
	default:
		errs = append(errs, fmt.Errorf("consumer: initial offset must be earliest or latest, got %q", c.InitialOffset))
	}
	if c.ProducerRetries < 1 {
		errs = append(errs, errors.New("producer: retries must be at least 1"))
	}
	return errs
}

func (c *Config) validateSecrets() []error {
	switch strings.ToLower(c.SecretBackend) {
	case "":
		return []error{errors.New("secrets: backend is required")}
	case "file":
		if c.SecretDir == "" {
			return []error{errors.New("secrets: directory is required for the file backend")}
		}
	case "aws":
		if c.AWSRegion == "" {
			return []error{errors.New("aws: region is required")}
		}
	}
	// env and custom backends have no required config
	return nil
}

func (c *Config) validateTimeouts() []error {
	var errs []error
	if c.SecretTimeout < 0 {
		errs = append(errs, errors.New("secrets: timeout cannot be negative"))
	}
	if c.ConnectTimeout < 0 {
		errs = append(errs, errors.New("kafka: connect timeout cannot be negative"))
	}
	if c.StartTimeout < 0 {
		errs = append(errs, errors.New("relay: start timeout cannot be negative"))
	}
	return errs
}

func (c *Config) validatePorts() []error {
	if c.MetricsPort < 0 || c.MetricsPort > 65535 {
		return []error{fmt.Errorf("metrics: invalid port %d", c.MetricsPort)}
	}
	if c.MetricsEnabled && c.MetricsPort == 0 {
		return []error{errors.New("metrics: port is required when metrics are enabled")}
	}
	return nil
}

func (c *Config) validateLogging() []error {
	switch strings.ToLower(c.LogLevel) {
	case "", "debug", "info", "warn", "warning", "error":
		return nil
	}
	return []error{fmt.Errorf("logging: unknown level %q", c.LogLevel)}
}

// ValidateConfig is a convenience function to validate a config pointer.
// Returns nil if the config is valid.
func ValidateConfig(c *Config) error {
	if c == nil {
		return errors.New("config is nil")
	}
	return c.Validate()
}
