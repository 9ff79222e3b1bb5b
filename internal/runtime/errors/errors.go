package errors

import (
	sterrors "errors"
	"fmt"
	"strings"
)

// Kind classifies relay construction and submission failures.
type Kind string

const (
	KindMissingEndpointDescriptor     Kind = "MissingEndpointDescriptor"
	KindInvalidEndpointDescriptor     Kind = "InvalidEndpointDescriptor"
	KindMissingCredentialField        Kind = "MissingCredentialField"
	KindUnsupportedAuthenticationMode Kind = "UnsupportedAuthenticationMode"
	KindSecretResolutionFailed        Kind = "SecretResolutionFailed"
	KindSecretResolutionTimeout       Kind = "SecretResolutionTimeout"
	KindRelaySubmissionFailed         Kind = "RelaySubmissionFailed"
	KindBrokerConnectionTimeout       Kind = "BrokerConnectionTimeout"
)

// Sentinels for errors.Is matching on the failure kind alone.
var (
	ErrMissingEndpointDescriptor     = &RelayError{Kind: KindMissingEndpointDescriptor}
	ErrInvalidEndpointDescriptor     = &RelayError{Kind: KindInvalidEndpointDescriptor}
	ErrMissingCredentialField        = &RelayError{Kind: KindMissingCredentialField}
	ErrUnsupportedAuthenticationMode = &RelayError{Kind: KindUnsupportedAuthenticationMode}
	ErrSecretResolutionFailed        = &RelayError{Kind: KindSecretResolutionFailed}
	ErrSecretResolutionTimeout       = &RelayError{Kind: KindSecretResolutionTimeout}
	ErrRelaySubmissionFailed         = &RelayError{Kind: KindRelaySubmissionFailed}
	ErrBrokerConnectionTimeout       = &RelayError{Kind: KindBrokerConnectionTimeout}
)

var (
	ErrConfigRequired   = sterrors.New("kafkarelay: configuration is required")
	ErrLoggerRequired   = sterrors.New("kafkarelay: logger is required")
	ErrResolverRequired = sterrors.New("kafkarelay: secret resolver is required")
	ErrEngineRequired   = sterrors.New("kafkarelay: execution engine is required")
	ErrTopicRequired    = sterrors.New("kafkarelay: topic is required")
)

// RelayError carries enough structured detail to diagnose a failure without
// reading the source. Only the fields relevant to Kind are populated.
type RelayError struct {
	Kind       Kind
	Side       string
	Field      string
	Mode       string
	Descriptor string
	SecretID   string
	Err        error
}

func (e *RelayError) Error() string {
	var b strings.Builder
	b.WriteString("kafkarelay: ")
	b.WriteString(string(e.Kind))

	var parts []string
	if e.Side != "" {
		parts = append(parts, "side="+e.Side)
	}
	if e.Field != "" {
		parts = append(parts, "field="+e.Field)
	}
	if e.Mode != "" {
		parts = append(parts, fmt.Sprintf("mode=%q", e.Mode))
	}
	if e.Descriptor != "" {
		parts = append(parts, fmt.Sprintf("descriptor=%q", e.Descriptor))
	}
	if e.SecretID != "" {
		parts = append(parts, fmt.Sprintf("secret=%q", e.SecretID))
	}
	if len(parts) > 0 {
		b.WriteString(" (")
		b.WriteString(strings.Join(parts, ", "))
		b.WriteString(")")
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *RelayError) Unwrap() error { return e.Err }

// Is reports whether target is a RelayError of the same Kind.
func (e *RelayError) Is(target error) bool {
	t, ok := target.(*RelayError)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// KindOf returns the Kind of the first RelayError in err's chain.
func KindOf(err error) (Kind, bool) {
	var re *RelayError
	if sterrors.As(err, &re) {
		return re.Kind, true
	}
	return "", false
}

// ConfigValidationError wraps ambient configuration problems (ports,
// timeouts, unknown backends) that are not part of the relay taxonomy.
type ConfigValidationError struct {
	Err error
}

func (e ConfigValidationError) Error() string {
	return "kafkarelay: invalid configuration: " + e.Err.Error()
}

func (e ConfigValidationError) Unwrap() error { return e.Err }

// NewConfigValidationError returns nil when err is nil.
func NewConfigValidationError(err error) error {
	if err == nil {
		return nil
	}
	return ConfigValidationError{Err: err}
}
