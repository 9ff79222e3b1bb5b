// Package auth validates the per-side authentication settings of a relay and
// freezes them into a Credentials variant. Validation never contacts a secret
// backend; it only checks that every required reference is present.
package auth

import (
	"strings"

	errspkg "github.com/drblury/kafkarelay/internal/runtime/errors"
)

// Side names which end of the relay a setting belongs to.
type Side string

const (
	Source      Side = "source"
	Destination Side = "destination"
)

// Mode is the declared authentication mechanism of one side.
type Mode string

const (
	ModeNone      Mode = "NONE"
	ModeSASLPlain Mode = "SASL_PLAIN"
	ModeSSL       Mode = "SSL"
)

// Field names as they appear on the configuration surface.
const (
	FieldUsernameSecretID           = "usernameSecretId"
	FieldPasswordSecretID           = "passwordSecretId"
	FieldTruststoreLocation         = "truststoreLocation"
	FieldTruststorePasswordSecretID = "truststorePasswordSecretId"
	FieldKeystoreLocation           = "keystoreLocation"
	FieldKeystorePasswordSecretID   = "keystorePasswordSecretId"
	FieldKeyPasswordSecretID        = "keyPasswordSecretId"
)

// Fields is the flat bag of credential references read from configuration.
// Absent and blank entries are treated the same.
type Fields map[string]string

// Credentials is the validated credential bundle of one side. The set of
// implementations is closed; consumers handle every variant through Visitor.
type Credentials interface {
	Mode() Mode
	Accept(v Visitor) error
	credentials()
}

// Visitor must handle every Credentials variant. Adding a variant adds a
// method here, so every consumer stops compiling until it handles it.
type Visitor interface {
	VisitSASLPlain(SASLPlain) error
	VisitSSL(SSL) error
}

// SASLPlain references the username and password secrets for SASL/PLAIN.
type SASLPlain struct {
	UsernameSecretID string
	PasswordSecretID string
}

func (SASLPlain) Mode() Mode               { return ModeSASLPlain }
func (c SASLPlain) Accept(v Visitor) error { return v.VisitSASLPlain(c) }
func (SASLPlain) credentials()             {}

// SSL references the trust and key stores used for mutual TLS.
type SSL struct {
	TruststoreLocation         string
	TruststorePasswordSecretID string
	KeystoreLocation           string
	KeystorePasswordSecretID   string
	KeyPasswordSecretID        string
}

func (SSL) Mode() Mode               { return ModeSSL }
func (c SSL) Accept(v Visitor) error { return v.VisitSSL(c) }
func (SSL) credentials()             {}

// RequiredFields lists, in validation order, the fields a mode needs.
// Unsupported modes return nil.
func RequiredFields(mode Mode) []string {
	switch mode {
	case ModeSASLPlain:
		return []string{FieldUsernameSecretID, FieldPasswordSecretID}
	case ModeSSL:
		return []string{
			FieldTruststoreLocation,
			FieldTruststorePasswordSecretID,
			FieldKeystoreLocation,
			FieldKeystorePasswordSecretID,
			FieldKeyPasswordSecretID,
		}
	default:
		return nil
	}
}

// Validate checks the fields required by mode and returns the matching
// Credentials. The first missing or blank field is reported.
func Validate(side Side, mode Mode, fields Fields) (Credentials, error) {
	required := RequiredFields(mode)
	if required == nil {
		return nil, &errspkg.RelayError{
			Kind: errspkg.KindUnsupportedAuthenticationMode,
			Side: string(side),
			Mode: string(mode),
		}
	}

	values := make(map[string]string, len(required))
	for _, name := range required {
		v := strings.TrimSpace(fields[name])
		if v == "" {
			return nil, &errspkg.RelayError{
				Kind:  errspkg.KindMissingCredentialField,
				Side:  string(side),
				Mode:  string(mode),
				Field: name,
			}
		}
		values[name] = v
	}

	switch mode {
	case ModeSASLPlain:
		return SASLPlain{
			UsernameSecretID: values[FieldUsernameSecretID],
			PasswordSecretID: values[FieldPasswordSecretID],
		}, nil
	default:
		return SSL{
			TruststoreLocation:         values[FieldTruststoreLocation],
			TruststorePasswordSecretID: values[FieldTruststorePasswordSecretID],
			KeystoreLocation:           values[FieldKeystoreLocation],
			KeystorePasswordSecretID:   values[FieldKeystorePasswordSecretID],
			KeyPasswordSecretID:        values[FieldKeyPasswordSecretID],
		}, nil
	}
}
