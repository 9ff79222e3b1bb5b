// Package env resolves secrets from process environment variables.
package env

import (
	"context"
	"fmt"
	"os"
	"strings"
	"unicode"

	"github.com/ThreeDotsLabs/watermill"

	"github.com/drblury/kafkarelay/secrets"
)

// BackendName is the name used to register this backend.
const BackendName = "env"

// LookupEnv allows overriding environment access for testing.
var LookupEnv = os.LookupEnv

func init() {
	Register()
}

// Register adds this backend to the default registry.
func Register() {
	secrets.Register(BackendName, Build)
}

// Build creates an environment resolver using the configured prefix.
func Build(_ context.Context, cfg secrets.Config, logger watermill.LoggerAdapter) (secrets.Resolver, error) {
	prefix := cfg.GetSecretEnvPrefix()
	logger.Info("Using environment secret backend", watermill.LogFields{"prefix": prefix})
	return &Resolver{Prefix: prefix}, nil
}

// Resolver reads PREFIX + normalised(secretID). Normalisation upper-cases the
// identifier and replaces every character outside [A-Z0-9_] with '_', so
// "kafka/source-password" becomes "KAFKA_SOURCE_PASSWORD".
type Resolver struct {
	Prefix string
}

func (r *Resolver) Resolve(ctx context.Context, secretID string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	name := r.Prefix + VariableName(secretID)
	v, ok := LookupEnv(name)
	if !ok {
		return "", fmt.Errorf("%w: environment variable %s is not set", secrets.ErrNotFound, name)
	}
	return v, nil
}

// VariableName normalises a secret identifier into an environment variable name.
func VariableName(secretID string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z':
			return unicode.ToUpper(r)
		case r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_':
			return r
		default:
			return '_'
		}
	}, secretID)
}
