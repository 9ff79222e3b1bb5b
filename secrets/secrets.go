// Package secrets defines the secret resolution contract used when relay
// client configurations are built. Each backend (env, file, aws) lives in its
// own sub-package and registers itself with the backend registry.
package secrets

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

var (
	// ErrNotFound reports that the backend has no secret under the identifier.
	ErrNotFound = errors.New("secret not found")
	// ErrAccessDenied reports that the caller may not read the secret.
	ErrAccessDenied = errors.New("secret access denied")
)

// Resolver maps a secret identifier to its value.
type Resolver interface {
	Resolve(ctx context.Context, secretID string) (string, error)
}

// ResolverFunc adapts a plain function to Resolver.
type ResolverFunc func(ctx context.Context, secretID string) (string, error)

func (f ResolverFunc) Resolve(ctx context.Context, secretID string) (string, error) {
	return f(ctx, secretID)
}

// Config provides the values backends need without depending on the full
// configuration package.
type Config interface {
	// GetSecretBackend returns the backend name, e.g. "env", "file" or "aws".
	GetSecretBackend() string

	// Env
	GetSecretEnvPrefix() string

	// File
	GetSecretDir() string

	// AWS Secrets Manager
	GetAWSRegion() string
	GetAWSAccessKeyID() string
	GetAWSSecretAccessKey() string
	GetAWSEndpoint() string
}

// Static resolves from an in-memory map. It is safe for concurrent use and
// counts lookups so callers can assert which identifiers were requested.
type Static struct {
	mu      sync.Mutex
	values  map[string]string
	errs    map[string]error
	lookups []string
}

// NewStatic returns a resolver serving the supplied values.
func NewStatic(values map[string]string) *Static {
	cloned := make(map[string]string, len(values))
	for k, v := range values {
		cloned[k] = v
	}
	return &Static{values: cloned, errs: make(map[string]error)}
}

// Fail makes every lookup of secretID return err.
func (s *Static) Fail(secretID string, err error) *Static {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.errs[secretID] = err
	return s
}

func (s *Static) Resolve(ctx context.Context, secretID string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.lookups = append(s.lookups, secretID)
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if err, ok := s.errs[secretID]; ok {
		return "", err
	}
	v, ok := s.values[secretID]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrNotFound, secretID)
	}
	return v, nil
}

// Lookups returns the identifiers requested so far, in order.
func (s *Static) Lookups() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	clone := make([]string, len(s.lookups))
	copy(clone, s.lookups)
	return clone
}
