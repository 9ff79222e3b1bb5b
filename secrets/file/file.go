// Package file resolves secrets from files in a directory, the layout used by
// mounted Kubernetes and Docker secrets.
package file

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/ThreeDotsLabs/watermill"

	"github.com/drblury/kafkarelay/secrets"
)

// BackendName is the name used to register this backend.
const BackendName = "file"

// ReadFile allows overriding file access for testing.
var ReadFile = os.ReadFile

func init() {
	Register()
}

// Register adds this backend to the default registry.
func Register() {
	secrets.Register(BackendName, Build)
}

// Build creates a file resolver rooted at the configured directory.
func Build(_ context.Context, cfg secrets.Config, logger watermill.LoggerAdapter) (secrets.Resolver, error) {
	dir := cfg.GetSecretDir()
	if dir == "" {
		return nil, errors.New("file secret backend: directory is required")
	}
	logger.Info("Using file secret backend", watermill.LogFields{"dir": dir})
	return &Resolver{Dir: dir}, nil
}

// Resolver reads Dir/secretID. A single trailing newline is stripped.
type Resolver struct {
	Dir string
}

func (r *Resolver) Resolve(ctx context.Context, secretID string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if !fs.ValidPath(secretID) || strings.ContainsRune(secretID, '\\') {
		return "", fmt.Errorf("%w: %q escapes the secret directory", secrets.ErrAccessDenied, secretID)
	}

	data, err := ReadFile(filepath.Join(r.Dir, filepath.FromSlash(secretID)))
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return "", fmt.Errorf("%w: %s", secrets.ErrNotFound, secretID)
	case errors.Is(err, fs.ErrPermission):
		return "", fmt.Errorf("%w: %s", secrets.ErrAccessDenied, secretID)
	case err != nil:
		return "", err
	}

	v := strings.TrimSuffix(string(data), "\n")
	return strings.TrimSuffix(v, "\r"), nil
}
