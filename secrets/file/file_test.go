package file

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/drblury/kafkarelay/secrets"
)

type testConfig struct{ dir string }

func (c testConfig) GetSecretBackend() string      { return BackendName }
func (c testConfig) GetSecretEnvPrefix() string    { return "" }
func (c testConfig) GetSecretDir() string          { return c.dir }
func (c testConfig) GetAWSRegion() string          { return "" }
func (c testConfig) GetAWSAccessKeyID() string     { return "" }
func (c testConfig) GetAWSSecretAccessKey() string { return "" }
func (c testConfig) GetAWSEndpoint() string        { return "" }

func TestResolve(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "source-password"), []byte("s3cret\n"), 0o600))

	r, err := Build(context.Background(), testConfig{dir: dir}, watermill.NopLogger{})
	require.NoError(t, err)

	v, err := r.Resolve(context.Background(), "source-password")
	require.NoError(t, err)
	assert.Equal(t, "s3cret", v)

	_, err = r.Resolve(context.Background(), "absent")
	assert.True(t, errors.Is(err, secrets.ErrNotFound))
}

func TestResolveRejectsTraversal(t *testing.T) {
	r := &Resolver{Dir: t.TempDir()}
	for _, id := range []string{"../etc/passwd", "/etc/passwd", `a\b`} {
		_, err := r.Resolve(context.Background(), id)
		assert.True(t, errors.Is(err, secrets.ErrAccessDenied), id)
	}
}

func TestResolveMapsPermissionErrors(t *testing.T) {
	orig := ReadFile
	t.Cleanup(func() { ReadFile = orig })
	ReadFile = func(string) ([]byte, error) { return nil, os.ErrPermission }

	_, err := (&Resolver{Dir: "/x"}).Resolve(context.Background(), "id")
	assert.True(t, errors.Is(err, secrets.ErrAccessDenied))
}

func TestBuildRequiresDir(t *testing.T) {
	_, err := Build(context.Background(), testConfig{}, watermill.NopLogger{})
	assert.Error(t, err)
}
