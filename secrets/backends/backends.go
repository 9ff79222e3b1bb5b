// Package backends imports all built-in secret backends for auto-registration.
package backends

import (
	_ "github.com/drblury/kafkarelay/secrets/aws"
	_ "github.com/drblury/kafkarelay/secrets/env"
	_ "github.com/drblury/kafkarelay/secrets/file"
)
