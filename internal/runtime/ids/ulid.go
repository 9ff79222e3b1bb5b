// Package ids generates the identifiers the relay stamps on records and
// clients.
package ids

import (
	"crypto/rand"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

var (
	entropyMu sync.Mutex
	entropy   = ulid.Monotonic(rand.Reader, 0)
	now       = time.Now
)

// CreateULID returns a time-sortable ULID encoded as a 26-character string.
// IDs generated within one process are strictly increasing.
func CreateULID() string {
	entropyMu.Lock()
	defer entropyMu.Unlock()

	return ulid.MustNew(ulid.Timestamp(now()), entropy).String()
}

// ClientID returns "<prefix>-<ULID>".
func ClientID(prefix string) string {
	return prefix + "-" + CreateULID()
}
