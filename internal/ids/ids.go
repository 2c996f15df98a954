// Package ids issues sortable public codes for records that are addressed by
// code rather than by database id.
package ids

import (
	mathrand "math/rand"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

var (
	entropyMu sync.Mutex
	entropy   = ulid.Monotonic(mathrand.New(mathrand.NewSource(time.Now().UnixNano())), 0)
)

// New returns a code stamped with the current time.
func New() string {
	return NewAt(time.Now())
}

// NewAt returns a code stamped with t. Codes issued within the same
// millisecond remain strictly increasing.
func NewAt(t time.Time) string {
	entropyMu.Lock()
	defer entropyMu.Unlock()
	return ulid.MustNew(ulid.Timestamp(t), entropy).String()
}

// Valid reports whether code parses as a ULID.
func Valid(code string) bool {
	_, err := ulid.ParseStrict(strings.ToUpper(strings.TrimSpace(code)))
	return err == nil
}
