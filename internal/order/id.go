package order

import (
	"crypto/rand"
	"io"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"kahramana.bh/site/internal/site"
)

const idPrefix = "KH-"

// IDGenerator issues human-readable order ids of the form KH-YYMMDD-HHMM-XXXX, stamped
// in Bahrain local time with a four character random tail.
type IDGenerator struct {
	now func() time.Time

	mu      sync.Mutex
	entropy io.Reader
}

// NewIDGenerator builds a generator. Nil arguments default to time.Now and crypto/rand.
func NewIDGenerator(clock func() time.Time, entropy io.Reader) *IDGenerator {
	if clock == nil {
		clock = time.Now
	}
	if entropy == nil {
		entropy = rand.Reader
	}
	return &IDGenerator{now: clock, entropy: ulid.Monotonic(entropy, 0)}
}

// Next returns a new id.
func (g *IDGenerator) Next() string {
	now := g.now()

	g.mu.Lock()
	id, err := ulid.New(ulid.Timestamp(now), g.entropy)
	g.mu.Unlock()
	if err != nil {
		id = ulid.Make()
	}

	s := id.String()
	return idPrefix + now.In(site.Location()).Format("060102-1504") + "-" + s[len(s)-4:]
}
