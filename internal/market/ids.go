package market

import (
	"io"
	"math/rand"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

// IDSource hands out monotonic ULIDs for notifications and offers.
type IDSource struct {
	mu      sync.Mutex
	entropy io.Reader
}

func NewIDSource() *IDSource {
	return &IDSource{entropy: ulid.Monotonic(rand.New(rand.NewSource(time.Now().UnixNano())), 0)}
}

// New returns an id whose timestamp part is t. Ids created for the same
// millisecond sort in creation order.
func (s *IDSource) New(t time.Time) string {
	s.mu.Lock()
	defer s.mu.Unlock()

	return ulid.MustNew(ulid.Timestamp(t), s.entropy).String()
}

// NextRequestID uses the creation time in milliseconds as the request id,
// bumped past maxExisting so ids stay unique and increasing.
func NextRequestID(now time.Time, maxExisting int64) int64 {
	id := now.UTC().UnixMilli()
	if id <= maxExisting {
		id = maxExisting + 1
	}
	return id
}
