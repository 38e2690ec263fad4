package booking

import (
	"fmt"
	"math/rand"
	"time"
)

// NewBookingID builds a human-readable booking reference, e.g.
// ALM-20260829-0042. The 4-digit suffix is random; collisions are
// handled by the caller regenerating against the unique index.
func NewBookingID(prefix string, now time.Time) string {
	return fmt.Sprintf("%s-%s-%04d", prefix, now.Format("20060102"), rand.Intn(10000))
}
