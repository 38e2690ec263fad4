package booking

import (
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNewBookingIDFormat(t *testing.T) {
	now := time.Date(2026, 8, 29, 14, 30, 0, 0, time.UTC)
	pattern := regexp.MustCompile(`^ALM-20260829-\d{4}$`)

	for i := 0; i < 100; i++ {
		id := NewBookingID("ALM", now)
		assert.Regexp(t, pattern, id)
	}
}

func TestNewBookingIDPrefix(t *testing.T) {
	now := time.Date(2026, 1, 2, 0, 0, 0, 0, time.UTC)

	id := NewBookingID("CLINIC", now)

	assert.Regexp(t, regexp.MustCompile(`^CLINIC-20260102-\d{4}$`), id)
}
