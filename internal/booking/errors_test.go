package booking

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindOf(t *testing.T) {
	assert.Equal(t, KindValidation, KindOf(validationf("bad input")))
	assert.Equal(t, KindNotFound, KindOf(notFoundf("missing")))
	assert.Equal(t, KindInactiveResource, KindOf(inactivef("inactive")))
	assert.Equal(t, KindConflict, KindOf(conflictf("busy")))
	assert.Equal(t, KindInvalidState, KindOf(invalidStatef("wrong state")))

	// Errors from outside the package default to unavailable.
	assert.Equal(t, KindUnavailable, KindOf(errors.New("boom")))
}

func TestStoreFaultClassifiesDeadline(t *testing.T) {
	f := storeFault("get appointment", context.DeadlineExceeded)

	assert.Equal(t, KindTimeout, f.Kind)
	assert.ErrorIs(t, f, context.DeadlineExceeded)
}

func TestStoreFaultDefaultsToUnavailable(t *testing.T) {
	cause := errors.New("connection refused")
	f := storeFault("list doctors", cause)

	assert.Equal(t, KindUnavailable, f.Kind)
	assert.ErrorIs(t, f, cause)
	assert.Contains(t, f.Error(), "list doctors")
}
