package booking

import (
	"context"
	"errors"
	"fmt"
)

// Kind classifies a booking failure so HTTP handlers and UI controllers
// can react without inspecting message text.
type Kind string

const (
	KindValidation       Kind = "validation"
	KindNotFound         Kind = "not_found"
	KindInactiveResource Kind = "inactive_resource"
	KindConflict         Kind = "conflict"
	KindInvalidState     Kind = "invalid_state"
	KindTimeout          Kind = "timeout"
	KindUnavailable      Kind = "unavailable"
)

// Fault is the single error type crossing the service boundary.
type Fault struct {
	Kind    Kind
	Message string
	cause   error
}

func (f *Fault) Error() string {
	return f.Message
}

func (f *Fault) Unwrap() error {
	return f.cause
}

func validationf(format string, args ...any) *Fault {
	return &Fault{Kind: KindValidation, Message: fmt.Sprintf(format, args...)}
}

func notFoundf(format string, args ...any) *Fault {
	return &Fault{Kind: KindNotFound, Message: fmt.Sprintf(format, args...)}
}

func inactivef(format string, args ...any) *Fault {
	return &Fault{Kind: KindInactiveResource, Message: fmt.Sprintf(format, args...)}
}

func conflictf(format string, args ...any) *Fault {
	return &Fault{Kind: KindConflict, Message: fmt.Sprintf(format, args...)}
}

func invalidStatef(format string, args ...any) *Fault {
	return &Fault{Kind: KindInvalidState, Message: fmt.Sprintf(format, args...)}
}

// KindOf extracts the failure kind, defaulting to unavailable for
// errors that did not originate in this package.
func KindOf(err error) Kind {
	var f *Fault
	if errors.As(err, &f) {
		return f.Kind
	}
	return KindUnavailable
}

// storeFault classifies a raw repository error. Deadline overruns get
// their own kind so the UI can offer a retry.
func storeFault(op string, err error) *Fault {
	kind := KindUnavailable
	if errors.Is(err, context.DeadlineExceeded) {
		kind = KindTimeout
	}
	return &Fault{
		Kind:    kind,
		Message: fmt.Sprintf("%s: data store error", op),
		cause:   err,
	}
}
