package booking

import (
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
)

const dateLayout = "2006-01-02"

// Guest phone numbers follow the 10-digit Indian mobile format.
var phonePattern = regexp.MustCompile(`^[6-9]\d{9}$`)

var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// CreateRequest is the input to CreateAppointment. PatientID comes from
// the caller's verified identity, never from the request body; the
// guest fields are used only when it is absent.
type CreateRequest struct {
	DoctorID *uuid.UUID
	TestID   *uuid.UUID

	AppointmentDate string // YYYY-MM-DD

	PatientID  *uuid.UUID
	GuestName  string
	GuestPhone string
	GuestEmail string

	Notes      string
	CouponCode string
}

// validateCreate fail-fasts every precondition that does not need the
// data store, returning the parsed appointment date on success.
func validateCreate(req CreateRequest, today time.Time) (time.Time, error) {
	if (req.DoctorID == nil) == (req.TestID == nil) {
		return time.Time{}, validationf("exactly one of doctor_id or test_id must be set")
	}

	date, err := time.ParseInLocation(dateLayout, req.AppointmentDate, today.Location())
	if err != nil {
		return time.Time{}, validationf("appointment_date must be in YYYY-MM-DD format")
	}

	todayDate := time.Date(today.Year(), today.Month(), today.Day(), 0, 0, 0, 0, today.Location())
	if date.Before(todayDate) {
		return time.Time{}, validationf("appointment_date must not be in the past")
	}

	if req.PatientID == nil {
		if strings.TrimSpace(req.GuestName) == "" {
			return time.Time{}, validationf("guest_name is required for guest bookings")
		}
		phone := strings.ReplaceAll(req.GuestPhone, " ", "")
		if !phonePattern.MatchString(phone) {
			return time.Time{}, validationf("guest_phone must be a valid 10-digit phone number")
		}
		if req.GuestEmail != "" && !emailPattern.MatchString(req.GuestEmail) {
			return time.Time{}, validationf("guest_email is not a valid email address")
		}
	}

	return date, nil
}
