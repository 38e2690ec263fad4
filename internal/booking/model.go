package booking

import (
	"time"

	"github.com/google/uuid"
)

type Status string

const (
	StatusBooked    Status = "booked"
	StatusCheckedIn Status = "checked_in"
	StatusCompleted Status = "completed"
	StatusCancelled Status = "cancelled"
)

// IsTerminal reports whether no further transitions are permitted.
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

type ResourceKind string

const (
	KindDoctor ResourceKind = "doctor"
	KindTest   ResourceKind = "test"
)

type DiscountType string

const (
	DiscountPercent DiscountType = "percent"
	DiscountFlat    DiscountType = "flat"
)

type Doctor struct {
	ID              uuid.UUID
	Name            string
	Specialization  string
	ConsultationFee float64
	StartTime       string // daily schedule start, "HH:MM"
	ImageURL        *string
	IsActive        bool
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

type Test struct {
	ID          uuid.UUID
	Name        string
	Description *string
	Price       float64
	IsActive    bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

type Coupon struct {
	ID            uuid.UUID
	Code          string
	DiscountType  DiscountType
	DiscountValue float64
	IsActive      bool
	ExpiresAt     *time.Time // date precision, valid through end of that day
	CreatedAt     time.Time
}

type Appointment struct {
	ID        uuid.UUID
	BookingID string // human-readable, e.g. ALM-20260829-0042

	// Exactly one of DoctorID/TestID is set.
	DoctorID *uuid.UUID
	TestID   *uuid.UUID

	// Exactly one of PatientID or the guest triple is set.
	PatientID  *uuid.UUID
	GuestName  *string
	GuestPhone *string
	GuestEmail *string

	AppointmentDate time.Time // calendar date, no time-of-day component
	SerialNumber    int       // queue position per (resource, date), starts at 1
	EstimatedTime   string    // derived, "HH:MM", not authoritative

	Status             Status
	PatientNotes       *string
	CouponCode         *string
	CancellationReason *string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// ResourceKind reports which kind of resource the appointment is for.
func (a *Appointment) ResourceKind() ResourceKind {
	if a.TestID != nil {
		return KindTest
	}
	return KindDoctor
}

// ResourceID returns the id of the doctor or test being booked.
func (a *Appointment) ResourceID() uuid.UUID {
	if a.TestID != nil {
		return *a.TestID
	}
	if a.DoctorID != nil {
		return *a.DoctorID
	}
	return uuid.Nil
}

// AppointmentDetail joins an appointment with its resource for display.
type AppointmentDetail struct {
	Appointment
	Doctor *Doctor
	Test   *Test
}

type Notification struct {
	ID        int64
	UserID    uuid.UUID
	Type      string
	Message   string
	IsRead    bool
	CreatedAt time.Time
}

const (
	NotificationBookingConfirmed    = "booking_confirmed"
	NotificationBookingCancelled    = "booking_cancelled"
	NotificationAppointmentReminder = "appointment_reminder"
	NotificationReportReady         = "report_ready"
)

type Report struct {
	ID            uuid.UUID
	AppointmentID uuid.UUID
	PatientID     *uuid.UUID
	ReportType    string // diagnostic_test, prescription, scan, other
	FileName      string
	ObjectPath    string
	UploadedBy    *uuid.UUID
	CreatedAt     time.Time
}

type AuditLog struct {
	ID            int64
	EventType     string
	AppointmentID *uuid.UUID
	Payload       []byte
	CreatedAt     time.Time
}

// Pricing is the result of applying a coupon to a price. It is a
// preview for the UI and never mutates the appointment.
type Pricing struct {
	Original float64 `json:"original"`
	Discount float64 `json:"discount"`
	Final    float64 `json:"final"`
}
