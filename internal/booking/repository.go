package booking

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	ErrDoctorNotFound      = errors.New("doctor not found")
	ErrTestNotFound        = errors.New("test not found")
	ErrAppointmentNotFound = errors.New("appointment not found")
	ErrCouponNotFound      = errors.New("coupon not found")

	// Unique-index violations surfaced for the insert retry loops.
	ErrDuplicateSerial    = errors.New("serial number already taken for this queue")
	ErrDuplicateBookingID = errors.New("booking id already exists")
)

// Repository contains all DB interactions needed by the service.
type Repository interface {
	ListActiveDoctors(ctx context.Context) ([]Doctor, error)
	ListActiveTests(ctx context.Context) ([]Test, error)
	GetDoctorByID(ctx context.Context, id uuid.UUID) (*Doctor, error)
	GetTestByID(ctx context.Context, id uuid.UUID) (*Test, error)

	// Serial assignment. The returned value is only a starting point;
	// InsertAppointment reports ErrDuplicateSerial when another writer
	// won the race, and the caller retries.
	MaxSerialNumber(ctx context.Context, kind ResourceKind, resourceID uuid.UUID, date time.Time) (int, error)
	InsertAppointment(ctx context.Context, appt *Appointment) (*Appointment, error)

	GetAppointmentByID(ctx context.Context, id uuid.UUID) (*Appointment, error)
	GetAppointmentByBookingID(ctx context.Context, bookingID string) (*AppointmentDetail, error)
	ListAppointmentsByPatient(ctx context.Context, patientID uuid.UUID, status *Status) ([]AppointmentDetail, error)
	ListAppointmentsOnDate(ctx context.Context, date time.Time, status Status) ([]Appointment, error)

	// Conditional transition; returns ErrAppointmentNotFound when no row
	// matched (id, from), which the service treats as a lost race.
	UpdateAppointmentStatus(ctx context.Context, id uuid.UUID, from, to Status, cancellationReason *string) (*Appointment, error)

	GetCouponByCode(ctx context.Context, code string) (*Coupon, error)
	ListActiveCoupons(ctx context.Context) ([]Coupon, error)
	DeactivateExpiredCoupons(ctx context.Context, before time.Time) (int64, error)

	InsertNotification(ctx context.Context, n Notification) error
	ListNotificationsByUser(ctx context.Context, userID uuid.UUID, unreadOnly bool) ([]Notification, error)
	CountUnreadNotifications(ctx context.Context, userID uuid.UUID) (int, error)
	MarkNotificationsRead(ctx context.Context, userID uuid.UUID) error

	InsertReport(ctx context.Context, r *Report) (*Report, error)
	ListReportsByPatient(ctx context.Context, patientID uuid.UUID) ([]Report, error)

	InsertAuditLog(ctx context.Context, ev AuditLog) error
}
