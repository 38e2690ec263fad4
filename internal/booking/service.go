package booking

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/almdiagnostics/clinic-booking-service/internal/config"
	redisclient "github.com/almdiagnostics/clinic-booking-service/internal/redis"
)

const (
	EventAppointmentBooked    = "APPOINTMENT_BOOKED"
	EventAppointmentCheckedIn = "APPOINTMENT_CHECKED_IN"
	EventAppointmentCompleted = "APPOINTMENT_COMPLETED"
	EventAppointmentCancelled = "APPOINTMENT_CANCELLED"
)

// Service is the booking engine. It owns appointment creation, the
// status state machine, and coupon pricing; views never write to the
// data store directly.
type Service struct {
	repo   Repository
	locker redisclient.Locker
	cfg    config.Config
	log    zerolog.Logger
	now    func() time.Time
}

func NewService(repo Repository, locker redisclient.Locker, cfg config.Config, log zerolog.Logger) *Service {
	return &Service{
		repo:   repo,
		locker: locker,
		cfg:    cfg,
		log:    log,
		now:    time.Now,
	}
}

func (s *Service) storeCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, s.cfg.StoreTimeout)
}

// ListBookableDoctors returns active doctors ordered by name.
func (s *Service) ListBookableDoctors(ctx context.Context) ([]Doctor, error) {
	ctx, cancel := s.storeCtx(ctx)
	defer cancel()

	doctors, err := s.repo.ListActiveDoctors(ctx)
	if err != nil {
		return nil, storeFault("list doctors", err)
	}
	return doctors, nil
}

// ListBookableTests returns active lab tests ordered by name.
func (s *Service) ListBookableTests(ctx context.Context) ([]Test, error) {
	ctx, cancel := s.storeCtx(ctx)
	defer cancel()

	tests, err := s.repo.ListActiveTests(ctx)
	if err != nil {
		return nil, storeFault("list tests", err)
	}
	return tests, nil
}

func (s *Service) GetDoctor(ctx context.Context, id uuid.UUID) (*Doctor, error) {
	ctx, cancel := s.storeCtx(ctx)
	defer cancel()

	d, err := s.repo.GetDoctorByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrDoctorNotFound) {
			return nil, notFoundf("doctor %s not found", id)
		}
		return nil, storeFault("get doctor", err)
	}
	return d, nil
}

func (s *Service) GetTest(ctx context.Context, id uuid.UUID) (*Test, error) {
	ctx, cancel := s.storeCtx(ctx)
	defer cancel()

	t, err := s.repo.GetTestByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrTestNotFound) {
			return nil, notFoundf("test %s not found", id)
		}
		return nil, storeFault("get test", err)
	}
	return t, nil
}

// CreateAppointment validates the request, assigns a queue serial for
// the target resource and date, and persists the appointment with
// status booked.
//
// Serial assignment runs inside a per-queue Redis lock, and the insert
// retries on the (doctor_id|test_id, appointment_date, serial_number)
// unique index, so two concurrent bookings can never commit the same
// serial. The serial is only consumed by a successful insert; a failed
// attempt leaks no gap.
func (s *Service) CreateAppointment(ctx context.Context, req CreateRequest) (*AppointmentDetail, error) {
	date, err := validateCreate(req, s.now())
	if err != nil {
		return nil, err
	}

	detail := &AppointmentDetail{}
	var (
		kind       ResourceKind
		resourceID uuid.UUID
		startTime  string
	)

	if req.DoctorID != nil {
		doctor, err := s.GetDoctor(ctx, *req.DoctorID)
		if err != nil {
			return nil, err
		}
		if !doctor.IsActive {
			return nil, inactivef("doctor %s is not accepting bookings", doctor.Name)
		}
		kind, resourceID, startTime = KindDoctor, doctor.ID, doctor.StartTime
		detail.Doctor = doctor
	} else {
		test, err := s.GetTest(ctx, *req.TestID)
		if err != nil {
			return nil, err
		}
		if !test.IsActive {
			return nil, inactivef("test %s is not accepting bookings", test.Name)
		}
		kind, resourceID = KindTest, test.ID
		detail.Test = test
	}

	appt := &Appointment{
		DoctorID:        req.DoctorID,
		TestID:          req.TestID,
		AppointmentDate: date,
		Status:          StatusBooked,
	}
	if req.PatientID != nil {
		appt.PatientID = req.PatientID
	} else {
		name := strings.TrimSpace(req.GuestName)
		phone := strings.ReplaceAll(req.GuestPhone, " ", "")
		appt.GuestName = &name
		appt.GuestPhone = &phone
		if req.GuestEmail != "" {
			email := req.GuestEmail
			appt.GuestEmail = &email
		}
	}
	if req.Notes != "" {
		notes := req.Notes
		appt.PatientNotes = &notes
	}
	if req.CouponCode != "" {
		code := strings.ToUpper(strings.TrimSpace(req.CouponCode))
		appt.CouponCode = &code
	}

	queueKey := fmt.Sprintf("%s:%s:%s", kind, resourceID, date.Format(dateLayout))

	var created *Appointment

	lockErr := s.locker.WithQueueLock(ctx, queueKey, func(lockCtx context.Context) error {
		inserted, err := s.insertWithSerialRetry(lockCtx, appt, kind, resourceID, date, startTime)
		if err != nil {
			return err
		}
		created = inserted
		return nil
	})

	if lockErr != nil {
		if errors.Is(lockErr, redisclient.ErrLockNotAcquired) {
			return nil, conflictf("this queue is currently being booked, please retry")
		}
		return nil, lockErr
	}

	detail.Appointment = *created

	s.notifyBooked(ctx, created)
	s.logEvent(ctx, created.ID, EventAppointmentBooked, map[string]any{
		"booking_id":    created.BookingID,
		"resource_kind": string(kind),
		"resource_id":   resourceID.String(),
		"date":          date.Format(dateLayout),
		"serial_number": created.SerialNumber,
	})

	return detail, nil
}

// insertWithSerialRetry is the critical section of CreateAppointment.
func (s *Service) insertWithSerialRetry(ctx context.Context, appt *Appointment, kind ResourceKind, resourceID uuid.UUID, date time.Time, startTime string) (*Appointment, error) {
	bookingIDLeft := s.cfg.BookingIDRetries

	for attempt := 0; attempt < s.cfg.SerialMaxRetries; attempt++ {
		max, err := s.repo.MaxSerialNumber(ctx, kind, resourceID, date)
		if err != nil {
			return nil, storeFault("next serial number", err)
		}
		appt.SerialNumber = max + 1

		estimated, err := EstimatedTime(kind, startTime, appt.SerialNumber, s.cfg.AvgConsultMinutes, s.cfg.TestReportTime)
		if err != nil {
			return nil, &Fault{Kind: KindUnavailable, Message: "could not estimate appointment time", cause: err}
		}
		appt.EstimatedTime = estimated
		appt.BookingID = NewBookingID(s.cfg.BookingPrefix, s.now())

		for {
			inserted, err := s.repo.InsertAppointment(ctx, appt)
			if err == nil {
				return inserted, nil
			}
			if errors.Is(err, ErrDuplicateBookingID) {
				bookingIDLeft--
				if bookingIDLeft <= 0 {
					return nil, conflictf("could not allocate a unique booking id")
				}
				appt.BookingID = NewBookingID(s.cfg.BookingPrefix, s.now())
				continue
			}
			if errors.Is(err, ErrDuplicateSerial) {
				// Another writer took this serial; re-read the max.
				break
			}
			return nil, storeFault("insert appointment", err)
		}
	}

	return nil, conflictf("could not assign a queue position, please retry")
}

// GetAppointment retrieves an appointment by its internal id.
func (s *Service) GetAppointment(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	ctx, cancel := s.storeCtx(ctx)
	defer cancel()

	appt, err := s.repo.GetAppointmentByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrAppointmentNotFound) {
			return nil, notFoundf("appointment %s not found", id)
		}
		return nil, storeFault("get appointment", err)
	}
	return appt, nil
}

// GetAppointmentByBookingID retrieves a hydrated appointment by its
// human-readable booking reference, case-insensitively.
func (s *Service) GetAppointmentByBookingID(ctx context.Context, bookingID string) (*AppointmentDetail, error) {
	ctx, cancel := s.storeCtx(ctx)
	defer cancel()

	detail, err := s.repo.GetAppointmentByBookingID(ctx, strings.ToUpper(strings.TrimSpace(bookingID)))
	if err != nil {
		if errors.Is(err, ErrAppointmentNotFound) {
			return nil, notFoundf("no appointment with booking id %s", bookingID)
		}
		return nil, storeFault("get appointment by booking id", err)
	}
	return detail, nil
}

// ListPatientAppointments returns a patient's appointments, newest
// date first, optionally filtered by status.
func (s *Service) ListPatientAppointments(ctx context.Context, patientID uuid.UUID, status *Status) ([]AppointmentDetail, error) {
	ctx, cancel := s.storeCtx(ctx)
	defer cancel()

	appts, err := s.repo.ListAppointmentsByPatient(ctx, patientID, status)
	if err != nil {
		return nil, storeFault("list patient appointments", err)
	}
	return appts, nil
}

// CancelAppointment moves a booked or checked-in appointment to
// cancelled. Cancelling an already-cancelled appointment is a no-op
// returning the current record.
func (s *Service) CancelAppointment(ctx context.Context, id uuid.UUID, reason string) (*Appointment, error) {
	if strings.TrimSpace(reason) == "" {
		return nil, validationf("cancellation reason is required")
	}

	appt, err := s.GetAppointment(ctx, id)
	if err != nil {
		return nil, err
	}

	if appt.Status == StatusCancelled {
		return appt, nil
	}
	if appt.Status == StatusCompleted {
		return nil, invalidStatef("appointment %s is already completed", appt.BookingID)
	}

	ctx, cancel := s.storeCtx(ctx)
	defer cancel()

	updated, err := s.repo.UpdateAppointmentStatus(ctx, id, appt.Status, StatusCancelled, &reason)
	if err != nil {
		if errors.Is(err, ErrAppointmentNotFound) {
			// Status moved under us between read and update.
			return nil, invalidStatef("appointment %s changed state, please refresh", appt.BookingID)
		}
		return nil, storeFault("cancel appointment", err)
	}

	s.notifyCancelled(ctx, updated, reason)
	s.logEvent(ctx, updated.ID, EventAppointmentCancelled, map[string]any{
		"booking_id": updated.BookingID,
		"reason":     reason,
	})

	return updated, nil
}

// AdvanceStatus moves an appointment along the permitted path:
// booked -> checked_in -> completed, with cancellation allowed from
// either non-terminal state. Everything else is rejected.
func (s *Service) AdvanceStatus(ctx context.Context, id uuid.UUID, next Status) (*Appointment, error) {
	if next == StatusCancelled {
		return s.CancelAppointment(ctx, id, "cancelled by staff")
	}

	appt, err := s.GetAppointment(ctx, id)
	if err != nil {
		return nil, err
	}

	if !canTransition(appt.Status, next) {
		return nil, invalidStatef("cannot move appointment %s from %s to %s", appt.BookingID, appt.Status, next)
	}

	ctx, cancel := s.storeCtx(ctx)
	defer cancel()

	updated, err := s.repo.UpdateAppointmentStatus(ctx, id, appt.Status, next, nil)
	if err != nil {
		if errors.Is(err, ErrAppointmentNotFound) {
			return nil, invalidStatef("appointment %s changed state, please refresh", appt.BookingID)
		}
		return nil, storeFault("advance status", err)
	}

	event := EventAppointmentCheckedIn
	if next == StatusCompleted {
		event = EventAppointmentCompleted
	}
	s.logEvent(ctx, updated.ID, event, map[string]any{
		"booking_id": updated.BookingID,
		"from":       string(appt.Status),
		"to":         string(next),
	})

	return updated, nil
}

func canTransition(from, to Status) bool {
	switch from {
	case StatusBooked:
		return to == StatusCheckedIn || to == StatusCancelled
	case StatusCheckedIn:
		return to == StatusCompleted || to == StatusCancelled
	default:
		return false
	}
}

// ApplyCoupon validates a coupon code and returns the pricing preview.
// It never mutates any appointment.
func (s *Service) ApplyCoupon(ctx context.Context, originalPrice float64, code string) (*Pricing, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	if code == "" {
		return nil, validationf("coupon code is required")
	}
	if originalPrice < 0 {
		return nil, validationf("price must not be negative")
	}

	ctx, cancel := s.storeCtx(ctx)
	defer cancel()

	coupon, err := s.repo.GetCouponByCode(ctx, code)
	if err != nil {
		if errors.Is(err, ErrCouponNotFound) {
			return nil, notFoundf("invalid coupon code")
		}
		return nil, storeFault("get coupon", err)
	}

	if !coupon.IsActive {
		return nil, validationf("coupon %s is no longer active", code)
	}
	if coupon.ExpiresAt != nil {
		// Date-only comparison; a coupon expiring today still applies.
		today := s.now()
		todayDate := time.Date(today.Year(), today.Month(), today.Day(), 0, 0, 0, 0, today.Location())
		if coupon.ExpiresAt.Before(todayDate) {
			return nil, validationf("coupon %s has expired", code)
		}
	}

	pricing := ApplyDiscount(originalPrice, coupon)
	return &pricing, nil
}

// ListActiveCoupons returns unexpired, active coupons for display.
func (s *Service) ListActiveCoupons(ctx context.Context) ([]Coupon, error) {
	ctx, cancel := s.storeCtx(ctx)
	defer cancel()

	coupons, err := s.repo.ListActiveCoupons(ctx)
	if err != nil {
		return nil, storeFault("list coupons", err)
	}
	return coupons, nil
}

// Notifications

func (s *Service) ListNotifications(ctx context.Context, userID uuid.UUID, unreadOnly bool) ([]Notification, error) {
	ctx, cancel := s.storeCtx(ctx)
	defer cancel()

	items, err := s.repo.ListNotificationsByUser(ctx, userID, unreadOnly)
	if err != nil {
		return nil, storeFault("list notifications", err)
	}
	return items, nil
}

func (s *Service) UnreadNotificationCount(ctx context.Context, userID uuid.UUID) (int, error) {
	ctx, cancel := s.storeCtx(ctx)
	defer cancel()

	count, err := s.repo.CountUnreadNotifications(ctx, userID)
	if err != nil {
		return 0, storeFault("count notifications", err)
	}
	return count, nil
}

func (s *Service) MarkNotificationsRead(ctx context.Context, userID uuid.UUID) error {
	ctx, cancel := s.storeCtx(ctx)
	defer cancel()

	if err := s.repo.MarkNotificationsRead(ctx, userID); err != nil {
		return storeFault("mark notifications read", err)
	}
	return nil
}

// Maintenance, called by the reminder worker.

// SweepExpiredCoupons deactivates coupons whose expiry date has passed.
func (s *Service) SweepExpiredCoupons(ctx context.Context) (int64, error) {
	ctx, cancel := s.storeCtx(ctx)
	defer cancel()

	today := s.now()
	todayDate := time.Date(today.Year(), today.Month(), today.Day(), 0, 0, 0, 0, today.Location())

	n, err := s.repo.DeactivateExpiredCoupons(ctx, todayDate)
	if err != nil {
		return 0, storeFault("sweep coupons", err)
	}
	return n, nil
}

// SendReminders inserts a reminder notification for every registered
// patient with a booked appointment on the given date.
func (s *Service) SendReminders(ctx context.Context, date time.Time) (int, error) {
	ctx, cancel := s.storeCtx(ctx)
	defer cancel()

	appts, err := s.repo.ListAppointmentsOnDate(ctx, date, StatusBooked)
	if err != nil {
		return 0, storeFault("list appointments for reminders", err)
	}

	sent := 0
	for i := range appts {
		appt := &appts[i]
		if appt.PatientID == nil {
			continue
		}
		n := Notification{
			UserID: *appt.PatientID,
			Type:   NotificationAppointmentReminder,
			Message: fmt.Sprintf("Reminder: appointment %s on %s, serial %d, estimated time %s",
				appt.BookingID, appt.AppointmentDate.Format(dateLayout), appt.SerialNumber, appt.EstimatedTime),
		}
		if err := s.repo.InsertNotification(ctx, n); err != nil {
			s.log.Error().Err(err).Str("booking_id", appt.BookingID).Msg("failed to insert reminder notification")
			continue
		}
		sent++
	}

	return sent, nil
}

// Best-effort side effects. A notification or audit failure never
// fails the booking itself.

func (s *Service) notifyBooked(ctx context.Context, appt *Appointment) {
	if appt.PatientID == nil {
		return
	}
	n := Notification{
		UserID: *appt.PatientID,
		Type:   NotificationBookingConfirmed,
		Message: fmt.Sprintf("Your appointment is confirmed. Booking ID: %s, Serial: %d",
			appt.BookingID, appt.SerialNumber),
	}
	if err := s.repo.InsertNotification(ctx, n); err != nil {
		s.log.Error().Err(err).Str("booking_id", appt.BookingID).Msg("failed to insert booking notification")
	}
}

func (s *Service) notifyCancelled(ctx context.Context, appt *Appointment, reason string) {
	if appt.PatientID == nil {
		return
	}
	n := Notification{
		UserID:  *appt.PatientID,
		Type:    NotificationBookingCancelled,
		Message: fmt.Sprintf("Appointment %s was cancelled: %s", appt.BookingID, reason),
	}
	if err := s.repo.InsertNotification(ctx, n); err != nil {
		s.log.Error().Err(err).Str("booking_id", appt.BookingID).Msg("failed to insert cancellation notification")
	}
}

func (s *Service) logEvent(ctx context.Context, appointmentID uuid.UUID, eventType string, payload map[string]any) {
	data, err := json.Marshal(payload)
	if err != nil {
		s.log.Error().Err(err).Str("event", eventType).Msg("failed to marshal audit payload")
		data = nil
	}

	apptID := appointmentID

	ev := AuditLog{
		EventType:     eventType,
		AppointmentID: &apptID,
		Payload:       data,
		CreatedAt:     s.now(),
	}

	if err := s.repo.InsertAuditLog(ctx, ev); err != nil {
		s.log.Error().Err(err).Str("event", eventType).Stringer("appointment_id", appointmentID).Msg("failed to insert audit log")
	}
}
