package booking

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/almdiagnostics/clinic-booking-service/internal/config"
)

// memRepo is an in-memory Repository that enforces the same uniqueness
// rules as the Postgres indexes: one serial per (resource, date) and
// one booking id globally. MaxSerialNumber and InsertAppointment lock
// independently so concurrent creates genuinely race through the
// read-then-insert window, exercising the retry loop.
type memRepo struct {
	mu            sync.Mutex
	doctors       map[uuid.UUID]*Doctor
	tests         map[uuid.UUID]*Test
	coupons       map[string]*Coupon
	appointments  map[uuid.UUID]*Appointment
	notifications []Notification
	auditLogs     []AuditLog
	reports       []Report
}

func newMemRepo() *memRepo {
	return &memRepo{
		doctors:      make(map[uuid.UUID]*Doctor),
		tests:        make(map[uuid.UUID]*Test),
		coupons:      make(map[string]*Coupon),
		appointments: make(map[uuid.UUID]*Appointment),
	}
}

func (r *memRepo) addDoctor(d Doctor) *Doctor {
	r.mu.Lock()
	defer r.mu.Unlock()
	if d.ID == uuid.Nil {
		d.ID = uuid.New()
	}
	r.doctors[d.ID] = &d
	return &d
}

func (r *memRepo) addTest(tst Test) *Test {
	r.mu.Lock()
	defer r.mu.Unlock()
	if tst.ID == uuid.Nil {
		tst.ID = uuid.New()
	}
	r.tests[tst.ID] = &tst
	return &tst
}

func (r *memRepo) addCoupon(c Coupon) *Coupon {
	r.mu.Lock()
	defer r.mu.Unlock()
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	r.coupons[strings.ToUpper(c.Code)] = &c
	return &c
}

func (r *memRepo) ListActiveDoctors(ctx context.Context) ([]Doctor, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Doctor
	for _, d := range r.doctors {
		if d.IsActive {
			out = append(out, *d)
		}
	}
	return out, nil
}

func (r *memRepo) ListActiveTests(ctx context.Context) ([]Test, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Test
	for _, t := range r.tests {
		if t.IsActive {
			out = append(out, *t)
		}
	}
	return out, nil
}

func (r *memRepo) GetDoctorByID(ctx context.Context, id uuid.UUID) (*Doctor, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	d, ok := r.doctors[id]
	if !ok {
		return nil, ErrDoctorNotFound
	}
	copied := *d
	return &copied, nil
}

func (r *memRepo) GetTestByID(ctx context.Context, id uuid.UUID) (*Test, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.tests[id]
	if !ok {
		return nil, ErrTestNotFound
	}
	copied := *t
	return &copied, nil
}

func (r *memRepo) MaxSerialNumber(ctx context.Context, kind ResourceKind, resourceID uuid.UUID, date time.Time) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	max := 0
	for _, a := range r.appointments {
		if a.ResourceKind() == kind && a.ResourceID() == resourceID && a.AppointmentDate.Equal(date) && a.SerialNumber > max {
			max = a.SerialNumber
		}
	}
	return max, nil
}

func (r *memRepo) InsertAppointment(ctx context.Context, appt *Appointment) (*Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, a := range r.appointments {
		if a.BookingID == appt.BookingID {
			return nil, ErrDuplicateBookingID
		}
		if a.ResourceKind() == appt.ResourceKind() && a.ResourceID() == appt.ResourceID() &&
			a.AppointmentDate.Equal(appt.AppointmentDate) && a.SerialNumber == appt.SerialNumber {
			return nil, ErrDuplicateSerial
		}
	}

	stored := *appt
	stored.ID = uuid.New()
	stored.CreatedAt = time.Now()
	stored.UpdatedAt = stored.CreatedAt
	r.appointments[stored.ID] = &stored

	copied := stored
	return &copied, nil
}

func (r *memRepo) GetAppointmentByID(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.appointments[id]
	if !ok {
		return nil, ErrAppointmentNotFound
	}
	copied := *a
	return &copied, nil
}

func (r *memRepo) hydrateLocked(a *Appointment) AppointmentDetail {
	detail := AppointmentDetail{Appointment: *a}
	if a.DoctorID != nil {
		if d, ok := r.doctors[*a.DoctorID]; ok {
			copied := *d
			detail.Doctor = &copied
		}
	}
	if a.TestID != nil {
		if t, ok := r.tests[*a.TestID]; ok {
			copied := *t
			detail.Test = &copied
		}
	}
	return detail
}

func (r *memRepo) GetAppointmentByBookingID(ctx context.Context, bookingID string) (*AppointmentDetail, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, a := range r.appointments {
		if a.BookingID == bookingID {
			detail := r.hydrateLocked(a)
			return &detail, nil
		}
	}
	return nil, ErrAppointmentNotFound
}

func (r *memRepo) ListAppointmentsByPatient(ctx context.Context, patientID uuid.UUID, status *Status) ([]AppointmentDetail, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []AppointmentDetail
	for _, a := range r.appointments {
		if a.PatientID == nil || *a.PatientID != patientID {
			continue
		}
		if status != nil && a.Status != *status {
			continue
		}
		out = append(out, r.hydrateLocked(a))
	}
	return out, nil
}

func (r *memRepo) ListAppointmentsOnDate(ctx context.Context, date time.Time, status Status) ([]Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Appointment
	for _, a := range r.appointments {
		if a.AppointmentDate.Equal(date) && a.Status == status {
			out = append(out, *a)
		}
	}
	return out, nil
}

func (r *memRepo) UpdateAppointmentStatus(ctx context.Context, id uuid.UUID, from, to Status, cancellationReason *string) (*Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.appointments[id]
	if !ok || a.Status != from {
		return nil, ErrAppointmentNotFound
	}
	a.Status = to
	a.CancellationReason = cancellationReason
	a.UpdatedAt = time.Now()
	copied := *a
	return &copied, nil
}

func (r *memRepo) GetCouponByCode(ctx context.Context, code string) (*Coupon, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.coupons[strings.ToUpper(code)]
	if !ok {
		return nil, ErrCouponNotFound
	}
	copied := *c
	return &copied, nil
}

func (r *memRepo) ListActiveCoupons(ctx context.Context) ([]Coupon, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Coupon
	for _, c := range r.coupons {
		if c.IsActive {
			out = append(out, *c)
		}
	}
	return out, nil
}

func (r *memRepo) DeactivateExpiredCoupons(ctx context.Context, before time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for _, c := range r.coupons {
		if c.IsActive && c.ExpiresAt != nil && c.ExpiresAt.Before(before) {
			c.IsActive = false
			n++
		}
	}
	return n, nil
}

func (r *memRepo) InsertNotification(ctx context.Context, n Notification) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	n.ID = int64(len(r.notifications) + 1)
	n.CreatedAt = time.Now()
	r.notifications = append(r.notifications, n)
	return nil
}

func (r *memRepo) ListNotificationsByUser(ctx context.Context, userID uuid.UUID, unreadOnly bool) ([]Notification, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Notification
	for _, n := range r.notifications {
		if n.UserID != userID {
			continue
		}
		if unreadOnly && n.IsRead {
			continue
		}
		out = append(out, n)
	}
	return out, nil
}

func (r *memRepo) CountUnreadNotifications(ctx context.Context, userID uuid.UUID) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	count := 0
	for _, n := range r.notifications {
		if n.UserID == userID && !n.IsRead {
			count++
		}
	}
	return count, nil
}

func (r *memRepo) MarkNotificationsRead(ctx context.Context, userID uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.notifications {
		if r.notifications[i].UserID == userID {
			r.notifications[i].IsRead = true
		}
	}
	return nil
}

func (r *memRepo) InsertReport(ctx context.Context, rep *Report) (*Report, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored := *rep
	stored.ID = uuid.New()
	stored.CreatedAt = time.Now()
	r.reports = append(r.reports, stored)
	copied := stored
	return &copied, nil
}

func (r *memRepo) ListReportsByPatient(ctx context.Context, patientID uuid.UUID) ([]Report, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Report
	for _, rep := range r.reports {
		if rep.PatientID != nil && *rep.PatientID == patientID {
			out = append(out, rep)
		}
	}
	return out, nil
}

func (r *memRepo) InsertAuditLog(ctx context.Context, ev AuditLog) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	ev.ID = int64(len(r.auditLogs) + 1)
	r.auditLogs = append(r.auditLogs, ev)
	return nil
}

// noopLocker lets every caller straight through so the insert retry
// loop alone has to keep serials unique.
type noopLocker struct{}

func (noopLocker) WithQueueLock(ctx context.Context, queueKey string, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

func testConfig() config.Config {
	return config.Config{
		BookingPrefix:     "ALM",
		AvgConsultMinutes: 15,
		TestReportTime:    "10:00",
		SerialMaxRetries:  100,
		BookingIDRetries:  5,
		LockTTL:           time.Second,
		StoreTimeout:      5 * time.Second,
	}
}

func newTestService(repo Repository) *Service {
	return NewService(repo, noopLocker{}, testConfig(), zerolog.Nop())
}

func tomorrow() string {
	return time.Now().AddDate(0, 0, 1).Format(dateLayout)
}

func TestCreateAppointmentGuest(t *testing.T) {
	repo := newMemRepo()
	doctor := repo.addDoctor(Doctor{Name: "Dr. Mehta", StartTime: "09:00", ConsultationFee: 800, IsActive: true})
	svc := newTestService(repo)

	detail, err := svc.CreateAppointment(context.Background(), CreateRequest{
		DoctorID:        &doctor.ID,
		AppointmentDate: tomorrow(),
		GuestName:       "  Asha Rao  ",
		GuestPhone:      "98765 43210",
	})
	require.NoError(t, err)

	assert.Equal(t, 1, detail.SerialNumber)
	assert.Equal(t, StatusBooked, detail.Status)
	assert.Equal(t, "09:00", detail.EstimatedTime)
	assert.Regexp(t, `^ALM-\d{8}-\d{4}$`, detail.BookingID)
	require.NotNil(t, detail.GuestName)
	assert.Equal(t, "Asha Rao", *detail.GuestName)
	require.NotNil(t, detail.GuestPhone)
	assert.Equal(t, "9876543210", *detail.GuestPhone)
	require.NotNil(t, detail.Doctor)
	assert.Equal(t, doctor.ID, detail.Doctor.ID)

	// Guests get no in-app notification, but the event is audited.
	assert.Empty(t, repo.notifications)
	require.Len(t, repo.auditLogs, 1)
	assert.Equal(t, EventAppointmentBooked, repo.auditLogs[0].EventType)
}

func TestCreateAppointmentRegisteredPatient(t *testing.T) {
	repo := newMemRepo()
	doctor := repo.addDoctor(Doctor{Name: "Dr. Mehta", StartTime: "10:00", IsActive: true})
	svc := newTestService(repo)
	patientID := uuid.New()

	detail, err := svc.CreateAppointment(context.Background(), CreateRequest{
		DoctorID:        &doctor.ID,
		AppointmentDate: tomorrow(),
		PatientID:       &patientID,
	})
	require.NoError(t, err)

	require.NotNil(t, detail.PatientID)
	assert.Equal(t, patientID, *detail.PatientID)
	assert.Nil(t, detail.GuestName)

	require.Len(t, repo.notifications, 1)
	assert.Equal(t, NotificationBookingConfirmed, repo.notifications[0].Type)
	assert.Equal(t, patientID, repo.notifications[0].UserID)
}

func TestCreateAppointmentForLabTest(t *testing.T) {
	repo := newMemRepo()
	labTest := repo.addTest(Test{Name: "Lipid Profile", Price: 600, IsActive: true})
	svc := newTestService(repo)

	detail, err := svc.CreateAppointment(context.Background(), CreateRequest{
		TestID:          &labTest.ID,
		AppointmentDate: tomorrow(),
		GuestName:       "Ravi",
		GuestPhone:      "9876543210",
	})
	require.NoError(t, err)

	assert.Equal(t, 1, detail.SerialNumber)
	assert.Equal(t, "10:00", detail.EstimatedTime)
	require.NotNil(t, detail.Test)
	assert.Equal(t, labTest.ID, detail.Test.ID)
}

func TestCreateAppointmentInactiveDoctor(t *testing.T) {
	repo := newMemRepo()
	doctor := repo.addDoctor(Doctor{Name: "Dr. Gone", StartTime: "09:00", IsActive: false})
	svc := newTestService(repo)

	_, err := svc.CreateAppointment(context.Background(), CreateRequest{
		DoctorID:        &doctor.ID,
		AppointmentDate: tomorrow(),
		GuestName:       "Ravi",
		GuestPhone:      "9876543210",
	})

	assert.Equal(t, KindInactiveResource, KindOf(err))
}

func TestCreateAppointmentUnknownDoctor(t *testing.T) {
	repo := newMemRepo()
	svc := newTestService(repo)
	id := uuid.New()

	_, err := svc.CreateAppointment(context.Background(), CreateRequest{
		DoctorID:        &id,
		AppointmentDate: tomorrow(),
		GuestName:       "Ravi",
		GuestPhone:      "9876543210",
	})

	assert.Equal(t, KindNotFound, KindOf(err))
}

func TestSerialNumbersAreSequentialPerQueue(t *testing.T) {
	repo := newMemRepo()
	doctor := repo.addDoctor(Doctor{Name: "Dr. Mehta", StartTime: "09:00", IsActive: true})
	svc := newTestService(repo)

	dateA := time.Now().AddDate(0, 0, 1).Format(dateLayout)
	dateB := time.Now().AddDate(0, 0, 2).Format(dateLayout)

	for want := 1; want <= 3; want++ {
		detail, err := svc.CreateAppointment(context.Background(), CreateRequest{
			DoctorID:        &doctor.ID,
			AppointmentDate: dateA,
			GuestName:       "Guest",
			GuestPhone:      "9876543210",
		})
		require.NoError(t, err)
		assert.Equal(t, want, detail.SerialNumber)
	}

	// A different date is a different queue; numbering restarts at 1.
	detail, err := svc.CreateAppointment(context.Background(), CreateRequest{
		DoctorID:        &doctor.ID,
		AppointmentDate: dateB,
		GuestName:       "Guest",
		GuestPhone:      "9876543210",
	})
	require.NoError(t, err)
	assert.Equal(t, 1, detail.SerialNumber)
}

func TestConcurrentCreatesGetDistinctSerials(t *testing.T) {
	repo := newMemRepo()
	doctor := repo.addDoctor(Doctor{Name: "Dr. Mehta", StartTime: "09:00", IsActive: true})
	svc := newTestService(repo)

	const workers = 25
	date := tomorrow()

	serials := make(chan int, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			detail, err := svc.CreateAppointment(context.Background(), CreateRequest{
				DoctorID:        &doctor.ID,
				AppointmentDate: date,
				GuestName:       "Guest",
				GuestPhone:      "9876543210",
			})
			if assert.NoError(t, err) {
				serials <- detail.SerialNumber
			}
		}()
	}
	wg.Wait()
	close(serials)

	seen := make(map[int]bool)
	for s := range serials {
		assert.False(t, seen[s], "serial %d assigned twice", s)
		assert.GreaterOrEqual(t, s, 1)
		assert.LessOrEqual(t, s, workers)
		seen[s] = true
	}
	assert.Len(t, seen, workers)
}

// collideRepo forces booking-id collisions for the first few inserts.
type collideRepo struct {
	*memRepo
	collisions int
}

func (r *collideRepo) InsertAppointment(ctx context.Context, appt *Appointment) (*Appointment, error) {
	if r.collisions > 0 {
		r.collisions--
		return nil, ErrDuplicateBookingID
	}
	return r.memRepo.InsertAppointment(ctx, appt)
}

func TestBookingIDCollisionIsRegenerated(t *testing.T) {
	inner := newMemRepo()
	doctor := inner.addDoctor(Doctor{Name: "Dr. Mehta", StartTime: "09:00", IsActive: true})
	repo := &collideRepo{memRepo: inner, collisions: 2}
	svc := newTestService(repo)

	detail, err := svc.CreateAppointment(context.Background(), CreateRequest{
		DoctorID:        &doctor.ID,
		AppointmentDate: tomorrow(),
		GuestName:       "Guest",
		GuestPhone:      "9876543210",
	})

	require.NoError(t, err)
	assert.NotEmpty(t, detail.BookingID)
}

func TestBookingIDRetriesExhausted(t *testing.T) {
	inner := newMemRepo()
	doctor := inner.addDoctor(Doctor{Name: "Dr. Mehta", StartTime: "09:00", IsActive: true})
	repo := &collideRepo{memRepo: inner, collisions: 1000}
	svc := newTestService(repo)

	_, err := svc.CreateAppointment(context.Background(), CreateRequest{
		DoctorID:        &doctor.ID,
		AppointmentDate: tomorrow(),
		GuestName:       "Guest",
		GuestPhone:      "9876543210",
	})

	assert.Equal(t, KindConflict, KindOf(err))
}

func mustCreate(t *testing.T, svc *Service, req CreateRequest) *AppointmentDetail {
	t.Helper()
	detail, err := svc.CreateAppointment(context.Background(), req)
	require.NoError(t, err)
	return detail
}

func TestCancelAppointment(t *testing.T) {
	repo := newMemRepo()
	doctor := repo.addDoctor(Doctor{Name: "Dr. Mehta", StartTime: "09:00", IsActive: true})
	svc := newTestService(repo)
	patientID := uuid.New()

	detail := mustCreate(t, svc, CreateRequest{
		DoctorID:        &doctor.ID,
		AppointmentDate: tomorrow(),
		PatientID:       &patientID,
	})

	updated, err := svc.CancelAppointment(context.Background(), detail.ID, "feeling better")
	require.NoError(t, err)
	assert.Equal(t, StatusCancelled, updated.Status)
	require.NotNil(t, updated.CancellationReason)
	assert.Equal(t, "feeling better", *updated.CancellationReason)

	// booking_confirmed + booking_cancelled
	require.Len(t, repo.notifications, 2)
	assert.Equal(t, NotificationBookingCancelled, repo.notifications[1].Type)
}

func TestCancelIsIdempotent(t *testing.T) {
	repo := newMemRepo()
	doctor := repo.addDoctor(Doctor{Name: "Dr. Mehta", StartTime: "09:00", IsActive: true})
	svc := newTestService(repo)

	detail := mustCreate(t, svc, CreateRequest{
		DoctorID:        &doctor.ID,
		AppointmentDate: tomorrow(),
		GuestName:       "Guest",
		GuestPhone:      "9876543210",
	})

	first, err := svc.CancelAppointment(context.Background(), detail.ID, "change of plans")
	require.NoError(t, err)

	second, err := svc.CancelAppointment(context.Background(), detail.ID, "again")
	require.NoError(t, err)
	assert.Equal(t, StatusCancelled, second.Status)
	require.NotNil(t, second.CancellationReason)
	assert.Equal(t, *first.CancellationReason, *second.CancellationReason)
}

func TestCancelRequiresReason(t *testing.T) {
	svc := newTestService(newMemRepo())

	_, err := svc.CancelAppointment(context.Background(), uuid.New(), "   ")

	assert.Equal(t, KindValidation, KindOf(err))
}

func TestCancelCompletedAppointmentRejected(t *testing.T) {
	repo := newMemRepo()
	doctor := repo.addDoctor(Doctor{Name: "Dr. Mehta", StartTime: "09:00", IsActive: true})
	svc := newTestService(repo)

	detail := mustCreate(t, svc, CreateRequest{
		DoctorID:        &doctor.ID,
		AppointmentDate: tomorrow(),
		GuestName:       "Guest",
		GuestPhone:      "9876543210",
	})

	_, err := svc.AdvanceStatus(context.Background(), detail.ID, StatusCheckedIn)
	require.NoError(t, err)
	_, err = svc.AdvanceStatus(context.Background(), detail.ID, StatusCompleted)
	require.NoError(t, err)

	_, err = svc.CancelAppointment(context.Background(), detail.ID, "too late")
	assert.Equal(t, KindInvalidState, KindOf(err))
}

func TestAdvanceStatusFollowsStateMachine(t *testing.T) {
	repo := newMemRepo()
	doctor := repo.addDoctor(Doctor{Name: "Dr. Mehta", StartTime: "09:00", IsActive: true})
	svc := newTestService(repo)

	detail := mustCreate(t, svc, CreateRequest{
		DoctorID:        &doctor.ID,
		AppointmentDate: tomorrow(),
		GuestName:       "Guest",
		GuestPhone:      "9876543210",
	})

	// booked may not jump straight to completed.
	_, err := svc.AdvanceStatus(context.Background(), detail.ID, StatusCompleted)
	assert.Equal(t, KindInvalidState, KindOf(err))

	updated, err := svc.AdvanceStatus(context.Background(), detail.ID, StatusCheckedIn)
	require.NoError(t, err)
	assert.Equal(t, StatusCheckedIn, updated.Status)

	// checked_in may not go backwards.
	_, err = svc.AdvanceStatus(context.Background(), detail.ID, StatusBooked)
	assert.Equal(t, KindInvalidState, KindOf(err))

	updated, err = svc.AdvanceStatus(context.Background(), detail.ID, StatusCompleted)
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, updated.Status)

	// Completed is terminal.
	_, err = svc.AdvanceStatus(context.Background(), detail.ID, StatusCheckedIn)
	assert.Equal(t, KindInvalidState, KindOf(err))
}

func TestAdvanceToCancelledDelegates(t *testing.T) {
	repo := newMemRepo()
	doctor := repo.addDoctor(Doctor{Name: "Dr. Mehta", StartTime: "09:00", IsActive: true})
	svc := newTestService(repo)

	detail := mustCreate(t, svc, CreateRequest{
		DoctorID:        &doctor.ID,
		AppointmentDate: tomorrow(),
		GuestName:       "Guest",
		GuestPhone:      "9876543210",
	})

	updated, err := svc.AdvanceStatus(context.Background(), detail.ID, StatusCancelled)
	require.NoError(t, err)
	assert.Equal(t, StatusCancelled, updated.Status)
	require.NotNil(t, updated.CancellationReason)
	assert.Equal(t, "cancelled by staff", *updated.CancellationReason)
}

func TestGetAppointmentByBookingIDIsCaseInsensitive(t *testing.T) {
	repo := newMemRepo()
	doctor := repo.addDoctor(Doctor{Name: "Dr. Mehta", StartTime: "09:00", IsActive: true})
	svc := newTestService(repo)

	detail := mustCreate(t, svc, CreateRequest{
		DoctorID:        &doctor.ID,
		AppointmentDate: tomorrow(),
		GuestName:       "Guest",
		GuestPhone:      "9876543210",
	})

	found, err := svc.GetAppointmentByBookingID(context.Background(), strings.ToLower(detail.BookingID))
	require.NoError(t, err)
	assert.Equal(t, detail.ID, found.ID)

	_, err = svc.GetAppointmentByBookingID(context.Background(), "ALM-19700101-0000")
	assert.Equal(t, KindNotFound, KindOf(err))
}

func TestApplyCoupon(t *testing.T) {
	repo := newMemRepo()
	svc := newTestService(repo)
	fixed := time.Date(2026, 8, 29, 12, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return fixed }

	yesterday := fixed.AddDate(0, 0, -1)
	today := time.Date(2026, 8, 29, 0, 0, 0, 0, time.UTC)

	repo.addCoupon(Coupon{Code: "SAVE10", DiscountType: DiscountPercent, DiscountValue: 10, IsActive: true})
	repo.addCoupon(Coupon{Code: "FLAT700", DiscountType: DiscountFlat, DiscountValue: 700, IsActive: true})
	repo.addCoupon(Coupon{Code: "OLD", DiscountType: DiscountPercent, DiscountValue: 50, IsActive: true, ExpiresAt: &yesterday})
	repo.addCoupon(Coupon{Code: "TODAY", DiscountType: DiscountPercent, DiscountValue: 5, IsActive: true, ExpiresAt: &today})
	repo.addCoupon(Coupon{Code: "DEAD", DiscountType: DiscountFlat, DiscountValue: 100, IsActive: false})

	p, err := svc.ApplyCoupon(context.Background(), 1000, "save10")
	require.NoError(t, err)
	assert.Equal(t, 900.0, p.Final)

	p, err = svc.ApplyCoupon(context.Background(), 500, "FLAT700")
	require.NoError(t, err)
	assert.Equal(t, 0.0, p.Final)

	// A coupon expiring today still applies.
	_, err = svc.ApplyCoupon(context.Background(), 100, "TODAY")
	assert.NoError(t, err)

	_, err = svc.ApplyCoupon(context.Background(), 100, "OLD")
	assert.Equal(t, KindValidation, KindOf(err))

	_, err = svc.ApplyCoupon(context.Background(), 100, "DEAD")
	assert.Equal(t, KindValidation, KindOf(err))

	_, err = svc.ApplyCoupon(context.Background(), 100, "NOPE")
	assert.Equal(t, KindNotFound, KindOf(err))

	_, err = svc.ApplyCoupon(context.Background(), 100, "  ")
	assert.Equal(t, KindValidation, KindOf(err))

	_, err = svc.ApplyCoupon(context.Background(), -5, "SAVE10")
	assert.Equal(t, KindValidation, KindOf(err))
}

func TestSweepExpiredCoupons(t *testing.T) {
	repo := newMemRepo()
	svc := newTestService(repo)
	fixed := time.Date(2026, 8, 29, 12, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return fixed }

	yesterday := fixed.AddDate(0, 0, -1)
	nextWeek := fixed.AddDate(0, 0, 7)
	repo.addCoupon(Coupon{Code: "OLD", DiscountType: DiscountFlat, DiscountValue: 50, IsActive: true, ExpiresAt: &yesterday})
	repo.addCoupon(Coupon{Code: "FRESH", DiscountType: DiscountFlat, DiscountValue: 50, IsActive: true, ExpiresAt: &nextWeek})
	repo.addCoupon(Coupon{Code: "FOREVER", DiscountType: DiscountFlat, DiscountValue: 50, IsActive: true})

	n, err := svc.SweepExpiredCoupons(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	active, err := svc.ListActiveCoupons(context.Background())
	require.NoError(t, err)
	assert.Len(t, active, 2)
}

func TestSendRemindersSkipsGuestsAndOtherDates(t *testing.T) {
	repo := newMemRepo()
	doctor := repo.addDoctor(Doctor{Name: "Dr. Mehta", StartTime: "09:00", IsActive: true})
	svc := newTestService(repo)
	patientID := uuid.New()

	dateA := time.Now().AddDate(0, 0, 1)
	dateB := time.Now().AddDate(0, 0, 2)

	mustCreate(t, svc, CreateRequest{
		DoctorID:        &doctor.ID,
		AppointmentDate: dateA.Format(dateLayout),
		PatientID:       &patientID,
	})
	mustCreate(t, svc, CreateRequest{
		DoctorID:        &doctor.ID,
		AppointmentDate: dateA.Format(dateLayout),
		GuestName:       "Guest",
		GuestPhone:      "9876543210",
	})
	mustCreate(t, svc, CreateRequest{
		DoctorID:        &doctor.ID,
		AppointmentDate: dateB.Format(dateLayout),
		PatientID:       &patientID,
	})

	target := time.Date(dateA.Year(), dateA.Month(), dateA.Day(), 0, 0, 0, 0, dateA.Location())
	sent, err := svc.SendReminders(context.Background(), target)
	require.NoError(t, err)
	assert.Equal(t, 1, sent)

	items, err := svc.ListNotifications(context.Background(), patientID, true)
	require.NoError(t, err)

	var reminders int
	for _, n := range items {
		if n.Type == NotificationAppointmentReminder {
			reminders++
		}
	}
	assert.Equal(t, 1, reminders)
}

func TestMarkNotificationsRead(t *testing.T) {
	repo := newMemRepo()
	doctor := repo.addDoctor(Doctor{Name: "Dr. Mehta", StartTime: "09:00", IsActive: true})
	svc := newTestService(repo)
	patientID := uuid.New()

	mustCreate(t, svc, CreateRequest{
		DoctorID:        &doctor.ID,
		AppointmentDate: tomorrow(),
		PatientID:       &patientID,
	})

	count, err := svc.UnreadNotificationCount(context.Background(), patientID)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	require.NoError(t, svc.MarkNotificationsRead(context.Background(), patientID))

	count, err = svc.UnreadNotificationCount(context.Background(), patientID)
	require.NoError(t, err)
	assert.Equal(t, 0, count)
}
