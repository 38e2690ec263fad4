package booking

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const appointmentColumns = `id, booking_id, doctor_id, test_id, patient_id,
		guest_name, guest_phone, guest_email, appointment_date, serial_number,
		estimated_time, status, patient_notes, coupon_code, cancellation_reason,
		created_at, updated_at`

type PgRepository struct {
	pool *pgxpool.Pool
}

func NewPgRepository(pool *pgxpool.Pool) *PgRepository {
	return &PgRepository{pool: pool}
}

// Helpers

func scanDoctor(row pgx.Row) (*Doctor, error) {
	var d Doctor

	err := row.Scan(
		&d.ID,
		&d.Name,
		&d.Specialization,
		&d.ConsultationFee,
		&d.StartTime,
		&d.ImageURL,
		&d.IsActive,
		&d.CreatedAt,
		&d.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrDoctorNotFound
		}
		return nil, err
	}

	return &d, nil
}

func scanTest(row pgx.Row) (*Test, error) {
	var t Test

	err := row.Scan(
		&t.ID,
		&t.Name,
		&t.Description,
		&t.Price,
		&t.IsActive,
		&t.CreatedAt,
		&t.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrTestNotFound
		}
		return nil, err
	}

	return &t, nil
}

func scanCoupon(row pgx.Row) (*Coupon, error) {
	var c Coupon

	err := row.Scan(
		&c.ID,
		&c.Code,
		&c.DiscountType,
		&c.DiscountValue,
		&c.IsActive,
		&c.ExpiresAt,
		&c.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrCouponNotFound
		}
		return nil, err
	}

	return &c, nil
}

func scanAppointment(row pgx.Row) (*Appointment, error) {
	var a Appointment

	err := row.Scan(
		&a.ID,
		&a.BookingID,
		&a.DoctorID,
		&a.TestID,
		&a.PatientID,
		&a.GuestName,
		&a.GuestPhone,
		&a.GuestEmail,
		&a.AppointmentDate,
		&a.SerialNumber,
		&a.EstimatedTime,
		&a.Status,
		&a.PatientNotes,
		&a.CouponCode,
		&a.CancellationReason,
		&a.CreatedAt,
		&a.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAppointmentNotFound
		}
		return nil, err
	}

	return &a, nil
}

// uniqueViolation reports whether err is a violation of the named
// unique constraint.
func uniqueViolation(err error, constraint string) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	return pgErr.Code == "23505" && pgErr.ConstraintName == constraint
}

// Interface methods

func (r *PgRepository) ListActiveDoctors(ctx context.Context) ([]Doctor, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, name, specialization, consultation_fee, start_time, image_url, is_active, created_at, updated_at
		FROM doctors
		WHERE is_active = true
		ORDER BY name
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []Doctor
	for rows.Next() {
		d, err := scanDoctor(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *d)
	}

	return result, rows.Err()
}

func (r *PgRepository) ListActiveTests(ctx context.Context) ([]Test, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, name, description, price, is_active, created_at, updated_at
		FROM tests
		WHERE is_active = true
		ORDER BY name
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []Test
	for rows.Next() {
		t, err := scanTest(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *t)
	}

	return result, rows.Err()
}

func (r *PgRepository) GetDoctorByID(ctx context.Context, id uuid.UUID) (*Doctor, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, name, specialization, consultation_fee, start_time, image_url, is_active, created_at, updated_at
		FROM doctors
		WHERE id = $1
	`, id)
	return scanDoctor(row)
}

func (r *PgRepository) GetTestByID(ctx context.Context, id uuid.UUID) (*Test, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, name, description, price, is_active, created_at, updated_at
		FROM tests
		WHERE id = $1
	`, id)
	return scanTest(row)
}

func (r *PgRepository) MaxSerialNumber(ctx context.Context, kind ResourceKind, resourceID uuid.UUID, date time.Time) (int, error) {
	column := "doctor_id"
	if kind == KindTest {
		column = "test_id"
	}

	var max int
	err := r.pool.QueryRow(ctx, fmt.Sprintf(`
		SELECT COALESCE(MAX(serial_number), 0)
		FROM appointments
		WHERE %s = $1 AND appointment_date = $2
	`, column), resourceID, date).Scan(&max)
	if err != nil {
		return 0, err
	}

	return max, nil
}

func (r *PgRepository) InsertAppointment(ctx context.Context, appt *Appointment) (*Appointment, error) {
	id := uuid.New()

	row := r.pool.QueryRow(ctx, `
		INSERT INTO appointments (id, booking_id, doctor_id, test_id, patient_id,
			guest_name, guest_phone, guest_email, appointment_date, serial_number,
			estimated_time, status, patient_notes, coupon_code, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, now(), now())
		RETURNING `+appointmentColumns+`
	`, id, appt.BookingID, appt.DoctorID, appt.TestID, appt.PatientID,
		appt.GuestName, appt.GuestPhone, appt.GuestEmail, appt.AppointmentDate, appt.SerialNumber,
		appt.EstimatedTime, appt.Status, appt.PatientNotes, appt.CouponCode)

	inserted, err := scanAppointment(row)
	if err != nil {
		switch {
		case uniqueViolation(err, "appointments_doctor_serial_key"),
			uniqueViolation(err, "appointments_test_serial_key"):
			return nil, ErrDuplicateSerial
		case uniqueViolation(err, "appointments_booking_id_key"):
			return nil, ErrDuplicateBookingID
		}
		return nil, err
	}

	return inserted, nil
}

func (r *PgRepository) GetAppointmentByID(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE id = $1
	`, id)
	return scanAppointment(row)
}

func (r *PgRepository) GetAppointmentByBookingID(ctx context.Context, bookingID string) (*AppointmentDetail, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE booking_id = $1
	`, bookingID)

	appt, err := scanAppointment(row)
	if err != nil {
		return nil, err
	}

	return r.hydrate(ctx, appt)
}

func (r *PgRepository) ListAppointmentsByPatient(ctx context.Context, patientID uuid.UUID, status *Status) ([]AppointmentDetail, error) {
	query := `
		SELECT ` + appointmentColumns + `
		FROM appointments
		WHERE patient_id = $1
	`
	args := []any{patientID}
	if status != nil {
		query += ` AND status = $2`
		args = append(args, *status)
	}
	query += ` ORDER BY appointment_date DESC, serial_number`

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var appts []Appointment
	for rows.Next() {
		a, err := scanAppointment(rows)
		if err != nil {
			return nil, err
		}
		appts = append(appts, *a)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	result := make([]AppointmentDetail, 0, len(appts))
	for i := range appts {
		detail, err := r.hydrate(ctx, &appts[i])
		if err != nil {
			return nil, err
		}
		result = append(result, *detail)
	}

	return result, nil
}

func (r *PgRepository) ListAppointmentsOnDate(ctx context.Context, date time.Time, status Status) ([]Appointment, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE appointment_date = $1 AND status = $2
	`, date, status)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []Appointment
	for rows.Next() {
		a, err := scanAppointment(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *a)
	}

	return result, rows.Err()
}

func (r *PgRepository) UpdateAppointmentStatus(ctx context.Context, id uuid.UUID, from, to Status, cancellationReason *string) (*Appointment, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE appointments
		SET status = $2,
		    cancellation_reason = COALESCE($4, cancellation_reason),
		    updated_at = now()
		WHERE id = $1
		  AND status = $3
		RETURNING `+appointmentColumns+`
	`, id, to, from, cancellationReason)

	return scanAppointment(row)
}

func (r *PgRepository) GetCouponByCode(ctx context.Context, code string) (*Coupon, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, code, discount_type, discount_value, is_active, expires_at, created_at
		FROM coupons
		WHERE upper(code) = upper($1)
	`, code)
	return scanCoupon(row)
}

func (r *PgRepository) ListActiveCoupons(ctx context.Context) ([]Coupon, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, code, discount_type, discount_value, is_active, expires_at, created_at
		FROM coupons
		WHERE is_active = true
		  AND (expires_at IS NULL OR expires_at >= CURRENT_DATE)
		ORDER BY created_at DESC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []Coupon
	for rows.Next() {
		c, err := scanCoupon(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *c)
	}

	return result, rows.Err()
}

func (r *PgRepository) DeactivateExpiredCoupons(ctx context.Context, before time.Time) (int64, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE coupons
		SET is_active = false
		WHERE is_active = true
		  AND expires_at IS NOT NULL
		  AND expires_at < $1
	`, before)
	if err != nil {
		return 0, err
	}

	return tag.RowsAffected(), nil
}

func (r *PgRepository) InsertNotification(ctx context.Context, n Notification) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO notifications (user_id, type, message, created_at)
		VALUES ($1, $2, $3, now())
	`, n.UserID, n.Type, n.Message)
	if err != nil {
		return fmt.Errorf("insert notification: %w", err)
	}

	return nil
}

func (r *PgRepository) ListNotificationsByUser(ctx context.Context, userID uuid.UUID, unreadOnly bool) ([]Notification, error) {
	query := `
		SELECT id, user_id, type, message, is_read, created_at
		FROM notifications
		WHERE user_id = $1
	`
	if unreadOnly {
		query += ` AND is_read = false`
	}
	query += ` ORDER BY created_at DESC`

	rows, err := r.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []Notification
	for rows.Next() {
		var n Notification
		if err := rows.Scan(&n.ID, &n.UserID, &n.Type, &n.Message, &n.IsRead, &n.CreatedAt); err != nil {
			return nil, err
		}
		result = append(result, n)
	}

	return result, rows.Err()
}

func (r *PgRepository) CountUnreadNotifications(ctx context.Context, userID uuid.UUID) (int, error) {
	var count int
	err := r.pool.QueryRow(ctx, `
		SELECT count(*)
		FROM notifications
		WHERE user_id = $1 AND is_read = false
	`, userID).Scan(&count)
	if err != nil {
		return 0, err
	}

	return count, nil
}

func (r *PgRepository) MarkNotificationsRead(ctx context.Context, userID uuid.UUID) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE notifications
		SET is_read = true
		WHERE user_id = $1 AND is_read = false
	`, userID)
	return err
}

func (r *PgRepository) InsertReport(ctx context.Context, rep *Report) (*Report, error) {
	id := uuid.New()

	row := r.pool.QueryRow(ctx, `
		INSERT INTO reports (id, appointment_id, patient_id, report_type, file_name, object_path, uploaded_by, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, now())
		RETURNING id, appointment_id, patient_id, report_type, file_name, object_path, uploaded_by, created_at
	`, id, rep.AppointmentID, rep.PatientID, rep.ReportType, rep.FileName, rep.ObjectPath, rep.UploadedBy)

	var out Report
	err := row.Scan(&out.ID, &out.AppointmentID, &out.PatientID, &out.ReportType, &out.FileName, &out.ObjectPath, &out.UploadedBy, &out.CreatedAt)
	if err != nil {
		return nil, err
	}

	return &out, nil
}

func (r *PgRepository) ListReportsByPatient(ctx context.Context, patientID uuid.UUID) ([]Report, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, appointment_id, patient_id, report_type, file_name, object_path, uploaded_by, created_at
		FROM reports
		WHERE patient_id = $1
		ORDER BY created_at DESC
	`, patientID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []Report
	for rows.Next() {
		var rep Report
		if err := rows.Scan(&rep.ID, &rep.AppointmentID, &rep.PatientID, &rep.ReportType, &rep.FileName, &rep.ObjectPath, &rep.UploadedBy, &rep.CreatedAt); err != nil {
			return nil, err
		}
		result = append(result, rep)
	}

	return result, rows.Err()
}

func (r *PgRepository) InsertAuditLog(ctx context.Context, ev AuditLog) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO audit_logs (event_type, appointment_id, payload, created_at)
		VALUES ($1, $2, $3, COALESCE($4, now()))
	`, ev.EventType, ev.AppointmentID, ev.Payload, nullableTime(ev.CreatedAt))
	if err != nil {
		return fmt.Errorf("insert audit log: %w", err)
	}

	return nil
}

func (r *PgRepository) hydrate(ctx context.Context, appt *Appointment) (*AppointmentDetail, error) {
	detail := &AppointmentDetail{Appointment: *appt}

	switch {
	case appt.DoctorID != nil:
		d, err := r.GetDoctorByID(ctx, *appt.DoctorID)
		if err != nil {
			return nil, err
		}
		detail.Doctor = d
	case appt.TestID != nil:
		t, err := r.GetTestByID(ctx, *appt.TestID)
		if err != nil {
			return nil, err
		}
		detail.Test = t
	}

	return detail, nil
}

func nullableTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
