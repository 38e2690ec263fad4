package reports

import (
	"context"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"

	"github.com/almdiagnostics/clinic-booking-service/internal/booking"
)

type stubRepo struct {
	appointments map[uuid.UUID]*booking.Appointment
}

func (r *stubRepo) GetAppointmentByID(ctx context.Context, id uuid.UUID) (*booking.Appointment, error) {
	a, ok := r.appointments[id]
	if !ok {
		return nil, booking.ErrAppointmentNotFound
	}
	return a, nil
}

func (r *stubRepo) InsertReport(ctx context.Context, rep *booking.Report) (*booking.Report, error) {
	return rep, nil
}

func (r *stubRepo) ListReportsByPatient(ctx context.Context, patientID uuid.UUID) ([]booking.Report, error) {
	return nil, nil
}

func (r *stubRepo) InsertNotification(ctx context.Context, n booking.Notification) error {
	return nil
}

// Upload's preconditions fail before any object-store call, so these
// run without MinIO.

func TestUploadRejectsUnknownReportType(t *testing.T) {
	svc := NewService(&stubRepo{}, nil, "reports", zerolog.Nop())

	_, err := svc.Upload(context.Background(), uuid.New(), "selfie", "x.pdf",
		strings.NewReader("data"), 4, "application/pdf", uuid.New())

	assert.Equal(t, booking.KindValidation, booking.KindOf(err))
}

func TestUploadRejectsEmptyFileName(t *testing.T) {
	svc := NewService(&stubRepo{}, nil, "reports", zerolog.Nop())

	_, err := svc.Upload(context.Background(), uuid.New(), "scan", "   ",
		strings.NewReader("data"), 4, "application/pdf", uuid.New())

	assert.Equal(t, booking.KindValidation, booking.KindOf(err))
}

func TestUploadUnknownAppointment(t *testing.T) {
	svc := NewService(&stubRepo{appointments: map[uuid.UUID]*booking.Appointment{}}, nil, "reports", zerolog.Nop())

	_, err := svc.Upload(context.Background(), uuid.New(), "scan", "result.pdf",
		strings.NewReader("data"), 4, "application/pdf", uuid.New())

	assert.Equal(t, booking.KindNotFound, booking.KindOf(err))
}
