// Package reports handles lab report files: uploads into object
// storage plus the reports table, and presigned download links for
// patients.
package reports

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
	"github.com/rs/zerolog"

	"github.com/almdiagnostics/clinic-booking-service/internal/booking"
)

var validReportTypes = map[string]bool{
	"diagnostic_test": true,
	"prescription":    true,
	"scan":            true,
	"other":           true,
}

// repository is the slice of the booking repository this service needs.
type repository interface {
	GetAppointmentByID(ctx context.Context, id uuid.UUID) (*booking.Appointment, error)
	InsertReport(ctx context.Context, r *booking.Report) (*booking.Report, error)
	ListReportsByPatient(ctx context.Context, patientID uuid.UUID) ([]booking.Report, error)
	InsertNotification(ctx context.Context, n booking.Notification) error
}

type Service struct {
	repo   repository
	store  *minio.Client
	bucket string
	urlTTL time.Duration
	log    zerolog.Logger
}

func NewService(repo repository, store *minio.Client, bucket string, log zerolog.Logger) *Service {
	return &Service{
		repo:   repo,
		store:  store,
		bucket: bucket,
		urlTTL: 15 * time.Minute,
		log:    log,
	}
}

// ReportWithURL pairs a report row with a short-lived download link.
type ReportWithURL struct {
	booking.Report
	DownloadURL string
}

// Upload stores a report file for an appointment and records it in the
// reports table. The object path is namespaced by appointment so lab
// staff can re-upload without clobbering other appointments' files.
func (s *Service) Upload(ctx context.Context, appointmentID uuid.UUID, reportType, fileName string, file io.Reader, size int64, contentType string, uploadedBy uuid.UUID) (*booking.Report, error) {
	if !validReportTypes[reportType] {
		return nil, &booking.Fault{Kind: booking.KindValidation, Message: fmt.Sprintf("unknown report type %q", reportType)}
	}
	fileName = path.Base(strings.TrimSpace(fileName))
	if fileName == "" || fileName == "." {
		return nil, &booking.Fault{Kind: booking.KindValidation, Message: "file name is required"}
	}

	appt, err := s.repo.GetAppointmentByID(ctx, appointmentID)
	if err != nil {
		if errors.Is(err, booking.ErrAppointmentNotFound) {
			return nil, &booking.Fault{Kind: booking.KindNotFound, Message: "appointment not found"}
		}
		return nil, err
	}

	objectPath := fmt.Sprintf("%s/%d-%s", appointmentID, time.Now().Unix(), fileName)

	_, err = s.store.PutObject(ctx, s.bucket, objectPath, file, size, minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return nil, fmt.Errorf("upload report object: %w", err)
	}

	rep := &booking.Report{
		AppointmentID: appointmentID,
		PatientID:     appt.PatientID,
		ReportType:    reportType,
		FileName:      fileName,
		ObjectPath:    objectPath,
		UploadedBy:    &uploadedBy,
	}

	inserted, err := s.repo.InsertReport(ctx, rep)
	if err != nil {
		return nil, fmt.Errorf("insert report row: %w", err)
	}

	if appt.PatientID != nil {
		n := booking.Notification{
			UserID:  *appt.PatientID,
			Type:    booking.NotificationReportReady,
			Message: fmt.Sprintf("A new report is available for appointment %s", appt.BookingID),
		}
		if err := s.repo.InsertNotification(ctx, n); err != nil {
			s.log.Error().Err(err).Str("booking_id", appt.BookingID).Msg("failed to insert report notification")
		}
	}

	return inserted, nil
}

// ListForPatient returns the patient's reports with presigned download
// URLs.
func (s *Service) ListForPatient(ctx context.Context, patientID uuid.UUID) ([]ReportWithURL, error) {
	rows, err := s.repo.ListReportsByPatient(ctx, patientID)
	if err != nil {
		return nil, err
	}

	result := make([]ReportWithURL, 0, len(rows))
	for _, rep := range rows {
		u, err := s.DownloadURL(ctx, &rep)
		if err != nil {
			s.log.Error().Err(err).Str("object", rep.ObjectPath).Msg("failed to presign report url")
			u = ""
		}
		result = append(result, ReportWithURL{Report: rep, DownloadURL: u})
	}

	return result, nil
}

// DownloadURL presigns a GET link for one report object.
func (s *Service) DownloadURL(ctx context.Context, rep *booking.Report) (string, error) {
	params := url.Values{}
	params.Set("response-content-disposition", fmt.Sprintf("attachment; filename=%q", rep.FileName))

	u, err := s.store.PresignedGetObject(ctx, s.bucket, rep.ObjectPath, s.urlTTL, params)
	if err != nil {
		return "", fmt.Errorf("presign report object: %w", err)
	}

	return u.String(), nil
}
