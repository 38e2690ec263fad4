package api

import (
	"time"

	"github.com/google/uuid"

	"github.com/almdiagnostics/clinic-booking-service/internal/booking"
)

type CreateAppointmentRequest struct {
	DoctorID        string `json:"doctor_id,omitempty"`
	TestID          string `json:"test_id,omitempty"`
	AppointmentDate string `json:"appointment_date"`
	GuestName       string `json:"guest_name,omitempty"`
	GuestPhone      string `json:"guest_phone,omitempty"`
	GuestEmail      string `json:"guest_email,omitempty"`
	Notes           string `json:"notes,omitempty"`
	CouponCode      string `json:"coupon_code,omitempty"`
}

type CancelAppointmentRequest struct {
	Reason string `json:"reason"`
}

type AdvanceStatusRequest struct {
	Status string `json:"status"`
}

type CouponPreviewRequest struct {
	Price float64 `json:"price"`
	Code  string  `json:"code"`
}

type AppointmentResponse struct {
	ID              uuid.UUID  `json:"id"`
	BookingID       string     `json:"booking_id"`
	DoctorID        *uuid.UUID `json:"doctor_id,omitempty"`
	TestID          *uuid.UUID `json:"test_id,omitempty"`
	AppointmentDate string     `json:"appointment_date"`
	SerialNumber    int        `json:"serial_number"`
	EstimatedTime   string     `json:"estimated_time"`
	Status          string     `json:"status"`
	GuestName       *string    `json:"guest_name,omitempty"`
	Notes           *string    `json:"notes,omitempty"`
	CouponCode      *string    `json:"coupon_code,omitempty"`

	Doctor *DoctorResponse `json:"doctor,omitempty"`
	Test   *TestResponse   `json:"test,omitempty"`
}

type DoctorResponse struct {
	ID              uuid.UUID `json:"id"`
	Name            string    `json:"name"`
	Specialization  string    `json:"specialization"`
	ConsultationFee float64   `json:"consultation_fee"`
	StartTime       string    `json:"start_time"`
	ImageURL        *string   `json:"image_url,omitempty"`
}

type TestResponse struct {
	ID          uuid.UUID `json:"id"`
	Name        string    `json:"name"`
	Description *string   `json:"description,omitempty"`
	Price       float64   `json:"price"`
}

type CouponResponse struct {
	Code          string  `json:"code"`
	DiscountType  string  `json:"discount_type"`
	DiscountValue float64 `json:"discount_value"`
	ExpiresAt     *string `json:"expires_at,omitempty"`
}

type NotificationResponse struct {
	ID        int64     `json:"id"`
	Type      string    `json:"type"`
	Message   string    `json:"message"`
	IsRead    bool      `json:"is_read"`
	CreatedAt time.Time `json:"created_at"`
}

type ReportResponse struct {
	ID            uuid.UUID `json:"id"`
	AppointmentID uuid.UUID `json:"appointment_id"`
	ReportType    string    `json:"report_type"`
	FileName      string    `json:"file_name"`
	DownloadURL   string    `json:"download_url,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

func toAppointmentResponse(a *booking.Appointment) AppointmentResponse {
	return AppointmentResponse{
		ID:              a.ID,
		BookingID:       a.BookingID,
		DoctorID:        a.DoctorID,
		TestID:          a.TestID,
		AppointmentDate: a.AppointmentDate.Format("2006-01-02"),
		SerialNumber:    a.SerialNumber,
		EstimatedTime:   a.EstimatedTime,
		Status:          string(a.Status),
		GuestName:       a.GuestName,
		Notes:           a.PatientNotes,
		CouponCode:      a.CouponCode,
	}
}

func toDetailResponse(d *booking.AppointmentDetail) AppointmentResponse {
	resp := toAppointmentResponse(&d.Appointment)
	if d.Doctor != nil {
		doc := toDoctorResponse(d.Doctor)
		resp.Doctor = &doc
	}
	if d.Test != nil {
		test := toTestResponse(d.Test)
		resp.Test = &test
	}
	return resp
}

func toDoctorResponse(d *booking.Doctor) DoctorResponse {
	return DoctorResponse{
		ID:              d.ID,
		Name:            d.Name,
		Specialization:  d.Specialization,
		ConsultationFee: d.ConsultationFee,
		StartTime:       d.StartTime,
		ImageURL:        d.ImageURL,
	}
}

func toTestResponse(t *booking.Test) TestResponse {
	return TestResponse{
		ID:          t.ID,
		Name:        t.Name,
		Description: t.Description,
		Price:       t.Price,
	}
}

func toCouponResponse(c *booking.Coupon) CouponResponse {
	resp := CouponResponse{
		Code:          c.Code,
		DiscountType:  string(c.DiscountType),
		DiscountValue: c.DiscountValue,
	}
	if c.ExpiresAt != nil {
		s := c.ExpiresAt.Format("2006-01-02")
		resp.ExpiresAt = &s
	}
	return resp
}
