package api

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/almdiagnostics/clinic-booking-service/internal/booking"
	"github.com/almdiagnostics/clinic-booking-service/internal/metrics"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, details string) {
	writeJSON(w, status, ErrorResponse{Error: code, Details: details})
}

// writeFault maps the booking error taxonomy onto HTTP statuses.
func writeFault(w http.ResponseWriter, err error) {
	kind := booking.KindOf(err)

	status := http.StatusInternalServerError
	switch kind {
	case booking.KindValidation:
		status = http.StatusBadRequest
	case booking.KindNotFound:
		status = http.StatusNotFound
	case booking.KindInactiveResource:
		status = http.StatusUnprocessableEntity
	case booking.KindConflict, booking.KindInvalidState:
		status = http.StatusConflict
	case booking.KindTimeout, booking.KindUnavailable:
		status = http.StatusServiceUnavailable
	}

	writeError(w, status, string(kind), err.Error())
}

func listDoctorsHandler(svc *booking.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		doctors, err := svc.ListBookableDoctors(r.Context())
		if err != nil {
			writeFault(w, err)
			return
		}

		resp := make([]DoctorResponse, 0, len(doctors))
		for i := range doctors {
			resp = append(resp, toDoctorResponse(&doctors[i]))
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func listTestsHandler(svc *booking.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tests, err := svc.ListBookableTests(r.Context())
		if err != nil {
			writeFault(w, err)
			return
		}

		resp := make([]TestResponse, 0, len(tests))
		for i := range tests {
			resp = append(resp, toTestResponse(&tests[i]))
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func listCouponsHandler(svc *booking.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		coupons, err := svc.ListActiveCoupons(r.Context())
		if err != nil {
			writeFault(w, err)
			return
		}

		resp := make([]CouponResponse, 0, len(coupons))
		for i := range coupons {
			resp = append(resp, toCouponResponse(&coupons[i]))
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func couponPreviewHandler(svc *booking.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req CouponPreviewRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		pricing, err := svc.ApplyCoupon(r.Context(), req.Price, req.Code)
		if err != nil {
			writeFault(w, err)
			return
		}

		writeJSON(w, http.StatusOK, pricing)
	}
}

func createAppointmentHandler(svc *booking.Service, collector *metrics.Collector) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req CreateAppointmentRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		create := booking.CreateRequest{
			AppointmentDate: req.AppointmentDate,
			GuestName:       req.GuestName,
			GuestPhone:      req.GuestPhone,
			GuestEmail:      req.GuestEmail,
			Notes:           req.Notes,
			CouponCode:      req.CouponCode,
		}

		if req.DoctorID != "" {
			id, err := uuid.Parse(req.DoctorID)
			if err != nil {
				writeError(w, http.StatusBadRequest, "invalid_doctor_id", "doctor_id must be a valid UUID")
				return
			}
			create.DoctorID = &id
		}
		if req.TestID != "" {
			id, err := uuid.Parse(req.TestID)
			if err != nil {
				writeError(w, http.StatusBadRequest, "invalid_test_id", "test_id must be a valid UUID")
				return
			}
			create.TestID = &id
		}

		// A verified identity overrides the guest path entirely.
		if caller := GetIdentity(r.Context()); caller != nil {
			userID := caller.UserID
			create.PatientID = &userID
		}

		detail, err := svc.CreateAppointment(r.Context(), create)
		if err != nil {
			writeFault(w, err)
			return
		}

		collector.BookingsTotal.WithLabelValues(string(booking.StatusBooked)).Inc()
		writeJSON(w, http.StatusCreated, toDetailResponse(detail))
	}
}

func getAppointmentHandler(svc *booking.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		// The path parameter is the human-readable booking reference.
		bookingID := chi.URLParam(r, "id")

		detail, err := svc.GetAppointmentByBookingID(r.Context(), bookingID)
		if err != nil {
			writeFault(w, err)
			return
		}

		writeJSON(w, http.StatusOK, toDetailResponse(detail))
	}
}

func myAppointmentsHandler(svc *booking.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		caller := GetIdentity(r.Context())
		if caller == nil {
			writeError(w, http.StatusUnauthorized, "unauthorized", "sign in to view your appointments")
			return
		}

		var status *booking.Status
		if q := r.URL.Query().Get("status"); q != "" {
			s := booking.Status(q)
			status = &s
		}

		appts, err := svc.ListPatientAppointments(r.Context(), caller.UserID, status)
		if err != nil {
			writeFault(w, err)
			return
		}

		resp := make([]AppointmentResponse, 0, len(appts))
		for i := range appts {
			resp = append(resp, toDetailResponse(&appts[i]))
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func cancelAppointmentHandler(svc *booking.Service, collector *metrics.Collector) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		caller := GetIdentity(r.Context())
		if caller == nil {
			writeError(w, http.StatusUnauthorized, "unauthorized", "sign in to cancel an appointment")
			return
		}

		id, err := uuid.Parse(chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_appointment_id", "id must be a valid UUID")
			return
		}

		var req CancelAppointmentRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		// Patients may only cancel their own bookings; staff may cancel any.
		if !caller.IsStaff() {
			appt, err := svc.GetAppointment(r.Context(), id)
			if err != nil {
				writeFault(w, err)
				return
			}
			if appt.PatientID == nil || *appt.PatientID != caller.UserID {
				writeError(w, http.StatusForbidden, "forbidden", "not your appointment")
				return
			}
		}

		updated, err := svc.CancelAppointment(r.Context(), id, req.Reason)
		if err != nil {
			writeFault(w, err)
			return
		}

		collector.BookingsTotal.WithLabelValues(string(booking.StatusCancelled)).Inc()
		writeJSON(w, http.StatusOK, toAppointmentResponse(updated))
	}
}

func advanceStatusHandler(svc *booking.Service, collector *metrics.Collector) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		caller := GetIdentity(r.Context())
		if !caller.IsStaff() {
			writeError(w, http.StatusForbidden, "forbidden", "lab or admin role required")
			return
		}

		id, err := uuid.Parse(chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_appointment_id", "id must be a valid UUID")
			return
		}

		var req AdvanceStatusRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		updated, err := svc.AdvanceStatus(r.Context(), id, booking.Status(req.Status))
		if err != nil {
			writeFault(w, err)
			return
		}

		collector.BookingsTotal.WithLabelValues(string(updated.Status)).Inc()
		writeJSON(w, http.StatusOK, toAppointmentResponse(updated))
	}
}

func myNotificationsHandler(svc *booking.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		caller := GetIdentity(r.Context())
		if caller == nil {
			writeError(w, http.StatusUnauthorized, "unauthorized", "sign in to view notifications")
			return
		}

		unreadOnly := r.URL.Query().Get("unread") == "1"

		items, err := svc.ListNotifications(r.Context(), caller.UserID, unreadOnly)
		if err != nil {
			writeFault(w, err)
			return
		}

		resp := make([]NotificationResponse, 0, len(items))
		for _, n := range items {
			resp = append(resp, NotificationResponse{
				ID:        n.ID,
				Type:      n.Type,
				Message:   n.Message,
				IsRead:    n.IsRead,
				CreatedAt: n.CreatedAt,
			})
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func markNotificationsReadHandler(svc *booking.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		caller := GetIdentity(r.Context())
		if caller == nil {
			writeError(w, http.StatusUnauthorized, "unauthorized", "sign in to update notifications")
			return
		}

		if err := svc.MarkNotificationsRead(r.Context(), caller.UserID); err != nil {
			writeFault(w, err)
			return
		}

		w.WriteHeader(http.StatusNoContent)
	}
}
