package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/almdiagnostics/clinic-booking-service/internal/metrics"
	"github.com/almdiagnostics/clinic-booking-service/internal/reports"
)

// 20 MB cap on report uploads.
const maxReportSize = 20 << 20

func uploadReportHandler(svc *reports.Service, collector *metrics.Collector) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		caller := GetIdentity(r.Context())
		if !caller.IsStaff() {
			writeError(w, http.StatusForbidden, "forbidden", "lab or admin role required")
			return
		}

		appointmentID, err := uuid.Parse(chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_appointment_id", "id must be a valid UUID")
			return
		}

		r.Body = http.MaxBytesReader(w, r.Body, maxReportSize)
		if err := r.ParseMultipartForm(maxReportSize); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_upload", "could not parse multipart form")
			return
		}

		file, header, err := r.FormFile("file")
		if err != nil {
			writeError(w, http.StatusBadRequest, "missing_file", "file field is required")
			return
		}
		defer file.Close()

		reportType := r.FormValue("report_type")
		if reportType == "" {
			reportType = "diagnostic_test"
		}

		rep, err := svc.Upload(r.Context(), appointmentID, reportType, header.Filename,
			file, header.Size, header.Header.Get("Content-Type"), caller.UserID)
		if err != nil {
			writeFault(w, err)
			return
		}

		collector.ReportsUploaded.Inc()
		writeJSON(w, http.StatusCreated, ReportResponse{
			ID:            rep.ID,
			AppointmentID: rep.AppointmentID,
			ReportType:    rep.ReportType,
			FileName:      rep.FileName,
			CreatedAt:     rep.CreatedAt,
		})
	}
}

func myReportsHandler(svc *reports.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		caller := GetIdentity(r.Context())
		if caller == nil {
			writeError(w, http.StatusUnauthorized, "unauthorized", "sign in to view your reports")
			return
		}

		rows, err := svc.ListForPatient(r.Context(), caller.UserID)
		if err != nil {
			writeFault(w, err)
			return
		}

		resp := make([]ReportResponse, 0, len(rows))
		for _, rep := range rows {
			resp = append(resp, ReportResponse{
				ID:            rep.ID,
				AppointmentID: rep.AppointmentID,
				ReportType:    rep.ReportType,
				FileName:      rep.FileName,
				DownloadURL:   rep.DownloadURL,
				CreatedAt:     rep.CreatedAt,
			})
		}
		writeJSON(w, http.StatusOK, resp)
	}
}
