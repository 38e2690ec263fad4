package booking

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestValidateCreate(t *testing.T) {
	today := time.Date(2026, 8, 29, 11, 0, 0, 0, time.UTC)
	doctorID := uuid.New()
	testID := uuid.New()
	patientID := uuid.New()

	valid := CreateRequest{
		DoctorID:        &doctorID,
		AppointmentDate: "2026-08-30",
		GuestName:       "Asha Rao",
		GuestPhone:      "9876543210",
	}

	cases := []struct {
		name    string
		mutate  func(r *CreateRequest)
		wantErr bool
	}{
		{"valid guest booking", func(r *CreateRequest) {}, false},
		{"same-day booking allowed", func(r *CreateRequest) {
			r.AppointmentDate = "2026-08-29"
		}, false},
		{"both resources set", func(r *CreateRequest) {
			r.TestID = &testID
		}, true},
		{"no resource set", func(r *CreateRequest) {
			r.DoctorID = nil
		}, true},
		{"bad date format", func(r *CreateRequest) {
			r.AppointmentDate = "30-08-2026"
		}, true},
		{"past date", func(r *CreateRequest) {
			r.AppointmentDate = "2026-08-28"
		}, true},
		{"guest name missing", func(r *CreateRequest) {
			r.GuestName = "   "
		}, true},
		{"guest phone too short", func(r *CreateRequest) {
			r.GuestPhone = "98765"
		}, true},
		{"guest phone bad leading digit", func(r *CreateRequest) {
			r.GuestPhone = "1876543210"
		}, true},
		{"guest phone with spaces allowed", func(r *CreateRequest) {
			r.GuestPhone = "98765 43210"
		}, false},
		{"bad guest email", func(r *CreateRequest) {
			r.GuestEmail = "not-an-email"
		}, true},
		{"valid guest email", func(r *CreateRequest) {
			r.GuestEmail = "asha@example.com"
		}, false},
		{"registered patient skips guest checks", func(r *CreateRequest) {
			r.PatientID = &patientID
			r.GuestName = ""
			r.GuestPhone = ""
		}, false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := valid
			tc.mutate(&req)

			date, err := validateCreate(req, today)
			if tc.wantErr {
				assert.Error(t, err)
				assert.Equal(t, KindValidation, KindOf(err))
			} else {
				assert.NoError(t, err)
				assert.Equal(t, req.AppointmentDate, date.Format(dateLayout))
			}
		})
	}
}
