package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/medbook/appointment-pipeline/internal/appointment"
)

func createAppointmentHandler(svc *appointment.Service, validate *validator.Validate) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req CreateAppointmentRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		if err := validate.Struct(req); err != nil {
			writeError(w, http.StatusBadRequest, "validation_failed", err.Error())
			return
		}

		in := appointment.SubmitInput{
			InsuredID:  req.InsuredID,
			ScheduleID: req.ScheduleID,
			CountryISO: appointment.CountryISO(req.CountryISO),
		}
		if req.Schedule != nil {
			in.Schedule = &appointment.ScheduleSnapshot{
				ScheduleID:   req.Schedule.ScheduleID,
				CenterID:     req.Schedule.CenterID,
				SpecialityID: req.Schedule.SpecialityID,
				MedicID:      req.Schedule.MedicID,
				Date:         req.Schedule.Date,
			}
		}

		appt, err := svc.Submit(r.Context(), in)
		if err != nil {
			handleSubmitError(w, err)
			return
		}

		resp := CreateAppointmentResponse{
			AppointmentID:           appt.AppointmentID,
			Status:                  string(appt.Status),
			Message:                 "appointment scheduling in progress",
			EstimatedProcessingTime: "2-5 minutes",
		}

		writeJSON(w, http.StatusAccepted, resp)
	}
}

func listAppointmentsHandler(svc *appointment.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		insuredID := chi.URLParam(r, "insuredId")
		if len(insuredID) != 5 {
			writeError(w, http.StatusBadRequest, "invalid_insured_id", "insuredId must be a 5-digit string")
			return
		}

		status := appointment.Status(r.URL.Query().Get("status"))
		limit := 0
		if raw := r.URL.Query().Get("limit"); raw != "" {
			n, err := strconv.Atoi(raw)
			if err != nil || n <= 0 {
				writeError(w, http.StatusBadRequest, "invalid_limit", "limit must be a positive integer")
				return
			}
			limit = n
		}

		appts, err := svc.ListByInsured(r.Context(), insuredID, status, limit)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
			return
		}

		resp := ListAppointmentsResponse{
			InsuredID:    insuredID,
			Appointments: appts,
			Count:        len(appts),
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func handleSubmitError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, appointment.ErrUnsupportedCountry):
		writeError(w, http.StatusBadRequest, "unsupported_country", err.Error())
	case errors.Is(err, appointment.ErrDuplicateAppointment):
		writeError(w, http.StatusConflict, "duplicate_appointment", err.Error())
	default:
		writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, details string) {
	writeJSON(w, status, ErrorResponse{Error: code, Details: details})
}
