package api

import (
	"time"

	"github.com/medbook/appointment-pipeline/internal/appointment"
)

type CreateAppointmentRequest struct {
	InsuredID  string                   `json:"insuredId" validate:"required,len=5,numeric"`
	ScheduleID int64                    `json:"scheduleId" validate:"required,gt=0"`
	CountryISO string                   `json:"countryISO" validate:"required,oneof=PE CL"`
	Schedule   *ScheduleSnapshotRequest `json:"schedule,omitempty"`
}

type ScheduleSnapshotRequest struct {
	ScheduleID   int64     `json:"scheduleId"`
	CenterID     int64     `json:"centerId"`
	SpecialityID int64     `json:"specialityId"`
	MedicID      int64     `json:"medicId"`
	Date         time.Time `json:"date"`
}

type CreateAppointmentResponse struct {
	AppointmentID           string `json:"appointmentId"`
	Status                  string `json:"status"`
	Message                 string `json:"message"`
	EstimatedProcessingTime string `json:"estimatedProcessingTime,omitempty"`
}

type ListAppointmentsResponse struct {
	InsuredID    string                    `json:"insuredId"`
	Appointments []appointment.Appointment `json:"appointments"`
	Count        int                       `json:"count"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}
