package api

import (
	"time"

	"github.com/google/uuid"

	"github.com/clinicdesk/clinic-frontdesk/internal/clinic"
)

type CreateAppointmentRequest struct {
	PatientID      *string   `json:"patient_id" validate:"omitempty,uuid"`
	ProfessionalID string    `json:"professional_id" validate:"required,uuid"`
	ScheduledAt    time.Time `json:"scheduled_at" validate:"required"`
	Notes          string    `json:"notes"`
	ProcedureIDs   []string  `json:"procedure_ids" validate:"required,min=1,dive,uuid"`
}

type UpdateStatusRequest struct {
	Status string `json:"status" validate:"required"`
}

type BindPatientRequest struct {
	PatientID string `json:"patient_id" validate:"required,uuid"`
}

// CompleteAppointmentRequest carries the optional SOAP note fields.
type CompleteAppointmentRequest struct {
	Subjective *string `json:"subjective"`
	Objective  *string `json:"objective"`
	Assessment *string `json:"assessment"`
	Plan       *string `json:"plan"`
}

type AppointmentResponse struct {
	ID             uuid.UUID  `json:"id"`
	PatientID      *uuid.UUID `json:"patient_id,omitempty"`
	ProfessionalID uuid.UUID  `json:"professional_id"`
	ScheduledAt    time.Time  `json:"scheduled_at"`
	CheckedInAt    *time.Time `json:"checked_in_at,omitempty"`
	Status         string     `json:"status"`
	Notes          string     `json:"notes,omitempty"`
}

type PatientResponse struct {
	ID    uuid.UUID `json:"id"`
	Name  string    `json:"name"`
	Email *string   `json:"email,omitempty"`
}

type ProfessionalResponse struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	Specialty *string   `json:"specialty,omitempty"`
}

type ProcedureResponse struct {
	ID    uuid.UUID `json:"id"`
	Name  string    `json:"name"`
	Type  string    `json:"type"`
	Value int64     `json:"value"`
}

// QueueEntryResponse is one row of the waiting-queue projection.
// WaitingForSeconds is present only after check-in.
type QueueEntryResponse struct {
	AppointmentResponse
	Patient           *PatientResponse      `json:"patient,omitempty"`
	Professional      *ProfessionalResponse `json:"professional"`
	Procedures        []ProcedureResponse   `json:"procedures"`
	WaitingForSeconds *int64                `json:"waiting_for_seconds,omitempty"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

func toAppointmentResponse(a *clinic.Appointment) AppointmentResponse {
	return AppointmentResponse{
		ID:             a.ID,
		PatientID:      a.PatientID,
		ProfessionalID: a.ProfessionalID,
		ScheduledAt:    a.ScheduledAt,
		CheckedInAt:    a.CheckedInAt,
		Status:         string(a.Status),
		Notes:          a.Notes,
	}
}

func toQueueEntryResponse(d clinic.AppointmentDetail, now time.Time) QueueEntryResponse {
	entry := QueueEntryResponse{
		AppointmentResponse: toAppointmentResponse(&d.Appointment),
	}

	if d.Patient != nil {
		entry.Patient = &PatientResponse{
			ID:    d.Patient.ID,
			Name:  d.Patient.Name,
			Email: d.Patient.Email,
		}
	}
	if d.Professional != nil {
		entry.Professional = &ProfessionalResponse{
			ID:        d.Professional.ID,
			Name:      d.Professional.Name,
			Specialty: d.Professional.Specialty,
		}
	}

	entry.Procedures = make([]ProcedureResponse, 0, len(d.Procedures))
	for _, p := range d.Procedures {
		entry.Procedures = append(entry.Procedures, ProcedureResponse{
			ID:    p.ID,
			Name:  p.Name,
			Type:  string(p.Type),
			Value: p.Value,
		})
	}

	if wait, ok := d.WaitingFor(now); ok {
		secs := int64(wait.Seconds())
		entry.WaitingForSeconds = &secs
	}

	return entry
}
