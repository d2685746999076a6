package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/clinicdesk/clinic-frontdesk/internal/clinic"
)

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, code, details string) {
	writeJSON(w, status, ErrorResponse{Error: code, Details: details})
}

// handleDomainError maps the service error taxonomy onto HTTP statuses:
// not-found 404, forbidden 403, conflicts and transition violations 409.
func handleDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, clinic.ErrAppointmentNotFound):
		writeError(w, http.StatusNotFound, "appointment_not_found", err.Error())
	case errors.Is(err, clinic.ErrPatientNotFound):
		writeError(w, http.StatusNotFound, "patient_not_found", err.Error())
	case errors.Is(err, clinic.ErrProfessionalNotFound):
		writeError(w, http.StatusNotFound, "professional_not_found", err.Error())
	case errors.Is(err, clinic.ErrProcedureNotFound):
		writeError(w, http.StatusNotFound, "procedure_not_found", err.Error())
	case errors.Is(err, clinic.ErrUnknownStatus):
		writeError(w, http.StatusConflict, "unknown_status", err.Error())
	case errors.Is(err, clinic.ErrInvalidTransition):
		writeError(w, http.StatusConflict, "invalid_status_transition", err.Error())
	case errors.Is(err, clinic.ErrForbidden), errors.Is(err, clinic.ErrNotOwner):
		writeError(w, http.StatusForbidden, "forbidden", err.Error())
	case errors.Is(err, clinic.ErrPatientAlreadyBound):
		writeError(w, http.StatusConflict, "patient_already_bound", err.Error())
	case errors.Is(err, clinic.ErrNoProcedures):
		writeError(w, http.StatusConflict, "no_procedures", err.Error())
	case errors.Is(err, clinic.ErrAppointmentBusy):
		writeError(w, http.StatusConflict, "appointment_busy", "appointment is being updated, please retry shortly")
	default:
		writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
	}
}
