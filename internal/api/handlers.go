package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/clinicdesk/clinic-frontdesk/internal/clinic"
)

// ClinicService is the slice of the clinic service the handlers use.
type ClinicService interface {
	CreateAppointment(ctx context.Context, in clinic.CreateAppointmentInput) (*clinic.Appointment, error)
	CheckIn(ctx context.Context, id uuid.UUID, actor clinic.Identity) (*clinic.Appointment, error)
	Start(ctx context.Context, id uuid.UUID, actor clinic.Identity) (*clinic.Appointment, error)
	Complete(ctx context.Context, id uuid.UUID, actor clinic.Identity, note clinic.SOAPNote) (*clinic.Appointment, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, requested clinic.Status, actor clinic.Identity) (*clinic.Appointment, error)
	BindPatient(ctx context.Context, id, patientID uuid.UUID) (*clinic.Appointment, error)
	Queue(ctx context.Context, f clinic.QueueFilter) ([]clinic.AppointmentDetail, error)
	Get(ctx context.Context, id uuid.UUID) (*clinic.AppointmentDetail, error)
}

var validate = validator.New()

func decodeAndValidate(r *http.Request, dst any) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return err
	}
	return validate.Struct(dst)
}

func urlParamUUID(r *http.Request, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, name))
	return id, err == nil
}

func actorFrom(w http.ResponseWriter, r *http.Request) (clinic.Identity, bool) {
	identity, ok := IdentityFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "missing_identity", "request has no authenticated identity")
	}
	return identity, ok
}

func createAppointmentHandler(svc ClinicService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req CreateAppointmentRequest
		if err := decodeAndValidate(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", err.Error())
			return
		}

		in := clinic.CreateAppointmentInput{
			ScheduledAt: req.ScheduledAt,
			Notes:       req.Notes,
		}

		// uuid tags on the request make these parses safe
		in.ProfessionalID = uuid.MustParse(req.ProfessionalID)
		if req.PatientID != nil {
			patientID := uuid.MustParse(*req.PatientID)
			in.PatientID = &patientID
		}
		for _, raw := range req.ProcedureIDs {
			in.ProcedureIDs = append(in.ProcedureIDs, uuid.MustParse(raw))
		}

		appt, err := svc.CreateAppointment(r.Context(), in)
		if err != nil {
			handleDomainError(w, err)
			return
		}

		writeJSON(w, http.StatusCreated, toAppointmentResponse(appt))
	}
}

func getAppointmentHandler(svc ClinicService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := urlParamUUID(r, "id")
		if !ok {
			writeError(w, http.StatusBadRequest, "invalid_appointment_id", "id must be a valid UUID")
			return
		}

		detail, err := svc.Get(r.Context(), id)
		if err != nil {
			handleDomainError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, toQueueEntryResponse(*detail, time.Now()))
	}
}

func checkInHandler(svc ClinicService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := urlParamUUID(r, "id")
		if !ok {
			writeError(w, http.StatusBadRequest, "invalid_appointment_id", "id must be a valid UUID")
			return
		}
		actor, ok := actorFrom(w, r)
		if !ok {
			return
		}

		appt, err := svc.CheckIn(r.Context(), id, actor)
		if err != nil {
			handleDomainError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, toAppointmentResponse(appt))
	}
}

func startAppointmentHandler(svc ClinicService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := urlParamUUID(r, "id")
		if !ok {
			writeError(w, http.StatusBadRequest, "invalid_appointment_id", "id must be a valid UUID")
			return
		}
		actor, ok := actorFrom(w, r)
		if !ok {
			return
		}

		appt, err := svc.Start(r.Context(), id, actor)
		if err != nil {
			handleDomainError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, toAppointmentResponse(appt))
	}
}

func completeAppointmentHandler(svc ClinicService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := urlParamUUID(r, "id")
		if !ok {
			writeError(w, http.StatusBadRequest, "invalid_appointment_id", "id must be a valid UUID")
			return
		}
		actor, ok := actorFrom(w, r)
		if !ok {
			return
		}

		// The SOAP note body is optional.
		var req CompleteAppointmentRequest
		if r.Body != nil && r.ContentLength != 0 {
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
				return
			}
		}

		note := clinic.SOAPNote{
			Subjective: req.Subjective,
			Objective:  req.Objective,
			Assessment: req.Assessment,
			Plan:       req.Plan,
		}

		appt, err := svc.Complete(r.Context(), id, actor, note)
		if err != nil {
			handleDomainError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, toAppointmentResponse(appt))
	}
}

func updateStatusHandler(svc ClinicService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := urlParamUUID(r, "id")
		if !ok {
			writeError(w, http.StatusBadRequest, "invalid_appointment_id", "id must be a valid UUID")
			return
		}
		actor, ok := actorFrom(w, r)
		if !ok {
			return
		}

		var req UpdateStatusRequest
		if err := decodeAndValidate(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", err.Error())
			return
		}

		appt, err := svc.UpdateStatus(r.Context(), id, clinic.Status(req.Status), actor)
		if err != nil {
			handleDomainError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, toAppointmentResponse(appt))
	}
}

func bindPatientHandler(svc ClinicService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := urlParamUUID(r, "id")
		if !ok {
			writeError(w, http.StatusBadRequest, "invalid_appointment_id", "id must be a valid UUID")
			return
		}

		var req BindPatientRequest
		if err := decodeAndValidate(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", err.Error())
			return
		}

		appt, err := svc.BindPatient(r.Context(), id, uuid.MustParse(req.PatientID))
		if err != nil {
			handleDomainError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, toAppointmentResponse(appt))
	}
}

func queueHandler(svc ClinicService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		filter, err := queueFilterFromQuery(r)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_query", err.Error())
			return
		}

		details, err := svc.Queue(r.Context(), filter)
		if err != nil {
			handleDomainError(w, err)
			return
		}

		now := time.Now()
		entries := make([]QueueEntryResponse, 0, len(details))
		for _, d := range details {
			entries = append(entries, toQueueEntryResponse(d, now))
		}

		writeJSON(w, http.StatusOK, entries)
	}
}

func queueFilterFromQuery(r *http.Request) (clinic.QueueFilter, error) {
	var f clinic.QueueFilter
	q := r.URL.Query()

	if raw := q.Get("professionalId"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			return f, &queryError{"professionalId must be a valid UUID"}
		}
		f.ProfessionalID = &id
	}

	if raw := q.Get("date"); raw != "" {
		day, err := time.ParseInLocation("2006-01-02", raw, time.Local)
		if err != nil {
			return f, &queryError{"date must be formatted as YYYY-MM-DD"}
		}
		f.Day = day
	}

	if raw := q.Get("status"); raw != "" {
		for _, part := range strings.Split(raw, ",") {
			f.Statuses = append(f.Statuses, clinic.Status(strings.TrimSpace(part)))
		}
	}

	if raw := q.Get("type"); raw != "" {
		procType := clinic.ProcedureType(raw)
		if !procType.Valid() {
			return f, &queryError{"type must be consultation, exam or procedure"}
		}
		f.ProcedureType = &procType
	}

	return f, nil
}

type queryError struct{ msg string }

func (e *queryError) Error() string { return e.msg }
