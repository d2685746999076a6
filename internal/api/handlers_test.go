package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clinicdesk/clinic-frontdesk/internal/clinic"
)

const testSecret = "test-secret"

type stubService struct {
	createFn       func(ctx context.Context, in clinic.CreateAppointmentInput) (*clinic.Appointment, error)
	checkInFn      func(ctx context.Context, id uuid.UUID, actor clinic.Identity) (*clinic.Appointment, error)
	startFn        func(ctx context.Context, id uuid.UUID, actor clinic.Identity) (*clinic.Appointment, error)
	completeFn     func(ctx context.Context, id uuid.UUID, actor clinic.Identity, note clinic.SOAPNote) (*clinic.Appointment, error)
	updateStatusFn func(ctx context.Context, id uuid.UUID, requested clinic.Status, actor clinic.Identity) (*clinic.Appointment, error)
	bindPatientFn  func(ctx context.Context, id, patientID uuid.UUID) (*clinic.Appointment, error)
	queueFn        func(ctx context.Context, f clinic.QueueFilter) ([]clinic.AppointmentDetail, error)
	getFn          func(ctx context.Context, id uuid.UUID) (*clinic.AppointmentDetail, error)
}

func (s *stubService) CreateAppointment(ctx context.Context, in clinic.CreateAppointmentInput) (*clinic.Appointment, error) {
	return s.createFn(ctx, in)
}

func (s *stubService) CheckIn(ctx context.Context, id uuid.UUID, actor clinic.Identity) (*clinic.Appointment, error) {
	return s.checkInFn(ctx, id, actor)
}

func (s *stubService) Start(ctx context.Context, id uuid.UUID, actor clinic.Identity) (*clinic.Appointment, error) {
	return s.startFn(ctx, id, actor)
}

func (s *stubService) Complete(ctx context.Context, id uuid.UUID, actor clinic.Identity, note clinic.SOAPNote) (*clinic.Appointment, error) {
	return s.completeFn(ctx, id, actor, note)
}

func (s *stubService) UpdateStatus(ctx context.Context, id uuid.UUID, requested clinic.Status, actor clinic.Identity) (*clinic.Appointment, error) {
	return s.updateStatusFn(ctx, id, requested, actor)
}

func (s *stubService) BindPatient(ctx context.Context, id, patientID uuid.UUID) (*clinic.Appointment, error) {
	return s.bindPatientFn(ctx, id, patientID)
}

func (s *stubService) Queue(ctx context.Context, f clinic.QueueFilter) ([]clinic.AppointmentDetail, error) {
	return s.queueFn(ctx, f)
}

func (s *stubService) Get(ctx context.Context, id uuid.UUID) (*clinic.AppointmentDetail, error) {
	return s.getFn(ctx, id)
}

func newTestRouter(svc ClinicService) http.Handler {
	return NewRouter(RouterConfig{
		Service:   svc,
		Logger:    zerolog.Nop(),
		JWTSecret: testSecret,
		Env:       "test",
		Version:   "test",
	})
}

func signToken(t *testing.T, role string, professionalID *uuid.UUID) string {
	t.Helper()

	claims := identityClaims{
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   uuid.NewString(),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	if professionalID != nil {
		claims.ProfessionalID = professionalID.String()
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
	require.NoError(t, err)
	return signed
}

func doRequest(t *testing.T, handler http.Handler, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func sampleAppointment(profID uuid.UUID) *clinic.Appointment {
	return &clinic.Appointment{
		ID:             uuid.New(),
		ProfessionalID: profID,
		ScheduledAt:    time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC),
		Status:         clinic.StatusScheduled,
	}
}

func TestRoutesRequireAuth(t *testing.T) {
	router := newTestRouter(&stubService{})

	rec := doRequest(t, router, http.MethodGet, "/queue", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = doRequest(t, router, http.MethodGet, "/queue", "not-a-jwt", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAuthRejectsUnknownRole(t *testing.T) {
	router := newTestRouter(&stubService{})

	rec := doRequest(t, router, http.MethodGet, "/queue", signToken(t, "janitor", nil), nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestCreateAppointmentHandler(t *testing.T) {
	profID := uuid.New()
	patientID := uuid.New()
	procID := uuid.New()

	var got clinic.CreateAppointmentInput
	svc := &stubService{
		createFn: func(_ context.Context, in clinic.CreateAppointmentInput) (*clinic.Appointment, error) {
			got = in
			appt := sampleAppointment(profID)
			appt.PatientID = in.PatientID
			return appt, nil
		},
	}
	router := newTestRouter(svc)

	body := map[string]any{
		"patient_id":      patientID.String(),
		"professional_id": profID.String(),
		"scheduled_at":    "2024-06-01T09:00:00Z",
		"procedure_ids":   []string{procID.String()},
	}
	rec := doRequest(t, router, http.MethodPost, "/appointments", signToken(t, "receptionist", nil), body)

	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, profID, got.ProfessionalID)
	require.NotNil(t, got.PatientID)
	assert.Equal(t, patientID, *got.PatientID)
	assert.Equal(t, []uuid.UUID{procID}, got.ProcedureIDs)

	var resp AppointmentResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "scheduled", resp.Status)
}

func TestCreateAppointmentRejectsEmptyProcedures(t *testing.T) {
	called := false
	svc := &stubService{
		createFn: func(context.Context, clinic.CreateAppointmentInput) (*clinic.Appointment, error) {
			called = true
			return nil, nil
		},
	}
	router := newTestRouter(svc)

	body := map[string]any{
		"professional_id": uuid.NewString(),
		"scheduled_at":    "2024-06-01T09:00:00Z",
		"procedure_ids":   []string{},
	}
	rec := doRequest(t, router, http.MethodPost, "/appointments", signToken(t, "receptionist", nil), body)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.False(t, called)
}

func TestCheckInPassesActor(t *testing.T) {
	apptID := uuid.New()

	var actor clinic.Identity
	svc := &stubService{
		checkInFn: func(_ context.Context, id uuid.UUID, a clinic.Identity) (*clinic.Appointment, error) {
			assert.Equal(t, apptID, id)
			actor = a
			appt := sampleAppointment(uuid.New())
			appt.Status = clinic.StatusWaiting
			return appt, nil
		},
	}
	router := newTestRouter(svc)

	rec := doRequest(t, router, http.MethodPost, "/appointments/"+apptID.String()+"/check-in", signToken(t, "receptionist", nil), nil)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, clinic.RoleReceptionist, actor.Role)
	assert.Nil(t, actor.ProfessionalID)
}

func TestStartMapsOwnershipError(t *testing.T) {
	profID := uuid.New()
	svc := &stubService{
		startFn: func(context.Context, uuid.UUID, clinic.Identity) (*clinic.Appointment, error) {
			return nil, clinic.ErrNotOwner
		},
	}
	router := newTestRouter(svc)

	rec := doRequest(t, router, http.MethodPost, "/appointments/"+uuid.NewString()+"/start", signToken(t, "physician", &profID), nil)

	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestCompleteForwardsSOAPNote(t *testing.T) {
	profID := uuid.New()

	var note clinic.SOAPNote
	svc := &stubService{
		completeFn: func(_ context.Context, _ uuid.UUID, _ clinic.Identity, n clinic.SOAPNote) (*clinic.Appointment, error) {
			note = n
			appt := sampleAppointment(profID)
			appt.Status = clinic.StatusCompleted
			return appt, nil
		},
	}
	router := newTestRouter(svc)

	body := map[string]any{"subjective": "persistent cough", "plan": "chest x-ray"}
	rec := doRequest(t, router, http.MethodPost, "/appointments/"+uuid.NewString()+"/complete", signToken(t, "physician", &profID), body)

	require.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, note.Subjective)
	assert.Equal(t, "persistent cough", *note.Subjective)
	require.NotNil(t, note.Plan)
	assert.Nil(t, note.Objective)
}

func TestUpdateStatusMapsTransitionConflict(t *testing.T) {
	svc := &stubService{
		updateStatusFn: func(_ context.Context, _ uuid.UUID, requested clinic.Status, _ clinic.Identity) (*clinic.Appointment, error) {
			assert.Equal(t, clinic.StatusCancelled, requested)
			return nil, clinic.ErrInvalidTransition
		},
	}
	router := newTestRouter(svc)

	body := map[string]any{"status": "cancelled"}
	rec := doRequest(t, router, http.MethodPatch, "/appointments/"+uuid.NewString()+"/status", signToken(t, "admin", nil), body)

	assert.Equal(t, http.StatusConflict, rec.Code)

	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "invalid_status_transition", resp.Error)
}

func TestBindPatientMapsConflict(t *testing.T) {
	svc := &stubService{
		bindPatientFn: func(context.Context, uuid.UUID, uuid.UUID) (*clinic.Appointment, error) {
			return nil, clinic.ErrPatientAlreadyBound
		},
	}
	router := newTestRouter(svc)

	body := map[string]any{"patient_id": uuid.NewString()}
	rec := doRequest(t, router, http.MethodPost, "/appointments/"+uuid.NewString()+"/complete-patient-info", signToken(t, "receptionist", nil), body)

	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestInvalidAppointmentIDIsBadRequest(t *testing.T) {
	router := newTestRouter(&stubService{})

	rec := doRequest(t, router, http.MethodPost, "/appointments/not-a-uuid/check-in", signToken(t, "receptionist", nil), nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestQueueParsesFilters(t *testing.T) {
	profID := uuid.New()

	var got clinic.QueueFilter
	svc := &stubService{
		queueFn: func(_ context.Context, f clinic.QueueFilter) ([]clinic.AppointmentDetail, error) {
			got = f
			return nil, nil
		},
	}
	router := newTestRouter(svc)

	path := "/queue?professionalId=" + profID.String() + "&date=2024-06-01&status=waiting,in_progress&type=exam"
	rec := doRequest(t, router, http.MethodGet, path, signToken(t, "physician", &profID), nil)

	require.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, got.ProfessionalID)
	assert.Equal(t, profID, *got.ProfessionalID)
	assert.Equal(t, 2024, got.Day.Year())
	assert.Equal(t, time.June, got.Day.Month())
	assert.Equal(t, []clinic.Status{clinic.StatusWaiting, clinic.StatusInProgress}, got.Statuses)
	require.NotNil(t, got.ProcedureType)
	assert.Equal(t, clinic.ProcedureExam, *got.ProcedureType)
}

func TestQueueLeavesProfessionalUnsetByDefault(t *testing.T) {
	var got clinic.QueueFilter
	svc := &stubService{
		queueFn: func(_ context.Context, f clinic.QueueFilter) ([]clinic.AppointmentDetail, error) {
			got = f
			return nil, nil
		},
	}
	router := newTestRouter(svc)

	profID := uuid.New()
	rec := doRequest(t, router, http.MethodGet, "/queue", signToken(t, "physician", &profID), nil)

	require.Equal(t, http.StatusOK, rec.Code)
	// No silent fallback to the calling physician's own id.
	assert.Nil(t, got.ProfessionalID)
	assert.Empty(t, got.Statuses)
}

func TestQueueRendersWaitDuration(t *testing.T) {
	arrival := time.Now().Add(-12 * time.Minute)
	patient := clinic.Patient{ID: uuid.New(), Name: "Ana Souza"}
	professional := clinic.Professional{ID: uuid.New(), Name: "Dr. Lima"}

	detail := clinic.AppointmentDetail{
		Appointment: clinic.Appointment{
			ID:             uuid.New(),
			PatientID:      &patient.ID,
			ProfessionalID: professional.ID,
			ScheduledAt:    arrival.Add(-time.Hour),
			CheckedInAt:    &arrival,
			Status:         clinic.StatusWaiting,
		},
		Patient:      &patient,
		Professional: &professional,
		Procedures:   []clinic.Procedure{{ID: uuid.New(), Name: "First consultation", Type: clinic.ProcedureConsultation, Value: 25000}},
	}

	svc := &stubService{
		queueFn: func(context.Context, clinic.QueueFilter) ([]clinic.AppointmentDetail, error) {
			return []clinic.AppointmentDetail{detail}, nil
		},
	}
	router := newTestRouter(svc)

	rec := doRequest(t, router, http.MethodGet, "/queue", signToken(t, "receptionist", nil), nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var entries []QueueEntryResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &entries))
	require.Len(t, entries, 1)

	entry := entries[0]
	assert.Equal(t, "waiting", entry.Status)
	require.NotNil(t, entry.WaitingForSeconds)
	assert.GreaterOrEqual(t, *entry.WaitingForSeconds, int64(11*60))
	require.NotNil(t, entry.Patient)
	assert.Equal(t, "Ana Souza", entry.Patient.Name)
	require.Len(t, entry.Procedures, 1)
}

func TestQueueRejectsBadDate(t *testing.T) {
	router := newTestRouter(&stubService{})

	rec := doRequest(t, router, http.MethodGet, "/queue?date=junk", signToken(t, "admin", nil), nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestQueueRejectsBadProcedureType(t *testing.T) {
	router := newTestRouter(&stubService{})

	rec := doRequest(t, router, http.MethodGet, "/queue?type=surgery", signToken(t, "admin", nil), nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
