package clinic

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	redisclient "github.com/clinicdesk/clinic-frontdesk/internal/redis"
)

const (
	EventAppointmentCreated   = "APPOINTMENT_CREATED"
	EventAppointmentCheckedIn = "APPOINTMENT_CHECKED_IN"
	EventAppointmentStarted   = "APPOINTMENT_STARTED"
	EventAppointmentCompleted = "APPOINTMENT_COMPLETED"
	EventAppointmentCancelled = "APPOINTMENT_CANCELLED"
	EventPatientBound         = "APPOINTMENT_PATIENT_BOUND"
)

type Service struct {
	repo   Repository
	locker redisclient.Locker
	logger zerolog.Logger
}

func NewService(repo Repository, locker redisclient.Locker, logger zerolog.Logger) *Service {
	return &Service{
		repo:   repo,
		locker: locker,
		logger: logger,
	}
}

type CreateAppointmentInput struct {
	PatientID      *uuid.UUID
	ProfessionalID uuid.UUID
	ScheduledAt    time.Time
	Notes          string
	ProcedureIDs   []uuid.UUID
}

// SOAPNote carries the evolution fields written on completion. All fields
// are optional; the generic status endpoint completes with an empty note.
type SOAPNote struct {
	Subjective *string
	Objective  *string
	Assessment *string
	Plan       *string
}

// CreateAppointment books an appointment in status scheduled. PatientID
// may be nil for a provisional booking; at least one existing procedure
// is required, and the appointment plus its associations land atomically.
func (s *Service) CreateAppointment(ctx context.Context, in CreateAppointmentInput) (*Appointment, error) {
	procedureIDs := dedupe(in.ProcedureIDs)
	if len(procedureIDs) == 0 {
		return nil, ErrNoProcedures
	}

	if _, err := s.repo.GetProfessionalByID(ctx, in.ProfessionalID); err != nil {
		if errors.Is(err, ErrProfessionalNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("load professional: %w", err)
	}

	if in.PatientID != nil {
		if _, err := s.repo.GetPatientByID(ctx, *in.PatientID); err != nil {
			if errors.Is(err, ErrPatientNotFound) {
				return nil, err
			}
			return nil, fmt.Errorf("load patient: %w", err)
		}
	}

	if _, err := s.repo.GetProceduresByIDs(ctx, procedureIDs); err != nil {
		if errors.Is(err, ErrProcedureNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("load procedures: %w", err)
	}

	appt := Appointment{
		ID:             uuid.New(),
		PatientID:      in.PatientID,
		ProfessionalID: in.ProfessionalID,
		ScheduledAt:    in.ScheduledAt,
		Status:         StatusScheduled,
		Notes:          in.Notes,
	}

	created, err := s.repo.CreateAppointment(ctx, appt, procedureIDs)
	if err != nil {
		return nil, fmt.Errorf("create appointment: %w", err)
	}

	s.logEvent(ctx, created.ID, EventAppointmentCreated, map[string]any{
		"professional_id": in.ProfessionalID.String(),
		"scheduled_at":    created.ScheduledAt,
		"procedures":      len(procedureIDs),
	})

	return created, nil
}

// CheckIn is the dedicated scheduled -> waiting entry point used by the
// front desk when the patient arrives.
func (s *Service) CheckIn(ctx context.Context, id uuid.UUID, actor Identity) (*Appointment, error) {
	from := StatusScheduled
	return s.applyTransition(ctx, id, StatusWaiting, actor, &from)
}

// Start moves a waiting appointment to in_progress. Only the assigned
// physician may call it.
func (s *Service) Start(ctx context.Context, id uuid.UUID, actor Identity) (*Appointment, error) {
	return s.applyTransition(ctx, id, StatusInProgress, actor, nil)
}

// Complete finishes an in_progress appointment and writes its evolution
// record.
func (s *Service) Complete(ctx context.Context, id uuid.UUID, actor Identity, note SOAPNote) (*Appointment, error) {
	var updated *Appointment

	err := s.locker.WithAppointmentLock(ctx, id, func(lockCtx context.Context) error {
		appt, err := s.repo.GetAppointmentByID(lockCtx, id)
		if err != nil {
			return err
		}
		if err := AuthorizeTransition(appt, StatusCompleted, actor); err != nil {
			return err
		}

		upd, err := s.repo.UpdateAppointmentStatus(lockCtx, id, appt.Status, StatusCompleted, nil)
		if err != nil {
			if errors.Is(err, ErrAppointmentNotFound) {
				return ErrInvalidTransition
			}
			return fmt.Errorf("complete appointment: %w", err)
		}
		updated = upd

		ev := Evolution{
			ID:             uuid.New(),
			AppointmentID:  upd.ID,
			ProfessionalID: upd.ProfessionalID,
			Subjective:     note.Subjective,
			Objective:      note.Objective,
			Assessment:     note.Assessment,
			Plan:           note.Plan,
		}
		if _, err := s.repo.InsertEvolution(lockCtx, ev); err != nil {
			return fmt.Errorf("insert evolution: %w", err)
		}

		s.logEvent(lockCtx, upd.ID, EventAppointmentCompleted, map[string]any{
			"professional_id": upd.ProfessionalID.String(),
		})
		return nil
	})
	if err != nil {
		return nil, mapLockErr(err)
	}

	return updated, nil
}

// UpdateStatus is the generic transition entry point; the full role and
// ownership matrix applies. Completing through here writes an empty
// evolution record.
func (s *Service) UpdateStatus(ctx context.Context, id uuid.UUID, requested Status, actor Identity) (*Appointment, error) {
	if !requested.Valid() {
		return nil, ErrUnknownStatus
	}
	if requested == StatusCompleted {
		return s.Complete(ctx, id, actor, SOAPNote{})
	}
	return s.applyTransition(ctx, id, requested, actor, nil)
}

// BindPatient attaches a patient to a provisional booking exactly once.
func (s *Service) BindPatient(ctx context.Context, id, patientID uuid.UUID) (*Appointment, error) {
	if _, err := s.repo.GetPatientByID(ctx, patientID); err != nil {
		if errors.Is(err, ErrPatientNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("load patient: %w", err)
	}

	var updated *Appointment

	err := s.locker.WithAppointmentLock(ctx, id, func(lockCtx context.Context) error {
		appt, err := s.repo.GetAppointmentByID(lockCtx, id)
		if err != nil {
			return err
		}
		if appt.PatientID != nil {
			return ErrPatientAlreadyBound
		}

		upd, err := s.repo.BindPatient(lockCtx, id, patientID)
		if err != nil {
			if errors.Is(err, ErrAppointmentNotFound) {
				// The row exists, so the CAS missed because a concurrent
				// bind won.
				return ErrPatientAlreadyBound
			}
			return fmt.Errorf("bind patient: %w", err)
		}
		updated = upd

		s.logEvent(lockCtx, upd.ID, EventPatientBound, map[string]any{
			"patient_id": patientID.String(),
		})
		return nil
	})
	if err != nil {
		return nil, mapLockErr(err)
	}

	return updated, nil
}

// Queue computes the waiting-queue projection for the filter's day.
func (s *Service) Queue(ctx context.Context, f QueueFilter) ([]AppointmentDetail, error) {
	for _, st := range f.Statuses {
		if !st.Valid() {
			return nil, ErrUnknownStatus
		}
	}

	details, err := s.repo.ListQueue(ctx, f, time.Now())
	if err != nil {
		return nil, fmt.Errorf("list queue: %w", err)
	}
	return details, nil
}

// Get retrieves a fully hydrated appointment by ID
func (s *Service) Get(ctx context.Context, id uuid.UUID) (*AppointmentDetail, error) {
	detail, err := s.repo.GetAppointmentDetail(ctx, id)
	if err != nil {
		return nil, err
	}
	return detail, nil
}

// CancelStaleScheduled is called by the worker periodically: appointments
// still scheduled whose booked day has fully passed are cancelled.
func (s *Service) CancelStaleScheduled(ctx context.Context, now time.Time) (int, error) {
	cutoff := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())

	stale, err := s.repo.FindStaleScheduled(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("find stale scheduled appointments: %w", err)
	}

	cancelled := 0
	for _, appt := range stale {
		_, err := s.repo.UpdateAppointmentStatus(ctx, appt.ID, StatusScheduled, StatusCancelled, nil)
		if err != nil {
			if errors.Is(err, ErrAppointmentNotFound) {
				continue
			}
			s.logger.Warn().Err(err).Stringer("appointment_id", appt.ID).Msg("failed to cancel stale appointment")
			continue
		}
		cancelled++
		s.logEvent(ctx, appt.ID, EventAppointmentCancelled, map[string]any{
			"reason": "stale_sweep",
		})
	}

	return cancelled, nil
}

// applyTransition runs the guarded read-check-write cycle for a status
// change inside the per appointment lock. When requireFrom is set the
// current status must match it exactly (the dedicated check-in path).
func (s *Service) applyTransition(ctx context.Context, id uuid.UUID, requested Status, actor Identity, requireFrom *Status) (*Appointment, error) {
	var updated *Appointment

	err := s.locker.WithAppointmentLock(ctx, id, func(lockCtx context.Context) error {
		appt, err := s.repo.GetAppointmentByID(lockCtx, id)
		if err != nil {
			return err
		}
		if requireFrom != nil && appt.Status != *requireFrom {
			return ErrInvalidTransition
		}
		if err := AuthorizeTransition(appt, requested, actor); err != nil {
			return err
		}

		var checkedInAt *time.Time
		if requested == StatusWaiting {
			now := time.Now()
			checkedInAt = &now
		}

		upd, err := s.repo.UpdateAppointmentStatus(lockCtx, id, appt.Status, requested, checkedInAt)
		if err != nil {
			if errors.Is(err, ErrAppointmentNotFound) {
				return ErrInvalidTransition
			}
			return fmt.Errorf("update appointment status: %w", err)
		}
		updated = upd

		s.logEvent(lockCtx, upd.ID, eventForStatus(requested), map[string]any{
			"from": string(appt.Status),
			"to":   string(requested),
			"role": string(actor.Role),
		})
		return nil
	})
	if err != nil {
		return nil, mapLockErr(err)
	}

	return updated, nil
}

func eventForStatus(s Status) string {
	switch s {
	case StatusWaiting:
		return EventAppointmentCheckedIn
	case StatusInProgress:
		return EventAppointmentStarted
	case StatusCompleted:
		return EventAppointmentCompleted
	case StatusCancelled:
		return EventAppointmentCancelled
	}
	return "APPOINTMENT_STATUS_CHANGED"
}

func mapLockErr(err error) error {
	if errors.Is(err, redisclient.ErrLockNotAcquired) {
		return ErrAppointmentBusy
	}
	return err
}

func dedupe(ids []uuid.UUID) []uuid.UUID {
	seen := make(map[uuid.UUID]struct{}, len(ids))
	out := ids[:0:0]
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

func (s *Service) logEvent(ctx context.Context, appointmentID uuid.UUID, eventType string, payload map[string]any) {
	data, err := json.Marshal(payload)
	if err != nil {
		s.logger.Warn().Err(err).Str("event", eventType).Msg("failed to marshal event payload")
		data = nil
	}

	apptID := appointmentID

	ev := EventLog{
		EventType:     eventType,
		AppointmentID: &apptID,
		Payload:       data,
		CreatedAt:     time.Now(),
	}

	if err := s.repo.InsertEvent(ctx, ev); err != nil {
		s.logger.Warn().Err(err).Str("event", eventType).Stringer("appointment_id", appointmentID).Msg("failed to insert event log")
	}
}
