package clinic

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	ErrPatientNotFound      = errors.New("patient not found")
	ErrProfessionalNotFound = errors.New("professional not found")
	ErrProcedureNotFound    = errors.New("procedure not found")
	ErrAppointmentNotFound  = errors.New("appointment not found")

	ErrUnknownStatus     = errors.New("unknown appointment status")
	ErrInvalidTransition = errors.New("invalid status transition")

	ErrForbidden = errors.New("role may not perform this transition")
	ErrNotOwner  = errors.New("appointment belongs to another professional")

	ErrPatientAlreadyBound = errors.New("appointment already has a patient")
	ErrNoProcedures        = errors.New("appointment needs at least one procedure")
	ErrAppointmentBusy     = errors.New("appointment is being updated, please retry")
)

// Repository contains all DB interactions needed by the service.
type Repository interface {
	GetPatientByID(ctx context.Context, id uuid.UUID) (*Patient, error)
	GetProfessionalByID(ctx context.Context, id uuid.UUID) (*Professional, error)

	// GetProceduresByIDs fails with ErrProcedureNotFound when any of the
	// requested ids is missing from the catalog.
	GetProceduresByIDs(ctx context.Context, ids []uuid.UUID) ([]Procedure, error)

	GetAppointmentByID(ctx context.Context, id uuid.UUID) (*Appointment, error)
	GetAppointmentDetail(ctx context.Context, id uuid.UUID) (*AppointmentDetail, error)

	// CreateAppointment inserts the appointment and its procedure
	// associations in one transaction; either all rows land or none do.
	CreateAppointment(ctx context.Context, appt Appointment, procedureIDs []uuid.UUID) (*Appointment, error)

	// UpdateAppointmentStatus is a compare-and-swap on the current status.
	// When checkedInAt is non-nil the check-in timestamp is rewritten in
	// the same statement. ErrAppointmentNotFound means the row is gone or
	// its status no longer matches from.
	UpdateAppointmentStatus(ctx context.Context, id uuid.UUID, from, to Status, checkedInAt *time.Time) (*Appointment, error)

	// BindPatient sets patient_id on a provisional booking; the guard is
	// patient_id IS NULL so a raced second bind misses the row.
	BindPatient(ctx context.Context, id, patientID uuid.UUID) (*Appointment, error)

	// ListQueue returns the filtered, enriched queue rows ordered by
	// effective time.
	ListQueue(ctx context.Context, f QueueFilter, now time.Time) ([]AppointmentDetail, error)

	// FindStaleScheduled finds appointments still scheduled whose booked
	// time is before the cutoff. Used by the sweep worker.
	FindStaleScheduled(ctx context.Context, before time.Time) ([]Appointment, error)

	InsertEvolution(ctx context.Context, ev Evolution) (*Evolution, error)
	InsertEvent(ctx context.Context, ev EventLog) error
}
