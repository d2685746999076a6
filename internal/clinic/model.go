package clinic

import (
	"time"

	"github.com/google/uuid"
)

type Status string

const (
	StatusScheduled  Status = "scheduled"
	StatusWaiting    Status = "waiting"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
	StatusCancelled  Status = "cancelled"
)

// Valid reports whether s is one of the known appointment statuses.
func (s Status) Valid() bool {
	switch s {
	case StatusScheduled, StatusWaiting, StatusInProgress, StatusCompleted, StatusCancelled:
		return true
	}
	return false
}

// Terminal reports whether no further transition is allowed out of s.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

// ActiveStatuses is the default status set for the queue projection.
var ActiveStatuses = []Status{StatusScheduled, StatusWaiting, StatusInProgress}

type Role string

const (
	RoleAdmin        Role = "admin"
	RoleReceptionist Role = "receptionist"
	RolePhysician    Role = "physician"
)

func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleReceptionist, RolePhysician:
		return true
	}
	return false
}

// Identity is the acting user for a request. ProfessionalID is set only
// for physicians and ties them to the professional record they act for.
type Identity struct {
	UserID         uuid.UUID
	Role           Role
	ProfessionalID *uuid.UUID
}

type ProcedureType string

const (
	ProcedureConsultation ProcedureType = "consultation"
	ProcedureExam         ProcedureType = "exam"
	ProcedureProcedure    ProcedureType = "procedure"
)

func (t ProcedureType) Valid() bool {
	switch t {
	case ProcedureConsultation, ProcedureExam, ProcedureProcedure:
		return true
	}
	return false
}

type Patient struct {
	ID        uuid.UUID
	Name      string
	Email     *string
	CreatedAt time.Time
	UpdatedAt time.Time
}

type Professional struct {
	ID        uuid.UUID
	Name      string
	Specialty *string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Procedure is a billable catalog entry. Value is in cents.
type Procedure struct {
	ID    uuid.UUID
	Name  string
	Type  ProcedureType
	Value int64
}

// Appointment keeps the booked time and the arrival time as separate
// fields: ScheduledAt never changes after creation, CheckedInAt is
// rewritten on every check-in and drives the queue order.
type Appointment struct {
	ID             uuid.UUID
	PatientID      *uuid.UUID // nil for provisional bookings
	ProfessionalID uuid.UUID
	ScheduledAt    time.Time
	CheckedInAt    *time.Time
	Status         Status
	Notes          string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// EffectiveTime is the timestamp the queue orders and filters by:
// arrival time once the patient has checked in, booked time before that.
func (a *Appointment) EffectiveTime() time.Time {
	if a.CheckedInAt != nil {
		return *a.CheckedInAt
	}
	return a.ScheduledAt
}

// WaitingFor returns how long the patient has been waiting. It is only
// meaningful after check-in; ok is false before that.
func (a *Appointment) WaitingFor(now time.Time) (time.Duration, bool) {
	if a.CheckedInAt == nil {
		return 0, false
	}
	return now.Sub(*a.CheckedInAt), true
}

// Evolution is the SOAP note written when an appointment completes.
type Evolution struct {
	ID             uuid.UUID
	AppointmentID  uuid.UUID
	ProfessionalID uuid.UUID
	Subjective     *string
	Objective      *string
	Assessment     *string
	Plan           *string
	CreatedAt      time.Time
}

type EventLog struct {
	ID            int64
	EventType     string
	AppointmentID *uuid.UUID
	Payload       []byte
	CreatedAt     time.Time
}

// AppointmentDetail is a queue row: the appointment hydrated with its
// patient (nil for provisional bookings), professional and procedures.
type AppointmentDetail struct {
	Appointment
	Patient      *Patient
	Professional *Professional
	Procedures   []Procedure
}

// QueueFilter selects appointments for the queue projection. Zero values
// mean "no filter" except Day, which defaults to the current day, and
// Statuses, which defaults to ActiveStatuses.
type QueueFilter struct {
	ProfessionalID *uuid.UUID
	Day            time.Time
	Statuses       []Status
	ProcedureType  *ProcedureType
}

// Window returns the half-open day window [start, end) the filter covers.
func (f QueueFilter) Window(now time.Time) (time.Time, time.Time) {
	day := f.Day
	if day.IsZero() {
		day = now
	}
	start := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, day.Location())
	return start, start.Add(24 * time.Hour)
}
