package clinic

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// pgxQuerier is the slice of pgxpool.Pool the repository uses; pgxmock
// implements it too.
type pgxQuerier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Begin(ctx context.Context) (pgx.Tx, error)
}

type PgRepository struct {
	pool pgxQuerier
}

func NewPgRepository(pool *pgxpool.Pool) *PgRepository {
	return &PgRepository{pool: pool}
}

func newPgRepositoryWithDB(db pgxQuerier) *PgRepository {
	return &PgRepository{pool: db}
}

// Helpers

func scanPatient(row pgx.Row) (*Patient, error) {
	var p Patient
	var email *string

	err := row.Scan(
		&p.ID,
		&p.Name,
		&email,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrPatientNotFound
		}
		return nil, err
	}

	p.Email = email
	return &p, nil
}

func scanProfessional(row pgx.Row) (*Professional, error) {
	var p Professional
	var specialty *string

	err := row.Scan(
		&p.ID,
		&p.Name,
		&specialty,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrProfessionalNotFound
		}
		return nil, err
	}

	p.Specialty = specialty
	return &p, nil
}

func scanAppointment(row pgx.Row) (*Appointment, error) {
	var a Appointment
	var patientID *uuid.UUID
	var checkedInAt *time.Time

	err := row.Scan(
		&a.ID,
		&patientID,
		&a.ProfessionalID,
		&a.ScheduledAt,
		&checkedInAt,
		&a.Status,
		&a.Notes,
		&a.CreatedAt,
		&a.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAppointmentNotFound
		}
		return nil, err
	}

	a.PatientID = patientID
	a.CheckedInAt = checkedInAt
	return &a, nil
}

const appointmentColumns = `id, patient_id, professional_id, scheduled_at, checked_in_at, status, notes, created_at, updated_at`

// Interface methods

func (r *PgRepository) GetPatientByID(ctx context.Context, id uuid.UUID) (*Patient, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, name, email, created_at, updated_at
		FROM patients
		WHERE id = $1
	`, id)
	return scanPatient(row)
}

func (r *PgRepository) GetProfessionalByID(ctx context.Context, id uuid.UUID) (*Professional, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, name, specialty, created_at, updated_at
		FROM professionals
		WHERE id = $1
	`, id)
	return scanProfessional(row)
}

func (r *PgRepository) GetProceduresByIDs(ctx context.Context, ids []uuid.UUID) ([]Procedure, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, name, type, value
		FROM procedures
		WHERE id = ANY($1)
	`, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []Procedure
	for rows.Next() {
		var p Procedure
		if err := rows.Scan(&p.ID, &p.Name, &p.Type, &p.Value); err != nil {
			return nil, err
		}
		result = append(result, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if len(result) != len(ids) {
		return nil, ErrProcedureNotFound
	}

	return result, nil
}

func (r *PgRepository) GetAppointmentByID(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE id = $1
	`, id)
	return scanAppointment(row)
}

func (r *PgRepository) CreateAppointment(ctx context.Context, appt Appointment, procedureIDs []uuid.UUID) (*Appointment, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin create appointment: %w", err)
	}
	defer tx.Rollback(ctx)

	row := tx.QueryRow(ctx, `
		INSERT INTO appointments (id, patient_id, professional_id, scheduled_at, checked_in_at, status, notes, created_at, updated_at)
		VALUES ($1, $2, $3, $4, NULL, 'scheduled', $5, now(), now())
		RETURNING `+appointmentColumns+`
	`, appt.ID, appt.PatientID, appt.ProfessionalID, appt.ScheduledAt, appt.Notes)

	created, err := scanAppointment(row)
	if err != nil {
		return nil, fmt.Errorf("insert appointment: %w", err)
	}

	for _, procID := range procedureIDs {
		_, err := tx.Exec(ctx, `
			INSERT INTO appointment_procedures (appointment_id, procedure_id)
			VALUES ($1, $2)
		`, created.ID, procID)
		if err != nil {
			return nil, fmt.Errorf("insert appointment procedure: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit create appointment: %w", err)
	}

	return created, nil
}

func (r *PgRepository) UpdateAppointmentStatus(ctx context.Context, id uuid.UUID, from, to Status, checkedInAt *time.Time) (*Appointment, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE appointments
		SET status = $2,
		    checked_in_at = COALESCE($4, checked_in_at),
		    updated_at = now()
		WHERE id = $1
		  AND status = $3
		RETURNING `+appointmentColumns+`
	`, id, to, from, checkedInAt)

	return scanAppointment(row)
}

func (r *PgRepository) BindPatient(ctx context.Context, id, patientID uuid.UUID) (*Appointment, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE appointments
		SET patient_id = $2,
		    updated_at = now()
		WHERE id = $1
		  AND patient_id IS NULL
		RETURNING `+appointmentColumns+`
	`, id, patientID)

	return scanAppointment(row)
}

func (r *PgRepository) FindStaleScheduled(ctx context.Context, before time.Time) ([]Appointment, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE status = 'scheduled'
		  AND scheduled_at < $1
	`, before)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []Appointment
	for rows.Next() {
		a, err := scanAppointment(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *a)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return result, nil
}

func (r *PgRepository) GetAppointmentDetail(ctx context.Context, id uuid.UUID) (*AppointmentDetail, error) {
	appt, err := r.GetAppointmentByID(ctx, id)
	if err != nil {
		return nil, err
	}

	detail := AppointmentDetail{Appointment: *appt}

	if appt.PatientID != nil {
		patient, err := r.GetPatientByID(ctx, *appt.PatientID)
		if err != nil {
			return nil, err
		}
		detail.Patient = patient
	}

	professional, err := r.GetProfessionalByID(ctx, appt.ProfessionalID)
	if err != nil {
		return nil, err
	}
	detail.Professional = professional

	procedures, err := r.proceduresByAppointment(ctx, []uuid.UUID{appt.ID})
	if err != nil {
		return nil, err
	}
	detail.Procedures = procedures[appt.ID]

	return &detail, nil
}

func (r *PgRepository) ListQueue(ctx context.Context, f QueueFilter, now time.Time) ([]AppointmentDetail, error) {
	start, end := f.Window(now)

	statuses := f.Statuses
	if len(statuses) == 0 {
		statuses = ActiveStatuses
	}
	statusStrings := make([]string, len(statuses))
	for i, s := range statuses {
		statusStrings[i] = string(s)
	}

	query := `
		SELECT a.id, a.patient_id, a.professional_id, a.scheduled_at, a.checked_in_at, a.status, a.notes, a.created_at, a.updated_at,
		       p.id, p.name, p.email, p.created_at, p.updated_at,
		       pr.id, pr.name, pr.specialty, pr.created_at, pr.updated_at
		FROM appointments a
		LEFT JOIN patients p ON p.id = a.patient_id
		JOIN professionals pr ON pr.id = a.professional_id
		WHERE COALESCE(a.checked_in_at, a.scheduled_at) >= $1
		  AND COALESCE(a.checked_in_at, a.scheduled_at) < $2
		  AND a.status = ANY($3)`
	args := []any{start, end, statusStrings}

	if f.ProfessionalID != nil {
		args = append(args, *f.ProfessionalID)
		query += fmt.Sprintf(" AND a.professional_id = $%d", len(args))
	}
	if f.ProcedureType != nil {
		args = append(args, string(*f.ProcedureType))
		query += fmt.Sprintf(`
		  AND EXISTS (
			SELECT 1 FROM appointment_procedures ap
			JOIN procedures pc ON pc.id = ap.procedure_id
			WHERE ap.appointment_id = a.id AND pc.type = $%d
		  )`, len(args))
	}

	query += " ORDER BY COALESCE(a.checked_in_at, a.scheduled_at) ASC"

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var details []AppointmentDetail
	var apptIDs []uuid.UUID

	for rows.Next() {
		var d AppointmentDetail
		var patientID *uuid.UUID
		var checkedInAt *time.Time
		var pID *uuid.UUID
		var pName, pEmail *string
		var pCreated, pUpdated *time.Time
		var pr Professional
		var prSpecialty *string

		err := rows.Scan(
			&d.ID, &patientID, &d.ProfessionalID, &d.ScheduledAt, &checkedInAt, &d.Status, &d.Notes, &d.CreatedAt, &d.UpdatedAt,
			&pID, &pName, &pEmail, &pCreated, &pUpdated,
			&pr.ID, &pr.Name, &prSpecialty, &pr.CreatedAt, &pr.UpdatedAt,
		)
		if err != nil {
			return nil, err
		}

		d.PatientID = patientID
		d.CheckedInAt = checkedInAt
		if pID != nil {
			d.Patient = &Patient{ID: *pID, Name: *pName, Email: pEmail, CreatedAt: *pCreated, UpdatedAt: *pUpdated}
		}
		pr.Specialty = prSpecialty
		d.Professional = &pr

		details = append(details, d)
		apptIDs = append(apptIDs, d.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if len(details) == 0 {
		return details, nil
	}

	procedures, err := r.proceduresByAppointment(ctx, apptIDs)
	if err != nil {
		return nil, err
	}
	for i := range details {
		details[i].Procedures = procedures[details[i].ID]
	}

	return details, nil
}

// proceduresByAppointment batch loads the procedure lists for a set of
// appointments.
func (r *PgRepository) proceduresByAppointment(ctx context.Context, apptIDs []uuid.UUID) (map[uuid.UUID][]Procedure, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT ap.appointment_id, pc.id, pc.name, pc.type, pc.value
		FROM appointment_procedures ap
		JOIN procedures pc ON pc.id = ap.procedure_id
		WHERE ap.appointment_id = ANY($1)
	`, apptIDs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := make(map[uuid.UUID][]Procedure)
	for rows.Next() {
		var apptID uuid.UUID
		var p Procedure
		if err := rows.Scan(&apptID, &p.ID, &p.Name, &p.Type, &p.Value); err != nil {
			return nil, err
		}
		result[apptID] = append(result[apptID], p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return result, nil
}

func (r *PgRepository) InsertEvolution(ctx context.Context, ev Evolution) (*Evolution, error) {
	row := r.pool.QueryRow(ctx, `
		INSERT INTO evolutions (id, appointment_id, professional_id, subjective, objective, assessment, plan, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, now())
		RETURNING id, appointment_id, professional_id, subjective, objective, assessment, plan, created_at
	`, ev.ID, ev.AppointmentID, ev.ProfessionalID, ev.Subjective, ev.Objective, ev.Assessment, ev.Plan)

	var out Evolution
	err := row.Scan(
		&out.ID,
		&out.AppointmentID,
		&out.ProfessionalID,
		&out.Subjective,
		&out.Objective,
		&out.Assessment,
		&out.Plan,
		&out.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("insert evolution: %w", err)
	}

	return &out, nil
}

func (r *PgRepository) InsertEvent(ctx context.Context, ev EventLog) error {
	var apptID *uuid.UUID
	if ev.AppointmentID != nil {
		apptID = ev.AppointmentID
	}

	_, err := r.pool.Exec(ctx, `
		INSERT INTO event_logs (event_type, appointment_id, payload, created_at)
		VALUES ($1, $2, $3, COALESCE($4, now()))
	`, ev.EventType, apptID, ev.Payload, nullableTime(ev.CreatedAt))
	if err != nil {
		return fmt.Errorf("insert event log: %w", err)
	}

	return nil
}

func nullableTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
