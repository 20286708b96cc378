package scheduling

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	patientCols       = "id, full_name, date_of_birth, email, status, assigned_clinician, created_at, updated_at"
	clinicianCols     = "id, full_name, specialization, email, active, created_at, updated_at"
	staffAccountCols  = "id, name, email, role, active, verified"
	appointmentCols   = "id, patient_id, type, to_char(date, 'YYYY-MM-DD'), time, clinician_id, clinician_name, surgery_type, notes, status, reminder_sent, created_at, updated_at"
	investigationCols = "id, patient_id, investigation, to_char(date, 'YYYY-MM-DD'), time, status, notes, created_at, updated_at"
)

// querier is satisfied by both *pgxpool.Pool and pgx.Tx, so the same
// repository code runs inside and outside a transaction.
type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

type PgRepository struct {
	pool *pgxpool.Pool
	q    querier
}

func NewPgRepository(pool *pgxpool.Pool) *PgRepository {
	return &PgRepository{pool: pool, q: pool}
}

func (r *PgRepository) InTx(ctx context.Context, fn func(Repository) error) error {
	if _, ok := r.q.(pgx.Tx); ok {
		// Already transactional; reuse the open transaction.
		return fn(r)
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := fn(&PgRepository{pool: r.pool, q: tx}); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// Helpers

func scanPatient(row pgx.Row) (*Patient, error) {
	var p Patient
	err := row.Scan(
		&p.ID,
		&p.FullName,
		&p.DateOfBirth,
		&p.Email,
		&p.Status,
		&p.AssignedClinician,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrPatientNotFound
		}
		return nil, err
	}
	return &p, nil
}

func scanClinician(row pgx.Row) (*Clinician, error) {
	var c Clinician
	err := row.Scan(
		&c.ID,
		&c.FullName,
		&c.Specialization,
		&c.Email,
		&c.Active,
		&c.CreatedAt,
		&c.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrClinicianNotFound
		}
		return nil, err
	}
	return &c, nil
}

func scanStaffAccount(row pgx.Row) (*StaffAccount, error) {
	var a StaffAccount
	err := row.Scan(
		&a.ID,
		&a.Name,
		&a.Email,
		&a.Role,
		&a.Active,
		&a.Verified,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrClinicianNotFound
		}
		return nil, err
	}
	return &a, nil
}

func scanAppointment(row pgx.Row) (*Appointment, error) {
	var a Appointment
	err := row.Scan(
		&a.ID,
		&a.PatientID,
		&a.Type,
		&a.Date,
		&a.Time,
		&a.ClinicianID,
		&a.ClinicianName,
		&a.SurgeryType,
		&a.Notes,
		&a.Status,
		&a.ReminderSent,
		&a.CreatedAt,
		&a.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrBookingNotFound
		}
		return nil, err
	}
	return &a, nil
}

func scanInvestigation(row pgx.Row) (*InvestigationBooking, error) {
	var b InvestigationBooking
	err := row.Scan(
		&b.ID,
		&b.PatientID,
		&b.Investigation,
		&b.Date,
		&b.Time,
		&b.Status,
		&b.Notes,
		&b.CreatedAt,
		&b.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrBookingNotFound
		}
		return nil, err
	}
	return &b, nil
}

// isUniqueViolation reports a 23505 from the partial slot indexes: a
// concurrent writer beat us to the slot despite the application-level check.
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

// Patients

func (r *PgRepository) GetPatientByID(ctx context.Context, id uuid.UUID) (*Patient, error) {
	row := r.q.QueryRow(ctx, `
		SELECT `+patientCols+`
		FROM patients
		WHERE id = $1
	`, id)
	return scanPatient(row)
}

func (r *PgRepository) SetPatientAssignedClinician(ctx context.Context, id uuid.UUID, name string) error {
	tag, err := r.q.Exec(ctx, `
		UPDATE patients
		SET assigned_clinician = $2,
		    updated_at = now()
		WHERE id = $1
	`, id, name)
	if err != nil {
		return fmt.Errorf("set assigned clinician: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrPatientNotFound
	}
	return nil
}

// Clinician identity

func (r *PgRepository) GetClinicianByID(ctx context.Context, id uuid.UUID) (*Clinician, error) {
	row := r.q.QueryRow(ctx, `
		SELECT `+clinicianCols+`
		FROM clinicians
		WHERE id = $1 AND active
	`, id)
	return scanClinician(row)
}

func (r *PgRepository) GetClinicianByEmail(ctx context.Context, email string) (*Clinician, error) {
	row := r.q.QueryRow(ctx, `
		SELECT `+clinicianCols+`
		FROM clinicians
		WHERE lower(email) = lower($1) AND active
	`, email)
	return scanClinician(row)
}

func (r *PgRepository) GetStaffAccountByID(ctx context.Context, id uuid.UUID) (*StaffAccount, error) {
	row := r.q.QueryRow(ctx, `
		SELECT `+staffAccountCols+`
		FROM staff_accounts
		WHERE id = $1 AND active AND role = ANY($2)
	`, id, ClinicianRoles)
	return scanStaffAccount(row)
}

func (r *PgRepository) ListActiveClinicians(ctx context.Context) ([]Clinician, error) {
	rows, err := r.q.Query(ctx, `
		SELECT `+clinicianCols+`
		FROM clinicians
		WHERE active
		ORDER BY full_name
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []Clinician
	for rows.Next() {
		c, err := scanClinician(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *c)
	}
	return result, rows.Err()
}

func (r *PgRepository) ListClinicianStaffAccounts(ctx context.Context) ([]StaffAccount, error) {
	rows, err := r.q.Query(ctx, `
		SELECT `+staffAccountCols+`
		FROM staff_accounts
		WHERE active AND role = ANY($1)
		ORDER BY name
	`, ClinicianRoles)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []StaffAccount
	for rows.Next() {
		a, err := scanStaffAccount(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *a)
	}
	return result, rows.Err()
}

// Availability and conflict reads

func (r *PgRepository) ListAppointmentsForClinicianDay(ctx context.Context, clinicianID uuid.UUID, date string) ([]Appointment, error) {
	rows, err := r.q.Query(ctx, `
		SELECT `+appointmentCols+`
		FROM appointments
		WHERE clinician_id = $1
		  AND date = $2::date
		  AND status IN ('scheduled', 'confirmed')
		  AND type <> 'automatic'
	`, clinicianID, date)
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
	return result, rows.Err()
}

func (r *PgRepository) ListInvestigationsForDay(ctx context.Context, date string) ([]InvestigationBooking, error) {
	rows, err := r.q.Query(ctx, `
		SELECT `+investigationCols+`
		FROM investigation_bookings
		WHERE date = $1::date
		  AND status IN ('scheduled', 'confirmed')
	`, date)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []InvestigationBooking
	for rows.Next() {
		b, err := scanInvestigation(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *b)
	}
	return result, rows.Err()
}

func (r *PgRepository) GetActiveAppointmentAt(ctx context.Context, clinicianID uuid.UUID, date, clock string) (*Appointment, error) {
	row := r.q.QueryRow(ctx, `
		SELECT `+appointmentCols+`
		FROM appointments
		WHERE clinician_id = $1
		  AND date = $2::date
		  AND time = $3
		  AND status IN ('scheduled', 'confirmed')
		  AND type <> 'automatic'
		LIMIT 1
	`, clinicianID, date, clock)
	return scanAppointment(row)
}

func (r *PgRepository) GetActiveInvestigationAt(ctx context.Context, date, clock string) (*InvestigationBooking, error) {
	row := r.q.QueryRow(ctx, `
		SELECT `+investigationCols+`
		FROM investigation_bookings
		WHERE date = $1::date
		  AND time = $2
		  AND status IN ('scheduled', 'confirmed')
		LIMIT 1
	`, date, clock)
	return scanInvestigation(row)
}

// Booking rows

func (r *PgRepository) CreateAppointment(ctx context.Context, a *Appointment) (*Appointment, error) {
	row := r.q.QueryRow(ctx, `
		INSERT INTO appointments (id, patient_id, type, date, time, clinician_id, clinician_name, surgery_type, notes, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4::date, $5, $6, $7, $8, $9, $10, now(), now())
		RETURNING `+appointmentCols+`
	`, a.ID, a.PatientID, a.Type, a.Date, a.Time, a.ClinicianID, a.ClinicianName, a.SurgeryType, a.Notes, a.Status)

	created, err := scanAppointment(row)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, ErrSlotTaken
		}
		return nil, err
	}
	return created, nil
}

func (r *PgRepository) CreateInvestigationBooking(ctx context.Context, b *InvestigationBooking) (*InvestigationBooking, error) {
	row := r.q.QueryRow(ctx, `
		INSERT INTO investigation_bookings (id, patient_id, investigation, date, time, status, notes, created_at, updated_at)
		VALUES ($1, $2, $3, $4::date, $5, $6, $7, now(), now())
		RETURNING `+investigationCols+`
	`, b.ID, b.PatientID, b.Investigation, b.Date, b.Time, b.Status, b.Notes)

	created, err := scanInvestigation(row)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, ErrSlotTaken
		}
		return nil, err
	}
	return created, nil
}

func (r *PgRepository) GetAppointmentByID(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	row := r.q.QueryRow(ctx, `
		SELECT `+appointmentCols+`
		FROM appointments
		WHERE id = $1
	`, id)
	return scanAppointment(row)
}

func (r *PgRepository) GetInvestigationByID(ctx context.Context, id uuid.UUID) (*InvestigationBooking, error) {
	row := r.q.QueryRow(ctx, `
		SELECT `+investigationCols+`
		FROM investigation_bookings
		WHERE id = $1
	`, id)
	return scanInvestigation(row)
}

func (r *PgRepository) UpdateAppointmentSchedule(ctx context.Context, a *Appointment) (*Appointment, error) {
	row := r.q.QueryRow(ctx, `
		UPDATE appointments
		SET type = $2,
		    date = $3::date,
		    time = $4,
		    clinician_id = $5,
		    clinician_name = $6,
		    surgery_type = $7,
		    notes = $8,
		    status = $9,
		    updated_at = now()
		WHERE id = $1
		RETURNING `+appointmentCols+`
	`, a.ID, a.Type, a.Date, a.Time, a.ClinicianID, a.ClinicianName, a.SurgeryType, a.Notes, a.Status)

	updated, err := scanAppointment(row)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, ErrSlotTaken
		}
		return nil, err
	}
	return updated, nil
}

func (r *PgRepository) UpdateInvestigationSchedule(ctx context.Context, b *InvestigationBooking) (*InvestigationBooking, error) {
	row := r.q.QueryRow(ctx, `
		UPDATE investigation_bookings
		SET investigation = $2,
		    date = $3::date,
		    time = $4,
		    status = $5,
		    notes = $6,
		    updated_at = now()
		WHERE id = $1
		RETURNING `+investigationCols+`
	`, b.ID, b.Investigation, b.Date, b.Time, b.Status, b.Notes)

	updated, err := scanInvestigation(row)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, ErrSlotTaken
		}
		return nil, err
	}
	return updated, nil
}

func (r *PgRepository) UpdateAppointmentStatusNotes(ctx context.Context, id uuid.UUID, status BookingStatus, notes string) (*Appointment, error) {
	row := r.q.QueryRow(ctx, `
		UPDATE appointments
		SET status = $2,
		    notes = $3,
		    updated_at = now()
		WHERE id = $1
		RETURNING `+appointmentCols+`
	`, id, status, notes)
	return scanAppointment(row)
}

func (r *PgRepository) UpdateInvestigationStatusNotes(ctx context.Context, id uuid.UUID, status BookingStatus, notes string) (*InvestigationBooking, error) {
	row := r.q.QueryRow(ctx, `
		UPDATE investigation_bookings
		SET status = $2,
		    notes = $3,
		    updated_at = now()
		WHERE id = $1
		RETURNING `+investigationCols+`
	`, id, status, notes)
	return scanInvestigation(row)
}

func (r *PgRepository) DeleteAppointment(ctx context.Context, id uuid.UUID) error {
	tag, err := r.q.Exec(ctx, `DELETE FROM appointments WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrBookingNotFound
	}
	return nil
}

func (r *PgRepository) DeleteInvestigation(ctx context.Context, id uuid.UUID) error {
	tag, err := r.q.Exec(ctx, `DELETE FROM investigation_bookings WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrBookingNotFound
	}
	return nil
}

// Audit trail

func (r *PgRepository) InsertTimelineNote(ctx context.Context, note TimelineNote) error {
	_, err := r.q.Exec(ctx, `
		INSERT INTO timeline_notes (id, patient_id, author_id, body, created_at)
		VALUES ($1, $2, $3, $4, now())
	`, note.ID, note.PatientID, note.AuthorID, note.Body)
	if err != nil {
		return fmt.Errorf("insert timeline note: %w", err)
	}
	return nil
}

// Reminder worker

func (r *PgRepository) FindReminderDue(ctx context.Context, date string) ([]Appointment, error) {
	rows, err := r.q.Query(ctx, `
		SELECT `+appointmentCols+`
		FROM appointments
		WHERE date = $1::date
		  AND status IN ('scheduled', 'confirmed')
		  AND NOT reminder_sent
	`, date)
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
	return result, rows.Err()
}

func (r *PgRepository) MarkReminderSent(ctx context.Context, id uuid.UUID) error {
	tag, err := r.q.Exec(ctx, `
		UPDATE appointments
		SET reminder_sent = TRUE,
		    updated_at = now()
		WHERE id = $1
	`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrBookingNotFound
	}
	return nil
}
