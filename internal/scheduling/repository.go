package scheduling

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

var (
	ErrPatientNotFound   = errors.New("patient not found")
	ErrClinicianNotFound = errors.New("clinician not found")
	ErrBookingNotFound   = errors.New("booking not found")
)

// Repository contains all DB interactions needed by the service.
type Repository interface {
	// InTx runs fn against a repository bound to a single transaction.
	// Any error from fn rolls back every write made inside it.
	InTx(ctx context.Context, fn func(Repository) error) error

	GetPatientByID(ctx context.Context, id uuid.UUID) (*Patient, error)
	SetPatientAssignedClinician(ctx context.Context, id uuid.UUID, name string) error

	// Identity resolution (roster + legacy table)
	GetClinicianByID(ctx context.Context, id uuid.UUID) (*Clinician, error)
	GetClinicianByEmail(ctx context.Context, email string) (*Clinician, error)
	GetStaffAccountByID(ctx context.Context, id uuid.UUID) (*StaffAccount, error)
	ListActiveClinicians(ctx context.Context) ([]Clinician, error)
	ListClinicianStaffAccounts(ctx context.Context) ([]StaffAccount, error)

	// Availability and conflict reads
	ListAppointmentsForClinicianDay(ctx context.Context, clinicianID uuid.UUID, date string) ([]Appointment, error)
	ListInvestigationsForDay(ctx context.Context, date string) ([]InvestigationBooking, error)
	GetActiveAppointmentAt(ctx context.Context, clinicianID uuid.UUID, date, time string) (*Appointment, error)
	GetActiveInvestigationAt(ctx context.Context, date, time string) (*InvestigationBooking, error)

	// Booking rows
	CreateAppointment(ctx context.Context, a *Appointment) (*Appointment, error)
	CreateInvestigationBooking(ctx context.Context, b *InvestigationBooking) (*InvestigationBooking, error)
	GetAppointmentByID(ctx context.Context, id uuid.UUID) (*Appointment, error)
	GetInvestigationByID(ctx context.Context, id uuid.UUID) (*InvestigationBooking, error)
	UpdateAppointmentSchedule(ctx context.Context, a *Appointment) (*Appointment, error)
	UpdateInvestigationSchedule(ctx context.Context, b *InvestigationBooking) (*InvestigationBooking, error)
	UpdateAppointmentStatusNotes(ctx context.Context, id uuid.UUID, status BookingStatus, notes string) (*Appointment, error)
	UpdateInvestigationStatusNotes(ctx context.Context, id uuid.UUID, status BookingStatus, notes string) (*InvestigationBooking, error)
	DeleteAppointment(ctx context.Context, id uuid.UUID) error
	DeleteInvestigation(ctx context.Context, id uuid.UUID) error

	// Audit trail
	InsertTimelineNote(ctx context.Context, note TimelineNote) error

	// Reminder worker
	FindReminderDue(ctx context.Context, date string) ([]Appointment, error)
	MarkReminderSent(ctx context.Context, id uuid.UUID) error
}
