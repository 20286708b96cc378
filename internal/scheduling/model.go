package scheduling

import (
	"time"

	"github.com/google/uuid"
)

type PatientStatus string

const (
	PatientActive  PatientStatus = "Active"
	PatientExpired PatientStatus = "Expired"
)

type BookingStatus string

const (
	StatusScheduled       BookingStatus = "scheduled"
	StatusConfirmed       BookingStatus = "confirmed"
	StatusCancelled       BookingStatus = "cancelled"
	StatusNoShow          BookingStatus = "no_show"
	StatusRequested       BookingStatus = "requested"
	StatusRequestedUrgent BookingStatus = "requested_urgent"
)

type AppointmentType string

const (
	TypeUrologist     AppointmentType = "urologist"
	TypeSurgery       AppointmentType = "surgery"
	TypeAutomatic     AppointmentType = "automatic"
	TypeInvestigation AppointmentType = "investigation"
)

// BookingKind identifies which table a booking row lives in. An id is unique
// only within its own table, so the kind must be established before any
// reschedule or no-show step.
type BookingKind string

const (
	KindAppointment   BookingKind = "appointment"
	KindInvestigation BookingKind = "investigation"
)

// KindForType maps a requested booking type to its storage table.
func KindForType(t AppointmentType) BookingKind {
	if t == TypeInvestigation {
		return KindInvestigation
	}
	return KindAppointment
}

type Patient struct {
	ID                uuid.UUID
	FullName          string
	DateOfBirth       *time.Time
	Email             *string
	Status            PatientStatus
	AssignedClinician *string
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// Clinician is a canonical roster record. Every booking stores this id.
type Clinician struct {
	ID             uuid.UUID
	FullName       string
	Specialization *string
	Email          string
	Active         bool
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// StaffAccount is a legacy identity record kept from the pre-migration
// system. It is reconciled to the roster by case-insensitive email and is
// never persisted on a booking.
type StaffAccount struct {
	ID       uuid.UUID
	Name     string
	Email    string
	Role     string
	Active   bool
	Verified bool
}

type Appointment struct {
	ID            uuid.UUID
	PatientID     uuid.UUID
	Type          AppointmentType
	Date          string // YYYY-MM-DD
	Time          string // HH:MM
	ClinicianID   uuid.UUID
	ClinicianName string
	SurgeryType   *string
	Notes         string
	Status        BookingStatus
	ReminderSent  bool
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

type InvestigationBooking struct {
	ID            uuid.UUID
	PatientID     uuid.UUID
	Investigation string
	Date          *string // nil while status is requested/requested_urgent
	Time          *string
	Status        BookingStatus
	Notes         string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// TimelineNote is an append-only audit record attached to a patient. The
// engine only ever inserts these.
type TimelineNote struct {
	ID        uuid.UUID
	PatientID uuid.UUID
	AuthorID  *uuid.UUID
	Body      string
	CreatedAt time.Time
}

// SlotStatus is one cell of a clinician's daily grid.
type SlotStatus struct {
	Time      string `json:"time"`
	Available bool   `json:"available"`
}

// activeStatus reports whether a booking in this status occupies its slot.
// Cancelled and no-show rows persist as history but release the slot;
// requested investigations have no slot yet.
func activeStatus(s BookingStatus) bool {
	return s == StatusScheduled || s == StatusConfirmed
}
