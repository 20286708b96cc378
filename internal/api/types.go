package api

import (
	"github.com/google/uuid"

	"github.com/medgrid/clinic-scheduling/internal/scheduling"
)

type BookAppointmentRequest struct {
	PatientID    string  `json:"patient_id"`
	ClinicianRef string  `json:"clinician_ref"`
	Date         string  `json:"date"`
	Time         string  `json:"time"`
	Type         string  `json:"type"`
	SurgeryType  *string `json:"surgery_type,omitempty"`
	Notes        string  `json:"notes,omitempty"`
}

type AppointmentResponse struct {
	ID            uuid.UUID `json:"id"`
	PatientID     uuid.UUID `json:"patient_id"`
	Type          string    `json:"type"`
	Date          string    `json:"date"`
	Time          string    `json:"time"`
	ClinicianID   uuid.UUID `json:"clinician_id"`
	ClinicianName string    `json:"clinician_name"`
	SurgeryType   *string   `json:"surgery_type,omitempty"`
	Notes         string    `json:"notes,omitempty"`
	Status        string    `json:"status"`
}

func appointmentResponse(a *scheduling.Appointment) AppointmentResponse {
	return AppointmentResponse{
		ID:            a.ID,
		PatientID:     a.PatientID,
		Type:          string(a.Type),
		Date:          a.Date,
		Time:          a.Time,
		ClinicianID:   a.ClinicianID,
		ClinicianName: a.ClinicianName,
		SurgeryType:   a.SurgeryType,
		Notes:         a.Notes,
		Status:        string(a.Status),
	}
}

type BookInvestigationRequest struct {
	PatientID     string  `json:"patient_id"`
	Investigation string  `json:"investigation"`
	Date          *string `json:"date,omitempty"`
	Time          *string `json:"time,omitempty"`
	Urgent        bool    `json:"urgent,omitempty"`
	OrderedBy     *string `json:"ordered_by,omitempty"`
	Notes         string  `json:"notes,omitempty"`
}

type InvestigationResponse struct {
	ID            uuid.UUID `json:"id"`
	PatientID     uuid.UUID `json:"patient_id"`
	Investigation string    `json:"investigation"`
	Date          *string   `json:"date,omitempty"`
	Time          *string   `json:"time,omitempty"`
	Status        string    `json:"status"`
	Notes         string    `json:"notes,omitempty"`
}

func investigationResponse(b *scheduling.InvestigationBooking) InvestigationResponse {
	return InvestigationResponse{
		ID:            b.ID,
		PatientID:     b.PatientID,
		Investigation: b.Investigation,
		Date:          b.Date,
		Time:          b.Time,
		Status:        string(b.Status),
		Notes:         b.Notes,
	}
}

type RescheduleRequest struct {
	Date          string  `json:"date"`
	Time          string  `json:"time"`
	ClinicianRef  string  `json:"clinician_ref"`
	Type          string  `json:"type"`
	SurgeryType   *string `json:"surgery_type,omitempty"`
	Investigation string  `json:"investigation,omitempty"`
	Notes         string  `json:"notes,omitempty"`
	Reason        string  `json:"reason,omitempty"`
}

type RescheduleResponse struct {
	BookingID     uuid.UUID `json:"booking_id"`
	Date          string    `json:"date"`
	Time          string    `json:"time"`
	ClinicianName string    `json:"clinician_name"`
	Type          string    `json:"type"`
}

type NoShowRequest struct {
	Type   string `json:"type"` // "appointment" or "investigation"
	Reason string `json:"reason"`
	Notes  string `json:"notes,omitempty"`
}

type PatientSummaryResponse struct {
	ID                uuid.UUID `json:"id"`
	FullName          string    `json:"full_name"`
	Status            string    `json:"status"`
	AssignedClinician *string   `json:"assigned_clinician,omitempty"`
}

type NoShowResponse struct {
	Appointment   *AppointmentResponse   `json:"appointment,omitempty"`
	Investigation *InvestigationResponse `json:"investigation,omitempty"`
	Patient       PatientSummaryResponse `json:"patient"`
}

type ClinicianResponse struct {
	ID             uuid.UUID `json:"id"`
	FullName       string    `json:"full_name"`
	Specialization *string   `json:"specialization,omitempty"`
	Email          string    `json:"email"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}
