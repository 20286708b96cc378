package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	redisclient "github.com/medgrid/clinic-scheduling/internal/redis"
	"github.com/medgrid/clinic-scheduling/internal/scheduling"
)

// SchedulingService is the engine surface the HTTP layer depends on.
type SchedulingService interface {
	CreateAppointment(ctx context.Context, in scheduling.CreateAppointmentInput) (*scheduling.Appointment, error)
	CreateInvestigationBooking(ctx context.Context, in scheduling.CreateInvestigationInput) (*scheduling.InvestigationBooking, error)
	AvailableSlots(ctx context.Context, clinicianID uuid.UUID, date string, tzOffsetMinutes *int) ([]scheduling.SlotStatus, error)
	ListBookableClinicians(ctx context.Context) ([]scheduling.Clinician, error)
	Reschedule(ctx context.Context, in scheduling.RescheduleInput) (*scheduling.RescheduleResult, error)
	MarkNoShow(ctx context.Context, in scheduling.NoShowInput) (*scheduling.NoShowResult, error)
}

func bookAppointmentHandler(svc SchedulingService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req BookAppointmentRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		patientID, err := uuid.Parse(req.PatientID)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_patient_id", "patient_id must be a valid UUID")
			return
		}
		clinicianRef, err := uuid.Parse(req.ClinicianRef)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_clinician_ref", "clinician_ref must be a valid UUID")
			return
		}

		appt, err := svc.CreateAppointment(r.Context(), scheduling.CreateAppointmentInput{
			PatientID:    patientID,
			ClinicianRef: clinicianRef,
			Date:         req.Date,
			Time:         req.Time,
			Type:         scheduling.AppointmentType(req.Type),
			SurgeryType:  req.SurgeryType,
			Notes:        req.Notes,
			ActorID:      actorID(r),
		})
		if err != nil {
			handleServiceError(w, r, err)
			return
		}

		writeJSON(w, http.StatusCreated, appointmentResponse(appt))
	}
}

func bookInvestigationHandler(svc SchedulingService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req BookInvestigationRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		patientID, err := uuid.Parse(req.PatientID)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_patient_id", "patient_id must be a valid UUID")
			return
		}

		var orderedBy *uuid.UUID
		if req.OrderedBy != nil {
			id, err := uuid.Parse(*req.OrderedBy)
			if err != nil {
				writeError(w, http.StatusBadRequest, "invalid_ordered_by", "ordered_by must be a valid UUID")
				return
			}
			orderedBy = &id
		}

		booking, err := svc.CreateInvestigationBooking(r.Context(), scheduling.CreateInvestigationInput{
			PatientID:     patientID,
			Investigation: req.Investigation,
			Date:          req.Date,
			Time:          req.Time,
			Urgent:        req.Urgent,
			Notes:         req.Notes,
			OrderedByRef:  orderedBy,
			ActorID:       actorID(r),
		})
		if err != nil {
			handleServiceError(w, r, err)
			return
		}

		writeJSON(w, http.StatusCreated, investigationResponse(booking))
	}
}

func availableSlotsHandler(svc SchedulingService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		clinicianID, err := uuid.Parse(chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_clinician_id", "id must be a valid UUID")
			return
		}

		date := r.URL.Query().Get("date")
		if date == "" {
			writeError(w, http.StatusBadRequest, "missing_date", "date query parameter is required")
			return
		}

		var tzOffset *int
		if raw := r.URL.Query().Get("tz_offset"); raw != "" {
			n, err := strconv.Atoi(raw)
			if err != nil {
				writeError(w, http.StatusBadRequest, "invalid_tz_offset", "tz_offset must be an integer number of minutes")
				return
			}
			tzOffset = &n
		}

		slots, err := svc.AvailableSlots(r.Context(), clinicianID, date, tzOffset)
		if err != nil {
			handleServiceError(w, r, err)
			return
		}

		writeJSON(w, http.StatusOK, slots)
	}
}

func listCliniciansHandler(svc SchedulingService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		clinicians, err := svc.ListBookableClinicians(r.Context())
		if err != nil {
			handleServiceError(w, r, err)
			return
		}

		resp := make([]ClinicianResponse, 0, len(clinicians))
		for _, c := range clinicians {
			resp = append(resp, ClinicianResponse{
				ID:             c.ID,
				FullName:       c.FullName,
				Specialization: c.Specialization,
				Email:          c.Email,
			})
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func rescheduleHandler(svc SchedulingService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		bookingID, err := uuid.Parse(chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_booking_id", "id must be a valid UUID")
			return
		}

		var req RescheduleRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		clinicianRef, err := uuid.Parse(req.ClinicianRef)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_clinician_ref", "clinician_ref must be a valid UUID")
			return
		}

		result, err := svc.Reschedule(r.Context(), scheduling.RescheduleInput{
			BookingID:       bookingID,
			NewDate:         req.Date,
			NewTime:         req.Time,
			NewClinicianRef: clinicianRef,
			NewType:         scheduling.AppointmentType(req.Type),
			SurgeryType:     req.SurgeryType,
			Investigation:   req.Investigation,
			Notes:           req.Notes,
			Reason:          req.Reason,
			ActorID:         actorID(r),
		})
		if err != nil {
			handleServiceError(w, r, err)
			return
		}

		writeJSON(w, http.StatusOK, RescheduleResponse{
			BookingID:     result.BookingID,
			Date:          result.Date,
			Time:          result.Time,
			ClinicianName: result.ClinicianName,
			Type:          string(result.Type),
		})
	}
}

func noShowHandler(svc SchedulingService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		bookingID, err := uuid.Parse(chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_booking_id", "id must be a valid UUID")
			return
		}

		var req NoShowRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		result, err := svc.MarkNoShow(r.Context(), scheduling.NoShowInput{
			BookingID: bookingID,
			Kind:      scheduling.BookingKind(req.Type),
			Reason:    req.Reason,
			Notes:     req.Notes,
			ActorID:   actorID(r),
		})
		if err != nil {
			handleServiceError(w, r, err)
			return
		}

		resp := NoShowResponse{
			Patient: PatientSummaryResponse{
				ID:                result.Patient.ID,
				FullName:          result.Patient.FullName,
				Status:            string(result.Patient.Status),
				AssignedClinician: result.Patient.AssignedClinician,
			},
		}
		if result.Appointment != nil {
			r := appointmentResponse(result.Appointment)
			resp.Appointment = &r
		}
		if result.Investigation != nil {
			r := investigationResponse(result.Investigation)
			resp.Investigation = &r
		}

		writeJSON(w, http.StatusOK, resp)
	}
}

// actorID reads the authenticated user id the outer auth middleware forwards.
func actorID(r *http.Request) *uuid.UUID {
	raw := r.Header.Get("X-Actor-ID")
	if raw == "" {
		return nil
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return nil
	}
	return &id
}

func handleServiceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, scheduling.ErrValidation):
		writeError(w, http.StatusBadRequest, "validation_error", err.Error())
	case errors.Is(err, scheduling.ErrPatientExpired):
		writeError(w, http.StatusBadRequest, "patient_expired", "bookings cannot be created for an expired patient")
	case errors.Is(err, scheduling.ErrPatientNotFound):
		writeError(w, http.StatusNotFound, "patient_not_found", err.Error())
	case errors.Is(err, scheduling.ErrClinicianNotFound):
		writeError(w, http.StatusNotFound, "clinician_not_found", err.Error())
	case errors.Is(err, scheduling.ErrBookingNotFound):
		writeError(w, http.StatusNotFound, "booking_not_found", err.Error())
	case errors.Is(err, scheduling.ErrSlotTaken):
		writeError(w, http.StatusConflict, "slot_conflict", err.Error())
	case errors.Is(err, scheduling.ErrScheduleBusy),
		errors.Is(err, redisclient.ErrLockNotAcquired):
		writeError(w, http.StatusConflict, "schedule_busy", "schedule is currently being modified, please retry shortly")
	default:
		log.Error().Err(err).Str("request_id", GetRequestID(r.Context())).Msg("unhandled service error")
		writeError(w, http.StatusInternalServerError, "internal_error", "an unexpected error occurred")
	}
}
