package scheduling

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	redisclient "github.com/medgrid/clinic-scheduling/internal/redis"
)

type RescheduleInput struct {
	BookingID       uuid.UUID
	NewDate         string
	NewTime         string
	NewClinicianRef uuid.UUID
	NewType         AppointmentType
	SurgeryType     *string
	Investigation   string // destination name when migrating to an investigation
	Notes           string
	Reason          string
	ActorID         *uuid.UUID
}

type RescheduleResult struct {
	BookingID     uuid.UUID
	Date          string
	Time          string
	ClinicianName string
	Type          AppointmentType
}

// Reschedule moves a booking to a new slot, clinician, or category. When the
// new type lives in the other table the original row is deleted and a fresh
// row inserted in the destination table; both halves commit or neither does.
// Same-type moves update in place, resetting the status to scheduled and
// appending any supplied notes. Either way the clinician reference is
// re-resolved, the patient's assigned clinician is overwritten, and a
// timeline note records the transition.
func (s *Service) Reschedule(ctx context.Context, in RescheduleInput) (*RescheduleResult, error) {
	if _, err := time.Parse(dateLayout, in.NewDate); err != nil {
		return nil, fmt.Errorf("%w: invalid date %q", ErrValidation, in.NewDate)
	}
	if !ValidClock(in.NewTime) {
		return nil, fmt.Errorf("%w: invalid time %q", ErrValidation, in.NewTime)
	}
	if in.NewType == "" {
		return nil, fmt.Errorf("%w: booking type is required", ErrValidation)
	}
	if in.NewType == TypeSurgery && (in.SurgeryType == nil || *in.SurgeryType == "") {
		return nil, fmt.Errorf("%w: surgery type is required for surgery bookings", ErrValidation)
	}

	// An id is unique only within its own table: establish the booking's
	// current home before anything else.
	var (
		curAppt *Appointment
		curInv  *InvestigationBooking
		curKind BookingKind
	)
	curAppt, err := s.repo.GetAppointmentByID(ctx, in.BookingID)
	switch {
	case err == nil:
		curKind = KindAppointment
	case errors.Is(err, ErrBookingNotFound):
		curInv, err = s.repo.GetInvestigationByID(ctx, in.BookingID)
		if err != nil {
			if errors.Is(err, ErrBookingNotFound) {
				return nil, ErrBookingNotFound
			}
			return nil, fmt.Errorf("load investigation booking: %w", err)
		}
		curKind = KindInvestigation
	default:
		return nil, fmt.Errorf("load appointment: %w", err)
	}

	var (
		patientID  uuid.UUID
		prevStatus BookingStatus
		prevNotes  string
		prevLabel  string
	)
	if curKind == KindAppointment {
		patientID = curAppt.PatientID
		prevStatus = curAppt.Status
		prevNotes = curAppt.Notes
		prevLabel = string(curAppt.Type)
	} else {
		patientID = curInv.PatientID
		prevStatus = curInv.Status
		prevNotes = curInv.Notes
		prevLabel = fmt.Sprintf("investigation (%s)", curInv.Investigation)
	}

	clinician, err := s.ResolveClinician(ctx, in.NewClinicianRef)
	if err != nil {
		return nil, err
	}

	newKind := KindForType(in.NewType)

	lockKey := redisclient.ScheduleKey(clinician.ID, in.NewDate)
	if newKind == KindInvestigation {
		lockKey = redisclient.InvestigationKey(in.NewDate)
	}

	var result *RescheduleResult

	err = s.locker.WithScheduleLock(ctx, lockKey, func(lockCtx context.Context) error {
		return s.repo.InTx(lockCtx, func(tx Repository) error {
			// Destination slot must be free; the booking being moved does
			// not collide with itself.
			if newKind == KindAppointment {
				existing, err := tx.GetActiveAppointmentAt(lockCtx, clinician.ID, in.NewDate, in.NewTime)
				if err != nil && !errors.Is(err, ErrBookingNotFound) {
					return fmt.Errorf("check appointment conflict: %w", err)
				}
				if existing != nil && !(curKind == KindAppointment && existing.ID == in.BookingID) {
					return ErrSlotTaken
				}
			} else {
				existing, err := tx.GetActiveInvestigationAt(lockCtx, in.NewDate, in.NewTime)
				if err != nil && !errors.Is(err, ErrBookingNotFound) {
					return fmt.Errorf("check investigation conflict: %w", err)
				}
				if existing != nil && !(curKind == KindInvestigation && existing.ID == in.BookingID) {
					return ErrSlotTaken
				}
			}

			var (
				newID   uuid.UUID
				tranErr error
			)
			if curKind == newKind {
				newID, tranErr = s.updateInPlace(lockCtx, tx, in, curAppt, curInv, clinician)
			} else {
				newID, tranErr = s.migrateBooking(lockCtx, tx, in, curKind, patientID, prevNotes, prevLabel, clinician)
			}
			if tranErr != nil {
				return tranErr
			}

			if err := tx.SetPatientAssignedClinician(lockCtx, patientID, clinician.FullName); err != nil {
				return fmt.Errorf("assign clinician: %w", err)
			}

			var body string
			switch {
			case curKind != newKind:
				body = fmt.Sprintf("Booking type changed from %s to %s; moved to %s %s with %s",
					prevLabel, in.NewType, in.NewDate, in.NewTime, clinician.FullName)
			case prevStatus == StatusNoShow:
				body = fmt.Sprintf("Rescheduled from no-show to %s %s with %s",
					in.NewDate, in.NewTime, clinician.FullName)
			default:
				body = fmt.Sprintf("Booking updated to %s %s with %s",
					in.NewDate, in.NewTime, clinician.FullName)
			}
			if in.Reason != "" {
				body += ". Reason: " + in.Reason
			}
			if err := tx.InsertTimelineNote(lockCtx, TimelineNote{
				ID:        uuid.New(),
				PatientID: patientID,
				AuthorID:  in.ActorID,
				Body:      body,
			}); err != nil {
				return fmt.Errorf("insert timeline note: %w", err)
			}

			result = &RescheduleResult{
				BookingID:     newID,
				Date:          in.NewDate,
				Time:          in.NewTime,
				ClinicianName: clinician.FullName,
				Type:          in.NewType,
			}
			return nil
		})
	})
	if err != nil {
		if errors.Is(err, redisclient.ErrLockNotAcquired) {
			return nil, ErrScheduleBusy
		}
		return nil, err
	}

	return result, nil
}

func (s *Service) updateInPlace(ctx context.Context, tx Repository, in RescheduleInput, curAppt *Appointment, curInv *InvestigationBooking, clinician *Clinician) (uuid.UUID, error) {
	if curAppt != nil {
		curAppt.Date = in.NewDate
		curAppt.Time = in.NewTime
		curAppt.Type = in.NewType
		curAppt.ClinicianID = clinician.ID
		curAppt.ClinicianName = clinician.FullName
		curAppt.Status = StatusScheduled
		if in.SurgeryType != nil {
			curAppt.SurgeryType = in.SurgeryType
		}
		curAppt.Notes = appendNotes(curAppt.Notes, in.Notes)
		if _, err := tx.UpdateAppointmentSchedule(ctx, curAppt); err != nil {
			return uuid.Nil, fmt.Errorf("update appointment: %w", err)
		}
		return curAppt.ID, nil
	}

	curInv.Date = &in.NewDate
	curInv.Time = &in.NewTime
	curInv.Status = StatusScheduled
	if in.Investigation != "" {
		curInv.Investigation = in.Investigation
	}
	curInv.Notes = appendNotes(curInv.Notes, in.Notes)
	if _, err := tx.UpdateInvestigationSchedule(ctx, curInv); err != nil {
		return uuid.Nil, fmt.Errorf("update investigation booking: %w", err)
	}
	return curInv.ID, nil
}

// migrateBooking moves a booking across tables: delete the origin row,
// insert the destination row. Runs inside the caller's transaction; a
// failure of either half rolls back both.
func (s *Service) migrateBooking(ctx context.Context, tx Repository, in RescheduleInput, curKind BookingKind, patientID uuid.UUID, prevNotes, prevLabel string, clinician *Clinician) (uuid.UUID, error) {
	notes := appendNotes(prevNotes, fmt.Sprintf("Rescheduled from %s booking", prevLabel))
	notes = appendNotes(notes, in.Notes)

	if curKind == KindAppointment {
		if err := tx.DeleteAppointment(ctx, in.BookingID); err != nil {
			return uuid.Nil, fmt.Errorf("delete origin appointment: %w", err)
		}
		investigation := in.Investigation
		if investigation == "" {
			investigation = "investigation"
		}
		created, err := tx.CreateInvestigationBooking(ctx, &InvestigationBooking{
			ID:            uuid.New(),
			PatientID:     patientID,
			Investigation: investigation,
			Date:          &in.NewDate,
			Time:          &in.NewTime,
			Status:        StatusScheduled,
			Notes:         notes,
		})
		if err != nil {
			return uuid.Nil, fmt.Errorf("create destination investigation booking: %w", err)
		}
		return created.ID, nil
	}

	if err := tx.DeleteInvestigation(ctx, in.BookingID); err != nil {
		return uuid.Nil, fmt.Errorf("delete origin investigation booking: %w", err)
	}
	created, err := tx.CreateAppointment(ctx, &Appointment{
		ID:            uuid.New(),
		PatientID:     patientID,
		Type:          in.NewType,
		Date:          in.NewDate,
		Time:          in.NewTime,
		ClinicianID:   clinician.ID,
		ClinicianName: clinician.FullName,
		SurgeryType:   in.SurgeryType,
		Notes:         notes,
		Status:        StatusScheduled,
	})
	if err != nil {
		return uuid.Nil, fmt.Errorf("create destination appointment: %w", err)
	}
	return created.ID, nil
}

type NoShowInput struct {
	BookingID uuid.UUID
	Kind      BookingKind
	Reason    string
	Notes     string
	ActorID   *uuid.UUID
}

type PatientSummary struct {
	ID                uuid.UUID
	FullName          string
	Status            PatientStatus
	AssignedClinician *string
}

type NoShowResult struct {
	Appointment   *Appointment
	Investigation *InvestigationBooking
	Patient       PatientSummary
}

// MarkNoShow records that the patient did not attend. The marker is appended
// to the existing notes rather than replacing them, so the booking history
// survives; the row itself persists and simply stops occupying its slot.
// Rescheduling is the only way back to scheduled.
func (s *Service) MarkNoShow(ctx context.Context, in NoShowInput) (*NoShowResult, error) {
	if in.Kind != KindAppointment && in.Kind != KindInvestigation {
		return nil, fmt.Errorf("%w: invalid booking kind %q", ErrValidation, in.Kind)
	}

	marker := fmt.Sprintf("Marked no-show on %s", s.now().Format(dateLayout))
	if in.Reason != "" {
		marker += ". Reason: " + in.Reason
	}
	if in.Notes != "" {
		marker += ". " + in.Notes
	}

	var result NoShowResult

	err := s.repo.InTx(ctx, func(tx Repository) error {
		var patientID uuid.UUID

		if in.Kind == KindAppointment {
			appt, err := tx.GetAppointmentByID(ctx, in.BookingID)
			if err != nil {
				return err
			}
			updated, err := tx.UpdateAppointmentStatusNotes(ctx, appt.ID, StatusNoShow, appendNotes(appt.Notes, marker))
			if err != nil {
				return fmt.Errorf("mark appointment no-show: %w", err)
			}
			result.Appointment = updated
			patientID = updated.PatientID
		} else {
			inv, err := tx.GetInvestigationByID(ctx, in.BookingID)
			if err != nil {
				return err
			}
			updated, err := tx.UpdateInvestigationStatusNotes(ctx, inv.ID, StatusNoShow, appendNotes(inv.Notes, marker))
			if err != nil {
				return fmt.Errorf("mark investigation no-show: %w", err)
			}
			result.Investigation = updated
			patientID = updated.PatientID
		}

		body := "Patient did not attend; booking marked as no-show"
		if in.Reason != "" {
			body += ". Reason: " + in.Reason
		}
		if err := tx.InsertTimelineNote(ctx, TimelineNote{
			ID:        uuid.New(),
			PatientID: patientID,
			AuthorID:  in.ActorID,
			Body:      body,
		}); err != nil {
			return fmt.Errorf("insert timeline note: %w", err)
		}

		patient, err := tx.GetPatientByID(ctx, patientID)
		if err != nil {
			return fmt.Errorf("load patient: %w", err)
		}
		result.Patient = PatientSummary{
			ID:                patient.ID,
			FullName:          patient.FullName,
			Status:            patient.Status,
			AssignedClinician: patient.AssignedClinician,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return &result, nil
}
