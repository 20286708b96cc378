package scheduling

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/medgrid/clinic-scheduling/internal/config"
	"github.com/medgrid/clinic-scheduling/internal/notify"
	redisclient "github.com/medgrid/clinic-scheduling/internal/redis"
)

var (
	ErrPatientExpired = errors.New("patient is expired")
	ErrSlotTaken      = errors.New("slot already booked")
	ErrScheduleBusy   = errors.New("schedule is currently being modified, please retry")
	ErrValidation     = errors.New("validation failed")
)

type Service struct {
	repo     Repository
	locker   redisclient.Locker
	notifier notify.Notifier
	cfg      config.Config
	log      zerolog.Logger
	now      func() time.Time
}

func NewService(repo Repository, locker redisclient.Locker, notifier notify.Notifier, cfg config.Config, log zerolog.Logger) *Service {
	return &Service{
		repo:     repo,
		locker:   locker,
		notifier: notifier,
		cfg:      cfg,
		log:      log,
		now:      time.Now,
	}
}

// WithClock replaces the time source. Tests supply a fixed instant.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

type CreateAppointmentInput struct {
	PatientID    uuid.UUID
	ClinicianRef uuid.UUID
	Date         string // YYYY-MM-DD
	Time         string // HH:MM
	Type         AppointmentType
	SurgeryType  *string
	Notes        string
	ActorID      *uuid.UUID
}

// CreateAppointment books a consultation or surgery slot. All writes (the
// appointment row, the patient re-assignment, the timeline note) commit in a
// single transaction, held under the clinician's daily schedule lock so the
// conflict check and the insert cannot interleave with a concurrent create.
func (s *Service) CreateAppointment(ctx context.Context, in CreateAppointmentInput) (*Appointment, error) {
	if _, err := time.Parse(dateLayout, in.Date); err != nil {
		return nil, fmt.Errorf("%w: invalid date %q", ErrValidation, in.Date)
	}
	if !ValidClock(in.Time) {
		return nil, fmt.Errorf("%w: invalid time %q", ErrValidation, in.Time)
	}
	if in.Type == "" || in.Type == TypeInvestigation {
		return nil, fmt.Errorf("%w: invalid appointment type %q", ErrValidation, in.Type)
	}
	if in.Type == TypeSurgery && (in.SurgeryType == nil || *in.SurgeryType == "") {
		return nil, fmt.Errorf("%w: surgery type is required for surgery bookings", ErrValidation)
	}

	patient, err := s.repo.GetPatientByID(ctx, in.PatientID)
	if err != nil {
		if errors.Is(err, ErrPatientNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("load patient: %w", err)
	}
	if patient.Status == PatientExpired {
		return nil, ErrPatientExpired
	}

	clinician, err := s.ResolveClinician(ctx, in.ClinicianRef)
	if err != nil {
		return nil, err
	}

	var created *Appointment

	lockKey := redisclient.ScheduleKey(clinician.ID, in.Date)
	err = s.locker.WithScheduleLock(ctx, lockKey, func(lockCtx context.Context) error {
		return s.repo.InTx(lockCtx, func(tx Repository) error {
			taken, err := hasConflict(lockCtx, tx, clinician.ID, in.Date, in.Time)
			if err != nil {
				return err
			}
			if taken {
				return ErrSlotTaken
			}

			appt := &Appointment{
				ID:            uuid.New(),
				PatientID:     patient.ID,
				Type:          in.Type,
				Date:          in.Date,
				Time:          in.Time,
				ClinicianID:   clinician.ID,
				ClinicianName: clinician.FullName,
				SurgeryType:   in.SurgeryType,
				Notes:         in.Notes,
				Status:        StatusScheduled,
			}
			created, err = tx.CreateAppointment(lockCtx, appt)
			if err != nil {
				return fmt.Errorf("create appointment: %w", err)
			}

			// Booking a consult always re-assigns the patient's clinician,
			// even if one is already set.
			if err := tx.SetPatientAssignedClinician(lockCtx, patient.ID, clinician.FullName); err != nil {
				return fmt.Errorf("assign clinician: %w", err)
			}

			body := fmt.Sprintf("%s appointment booked for %s %s with %s", in.Type, in.Date, in.Time, clinician.FullName)
			if err := tx.InsertTimelineNote(lockCtx, TimelineNote{
				ID:        uuid.New(),
				PatientID: patient.ID,
				AuthorID:  in.ActorID,
				Body:      body,
			}); err != nil {
				return fmt.Errorf("insert timeline note: %w", err)
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

	s.sendNotice(ctx, patient, notify.BookingDetails{
		PatientName:   patient.FullName,
		ClinicianName: clinician.FullName,
		Type:          string(created.Type),
		Date:          created.Date,
		Time:          created.Time,
		Kind:          "confirmation",
	})

	return created, nil
}

type CreateInvestigationInput struct {
	PatientID     uuid.UUID
	Investigation string
	Date          *string // nil for a request without a slot
	Time          *string
	Urgent        bool
	Notes         string
	OrderedByRef  *uuid.UUID
	ActorID       *uuid.UUID
}

// CreateInvestigationBooking books the shared investigation facility, or
// records an unscheduled request when no slot is supplied. Requested rows
// stay out of the availability grid and conflict checks until a slot is
// assigned via reschedule.
func (s *Service) CreateInvestigationBooking(ctx context.Context, in CreateInvestigationInput) (*InvestigationBooking, error) {
	if in.Investigation == "" {
		return nil, fmt.Errorf("%w: investigation name is required", ErrValidation)
	}

	patient, err := s.repo.GetPatientByID(ctx, in.PatientID)
	if err != nil {
		if errors.Is(err, ErrPatientNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("load patient: %w", err)
	}
	if patient.Status == PatientExpired {
		return nil, ErrPatientExpired
	}

	scheduled := in.Date != nil && in.Time != nil
	status := StatusScheduled
	if !scheduled {
		status = StatusRequested
		if in.Urgent {
			status = StatusRequestedUrgent
		}
	} else {
		if _, err := time.Parse(dateLayout, *in.Date); err != nil {
			return nil, fmt.Errorf("%w: invalid date %q", ErrValidation, *in.Date)
		}
		if !ValidClock(*in.Time) {
			return nil, fmt.Errorf("%w: invalid time %q", ErrValidation, *in.Time)
		}
	}

	booking := &InvestigationBooking{
		ID:            uuid.New(),
		PatientID:     patient.ID,
		Investigation: in.Investigation,
		Date:          in.Date,
		Time:          in.Time,
		Status:        status,
		Notes:         in.Notes,
	}

	commit := func(lockCtx context.Context) error {
		return s.repo.InTx(lockCtx, func(tx Repository) error {
			if scheduled {
				taken, err := hasInvestigationConflict(lockCtx, tx, *in.Date, *in.Time)
				if err != nil {
					return err
				}
				if taken {
					return ErrSlotTaken
				}
			}
			var err error
			booking, err = tx.CreateInvestigationBooking(lockCtx, booking)
			if err != nil {
				return fmt.Errorf("create investigation booking: %w", err)
			}

			body := fmt.Sprintf("Investigation %q requested", in.Investigation)
			if scheduled {
				body = fmt.Sprintf("Investigation %q booked for %s %s", in.Investigation, *in.Date, *in.Time)
			}
			return tx.InsertTimelineNote(lockCtx, TimelineNote{
				ID:        uuid.New(),
				PatientID: patient.ID,
				AuthorID:  in.ActorID,
				Body:      body,
			})
		})
	}

	if scheduled {
		err = s.locker.WithScheduleLock(ctx, redisclient.InvestigationKey(*in.Date), commit)
	} else {
		err = commit(ctx)
	}
	if err != nil {
		if errors.Is(err, redisclient.ErrLockNotAcquired) {
			return nil, ErrScheduleBusy
		}
		return nil, err
	}

	// First-come precedence: an investigation booking assigns the ordering
	// clinician only when the patient has nobody assigned yet. Non-fatal;
	// the booking stands even if this write fails.
	if (patient.AssignedClinician == nil || *patient.AssignedClinician == "") && in.OrderedByRef != nil {
		if clinician, rerr := s.ResolveClinician(ctx, *in.OrderedByRef); rerr == nil {
			if aerr := s.repo.SetPatientAssignedClinician(ctx, patient.ID, clinician.FullName); aerr != nil {
				s.log.Warn().Err(aerr).Stringer("patient_id", patient.ID).Msg("first-booking clinician assignment failed")
			}
		}
	}

	if scheduled {
		s.sendNotice(ctx, patient, notify.BookingDetails{
			PatientName:   patient.FullName,
			ClinicianName: "",
			Type:          in.Investigation,
			Date:          *in.Date,
			Time:          *in.Time,
			Kind:          "confirmation",
		})
	}

	return booking, nil
}

// SendDueReminders dispatches a reminder for every active appointment one
// reminder-lead ahead that has not been reminded yet. Called periodically by
// the reminder worker; per-row failures are logged and skipped.
func (s *Service) SendDueReminders(ctx context.Context) error {
	date := s.now().Add(s.cfg.ReminderLead).Format(dateLayout)

	due, err := s.repo.FindReminderDue(ctx, date)
	if err != nil {
		return fmt.Errorf("find reminder-due appointments: %w", err)
	}

	for _, appt := range due {
		patient, err := s.repo.GetPatientByID(ctx, appt.PatientID)
		if err != nil {
			s.log.Warn().Err(err).Stringer("appointment_id", appt.ID).Msg("reminder: load patient failed")
			continue
		}
		if patient.Email != nil {
			err := s.notifier.SendBookingNotice(ctx, *patient.Email, notify.BookingDetails{
				PatientName:   patient.FullName,
				ClinicianName: appt.ClinicianName,
				Type:          string(appt.Type),
				Date:          appt.Date,
				Time:          appt.Time,
				Kind:          "reminder",
			})
			if err != nil {
				s.log.Warn().Err(err).Stringer("appointment_id", appt.ID).Msg("reminder: notify failed")
				continue
			}
		}
		if err := s.repo.MarkReminderSent(ctx, appt.ID); err != nil {
			s.log.Warn().Err(err).Stringer("appointment_id", appt.ID).Msg("reminder: mark sent failed")
		}
	}
	return nil
}

// sendNotice is fire-and-forget: delivery failure is logged, never surfaced.
func (s *Service) sendNotice(ctx context.Context, patient *Patient, details notify.BookingDetails) {
	if patient.Email == nil || *patient.Email == "" {
		return
	}
	if err := s.notifier.SendBookingNotice(ctx, *patient.Email, details); err != nil {
		s.log.Warn().Err(err).Stringer("patient_id", patient.ID).Msg("booking notice failed")
	}
}

func appendNotes(existing, added string) string {
	if existing == "" {
		return added
	}
	if added == "" {
		return existing
	}
	return existing + "\n" + added
}
