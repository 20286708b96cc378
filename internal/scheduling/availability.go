package scheduling

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

const dateLayout = "2006-01-02"

// AvailableSlots computes the clinician's daily grid. A slot is available iff
// it is not blocked by an active booking and, on the caller's current day,
// has not already passed. Investigation bookings block the grid for every
// clinician: the practice runs one shared investigation facility. Surgery
// appointments block every slot inside their embedded time range, not just
// their nominal start. The result is a pure function of stored state and the
// injected clock, so repeated calls without intervening writes are identical.
func (s *Service) AvailableSlots(ctx context.Context, clinicianID uuid.UUID, date string, tzOffsetMinutes *int) ([]SlotStatus, error) {
	if _, err := time.Parse(dateLayout, date); err != nil {
		return nil, fmt.Errorf("invalid date %q: %w", date, err)
	}

	investigations, err := s.repo.ListInvestigationsForDay(ctx, date)
	if err != nil {
		return nil, fmt.Errorf("list investigations for day: %w", err)
	}
	appointments, err := s.repo.ListAppointmentsForClinicianDay(ctx, clinicianID, date)
	if err != nil {
		return nil, fmt.Errorf("list appointments for day: %w", err)
	}

	blocked := make(map[int]bool)

	for _, b := range investigations {
		if !activeStatus(b.Status) || b.Time == nil {
			continue
		}
		if m, err := clockToMinutes(*b.Time); err == nil {
			blocked[m] = true
		}
	}

	for _, a := range appointments {
		if !activeStatus(a.Status) || a.Type == TypeAutomatic {
			continue
		}
		if a.Type == TypeSurgery {
			if start, end, ok := parseSurgeryRange(a.Notes); ok {
				for m := gridStartMinutes; m <= gridEndMinutes; m += gridStepMinutes {
					if m >= start && m <= end {
						blocked[m] = true
					}
				}
				continue
			}
			// No parseable range: falls through to point blocking.
		}
		if m, err := clockToMinutes(a.Time); err == nil {
			blocked[m] = true
		}
	}

	// Past-slot cutoff applies only when the requested date is the caller's
	// today. The current slot counts as already passed.
	cutoff := -1
	callerNow := s.callerNow(tzOffsetMinutes)
	if callerNow.Format(dateLayout) == date {
		cutoff = callerNow.Hour()*60 + callerNow.Minute()
	}

	slots := make([]SlotStatus, 0, (gridEndMinutes-gridStartMinutes)/gridStepMinutes+1)
	for m := gridStartMinutes; m <= gridEndMinutes; m += gridStepMinutes {
		available := !blocked[m] && !(cutoff >= 0 && m <= cutoff)
		slots = append(slots, SlotStatus{Time: minutesToClock(m), Available: available})
	}
	return slots, nil
}

// callerNow translates the engine clock into the caller's wall time. The
// offset is minutes east of UTC as supplied by the client; with no offset the
// server's local time applies.
func (s *Service) callerNow(tzOffsetMinutes *int) time.Time {
	now := s.now()
	if tzOffsetMinutes == nil {
		return now
	}
	return now.UTC().Add(time.Duration(*tzOffsetMinutes) * time.Minute)
}

// hasConflict is the create-time point check: an active appointment for the
// same clinician, date and exact time. It deliberately ignores surgery range
// expansion; range blocking is surfaced only through AvailableSlots. Surgery
// bookings carry their own range in notes and are not re-validated against
// intermediate slots here.
func hasConflict(ctx context.Context, repo Repository, clinicianID uuid.UUID, date, clock string) (bool, error) {
	existing, err := repo.GetActiveAppointmentAt(ctx, clinicianID, date, clock)
	if err != nil {
		if errors.Is(err, ErrBookingNotFound) {
			return false, nil
		}
		return false, fmt.Errorf("check appointment conflict: %w", err)
	}
	return existing != nil, nil
}

// hasInvestigationConflict guards the shared investigation facility: one
// active investigation booking per date/time across the whole practice.
func hasInvestigationConflict(ctx context.Context, repo Repository, date, clock string) (bool, error) {
	existing, err := repo.GetActiveInvestigationAt(ctx, date, clock)
	if err != nil {
		if errors.Is(err, ErrBookingNotFound) {
			return false, nil
		}
		return false, fmt.Errorf("check investigation conflict: %w", err)
	}
	return existing != nil, nil
}
