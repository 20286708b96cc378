package scheduling

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/medgrid/clinic-scheduling/internal/notify"
)

func slotsByTime(slots []SlotStatus) map[string]bool {
	out := make(map[string]bool, len(slots))
	for _, s := range slots {
		out[s.Time] = s.Available
	}
	return out
}

func TestAvailableSlots(t *testing.T) {
	ctx := context.Background()

	t.Run("empty day yields the full 17-slot grid", func(t *testing.T) {
		repo := newFakeRepo()
		svc, _ := newTestService(repo)

		slots, err := svc.AvailableSlots(ctx, uuid.New(), "2025-03-10", nil)
		require.NoError(t, err)
		require.Len(t, slots, 17)
		assert.Equal(t, "09:00", slots[0].Time)
		assert.Equal(t, "17:00", slots[16].Time)
		for _, s := range slots {
			assert.True(t, s.Available, "slot %s", s.Time)
		}
	})

	t.Run("idempotent without intervening writes", func(t *testing.T) {
		repo := newFakeRepo()
		svc, _ := newTestService(repo)
		clinician := addClinician(repo, "dr@x.com")

		date := "2025-03-10"
		clock := "10:30"
		repo.appointments[uuid.New()] = &Appointment{
			ID: uuid.New(), PatientID: uuid.New(), Type: TypeUrologist,
			Date: date, Time: clock, ClinicianID: clinician.ID, Status: StatusScheduled,
		}

		first, err := svc.AvailableSlots(ctx, clinician.ID, date, nil)
		require.NoError(t, err)
		second, err := svc.AvailableSlots(ctx, clinician.ID, date, nil)
		require.NoError(t, err)
		assert.Equal(t, first, second)
	})

	t.Run("point booking blocks exactly one slot", func(t *testing.T) {
		repo := newFakeRepo()
		svc, _ := newTestService(repo)
		clinician := addClinician(repo, "dr@x.com")

		appt := &Appointment{
			ID: uuid.New(), PatientID: uuid.New(), Type: TypeUrologist,
			Date: "2025-03-10", Time: "10:30", ClinicianID: clinician.ID, Status: StatusScheduled,
		}
		repo.appointments[appt.ID] = appt

		slots, err := svc.AvailableSlots(ctx, clinician.ID, "2025-03-10", nil)
		require.NoError(t, err)
		byTime := slotsByTime(slots)
		assert.False(t, byTime["10:30"])

		free := 0
		for _, available := range byTime {
			if available {
				free++
			}
		}
		assert.Equal(t, 16, free)
	})

	t.Run("surgery range blocks every slot inside it", func(t *testing.T) {
		repo := newFakeRepo()
		svc, _ := newTestService(repo)
		clinician := addClinician(repo, "dr@x.com")

		sub := "TURP"
		appt := &Appointment{
			ID: uuid.New(), PatientID: uuid.New(), Type: TypeSurgery,
			Date: "2025-03-10", Time: "10:00", ClinicianID: clinician.ID,
			SurgeryType: &sub,
			Notes:       "pre-op done. " + FormatSurgeryRange("10:00", "11:30"),
			Status:      StatusScheduled,
		}
		repo.appointments[appt.ID] = appt

		slots, err := svc.AvailableSlots(ctx, clinician.ID, "2025-03-10", nil)
		require.NoError(t, err)
		byTime := slotsByTime(slots)
		for _, blocked := range []string{"10:00", "10:30", "11:00", "11:30"} {
			assert.False(t, byTime[blocked], "slot %s should be blocked by the range", blocked)
		}
		assert.True(t, byTime["09:30"])
		assert.True(t, byTime["12:00"])
	})

	t.Run("surgery without a parseable range blocks its start only", func(t *testing.T) {
		repo := newFakeRepo()
		svc, _ := newTestService(repo)
		clinician := addClinician(repo, "dr@x.com")

		sub := "TURP"
		appt := &Appointment{
			ID: uuid.New(), PatientID: uuid.New(), Type: TypeSurgery,
			Date: "2025-03-10", Time: "10:00", ClinicianID: clinician.ID,
			SurgeryType: &sub, Notes: "range to be confirmed",
			Status: StatusScheduled,
		}
		repo.appointments[appt.ID] = appt

		slots, err := svc.AvailableSlots(ctx, clinician.ID, "2025-03-10", nil)
		require.NoError(t, err)
		byTime := slotsByTime(slots)
		assert.False(t, byTime["10:00"])
		assert.True(t, byTime["10:30"])
	})

	t.Run("investigation blocks the slot for every clinician", func(t *testing.T) {
		repo := newFakeRepo()
		svc, _ := newTestService(repo)

		date, clock := "2025-03-10", "14:00"
		repo.investigations[uuid.New()] = &InvestigationBooking{
			ID: uuid.New(), PatientID: uuid.New(), Investigation: "Urodynamics",
			Date: &date, Time: &clock, Status: StatusScheduled,
		}

		// A clinician with no bookings of their own still loses the slot.
		slots, err := svc.AvailableSlots(ctx, uuid.New(), date, nil)
		require.NoError(t, err)
		assert.False(t, slotsByTime(slots)["14:00"])
	})

	t.Run("automatic and inactive bookings do not block", func(t *testing.T) {
		repo := newFakeRepo()
		svc, _ := newTestService(repo)
		clinician := addClinician(repo, "dr@x.com")

		repo.appointments[uuid.New()] = &Appointment{
			ID: uuid.New(), PatientID: uuid.New(), Type: TypeAutomatic,
			Date: "2025-03-10", Time: "09:00", ClinicianID: clinician.ID, Status: StatusScheduled,
		}
		repo.appointments[uuid.New()] = &Appointment{
			ID: uuid.New(), PatientID: uuid.New(), Type: TypeUrologist,
			Date: "2025-03-10", Time: "09:30", ClinicianID: clinician.ID, Status: StatusCancelled,
		}
		repo.appointments[uuid.New()] = &Appointment{
			ID: uuid.New(), PatientID: uuid.New(), Type: TypeUrologist,
			Date: "2025-03-10", Time: "10:00", ClinicianID: clinician.ID, Status: StatusNoShow,
		}

		slots, err := svc.AvailableSlots(ctx, clinician.ID, "2025-03-10", nil)
		require.NoError(t, err)
		byTime := slotsByTime(slots)
		assert.True(t, byTime["09:00"])
		assert.True(t, byTime["09:30"])
		assert.True(t, byTime["10:00"])
	})

	t.Run("same-day past slots are unavailable, current slot inclusive", func(t *testing.T) {
		repo := newFakeRepo()
		svc, _ := newTestService(repo)

		// fixedNow is 08:00 UTC; +150 minutes puts the caller at 10:30.
		offset := 150
		slots, err := svc.AvailableSlots(ctx, uuid.New(), "2025-03-01", &offset)
		require.NoError(t, err)
		byTime := slotsByTime(slots)
		assert.False(t, byTime["09:00"])
		assert.False(t, byTime["10:00"])
		assert.False(t, byTime["10:30"], "the current slot counts as passed")
		assert.True(t, byTime["11:00"])
	})

	t.Run("cutoff does not apply to other dates", func(t *testing.T) {
		repo := newFakeRepo()
		svc, _ := newTestService(repo)

		offset := 150
		slots, err := svc.AvailableSlots(ctx, uuid.New(), "2025-03-02", &offset)
		require.NoError(t, err)
		for _, s := range slots {
			assert.True(t, s.Available, "slot %s", s.Time)
		}
	})

	t.Run("rejects a malformed date", func(t *testing.T) {
		repo := newFakeRepo()
		svc, _ := newTestService(repo)

		_, err := svc.AvailableSlots(ctx, uuid.New(), "10-03-2025", nil)
		assert.Error(t, err)
	})
}

// Booking a surgery only checks its nominal start slot; availability is where
// the embedded range surfaces. A follow-up consult landing inside the range
// is therefore rejected by the grid, not by the create-time check.
func TestSurgeryRangeVisibleOnlyThroughAvailability(t *testing.T) {
	ctx := context.Background()
	repo := newFakeRepo()
	svc, _ := newTestService(repo)
	patient := addPatient(repo, PatientActive)
	clinician := addClinician(repo, "dr@x.com")

	sub := "TURP"
	_, err := svc.CreateAppointment(ctx, CreateAppointmentInput{
		PatientID:    patient.ID,
		ClinicianRef: clinician.ID,
		Date:         "2025-03-10",
		Time:         "10:00",
		Type:         TypeSurgery,
		SurgeryType:  &sub,
		Notes:        FormatSurgeryRange("10:00", "11:30"),
	})
	require.NoError(t, err)

	slots, err := svc.AvailableSlots(ctx, clinician.ID, "2025-03-10", nil)
	require.NoError(t, err)
	assert.False(t, slotsByTime(slots)["11:00"])

	// The point check does not know about the range.
	taken, err := hasConflict(ctx, repo, clinician.ID, "2025-03-10", "11:00")
	require.NoError(t, err)
	assert.False(t, taken)
}

func TestSendNoticeSkipsPatientsWithoutEmail(t *testing.T) {
	ctx := context.Background()
	repo := newFakeRepo()
	svc, notifier := newTestService(repo)
	patient := &Patient{ID: uuid.New(), FullName: "No Email", Status: PatientActive}
	repo.patients[patient.ID] = patient
	clinician := addClinician(repo, "dr@x.com")

	_, err := svc.CreateAppointment(ctx, CreateAppointmentInput{
		PatientID:    patient.ID,
		ClinicianRef: clinician.ID,
		Date:         "2025-03-10",
		Time:         "10:00",
		Type:         TypeUrologist,
	})
	require.NoError(t, err)
	assert.Empty(t, notifier.sent)
}

func TestNotifierFailureDoesNotFailTheBooking(t *testing.T) {
	ctx := context.Background()
	repo := newFakeRepo()
	svc, notifier := newTestService(repo)
	notifier.fail = true
	patient := addPatient(repo, PatientActive)
	clinician := addClinician(repo, "dr@x.com")

	appt, err := svc.CreateAppointment(ctx, CreateAppointmentInput{
		PatientID:    patient.ID,
		ClinicianRef: clinician.ID,
		Date:         "2025-03-10",
		Time:         "10:00",
		Type:         TypeUrologist,
	})
	require.NoError(t, err)
	assert.NotNil(t, appt)
	assert.Len(t, repo.appointments, 1)
}

var _ notify.Notifier = (*recordingNotifier)(nil)
