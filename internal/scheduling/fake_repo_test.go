package scheduling

import (
	"context"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/medgrid/clinic-scheduling/internal/notify"
)

// fakeRepo is an in-memory Repository with the same filter semantics as the
// Postgres implementation. InTx snapshots all state and restores it when fn
// fails, so rollback behaviour is observable in tests.
type fakeRepo struct {
	mu             sync.Mutex
	patients       map[uuid.UUID]*Patient
	clinicians     map[uuid.UUID]*Clinician
	accounts       map[uuid.UUID]*StaffAccount
	appointments   map[uuid.UUID]*Appointment
	investigations map[uuid.UUID]*InvestigationBooking
	notes          []TimelineNote

	failOn string // method name that returns errForced when hit
}

var errForced = &forcedError{}

type forcedError struct{}

func (*forcedError) Error() string { return "forced failure" }

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		patients:       make(map[uuid.UUID]*Patient),
		clinicians:     make(map[uuid.UUID]*Clinician),
		accounts:       make(map[uuid.UUID]*StaffAccount),
		appointments:   make(map[uuid.UUID]*Appointment),
		investigations: make(map[uuid.UUID]*InvestigationBooking),
	}
}

func (f *fakeRepo) forced(method string) bool {
	return f.failOn == method
}

func (f *fakeRepo) InTx(ctx context.Context, fn func(Repository) error) error {
	f.mu.Lock()
	snapPatients := cloneMap(f.patients)
	snapAppointments := cloneMap(f.appointments)
	snapInvestigations := cloneMap(f.investigations)
	snapNotes := append([]TimelineNote(nil), f.notes...)
	f.mu.Unlock()

	if err := fn(f); err != nil {
		f.mu.Lock()
		f.patients = snapPatients
		f.appointments = snapAppointments
		f.investigations = snapInvestigations
		f.notes = snapNotes
		f.mu.Unlock()
		return err
	}
	return nil
}

func cloneMap[V any](m map[uuid.UUID]*V) map[uuid.UUID]*V {
	out := make(map[uuid.UUID]*V, len(m))
	for k, v := range m {
		c := *v
		out[k] = &c
	}
	return out
}

func (f *fakeRepo) GetPatientByID(_ context.Context, id uuid.UUID) (*Patient, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.patients[id]
	if !ok {
		return nil, ErrPatientNotFound
	}
	c := *p
	return &c, nil
}

func (f *fakeRepo) SetPatientAssignedClinician(_ context.Context, id uuid.UUID, name string) error {
	if f.forced("SetPatientAssignedClinician") {
		return errForced
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.patients[id]
	if !ok {
		return ErrPatientNotFound
	}
	p.AssignedClinician = &name
	return nil
}

func (f *fakeRepo) GetClinicianByID(_ context.Context, id uuid.UUID) (*Clinician, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.clinicians[id]
	if !ok || !c.Active {
		return nil, ErrClinicianNotFound
	}
	cc := *c
	return &cc, nil
}

func (f *fakeRepo) GetClinicianByEmail(_ context.Context, email string) (*Clinician, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, c := range f.clinicians {
		if c.Active && strings.EqualFold(c.Email, email) {
			cc := *c
			return &cc, nil
		}
	}
	return nil, ErrClinicianNotFound
}

func (f *fakeRepo) GetStaffAccountByID(_ context.Context, id uuid.UUID) (*StaffAccount, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.accounts[id]
	if !ok || !a.Active || !clinicianRole(a.Role) {
		return nil, ErrClinicianNotFound
	}
	ac := *a
	return &ac, nil
}

func clinicianRole(role string) bool {
	for _, r := range ClinicianRoles {
		if r == role {
			return true
		}
	}
	return false
}

func (f *fakeRepo) ListActiveClinicians(_ context.Context) ([]Clinician, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []Clinician
	for _, c := range f.clinicians {
		if c.Active {
			out = append(out, *c)
		}
	}
	return out, nil
}

func (f *fakeRepo) ListClinicianStaffAccounts(_ context.Context) ([]StaffAccount, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []StaffAccount
	for _, a := range f.accounts {
		if a.Active && clinicianRole(a.Role) {
			out = append(out, *a)
		}
	}
	return out, nil
}

func (f *fakeRepo) ListAppointmentsForClinicianDay(_ context.Context, clinicianID uuid.UUID, date string) ([]Appointment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []Appointment
	for _, a := range f.appointments {
		if a.ClinicianID == clinicianID && a.Date == date && activeStatus(a.Status) && a.Type != TypeAutomatic {
			out = append(out, *a)
		}
	}
	return out, nil
}

func (f *fakeRepo) ListInvestigationsForDay(_ context.Context, date string) ([]InvestigationBooking, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []InvestigationBooking
	for _, b := range f.investigations {
		if b.Date != nil && *b.Date == date && activeStatus(b.Status) {
			out = append(out, *b)
		}
	}
	return out, nil
}

func (f *fakeRepo) GetActiveAppointmentAt(_ context.Context, clinicianID uuid.UUID, date, clock string) (*Appointment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, a := range f.appointments {
		if a.ClinicianID == clinicianID && a.Date == date && a.Time == clock && activeStatus(a.Status) && a.Type != TypeAutomatic {
			c := *a
			return &c, nil
		}
	}
	return nil, ErrBookingNotFound
}

func (f *fakeRepo) GetActiveInvestigationAt(_ context.Context, date, clock string) (*InvestigationBooking, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, b := range f.investigations {
		if b.Date != nil && *b.Date == date && b.Time != nil && *b.Time == clock && activeStatus(b.Status) {
			c := *b
			return &c, nil
		}
	}
	return nil, ErrBookingNotFound
}

func (f *fakeRepo) CreateAppointment(_ context.Context, a *Appointment) (*Appointment, error) {
	if f.forced("CreateAppointment") {
		return nil, errForced
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	// Mirrors the partial unique index.
	if activeStatus(a.Status) && a.Type != TypeAutomatic {
		for _, existing := range f.appointments {
			if existing.ClinicianID == a.ClinicianID && existing.Date == a.Date && existing.Time == a.Time &&
				activeStatus(existing.Status) && existing.Type != TypeAutomatic {
				return nil, ErrSlotTaken
			}
		}
	}
	c := *a
	f.appointments[a.ID] = &c
	cc := c
	return &cc, nil
}

func (f *fakeRepo) CreateInvestigationBooking(_ context.Context, b *InvestigationBooking) (*InvestigationBooking, error) {
	if f.forced("CreateInvestigationBooking") {
		return nil, errForced
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if activeStatus(b.Status) && b.Date != nil && b.Time != nil {
		for _, existing := range f.investigations {
			if existing.Date != nil && *existing.Date == *b.Date && existing.Time != nil && *existing.Time == *b.Time &&
				activeStatus(existing.Status) {
				return nil, ErrSlotTaken
			}
		}
	}
	c := *b
	f.investigations[b.ID] = &c
	cc := c
	return &cc, nil
}

func (f *fakeRepo) GetAppointmentByID(_ context.Context, id uuid.UUID) (*Appointment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.appointments[id]
	if !ok {
		return nil, ErrBookingNotFound
	}
	c := *a
	return &c, nil
}

func (f *fakeRepo) GetInvestigationByID(_ context.Context, id uuid.UUID) (*InvestigationBooking, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	b, ok := f.investigations[id]
	if !ok {
		return nil, ErrBookingNotFound
	}
	c := *b
	return &c, nil
}

func (f *fakeRepo) UpdateAppointmentSchedule(_ context.Context, a *Appointment) (*Appointment, error) {
	if f.forced("UpdateAppointmentSchedule") {
		return nil, errForced
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.appointments[a.ID]; !ok {
		return nil, ErrBookingNotFound
	}
	c := *a
	f.appointments[a.ID] = &c
	cc := c
	return &cc, nil
}

func (f *fakeRepo) UpdateInvestigationSchedule(_ context.Context, b *InvestigationBooking) (*InvestigationBooking, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.investigations[b.ID]; !ok {
		return nil, ErrBookingNotFound
	}
	c := *b
	f.investigations[b.ID] = &c
	cc := c
	return &cc, nil
}

func (f *fakeRepo) UpdateAppointmentStatusNotes(_ context.Context, id uuid.UUID, status BookingStatus, notes string) (*Appointment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.appointments[id]
	if !ok {
		return nil, ErrBookingNotFound
	}
	a.Status = status
	a.Notes = notes
	c := *a
	return &c, nil
}

func (f *fakeRepo) UpdateInvestigationStatusNotes(_ context.Context, id uuid.UUID, status BookingStatus, notes string) (*InvestigationBooking, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	b, ok := f.investigations[id]
	if !ok {
		return nil, ErrBookingNotFound
	}
	b.Status = status
	b.Notes = notes
	c := *b
	return &c, nil
}

func (f *fakeRepo) DeleteAppointment(_ context.Context, id uuid.UUID) error {
	if f.forced("DeleteAppointment") {
		return errForced
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.appointments[id]; !ok {
		return ErrBookingNotFound
	}
	delete(f.appointments, id)
	return nil
}

func (f *fakeRepo) DeleteInvestigation(_ context.Context, id uuid.UUID) error {
	if f.forced("DeleteInvestigation") {
		return errForced
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.investigations[id]; !ok {
		return ErrBookingNotFound
	}
	delete(f.investigations, id)
	return nil
}

func (f *fakeRepo) InsertTimelineNote(_ context.Context, note TimelineNote) error {
	if f.forced("InsertTimelineNote") {
		return errForced
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.notes = append(f.notes, note)
	return nil
}

func (f *fakeRepo) FindReminderDue(_ context.Context, date string) ([]Appointment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []Appointment
	for _, a := range f.appointments {
		if a.Date == date && activeStatus(a.Status) && !a.ReminderSent {
			out = append(out, *a)
		}
	}
	return out, nil
}

func (f *fakeRepo) MarkReminderSent(_ context.Context, id uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.appointments[id]
	if !ok {
		return ErrBookingNotFound
	}
	a.ReminderSent = true
	return nil
}

// noopLocker runs the critical section without any distributed lock.
type noopLocker struct{}

func (noopLocker) WithScheduleLock(ctx context.Context, _ string, fn func(context.Context) error) error {
	return fn(ctx)
}

// recordingNotifier captures notices instead of delivering them.
type recordingNotifier struct {
	mu    sync.Mutex
	sent  []string
	fail  bool
	kinds []string
}

func (n *recordingNotifier) SendBookingNotice(_ context.Context, email string, details notify.BookingDetails) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.fail {
		return errForced
	}
	n.sent = append(n.sent, email)
	n.kinds = append(n.kinds, details.Kind)
	return nil
}
