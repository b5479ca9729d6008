package scheduling

import (
	"context"
	"io"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/hfiles/clinic-api/internal/calendar"
	"github.com/hfiles/clinic-api/internal/model"
	"github.com/hfiles/clinic-api/internal/repository"
)

// In-memory repositories backing the orchestration tests. They mirror the
// uniqueness rules the Postgres schema enforces.

type passthroughTxManager struct{}

func (passthroughTxManager) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

type memPatientRepo struct {
	mu      sync.Mutex
	byID    map[uuid.UUID]*model.Patient
	byHFID  map[string]*model.Patient
	byPhone map[string]*model.Patient
	emails  map[string]bool
	subs    []*model.Subscription
}

func newMemPatientRepo() *memPatientRepo {
	return &memPatientRepo{
		byID:    make(map[uuid.UUID]*model.Patient),
		byHFID:  make(map[string]*model.Patient),
		byPhone: make(map[string]*model.Patient),
		emails:  make(map[string]bool),
	}
}

func (m *memPatientRepo) Create(_ context.Context, p *model.Patient) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.byHFID[p.HFID]; ok {
		return repository.ErrDuplicate
	}
	p.ID = uuid.New()
	m.byID[p.ID] = p
	m.byHFID[p.HFID] = p
	if p.Phone != "" {
		m.byPhone[p.Phone] = p
	}
	if p.Email != nil {
		m.emails[*p.Email] = true
	}
	return nil
}

func (m *memPatientRepo) Get(_ context.Context, id uuid.UUID) (*model.Patient, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.byID[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return p, nil
}

func (m *memPatientRepo) GetByHFID(_ context.Context, hfid string) (*model.Patient, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.byHFID[hfid]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return p, nil
}

func (m *memPatientRepo) FindByPhone(_ context.Context, phone string) (*model.Patient, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.byPhone[phone]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return p, nil
}

func (m *memPatientRepo) UpdateName(_ context.Context, id uuid.UUID, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.byID[id]
	if !ok {
		return repository.ErrNotFound
	}
	p.Name = name
	return nil
}

func (m *memPatientRepo) ExistsByPhone(_ context.Context, phone string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.byPhone[phone]
	return ok, nil
}

func (m *memPatientRepo) ExistsByEmail(_ context.Context, email string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.emails[email], nil
}

func (m *memPatientRepo) CreateSubscription(_ context.Context, sub *model.Subscription) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.subs = append(m.subs, sub)
	return nil
}

type memVisitKey struct {
	patientID uuid.UUID
	date      time.Time
	timeOfDay string
}

type memVisitRepo struct {
	mu     sync.Mutex
	visits map[memVisitKey]*model.Visit
}

func newMemVisitRepo() *memVisitRepo {
	return &memVisitRepo{visits: make(map[memVisitKey]*model.Visit)}
}

func (m *memVisitRepo) Create(_ context.Context, v *model.Visit) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	k := memVisitKey{patientID: v.PatientID, date: v.Date, timeOfDay: v.Time}
	if _, ok := m.visits[k]; ok {
		return repository.ErrDuplicate
	}
	v.ID = uuid.New()
	m.visits[k] = v
	return nil
}

func (m *memVisitRepo) Get(_ context.Context, id uuid.UUID) (*model.Visit, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, v := range m.visits {
		if v.ID == id {
			return v, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (m *memVisitRepo) Find(_ context.Context, patientID uuid.UUID, date time.Time, timeOfDay string) (*model.Visit, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.visits[memVisitKey{patientID: patientID, date: date, timeOfDay: timeOfDay}]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return v, nil
}

func (m *memVisitRepo) FindForClinic(_ context.Context, patientID uuid.UUID, clinicID int64, date time.Time, timeOfDay string) (*model.Visit, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.visits[memVisitKey{patientID: patientID, date: date, timeOfDay: timeOfDay}]
	if !ok || v.ClinicID != clinicID {
		return nil, repository.ErrNotFound
	}
	return v, nil
}

func (m *memVisitRepo) ExistsForClinic(_ context.Context, patientID uuid.UUID, clinicID int64) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, v := range m.visits {
		if v.PatientID == patientID && v.ClinicID == clinicID {
			return true, nil
		}
	}
	return false, nil
}

func (m *memVisitRepo) Delete(_ context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for k, v := range m.visits {
		if v.ID == id {
			delete(m.visits, k)
			return nil
		}
	}
	return repository.ErrNotFound
}

func (m *memVisitRepo) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.visits)
}

type memConsentRepo struct {
	mu        sync.Mutex
	templates map[int64][]*model.ConsentFormTemplate
	issuances map[uuid.UUID]*model.ConsentFormIssuance
	byVisit   map[uuid.UUID][]*model.ConsentFormIssuance
}

func newMemConsentRepo() *memConsentRepo {
	return &memConsentRepo{
		templates: make(map[int64][]*model.ConsentFormTemplate),
		issuances: make(map[uuid.UUID]*model.ConsentFormIssuance),
		byVisit:   make(map[uuid.UUID][]*model.ConsentFormIssuance),
	}
}

func (m *memConsentRepo) addTemplate(clinicID int64, title string) {
	m.templates[clinicID] = append(m.templates[clinicID], &model.ConsentFormTemplate{
		ID:       uuid.New(),
		ClinicID: clinicID,
		Title:    title,
	})
}

func (m *memConsentRepo) ListTemplates(_ context.Context, clinicID int64) ([]*model.ConsentFormTemplate, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.templates[clinicID], nil
}

func (m *memConsentRepo) CreateIssuance(_ context.Context, issuance *model.ConsentFormIssuance) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	issuance.ID = uuid.New()
	m.issuances[issuance.ID] = issuance
	m.byVisit[issuance.VisitID] = append(m.byVisit[issuance.VisitID], issuance)
	return nil
}

func (m *memConsentRepo) GetIssuance(_ context.Context, id uuid.UUID) (*model.ConsentFormIssuance, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	issuance, ok := m.issuances[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return issuance, nil
}

func (m *memConsentRepo) ListIssuancesByVisit(_ context.Context, visitID uuid.UUID) ([]*model.ConsentFormIssuance, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.byVisit[visitID], nil
}

func (m *memConsentRepo) SetDocumentURL(_ context.Context, id uuid.UUID, url string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	issuance, ok := m.issuances[id]
	if !ok {
		return repository.ErrNotFound
	}
	issuance.DocumentURL = &url
	return nil
}

func (m *memConsentRepo) MarkVerified(_ context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	issuance, ok := m.issuances[id]
	if !ok {
		return repository.ErrNotFound
	}
	issuance.Verified = true
	return nil
}

type memAppointmentRepo struct {
	mu   sync.Mutex
	byID map[uuid.UUID]*model.Appointment

	// getOverride, when set, is returned by Get instead of the stored
	// row, standing in for a snapshot read that has gone stale.
	getOverride *model.Appointment
}

func newMemAppointmentRepo() *memAppointmentRepo {
	return &memAppointmentRepo{byID: make(map[uuid.UUID]*model.Appointment)}
}

func (m *memAppointmentRepo) Create(_ context.Context, apt *model.Appointment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	apt.ID = uuid.New()
	m.byID[apt.ID] = apt
	return nil
}

func (m *memAppointmentRepo) Get(_ context.Context, id uuid.UUID) (*model.Appointment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getOverride != nil && m.getOverride.ID == id {
		return m.getOverride, nil
	}
	apt, ok := m.byID[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return apt, nil
}

func (m *memAppointmentRepo) UpdateStatus(_ context.Context, id uuid.UUID, from, to model.AppointmentStatus, treatment *string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	apt, ok := m.byID[id]
	if !ok || apt.Status != from {
		return repository.ErrNotFound
	}
	apt.Status = to
	if treatment != nil {
		apt.Treatment = treatment
	}
	return nil
}

func (m *memAppointmentRepo) SetCalendarEventID(_ context.Context, id uuid.UUID, eventID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	apt, ok := m.byID[id]
	if !ok {
		return repository.ErrNotFound
	}
	apt.CalendarEventID = &eventID
	return nil
}

func (m *memAppointmentRepo) Delete(_ context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.byID[id]; !ok {
		return repository.ErrNotFound
	}
	delete(m.byID, id)
	return nil
}

func (m *memAppointmentRepo) List(_ context.Context, clinicID int64, _ *model.AppointmentFilters) ([]*model.Appointment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*model.Appointment
	for _, apt := range m.byID {
		if apt.ClinicID == clinicID {
			out = append(out, apt)
		}
	}
	return out, nil
}

func (m *memAppointmentRepo) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.byID)
}

type memOutboxRepo struct {
	mu     sync.Mutex
	events []*model.OutboxEvent
}

func (m *memOutboxRepo) Create(_ context.Context, event *model.OutboxEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	event.ID = uuid.New()
	m.events = append(m.events, event)
	return nil
}

func (m *memOutboxRepo) GetPendingEventsWithLock(context.Context, int) ([]*model.OutboxEvent, error) {
	return nil, nil
}

func (m *memOutboxRepo) UpdateStatus(context.Context, uuid.UUID, model.OutboxStatus, *string) error {
	return nil
}

func (m *memOutboxRepo) MarkForRetry(context.Context, uuid.UUID, time.Time, *string) error {
	return nil
}

func (m *memOutboxRepo) MoveToDeadLetter(context.Context, *model.OutboxEvent) error {
	return nil
}

func (m *memOutboxRepo) DeleteProcessedBefore(context.Context, time.Time) (int64, error) {
	return 0, nil
}

func (m *memOutboxRepo) types() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, 0, len(m.events))
	for _, e := range m.events {
		out = append(out, e.EventType)
	}
	return out
}

// External collaborators.

type fakeCalendar struct {
	mu        sync.Mutex
	createErr error
	created   []*calendar.Event
	updated   []string
	canceled  []string
	deleted   []string
}

func (f *fakeCalendar) CreateEvent(_ context.Context, e *calendar.Event) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return "", f.createErr
	}
	f.created = append(f.created, e)
	return "evt-123", nil
}

func (f *fakeCalendar) UpdateEvent(_ context.Context, _ int64, eventID, _ string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.updated = append(f.updated, eventID)
	return nil
}

func (f *fakeCalendar) CancelEvent(_ context.Context, _ int64, eventID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.canceled = append(f.canceled, eventID)
	return nil
}

func (f *fakeCalendar) DeleteEvent(_ context.Context, _ int64, eventID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, eventID)
	return nil
}

type fakeEmail struct {
	mu      sync.Mutex
	sendErr error
	sent    []string
	bodies  []string
}

func (f *fakeEmail) Send(_ context.Context, to, _ string, htmlBody string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sendErr != nil {
		return f.sendErr
	}
	f.sent = append(f.sent, to)
	f.bodies = append(f.bodies, htmlBody)
	return nil
}

type nullDocStore struct{}

func (nullDocStore) Upload(_ context.Context, key, _ string, _ io.Reader) (string, error) {
	return "https://files.example.com/" + key, nil
}
