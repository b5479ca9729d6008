package appointment

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hfiles/clinic-api/internal/model"
	"github.com/hfiles/clinic-api/internal/repository"
	apperrors "github.com/hfiles/clinic-api/pkg/errors"
)

type fakeAppointmentRepo struct {
	byID map[uuid.UUID]*model.Appointment

	updateCalls int
}

func newFakeAppointmentRepo() *fakeAppointmentRepo {
	return &fakeAppointmentRepo{byID: make(map[uuid.UUID]*model.Appointment)}
}

func (f *fakeAppointmentRepo) Create(_ context.Context, apt *model.Appointment) error {
	apt.ID = uuid.New()
	f.byID[apt.ID] = apt
	return nil
}

func (f *fakeAppointmentRepo) Get(_ context.Context, id uuid.UUID) (*model.Appointment, error) {
	apt, ok := f.byID[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return apt, nil
}

func (f *fakeAppointmentRepo) UpdateStatus(_ context.Context, id uuid.UUID, from, to model.AppointmentStatus, treatment *string) error {
	apt, ok := f.byID[id]
	if !ok || apt.Status != from {
		return repository.ErrNotFound
	}
	f.updateCalls++
	apt.Status = to
	if treatment != nil {
		apt.Treatment = treatment
	}
	return nil
}

func (f *fakeAppointmentRepo) SetCalendarEventID(_ context.Context, id uuid.UUID, eventID string) error {
	apt, ok := f.byID[id]
	if !ok {
		return repository.ErrNotFound
	}
	apt.CalendarEventID = &eventID
	return nil
}

func (f *fakeAppointmentRepo) Delete(_ context.Context, id uuid.UUID) error {
	if _, ok := f.byID[id]; !ok {
		return repository.ErrNotFound
	}
	delete(f.byID, id)
	return nil
}

func (f *fakeAppointmentRepo) List(_ context.Context, clinicID int64, _ *model.AppointmentFilters) ([]*model.Appointment, error) {
	var out []*model.Appointment
	for _, apt := range f.byID {
		if apt.ClinicID == clinicID {
			out = append(out, apt)
		}
	}
	return out, nil
}

// noon on 1 July 2025, local time
func fixedNow() time.Time {
	return time.Date(2025, time.July, 1, 12, 0, 0, 0, time.Local)
}

func newTestService(repo *fakeAppointmentRepo, now time.Time) *Service {
	svc := NewService(repo)
	svc.now = func() time.Time { return now }
	return svc
}

func scheduledAt(date time.Time, clock string) *model.Appointment {
	return &model.Appointment{
		Base:     model.Base{ID: uuid.New()},
		ClinicID: 5,
		Date:     time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, time.Local),
		Time:     clock,
		Status:   model.AppointmentStatusScheduled,
	}
}

func TestCancelFutureAppointment(t *testing.T) {
	repo := newFakeAppointmentRepo()
	svc := newTestService(repo, fixedNow())
	apt := scheduledAt(fixedNow(), "13:00")
	require.NoError(t, repo.Create(context.Background(), apt))

	err := svc.Transition(context.Background(), apt, model.AppointmentStatusCanceled, "")
	require.NoError(t, err)
	assert.Equal(t, model.AppointmentStatusCanceled, apt.Status)
}

func TestCancelPastAppointmentRejected(t *testing.T) {
	svc := newTestService(newFakeAppointmentRepo(), fixedNow())
	apt := scheduledAt(fixedNow().AddDate(0, 0, -1), "13:00")

	err := svc.CheckTransition(apt, model.AppointmentStatusCanceled)
	assert.ErrorIs(t, err, ErrTooLateToCancel)
}

func TestCancelAtExactStartRejected(t *testing.T) {
	svc := newTestService(newFakeAppointmentRepo(), fixedNow())
	apt := scheduledAt(fixedNow(), "12:00")

	err := svc.CheckTransition(apt, model.AppointmentStatusCanceled)
	assert.ErrorIs(t, err, ErrTooLateToCancel)
}

func TestCompleteWithinWindow(t *testing.T) {
	repo := newFakeAppointmentRepo()
	svc := newTestService(repo, fixedNow())
	apt := scheduledAt(fixedNow(), "10:30")
	require.NoError(t, repo.Create(context.Background(), apt))

	err := svc.Transition(context.Background(), apt, model.AppointmentStatusCompleted, "scaling")
	require.NoError(t, err)
	assert.Equal(t, model.AppointmentStatusCompleted, apt.Status)
	require.NotNil(t, apt.Treatment)
	assert.Equal(t, "scaling", *apt.Treatment)
}

func TestCompleteOutsideWindowRejected(t *testing.T) {
	svc := newTestService(newFakeAppointmentRepo(), fixedNow())
	apt := scheduledAt(fixedNow(), "09:30")

	err := svc.CheckTransition(apt, model.AppointmentStatusCompleted)
	assert.ErrorIs(t, err, ErrOutsideCompletionWindow)
}

func TestCompleteAtWindowBoundaryAllowed(t *testing.T) {
	svc := newTestService(newFakeAppointmentRepo(), fixedNow())
	apt := scheduledAt(fixedNow(), "10:00")

	assert.NoError(t, svc.CheckTransition(apt, model.AppointmentStatusCompleted))
}

func TestCompleteEarlySameDayAllowed(t *testing.T) {
	svc := newTestService(newFakeAppointmentRepo(), fixedNow())
	apt := scheduledAt(fixedNow(), "18:00")

	assert.NoError(t, svc.CheckTransition(apt, model.AppointmentStatusCompleted))
}

func TestCompleteOnAnotherDayRejected(t *testing.T) {
	svc := newTestService(newFakeAppointmentRepo(), fixedNow())
	apt := scheduledAt(fixedNow().AddDate(0, 0, 1), "12:00")

	err := svc.CheckTransition(apt, model.AppointmentStatusCompleted)
	assert.ErrorIs(t, err, ErrNotToday)
}

func TestAbsentHasNoTimeGuard(t *testing.T) {
	repo := newFakeAppointmentRepo()
	svc := newTestService(repo, fixedNow())
	apt := scheduledAt(fixedNow().AddDate(0, 0, -30), "12:00")
	require.NoError(t, repo.Create(context.Background(), apt))

	err := svc.Transition(context.Background(), apt, model.AppointmentStatusAbsent, "")
	require.NoError(t, err)
	assert.Equal(t, model.AppointmentStatusAbsent, apt.Status)
}

func TestTerminalStatesAreFrozen(t *testing.T) {
	svc := newTestService(newFakeAppointmentRepo(), fixedNow())

	for _, status := range []model.AppointmentStatus{
		model.AppointmentStatusCompleted,
		model.AppointmentStatusCanceled,
		model.AppointmentStatusAbsent,
	} {
		apt := scheduledAt(fixedNow(), "13:00")
		apt.Status = status
		err := svc.CheckTransition(apt, model.AppointmentStatusCanceled)
		assert.ErrorIs(t, err, ErrNotScheduled, "from %s", status)
	}
}

func TestTransitionLosesRaceToConcurrentWriter(t *testing.T) {
	repo := newFakeAppointmentRepo()
	svc := newTestService(repo, fixedNow())
	apt := scheduledAt(fixedNow(), "13:00")
	require.NoError(t, repo.Create(context.Background(), apt))

	// Another caller committed Canceled after this caller loaded its
	// snapshot but before it wrote.
	stale := *apt
	repo.byID[apt.ID].Status = model.AppointmentStatusCanceled

	err := svc.Transition(context.Background(), &stale, model.AppointmentStatusAbsent, "")
	assert.ErrorIs(t, err, ErrNotScheduled)
	assert.Equal(t, model.AppointmentStatusCanceled, repo.byID[apt.ID].Status)
}

func TestTransitionOnDeletedRowIsNotFound(t *testing.T) {
	repo := newFakeAppointmentRepo()
	svc := newTestService(repo, fixedNow())
	apt := scheduledAt(fixedNow(), "13:00")
	require.NoError(t, repo.Create(context.Background(), apt))

	stale := *apt
	require.NoError(t, repo.Delete(context.Background(), apt.ID))

	err := svc.Transition(context.Background(), &stale, model.AppointmentStatusCanceled, "")
	assert.True(t, apperrors.IsCode(err, apperrors.ErrNotFound))
}

func TestTransitionToScheduledRejected(t *testing.T) {
	svc := newTestService(newFakeAppointmentRepo(), fixedNow())
	apt := scheduledAt(fixedNow(), "13:00")

	err := svc.CheckTransition(apt, model.AppointmentStatusScheduled)
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestTransitionToUnknownStatusRejected(t *testing.T) {
	svc := newTestService(newFakeAppointmentRepo(), fixedNow())
	apt := scheduledAt(fixedNow(), "13:00")

	err := svc.CheckTransition(apt, model.AppointmentStatus("postponed"))
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestGuardFailureLeavesRowUntouched(t *testing.T) {
	repo := newFakeAppointmentRepo()
	svc := newTestService(repo, fixedNow())
	apt := scheduledAt(fixedNow(), "09:00")
	require.NoError(t, repo.Create(context.Background(), apt))

	err := svc.Transition(context.Background(), apt, model.AppointmentStatusCompleted, "scaling")
	require.Error(t, err)
	assert.Zero(t, repo.updateCalls)
	assert.Equal(t, model.AppointmentStatusScheduled, apt.Status)
}

func TestTreatmentIgnoredOutsideCompletion(t *testing.T) {
	repo := newFakeAppointmentRepo()
	svc := newTestService(repo, fixedNow())
	apt := scheduledAt(fixedNow(), "13:00")
	require.NoError(t, repo.Create(context.Background(), apt))

	err := svc.Transition(context.Background(), apt, model.AppointmentStatusCanceled, "scaling")
	require.NoError(t, err)
	assert.Nil(t, apt.Treatment)
}

func TestGetUnknownAppointment(t *testing.T) {
	svc := newTestService(newFakeAppointmentRepo(), fixedNow())

	_, err := svc.Get(context.Background(), uuid.New())
	assert.True(t, apperrors.IsCode(err, apperrors.ErrNotFound))
}
