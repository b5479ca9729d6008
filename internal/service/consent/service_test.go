package consent

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hfiles/clinic-api/internal/model"
	"github.com/hfiles/clinic-api/internal/repository"
	apperrors "github.com/hfiles/clinic-api/pkg/errors"
)

type fakeConsentRepo struct {
	templates map[int64][]*model.ConsentFormTemplate
	issuances map[uuid.UUID]*model.ConsentFormIssuance
	byVisit   map[uuid.UUID][]*model.ConsentFormIssuance

	createErr     error
	templateCalls int
}

func newFakeConsentRepo() *fakeConsentRepo {
	return &fakeConsentRepo{
		templates: make(map[int64][]*model.ConsentFormTemplate),
		issuances: make(map[uuid.UUID]*model.ConsentFormIssuance),
		byVisit:   make(map[uuid.UUID][]*model.ConsentFormIssuance),
	}
}

func (f *fakeConsentRepo) addTemplate(clinicID int64, title string) {
	f.templates[clinicID] = append(f.templates[clinicID], &model.ConsentFormTemplate{
		ID:       uuid.New(),
		ClinicID: clinicID,
		Title:    title,
	})
}

func (f *fakeConsentRepo) ListTemplates(_ context.Context, clinicID int64) ([]*model.ConsentFormTemplate, error) {
	f.templateCalls++
	return f.templates[clinicID], nil
}

func (f *fakeConsentRepo) CreateIssuance(_ context.Context, issuance *model.ConsentFormIssuance) error {
	if f.createErr != nil {
		return f.createErr
	}
	issuance.ID = uuid.New()
	f.issuances[issuance.ID] = issuance
	f.byVisit[issuance.VisitID] = append(f.byVisit[issuance.VisitID], issuance)
	return nil
}

func (f *fakeConsentRepo) GetIssuance(_ context.Context, id uuid.UUID) (*model.ConsentFormIssuance, error) {
	issuance, ok := f.issuances[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return issuance, nil
}

func (f *fakeConsentRepo) ListIssuancesByVisit(_ context.Context, visitID uuid.UUID) ([]*model.ConsentFormIssuance, error) {
	return f.byVisit[visitID], nil
}

func (f *fakeConsentRepo) SetDocumentURL(_ context.Context, id uuid.UUID, url string) error {
	issuance, ok := f.issuances[id]
	if !ok {
		return repository.ErrNotFound
	}
	issuance.DocumentURL = &url
	return nil
}

func (f *fakeConsentRepo) MarkVerified(_ context.Context, id uuid.UUID) error {
	issuance, ok := f.issuances[id]
	if !ok {
		return repository.ErrNotFound
	}
	issuance.Verified = true
	return nil
}

type passthroughTxManager struct{}

func (passthroughTxManager) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

type fakeDocStore struct {
	uploads   []string
	uploadErr error
}

func (f *fakeDocStore) Upload(_ context.Context, key, _ string, _ io.Reader) (string, error) {
	if f.uploadErr != nil {
		return "", f.uploadErr
	}
	f.uploads = append(f.uploads, key)
	return "https://files.example.com/" + key, nil
}

type fakeOutbox struct {
	events []*model.OutboxEvent
}

func (f *fakeOutbox) Create(_ context.Context, event *model.OutboxEvent) error {
	event.ID = uuid.New()
	f.events = append(f.events, event)
	return nil
}

func (f *fakeOutbox) GetPendingEventsWithLock(context.Context, int) ([]*model.OutboxEvent, error) {
	return nil, nil
}

func (f *fakeOutbox) UpdateStatus(context.Context, uuid.UUID, model.OutboxStatus, *string) error {
	return nil
}

func (f *fakeOutbox) MarkForRetry(context.Context, uuid.UUID, time.Time, *string) error {
	return nil
}

func (f *fakeOutbox) MoveToDeadLetter(context.Context, *model.OutboxEvent) error {
	return nil
}

func (f *fakeOutbox) DeleteProcessedBefore(context.Context, time.Time) (int64, error) {
	return 0, nil
}

func newTestService(repo *fakeConsentRepo) (*Service, *fakeDocStore) {
	svc, docs, _ := newTestServiceWithOutbox(repo)
	return svc, docs
}

func newTestServiceWithOutbox(repo *fakeConsentRepo) (*Service, *fakeDocStore, *fakeOutbox) {
	docs := &fakeDocStore{}
	outbox := &fakeOutbox{}
	svc := NewService(repo, passthroughTxManager{}, outbox, docs, LinkConfig{BaseURL: "https://app.hfiles.in"})
	return svc, docs, outbox
}

func testVisit() *model.Visit {
	return &model.Visit{Base: model.Base{ID: uuid.New()}, ClinicID: 5}
}

func TestIssueCreatesUnverifiedIssuances(t *testing.T) {
	repo := newFakeConsentRepo()
	repo.addTemplate(5, "DTR Form")
	repo.addTemplate(5, "General Consent")
	svc, _ := newTestService(repo)
	visit := testVisit()

	issuances, err := svc.Issue(context.Background(), visit, 5, []string{"DTR Form", "General Consent"})
	require.NoError(t, err)
	require.Len(t, issuances, 2)
	for _, issuance := range issuances {
		assert.Equal(t, visit.ID, issuance.VisitID)
		assert.False(t, issuance.Verified)
		assert.NotEqual(t, uuid.Nil, issuance.ID)
	}
}

func TestIssueMatchesTitlesCaseInsensitively(t *testing.T) {
	repo := newFakeConsentRepo()
	repo.addTemplate(5, "DTR Form")
	svc, _ := newTestService(repo)

	issuances, err := svc.Issue(context.Background(), testVisit(), 5, []string{"dtr form"})
	require.NoError(t, err)
	require.Len(t, issuances, 1)
	assert.Equal(t, "DTR Form", issuances[0].Title)
}

func TestIssueAllOrNothing(t *testing.T) {
	repo := newFakeConsentRepo()
	repo.addTemplate(5, "DTR Form")
	svc, _ := newTestService(repo)

	_, err := svc.Issue(context.Background(), testVisit(), 5, []string{"DTR Form", "Unknown A", "Unknown B"})
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, apperrors.ErrConflict))

	var appErr *apperrors.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, []string{"Unknown A", "Unknown B"}, appErr.Details)

	// the known title must not have been written either
	assert.Empty(t, repo.issuances)
}

func TestIssueEmptyTitlesIsNoop(t *testing.T) {
	repo := newFakeConsentRepo()
	svc, _ := newTestService(repo)

	issuances, err := svc.Issue(context.Background(), testVisit(), 5, nil)
	require.NoError(t, err)
	assert.Empty(t, issuances)
	assert.Zero(t, repo.templateCalls)
}

func TestIssueCachesTemplateCatalog(t *testing.T) {
	repo := newFakeConsentRepo()
	repo.addTemplate(5, "DTR Form")
	svc, _ := newTestService(repo)

	_, err := svc.Issue(context.Background(), testVisit(), 5, []string{"DTR Form"})
	require.NoError(t, err)
	_, err = svc.Issue(context.Background(), testVisit(), 5, []string{"DTR Form"})
	require.NoError(t, err)
	assert.Equal(t, 1, repo.templateCalls)
}

func TestRouteTitle(t *testing.T) {
	cases := []struct {
		title string
		page  string
	}{
		{"DTR Form", "/consent/dtr"},
		{"TMD Screening", "/consent/tmd"},
		{"TMJ Evaluation", "/consent/tmd"},
		{"Photo Release", "/consent/media-release"},
		{"Media Consent", "/consent/media-release"},
		{"General Consent", "/consent/general"},
		{"Surgery Consent", "/consent/general"},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.page, routeTitle(tc.title), "title %q", tc.title)
	}
}

func TestEncodeTitleEscapesOnlySpacesAndSlashes(t *testing.T) {
	assert.Equal(t, "DTR%20%2F%20Adult%20Form", encodeTitle("DTR / Adult Form"))
	assert.Equal(t, "Q&A+Form", encodeTitle("Q&A+Form"))
}

func TestBuildLink(t *testing.T) {
	svc, _ := newTestService(newFakeConsentRepo())
	id := uuid.MustParse("7b7e1a50-0000-4000-8000-000000000001")
	issuance := &model.ConsentFormIssuance{
		Base:  model.Base{ID: id},
		Title: "DTR Form",
	}

	link := svc.BuildLink(issuance, "HFASH01011990042")
	assert.Equal(t,
		"https://app.hfiles.in/consent/dtr?ConsentId=7b7e1a50-0000-4000-8000-000000000001&ConsentName=DTR%20Form&HFID=HFASH01011990042",
		link,
	)
}

func TestVerifyRequiresSubmittedDocument(t *testing.T) {
	repo := newFakeConsentRepo()
	repo.addTemplate(5, "DTR Form")
	svc, _ := newTestService(repo)

	issuances, err := svc.Issue(context.Background(), testVisit(), 5, []string{"DTR Form"})
	require.NoError(t, err)

	err = svc.Verify(context.Background(), issuances[0].ID, "DTR Form")
	assert.ErrorIs(t, err, ErrNotSubmitted)
	assert.False(t, repo.issuances[issuances[0].ID].Verified)
}

func TestVerifyRejectsTitleMismatch(t *testing.T) {
	repo := newFakeConsentRepo()
	repo.addTemplate(5, "DTR Form")
	svc, _ := newTestService(repo)

	issuances, err := svc.Issue(context.Background(), testVisit(), 5, []string{"DTR Form"})
	require.NoError(t, err)

	err = svc.Verify(context.Background(), issuances[0].ID, "General Consent")
	assert.ErrorIs(t, err, ErrTitleMismatch)
}

func TestVerifyFlipsSubmittedIssuance(t *testing.T) {
	repo := newFakeConsentRepo()
	repo.addTemplate(5, "DTR Form")
	svc, _ := newTestService(repo)

	issuances, err := svc.Issue(context.Background(), testVisit(), 5, []string{"DTR Form"})
	require.NoError(t, err)
	id := issuances[0].ID

	_, err = svc.AttachDocument(context.Background(), id, "dtr form", "application/pdf", strings.NewReader("signed"))
	require.NoError(t, err)

	require.NoError(t, svc.Verify(context.Background(), id, "DTR Form"))
	assert.True(t, repo.issuances[id].Verified)
}

func TestVerifyIsIdempotent(t *testing.T) {
	repo := newFakeConsentRepo()
	repo.addTemplate(5, "DTR Form")
	svc, _ := newTestService(repo)

	issuances, err := svc.Issue(context.Background(), testVisit(), 5, []string{"DTR Form"})
	require.NoError(t, err)
	id := issuances[0].ID

	_, err = svc.AttachDocument(context.Background(), id, "DTR Form", "application/pdf", strings.NewReader("signed"))
	require.NoError(t, err)
	require.NoError(t, svc.Verify(context.Background(), id, "DTR Form"))
	require.NoError(t, svc.Verify(context.Background(), id, "DTR Form"))
}

func TestVerifyEmitsOutboxEvent(t *testing.T) {
	repo := newFakeConsentRepo()
	repo.addTemplate(5, "DTR Form")
	svc, _, outbox := newTestServiceWithOutbox(repo)

	issuances, err := svc.Issue(context.Background(), testVisit(), 5, []string{"DTR Form"})
	require.NoError(t, err)
	id := issuances[0].ID

	_, err = svc.AttachDocument(context.Background(), id, "DTR Form", "application/pdf", strings.NewReader("signed"))
	require.NoError(t, err)
	require.NoError(t, svc.Verify(context.Background(), id, "DTR Form"))

	require.Len(t, outbox.events, 1)
	assert.Equal(t, model.EventConsentVerified, outbox.events[0].EventType)
	assert.Contains(t, string(outbox.events[0].Payload), id.String())

	// re-verifying an already-verified issuance stays silent
	require.NoError(t, svc.Verify(context.Background(), id, "DTR Form"))
	assert.Len(t, outbox.events, 1)
}

func TestVerifyUnknownIssuance(t *testing.T) {
	svc, _ := newTestService(newFakeConsentRepo())

	err := svc.Verify(context.Background(), uuid.New(), "DTR Form")
	assert.True(t, apperrors.IsCode(err, apperrors.ErrNotFound))
}

func TestAttachDocumentStoresReference(t *testing.T) {
	repo := newFakeConsentRepo()
	repo.addTemplate(5, "DTR Form")
	svc, docs := newTestService(repo)

	issuances, err := svc.Issue(context.Background(), testVisit(), 5, []string{"DTR Form"})
	require.NoError(t, err)
	id := issuances[0].ID

	url, err := svc.AttachDocument(context.Background(), id, "DTR Form", "application/pdf", strings.NewReader("signed"))
	require.NoError(t, err)
	assert.NotEmpty(t, url)
	require.NotNil(t, repo.issuances[id].DocumentURL)
	assert.Equal(t, url, *repo.issuances[id].DocumentURL)
	assert.Len(t, docs.uploads, 1)
}

func TestAttachDocumentRejectsTitleMismatch(t *testing.T) {
	repo := newFakeConsentRepo()
	repo.addTemplate(5, "DTR Form")
	svc, docs := newTestService(repo)

	issuances, err := svc.Issue(context.Background(), testVisit(), 5, []string{"DTR Form"})
	require.NoError(t, err)

	_, err = svc.AttachDocument(context.Background(), issuances[0].ID, "General Consent", "application/pdf", strings.NewReader("signed"))
	assert.ErrorIs(t, err, ErrTitleMismatch)
	assert.Empty(t, docs.uploads)
}

func TestAttachDocumentUploadFailure(t *testing.T) {
	repo := newFakeConsentRepo()
	repo.addTemplate(5, "DTR Form")
	svc, docs := newTestService(repo)
	docs.uploadErr = errors.New("storage unavailable")

	issuances, err := svc.Issue(context.Background(), testVisit(), 5, []string{"DTR Form"})
	require.NoError(t, err)
	id := issuances[0].ID

	_, err = svc.AttachDocument(context.Background(), id, "DTR Form", "application/pdf", strings.NewReader("signed"))
	require.Error(t, err)
	assert.Nil(t, repo.issuances[id].DocumentURL)
}

func TestListByVisit(t *testing.T) {
	repo := newFakeConsentRepo()
	repo.addTemplate(5, "DTR Form")
	repo.addTemplate(5, "General Consent")
	svc, _ := newTestService(repo)
	visit := testVisit()

	_, err := svc.Issue(context.Background(), visit, 5, []string{"DTR Form", "General Consent"})
	require.NoError(t, err)

	issuances, err := svc.ListByVisit(context.Background(), visit.ID)
	require.NoError(t, err)
	assert.Len(t, issuances, 2)
}
