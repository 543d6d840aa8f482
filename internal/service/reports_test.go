package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/m3rciful/scamcheck/internal/flow"
	"github.com/m3rciful/scamcheck/internal/models"
	"github.com/m3rciful/scamcheck/internal/storage"
)

type fakeReportsStore struct {
	nextID    int64
	created   []*models.Report
	media     map[int64][]models.ReportMedia
	statuses  map[int64]string
	pending   []models.Report
	counts    map[string]int
	createErr error
}

func newFakeReportsStore() *fakeReportsStore {
	return &fakeReportsStore{
		nextID:   100,
		media:    map[int64][]models.ReportMedia{},
		statuses: map[int64]string{},
		counts:   map[string]int{},
	}
}

func (f *fakeReportsStore) Create(_ context.Context, rep *models.Report, media []models.ReportMedia) (int64, error) {
	if f.createErr != nil {
		return 0, f.createErr
	}
	f.nextID++
	f.created = append(f.created, rep)
	f.media[f.nextID] = media
	return f.nextID, nil
}

func (f *fakeReportsStore) GetByID(_ context.Context, id int64) (*models.Report, error) {
	for _, r := range f.created {
		if r.ID == id {
			return r, nil
		}
	}
	return nil, storage.ErrNotFound
}

func (f *fakeReportsStore) UpdateStatus(_ context.Context, id int64, status string) error {
	if _, ok := f.media[id]; !ok {
		return storage.ErrNotFound
	}
	f.statuses[id] = status
	return nil
}

func (f *fakeReportsStore) ListPending(_ context.Context, _ int) ([]models.Report, error) {
	return f.pending, nil
}

func (f *fakeReportsStore) CountByTarget(_ context.Context, username string, _ int64, status string) (int, error) {
	return f.counts[username+"/"+status], nil
}

func (f *fakeReportsStore) MediaByReport(_ context.Context, id int64) ([]models.ReportMedia, error) {
	return f.media[id], nil
}

type fakeGuarantorsStore struct {
	byName map[string]*models.Guarantor
}

func (f *fakeGuarantorsStore) Add(_ context.Context, username, title string, addedBy int64) error {
	if f.byName == nil {
		f.byName = map[string]*models.Guarantor{}
	}
	f.byName[username] = &models.Guarantor{Username: username, Title: title, AddedBy: addedBy}
	return nil
}

func (f *fakeGuarantorsStore) Remove(_ context.Context, username string) error {
	if _, ok := f.byName[username]; !ok {
		return storage.ErrNotFound
	}
	delete(f.byName, username)
	return nil
}

func (f *fakeGuarantorsStore) GetByUsername(_ context.Context, username string) (*models.Guarantor, error) {
	g, ok := f.byName[username]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return g, nil
}

func (f *fakeGuarantorsStore) List(_ context.Context) ([]models.Guarantor, error) {
	out := make([]models.Guarantor, 0, len(f.byName))
	for _, g := range f.byName {
		out = append(out, *g)
	}
	return out, nil
}

type fakePublisher struct {
	published []*models.Report
	err       error
}

func (f *fakePublisher) Publish(_ context.Context, rep *models.Report, _ []models.ReportMedia) error {
	if f.err != nil {
		return f.err
	}
	f.published = append(f.published, rep)
	return nil
}

func TestSubmitStoresAndPublishes(t *testing.T) {
	store := newFakeReportsStore()
	pub := &fakePublisher{}
	svc := NewReports(store, nil, pub)

	sub := flow.Submission{
		Target:      flow.Identity{Username: "Scammer", UserID: 42},
		Description: "took prepayment and vanished",
		Media: []flow.MediaItem{
			{Kind: flow.KindPhoto, Ref: "f1"},
			{Kind: flow.KindVideo, Ref: "f2"},
		},
		ReporterID: 7,
	}
	id, err := svc.Submit(context.Background(), models.ReportKindReport, sub)
	require.NoError(t, err)
	require.Len(t, store.created, 1)

	rep := store.created[0]
	assert.Equal(t, models.ReportKindReport, rep.Kind)
	assert.Equal(t, "scammer", rep.TargetUsername.String)
	assert.Equal(t, int64(42), rep.TargetTelegramID.Int64)
	assert.Equal(t, models.ReportStatusPending, rep.Status)
	assert.Equal(t, int64(7), rep.ReporterID)

	media := store.media[id]
	require.Len(t, media, 2)
	assert.Equal(t, models.MediaKindPhoto, media[0].Kind)
	assert.Equal(t, "f1", media[0].FileID)
	assert.Equal(t, 0, media[0].Position)
	assert.Equal(t, models.MediaKindVideo, media[1].Kind)
	assert.Equal(t, 1, media[1].Position)

	require.Len(t, pub.published, 1)
	assert.Equal(t, id, pub.published[0].ID)
}

func TestSubmitSurvivesPublishFailure(t *testing.T) {
	store := newFakeReportsStore()
	pub := &fakePublisher{err: errors.New("channel down")}
	svc := NewReports(store, nil, pub)

	_, err := svc.Submit(context.Background(), models.ReportKindAppeal, flow.Submission{
		Target:      flow.Identity{UserID: 5},
		Description: "wrongly flagged",
		ReporterID:  5,
	})
	assert.NoError(t, err)
	assert.Len(t, store.created, 1)
}

func TestSubmitPropagatesStoreError(t *testing.T) {
	store := newFakeReportsStore()
	store.createErr = errors.New("db down")
	svc := NewReports(store, nil, nil)

	_, err := svc.Submit(context.Background(), models.ReportKindReport, flow.Submission{
		Target:      flow.Identity{Username: "x"},
		Description: "d",
		ReporterID:  1,
	})
	assert.Error(t, err)
}

func TestSinkBindsKind(t *testing.T) {
	store := newFakeReportsStore()
	svc := NewReports(store, nil, nil)

	sink := svc.Sink(models.ReportKindAppeal)
	require.NoError(t, sink.Submit(context.Background(), flow.Submission{
		Target:      flow.Identity{Username: "flagged"},
		Description: "please recheck",
		ReporterID:  9,
	}))
	require.Len(t, store.created, 1)
	assert.Equal(t, models.ReportKindAppeal, store.created[0].Kind)
}

func TestConfirmRejectUpdateStatus(t *testing.T) {
	store := newFakeReportsStore()
	store.media[101] = nil
	store.media[102] = nil
	svc := NewReports(store, nil, nil)

	require.NoError(t, svc.Confirm(context.Background(), 101))
	require.NoError(t, svc.Reject(context.Background(), 102))
	assert.Equal(t, models.ReportStatusConfirmed, store.statuses[101])
	assert.Equal(t, models.ReportStatusRejected, store.statuses[102])

	err := svc.Confirm(context.Background(), 999)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestPendingSinceFilter(t *testing.T) {
	now := time.Now()
	store := newFakeReportsStore()
	store.pending = []models.Report{
		{ID: 1, CreatedAt: now.Add(-48 * time.Hour)},
		{ID: 2, CreatedAt: now},
	}
	svc := NewReports(store, nil, nil)

	all, err := svc.Pending(context.Background(), time.Time{}, 50)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	recent, err := svc.Pending(context.Background(), now.Add(-time.Hour), 50)
	require.NoError(t, err)
	require.Len(t, recent, 1)
	assert.Equal(t, int64(2), recent[0].ID)
}

func TestCheckTarget(t *testing.T) {
	store := newFakeReportsStore()
	store.counts["seller/confirmed"] = 3
	store.counts["seller/pending"] = 1
	gstore := &fakeGuarantorsStore{}
	guarantors := NewGuarantors(gstore)
	require.NoError(t, guarantors.Add(context.Background(), "@Seller", "Shop", 1))

	svc := NewReports(store, guarantors, nil)
	res, err := svc.CheckTarget(context.Background(), flow.Identity{Username: "@Seller"})
	require.NoError(t, err)
	assert.Equal(t, 3, res.Confirmed)
	assert.Equal(t, 1, res.Pending)
	assert.True(t, res.Guarantor)

	res, err = svc.CheckTarget(context.Background(), flow.Identity{UserID: 12345})
	require.NoError(t, err)
	assert.Zero(t, res.Confirmed)
	assert.False(t, res.Guarantor)
}
