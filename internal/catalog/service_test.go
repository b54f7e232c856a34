package catalog

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"jobtracker/ingestion-service/internal/db"
	"jobtracker/ingestion-service/internal/model"
	"jobtracker/ingestion-service/internal/store/sqlite"
)

var fixedNow = time.Date(2030, 3, 10, 12, 0, 0, 0, time.UTC)

func newTestService(t *testing.T) (*Service, *sqlite.Store) {
	t.Helper()
	st, err := sqlite.New(context.Background(), db.OpenSQLiteMemory(t), sqlite.WithClock(func() time.Time { return fixedNow }))
	require.NoError(t, err)
	require.NoError(t, st.SeedSource(context.Background(), model.Source{ID: "acme", Name: "Acme", URL: "https://acme", Enabled: true}))
	return NewService(st, WithClock(func() time.Time { return fixedNow })), st
}

func seedPosting(t *testing.T, st *sqlite.Store, id string, closing *string) {
	t.Helper()
	p := model.Candidate{ExternalID: id, Title: "Posting " + id, URL: "https://acme/" + id, ClosingDate: closing}.Posting("acme")
	_, err := st.UpsertPosting(context.Background(), p)
	require.NoError(t, err)
}

func TestListPostings_SweepsFirst(t *testing.T) {
	svc, st := newTestService(t)
	past := "2030-03-09"
	seedPosting(t, st, "old", &past)
	seedPosting(t, st, "open", nil)

	active := true
	got, err := svc.ListPostings(context.Background(), model.PostingFilter{Active: &active})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "open", got[0].ExternalID)
}

func TestListPostings_RejectsBadLimit(t *testing.T) {
	svc, _ := newTestService(t)

	for _, limit := range []int{-1, MaxLimit + 1} {
		_, err := svc.ListPostings(context.Background(), model.PostingFilter{Limit: limit})
		var ve *ValidationError
		assert.True(t, errors.As(err, &ve), "limit %d", limit)
	}
}

func TestGetPosting_NotFound(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.GetPosting(context.Background(), 99)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, svc.DeactivatePosting(context.Background(), 99), ErrNotFound)
}

func TestDeactivatePosting(t *testing.T) {
	svc, st := newTestService(t)
	seedPosting(t, st, "1", nil)
	p, err := st.GetPostingByKey(context.Background(), "acme", "1")
	require.NoError(t, err)

	require.NoError(t, svc.DeactivatePosting(context.Background(), p.ID))
	got, err := svc.GetPosting(context.Background(), p.ID)
	require.NoError(t, err)
	assert.False(t, got.Active)
}

func TestSweepExpired(t *testing.T) {
	svc, st := newTestService(t)
	past, future := "2030-01-01", "2031-01-01"
	seedPosting(t, st, "a", &past)
	seedPosting(t, st, "b", &past)
	seedPosting(t, st, "c", &future)

	n, err := svc.SweepExpired(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	n, err = svc.SweepExpired(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)

	stats, err := svc.PostingStats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, stats.Total)
	assert.Equal(t, 1, stats.Active)
}

func TestSources(t *testing.T) {
	svc, _ := newTestService(t)

	src, err := svc.ToggleSource(context.Background(), "acme", false)
	require.NoError(t, err)
	assert.False(t, src.Enabled)

	all, err := svc.ListSources(context.Background())
	require.NoError(t, err)
	assert.Len(t, all, 1, "disabled sources are still listed")

	_, err = svc.GetSource(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = svc.ToggleSource(context.Background(), "nope", true)
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = svc.SourceStats(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRunLogLimits(t *testing.T) {
	svc, st := newTestService(t)
	for i := 0; i < DefaultRecentLogs+5; i++ {
		l := model.NewRunLog(fmt.Sprintf("run-%02d", i), "acme", fixedNow.Add(time.Duration(i)*time.Second))
		require.NoError(t, st.CreateRunLog(context.Background(), l))
	}

	recent, err := svc.ListRecentRunLogs(context.Background(), 0)
	require.NoError(t, err)
	assert.Len(t, recent, DefaultRecentLogs)

	perSource, err := svc.ListRunLogsForSource(context.Background(), "acme", 0)
	require.NoError(t, err)
	assert.Len(t, perSource, DefaultLogsPerSource)

	three, err := svc.ListRunLogsForSource(context.Background(), "acme", 3)
	require.NoError(t, err)
	assert.Len(t, three, 3)

	_, err = svc.ListRunLogsForSource(context.Background(), "", 3)
	var ve *ValidationError
	assert.ErrorAs(t, err, &ve)
}
