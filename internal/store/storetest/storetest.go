// Package storetest holds the behaviour every store.RecordStore adapter must
// share. Adapter packages call Run from their own tests.
package storetest

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"jobtracker/ingestion-service/internal/model"
	"jobtracker/ingestion-service/internal/store"
)

// Factory returns an empty store whose clock is driven by now.
type Factory func(t *testing.T, now func() time.Time) store.RecordStore

// Run exercises s against the RecordStore contract.
func Run(t *testing.T, open Factory) {
	tests := []struct {
		name string
		fn   func(t *testing.T, s store.RecordStore, clock *Clock)
	}{
		{"UpsertIsIdempotent", testUpsertIdempotent},
		{"UpsertUpdatesInPlace", testUpsertUpdatesInPlace},
		{"UpsertKeepsDeactivation", testUpsertKeepsDeactivation},
		{"SameExternalIDDifferentSources", testSameExternalIDDifferentSources},
		{"DeactivateExpired", testDeactivateExpired},
		{"ListPostingsFilters", testListPostingsFilters},
		{"ListPostingsLiteralWildcards", testListPostingsLiteralWildcards},
		{"PostingStats", testPostingStats},
		{"DeactivatePosting", testDeactivatePosting},
		{"Sources", testSources},
		{"RunLogs", testRunLogs},
		{"SourceStats", testSourceStats},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clock := NewClock(time.Date(2030, 3, 10, 12, 0, 0, 0, time.UTC))
			s := open(t, clock.Now)
			tt.fn(t, s, clock)
		})
	}
}

// Clock is a manually advanced time source.
type Clock struct{ t time.Time }

func NewClock(t time.Time) *Clock { return &Clock{t: t} }

func (c *Clock) Now() time.Time { return c.t }

func (c *Clock) Advance(d time.Duration) { c.t = c.t.Add(d) }

func seed(t *testing.T, s store.RecordStore, ids ...string) {
	t.Helper()
	for _, id := range ids {
		require.NoError(t, s.SeedSource(context.Background(), model.Source{ID: id, Name: "Source " + id, URL: "https://" + id + ".example", Enabled: true}))
	}
}

func posting(sourceID, externalID, title string) model.Posting {
	return model.Candidate{ExternalID: externalID, Title: title, URL: "https://x/y"}.Posting(sourceID)
}

func date(s string) *string { return &s }

func testUpsertIdempotent(t *testing.T, s store.RecordStore, _ *Clock) {
	ctx := context.Background()
	seed(t, s, "acme")

	created, err := s.UpsertPosting(ctx, posting("acme", "ctx-1", "Backend Engineer"))
	require.NoError(t, err)
	assert.True(t, created)

	created, err = s.UpsertPosting(ctx, posting("acme", "ctx-1", "Backend Engineer"))
	require.NoError(t, err)
	assert.False(t, created)

	all, err := s.ListPostings(ctx, model.PostingFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func testUpsertUpdatesInPlace(t *testing.T, s store.RecordStore, clock *Clock) {
	ctx := context.Background()
	seed(t, s, "acme")

	_, err := s.UpsertPosting(ctx, posting("acme", "ctx-1", "Backend Engineer"))
	require.NoError(t, err)
	first, err := s.GetPostingByKey(ctx, "acme", "ctx-1")
	require.NoError(t, err)

	clock.Advance(time.Hour)
	created, err := s.UpsertPosting(ctx, posting("acme", "ctx-1", "Senior Backend Engineer"))
	require.NoError(t, err)
	assert.False(t, created)

	all, err := s.ListPostings(ctx, model.PostingFilter{})
	require.NoError(t, err)
	require.Len(t, all, 1)
	got := all[0]
	assert.Equal(t, "acme", got.SourceID)
	assert.Equal(t, "ctx-1", got.ExternalID)
	assert.Equal(t, "Senior Backend Engineer", got.Title)
	assert.Equal(t, first.ID, got.ID)
	assert.True(t, got.CreatedAt.Equal(first.CreatedAt))
	assert.True(t, got.UpdatedAt.After(first.UpdatedAt))
}

func testUpsertKeepsDeactivation(t *testing.T, s store.RecordStore, _ *Clock) {
	ctx := context.Background()
	seed(t, s, "acme")

	_, err := s.UpsertPosting(ctx, posting("acme", "ctx-1", "Backend Engineer"))
	require.NoError(t, err)
	p, err := s.GetPostingByKey(ctx, "acme", "ctx-1")
	require.NoError(t, err)
	require.NoError(t, s.DeactivatePosting(ctx, p.ID))

	_, err = s.UpsertPosting(ctx, posting("acme", "ctx-1", "Backend Engineer II"))
	require.NoError(t, err)
	p, err = s.GetPosting(ctx, p.ID)
	require.NoError(t, err)
	assert.False(t, p.Active)
	assert.Equal(t, "Backend Engineer II", p.Title)
}

func testSameExternalIDDifferentSources(t *testing.T, s store.RecordStore, _ *Clock) {
	ctx := context.Background()
	seed(t, s, "acme", "globex")

	for _, src := range []string{"acme", "globex"} {
		created, err := s.UpsertPosting(ctx, posting(src, "ctx-1", "Backend Engineer"))
		require.NoError(t, err)
		assert.True(t, created, src)
	}
	all, err := s.ListPostings(ctx, model.PostingFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func testDeactivateExpired(t *testing.T, s store.RecordStore, _ *Clock) {
	ctx := context.Background()
	seed(t, s, "acme")

	cases := map[string]*string{
		"past":      date("2030-03-09"),
		"today":     date("2030-03-10"),
		"future":    date("2030-04-01"),
		"none":      nil,
		"emptyDate": date(""),
	}
	for id, closing := range cases {
		p := posting("acme", id, "Posting "+id)
		p.ClosingDate = closing
		_, err := s.UpsertPosting(ctx, p)
		require.NoError(t, err)
	}

	n, err := s.DeactivateExpired(ctx, "2030-03-10")
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	for id := range cases {
		p, err := s.GetPostingByKey(ctx, "acme", id)
		require.NoError(t, err)
		assert.Equal(t, id != "past", p.Active, id)
	}

	n, err = s.DeactivateExpired(ctx, "2030-03-10")
	require.NoError(t, err)
	assert.Zero(t, n, "already inactive postings are not counted again")
}

func testListPostingsFilters(t *testing.T, s store.RecordStore, clock *Clock) {
	ctx := context.Background()
	seed(t, s, "acme", "globex")

	mk := func(src, id, title, company, location string) {
		p := posting(src, id, title)
		p.Company, p.Location = company, location
		_, err := s.UpsertPosting(ctx, p)
		require.NoError(t, err)
		clock.Advance(time.Minute)
	}
	mk("acme", "1", "Go Developer", "Acme", "Montevideo")
	mk("acme", "2", "Data Analyst", "Acme", "Salto")
	mk("globex", "3", "Platform Engineer", "Globex Go Labs", "Montevideo")

	p, err := s.GetPostingByKey(ctx, "acme", "2")
	require.NoError(t, err)
	require.NoError(t, s.DeactivatePosting(ctx, p.ID))

	active := true
	got, err := s.ListPostings(ctx, model.PostingFilter{Active: &active})
	require.NoError(t, err)
	assert.Equal(t, []string{"3", "1"}, externalIDs(got), "newest first")

	got, err = s.ListPostings(ctx, model.PostingFilter{SourceID: "acme"})
	require.NoError(t, err)
	assert.Equal(t, []string{"2", "1"}, externalIDs(got))

	got, err = s.ListPostings(ctx, model.PostingFilter{Search: "Go"})
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"1", "3"}, externalIDs(got))

	got, err = s.ListPostings(ctx, model.PostingFilter{Location: "Montevideo", Limit: 1})
	require.NoError(t, err)
	assert.Equal(t, []string{"3"}, externalIDs(got))
}

func testListPostingsLiteralWildcards(t *testing.T, s store.RecordStore, _ *Clock) {
	ctx := context.Background()
	seed(t, s, "acme")

	for id, title := range map[string]string{
		"1": "Backend 100% remote",
		"2": "Backend 100 hybrid",
		"3": "Data_Engineer role",
		"4": "Data Engineer role",
	} {
		_, err := s.UpsertPosting(ctx, posting("acme", id, title))
		require.NoError(t, err)
	}

	got, err := s.ListPostings(ctx, model.PostingFilter{Search: "100%"})
	require.NoError(t, err)
	assert.Equal(t, []string{"1"}, externalIDs(got))

	got, err = s.ListPostings(ctx, model.PostingFilter{Search: "Data_"})
	require.NoError(t, err)
	assert.Equal(t, []string{"3"}, externalIDs(got))

	got, err = s.ListPostings(ctx, model.PostingFilter{Location: "%"})
	require.NoError(t, err)
	assert.Empty(t, got)
}

func externalIDs(ps []model.Posting) []string {
	out := make([]string, 0, len(ps))
	for _, p := range ps {
		out = append(out, p.ExternalID)
	}
	return out
}

func testPostingStats(t *testing.T, s store.RecordStore, _ *Clock) {
	ctx := context.Background()
	seed(t, s, "acme", "globex")

	for _, key := range [][2]string{{"acme", "1"}, {"acme", "2"}, {"globex", "3"}} {
		_, err := s.UpsertPosting(ctx, posting(key[0], key[1], "Posting "+key[1]))
		require.NoError(t, err)
	}
	p, err := s.GetPostingByKey(ctx, "globex", "3")
	require.NoError(t, err)
	require.NoError(t, s.DeactivatePosting(ctx, p.ID))

	stats, err := s.PostingStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, stats.Total)
	assert.Equal(t, 2, stats.Active)
	assert.Equal(t, []model.SourceCount{{SourceID: "acme", Count: 2}}, stats.BySource)
}

func testDeactivatePosting(t *testing.T, s store.RecordStore, _ *Clock) {
	err := s.DeactivatePosting(context.Background(), 424242)
	assert.True(t, errors.Is(err, store.ErrNotFound))

	_, err = s.GetPosting(context.Background(), 424242)
	assert.True(t, errors.Is(err, store.ErrNotFound))
}

func testSources(t *testing.T, s store.RecordStore, clock *Clock) {
	ctx := context.Background()
	seed(t, s, "b-src", "a-src")

	src, err := s.SetSourceEnabled(ctx, "b-src", false)
	require.NoError(t, err)
	assert.False(t, src.Enabled)

	// Re-seeding refreshes metadata but keeps the operator's toggle.
	require.NoError(t, s.SeedSource(ctx, model.Source{ID: "b-src", Name: "Renamed", URL: "https://new", Enabled: true}))
	src, err = s.GetSource(ctx, "b-src")
	require.NoError(t, err)
	assert.Equal(t, "Renamed", src.Name)
	assert.Equal(t, "https://new", src.URL)
	assert.False(t, src.Enabled)

	all, err := s.ListSources(ctx, false)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	enabled, err := s.ListSources(ctx, true)
	require.NoError(t, err)
	require.Len(t, enabled, 1)
	assert.Equal(t, "a-src", enabled[0].ID)

	at := clock.Now().Add(time.Minute)
	require.NoError(t, s.RecordScrape(ctx, "a-src", 7, at))
	src, err = s.GetSource(ctx, "a-src")
	require.NoError(t, err)
	assert.Equal(t, 7, src.TotalJobs)
	require.NotNil(t, src.LastScraped)
	assert.True(t, src.LastScraped.Equal(at.Truncate(time.Millisecond)))

	_, err = s.GetSource(ctx, "missing")
	assert.ErrorIs(t, err, store.ErrNotFound)
	_, err = s.SetSourceEnabled(ctx, "missing", true)
	assert.ErrorIs(t, err, store.ErrNotFound)
	assert.ErrorIs(t, s.RecordScrape(ctx, "missing", 1, at), store.ErrNotFound)
}

func testRunLogs(t *testing.T, s store.RecordStore, clock *Clock) {
	ctx := context.Background()
	seed(t, s, "acme")

	first := model.NewRunLog("run-1", "acme", clock.Now())
	require.NoError(t, s.CreateRunLog(ctx, first))
	clock.Advance(time.Second)
	require.NoError(t, first.Finish(model.RunSuccess, model.RunCounts{Found: 3, Added: 2, Updated: 1}, nil, clock.Now()))
	require.NoError(t, s.FinishRunLog(ctx, first))

	// A run log for an unknown source is still recorded.
	clock.Advance(time.Second)
	orphan := model.NewRunLog("run-2", "ghost", clock.Now())
	require.NoError(t, s.CreateRunLog(ctx, orphan))

	got, err := s.GetRunLog(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, model.RunSuccess, got.Status)
	assert.Equal(t, "Source acme", got.SourceName)
	assert.Equal(t, 2, got.JobsAdded)
	require.NotNil(t, got.CompletedAt)

	running, err := s.GetRunLog(ctx, "run-2")
	require.NoError(t, err)
	assert.Equal(t, model.RunRunning, running.Status)
	assert.Nil(t, running.CompletedAt)

	// Finishing twice is rejected by the store as well.
	assert.ErrorIs(t, s.FinishRunLog(ctx, first), store.ErrNotFound)

	all, err := s.ListRunLogs(ctx, "", 0)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "run-2", all[0].ID, "newest first")

	forAcme, err := s.ListRunLogs(ctx, "acme", 10)
	require.NoError(t, err)
	require.Len(t, forAcme, 1)
	assert.Equal(t, "run-1", forAcme[0].ID)

	limited, err := s.ListRunLogs(ctx, "", 1)
	require.NoError(t, err)
	assert.Len(t, limited, 1)
}

func testSourceStats(t *testing.T, s store.RecordStore, clock *Clock) {
	ctx := context.Background()
	seed(t, s, "acme")

	for _, id := range []string{"1", "2"} {
		_, err := s.UpsertPosting(ctx, posting("acme", id, "Posting "+id))
		require.NoError(t, err)
	}
	p, err := s.GetPostingByKey(ctx, "acme", "2")
	require.NoError(t, err)
	require.NoError(t, s.DeactivatePosting(ctx, p.ID))

	l := model.NewRunLog("run-a", "acme", clock.Now())
	require.NoError(t, s.CreateRunLog(ctx, l))

	stats, err := s.SourceStats(ctx, "acme")
	require.NoError(t, err)
	assert.Equal(t, 2, stats.TotalJobs)
	assert.Equal(t, 1, stats.ActiveJobs)
	require.NotNil(t, stats.LastRun)
	assert.Equal(t, "run-a", stats.LastRun.ID)

	_, err = s.SourceStats(ctx, "missing")
	assert.ErrorIs(t, err, store.ErrNotFound)
}
