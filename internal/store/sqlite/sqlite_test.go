package sqlite_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"jobtracker/ingestion-service/internal/db"
	"jobtracker/ingestion-service/internal/model"
	"jobtracker/ingestion-service/internal/store"
	"jobtracker/ingestion-service/internal/store/sqlite"
	"jobtracker/ingestion-service/internal/store/storetest"
)

func TestStore(t *testing.T) {
	storetest.Run(t, func(t *testing.T, now func() time.Time) store.RecordStore {
		s, err := sqlite.New(context.Background(), db.OpenSQLiteMemory(t), sqlite.WithClock(now))
		require.NoError(t, err)
		return s
	})
}

func TestNew_SchemaIsIdempotent(t *testing.T) {
	conn := db.OpenSQLiteMemory(t)
	_, err := sqlite.New(context.Background(), conn)
	require.NoError(t, err)
	_, err = sqlite.New(context.Background(), conn)
	require.NoError(t, err)
}

func TestUpsertPosting_UnknownSourceRejected(t *testing.T) {
	s, err := sqlite.New(context.Background(), db.OpenSQLiteMemory(t))
	require.NoError(t, err)

	_, err = s.UpsertPosting(context.Background(), model.Candidate{ExternalID: "x", Title: "Orphan", URL: "https://x"}.Posting("nope"))
	require.Error(t, err, "postings reference an existing source")
}
