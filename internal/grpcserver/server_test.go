package grpcserver

import (
	"context"
	"io"
	"log/slog"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"

	"jobtracker/ingestion-service/internal/catalog"
	"jobtracker/ingestion-service/internal/db"
	"jobtracker/ingestion-service/internal/model"
	"jobtracker/ingestion-service/internal/scheduler"
	"jobtracker/ingestion-service/internal/store/sqlite"
)

var fixedNow = time.Date(2030, 3, 10, 12, 0, 0, 0, time.UTC)

type fakeRuns struct{ busy bool }

func (f *fakeRuns) TriggerAll() bool { return !f.busy }

func (f *fakeRuns) RunSource(_ context.Context, id string) (model.RunOutcome, error) {
	if f.busy {
		return model.RunOutcome{}, scheduler.ErrRunInProgress
	}
	return model.RunOutcome{RunID: "run-1", SourceID: id, Success: true, JobsFound: 3, JobsAdded: 2, JobsUpdated: 1}, nil
}

type testEnv struct {
	client *Client
	conn   *grpc.ClientConn
	store  *sqlite.Store
	runs   *fakeRuns
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	clock := func() time.Time { return fixedNow }
	st, err := sqlite.New(context.Background(), db.OpenSQLiteMemory(t), sqlite.WithClock(clock))
	require.NoError(t, err)
	require.NoError(t, st.SeedSource(context.Background(), model.Source{ID: "acme", Name: "Acme", URL: "https://acme", Enabled: true}))

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	runs := &fakeRuns{}
	gs, _ := New(NewServer(runs, catalog.NewService(st, catalog.WithClock(clock), catalog.WithLogger(logger))), logger)

	lis := bufconn.Listen(1 << 20)
	go gs.Serve(lis)
	t.Cleanup(gs.Stop)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) { return lis.DialContext(ctx) }),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	return &testEnv{client: NewClient(conn), conn: conn, store: st, runs: runs}
}

func TestTriggerRunAll(t *testing.T) {
	env := newTestEnv(t)

	got, err := env.client.TriggerRunAll(context.Background())
	require.NoError(t, err)
	assert.True(t, got.GetValue())

	env.runs.busy = true
	got, err = env.client.TriggerRunAll(context.Background())
	require.NoError(t, err)
	assert.False(t, got.GetValue())
}

func TestRunSource(t *testing.T) {
	env := newTestEnv(t)

	out, err := env.client.RunSource(context.Background(), "acme")
	require.NoError(t, err)
	m := out.AsMap()
	assert.Equal(t, "acme", m["sourceId"])
	assert.Equal(t, true, m["success"])
	assert.Equal(t, float64(2), m["jobsAdded"])
}

func TestRunSource_Errors(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.client.RunSource(context.Background(), "")
	assert.Equal(t, codes.InvalidArgument, status.Code(err))

	env.runs.busy = true
	_, err = env.client.RunSource(context.Background(), "acme")
	assert.Equal(t, codes.Aborted, status.Code(err))
}

func TestSweepExpired(t *testing.T) {
	env := newTestEnv(t)
	past := "2030-01-01"
	_, err := env.store.UpsertPosting(context.Background(),
		model.Candidate{ExternalID: "x", Title: "Old tender", URL: "https://acme/x", ClosingDate: &past}.Posting("acme"))
	require.NoError(t, err)

	n, err := env.client.SweepExpired(context.Background())
	require.NoError(t, err)
	assert.EqualValues(t, 1, n.GetValue())
}

func TestListRunLogs(t *testing.T) {
	env := newTestEnv(t)
	for i, src := range []string{"acme", "other"} {
		l := model.NewRunLog("run-"+src, src, fixedNow.Add(time.Duration(i)*time.Minute))
		require.NoError(t, env.store.CreateRunLog(context.Background(), l))
	}

	all, err := env.client.ListRunLogs(context.Background(), "")
	require.NoError(t, err)
	require.Len(t, all.GetValues(), 2)
	first := all.GetValues()[0].GetStructValue().AsMap()
	assert.Equal(t, "run-other", first["id"])

	acme, err := env.client.ListRunLogs(context.Background(), "acme")
	require.NoError(t, err)
	require.Len(t, acme.GetValues(), 1)
	assert.Equal(t, "Acme", acme.GetValues()[0].GetStructValue().AsMap()["sourceName"])
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t)

	resp, err := healthpb.NewHealthClient(env.conn).Check(context.Background(),
		&healthpb.HealthCheckRequest{Service: ServiceName})
	require.NoError(t, err)
	assert.Equal(t, healthpb.HealthCheckResponse_SERVING, resp.GetStatus())
}

func TestToGRPCError(t *testing.T) {
	cases := []struct {
		err  error
		want codes.Code
	}{
		{catalog.ErrNotFound, codes.NotFound},
		{&catalog.ValidationError{Msg: "bad"}, codes.InvalidArgument},
		{scheduler.ErrRunInProgress, codes.Aborted},
		{context.Canceled, codes.Canceled},
		{io.ErrUnexpectedEOF, codes.Internal},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, status.Code(toGRPCError(tc.err)), tc.err.Error())
	}
}
