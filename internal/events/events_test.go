package events

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"jobtracker/ingestion-service/internal/model"
)

type fakeRedis struct {
	channel string
	payload []byte
	err     error
}

func (f *fakeRedis) Publish(_ context.Context, channel string, message any) *redis.IntCmd {
	f.channel = channel
	f.payload, _ = message.([]byte)
	return redis.NewIntResult(1, f.err)
}

func TestRedisPublisher_SourceScraped(t *testing.T) {
	fake := &fakeRedis{}
	p := NewRedisPublisher(fake)
	p.now = func() time.Time { return time.Date(2030, 3, 10, 9, 0, 0, 0, time.UTC) }

	err := p.SourceScraped(context.Background(), model.RunOutcome{
		RunID: "run-1", SourceID: "buscojobs", Success: true, JobsFound: 4, JobsAdded: 3, JobsUpdated: 1,
	})
	require.NoError(t, err)
	assert.Equal(t, ChannelSourceScraped, fake.channel)

	var got SourceScrapedEvent
	require.NoError(t, json.Unmarshal(fake.payload, &got))
	assert.Equal(t, SourceScrapedEvent{
		Type: ChannelSourceScraped, RunID: "run-1", SourceID: "buscojobs", Success: true,
		JobsFound: 4, JobsAdded: 3, JobsUpdated: 1, At: p.now(),
	}, got)
}

func TestRedisPublisher_PublishError(t *testing.T) {
	boom := errors.New("connection refused")
	p := NewRedisPublisher(&fakeRedis{err: boom})

	err := p.SourceScraped(context.Background(), model.RunOutcome{SourceID: "x"})
	assert.ErrorIs(t, err, boom)
}

func TestNew_NilClientIsNop(t *testing.T) {
	p := New(nil)
	assert.IsType(t, Nop{}, p)
	assert.NoError(t, p.SourceScraped(context.Background(), model.RunOutcome{}))
}
