// Package events announces finished ingestion runs to other services.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"jobtracker/ingestion-service/internal/model"
)

// ChannelSourceScraped is the Redis channel a run outcome is published on.
const ChannelSourceScraped = "EVENT_SOURCE_SCRAPED"

// Publisher announces the outcome of one source run.
type Publisher interface {
	SourceScraped(ctx context.Context, out model.RunOutcome) error
}

// SourceScrapedEvent is the JSON payload of ChannelSourceScraped.
type SourceScrapedEvent struct {
	Type        string    `json:"type"`
	RunID       string    `json:"runId"`
	SourceID    string    `json:"sourceId"`
	Success     bool      `json:"success"`
	JobsFound   int       `json:"jobsFound"`
	JobsAdded   int       `json:"jobsAdded"`
	JobsUpdated int       `json:"jobsUpdated"`
	Error       string    `json:"error,omitempty"`
	At          time.Time `json:"at"`
}

// redisPublisher is the subset of *redis.Client used here.
type redisPublisher interface {
	Publish(ctx context.Context, channel string, message any) *redis.IntCmd
}

// RedisPublisher publishes run outcomes on a Redis pub/sub channel.
type RedisPublisher struct {
	rdb redisPublisher
	now func() time.Time
}

// NewRedisPublisher wraps a connected Redis client.
func NewRedisPublisher(rdb redisPublisher) *RedisPublisher {
	return &RedisPublisher{rdb: rdb, now: time.Now}
}

func (p *RedisPublisher) SourceScraped(ctx context.Context, out model.RunOutcome) error {
	event, err := json.Marshal(SourceScrapedEvent{
		Type:        ChannelSourceScraped,
		RunID:       out.RunID,
		SourceID:    out.SourceID,
		Success:     out.Success,
		JobsFound:   out.JobsFound,
		JobsAdded:   out.JobsAdded,
		JobsUpdated: out.JobsUpdated,
		Error:       out.Error,
		At:          p.now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("marshal %s: %w", ChannelSourceScraped, err)
	}
	if err := p.rdb.Publish(ctx, ChannelSourceScraped, event).Err(); err != nil {
		return fmt.Errorf("publish %s: %w", ChannelSourceScraped, err)
	}
	slog.Debug("published", "channel", ChannelSourceScraped, "source", out.SourceID, "run", out.RunID)
	return nil
}

// Nop discards every event. It is used when REDIS_URL is unset.
type Nop struct{}

func (Nop) SourceScraped(context.Context, model.RunOutcome) error { return nil }

// New returns a RedisPublisher for rdb, or Nop when rdb is nil.
func New(rdb *redis.Client) Publisher {
	if rdb == nil {
		return Nop{}
	}
	return NewRedisPublisher(rdb)
}
