package model

import (
	"errors"
	"fmt"
	"time"
)

// RunStatus is the lifecycle state of a RunLog.
//
//	running ──► success
//	   │
//	   └──────► error
//
// success and error are terminal.
type RunStatus string

const (
	RunRunning RunStatus = "running"
	RunSuccess RunStatus = "success"
	RunError   RunStatus = "error"
)

var validRunTransitions = map[RunStatus][]RunStatus{
	RunRunning: {RunSuccess, RunError},
}

// ErrInvalidTransition is returned when a RunLog is finished twice or moved
// to a non-terminal state.
var ErrInvalidTransition = errors.New("invalid run status transition")

// ParseRunStatus converts a raw string to a RunStatus.
func ParseRunStatus(s string) (RunStatus, error) {
	st := RunStatus(s)
	switch st {
	case RunRunning, RunSuccess, RunError:
		return st, nil
	}
	return "", fmt.Errorf("unknown run status %q", s)
}

// CanTransition reports whether moving from s to next is permitted.
func (s RunStatus) CanTransition(next RunStatus) bool {
	for _, allowed := range validRunTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Terminal reports whether s has no outgoing transitions.
func (s RunStatus) Terminal() bool {
	_, ok := validRunTransitions[s]
	return !ok
}

// RunLog records one ingestion attempt against one source.
// CompletedAt is nil exactly while Status is running.
type RunLog struct {
	ID           string     `json:"id"`
	SourceID     string     `json:"sourceId"`
	SourceName   string     `json:"sourceName,omitempty"`
	Status       RunStatus  `json:"status"`
	JobsFound    int        `json:"jobsFound"`
	JobsAdded    int        `json:"jobsAdded"`
	JobsUpdated  int        `json:"jobsUpdated"`
	ErrorMessage *string    `json:"errorMessage"`
	StartedAt    time.Time  `json:"startedAt"`
	CompletedAt  *time.Time `json:"completedAt"`
}

// NewRunLog returns a running log for sourceID.
func NewRunLog(id, sourceID string, startedAt time.Time) RunLog {
	return RunLog{
		ID:        id,
		SourceID:  sourceID,
		Status:    RunRunning,
		StartedAt: startedAt,
	}
}

// RunCounts carries the counters written when a run finishes.
type RunCounts struct {
	Found   int
	Added   int
	Updated int
}

// Finish moves the log to a terminal status. runErr is recorded as the error
// message when status is RunError and ignored otherwise.
func (l *RunLog) Finish(status RunStatus, counts RunCounts, runErr error, at time.Time) error {
	if !l.Status.CanTransition(status) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, l.Status, status)
	}
	l.Status = status
	l.JobsFound = counts.Found
	l.JobsAdded = counts.Added
	l.JobsUpdated = counts.Updated
	l.ErrorMessage = nil
	if status == RunError {
		msg := "unknown error"
		if runErr != nil {
			msg = runErr.Error()
		}
		l.ErrorMessage = &msg
	}
	completed := at
	l.CompletedAt = &completed
	return nil
}
