package model_test

import (
	"errors"
	"testing"
	"time"

	"jobtracker/ingestion-service/internal/model"
)

// ── ParseRunStatus ─────────────────────────────────────────────────────────

func TestParseRunStatus_ValidValues(t *testing.T) {
	for _, s := range []string{"running", "success", "error"} {
		got, err := model.ParseRunStatus(s)
		if err != nil {
			t.Errorf("ParseRunStatus(%q) returned unexpected error: %v", s, err)
		}
		if string(got) != s {
			t.Errorf("ParseRunStatus(%q) = %q, want %q", s, got, s)
		}
	}
}

func TestParseRunStatus_Invalid(t *testing.T) {
	for _, s := range []string{"", "RUNNING", "done", " success"} {
		if _, err := model.ParseRunStatus(s); err == nil {
			t.Errorf("ParseRunStatus(%q) expected error, got nil", s)
		}
	}
}

// ── CanTransition ──────────────────────────────────────────────────────────

func TestCanTransition(t *testing.T) {
	cases := []struct {
		from, to model.RunStatus
		want     bool
	}{
		{model.RunRunning, model.RunSuccess, true},
		{model.RunRunning, model.RunError, true},
		{model.RunRunning, model.RunRunning, false},
		{model.RunSuccess, model.RunError, false},
		{model.RunSuccess, model.RunRunning, false},
		{model.RunError, model.RunSuccess, false},
		{model.RunError, model.RunError, false},
	}
	for _, c := range cases {
		if got := c.from.CanTransition(c.to); got != c.want {
			t.Errorf("CanTransition(%s → %s) = %v, want %v", c.from, c.to, got, c.want)
		}
	}
}

func TestTerminal(t *testing.T) {
	if model.RunRunning.Terminal() {
		t.Error("running should not be terminal")
	}
	for _, s := range []model.RunStatus{model.RunSuccess, model.RunError} {
		if !s.Terminal() {
			t.Errorf("%s should be terminal", s)
		}
	}
}

// ── Finish ─────────────────────────────────────────────────────────────────

func TestFinish_Success(t *testing.T) {
	start := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	l := model.NewRunLog("run-1", "acme", start)
	if l.CompletedAt != nil {
		t.Fatal("running log must not have CompletedAt")
	}

	end := start.Add(time.Minute)
	if err := l.Finish(model.RunSuccess, model.RunCounts{Found: 3, Added: 2, Updated: 1}, nil, end); err != nil {
		t.Fatalf("Finish: %v", err)
	}
	if l.Status != model.RunSuccess || l.CompletedAt == nil || !l.CompletedAt.Equal(end) {
		t.Errorf("unexpected log after finish: %+v", l)
	}
	if l.JobsFound != 3 || l.JobsAdded != 2 || l.JobsUpdated != 1 {
		t.Errorf("counts = %d/%d/%d, want 3/2/1", l.JobsFound, l.JobsAdded, l.JobsUpdated)
	}
	if l.ErrorMessage != nil {
		t.Errorf("success log carries error message %q", *l.ErrorMessage)
	}
}

func TestFinish_ErrorRecordsMessage(t *testing.T) {
	l := model.NewRunLog("run-2", "acme", time.Now())
	if err := l.Finish(model.RunError, model.RunCounts{}, errors.New("boom"), time.Now()); err != nil {
		t.Fatalf("Finish: %v", err)
	}
	if l.ErrorMessage == nil || *l.ErrorMessage != "boom" {
		t.Errorf("ErrorMessage = %v, want boom", l.ErrorMessage)
	}
}

// A log finalizes exactly once.
func TestFinish_Twice(t *testing.T) {
	l := model.NewRunLog("run-3", "acme", time.Now())
	if err := l.Finish(model.RunSuccess, model.RunCounts{}, nil, time.Now()); err != nil {
		t.Fatalf("first Finish: %v", err)
	}
	err := l.Finish(model.RunError, model.RunCounts{}, errors.New("late"), time.Now())
	if !errors.Is(err, model.ErrInvalidTransition) {
		t.Errorf("second Finish error = %v, want ErrInvalidTransition", err)
	}
	if l.Status != model.RunSuccess {
		t.Errorf("status changed to %s after rejected transition", l.Status)
	}
}

func TestFinish_ToRunningRejected(t *testing.T) {
	l := model.NewRunLog("run-4", "acme", time.Now())
	if err := l.Finish(model.RunRunning, model.RunCounts{}, nil, time.Now()); !errors.Is(err, model.ErrInvalidTransition) {
		t.Errorf("Finish(running) error = %v, want ErrInvalidTransition", err)
	}
	if l.CompletedAt != nil {
		t.Error("CompletedAt set on rejected transition")
	}
}

func TestCandidatePosting(t *testing.T) {
	c := model.Candidate{ExternalID: "ctx-1", Title: "Engineer", URL: "https://x/1"}
	p := c.Posting("acme")
	if p.SourceID != "acme" || p.ExternalID != "ctx-1" || !p.Active {
		t.Errorf("unexpected posting %+v", p)
	}
}
