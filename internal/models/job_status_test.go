package models

import (
	"testing"
	"time"

	"github.com/eddiefleurent/vrpscanner/internal/apperr"
)

func TestJobStatusValidTransitions(t *testing.T) {
	js := NewJobStatus("pre-market-prep", time.Now())
	now := time.Now()

	if err := js.Transition(StatusRunning, now); err != nil {
		t.Fatalf("pending->running should succeed: %v", err)
	}
	if err := js.Transition(StatusSuccess, now.Add(time.Minute)); err != nil {
		t.Fatalf("running->success should succeed: %v", err)
	}
	if js.Status() != StatusSuccess {
		t.Fatalf("expected success, got %s", js.Status())
	}
}

func TestJobStatusTerminalIsImmutable(t *testing.T) {
	js := NewJobStatus("digest", time.Now())
	now := time.Now()
	_ = js.Transition(StatusRunning, now)
	_ = js.Transition(StatusFailed, now)

	err := js.Transition(StatusRunning, now)
	if !apperr.Is(err, apperr.KindInvalid) {
		t.Fatalf("expected INVALID transitioning out of terminal state, got %v", err)
	}
}

func TestJobStatusRejectsUndefinedEdge(t *testing.T) {
	js := NewJobStatus("digest", time.Now())
	err := js.Transition(StatusSuccess, time.Now())
	if !apperr.Is(err, apperr.KindInvalid) {
		t.Fatalf("expected INVALID for pending->success (no running in between), got %v", err)
	}
}

func TestMarkFailedRecordsError(t *testing.T) {
	js := NewJobStatus("sentiment-scan", time.Now())
	now := time.Now()
	_ = js.Transition(StatusRunning, now)

	if err := js.MarkFailed(now, "provider timeout"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if js.Status() != StatusFailed || js.Error != "provider timeout" {
		t.Fatalf("expected failed status with error message, got status=%s error=%s", js.Status(), js.Error)
	}
}
