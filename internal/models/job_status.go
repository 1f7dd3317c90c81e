// Package models holds the aggregate records produced by one pipeline run:
// the scored Opportunity and the scheduler's JobStatus. JobStatus's DAG of
// valid transitions is adapted from the teacher's models.StateMachine —
// same precomputed transition-lookup idiom, shrunk from the football-system
// position lifecycle down to the scheduler's pending/running/terminal set
// (§3, JobStatus invariants).
package models

import (
	"fmt"
	"sync"
	"time"

	"github.com/eddiefleurent/vrpscanner/internal/apperr"
)

// Status is one node in the job lifecycle DAG.
type Status string

const (
	StatusPending Status = "pending"
	StatusRunning Status = "running"
	StatusSuccess Status = "success"
	StatusFailed  Status = "failed"
	StatusSkipped Status = "skipped"
)

// IsTerminal reports whether a status is immutable for the day (§3).
func (s Status) IsTerminal() bool {
	return s == StatusSuccess || s == StatusFailed || s == StatusSkipped
}

type transition struct {
	From Status
	To   Status
}

// validTransitions enumerates the JobStatus DAG's edges.
var validTransitions = []transition{
	{StatusPending, StatusRunning},
	{StatusPending, StatusSkipped},
	{StatusRunning, StatusSuccess},
	{StatusRunning, StatusFailed},
}

var transitionLookup map[transition]bool

func init() {
	transitionLookup = make(map[transition]bool, len(validTransitions))
	for _, t := range validTransitions {
		transitionLookup[t] = true
	}
}

// JobStatus tracks one (job, date) run through the DAG
// pending -> running -> (success|failed), or pending -> skipped.
type JobStatus struct {
	mu         sync.Mutex
	JobName    string
	Date       time.Time
	status     Status
	StartedAt  time.Time
	FinishedAt time.Time
	Error      string
}

// NewJobStatus constructs a JobStatus in the initial pending state.
func NewJobStatus(jobName string, date time.Time) *JobStatus {
	return &JobStatus{JobName: jobName, Date: date, status: StatusPending}
}

// Status returns the current status.
func (j *JobStatus) Status() Status {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.status
}

// IsValidTransition reports whether from->to is an edge in the DAG.
func IsValidTransition(from, to Status) bool {
	return transitionLookup[transition{from, to}]
}

// Transition moves the job to `to`, failing INVALID if the edge does not
// exist in the DAG or the current state is already terminal.
func (j *JobStatus) Transition(to Status, at time.Time) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	if j.status.IsTerminal() {
		return apperr.New(apperr.KindInvalid, "models.JobStatus.Transition",
			fmt.Sprintf("job %s is already terminal (%s) for %s", j.JobName, j.status, j.Date.Format("2006-01-02")))
	}
	if !IsValidTransition(j.status, to) {
		return apperr.New(apperr.KindInvalid, "models.JobStatus.Transition",
			fmt.Sprintf("invalid transition %s -> %s", j.status, to))
	}

	switch to {
	case StatusRunning:
		j.StartedAt = at
	case StatusSuccess, StatusFailed, StatusSkipped:
		j.FinishedAt = at
	}
	j.status = to
	return nil
}

// MarkFailed transitions to failed and records the error message.
func (j *JobStatus) MarkFailed(at time.Time, errMsg string) error {
	if err := j.Transition(StatusFailed, at); err != nil {
		return err
	}
	j.mu.Lock()
	j.Error = errMsg
	j.mu.Unlock()
	return nil
}
