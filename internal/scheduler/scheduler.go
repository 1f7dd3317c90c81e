// Package scheduler maps wall-clock slots to job names and dispatches them
// with dependency gating and idempotent status tracking (§4.14). It
// generalizes the teacher's bot.run ticker loop (cmd/bot/main.go) from "one
// trading cycle on a fixed interval" to "one of several named jobs, chosen
// by a wall-clock slot table, each gated on the prior jobs it depends on."
package scheduler

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/eddiefleurent/vrpscanner/internal/apperr"
	"github.com/eddiefleurent/vrpscanner/internal/budget"
	"github.com/eddiefleurent/vrpscanner/internal/models"
)

// JobName identifies a schedulable job.
type JobName string

const (
	JobPreMarketPrep  JobName = "pre-market-prep"
	JobSentimentScan  JobName = "sentiment-scan"
	JobWhisperScan    JobName = "whisper-scan"
	JobEODDigest      JobName = "eod-digest"
	JobWeeklyBackfill JobName = "weekly-backfill"
)

// SlotRule maps either a weekday time-of-day window or a cron expression to
// a job name. Cron is used for slots that don't fit a simple daily window
// (e.g. the weekly historical-moves backfill).
type SlotRule struct {
	Job      JobName
	Weekdays bool   // restrict to Mon-Fri when true
	Start    string // "HH:MM", inclusive, in the scheduler's Zone
	End      string // "HH:MM", exclusive
	Cron     string // standard 5-field cron expression; takes precedence over Start/End when set
}

// DefaultTable is the stock wall-clock slot map (§4.14, §6 job names).
func DefaultTable() []SlotRule {
	return []SlotRule{
		{Job: JobPreMarketPrep, Weekdays: true, Start: "05:30", End: "06:00"},
		{Job: JobSentimentScan, Weekdays: true, Start: "06:00", End: "06:30"},
		{Job: JobWhisperScan, Weekdays: true, Start: "06:30", End: "09:15"},
		{Job: JobEODDigest, Weekdays: true, Start: "16:15", End: "17:00"},
		{Job: JobWeeklyBackfill, Cron: "0 3 * * 0"}, // Sunday 03:00
	}
}

// DefaultDependencies encodes §4.14's example: sentiment-scan requires
// today's pre-market-prep to have succeeded.
func DefaultDependencies() map[JobName][]JobName {
	return map[JobName][]JobName{
		JobSentimentScan: {JobPreMarketPrep},
		JobWhisperScan:   {JobPreMarketPrep},
	}
}

// Runner executes one job's work. A returned error marks the job failed.
type Runner func(ctx context.Context) error

// StatusStore persists JobStatus records, keyed by calendar date and job
// name, durably enough to survive process restarts (§4.15 job_status table).
type StatusStore interface {
	Load(ctx context.Context, date time.Time, job JobName) (*models.JobStatus, error)
	Save(ctx context.Context, status *models.JobStatus) error
}

// Result is dispatch's outcome, matching the CLI/HTTP dispatch JSON shape
// of §6: {status, job, result|reason|error}.
type Result struct {
	Status string // success | failed | skipped | no_job | already_ran
	Job    JobName
	Reason string
	Err    error
}

// Scheduler dispatches at most one job per tick, in Zone, per the table and
// dependency graph it was constructed with.
type Scheduler struct {
	Zone         *time.Location
	Table        []SlotRule
	Dependencies map[JobName][]JobName
	Runners      map[JobName]Runner
	Store        StatusStore
	BudgetCheck  func() (budget.Status, error) // nil disables the budget gate
	Timeout      time.Duration
	Logger       *log.Logger
	Now          func() time.Time

	cronParser cron.Parser
}

// New constructs a Scheduler with a 5-field cron parser (standard, no
// seconds field, matching robfig/cron's default Parse behavior).
func New(zone *time.Location, table []SlotRule, deps map[JobName][]JobName, runners map[JobName]Runner, store StatusStore) *Scheduler {
	return &Scheduler{
		Zone:         zone,
		Table:        table,
		Dependencies: deps,
		Runners:      runners,
		Store:        store,
		Timeout:      5 * time.Minute,
		Logger:       log.New(log.Writer(), "[scheduler] ", log.LstdFlags),
		Now:          time.Now,
		cronParser:   cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow),
	}
}

// Dispatch runs one tick. force, when non-empty, names a job that bypasses
// the time-slot and dependency checks but never the budget gate (§4.14).
func (s *Scheduler) Dispatch(ctx context.Context, force string) (*Result, error) {
	now := s.Now().In(s.Zone)
	date := truncateToDay(now)

	var job JobName
	forced := force != ""
	if forced {
		job = JobName(force)
	} else {
		found, ok := s.currentJob(now)
		if !ok {
			return &Result{Status: "no_job"}, nil
		}
		job = found
	}

	if !forced {
		prior, err := s.Store.Load(ctx, date, job)
		if err == nil && prior != nil && prior.Status().IsTerminal() {
			return &Result{Status: "already_ran", Job: job}, nil
		}

		for _, dep := range s.Dependencies[job] {
			depStatus, err := s.Store.Load(ctx, date, dep)
			if err != nil || depStatus == nil || depStatus.Status() != models.StatusSuccess {
				reason := fmt.Sprintf("dependency not satisfied: %s", dep)
				js := models.NewJobStatus(string(job), date)
				if terr := js.Transition(models.StatusSkipped, s.Now()); terr == nil {
					s.persist(ctx, js, generateCorrelationID(s.Logger))
				}
				return &Result{Status: "skipped", Job: job, Reason: reason}, nil
			}
		}
	}

	if s.BudgetCheck != nil {
		status, err := s.BudgetCheck()
		if err != nil || status == budget.StatusExhausted {
			return &Result{Status: "skipped", Job: job, Reason: "budget exhausted"}, nil
		}
	}

	runner, ok := s.Runners[job]
	if !ok {
		return nil, apperr.New(apperr.KindConfiguration, "scheduler.Dispatch", fmt.Sprintf("no runner registered for job %q", job))
	}

	correlationID := generateCorrelationID(s.Logger)
	js := models.NewJobStatus(string(job), date)
	if err := js.Transition(models.StatusRunning, s.Now()); err != nil {
		return nil, err
	}
	s.persist(ctx, js, correlationID)

	runCtx, cancel := context.WithTimeout(ctx, s.Timeout)
	defer cancel()

	runErr := runner(runCtx)
	finishedAt := s.Now()
	if runErr != nil {
		if err := js.MarkFailed(finishedAt, runErr.Error()); err != nil {
			s.Logger.Printf("job=%s correlation_id=%s failed to record failure transition: %v", job, correlationID, err)
		}
		s.persist(ctx, js, correlationID)
		return &Result{Status: "failed", Job: job, Err: runErr}, nil
	}

	if err := js.Transition(models.StatusSuccess, finishedAt); err != nil {
		s.Logger.Printf("job=%s correlation_id=%s failed to record success transition: %v", job, correlationID, err)
	}
	s.persist(ctx, js, correlationID)
	return &Result{Status: "success", Job: job}, nil
}

func (s *Scheduler) persist(ctx context.Context, js *models.JobStatus, correlationID string) {
	if err := s.Store.Save(ctx, js); err != nil {
		s.Logger.Printf("status_recording_failed job=%s correlation_id=%s error=%v", js.JobName, correlationID, err)
	}
}

// currentJob finds the slot rule matching now, preferring a cron match
// over a window match when both are present in the table.
func (s *Scheduler) currentJob(now time.Time) (JobName, bool) {
	for _, rule := range s.Table {
		if rule.Cron != "" && s.cronMatches(rule.Cron, now) {
			return rule.Job, true
		}
	}
	for _, rule := range s.Table {
		if rule.Cron != "" {
			continue
		}
		if rule.Weekdays && (now.Weekday() == time.Saturday || now.Weekday() == time.Sunday) {
			continue
		}
		if inWindow(now, rule.Start, rule.End) {
			return rule.Job, true
		}
	}
	return "", false
}

// cronMatches reports whether a cron schedule's most recent prior firing
// falls within the last minute of now, treating dispatch ticks as
// minute-granularity polling.
func (s *Scheduler) cronMatches(expr string, now time.Time) bool {
	schedule, err := s.cronParser.Parse(expr)
	if err != nil {
		s.Logger.Printf("invalid cron expression %q: %v", expr, err)
		return false
	}
	next := schedule.Next(now.Add(-time.Minute))
	return !next.After(now)
}

func inWindow(now time.Time, start, end string) bool {
	startMin, okStart := parseHHMM(start)
	endMin, okEnd := parseHHMM(end)
	if !okStart || !okEnd {
		return false
	}
	nowMin := now.Hour()*60 + now.Minute()
	return nowMin >= startMin && nowMin < endMin
}

func parseHHMM(s string) (int, bool) {
	var h, m int
	if _, err := fmt.Sscanf(s, "%d:%d", &h, &m); err != nil {
		return 0, false
	}
	return h*60 + m, true
}

func truncateToDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

// generateCorrelationID mirrors the teacher's cmd/bot/main.go helper of the
// same name, reused here for scheduler run correlation.
func generateCorrelationID(logger *log.Logger) string {
	buf := make([]byte, 4)
	if _, err := rand.Read(buf); err != nil {
		fallback := fmt.Sprintf("%x", time.Now().UnixNano())
		logger.Printf("crypto/rand.Read failed (%v), using fallback correlation ID", err)
		if len(fallback) > 8 {
			fallback = fallback[:8]
		}
		return fallback
	}
	return hex.EncodeToString(buf)
}
