// Package digest runs the scheduled daily agenda summary: the next day's events
// and the conflicts within each governor's agenda, written to the structured log.
package digest

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/example/gov-agenda/internal/application"
	"github.com/example/gov-agenda/internal/scheduler"
)

// EventSource lists the stored events of a range.
type EventSource interface {
	ListEvents(ctx context.Context, filter application.EventFilter) ([]scheduler.Event, error)
}

// Summary is the digest of one calendar day.
type Summary struct {
	Day        time.Time
	EventCount int
	Conflicts  []scheduler.Conflict
}

// Scheduler triggers the digest on a cron schedule.
type Scheduler struct {
	cron   *cron.Cron
	events EventSource
	spec   string
	loc    *time.Location
	now    func() time.Time
	logger *slog.Logger

	mu      sync.Mutex
	entryID cron.EntryID
	last    *Summary
}

// NewScheduler creates a digest scheduler firing on spec, a standard
// five-field cron expression evaluated in loc.
func NewScheduler(events EventSource, spec string, loc *time.Location, logger *slog.Logger) *Scheduler {
	if loc == nil {
		loc = time.UTC
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		cron:   cron.New(cron.WithLocation(loc)),
		events: events,
		spec:   spec,
		loc:    loc,
		now:    time.Now,
		logger: logger.With("component", "digest"),
	}
}

// Start registers the digest job and starts the cron loop. Jobs run with ctx.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	entryID, err := s.cron.AddFunc(s.spec, func() {
		tomorrow := s.now().In(s.loc).AddDate(0, 0, 1)
		if _, err := s.RunOnce(ctx, tomorrow); err != nil {
			s.logger.WarnContext(ctx, "scheduled digest failed", "error", err)
		}
	})
	if err != nil {
		return fmt.Errorf("digest: invalid cron spec %q: %w", s.spec, err)
	}
	s.entryID = entryID
	s.cron.Start()
	s.logger.InfoContext(ctx, "digest scheduler started", "schedule", s.spec, "next_run", s.cron.Entry(entryID).Next)
	return nil
}

// Stop halts the cron loop and waits for a running digest to finish.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
	s.logger.Info("digest scheduler stopped")
}

// Run starts the scheduler and blocks until ctx is cancelled.
func (s *Scheduler) Run(ctx context.Context) error {
	if err := s.Start(ctx); err != nil {
		return err
	}
	<-ctx.Done()
	s.Stop()
	return nil
}

// RunOnce builds and logs the digest of the calendar day containing day.
func (s *Scheduler) RunOnce(ctx context.Context, day time.Time) (Summary, error) {
	local := day.In(s.loc)
	from := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, s.loc)
	to := from.AddDate(0, 0, 1)

	events, err := s.events.ListEvents(ctx, application.EventFilter{From: &from, To: &to})
	if err != nil {
		return Summary{}, fmt.Errorf("digest: list events: %w", err)
	}

	summary := Summary{
		Day:        from,
		EventCount: len(events),
		Conflicts:  scheduler.DetectGovernorConflicts(events),
	}

	logger := s.logger.With("day", from.Format(time.DateOnly))
	logger.InfoContext(ctx, "daily agenda digest",
		"event_count", summary.EventCount,
		"conflict_count", len(summary.Conflicts),
	)
	for _, c := range summary.Conflicts {
		logger.WarnContext(ctx, "agenda conflict",
			"governor_id", c.First.GovernorID,
			"first_id", c.First.ID,
			"first_title", c.First.Title,
			"second_id", c.Second.ID,
			"second_title", c.Second.Title,
			"overlap_start", c.OverlapStart,
			"overlap_minutes", c.OverlapMinutes,
		)
	}

	s.mu.Lock()
	s.last = &summary
	s.mu.Unlock()
	return summary, nil
}

// Last returns the most recent digest, if any ran.
func (s *Scheduler) Last() (Summary, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.last == nil {
		return Summary{}, false
	}
	return *s.last, true
}
