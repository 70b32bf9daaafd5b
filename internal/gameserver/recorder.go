package gameserver

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/cory-johannsen/idlecombat/internal/storage/postgres"
)

// ReportStore persists combat summaries.
type ReportStore interface {
	Save(ctx context.Context, rep postgres.CombatReport) (postgres.CombatReport, error)
}

// ProgressStore accumulates hero rewards.
type ProgressStore interface {
	Add(ctx context.Context, heroID string, experience, gold int, victory bool) (postgres.HeroProgress, error)
}

// ReportRecorder persists a report for every combat.ended event and credits
// each hero's gains to its progress.
//
// Handle never blocks: events are queued and written by Run or Drain. When
// the queue is full the event is dropped and logged.
type ReportRecorder struct {
	reports  ReportStore
	progress ProgressStore
	queue    chan Event
	logger   *zap.Logger
}

// NewReportRecorder creates a ReportRecorder holding up to capacity
// unwritten events.
//
// Precondition: reports and logger must be non-nil; progress may be nil;
// capacity must be > 0.
func NewReportRecorder(reports ReportStore, progress ProgressStore, capacity int, logger *zap.Logger) *ReportRecorder {
	return &ReportRecorder{
		reports:  reports,
		progress: progress,
		queue:    make(chan Event, capacity),
		logger:   logger,
	}
}

// Handle queues ev when it is a combat.ended event. It is a Handler.
func (r *ReportRecorder) Handle(ev Event) {
	if ev.Type != EventEnded {
		return
	}
	select {
	case r.queue <- ev:
	default:
		r.logger.Warn("report queue full; dropping report", zap.String("session", ev.SessionID))
	}
}

// Run writes queued reports until ctx is cancelled, then drains the queue.
func (r *ReportRecorder) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			r.Drain(context.WithoutCancel(ctx))
			return
		case ev := <-r.queue:
			r.write(ctx, ev)
		}
	}
}

// Drain writes every queued report and returns when the queue is empty.
func (r *ReportRecorder) Drain(ctx context.Context) {
	for {
		select {
		case ev := <-r.queue:
			r.write(ctx, ev)
		default:
			return
		}
	}
}

func (r *ReportRecorder) write(ctx context.Context, ev Event) {
	if err := r.Record(ctx, ev); err != nil {
		r.logger.Error("recording combat report", zap.String("session", ev.SessionID), zap.Error(err))
	}
}

// Record persists ev immediately.
//
// Precondition: ev.Type is combat.ended.
// Postcondition: a report exists for ev.SessionID; unless aborted, every
// gain has been credited. Errors from individual heroes are joined.
func (r *ReportRecorder) Record(ctx context.Context, ev Event) error {
	rep := postgres.CombatReport{
		SessionID: ev.SessionID,
		EnemyID:   ev.EnemyID,
		Victory:   ev.Victory,
		Aborted:   ev.Aborted,
		Rounds:    ev.Rounds,
		Duration:  ev.Duration,
	}
	if ev.Rewards != nil {
		rep.Experience = ev.Rewards.Experience
		rep.Gold = ev.Rewards.Gold
		rep.LootCount = len(ev.Rewards.Loot)
	}
	if _, err := r.reports.Save(ctx, rep); err != nil {
		return fmt.Errorf("saving report: %w", err)
	}
	if r.progress == nil || ev.Aborted {
		return nil
	}
	var errs []error
	for _, g := range ev.Gains {
		if _, err := r.progress.Add(ctx, g.HeroID, g.Experience, g.Gold, ev.Victory); err != nil {
			errs = append(errs, fmt.Errorf("hero %s: %w", g.HeroID, err))
		}
	}
	return errors.Join(errs...)
}
