package engine

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"livesync/internal/calsplit"
	"livesync/internal/fingerprint"
	appLog "livesync/internal/log"
	"livesync/internal/metrics"
	"livesync/internal/model"
	"livesync/internal/publish"
)

// Run outcomes.
const (
	OutcomeUpdated = "UPDATED"
	OutcomeSkipped = "skipped"
	OutcomePartial = "partial"
)

// resultLabel normalizes a run outcome to the lowercase result label
// used on the runs_total metric.
func resultLabel(outcome string) string {
	return strings.ToLower(outcome)
}

// EventFailure is a recoverable per-event or per-page failure; the run
// continues for the remaining events and pages.
type EventFailure struct {
	EventID int
	Title   string
	Start   time.Time
	// PageID is set instead of the event fields for page-publication
	// failures.
	PageID int
	Err    error
}

func (f EventFailure) String() string {
	if f.PageID != 0 {
		return fmt.Sprintf("page %d: %v", f.PageID, f.Err)
	}
	return fmt.Sprintf("event %q starting at %s: %v", f.Title, f.Start.Format("2006-01-02 15:04"), f.Err)
}

// Report summarizes one reconciliation run.
type Report struct {
	Outcome     string
	Events      int
	Failures    []EventFailure
	Fingerprint string
}

// Run executes one full reconciliation pass: fetch, interpret, match,
// mutate broadcasts, then (gated by the change fingerprint) update all
// attached broadcasts and publish page content. force bypasses the
// fingerprint gate.
//
// A returned error is fatal (top-level gateway failure); per-event
// failures are carried in the report and do not abort the run.
func (e *Engine) Run(ctx context.Context, force bool) (*Report, error) {
	runID := uuid.NewString()[:8]
	started := e.now()
	defer func() {
		metrics.RunDuration.Observe(e.now().Sub(started).Seconds())
	}()

	appLog.Info("run starting", "run_id", runID, "force", force)

	events, err := e.loadEvents(ctx)
	if err != nil {
		metrics.RunsTotal.WithLabelValues("failed").Inc()
		return nil, err
	}
	metrics.EventsReconciled.Set(float64(len(events)))

	remote, err := e.broadcasts.ListScheduledAndActive(ctx)
	if err != nil {
		metrics.RunsTotal.WithLabelValues("failed").Inc()
		return nil, fmt.Errorf("engine: list broadcasts: %w", err)
	}
	e.attachBroadcasts(events, remote)

	report := &Report{Events: len(events)}

	// Broadcast mutation pass: disabled livestreams lose their
	// broadcast, enabled ones get one (no-op when already attached).
	for _, ev := range events {
		var opErr error
		if !ev.LivestreamEnabled {
			opErr = e.DeleteBroadcast(ctx, ev)
		} else {
			opErr = e.CreateBroadcast(ctx, ev)
		}
		if opErr != nil {
			e.recordFailure(report, ev, opErr)
		}
	}

	hash, err := fingerprint.Compute(events)
	if err != nil {
		metrics.RunsTotal.WithLabelValues("failed").Inc()
		return nil, err
	}
	report.Fingerprint = hash

	previous, err := e.store.Load()
	if err != nil {
		appLog.Error("reading previous fingerprint failed", err)
		previous = ""
	}

	if !force && hash == previous {
		report.Outcome = OutcomeSkipped
		if len(report.Failures) > 0 {
			report.Outcome = OutcomePartial
		}
		metrics.RunsTotal.WithLabelValues(resultLabel(report.Outcome)).Inc()
		appLog.Info("run finished", "run_id", runID, "outcome", report.Outcome)
		return report, nil
	}

	// Update pass for previously attached broadcasts; just-created ones
	// are already up to date.
	for _, ev := range events {
		if err := e.UpdateBroadcast(ctx, ev); err != nil {
			e.recordFailure(report, ev, err)
		}
	}

	e.publishContent(ctx, events, report)

	if err := e.store.Save(hash); err != nil {
		appLog.Error("persisting fingerprint failed", err)
	}

	report.Outcome = OutcomeUpdated
	if len(report.Failures) > 0 {
		report.Outcome = OutcomePartial
	}
	metrics.RunsTotal.WithLabelValues(resultLabel(report.Outcome)).Inc()
	appLog.Info("run finished", "run_id", runID, "outcome", report.Outcome, "events", report.Events, "failures", len(report.Failures))
	return report, nil
}

// publishContent renders the visibility windows and pushes them to the
// configured pages and the ICS feed. Page failures are recorded per
// page and do not abort the run.
func (e *Engine) publishContent(ctx context.Context, events []*model.Event, report *Report) {
	if !e.cfg.Publish.Enabled {
		return
	}

	entries := publish.Entries(events, publish.Options{
		AdvanceDays:          e.cfg.Publish.AdvanceDays,
		AllowParallelWindows: e.cfg.Publish.AllowParallelWindows,
	})

	if e.content != nil {
		pageIDs := make([]int, 0, len(e.cfg.Publish.Pages))
		for id := range e.cfg.Publish.Pages {
			pageIDs = append(pageIDs, id)
		}
		sort.Ints(pageIDs)

		for _, pageID := range pageIDs {
			templateKey := e.cfg.Publish.Pages[pageID]
			if err := e.publishPage(ctx, pageID, templateKey, entries); err != nil {
				appLog.Error("page publication failed", err, "page_id", pageID)
				report.Failures = append(report.Failures, EventFailure{PageID: pageID, Err: err})
			}
		}
	}

	if e.cfg.Publish.FeedPath != "" {
		if err := publish.WriteFeed(e.cfg.Publish.FeedPath, entries, e.now()); err != nil {
			appLog.Error("feed export failed", err, "path", e.cfg.Publish.FeedPath)
		}
	}
}

func (e *Engine) publishPage(ctx context.Context, pageID int, templateKey string, entries []model.PublicationEntry) error {
	page, err := e.content.PageByID(ctx, pageID)
	if err != nil {
		return err
	}
	if page == nil {
		appLog.Warn("configured page not found", "page_id", pageID)
		return nil
	}
	content, err := e.content.Render(templateKey, entries)
	if err != nil {
		return err
	}
	page.Content = content
	return e.content.UpdatePage(ctx, page)
}

// recordFailure classifies and records a per-event failure. Split
// conflicts are expected, user-visible outcomes and get their own
// counter and a human-readable line identifying the event.
func (e *Engine) recordFailure(report *Report, ev *model.Event, err error) {
	failure := EventFailure{EventID: ev.ID, Title: ev.Title, Start: ev.Start, Err: err}
	report.Failures = append(report.Failures, failure)
	if errors.Is(err, calsplit.ErrConflict) {
		metrics.SplitConflicts.Inc()
		appLog.Warn("failed to save event: scheduling conflict", "title", ev.Title, "start", ev.Start.Format("2006-01-02 15:04"))
		return
	}
	appLog.Error("event reconciliation failed", err, "event_id", ev.ID, "title", ev.Title)
}
