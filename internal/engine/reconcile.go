package engine

import (
	"context"
	"fmt"

	appLog "livesync/internal/log"
	"livesync/internal/model"
)

// loadEvents fetches all source data and builds the run's event list:
// raw records, joined facts, service types and attached files. Only
// events that have not ended and start within the configured window are
// kept. Events with malformed records are logged and skipped.
func (e *Engine) loadEvents(ctx context.Context) ([]*model.Event, error) {
	rawEvents, err := e.sched.FetchAllEvents(ctx)
	if err != nil {
		return nil, fmt.Errorf("engine: fetch events: %w", err)
	}
	rawFacts, err := e.sched.FetchAllFacts(ctx)
	if err != nil {
		return nil, fmt.Errorf("engine: fetch facts: %w", err)
	}
	titles, err := e.sched.FetchFactConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("engine: fetch fact config: %w", err)
	}
	types, err := e.sched.FetchServiceTypes(ctx)
	if err != nil {
		return nil, fmt.Errorf("engine: fetch service types: %w", err)
	}
	files, err := e.sched.FetchFiles(ctx)
	if err != nil {
		return nil, fmt.Errorf("engine: fetch files: %w", err)
	}

	joined := model.JoinFacts(rawFacts, titles)
	now := e.now().In(e.loc)
	latestStart := now.AddDate(0, 0, e.cfg.Events.DaysAhead)

	events := make([]*model.Event, 0, len(rawEvents))
	for _, raw := range rawEvents {
		ev, err := model.NewEvent(raw, joined[raw.ID], types, e.loadOptions())
		if err != nil {
			appLog.Error("skipping malformed event record", err, "event_id", raw.ID)
			continue
		}
		// Only keep upcoming events inside the reconciliation window.
		if ev.End.Before(now) || ev.Start.After(latestStart) {
			continue
		}
		e.resolveFiles(ev, files)
		events = append(events, ev)
	}

	appLog.Info("events loaded", "total", len(rawEvents), "in_window", len(events))
	return events, nil
}

// resolveFiles binds the event's attached files: the file matching the
// configured thumbnail name becomes the broadcast thumbnail (falling
// back to the configured default), and the first attached file whose
// URL has a video-link shape becomes the stream link.
func (e *Engine) resolveFiles(ev *model.Event, files []model.FileRef) {
	ev.Thumbnail = model.ExternalFile(e.cfg.Broadcast.DefaultThumbnail)
	for _, f := range files {
		if f.EventID != ev.ID {
			continue
		}
		if f.Name == e.cfg.Events.ThumbnailName {
			ev.Thumbnail = f
			continue
		}
		if ev.StreamLink == nil && f.DownloadLink().IsVideoLink() {
			ref := f
			ev.StreamLink = &ref
		}
	}
}

// attachBroadcasts matches remote broadcasts to events. At most one
// match is kept per event (first found); unmatched broadcasts are left
// alone, they belong to other systems or stale state.
func (e *Engine) attachBroadcasts(events []*model.Event, broadcasts []model.Broadcast) {
	for _, ev := range events {
		for i := range broadcasts {
			if ev.MatchesBroadcast(broadcasts[i]) {
				b := broadcasts[i]
				ev.AttachBroadcast(&b)
				appLog.Debug("broadcast matched", "event_id", ev.ID, "video_id", b.ID)
				break
			}
		}
	}
}
