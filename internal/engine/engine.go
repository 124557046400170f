// Package engine drives the event-to-broadcast reconciliation: it loads
// events from the scheduling system, matches them against existing
// remote broadcasts and applies the broadcast lifecycle operations of
// the event aggregate through the external gateways.
package engine

import (
	"context"
	"fmt"
	"time"

	"livesync/internal/calsplit"
	"livesync/internal/config"
	"livesync/internal/facts"
	"livesync/internal/fingerprint"
	"livesync/internal/gateway"
	appLog "livesync/internal/log"
	"livesync/internal/metrics"
	"livesync/internal/model"
)

// Engine owns one run's reconciliation state and the gateway handles.
// Execution is single threaded and sequential; all gateway calls are
// blocking and made one at a time in a fixed order.
type Engine struct {
	cfg *config.Config
	loc *time.Location

	sched      gateway.SchedulingGateway
	broadcasts gateway.BroadcastGateway
	// content may be nil when page publication is disabled.
	content gateway.ContentGateway

	interp   *facts.Interpreter
	splitter *calsplit.Splitter
	store    *fingerprint.Store

	// now is injectable for tests.
	now func() time.Time
}

// New wires an Engine from config and gateways.
func New(cfg *config.Config, sched gateway.SchedulingGateway, broadcasts gateway.BroadcastGateway, content gateway.ContentGateway) (*Engine, error) {
	loc, err := cfg.Location()
	if err != nil {
		return nil, fmt.Errorf("engine: resolve timezone: %w", err)
	}
	return &Engine{
		cfg:        cfg,
		loc:        loc,
		sched:      sched,
		broadcasts: broadcasts,
		content:    content,
		interp:     facts.NewInterpreter(cfg.Events, cfg.Broadcast.DefaultVisibility),
		splitter:   calsplit.New(sched, loc),
		store:      fingerprint.NewStore(cfg.StateFile),
		now:        time.Now,
	}, nil
}

func (e *Engine) loadOptions() model.LoadOptions {
	return model.LoadOptions{
		Flags:          e.interp,
		SpeakerService: e.cfg.Events.SpeakerService,
		Location:       e.loc,
	}
}

// CreateBroadcast creates a remote broadcast for the event. Valid only
// in state NoBroadcast; a no-op otherwise. A stale stream link from an
// earlier inconsistent run is released first. On gateway failure the
// event state stays NoBroadcast so a later run retries.
func (e *Engine) CreateBroadcast(ctx context.Context, ev *model.Event) error {
	if ev.LivestreamIgnored {
		return nil
	}
	if ev.State() != model.NoBroadcast {
		return nil
	}

	if ev.StreamLink != nil {
		// Stale link without a matched broadcast: release it before
		// creating the replacement.
		if err := e.sched.DeleteFile(ctx, *ev.StreamLink); err != nil {
			return fmt.Errorf("release stale stream link: %w", err)
		}
		ev.StreamLink = nil
	}

	title, description := ev.BroadcastInfo(e.cfg.Broadcast.TitleTemplate, e.cfg.Broadcast.DescriptionTemplate)
	created, err := e.broadcasts.Create(ctx, model.BroadcastMeta{
		Title:        title,
		Description:  description,
		Start:        ev.Start,
		End:          ev.End,
		ThumbnailURL: ev.Thumbnail.URL,
		Privacy:      ev.Privacy,
		StreamKeyID:  e.cfg.Broadcast.StreamKeyID,
	})
	if err != nil {
		return fmt.Errorf("create broadcast: %w", err)
	}
	ev.MarkBroadcastCreated(created)
	metrics.BroadcastsCreated.Inc()
	appLog.Info("broadcast created", "event_id", ev.ID, "video_id", created.ID, "privacy", string(ev.Privacy))

	ref, err := e.sched.AttachStreamLink(ctx, ev.ID, created.Link().URL)
	if err != nil {
		return fmt.Errorf("attach stream link: %w", err)
	}
	ev.StreamLink = ref

	return e.CheckCalendarLink(ctx, ev)
}

// UpdateBroadcast recomputes title/description/privacy/thumbnail and
// pushes them to the remote broadcast. Valid only in BroadcastAttached;
// a broadcast just created in this run is never redundantly updated.
func (e *Engine) UpdateBroadcast(ctx context.Context, ev *model.Event) error {
	if ev.LivestreamIgnored {
		return nil
	}
	if ev.State() != model.BroadcastAttached {
		return nil
	}

	title, description := ev.BroadcastInfo(e.cfg.Broadcast.TitleTemplate, e.cfg.Broadcast.DescriptionTemplate)
	updated, err := e.broadcasts.Update(ctx, *ev.Broadcast, model.BroadcastMeta{
		Title:        title,
		Description:  description,
		Start:        ev.Start,
		End:          ev.End,
		ThumbnailURL: ev.Thumbnail.URL,
		Privacy:      ev.Privacy,
		StreamKeyID:  e.cfg.Broadcast.StreamKeyID,
	})
	if err != nil {
		return fmt.Errorf("update broadcast: %w", err)
	}
	ev.AttachBroadcast(updated)
	metrics.BroadcastsUpdated.Inc()
	appLog.Debug("broadcast updated", "event_id", ev.ID, "video_id", updated.ID)
	return nil
}

// DeleteBroadcast removes the event's remote broadcast and releases the
// stream link. A no-op when no broadcast is attached or the event's
// broadcast is marked ignored.
func (e *Engine) DeleteBroadcast(ctx context.Context, ev *model.Event) error {
	if ev.LivestreamIgnored {
		return nil
	}
	if ev.State() == model.NoBroadcast {
		return nil
	}

	if err := e.broadcasts.Delete(ctx, *ev.Broadcast); err != nil {
		return fmt.Errorf("delete broadcast: %w", err)
	}
	ev.ClearBroadcast()
	metrics.BroadcastsDeleted.Inc()

	if ev.StreamLink != nil {
		if err := e.sched.DeleteFile(ctx, *ev.StreamLink); err != nil {
			return fmt.Errorf("release stream link: %w", err)
		}
		ev.StreamLink = nil
	}
	appLog.Info("broadcast deleted", "event_id", ev.ID)

	if ev.LivestreamCalendar {
		ev.CalendarLink = model.Link{}
		return e.applyCalendarLink(ctx, ev)
	}
	return nil
}

// CheckCalendarLink reconciles the calendar entry's published link with
// the stream link. Idempotent: it only persists when the published
// state differs from the declared one.
func (e *Engine) CheckCalendarLink(ctx context.Context, ev *model.Event) error {
	if ev.LivestreamCalendar {
		if ev.StreamLink == nil {
			return nil
		}
		streamURL := ev.StreamLink.DownloadLink()
		if ev.CalendarLink.URL == streamURL.URL {
			return nil
		}
		ev.CalendarLink = streamURL
		return e.applyCalendarLink(ctx, ev)
	}

	if ev.StreamLink != nil && ev.CalendarLink.URL != "" && ev.CalendarLink.URL == ev.StreamLink.URL {
		ev.CalendarLink = model.Link{}
		return e.applyCalendarLink(ctx, ev)
	}
	return nil
}

// applyCalendarLink persists the event's calendar link, first making
// sure the mutation hits a single occurrence and never a whole series.
func (e *Engine) applyCalendarLink(ctx context.Context, ev *model.Event) error {
	if err := e.splitter.EnsureSingle(ctx, ev, e.reloadEvent); err != nil {
		return err
	}
	ok, err := e.sched.UpdateCalendarEntry(ctx, ev.CategoryID, ev.CalendarID, map[string]any{
		"link": ev.CalendarLink.URL,
	})
	if err != nil {
		return fmt.Errorf("update calendar entry: %w", err)
	}
	if !ok {
		return fmt.Errorf("update calendar entry %d rejected", ev.CalendarID)
	}
	return nil
}

// reloadEvent refreshes the event's canonical data from the source,
// keeping run-local broadcast state.
func (e *Engine) reloadEvent(ctx context.Context, ev *model.Event) error {
	raw, err := e.sched.FetchEvent(ctx, ev.ID)
	if err != nil {
		return err
	}
	rawFacts, err := e.sched.FetchAllFacts(ctx)
	if err != nil {
		return err
	}
	titles, err := e.sched.FetchFactConfig(ctx)
	if err != nil {
		return err
	}
	types, err := e.sched.FetchServiceTypes(ctx)
	if err != nil {
		return err
	}
	eventFacts := model.JoinFacts(rawFacts, titles)[ev.ID]
	return ev.Load(raw, eventFacts, types, e.loadOptions())
}
