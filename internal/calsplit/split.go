// Package calsplit implements the calendar-split protocol: a link
// mutation must only ever apply to a single occurrence, never a whole
// recurring series. When the link-carrying calendar entry belongs to a
// series, the occurrence is split out first, guarded by the source
// system's change-impact conflict check. Single pass, no rollback.
package calsplit

import (
	"context"
	"errors"
	"fmt"
	"time"

	"livesync/internal/gateway"
	appLog "livesync/internal/log"
	"livesync/internal/model"
	"livesync/internal/recurrence"
)

// ErrConflict marks a real scheduling conflict detected by the
// change-impact check. Recoverable: the caller reports it per event and
// continues; the calendar link is left unmodified.
var ErrConflict = errors.New("calsplit: scheduling conflict")

// ConflictError describes which impact category rejected the split.
type ConflictError struct {
	Category string
	Status   string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("calsplit: conflict in %s (element status %q)", e.Category, e.Status)
}

func (e *ConflictError) Is(target error) bool { return target == ErrConflict }

// impactCategories are checked in this fixed order.
var impactCategories = []string{"cal", "services", "bookings"}

// ReloadFunc refreshes an event's canonical data from the source after
// a successful split.
type ReloadFunc func(ctx context.Context, ev *model.Event) error

// Splitter runs the split protocol against the scheduling gateway.
type Splitter struct {
	sched gateway.SchedulingGateway
	loc   *time.Location
}

// New builds a Splitter operating in the given timezone.
func New(sched gateway.SchedulingGateway, loc *time.Location) *Splitter {
	if loc == nil {
		loc = time.Local
	}
	return &Splitter{sched: sched, loc: loc}
}

// EnsureSingle guarantees the event's calendar entry is an independent,
// single occurrence. Non-recurring events succeed immediately. For
// series members it fetches the calendar payload, previews the change
// impact, aborts on any non-"new" element, and otherwise submits the
// split and reloads the event (preserving the in-memory calendar link,
// which the reload would overwrite with stale source data).
func (s *Splitter) EnsureSingle(ctx context.Context, ev *model.Event, reload ReloadFunc) error {
	if ev.SeriesID == 0 {
		return nil
	}

	payloads, err := s.sched.FetchCalendarData(ctx, ev.CategoryID)
	if err != nil {
		return fmt.Errorf("calsplit: fetch calendar data: %w", err)
	}
	payload, ok := payloads[ev.CalendarID]
	if !ok {
		return fmt.Errorf("calsplit: calendar entry %d not found in category %d", ev.CalendarID, ev.CategoryID)
	}

	// Verify the occurrence belongs to the series where the repeat kind
	// is expressible as a rule. Unknown kinds fall through to the
	// change-impact check, which remains the authoritative guard.
	if series, err := recurrence.FromPayload(payload, s.loc); err == nil && series.Known() {
		contains, err := series.ContainsDate(ev.Start)
		if err == nil && !contains {
			return &ConflictError{Category: "cal", Status: "not-in-series"}
		}
	}

	request, err := buildSplitRequest(payload, ev)
	if err != nil {
		return err
	}

	impact, err := s.sched.ComputeChangeImpact(ctx, request)
	if err != nil {
		return fmt.Errorf("calsplit: change impact: %w", err)
	}
	if impact.Status != gateway.StatusSuccess {
		return fmt.Errorf("calsplit: change impact returned status %q", impact.Status)
	}

	// Every listed changed element must be new; any other status is a
	// real conflict and aborts the split.
	for _, category := range impactCategories {
		for _, element := range impact.Data[category] {
			if element.Status != "new" {
				return &ConflictError{Category: category, Status: element.Status}
			}
		}
	}

	result, err := s.sched.SaveSplitEvent(ctx, request)
	if err != nil {
		return fmt.Errorf("calsplit: save split: %w", err)
	}
	if result.Status != gateway.StatusSuccess || result.NewID == 0 {
		return fmt.Errorf("calsplit: save split returned status %q", result.Status)
	}

	appLog.Info("split occurrence out of series",
		"event_id", ev.ID, "series_id", ev.SeriesID, "new_id", result.NewID)

	// The calendar link was computed by the caller; the reload would
	// overwrite it with stale source data.
	link := ev.CalendarLink
	if err := reload(ctx, ev); err != nil {
		return fmt.Errorf("calsplit: reload after split: %w", err)
	}
	ev.CalendarLink = link
	return nil
}
