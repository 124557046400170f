// Package gateway defines the narrow interfaces through which the
// reconciliation engine talks to its external collaborators: the
// scheduling system, the video platform and the content-management
// system. Wire formats, transport and authentication belong to the
// adapters implementing these interfaces, not to the engine.
package gateway

import (
	"context"

	"livesync/internal/model"
)

// StatusSuccess is the status value external calendar operations report
// on success; anything else is treated as failure, not retried.
const StatusSuccess = "success"

// ImpactElement is one changed element in a change-impact response.
type ImpactElement struct {
	Status string `json:"status" yaml:"status"`
	Name   string `json:"name,omitempty" yaml:"name,omitempty"`
}

// ChangeImpact is the response of the calendar change-impact operation.
// Data is keyed by impact category ("cal", "services", "bookings").
type ChangeImpact struct {
	Status string
	Data   map[string][]ImpactElement
}

// SplitResult is the response of the save-split-event operation.
type SplitResult struct {
	Status string
	// NewID is the id of the detached occurrence; zero when absent.
	NewID int
}

// CalendarPayload is the loosely-typed calendar entry payload used by
// the split protocol. It is mutated structurally and echoed back to the
// source, so unknown fields must round-trip.
type CalendarPayload = map[string]any

// SchedulingGateway is the scheduling system's surface as required by
// the engine.
type SchedulingGateway interface {
	// FetchAllEvents returns the raw records of all known events.
	FetchAllEvents(ctx context.Context) ([]model.RawEvent, error)
	// FetchEvent returns a single event's current raw record.
	FetchEvent(ctx context.Context, id int) (model.RawEvent, error)
	// FetchAllFacts returns raw facts grouped by event id.
	FetchAllFacts(ctx context.Context) (map[int][]model.RawFact, error)
	// FetchFactConfig returns the fact master data: fact id to title.
	FetchFactConfig(ctx context.Context) (map[int]string, error)
	// FetchServiceTypes returns all configured service types.
	FetchServiceTypes(ctx context.Context) ([]model.ServiceType, error)
	// FetchFiles returns all event-attached file references.
	FetchFiles(ctx context.Context) ([]model.FileRef, error)

	// FetchCalendarData returns the calendar payloads of a category,
	// keyed by calendar-entry id.
	FetchCalendarData(ctx context.Context, categoryID int) (map[int]CalendarPayload, error)
	// ComputeChangeImpact previews the effect of a calendar mutation.
	ComputeChangeImpact(ctx context.Context, request CalendarPayload) (*ChangeImpact, error)
	// SaveSplitEvent submits a series split.
	SaveSplitEvent(ctx context.Context, request CalendarPayload) (*SplitResult, error)
	// UpdateCalendarEntry sets fields on a calendar entry, reporting
	// whether the update was accepted.
	UpdateCalendarEntry(ctx context.Context, categoryID, calendarID int, fields map[string]any) (bool, error)

	// AttachStreamLink attaches the broadcast URL to the event as a link
	// file and returns the created reference.
	AttachStreamLink(ctx context.Context, eventID int, url string) (*model.FileRef, error)
	// DeleteFile releases a previously attached file.
	DeleteFile(ctx context.Context, ref model.FileRef) error
	// DownloadFile fetches a file's raw contents.
	DownloadFile(ctx context.Context, id int, name string) ([]byte, error)
}

// BroadcastGateway is the video platform's broadcast surface.
type BroadcastGateway interface {
	// ListScheduledAndActive returns all upcoming and running broadcasts.
	ListScheduledAndActive(ctx context.Context) ([]model.Broadcast, error)
	// Create schedules a new broadcast from the declared state.
	Create(ctx context.Context, meta model.BroadcastMeta) (*model.Broadcast, error)
	// Update applies the declared state to an existing broadcast.
	Update(ctx context.Context, b model.Broadcast, meta model.BroadcastMeta) (*model.Broadcast, error)
	// Delete removes a broadcast.
	Delete(ctx context.Context, b model.Broadcast) error
}

// Page is an opaque render target in the content-management system.
type Page struct {
	ID      int
	Title   string
	Content string
}

// ContentGateway is the content-management system's surface. Template
// substitution mechanics live behind Render, not in the engine.
type ContentGateway interface {
	// PageByID returns the page, or (nil, nil) when absent.
	PageByID(ctx context.Context, id int) (*Page, error)
	// UpdatePage publishes the page's new content.
	UpdatePage(ctx context.Context, page *Page) error
	// Render produces page content for an ordered entry list under the
	// given template key.
	Render(templateKey string, entries []model.PublicationEntry) (string, error)
}
