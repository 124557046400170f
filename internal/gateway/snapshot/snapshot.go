// Package snapshot is a file-backed implementation of the gateway
// interfaces. It reads a YAML snapshot of the scheduling system's
// events, facts and master data plus the platform's broadcasts, and
// records all mutations in memory. It backs dry runs and tests; the
// production HTTP adapters live outside this repository.
package snapshot

import (
	"context"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"livesync/internal/gateway"
	"livesync/internal/model"
)

// BroadcastRecord is a broadcast in the snapshot file, with wire-format
// timestamps.
type BroadcastRecord struct {
	ID          string `yaml:"id"`
	Title       string `yaml:"title"`
	Description string `yaml:"description"`
	Start       string `yaml:"start"`
	End         string `yaml:"end"`
	Privacy     string `yaml:"privacy"`
	StreamKey   string `yaml:"stream_key,omitempty"`
	Lifecycle   string `yaml:"lifecycle"`
}

// PageRecord is a content page in the snapshot file.
type PageRecord struct {
	ID      int    `yaml:"id"`
	Title   string `yaml:"title"`
	Content string `yaml:"content"`
}

// File is the snapshot file schema.
type File struct {
	Events       []model.RawEvent                   `yaml:"events"`
	Facts        map[int][]model.RawFact            `yaml:"facts"`
	FactConfig   map[int]string                     `yaml:"fact_config"`
	ServiceTypes []model.ServiceType                `yaml:"service_types"`
	Files        []model.FileRef                    `yaml:"files"`
	Calendar     map[int]map[int]map[string]any     `yaml:"calendar"`
	Impact       map[string][]gateway.ImpactElement `yaml:"impact,omitempty"`
	Broadcasts   []BroadcastRecord                  `yaml:"broadcasts"`
	Pages        []PageRecord                       `yaml:"pages"`
}

// Gateway serves the snapshot and records mutations. It implements
// gateway.SchedulingGateway, gateway.BroadcastGateway and
// gateway.ContentGateway.
type Gateway struct {
	data File
	loc  *time.Location

	nextFileID  int
	nextSplitID int

	// Mutations is the ordered human-readable log of applied mutations.
	Mutations []string
}

var (
	_ gateway.SchedulingGateway = (*Gateway)(nil)
	_ gateway.BroadcastGateway  = (*Gateway)(nil)
	_ gateway.ContentGateway    = (*Gateway)(nil)
)

// Load reads a snapshot file.
func Load(path string, loc *time.Location) (*Gateway, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("snapshot: read %s: %w", path, err)
	}
	var data File
	if err := yaml.Unmarshal(raw, &data); err != nil {
		return nil, fmt.Errorf("snapshot: parse %s: %w", path, err)
	}
	return New(data, loc), nil
}

// New builds a Gateway over in-memory snapshot data.
func New(data File, loc *time.Location) *Gateway {
	if loc == nil {
		loc = time.Local
	}
	g := &Gateway{data: data, loc: loc, nextFileID: 9000, nextSplitID: 8000}
	for _, f := range data.Files {
		if f.ID >= g.nextFileID {
			g.nextFileID = f.ID + 1
		}
	}
	for _, ev := range data.Events {
		if ev.CCCalID >= g.nextSplitID {
			g.nextSplitID = ev.CCCalID + 1
		}
	}
	return g
}

func (g *Gateway) record(format string, args ...any) {
	g.Mutations = append(g.Mutations, fmt.Sprintf(format, args...))
}

// --- SchedulingGateway ---

func (g *Gateway) FetchAllEvents(ctx context.Context) ([]model.RawEvent, error) {
	out := make([]model.RawEvent, len(g.data.Events))
	copy(out, g.data.Events)
	return out, nil
}

func (g *Gateway) FetchEvent(ctx context.Context, id int) (model.RawEvent, error) {
	for _, ev := range g.data.Events {
		if ev.ID == id {
			return ev, nil
		}
	}
	return model.RawEvent{}, fmt.Errorf("snapshot: event %d not found", id)
}

func (g *Gateway) FetchAllFacts(ctx context.Context) (map[int][]model.RawFact, error) {
	return g.data.Facts, nil
}

func (g *Gateway) FetchFactConfig(ctx context.Context) (map[int]string, error) {
	return g.data.FactConfig, nil
}

func (g *Gateway) FetchServiceTypes(ctx context.Context) ([]model.ServiceType, error) {
	return g.data.ServiceTypes, nil
}

func (g *Gateway) FetchFiles(ctx context.Context) ([]model.FileRef, error) {
	out := make([]model.FileRef, len(g.data.Files))
	copy(out, g.data.Files)
	return out, nil
}

func (g *Gateway) FetchCalendarData(ctx context.Context, categoryID int) (map[int]gateway.CalendarPayload, error) {
	category, ok := g.data.Calendar[categoryID]
	if !ok {
		return map[int]gateway.CalendarPayload{}, nil
	}
	out := make(map[int]gateway.CalendarPayload, len(category))
	for id, payload := range category {
		out[id] = payload
	}
	return out, nil
}

func (g *Gateway) ComputeChangeImpact(ctx context.Context, request gateway.CalendarPayload) (*gateway.ChangeImpact, error) {
	return &gateway.ChangeImpact{Status: gateway.StatusSuccess, Data: g.data.Impact}, nil
}

func (g *Gateway) SaveSplitEvent(ctx context.Context, request gateway.CalendarPayload) (*gateway.SplitResult, error) {
	newEvent, _ := request["newEvent"].(map[string]any)
	oldID, _ := newEvent["old_id"].(int)
	newID := g.nextSplitID
	g.nextSplitID++
	// The detached occurrence is no longer a series member.
	for i := range g.data.Events {
		if g.data.Events[i].CCCalID == oldID {
			g.data.Events[i].RepeatID = 0
			g.data.Events[i].CCCalID = newID
		}
	}
	g.record("split calendar entry %d into %d", oldID, newID)
	return &gateway.SplitResult{Status: gateway.StatusSuccess, NewID: newID}, nil
}

func (g *Gateway) UpdateCalendarEntry(ctx context.Context, categoryID, calendarID int, fields map[string]any) (bool, error) {
	if link, ok := fields["link"].(string); ok {
		for i := range g.data.Events {
			if g.data.Events[i].CCCalID == calendarID {
				g.data.Events[i].Link = link
			}
		}
	}
	g.record("update calendar entry %d/%d: %v", categoryID, calendarID, fields)
	return true, nil
}

func (g *Gateway) AttachStreamLink(ctx context.Context, eventID int, url string) (*model.FileRef, error) {
	ref := model.FileRef{ID: g.nextFileID, EventID: eventID, Name: "Livestream", URL: url}
	g.nextFileID++
	g.data.Files = append(g.data.Files, ref)
	g.record("attach stream link %s to event %d", url, eventID)
	return &ref, nil
}

func (g *Gateway) DeleteFile(ctx context.Context, ref model.FileRef) error {
	kept := g.data.Files[:0]
	for _, f := range g.data.Files {
		if f.ID != ref.ID {
			kept = append(kept, f)
		}
	}
	g.data.Files = kept
	g.record("delete file %d (%s)", ref.ID, ref.Name)
	return nil
}

func (g *Gateway) DownloadFile(ctx context.Context, id int, name string) ([]byte, error) {
	return nil, fmt.Errorf("snapshot: contents of file %d (%s) not captured", id, name)
}

// --- BroadcastGateway ---

func (g *Gateway) ListScheduledAndActive(ctx context.Context) ([]model.Broadcast, error) {
	out := make([]model.Broadcast, 0, len(g.data.Broadcasts))
	for _, rec := range g.data.Broadcasts {
		b, err := g.toBroadcast(rec)
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, nil
}

func (g *Gateway) Create(ctx context.Context, meta model.BroadcastMeta) (*model.Broadcast, error) {
	rec := BroadcastRecord{
		ID:          fmt.Sprintf("vid%04d", len(g.data.Broadcasts)+1),
		Title:       meta.Title,
		Description: meta.Description,
		Start:       meta.Start.Format(model.TimeLayout),
		End:         meta.End.Format(model.TimeLayout),
		Privacy:     string(meta.Privacy),
		StreamKey:   meta.StreamKeyID,
		Lifecycle:   "upcoming",
	}
	g.data.Broadcasts = append(g.data.Broadcasts, rec)
	g.record("create broadcast %s (%s)", rec.ID, rec.Title)
	b, err := g.toBroadcast(rec)
	if err != nil {
		return nil, err
	}
	return &b, nil
}

func (g *Gateway) Update(ctx context.Context, b model.Broadcast, meta model.BroadcastMeta) (*model.Broadcast, error) {
	for i := range g.data.Broadcasts {
		if g.data.Broadcasts[i].ID == b.ID {
			g.data.Broadcasts[i].Title = meta.Title
			g.data.Broadcasts[i].Description = meta.Description
			g.data.Broadcasts[i].Start = meta.Start.Format(model.TimeLayout)
			g.data.Broadcasts[i].End = meta.End.Format(model.TimeLayout)
			g.data.Broadcasts[i].Privacy = string(meta.Privacy)
			g.data.Broadcasts[i].StreamKey = meta.StreamKeyID
			g.record("update broadcast %s (%s)", b.ID, meta.Title)
			updated, err := g.toBroadcast(g.data.Broadcasts[i])
			if err != nil {
				return nil, err
			}
			return &updated, nil
		}
	}
	return nil, fmt.Errorf("snapshot: broadcast %s not found", b.ID)
}

func (g *Gateway) Delete(ctx context.Context, b model.Broadcast) error {
	kept := g.data.Broadcasts[:0]
	found := false
	for _, rec := range g.data.Broadcasts {
		if rec.ID == b.ID {
			found = true
			continue
		}
		kept = append(kept, rec)
	}
	g.data.Broadcasts = kept
	if !found {
		return fmt.Errorf("snapshot: broadcast %s not found", b.ID)
	}
	g.record("delete broadcast %s", b.ID)
	return nil
}

func (g *Gateway) toBroadcast(rec BroadcastRecord) (model.Broadcast, error) {
	start, err := time.ParseInLocation(model.TimeLayout, rec.Start, g.loc)
	if err != nil {
		return model.Broadcast{}, fmt.Errorf("snapshot: broadcast %s: bad start %q: %w", rec.ID, rec.Start, err)
	}
	end, err := time.ParseInLocation(model.TimeLayout, rec.End, g.loc)
	if err != nil {
		return model.Broadcast{}, fmt.Errorf("snapshot: broadcast %s: bad end %q: %w", rec.ID, rec.End, err)
	}
	return model.Broadcast{
		ID:             rec.ID,
		Title:          rec.Title,
		Description:    rec.Description,
		ScheduledStart: start,
		ScheduledEnd:   end,
		Privacy:        model.PrivacyStatus(rec.Privacy),
		StreamKeyID:    rec.StreamKey,
		Lifecycle:      rec.Lifecycle,
	}, nil
}

// --- ContentGateway ---

func (g *Gateway) PageByID(ctx context.Context, id int) (*gateway.Page, error) {
	for _, p := range g.data.Pages {
		if p.ID == id {
			return &gateway.Page{ID: p.ID, Title: p.Title, Content: p.Content}, nil
		}
	}
	return nil, nil
}

func (g *Gateway) UpdatePage(ctx context.Context, page *gateway.Page) error {
	for i := range g.data.Pages {
		if g.data.Pages[i].ID == page.ID {
			g.data.Pages[i].Content = page.Content
			g.record("update page %d", page.ID)
			return nil
		}
	}
	return fmt.Errorf("snapshot: page %d not found", page.ID)
}

// Render produces a plain line-per-entry rendering, enough for dry runs
// and tests. The production content adapter owns real templates.
func (g *Gateway) Render(templateKey string, entries []model.PublicationEntry) (string, error) {
	ordered := make([]model.PublicationEntry, len(entries))
	copy(ordered, entries)
	sort.SliceStable(ordered, func(i, j int) bool { return ordered[i].ShowFrom.Before(ordered[j].ShowFrom) })

	var b strings.Builder
	fmt.Fprintf(&b, "<!-- %s -->\n", templateKey)
	for _, entry := range ordered {
		if !entry.VideoLink.Valid || !entry.OnHomepage {
			continue
		}
		fmt.Fprintf(&b, "%s | %s | %s | %s\n",
			entry.ShowFrom.Format(time.RFC3339),
			entry.End.Format(time.RFC3339),
			entry.Title,
			entry.VideoLink.URL,
		)
	}
	fmt.Fprintf(&b, "<!-- /%s -->", templateKey)
	return b.String(), nil
}
