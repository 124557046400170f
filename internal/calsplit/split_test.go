package calsplit

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"livesync/internal/gateway"
	"livesync/internal/model"
)

// fakeSched implements gateway.SchedulingGateway for split tests; only
// the calendar operations carry behavior.
type fakeSched struct {
	payloads map[int]gateway.CalendarPayload
	impact   *gateway.ChangeImpact
	split    *gateway.SplitResult

	impactRequest gateway.CalendarPayload
	splitRequest  gateway.CalendarPayload
	splitCalled   bool
}

func (f *fakeSched) FetchAllEvents(context.Context) ([]model.RawEvent, error) { return nil, nil }
func (f *fakeSched) FetchEvent(context.Context, int) (model.RawEvent, error) {
	return model.RawEvent{}, errors.New("not implemented")
}
func (f *fakeSched) FetchAllFacts(context.Context) (map[int][]model.RawFact, error) {
	return nil, nil
}
func (f *fakeSched) FetchFactConfig(context.Context) (map[int]string, error) { return nil, nil }
func (f *fakeSched) FetchServiceTypes(context.Context) ([]model.ServiceType, error) {
	return nil, nil
}
func (f *fakeSched) FetchFiles(context.Context) ([]model.FileRef, error) { return nil, nil }

func (f *fakeSched) FetchCalendarData(_ context.Context, categoryID int) (map[int]gateway.CalendarPayload, error) {
	return f.payloads, nil
}

func (f *fakeSched) ComputeChangeImpact(_ context.Context, request gateway.CalendarPayload) (*gateway.ChangeImpact, error) {
	f.impactRequest = request
	return f.impact, nil
}

func (f *fakeSched) SaveSplitEvent(_ context.Context, request gateway.CalendarPayload) (*gateway.SplitResult, error) {
	f.splitCalled = true
	f.splitRequest = request
	return f.split, nil
}

func (f *fakeSched) UpdateCalendarEntry(context.Context, int, int, map[string]any) (bool, error) {
	return true, nil
}

func (f *fakeSched) AttachStreamLink(context.Context, int, string) (*model.FileRef, error) {
	return nil, errors.New("not implemented")
}
func (f *fakeSched) DeleteFile(context.Context, model.FileRef) error { return nil }
func (f *fakeSched) DownloadFile(context.Context, int, string) ([]byte, error) {
	return nil, errors.New("not implemented")
}

func noReload(context.Context, *model.Event) error { return nil }

func testLoc(t *testing.T) *time.Location {
	t.Helper()
	loc, err := time.LoadLocation("Europe/Berlin")
	require.NoError(t, err)
	return loc
}

func seriesEvent(loc *time.Location) *model.Event {
	return &model.Event{
		ID:           101,
		CategoryID:   2,
		CalendarID:   555,
		SeriesID:     7,
		Start:        time.Date(2026, 9, 20, 10, 0, 0, 0, loc),
		End:          time.Date(2026, 9, 20, 11, 30, 0, 0, loc),
		CalendarLink: model.NewLink("https://youtu.be/abc123"),
	}
}

// seriesPayload is a weekly series covering the event's occurrence.
func seriesPayload() gateway.CalendarPayload {
	return gateway.CalendarPayload{
		"id":               555,
		"startdate":        "2026-09-06 10:00:00",
		"enddate":          "2026-09-06 11:30:00",
		"repeat_id":        7,
		"repeat_frequence": 1,
		"csevents": map[string]any{
			"100": map[string]any{"id": 100, "startdate": "2026-09-13 10:00:00"},
			"101": map[string]any{"id": 101, "startdate": "2026-09-20 10:00:00"},
		},
		"exceptions": map[string]any{
			"-1": map[string]any{
				"id":                -1,
				"except_date_start": "2026-09-27",
				"except_date_end":   "2026-09-27",
			},
		},
	}
}

func cleanImpact() *gateway.ChangeImpact {
	return &gateway.ChangeImpact{
		Status: gateway.StatusSuccess,
		Data: map[string][]gateway.ImpactElement{
			"cal":      {{Status: "new", Name: "Gottesdienst"}},
			"services": {{Status: "new"}},
			"bookings": {},
		},
	}
}

func TestEnsureSingle_NonRecurringIsNoOp(t *testing.T) {
	loc := testLoc(t)
	sched := &fakeSched{}
	ev := seriesEvent(loc)
	ev.SeriesID = 0

	err := New(sched, loc).EnsureSingle(context.Background(), ev, noReload)
	require.NoError(t, err)
	assert.False(t, sched.splitCalled)
	assert.Nil(t, sched.impactRequest)
}

func TestEnsureSingle_SplitsSeriesMember(t *testing.T) {
	loc := testLoc(t)
	sched := &fakeSched{
		payloads: map[int]gateway.CalendarPayload{555: seriesPayload()},
		impact:   cleanImpact(),
		split:    &gateway.SplitResult{Status: gateway.StatusSuccess, NewID: 8001},
	}
	ev := seriesEvent(loc)

	reloaded := false
	reload := func(_ context.Context, ev *model.Event) error {
		reloaded = true
		// A reload brings back the stale link from the source.
		ev.CalendarLink = model.NewLink("https://example.org/stale")
		return nil
	}

	err := New(sched, loc).EnsureSingle(context.Background(), ev, reload)
	require.NoError(t, err)
	require.True(t, sched.splitCalled)
	assert.True(t, reloaded)
	// The freshly computed link survives the reload.
	assert.Equal(t, "https://youtu.be/abc123", ev.CalendarLink.URL)
}

func TestEnsureSingle_SplitRequestShape(t *testing.T) {
	loc := testLoc(t)
	sched := &fakeSched{
		payloads: map[int]gateway.CalendarPayload{555: seriesPayload()},
		impact:   cleanImpact(),
		split:    &gateway.SplitResult{Status: gateway.StatusSuccess, NewID: 8001},
	}
	ev := seriesEvent(loc)

	err := New(sched, loc).EnsureSingle(context.Background(), ev, noReload)
	require.NoError(t, err)

	request := sched.splitRequest
	assert.Equal(t, "2026-09-20 10:00", request["splitDate"])
	assert.Equal(t, 0, request["untilEnd_yn"])
	assert.Equal(t, 1, request["browsertabId"])

	origin, ok := request["originEvent"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, 555, origin["id"])

	newEvent, ok := request["newEvent"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, 555, newEvent["old_id"])
	assert.NotContains(t, newEvent, "id")
	assert.NotContains(t, newEvent, "exceptions")
	assert.Equal(t, 0, newEvent["repeat_id"])
	assert.Equal(t, "2026-09-20 10:00:00", newEvent["startdate"])
	assert.Equal(t, "2026-09-20 11:30:00", newEvent["enddate"])
	newCs, ok := newEvent["csevents"].(map[string]any)
	require.True(t, ok)
	require.Len(t, newCs, 1)
	marked, ok := newCs["101"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, true, marked["mark"])

	pastEvent, ok := request["pastEvent"].(map[string]any)
	require.True(t, ok)
	pastCs, ok := pastEvent["csevents"].(map[string]any)
	require.True(t, ok)
	assert.NotContains(t, pastCs, "101")
	assert.Contains(t, pastCs, "100")
	// The new exception id is the previous minimum minus one.
	exceptions, ok := pastEvent["exceptions"].(map[string]any)
	require.True(t, ok)
	added, ok := exceptions["-2"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, -2, added["id"])
	assert.Equal(t, "2026-09-20", added["except_date_start"])
	assert.Equal(t, "2026-09-20", added["except_date_end"])
	assert.Equal(t, -2, pastEvent["exceptionids"])

	// The source payload itself stays untouched.
	original := sched.payloads[555]
	originalCs := original["csevents"].(map[string]any)
	assert.Contains(t, originalCs, "101")
	assert.Len(t, original["exceptions"].(map[string]any), 1)
}

func TestEnsureSingle_ConflictAborts(t *testing.T) {
	loc := testLoc(t)
	impact := cleanImpact()
	impact.Data["services"] = []gateway.ImpactElement{{Status: "moved", Name: "Predigt"}}
	sched := &fakeSched{
		payloads: map[int]gateway.CalendarPayload{555: seriesPayload()},
		impact:   impact,
	}
	ev := seriesEvent(loc)

	err := New(sched, loc).EnsureSingle(context.Background(), ev, noReload)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrConflict))

	var conflict *ConflictError
	require.ErrorAs(t, err, &conflict)
	assert.Equal(t, "services", conflict.Category)
	assert.Equal(t, "moved", conflict.Status)

	// The split must not have been submitted; the link is unchanged.
	assert.False(t, sched.splitCalled)
	assert.Equal(t, "https://youtu.be/abc123", ev.CalendarLink.URL)
}

func TestEnsureSingle_OccurrenceOutsideSeries(t *testing.T) {
	loc := testLoc(t)
	sched := &fakeSched{
		payloads: map[int]gateway.CalendarPayload{555: seriesPayload()},
		impact:   cleanImpact(),
	}
	ev := seriesEvent(loc)
	// A Wednesday never generated by the weekly rule.
	ev.Start = time.Date(2026, 9, 23, 10, 0, 0, 0, loc)
	ev.End = time.Date(2026, 9, 23, 11, 30, 0, 0, loc)

	err := New(sched, loc).EnsureSingle(context.Background(), ev, noReload)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrConflict))
	assert.False(t, sched.splitCalled)
}

func TestEnsureSingle_MissingCalendarEntry(t *testing.T) {
	loc := testLoc(t)
	sched := &fakeSched{payloads: map[int]gateway.CalendarPayload{}}
	ev := seriesEvent(loc)

	err := New(sched, loc).EnsureSingle(context.Background(), ev, noReload)
	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrConflict))
}

func TestBuildSplitRequest_MissingOccurrence(t *testing.T) {
	loc := testLoc(t)
	payload := seriesPayload()
	delete(payload["csevents"].(map[string]any), "101")

	_, err := buildSplitRequest(payload, seriesEvent(loc))
	require.Error(t, err)
}
