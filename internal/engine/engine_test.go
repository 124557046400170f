package engine

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"livesync/internal/gateway/snapshot"
	"livesync/internal/model"
)

func calendarEvent(streamURL, calendarURL string) *model.Event {
	ev := &model.Event{
		ID:                 101,
		CategoryID:         2,
		CalendarID:         555,
		Start:              time.Date(2026, 9, 6, 10, 0, 0, 0, mustBerlin()),
		End:                time.Date(2026, 9, 6, 11, 30, 0, 0, mustBerlin()),
		Title:              "Gottesdienst",
		LivestreamEnabled:  true,
		LivestreamCalendar: true,
		CalendarLink:       model.NewLink(calendarURL),
	}
	if streamURL != "" {
		ev.StreamLink = &model.FileRef{ID: 71, EventID: 101, URL: streamURL}
	}
	return ev
}

func TestCheckCalendarLink_Idempotent(t *testing.T) {
	eng, gw := newTestEngine(t, snapshot.File{Events: []model.RawEvent{testEvent()}})
	ev := calendarEvent("https://youtu.be/abc123", "https://youtu.be/abc123")

	// Published state already matches the declared one.
	require.NoError(t, eng.CheckCalendarLink(context.Background(), ev))
	assert.Empty(t, gw.Mutations)
}

func TestCheckCalendarLink_PublishesMissingLink(t *testing.T) {
	eng, gw := newTestEngine(t, snapshot.File{Events: []model.RawEvent{testEvent()}})
	ev := calendarEvent("https://youtu.be/abc123", "")

	require.NoError(t, eng.CheckCalendarLink(context.Background(), ev))
	assert.Equal(t, 1, mutationsContaining(gw, "update calendar entry 2/555"))
	assert.Equal(t, "https://youtu.be/abc123", ev.CalendarLink.URL)

	// A second pass sees matching state and stays quiet.
	require.NoError(t, eng.CheckCalendarLink(context.Background(), ev))
	assert.Equal(t, 1, mutationsContaining(gw, "update calendar entry 2/555"))
}

func TestCheckCalendarLink_RemovesStaleLink(t *testing.T) {
	eng, gw := newTestEngine(t, snapshot.File{Events: []model.RawEvent{testEvent()}})
	// Calendar flag off, but the calendar still carries the stream link.
	ev := calendarEvent("https://youtu.be/abc123", "https://youtu.be/abc123")
	ev.LivestreamCalendar = false

	require.NoError(t, eng.CheckCalendarLink(context.Background(), ev))
	assert.Equal(t, 1, mutationsContaining(gw, "update calendar entry 2/555"))
	assert.False(t, ev.CalendarLink.Valid)
}

func TestCheckCalendarLink_ForeignLinkIsLeftAlone(t *testing.T) {
	eng, gw := newTestEngine(t, snapshot.File{Events: []model.RawEvent{testEvent()}})
	// The calendar carries some other URL, not ours to remove.
	ev := calendarEvent("https://youtu.be/abc123", "https://example.org/info")
	ev.LivestreamCalendar = false

	require.NoError(t, eng.CheckCalendarLink(context.Background(), ev))
	assert.Empty(t, gw.Mutations)
}

func TestDeleteBroadcast_ClearsCalendarLink(t *testing.T) {
	eng, gw := newTestEngine(t, snapshot.File{
		Events: []model.RawEvent{testEvent()},
		Broadcasts: []snapshot.BroadcastRecord{{
			ID:    "abc123",
			Start: "2026-09-06 10:00:00",
			End:   "2026-09-06 11:30:00",
		}},
	})
	ev := calendarEvent("https://youtu.be/abc123", "https://youtu.be/abc123")
	ev.AttachBroadcast(&model.Broadcast{ID: "abc123"})

	require.NoError(t, eng.DeleteBroadcast(context.Background(), ev))
	assert.Equal(t, model.NoBroadcast, ev.State())
	assert.Nil(t, ev.StreamLink)
	assert.Equal(t, 1, mutationsContaining(gw, "delete broadcast abc123"))
	assert.Equal(t, 1, mutationsContaining(gw, "delete file 71"))
	assert.Equal(t, 1, mutationsContaining(gw, "update calendar entry 2/555"))
	assert.False(t, ev.CalendarLink.Valid)
}

func TestCreateBroadcast_ReleasesStaleStreamLink(t *testing.T) {
	eng, gw := newTestEngine(t, snapshot.File{
		Events: []model.RawEvent{testEvent()},
		Files: []model.FileRef{
			{ID: 71, EventID: 101, Name: "Livestream", URL: "https://youtu.be/gone"},
		},
	})
	// A stream link without a matching remote broadcast is stale.
	ev := calendarEvent("https://youtu.be/gone", "")
	ev.LivestreamCalendar = false

	require.NoError(t, eng.CreateBroadcast(context.Background(), ev))
	assert.Equal(t, model.BroadcastJustCreated, ev.State())
	assert.Equal(t, 1, mutationsContaining(gw, "delete file 71"))
	assert.Equal(t, 1, mutationsContaining(gw, "create broadcast"))
	require.NotNil(t, ev.StreamLink)
	assert.Equal(t, "https://youtu.be/vid0001", ev.StreamLink.URL)
}
