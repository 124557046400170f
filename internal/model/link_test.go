package model

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLink_Validation(t *testing.T) {
	assert.False(t, NewLink("").Valid)
	assert.False(t, NewLink("not a url").Valid)
	assert.False(t, NewLink("/relative/path").Valid)

	l := NewLink("https://example.org/calendar")
	assert.True(t, l.Valid)
	assert.Equal(t, "https://example.org/calendar", l.URL)
}

func TestLink_VideoID(t *testing.T) {
	tests := []struct {
		name string
		url  string
		want string
	}{
		{"watch url", "https://www.youtube.com/watch?v=dQw4w9WgXcQ", "dQw4w9WgXcQ"},
		{"watch url extra params", "https://youtube.com/watch?v=abc123&t=42", "abc123"},
		{"short url", "https://youtu.be/abc123", "abc123"},
		{"short url www", "https://www.youtu.be/xyz789", "xyz789"},
		{"unrelated url", "https://example.org/watch?v=abc", ""},
		{"plain page", "https://www.youtube.com/channel/UC123", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NewLink(tt.url).VideoID())
		})
	}
}

func TestLinkFromVideoID_RoundTrip(t *testing.T) {
	l := LinkFromVideoID("abc123")
	require.True(t, l.Valid)
	assert.Equal(t, "https://youtu.be/abc123", l.URL)
	assert.Equal(t, "abc123", l.VideoID())
	assert.True(t, l.IsVideoLink())
}

func TestLink_JSON(t *testing.T) {
	data, err := json.Marshal(NewLink("https://youtu.be/abc123"))
	require.NoError(t, err)
	assert.Equal(t, `"https://youtu.be/abc123"`, string(data))

	// Invalid links serialize as the empty string.
	data, err = json.Marshal(Link{})
	require.NoError(t, err)
	assert.Equal(t, `""`, string(data))

	var l Link
	require.NoError(t, json.Unmarshal([]byte(`"https://example.org/x"`), &l))
	assert.True(t, l.Valid)

	require.NoError(t, json.Unmarshal([]byte(`"garbage url"`), &l))
	assert.False(t, l.Valid)
}
