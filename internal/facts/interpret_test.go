package facts

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"livesync/internal/config"
	"livesync/internal/model"
)

func testInterpreter() *Interpreter {
	return NewInterpreter(config.DefaultConfig().Events, "public")
}

func TestInterpret_Defaults(t *testing.T) {
	flags := testInterpreter().Interpret(nil)

	assert.False(t, flags.LivestreamEnabled)
	assert.False(t, flags.LivestreamIgnored)
	assert.True(t, flags.LivestreamHomepage)
	assert.False(t, flags.LivestreamCalendar)
	assert.Equal(t, model.PrivacyPublic, flags.Privacy)
}

func TestInterpret_LivestreamFact(t *testing.T) {
	in := testInterpreter()

	flags := in.Interpret([]model.Fact{{Title: "Livestream", Value: "Ja"}})
	assert.True(t, flags.LivestreamEnabled)
	assert.False(t, flags.LivestreamIgnored)

	flags = in.Interpret([]model.Fact{{Title: "Livestream", Value: "Nein"}})
	assert.False(t, flags.LivestreamEnabled)
	assert.False(t, flags.LivestreamIgnored)

	flags = in.Interpret([]model.Fact{{Title: "Livestream", Value: "Ignorieren"}})
	assert.False(t, flags.LivestreamEnabled)
	assert.True(t, flags.LivestreamIgnored)
}

func TestInterpret_VisibilityMapping(t *testing.T) {
	in := testInterpreter()
	tests := []struct {
		value string
		want  model.PrivacyStatus
	}{
		{"Öffentlich", model.PrivacyPublic},
		{"Nur über einen Link", model.PrivacyUnlisted},
		{"Privat", model.PrivacyPrivate},
		{"irgendwas", model.PrivacyPublic}, // unmapped value keeps the default
	}
	for _, tt := range tests {
		t.Run(tt.value, func(t *testing.T) {
			flags := in.Interpret([]model.Fact{{Title: "Livestream Sichtbarkeit", Value: tt.value}})
			assert.Equal(t, tt.want, flags.Privacy)
		})
	}
}

func TestInterpret_VisibilityDefaultFallback(t *testing.T) {
	in := NewInterpreter(config.DefaultConfig().Events, "unlisted")
	flags := in.Interpret(nil)
	assert.Equal(t, model.PrivacyUnlisted, flags.Privacy)

	// Unknown configured default degrades to public.
	in = NewInterpreter(config.DefaultConfig().Events, "secret")
	flags = in.Interpret(nil)
	assert.Equal(t, model.PrivacyPublic, flags.Privacy)
}

func TestInterpret_RepeatedFacts(t *testing.T) {
	in := testInterpreter()

	// Boolean facts: the last fact wins.
	flags := in.Interpret([]model.Fact{
		{Title: "Livestream", Value: "Ja"},
		{Title: "Livestream", Value: "Nein"},
	})
	assert.False(t, flags.LivestreamEnabled)

	// Visibility: the first mapped fact wins.
	flags = in.Interpret([]model.Fact{
		{Title: "Livestream Sichtbarkeit", Value: "Privat"},
		{Title: "Livestream Sichtbarkeit", Value: "Öffentlich"},
	})
	assert.Equal(t, model.PrivacyPrivate, flags.Privacy)
}

func TestInterpret_UnknownTitlesIgnored(t *testing.T) {
	flags := testInterpreter().Interpret([]model.Fact{
		{Title: "Kaffee danach", Value: "Ja"},
		{Title: "Livestream auf der Homepage", Value: "Nein"},
		{Title: "Livestream im Kalender", Value: "Ja"},
	})
	assert.False(t, flags.LivestreamEnabled)
	assert.False(t, flags.LivestreamHomepage)
	assert.True(t, flags.LivestreamCalendar)
}
