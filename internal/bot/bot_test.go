package bot

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"

	"github.com/sfuentes/agendabot/internal/calendar"
)

func TestFormatEvent(t *testing.T) {
	out := formatEvent(calendar.Event{
		Summary:     "Dentist",
		StartTime:   "2026-09-01T10:00:00",
		Location:    "Downtown clinic",
		Description: "bring insurance card",
	})

	assert.Contains(t, out, "📅 *Dentist*")
	assert.Contains(t, out, "📆 2026-09-01T10:00:00")
	assert.Contains(t, out, "📍 Downtown clinic")
	assert.Contains(t, out, "📝 bring insurance card")
}

func TestFormatEvent_OmitsEmptyFields(t *testing.T) {
	out := formatEvent(calendar.Event{Summary: "Standup", StartTime: "2026-09-01T09:15:00"})

	assert.NotContains(t, out, "📍")
	assert.NotContains(t, out, "📝")
}

func TestFormatEvent_TruncatesLongDescription(t *testing.T) {
	out := formatEvent(calendar.Event{
		Summary:     "Conference",
		StartTime:   "2026-09-01T09:00:00",
		Description: strings.Repeat("a", 500),
	})

	assert.Contains(t, out, strings.Repeat("a", 197)+"...")
	assert.NotContains(t, out, strings.Repeat("a", 198))
}

func TestFormatEvent_TruncatesOnRuneBoundary(t *testing.T) {
	out := formatEvent(calendar.Event{
		Summary:     "Fiesta",
		StartTime:   "2026-09-01T21:00:00",
		Description: strings.Repeat("ñ", 300),
	})

	assert.True(t, utf8.ValidString(out))
	assert.Contains(t, out, strings.Repeat("ñ", 197)+"...")
	assert.NotContains(t, out, strings.Repeat("ñ", 198))
}
