package calendar

import (
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRenderLink(t *testing.T) {
	link := RenderLink(Event{
		Summary:     "Dentist",
		Location:    "Downtown clinic",
		Description: "bring insurance card",
		StartTime:   "2026-09-01T10:00:00",
		EndTime:     "2026-09-01T11:30:00",
	})

	parsed, err := url.Parse(link)
	require.NoError(t, err)
	assert.Equal(t, "calendar.google.com", parsed.Host)
	assert.Equal(t, "/calendar/render", parsed.Path)

	q := parsed.Query()
	assert.Equal(t, "TEMPLATE", q.Get("action"))
	assert.Equal(t, "Dentist", q.Get("text"))
	assert.Equal(t, "Downtown clinic", q.Get("location"))
	assert.Equal(t, "bring insurance card", q.Get("details"))
	assert.Equal(t, "20260901T100000/20260901T113000", q.Get("dates"))
}

func TestRenderLink_DefaultsEndToOneHour(t *testing.T) {
	link := RenderLink(Event{Summary: "Standup", StartTime: "2026-09-01T09:15:00"})

	q := mustQuery(t, link)
	assert.Equal(t, "20260901T091500/20260901T101500", q.Get("dates"))
	assert.Empty(t, q.Get("location"))
	assert.Empty(t, q.Get("details"))
}

func TestRenderLink_UnparseableStartOmitsDates(t *testing.T) {
	link := RenderLink(Event{Summary: "Sometime", StartTime: "mañana"})

	q := mustQuery(t, link)
	assert.Equal(t, "Sometime", q.Get("text"))
	assert.Empty(t, q.Get("dates"))
}

func TestParseISO(t *testing.T) {
	withOffset, err := parseISO("2026-09-01T10:00:00-04:00")
	require.NoError(t, err)
	assert.Equal(t, 10, withOffset.Hour())

	naive, err := parseISO("2026-09-01T10:00:00")
	require.NoError(t, err)
	assert.Equal(t, time.UTC, naive.Location())

	_, err = parseISO("next tuesday")
	assert.Error(t, err)
}

func TestDefaultEnd(t *testing.T) {
	end, err := defaultEnd("2026-09-01T23:30:00")
	require.NoError(t, err)
	assert.Equal(t, "2026-09-02T00:30:00Z", end)

	_, err = defaultEnd("not a time")
	assert.Error(t, err)
}

func mustQuery(t *testing.T, link string) url.Values {
	t.Helper()
	parsed, err := url.Parse(link)
	require.NoError(t, err)
	return parsed.Query()
}
