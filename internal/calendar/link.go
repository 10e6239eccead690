package calendar

import (
	"net/url"
	"time"
)

const renderBaseURL = "https://calendar.google.com/calendar/render"

// RenderLink builds an add-to-calendar URL that needs no API access, used
// when the user has not connected their account.
func RenderLink(event Event) string {
	params := url.Values{}
	params.Set("action", "TEMPLATE")
	params.Set("text", event.Summary)
	if event.Description != "" {
		params.Set("details", event.Description)
	}
	if event.Location != "" {
		params.Set("location", event.Location)
	}

	if start, err := parseISO(event.StartTime); err == nil {
		end := start.Add(time.Hour)
		if event.EndTime != "" {
			if parsed, err := parseISO(event.EndTime); err == nil {
				end = parsed
			}
		}
		const layout = "20060102T150405"
		params.Set("dates", start.Format(layout)+"/"+end.Format(layout))
	}

	return renderBaseURL + "?" + params.Encode()
}
