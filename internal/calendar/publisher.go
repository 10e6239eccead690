package calendar

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/oauth2"
	calapi "google.golang.org/api/calendar/v3"
	"google.golang.org/api/option"

	"github.com/sfuentes/agendabot/internal/auth"
)

// staticTokenSource serves the already-validated credential without
// attempting its own refresh; TokenRefresher owns refreshes.
type staticTokenSource struct {
	cred *auth.Credential
}

func (s staticTokenSource) Token() (*oauth2.Token, error) {
	return s.cred.Token(), nil
}

// Event is the extracted field set handed over for a calendar write.
type Event struct {
	Summary     string
	Location    string
	Description string
	StartTime   string // ISO-8601; required
	EndTime     string // ISO-8601; defaults to StartTime+1h when empty
}

// Result reports the outcome of a calendar write.
type Result struct {
	Success   bool
	EventID   string
	EventLink string
	Message   string
}

// Publisher inserts events into the user's primary Google Calendar. It
// receives a ready-to-use credential per call and holds none of its own.
type Publisher struct {
	timezone string
	logger   *slog.Logger
}

// NewPublisher creates a publisher writing events in the given timezone.
func NewPublisher(timezone string, logger *slog.Logger) *Publisher {
	return &Publisher{timezone: timezone, logger: logger}
}

// Insert writes the event to the primary calendar of the credential's
// owner. The credential must already be valid; refresh happens upstream.
func (p *Publisher) Insert(ctx context.Context, cred *auth.Credential, event Event) (Result, error) {
	if event.Summary == "" || event.StartTime == "" {
		return Result{Message: "event needs at least a title and a start time"}, fmt.Errorf("incomplete event")
	}

	endTime := event.EndTime
	if endTime == "" {
		end, err := defaultEnd(event.StartTime)
		if err != nil {
			return Result{Message: "could not understand the event start time"}, err
		}
		endTime = end
	}

	service, err := calapi.NewService(ctx,
		option.WithTokenSource(staticTokenSource{cred}),
	)
	if err != nil {
		return Result{Message: "could not connect to Google Calendar"}, err
	}

	body := &calapi.Event{
		Summary:     event.Summary,
		Location:    event.Location,
		Description: event.Description,
		Start:       &calapi.EventDateTime{DateTime: event.StartTime, TimeZone: p.timezone},
		End:         &calapi.EventDateTime{DateTime: endTime, TimeZone: p.timezone},
		Reminders:   &calapi.EventReminders{UseDefault: true, ForceSendFields: []string{"UseDefault"}},
	}

	created, err := service.Events.Insert("primary", body).Context(ctx).Do()
	if err != nil {
		p.logger.Error("calendar insert failed", "error", err)
		return Result{Message: "failed to create the event"}, err
	}

	return Result{
		Success:   true,
		EventID:   created.Id,
		EventLink: created.HtmlLink,
		Message:   "Event created successfully.",
	}, nil
}

// defaultEnd returns start+1h for events with no explicit end.
func defaultEnd(start string) (string, error) {
	t, err := parseISO(start)
	if err != nil {
		return "", err
	}
	return t.Add(time.Hour).Format(time.RFC3339), nil
}

// parseISO accepts the model's ISO output with or without an offset.
func parseISO(value string) (time.Time, error) {
	for _, layout := range []string{time.RFC3339, "2006-01-02T15:04:05"} {
		if t, err := time.Parse(layout, value); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized time %q", value)
}
