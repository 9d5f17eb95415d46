// Package calendar creates Google Calendar events on behalf of the single
// configured account, authenticating with a stored OAuth refresh token.
package calendar

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	gcal "google.golang.org/api/calendar/v3"
	"google.golang.org/api/option"

	"github.com/claudioaldrian-source/asistente-macla-ia/internal/config"
)

// DefaultSummary is used when the caller gives no event title.
const DefaultSummary = "Evento"

// ErrMissingStart is returned when an event has no parseable start time.
var ErrMissingStart = errors.New("calendar: event start is required")

// EventInput describes an event to create. Times are RFC 3339.
type EventInput struct {
	Summary     string
	Description string
	StartISO    string
	EndISO      string
	Attendees   []string
}

// Event is the subset of the created event the assistant needs.
type Event struct {
	ID       string
	Summary  string
	HTMLLink string
	Start    time.Time
}

// Client inserts events into one calendar.
type Client struct {
	svc        *gcal.Service
	calendarID string
}

// New builds a Client from the OAuth client credentials and refresh token.
func New(ctx context.Context, cfg config.GoogleConfig) (*Client, error) {
	oc := &oauth2.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		RedirectURL:  cfg.RedirectURI,
		Endpoint:     google.Endpoint,
		Scopes:       []string{gcal.CalendarScope},
	}
	ts := oc.TokenSource(ctx, &oauth2.Token{RefreshToken: cfg.RefreshToken})
	return NewWithOptions(ctx, cfg.CalendarID, option.WithTokenSource(ts))
}

// NewWithOptions builds a Client with explicit API options.
func NewWithOptions(ctx context.Context, calendarID string, opts ...option.ClientOption) (*Client, error) {
	svc, err := gcal.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("calendar: new service: %w", err)
	}
	if calendarID == "" {
		calendarID = "primary"
	}
	return &Client{svc: svc, calendarID: calendarID}, nil
}

// CreateEvent inserts the event. A missing end defaults to one hour after
// the start; attendees are invited by email and default reminders apply.
func (c *Client) CreateEvent(ctx context.Context, in EventInput) (*Event, error) {
	start, err := time.Parse(time.RFC3339, strings.TrimSpace(in.StartISO))
	if err != nil {
		return nil, ErrMissingStart
	}
	end, err := time.Parse(time.RFC3339, strings.TrimSpace(in.EndISO))
	if err != nil || !end.After(start) {
		end = start.Add(time.Hour)
	}
	summary := strings.TrimSpace(in.Summary)
	if summary == "" {
		summary = DefaultSummary
	}

	ev := &gcal.Event{
		Summary:     summary,
		Description: in.Description,
		Start:       &gcal.EventDateTime{DateTime: start.Format(time.RFC3339)},
		End:         &gcal.EventDateTime{DateTime: end.Format(time.RFC3339)},
		Reminders:   &gcal.EventReminders{UseDefault: true},
	}
	for _, email := range in.Attendees {
		if email = strings.TrimSpace(email); email != "" {
			ev.Attendees = append(ev.Attendees, &gcal.EventAttendee{Email: email})
		}
	}

	created, err := c.svc.Events.Insert(c.calendarID, ev).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("calendar: insert event: %w", err)
	}

	out := &Event{ID: created.Id, Summary: created.Summary, HTMLLink: created.HtmlLink, Start: start}
	if created.Start != nil && created.Start.DateTime != "" {
		if t, err := time.Parse(time.RFC3339, created.Start.DateTime); err == nil {
			out.Start = t
		}
	}
	if out.Summary == "" {
		out.Summary = summary
	}
	return out, nil
}
