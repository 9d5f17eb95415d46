package calendar

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"google.golang.org/api/option"
)

func newFakeCalendar(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	c, err := NewWithOptions(context.Background(), "",
		option.WithEndpoint(srv.URL+"/"),
		option.WithHTTPClient(srv.Client()),
	)
	if err != nil {
		t.Fatalf("NewWithOptions: %v", err)
	}
	return c
}

func TestCreateEvent_DefaultsAndAttendees(t *testing.T) {
	var body map[string]any
	c := newFakeCalendar(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || !strings.HasSuffix(r.URL.Path, "/calendars/primary/events") {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"id":       "ev1",
			"htmlLink": "https://calendar.google.com/event?eid=ev1",
			"start":    map[string]any{"dateTime": "2030-05-01T15:00:00-03:00"},
		})
	})

	ev, err := c.CreateEvent(context.Background(), EventInput{
		StartISO:  "2030-05-01T18:00:00Z",
		Attendees: []string{" ana@example.com ", ""},
	})
	if err != nil {
		t.Fatalf("CreateEvent: %v", err)
	}
	if ev.ID != "ev1" || ev.Summary != DefaultSummary || ev.HTMLLink == "" {
		t.Fatalf("unexpected event: %+v", ev)
	}
	if !ev.Start.Equal(time.Date(2030, 5, 1, 18, 0, 0, 0, time.UTC)) {
		t.Fatalf("start = %v", ev.Start)
	}

	if body["summary"] != DefaultSummary {
		t.Fatalf("summary sent = %v", body["summary"])
	}
	end := body["end"].(map[string]any)["dateTime"]
	if end != "2030-05-01T19:00:00Z" {
		t.Fatalf("default end = %v", end)
	}
	att := body["attendees"].([]any)
	if len(att) != 1 || att[0].(map[string]any)["email"] != "ana@example.com" {
		t.Fatalf("attendees = %v", att)
	}
	if rem := body["reminders"].(map[string]any); rem["useDefault"] != true {
		t.Fatalf("reminders = %v", rem)
	}
}

func TestCreateEvent_MissingStart(t *testing.T) {
	c := newFakeCalendar(t, func(w http.ResponseWriter, r *http.Request) {
		t.Errorf("no request expected")
	})
	if _, err := c.CreateEvent(context.Background(), EventInput{Summary: "x"}); !errors.Is(err, ErrMissingStart) {
		t.Fatalf("want ErrMissingStart, got %v", err)
	}
}

func TestCreateEvent_APIError(t *testing.T) {
	c := newFakeCalendar(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":{"code":403,"message":"forbidden"}}`, http.StatusForbidden)
	})
	if _, err := c.CreateEvent(context.Background(), EventInput{StartISO: "2030-05-01T18:00:00Z"}); err == nil {
		t.Fatalf("expected error on 403")
	}
}
