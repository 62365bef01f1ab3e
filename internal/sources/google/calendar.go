package google

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/hikitugu/handover/internal/sources"
	"google.golang.org/api/calendar/v3"
)

// CalendarClient reads the primary calendar of the token's owner
type CalendarClient struct {
	opts Options
}

// NewCalendarClient creates a calendar client
func NewCalendarClient(opts Options) *CalendarClient {
	return &CalendarClient{opts: opts}
}

// Events returns single (expanded) events starting in [from, to), ordered by
// start time. Cancelled events are skipped.
func (c *CalendarClient) Events(ctx context.Context, accessToken string, from, to time.Time, targetEmail string) ([]sources.Event, error) {
	svc, err := calendar.NewService(ctx, c.opts.clientOptions(accessToken)...)
	if err != nil {
		return nil, fmt.Errorf("failed to create calendar service: %w", err)
	}

	call := svc.Events.List("primary").
		TimeMin(from.Format(time.RFC3339)).
		TimeMax(to.Format(time.RFC3339)).
		SingleEvents(true).
		OrderBy("startTime").
		MaxResults(250)

	var out []sources.Event
	err = call.Pages(ctx, func(page *calendar.Events) error {
		for _, item := range page.Items {
			if item.Status == "cancelled" {
				continue
			}
			if targetEmail != "" && !involves(item, targetEmail) {
				continue
			}
			out = append(out, convertEvent(item))
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list calendar events: %w", err)
	}

	return out, nil
}

func involves(e *calendar.Event, email string) bool {
	if e.Organizer != nil && strings.EqualFold(e.Organizer.Email, email) {
		return true
	}
	for _, a := range e.Attendees {
		if a != nil && strings.EqualFold(a.Email, email) {
			return true
		}
	}
	return false
}

func convertEvent(e *calendar.Event) sources.Event {
	ev := sources.Event{
		ID:          e.Id,
		Summary:     e.Summary,
		Description: e.Description,
		Location:    e.Location,
		Link:        e.HtmlLink,
	}
	ev.Start, ev.AllDay = parseEventTime(e.Start)
	ev.End, _ = parseEventTime(e.End)
	if e.Organizer != nil {
		ev.Organizer = e.Organizer.Email
	}
	for _, a := range e.Attendees {
		if a != nil && a.Email != "" {
			ev.Attendees = append(ev.Attendees, a.Email)
		}
	}
	return ev
}

// parseEventTime reads either a timed (RFC3339) or all-day (date) boundary.
func parseEventTime(dt *calendar.EventDateTime) (time.Time, bool) {
	if dt == nil {
		return time.Time{}, false
	}
	if dt.DateTime != "" {
		t, err := time.Parse(time.RFC3339, dt.DateTime)
		if err == nil {
			return t, false
		}
	}
	if dt.Date != "" {
		t, err := time.Parse(time.DateOnly, dt.Date)
		if err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
