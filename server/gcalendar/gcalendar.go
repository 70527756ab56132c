package gcalendar

import (
	"context"
	"fmt"
	"time"

	"google.golang.org/api/calendar/v3"
	"google.golang.org/api/option"
)

const DEFAULT_REMINDER_MINUTES = 30

// Reminder is a calendar event created for a task's due date.
type Reminder struct {
	Summary     string
	Description string
	Start       time.Time
	Duration    time.Duration
}

type GCalendarAPIInterface interface {
	// CreateEvent creates a calendar event for the reminder and returns its ID
	CreateEvent(ctx context.Context, reminder Reminder) (string, error)

	// DeleteEvent removes a previously created event
	DeleteEvent(ctx context.Context, eventID string) error
}

type GCalendarAPI struct {
	service    *calendar.Service
	calendarID string
	timeZone   string
}

// NewGoogleCalendarAPI authenticates with a service account credentials file.
// An empty path falls back to application default credentials.
func NewGoogleCalendarAPI(ctx context.Context, credentialsFilePath, calendarID, timeZone string) (*GCalendarAPI, error) {
	opts := []option.ClientOption{option.WithScopes(calendar.CalendarEventsScope)}
	if credentialsFilePath != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFilePath))
	}

	service, err := calendar.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("unable to retrieve Calendar client: %v", err)
	}

	if timeZone == "" {
		timeZone = "UTC"
	}

	return &GCalendarAPI{service: service, calendarID: calendarID, timeZone: timeZone}, nil
}

func (gcalAPI *GCalendarAPI) CreateEvent(ctx context.Context, reminder Reminder) (string, error) {
	event, err := gcalAPI.service.Events.Insert(gcalAPI.calendarID, NewEvent(reminder, gcalAPI.timeZone)).
		Context(ctx).Do()
	if err != nil {
		return "", err
	}

	return event.Id, nil
}

func (gcalAPI *GCalendarAPI) DeleteEvent(ctx context.Context, eventID string) error {
	return gcalAPI.service.Events.Delete(gcalAPI.calendarID, eventID).Context(ctx).Do()
}

// NewEvent builds the calendar event for reminder, with a popup before it starts.
func NewEvent(reminder Reminder, timeZone string) *calendar.Event {
	duration := reminder.Duration
	if duration <= 0 {
		duration = 30 * time.Minute
	}

	return &calendar.Event{
		Summary:     reminder.Summary,
		Description: reminder.Description,
		Start: &calendar.EventDateTime{
			DateTime: reminder.Start.Format(time.RFC3339),
			TimeZone: timeZone,
		},
		End: &calendar.EventDateTime{
			DateTime: reminder.Start.Add(duration).Format(time.RFC3339),
			TimeZone: timeZone,
		},
		Reminders: &calendar.EventReminders{
			Overrides: []*calendar.EventReminder{
				{
					Method:  "popup",
					Minutes: DEFAULT_REMINDER_MINUTES,
				},
			},
			ForceSendFields: []string{"UseDefault"},
		},
	}
}
