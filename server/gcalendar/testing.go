package gcalendar

import "context"

type GCalendarAPIStub struct {
	CreatedEventID    string
	CreatedEventError error
	DeleteEventError  error
	Reminders         []Reminder
}

func (gcalAPI *GCalendarAPIStub) CreateEvent(ctx context.Context, reminder Reminder) (string, error) {
	gcalAPI.Reminders = append(gcalAPI.Reminders, reminder)
	return gcalAPI.CreatedEventID, gcalAPI.CreatedEventError
}

func (gcalAPI *GCalendarAPIStub) DeleteEvent(ctx context.Context, eventID string) error {
	return gcalAPI.DeleteEventError
}
