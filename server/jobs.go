package server

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/pkg/errors"
	"github.com/snzark/crm/server/gcalendar"
	"github.com/snzark/crm/server/mailer"
	"github.com/snzark/crm/server/models"
	"github.com/snzark/crm/server/work"
	"github.com/snzark/crm/shared"
)

const (
	SEND_EMAIL_HANDLER         = "send_email"
	SEND_SMS_HANDLER           = "send_sms"
	SYNC_TASK_CALENDAR_HANDLER = "sync_task_calendar"
	BACKUP_DB_HANDLER          = "backup_db"

	jobTimeout = time.Minute
)

func registerJobHandlers(wpa *work.WorkerPoolAdapter) error {
	handlers := map[string]work.Handler{
		SEND_EMAIL_HANDLER:         sendEmail,
		SEND_SMS_HANDLER:           sendSms,
		SYNC_TASK_CALENDAR_HANDLER: syncTaskCalendar,
		BACKUP_DB_HANDLER:          backupDatabase,
	}

	for name, handler := range handlers {
		if err := wpa.Register(name, handler); err != nil {
			return errors.Wrapf(err, "unable to register %v", name)
		}
	}
	return nil
}

func schedulePeriodicJobs(wpa *work.WorkerPoolAdapter, config shared.StorageConfig) error {
	if !config.EnableBackup {
		return nil
	}

	return wpa.PeriodicallyPerform(config.BackupSchedule, work.JobParams{
		Name:    BACKUP_DB_HANDLER,
		Handler: BACKUP_DB_HANDLER,
		Unique:  true,
		Args:    map[string]interface{}{},
	})
}

// ---------------------------------------------------------------------------------//
// Enqueue helpers
// --------------------------------------------------------------------------------//

func enqueueEmail(name string, msg mailer.Message) error {
	return workerPool.Perform(work.JobParams{
		Name:    name,
		Handler: SEND_EMAIL_HANDLER,
		Args: map[string]interface{}{
			"to":      msg.To,
			"subject": msg.Subject,
			"text":    msg.Text,
			"html":    msg.HTML,
		},
	})
}

// notifyTaskScheduled queues the calendar sync & an SMS for a task with a due date.
func notifyTaskScheduled(task *models.Task, ownerID uint) {
	if task.DueDate == nil {
		return
	}

	err := workerPool.Perform(work.JobParams{
		Name:    fmt.Sprintf("%v_%v", SYNC_TASK_CALENDAR_HANDLER, task.ID),
		Handler: SYNC_TASK_CALENDAR_HANDLER,
		Unique:  true,
		Args:    map[string]interface{}{"taskId": task.ID},
	})
	if err != nil {
		logg.Error(err)
	}

	owner, err := models.FindUserBy("id", ownerID)
	if err != nil || owner.PhoneNumber == "" {
		return
	}

	err = workerPool.Perform(work.JobParams{
		Name:    fmt.Sprintf("task_due_sms_%v_%v", task.ID, task.DueDate.Unix()),
		Handler: SEND_SMS_HANDLER,
		Unique:  true,
		Args: map[string]interface{}{
			"to":   owner.PhoneNumber,
			"body": fmt.Sprintf("CRM: task %q is due %v", task.Title, task.DueDate.Format("Mon Jan 2 15:04 MST")),
		},
	})
	if err != nil {
		logg.Error(err)
	}
}

// ---------------------------------------------------------------------------------//
// Job handlers
// --------------------------------------------------------------------------------//

func sendEmail(args map[string]interface{}) error {
	msg := mailer.Message{}
	if err := decodeJobArgs(args, &msg); err != nil {
		return err
	}

	return mailService.Send(msg)
}

func sendSms(args map[string]interface{}) error {
	params := struct {
		To   string `json:"to"`
		Body string `json:"body"`
	}{}
	if err := decodeJobArgs(args, &params); err != nil {
		return err
	}

	if params.To == "" {
		return errors.New("send_sms: recipient is required")
	}

	return smsService.SendMessage(params.To, params.Body)
}

func syncTaskCalendar(args map[string]interface{}) error {
	if calendarAPI == nil {
		logg.Info("Calendar sync is disabled, skipping task reminder")
		return nil
	}

	taskID, err := uintArg(args, "taskId")
	if err != nil {
		return err
	}

	task, err := models.FindTaskByID(taskID)
	if err != nil {
		return errors.Wrapf(err, "sync_task_calendar: task %v", taskID)
	}

	ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
	defer cancel()

	if task.CalendarEventID != "" {
		if err := calendarAPI.DeleteEvent(ctx, task.CalendarEventID); err != nil {
			logg.Warnf("unable to delete calendar event %v: %v", task.CalendarEventID, err)
		}
	}

	if task.DueDate == nil {
		return models.SetTaskCalendarEvent(task.ID, "")
	}

	eventID, err := calendarAPI.CreateEvent(ctx, gcalendar.Reminder{
		Summary:     "Task due: " + task.Title,
		Description: task.Description,
		Start:       *task.DueDate,
	})
	if err != nil {
		return err
	}

	return models.SetTaskCalendarEvent(task.ID, eventID)
}

func backupDatabase(map[string]interface{}) error {
	filePath := models.SqliteFilePath()
	if backupStorage == nil || filePath == "" {
		logg.Info("Database backup skipped, only sqlite databases are backed up to google storage")
		return nil
	}

	err := models.Checkpoint()
	if err != nil {
		return errors.Wrap(err, "backup_db: checkpoint failed")
	}

	ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
	defer cancel()

	_, err = backupStorage.UploadFile(ctx, filePath)
	return err
}

func decodeJobArgs(args map[string]interface{}, value interface{}) error {
	argsBytes, err := json.Marshal(args)
	if err != nil {
		return err
	}
	return json.Unmarshal(argsBytes, value)
}

func uintArg(args map[string]interface{}, name string) (uint, error) {
	switch v := args[name].(type) {
	case float64:
		return uint(v), nil
	case string:
		id, err := strconv.ParseUint(v, 10, 64)
		return uint(id), err
	}
	return 0, fmt.Errorf("job arg %v is missing", name)
}
