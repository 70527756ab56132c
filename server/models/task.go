package models

import (
	"encoding/json"
	"time"

	"gorm.io/gorm"
)

const (
	MAX_TASK_ATTACHMENTS = 3

	DEFAULT_TASK_STATUS   = "todo"
	DEFAULT_TASK_PRIORITY = "medium"
)

var UpdatableTaskFields = map[string]bool{
	"title":       true,
	"description": true,
	"label":       true,
	"status":      true,
	"priority":    true,
	"dueDate":     true,
	"attachments": true,
}

type Attachment struct {
	Name string `json:"name" validate:"required,max=256"`
	Type string `json:"type,omitempty" validate:"max=128"`
	Size int64  `json:"size,omitempty" validate:"min=0"`
	URL  string `json:"url" validate:"required,url"`
}

type Task struct {
	BaseModel
	Title           string       `json:"title" validate:"required,min=2,max=46"`
	Description     string       `json:"description,omitempty" validate:"max=255"`
	Label           string       `json:"label,omitempty" validate:"omitempty,max=16,task_label"`
	Status          string       `json:"status" validate:"required,task_status"`
	Priority        string       `json:"priority" validate:"required,task_priority"`
	DueDate         *time.Time   `json:"dueDate,omitempty"`
	Attachments     []Attachment `json:"attachments" gorm:"serializer:json" validate:"max=3,dive"`
	CalendarEventID string       `json:"calendarEventId,omitempty"`
	OwnerID         uint         `json:"ownerId" gorm:"index"`
	CreatedBy       uint         `json:"createdBy"`
}

type TaskQuery struct {
	Status   string
	Page     int
	PageSize int
}

// CreateTask fills defaults, validates & stores task for ownerID.
func CreateTask(task *Task, ownerID uint) error {
	task.ID = 0
	task.OwnerID = ownerID
	task.CreatedBy = ownerID
	task.CalendarEventID = ""
	applyTaskDefaults(task)

	if err := ValidateStruct(task); err != nil {
		return err
	}

	return db.Create(task).Error
}

// FindTask returns the task only when it belongs to ownerID.
func FindTask(id interface{}, ownerID uint) (*Task, error) {
	task := Task{}
	err := db.First(&task, "id = ? AND owner_id = ?", id, ownerID).Error
	if err != nil {
		return nil, err
	}

	return &task, nil
}

// FindTaskByID looks a task up regardless of owner, for background jobs.
func FindTaskByID(id interface{}) (*Task, error) {
	task := Task{}
	err := db.First(&task, "id = ?", id).Error
	if err != nil {
		return nil, err
	}

	return &task, nil
}

func ListTasks(ownerID uint, query TaskQuery) ([]Task, *Paging, error) {
	var total int64
	tasks := []Task{}

	err := db.Model(&Task{}).Scopes(ownedBy(ownerID), withTaskStatus(query.Status)).Count(&total).Error
	if err != nil {
		return nil, nil, err
	}

	err = db.Scopes(ownedBy(ownerID), withTaskStatus(query.Status), paginate(query.Page, query.PageSize)).
		Order("id asc").Find(&tasks).Error
	if err != nil {
		return nil, nil, err
	}

	return tasks, newPaging(query.Page, query.PageSize, total), nil
}

// UpdateTask merges patch into an owned task, re-validates and saves it.
func UpdateTask(id interface{}, ownerID uint, patch map[string]interface{}) (*Task, error) {
	task, err := FindTask(id, ownerID)
	if err != nil {
		return nil, err
	}

	for field := range patch {
		if !UpdatableTaskFields[field] {
			delete(patch, field)
		}
	}

	patchBytes, err := json.Marshal(patch)
	if err != nil {
		return nil, err
	}

	updated := *task
	// attachments are replaced, not merged
	if _, ok := patch["attachments"]; ok {
		updated.Attachments = nil
	}
	if err := json.Unmarshal(patchBytes, &updated); err != nil {
		return nil, ValidationErrors{{Field: "body", Message: err.Error()}}
	}

	updated.BaseModel = task.BaseModel
	updated.OwnerID = task.OwnerID
	updated.CreatedBy = task.CreatedBy
	updated.CalendarEventID = task.CalendarEventID
	applyTaskDefaults(&updated)

	if err := ValidateStruct(&updated); err != nil {
		return nil, err
	}

	err = db.Save(&updated).Error
	if err != nil {
		return nil, err
	}

	return &updated, nil
}

func DeleteTask(id interface{}, ownerID uint) error {
	res := db.Delete(&Task{}, "id = ? AND owner_id = ?", id, ownerID)
	if res.Error != nil {
		return res.Error
	}

	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func SetTaskCalendarEvent(id uint, eventID string) error {
	return db.Model(&Task{}).Where("id = ?", id).Update("calendar_event_id", eventID).Error
}

// ---------------------------------------------------------------------------------//
// Scopes
// --------------------------------------------------------------------------------//

func ownedBy(ownerID uint) func(db *gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		return db.Where("owner_id = ?", ownerID)
	}
}

func withTaskStatus(status string) func(db *gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		if status == "" {
			return db
		}
		return db.Where("status = ?", status)
	}
}

// ---------------------------------------------------------------------------------//
// Helper functions
// --------------------------------------------------------------------------------//

func applyTaskDefaults(task *Task) {
	if task.Status == "" {
		task.Status = DEFAULT_TASK_STATUS
	}
	if task.Priority == "" {
		task.Priority = DEFAULT_TASK_PRIORITY
	}
	if task.Attachments == nil {
		task.Attachments = []Attachment{}
	}
}
