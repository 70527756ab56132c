package models

import (
	"errors"
	"time"

	"gorm.io/gorm"
)

var ErrDuplicateJob = errors.New("job with the given name already exists in queue")

const jobStatusJoin = "INNER JOIN job_statuses ON job_statuses.id = jobs.job_status_id AND job_statuses.name = ?"

type Job struct {
	BaseModel
	Fails       int        `json:"fails"`
	Name        string     `json:"name" gorm:"index"`
	Handler     string     `json:"handler"`
	Args        string     `json:"args"`
	LastError   string     `json:"lastError"`
	Claimed     bool       `json:"claimed" gorm:"default:false"`
	JobStatusID uint       `json:"jobStatusId"`
	JobStatus   *JobStatus `json:"status,omitempty"`
}

// MarkAsClaimed moves an unclaimed job to in-progress. It reports false when
// another worker got there first.
func (job *Job) MarkAsClaimed() (bool, error) {
	inProgressStatus, err := FindJobStatus(IN_PROGRESS_JOB)
	if err != nil {
		return false, err
	}

	res := db.Model(&Job{}).Where("id = ? AND claimed = ?", job.ID, false).Updates(map[string]interface{}{
		"claimed":       true,
		"job_status_id": inProgressStatus.ID,
	})
	if res.Error != nil {
		return false, res.Error
	}

	return res.RowsAffected > 0, nil
}

func (job *Job) Update(data map[string]interface{}) error {
	return db.Model(job).Updates(data).Error
}

// CreateJob enqueues a job. When unique is set and a job with the same name is
// already enqueued or in progress, ErrDuplicateJob is returned.
func CreateJob(name, handler, args string, unique bool) (*Job, error) {
	enqueued, err := FindJobStatus(ENQUEUED_JOB)
	if err != nil {
		return nil, err
	}

	if unique {
		inProgress, err := FindJobStatus(IN_PROGRESS_JOB)
		if err != nil {
			return nil, err
		}

		var count int64
		err = db.Model(&Job{}).
			Where("name = ? AND job_status_id IN ?", name, []uint{enqueued.ID, inProgress.ID}).
			Count(&count).Error
		if err != nil {
			return nil, err
		}

		if count > 0 {
			return nil, ErrDuplicateJob
		}
	}

	job := Job{
		Name:        name,
		Handler:     handler,
		Args:        args,
		JobStatusID: enqueued.ID,
	}

	err = db.Create(&job).Error
	if err != nil {
		return nil, err
	}

	return &job, nil
}

// NextEnqueuedJob returns the oldest unclaimed enqueued job.
func NextEnqueuedJob() (*Job, error) {
	job := Job{}
	err := db.Joins(jobStatusJoin, ENQUEUED_JOB).
		Where("jobs.claimed = ?", false).
		Order("jobs.id asc").First(&job).Error
	if err != nil {
		return nil, err
	}

	return &job, nil
}

func FindJob(id interface{}) (*Job, error) {
	job := Job{}
	err := db.Preload("JobStatus").First(&job, "id = ?", id).Error
	if err != nil {
		return nil, err
	}

	return &job, nil
}

// FetchJobs pages through jobs, newest first. An empty status returns every job.
func FetchJobs(status string, page int) ([]Job, *Paging, error) {
	var total int64
	jobs := []Job{}

	err := db.Model(&Job{}).Scopes(withJobStatus(status)).Count(&total).Error
	if err != nil {
		return nil, nil, err
	}

	err = db.Scopes(withJobStatus(status), paginate(page, MAX_PAGE_SIZE)).
		Preload("JobStatus").Order("jobs.id desc").Find(&jobs).Error
	if err != nil {
		return nil, nil, err
	}

	return jobs, newPaging(page, MAX_PAGE_SIZE, total), nil
}

func CurrentJobsStats() (*JobsStats, error) {
	stats := JobsStats{}

	counts := map[string]*int64{
		ENQUEUED_JOB:    &stats.Enqueued,
		IN_PROGRESS_JOB: &stats.InProgress,
		SUCCESSFUL_JOB:  &stats.Successful,
		DEAD_JOB:        &stats.Dead,
	}

	for status, count := range counts {
		err := db.Model(&Job{}).Scopes(withJobStatus(status)).Count(count).Error
		if err != nil {
			return nil, err
		}
	}

	return &stats, nil
}

// LastJobLastUpdated returns the most recent job in the given status whose last
// update is at least minutesAgo minutes old.
func LastJobLastUpdated(minutesAgo uint, status string) (*Job, error) {
	jobStatus, err := FindJobStatus(status)
	if err != nil {
		return nil, err
	}

	cutoff := time.Now().Add(-time.Duration(minutesAgo) * time.Minute)

	job := Job{}
	err = db.Where("job_status_id = ? AND updated_at <= ?", jobStatus.ID, cutoff).
		Order("id desc").First(&job).Error
	if err != nil {
		return nil, err
	}

	return &job, nil
}

// ---------------------------------------------------------------------------------//
// Scopes
// --------------------------------------------------------------------------------//

func withJobStatus(status string) func(db *gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		if status == "" {
			return db
		}
		return db.Joins(jobStatusJoin, status)
	}
}
