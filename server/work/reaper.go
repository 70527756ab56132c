package work

import (
	"errors"
	"time"

	"github.com/snzark/crm/colors"
	"github.com/snzark/crm/server/models"
	"gorm.io/gorm"
)

// STUCK_JOB_MINUTES is how long a job may sit in-progress before it is requeued
const STUCK_JOB_MINUTES = 30

type stuckJobsReaper struct {
	stuckAfterMinutes uint
	sleepBackOff      time.Duration
	stopChan          chan struct{}
}

func newStuckJobsReaper(stuckAfterMinutes uint) *stuckJobsReaper {
	return &stuckJobsReaper{
		stuckAfterMinutes: stuckAfterMinutes,
		sleepBackOff:      time.Minute,
		stopChan:          make(chan struct{}),
	}
}

// start starts the reaper loop that pulls jobs from 'in-progress'
// that are stuck(i.e stayed too long in-progress) and requeue them
func (r *stuckJobsReaper) start() {
	go r.loop()
}

func (r *stuckJobsReaper) stop() {
	r.stopChan <- struct{}{}
}

func (r *stuckJobsReaper) loop() {
	rateLimiter := time.NewTicker(DefaultTickerDuration)
	defer rateLimiter.Stop()

	logg.Infof("Starting job reaper")
	for {
		select {
		case <-r.stopChan:
			logg.Infof("Stopping job reaper")
			return
		case <-rateLimiter.C:
			stuckJob, err := models.LastJobLastUpdated(r.stuckAfterMinutes, models.IN_PROGRESS_JOB)

			if errors.Is(err, gorm.ErrRecordNotFound) {
				rateLimiter.Reset(r.sleepBackOff)
				continue
			}

			if err != nil {
				r.logError(err)
				rateLimiter.Reset(TickerDurationOnError)
				continue
			}

			r.logInfof("fetched stuck job with id=%v, status_id=%v", stuckJob.ID, stuckJob.JobStatusID)
			r.requeue(stuckJob)
			rateLimiter.Reset(DefaultTickerDuration)
		}
	}
}

func (r *stuckJobsReaper) requeue(job *models.Job) {
	jobStatus, err := models.FindJobStatus(models.ENQUEUED_JOB)
	if err != nil {
		r.logError(err)
		return
	}

	err = job.Update(map[string]interface{}{
		"claimed":       false,
		"job_status_id": jobStatus.ID,
	})
	if err != nil {
		r.logError(err)
		return
	}

	r.logInfof("job with id=%v requeued", job.ID)
}

func (r *stuckJobsReaper) logInfof(template string, args ...interface{}) {
	prefix := colors.Yellow("[job reaper] ")
	logg.Infof(prefix+template, args...)
}

func (r *stuckJobsReaper) logError(err error) {
	prefix := colors.Red("[job reaper] ")
	logg.Error(prefix, err)
}
