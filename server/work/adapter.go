package work

import (
	"errors"
	"fmt"
	"time"

	"github.com/go-co-op/gocron"
	"github.com/snzark/crm/server/models"
)

const DEFAULT_CONCURRENCY = 2

// WorkerPoolAdapter ties the db backed worker pool, the stuck job reaper
// and a cron scheduler for periodic jobs together.
type WorkerPoolAdapter struct {
	cronScheduler *gocron.Scheduler
	pool          *WorkerPool
	reaper        *stuckJobsReaper
}

func NewWorkerAdapter(timeZone string, concurrency int) *WorkerPoolAdapter {
	return &WorkerPoolAdapter{
		cronScheduler: newCronScheduler(timeZone),
		pool:          newWorkerPool(concurrency),
		reaper:        newStuckJobsReaper(STUCK_JOB_MINUTES),
	}
}

// Start starts the cron scheduler, reaper & worker pool
func (adapter *WorkerPoolAdapter) Start() {
	logg.Info("Starting cron scheduler & worker pool")
	adapter.cronScheduler.StartAsync()
	adapter.reaper.start()
	adapter.pool.start()
}

// Stop stops the cron scheduler, reaper & worker pool
func (adapter *WorkerPoolAdapter) Stop() {
	logg.Info("Stopping cron scheduler & worker pool")
	adapter.cronScheduler.Stop()
	adapter.reaper.stop()
	adapter.pool.stop()
}

// Register binds a name to a handler.
func (adapter *WorkerPoolAdapter) Register(name string, handler Handler) error {
	return adapter.pool.registerHandler(name, handler)
}

// Perform sends a new job to the queue, to be executed as soon as a worker is available
func (adapter *WorkerPoolAdapter) Perform(job JobParams) error {
	logg.Infof("Enqueuing job: name=%v handler=%v", job.Name, job.Handler)

	_, err := adapter.pool.enqueue(job)
	if errors.Is(err, models.ErrDuplicateJob) {
		logg.Warnf("Duplicate job already in queue for: %v", job.Name)
		return nil
	}

	if err != nil {
		return fmt.Errorf("error enqueuing job %v: %v", job.Name, err)
	}

	return nil
}

// PeriodicallyPerform adds a job to the queue periodically,
// based on the 'cronExpression' provided
func (adapter *WorkerPoolAdapter) PeriodicallyPerform(cronExpression string, job JobParams) error {
	_, err := adapter.cronScheduler.Cron(cronExpression).Tag(job.Name).Do(
		func(job JobParams) {
			err := adapter.Perform(job)
			if err != nil {
				logg.Error(err)
			}
		},
		job,
	)
	if err != nil {
		return fmt.Errorf("unable to schedule %v with %q: %v", job.Name, cronExpression, err)
	}

	return nil
}

func (adapter *WorkerPoolAdapter) RemovePeriodicJob(jobName string) error {
	return adapter.cronScheduler.RemoveByTag(jobName)
}

func newCronScheduler(timeZone string) *gocron.Scheduler {
	location, err := time.LoadLocation(timeZone)
	if err != nil {
		logg.Warnf("Unknown time zone %q, falling back to UTC", timeZone)
		location = time.UTC
	}

	scheduler := gocron.NewScheduler(location)
	scheduler.TagsUnique()
	return scheduler
}
