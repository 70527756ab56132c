package work

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/snzark/crm/server/models"
	"github.com/stretchr/testify/assert"
)

func TestPerform(t *testing.T) {
	models.InitializeTestDb()

	workerPool := NewWorkerAdapter("UTC", 1)

	var mu sync.Mutex
	greetings := []string{}

	err := workerPool.Register("greet", func(args map[string]interface{}) error {
		mu.Lock()
		defer mu.Unlock()
		greetings = append(greetings, "Hello "+args["name"].(string))
		return nil
	})
	assert.Nil(t, err)
	assert.Equal(t, ErrDuplicateHandler, workerPool.Register("greet", nil))

	err = workerPool.Perform(JobParams{
		Name:    "greet_jane",
		Handler: "greet",
		Args:    map[string]interface{}{"name": "Jane"},
	})
	assert.Nil(t, err)

	workerPool.Start()
	defer workerPool.Stop()

	assert.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(greetings) == 1
	}, 5*time.Second, 50*time.Millisecond, "Expected job to be processed")
	assert.Equal(t, "Hello Jane", greetings[0])

	assert.Eventually(t, func() bool {
		stats, err := models.CurrentJobsStats()
		return err == nil && stats.Successful == 1
	}, 5*time.Second, 50*time.Millisecond, "Expected job to be marked as successful")
}

func TestFailingJobEventuallyDies(t *testing.T) {
	models.InitializeTestDb()

	workerPool := NewWorkerAdapter("UTC", 1)
	err := workerPool.Register("explode", func(args map[string]interface{}) error {
		return errors.New("boom")
	})
	assert.Nil(t, err)

	err = workerPool.Perform(JobParams{Name: "explode", Handler: "explode"})
	assert.Nil(t, err)

	workerPool.Start()
	defer workerPool.Stop()

	assert.Eventually(t, func() bool {
		stats, err := models.CurrentJobsStats()
		return err == nil && stats.Dead == 1
	}, 5*time.Second, 50*time.Millisecond, "Expected job to be dead after MAX_FAILS attempts")

	jobs, _, err := models.FetchJobs(models.DEAD_JOB, 1)
	assert.Nil(t, err)
	assert.Equal(t, MAX_FAILS, jobs[0].Fails)
	assert.Equal(t, "boom", jobs[0].LastError)
}

func TestPeriodicallyPerform(t *testing.T) {
	models.InitializeTestDb()

	workerPool := NewWorkerAdapter("America/Toronto", 1)
	err := workerPool.PeriodicallyPerform("not a cron", JobParams{Name: "backup_db", Handler: "backup_db"})
	assert.NotNil(t, err)

	err = workerPool.PeriodicallyPerform("0 3 * * *", JobParams{Name: "backup_db", Handler: "backup_db"})
	assert.Nil(t, err)
	assert.Nil(t, workerPool.RemovePeriodicJob("backup_db"))
}
