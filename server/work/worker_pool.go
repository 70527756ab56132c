package work

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/pkg/errors"
	"github.com/snzark/crm/server/models"
)

type WorkerPool struct {
	handlers    map[string]Handler
	workers     []*worker
	concurrency int
	started     bool
	mu          sync.Mutex
}

func newWorkerPool(concurrency int) *WorkerPool {
	if concurrency < 1 {
		concurrency = 1
	}

	wp := WorkerPool{handlers: make(map[string]Handler), concurrency: concurrency}
	for i := 0; i < concurrency; i++ {
		wp.workers = append(wp.workers, newWorker(wp.handlers))
	}

	return &wp
}

// registerHandler binds a name to a job handler for all workers in pool.
// Handlers must be registered before the pool is started.
func (wp *WorkerPool) registerHandler(name string, handler Handler) error {
	wp.mu.Lock()
	defer wp.mu.Unlock()

	if wp.started {
		return fmt.Errorf("cannot register %q on a running worker pool", name)
	}

	if _, ok := wp.handlers[name]; ok {
		return ErrDuplicateHandler
	}

	wp.handlers[name] = handler
	return nil
}

// enqueue adds a job to the queue by creating a DB record based on the 'JobParams' provided
func (wp *WorkerPool) enqueue(job JobParams) (*models.Job, error) {
	if strings.TrimSpace(job.Name) == "" || strings.TrimSpace(job.Handler) == "" {
		return nil, fmt.Errorf("both a name & handler is required for a job")
	}

	if job.Args == nil {
		job.Args = map[string]interface{}{}
	}

	argsAsJson, err := json.Marshal(job.Args)
	if err != nil {
		return nil, errors.Wrap(err, "failed to encode job args")
	}

	return models.CreateJob(job.Name, job.Handler, string(argsAsJson), job.Unique)
}

// start starts all workers in pool i.e the workers can start processing jobs
func (wp *WorkerPool) start() {
	wp.mu.Lock()
	defer wp.mu.Unlock()

	if wp.started {
		return
	}
	wp.started = true

	for _, worker := range wp.workers {
		worker.start()
	}
}

// stop stops all workers in pool, waiting for jobs in progress to finish
func (wp *WorkerPool) stop() {
	wp.mu.Lock()
	defer wp.mu.Unlock()

	if !wp.started {
		return
	}

	wg := sync.WaitGroup{}
	for _, w := range wp.workers {
		wg.Add(1)
		go func(w *worker) {
			defer wg.Done()
			w.stop()
		}(w)
	}
	wg.Wait()
	wp.started = false
}
