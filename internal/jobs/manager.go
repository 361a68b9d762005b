package jobs

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/maltedev/catalog-price-scraper/internal/catalog"
)

var (
	ErrJobRunning  = errors.New("a crawl job is already running")
	ErrJobNotFound = errors.New("job not found")
	ErrClosed      = errors.New("job manager is closed")
)

type Status string

const (
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// Runner executes one complete crawl.
type Runner interface {
	Run(ctx context.Context) (*catalog.Report, error)
}

// Job is a crawl started through the API.
type Job struct {
	ID           string     `json:"id"`
	Status       Status     `json:"status"`
	CreatedAt    time.Time  `json:"created_at"`
	CompletedAt  *time.Time `json:"completed_at,omitempty"`
	RunID        string     `json:"run_id,omitempty"`
	WorkbookPath string     `json:"workbook_path,omitempty"`
	Categories   int        `json:"categories"`
	Products     int        `json:"products"`
	SinkFailures int        `json:"sink_failures"`
	Error        string     `json:"error,omitempty"`
}

// Manager runs crawl jobs in the background, one at a time. Jobs are kept
// in memory; completed runs are archived by the run store.
type Manager struct {
	runner Runner
	logger *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu      sync.RWMutex
	jobs    map[string]*Job
	running string
	closed  bool
}

func NewManager(runner Runner, logger *slog.Logger) *Manager {
	ctx, cancel := context.WithCancel(context.Background())
	return &Manager{
		runner: runner,
		logger: logger.With("component", "job_manager"),
		ctx:    ctx,
		cancel: cancel,
		jobs:   make(map[string]*Job),
	}
}

// Start launches a crawl unless one is already running.
func (m *Manager) Start() (Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return Job{}, ErrClosed
	}
	if m.running != "" {
		return Job{}, ErrJobRunning
	}

	job := &Job{
		ID:        uuid.New().String(),
		Status:    StatusRunning,
		CreatedAt: time.Now().UTC(),
	}
	m.jobs[job.ID] = job
	m.running = job.ID

	m.wg.Add(1)
	go m.run(job.ID)

	m.logger.Info("job started", "id", job.ID)
	return *job, nil
}

func (m *Manager) run(id string) {
	defer m.wg.Done()

	report, err := m.runner.Run(m.ctx)

	m.mu.Lock()
	defer m.mu.Unlock()

	job := m.jobs[id]
	now := time.Now().UTC()
	job.CompletedAt = &now
	m.running = ""

	if err != nil {
		job.Status = StatusFailed
		job.Error = err.Error()
		m.logger.Error("job failed", "id", id, "error", err)
		return
	}

	job.Status = StatusCompleted
	job.RunID = report.Result.RunID.String()
	job.WorkbookPath = report.WorkbookPath
	job.Categories = len(report.Result.Categories)
	job.Products = report.Result.TotalProducts()
	job.SinkFailures = report.SinkFailures
	m.logger.Info("job completed", "id", id, "run_id", job.RunID, "products", job.Products)
}

func (m *Manager) Get(id string) (Job, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	job, ok := m.jobs[id]
	if !ok {
		return Job{}, ErrJobNotFound
	}
	return *job, nil
}

// List returns all jobs, newest first.
func (m *Manager) List() []Job {
	m.mu.RLock()
	defer m.mu.RUnlock()

	jobs := make([]Job, 0, len(m.jobs))
	for _, job := range m.jobs {
		jobs = append(jobs, *job)
	}
	sort.Slice(jobs, func(i, j int) bool {
		return jobs[i].CreatedAt.After(jobs[j].CreatedAt)
	})
	return jobs
}

// Wait blocks until no job is running.
func (m *Manager) Wait() {
	m.wg.Wait()
}

// Close cancels a running job and waits for it to stop.
func (m *Manager) Close() {
	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()

	m.cancel()
	m.wg.Wait()
}
