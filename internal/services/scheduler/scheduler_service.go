package scheduler

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/longform/internal/common"
	"github.com/ternarybob/longform/internal/interfaces"
)

// JobStatus reports the state of a registered maintenance job
type JobStatus struct {
	Name        string     `json:"name"`
	Schedule    string     `json:"schedule"`
	Description string     `json:"description"`
	LastRun     *time.Time `json:"last_run,omitempty"`
	NextRun     *time.Time `json:"next_run,omitempty"`
	IsRunning   bool       `json:"is_running"`
	LastError   string     `json:"last_error,omitempty"`
}

// jobEntry represents a registered job with metadata
type jobEntry struct {
	name        string
	schedule    string
	description string
	handler     func(ctx context.Context) error
	cronID      cron.EntryID
	lastRun     *time.Time
	isRunning   bool
	lastError   string
}

// Service runs periodic maintenance jobs on cron schedules
type Service struct {
	cron    *cron.Cron
	logger  arbor.ILogger
	jobMu   sync.Mutex
	jobs    map[string]*jobEntry
	running bool
	ctx     context.Context
	cancel  context.CancelFunc
}

// NewService creates a new scheduler service
func NewService(logger arbor.ILogger) *Service {
	ctx, cancel := context.WithCancel(context.Background())
	return &Service{
		cron:   cron.New(),
		logger: logger,
		jobs:   make(map[string]*jobEntry),
		ctx:    ctx,
		cancel: cancel,
	}
}

// RegisterJob adds a job on a 5-field cron schedule
func (s *Service) RegisterJob(name, schedule, description string, handler func(ctx context.Context) error) error {
	if handler == nil {
		return fmt.Errorf("job %s: handler cannot be nil", name)
	}
	if err := common.ValidateSchedule(schedule); err != nil {
		return fmt.Errorf("job %s: %w", name, err)
	}

	s.jobMu.Lock()
	defer s.jobMu.Unlock()

	if _, exists := s.jobs[name]; exists {
		return fmt.Errorf("job %s already registered", name)
	}

	entry := &jobEntry{
		name:        name,
		schedule:    schedule,
		description: description,
		handler:     handler,
	}
	id, err := s.cron.AddFunc(schedule, func() { s.runJob(name) })
	if err != nil {
		return fmt.Errorf("failed to add cron job %s: %w", name, err)
	}
	entry.cronID = id
	s.jobs[name] = entry

	s.logger.Info().
		Str("job", name).
		Str("schedule", schedule).
		Msg("Maintenance job registered")
	return nil
}

// Start begins the cron loop
func (s *Service) Start() error {
	s.jobMu.Lock()
	defer s.jobMu.Unlock()

	if s.running {
		return fmt.Errorf("scheduler already running")
	}
	s.cron.Start()
	s.running = true
	s.logger.Info().Int("jobs", len(s.jobs)).Msg("Scheduler started")
	return nil
}

// Stop halts the scheduler and waits for running jobs
func (s *Service) Stop() error {
	s.jobMu.Lock()
	if !s.running {
		s.jobMu.Unlock()
		return nil
	}
	s.running = false
	s.jobMu.Unlock()

	s.cancel()
	stopCtx := s.cron.Stop()

	select {
	case <-stopCtx.Done():
		s.logger.Info().Msg("Scheduler stopped")
	case <-time.After(30 * time.Second):
		s.logger.Warn().Msg("Scheduler stop timed out waiting for jobs")
	}
	return nil
}

// TriggerJob runs a job immediately, outside its schedule
func (s *Service) TriggerJob(name string) error {
	s.jobMu.Lock()
	_, exists := s.jobs[name]
	s.jobMu.Unlock()
	if !exists {
		return fmt.Errorf("job %s not found", name)
	}
	return s.runJob(name)
}

// Jobs lists registered jobs sorted by name
func (s *Service) Jobs() []JobStatus {
	s.jobMu.Lock()
	defer s.jobMu.Unlock()

	statuses := make([]JobStatus, 0, len(s.jobs))
	for _, entry := range s.jobs {
		status := JobStatus{
			Name:        entry.name,
			Schedule:    entry.schedule,
			Description: entry.description,
			LastRun:     entry.lastRun,
			IsRunning:   entry.isRunning,
			LastError:   entry.lastError,
		}
		if s.running {
			if next := s.cron.Entry(entry.cronID).Next; !next.IsZero() {
				status.NextRun = &next
			}
		}
		statuses = append(statuses, status)
	}
	sort.Slice(statuses, func(i, j int) bool { return statuses[i].Name < statuses[j].Name })
	return statuses
}

func (s *Service) runJob(name string) (err error) {
	s.jobMu.Lock()
	entry := s.jobs[name]
	if entry.isRunning {
		s.jobMu.Unlock()
		s.logger.Debug().Str("job", name).Msg("Job already running, skipping")
		return nil
	}
	entry.isRunning = true
	s.jobMu.Unlock()

	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("job %s panicked: %v", name, r)
		}

		s.jobMu.Lock()
		entry.isRunning = false
		entry.lastRun = &start
		entry.lastError = ""
		if err != nil {
			entry.lastError = err.Error()
		}
		s.jobMu.Unlock()

		if err != nil {
			s.logger.Error().Err(err).Str("job", name).Msg("Maintenance job failed")
		} else {
			s.logger.Debug().
				Str("job", name).
				Str("elapsed", time.Since(start).String()).
				Msg("Maintenance job completed")
		}
	}()

	return entry.handler(s.ctx)
}

// RunRetentionJob deletes generation runs older than retention
func RunRetentionJob(runs interfaces.RunStorage, retention time.Duration, logger arbor.ILogger) func(ctx context.Context) error {
	return func(ctx context.Context) error {
		cutoff := time.Now().Add(-retention)
		deleted, err := runs.DeleteRunsBefore(ctx, cutoff)
		if err != nil {
			return fmt.Errorf("failed to prune runs: %w", err)
		}
		if deleted > 0 {
			logger.Info().
				Int("deleted", deleted).
				Str("cutoff", cutoff.Format(time.RFC3339)).
				Msg("Pruned generation runs")
		}
		return nil
	}
}

// Pruner is anything that can drop idle state, such as the request limiter
type Pruner interface {
	Prune() int
}

// PruneJob wraps a Pruner as a job
func PruneJob(name string, pruner Pruner, logger arbor.ILogger) func(ctx context.Context) error {
	return func(ctx context.Context) error {
		if removed := pruner.Prune(); removed > 0 {
			logger.Debug().Str("job", name).Int("removed", removed).Msg("Pruned idle entries")
		}
		return nil
	}
}
