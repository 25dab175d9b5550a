package server

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"panelcatalog/pipeline"
	apperrors "panelcatalog/server/errors"
)

// PassTask tracks one asynchronous reconciliation pass.
type PassTask struct {
	ID          string               `json:"id"`
	Status      string               `json:"status"` // "running", "completed", "failed"
	Selector    pipeline.Selector    `json:"selector"`
	Stages      pipeline.StageSet    `json:"stages"`
	Mode        pipeline.Mode        `json:"mode"`
	Report      *pipeline.DiffReport `json:"report,omitempty"`
	Error       string               `json:"error,omitempty"`
	StartedAt   time.Time            `json:"started_at"`
	CompletedAt *time.Time           `json:"completed_at,omitempty"`
}

// PassService runs passes in the background and keeps their status.
type PassService struct {
	pipeline *pipeline.Pipeline
	metrics  *Metrics

	tasks   map[string]*PassTask
	tasksMu sync.RWMutex
}

// NewPassService creates a pass service.
func NewPassService(pl *pipeline.Pipeline, metrics *Metrics) *PassService {
	return &PassService{
		pipeline: pl,
		metrics:  metrics,
		tasks:    make(map[string]*PassTask),
	}
}

// StartPass launches a pass in a goroutine and returns its task id.
func (s *PassService) StartPass(sel pipeline.Selector, stages pipeline.StageSet, mode pipeline.Mode) (string, error) {
	if sel.CatalogueSlug == "" {
		return "", apperrors.NewValidationError("catalogue_slug is required", nil)
	}
	if mode != pipeline.ModeDryRun && mode != pipeline.ModeApply {
		return "", apperrors.NewValidationError("mode must be dry-run or apply", nil)
	}

	task := &PassTask{
		ID:        uuid.New().String(),
		Status:    "running",
		Selector:  sel,
		Stages:    stages,
		Mode:      mode,
		StartedAt: time.Now(),
	}

	s.tasksMu.Lock()
	s.tasks[task.ID] = task
	s.tasksMu.Unlock()

	go func() {
		report, err := s.pipeline.Run(context.Background(), sel, stages, mode)

		s.tasksMu.Lock()
		defer s.tasksMu.Unlock()

		now := time.Now()
		task.CompletedAt = &now
		task.Report = report
		switch {
		case err != nil:
			task.Status = "failed"
			task.Error = err.Error()
		case report.FailureCount() > 0:
			task.Status = "failed"
		default:
			task.Status = "completed"
		}

		if report != nil && s.metrics != nil {
			s.metrics.ObservePass(report, err)
		}
	}()

	return task.ID, nil
}

// GetTask returns a snapshot of the task. Callers get a copy because the
// pass goroutine keeps mutating the live task under the lock, and the
// handler serializes the result after the lock is released.
func (s *PassService) GetTask(id string) (*PassTask, error) {
	s.tasksMu.RLock()
	defer s.tasksMu.RUnlock()

	task, ok := s.tasks[id]
	if !ok {
		return nil, apperrors.NewNotFoundError("pass not found", nil)
	}
	snapshot := *task
	return &snapshot, nil
}
