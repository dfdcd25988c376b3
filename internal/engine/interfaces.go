package engine

import (
	"time"

	"github.com/graphflowhq/graphflow/pkg/graphflow/domain"
)

// RunRepo defines the interface for run persistence, matching repository.RunRepository.
type RunRepo interface {
	Save(run *domain.WorkflowRun) (int64, error)
	FindByID(id int64) (*domain.WorkflowRun, error)
	FindByRunKey(key string) (*domain.WorkflowRun, error)
	FindPendingRuns(size int, executorGroup string) (*[]domain.WorkflowRun, error)
	MarkRunAsScheduledForExecution(id int64, executorID string, modified time.Time) bool
	UpdateStatus(id int64, status string) error
	UpdateStartingTime(id int64) error
	UpdateCurrentNode(id int64, nodeID string) error
	SaveRunVariables(id int64, vars string) error
	IncrementExecutionCount(id int64) error
	IncrementRetryCounterAndSetNextActivation(id int64, activation time.Time) error
	ClearExecutorID(id int64) error
	UpdateNextActivationSpecific(id int64, next time.Time) error
	FindStuckRuns(minutesRepair string, executorGroup string, limit int) (*[]domain.WorkflowRun, error)
	FindAllByDefinition(name string, limit int) (*[]domain.WorkflowRun, error)
}

// RunStepRepo defines the interface for run step log persistence.
type RunStepRepo interface {
	Save(s *domain.RunStep) (int64, error)
	FindAllByRunID(runID int64) (*[]domain.RunStep, error)
}

// DefinitionRepo defines the interface for workflow definition persistence.
type DefinitionRepo interface {
	FindAll() (*[]domain.WorkflowDefinition, error)
	FindByName(name string) (*domain.WorkflowDefinition, error)
	Save(def *domain.WorkflowDefinition) error
	DeleteByName(name string) (bool, error)
}
