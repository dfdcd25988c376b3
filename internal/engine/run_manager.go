package engine

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/graphflowhq/graphflow/internal/agents"
	"github.com/graphflowhq/graphflow/internal/config"
	"github.com/graphflowhq/graphflow/pkg/graphflow/core"
	"github.com/graphflowhq/graphflow/pkg/graphflow/domain"
)

var runQueue chan domain.WorkflowRun // Initialized in StartEngine using system setting

// RunManager owns the polling loop that claims pending runs and feeds them
// to the worker pool. It is also the facade the HTTP controllers call into.
type RunManager struct {
	RunRepo        RunRepo
	RunStepRepo    RunStepRepo
	DefinitionRepo DefinitionRepo
	Agents         *agents.Registry
	executorID     string
	wakeup         chan struct{}
	clock          core.Clock
}

func NewRunManager(runRepo RunRepo, stepRepo RunStepRepo, definitionRepo DefinitionRepo,
	registry *agents.Registry, clock core.Clock) *RunManager {
	return &RunManager{
		RunRepo:        runRepo,
		RunStepRepo:    stepRepo,
		DefinitionRepo: definitionRepo,
		Agents:         registry,
		executorID:     executorName(),
		wakeup:         make(chan struct{}, 1),
		clock:          clock,
	}
}

// ListDefinitions exposes the repository list for the API layer.
func (rm *RunManager) ListDefinitions() (*[]domain.WorkflowDefinition, error) {
	return rm.DefinitionRepo.FindAll()
}

// GetDefinitionByName exposes the repository get by name for the API layer.
func (rm *RunManager) GetDefinitionByName(name string) (*domain.WorkflowDefinition, error) {
	return rm.DefinitionRepo.FindByName(name)
}

// SaveDefinition stores or replaces a definition record.
func (rm *RunManager) SaveDefinition(def *domain.WorkflowDefinition) error {
	return rm.DefinitionRepo.Save(def)
}

// DeleteDefinition removes a definition by name, reporting whether one existed.
func (rm *RunManager) DeleteDefinition(name string) (bool, error) {
	return rm.DefinitionRepo.DeleteByName(name)
}

// CreateRun persists a new run and nudges the poll loop so it gets picked up
// without waiting for the next tick.
func (rm *RunManager) CreateRun(run *domain.WorkflowRun) (int64, error) {
	id, err := rm.RunRepo.Save(run)
	if err != nil {
		return 0, err
	}
	rm.Wakeup()
	return id, nil
}

// GetRunByKey exposes the repository lookup by run key for the API layer.
func (rm *RunManager) GetRunByKey(key string) (*domain.WorkflowRun, error) {
	return rm.RunRepo.FindByRunKey(key)
}

// GetRunSteps returns the step log for a run.
func (rm *RunManager) GetRunSteps(runID int64) (*[]domain.RunStep, error) {
	return rm.RunStepRepo.FindAllByRunID(runID)
}

// ListRunsByDefinition returns recent runs of one definition.
func (rm *RunManager) ListRunsByDefinition(name string, limit int) (*[]domain.WorkflowRun, error) {
	return rm.RunRepo.FindAllByDefinition(name, limit)
}

// StartEngine starts polling for pending runs at the given interval. It
// blocks until the context is cancelled.
func (rm *RunManager) StartEngine(ctx context.Context, pollInterval time.Duration) {
	if pollInterval <= 0 {
		pollInterval = 3 * time.Second
	}
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	go startRunRepairService(ctx, rm)

	queueSize := config.GetSystemSettingInteger(config.ENGINE_BATCH_SIZE)
	if queueSize <= 0 {
		queueSize = 10 // fallback default
	}
	runQueue = make(chan domain.WorkflowRun, queueSize)

	workers := config.GetSystemSettingInteger(config.ENGINE_EXECUTOR_SIZE)
	slog.Info("Starting run engine", "workers", workers, "queue_size", queueSize, "executor_id", rm.executorID)
	for i := 0; i < workers; i++ {
		go Worker(ctx, i, rm, runQueue)
	}

	slog.Info("Run engine started", "poll_interval", pollInterval.String())

	for {
		select {
		case <-ctx.Done():
			slog.InfoContext(ctx, "Run engine stopping due to context cancel")
			return
		case <-ticker.C:
			rm.pollAndRunRuns(ctx)
		case <-rm.wakeup:
			rm.pollAndRunRuns(ctx)
		}
	}
}

// startRunRepairService finds runs that crashed mid-execution, that is runs
// stuck in SCHEDULED or EXECUTING whose modified timestamp is older than the
// repair cutoff, and reschedules them.
func startRunRepairService(ctx context.Context, rm *RunManager) {
	dur := config.GetSystemSettingDuration(config.ENGINE_STUCK_RUNS_INTERVAL, time.Minute)
	ticker := time.NewTicker(dur)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.InfoContext(ctx, "Run repair service stopping due to context cancel")
			return
		case <-ticker.C:
			stuckRuns, err := rm.RunRepo.FindStuckRuns(
				config.GetSystemSettingString(config.ENGINE_STUCK_RUNS_REPAIR_AFTER_MINUTES),
				config.GetSystemSettingString(config.ENGINE_EXECUTOR_GROUP),
				100)
			if err != nil {
				slog.Error("Error finding stuck runs", "error", err)
				continue
			}
			for _, run := range *stuckRuns {
				slog.Warn("Repairing stuck run", "run_id", run.ID, "run_key", run.RunKey, "status", run.Status)
				previousExecutor := run.ExecutorID
				exclusiveLock := rm.RunRepo.MarkRunAsScheduledForExecution(run.ID, rm.executorID, run.Modified)
				if exclusiveLock {
					_, _ = rm.RunStepRepo.Save(&domain.RunStep{
						RunID:          run.ID,
						ExecutionCount: run.ExecutionCount,
						Type:           "REPAIRED",
						Text:           "Repaired and rescheduled, previous executor was: " + previousExecutor.String,
						DateTime:       rm.clock.Now(),
					})
					if err := rm.RunRepo.UpdateNextActivationSpecific(run.ID, rm.clock.Now()); err != nil {
						slog.ErrorContext(ctx, "Failed to repair run next activation", "run_id", run.ID, "error", err)
					}
					if err := rm.RunRepo.ClearExecutorID(run.ID); err != nil {
						slog.ErrorContext(ctx, "Failed to repair clear executor id", "run_id", run.ID, "error", err)
					}
					if err := rm.RunRepo.UpdateStatus(run.ID, domain.RunStatusNew); err != nil {
						slog.ErrorContext(ctx, "Failed to repair reset run status", "run_id", run.ID, "error", err)
					}
				}
			}
		}
	}
}

// pollAndRunRuns queries the repository for pending runs, claims them with
// an optimistic lock and queues them for the workers.
func (rm *RunManager) pollAndRunRuns(ctx context.Context) {
	slog.Debug("Polling for pending runs")

	if len(runQueue) >= config.GetSystemSettingInteger(config.ENGINE_BATCH_SIZE) {
		slog.Warn("run queue full, skipping poll, possibly stuck or long running workflows")
		return
	}

	runs, err := rm.RunRepo.FindPendingRuns(
		config.GetSystemSettingInteger(config.ENGINE_BATCH_SIZE),
		config.GetSystemSettingString(config.ENGINE_EXECUTOR_GROUP),
	)
	if err != nil {
		slog.Error("Error fetching pending runs", "error", err)
		return
	}

	for _, run := range *runs {
		slog.InfoContext(ctx, "Marking run as scheduled for execution", "run_key", run.RunKey)
		exclusiveLock := rm.RunRepo.MarkRunAsScheduledForExecution(run.ID, rm.executorID, run.Modified)
		if !exclusiveLock {
			slog.InfoContext(ctx, "Unable to gain lock on run, possibly picked up by other executor", "run_key", run.RunKey)
			_, _ = rm.RunStepRepo.Save(&domain.RunStep{
				RunID:          run.ID,
				ExecutionCount: run.ExecutionCount,
				Type:           "LOCK_FAILED",
				Text:           "Failed to acquire a lock on the run",
				DateTime:       rm.clock.Now(),
			})
			continue
		}
		_, _ = rm.RunStepRepo.Save(&domain.RunStep{
			RunID:          run.ID,
			ExecutionCount: run.ExecutionCount,
			Type:           "SCHEDULED",
			Text:           "Scheduled for execution",
			DateTime:       rm.clock.Now(),
		})

		slog.InfoContext(ctx, "Queueing run for execution", "run_key", run.RunKey)
		runQueue <- run
	}
}

// Wakeup nudges the poll loop without blocking. Safe to call from any
// goroutine; a pending nudge is coalesced.
func (rm *RunManager) Wakeup() {
	select {
	case rm.wakeup <- struct{}{}:
	default:
	}
}

func executorName() string {
	hostname, err := os.Hostname()
	if err != nil {
		return "graphflow-engine"
	}
	return hostname
}
