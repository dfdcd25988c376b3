package engine

import (
	"context"
	"log/slog"
	"strconv"

	"github.com/graphflowhq/graphflow/pkg/graphflow/domain"
)

// Worker processes runs from the queue until the context is cancelled.
func Worker(ctx context.Context, id int, rm *RunManager, queue <-chan domain.WorkflowRun) {
	for {
		select {
		case <-ctx.Done():
			slog.Info("Worker stopping", "worker_id", id)
			return
		case run := <-queue:
			slog.Info("Worker starting run", "worker_id", id, "run_id", run.ID)
			ExecuteRun(ctx, &run, rm.RunRepo, rm.RunStepRepo, rm.DefinitionRepo, rm.Agents, rm.clock,
				rm.executorID+"-"+strconv.Itoa(id))
			slog.Info("Worker finished run", "worker_id", id, "run_id", run.ID)
		}
	}
}
