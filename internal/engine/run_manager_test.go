package engine

import (
	"context"
	"testing"
	"time"

	"github.com/graphflowhq/graphflow/internal/agents"
	"github.com/graphflowhq/graphflow/pkg/graphflow/domain"
)

func TestRunManagerListDefinitions(t *testing.T) {
	expectedDefs := []domain.WorkflowDefinition{
		{Name: "blog-post"},
		{Name: "newsletter"},
	}
	defRepo := &MockDefinitionRepo{
		FindAllFunc: func() (*[]domain.WorkflowDefinition, error) {
			return &expectedDefs, nil
		},
	}

	rm := NewRunManager(&MockRunRepo{}, &MockRunStepRepo{}, defRepo, agents.NewRegistry(), testClock{now: time.Now()})
	defs, err := rm.ListDefinitions()
	if err != nil {
		t.Fatalf("ListDefinitions returned error: %v", err)
	}
	if len(*defs) != 2 {
		t.Errorf("Expected 2 definitions, got %d", len(*defs))
	}
}

func TestRunManagerCreateRunWakesPollLoop(t *testing.T) {
	saved := false
	runRepo := &MockRunRepo{
		SaveFunc: func(run *domain.WorkflowRun) (int64, error) {
			saved = true
			return 7, nil
		},
	}

	rm := NewRunManager(runRepo, &MockRunStepRepo{}, &MockDefinitionRepo{}, agents.NewRegistry(), testClock{now: time.Now()})
	id, err := rm.CreateRun(&domain.WorkflowRun{RunKey: "k", DefinitionName: "blog-post"})
	if err != nil {
		t.Fatalf("CreateRun returned error: %v", err)
	}
	if id != 7 || !saved {
		t.Errorf("expected run to be persisted with id 7, got %d", id)
	}

	select {
	case <-rm.wakeup:
	default:
		t.Error("expected a wakeup nudge after CreateRun")
	}
}

func TestRunManagerWakeupCoalesces(t *testing.T) {
	rm := NewRunManager(&MockRunRepo{}, &MockRunStepRepo{}, &MockDefinitionRepo{}, agents.NewRegistry(), testClock{now: time.Now()})

	// must never block no matter how often it is called
	for i := 0; i < 100; i++ {
		rm.Wakeup()
	}
	if len(rm.wakeup) != 1 {
		t.Errorf("expected pending nudges to coalesce to 1, got %d", len(rm.wakeup))
	}
}

func TestRunManagerPollClaimsAndQueuesRuns(t *testing.T) {
	runQueue = make(chan domain.WorkflowRun, 10)
	defer func() { close(runQueue) }()

	locked := []int64{}
	runRepo := &MockRunRepo{
		FindPendingRunsFunc: func(size int, executorGroup string) (*[]domain.WorkflowRun, error) {
			return &[]domain.WorkflowRun{
				{ID: 1, RunKey: "k1", DefinitionName: "blog-post"},
				{ID: 2, RunKey: "k2", DefinitionName: "blog-post"},
			}, nil
		},
		MarkRunAsScheduledForExecutionFunc: func(id int64, executorID string, modified time.Time) bool {
			locked = append(locked, id)
			return id == 1 // second run is claimed by another executor
		},
	}
	stepRepo := &MockRunStepRepo{}

	rm := NewRunManager(runRepo, stepRepo, &MockDefinitionRepo{}, agents.NewRegistry(), testClock{now: time.Now()})
	rm.pollAndRunRuns(context.Background())

	if len(locked) != 2 {
		t.Fatalf("expected lock attempt on both runs, got %v", locked)
	}
	if len(runQueue) != 1 {
		t.Fatalf("expected exactly the locked run to be queued, queue length %d", len(runQueue))
	}
	queued := <-runQueue
	if queued.ID != 1 {
		t.Errorf("expected run 1 to be queued, got %d", queued.ID)
	}
	types := stepRepo.stepTypes()
	if !containsType(types, "SCHEDULED") || !containsType(types, "LOCK_FAILED") {
		t.Errorf("expected SCHEDULED and LOCK_FAILED steps, got %v", types)
	}
}
