package engine

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/graphflowhq/graphflow/internal/agents"
	"github.com/graphflowhq/graphflow/pkg/graphflow/core"
	"github.com/graphflowhq/graphflow/pkg/graphflow/domain"
	"github.com/graphflowhq/graphflow/pkg/graphflow/workflow"
)

const (
	defaultMaxRetries = 3
	defaultTimeout    = 5 * time.Minute
	defaultDelay      = time.Second
)

// ExecuteRun processes one claimed run from start to finish: it revalidates
// the stored definition, orders the nodes topologically and walks them in a
// single forward pass. The engine never executes a definition that does not
// pass validation, even if one somehow reached the store.
func ExecuteRun(ctx context.Context, run *domain.WorkflowRun, runRepo RunRepo, stepRepo RunStepRepo,
	defRepo DefinitionRepo, registry *agents.Registry, clock core.Clock, workerID string) {

	slog.InfoContext(ctx, "Executing run", "run_id", run.ID, "definition", run.DefinitionName, "worker_id", workerID)

	// the queued copy may predate the claim; reload the persisted state
	if fresh, err := runRepo.FindByID(run.ID); err == nil && fresh != nil {
		run = fresh
	}

	if err := runRepo.UpdateStatus(run.ID, domain.RunStatusExecuting); err != nil {
		slog.ErrorContext(ctx, "Error updating run status", "error", err, "worker_id", workerID)
		return
	}
	logStep(stepRepo, run, "", "EXECUTING", "Run picked up by worker "+workerID, clock)

	defRecord, err := defRepo.FindByName(run.DefinitionName)
	if err != nil || defRecord == nil {
		failRun(ctx, run, runRepo, stepRepo, clock, fmt.Sprintf("definition %q not found", run.DefinitionName))
		return
	}
	def, err := workflow.ValidateDefinition([]byte(defRecord.Definition))
	if err != nil {
		failRun(ctx, run, runRepo, stepRepo, clock, "stored definition failed validation: "+err.Error())
		return
	}

	if !run.Started.Valid {
		if err := runRepo.UpdateStartingTime(run.ID); err != nil {
			slog.ErrorContext(ctx, "Error updating run starting time", "error", err, "worker_id", workerID)
			return
		}
	}
	_ = runRepo.IncrementExecutionCount(run.ID)

	vars := map[string]string{}
	if run.Variables.Valid && run.Variables.String != "" {
		if err := json.Unmarshal([]byte(run.Variables.String), &vars); err != nil {
			slog.WarnContext(ctx, "Error parsing run variables", "run_id", run.ID, "error", err)
		}
	}

	maxRetries := defaultMaxRetries
	timeout := defaultTimeout
	onError := workflow.OnErrorStop
	if s := def.Settings; s != nil {
		if s.MaxRetries != nil {
			maxRetries = *s.MaxRetries
		}
		if s.TimeoutMs != nil {
			timeout = time.Duration(*s.TimeoutMs) * time.Millisecond
		}
		if s.OnError != "" {
			onError = s.OnError
		}
	}
	retryConfig := defaultRetryConfig(maxRetries)

	order := topologicalOrder(def)
	incoming := map[string][]workflow.Edge{}
	for _, e := range def.Edges {
		incoming[e.Target] = append(incoming[e.Target], e)
	}

	nodesByID := map[string]workflow.Node{}
	for _, n := range def.Nodes {
		nodesByID[n.ID] = n
	}

	skipped := map[string]bool{}
	condResults := map[string]bool{}

	for _, node := range order {
		if !isNodeActive(node.ID, incoming, nodesByID, skipped, condResults) {
			skipped[node.ID] = true
			logStep(stepRepo, run, node.ID, "SKIPPED", "No active incoming edge", clock)
			continue
		}

		if err := runRepo.UpdateCurrentNode(run.ID, node.ID); err != nil {
			slog.ErrorContext(ctx, "Error updating current node", "error", err, "worker_id", workerID)
			return
		}
		// mirror the repository: moving to a new node starts a fresh retry
		// budget, re-entering the failed node after a retry pickup keeps it
		if run.CurrentNode.String != node.ID {
			run.RetryCount = 0
			run.CurrentNode = sql.NullString{String: node.ID, Valid: true}
		}

		switch node.Type {
		case workflow.NodeAgent:
			output, err := executeAgentNode(ctx, node, vars, registry, timeout)
			if err != nil {
				slog.WarnContext(ctx, "Agent step failed", "run_id", run.ID, "node", node.ID, "error", err, "worker_id", workerID)
				switch onError {
				case workflow.OnErrorContinue:
					logStep(stepRepo, run, node.ID, "ERROR", "Step failed, continuing: "+err.Error(), clock)
					continue
				case workflow.OnErrorRetry:
					if run.RetryCount < maxRetries {
						saveVars(run, vars, runRepo)
						next := clock.Now().Add(retryConfig.SlidingInterval(run.RetryCount))
						logStep(stepRepo, run, node.ID, "RETRY", fmt.Sprintf("Step failed, retry %d of %d at %s: %s",
							run.RetryCount+1, maxRetries, next.UTC().Format(time.RFC3339), err), clock)
						if err := runRepo.IncrementRetryCounterAndSetNextActivation(run.ID, next); err != nil {
							slog.ErrorContext(ctx, "Error scheduling retry", "error", err, "worker_id", workerID)
						}
						return
					}
					failRun(ctx, run, runRepo, stepRepo, clock, fmt.Sprintf("node %q failed after %d retries: %v", node.ID, maxRetries, err))
					return
				default:
					failRun(ctx, run, runRepo, stepRepo, clock, fmt.Sprintf("node %q failed: %v", node.ID, err))
					return
				}
			}
			storeOutput(node, output, vars)
			logStep(stepRepo, run, node.ID, "COMPLETED", truncate(output, 500), clock)

		case workflow.NodeCondition:
			result := evaluateCondition(node, vars)
			condResults[node.ID] = result
			logStep(stepRepo, run, node.ID, "CONDITION", "Evaluated to "+strconv.FormatBool(result), clock)

		case workflow.NodeDelay:
			d := delayFor(node)
			logStep(stepRepo, run, node.ID, "DELAY", "Sleeping for "+d.String(), clock)
			select {
			case <-ctx.Done():
				failRun(ctx, run, runRepo, stepRepo, clock, "run cancelled during delay")
				return
			case <-clock.After(d):
			}

		default:
			// parallel, loop and untyped builder nodes are grouping markers,
			// the forward pass just moves through them
			logStep(stepRepo, run, node.ID, "COMPLETED", "", clock)
		}
	}

	saveVars(run, vars, runRepo)
	if err := runRepo.UpdateStatus(run.ID, domain.RunStatusFinished); err != nil {
		slog.ErrorContext(ctx, "Error finishing run", "error", err, "worker_id", workerID)
		return
	}
	logStep(stepRepo, run, "", "FINISHED", "All nodes processed", clock)
	slog.InfoContext(ctx, "Run finished", "run_id", run.ID, "worker_id", workerID)
}

// topologicalOrder returns the nodes in a forward-executable order (Kahn's
// algorithm). The definition is already validated acyclic so every node is
// emitted; seeding the queue in declaration order keeps the result
// deterministic.
func topologicalOrder(def *workflow.Definition) []workflow.Node {
	inDegree := map[string]int{}
	adjacency := map[string][]string{}
	for _, n := range def.Nodes {
		inDegree[n.ID] = 0
	}
	for _, e := range def.Edges {
		adjacency[e.Source] = append(adjacency[e.Source], e.Target)
		inDegree[e.Target]++
	}

	nodesByID := map[string]workflow.Node{}
	for _, n := range def.Nodes {
		nodesByID[n.ID] = n
	}

	queue := make([]string, 0, len(def.Nodes))
	for _, n := range def.Nodes {
		if inDegree[n.ID] == 0 {
			queue = append(queue, n.ID)
		}
	}

	order := make([]workflow.Node, 0, len(def.Nodes))
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		order = append(order, nodesByID[id])
		for _, next := range adjacency[id] {
			inDegree[next]--
			if inDegree[next] == 0 {
				queue = append(queue, next)
			}
		}
	}
	return order
}

// isNodeActive reports whether a node should execute: root nodes always do,
// everything else needs at least one incoming edge whose source ran and, for
// condition sources, whose handle matches the branch that was taken.
func isNodeActive(nodeID string, incoming map[string][]workflow.Edge, nodesByID map[string]workflow.Node,
	skipped map[string]bool, condResults map[string]bool) bool {

	edges := incoming[nodeID]
	if len(edges) == 0 {
		return true
	}
	for _, e := range edges {
		if skipped[e.Source] {
			continue
		}
		src := nodesByID[e.Source]
		if src.Type == workflow.NodeCondition && e.SourceHandle != "" {
			if e.SourceHandle != strconv.FormatBool(condResults[e.Source]) {
				continue
			}
		}
		return true
	}
	return false
}

func executeAgentNode(ctx context.Context, node workflow.Node, vars map[string]string,
	registry *agents.Registry, timeout time.Duration) (string, error) {

	agent, err := registry.Get(node.Agent)
	if err != nil {
		return "", err
	}

	prompt := ""
	if p, ok := node.Data.Config["prompt"].(string); ok {
		prompt = p
	} else if node.Data.Description != "" {
		prompt = node.Data.Description
	}

	stepCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	return agent.Execute(stepCtx, agents.Request{
		NodeID:    node.ID,
		Label:     node.Data.Label,
		Prompt:    prompt,
		Config:    node.Data.Config,
		Variables: vars,
	})
}

// storeOutput makes an agent's result available to downstream nodes, keyed
// by the node's first declared output or by its id.
func storeOutput(node workflow.Node, output string, vars map[string]string) {
	key := node.ID
	if len(node.Data.Outputs) > 0 && node.Data.Outputs[0] != "" {
		key = node.Data.Outputs[0]
	}
	vars[key] = output
}

// evaluateCondition compares a run variable against a configured value.
// Unconfigured conditions evaluate true, so a half-built graph still runs.
func evaluateCondition(node workflow.Node, vars map[string]string) bool {
	variable, _ := node.Data.Config["variable"].(string)
	operator, _ := node.Data.Config["operator"].(string)
	expected := fmt.Sprintf("%v", node.Data.Config["value"])
	if variable == "" || operator == "" {
		return true
	}
	actual := vars[variable]

	switch operator {
	case "eq":
		return actual == expected
	case "neq":
		return actual != expected
	case "gt", "lt":
		a, err1 := strconv.ParseFloat(actual, 64)
		b, err2 := strconv.ParseFloat(expected, 64)
		if err1 != nil || err2 != nil {
			return false
		}
		if operator == "gt" {
			return a > b
		}
		return a < b
	case "contains":
		return expected != "" && strings.Contains(actual, expected)
	default:
		return false
	}
}

func delayFor(node workflow.Node) time.Duration {
	if ms, ok := node.Data.Config["delayMs"].(float64); ok && ms > 0 {
		d := time.Duration(ms) * time.Millisecond
		if d > time.Duration(workflow.MaxTimeoutMs)*time.Millisecond {
			d = time.Duration(workflow.MaxTimeoutMs) * time.Millisecond
		}
		return d
	}
	return defaultDelay
}

func saveVars(run *domain.WorkflowRun, vars map[string]string, runRepo RunRepo) {
	b, err := json.Marshal(vars)
	if err != nil {
		slog.Error("Error serializing run variables", "run_id", run.ID, "error", err)
		return
	}
	if err := runRepo.SaveRunVariables(run.ID, string(b)); err != nil {
		slog.Error("Error saving run variables", "run_id", run.ID, "error", err)
	}
}

func failRun(ctx context.Context, run *domain.WorkflowRun, runRepo RunRepo, stepRepo RunStepRepo, clock core.Clock, reason string) {
	slog.WarnContext(ctx, "Run failed", "run_id", run.ID, "reason", reason)
	logStep(stepRepo, run, "", "FAILED", reason, clock)
	if err := runRepo.UpdateStatus(run.ID, domain.RunStatusFailed); err != nil {
		slog.ErrorContext(ctx, "Error marking run failed", "error", err)
	}
}

func logStep(stepRepo RunStepRepo, run *domain.WorkflowRun, nodeID, stepType, text string, clock core.Clock) {
	_, _ = stepRepo.Save(&domain.RunStep{
		RunID:          run.ID,
		NodeID:         nodeID,
		ExecutionCount: run.ExecutionCount,
		Type:           stepType,
		Text:           text,
		DateTime:       clock.Now(),
	})
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
