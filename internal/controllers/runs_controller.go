package controllers

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/google/uuid"

	"github.com/graphflowhq/graphflow/internal/config"
	"github.com/graphflowhq/graphflow/internal/engine"
	"github.com/graphflowhq/graphflow/internal/util"
	"github.com/graphflowhq/graphflow/pkg/graphflow/core"
	"github.com/graphflowhq/graphflow/pkg/graphflow/domain"
	"github.com/graphflowhq/graphflow/pkg/graphflow/models"
	"github.com/graphflowhq/graphflow/pkg/graphflow/workflow"
)

// RunsController holds dependencies for run HTTP endpoints.
type RunsController struct {
	Manager *engine.RunManager
	Clock   core.Clock
}

func NewRunsController(manager *engine.RunManager, clock core.Clock) *RunsController {
	return &RunsController{Manager: manager, Clock: clock}
}

func (c *RunsController) handleCreateRun(w http.ResponseWriter, r *http.Request) {
	var req models.CreateRunRequest
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		http.Error(w, "invalid JSON payload", http.StatusBadRequest)
		return
	}
	if req.DefinitionName == "" {
		http.Error(w, "definitionName is required", http.StatusBadRequest)
		return
	}

	def, err := c.Manager.GetDefinitionByName(req.DefinitionName)
	if err != nil || def == nil {
		http.Error(w, "definition not found", http.StatusNotFound)
		return
	}
	// revalidate before enqueueing, a stored definition that no longer
	// passes must not produce runs
	if _, err := workflow.ValidateDefinition([]byte(def.Definition)); err != nil {
		slog.Warn("Refusing run of invalid stored definition", "name", req.DefinitionName, "error", err)
		http.Error(w, "stored definition failed validation: "+err.Error(), http.StatusConflict)
		return
	}

	executorGroup := req.ExecutorGroup
	if executorGroup == "" {
		executorGroup = config.GetSystemSettingString(config.ENGINE_EXECUTOR_GROUP)
	}

	now := c.Clock.Now()
	run := &domain.WorkflowRun{
		RunKey:         uuid.NewString(),
		DefinitionName: req.DefinitionName,
		Status:         domain.RunStatusNew,
		ExecutorGroup:  executorGroup,
		Created:        now,
		Modified:       now,
	}
	if len(req.Variables) > 0 {
		vars, err := json.Marshal(req.Variables)
		if err != nil {
			http.Error(w, "invalid variables", http.StatusBadRequest)
			return
		}
		run.Variables.Valid = true
		run.Variables.String = string(vars)
	}
	// the poll query only picks up runs whose activation time has passed,
	// so an unset activation means eligible immediately
	run.NextActivation.Valid = true
	if req.NextActivation != nil {
		run.NextActivation.Time = *req.NextActivation
	} else {
		run.NextActivation.Time = c.Clock.Now()
	}

	slog.InfoContext(r.Context(), "Creating run", "definition", req.DefinitionName, "run_key", run.RunKey)
	id, err := c.Manager.CreateRun(run)
	if err != nil {
		slog.Error("Failed to save run", "error", err)
		http.Error(w, "failed to create run", http.StatusInternalServerError)
		return
	}

	util.WriteJSONResponse(w, http.StatusOK, models.CreateRunResponse{ID: id, RunKey: run.RunKey})
}

func (c *RunsController) handleListRunsByDefinition(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	limit := 100
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			http.Error(w, "limit must be a positive integer", http.StatusBadRequest)
			return
		}
		limit = n
	}
	runs, err := c.Manager.ListRunsByDefinition(name, limit)
	if err != nil {
		slog.Error("Failed to list runs", "definition", name, "error", err)
		http.Error(w, "failed to list runs", http.StatusInternalServerError)
		return
	}
	out := make([]models.RunApiResponse, 0, len(*runs))
	for _, run := range *runs {
		out = append(out, mapRunToApiResponse(&run))
	}
	util.WriteJSONResponse(w, http.StatusOK, out)
}

func (c *RunsController) handleGetRunByKey(w http.ResponseWriter, r *http.Request) {
	key := r.PathValue("key")
	run, err := c.Manager.GetRunByKey(key)
	if err != nil || run == nil {
		http.Error(w, "run not found", http.StatusNotFound)
		return
	}
	util.WriteJSONResponse(w, http.StatusOK, mapRunToApiResponse(run))
}

func (c *RunsController) handleGetRunSteps(w http.ResponseWriter, r *http.Request) {
	key := r.PathValue("key")
	run, err := c.Manager.GetRunByKey(key)
	if err != nil || run == nil {
		http.Error(w, "run not found", http.StatusNotFound)
		return
	}
	steps, err := c.Manager.GetRunSteps(run.ID)
	if err != nil {
		slog.Error("Failed to list run steps", "run_id", run.ID, "error", err)
		http.Error(w, "failed to list run steps", http.StatusInternalServerError)
		return
	}
	out := make([]models.RunStepApiResponse, 0, len(*steps))
	for _, s := range *steps {
		out = append(out, models.RunStepApiResponse{
			ID:             s.ID,
			NodeID:         s.NodeID,
			ExecutionCount: s.ExecutionCount,
			Type:           s.Type,
			Text:           s.Text,
			DateTime:       s.DateTime,
		})
	}
	util.WriteJSONResponse(w, http.StatusOK, out)
}

func mapRunToApiResponse(run *domain.WorkflowRun) models.RunApiResponse {
	resp := models.RunApiResponse{
		ID:             run.ID,
		RunKey:         run.RunKey,
		DefinitionName: run.DefinitionName,
		Status:         run.Status,
		ExecutionCount: run.ExecutionCount,
		RetryCount:     run.RetryCount,
		Created:        run.Created,
		Modified:       run.Modified,
		ExecutorGroup:  run.ExecutorGroup,
	}
	if run.NextActivation.Valid {
		resp.NextActivation = run.NextActivation.Time
	}
	if run.Started.Valid {
		resp.Started = run.Started.Time
	}
	if run.ExecutorID.Valid {
		resp.ExecutorID = run.ExecutorID.String
	}
	if run.CurrentNode.Valid {
		resp.CurrentNode = run.CurrentNode.String
	}
	if run.Variables.Valid && run.Variables.String != "" {
		vars := map[string]string{}
		if err := json.Unmarshal([]byte(run.Variables.String), &vars); err == nil {
			resp.Variables = vars
		}
	}
	return resp
}
