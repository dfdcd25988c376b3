package controllers

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"github.com/graphflowhq/graphflow/internal/engine"
	"github.com/graphflowhq/graphflow/internal/util"
	"github.com/graphflowhq/graphflow/pkg/graphflow/core"
	"github.com/graphflowhq/graphflow/pkg/graphflow/domain"
	"github.com/graphflowhq/graphflow/pkg/graphflow/models"
	"github.com/graphflowhq/graphflow/pkg/graphflow/workflow"
)

// maxDefinitionBytes caps the request body for definition endpoints.
const maxDefinitionBytes = 1 << 20

// DefinitionsController holds dependencies for definition HTTP endpoints.
type DefinitionsController struct {
	Manager *engine.RunManager
	Clock   core.Clock
}

func NewDefinitionsController(manager *engine.RunManager, clock core.Clock) *DefinitionsController {
	return &DefinitionsController{Manager: manager, Clock: clock}
}

// handleValidateDefinition is the validate-only endpoint the builder UI
// calls on every save click. Nothing is persisted.
func (c *DefinitionsController) handleValidateDefinition(w http.ResponseWriter, r *http.Request) {
	raw, err := io.ReadAll(io.LimitReader(r.Body, maxDefinitionBytes))
	if err != nil {
		http.Error(w, "failed to read body", http.StatusBadRequest)
		return
	}
	defer r.Body.Close()

	def, err := workflow.ValidateDefinition(raw)
	if err != nil {
		util.WriteJSONResponse(w, http.StatusBadRequest, models.ValidateDefinitionResponse{
			Valid: false,
			Error: err.Error(),
		})
		return
	}
	util.WriteJSONResponse(w, http.StatusOK, models.ValidateDefinitionResponse{
		Valid:      true,
		Definition: def,
	})
}

func (c *DefinitionsController) handleSaveDefinition(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	if name == "" {
		http.Error(w, "name is required", http.StatusBadRequest)
		return
	}

	var req models.SaveDefinitionRequest
	dec := json.NewDecoder(io.LimitReader(r.Body, maxDefinitionBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		http.Error(w, "invalid JSON payload", http.StatusBadRequest)
		return
	}

	canonical, err := json.Marshal(req.Workflow)
	if err != nil {
		http.Error(w, "invalid definition", http.StatusBadRequest)
		return
	}
	if _, err := workflow.ValidateDefinition(canonical); err != nil {
		// no partial accept, an invalid graph never reaches the store
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	checksum := domain.DefinitionChecksum(string(canonical))
	existing, err := c.Manager.GetDefinitionByName(name)
	if err != nil {
		slog.Error("Failed to look up definition", "name", name, "error", err)
		http.Error(w, "failed to save definition", http.StatusInternalServerError)
		return
	}
	if existing != nil && existing.Checksum == checksum && existing.Description == req.Description {
		util.WriteJSONResponse(w, http.StatusOK, models.SaveDefinitionResponse{
			Name:     name,
			Revision: existing.Revision,
			Checksum: existing.Checksum,
		})
		return
	}

	def := &domain.WorkflowDefinition{
		Name:        name,
		Description: req.Description,
		Revision:    uuid.NewString(),
		Checksum:    checksum,
		Updated:     c.Clock.Now(),
		Definition:  string(canonical),
	}
	if existing != nil {
		def.Created = existing.Created
	} else {
		def.Created = c.Clock.Now()
	}

	if err := c.Manager.SaveDefinition(def); err != nil {
		slog.Error("Failed to save definition", "name", name, "error", err)
		http.Error(w, "failed to save definition", http.StatusInternalServerError)
		return
	}
	util.WriteJSONResponse(w, http.StatusOK, models.SaveDefinitionResponse{
		Name:     name,
		Revision: def.Revision,
		Checksum: def.Checksum,
	})
}

func (c *DefinitionsController) handleListDefinitions(w http.ResponseWriter, r *http.Request) {
	defs, err := c.Manager.ListDefinitions()
	if err != nil {
		slog.Error("Failed to list definitions", "error", err)
		http.Error(w, "failed to list definitions", http.StatusInternalServerError)
		return
	}
	out := make([]models.DefinitionApiResponse, 0, len(*defs))
	for _, d := range *defs {
		out = append(out, mapDefinitionToApiResponse(&d))
	}
	util.WriteJSONResponse(w, http.StatusOK, out)
}

func (c *DefinitionsController) handleGetDefinition(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	def, err := c.Manager.GetDefinitionByName(name)
	if err != nil || def == nil {
		http.Error(w, "definition not found", http.StatusNotFound)
		return
	}
	util.WriteJSONResponse(w, http.StatusOK, mapDefinitionToApiResponse(def))
}

func (c *DefinitionsController) handleDeleteDefinition(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	deleted, err := c.Manager.DeleteDefinition(name)
	if err != nil {
		slog.Error("Failed to delete definition", "name", name, "error", err)
		http.Error(w, "failed to delete definition", http.StatusInternalServerError)
		return
	}
	if !deleted {
		http.Error(w, "definition not found", http.StatusNotFound)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func mapDefinitionToApiResponse(def *domain.WorkflowDefinition) models.DefinitionApiResponse {
	return models.DefinitionApiResponse{
		Name:        def.Name,
		Description: def.Description,
		Revision:    def.Revision,
		Checksum:    def.Checksum,
		Created:     def.Created,
		Updated:     def.Updated,
		Definition:  def.Definition,
	}
}
