package controllers

import "net/http"

// RegisterRoutes wires the HTTP routes for this controller.
func (c *DefinitionsController) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/definitions/validate", c.handleValidateDefinition)
	mux.HandleFunc("GET /api/definitions", c.handleListDefinitions)
	mux.HandleFunc("PUT /api/definitions/{name}", c.handleSaveDefinition)
	mux.HandleFunc("GET /api/definitions/{name}", c.handleGetDefinition)
	mux.HandleFunc("DELETE /api/definitions/{name}", c.handleDeleteDefinition)
}

func (c *RunsController) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/runs", c.handleCreateRun)
	mux.HandleFunc("GET /api/definitions/{name}/runs", c.handleListRunsByDefinition)
	mux.HandleFunc("GET /api/runs/{key}", c.handleGetRunByKey)
	mux.HandleFunc("GET /api/runs/{key}/steps", c.handleGetRunSteps)
}
