package models

import (
	"time"

	"github.com/graphflowhq/graphflow/pkg/graphflow/workflow"
)

// SaveDefinitionRequest is the payload for storing a workflow definition.
// The graph is validated before anything is persisted.
type SaveDefinitionRequest struct {
	Description string              `json:"description,omitempty"`
	Workflow    workflow.Definition `json:"workflow"`
}

// SaveDefinitionResponse is returned on a successful upsert.
type SaveDefinitionResponse struct {
	Name     string `json:"name"`
	Revision string `json:"revision"`
	Checksum string `json:"checksum"`
}

// ValidateDefinitionResponse reports a validation-only check. Valid requests
// echo the parsed definition so builder UIs can confirm what was understood.
type ValidateDefinitionResponse struct {
	Valid      bool                 `json:"valid"`
	Error      string               `json:"error,omitempty"`
	Definition *workflow.Definition `json:"definition,omitempty"`
}

// DefinitionApiResponse represents the API view of a stored definition.
type DefinitionApiResponse struct {
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	Revision    string    `json:"revision"`
	Checksum    string    `json:"checksum"`
	Created     time.Time `json:"created"`
	Updated     time.Time `json:"updated"`
	Definition  string    `json:"definition"`
}
