package models

import "time"

// CreateRunRequest is the payload for starting a run of a stored definition.
type CreateRunRequest struct {
	DefinitionName string            `json:"definitionName"`
	ExecutorGroup  string            `json:"executorGroup,omitempty"`
	Variables      map[string]string `json:"variables,omitempty"`
	// Optional scheduling input
	NextActivation *time.Time `json:"nextActivation,omitempty"`
}

// CreateRunResponse is returned on successful creation.
type CreateRunResponse struct {
	ID     int64  `json:"id"`
	RunKey string `json:"runKey"`
}

// RunApiResponse represents the API view of a run.
type RunApiResponse struct {
	ID             int64             `json:"id"`
	RunKey         string            `json:"runKey"`
	DefinitionName string            `json:"definitionName"`
	Status         string            `json:"status"`
	ExecutionCount int               `json:"executionCount"`
	RetryCount     int               `json:"retryCount"`
	Created        time.Time         `json:"created"`
	Modified       time.Time         `json:"modified"`
	NextActivation time.Time         `json:"nextActivation,omitempty"`
	Started        time.Time         `json:"started,omitempty"`
	ExecutorID     string            `json:"executorId,omitempty"`
	ExecutorGroup  string            `json:"executorGroup"`
	CurrentNode    string            `json:"currentNode,omitempty"`
	Variables      map[string]string `json:"variables,omitempty"`
}

// RunStepApiResponse is one entry of a run's execution log.
type RunStepApiResponse struct {
	ID             int64     `json:"id"`
	NodeID         string    `json:"nodeId,omitempty"`
	ExecutionCount int       `json:"executionCount"`
	Type           string    `json:"type"`
	Text           string    `json:"text,omitempty"`
	DateTime       time.Time `json:"dateTime"`
}
