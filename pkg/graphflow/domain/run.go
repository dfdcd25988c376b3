package domain

import (
	"database/sql"
	"time"
)

// Run statuses as stored in the workflow_runs table.
const (
	RunStatusNew       = "NEW"
	RunStatusScheduled = "SCHEDULED"
	RunStatusExecuting = "EXECUTING"
	RunStatusFinished  = "FINISHED"
	RunStatusFailed    = "FAILED"
)

// WorkflowRun is a single execution of a stored definition.
type WorkflowRun struct {
	ID             int64
	RunKey         string
	DefinitionName string
	Status         string
	ExecutionCount int
	RetryCount     int
	Created        time.Time
	Modified       time.Time
	NextActivation sql.NullTime
	Started        sql.NullTime
	ExecutorID     sql.NullString
	ExecutorGroup  string
	CurrentNode    sql.NullString
	Variables      sql.NullString
}

// RunStep is one entry in a run's execution log: a node starting, finishing,
// being skipped or retried.
type RunStep struct {
	ID             int64
	RunID          int64
	NodeID         string
	ExecutionCount int
	Type           string
	Text           string
	DateTime       time.Time
}
