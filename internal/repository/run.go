package repository

import (
	"database/sql"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/graphflowhq/graphflow/pkg/graphflow/core"
	"github.com/graphflowhq/graphflow/pkg/graphflow/domain"
)

type RunRepository struct {
	db    *sql.DB
	clock core.Clock
}

const RUN_COLUMNS = ` id, run_key, definition_name, status, execution_count, retry_count,
		created, modified, next_activation, started, executor_id, executor_group,
		current_node, variables `

func NewRunRepository(db *sql.DB, clock core.Clock) *RunRepository {
	return &RunRepository{db: db, clock: clock}
}

func scanRun(row interface{ Scan(...any) error }) (*domain.WorkflowRun, error) {
	var run domain.WorkflowRun
	err := row.Scan(
		&run.ID,
		&run.RunKey,
		&run.DefinitionName,
		&run.Status,
		&run.ExecutionCount,
		&run.RetryCount,
		&run.Created,
		&run.Modified,
		&run.NextActivation,
		&run.Started,
		&run.ExecutorID,
		&run.ExecutorGroup,
		&run.CurrentNode,
		&run.Variables,
	)
	if err != nil {
		return nil, err
	}
	return &run, nil
}

func (r *RunRepository) Save(run *domain.WorkflowRun) (int64, error) {
	vals := []interface{}{
		run.RunKey, run.DefinitionName, run.Status, run.ExecutionCount, run.RetryCount,
		formatDateInDatabase(run.Created), formatDateInDatabase(run.Modified),
		formatDateInDatabaseNull(run.NextActivation), formatDateInDatabaseNull(run.Started),
		run.ExecutorID, run.ExecutorGroup, run.CurrentNode, run.Variables,
	}
	pps := make([]string, 0, len(vals))
	for i := range vals {
		pps = append(pps, placeholder(i+1))
	}
	base := `INSERT INTO workflow_runs (
		run_key, definition_name, status, execution_count, retry_count,
		created, modified, next_activation, started, executor_id, executor_group,
		current_node, variables
	) VALUES (` + strings.Join(pps, ", ") + `)`

	var err error
	if supportsReturning() {
		err = r.db.QueryRow(base+" RETURNING id", vals...).Scan(&run.ID)
	} else {
		res, e := r.db.Exec(base, vals...)
		if e != nil {
			err = e
		} else {
			id, e2 := res.LastInsertId()
			if e2 != nil {
				err = e2
			} else {
				run.ID = id
			}
		}
	}
	return run.ID, err
}

func (r *RunRepository) FindByID(id int64) (*domain.WorkflowRun, error) {
	query := `
		SELECT ` + RUN_COLUMNS + `
		FROM workflow_runs WHERE id = ` + placeholder(1) + `
	`
	return scanRun(r.db.QueryRow(query, id))
}

// FindByRunKey fetches a run by its external key. Returns (nil, nil) if not found.
func (r *RunRepository) FindByRunKey(key string) (*domain.WorkflowRun, error) {
	query := `
		SELECT ` + RUN_COLUMNS + `
		FROM workflow_runs WHERE run_key = ` + placeholder(1) + `
	`
	run, err := scanRun(r.db.QueryRow(query, key))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return run, err
}

// FindPendingRuns returns runs due for execution in the given executor group.
func (r *RunRepository) FindPendingRuns(size int, executorGroup string) (*[]domain.WorkflowRun, error) {
	query := `
		SELECT ` + RUN_COLUMNS + `
		FROM workflow_runs
		WHERE ` + dateBeforeNow("next_activation", r.clock) + `
		  AND status IN ('NEW', 'SCHEDULED')
		  AND executor_id IS NULL
		  AND executor_group = ` + placeholder(1) + `
		ORDER BY next_activation ASC
		LIMIT ` + placeholder(2) + `
	`
	rows, err := r.db.Query(query, executorGroup, size)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	runs := make([]domain.WorkflowRun, 0)
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, *run)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return &runs, nil
}

// MarkRunAsScheduledForExecution claims a pending run with an optimistic lock
// guarded by the modified timestamp. Returns true only if this executor won.
func (r *RunRepository) MarkRunAsScheduledForExecution(id int64, executorID string, modified time.Time) bool {
	query := `
		UPDATE workflow_runs
		SET status = 'SCHEDULED', modified = ` + nowFunc(r.clock) + `, executor_id = ` + placeholder(1) + `
		WHERE id = ` + placeholder(2) + ` AND modified = ` + placeholder(3) + ` AND status IN ('NEW', 'SCHEDULED') AND executor_id IS NULL
	`
	result, err := r.db.Exec(query, executorID, id, formatDateInDatabase(modified))
	if err != nil {
		slog.Error("Failed to mark run as scheduled", "error", err, "id", id, "executor_id", executorID)
		return false
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false
	}
	return rowsAffected == 1
}

func (r *RunRepository) UpdateStatus(id int64, status string) error {
	query := `
		UPDATE workflow_runs
		SET status = ` + placeholder(1) + `, modified = ` + nowFunc(r.clock) + `
		WHERE id = ` + placeholder(2) + `
	`
	_, err := r.db.Exec(query, status, id)
	return err
}

func (r *RunRepository) UpdateStartingTime(id int64) error {
	query := `
		UPDATE workflow_runs
		SET started = ` + nowFunc(r.clock) + `
		WHERE id = ` + placeholder(1) + `
	`
	_, err := r.db.Exec(query, id)
	return err
}

// UpdateCurrentNode records execution progress. Retries are per node, so the
// counter resets when the run moves to a different node and is preserved when
// a retried run re-enters the node it failed on. The retry_count assignment
// comes first because MySQL evaluates SET expressions left to right and the
// CASE must see the old current_node.
func (r *RunRepository) UpdateCurrentNode(id int64, nodeID string) error {
	query := `
		UPDATE workflow_runs
		SET retry_count = CASE WHEN current_node = ` + placeholder(1) + ` THEN retry_count ELSE 0 END,
		    current_node = ` + placeholder(2) + `, modified = ` + nowFunc(r.clock) + `
		WHERE id = ` + placeholder(3) + `
	`
	_, err := r.db.Exec(query, nodeID, nodeID, id)
	return err
}

func (r *RunRepository) SaveRunVariables(id int64, vars string) error {
	query := `
		UPDATE workflow_runs
		SET variables = ` + placeholder(1) + `, modified = ` + nowFunc(r.clock) + `
		WHERE id = ` + placeholder(2) + `
	`
	_, err := r.db.Exec(query, vars, id)
	return err
}

func (r *RunRepository) IncrementExecutionCount(id int64) error {
	query := `
		UPDATE workflow_runs
		SET execution_count = execution_count + 1
		WHERE id = ` + placeholder(1) + `
	`
	_, err := r.db.Exec(query, id)
	return err
}

// IncrementRetryCounterAndSetNextActivation releases the run back to the
// pending pool so it is retried after the given activation time.
func (r *RunRepository) IncrementRetryCounterAndSetNextActivation(id int64, activation time.Time) error {
	query := `
		UPDATE workflow_runs
		SET status = 'SCHEDULED', executor_id = NULL, retry_count = retry_count + 1,
		    next_activation = ` + placeholder(1) + `, modified = ` + nowFunc(r.clock) + `
		WHERE id = ` + placeholder(2) + `
	`
	_, err := r.db.Exec(query, formatDateInDatabase(activation), id)
	return err
}

func (r *RunRepository) ClearExecutorID(id int64) error {
	query := `
		UPDATE workflow_runs
		SET executor_id = NULL, modified = ` + nowFunc(r.clock) + `
		WHERE id = ` + placeholder(1) + `
	`
	_, err := r.db.Exec(query, id)
	return err
}

func (r *RunRepository) UpdateNextActivationSpecific(id int64, next time.Time) error {
	query := `
		UPDATE workflow_runs
		SET status = 'SCHEDULED', next_activation = ` + placeholder(1) + `, modified = ` + nowFunc(r.clock) + `
		WHERE id = ` + placeholder(2) + `
	`
	_, err := r.db.Exec(query, formatDateInDatabase(next), id)
	return err
}

// FindStuckRuns returns claimed runs whose executor has not touched them for
// the given number of minutes, so the repair service can release them.
func (r *RunRepository) FindStuckRuns(minutesRepair string, executorGroup string, limit int) (*[]domain.WorkflowRun, error) {
	mins := 0
	fmt.Sscanf(minutesRepair, "%d", &mins)
	cutoff := r.clock.Now().UTC().Add(-time.Duration(mins) * time.Minute)

	query := `
		SELECT ` + RUN_COLUMNS + `
		FROM workflow_runs
		WHERE modified < ` + placeholder(1) + `
		  AND status IN ('SCHEDULED', 'EXECUTING')
		  AND executor_id IS NOT NULL
		  AND executor_group = ` + placeholder(2) + `
		ORDER BY next_activation ASC
		LIMIT ` + placeholder(3) + `
	`
	rows, err := r.db.Query(query, formatDateInDatabase(cutoff), executorGroup, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	runs := make([]domain.WorkflowRun, 0)
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, *run)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return &runs, nil
}

// FindAllByDefinition lists runs for one definition, newest first.
func (r *RunRepository) FindAllByDefinition(name string, limit int) (*[]domain.WorkflowRun, error) {
	query := `
		SELECT ` + RUN_COLUMNS + `
		FROM workflow_runs
		WHERE definition_name = ` + placeholder(1) + `
		ORDER BY id DESC
		LIMIT ` + placeholder(2) + `
	`
	rows, err := r.db.Query(query, name, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	runs := make([]domain.WorkflowRun, 0)
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, *run)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return &runs, nil
}
