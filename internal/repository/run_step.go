package repository

import (
	"database/sql"

	"github.com/graphflowhq/graphflow/pkg/graphflow/domain"
)

type RunStepRepository struct {
	db *sql.DB
}

func NewRunStepRepository(db *sql.DB) *RunStepRepository {
	return &RunStepRepository{db: db}
}

func (r *RunStepRepository) Save(s *domain.RunStep) (int64, error) {
	base := `
		INSERT INTO run_steps (run_id, node_id, execution_count, type, text, date_time)
		VALUES (` + placeholder(1) + `, ` + placeholder(2) + `, ` + placeholder(3) + `, ` + placeholder(4) + `, ` + placeholder(5) + `, ` + placeholder(6) + `)
	`
	vals := []interface{}{s.RunID, s.NodeID, s.ExecutionCount, s.Type, s.Text, formatDateInDatabase(s.DateTime)}

	var err error
	if supportsReturning() {
		err = r.db.QueryRow(base+" RETURNING id", vals...).Scan(&s.ID)
	} else {
		res, e := r.db.Exec(base, vals...)
		if e != nil {
			err = e
		} else {
			id, e2 := res.LastInsertId()
			if e2 != nil {
				err = e2
			} else {
				s.ID = id
			}
		}
	}
	return s.ID, err
}

func (r *RunStepRepository) FindAllByRunID(runID int64) (*[]domain.RunStep, error) {
	query := `
		SELECT id, run_id, node_id, execution_count, type, text, date_time
		FROM run_steps
		WHERE run_id = ` + placeholder(1) + `
		ORDER BY id
	`
	rows, err := r.db.Query(query, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	steps := make([]domain.RunStep, 0)
	for rows.Next() {
		var s domain.RunStep
		if err := rows.Scan(&s.ID, &s.RunID, &s.NodeID, &s.ExecutionCount, &s.Type, &s.Text, &s.DateTime); err != nil {
			return nil, err
		}
		steps = append(steps, s)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return &steps, nil
}
