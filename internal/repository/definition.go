package repository

import (
	"database/sql"

	"github.com/graphflowhq/graphflow/internal/config"
	"github.com/graphflowhq/graphflow/pkg/graphflow/domain"
)

type DefinitionRepository struct {
	db *sql.DB
}

func NewDefinitionRepository(db *sql.DB) *DefinitionRepository {
	return &DefinitionRepository{db: db}
}

// Save inserts a new workflow definition or updates an existing one by name.
func (r *DefinitionRepository) Save(def *domain.WorkflowDefinition) error {
	query := ""
	db := config.GetSystemSettingString(config.DATABASE_TYPE)
	if db == config.DATABASE_TYPE_POSTGRES || db == config.DATABASE_TYPE_SQLITE {
		query = `
		INSERT INTO workflow_definitions (name, description, revision, checksum, created, updated, definition)
		VALUES (` + placeholder(1) + `, ` + placeholder(2) + `, ` + placeholder(3) + `, ` + placeholder(4) + `, ` + placeholder(5) + `, ` + placeholder(6) + `, ` + placeholder(7) + `)
		ON CONFLICT (name)
		DO UPDATE SET description = EXCLUDED.description,
			revision = EXCLUDED.revision,
			checksum = EXCLUDED.checksum,
			updated = EXCLUDED.updated,
			definition = EXCLUDED.definition
	`
	} else if db == config.DATABASE_TYPE_MYSQL {
		query = `
		INSERT INTO workflow_definitions (name, description, revision, checksum, created, updated, definition)
		VALUES (` + placeholder(1) + `, ` + placeholder(2) + `, ` + placeholder(3) + `, ` + placeholder(4) + `, ` + placeholder(5) + `, ` + placeholder(6) + `, ` + placeholder(7) + `)
		ON DUPLICATE KEY UPDATE description = VALUES(description),
			revision = VALUES(revision),
			checksum = VALUES(checksum),
			updated = VALUES(updated),
			definition = VALUES(definition)
	`
	} else {
		panic("Unknown database type trying to save workflow definition")
	}

	_, err := r.db.Exec(query, def.Name, def.Description, def.Revision, def.Checksum,
		formatDateInDatabase(def.Created), formatDateInDatabase(def.Updated), def.Definition)
	return err
}

// FindByName fetches a workflow definition by its unique name.
// Returns (nil, nil) if not found.
func (r *DefinitionRepository) FindByName(name string) (*domain.WorkflowDefinition, error) {
	query := `
		SELECT name, description, revision, checksum, created, updated, definition
		FROM workflow_definitions WHERE name = ` + placeholder(1) + `
	`
	var def domain.WorkflowDefinition
	err := r.db.QueryRow(query, name).Scan(
		&def.Name,
		&def.Description,
		&def.Revision,
		&def.Checksum,
		&def.Created,
		&def.Updated,
		&def.Definition,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &def, nil
}

// FindAll returns all workflow definitions ordered by name.
func (r *DefinitionRepository) FindAll() (*[]domain.WorkflowDefinition, error) {
	query := `
		SELECT name, description, revision, checksum, created, updated, definition
		FROM workflow_definitions
		ORDER BY name
	`
	rows, err := r.db.Query(query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	defs := make([]domain.WorkflowDefinition, 0)
	for rows.Next() {
		var d domain.WorkflowDefinition
		if err := rows.Scan(&d.Name, &d.Description, &d.Revision, &d.Checksum, &d.Created, &d.Updated, &d.Definition); err != nil {
			return nil, err
		}
		defs = append(defs, d)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return &defs, nil
}

// DeleteByName removes a definition. Returns true if a row was deleted.
func (r *DefinitionRepository) DeleteByName(name string) (bool, error) {
	query := `DELETE FROM workflow_definitions WHERE name = ` + placeholder(1)
	res, err := r.db.Exec(query, name)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}
