package seed

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/graphflowhq/graphflow/pkg/graphflow/core"
	"github.com/graphflowhq/graphflow/pkg/graphflow/domain"
	"github.com/graphflowhq/graphflow/pkg/graphflow/workflow"
)

// maxFileSize caps how much of a seed file we are willing to read.
const maxFileSize = 100 * 1024

// DefinitionStore is the slice of definition persistence the seeder needs.
type DefinitionStore interface {
	FindByName(name string) (*domain.WorkflowDefinition, error)
	Save(def *domain.WorkflowDefinition) error
}

// File is the on-disk format for seeded definitions: a name, an optional
// description and the workflow graph itself.
type File struct {
	Name        string              `yaml:"name" json:"name"`
	Description string              `yaml:"description" json:"description"`
	Workflow    workflow.Definition `yaml:"workflow" json:"workflow"`
}

// LoadDirectory reads every .yaml, .yml and .json file in dir, validates the
// contained definition and upserts it into the store. Invalid files are
// logged and skipped so one bad definition does not stop the rest from
// loading. A missing or empty dir is not an error.
func LoadDirectory(dir string, store DefinitionStore, clock core.Clock) error {
	if dir == "" {
		return nil
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			slog.Warn("Seed directory does not exist, skipping", "dir", dir)
			return nil
		}
		return fmt.Errorf("reading seed directory %s: %w", dir, err)
	}

	loaded := 0
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(entry.Name()))
		if ext != ".yaml" && ext != ".yml" && ext != ".json" {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		if err := loadFile(path, store, clock); err != nil {
			slog.Warn("Skipping seed file", "file", path, "error", err)
			continue
		}
		loaded++
	}
	slog.Info("Seeded workflow definitions", "dir", dir, "loaded", loaded)
	return nil
}

func loadFile(path string, store DefinitionStore, clock core.Clock) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	if info.Size() > maxFileSize {
		return fmt.Errorf("file is %d bytes, limit is %d", info.Size(), maxFileSize)
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	var file File
	if strings.HasSuffix(strings.ToLower(path), ".json") {
		err = json.Unmarshal(raw, &file)
	} else {
		err = yaml.Unmarshal(raw, &file)
	}
	if err != nil {
		return fmt.Errorf("parsing: %w", err)
	}
	if file.Name == "" {
		return fmt.Errorf("seed file has no name")
	}

	// normalize to the JSON form the API stores, then validate it the same
	// way a PUT through the API would be
	canonical, err := json.Marshal(file.Workflow)
	if err != nil {
		return fmt.Errorf("serializing definition: %w", err)
	}
	if _, err := workflow.ValidateDefinition(canonical); err != nil {
		return err
	}

	checksum := domain.DefinitionChecksum(string(canonical))
	existing, err := store.FindByName(file.Name)
	if err != nil {
		return err
	}
	if existing != nil && existing.Checksum == checksum {
		slog.Debug("Seed definition unchanged", "name", file.Name)
		return nil
	}

	def := &domain.WorkflowDefinition{
		Name:        file.Name,
		Description: file.Description,
		Revision:    uuid.NewString(),
		Checksum:    checksum,
		Updated:     clock.Now(),
		Definition:  string(canonical),
	}
	if existing != nil {
		def.Created = existing.Created
	} else {
		def.Created = clock.Now()
	}
	slog.Info("Seeding workflow definition", "name", file.Name, "file", path)
	return store.Save(def)
}
