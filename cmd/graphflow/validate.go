package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/graphflowhq/graphflow/pkg/graphflow/workflow"
)

// validateCmd represents the validate command
var validateCmd = &cobra.Command{
	Use:   "validate <file>",
	Short: "Validate a workflow definition file",
	Long: `Validate checks a definition file (JSON or YAML) the same way the
API does before persisting: schema shape, duplicate node ids, edge
references and cycles. Exits non-zero with the failure message, which makes
it usable as a CI gate.

Examples:
  graphflow validate blog-post.json
  graphflow validate pipeline.yaml`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := args[0]
		raw, err := os.ReadFile(path)
		if err != nil {
			return err
		}

		var def *workflow.Definition
		if ext := strings.ToLower(filepath.Ext(path)); ext == ".yaml" || ext == ".yml" {
			var doc any
			if err := yaml.Unmarshal(raw, &doc); err != nil {
				return fmt.Errorf("%s: %w", path, err)
			}
			def, err = workflow.ValidateDefinitionValue(doc)
		} else {
			def, err = workflow.ValidateDefinition(raw)
		}
		if err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}

		fmt.Printf("%s: valid (%d nodes, %d edges)\n", path, len(def.Nodes), len(def.Edges))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(validateCmd)
}
