package domain

import (
	"encoding/hex"
	"time"

	"golang.org/x/crypto/blake2b"
)

// WorkflowDefinition is the persisted form of a validated workflow graph.
// Name is the unique key; Definition holds the validated JSON document
// exactly as it passed validation. Revision changes on every save and
// Checksum fingerprints the document so callers can detect unchanged
// re-saves without diffing JSON.
type WorkflowDefinition struct {
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Revision    string    `json:"revision"`
	Checksum    string    `json:"checksum"`
	Created     time.Time `json:"created"`
	Updated     time.Time `json:"updated"`
	Definition  string    `json:"definition"`
}

// DefinitionChecksum fingerprints a definition document. Two saves with the
// same bytes produce the same checksum.
func DefinitionChecksum(definition string) string {
	sum := blake2b.Sum256([]byte(definition))
	return hex.EncodeToString(sum[:])
}
