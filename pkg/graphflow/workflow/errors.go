package workflow

import (
	"errors"
)

// All validation failures surface as one of these sentinels, wrapped with a
// message that is directly displayable in the builder UI. Callers that need
// to branch can use errors.Is; most just show the message.
var (
	ErrSchema          = errors.New("invalid workflow definition")
	ErrDuplicateNodeID = errors.New("duplicate node id")
	ErrDanglingEdge    = errors.New("edge references non-existent node")
	ErrCycle           = errors.New("workflow contains cycles")
)
