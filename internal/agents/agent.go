package agents

import (
	"context"
	"fmt"

	"github.com/graphflowhq/graphflow/pkg/graphflow/workflow"
)

// Request carries everything an agent needs to perform one workflow step.
type Request struct {
	NodeID    string
	Label     string
	Prompt    string
	Config    map[string]any
	Variables map[string]string
}

// Agent performs the work behind a single agent node. Implementations must
// be safe for concurrent use; the engine calls them from multiple workers.
type Agent interface {
	Execute(ctx context.Context, req Request) (string, error)
	Name() string
}

// Registry maps agent kinds to their implementations. It is populated once
// at startup and read-only afterwards.
type Registry struct {
	agents map[workflow.AgentKind]Agent
}

func NewRegistry() *Registry {
	return &Registry{agents: make(map[workflow.AgentKind]Agent)}
}

func (r *Registry) Register(kind workflow.AgentKind, a Agent) {
	r.agents[kind] = a
}

func (r *Registry) Get(kind workflow.AgentKind) (Agent, error) {
	a, ok := r.agents[kind]
	if !ok {
		return nil, fmt.Errorf("no agent registered for kind %q", kind)
	}
	return a, nil
}
