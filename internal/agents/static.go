package agents

import "context"

// StaticAgent echoes a fixed response. Used in development when no API key
// is configured, and in engine tests.
type StaticAgent struct {
	Response  string
	AgentName string
}

func (a *StaticAgent) Execute(ctx context.Context, req Request) (string, error) {
	if a.Response != "" {
		return a.Response, nil
	}
	return req.Label, nil
}

func (a *StaticAgent) Name() string {
	if a.AgentName != "" {
		return a.AgentName
	}
	return "static"
}
