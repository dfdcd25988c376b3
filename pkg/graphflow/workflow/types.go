package workflow

// NodeType identifies the kind of step a node represents.
type NodeType string

const (
	NodeAgent     NodeType = "agent"
	NodeCondition NodeType = "condition"
	NodeParallel  NodeType = "parallel"
	NodeLoop      NodeType = "loop"
	NodeDelay     NodeType = "delay"
)

var validNodeTypes = map[NodeType]bool{
	NodeAgent:     true,
	NodeCondition: true,
	NodeParallel:  true,
	NodeLoop:      true,
	NodeDelay:     true,
}

// AgentKind identifies which logical content agent handles an agent step.
type AgentKind string

const (
	AgentResearch AgentKind = "research"
	AgentOutline  AgentKind = "outline"
	AgentWriter   AgentKind = "writer"
	AgentEditor   AgentKind = "editor"
	AgentSEO      AgentKind = "seo"
	AgentImage    AgentKind = "image"
	AgentPublish  AgentKind = "publish"
)

// AgentKinds returns every agent kind in a stable order.
func AgentKinds() []AgentKind {
	return []AgentKind{
		AgentResearch, AgentOutline, AgentWriter, AgentEditor,
		AgentSEO, AgentImage, AgentPublish,
	}
}

var validAgentKinds = map[AgentKind]bool{
	AgentResearch: true,
	AgentOutline:  true,
	AgentWriter:   true,
	AgentEditor:   true,
	AgentSEO:      true,
	AgentImage:    true,
	AgentPublish:  true,
}

// ErrorMode controls how run execution reacts to a failing step.
type ErrorMode string

const (
	OnErrorStop     ErrorMode = "stop"
	OnErrorContinue ErrorMode = "continue"
	OnErrorRetry    ErrorMode = "retry"
)

var validErrorModes = map[ErrorMode]bool{
	OnErrorStop:     true,
	OnErrorContinue: true,
	OnErrorRetry:    true,
}

// Settings bounds, enforced during validation.
const (
	MaxRetriesLimit = 10
	MinTimeoutMs    = 1_000
	MaxTimeoutMs    = 3_600_000
)

// Definition is the complete node+edge+settings description of a workflow
// graph as authored in the builder UI.
type Definition struct {
	Nodes     []Node         `json:"nodes" yaml:"nodes"`
	Edges     []Edge         `json:"edges" yaml:"edges"`
	Variables map[string]any `json:"variables,omitempty" yaml:"variables,omitempty"`
	Settings  *Settings      `json:"settings,omitempty" yaml:"settings,omitempty"`
}

// Node is a single step in the workflow graph.
type Node struct {
	ID       string    `json:"id" yaml:"id"`
	Type     NodeType  `json:"type,omitempty" yaml:"type,omitempty"`
	Agent    AgentKind `json:"agent,omitempty" yaml:"agent,omitempty"`
	Position Position  `json:"position" yaml:"position"`
	Data     NodeData  `json:"data" yaml:"data"`
}

// Position holds x/y canvas coordinates. Presentation only, it has no effect
// on validation or execution.
type Position struct {
	X float64 `json:"x" yaml:"x"`
	Y float64 `json:"y" yaml:"y"`
}

// NodeData holds the display label and per-step configuration for a node.
type NodeData struct {
	Label       string         `json:"label,omitempty" yaml:"label,omitempty"`
	Description string         `json:"description,omitempty" yaml:"description,omitempty"`
	Config      map[string]any `json:"config,omitempty" yaml:"config,omitempty"`
	Inputs      []string       `json:"inputs,omitempty" yaml:"inputs,omitempty"`
	Outputs     []string       `json:"outputs,omitempty" yaml:"outputs,omitempty"`
}

// Edge is a directed arc from a source node's output to a target node's
// input, optionally through named handles (e.g. the true/false branches of a
// condition node).
type Edge struct {
	ID           string `json:"id,omitempty" yaml:"id,omitempty"`
	Source       string `json:"source" yaml:"source"`
	Target       string `json:"target" yaml:"target"`
	SourceHandle string `json:"sourceHandle,omitempty" yaml:"sourceHandle,omitempty"`
	TargetHandle string `json:"targetHandle,omitempty" yaml:"targetHandle,omitempty"`
	Label        string `json:"label,omitempty" yaml:"label,omitempty"`
	Condition    string `json:"condition,omitempty" yaml:"condition,omitempty"`
}

// Settings is the execution policy attached to a definition. All fields are
// optional; pointers distinguish "absent" from a zero value.
type Settings struct {
	MaxRetries *int      `json:"maxRetries,omitempty" yaml:"maxRetries,omitempty"`
	TimeoutMs  *int      `json:"timeoutMs,omitempty" yaml:"timeoutMs,omitempty"`
	OnError    ErrorMode `json:"onError,omitempty" yaml:"onError,omitempty"`
}

// name returns a human identifier for an edge in error messages. Builder
// payloads may omit edge ids, so fall back to the endpoints.
func (e *Edge) name() string {
	if e.ID != "" {
		return e.ID
	}
	return e.Source + "->" + e.Target
}
