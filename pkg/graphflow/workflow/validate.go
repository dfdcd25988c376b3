package workflow

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/hashicorp/go-multierror"
)

// ValidateDefinition parses a raw JSON workflow definition and checks the
// graph invariants the execution engine depends on: schema conformance,
// unique node ids, edges referencing only existing nodes, and acyclicity.
// On success it returns the typed definition with topology unchanged. Every
// failure mode, including completely malformed input, comes back as an error
// wrapping one of the sentinels in errors.go; this function never panics.
func ValidateDefinition(raw []byte) (*Definition, error) {
	var def Definition
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&def); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSchema, err)
	}
	if err := def.Validate(); err != nil {
		return nil, err
	}
	return &def, nil
}

// ValidateDefinitionValue validates a definition that has already been
// decoded into Go values (e.g. a YAML document or an API payload field).
func ValidateDefinitionValue(v any) (*Definition, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSchema, err)
	}
	return ValidateDefinition(raw)
}

// Validate runs the full check pipeline on an already-typed definition. It
// is a pure function of the receiver; the definition is not mutated.
func (d *Definition) Validate() error {
	if err := d.checkShape(); err != nil {
		return err
	}
	nodeIDs, err := d.checkNodeIDs()
	if err != nil {
		return err
	}
	adjacency, err := d.checkEdgeReferences(nodeIDs)
	if err != nil {
		return err
	}
	return d.checkAcyclic(adjacency)
}

// checkShape validates field-level schema constraints: enum membership and
// settings bounds. Violations are aggregated so the user sees everything
// wrong with the shape in one round trip.
func (d *Definition) checkShape() error {
	var errs *multierror.Error

	if len(d.Nodes) == 0 {
		errs = multierror.Append(errs, fmt.Errorf("workflow must have at least one node"))
	}
	for i, n := range d.Nodes {
		if n.ID == "" {
			errs = multierror.Append(errs, fmt.Errorf("node %d is missing an id", i+1))
			continue
		}
		if n.Type != "" && !validNodeTypes[n.Type] {
			errs = multierror.Append(errs, fmt.Errorf("node %q has unknown type %q", n.ID, n.Type))
		}
		if n.Agent != "" {
			if n.Type != "" && n.Type != NodeAgent {
				errs = multierror.Append(errs, fmt.Errorf("node %q of type %q must not set an agent", n.ID, n.Type))
			}
			if !validAgentKinds[n.Agent] {
				errs = multierror.Append(errs, fmt.Errorf("node %q has unknown agent %q", n.ID, n.Agent))
			}
		}
		if n.Type == NodeAgent && n.Agent == "" {
			errs = multierror.Append(errs, fmt.Errorf("agent node %q is missing an agent", n.ID))
		}
	}

	edgeIDs := make(map[string]bool, len(d.Edges))
	for _, e := range d.Edges {
		if e.Source == "" || e.Target == "" {
			errs = multierror.Append(errs, fmt.Errorf("edge %q must have a source and a target", e.name()))
		}
		if e.ID != "" {
			if edgeIDs[e.ID] {
				errs = multierror.Append(errs, fmt.Errorf("duplicate edge id %q", e.ID))
			}
			edgeIDs[e.ID] = true
		}
	}

	if s := d.Settings; s != nil {
		if s.MaxRetries != nil && (*s.MaxRetries < 0 || *s.MaxRetries > MaxRetriesLimit) {
			errs = multierror.Append(errs, fmt.Errorf("settings.maxRetries must be between 0 and %d", MaxRetriesLimit))
		}
		if s.TimeoutMs != nil && (*s.TimeoutMs < MinTimeoutMs || *s.TimeoutMs > MaxTimeoutMs) {
			errs = multierror.Append(errs, fmt.Errorf("settings.timeoutMs must be between %d and %d", MinTimeoutMs, MaxTimeoutMs))
		}
		if s.OnError != "" && !validErrorModes[s.OnError] {
			errs = multierror.Append(errs, fmt.Errorf("settings.onError must be one of stop, continue, retry"))
		}
	}

	if errs.ErrorOrNil() != nil {
		return fmt.Errorf("%w: %v", ErrSchema, errs)
	}
	return nil
}

// checkNodeIDs builds the node id set, rejecting definitions where two
// vertices claim the same identity.
func (d *Definition) checkNodeIDs() (map[string]bool, error) {
	nodeIDs := make(map[string]bool, len(d.Nodes))
	for _, n := range d.Nodes {
		if nodeIDs[n.ID] {
			return nil, fmt.Errorf("%w: %q", ErrDuplicateNodeID, n.ID)
		}
		nodeIDs[n.ID] = true
	}
	return nodeIDs, nil
}

// checkEdgeReferences confirms every edge endpoint exists and returns the
// directed adjacency list used for cycle detection.
func (d *Definition) checkEdgeReferences(nodeIDs map[string]bool) (map[string][]string, error) {
	adjacency := make(map[string][]string, len(d.Nodes))
	for _, e := range d.Edges {
		if !nodeIDs[e.Source] {
			return nil, fmt.Errorf("%w: edge %q source %q", ErrDanglingEdge, e.name(), e.Source)
		}
		if !nodeIDs[e.Target] {
			return nil, fmt.Errorf("%w: edge %q target %q", ErrDanglingEdge, e.name(), e.Target)
		}
		adjacency[e.Source] = append(adjacency[e.Source], e.Target)
	}
	return adjacency, nil
}

// checkAcyclic runs a depth-first traversal from every not-yet-visited node,
// tracking the nodes currently on the recursion stack. Reaching a node that
// is already on the stack means a back-edge exists and the graph has a
// cycle. Self-loops are 1-cycles and are rejected the same way. Reporting
// the first cycle found is sufficient; the user's remedy is the same
// regardless of how many there are.
func (d *Definition) checkAcyclic(adjacency map[string][]string) error {
	visited := make(map[string]bool, len(d.Nodes))
	onStack := make(map[string]bool, len(d.Nodes))

	var visit func(id string) error
	visit = func(id string) error {
		visited[id] = true
		onStack[id] = true
		for _, next := range adjacency[id] {
			if onStack[next] {
				return fmt.Errorf("%w: back-edge %s -> %s", ErrCycle, id, next)
			}
			if !visited[next] {
				if err := visit(next); err != nil {
					return err
				}
			}
		}
		onStack[id] = false
		return nil
	}

	// Restart from every unvisited node so disconnected components are
	// covered, not just whatever happens to be first in the list.
	for _, n := range d.Nodes {
		if !visited[n.ID] {
			if err := visit(n.ID); err != nil {
				return err
			}
		}
	}
	return nil
}
