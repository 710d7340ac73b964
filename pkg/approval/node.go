// Package approval gates multi-step and nested tool calls behind user
// consent. Tool-call parts form a tree: a parent tool's output may carry
// the tool calls a delegated sub-agent made. The gate flattens that tree,
// finds the first call waiting on the user, and decides which later calls
// are blocked until they answer — and when they reject one, withdraws
// everything still undecided after it.
package approval

import "strings"

// State is a tool call's lifecycle state.
type State string

const (
	StateInputStreaming    State = "input-streaming"
	StateInputAvailable    State = "input-available"
	StateApprovalRequested State = "approval-requested"
	StateApprovalResponded State = "approval-responded"
	StateOutputAvailable   State = "output-available"
	StateOutputDenied      State = "output-denied"
)

// Node is the canonical tool-call tree node. Ingestion collapses the wire
// format's two nesting keys into the single Nested list, so the rest of
// the gate never sees the dual-field shape.
type Node struct {
	Kind       string  `json:"kind"`
	State      State   `json:"state,omitempty"`
	ApprovalID string  `json:"approval_id,omitempty"`
	Nested     []*Node `json:"nested,omitempty"`
}

// IsTool reports whether the node is a tool-call part.
func (n *Node) IsTool() bool {
	return n != nil && strings.Contains(n.Kind, "tool-")
}

// AwaitingApproval reports whether the node is paused on the user.
func (n *Node) AwaitingApproval() bool {
	return n != nil && n.State == StateApprovalRequested
}

// FromParts normalizes a caller-supplied message part tree. Both
// output.parts and output.content are accepted as the nesting key; they
// are equivalent on the wire and merged in order here.
func FromParts(parts []map[string]any) []*Node {
	nodes := make([]*Node, 0, len(parts))
	for _, part := range parts {
		if part == nil {
			continue
		}
		nodes = append(nodes, fromPart(part))
	}
	return nodes
}

func fromPart(part map[string]any) *Node {
	node := &Node{
		Kind:  stringField(part, "type"),
		State: State(stringField(part, "state")),
	}
	if approvalVal, ok := part["approval"].(map[string]any); ok {
		node.ApprovalID = stringField(approvalVal, "id")
	}
	if output, ok := part["output"].(map[string]any); ok {
		node.Nested = append(node.Nested, nestedParts(output, "parts")...)
		node.Nested = append(node.Nested, nestedParts(output, "content")...)
	}
	return node
}

func nestedParts(output map[string]any, key string) []*Node {
	raw, ok := output[key].([]any)
	if !ok {
		return nil
	}
	var nodes []*Node
	for _, item := range raw {
		if part, ok := item.(map[string]any); ok {
			nodes = append(nodes, fromPart(part))
		}
	}
	return nodes
}

func stringField(m map[string]any, key string) string {
	if v, ok := m[key].(string); ok {
		return v
	}
	return ""
}
