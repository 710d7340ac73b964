package approval

// FlattenTools returns every tool-call node in the tree in pre-order:
// each parent before the calls nested in its output. That order is the
// approval-sequencing order the user sees.
func FlattenTools(nodes []*Node) []*Node {
	var flat []*Node
	var walk func(ns []*Node)
	walk = func(ns []*Node) {
		for _, n := range ns {
			if n == nil {
				continue
			}
			if n.IsTool() {
				flat = append(flat, n)
			}
			walk(n.Nested)
		}
	}
	walk(nodes)
	return flat
}

// HasPendingApproval reports whether any node at any depth is waiting on
// the user. The UI uses it to decide whether a parent renders expanded.
func HasPendingApproval(nodes []*Node) bool {
	for _, n := range nodes {
		if n == nil {
			continue
		}
		if n.AwaitingApproval() {
			return true
		}
		if HasPendingApproval(n.Nested) {
			return true
		}
	}
	return false
}

// FirstPendingIndex returns the index within the flattened tool list of
// the first call awaiting approval, or -1 when nothing is pending.
func FirstPendingIndex(flat []*Node) int {
	for i, n := range flat {
		if n.AwaitingApproval() {
			return i
		}
	}
	return -1
}

// IsDisabled reports whether the tool at index i is blocked from being
// acted on. Only same-state "waiting in line" calls are blocked: a tool
// is disabled iff something is pending, this tool sits strictly after it,
// and this tool is itself awaiting approval. Completed calls and calls
// before the pending one are never disabled.
func IsDisabled(i int, flat []*Node, firstPending int) bool {
	if firstPending == -1 || i < 0 || i >= len(flat) {
		return false
	}
	return i > firstPending && flat[i].AwaitingApproval()
}
