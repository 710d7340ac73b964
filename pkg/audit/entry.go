// Package audit produces and stores the audit trail of executed actions.
// Entries are structured, human-readable records handed to the memory
// store; the control loop writes them for every action regardless of
// outcome.
package audit

import (
	"crypto/rand"
	"time"

	"github.com/oklog/ulid/v2"
)

// EntryType identifies audit entries inside the external memory store.
const EntryType = "audit_trail"

// Entry is one audit record. Content is a human-readable multi-line
// summary; Metadata carries the machine-readable fields.
type Entry struct {
	ID        string         `json:"id"`
	Type      string         `json:"type"`
	Content   string         `json:"content"`
	Metadata  map[string]any `json:"metadata,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
	AgentID   string         `json:"agent_id"`
}

// NewID returns a sortable unique entry ID.
func NewID() string {
	return ulid.MustNew(ulid.Timestamp(time.Now()), rand.Reader).String()
}
