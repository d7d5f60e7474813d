package core

import "github.com/google/uuid"

// NewID generates a new unique identifier.
//
// Used to correlate orchestrator runs in logs and to fill in tool call IDs
// that a backend did not supply.
func NewID() string { return uuid.NewString() }
