package model

import (
	"fmt"
	"strings"

	"github.com/hupe1980/agentloop/core"
)

// RenderToolTurn renders a tool turn as plain text for backends that require
// tool results to be paired with an assistant tool-call message. The log only
// keeps the result, so providers forward it as user-visible context instead.
func RenderToolTurn(t core.Turn) string {
	return fmt.Sprintf("tool %s returned: %s", t.ToolName, t.Content)
}

// SplitSystem joins every system turn into one instruction string and returns
// the remaining turns in order.
func SplitSystem(turns []core.Turn) (string, []core.Turn) {
	var (
		system []string
		rest   = make([]core.Turn, 0, len(turns))
	)
	for _, t := range turns {
		if t.Role == core.RoleSystem {
			if t.Content != "" {
				system = append(system, t.Content)
			}
			continue
		}
		rest = append(rest, t)
	}
	return strings.Join(system, "\n\n"), rest
}
