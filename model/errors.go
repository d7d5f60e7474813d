package model

import "errors"

// ErrNoTerminalChunk is returned when a stream ends without a done chunk.
var ErrNoTerminalChunk = errors.New("stream ended without a terminal chunk")

// ErrNoChoices is returned when a backend answers without any completion.
var ErrNoChoices = errors.New("no choices returned")
