package model

import (
	"github.com/cloudwego/eino/schema"
)

// AppState stores per-invocation state for the response graph.
// All reads/writes happen only inside Eino state handlers
// (WithStatePreHandler, WithStatePostHandler, compose.ProcessState);
// Eino serializes access there, so no mutex is needed as long as the
// state is never touched outside handlers.
type AppState struct {
	SessionID string
	History   []*schema.Message
}
