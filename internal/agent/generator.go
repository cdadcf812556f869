// Package agent exposes the fail-open generation client used by the
// free-text conversation path.
package agent

import (
	"context"
	"strings"
	"time"

	"github.com/bizowl/support-assistant/internal/agent/graph"
	"github.com/bizowl/support-assistant/internal/agent/model"
	logx "github.com/bizowl/support-assistant/pkg/logger"
)

// Fixed replies substituted for generation failures. Conversation continuity
// wins over correctness of a given answer: a failed call produces an apology,
// never an error to the caller.
const (
	FailureApology     = "I apologize, but I'm having trouble processing your request right now. Could you please try again in a few moments or let us know if you need human assistance?"
	UnavailableApology = "I apologize, but our AI system is currently unavailable. Our support team will contact you soon."
)

// Generator invokes the text-generation service. Generate never returns an
// error; every failure class (timeout, quota, malformed response, service
// unavailable) is logged and replaced by a fixed apology. No retries.
type Generator struct {
	runner  graph.Runner
	timeout time.Duration
}

// NewGenerator wraps a response graph runner. A nil runner produces a
// generator that always answers with the unavailable apology.
func NewGenerator(runner graph.Runner, timeout time.Duration) *Generator {
	return &Generator{runner: runner, timeout: timeout}
}

// Available reports whether a generation backend is configured.
func (g *Generator) Available() bool {
	return g != nil && g.runner != nil
}

// Generate produces the grounded response for one free-text turn.
func (g *Generator) Generate(ctx context.Context, sessionID, query string) string {
	if !g.Available() {
		return UnavailableApology
	}

	if g.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}

	out, err := g.runner.Invoke(ctx, model.QueryInput{
		SessionID: sessionID,
		Query:     query,
	})
	if err != nil {
		logx.Error().Err(err).Str("session_id", sessionID).Msg("generation failed, substituting apology")
		return FailureApology
	}
	if strings.TrimSpace(out) == "" {
		logx.Error().Str("session_id", sessionID).Msg("generation returned empty response, substituting apology")
		return FailureApology
	}
	return out
}
