// Package prompts renders the grounding prompt for the free-text path. The
// instruction block is the only mechanism keeping the generation service
// from fabricating answers, so its wording is a hard contract.
package prompts

import (
	"context"
	_ "embed"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/schema"

	"github.com/bizowl/support-assistant/internal/agent/model"
	"github.com/bizowl/support-assistant/internal/chatstore"
)

//go:embed template/grounding_prompt.txt
var groundingPrompt string

// FallbackSentence must be emitted verbatim by the model when the answer is
// not derivable from the corpus.
const FallbackSentence = "Sorry, I can't answer this question. Our customer support team will contact you soon. Would you like to ask any other question?"

// historyOpening replaces the context block on the first free-text turn.
const historyOpening = "This is the start of our conversation."

// RenderGroundingSystem renders the system prompt embedding the entire
// serialized corpus and the bounded conversation history. Rendering goes
// through the Eino prompt component so prompt callbacks fire.
//
// Known tokens are substituted with a Replacer rather than a template
// engine so the JSON braces inside the corpus are left alone.
func RenderGroundingSystem(ctx context.Context, cfg model.PromptConfig, corpus string, history []chatstore.Message) (string, error) {
	content := strings.NewReplacer(
		"{assistant_name}", cfg.AssistantName,
		"{business_name}", cfg.BusinessName,
		"{company_data}", corpus,
		"{conversation_context}", FormatHistory(history),
		"{fallback_sentence}", FallbackSentence,
	).Replace(groundingPrompt)

	tpl := prompt.FromMessages(
		schema.FString,
		schema.MessagesPlaceholder("system_messages", false),
	)
	msgs, err := tpl.Format(ctx, map[string]any{
		"system_messages": []*schema.Message{schema.SystemMessage(content)},
	})
	if err != nil {
		return "", fmt.Errorf("grounding prompt render: %w", err)
	}
	if len(msgs) == 0 || msgs[0] == nil {
		return "", fmt.Errorf("grounding prompt render: empty result")
	}
	return msgs[0].Content, nil
}

// FormatHistory serializes a bounded history window oldest-to-newest as
// "User:"/"Assistant:" lines. An empty window states the conversation is
// beginning.
func FormatHistory(msgs []chatstore.Message) string {
	var b strings.Builder
	for _, m := range msgs {
		content := strings.TrimSpace(m.Content)
		if content == "" {
			continue
		}
		role := "User"
		if m.Sender == chatstore.SenderBot {
			role = "Assistant"
		}
		if b.Len() > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(role + ": " + content)
	}
	if b.Len() == 0 {
		return historyOpening
	}
	return b.String()
}
