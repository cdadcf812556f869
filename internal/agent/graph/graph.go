// Package graph composes the free-text response flow: assemble the grounded
// prompt with bounded history, then invoke the Gemini chat model.
package graph

import (
	"context"
	"fmt"
	"net/http"

	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"

	"github.com/bizowl/support-assistant/internal/agent/model"
	"github.com/bizowl/support-assistant/internal/agent/observers"
	"github.com/bizowl/support-assistant/internal/agent/prompts"
	"github.com/bizowl/support-assistant/internal/chatstore"
	"github.com/bizowl/support-assistant/internal/core/errx"
	logx "github.com/bizowl/support-assistant/pkg/logger"
)

const (
	NodePromptAssembler   = "PromptAssembler"
	NodeResponseChatModel = "ResponseChatModel"
)

// HistoryProvider supplies the bounded conversation window for the prompt.
// The fallback chat store satisfies it directly.
type HistoryProvider interface {
	ReadHistory(ctx context.Context, id chatstore.SessionID, limit int) ([]chatstore.Message, error)
}

// Runner executes the compiled graph with the public QueryInput.
type Runner interface {
	Invoke(ctx context.Context, in model.QueryInput) (string, error)
}

// Config holds everything needed to compose the response graph end-to-end.
type Config struct {
	APIKey  string
	BaseURL string

	Model  model.GenerationModelConfig
	Prompt model.PromptConfig

	// Corpus is the serialized knowledge document embedded verbatim into
	// every grounding prompt.
	Corpus        string
	HistoryWindow int
	History       HistoryProvider
}

type graphRunner struct {
	runnable compose.Runnable[model.QueryInput, *schema.Message]
}

func (r *graphRunner) Invoke(ctx context.Context, in model.QueryInput) (string, error) {
	out, err := r.runnable.Invoke(ctx, in, compose.WithCallbacks(observers.NewAllCallbacks()))
	if err != nil {
		return "", err
	}
	if out == nil {
		return "", nil
	}
	return out.Content, nil
}

// BuildResponseGraph constructs the chat model, builds the graph and returns
// a Runner.
func BuildResponseGraph(ctx context.Context, cfg Config) (Runner, error) {
	if cfg.History == nil {
		return nil, errx.New(fmt.Errorf("history provider is nil"),
			errx.KindConfiguration, http.StatusInternalServerError, "response graph misconfigured")
	}
	if cfg.Corpus == "" {
		return nil, errx.New(fmt.Errorf("corpus is empty"),
			errx.KindConfiguration, http.StatusInternalServerError, "response graph misconfigured")
	}

	cm, err := newChatModel(ctx, cfg.APIKey, cfg.BaseURL, cfg.Model)
	if err != nil {
		return nil, err
	}

	g := compose.NewGraph[model.QueryInput, *schema.Message](
		compose.WithGenLocalState(func(ctx context.Context) *model.AppState {
			return &model.AppState{}
		}),
	)

	g.AddLambdaNode(NodePromptAssembler,
		newPromptAssemblerNode(cfg),
		compose.WithStatePreHandler(newPromptAssemblerPreHandler()),
	)
	g.AddChatModelNode(NodeResponseChatModel, cm,
		compose.WithStatePostHandler(newResponseChatModelPostHandler(cfg.Model.Model)),
	)

	g.AddEdge(compose.START, NodePromptAssembler)
	g.AddEdge(NodePromptAssembler, NodeResponseChatModel)
	g.AddEdge(NodeResponseChatModel, compose.END)

	runnable, err := g.Compile(ctx)
	if err != nil {
		logx.Error().Err(err).Msg("error compiling response graph")
		return nil, fmt.Errorf("error compiling response graph: %w", err)
	}

	logx.Debug().Msg("response graph built successfully")
	return &graphRunner{runnable: runnable}, nil
}

// newPromptAssemblerPreHandler records the session id into graph state.
func newPromptAssemblerPreHandler() func(context.Context, model.QueryInput, *model.AppState) (model.QueryInput, error) {
	return func(ctx context.Context, in model.QueryInput, s *model.AppState) (model.QueryInput, error) {
		if s.SessionID == "" {
			s.SessionID = in.SessionID
		}
		return in, nil
	}
}

// newPromptAssemblerNode loads the bounded history window and renders the
// grounding system prompt. A history read failure degrades to an empty
// window rather than failing the turn.
func newPromptAssemblerNode(cfg Config) *compose.Lambda {
	return compose.InvokableLambda(func(ctx context.Context, in model.QueryInput) ([]*schema.Message, error) {
		id := chatstore.ParseSessionID(in.SessionID)
		history, err := cfg.History.ReadHistory(ctx, id, cfg.HistoryWindow)
		if err != nil {
			logx.Warn().Err(err).Str("session_id", in.SessionID).
				Msg("history unavailable for prompt, continuing without context")
			history = nil
		}

		systemPrompt, err := prompts.RenderGroundingSystem(ctx, cfg.Prompt, cfg.Corpus, history)
		if err != nil {
			return nil, fmt.Errorf("render grounding prompt: %w", err)
		}

		return []*schema.Message{
			schema.SystemMessage(systemPrompt),
			schema.UserMessage(in.Query),
		}, nil
	})
}

// newResponseChatModelPostHandler logs token usage and keeps the exchange in
// graph state.
func newResponseChatModelPostHandler(modelName string) func(context.Context, *schema.Message, *model.AppState) (*schema.Message, error) {
	return func(ctx context.Context, out *schema.Message, state *model.AppState) (*schema.Message, error) {
		if out != nil && out.ResponseMeta != nil && out.ResponseMeta.Usage != nil {
			logx.Debug().
				Str("session_id", state.SessionID).
				Str("model", modelName).
				Int("prompt_tokens", out.ResponseMeta.Usage.PromptTokens).
				Int("completion_tokens", out.ResponseMeta.Usage.CompletionTokens).
				Int("total_tokens", out.ResponseMeta.Usage.TotalTokens).
				Msg("LLM usage")
		}
		state.History = append(state.History, out)
		return out, nil
	}
}
