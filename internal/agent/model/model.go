package model

// QueryInput is the public input of the free-text response graph.
type QueryInput struct {
	SessionID string `json:"session_id"`
	Query     string `json:"query"`
}

// GenerationModelConfig configures the grounded response model.
type GenerationModelConfig struct {
	Model       string  `envconfig:"GENERATION_MODEL" default:"gemini-1.5-flash"`
	MaxTokens   int     `envconfig:"GENERATION_MAX_TOKENS" default:"2000"`
	Temperature float32 `envconfig:"GENERATION_TEMPERATURE" default:"0.4"`
	// TimeoutSeconds bounds one generation call. There is no retry: a slow
	// or failed call degrades to the fixed apology.
	TimeoutSeconds int `envconfig:"GENERATION_TIMEOUT_SECONDS" default:"30"`
}

// PromptConfig names the assistant and business in the grounding prompt.
type PromptConfig struct {
	AssistantName string `envconfig:"PROMPT_ASSISTANT_NAME" default:"BizOwl Assistant"`
	BusinessName  string `envconfig:"PROMPT_BUSINESS_NAME" default:"BizOwl"`
}

// ConversationConfig governs persistence and the history context window.
type ConversationConfig struct {
	TTL string `envconfig:"CONVERSATION_TTL" default:"24h"`
	// HistoryWindow is the number of most recent messages included in the
	// grounding prompt to preserve continuity across free-text turns.
	HistoryWindow int `envconfig:"CONVERSATION_HISTORY_WINDOW" default:"15"`
}
