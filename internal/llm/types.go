package llm

// Role labels who a conversation message comes from.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one turn in the conversation sent to a provider. Answer
// generation sends a system prompt followed by a single user message
// carrying the question and its retrieved context.
type Message struct {
	Role    Role
	Content string
}

// CompletionRequest carries the provider-independent completion
// parameters. Model overrides the provider's configured model when set.
type CompletionRequest struct {
	Model       string
	Messages    []Message
	MaxTokens   int
	Temperature float64
}

// CompletionResponse is the normalized result of a completion. Token
// counts are as reported by the backend and may be zero when the
// backend omits usage data.
type CompletionResponse struct {
	Content      string
	InputTokens  int
	OutputTokens int
	Model        string
	FinishReason string
}
