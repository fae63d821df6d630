package llm

// Message roles understood by every backend.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message represents a single message in an LLM conversation.
type Message struct {
	// Role is one of RoleSystem, RoleUser or RoleAssistant.
	Role string

	// Content is the text content of the message.
	Content string
}

// ModelCapabilities describes what an LLM model supports.
type ModelCapabilities struct {
	// ContextWindow is the maximum token count for input + output.
	ContextWindow int

	// MaxOutputTokens is the maximum tokens the model can generate in one completion.
	MaxOutputTokens int
}

// ClampMaxTokens returns n limited to the model's output budget. Zero and
// negative values are returned unchanged so the provider default applies.
func (c ModelCapabilities) ClampMaxTokens(n int) int {
	if n <= 0 || c.MaxOutputTokens <= 0 {
		return n
	}
	return min(n, c.MaxOutputTokens)
}
