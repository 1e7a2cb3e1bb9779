// Package llm wraps Google's genai SDK for the two LLM consumers in this
// module: the Planner (C7, text-only, one call per run) and the Agentic
// Evaluator (C10, multimodal, many calls per iteration). Both share one
// rate-limited, retrying client; only the parts they attach to a turn
// differ.
//
// Grounded on the teacher's pkg/llm/client.go (LLMClient interface) and
// gemini.go (genai.Client wrapping), extended with image Parts for the
// evaluator's observe→act→verify loop and with retry/rate-limit plumbing
// the teacher's single-call usage never needed.
package llm

// Role is a turn's speaker, using Gemini's own vocabulary ("model" instead
// of "assistant").
type Role string

const (
	RoleSystem Role = "system"
	RoleUser   Role = "user"
	RoleModel  Role = "model"
)

// Image is an inline image attachment for a multimodal turn — a screenshot
// or DOM thumbnail handed to the Agentic Evaluator.
type Image struct {
	MIMEType string
	Data     []byte
}

// Message is one turn of a conversation. Images is empty for ordinary text
// turns; the Planner never sets it.
type Message struct {
	Role    Role
	Content string
	Images  []Image
}

// StreamCallback receives each incremental chunk of a streamed response.
type StreamCallback func(chunk string)

// Client defines the interface both components call through, so the
// Evaluator's ReAct loop and the Planner's one-shot brief can be tested
// against a fake without a live API key.
type Client interface {
	// Chat sends a non-streaming request and returns the complete text
	// response.
	Chat(messages []Message) (string, error)

	// ChatStream sends a streaming request, invoking callback per chunk.
	ChatStream(messages []Message, callback StreamCallback) (string, error)

	// CheckConnection verifies the provider is reachable.
	CheckConnection() error

	// GetModel returns the model identifier in use.
	GetModel() string
}
