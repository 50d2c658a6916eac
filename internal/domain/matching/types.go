// Package matching implements the receipt-to-transaction match generator:
// candidate windowing, prompt construction, and deterministic post-validation
// of the ranking oracle's output.
//
// The oracle (an LLM) is treated as a black box that returns JSON-shaped
// text. Its output is never trusted directly: every element is run through
// an explicit schema check before it becomes a suggestion.
package matching

import "context"

// Default matcher bounds. All overridable through config.
const (
	DefaultLookbackDays   = 90
	DefaultCandidateLimit = 100
	DefaultMaxSuggestions = 5
)

// Candidate is one validated match candidate from a ranking run.
type Candidate struct {
	TransactionID string  `json:"transaction_id"`
	Confidence    float64 `json:"confidence"`
	Reason        string  `json:"reason"`
}

// OpenAI API types
type ChatCompletionRequest struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	Temperature float64   `json:"temperature"`
	MaxTokens   int       `json:"max_tokens,omitempty"`
}

type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type ChatCompletionResponse struct {
	Choices []Choice `json:"choices"`
}

type Choice struct {
	Message Message `json:"message"`
}

// OracleClient is the ranking-oracle call interface
type OracleClient interface {
	CreateChatCompletion(ctx context.Context, request ChatCompletionRequest) (*ChatCompletionResponse, error)
}
