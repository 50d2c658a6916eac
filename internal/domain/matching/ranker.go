package matching

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/previa-finance/previa-backend/internal/infrastructure/storage"
)

// Config holds ranking-run settings
type Config struct {
	Model          string
	Temperature    float64
	MaxTokens      int
	MaxSuggestions int
}

// DefaultConfig returns the matcher's default oracle settings: low
// temperature and bounded output for deterministic-leaning ranking.
func DefaultConfig() Config {
	return Config{
		Model:          "gpt-4o-mini",
		Temperature:    0.1,
		MaxTokens:      1000,
		MaxSuggestions: DefaultMaxSuggestions,
	}
}

// Ranker runs one receipt and its candidate transactions through the
// ranking oracle and post-validates the result.
type Ranker struct {
	client OracleClient
	config Config
	logger *slog.Logger
}

// NewRanker creates a ranker with the given oracle client
func NewRanker(client OracleClient, cfg Config, logger *slog.Logger) *Ranker {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.MaxSuggestions <= 0 {
		cfg.MaxSuggestions = DefaultMaxSuggestions
	}
	return &Ranker{
		client: client,
		config: cfg,
		logger: logger,
	}
}

// Rank asks the oracle to score candidate transactions against the receipt
// and returns at most MaxSuggestions validated candidates, confidence
// descending. A malformed oracle payload is treated as an empty result;
// a failed oracle call is an error.
func (r *Ranker) Rank(ctx context.Context, receipt *storage.Receipt, candidates []*storage.Transaction) ([]Candidate, error) {
	if len(candidates) == 0 {
		return nil, nil
	}

	request := ChatCompletionRequest{
		Model:       r.config.Model,
		Temperature: r.config.Temperature,
		MaxTokens:   r.config.MaxTokens,
		Messages: []Message{
			{Role: "system", Content: SystemInstruction},
			{Role: "user", Content: BuildPrompt(receipt, candidates, r.config.MaxSuggestions)},
		},
	}

	response, err := r.client.CreateChatCompletion(ctx, request)
	if err != nil {
		return nil, fmt.Errorf("ranking oracle call failed: %w", err)
	}
	if len(response.Choices) == 0 {
		return nil, fmt.Errorf("ranking oracle returned no choices")
	}

	knownIDs := make(map[string]bool, len(candidates))
	for _, tx := range candidates {
		knownIDs[tx.ID] = true
	}

	raw := response.Choices[0].Message.Content
	parsed, err := ParseCandidates(raw, knownIDs, r.config.MaxSuggestions)
	if err != nil {
		// Unparsable output is downgraded to zero candidates rather than
		// failing the run.
		r.logger.Warn("discarding unparsable oracle output",
			"receipt_id", receipt.ID, "error", err)
		return nil, nil
	}

	if len(parsed) < len(knownIDs) {
		r.logger.Debug("oracle ranking complete",
			"receipt_id", receipt.ID,
			"candidates", len(candidates),
			"matches", len(parsed))
	}

	return parsed, nil
}
