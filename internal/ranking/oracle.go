package ranking

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/jonathan/luckin/internal/llm"
	"github.com/jonathan/luckin/internal/prompts"
	"github.com/jonathan/luckin/internal/schemas"
	"github.com/jonathan/luckin/internal/types"
)

const (
	// DefaultOracleTimeout bounds a single scoring call.
	DefaultOracleTimeout = 20 * time.Second
	// DefaultMaxDescriptionRunes caps the description snippet sent to the model.
	DefaultMaxDescriptionRunes = 2000
)

// Oracle judges how relevant a posting is to a skill set.
type Oracle interface {
	// Score returns a clamped judgment, or an error when no valid judgment
	// could be produced.
	Score(ctx context.Context, skills []string, title, description string) (*types.Relevance, error)
}

// OracleOptions configures an LLMOracle. Zero values take defaults.
type OracleOptions struct {
	Tier                llm.ModelTier
	Timeout             time.Duration
	MaxDescriptionRunes int
}

// LLMOracle scores postings with a generative model.
type LLMOracle struct {
	client   llm.Client
	template string
	opts     OracleOptions
}

// relevanceResponse is the JSON object the model is asked to return.
type relevanceResponse struct {
	Score       float64 `json:"score"`
	Explanation string  `json:"explanation"`
}

// NewLLMOracle creates an oracle backed by client.
func NewLLMOracle(client llm.Client, opts OracleOptions) (*LLMOracle, error) {
	if client == nil {
		return nil, fmt.Errorf("LLM client is required")
	}
	template, err := prompts.Get("ranking.json", "relevance")
	if err != nil {
		return nil, err
	}

	if opts.Tier == "" {
		opts.Tier = llm.TierLite
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultOracleTimeout
	}
	if opts.MaxDescriptionRunes <= 0 {
		opts.MaxDescriptionRunes = DefaultMaxDescriptionRunes
	}

	return &LLMOracle{client: client, template: template, opts: opts}, nil
}

// Score implements Oracle.
func (o *LLMOracle) Score(ctx context.Context, skills []string, title, description string) (*types.Relevance, error) {
	prompt := o.buildPrompt(skills, title, description)

	callCtx, cancel := context.WithTimeout(ctx, o.opts.Timeout)
	defer cancel()

	jsonResp, err := o.client.GenerateJSON(callCtx, prompt, o.opts.Tier)
	if err != nil {
		return nil, fmt.Errorf("LLM generation failed: %w", err)
	}
	jsonResp = llm.CleanJSONBlock(jsonResp)

	if err := schemas.Validate(schemas.Relevance, jsonResp); err != nil {
		return nil, fmt.Errorf("invalid relevance response: %w", err)
	}

	var resp relevanceResponse
	if err := json.Unmarshal([]byte(jsonResp), &resp); err != nil {
		return nil, fmt.Errorf("failed to parse LLM response: %w (content: %s)", err, jsonResp)
	}

	rel := &types.Relevance{
		Score:       resp.Score,
		Explanation: strings.TrimSpace(resp.Explanation),
	}
	rel.Clamp()
	return rel, nil
}

func (o *LLMOracle) buildPrompt(skills []string, title, description string) string {
	description = truncateRunes(strings.TrimSpace(description), o.opts.MaxDescriptionRunes)
	if description == "" {
		description = "Not provided"
	}
	if title == "" {
		title = "Not specified"
	}

	return prompts.Format(o.template, map[string]string{
		"Skills":      strings.Join(skills, ", "),
		"Title":       title,
		"Description": description,
	})
}

func truncateRunes(s string, n int) string {
	if n <= 0 {
		return s
	}
	count := 0
	for i := range s {
		if count == n {
			return s[:i]
		}
		count++
	}
	return s
}
