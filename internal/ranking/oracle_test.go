package ranking

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonathan/luckin/internal/llm"
)

func TestLLMOracle_Success(t *testing.T) {
	var gotPrompt string
	var gotTier llm.ModelTier
	client := &MockLLMClient{
		GenerateJSONFunc: func(_ context.Context, prompt string, tier llm.ModelTier) (string, error) {
			gotPrompt, gotTier = prompt, tier
			return `{"score": 0.82, "explanation": "  Strong Python and SQL overlap.  "}`, nil
		},
	}
	oracle, err := NewLLMOracle(client, OracleOptions{})
	require.NoError(t, err)

	rel, err := oracle.Score(context.Background(), []string{"python", "sql"}, "Data Engineer", "Build pipelines.")
	require.NoError(t, err)
	require.NotNil(t, rel)
	assert.InDelta(t, 0.82, rel.Score, 1e-9)
	assert.Equal(t, "Strong Python and SQL overlap.", rel.Explanation)

	assert.Equal(t, llm.TierLite, gotTier)
	assert.Contains(t, gotPrompt, "python, sql")
	assert.Contains(t, gotPrompt, "Data Engineer")
	assert.Contains(t, gotPrompt, "Build pipelines.")
	assert.NotContains(t, gotPrompt, "{{.")
}

func TestLLMOracle_FencedResponse(t *testing.T) {
	client := &MockLLMClient{
		GenerateJSONFunc: func(context.Context, string, llm.ModelTier) (string, error) {
			return "```json\n{\"score\": 0.4, \"explanation\": \"partial\"}\n```", nil
		},
	}
	oracle, err := NewLLMOracle(client, OracleOptions{})
	require.NoError(t, err)

	rel, err := oracle.Score(context.Background(), []string{"go"}, "SRE", "")
	require.NoError(t, err)
	assert.InDelta(t, 0.4, rel.Score, 1e-9)
}

func TestLLMOracle_ClampsScore(t *testing.T) {
	client := &MockLLMClient{
		GenerateJSONFunc: func(context.Context, string, llm.ModelTier) (string, error) {
			return `{"score": 8.5, "explanation": "on a ten point scale"}`, nil
		},
	}
	oracle, err := NewLLMOracle(client, OracleOptions{})
	require.NoError(t, err)

	rel, err := oracle.Score(context.Background(), []string{"go"}, "SRE", "")
	require.NoError(t, err)
	assert.Equal(t, 1.0, rel.Score)
}

func TestLLMOracle_Failures(t *testing.T) {
	tests := []struct {
		name     string
		response string
		err      error
		contains string
	}{
		{"generation error", "", errors.New("quota exceeded"), "LLM generation failed"},
		{"malformed JSON", `{"score": 0.5,`, nil, "invalid relevance response"},
		{"string score", `{"score": "high", "explanation": "x"}`, nil, "invalid relevance response"},
		{"missing explanation", `{"score": 0.5}`, nil, "invalid relevance response"},
		{"prose only", "I cannot rate this job.", nil, "invalid relevance response"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := &MockLLMClient{
				GenerateJSONFunc: func(context.Context, string, llm.ModelTier) (string, error) {
					return tt.response, tt.err
				},
			}
			oracle, err := NewLLMOracle(client, OracleOptions{})
			require.NoError(t, err)

			rel, err := oracle.Score(context.Background(), []string{"go"}, "SRE", "desc")
			require.Error(t, err)
			assert.Nil(t, rel)
			assert.Contains(t, err.Error(), tt.contains)
		})
	}
}

func TestLLMOracle_AppliesTimeout(t *testing.T) {
	var deadline time.Time
	var hasDeadline bool
	client := &MockLLMClient{
		GenerateJSONFunc: func(ctx context.Context, _ string, _ llm.ModelTier) (string, error) {
			deadline, hasDeadline = ctx.Deadline()
			return `{"score": 0.5, "explanation": "x"}`, nil
		},
	}
	oracle, err := NewLLMOracle(client, OracleOptions{Timeout: 2 * time.Second})
	require.NoError(t, err)

	start := time.Now()
	_, err = oracle.Score(context.Background(), []string{"go"}, "SRE", "")
	require.NoError(t, err)
	require.True(t, hasDeadline)
	assert.WithinDuration(t, start.Add(2*time.Second), deadline, time.Second)
}

func TestLLMOracle_TruncatesDescription(t *testing.T) {
	var gotPrompt string
	client := &MockLLMClient{
		GenerateJSONFunc: func(_ context.Context, prompt string, _ llm.ModelTier) (string, error) {
			gotPrompt = prompt
			return `{"score": 0.5, "explanation": "x"}`, nil
		},
	}
	oracle, err := NewLLMOracle(client, OracleOptions{MaxDescriptionRunes: 10})
	require.NoError(t, err)

	_, err = oracle.Score(context.Background(), []string{"go"}, "SRE", "ééééééééééKEEP-OUT")
	require.NoError(t, err)
	assert.Contains(t, gotPrompt, "éééééééééé")
	assert.NotContains(t, gotPrompt, "KEEP-OUT")

	_, err = oracle.Score(context.Background(), []string{"go"}, "", "   ")
	require.NoError(t, err)
	assert.Contains(t, gotPrompt, "Not provided")
	assert.Contains(t, gotPrompt, "Not specified")
}

func TestNewLLMOracle_RequiresClient(t *testing.T) {
	_, err := NewLLMOracle(nil, OracleOptions{})
	assert.Error(t, err)
}

func TestTruncateRunes(t *testing.T) {
	assert.Equal(t, "abc", truncateRunes("abcdef", 3))
	assert.Equal(t, "ab", truncateRunes("ab", 3))
	assert.Equal(t, "日本", truncateRunes("日本語", 2))
	assert.Equal(t, strings.Repeat("x", 5), truncateRunes(strings.Repeat("x", 5), 0))
}
