package rag

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fixedScores(scores []float64) ScoreFunc {
	return func(query string, contents []string) ([]float64, error) {
		return scores, nil
	}
}

func TestRerank(t *testing.T) {
	passages := func() []Passage {
		return []Passage{
			{Content: "passage A", Source: "a.pdf"},
			{Content: "passage B", Source: "b.pdf"},
			{Content: "passage C", Source: "c.pdf"},
		}
	}

	t.Run("orders by score descending and truncates to top-k", func(t *testing.T) {
		r := NewRerankerWithScorer(true, 1, fixedScores([]float64{0.9, 0.2, 0.95}))

		got := r.Rerank("query", passages())

		require.Len(t, got, 1)
		assert.Equal(t, "passage C", got[0].Content)
		assert.Equal(t, 0.95, got[0].RerankScore)
	})

	t.Run("scores are monotonically non-increasing", func(t *testing.T) {
		r := NewRerankerWithScorer(true, 0, fixedScores([]float64{0.1, 0.8, 0.5}))

		got := r.Rerank("query", passages())

		require.Len(t, got, 3)
		for i := 1; i < len(got); i++ {
			assert.GreaterOrEqual(t, got[i-1].RerankScore, got[i].RerankScore)
		}
	})

	t.Run("ties keep input order", func(t *testing.T) {
		r := NewRerankerWithScorer(true, 0, fixedScores([]float64{0.5, 0.5, 0.5}))

		got := r.Rerank("query", passages())

		require.Len(t, got, 3)
		assert.Equal(t, "passage A", got[0].Content)
		assert.Equal(t, "passage B", got[1].Content)
		assert.Equal(t, "passage C", got[2].Content)
	})

	t.Run("disabled reranker passes input through uncapped", func(t *testing.T) {
		called := false
		r := NewRerankerWithScorer(false, 1, func(string, []string) ([]float64, error) {
			called = true
			return nil, nil
		})

		got := r.Rerank("query", passages())

		assert.Len(t, got, 3, "top-k must not apply when reranking is disabled")
		assert.False(t, called)
	})

	t.Run("scorer failure keeps retrieval order", func(t *testing.T) {
		r := NewRerankerWithScorer(true, 1, func(string, []string) ([]float64, error) {
			return nil, errors.New("model exploded")
		})

		got := r.Rerank("query", passages())

		require.Len(t, got, 3)
		assert.Equal(t, "passage A", got[0].Content)
	})

	t.Run("wrong score count keeps retrieval order", func(t *testing.T) {
		r := NewRerankerWithScorer(true, 0, fixedScores([]float64{0.9}))

		got := r.Rerank("query", passages())

		require.Len(t, got, 3)
		assert.Equal(t, "passage A", got[0].Content)
	})

	t.Run("empty input returns empty without invoking the scorer", func(t *testing.T) {
		called := false
		r := NewRerankerWithScorer(true, 3, func(string, []string) ([]float64, error) {
			called = true
			return nil, nil
		})

		got := r.Rerank("query", nil)

		assert.Empty(t, got)
		assert.False(t, called)
	})

	t.Run("top-k larger than input returns everything", func(t *testing.T) {
		r := NewRerankerWithScorer(true, 10, fixedScores([]float64{0.1, 0.2, 0.3}))

		assert.Len(t, r.Rerank("query", passages()), 3)
	})
}
