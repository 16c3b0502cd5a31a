package rag

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractSources(t *testing.T) {
	passages := []Passage{
		{Content: "fee table", Source: "fees.pdf", Page: 2},
		{Content: "refund rules", Source: "refunds.pdf", Page: 1},
		{Content: "survey data", Source: "survey.json"},
	}

	t.Run("cited sources in passage order", func(t *testing.T) {
		answer := "According to fees.pdf the charge is waived; survey.json confirms the numbers."

		got, err := ExtractSources(answer, passages)
		require.NoError(t, err)

		assert.Equal(t, []string{"fees.pdf", "survey.json"}, got)
	})

	t.Run("matches the bare name without extension", func(t *testing.T) {
		answer := "The refunds document states processing takes five business days."

		got, err := ExtractSources(answer, passages)
		require.NoError(t, err)

		assert.Equal(t, []string{"refunds.pdf"}, got)
	})

	t.Run("match is case-insensitive", func(t *testing.T) {
		got, err := ExtractSources("See FEES.PDF for details.", passages)
		require.NoError(t, err)

		assert.Equal(t, []string{"fees.pdf"}, got)
	})

	t.Run("uncited answer yields an empty list, not nil", func(t *testing.T) {
		got, err := ExtractSources("The answer is not available in the indexed documents.", passages)
		require.NoError(t, err)

		assert.NotNil(t, got)
		assert.Empty(t, got)
	})

	t.Run("duplicate citations collapse", func(t *testing.T) {
		duplicated := append([]Passage{}, passages[0], passages[0])

		got, err := ExtractSources("fees.pdf is mentioned, and fees.pdf again.", duplicated)
		require.NoError(t, err)

		assert.Equal(t, []string{"fees.pdf"}, got)
	})

	t.Run("empty answer is an error", func(t *testing.T) {
		_, err := ExtractSources("   ", passages)
		assert.Error(t, err)
	})

	t.Run("passages without a source are skipped", func(t *testing.T) {
		got, err := ExtractSources("anything at all", []Passage{{Content: "body"}})
		require.NoError(t, err)

		assert.Empty(t, got)
	})
}
