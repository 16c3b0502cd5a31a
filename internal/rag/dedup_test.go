package rag

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDeduplicate(t *testing.T) {
	t.Run("removes duplicates keeping first occurrence", func(t *testing.T) {
		passages := []Passage{
			{Content: "fees are waived for premium accounts", Source: "fees.pdf", Page: 2},
			{Content: "refunds are processed within five days", Source: "refunds.pdf", Page: 1},
			{Content: "fees are waived for premium accounts", Source: "fees.pdf", Page: 2},
		}

		got := Deduplicate(passages)

		require.Len(t, got, 2)
		assert.Equal(t, "fees.pdf", got[0].Source)
		assert.Equal(t, "refunds.pdf", got[1].Source)
	})

	t.Run("same content on different pages is kept", func(t *testing.T) {
		passages := []Passage{
			{Content: "terms and conditions", Source: "contract.pdf", Page: 1},
			{Content: "terms and conditions", Source: "contract.pdf", Page: 2},
		}

		assert.Len(t, Deduplicate(passages), 2)
	})

	t.Run("same content from different sources is kept", func(t *testing.T) {
		passages := []Passage{
			{Content: "terms and conditions", Source: "a.pdf", Page: 1},
			{Content: "terms and conditions", Source: "b.pdf", Page: 1},
		}

		assert.Len(t, Deduplicate(passages), 2)
	})

	t.Run("passages diverging only past the fingerprint length collapse", func(t *testing.T) {
		prefix := strings.Repeat("x", fingerprintLen)
		passages := []Passage{
			{Content: prefix + " tail one", Source: "doc.pdf", Page: 3},
			{Content: prefix + " tail two", Source: "doc.pdf", Page: 3},
		}

		got := Deduplicate(passages)

		require.Len(t, got, 1)
		assert.Equal(t, prefix+" tail one", got[0].Content)
	})

	t.Run("passages diverging inside the fingerprint are kept apart", func(t *testing.T) {
		passages := []Passage{
			{Content: "alpha body", Source: "doc.pdf", Page: 3},
			{Content: "omega body", Source: "doc.pdf", Page: 3},
		}

		assert.Len(t, Deduplicate(passages), 2)
	})

	t.Run("idempotent", func(t *testing.T) {
		passages := []Passage{
			{Content: "one", Source: "a.pdf"},
			{Content: "one", Source: "a.pdf"},
			{Content: "two", Source: "b.pdf"},
		}

		once := Deduplicate(passages)
		twice := Deduplicate(once)

		assert.Equal(t, once, twice)
	})

	t.Run("does not modify the input", func(t *testing.T) {
		passages := []Passage{
			{Content: "one", Source: "a.pdf"},
			{Content: "one", Source: "a.pdf"},
		}

		_ = Deduplicate(passages)

		assert.Len(t, passages, 2)
	})

	t.Run("empty input", func(t *testing.T) {
		assert.Empty(t, Deduplicate(nil))
	})
}

func TestContentPrefix(t *testing.T) {
	t.Run("counts runes not bytes", func(t *testing.T) {
		s := strings.Repeat("ã", 10)
		assert.Equal(t, strings.Repeat("ã", 5), contentPrefix(s, 5))
	})

	t.Run("short strings returned whole", func(t *testing.T) {
		assert.Equal(t, "abc", contentPrefix("abc", 120))
	})
}
