package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docqa/internal/config"
)

func portkeyConfig(baseURL string) *config.Config {
	return &config.Config{
		Provider:        config.ProviderPortkey,
		GenerationModel: "test-model",
		PortkeyBaseURL:  baseURL,
		PortkeyAPIKey:   "pk-test-0123456789abcdef",
		PortkeySlug:     "docqa",
		Temperature:     0.3,
	}
}

func TestPortkeyComplete(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/chat/completions", r.URL.Path)
			assert.Equal(t, "Bearer pk-test-0123456789abcdef", r.Header.Get("Authorization"))

			var req chatCompletionRequest
			require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
			assert.Equal(t, "@docqa/test-model", req.Model)
			assert.False(t, req.Stream)
			require.Len(t, req.Messages, 1)
			assert.Equal(t, "user", req.Messages[0].Role)

			fmt.Fprint(w, `{"choices":[{"message":{"content":"the fee is waived"}}]}`)
		}))
		defer server.Close()

		p := NewPortkey(portkeyConfig(server.URL))

		got, err := p.Complete(context.Background(), "what is the fee?")
		require.NoError(t, err)
		assert.Equal(t, "the fee is waived", got)
	})

	t.Run("no choices is malformed", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			fmt.Fprint(w, `{"choices":[]}`)
		}))
		defer server.Close()

		p := NewPortkey(portkeyConfig(server.URL))

		_, err := p.Complete(context.Background(), "prompt")
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrMalformedResponse)
	})

	t.Run("api error body", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusUnauthorized)
			fmt.Fprint(w, `{"error":{"message":"invalid api key","type":"auth"}}`)
		}))
		defer server.Close()

		p := NewPortkey(portkeyConfig(server.URL))

		_, err := p.Complete(context.Background(), "prompt")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "invalid api key")
	})

	t.Run("non-json error body reports the status, not a malformed response", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadGateway)
			fmt.Fprint(w, "<html>502 Bad Gateway</html>")
		}))
		defer server.Close()

		p := NewPortkey(portkeyConfig(server.URL))

		_, err := p.Complete(context.Background(), "prompt")
		require.Error(t, err)
		assert.NotErrorIs(t, err, ErrMalformedResponse)
		assert.Contains(t, err.Error(), "502")
	})

	t.Run("transport failure wraps into a generation error", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
		server.Close()

		p := NewPortkey(portkeyConfig(server.URL))

		_, err := p.Complete(context.Background(), "prompt")

		var genErr *GenerationError
		require.ErrorAs(t, err, &genErr)
		assert.Equal(t, config.ProviderPortkey, genErr.Provider)
		assert.Equal(t, "complete", genErr.Op)
	})
}

func TestPortkeyStream(t *testing.T) {
	sse := func(lines ...string) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			var req chatCompletionRequest
			require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
			assert.True(t, req.Stream)

			w.Header().Set("Content-Type", "text/event-stream")
			for _, l := range lines {
				fmt.Fprintf(w, "%s\n\n", l)
			}
		}
	}

	t.Run("chunks arrive in order, contentless fragments skipped", func(t *testing.T) {
		server := httptest.NewServer(sse(
			`data: {"choices":[{"delta":{"role":"assistant"}}]}`,
			`data: {"choices":[{"delta":{"content":"The fee "}}]}`,
			`data: {"choices":[{"delta":{"content":"is waived."}}]}`,
			`data: {"choices":[{"delta":{}}]}`,
			`data: [DONE]`,
		))
		defer server.Close()

		p := NewPortkey(portkeyConfig(server.URL))

		var chunks []string
		err := p.Stream(context.Background(), "prompt", func(chunk string) error {
			chunks = append(chunks, chunk)
			return nil
		})
		require.NoError(t, err)
		assert.Equal(t, []string{"The fee ", "is waived."}, chunks)
	})

	t.Run("lines after the terminator are ignored", func(t *testing.T) {
		server := httptest.NewServer(sse(
			`data: {"choices":[{"delta":{"content":"hello"}}]}`,
			`data: [DONE]`,
			`data: {"choices":[{"delta":{"content":"ghost"}}]}`,
		))
		defer server.Close()

		p := NewPortkey(portkeyConfig(server.URL))

		var chunks []string
		err := p.Stream(context.Background(), "prompt", func(chunk string) error {
			chunks = append(chunks, chunk)
			return nil
		})
		require.NoError(t, err)
		assert.Equal(t, []string{"hello"}, chunks)
	})

	t.Run("invalid fragment is malformed", func(t *testing.T) {
		server := httptest.NewServer(sse(`data: {not json`))
		defer server.Close()

		p := NewPortkey(portkeyConfig(server.URL))

		err := p.Stream(context.Background(), "prompt", func(string) error { return nil })
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrMalformedResponse)
	})

	t.Run("callback error propagates unwrapped", func(t *testing.T) {
		server := httptest.NewServer(sse(
			`data: {"choices":[{"delta":{"content":"one"}}]}`,
			`data: {"choices":[{"delta":{"content":"two"}}]}`,
			`data: [DONE]`,
		))
		defer server.Close()

		p := NewPortkey(portkeyConfig(server.URL))

		sentinel := errors.New("stop now")
		err := p.Stream(context.Background(), "prompt", func(string) error { return sentinel })
		assert.ErrorIs(t, err, sentinel)

		var genErr *GenerationError
		assert.False(t, errors.As(err, &genErr), "callback errors are the caller's, not provider failures")
	})

	t.Run("non-200 status fails before any chunk", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "rate limited", http.StatusTooManyRequests)
		}))
		defer server.Close()

		p := NewPortkey(portkeyConfig(server.URL))

		called := false
		err := p.Stream(context.Background(), "prompt", func(string) error {
			called = true
			return nil
		})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "429")
		assert.False(t, called)
	})
}
