package llm

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"docqa/internal/config"
)

// Ensure Portkey implements the interface.
var _ Provider = (*Portkey)(nil)

// ssePrefix marks data lines of a server-sent-events stream.
const ssePrefix = "data:"

// Portkey calls a Portkey gateway through its OpenAI-compatible chat
// completions API. The model is addressed as "@{slug}/{model}" so the
// gateway routes the request to the configured upstream.
type Portkey struct {
	client      *http.Client
	baseURL     string
	apiKey      string
	slug        string
	model       string
	temperature float64
}

// NewPortkey creates a Portkey provider from configuration.
func NewPortkey(cfg *config.Config) *Portkey {
	return &Portkey{
		client:      &http.Client{Timeout: defaultTimeout},
		baseURL:     strings.TrimRight(cfg.PortkeyBaseURL, "/"),
		apiKey:      cfg.PortkeyAPIKey,
		slug:        cfg.PortkeySlug,
		model:       cfg.Model(),
		temperature: cfg.Temperature,
	}
}

// Name implements Provider.
func (p *Portkey) Name() string { return config.ProviderPortkey }

// chatCompletionRequest is the /chat/completions request format.
type chatCompletionRequest struct {
	Model       string              `json:"model"`
	Messages    []chatCompletionMsg `json:"messages"`
	Temperature float64             `json:"temperature"`
	Stream      bool                `json:"stream,omitempty"`
}

type chatCompletionMsg struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// chatCompletionResponse is the blocking /chat/completions response format.
type chatCompletionResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error,omitempty"`
}

// chatCompletionChunk is one streamed SSE fragment. Role-only and terminal
// fragments carry an empty delta content.
type chatCompletionChunk struct {
	Choices []struct {
		Delta struct {
			Content string `json:"content"`
		} `json:"delta"`
	} `json:"choices"`
}

// Complete implements Provider.
func (p *Portkey) Complete(ctx context.Context, prompt string) (string, error) {
	resp, err := p.send(ctx, prompt, false)
	if err != nil {
		return "", generationErr(p.Name(), "complete", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", generationErr(p.Name(), "complete", fmt.Errorf("read response: %w", err))
	}

	if resp.StatusCode != http.StatusOK {
		return "", generationErr(p.Name(), "complete",
			fmt.Errorf("status %d: %s", resp.StatusCode, string(body)))
	}

	var chatResp chatCompletionResponse
	if err := json.Unmarshal(body, &chatResp); err != nil {
		return "", generationErr(p.Name(), "complete", fmt.Errorf("%w: %v", ErrMalformedResponse, err))
	}
	if chatResp.Error != nil {
		return "", generationErr(p.Name(), "complete", fmt.Errorf("api error: %s", chatResp.Error.Message))
	}
	if len(chatResp.Choices) == 0 {
		return "", generationErr(p.Name(), "complete", fmt.Errorf("%w: no choices", ErrMalformedResponse))
	}

	return chatResp.Choices[0].Message.Content, nil
}

// Stream implements Provider. It parses the SSE stream, forwarding each
// fragment's delta content and skipping fragments without any.
func (p *Portkey) Stream(ctx context.Context, prompt string, fn StreamFunc) error {
	resp, err := p.send(ctx, prompt, true)
	if err != nil {
		return generationErr(p.Name(), "stream", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return generationErr(p.Name(), "stream",
			fmt.Errorf("status %d: %s", resp.StatusCode, string(body)))
	}

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if !strings.HasPrefix(line, ssePrefix) {
			continue
		}
		data := strings.TrimSpace(strings.TrimPrefix(line, ssePrefix))
		if data == "" || data == "[DONE]" {
			if data == "[DONE]" {
				break
			}
			continue
		}

		var chunk chatCompletionChunk
		if err := json.Unmarshal([]byte(data), &chunk); err != nil {
			return generationErr(p.Name(), "stream", fmt.Errorf("%w: %v", ErrMalformedResponse, err))
		}
		if len(chunk.Choices) == 0 || chunk.Choices[0].Delta.Content == "" {
			continue
		}
		if err := fn(chunk.Choices[0].Delta.Content); err != nil {
			return err
		}
	}
	if err := scanner.Err(); err != nil {
		return generationErr(p.Name(), "stream", fmt.Errorf("read stream: %w", err))
	}

	return nil
}

// send issues the chat completion request, streaming or not.
func (p *Portkey) send(ctx context.Context, prompt string, stream bool) (*http.Response, error) {
	reqBody := chatCompletionRequest{
		Model:       fmt.Sprintf("@%s/%s", p.slug, p.model),
		Messages:    []chatCompletionMsg{{Role: "user", Content: prompt}},
		Temperature: p.temperature,
		Stream:      stream,
	}

	jsonBody, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(
		ctx,
		http.MethodPost,
		p.baseURL+"/chat/completions",
		bytes.NewReader(jsonBody),
	)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+p.apiKey)

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("send request: %w", err)
	}
	return resp, nil
}
