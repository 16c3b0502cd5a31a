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

// Ensure Ollama implements the interface.
var _ Provider = (*Ollama)(nil)

// Ollama calls a local or self-hosted Ollama server through its chat API.
type Ollama struct {
	client      *http.Client
	host        string
	model       string
	temperature float64
}

// NewOllama creates an Ollama provider from configuration.
func NewOllama(cfg *config.Config) *Ollama {
	return &Ollama{
		client:      &http.Client{Timeout: defaultTimeout},
		host:        strings.TrimRight(cfg.OllamaHost, "/"),
		model:       cfg.Model(),
		temperature: cfg.Temperature,
	}
}

// Name implements Provider.
func (o *Ollama) Name() string { return config.ProviderOllama }

// ollamaChatRequest is the /api/chat request format.
type ollamaChatRequest struct {
	Model    string          `json:"model"`
	Messages []ollamaMessage `json:"messages"`
	Stream   bool            `json:"stream"`
	Options  ollamaOptions   `json:"options"`
}

type ollamaMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type ollamaOptions struct {
	Temperature float64 `json:"temperature"`
}

// ollamaChatResponse covers both the blocking response and one NDJSON
// stream fragment; fragments without message content are skipped.
type ollamaChatResponse struct {
	Message *ollamaMessage `json:"message,omitempty"`
	Done    bool           `json:"done"`
	Error   string         `json:"error,omitempty"`
}

// Complete implements Provider.
func (o *Ollama) Complete(ctx context.Context, prompt string) (string, error) {
	resp, err := o.send(ctx, prompt, false)
	if err != nil {
		return "", generationErr(o.Name(), "complete", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return "", generationErr(o.Name(), "complete",
			fmt.Errorf("status %d: %s", resp.StatusCode, string(body)))
	}

	var chatResp ollamaChatResponse
	if err := json.NewDecoder(resp.Body).Decode(&chatResp); err != nil {
		return "", generationErr(o.Name(), "complete", fmt.Errorf("%w: %v", ErrMalformedResponse, err))
	}
	if chatResp.Error != "" {
		return "", generationErr(o.Name(), "complete", fmt.Errorf("api error: %s", chatResp.Error))
	}
	if chatResp.Message == nil {
		return "", generationErr(o.Name(), "complete", fmt.Errorf("%w: no message", ErrMalformedResponse))
	}

	return chatResp.Message.Content, nil
}

// Stream implements Provider. Ollama streams NDJSON, one fragment per line.
func (o *Ollama) Stream(ctx context.Context, prompt string, fn StreamFunc) error {
	resp, err := o.send(ctx, prompt, true)
	if err != nil {
		return generationErr(o.Name(), "stream", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return generationErr(o.Name(), "stream",
			fmt.Errorf("status %d: %s", resp.StatusCode, string(body)))
	}

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		var chunk ollamaChatResponse
		if err := json.Unmarshal([]byte(line), &chunk); err != nil {
			return generationErr(o.Name(), "stream", fmt.Errorf("%w: %v", ErrMalformedResponse, err))
		}
		if chunk.Error != "" {
			return generationErr(o.Name(), "stream", fmt.Errorf("api error: %s", chunk.Error))
		}
		if chunk.Message != nil && chunk.Message.Content != "" {
			if err := fn(chunk.Message.Content); err != nil {
				return err
			}
		}
		if chunk.Done {
			break
		}
	}
	if err := scanner.Err(); err != nil {
		return generationErr(o.Name(), "stream", fmt.Errorf("read stream: %w", err))
	}

	return nil
}

// send issues the chat request, streaming or not.
func (o *Ollama) send(ctx context.Context, prompt string, stream bool) (*http.Response, error) {
	reqBody := ollamaChatRequest{
		Model:    o.model,
		Messages: []ollamaMessage{{Role: "user", Content: prompt}},
		Stream:   stream,
		Options:  ollamaOptions{Temperature: o.temperature},
	}

	jsonBody, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(
		ctx,
		http.MethodPost,
		o.host+"/api/chat",
		bytes.NewReader(jsonBody),
	)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := o.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("send request: %w", err)
	}
	return resp, nil
}
