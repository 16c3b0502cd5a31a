package rag

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"text/template"

	"docqa/internal/config"
	"docqa/internal/llm"
)

// Service orchestrates one answer request: retrieve, deduplicate, rerank,
// render the prompt and generate through the configured provider.
type Service struct {
	cfg      *config.Config
	repo     Repository
	embed    EmbeddingsClient
	reranker *Reranker
	tmpl     *template.Template
	provider func() (llm.Provider, error)
}

// NewService wires the answer pipeline. The provider client is resolved
// lazily, once, so an unknown provider name fails on first use in either
// execution mode without any network call.
func NewService(cfg *config.Config, repo Repository, embed EmbeddingsClient, reranker *Reranker) (*Service, error) {
	tmpl, err := LoadPromptTemplate(cfg.PromptsDir)
	if err != nil {
		return nil, err
	}
	return &Service{
		cfg:      cfg,
		repo:     repo,
		embed:    embed,
		reranker: reranker,
		tmpl:     tmpl,
		provider: sync.OnceValues(func() (llm.Provider, error) { return llm.New(cfg) }),
	}, nil
}

// NewServiceWithProvider is NewService with a fixed provider client.
func NewServiceWithProvider(cfg *config.Config, repo Repository, embed EmbeddingsClient, reranker *Reranker, p llm.Provider) (*Service, error) {
	s, err := NewService(cfg, repo, embed, reranker)
	if err != nil {
		return nil, err
	}
	s.provider = func() (llm.Provider, error) { return p, nil }
	return s, nil
}

// Ask answers a question end to end in synchronous mode.
func (s *Service) Ask(ctx context.Context, req AskRequest) (*GenerationResult, error) {
	passages, err := s.retrieve(ctx, req)
	if err != nil {
		return nil, err
	}
	return s.Synthesize(ctx, req.Question, passages)
}

// AskStream answers a question end to end, forwarding each generated chunk
// to fn before returning the accumulated result.
func (s *Service) AskStream(ctx context.Context, req AskRequest, fn llm.StreamFunc) (*GenerationResult, error) {
	passages, err := s.retrieve(ctx, req)
	if err != nil {
		return nil, err
	}
	return s.SynthesizeStream(ctx, req.Question, passages, fn)
}

// Synthesize produces a grounded answer from the query and the retrieved
// passages. Generation failures propagate; source extraction is
// best-effort and reported as Sources == nil when it fails.
func (s *Service) Synthesize(ctx context.Context, query string, passages []Passage) (*GenerationResult, error) {
	provider, prompt, err := s.prepare(query, passages)
	if err != nil {
		return nil, err
	}

	answer, err := provider.Complete(ctx, prompt)
	if err != nil {
		return nil, err
	}

	return s.withSources(answer, passages), nil
}

// SynthesizeStream is Synthesize in streaming mode: each chunk goes to fn
// as soon as it arrives and is accumulated; source extraction runs exactly
// once, after the stream is drained. Chunks already delivered before a
// mid-stream failure stay with the caller.
func (s *Service) SynthesizeStream(ctx context.Context, query string, passages []Passage, fn llm.StreamFunc) (*GenerationResult, error) {
	provider, prompt, err := s.prepare(query, passages)
	if err != nil {
		return nil, err
	}

	var full strings.Builder
	err = provider.Stream(ctx, prompt, func(chunk string) error {
		if err := fn(chunk); err != nil {
			return err
		}
		full.WriteString(chunk)
		return nil
	})
	if err != nil {
		return nil, err
	}

	return s.withSources(full.String(), passages), nil
}

// prepare resolves the provider and renders the prompt from the
// deduplicated, reranked passages. Passage order in the prompt matches the
// reranker output.
func (s *Service) prepare(query string, passages []Passage) (llm.Provider, string, error) {
	provider, err := s.provider()
	if err != nil {
		return nil, "", err
	}

	prepared := s.reranker.Rerank(query, Deduplicate(passages))
	slog.Info("generating answer", "provider", provider.Name(), "passages", len(prepared))

	prompt, err := renderPrompt(s.tmpl, query, prepared)
	if err != nil {
		return nil, "", err
	}
	return provider, prompt, nil
}

// retrieve embeds the question and fetches similar passages.
func (s *Service) retrieve(ctx context.Context, req AskRequest) ([]Passage, error) {
	question := strings.TrimSpace(req.Question)
	if question == "" {
		return nil, errors.New("question is required")
	}

	vec, err := s.embed.Embed(ctx, question)
	if err != nil {
		return nil, fmt.Errorf("embed question: %w", err)
	}

	topK := req.TopK
	if topK <= 0 {
		topK = s.cfg.TopK
	}

	passages, err := s.repo.SearchSimilar(ctx, vec, topK)
	if err != nil {
		return nil, fmt.Errorf("similarity search: %w", err)
	}
	slog.Info("retrieved passages", "count", len(passages))
	return passages, nil
}

// withSources attaches extracted sources to the answer. Extraction failure
// degrades to Sources == nil, never to a failed request.
func (s *Service) withSources(answer string, passages []Passage) *GenerationResult {
	result := &GenerationResult{Answer: answer}

	sources, err := ExtractSources(answer, passages)
	if err != nil {
		slog.Warn("source extraction failed", "error", err)
		return result
	}
	result.Sources = sources
	return result
}
