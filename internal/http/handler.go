package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"docqa/internal/llm"
	"docqa/internal/rag"
)

// askTimeout bounds one answer request, generation included.
const askTimeout = 120 * time.Second

// AnswerService is the part of the rag service the handlers need.
type AnswerService interface {
	Ask(ctx context.Context, req rag.AskRequest) (*rag.GenerationResult, error)
	AskStream(ctx context.Context, req rag.AskRequest, fn llm.StreamFunc) (*rag.GenerationResult, error)
}

type Handler struct {
	service AnswerService
}

func NewHandler(service AnswerService) *Handler {
	return &Handler{service: service}
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// Ask answers synchronously: full JSON body with answer and sources.
func (h *Handler) Ask(w http.ResponseWriter, r *http.Request) {
	var req rag.AskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), askTimeout)
	defer cancel()

	result, err := h.service.Ask(ctx, req)
	if err != nil {
		status := http.StatusBadRequest
		var genErr *llm.GenerationError
		if errors.As(err, &genErr) {
			status = http.StatusBadGateway
		}
		http.Error(w, err.Error(), status)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(rag.AskResponse{Answer: result.Answer, Sources: result.Sources})
}

// AskStream answers incrementally: chunks are written and flushed as they
// arrive, followed by a sources trailer. A failure after the first chunk
// cannot change the status code; delivered text stays with the client.
func (h *Handler) AskStream(w http.ResponseWriter, r *http.Request) {
	var req rag.AskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), askTimeout)
	defer cancel()

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("X-Content-Type-Options", "nosniff")

	wrote := false
	result, err := h.service.AskStream(ctx, req, func(chunk string) error {
		if _, err := fmt.Fprint(w, chunk); err != nil {
			return err
		}
		wrote = true
		flusher.Flush()
		return nil
	})
	if err != nil {
		if !wrote {
			status := http.StatusBadRequest
			var genErr *llm.GenerationError
			if errors.As(err, &genErr) {
				status = http.StatusBadGateway
			}
			http.Error(w, err.Error(), status)
			return
		}
		slog.Error("stream aborted mid-answer", "error", err)
		return
	}

	if result.Sources != nil {
		fmt.Fprint(w, "\n\nSources:\n")
		for _, s := range result.Sources {
			fmt.Fprintf(w, "- %s\n", s)
		}
	}
	flusher.Flush()
}
