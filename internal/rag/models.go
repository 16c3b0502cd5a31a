package rag

import "time"

// Passage is one retrieved unit of document content considered for the
// answer prompt. Source and Page identify where it came from; zero values
// mean the origin did not provide them.
type Passage struct {
	ID          int64     `json:"id"`
	Content     string    `json:"content"`
	Source      string    `json:"source"`
	Page        int       `json:"page,omitempty"`
	RecordIndex int       `json:"recordIndex,omitempty"`
	RerankScore float64   `json:"rerankScore,omitempty"`
	CreatedAt   time.Time `json:"createdAt,omitempty"`
}

// GenerationResult is the final answer shape for both execution modes.
// Sources == nil means source extraction failed; an empty slice means the
// extraction ran and found no cited sources.
type GenerationResult struct {
	Answer  string   `json:"answer"`
	Sources []string `json:"sources"`
}

// AskRequest is the payload of the /ask endpoints.
type AskRequest struct {
	Question string `json:"question"`
	TopK     int    `json:"topK,omitempty"`
}

// AskResponse is the /ask reply: answer text plus the cited sources.
type AskResponse struct {
	Answer  string   `json:"answer"`
	Sources []string `json:"sources"`
}
