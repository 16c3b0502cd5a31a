package rag

import (
	"errors"
	"path/filepath"
	"strings"
)

// ExtractSources returns the source identifiers of the passages that the
// answer text appears to cite, in first-passage order without duplicates.
// A passage counts as cited when its source name (with or without file
// extension) occurs in the answer, case-insensitively.
//
// This is a heuristic and best-effort: callers must treat an error as
// "sources unknown", not as a failed answer.
func ExtractSources(answer string, passages []Passage) ([]string, error) {
	if strings.TrimSpace(answer) == "" {
		return nil, errors.New("empty answer text")
	}

	lower := strings.ToLower(answer)
	seen := make(map[string]struct{})
	sources := make([]string, 0, len(passages))

	for _, p := range passages {
		src := strings.TrimSpace(p.Source)
		if src == "" {
			continue
		}
		if _, ok := seen[src]; ok {
			continue
		}

		name := strings.ToLower(src)
		bare := strings.TrimSuffix(name, filepath.Ext(name))
		if bare == "" {
			bare = name
		}

		if strings.Contains(lower, name) || strings.Contains(lower, bare) {
			seen[src] = struct{}{}
			sources = append(sources, src)
		}
	}

	return sources, nil
}
