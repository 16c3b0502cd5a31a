// Package ingest loads documents from a local directory and turns them
// into passages ready for embedding and storage. Supported inputs are PDF
// (one passage per page), CSV (cleaned rows, one document per file) and
// survey-description JSON files.
package ingest

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	pdf "github.com/dslipak/pdf"

	"docqa/internal/config"
	"docqa/internal/rag"
)

// Loader walks the configured documents directory and produces chunked
// passages.
type Loader struct {
	cfg *config.Config
}

func NewLoader(cfg *config.Config) *Loader {
	return &Loader{cfg: cfg}
}

// Load collects passages from every supported file under the docs dir.
// Unreadable or malformed files are logged and skipped so one bad file
// cannot abort a whole import.
func (l *Loader) Load() ([]rag.Passage, error) {
	var passages []rag.Passage

	err := filepath.WalkDir(l.cfg.FileDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}

		var (
			loaded  []rag.Passage
			loadErr error
		)
		switch strings.ToLower(filepath.Ext(path)) {
		case ".pdf":
			loaded, loadErr = l.loadPDF(path)
		case ".csv":
			loaded, loadErr = l.loadCSV(path)
		case ".json":
			loaded, loadErr = l.loadJSON(path)
		default:
			return nil
		}
		if loadErr != nil {
			slog.Warn("skipping file", "path", path, "error", loadErr)
			return nil
		}

		passages = append(passages, loaded...)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk %s: %w", l.cfg.FileDir, err)
	}

	return passages, nil
}

// loadPDF extracts one document per non-empty page, page numbers 1-based.
func (l *Loader) loadPDF(path string) ([]rag.Passage, error) {
	r, err := pdf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open pdf: %w", err)
	}

	source := filepath.Base(path)
	var passages []rag.Passage

	for i := 1; i <= r.NumPage(); i++ {
		page := r.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			slog.Warn("skipping pdf page", "path", path, "page", i, "error", err)
			continue
		}
		text = SanitizeUTF8(strings.TrimSpace(text))
		if text == "" {
			continue
		}
		passages = append(passages, l.chunked(text, source, i, 0)...)
	}

	return passages, nil
}

// loadCSV reads the file with the configured delimiter, drops empty rows
// and cells, and stores the cleaned content as one document.
func (l *Loader) loadCSV(path string) ([]rag.Passage, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open csv: %w", err)
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.FieldsPerRecord = -1
	if d := []rune(l.cfg.CSVDelimiter); len(d) > 0 {
		reader.Comma = d[0]
	}

	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read csv: %w", err)
	}

	var lines []string
	for _, record := range records {
		var cells []string
		for _, cell := range record {
			cell = strings.TrimSpace(cell)
			if cell != "" {
				cells = append(cells, cell)
			}
		}
		if len(cells) > 0 {
			lines = append(lines, strings.Join(cells, l.cfg.CSVDelimiter))
		}
	}
	if len(lines) == 0 {
		return nil, nil
	}

	content := SanitizeUTF8(strings.Join(lines, "\n"))
	return l.chunked(content, filepath.Base(path), 0, 0), nil
}

// loadJSON accepts a survey object or an array of survey objects; anything
// else is skipped.
func (l *Loader) loadJSON(path string) ([]rag.Passage, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read json: %w", err)
	}

	source := filepath.Base(path)

	var obj map[string]any
	if err := json.Unmarshal(raw, &obj); err == nil {
		text, ok := SurveyToText(obj)
		if !ok {
			slog.Warn("json file has no survey structure, skipping", "path", path)
			return nil, nil
		}
		return l.chunked(SanitizeUTF8(text), source, 0, 0), nil
	}

	var list []map[string]any
	if err := json.Unmarshal(raw, &list); err != nil {
		return nil, fmt.Errorf("parse json: %w", err)
	}

	var passages []rag.Passage
	for i, item := range list {
		text, ok := SurveyToText(item)
		if !ok {
			continue
		}
		passages = append(passages, l.chunked(SanitizeUTF8(text), source, 0, i)...)
	}
	return passages, nil
}

// chunked splits content per the configured chunk size/overlap and stamps
// origin metadata on every resulting passage.
func (l *Loader) chunked(content, source string, page, recordIndex int) []rag.Passage {
	chunks := SplitText(content, l.cfg.ChunkSize, l.cfg.ChunkOverlap)
	passages := make([]rag.Passage, 0, len(chunks))
	for _, c := range chunks {
		passages = append(passages, rag.Passage{
			Content:     c,
			Source:      source,
			Page:        page,
			RecordIndex: recordIndex,
		})
	}
	return passages
}
