package rag

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"text/template"

	wl "github.com/abadojack/whatlanggo"
)

// promptTemplateFile is looked up under the configured prompts directory;
// when absent the built-in template is used.
const promptTemplateFile = "rag_prompt.tmpl"

const defaultPromptTemplate = `You are a technical assistant answering questions about a document corpus.
Answer ONLY based on the passages below. If the answer is not clearly present,
say that it is not available in the indexed documents. Do not invent facts,
names or figures. Answer in {{ .Language }}.

Passages:
{{ range $i, $p := .Passages }}[{{ inc $i }}] source={{ $p.Source }}{{ if $p.Page }} page={{ $p.Page }}{{ end }}
{{ $p.Content }}
----
{{ end }}
Question: {{ .Query }}

Answer:`

type promptData struct {
	Query    string
	Language string
	Passages []Passage
}

var promptFuncs = template.FuncMap{
	"inc": func(i int) int { return i + 1 },
}

// LoadPromptTemplate parses the prompt template from dir, falling back to
// the built-in one when the file does not exist. A file that exists but
// fails to parse is an error rather than a silent fallback.
func LoadPromptTemplate(dir string) (*template.Template, error) {
	path := filepath.Join(dir, promptTemplateFile)
	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return template.New(promptTemplateFile).Funcs(promptFuncs).Parse(defaultPromptTemplate)
		}
		return nil, fmt.Errorf("read prompt template %s: %w", path, err)
	}

	tmpl, err := template.New(promptTemplateFile).Funcs(promptFuncs).Parse(string(raw))
	if err != nil {
		return nil, fmt.Errorf("parse prompt template %s: %w", path, err)
	}
	return tmpl, nil
}

// renderPrompt renders the answer prompt from the ordered passage list and
// the query. Passage order is preserved as given.
func renderPrompt(tmpl *template.Template, query string, passages []Passage) (string, error) {
	var b strings.Builder
	data := promptData{
		Query:    strings.TrimSpace(query),
		Language: detectLanguage(query),
		Passages: passages,
	}
	if err := tmpl.Execute(&b, data); err != nil {
		return "", fmt.Errorf("render prompt: %w", err)
	}
	return b.String(), nil
}

// detectLanguage picks the answer language from the question text.
func detectLanguage(q string) string {
	info := wl.Detect(q)
	switch info.Lang {
	case wl.Por:
		return "Portuguese"
	case wl.Spa:
		return "Spanish"
	case wl.Fra:
		return "French"
	default:
		return "English"
	}
}
