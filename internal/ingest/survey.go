package ingest

import (
	"fmt"
	"strings"
)

// SurveyToText converts a survey-description JSON object into structured
// text suitable for indexing. It returns false when the object does not
// look like a survey (no tables, title or description).
func SurveyToText(data map[string]any) (string, bool) {
	_, hasTables := data["tables"]
	_, hasTitle := data["title"]
	_, hasDescription := data["description"]
	if !hasTables && !hasTitle && !hasDescription {
		return "", false
	}

	var lines []string

	if title, _ := data["title"].(string); title != "" {
		lines = append(lines, "# "+title)
	}
	if description, _ := data["description"].(string); description != "" {
		lines = append(lines, fmt.Sprintf("Description: %q", description))
	}

	tables, _ := data["tables"].([]any)
	for _, t := range tables {
		table, ok := t.(map[string]any)
		if !ok {
			continue
		}

		if title, _ := table["table_title"].(string); title != "" {
			lines = append(lines, fmt.Sprintf("\n## %q", title))
		}
		if description, _ := table["table_description"].(string); description != "" {
			lines = append(lines, fmt.Sprintf("Context: %q", description))
		}

		columns, _ := table["columns"].([]any)
		if len(columns) > 0 {
			lines = append(lines, "\nColumns:")
			for _, c := range columns {
				column, ok := c.(map[string]any)
				if !ok {
					continue
				}
				name, _ := column["name"].(string)
				description, _ := column["description"].(string)
				name = strings.TrimSpace(name)
				if name != "" {
					lines = append(lines, fmt.Sprintf("  %q: %q", name, strings.TrimSpace(description)))
				}
			}
		}
	}

	if len(lines) == 0 {
		return "", false
	}
	return strings.Join(lines, "\n"), true
}
