package ingest

import (
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/net/html"
)

// fetchTimeout bounds one page fetch so a hung server cannot stall the
// whole import.
const fetchTimeout = 30 * time.Second

var crawlClient = &http.Client{Timeout: fetchTimeout}

// Crawl fetches pages breadth-first under baseURL's host, extracts their
// visible text and hands each non-empty page to handle. It stops after
// maxPages pages.
func Crawl(baseURL string, maxPages int, handle func(pageURL, title, text string) error) error {
	base, err := url.Parse(baseURL)
	if err != nil {
		return fmt.Errorf("invalid base url: %w", err)
	}

	visited := make(map[string]bool)
	queue := []string{base.String()}
	pages := 0

	for len(queue) > 0 && pages < maxPages {
		current := queue[0]
		queue = queue[1:]

		if visited[current] {
			continue
		}
		visited[current] = true
		pages++

		slog.Info("fetching page", "url", current)
		resp, err := crawlClient.Get(current)
		if err != nil {
			slog.Warn("fetch failed", "url", current, "error", err)
			continue
		}
		if resp.StatusCode != http.StatusOK {
			slog.Warn("unexpected status", "url", current, "status", resp.StatusCode)
			resp.Body.Close()
			continue
		}

		bodyBytes, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			slog.Warn("read body failed", "url", current, "error", err)
			continue
		}

		htmlStr := string(bodyBytes)
		text := SanitizeUTF8(strings.TrimSpace(ExtractMainText(htmlStr)))
		if text != "" {
			if err := handle(current, urlToTitle(current, base), text); err != nil {
				return err
			}
		}

		for _, link := range extractLinks(htmlStr, base) {
			if !visited[link] {
				queue = append(queue, link)
			}
		}
	}

	return nil
}

// ExtractMainText returns the visible text of an HTML document, skipping
// script/style content and empty lines.
func ExtractMainText(htmlStr string) string {
	doc, err := html.Parse(strings.NewReader(htmlStr))
	if err != nil {
		return ""
	}

	var b strings.Builder
	var walk func(*html.Node, bool)

	walk = func(n *html.Node, skip bool) {
		if n.Type == html.ElementNode {
			switch n.Data {
			case "script", "style", "noscript":
				skip = true
			}
		}

		if n.Type == html.TextNode && !skip {
			t := strings.TrimSpace(n.Data)
			if t != "" {
				b.WriteString(t)
				b.WriteString("\n")
			}
		}

		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c, skip)
		}
	}
	walk(doc, false)

	lines := strings.Split(b.String(), "\n")
	var filtered []string
	for _, l := range lines {
		l = strings.TrimSpace(l)
		if l != "" && len(l) > 1 {
			filtered = append(filtered, l)
		}
	}
	return strings.Join(filtered, "\n")
}

func extractLinks(htmlStr string, base *url.URL) []string {
	doc, err := html.Parse(strings.NewReader(htmlStr))
	if err != nil {
		return nil
	}
	var links []string

	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && n.Data == "a" {
			for _, a := range n.Attr {
				if a.Key == "href" {
					h := strings.TrimSpace(a.Val)
					if h == "" || strings.HasPrefix(h, "#") {
						continue
					}
					u, err := url.Parse(h)
					if err != nil {
						continue
					}
					u = base.ResolveReference(u)

					if u.Host != base.Host {
						continue
					}

					if strings.HasSuffix(u.Path, ".css") ||
						strings.HasSuffix(u.Path, ".js") ||
						strings.HasSuffix(u.Path, ".png") ||
						strings.HasSuffix(u.Path, ".jpg") ||
						strings.HasSuffix(u.Path, ".svg") {
						continue
					}

					links = append(links, u.Scheme+"://"+u.Host+u.Path)
				}
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)

	seen := make(map[string]bool)
	var out []string
	for _, l := range links {
		if !seen[l] {
			seen[l] = true
			out = append(out, l)
		}
	}
	return out
}

func urlToTitle(raw string, base *url.URL) string {
	u, err := url.Parse(raw)
	if err != nil {
		return raw
	}
	if u.Path == base.Path || u.Path == base.Path+"/" {
		return "Overview"
	}
	parts := strings.Split(strings.Trim(u.Path, "/"), "/")
	last := parts[len(parts)-1]
	last = strings.SplitN(last, ".", 2)[0]
	last = strings.ReplaceAll(last, "-", " ")
	return strings.TrimSpace(last)
}
