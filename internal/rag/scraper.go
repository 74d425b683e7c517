package rag

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/net/html"
)

// scrapeClient bounds how long a single page fetch may take.
var scrapeClient = &http.Client{Timeout: 30 * time.Second}

// ScrapeURL fetches a page and extracts its visible text: script, style and
// noscript subtrees are dropped, text nodes are trimmed line by line and
// non-empty lines are joined with newlines.
func ScrapeURL(ctx context.Context, url string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("scraper: invalid url %s: %w", url, err)
	}
	req.Header.Set("User-Agent", "langlab-indexer/1.0")

	resp, err := scrapeClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("scraper: fetch %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, resp.Body)
		return "", fmt.Errorf("scraper: fetch %s: status %d", url, resp.StatusCode)
	}

	doc, err := html.Parse(resp.Body)
	if err != nil {
		return "", fmt.Errorf("scraper: parse %s: %w", url, err)
	}

	var lines []string
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch n.Data {
			case "script", "style", "noscript":
				return
			}
		}
		if n.Type == html.TextNode {
			for _, line := range strings.Split(n.Data, "\n") {
				if line = strings.TrimSpace(line); line != "" {
					lines = append(lines, line)
				}
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)

	return strings.Join(lines, "\n"), nil
}
