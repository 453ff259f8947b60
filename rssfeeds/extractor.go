package rssfeeds

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"newsdesk/types"

	readability "github.com/go-shiori/go-readability"
)

const (
	WorkerCount      = 5
	extractorTimeout = 30 * time.Second
)

// ExtractAllContent replaces feed summaries with the full article text using a
// worker pool. Failures keep the summary.
func ExtractAllContent(ctx context.Context, articles []types.Article, log *slog.Logger) {
	var wg sync.WaitGroup
	idx := make(chan int, len(articles))

	for i := 0; i < WorkerCount; i++ {
		go func(workerID int) {
			for n := range idx {
				if ctx.Err() == nil {
					if err := extractContent(&articles[n]); err != nil {
						log.Debug("extraction failed", "worker", workerID, "link", articles[n].Link, "error", err)
					}
				}
				wg.Done()
			}
		}(i)
	}

	for n := range articles {
		wg.Add(1)
		idx <- n
	}

	wg.Wait()
	close(idx)
}

// extractContent fetches and extracts full content for a single article
func extractContent(article *types.Article) error {
	if article.Link == "" {
		return fmt.Errorf("article link is empty")
	}

	extracted, err := readability.FromURL(article.Link, extractorTimeout)
	if err != nil {
		return fmt.Errorf("readability extraction failed: %w", err)
	}
	if text := strings.TrimSpace(extracted.TextContent); text != "" {
		article.Content = text
	}
	return nil
}
