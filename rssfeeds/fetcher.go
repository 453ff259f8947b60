// Package rssfeeds is a news source backed by RSS/Atom feeds.
package rssfeeds

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"newsdesk/types"

	"github.com/mmcdole/gofeed"
)

// Source reads the feeds named in a client's source params and keeps the
// items that mention the client's topic.
//
// Recognised params: feed (preset name or URL, comma separated for several).
type Source struct {
	parser  *gofeed.Parser
	count   int
	extract bool
	log     *slog.Logger
}

func NewSource(count int, extract bool, log *slog.Logger) *Source {
	return &Source{parser: gofeed.NewParser(), count: count, extract: extract, log: log}
}

func (s *Source) Fetch(ctx context.Context, topic string, params map[string]string) ([]types.Article, error) {
	feeds := splitFeeds(params["feed"])
	if len(feeds) == 0 {
		return nil, types.Fatal(errors.New("rss source requires a feed parameter"))
	}

	var articles []types.Article
	for _, f := range feeds {
		items, err := s.fetchFeed(ctx, ResolveFeedURL(f))
		if err != nil {
			return nil, err
		}
		for _, a := range items {
			if matchesTopic(a, topic) {
				articles = append(articles, a)
			}
		}
	}
	if s.count > 0 && len(articles) > s.count {
		articles = articles[:s.count]
	}
	if s.extract {
		ExtractAllContent(ctx, articles, s.log)
	}
	return articles, nil
}

// fetchFeed retrieves and parses one feed
func (s *Source) fetchFeed(ctx context.Context, feedURL string) ([]types.Article, error) {
	feed, err := s.parser.ParseURLWithContext(feedURL, ctx)
	if err != nil {
		err = fmt.Errorf("failed to fetch feed %s: %w", feedURL, err)
		var httpErr gofeed.HTTPError
		if errors.As(err, &httpErr) && httpErr.StatusCode >= 400 && httpErr.StatusCode < 500 && httpErr.StatusCode != 429 {
			return nil, types.Fatal(err)
		}
		return nil, err
	}

	source := feed.Title
	articles := make([]types.Article, 0, len(feed.Items))
	for _, item := range feed.Items {
		var publishedAt time.Time
		if item.PublishedParsed != nil {
			publishedAt = *item.PublishedParsed
		} else if item.UpdatedParsed != nil {
			publishedAt = *item.UpdatedParsed
		}

		content := item.Content
		if content == "" {
			content = item.Description
		}

		articles = append(articles, types.Article{
			Title:       item.Title,
			Link:        item.Link,
			Source:      source,
			Content:     content,
			PublishedAt: publishedAt.UTC(),
		})
	}
	return articles, nil
}

func splitFeeds(raw string) []string {
	var out []string
	for _, f := range strings.Split(raw, ",") {
		if f = strings.TrimSpace(f); f != "" {
			out = append(out, f)
		}
	}
	return out
}

func matchesTopic(a types.Article, topic string) bool {
	topic = strings.ToLower(strings.TrimSpace(topic))
	if topic == "" {
		return true
	}
	return strings.Contains(strings.ToLower(a.Title), topic) ||
		strings.Contains(strings.ToLower(a.Content), topic)
}
