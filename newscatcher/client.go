// Package newscatcher is a client for the NewsCatcher v3 search API.
package newscatcher

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"newsdesk/types"

	"github.com/araddon/dateparse"
	"golang.org/x/time/rate"
)

// Config configures the client
type Config struct {
	BaseURL   string
	APIKey    string
	RateLimit float64 // requests per second, 0 disables limiting
	PageSize  int
	Timeout   time.Duration
}

// Client fetches articles matching a query
type Client struct {
	baseURL    string
	apiKey     string
	pageSize   int
	limiter    *rate.Limiter
	httpClient *http.Client
}

func NewClient(cfg Config) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	c := &Client{
		baseURL:    cfg.BaseURL,
		apiKey:     cfg.APIKey,
		pageSize:   cfg.PageSize,
		httpClient: &http.Client{Timeout: cfg.Timeout},
	}
	if cfg.RateLimit > 0 {
		c.limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), 1)
	}
	return c
}

type searchResponse struct {
	Status   string          `json:"status"`
	Articles []searchArticle `json:"articles"`
}

type searchArticle struct {
	Title         string `json:"title"`
	Link          string `json:"link"`
	Content       string `json:"content"`
	Summary       string `json:"summary"`
	PublishedDate string `json:"published_date"`
	NameSource    string `json:"name_source"`
	DomainURL     string `json:"domain_url"`
}

// Fetch searches for topic. params are forwarded as extra query parameters.
// Network failures, 429 and 5xx responses are retryable; other 4xx are fatal.
func (c *Client) Fetch(ctx context.Context, topic string, params map[string]string) ([]types.Article, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}

	q := url.Values{}
	q.Set("q", topic)
	if c.pageSize > 0 {
		q.Set("page_size", strconv.Itoa(c.pageSize))
	}
	for k, v := range params {
		q.Set(k, v)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+q.Encode(), nil)
	if err != nil {
		return nil, types.Fatal(fmt.Errorf("failed to create request: %w", err))
	}
	req.Header.Set("x-api-token", c.apiKey)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		err := fmt.Errorf("newscatcher returned %d: %s", resp.StatusCode, strings.TrimSpace(string(b)))
		if resp.StatusCode >= 400 && resp.StatusCode < 500 && resp.StatusCode != http.StatusTooManyRequests {
			return nil, types.Fatal(err)
		}
		return nil, err
	}

	var out searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	articles := make([]types.Article, 0, len(out.Articles))
	for _, a := range out.Articles {
		articles = append(articles, convert(a))
	}
	return articles, nil
}

func convert(a searchArticle) types.Article {
	source := a.NameSource
	if source == "" {
		source = a.DomainURL
	}
	content := a.Content
	if content == "" {
		content = a.Summary
	}
	art := types.Article{
		Title:   a.Title,
		Link:    a.Link,
		Source:  source,
		Content: content,
	}
	if a.PublishedDate != "" {
		if t, err := dateparse.ParseIn(a.PublishedDate, time.UTC); err == nil {
			art.PublishedAt = t.UTC()
		}
	}
	return art
}
