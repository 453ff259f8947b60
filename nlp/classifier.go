package nlp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"newsdesk/types"
)

// ParseLabel maps a model's label string onto the three known labels
func ParseLabel(raw string) (types.Label, error) {
	l := types.Label(strings.ToLower(strings.TrimSpace(raw)))
	if !l.Valid() {
		return "", fmt.Errorf("unknown sentiment label %q", raw)
	}
	return l, nil
}

// HTTPClassifier calls a sentiment inference service (e.g. a finbert server):
//
//	POST {endpoint}/classify {"text": "..."} -> {"label": "positive", "score": 0.93}
type HTTPClassifier struct {
	endpoint   string
	apiKey     string
	httpClient *http.Client
}

func NewHTTPClassifier(endpoint, apiKey string, timeout time.Duration) *HTTPClassifier {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &HTTPClassifier{
		endpoint:   strings.TrimRight(endpoint, "/"),
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: timeout},
	}
}

type classifyRequest struct {
	Text string `json:"text"`
}

type classifyResponse struct {
	Label string  `json:"label"`
	Score float64 `json:"score"`
}

func (c *HTTPClassifier) Classify(ctx context.Context, sentence string) (types.Label, error) {
	body, err := json.Marshal(classifyRequest{Text: sentence})
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint+"/classify", bytes.NewReader(body))
	if err != nil {
		return "", types.Fatal(fmt.Errorf("failed to create request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		err := fmt.Errorf("classifier returned %d: %s", resp.StatusCode, strings.TrimSpace(string(b)))
		if resp.StatusCode >= 400 && resp.StatusCode < 500 && resp.StatusCode != http.StatusTooManyRequests {
			return "", types.Fatal(err)
		}
		return "", err
	}

	var out classifyResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("failed to decode response: %w", err)
	}
	return ParseLabel(out.Label)
}
