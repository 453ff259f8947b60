// Package stages implements the fetch, enrich and deliver steps of a client run.
package stages

import (
	"context"

	"newsdesk/types"
)

// DefaultSource is used when a client names no news source
const DefaultSource = "newscatcher"

// NewsSource searches a news provider for a topic
type NewsSource interface {
	Fetch(ctx context.Context, topic string, params map[string]string) ([]types.Article, error)
}

// Segmenter splits article text into sentences
type Segmenter interface {
	Segment(text string) []string
}

// Classifier labels a single sentence
type Classifier interface {
	Classify(ctx context.Context, sentence string) (types.Label, error)
}
