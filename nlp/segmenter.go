// Package nlp adapts the sentence segmenter and sentiment classifiers.
package nlp

import (
	"fmt"
	"strings"
	"sync"

	"github.com/neurosnap/sentences"
	"github.com/neurosnap/sentences/english"
)

// Segmenter splits text into sentences with the punkt english model
type Segmenter struct {
	mu  sync.Mutex
	tok *sentences.DefaultSentenceTokenizer
}

func NewSegmenter() (*Segmenter, error) {
	tok, err := english.NewSentenceTokenizer(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to load sentence model: %w", err)
	}
	return &Segmenter{tok: tok}, nil
}

// Segment returns trimmed, non-empty sentences in order. Blank input yields nil.
func (s *Segmenter) Segment(text string) []string {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	s.mu.Lock()
	parts := s.tok.Tokenize(text)
	s.mu.Unlock()

	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if t := strings.TrimSpace(p.Text); t != "" {
			out = append(out, t)
		}
	}
	return out
}
