package stages

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"newsdesk/storage"
	"newsdesk/types"
)

// EnrichStage labels the sentences of today's client articles that mention
// the client's topic. Articles that already carry annotations are left alone.
type EnrichStage struct {
	store      storage.ArticleStore
	segmenter  Segmenter
	classifier Classifier
	log        *slog.Logger
}

func NewEnrichStage(store storage.ArticleStore, segmenter Segmenter, classifier Classifier, log *slog.Logger) *EnrichStage {
	return &EnrichStage{store: store, segmenter: segmenter, classifier: classifier, log: log}
}

func (s *EnrichStage) Run(ctx context.Context, client types.ClientConfig, runID string) (types.StageResult, error) {
	articles, err := s.store.QueryForClientToday(ctx, client.ID, storage.QueryOptions{
		IncludeSentiment: true,
		IncludeInternal:  true,
	})
	if err != nil {
		return types.StageResult{}, fmt.Errorf("load articles: %w", err)
	}

	var res types.StageResult
	for _, a := range articles {
		if len(a.Sentiment) > 0 {
			continue
		}
		if err := ctx.Err(); err != nil {
			return res, err
		}

		annotations, err := s.Annotate(ctx, client.TopicQuery, a.Content)
		if err != nil {
			return res, fmt.Errorf("article %s: %w", a.ID, err)
		}
		if len(annotations) == 0 {
			continue
		}
		if err := s.store.AnnotateSentiment(ctx, a.ID, annotations); err != nil {
			return res, fmt.Errorf("article %s: %w", a.ID, err)
		}
		res.Annotated++
	}

	s.log.Info("enriched articles",
		"client_id", client.ID, "run_id", runID,
		"candidates", len(articles), "annotated", res.Annotated)
	return res, nil
}

// Annotate segments text and classifies the sentences containing topic.
// An empty topic matches nothing.
func (s *EnrichStage) Annotate(ctx context.Context, topic, text string) ([]types.Annotation, error) {
	keyword := strings.ToLower(strings.TrimSpace(topic))
	sentences := s.segmenter.Segment(text)
	out := make([]types.Annotation, 0, len(sentences))
	for _, sent := range sentences {
		ann := types.Annotation{Sentence: sent}
		if keyword != "" && strings.Contains(strings.ToLower(sent), keyword) {
			label, err := s.classifier.Classify(ctx, sent)
			if err != nil {
				return nil, err
			}
			if !label.Valid() {
				return nil, fmt.Errorf("classifier returned unknown label %q", label)
			}
			ann.Label = label
		}
		out = append(out, ann)
	}
	return out, nil
}
