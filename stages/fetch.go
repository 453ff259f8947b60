package stages

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"newsdesk/storage"
	"newsdesk/types"
)

// FetchStage pulls the client's topic from its news source and records the
// results in the shared store. Re-running it for the same articles is a no-op.
type FetchStage struct {
	store   storage.ArticleStore
	sources map[string]NewsSource
	log     *slog.Logger
}

func NewFetchStage(store storage.ArticleStore, sources map[string]NewsSource, log *slog.Logger) *FetchStage {
	return &FetchStage{store: store, sources: sources, log: log}
}

// Sources lists the configured source names
func (s *FetchStage) Sources() []string {
	out := make([]string, 0, len(s.sources))
	for name := range s.sources {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

func (s *FetchStage) Run(ctx context.Context, client types.ClientConfig, runID string) (types.StageResult, error) {
	name := strings.ToLower(strings.TrimSpace(client.Source))
	if name == "" {
		name = DefaultSource
	}
	src, ok := s.sources[name]
	if !ok {
		return types.StageResult{}, types.Fatal(fmt.Errorf("client %s: unknown news source %q", client.ID, name))
	}

	articles, err := src.Fetch(ctx, client.TopicQuery, client.SourceParams)
	if err != nil {
		return types.StageResult{}, fmt.Errorf("fetch %q from %s: %w", client.TopicQuery, name, err)
	}

	added, err := s.store.UpsertBatch(ctx, client.ID, articles)
	if err != nil {
		return types.StageResult{Fetched: len(articles)}, fmt.Errorf("store articles: %w", err)
	}

	s.log.Info("fetched articles",
		"client_id", client.ID, "run_id", runID, "source", name,
		"fetched", len(articles), "added", added)
	return types.StageResult{Fetched: len(articles), Added: added}, nil
}
