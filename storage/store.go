// Package storage holds the deduplicating, client-tagged article store.
package storage

import (
	"context"
	"fmt"
	"strings"
	"time"

	"newsdesk/deduplication"
	"newsdesk/types"
)

// ArticleStore is shared by every concurrent run. Implementations must make the
// add-client-to-article step a single atomic storage operation.
type ArticleStore interface {
	// UpsertBatch records that clientID saw articles. It returns the number of
	// records created plus the number of existing records newly linked to clientID.
	UpsertBatch(ctx context.Context, clientID string, articles []types.Article) (int, error)
	// AnnotateSentiment replaces an article's annotations. Last writer wins.
	AnnotateSentiment(ctx context.Context, articleID string, annotations []types.Annotation) error
	// QueryForClientToday returns the client's articles created during the current UTC day.
	QueryForClientToday(ctx context.Context, clientID string, opts QueryOptions) ([]types.Article, error)
	Close() error
}

// QueryOptions controls which optional fields a query returns
type QueryOptions struct {
	IncludeSentiment bool
	// IncludeInternal adds the store id and client set
	IncludeInternal bool
}

// Clock returns the current time; stores take one so tests can pin the day
type Clock func() time.Time

// DayWindow returns [start of t's UTC day, start of the next UTC day)
func DayWindow(t time.Time) (time.Time, time.Time) {
	t = t.UTC()
	start := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	return start, start.Add(24 * time.Hour)
}

func checkClient(clientID string) error {
	if strings.TrimSpace(clientID) == "" {
		return fmt.Errorf("empty client id: %w", types.ErrInvalidReference)
	}
	return nil
}

// identityOf returns the dedup identity of a, or false when the article carries
// neither a title nor a link and cannot be deduplicated
func identityOf(a types.Article) (deduplication.Identity, bool) {
	id := deduplication.NewIdentity(a.Title, a.Link)
	return id, !id.Empty()
}

// project strips the fields a query did not ask for
func project(a types.Article, opts QueryOptions) types.Article {
	if !opts.IncludeInternal {
		a.ID = ""
		a.Tenants = nil
	}
	if !opts.IncludeSentiment {
		a.Sentiment = nil
	}
	return a
}

func unavailable(op string, err error) error {
	return fmt.Errorf("%s: %w: %v", op, types.ErrStoreUnavailable, err)
}
