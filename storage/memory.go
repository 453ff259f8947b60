package storage

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"newsdesk/types"
)

type memRecord struct {
	article types.Article
	tenants map[string]struct{}
}

// MemoryStore keeps articles in process memory. It is used for local runs and tests.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[string]*memRecord // by identity key
	byID    map[string]string     // store id -> identity key
	now     Clock
}

// NewMemoryStore creates an empty store. A nil clock uses time.Now.
func NewMemoryStore(now Clock) *MemoryStore {
	if now == nil {
		now = time.Now
	}
	return &MemoryStore{
		records: make(map[string]*memRecord),
		byID:    make(map[string]string),
		now:     now,
	}
}

func (m *MemoryStore) UpsertBatch(ctx context.Context, clientID string, articles []types.Article) (int, error) {
	if err := checkClient(clientID); err != nil {
		return 0, err
	}
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	added := 0
	for _, a := range articles {
		ident, ok := identityOf(a)
		if !ok {
			continue
		}
		key := ident.Key()
		rec, exists := m.records[key]
		if !exists {
			a.ID = types.GenerateID(key)
			a.CreatedAt = m.now().UTC()
			a.Tenants = nil
			a.Sentiment = nil
			rec = &memRecord{article: a, tenants: map[string]struct{}{}}
			m.records[key] = rec
			m.byID[a.ID] = key
		}
		if _, linked := rec.tenants[clientID]; !linked {
			rec.tenants[clientID] = struct{}{}
			added++
		}
	}
	return added, nil
}

func (m *MemoryStore) AnnotateSentiment(ctx context.Context, articleID string, annotations []types.Annotation) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	key, ok := m.byID[articleID]
	if !ok {
		return fmt.Errorf("article %q: %w", articleID, types.ErrInvalidReference)
	}
	m.records[key].article.Sentiment = append([]types.Annotation{}, annotations...)
	return nil
}

func (m *MemoryStore) QueryForClientToday(ctx context.Context, clientID string, opts QueryOptions) ([]types.Article, error) {
	if err := checkClient(clientID); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	start, end := DayWindow(m.now())

	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]types.Article, 0)
	for _, rec := range m.records {
		if _, ok := rec.tenants[clientID]; !ok {
			continue
		}
		created := rec.article.CreatedAt
		if created.Before(start) || !created.Before(end) {
			continue
		}
		a := rec.article
		a.Tenants = sortedKeys(rec.tenants)
		a.Sentiment = append([]types.Annotation(nil), rec.article.Sentiment...)
		out = append(out, project(a, opts))
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].Link < out[j].Link
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

// Len returns the number of distinct articles held
func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.records)
}

func (m *MemoryStore) Close() error { return nil }

func sortedKeys(set map[string]struct{}) []string {
	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
