package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"newsdesk/types"

	"github.com/redis/go-redis/v9"
)

// RedisConfig configures the Redis connection and key namespace
type RedisConfig struct {
	Addr     string // e.g. localhost:6379
	Password string
	DB       int
	Prefix   string // key namespace, e.g. "newsdesk"
}

// upsertScript creates the article hash on first sighting and links the client.
// KEYS: article hash, article clients set, created index, source index, client index
// ARGV: id, created_at (unix ms), payload, source, client id
var upsertScript = redis.NewScript(`
local created = redis.call('HSETNX', KEYS[1], 'created_at', ARGV[2])
if created == 1 then
  redis.call('HSET', KEYS[1], 'payload', ARGV[3], 'source', ARGV[4])
  redis.call('ZADD', KEYS[3], ARGV[2], ARGV[1])
  redis.call('SADD', KEYS[4], ARGV[1])
end
local linked = redis.call('SADD', KEYS[2], ARGV[5])
if linked == 1 then
  redis.call('ZADD', KEYS[5], redis.call('HGET', KEYS[1], 'created_at'), ARGV[1])
end
return {created, linked}
`)

// annotateScript sets the sentiment field only if the article exists
var annotateScript = redis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 0 then
  return 0
end
redis.call('HSET', KEYS[1], 'sentiment', ARGV[1])
return 1
`)

// RedisStore is an ArticleStore on plain Redis data structures:
//
//	{prefix}:article:{id}          hash (payload, created_at, source, sentiment)
//	{prefix}:article:{id}:clients  set of client ids
//	{prefix}:articles:created      zset id -> created_at
//	{prefix}:source:{source}       set of ids
//	{prefix}:client:{client}       zset id -> created_at
type RedisStore struct {
	client *redis.Client
	prefix string
	now    Clock
}

// NewRedisStore connects to Redis and verifies connectivity
func NewRedisStore(ctx context.Context, cfg RedisConfig, now Clock) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	pctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", cfg.Addr, err)
	}
	return NewRedisStoreFromClient(client, cfg.Prefix, now), nil
}

// NewRedisStoreFromClient wraps an existing client
func NewRedisStoreFromClient(client *redis.Client, prefix string, now Clock) *RedisStore {
	if prefix == "" {
		prefix = "newsdesk"
	}
	if now == nil {
		now = time.Now
	}
	return &RedisStore{client: client, prefix: prefix, now: now}
}

// Client exposes the connection so other components can share it
func (r *RedisStore) Client() *redis.Client { return r.client }

func (r *RedisStore) Close() error { return r.client.Close() }

func (r *RedisStore) articleKey(id string) string { return r.prefix + ":article:" + id }
func (r *RedisStore) clientsKey(id string) string { return r.prefix + ":article:" + id + ":clients" }
func (r *RedisStore) createdKey() string          { return r.prefix + ":articles:created" }
func (r *RedisStore) sourceKey(src string) string { return r.prefix + ":source:" + src }
func (r *RedisStore) clientKey(c string) string   { return r.prefix + ":client:" + c }

// storedPayload is the immutable part of an article as written on first sighting
type storedPayload struct {
	Title       string    `json:"title"`
	Link        string    `json:"link"`
	Source      string    `json:"source"`
	Content     string    `json:"content"`
	PublishedAt time.Time `json:"published_at"`
}

func (r *RedisStore) UpsertBatch(ctx context.Context, clientID string, articles []types.Article) (int, error) {
	if err := checkClient(clientID); err != nil {
		return 0, err
	}

	added := 0
	for _, a := range articles {
		ident, ok := identityOf(a)
		if !ok {
			continue
		}
		id := types.GenerateID(ident.Key())
		payload, err := json.Marshal(storedPayload{
			Title:       a.Title,
			Link:        a.Link,
			Source:      a.Source,
			Content:     a.Content,
			PublishedAt: a.PublishedAt,
		})
		if err != nil {
			return added, fmt.Errorf("failed to encode article: %w", err)
		}

		keys := []string{
			r.articleKey(id),
			r.clientsKey(id),
			r.createdKey(),
			r.sourceKey(a.Source),
			r.clientKey(clientID),
		}
		createdAt := r.now().UTC().UnixMilli()
		res, err := upsertScript.Run(ctx, r.client, keys, id, createdAt, payload, a.Source, clientID).Int64Slice()
		if err != nil {
			return added, unavailable("upsert", err)
		}
		if len(res) == 2 {
			added += int(res[1])
		}
	}
	return added, nil
}

func (r *RedisStore) AnnotateSentiment(ctx context.Context, articleID string, annotations []types.Annotation) error {
	if annotations == nil {
		annotations = []types.Annotation{}
	}
	b, err := json.Marshal(annotations)
	if err != nil {
		return fmt.Errorf("failed to encode annotations: %w", err)
	}
	ok, err := annotateScript.Run(ctx, r.client, []string{r.articleKey(articleID)}, b).Int()
	if err != nil {
		return unavailable("annotate", err)
	}
	if ok == 0 {
		return fmt.Errorf("article %q: %w", articleID, types.ErrInvalidReference)
	}
	return nil
}

func (r *RedisStore) QueryForClientToday(ctx context.Context, clientID string, opts QueryOptions) ([]types.Article, error) {
	if err := checkClient(clientID); err != nil {
		return nil, err
	}
	start, end := DayWindow(r.now())

	ids, err := r.client.ZRangeByScore(ctx, r.clientKey(clientID), &redis.ZRangeBy{
		Min: strconv.FormatInt(start.UnixMilli(), 10),
		Max: "(" + strconv.FormatInt(end.UnixMilli(), 10),
	}).Result()
	if err != nil {
		return nil, unavailable("query", err)
	}

	out := make([]types.Article, 0, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	pipe := r.client.Pipeline()
	fields := make([]*redis.SliceCmd, len(ids))
	members := make([]*redis.StringSliceCmd, len(ids))
	for i, id := range ids {
		fields[i] = pipe.HMGet(ctx, r.articleKey(id), "payload", "created_at", "sentiment")
		if opts.IncludeInternal {
			members[i] = pipe.SMembers(ctx, r.clientsKey(id))
		}
	}
	if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, redis.Nil) {
		return nil, unavailable("query", err)
	}

	for i, id := range ids {
		vals := fields[i].Val()
		if len(vals) != 3 || vals[0] == nil {
			continue
		}
		a, err := decodeRedisArticle(id, vals)
		if err != nil {
			return nil, err
		}
		if opts.IncludeInternal {
			a.Tenants = members[i].Val()
		}
		out = append(out, project(a, opts))
	}
	return out, nil
}

func decodeRedisArticle(id string, vals []interface{}) (types.Article, error) {
	var p storedPayload
	raw, _ := vals[0].(string)
	if err := json.Unmarshal([]byte(raw), &p); err != nil {
		return types.Article{}, fmt.Errorf("corrupt article %s: %w", id, err)
	}
	a := types.Article{
		ID:          id,
		Title:       p.Title,
		Link:        p.Link,
		Source:      p.Source,
		Content:     p.Content,
		PublishedAt: p.PublishedAt,
	}
	if s, ok := vals[1].(string); ok {
		if ms, err := strconv.ParseInt(s, 10, 64); err == nil {
			a.CreatedAt = time.UnixMilli(ms).UTC()
		}
	}
	if s, ok := vals[2].(string); ok && s != "" {
		if err := json.Unmarshal([]byte(s), &a.Sentiment); err != nil {
			return types.Article{}, fmt.Errorf("corrupt sentiment for %s: %w", id, err)
		}
	}
	return a, nil
}
