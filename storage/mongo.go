package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"newsdesk/types"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoConfig configures the Mongo article collection
type MongoConfig struct {
	URI        string
	Database   string
	Collection string
}

// mongoArticle is the persisted document layout
type mongoArticle struct {
	ID          primitive.ObjectID `bson:"_id,omitempty"`
	Identity    mongoIdentity      `bson:"identity"`
	Title       string             `bson:"title"`
	Link        string             `bson:"link"`
	Source      string             `bson:"source"`
	Content     string             `bson:"content"`
	PublishedAt time.Time          `bson:"published_at"`
	CreatedAt   time.Time          `bson:"created_at"`
	Clients     []string           `bson:"clients"`
	Sentiment   []types.Annotation `bson:"sentiment,omitempty"`
}

type mongoIdentity struct {
	Title string `bson:"title"`
	Link  string `bson:"link"`
}

// MongoStore is an ArticleStore on a Mongo collection. Client linking uses an
// upsert with $addToSet, which Mongo applies atomically per document.
type MongoStore struct {
	client *mongo.Client
	coll   *mongo.Collection
	now    Clock
}

// NewMongoStore connects, ensures indexes and returns the store
func NewMongoStore(ctx context.Context, cfg MongoConfig, now Clock) (*MongoStore, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.URI))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to mongo: %w", err)
	}
	pctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("failed to reach mongo: %w", err)
	}
	if now == nil {
		now = time.Now
	}
	s := &MongoStore{
		client: client,
		coll:   client.Database(cfg.Database).Collection(cfg.Collection),
		now:    now,
	}
	if err := s.ensureIndexes(ctx); err != nil {
		_ = client.Disconnect(ctx)
		return nil, err
	}
	return s, nil
}

// articleIndexes describes the persisted layout: unique identity, source, created_at
func articleIndexes() []mongo.IndexModel {
	return []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "identity.title", Value: 1}, {Key: "identity.link", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("identity_unique"),
		},
		{
			Keys:    bson.D{{Key: "source", Value: 1}},
			Options: options.Index().SetName("source"),
		},
		{
			Keys:    bson.D{{Key: "clients", Value: 1}, {Key: "created_at", Value: 1}},
			Options: options.Index().SetName("clients_created_at"),
		},
	}
}

func (s *MongoStore) ensureIndexes(ctx context.Context) error {
	if _, err := s.coll.Indexes().CreateMany(ctx, articleIndexes()); err != nil {
		return fmt.Errorf("failed to create article indexes: %w", err)
	}
	return nil
}

// upsertModel builds the single-document upsert for one sighting
func upsertModel(clientID string, a types.Article, now time.Time) (*mongo.UpdateOneModel, bool) {
	ident, ok := identityOf(a)
	if !ok {
		return nil, false
	}
	filter := bson.D{
		{Key: "identity.title", Value: ident.Title},
		{Key: "identity.link", Value: ident.Link},
	}
	update := bson.D{
		{Key: "$setOnInsert", Value: bson.D{
			{Key: "title", Value: a.Title},
			{Key: "link", Value: a.Link},
			{Key: "source", Value: a.Source},
			{Key: "content", Value: a.Content},
			{Key: "published_at", Value: a.PublishedAt},
			{Key: "created_at", Value: now.UTC()},
		}},
		{Key: "$addToSet", Value: bson.D{{Key: "clients", Value: clientID}}},
	}
	return mongo.NewUpdateOneModel().SetFilter(filter).SetUpdate(update).SetUpsert(true), true
}

func (s *MongoStore) UpsertBatch(ctx context.Context, clientID string, articles []types.Article) (int, error) {
	if err := checkClient(clientID); err != nil {
		return 0, err
	}
	now := s.now()
	models := make([]mongo.WriteModel, 0, len(articles))
	for _, a := range articles {
		if m, ok := upsertModel(clientID, a, now); ok {
			models = append(models, m)
		}
	}
	if len(models) == 0 {
		return 0, nil
	}
	return upsertAll(ctx, s.coll, models)
}

// bulkWriter is the part of *mongo.Collection that UpsertBatch writes through
type bulkWriter interface {
	BulkWrite(ctx context.Context, models []mongo.WriteModel, opts ...*options.BulkWriteOptions) (*mongo.BulkWriteResult, error)
}

// upsertAll applies models unordered and counts inserts plus new client links.
// Two upserts racing to insert the same identity leave one with a duplicate key
// error; a single replay turns it into a match, and models that already applied
// are no-ops the second time, so nothing is counted twice.
func upsertAll(ctx context.Context, w bulkWriter, models []mongo.WriteModel) (int, error) {
	added := 0
	res, err := w.BulkWrite(ctx, models, options.BulkWrite().SetOrdered(false))
	if res != nil {
		added += int(res.UpsertedCount + res.ModifiedCount)
	}
	if err != nil && mongo.IsDuplicateKeyError(err) {
		res, err = w.BulkWrite(ctx, models, options.BulkWrite().SetOrdered(false))
		if res != nil {
			added += int(res.UpsertedCount + res.ModifiedCount)
		}
	}
	if err != nil {
		return added, classifyMongo("upsert", err)
	}
	return added, nil
}

func (s *MongoStore) AnnotateSentiment(ctx context.Context, articleID string, annotations []types.Annotation) error {
	oid, err := primitive.ObjectIDFromHex(articleID)
	if err != nil {
		return fmt.Errorf("article %q: %w", articleID, types.ErrInvalidReference)
	}
	if annotations == nil {
		annotations = []types.Annotation{}
	}
	res, err := s.coll.UpdateOne(ctx,
		bson.D{{Key: "_id", Value: oid}},
		bson.D{{Key: "$set", Value: bson.D{{Key: "sentiment", Value: annotations}}}},
	)
	if err != nil {
		return classifyMongo("annotate", err)
	}
	if res.MatchedCount == 0 {
		return fmt.Errorf("article %q: %w", articleID, types.ErrInvalidReference)
	}
	return nil
}

// todayFilter selects the client's articles in the UTC day containing now
func todayFilter(clientID string, now time.Time) bson.D {
	start, end := DayWindow(now)
	return bson.D{
		{Key: "clients", Value: clientID},
		{Key: "created_at", Value: bson.D{{Key: "$gte", Value: start}, {Key: "$lt", Value: end}}},
	}
}

// todayProjection hides fields the caller did not request
func todayProjection(opts QueryOptions) bson.D {
	proj := bson.D{{Key: "identity", Value: 0}}
	if !opts.IncludeInternal {
		proj = append(proj, bson.E{Key: "clients", Value: 0})
	}
	if !opts.IncludeSentiment {
		proj = append(proj, bson.E{Key: "sentiment", Value: 0})
	}
	return proj
}

func (s *MongoStore) QueryForClientToday(ctx context.Context, clientID string, opts QueryOptions) ([]types.Article, error) {
	if err := checkClient(clientID); err != nil {
		return nil, err
	}
	findOpts := options.Find().
		SetProjection(todayProjection(opts)).
		SetSort(bson.D{{Key: "created_at", Value: 1}})

	cur, err := s.coll.Find(ctx, todayFilter(clientID, s.now()), findOpts)
	if err != nil {
		return nil, classifyMongo("query", err)
	}
	var docs []mongoArticle
	if err := cur.All(ctx, &docs); err != nil {
		return nil, classifyMongo("query", err)
	}

	out := make([]types.Article, 0, len(docs))
	for _, d := range docs {
		a := types.Article{
			ID:          d.ID.Hex(),
			Title:       d.Title,
			Link:        d.Link,
			Source:      d.Source,
			Content:     d.Content,
			PublishedAt: d.PublishedAt,
			CreatedAt:   d.CreatedAt,
			Tenants:     d.Clients,
			Sentiment:   d.Sentiment,
		}
		out = append(out, project(a, opts))
	}
	return out, nil
}

func (s *MongoStore) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.client.Disconnect(ctx)
}

func classifyMongo(op string, err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return unavailable(op, err)
}
