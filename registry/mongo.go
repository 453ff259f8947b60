package registry

import (
	"context"
	"errors"
	"fmt"
	"time"

	"newsdesk/types"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoRegistry reads client documents keyed by the "client" field. The
// collection belongs to whoever manages clients; it is never written here.
type MongoRegistry struct {
	client *mongo.Client
	coll   *mongo.Collection
}

func NewMongoRegistry(ctx context.Context, uri, database, collection string) (*MongoRegistry, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to mongo: %w", err)
	}
	return &MongoRegistry{client: client, coll: client.Database(database).Collection(collection)}, nil
}

// clientDoc is a client document as stored. newscatcher_params holds raw
// search parameters whose values may be numbers or booleans.
type clientDoc struct {
	Client            string                 `bson:"client"`
	Cron              string                 `bson:"cron"`
	TopicQuery        string                 `bson:"topic_query"`
	NLP               bool                   `bson:"nlp"`
	SendTo            string                 `bson:"send_to"`
	CredentialsRef    string                 `bson:"credentials_ref"`
	Source            string                 `bson:"source"`
	NewscatcherParams map[string]interface{} `bson:"newscatcher_params"`
}

// config maps the document onto a ClientConfig. Without an explicit topic_query
// the search term "q" doubles as the topic.
func (d clientDoc) config() types.ClientConfig {
	c := types.ClientConfig{
		ID:             d.Client,
		Schedule:       d.Cron,
		TopicQuery:     d.TopicQuery,
		NLPEnabled:     d.NLP,
		DeliveryTarget: d.SendTo,
		CredentialsRef: d.CredentialsRef,
		Source:         d.Source,
	}
	if len(d.NewscatcherParams) > 0 {
		c.SourceParams = make(map[string]string, len(d.NewscatcherParams))
		for k, v := range d.NewscatcherParams {
			if v == nil {
				continue
			}
			c.SourceParams[k] = fmt.Sprint(v)
		}
	}
	if c.TopicQuery == "" {
		c.TopicQuery = c.SourceParams["q"]
	}
	return c
}

func (m *MongoRegistry) List(ctx context.Context) ([]types.ClientConfig, error) {
	cur, err := m.coll.Find(ctx, bson.D{}, options.Find().SetSort(bson.D{{Key: "client", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("failed to list clients: %w", err)
	}
	var docs []clientDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("failed to decode clients: %w", err)
	}
	clients := make([]types.ClientConfig, 0, len(docs))
	for _, d := range docs {
		clients = append(clients, d.config())
	}
	return clients, nil
}

func (m *MongoRegistry) Get(ctx context.Context, id string) (types.ClientConfig, error) {
	var d clientDoc
	err := m.coll.FindOne(ctx, bson.D{{Key: "client", Value: id}}).Decode(&d)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return types.ClientConfig{}, fmt.Errorf("client %q: %w", id, types.ErrUnknownClient)
	}
	if err != nil {
		return types.ClientConfig{}, fmt.Errorf("failed to load client %q: %w", id, err)
	}
	return d.config(), nil
}

func (m *MongoRegistry) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return m.client.Disconnect(ctx)
}
