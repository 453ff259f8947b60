// Package delivery holds the closed set of transports a client can deliver to.
package delivery

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"newsdesk/secrets"
	"newsdesk/types"
)

// Mode is a delivery target token from the client registry
type Mode string

const (
	ModeSQS    Mode = "sqs"
	ModeS3     Mode = "s3"
	ModePubSub Mode = "pub/sub"
	ModeKafka  Mode = "kafka"
)

// Message is one encoded payload plus routing metadata
type Message struct {
	ClientID string
	RunID    string
	Body     []byte
}

// Transport ships one message to a destination
type Transport interface {
	Send(ctx context.Context, msg Message) error
}

// Factory builds a transport from a client's credentials. Missing credential
// fields are fatal.
type Factory func(ctx context.Context, creds secrets.Credentials) (Transport, error)

// Registry resolves delivery targets. Its set of modes is fixed at construction.
type Registry struct {
	factories map[Mode]Factory
}

// NewRegistry returns the registry of built-in transports
func NewRegistry() *Registry {
	return NewRegistryWith(map[Mode]Factory{
		ModeSQS:    NewSQSTransport,
		ModeS3:     NewS3Transport,
		ModePubSub: NewPubSubTransport,
		ModeKafka:  NewKafkaTransport,
	})
}

// NewRegistryWith builds a registry over an explicit factory table
func NewRegistryWith(factories map[Mode]Factory) *Registry {
	r := &Registry{factories: make(map[Mode]Factory, len(factories))}
	for m, f := range factories {
		r.factories[m] = f
	}
	return r
}

// Resolve returns the factory for target or ErrUnknownDeliveryMode
func (r *Registry) Resolve(target string) (Mode, Factory, error) {
	m := Mode(strings.ToLower(strings.TrimSpace(target)))
	f, ok := r.factories[m]
	if !ok {
		return "", nil, fmt.Errorf("delivery target %q: %w", target, types.ErrUnknownDeliveryMode)
	}
	return m, f, nil
}

// Modes lists the registered modes in sorted order
func (r *Registry) Modes() []Mode {
	out := make([]Mode, 0, len(r.factories))
	for m := range r.factories {
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

const (
	StatusOK     = "ok"
	StatusNoData = "no_data"
)

// Payload is the document delivered for one run
type Payload struct {
	ClientID    string          `json:"client_id"`
	RunID       string          `json:"run_id"`
	Date        string          `json:"date"`
	Status      string          `json:"status"`
	Count       int             `json:"count"`
	GeneratedAt time.Time       `json:"generated_at"`
	Articles    []types.Article `json:"articles"`
}

// NewPayload wraps the day's articles. An empty set produces the no_data
// sentinel with an empty, non-null article list.
func NewPayload(clientID, runID string, now time.Time, articles []types.Article) Payload {
	p := Payload{
		ClientID:    clientID,
		RunID:       runID,
		Date:        now.UTC().Format("2006-01-02"),
		Status:      StatusOK,
		Count:       len(articles),
		GeneratedAt: now.UTC(),
		Articles:    articles,
	}
	if len(articles) == 0 {
		p.Status = StatusNoData
		p.Articles = []types.Article{}
	}
	return p
}
