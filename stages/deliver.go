package stages

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"time"

	"newsdesk/delivery"
	"newsdesk/secrets"
	"newsdesk/storage"
	"newsdesk/types"
)

// DeliveryStage sends the client's articles of the day to its configured
// destination, one send per attempt.
type DeliveryStage struct {
	store     storage.ArticleStore
	secrets   secrets.Store
	transport *delivery.Registry
	now       func() time.Time
	log       *slog.Logger
}

func NewDeliveryStage(store storage.ArticleStore, secretStore secrets.Store, transports *delivery.Registry, log *slog.Logger) *DeliveryStage {
	return &DeliveryStage{store: store, secrets: secretStore, transport: transports, now: time.Now, log: log}
}

func (s *DeliveryStage) Run(ctx context.Context, client types.ClientConfig, runID string) (types.StageResult, error) {
	mode, factory, err := s.transport.Resolve(client.DeliveryTarget)
	if err != nil {
		return types.StageResult{}, err
	}

	creds, err := s.secrets.Get(ctx, client.SecretRef())
	if err != nil {
		return types.StageResult{}, types.Fatal(fmt.Errorf("credentials for %s: %w", client.ID, err))
	}

	articles, err := s.store.QueryForClientToday(ctx, client.ID, storage.QueryOptions{
		IncludeSentiment: client.NLPEnabled,
	})
	if err != nil {
		return types.StageResult{}, fmt.Errorf("load articles: %w", err)
	}

	body, err := json.Marshal(delivery.NewPayload(client.ID, runID, s.now(), articles))
	if err != nil {
		return types.StageResult{}, types.Fatal(fmt.Errorf("encode payload: %w", err))
	}

	tr, err := factory(ctx, creds)
	if err != nil {
		return types.StageResult{}, fmt.Errorf("open %s transport: %w", mode, err)
	}
	if c, ok := tr.(io.Closer); ok {
		defer c.Close()
	}

	if err := tr.Send(ctx, delivery.Message{ClientID: client.ID, RunID: runID, Body: body}); err != nil {
		return types.StageResult{}, fmt.Errorf("send via %s: %w", mode, err)
	}

	s.log.Info("delivered articles",
		"client_id", client.ID, "run_id", runID, "mode", string(mode), "count", len(articles))
	return types.StageResult{Delivered: len(articles)}, nil
}
