package delivery

import (
	"context"
	"encoding/base64"
	"fmt"
	"os"
	"strings"

	"newsdesk/secrets"
	"newsdesk/types"

	"golang.org/x/oauth2/google"
	"google.golang.org/api/option"
	pubsub "google.golang.org/api/pubsub/v1"
)

// PubSubTransport publishes the payload to a Google Cloud Pub/Sub topic.
// Credentials: service_account_json (inline JSON or a file path), project_id,
// topic_id; optional endpoint.
type PubSubTransport struct {
	svc   *pubsub.Service
	topic string
}

func NewPubSubTransport(ctx context.Context, creds secrets.Credentials) (Transport, error) {
	if err := creds.Require("service_account_json", "project_id", "topic_id"); err != nil {
		return nil, err
	}
	key, err := serviceAccountKey(creds["service_account_json"])
	if err != nil {
		return nil, types.Fatal(err)
	}
	jwtCfg, err := google.JWTConfigFromJSON(key, pubsub.PubsubScope)
	if err != nil {
		return nil, types.Fatal(fmt.Errorf("invalid service account: %w", err))
	}

	opts := []option.ClientOption{option.WithHTTPClient(jwtCfg.Client(ctx))}
	if ep := creds["endpoint"]; ep != "" {
		opts = append(opts, option.WithEndpoint(ep))
	}
	svc, err := pubsub.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create pubsub service: %w", err)
	}
	return &PubSubTransport{
		svc:   svc,
		topic: fmt.Sprintf("projects/%s/topics/%s", creds["project_id"], creds["topic_id"]),
	}, nil
}

func serviceAccountKey(v string) ([]byte, error) {
	v = strings.TrimSpace(v)
	if strings.HasPrefix(v, "{") {
		return []byte(v), nil
	}
	b, err := os.ReadFile(v)
	if err != nil {
		return nil, fmt.Errorf("failed to read service account file: %w", err)
	}
	return b, nil
}

func (t *PubSubTransport) Send(ctx context.Context, msg Message) error {
	req := &pubsub.PublishRequest{
		Messages: []*pubsub.PubsubMessage{{
			Data:       base64.StdEncoding.EncodeToString(msg.Body),
			Attributes: map[string]string{"client_id": msg.ClientID, "run_id": msg.RunID},
		}},
	}
	resp, err := t.svc.Projects.Topics.Publish(t.topic, req).Context(ctx).Do()
	if err != nil {
		return classifyGoogle(fmt.Errorf("pubsub publish to %s failed: %w", t.topic, err))
	}
	if len(resp.MessageIds) == 0 {
		return fmt.Errorf("pubsub publish to %s returned no message id", t.topic)
	}
	return nil
}
