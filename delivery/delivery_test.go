package delivery

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"testing"
	"time"

	"newsdesk/secrets"
	"newsdesk/types"

	"github.com/IBM/sarama"
	"github.com/IBM/sarama/mocks"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/aws/smithy-go"
	"google.golang.org/api/googleapi"
)

func TestResolve(t *testing.T) {
	r := NewRegistry()
	for _, target := range []string{"sqs", "S3", " pub/sub ", "kafka"} {
		if _, f, err := r.Resolve(target); err != nil || f == nil {
			t.Errorf("Resolve(%q) = %v", target, err)
		}
	}
	_, _, err := r.Resolve("fax")
	if !errors.Is(err, types.ErrUnknownDeliveryMode) {
		t.Fatalf("expected ErrUnknownDeliveryMode, got %v", err)
	}
	if !types.IsFatal(err) {
		t.Error("unknown mode must be fatal")
	}
	if got := len(r.Modes()); got != 4 {
		t.Errorf("Modes() has %d entries", got)
	}
}

func TestNewPayloadNoData(t *testing.T) {
	now := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)
	p := NewPayload("acme", "run-1", now, nil)
	if p.Status != StatusNoData || p.Count != 0 {
		t.Fatalf("unexpected payload %+v", p)
	}
	b, err := json.Marshal(p)
	if err != nil {
		t.Fatal(err)
	}
	var doc map[string]any
	if err := json.Unmarshal(b, &doc); err != nil {
		t.Fatal(err)
	}
	arts, ok := doc["articles"].([]any)
	if !ok || len(arts) != 0 {
		t.Errorf("articles = %v, want empty list", doc["articles"])
	}
	if doc["date"] != "2024-05-01" {
		t.Errorf("date = %v", doc["date"])
	}

	p = NewPayload("acme", "run-1", now, []types.Article{{Title: "a"}})
	if p.Status != StatusOK || p.Count != 1 {
		t.Errorf("unexpected payload %+v", p)
	}
}

func TestFactoriesRequireCredentials(t *testing.T) {
	ctx := context.Background()
	for mode, f := range map[Mode]Factory{
		ModeSQS:    NewSQSTransport,
		ModeS3:     NewS3Transport,
		ModePubSub: NewPubSubTransport,
		ModeKafka:  NewKafkaTransport,
	} {
		_, err := f(ctx, secrets.Credentials{})
		if err == nil || !types.IsFatal(err) {
			t.Errorf("%s: expected fatal credentials error, got %v", mode, err)
		}
	}
}

type fakeSQS struct {
	in  *sqs.SendMessageInput
	err error
}

func (f *fakeSQS) SendMessage(ctx context.Context, in *sqs.SendMessageInput, _ ...func(*sqs.Options)) (*sqs.SendMessageOutput, error) {
	f.in = in
	if f.err != nil {
		return nil, f.err
	}
	return &sqs.SendMessageOutput{}, nil
}

func TestSQSSend(t *testing.T) {
	fake := &fakeSQS{}
	tr := &SQSTransport{client: fake, queueURL: "https://sqs.local/123/news.fifo"}
	msg := Message{ClientID: "acme", RunID: "run-1", Body: []byte(`{"status":"ok"}`)}
	if err := tr.Send(context.Background(), msg); err != nil {
		t.Fatal(err)
	}
	if *fake.in.MessageBody != `{"status":"ok"}` {
		t.Errorf("body = %s", *fake.in.MessageBody)
	}
	if fake.in.MessageGroupId == nil || *fake.in.MessageGroupId != "acme" {
		t.Error("fifo queue needs a message group id")
	}
	if fake.in.MessageDeduplicationId == nil || *fake.in.MessageDeduplicationId != "run-1" {
		t.Error("fifo queue needs a deduplication id")
	}

	fake.in = nil
	tr.queueURL = "https://sqs.local/123/news"
	if err := tr.Send(context.Background(), msg); err != nil {
		t.Fatal(err)
	}
	if fake.in.MessageGroupId != nil {
		t.Error("standard queue must not set a message group id")
	}
}

func TestSQSErrorClassification(t *testing.T) {
	tests := []struct {
		name  string
		err   error
		fatal bool
	}{
		{"missing queue", &smithy.GenericAPIError{Code: "QueueDoesNotExist", Fault: smithy.FaultClient}, true},
		{"throttled", &smithy.GenericAPIError{Code: "ThrottlingException", Fault: smithy.FaultClient}, false},
		{"server fault", &smithy.GenericAPIError{Code: "InternalError", Fault: smithy.FaultServer}, false},
		{"network", errors.New("connection reset"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr := &SQSTransport{client: &fakeSQS{err: tt.err}, queueURL: "q"}
			err := tr.Send(context.Background(), Message{ClientID: "acme"})
			if err == nil {
				t.Fatal("expected error")
			}
			if types.IsFatal(err) != tt.fatal {
				t.Errorf("IsFatal = %v, want %v", types.IsFatal(err), tt.fatal)
			}
		})
	}
}

type fakePutter struct {
	bucket, key, contentType string
	body                     []byte
	err                      error
}

func (f *fakePutter) Put(ctx context.Context, bucket, key string, body io.Reader, contentType string) error {
	if f.err != nil {
		return f.err
	}
	b, err := io.ReadAll(body)
	if err != nil {
		return err
	}
	f.bucket, f.key, f.contentType, f.body = bucket, key, contentType, b
	return nil
}

func TestS3Send(t *testing.T) {
	at := time.Unix(1714550400, 0)
	fake := &fakePutter{}
	tr := newS3Transport(fake, "reports", "/daily/", func() time.Time { return at })
	if err := tr.Send(context.Background(), Message{ClientID: "acme", Body: []byte("{}")}); err != nil {
		t.Fatal(err)
	}
	if fake.bucket != "reports" || fake.key != "daily/data_1714550400.json" {
		t.Errorf("put %s/%s", fake.bucket, fake.key)
	}
	if fake.contentType != "application/json" || string(fake.body) != "{}" {
		t.Errorf("content type %q body %q", fake.contentType, fake.body)
	}

	tr = newS3Transport(fake, "reports", "", func() time.Time { return at })
	if got := tr.Key(at); got != "data_1714550400.json" {
		t.Errorf("Key = %s", got)
	}

	fake.err = &smithy.GenericAPIError{Code: "NoSuchBucket", Fault: smithy.FaultClient}
	if err := tr.Send(context.Background(), Message{}); !types.IsFatal(err) {
		t.Errorf("missing bucket should be fatal, got %v", err)
	}
}

func TestKafkaSend(t *testing.T) {
	producer := mocks.NewSyncProducer(t, nil)
	producer.ExpectSendMessageWithCheckerFunctionAndSucceed(func(v []byte) error {
		if string(v) != `{"status":"no_data"}` {
			return fmt.Errorf("unexpected value %s", v)
		}
		return nil
	})

	var gotBrokers []string
	tr, err := newKafkaTransport(secrets.Credentials{"brokers": "a:9092, b:9092", "topic": "digest"},
		func(brokers []string) (sarama.SyncProducer, error) {
			gotBrokers = brokers
			return producer, nil
		})
	if err != nil {
		t.Fatal(err)
	}
	if len(gotBrokers) != 2 || gotBrokers[1] != "b:9092" {
		t.Errorf("brokers = %v", gotBrokers)
	}
	if err := tr.Send(context.Background(), Message{ClientID: "acme", Body: []byte(`{"status":"no_data"}`)}); err != nil {
		t.Fatal(err)
	}
	if err := tr.(*KafkaTransport).Close(); err != nil {
		t.Fatal(err)
	}
}

func TestClassifyGoogle(t *testing.T) {
	if !types.IsFatal(classifyGoogle(&googleapi.Error{Code: 404})) {
		t.Error("404 should be fatal")
	}
	if types.IsFatal(classifyGoogle(&googleapi.Error{Code: 429})) {
		t.Error("429 should be retryable")
	}
	if types.IsFatal(classifyGoogle(&googleapi.Error{Code: 503})) {
		t.Error("503 should be retryable")
	}
}

func TestServiceAccountKeyInline(t *testing.T) {
	b, err := serviceAccountKey(` {"type":"service_account"}`)
	if err != nil || string(b) != `{"type":"service_account"}` {
		t.Errorf("got %q, %v", b, err)
	}
	if _, err := serviceAccountKey("/does/not/exist.json"); err == nil {
		t.Error("expected error for missing file")
	}
}
