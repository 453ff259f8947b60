package delivery

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"newsdesk/common"
	"newsdesk/secrets"
)

type objectPutter interface {
	Put(ctx context.Context, bucket, key string, body io.Reader, contentType string) error
}

// S3Transport writes the payload as data_{unix}.json into a bucket.
// Credentials: access_key_id, secret_access_key, bucket_name; optional region,
// prefix, endpoint.
type S3Transport struct {
	s3     objectPutter
	bucket string
	prefix string
	now    func() time.Time
}

func NewS3Transport(ctx context.Context, creds secrets.Credentials) (Transport, error) {
	if err := creds.Require("access_key_id", "secret_access_key", "bucket_name"); err != nil {
		return nil, err
	}
	region := creds["region"]
	if region == "" {
		region = "us-east-1"
	}
	client, err := common.NewS3(ctx, common.S3Config{
		Region:          region,
		AccessKeyID:     creds["access_key_id"],
		SecretAccessKey: creds["secret_access_key"],
		SessionToken:    creds["session_token"],
		Endpoint:        creds["endpoint"],
		UsePathStyle:    creds["endpoint"] != "",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create s3 client: %w", err)
	}
	return newS3Transport(client, creds["bucket_name"], creds["prefix"], time.Now), nil
}

func newS3Transport(s3 objectPutter, bucket, prefix string, now func() time.Time) *S3Transport {
	if prefix != "" {
		prefix = strings.Trim(prefix, "/") + "/"
	}
	return &S3Transport{s3: s3, bucket: bucket, prefix: prefix, now: now}
}

// Key returns the object key for a delivery made at t
func (t *S3Transport) Key(at time.Time) string {
	return fmt.Sprintf("%sdata_%d.json", t.prefix, at.Unix())
}

func (t *S3Transport) Send(ctx context.Context, msg Message) error {
	key := t.Key(t.now())
	if err := t.s3.Put(ctx, t.bucket, key, bytes.NewReader(msg.Body), "application/json"); err != nil {
		return classifyAWS(fmt.Errorf("s3 put %s/%s failed: %w", t.bucket, key, err))
	}
	return nil
}
