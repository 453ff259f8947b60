package delivery

import (
	"context"
	"fmt"
	"strings"

	"newsdesk/common"
	"newsdesk/secrets"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	sqstypes "github.com/aws/aws-sdk-go-v2/service/sqs/types"
)

type sqsAPI interface {
	SendMessage(ctx context.Context, in *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error)
}

// SQSTransport sends the payload as a single queue message.
// Credentials: access_key_id, secret_access_key, region, queue_url.
type SQSTransport struct {
	client   sqsAPI
	queueURL string
}

func NewSQSTransport(ctx context.Context, creds secrets.Credentials) (Transport, error) {
	if err := creds.Require("access_key_id", "secret_access_key", "region", "queue_url"); err != nil {
		return nil, err
	}
	awsCfg, err := common.LoadAWSConfig(ctx, creds["region"], creds["access_key_id"], creds["secret_access_key"], creds["session_token"])
	if err != nil {
		return nil, fmt.Errorf("failed to load aws config: %w", err)
	}
	client := sqs.NewFromConfig(awsCfg, func(o *sqs.Options) {
		if ep := creds["endpoint"]; ep != "" {
			o.BaseEndpoint = aws.String(ep)
		}
	})
	return &SQSTransport{client: client, queueURL: creds["queue_url"]}, nil
}

func (t *SQSTransport) Send(ctx context.Context, msg Message) error {
	in := &sqs.SendMessageInput{
		QueueUrl:    aws.String(t.queueURL),
		MessageBody: aws.String(string(msg.Body)),
		MessageAttributes: map[string]sqstypes.MessageAttributeValue{
			"client_id": {DataType: aws.String("String"), StringValue: aws.String(msg.ClientID)},
		},
	}
	if strings.HasSuffix(t.queueURL, ".fifo") {
		in.MessageGroupId = aws.String(msg.ClientID)
		in.MessageDeduplicationId = aws.String(msg.RunID)
	}
	if _, err := t.client.SendMessage(ctx, in); err != nil {
		return classifyAWS(fmt.Errorf("sqs send failed: %w", err))
	}
	return nil
}
