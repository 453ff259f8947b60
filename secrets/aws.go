package secrets

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"

	"newsdesk/types"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	smtypes "github.com/aws/aws-sdk-go-v2/service/secretsmanager/types"
)

type getSecretValueAPI interface {
	GetSecretValue(ctx context.Context, in *secretsmanager.GetSecretValueInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error)
}

// AWSStore reads credentials from AWS Secrets Manager
type AWSStore struct {
	client getSecretValueAPI
}

// NewAWSStore uses the default AWS configuration chain with optional region/profile
func NewAWSStore(ctx context.Context, region, profile string) (*AWSStore, error) {
	var loadOpts []func(*config.LoadOptions) error
	if region != "" {
		loadOpts = append(loadOpts, config.WithRegion(region))
	}
	if profile != "" {
		loadOpts = append(loadOpts, config.WithSharedConfigProfile(profile))
	}
	awsCfg, err := config.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load aws config: %w", err)
	}
	return &AWSStore{client: secretsmanager.NewFromConfig(awsCfg)}, nil
}

// Get fetches the secret. Every failure is fatal: a missing or unreadable
// secret is a configuration problem that retrying will not fix.
func (a *AWSStore) Get(ctx context.Context, ref string) (Credentials, error) {
	out, err := a.client.GetSecretValue(ctx, &secretsmanager.GetSecretValueInput{
		SecretId: aws.String(ref),
	})
	if err != nil {
		var nf *smtypes.ResourceNotFoundException
		if errors.As(err, &nf) {
			return nil, fmt.Errorf("secret %q: %w", ref, types.ErrSecretNotFound)
		}
		return nil, fmt.Errorf("secret %q: %w: %v", ref, types.ErrSecretNotFound, err)
	}

	var raw []byte
	switch {
	case out.SecretString != nil:
		raw = []byte(*out.SecretString)
	case len(out.SecretBinary) > 0:
		raw = out.SecretBinary
		if decoded, err := base64.StdEncoding.DecodeString(string(raw)); err == nil {
			raw = decoded
		}
	default:
		return nil, fmt.Errorf("secret %q is empty: %w", ref, types.ErrSecretNotFound)
	}

	creds, err := parse(raw)
	if err != nil {
		return nil, types.Fatal(fmt.Errorf("secret %q is not a JSON object: %w", ref, err))
	}
	return creds, nil
}
