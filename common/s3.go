package common

import (
	"context"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// S3Config contains minimal configuration for creating an S3 client.
// Values are optional and will fall back to the standard AWS config/credential chain.
type S3Config struct {
	// Region to use for requests, e.g. "us-east-1". If empty, AWS defaults apply.
	Region string
	// AccessKeyID and SecretAccessKey select static credentials when both are set.
	AccessKeyID     string
	SecretAccessKey string
	SessionToken    string
	// Endpoint overrides the service endpoint (S3-compatible providers, tests).
	Endpoint string
	// UsePathStyle forces path-style addressing (useful for some S3-compatible providers).
	UsePathStyle bool
}

// S3 wraps the AWS SDK for Go v2 S3 client with a narrow interface we can mock.
type S3 struct {
	client *s3.Client
}

// LoadAWSConfig builds an aws.Config from region and optional static credentials
func LoadAWSConfig(ctx context.Context, region, accessKeyID, secretAccessKey, sessionToken string) (aws.Config, error) {
	var loadOpts []func(*config.LoadOptions) error
	if region != "" {
		loadOpts = append(loadOpts, config.WithRegion(region))
	}
	if accessKeyID != "" && secretAccessKey != "" {
		loadOpts = append(loadOpts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(accessKeyID, secretAccessKey, sessionToken),
		))
	}
	return config.LoadDefaultConfig(ctx, loadOpts...)
}

// NewS3 creates a new S3 wrapper
func NewS3(ctx context.Context, cfg S3Config) (*S3, error) {
	awsCfg, err := LoadAWSConfig(ctx, cfg.Region, cfg.AccessKeyID, cfg.SecretAccessKey, cfg.SessionToken)
	if err != nil {
		return nil, err
	}

	c := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.UsePathStyle = cfg.UsePathStyle
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
	})
	return &S3{client: c}, nil
}

// Put uploads an object to the given bucket/key.
// If contentType is non-empty, it is set on the object.
func (s *S3) Put(ctx context.Context, bucket, key string, body io.Reader, contentType string) error {
	in := &s3.PutObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
		Body:   body,
	}
	if contentType != "" {
		in.ContentType = aws.String(contentType)
	}

	_, err := s.client.PutObject(ctx, in)
	return err
}
