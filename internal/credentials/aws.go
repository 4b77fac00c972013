package credentials

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"

	"focelda-proxy-go/internal/config"
)

// secretsManagerAPI is the subset of the Secrets Manager client used here.
type secretsManagerAPI interface {
	GetSecretValue(ctx context.Context, params *secretsmanager.GetSecretValueInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error)
}

// AWSSource reads credentials from a Secrets Manager secret whose SecretString
// is a JSON object, e.g. {"username": "...", "password": "..."}.
type AWSSource struct {
	api      secretsManagerAPI
	secretID string
}

// NewAWSSource creates an AWSSource using the default AWS credential chain.
func NewAWSSource(ctx context.Context, cfg config.AWSAuthConfig) (*AWSSource, error) {
	var opts []func(*awsconfig.LoadOptions) error
	if cfg.Region != "" {
		opts = append(opts, awsconfig.WithRegion(cfg.Region))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	return &AWSSource{
		api:      secretsmanager.NewFromConfig(awsCfg),
		secretID: cfg.SecretID,
	}, nil
}

// Name implements Source.
func (s *AWSSource) Name() string { return config.SourceAWS }

// Fetch implements Source.
func (s *AWSSource) Fetch(ctx context.Context) (map[string]string, error) {
	out, err := s.api.GetSecretValue(ctx, &secretsmanager.GetSecretValueInput{
		SecretId: aws.String(s.secretID),
	})
	if err != nil {
		return nil, fmt.Errorf("get secret %s: %w", s.secretID, err)
	}

	raw := aws.ToString(out.SecretString)
	if raw == "" {
		return nil, fmt.Errorf("%w: %s has no string value", ErrSecretNotFound, s.secretID)
	}

	var values map[string]string
	if err := json.Unmarshal([]byte(raw), &values); err != nil {
		return nil, fmt.Errorf("decode secret %s: %w", s.secretID, err)
	}
	return values, nil
}
