// Package secretsdsn resolves a Postgres connection string from AWS
// Secrets Manager, for deployments that keep credentials out of the
// config file entirely.
package secretsdsn

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
)

// Resolver fetches secret values from AWS Secrets Manager.
type Resolver struct {
	client *secretsmanager.Client
}

// NewResolver builds a Resolver using the default AWS credential chain,
// overriding the region if region is non-empty.
func NewResolver(ctx context.Context, region string) (*Resolver, error) {
	var opts []func(*awsconfig.LoadOptions) error
	if region != "" {
		opts = append(opts, awsconfig.WithRegion(region))
	}

	cfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	return &Resolver{client: secretsmanager.NewFromConfig(cfg)}, nil
}

// ResolveDSN fetches the secret at arn and returns its plaintext value as
// the Postgres DSN. The secret is expected to hold the DSN directly,
// rather than a structured credential document.
func (r *Resolver) ResolveDSN(ctx context.Context, arn string) (string, error) {
	out, err := r.client.GetSecretValue(ctx, &secretsmanager.GetSecretValueInput{
		SecretId: aws.String(arn),
	})
	if err != nil {
		return "", fmt.Errorf("get secret %s: %w", arn, err)
	}
	if out.SecretString == nil {
		return "", fmt.Errorf("secret %s has no string value", arn)
	}
	return *out.SecretString, nil
}
