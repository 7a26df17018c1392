// Package aws implements the AWS family of Scaling Driver Registry
// drivers: EC2 Auto Scaling, ECS, Lambda, DynamoDB, EMR on EC2, and
// WAFv2. Each driver resolves credentials per spec §4.D contract 1:
// explicit access_key/secret_key/region in metadata first, falling back
// to the SDK's ambient credential chain.
package aws

import (
	"context"
	"fmt"

	awssdk "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"

	"wavectl/internal/drivers/paramutil"
)

func loadConfig(ctx context.Context, creds paramutil.Credentials) (awssdk.Config, error) {
	var opts []func(*config.LoadOptions) error
	if creds.Region != "" {
		opts = append(opts, config.WithRegion(creds.Region))
	}
	if creds.Explicit() {
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(creds.AccessKey, creds.SecretKey, ""),
		))
	}
	cfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return awssdk.Config{}, fmt.Errorf("aws: load config: %w", err)
	}
	return cfg, nil
}
