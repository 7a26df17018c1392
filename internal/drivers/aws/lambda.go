package aws

import (
	"context"
	"fmt"

	awssdk "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/lambda"

	"wavectl/internal/drivers/paramutil"
	"wavectl/pkg/models"
)

// Lambda drives the aws-lambda kind: reserved_concurrency via
// PutFunctionConcurrency and/or provisioned_concurrency (scoped to
// metadata.qualifier) via PutProvisionedConcurrencyConfig. At least one of
// the two params must be present.
type Lambda struct {
	id           string
	functionName string
	qualifier    string
	client       *lambda.Client
}

func NewLambda(ctx context.Context, id string, metadata map[string]any) (*Lambda, error) {
	functionName, err := paramutil.RequireString(metadata, "function_name")
	if err != nil {
		return nil, models.NewConfigError("aws-lambda metadata", err)
	}
	qualifier, _ := paramutil.String(metadata, "qualifier")
	cfg, err := loadConfig(ctx, paramutil.ResolveCredentials(metadata))
	if err != nil {
		return nil, models.NewConfigError("aws-lambda credentials", err)
	}
	return &Lambda{id: id, functionName: functionName, qualifier: qualifier, client: lambda.NewFromConfig(cfg)}, nil
}

func (d *Lambda) Kind() string { return "aws-lambda" }
func (d *Lambda) ID() string   { return d.id }

func (d *Lambda) Apply(ctx context.Context, params map[string]any) error {
	applied := false

	if reserved, ok := paramutil.Int(params, "reserved_concurrency"); ok {
		if _, err := d.client.PutFunctionConcurrency(ctx, &lambda.PutFunctionConcurrencyInput{
			FunctionName:                 &d.functionName,
			ReservedConcurrentExecutions: awssdk.Int32(int32(reserved)),
		}); err != nil {
			return classifyError(err)
		}
		applied = true
	}

	if provisioned, ok := paramutil.Int(params, "provisioned_concurrency"); ok {
		in := &lambda.PutProvisionedConcurrencyConfigInput{
			FunctionName:                    &d.functionName,
			ProvisionedConcurrentExecutions: awssdk.Int32(int32(provisioned)),
		}
		if d.qualifier != "" {
			in.Qualifier = &d.qualifier
		}
		if _, err := d.client.PutProvisionedConcurrencyConfig(ctx, in); err != nil {
			return classifyError(err)
		}
		applied = true
	}

	if !applied {
		return models.NewConfigError("aws-lambda params", fmt.Errorf("one of reserved_concurrency/provisioned_concurrency is required"))
	}
	return nil
}
