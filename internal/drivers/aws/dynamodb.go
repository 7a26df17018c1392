package aws

import (
	"context"
	"fmt"

	awssdk "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"wavectl/internal/drivers/paramutil"
	"wavectl/pkg/models"
)

// DynamoDB drives the amazon-dynamodb kind: switches a table's billing
// mode, and when PROVISIONED, sets fixed read/write capacity units.
// Target-tracking autoscaling_mode=ON is outside this driver's scope: it
// requires the application-autoscaling service, which is not part of this
// module's AWS surface, so autoscaling_mode is accepted but only OFF
// (fixed capacity) is actually enforced.
type DynamoDB struct {
	id        string
	tableName string
	client    *dynamodb.Client
}

func NewDynamoDB(ctx context.Context, id string, metadata map[string]any) (*DynamoDB, error) {
	tableName, err := paramutil.RequireString(metadata, "table_name")
	if err != nil {
		return nil, models.NewConfigError("amazon-dynamodb metadata", err)
	}
	cfg, err := loadConfig(ctx, paramutil.ResolveCredentials(metadata))
	if err != nil {
		return nil, models.NewConfigError("amazon-dynamodb credentials", err)
	}
	return &DynamoDB{id: id, tableName: tableName, client: dynamodb.NewFromConfig(cfg)}, nil
}

func (d *DynamoDB) Kind() string { return "amazon-dynamodb" }
func (d *DynamoDB) ID() string   { return d.id }

func (d *DynamoDB) Apply(ctx context.Context, params map[string]any) error {
	mode, err := paramutil.RequireString(params, "capacity_mode")
	if err != nil {
		return models.NewConfigError("amazon-dynamodb params", err)
	}

	in := &dynamodb.UpdateTableInput{TableName: &d.tableName}
	switch mode {
	case "PAY_PER_REQUEST":
		in.BillingMode = types.BillingModePayPerRequest
	case "PROVISIONED":
		in.BillingMode = types.BillingModeProvisioned
		read, hasRead := paramutil.Int(params, "read_capacity_units")
		write, hasWrite := paramutil.Int(params, "write_capacity_units")
		if !hasRead && !hasWrite {
			return models.NewConfigError("amazon-dynamodb params", fmt.Errorf("read_capacity_units/write_capacity_units required for PROVISIONED"))
		}
		in.ProvisionedThroughput = &types.ProvisionedThroughput{
			ReadCapacityUnits:  awssdk.Int64(int64(read)),
			WriteCapacityUnits: awssdk.Int64(int64(write)),
		}
	default:
		return models.NewConfigError("amazon-dynamodb params", fmt.Errorf("unknown capacity_mode %q", mode))
	}

	_, err = d.client.UpdateTable(ctx, in)
	return classifyError(err)
}
