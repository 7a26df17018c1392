package aws

import (
	"context"
	"fmt"

	awssdk "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ecs"

	"wavectl/internal/drivers/paramutil"
	"wavectl/pkg/models"
)

// ECS drives the aws-ecs kind: UpdateService's DesiredCount.
type ECS struct {
	id      string
	cluster string
	service string
	client  *ecs.Client
}

func NewECS(ctx context.Context, id string, metadata map[string]any) (*ECS, error) {
	cluster, err := paramutil.RequireString(metadata, "cluster")
	if err != nil {
		return nil, models.NewConfigError("aws-ecs metadata", err)
	}
	service, err := paramutil.RequireString(metadata, "service")
	if err != nil {
		return nil, models.NewConfigError("aws-ecs metadata", err)
	}
	cfg, err := loadConfig(ctx, paramutil.ResolveCredentials(metadata))
	if err != nil {
		return nil, models.NewConfigError("aws-ecs credentials", err)
	}
	return &ECS{id: id, cluster: cluster, service: service, client: ecs.NewFromConfig(cfg)}, nil
}

func (d *ECS) Kind() string { return "aws-ecs" }
func (d *ECS) ID() string   { return d.id }

func (d *ECS) Apply(ctx context.Context, params map[string]any) error {
	desired, ok := paramutil.Int(params, "desired")
	if !ok {
		return models.NewConfigError("aws-ecs params", fmt.Errorf("desired is required"))
	}
	_, err := d.client.UpdateService(ctx, &ecs.UpdateServiceInput{
		Cluster:      &d.cluster,
		Service:      &d.service,
		DesiredCount: awssdk.Int32(int32(desired)),
	})
	return classifyError(err)
}
