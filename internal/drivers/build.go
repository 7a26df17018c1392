package drivers

import (
	"context"

	"wavectl/internal/drivers/aws"
	"wavectl/internal/drivers/azure"
	"wavectl/internal/drivers/cloudflare"
	"wavectl/internal/drivers/gcp"
	"wavectl/internal/drivers/k8s"
	"wavectl/internal/drivers/netfunnel"
	"wavectl/pkg/models"
)

// Build constructs the concrete Driver for a ScalingComponentDefinition.
// Dispatch is by component_kind exact match (spec §4.D); an unrecognized
// kind fails with UnknownKindError rather than silently no-oping.
func Build(ctx context.Context, component models.ScalingComponentDefinition) (Driver, error) {
	id, kind, metadata := component.ID, component.ComponentKind, component.Metadata

	switch kind {
	case "aws-ec2-autoscaling":
		return aws.NewEC2AutoScaling(ctx, id, metadata)
	case "aws-ecs":
		return aws.NewECS(ctx, id, metadata)
	case "aws-lambda":
		return aws.NewLambda(ctx, id, metadata)
	case "amazon-dynamodb":
		return aws.NewDynamoDB(ctx, id, metadata)
	case "amazon-emr-ec2":
		return aws.NewEMR(ctx, id, metadata)
	case "aws-wafv2":
		return aws.NewWAFv2(ctx, id, metadata)
	case "gcp-compute-engine-mig":
		return gcp.NewComputeMIG(ctx, id, metadata)
	case "google-cloud-functions":
		return gcp.NewCloudFunctions(ctx, id, metadata)
	case "google-cloud-run":
		return gcp.NewCloudRun(ctx, id, metadata)
	case "azure-vmss":
		return azure.NewVMSS(ctx, id, metadata)
	case "azure-functions":
		return azure.NewFunctions(ctx, id, metadata)
	case "kubernetes-json-patch":
		return k8s.NewJSONPatch(id, metadata)
	case "cloudflare-rule":
		return cloudflare.NewRule(id, metadata)
	case "netfunnel":
		return netfunnel.New(id, metadata)
	default:
		return nil, models.NewUnknownKindError(kind)
	}
}

// BuildAll constructs a Driver for every enabled component, skipping (and
// returning alongside) any that fail to build rather than aborting the
// whole resync over one bad definition. Callers decide whether a non-nil
// error slice should block the resync or just be logged.
func BuildAll(ctx context.Context, components []models.ScalingComponentDefinition) ([]Driver, []error) {
	built := make([]Driver, 0, len(components))
	var errs []error
	for _, c := range components {
		d, err := Build(ctx, c)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		built = append(built, d)
	}
	return built, errs
}
