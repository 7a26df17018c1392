package gcp

import (
	"context"
	"fmt"

	functions "cloud.google.com/go/functions/apiv2"
	"cloud.google.com/go/functions/apiv2/functionspb"
	"google.golang.org/protobuf/types/known/fieldmaskpb"

	"wavectl/internal/drivers/paramutil"
	"wavectl/pkg/models"
)

// CloudFunctions drives the google-cloud-functions kind (2nd gen):
// min_instance_count/max_instance_count and optionally
// max_instance_request_concurrency on the function's ServiceConfig.
type CloudFunctions struct {
	id     string
	name   string // projects/{project}/locations/{location}/functions/{function}
	client *functions.FunctionClient
}

func NewCloudFunctions(ctx context.Context, id string, metadata map[string]any) (*CloudFunctions, error) {
	name, err := paramutil.RequireString(metadata, "function_name")
	if err != nil {
		return nil, models.NewConfigError("google-cloud-functions metadata", err)
	}
	client, err := functions.NewFunctionRESTClient(ctx, clientOptions(metadata)...)
	if err != nil {
		return nil, models.NewConfigError("google-cloud-functions credentials", err)
	}
	return &CloudFunctions{id: id, name: name, client: client}, nil
}

func (d *CloudFunctions) Kind() string { return "google-cloud-functions" }
func (d *CloudFunctions) ID() string   { return d.id }

func (d *CloudFunctions) Apply(ctx context.Context, params map[string]any) error {
	fn, err := d.client.GetFunction(ctx, &functionspb.GetFunctionRequest{Name: d.name})
	if err != nil {
		return classifyError(err)
	}
	if fn.ServiceConfig == nil {
		return models.NewPermanentError("google-cloud-functions", fmt.Errorf("function %s has no service config", d.name))
	}

	paths := make([]string, 0, 3)
	if v, ok := paramutil.Int(params, "min_instance_count"); ok {
		fn.ServiceConfig.MinInstanceCount = int32(v)
		paths = append(paths, "service_config.min_instance_count")
	}
	if v, ok := paramutil.Int(params, "max_instance_count"); ok {
		fn.ServiceConfig.MaxInstanceCount = int32(v)
		paths = append(paths, "service_config.max_instance_count")
	}
	if v, ok := paramutil.Int(params, "max_instance_request_concurrency"); ok {
		fn.ServiceConfig.MaxInstanceRequestConcurrency = int32(v)
		paths = append(paths, "service_config.max_instance_request_concurrency")
	}
	if len(paths) == 0 {
		return models.NewConfigError("google-cloud-functions params", fmt.Errorf("at least one of min/max_instance_count is required"))
	}

	op, err := d.client.UpdateFunction(ctx, &functionspb.UpdateFunctionRequest{
		Function:   fn,
		UpdateMask: &fieldmaskpb.FieldMask{Paths: paths},
	})
	if err != nil {
		return classifyError(err)
	}
	_, err = op.Wait(ctx)
	return classifyError(err)
}
