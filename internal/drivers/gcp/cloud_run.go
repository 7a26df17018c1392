package gcp

import (
	"context"
	"fmt"

	run "cloud.google.com/go/run/apiv2"
	"cloud.google.com/go/run/apiv2/runpb"
	"google.golang.org/protobuf/types/known/fieldmaskpb"

	"wavectl/internal/drivers/paramutil"
	"wavectl/pkg/models"
)

// CloudRun drives the google-cloud-run kind: min/max instance count,
// max request per instance (concurrency), and execution_environment on
// the service's default revision template.
type CloudRun struct {
	id     string
	name   string // projects/{project}/locations/{location}/services/{service}
	client *run.ServicesClient
}

func NewCloudRun(ctx context.Context, id string, metadata map[string]any) (*CloudRun, error) {
	name, err := paramutil.RequireString(metadata, "service_name")
	if err != nil {
		return nil, models.NewConfigError("google-cloud-run metadata", err)
	}
	client, err := run.NewServicesRESTClient(ctx, clientOptions(metadata)...)
	if err != nil {
		return nil, models.NewConfigError("google-cloud-run credentials", err)
	}
	return &CloudRun{id: id, name: name, client: client}, nil
}

func (d *CloudRun) Kind() string { return "google-cloud-run" }
func (d *CloudRun) ID() string   { return d.id }

func (d *CloudRun) Apply(ctx context.Context, params map[string]any) error {
	svc, err := d.client.GetService(ctx, &runpb.GetServiceRequest{Name: d.name})
	if err != nil {
		return classifyError(err)
	}
	if svc.Template == nil {
		return models.NewPermanentError("google-cloud-run", fmt.Errorf("service %s has no revision template", d.name))
	}
	if svc.Template.Scaling == nil {
		svc.Template.Scaling = &runpb.RevisionScaling{}
	}

	paths := make([]string, 0, 4)
	if v, ok := paramutil.Int(params, "min_instance_count"); ok {
		svc.Template.Scaling.MinInstanceCount = int32(v)
		paths = append(paths, "template.scaling.min_instance_count")
	}
	if v, ok := paramutil.Int(params, "max_instance_count"); ok {
		svc.Template.Scaling.MaxInstanceCount = int32(v)
		paths = append(paths, "template.scaling.max_instance_count")
	}
	if v, ok := paramutil.Int(params, "max_request_per_instance"); ok {
		svc.Template.MaxInstanceRequestConcurrency = int32(v)
		paths = append(paths, "template.max_instance_request_concurrency")
	}
	if v, ok := paramutil.String(params, "execution_environment"); ok && v != "" {
		if env, known := runpb.ExecutionEnvironment_value["EXECUTION_ENVIRONMENT_"+v]; known {
			svc.Template.ExecutionEnvironment = runpb.ExecutionEnvironment(env)
			paths = append(paths, "template.execution_environment")
		}
	}
	if len(paths) == 0 {
		return models.NewConfigError("google-cloud-run params", fmt.Errorf("no recognised scaling params supplied"))
	}

	op, err := d.client.UpdateService(ctx, &runpb.UpdateServiceRequest{
		Service:    svc,
		UpdateMask: &fieldmaskpb.FieldMask{Paths: paths},
	})
	if err != nil {
		return classifyError(err)
	}
	_, err = op.Wait(ctx)
	return classifyError(err)
}
