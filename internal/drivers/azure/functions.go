package azure

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore/policy"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/runtime"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/streaming"

	"wavectl/internal/drivers/paramutil"
	"wavectl/pkg/models"
)

// Functions drives the azure-functions kind. No Azure Functions
// management SDK package is part of this module's dependency set, so this
// issues the PATCH directly against the Microsoft.Web site-config ARM
// resource using azcore's generic request/response pipeline, the same
// transport armcompute's generated clients sit on top of.
type Functions struct {
	id       string
	url      string
	pipeline runtime.Pipeline
}

func NewFunctions(ctx context.Context, id string, metadata map[string]any) (*Functions, error) {
	subscriptionID, err := paramutil.RequireString(metadata, "subscription_id")
	if err != nil {
		return nil, models.NewConfigError("azure-functions metadata", err)
	}
	resourceGroup, err := paramutil.RequireString(metadata, "resource_group")
	if err != nil {
		return nil, models.NewConfigError("azure-functions metadata", err)
	}
	siteName, err := paramutil.RequireString(metadata, "site_name")
	if err != nil {
		return nil, models.NewConfigError("azure-functions metadata", err)
	}

	cred, err := credentialFor(metadata)
	if err != nil {
		return nil, models.NewConfigError("azure-functions credentials", err)
	}
	// ARM bearer-token auth is wired at the pipeline-policy layer.
	pipeline, err := runtime.NewPipeline("wavectl", "v1", runtime.PipelineOptions{
		PerCall: []policy.Policy{runtime.NewBearerTokenPolicy(cred, []string{"https://management.azure.com/.default"}, nil)},
	}, nil)
	if err != nil {
		return nil, models.NewConfigError("azure-functions pipeline", err)
	}

	url := fmt.Sprintf(
		"https://management.azure.com/subscriptions/%s/resourceGroups/%s/providers/Microsoft.Web/sites/%s/config/web?api-version=2022-03-01",
		subscriptionID, resourceGroup, siteName,
	)
	return &Functions{id: id, url: url, pipeline: pipeline}, nil
}

func (d *Functions) Kind() string { return "azure-functions" }
func (d *Functions) ID() string   { return d.id }

func (d *Functions) Apply(ctx context.Context, params map[string]any) error {
	props := map[string]any{}
	if v, ok := paramutil.Int(params, "min_instance_count"); ok {
		props["minimumElasticInstanceCount"] = v
	}
	if v, ok := paramutil.Int(params, "max_instance_count"); ok {
		props["functionAppScaleLimit"] = v
	}
	if len(props) == 0 {
		return models.NewConfigError("azure-functions params", fmt.Errorf("at least one of min/max_instance_count is required"))
	}

	body, err := json.Marshal(map[string]any{"properties": props})
	if err != nil {
		return fmt.Errorf("azure-functions: marshal body: %w", err)
	}

	req, err := runtime.NewRequest(ctx, http.MethodPatch, d.url)
	if err != nil {
		return fmt.Errorf("azure-functions: build request: %w", err)
	}
	if err := req.SetBody(streaming.NopCloser(bytes.NewReader(body)), "application/json"); err != nil {
		return fmt.Errorf("azure-functions: set body: %w", err)
	}

	resp, err := d.pipeline.Do(req)
	if err != nil {
		return classifyError(err)
	}
	if resp.StatusCode >= 300 {
		return classifyError(runtime.NewResponseError(resp))
	}
	return nil
}
