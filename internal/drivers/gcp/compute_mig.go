// Package gcp implements the GCP family of Scaling Driver Registry
// drivers: Compute Engine managed instance groups, Cloud Functions, and
// Cloud Run. Credential resolution follows the same explicit-then-ambient
// contract as the aws package, via google.golang.org/api's option.WithCredentialsJSON
// when metadata supplies one, or Application Default Credentials otherwise.
package gcp

import (
	"context"
	"fmt"

	"google.golang.org/api/compute/v1"
	"google.golang.org/api/option"

	"wavectl/internal/drivers/paramutil"
	"wavectl/pkg/models"
)

// ComputeMIG drives the gcp-compute-engine-mig kind: Resize on a zonal or
// regional managed instance group.
type ComputeMIG struct {
	id           string
	project      string
	location     string // zone or region, per locationKind
	locationKind string // "single_zone" or "region"
	groupName    string
	svc          *compute.Service
}

func NewComputeMIG(ctx context.Context, id string, metadata map[string]any) (*ComputeMIG, error) {
	project, err := paramutil.RequireString(metadata, "project")
	if err != nil {
		return nil, models.NewConfigError("gcp-compute-engine-mig metadata", err)
	}
	groupName, err := paramutil.RequireString(metadata, "group_name")
	if err != nil {
		return nil, models.NewConfigError("gcp-compute-engine-mig metadata", err)
	}
	locationKind, _ := paramutil.String(metadata, "location_kind")
	if locationKind == "" {
		locationKind = "single_zone"
	}
	location, err := paramutil.RequireString(metadata, "location")
	if err != nil {
		return nil, models.NewConfigError("gcp-compute-engine-mig metadata", err)
	}

	opts := clientOptions(metadata)
	svc, err := compute.NewService(ctx, opts...)
	if err != nil {
		return nil, models.NewConfigError("gcp-compute-engine-mig credentials", err)
	}
	return &ComputeMIG{id: id, project: project, location: location, locationKind: locationKind, groupName: groupName, svc: svc}, nil
}

func (d *ComputeMIG) Kind() string { return "gcp-compute-engine-mig" }
func (d *ComputeMIG) ID() string   { return d.id }

func (d *ComputeMIG) Apply(ctx context.Context, params map[string]any) error {
	size, ok := paramutil.Int(params, "resize")
	if !ok {
		return models.NewConfigError("gcp-compute-engine-mig params", fmt.Errorf("resize is required"))
	}

	var err error
	switch d.locationKind {
	case "region":
		_, err = d.svc.RegionInstanceGroupManagers.Resize(d.project, d.location, d.groupName, int64(size)).Context(ctx).Do()
	default:
		_, err = d.svc.InstanceGroupManagers.Resize(d.project, d.location, d.groupName, int64(size)).Context(ctx).Do()
	}
	return classifyError(err)
}
