package aws

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/service/emr"
	"github.com/aws/aws-sdk-go-v2/service/emr/types"

	"wavectl/internal/drivers/paramutil"
	"wavectl/pkg/models"
)

// EMR drives the amazon-emr-ec2 kind. metadata selects exactly one target:
// instance_group_id (classic instance groups) or instance_fleet_id
// (instance fleets); both read from the same cluster_id.
type EMR struct {
	id              string
	clusterID       string
	instanceGroupID string
	instanceFleetID string
	client          *emr.Client
}

func NewEMR(ctx context.Context, id string, metadata map[string]any) (*EMR, error) {
	clusterID, err := paramutil.RequireString(metadata, "cluster_id")
	if err != nil {
		return nil, models.NewConfigError("amazon-emr-ec2 metadata", err)
	}
	groupID, _ := paramutil.String(metadata, "instance_group_id")
	fleetID, _ := paramutil.String(metadata, "instance_fleet_id")
	if groupID == "" && fleetID == "" {
		return nil, models.NewConfigError("amazon-emr-ec2 metadata", fmt.Errorf("one of instance_group_id/instance_fleet_id is required"))
	}
	if groupID != "" && fleetID != "" {
		return nil, models.NewConfigError("amazon-emr-ec2 metadata", fmt.Errorf("only one of instance_group_id/instance_fleet_id may be set"))
	}
	cfg, err := loadConfig(ctx, paramutil.ResolveCredentials(metadata))
	if err != nil {
		return nil, models.NewConfigError("amazon-emr-ec2 credentials", err)
	}
	return &EMR{id: id, clusterID: clusterID, instanceGroupID: groupID, instanceFleetID: fleetID, client: emr.NewFromConfig(cfg)}, nil
}

func (d *EMR) Kind() string { return "amazon-emr-ec2" }
func (d *EMR) ID() string   { return d.id }

func (d *EMR) Apply(ctx context.Context, params map[string]any) error {
	switch {
	case d.instanceGroupID != "":
		count, ok := paramutil.Int(params, "instance_count")
		if !ok {
			return models.NewConfigError("amazon-emr-ec2 params", fmt.Errorf("instance_count is required for instance groups"))
		}
		_, err := d.client.ModifyInstanceGroups(ctx, &emr.ModifyInstanceGroupsInput{
			ClusterId: &d.clusterID,
			InstanceGroups: []types.InstanceGroupModifyConfig{
				{InstanceGroupId: &d.instanceGroupID, InstanceCount: int32(count)},
			},
		})
		if err != nil {
			return classifyError(err)
		}
	case d.instanceFleetID != "":
		onDemand, _ := paramutil.Int(params, "on_demand_capacity")
		spot, _ := paramutil.Int(params, "spot_capacity")
		cfg := &types.InstanceFleetModifyConfig{
			InstanceFleetId:        &d.instanceFleetID,
			TargetOnDemandCapacity: int32(onDemand),
			TargetSpotCapacity:     int32(spot),
		}
		if _, err := d.client.ModifyInstanceFleet(ctx, &emr.ModifyInstanceFleetInput{
			ClusterId:     &d.clusterID,
			InstanceFleet: cfg,
		}); err != nil {
			return classifyError(err)
		}
	}

	if level, ok := paramutil.Int(params, "step_concurrency_level"); ok {
		if _, err := d.client.ModifyCluster(ctx, &emr.ModifyClusterInput{
			ClusterId:            &d.clusterID,
			StepConcurrencyLevel: int32(level),
		}); err != nil {
			return classifyError(err)
		}
	}
	return nil
}
