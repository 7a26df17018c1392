package aws

import (
	"context"
	"fmt"

	awssdk "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/autoscaling"

	"wavectl/internal/drivers/paramutil"
	"wavectl/pkg/models"
)

// EC2AutoScaling drives the aws-ec2-autoscaling kind: UpdateAutoScalingGroup
// with desired/min/max capacities. desired may be an expression evaluated
// against CurrentState's $desired/$min/$max symbol table.
type EC2AutoScaling struct {
	id        string
	groupName string
	client    *autoscaling.Client
}

// NewEC2AutoScaling builds the driver for one scaling component. groupName
// comes from metadata.group_name.
func NewEC2AutoScaling(ctx context.Context, id string, metadata map[string]any) (*EC2AutoScaling, error) {
	groupName, err := paramutil.RequireString(metadata, "group_name")
	if err != nil {
		return nil, models.NewConfigError("aws-ec2-autoscaling metadata", err)
	}
	cfg, err := loadConfig(ctx, paramutil.ResolveCredentials(metadata))
	if err != nil {
		return nil, models.NewConfigError("aws-ec2-autoscaling credentials", err)
	}
	return &EC2AutoScaling{id: id, groupName: groupName, client: autoscaling.NewFromConfig(cfg)}, nil
}

func (d *EC2AutoScaling) Kind() string { return "aws-ec2-autoscaling" }
func (d *EC2AutoScaling) ID() string   { return d.id }

func (d *EC2AutoScaling) Apply(ctx context.Context, params map[string]any) error {
	desired, ok := paramutil.Int(params, "desired")
	if !ok {
		return models.NewConfigError("aws-ec2-autoscaling params", fmt.Errorf("desired is required"))
	}
	in := &autoscaling.UpdateAutoScalingGroupInput{
		AutoScalingGroupName: &d.groupName,
		DesiredCapacity:      awssdk.Int32(int32(desired)),
	}
	if min, ok := paramutil.Int(params, "min"); ok {
		in.MinSize = awssdk.Int32(int32(min))
	}
	if max, ok := paramutil.Int(params, "max"); ok {
		in.MaxSize = awssdk.Int32(int32(max))
	}
	_, err := d.client.UpdateAutoScalingGroup(ctx, in)
	return classifyError(err)
}

// CurrentState populates $desired/$min/$max from the live group, used when
// a plan's desired param is an expression rather than a literal.
func (d *EC2AutoScaling) CurrentState(ctx context.Context, _ map[string]any) (map[string]float64, error) {
	out, err := d.client.DescribeAutoScalingGroups(ctx, &autoscaling.DescribeAutoScalingGroupsInput{
		AutoScalingGroupNames: []string{d.groupName},
	})
	if err != nil {
		return nil, classifyError(err)
	}
	if len(out.AutoScalingGroups) == 0 {
		return nil, models.NewUnknownComponentError(d.groupName)
	}
	g := out.AutoScalingGroups[0]
	state := map[string]float64{}
	if g.DesiredCapacity != nil {
		state["desired"] = float64(*g.DesiredCapacity)
	}
	if g.MinSize != nil {
		state["min"] = float64(*g.MinSize)
	}
	if g.MaxSize != nil {
		state["max"] = float64(*g.MaxSize)
	}
	return state, nil
}
