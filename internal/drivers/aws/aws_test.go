package aws

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/smithy-go"

	"wavectl/pkg/models"
)

func TestNewEC2AutoScalingRequiresGroupName(t *testing.T) {
	_, err := NewEC2AutoScaling(context.Background(), "asg-1", map[string]any{})
	if err == nil {
		t.Fatal("expected error for missing group_name")
	}
	var cfgErr *models.ConfigError
	if !errors.As(err, &cfgErr) {
		t.Fatalf("got %T, want *models.ConfigError", err)
	}
}

func TestNewECSRequiresClusterAndService(t *testing.T) {
	if _, err := NewECS(context.Background(), "svc-1", map[string]any{"service": "web"}); err == nil {
		t.Fatal("expected error for missing cluster")
	}
	if _, err := NewECS(context.Background(), "svc-1", map[string]any{"cluster": "prod"}); err == nil {
		t.Fatal("expected error for missing service")
	}
}

func TestNewLambdaRequiresFunctionName(t *testing.T) {
	_, err := NewLambda(context.Background(), "fn-1", map[string]any{})
	if err == nil {
		t.Fatal("expected error for missing function_name")
	}
}

func TestNewDynamoDBRequiresTableName(t *testing.T) {
	_, err := NewDynamoDB(context.Background(), "tbl-1", map[string]any{})
	if err == nil {
		t.Fatal("expected error for missing table_name")
	}
}

func TestNewEMRRequiresExactlyOneTarget(t *testing.T) {
	base := map[string]any{"cluster_id": "j-1"}
	if _, err := NewEMR(context.Background(), "emr-1", base); err == nil {
		t.Fatal("expected error when neither instance_group_id nor instance_fleet_id set")
	}
	both := map[string]any{"cluster_id": "j-1", "instance_group_id": "ig-1", "instance_fleet_id": "if-1"}
	if _, err := NewEMR(context.Background(), "emr-1", both); err == nil {
		t.Fatal("expected error when both instance_group_id and instance_fleet_id set")
	}
}

func TestNewWAFv2RequiresWebACLIdentity(t *testing.T) {
	_, err := NewWAFv2(context.Background(), "waf-1", map[string]any{"web_acl_name": "acl"})
	if err == nil {
		t.Fatal("expected error for missing web_acl_id")
	}
}

type fakeAPIError struct{ code string }

func (e fakeAPIError) Error() string       { return e.code }
func (e fakeAPIError) ErrorCode() string   { return e.code }
func (e fakeAPIError) ErrorMessage() string { return e.code }
func (e fakeAPIError) ErrorFault() smithy.ErrorFault {
	return smithy.FaultUnknown
}

func TestClassifyErrorThrottlingIsTransient(t *testing.T) {
	err := classifyError(fakeAPIError{code: "ThrottlingException"})
	if models.KindOf(err) != models.KindTransient {
		t.Fatalf("KindOf = %v, want transient", models.KindOf(err))
	}
}

func TestClassifyErrorValidationIsPermanent(t *testing.T) {
	err := classifyError(fakeAPIError{code: "ValidationException"})
	if models.KindOf(err) != models.KindPermanent {
		t.Fatalf("KindOf = %v, want permanent", models.KindOf(err))
	}
}

func TestClassifyErrorNilIsNil(t *testing.T) {
	if classifyError(nil) != nil {
		t.Fatal("expected nil error to classify as nil")
	}
}
