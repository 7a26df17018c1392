package aws

import (
	"context"
	"fmt"

	awssdk "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/wafv2"
	"github.com/aws/aws-sdk-go-v2/service/wafv2/types"

	"wavectl/internal/drivers/paramutil"
	"wavectl/pkg/models"
)

// WAFv2 drives the aws-wafv2 kind: it locates rule_name inside the bound
// web ACL's rate-based rule set and updates its Limit to rate_limit.
type WAFv2 struct {
	id       string
	webACLID string
	name     string
	scope    types.Scope
	client   *wafv2.Client
}

func NewWAFv2(ctx context.Context, id string, metadata map[string]any) (*WAFv2, error) {
	webACLID, err := paramutil.RequireString(metadata, "web_acl_id")
	if err != nil {
		return nil, models.NewConfigError("aws-wafv2 metadata", err)
	}
	name, err := paramutil.RequireString(metadata, "web_acl_name")
	if err != nil {
		return nil, models.NewConfigError("aws-wafv2 metadata", err)
	}
	scope := types.ScopeRegional
	if level, _ := paramutil.String(metadata, "level"); level == "account" {
		scope = types.ScopeCloudfront
	}
	cfg, err := loadConfig(ctx, paramutil.ResolveCredentials(metadata))
	if err != nil {
		return nil, models.NewConfigError("aws-wafv2 credentials", err)
	}
	return &WAFv2{id: id, webACLID: webACLID, name: name, scope: scope, client: wafv2.NewFromConfig(cfg)}, nil
}

func (d *WAFv2) Kind() string { return "aws-wafv2" }
func (d *WAFv2) ID() string   { return d.id }

func (d *WAFv2) Apply(ctx context.Context, params map[string]any) error {
	ruleName, err := paramutil.RequireString(params, "rule_name")
	if err != nil {
		return models.NewConfigError("aws-wafv2 params", err)
	}
	rateLimit, ok := paramutil.Int(params, "rate_limit")
	if !ok {
		return models.NewConfigError("aws-wafv2 params", fmt.Errorf("rate_limit is required"))
	}

	got, err := d.client.GetWebACL(ctx, &wafv2.GetWebACLInput{Id: &d.webACLID, Name: &d.name, Scope: d.scope})
	if err != nil {
		return classifyError(err)
	}

	found := false
	for i := range got.WebACL.Rules {
		rule := &got.WebACL.Rules[i]
		if awssdk.ToString(rule.Name) != ruleName || rule.Statement == nil || rule.Statement.RateBasedStatement == nil {
			continue
		}
		rule.Statement.RateBasedStatement.Limit = awssdk.Int64(int64(rateLimit))
		found = true
	}
	if !found {
		return models.NewPermanentError("aws-wafv2", fmt.Errorf("rate-based rule %q not found in web ACL %s", ruleName, d.name))
	}

	_, err = d.client.UpdateWebACL(ctx, &wafv2.UpdateWebACLInput{
		Id:           &d.webACLID,
		Name:         &d.name,
		Scope:        d.scope,
		LockToken:    got.LockToken,
		Rules:        got.WebACL.Rules,
		DefaultAction: got.WebACL.DefaultAction,
		VisibilityConfig: got.WebACL.VisibilityConfig,
	})
	return classifyError(err)
}
