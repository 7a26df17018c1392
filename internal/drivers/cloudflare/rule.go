// Package cloudflare implements the cloudflare-rule Scaling Driver
// Registry driver: updates a zone- or account-level rate-limiting/WAF
// custom rule via cloudflare-go.
package cloudflare

import (
	"context"
	"fmt"
	"os"

	cf "github.com/cloudflare/cloudflare-go"

	"wavectl/internal/drivers/paramutil"
	"wavectl/pkg/models"
)

// Rule drives the cloudflare-rule kind. level selects whether identifier
// is a zone id or an account id; rule_id names the existing custom rule
// to update within its ruleset.
type Rule struct {
	id         string
	level      string // "zone" or "account"
	identifier string
	rulesetID  string
	ruleID     string
	api        *cf.API
}

func NewRule(id string, metadata map[string]any) (*Rule, error) {
	level, err := paramutil.RequireString(metadata, "level")
	if err != nil {
		return nil, models.NewConfigError("cloudflare-rule metadata", err)
	}
	if level != "zone" && level != "account" {
		return nil, models.NewConfigError("cloudflare-rule metadata", fmt.Errorf("level must be zone or account, got %q", level))
	}
	identifier, err := paramutil.RequireString(metadata, "identifier")
	if err != nil {
		return nil, models.NewConfigError("cloudflare-rule metadata", err)
	}
	rulesetID, err := paramutil.RequireString(metadata, "ruleset_id")
	if err != nil {
		return nil, models.NewConfigError("cloudflare-rule metadata", err)
	}
	ruleID, err := paramutil.RequireString(metadata, "rule_id")
	if err != nil {
		return nil, models.NewConfigError("cloudflare-rule metadata", err)
	}

	token, _ := paramutil.String(metadata, "api_token")
	var api *cf.API
	if token != "" {
		api, err = cf.NewWithAPIToken(token)
	} else {
		api, err = cf.New(os.Getenv("CF_API_KEY"), os.Getenv("CF_API_EMAIL")) // ambient: CF_API_KEY/CF_API_EMAIL env vars
	}
	if err != nil {
		return nil, models.NewConfigError("cloudflare-rule credentials", err)
	}

	return &Rule{id: id, level: level, identifier: identifier, rulesetID: rulesetID, ruleID: ruleID, api: api}, nil
}

func (d *Rule) Kind() string { return "cloudflare-rule" }
func (d *Rule) ID() string   { return d.id }

func (d *Rule) Apply(ctx context.Context, params map[string]any) error {
	raw, ok := params["rule"]
	if !ok {
		return models.NewConfigError("cloudflare-rule params", fmt.Errorf("rule is required"))
	}
	ruleMap, ok := raw.(map[string]any)
	if !ok {
		return models.NewConfigError("cloudflare-rule params", fmt.Errorf("rule must be an object"))
	}

	rc := cf.ZoneIdentifier(d.identifier)
	if d.level == "account" {
		rc = cf.AccountIdentifier(d.identifier)
	}

	update := cf.UpdateRulesetRuleParams{
		RulesetID: d.rulesetID,
		RuleID:    d.ruleID,
	}
	if expr, ok := ruleMap["expression"].(string); ok {
		update.Expression = expr
	}
	if action, ok := ruleMap["action"].(string); ok {
		update.Action = action
	}

	_, err := d.api.UpdateRulesetRule(ctx, rc, update)
	return classifyError(err)
}

func classifyError(err error) error {
	if err == nil {
		return nil
	}
	return models.NewTransientError("cloudflare api", err)
}
