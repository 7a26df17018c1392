package gcp

import (
	"errors"

	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"wavectl/internal/drivers/paramutil"
	"wavectl/pkg/models"
)

// clientOptions builds the option.ClientOption set for a GCP client,
// preferring an explicit credentials_json blob in metadata and falling
// back to Application Default Credentials otherwise.
func clientOptions(metadata map[string]any) []option.ClientOption {
	if creds, ok := paramutil.String(metadata, "credentials_json"); ok && creds != "" {
		return []option.ClientOption{option.WithCredentialsJSON([]byte(creds))}
	}
	return nil
}

// classifyError maps a GCP API error into the core taxonomy (spec §7).
func classifyError(err error) error {
	if err == nil {
		return nil
	}
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.Code == 429 || apiErr.Code >= 500:
			return models.NewTransientError("gcp api", err)
		default:
			return models.NewPermanentError("gcp api", err)
		}
	}
	return models.NewTransientError("gcp call", err)
}
