package azure

import (
	"errors"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"

	"wavectl/pkg/models"
)

// classifyError maps an Azure ARM response error into the core taxonomy
// (spec §7).
func classifyError(err error) error {
	if err == nil {
		return nil
	}
	var respErr *azcore.ResponseError
	if errors.As(err, &respErr) {
		if respErr.StatusCode == 429 || respErr.StatusCode >= 500 {
			return models.NewTransientError("azure arm", err)
		}
		return models.NewPermanentError("azure arm", err)
	}
	return models.NewTransientError("azure call", err)
}
