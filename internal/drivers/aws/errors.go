package aws

import (
	"errors"
	"fmt"

	"github.com/aws/smithy-go"

	"wavectl/pkg/models"
)

// classifyError maps an AWS SDK error into the core taxonomy (spec §7):
// throttling and 5xx become Transient, everything else with an API error
// code becomes Permanent.
func classifyError(err error) error {
	if err == nil {
		return nil
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "Throttling", "ThrottlingException", "RequestLimitExceeded", "TooManyRequestsException":
			return models.NewTransientError(apiErr.ErrorCode(), err)
		default:
			if apiErr.ErrorFault() == smithy.FaultServer {
				return models.NewTransientError(apiErr.ErrorCode(), err)
			}
			return models.NewPermanentError(apiErr.ErrorCode(), err)
		}
	}
	return models.NewTransientError("aws sdk call", fmt.Errorf("%w", err))
}
