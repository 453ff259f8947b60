package delivery

import (
	"errors"

	"newsdesk/types"

	"github.com/aws/smithy-go"
	"google.golang.org/api/googleapi"
)

func awsRetryable(code string) bool {
	switch code {
	case "Throttling", "ThrottlingException", "RequestThrottled", "RequestLimitExceeded",
		"SlowDown", "RequestTimeout", "RequestTimeoutException":
		return true
	}
	return false
}

// classifyAWS marks client-side AWS API errors (bad queue, access denied) as
// fatal; server faults, throttling and transport errors stay retryable.
func classifyAWS(err error) error {
	if err == nil {
		return nil
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		if awsRetryable(apiErr.ErrorCode()) {
			return err
		}
		if apiErr.ErrorFault() == smithy.FaultClient {
			return types.Fatal(err)
		}
	}
	return err
}

// classifyGoogle does the same for Google API errors
func classifyGoogle(err error) error {
	if err == nil {
		return nil
	}
	var gErr *googleapi.Error
	if errors.As(err, &gErr) && gErr.Code >= 400 && gErr.Code < 500 && gErr.Code != 429 {
		return types.Fatal(err)
	}
	return err
}
