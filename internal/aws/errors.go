package aws

import (
	"errors"
	"strings"

	"github.com/aws/smithy-go"
)

var (
	// ErrNatGatewayFailed is returned when a NAT gateway lands in the failed state
	ErrNatGatewayFailed = errors.New("NAT gateway failed")
	// ErrNatGatewaysStillDeleting is returned when NAT gateways outlive the deletion poll
	ErrNatGatewaysStillDeleting = errors.New("NAT gateways still deleting")
)

// errorCode returns the EC2 API error code, or "" for non-API errors
func errorCode(err error) string {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		return apiErr.ErrorCode()
	}
	return ""
}

// IsNotFound reports whether err says the resource does not exist.
// EC2 spells these InvalidVpcID.NotFound, InvalidAllocationID.NotFound,
// NatGatewayNotFound and so on.
func IsNotFound(err error) bool {
	if err == nil {
		return false
	}
	return strings.HasSuffix(errorCode(err), "NotFound")
}

// IsDependencyViolation reports whether err says something still uses the resource
func IsDependencyViolation(err error) bool {
	return errorCode(err) == "DependencyViolation"
}

// isNotAttached reports whether a detach targeted a gateway that was already detached
func isNotAttached(err error) bool {
	return errorCode(err) == "Gateway.NotAttached"
}
