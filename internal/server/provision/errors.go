package provision

import (
	"errors"
	"strings"

	iamtypes "github.com/aws/aws-sdk-go-v2/service/iam/types"
	lambdatypes "github.com/aws/aws-sdk-go-v2/service/lambda/types"
	smithy "github.com/aws/smithy-go"
)

func apiErrorCode(err error) string {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		return apiErr.ErrorCode()
	}
	return ""
}

func apiErrorMessage(err error) string {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		return apiErr.ErrorMessage()
	}
	return ""
}

func isNoSuchEntity(err error) bool {
	var nse *iamtypes.NoSuchEntityException
	return errors.As(err, &nse) || apiErrorCode(err) == "NoSuchEntity"
}

func isEntityAlreadyExists(err error) bool {
	var eae *iamtypes.EntityAlreadyExistsException
	return errors.As(err, &eae) || apiErrorCode(err) == "EntityAlreadyExists"
}

func isFunctionNotFound(err error) bool {
	var rnf *lambdatypes.ResourceNotFoundException
	return errors.As(err, &rnf) || apiErrorCode(err) == "ResourceNotFoundException"
}

func isConflict(err error) bool {
	var rce *lambdatypes.ResourceConflictException
	return errors.As(err, &rce) || apiErrorCode(err) == "ResourceConflictException"
}

// isFunctionExists matches CreateFunction losing a race to another writer.
func isFunctionExists(err error) bool {
	return isConflict(err) && strings.Contains(apiErrorMessage(err), "already exist")
}

// isPermissionExists matches AddPermission rejecting a duplicate statement id.
func isPermissionExists(err error) bool {
	return isConflict(err) && strings.Contains(apiErrorMessage(err), "already exists")
}

// isRoleNotAssumable matches Lambda rejecting a role IAM has not propagated yet.
func isRoleNotAssumable(err error) bool {
	var ipv *lambdatypes.InvalidParameterValueException
	if !errors.As(err, &ipv) && apiErrorCode(err) != "InvalidParameterValueException" {
		return false
	}
	return strings.Contains(apiErrorMessage(err), "cannot be assumed")
}

// isNotificationRetryable matches S3 rejecting a notification configuration
// while a destination permission propagates or another writer holds the
// bucket configuration.
func isNotificationRetryable(err error) bool {
	switch apiErrorCode(err) {
	case "InvalidArgument", "OperationAborted", "ConflictingOperationInProgress":
		return true
	}
	return false
}
