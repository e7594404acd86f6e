// Package common defines the error kinds surfaced by uploadvault components.
// Callers should use errors.Is (or Kind) to match these values.
package common

import "errors"

var (
	// File lifecycle errors.
	ErrPermissionDenied = errors.New("permission denied")
	ErrNotFound         = errors.New("not found")
	ErrFileNotReady     = errors.New("file not ready")
	ErrDeleteFailed     = errors.New("delete failed")
	ErrInvalidInput     = errors.New("invalid input")

	// Bucket registry errors.
	ErrBucketAccess   = errors.New("bucket access error")
	ErrBucketCreation = errors.New("bucket creation error")

	// Provisioning errors.
	ErrProvisioningTimeout     = errors.New("provisioning timeout")
	ErrProvisioningConflict    = errors.New("provisioning conflict")
	ErrNotificationWireFailure = errors.New("notification wire failure")

	// Repository-level errors.
	ErrAlreadyExists = errors.New("already exists")

	// Auth errors.
	ErrInvalidToken = errors.New("invalid token")
	ErrTokenExpired = errors.New("token expired")
)

var kinds = []struct {
	err  error
	name string
}{
	{ErrPermissionDenied, "PermissionDenied"},
	{ErrFileNotReady, "FileNotReady"},
	{ErrDeleteFailed, "DeleteFailed"},
	{ErrInvalidInput, "InvalidInput"},
	{ErrBucketAccess, "BucketAccessError"},
	{ErrBucketCreation, "BucketCreationError"},
	{ErrProvisioningTimeout, "ProvisioningTimeout"},
	{ErrProvisioningConflict, "ProvisioningConflict"},
	{ErrNotificationWireFailure, "NotificationWireFailure"},
	{ErrNotFound, "NotFound"},
	{ErrAlreadyExists, "AlreadyExists"},
	{ErrInvalidToken, "InvalidToken"},
	{ErrTokenExpired, "TokenExpired"},
}

// Kind returns the tag of the first error kind err matches, or "Internal".
func Kind(err error) string {
	if err == nil {
		return ""
	}
	for _, k := range kinds {
		if errors.Is(err, k.err) {
			return k.name
		}
	}
	return "Internal"
}
