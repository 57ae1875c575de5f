package storage

import (
	"errors"

	"github.com/aws/smithy-go"
	"github.com/minio/minio-go/v7"
)

// errorCode extracts the S3 error code from either SDK's error type.
func errorCode(err error) string {
	if err == nil {
		return ""
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		return apiErr.ErrorCode()
	}
	var minioErr minio.ErrorResponse
	if errors.As(err, &minioErr) {
		return minioErr.Code
	}
	return ""
}

// IsNotFound reports whether err means the key or bucket does not exist.
func IsNotFound(err error) bool {
	switch errorCode(err) {
	case "NoSuchKey", "NoSuchBucket", "NotFound":
		return true
	}
	return false
}

// IsBucketExists reports whether err came from creating a bucket that is
// already there.
func IsBucketExists(err error) bool {
	switch errorCode(err) {
	case "BucketAlreadyOwnedByYou", "BucketAlreadyExists":
		return true
	}
	return false
}
