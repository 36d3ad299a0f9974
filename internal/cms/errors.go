package cms

import "errors"

// Error kinds returned by the storage layer. Call sites wrap these with the
// operation, collection and id involved, so callers match with errors.Is and
// can show the message to an operator as-is.
var (
	ErrInvalidArgument       = errors.New("invalid argument")
	ErrNotFound              = errors.New("record not found")
	ErrSerialization         = errors.New("record is not serializable")
	ErrStorageLimitExceeded  = errors.New("storage limit exceeded")
	ErrUnsupportedCollection = errors.New("collection not supported by this backend")
	ErrNotEnabled            = errors.New("remote storage not enabled")
	ErrConfig                = errors.New("invalid remote storage configuration")
	ErrNotSupported          = errors.New("operation not supported by this backend")
	ErrReferenced            = errors.New("media asset is still referenced")
	ErrValidation            = errors.New("validation failed")
	ErrInvalidFormat         = errors.New("invalid export package format")
)
