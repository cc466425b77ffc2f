package evernote

import (
	"context"
	"fmt"

	"github.com/apache/thrift/lib/go/thrift"
)

// ErrorCode is the EDAMErrorCode enum.
type ErrorCode int32

// EDAM error codes
const (
	ErrorCodeUnknown              ErrorCode = 1
	ErrorCodeBadDataFormat        ErrorCode = 2
	ErrorCodePermissionDenied     ErrorCode = 3
	ErrorCodeInternalError        ErrorCode = 4
	ErrorCodeDataRequired         ErrorCode = 5
	ErrorCodeLimitReached         ErrorCode = 6
	ErrorCodeQuotaReached         ErrorCode = 7
	ErrorCodeInvalidAuth          ErrorCode = 8
	ErrorCodeAuthExpired          ErrorCode = 9
	ErrorCodeDataConflict         ErrorCode = 10
	ErrorCodeENMLValidation       ErrorCode = 11
	ErrorCodeShardUnavailable     ErrorCode = 12
	ErrorCodeLenTooShort          ErrorCode = 13
	ErrorCodeLenTooLong           ErrorCode = 14
	ErrorCodeTooFew               ErrorCode = 15
	ErrorCodeTooMany              ErrorCode = 16
	ErrorCodeUnsupportedOperation ErrorCode = 17
	ErrorCodeTakenDown            ErrorCode = 18
	ErrorCodeRateLimitReached     ErrorCode = 19
)

var errorCodeNames = map[ErrorCode]string{
	ErrorCodeUnknown:              "UNKNOWN",
	ErrorCodeBadDataFormat:        "BAD_DATA_FORMAT",
	ErrorCodePermissionDenied:     "PERMISSION_DENIED",
	ErrorCodeInternalError:        "INTERNAL_ERROR",
	ErrorCodeDataRequired:         "DATA_REQUIRED",
	ErrorCodeLimitReached:         "LIMIT_REACHED",
	ErrorCodeQuotaReached:         "QUOTA_REACHED",
	ErrorCodeInvalidAuth:          "INVALID_AUTH",
	ErrorCodeAuthExpired:          "AUTH_EXPIRED",
	ErrorCodeDataConflict:         "DATA_CONFLICT",
	ErrorCodeENMLValidation:       "ENML_VALIDATION",
	ErrorCodeShardUnavailable:     "SHARD_UNAVAILABLE",
	ErrorCodeLenTooShort:          "LEN_TOO_SHORT",
	ErrorCodeLenTooLong:           "LEN_TOO_LONG",
	ErrorCodeTooFew:               "TOO_FEW",
	ErrorCodeTooMany:              "TOO_MANY",
	ErrorCodeUnsupportedOperation: "UNSUPPORTED_OPERATION",
	ErrorCodeTakenDown:            "TAKEN_DOWN",
	ErrorCodeRateLimitReached:     "RATE_LIMIT_REACHED",
}

func (c ErrorCode) String() string {
	if name, ok := errorCodeNames[c]; ok {
		return name
	}
	return fmt.Sprintf("ErrorCode(%d)", int32(c))
}

// UserException is EDAMUserException: the request was invalid for this user.
type UserException struct {
	ErrorCode ErrorCode
	Parameter string
}

func (e *UserException) Error() string {
	return fmt.Sprintf("EDAMUserException: %s, %s", e.ErrorCode, e.Parameter)
}

// SystemException is EDAMSystemException: the service failed or throttled the call.
type SystemException struct {
	ErrorCode ErrorCode
	Message   string
	// RateLimitDuration is set with ErrorCodeRateLimitReached, in seconds.
	RateLimitDuration int32
}

func (e *SystemException) Error() string {
	if e.ErrorCode == ErrorCodeRateLimitReached {
		return fmt.Sprintf("EDAMSystemException: %s, retry in %ds", e.ErrorCode, e.RateLimitDuration)
	}
	return fmt.Sprintf("EDAMSystemException: %s, %s", e.ErrorCode, e.Message)
}

// NotFoundException is EDAMNotFoundException.
type NotFoundException struct {
	Identifier string
	Key        string
}

func (e *NotFoundException) Error() string {
	return fmt.Sprintf("EDAMNotFoundException: %s, %s", e.Identifier, e.Key)
}

func (e *UserException) read(ctx context.Context, p thrift.TProtocol) error {
	return readStruct(ctx, p, func(id int16, typ thrift.TType) (bool, error) {
		switch {
		case id == 1 && typ == thrift.I32:
			code, err := p.ReadI32(ctx)
			e.ErrorCode = ErrorCode(code)
			return true, err
		case id == 2 && typ == thrift.STRING:
			var err error
			e.Parameter, err = p.ReadString(ctx)
			return true, err
		default:
			return false, nil
		}
	})
}

func (e *SystemException) read(ctx context.Context, p thrift.TProtocol) error {
	return readStruct(ctx, p, func(id int16, typ thrift.TType) (bool, error) {
		var err error
		switch {
		case id == 1 && typ == thrift.I32:
			var code int32
			code, err = p.ReadI32(ctx)
			e.ErrorCode = ErrorCode(code)
		case id == 2 && typ == thrift.STRING:
			e.Message, err = p.ReadString(ctx)
		case id == 3 && typ == thrift.I32:
			e.RateLimitDuration, err = p.ReadI32(ctx)
		default:
			return false, nil
		}
		return true, err
	})
}

func (e *NotFoundException) read(ctx context.Context, p thrift.TProtocol) error {
	return readStruct(ctx, p, func(id int16, typ thrift.TType) (bool, error) {
		var err error
		switch {
		case id == 1 && typ == thrift.STRING:
			e.Identifier, err = p.ReadString(ctx)
		case id == 2 && typ == thrift.STRING:
			e.Key, err = p.ReadString(ctx)
		default:
			return false, nil
		}
		return true, err
	})
}
