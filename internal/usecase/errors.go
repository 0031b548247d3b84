package usecase

import "fmt"

type ErrorCode string

const (
	ErrorDuplicateMessage   ErrorCode = "DUPLICATE_MESSAGE"
	ErrorRateLimited        ErrorCode = "RATE_LIMITED"
	ErrorLanguageUnresolved ErrorCode = "LANGUAGE_UNRESOLVED"
	ErrorProvider           ErrorCode = "PROVIDER_ERROR"
	ErrorMalformedInput     ErrorCode = "MALFORMED_INPUT"
	ErrorInternal           ErrorCode = "INTERNAL_ERROR"
)

// Provider failure reasons.
const (
	ReasonProviderAuth      = "provider_auth"
	ReasonProviderQuota     = "provider_quota"
	ReasonProviderNetwork   = "provider_network"
	ReasonProviderMalformed = "provider_malformed_response"
	ReasonProviderTimeout   = "provider_timeout"
	ReasonProviderDown      = "provider_unavailable"
)

type Error struct {
	Code   ErrorCode
	Reason string
	Err    error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Err == nil {
		return fmt.Sprintf("usecase: %s (%s)", e.Code, e.Reason)
	}
	return fmt.Sprintf("usecase: %s (%s): %v", e.Code, e.Reason, e.Err)
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

func newError(code ErrorCode, reason string, err error) *Error {
	return &Error{Code: code, Reason: reason, Err: err}
}

// NewMalformedInput marks an inbound payload that could not be decoded.
func NewMalformedInput(err error) *Error {
	return newError(ErrorMalformedInput, "decode_failed", err)
}
