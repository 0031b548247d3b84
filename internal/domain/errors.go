package domain

import "errors"

var (
	// ErrMalformedResponse marks a provider reply that could not be decoded.
	ErrMalformedResponse = errors.New("malformed provider response")

	// ErrProviderUnavailable marks a call rejected without reaching the provider.
	ErrProviderUnavailable = errors.New("provider unavailable")
)
