package auth

import (
	"fmt"
	"net/url"
)

// CallbackParameters are the query parameters the identity provider appends to the
// redirect URI once the user has signed in (or failed to).
//
// Success:  /callback/?code=0.AXoA...&state=5b3c...
// Failure:  /callback/?error=access_denied&error_description=AADSTS65004...&state=5b3c...
type CallbackParameters struct {
	// Code is the one-time authorization code to exchange at the token endpoint.
	Code string
	// State echoes the value sent on the authorization request.
	State string
	// Error and ErrorDescription are set by the provider when the login did not complete.
	Error            string
	ErrorDescription string
}

// ParseCallbackParameters reads the callback query string.
func ParseCallbackParameters(q url.Values) CallbackParameters {
	return CallbackParameters{
		Code:             q.Get("code"),
		State:            q.Get("state"),
		Error:            q.Get("error"),
		ErrorDescription: q.Get("error_description"),
	}
}

// ProviderError returns the provider-reported failure, or nil.
func (p CallbackParameters) ProviderError() error {
	if p.Error == "" {
		return nil
	}
	if p.ErrorDescription == "" {
		return fmt.Errorf("%w: %s", ErrProviderError, p.Error)
	}
	return fmt.Errorf("%w: %s: %s", ErrProviderError, p.Error, p.ErrorDescription)
}

// Validate checks that a code was returned. The code check takes precedence over any
// provider error so the user always sees the missing-code message.
func (p CallbackParameters) Validate() error {
	if p.Code == "" {
		return ErrMissingCode
	}
	return nil
}
