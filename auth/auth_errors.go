package auth

import (
	"errors"

	"github.com/jrsteele09/go-onedrive-upload/identity"
)

var (
	ErrMissingCode   = errors.New("no authorization code received")
	ErrNoAccessToken = errors.New("no access token found")
	ErrProviderError = errors.New("identity provider returned an error")
	// ErrExchangeFailed is returned when the provider rejects the authorization code.
	ErrExchangeFailed = identity.ErrExchangeFailed
)
