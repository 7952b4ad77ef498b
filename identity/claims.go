package identity

import (
	"fmt"

	"github.com/golang-jwt/jwt/v5"
)

// DecodeClaims extracts the claim set of an ID token without verifying its
// signature. Only use it on tokens received directly from the token endpoint
// over TLS. An empty token yields an empty map.
func DecodeClaims(rawIDToken string) (map[string]any, error) {
	if rawIDToken == "" {
		return map[string]any{}, nil
	}

	token, _, err := jwt.NewParser().ParseUnverified(rawIDToken, jwt.MapClaims{})
	if err != nil {
		return nil, fmt.Errorf("identity: parsing id token: %w", err)
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, fmt.Errorf("identity: unexpected claims type %T", token.Claims)
	}
	return map[string]any(claims), nil
}

// homeAccountID follows the identity platform's "<oid>.<tid>" convention and
// falls back to the subject for tokens without object or tenant ids.
func homeAccountID(claims map[string]any) string {
	oid, _ := claims["oid"].(string)
	tid, _ := claims["tid"].(string)
	if oid != "" && tid != "" {
		return oid + "." + tid
	}
	sub, _ := claims["sub"].(string)
	return sub
}

func usernameFromClaims(claims map[string]any) string {
	for _, key := range []string{"preferred_username", "upn", "email", "name"} {
		if v, ok := claims[key].(string); ok && v != "" {
			return v
		}
	}
	return ""
}
