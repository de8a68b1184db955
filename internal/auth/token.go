package auth

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

// ExtractTokenFromRequest extracts a bearer token from the Authorization header.
func ExtractTokenFromRequest(r *http.Request) (string, error) {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return "", errors.New("authorization header is missing")
	}

	parts := strings.Split(authHeader, " ")
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", errors.New("authorization header format must be 'Bearer {token}'")
	}

	return parts[1], nil
}

// ExtractIdentityFromJWT parses a JWT without signature validation and pulls
// out the subject and role claims. Used only when no OIDC issuer is
// configured; production deployments verify through the middleware.
func ExtractIdentityFromJWT(tokenString string) (Identity, error) {
	if tokenString == "" {
		return Identity{}, errors.New("empty token")
	}

	token, _, err := new(jwt.Parser).ParseUnverified(tokenString, jwt.MapClaims{})
	if err != nil {
		return Identity{}, fmt.Errorf("failed to parse token: %w", err)
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return Identity{}, errors.New("invalid token claims")
	}

	sub, ok := claims["sub"].(string)
	if !ok || sub == "" {
		return Identity{}, errors.New("subject claim not found in token")
	}

	return Identity{UserID: sub, Roles: rolesFromClaims(claims)}, nil
}

// rolesFromClaims reads roles from either a flat "roles" claim or the
// Keycloak-style realm_access.roles list.
func rolesFromClaims(claims map[string]interface{}) []string {
	var roles []string

	appendRoles := func(raw interface{}) {
		list, ok := raw.([]interface{})
		if !ok {
			return
		}
		for _, r := range list {
			if s, ok := r.(string); ok {
				roles = append(roles, s)
			}
		}
	}

	appendRoles(claims["roles"])
	if realm, ok := claims["realm_access"].(map[string]interface{}); ok {
		appendRoles(realm["roles"])
	}

	return roles
}
