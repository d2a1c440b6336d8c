// Package auth authorizes calls to the internal trigger and operator endpoints with
// HS256 bearer tokens. Tokens are minted by the invoker's deployment tooling; this
// service only verifies them.
package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"class-reminder/internal/handler/http/respond"

	"github.com/golang-jwt/jwt/v5"
)

// MinSecretLength is the shortest accepted signing secret.
const MinSecretLength = 32

type ctxKey string

const ctxUser ctxKey = "user"

// Principal is the authenticated caller.
type Principal struct {
	Subject string
	Role    string
}

// PrincipalFromContext returns the caller stored by Authz.
func PrincipalFromContext(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(ctxUser).(Principal)
	return p, ok
}

// ValidateSecret rejects empty or short signing secrets at startup.
func ValidateSecret(secret []byte) error {
	if len(secret) == 0 {
		return errors.New("JWT_SECRET must not be empty")
	}
	if len(secret) < MinSecretLength {
		return fmt.Errorf("JWT_SECRET must be at least %d characters", MinSecretLength)
	}
	return nil
}

// Authz returns middleware that requires a valid bearer token on every non-public
// endpoint and checks the token role against RolePermissions.
//
// Authorization Logic:
//  1. Public endpoints (probes, metrics) pass through.
//  2. Otherwise the token must be HS256 signed with secret, unexpired, with string
//     "sub" and "role" claims. Failure is 401.
//  3. The role must permit the method and path. Failure is 403.
func Authz(secret []byte) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if IsPublicEndpoint(r.URL.Path) {
				next.ServeHTTP(w, r)
				return
			}

			start := time.Now()
			p, err := validateJWT(r.Header.Get("Authorization"), secret)
			if err != nil {
				recordDecision("", r.Method, "unauthorized", start)
				respond.Error(w, http.StatusUnauthorized, respond.Public(fmt.Errorf("unauthorized: %w", err)))
				return
			}
			if !checkRolePermission(p.Role, r.Method, r.URL.Path) {
				recordDecision(p.Role, r.Method, "forbidden", start)
				respond.Error(w, http.StatusForbidden, respond.Public(errors.New("forbidden")))
				return
			}

			recordDecision(p.Role, r.Method, "allowed", start)
			ctx := context.WithValue(r.Context(), ctxUser, p)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// claims is the token body minted for the trigger API.
type claims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

func validateJWT(header string, secret []byte) (Principal, error) {
	raw, ok := strings.CutPrefix(header, "Bearer ")
	if !ok || raw == "" {
		return Principal{}, errors.New("missing bearer token")
	}

	var c claims
	tok, err := jwt.ParseWithClaims(raw, &c, func(*jwt.Token) (any, error) { return secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
	)
	if err != nil || !tok.Valid {
		return Principal{}, errors.New("invalid token")
	}
	if c.Subject == "" {
		return Principal{}, errors.New("invalid sub claim")
	}
	if c.Role == "" {
		return Principal{}, errors.New("invalid role claim")
	}
	return Principal{Subject: c.Subject, Role: c.Role}, nil
}
