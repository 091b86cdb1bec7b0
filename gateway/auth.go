package gateway

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"circnexus/crypto"
)

type contextKey string

const (
	contextKeyCaller contextKey = "caller"
	contextKeyScopes contextKey = "scopes"
)

// Scopes accepted in bearer tokens. The subject claim carries the caller's
// bech32 address; scopes gate route groups coarsely while the engines enforce
// the fine-grained role checks.
const (
	ScopeRead  = "read"
	ScopeWrite = "write"
	ScopeAdmin = "admin"
)

var (
	errMissingToken = errors.New("gateway: missing bearer token")
	errBadSubject   = errors.New("gateway: subject is not a valid address")
)

// Authenticator validates HS256 bearer tokens and resolves the caller
// address from the subject claim.
type Authenticator struct {
	secret []byte
}

// NewAuthenticator constructs an authenticator around the shared HMAC secret.
func NewAuthenticator(secret []byte) *Authenticator {
	return &Authenticator{secret: secret}
}

type tokenClaims struct {
	Scopes []string `json:"scopes"`
	jwt.RegisteredClaims
}

func (a *Authenticator) parse(r *http.Request) (*tokenClaims, error) {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	if header == "" || !strings.HasPrefix(header, "Bearer ") {
		return nil, errMissingToken
	}
	raw := strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
	claims := &tokenClaims{}
	token, err := jwt.ParseWithClaims(raw, claims, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return a.secret, nil
	})
	if err != nil {
		return nil, err
	}
	if !token.Valid {
		return nil, jwt.ErrTokenUnverifiable
	}
	return claims, nil
}

// Middleware rejects requests without a valid token carrying the required
// scope and stores the caller address in the request context.
func (a *Authenticator) Middleware(requiredScope string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims, err := a.parse(r)
			if err != nil {
				writeError(w, http.StatusUnauthorized, err)
				return
			}
			if requiredScope != "" && !hasScope(claims.Scopes, requiredScope) {
				writeError(w, http.StatusForbidden, errors.New("gateway: missing required scope"))
				return
			}
			decoded, err := crypto.DecodeAddress(strings.TrimSpace(claims.Subject))
			if err != nil {
				writeError(w, http.StatusUnauthorized, errBadSubject)
				return
			}
			ctx := context.WithValue(r.Context(), contextKeyCaller, decoded.Array())
			ctx = context.WithValue(ctx, contextKeyScopes, claims.Scopes)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func hasScope(scopes []string, want string) bool {
	for _, scope := range scopes {
		if scope == want || scope == ScopeAdmin {
			return true
		}
	}
	return false
}

// CallerFromContext returns the authenticated caller address.
func CallerFromContext(ctx context.Context) ([20]byte, bool) {
	caller, ok := ctx.Value(contextKeyCaller).([20]byte)
	return caller, ok
}
