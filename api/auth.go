/*
auth.go - Bearer token authentication

PURPOSE:
  Every /api route requires an HS256 JWT. The token's employee_id claim
  becomes the Actor recorded in the audit log; company_role_id is carried
  along for handlers that need it.

TOKENS:
  Issued by the staff login service with the shared JWT_SECRET. IssueToken
  exists for tests and local tooling.
*/
package api

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/sirupsen/logrus"

	"github.com/warp/brokerdesk/brokerage"
)

// Claims are the token claims the API understands.
type Claims struct {
	EmployeeID    int64 `json:"employee_id"`
	CompanyRoleID int   `json:"company_role_id"`
	jwt.RegisteredClaims
}

type actorKey struct{}

// ActorFrom returns the authenticated actor, or the system actor when the
// request carries none.
func ActorFrom(ctx context.Context) brokerage.Actor {
	if a, ok := ctx.Value(actorKey{}).(brokerage.Actor); ok {
		return a
	}
	return brokerage.SystemActor()
}

// WithActor returns a copy of ctx carrying actor.
func WithActor(ctx context.Context, actor brokerage.Actor) context.Context {
	return context.WithValue(ctx, actorKey{}, actor)
}

// Authenticator validates bearer tokens.
type Authenticator struct {
	secret []byte
	logger logrus.FieldLogger
}

// NewAuthenticator creates an authenticator for tokens signed with secret.
func NewAuthenticator(secret string, logger logrus.FieldLogger) *Authenticator {
	return &Authenticator{secret: []byte(secret), logger: logger}
}

var errMissingToken = errors.New("missing bearer token")

// Parse validates a token string and returns its claims.
func (a *Authenticator) Parse(token string) (*Claims, error) {
	parsed, err := jwt.ParseWithClaims(token, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		return a.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return nil, err
	}
	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return nil, jwt.ErrTokenInvalidClaims
	}
	if claims.EmployeeID <= 0 {
		return nil, jwt.ErrTokenInvalidClaims
	}
	return claims, nil
}

// Middleware rejects requests without a valid token and stores the actor in
// the request context.
func (a *Authenticator) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
		if !ok || strings.TrimSpace(token) == "" {
			a.reject(w, r, errMissingToken)
			return
		}
		claims, err := a.Parse(strings.TrimSpace(token))
		if err != nil {
			a.reject(w, r, err)
			return
		}
		actor := brokerage.EmployeeActor(claims.EmployeeID)
		actor.Role = claims.CompanyRoleID
		next.ServeHTTP(w, r.WithContext(WithActor(r.Context(), actor)))
	})
}

func (a *Authenticator) reject(w http.ResponseWriter, r *http.Request, err error) {
	a.logger.WithFields(logrus.Fields{
		"module": "auth",
		"path":   r.URL.Path,
	}).WithError(err).Warn("unauthorized request")
	message := "Invalid or expired token"
	if errors.Is(err, errMissingToken) {
		message = "Missing or invalid Authorization header"
	}
	writeError(w, http.StatusUnauthorized, message, nil)
}

// IssueToken signs a token for employeeID valid for ttl.
func IssueToken(secret string, employeeID int64, roleID int, ttl time.Duration) (string, error) {
	now := time.Now()
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		EmployeeID:    employeeID,
		CompanyRoleID: roleID,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	})
	return t.SignedString([]byte(secret))
}
