package api

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/citypets/timesheet-engine/generic"
	"github.com/citypets/timesheet-engine/payroll"
)

// =============================================================================
// IDENTITY - Bearer token to (user_id, role, employee_name)
// =============================================================================
//
// Users and passwords live with the identity provider. This package only
// verifies the HS256 token it issues and trusts the claims inside.

// Claims is the token payload.
type Claims struct {
	UserID   string `json:"uid"`
	Role     string `json:"role"`
	Employee string `json:"emp,omitempty"`
	jwt.RegisteredClaims
}

// GenerateToken signs claims for ttl.
func GenerateToken(secret string, claims Claims, ttl time.Duration) (string, error) {
	now := time.Now()
	claims.RegisteredClaims = jwt.RegisteredClaims{
		Subject:   claims.UserID,
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		IssuedAt:  jwt.NewNumericDate(now),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(secret))
}

// ParseToken verifies tokenString and returns its claims.
func ParseToken(secret, tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if token.Method != jwt.SigningMethodHS256 {
			return nil, errors.New("unexpected signing method")
		}
		return []byte(secret), nil
	})
	if err != nil {
		return nil, err
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, errors.New("invalid token")
	}
	return claims, nil
}

// Identity converts claims into the identity the services expect.
func (c *Claims) Identity() (payroll.Identity, error) {
	role := payroll.Role(c.Role)
	if role != payroll.RoleAdmin && role != payroll.RoleEmployee {
		return payroll.Identity{}, errors.New("unknown role " + c.Role)
	}
	if role == payroll.RoleEmployee && c.Employee == "" {
		return payroll.Identity{}, errors.New("employee token without employee name")
	}
	return payroll.Identity{
		UserID:   c.UserID,
		Role:     role,
		Employee: generic.EmployeeID(c.Employee),
	}, nil
}

type ctxKey struct{}

// Authenticate rejects requests without a valid bearer token and stores the
// caller's identity in the request context.
func Authenticate(secret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			parts := strings.Split(authHeader, " ")
			if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
				writeError(w, http.StatusUnauthorized, "authentication required", nil)
				return
			}

			claims, err := ParseToken(secret, parts[1])
			if err != nil {
				writeError(w, http.StatusUnauthorized, "invalid token", err)
				return
			}
			id, err := claims.Identity()
			if err != nil {
				writeError(w, http.StatusUnauthorized, "invalid token", err)
				return
			}

			next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), id)))
		})
	}
}

// WithIdentity attaches id to ctx.
func WithIdentity(ctx context.Context, id payroll.Identity) context.Context {
	return context.WithValue(ctx, ctxKey{}, id)
}

// GetIdentity returns the identity set by Authenticate.
func GetIdentity(ctx context.Context) (payroll.Identity, bool) {
	id, ok := ctx.Value(ctxKey{}).(payroll.Identity)
	return id, ok
}

// RequireAdmin rejects non-admin identities before the handler runs.
func RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, ok := GetIdentity(r.Context())
		if !ok || !id.IsAdmin() {
			writeError(w, http.StatusForbidden, "admin role required", nil)
			return
		}
		next.ServeHTTP(w, r)
	})
}
