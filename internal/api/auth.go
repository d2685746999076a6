package api

import (
	"context"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/clinicdesk/clinic-frontdesk/internal/clinic"
)

const identityKey contextKey = "identity"

// identityClaims is the token payload issued by the clinic's auth
// collaborator: a role plus, for physicians, the professional they act for.
type identityClaims struct {
	Role           string `json:"role"`
	ProfessionalID string `json:"professional_id,omitempty"`
	jwt.RegisteredClaims
}

// AuthMiddleware verifies the HMAC-signed bearer token and puts the
// acting identity on the request context.
func AuthMiddleware(secret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			auth := r.Header.Get("Authorization")
			if auth == "" || !strings.HasPrefix(auth, "Bearer ") {
				writeError(w, http.StatusUnauthorized, "missing_token", "Authorization bearer token is required")
				return
			}
			tokenString := strings.TrimPrefix(auth, "Bearer ")

			claims := identityClaims{}
			token, err := jwt.ParseWithClaims(tokenString, &claims, func(token *jwt.Token) (any, error) {
				if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
					return nil, jwt.ErrSignatureInvalid
				}
				return []byte(secret), nil
			})
			if err != nil || !token.Valid {
				writeError(w, http.StatusUnauthorized, "invalid_token", "token is invalid or expired")
				return
			}

			identity, err := identityFromClaims(claims)
			if err != nil {
				writeError(w, http.StatusUnauthorized, "invalid_token", err.Error())
				return
			}

			ctx := context.WithValue(r.Context(), identityKey, identity)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func identityFromClaims(claims identityClaims) (clinic.Identity, error) {
	identity := clinic.Identity{Role: clinic.Role(claims.Role)}

	if !identity.Role.Valid() {
		return clinic.Identity{}, errUnknownRole
	}

	if claims.Subject != "" {
		if userID, err := uuid.Parse(claims.Subject); err == nil {
			identity.UserID = userID
		}
	}

	if claims.ProfessionalID != "" {
		profID, err := uuid.Parse(claims.ProfessionalID)
		if err != nil {
			return clinic.Identity{}, errBadProfessionalID
		}
		identity.ProfessionalID = &profID
	}

	return identity, nil
}

var (
	errUnknownRole       = &authError{"token carries an unknown role"}
	errBadProfessionalID = &authError{"professional_id claim is not a UUID"}
)

type authError struct{ msg string }

func (e *authError) Error() string { return e.msg }

// IdentityFromContext returns the acting identity set by AuthMiddleware.
func IdentityFromContext(ctx context.Context) (clinic.Identity, bool) {
	identity, ok := ctx.Value(identityKey).(clinic.Identity)
	return identity, ok
}
