package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	firebase "firebase.google.com/go/v4"
	fbauth "firebase.google.com/go/v4/auth"
	"github.com/golang-jwt/jwt/v5"
	"google.golang.org/api/option"

	"github.com/clepfinder/backend/internal/models"
)

type contextKey string

const (
	UserIDKey    contextKey = "userID"
	UserEmailKey contextKey = "userEmail"
	UserRoleKey  contextKey = "userRole"
)

// Role claims issued by the identity provider.
const (
	RoleLearner     = "learner"
	RoleInstitution = "institution"
	RoleAdmin       = "admin"
)

type FirebaseAuthConfig struct {
	ProjectID       string
	CredentialsJSON string
}

// NewFirebaseAuthClient initializes the Firebase Auth client used to verify
// ID tokens server-side. Returns nil (no error) when no credentials are
// configured so local development can fall back to HS256 dev tokens.
func NewFirebaseAuthClient(ctx context.Context, cfg FirebaseAuthConfig) (*fbauth.Client, error) {
	if strings.TrimSpace(cfg.CredentialsJSON) == "" {
		return nil, nil
	}

	app, err := firebase.NewApp(ctx,
		&firebase.Config{ProjectID: cfg.ProjectID},
		option.WithCredentialsJSON([]byte(cfg.CredentialsJSON)),
	)
	if err != nil {
		return nil, err
	}
	return app.Auth(ctx)
}

// Auth validates the bearer token and stores the caller's identity in the
// request context. With a Firebase client present it verifies ID tokens and
// reads the "role" custom claim; without one it accepts HS256 dev tokens
// signed with jwtSecret carrying user_id/email/role claims.
func Auth(authClient *fbauth.Client, jwtSecret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				writeJSON(w, http.StatusUnauthorized, models.NewErrorResponse("Authorization header required"))
				return
			}

			parts := strings.Split(authHeader, " ")
			if len(parts) != 2 || parts[0] != "Bearer" {
				writeJSON(w, http.StatusUnauthorized, models.NewErrorResponse("Invalid authorization header format"))
				return
			}
			tokenString := parts[1]

			var userID, email, role string
			if authClient != nil {
				token, err := authClient.VerifyIDToken(r.Context(), tokenString)
				if err != nil {
					writeJSON(w, http.StatusUnauthorized, models.NewErrorResponse("Invalid or expired token"))
					return
				}
				userID = token.UID
				if v, ok := token.Claims["email"].(string); ok {
					email = v
				}
				if v, ok := token.Claims["role"].(string); ok {
					role = v
				}
			} else {
				token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
					if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
						return nil, jwt.ErrSignatureInvalid
					}
					return []byte(jwtSecret), nil
				})
				if err != nil || !token.Valid {
					writeJSON(w, http.StatusUnauthorized, models.NewErrorResponse("Invalid or expired token"))
					return
				}
				claims, ok := token.Claims.(jwt.MapClaims)
				if !ok {
					writeJSON(w, http.StatusUnauthorized, models.NewErrorResponse("Invalid token claims"))
					return
				}
				userID, _ = claims["user_id"].(string)
				email, _ = claims["email"].(string)
				role, _ = claims["role"].(string)
				if userID == "" {
					writeJSON(w, http.StatusUnauthorized, models.NewErrorResponse("Invalid user ID in token"))
					return
				}
			}

			// Unknown or missing role claims degrade to learner, the
			// least-privileged role. Never to full visibility.
			if role != RoleLearner && role != RoleInstitution && role != RoleAdmin {
				role = RoleLearner
			}

			ctx := context.WithValue(r.Context(), UserIDKey, userID)
			ctx = context.WithValue(ctx, UserEmailKey, email)
			ctx = context.WithValue(ctx, UserRoleKey, role)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireRole rejects callers whose role claim is not in the allowed set.
func RequireRole(roles ...string) func(http.Handler) http.Handler {
	allowed := make(map[string]bool, len(roles))
	for _, r := range roles {
		allowed[r] = true
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !allowed[GetUserRole(r.Context())] {
				writeJSON(w, http.StatusForbidden, models.NewErrorResponse("Insufficient role for this operation"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// GetUserID extracts user ID from context
func GetUserID(ctx context.Context) string {
	userID, ok := ctx.Value(UserIDKey).(string)
	if !ok {
		return ""
	}
	return userID
}

// GetUserEmail extracts the user's email from context
func GetUserEmail(ctx context.Context) string {
	email, ok := ctx.Value(UserEmailKey).(string)
	if !ok {
		return ""
	}
	return email
}

// GetUserRole extracts the role claim from context
func GetUserRole(ctx context.Context) string {
	role, ok := ctx.Value(UserRoleKey).(string)
	if !ok {
		return ""
	}
	return role
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
