package auth

import (
	"errors"
	"net/http"
	"strings"

	"mojgrad-go/internal/models"

	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

var errNoToken = errors.New("auth: no token")

// RequireAuth rejects requests without a valid token and stores the caller
// in the request context. The token is read from the Authorization bearer
// header, or from the token query parameter for WebSocket clients that
// cannot set headers.
func RequireAuth(tokens *TokenService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userID, err := extractUserID(r, tokens)
			if err != nil {
				if !errors.Is(err, errNoToken) {
					zap.L().Debug("Rejected token",
						zap.String("path", r.URL.Path),
						zap.Error(err))
				}
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusUnauthorized)
				w.Write([]byte(`{"error":"unauthorized","message":"Morate biti ulogovani"}`))
				return
			}

			ctx := models.WithCaller(r.Context(), &models.Caller{
				UserId:    userID,
				RequestId: middleware.GetReqID(r.Context()),
			})
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// UserIDFromRequest returns the authenticated user id set by RequireAuth
func UserIDFromRequest(r *http.Request) (string, bool) {
	caller := models.GetCaller(r.Context())
	if caller == nil || caller.UserId == "" {
		return "", false
	}
	return caller.UserId, true
}

func extractUserID(r *http.Request, tokens *TokenService) (string, error) {
	token := ""
	if header := r.Header.Get("Authorization"); header != "" {
		scheme, value, ok := strings.Cut(header, " ")
		if !ok || !strings.EqualFold(scheme, "Bearer") {
			return "", errors.New("auth: malformed authorization header")
		}
		token = strings.TrimSpace(value)
	} else {
		token = r.URL.Query().Get("token")
	}

	if token == "" {
		return "", errNoToken
	}
	return tokens.Validate(token)
}
