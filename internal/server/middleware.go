package server

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/golang-jwt/jwt/v5"
	log "github.com/sirupsen/logrus"

	"shopflow/internal/domain"
)

type contextKey string

const userContextKey contextKey = "user"

// Claims carried by an access token
type Claims struct {
	UserID string `json:"userId"`
	Email  string `json:"email"`
	Role   string `json:"role"`
	jwt.RegisteredClaims
}

// bearerToken pulls the token out of "Authorization: Bearer <token>"
func bearerToken(r *http.Request) (string, bool) {
	scheme, token, ok := strings.Cut(r.Header.Get("Authorization"), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

// parseToken verifies an HS256 token signed with the configured secret
func (s *Server) parseToken(raw string) (*Claims, error) {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(raw, claims, func(*jwt.Token) (interface{}, error) {
		return []byte(s.config.JWT.Secret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired())
	if err != nil {
		return nil, err
	}
	return claims, nil
}

// authMiddleware rejects requests without a valid bearer token
func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, ok := bearerToken(r)
		if !ok {
			s.writeError(w, r, "authenticate", domain.ErrUnauthenticated)
			return
		}
		claims, err := s.parseToken(raw)
		if err != nil {
			log.WithError(err).WithField("request_id", middleware.GetReqID(r.Context())).Debug("Rejected bearer token")
			s.writeError(w, r, "authenticate", domain.ErrUnauthenticated)
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), userContextKey, claims)))
	})
}

// roleMiddleware restricts access based on user role. Admin always passes.
func (s *Server) roleMiddleware(allowedRoles ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims := getUserClaims(r)
			if claims == nil {
				s.writeError(w, r, "authorize", domain.ErrUnauthenticated)
				return
			}

			allowed := claims.Role == domain.RoleAdmin
			for _, role := range allowedRoles {
				if claims.Role == role {
					allowed = true
					break
				}
			}
			if !allowed {
				writeJSON(w, http.StatusForbidden, errorBody{Error: "authorize: role " + claims.Role + " is not allowed"})
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// getUserClaims extracts user claims from request context
func getUserClaims(r *http.Request) *Claims {
	claims, ok := r.Context().Value(userContextKey).(*Claims)
	if !ok {
		return nil
	}
	return claims
}

// currentUserID returns the authenticated user id, nil when there is none
func currentUserID(r *http.Request) *string {
	claims := getUserClaims(r)
	if claims == nil || claims.UserID == "" {
		return nil
	}
	id := claims.UserID
	return &id
}

// generateToken signs an access token for user and reports when it expires
func (s *Server) generateToken(user *domain.User) (string, time.Time, error) {
	issued := time.Now().UTC()
	expires := issued.Add(time.Duration(s.config.JWT.ExpirationHours) * time.Hour)

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		UserID: user.ID,
		Email:  user.Email,
		Role:   user.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID,
			Issuer:    s.config.Business.Name,
			IssuedAt:  jwt.NewNumericDate(issued),
			ExpiresAt: jwt.NewNumericDate(expires),
		},
	}).SignedString([]byte(s.config.JWT.Secret))
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign token: %w", err)
	}
	return signed, expires, nil
}

// requestLogger logs one line per request through logrus
func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(ww, r)

		entry := log.WithFields(log.Fields{
			"method":     r.Method,
			"path":       r.URL.Path,
			"status":     ww.statusCode,
			"duration":   time.Since(start).String(),
			"request_id": middleware.GetReqID(r.Context()),
			"remote":     r.RemoteAddr,
		})
		switch {
		case ww.statusCode >= 500:
			entry.Error("Request failed")
		case ww.statusCode >= 400:
			entry.Warn("Request rejected")
		default:
			entry.Info("Request handled")
		}
	})
}

// responseWriter wraps http.ResponseWriter to capture status code
type responseWriter struct {
	http.ResponseWriter
	statusCode  int
	wroteHeader bool
}

func (rw *responseWriter) WriteHeader(code int) {
	if !rw.wroteHeader {
		rw.statusCode = code
		rw.wroteHeader = true
	}
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	rw.wroteHeader = true
	return rw.ResponseWriter.Write(b)
}

// Flush keeps server-sent events streaming through the wrapper
func (rw *responseWriter) Flush() {
	if f, ok := rw.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}
