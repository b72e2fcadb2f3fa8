// Package auth provides JWT-based authentication middleware with metrics.
package auth

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/filedash/filedash/internal/logging"
	"github.com/filedash/filedash/internal/metrics"
	"github.com/filedash/filedash/pkg/protocol"
)

type contextKey string

const userContextKey contextKey = "user"

// ErrUnknownUser is returned when a username has no account.
var ErrUnknownUser = errors.New("unknown user")

// Credentials holds what is needed to verify a login.
type Credentials struct {
	UserID       int64
	PasswordHash string
}

// UserSource resolves usernames to stored credentials.
type UserSource interface {
	Lookup(ctx context.Context, username string) (*Credentials, error)
}

// StaticUsers is a fixed username-to-credentials table, used with the
// in-memory metadata backend.
type StaticUsers map[string]Credentials

func (u StaticUsers) Lookup(ctx context.Context, username string) (*Credentials, error) {
	creds, ok := u[username]
	if !ok {
		return nil, ErrUnknownUser
	}
	return &creds, nil
}

// DBUsers resolves credentials from the users table.
type DBUsers struct {
	DB *sql.DB
}

func (u *DBUsers) Lookup(ctx context.Context, username string) (*Credentials, error) {
	var creds Credentials
	err := u.DB.QueryRowContext(ctx,
		`SELECT id, password_hash FROM users WHERE username = $1`,
		username).Scan(&creds.UserID, &creds.PasswordHash)
	if err == sql.ErrNoRows {
		return nil, ErrUnknownUser
	}
	if err != nil {
		return nil, fmt.Errorf("query user: %w", err)
	}
	return &creds, nil
}

// Claims holds JWT token claims.
type Claims struct {
	UserID   int64  `json:"user_id"`
	Username string `json:"username"`
	jwt.RegisteredClaims
}

// Auth handles JWT authentication.
type Auth struct {
	users  UserSource
	secret []byte
	expiry time.Duration
}

// New creates a new Auth handler.
func New(users UserSource, jwtSecret string, expiry time.Duration) *Auth {
	if expiry <= 0 {
		expiry = 24 * time.Hour
	}
	return &Auth{
		users:  users,
		secret: []byte(jwtSecret),
		expiry: expiry,
	}
}

// Middleware returns HTTP middleware that validates JWT tokens.
func (a *Auth) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tokenStr := extractToken(r)
		if tokenStr == "" {
			metrics.RecordAuthAttempt(false)
			sendAuthError(w, http.StatusUnauthorized, "missing authentication token")
			return
		}

		claims, err := a.ValidateToken(tokenStr)
		if err != nil {
			metrics.RecordAuthAttempt(false)
			sendAuthError(w, http.StatusUnauthorized, "invalid token: "+err.Error())
			return
		}

		ctx := context.WithValue(r.Context(), userContextKey, claims)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// GetClaims extracts claims from the request context.
func GetClaims(ctx context.Context) *Claims {
	claims, _ := ctx.Value(userContextKey).(*Claims)
	return claims
}

// WithClaims injects claims into a context.
func WithClaims(ctx context.Context, claims *Claims) context.Context {
	return context.WithValue(ctx, userContextKey, claims)
}

// HandleLogin handles POST /api/v1/auth/token.
func (a *Auth) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var req protocol.LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		metrics.RecordAuthAttempt(false)
		sendAuthError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.Username == "" || req.Password == "" {
		metrics.RecordAuthAttempt(false)
		sendAuthError(w, http.StatusBadRequest, "username and password required")
		return
	}

	creds, err := a.users.Lookup(r.Context(), req.Username)
	if errors.Is(err, ErrUnknownUser) {
		metrics.RecordAuthAttempt(false)
		logging.Warn("login failed: unknown user", zap.String("username", req.Username))
		sendAuthError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}
	if err != nil {
		metrics.RecordAuthAttempt(false)
		logging.Error("login lookup error", zap.Error(err))
		sendAuthError(w, http.StatusInternalServerError, "internal error")
		return
	}

	if err := bcrypt.CompareHashAndPassword([]byte(creds.PasswordHash), []byte(req.Password)); err != nil {
		metrics.RecordAuthAttempt(false)
		logging.Warn("login failed: invalid password", zap.String("username", req.Username))
		sendAuthError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}

	tokenStr, expiresAt, err := a.IssueToken(creds.UserID, req.Username)
	if err != nil {
		metrics.RecordAuthAttempt(false)
		logging.Error("failed to sign token", zap.Error(err))
		sendAuthError(w, http.StatusInternalServerError, "failed to generate token")
		return
	}

	metrics.RecordAuthAttempt(true)
	logging.Info("login successful", zap.String("username", req.Username))

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(protocol.LoginResponse{
		Token:     tokenStr,
		ExpiresAt: expiresAt,
		UserID:    creds.UserID,
		Username:  req.Username,
	})
}

// IssueToken generates a signed JWT for a user.
func (a *Auth) IssueToken(userID int64, username string) (string, time.Time, error) {
	now := time.Now()
	claims := &Claims{
		UserID:   userID,
		Username: username,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(a.expiry)),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    "filedash",
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenStr, err := token.SignedString(a.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign token: %w", err)
	}
	return tokenStr, claims.ExpiresAt.Time, nil
}

// ValidateToken parses and verifies a JWT, returning its claims.
func (a *Auth) ValidateToken(tokenStr string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenStr, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return a.secret, nil
	})
	if err != nil {
		return nil, err
	}
	if !token.Valid {
		return nil, fmt.Errorf("invalid token")
	}
	return claims, nil
}

// HashPassword returns the bcrypt hash of a password, for seeding users.
func HashPassword(password string) (string, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hashed), nil
}

func extractToken(r *http.Request) string {
	auth := r.Header.Get("Authorization")
	if strings.HasPrefix(auth, "Bearer ") {
		return strings.TrimPrefix(auth, "Bearer ")
	}
	// EventSource cannot set headers, so SSE clients pass the token
	// as a query parameter.
	return r.URL.Query().Get("token")
}

func sendAuthError(w http.ResponseWriter, code int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(protocol.ErrorResponse{
		Error: message,
		Code:  code,
	})
}
