// Package auth provides JWT-based authentication middleware with metrics.
package auth

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/peardrive/peardrive/internal/logging"
	"github.com/peardrive/peardrive/internal/metrics"
	"github.com/peardrive/peardrive/internal/protocol"
)

type contextKey string

const (
	userContextKey contextKey = "user"

	tokenLifetime = 30 * 24 * time.Hour
)

// Claims holds JWT token claims.
type Claims struct {
	UserID   int    `json:"user_id"`
	Username string `json:"username"`
	IsAdmin  bool   `json:"is_admin"`
	jwt.RegisteredClaims
}

// Auth handles JWT authentication.
type Auth struct {
	db           *sql.DB
	secret       []byte
	defaultQuota int64
}

// New creates a new Auth handler. defaultQuota is the storage quota, in
// bytes, given to newly registered users.
func New(db *sql.DB, jwtSecret string, defaultQuota int64) *Auth {
	return &Auth{
		db:           db,
		secret:       []byte(jwtSecret),
		defaultQuota: defaultQuota,
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

		claims, err := a.validateToken(tokenStr)
		if err != nil {
			metrics.RecordAuthAttempt(false)
			sendAuthError(w, http.StatusUnauthorized, "invalid token: "+err.Error())
			return
		}

		// Check if token is revoked
		revoked, err := a.isTokenRevoked(r.Context(), tokenStr)
		if err != nil {
			logging.Error("token revocation check failed", zap.Error(err))
		}
		if revoked {
			metrics.RecordAuthAttempt(false)
			sendAuthError(w, http.StatusUnauthorized, "token has been revoked")
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

// HandleLogin handles POST /api/v1/auth/token
func (a *Auth) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Username   string `json:"username"`
		Password   string `json:"password"`
		DeviceName string `json:"device_name"`
	}

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

	var userID int
	var hashedPassword string
	var isAdmin bool
	err := a.db.QueryRowContext(r.Context(),
		`SELECT id, password, is_admin FROM users WHERE username = $1`,
		req.Username).Scan(&userID, &hashedPassword, &isAdmin)
	if err == sql.ErrNoRows {
		metrics.RecordAuthAttempt(false)
		logging.Warn("login failed: unknown user", zap.String("username", req.Username))
		sendAuthError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}
	if err != nil {
		metrics.RecordAuthAttempt(false)
		logging.Error("login database error", zap.Error(err))
		sendAuthError(w, http.StatusInternalServerError, "database error")
		return
	}

	if err := bcrypt.CompareHashAndPassword([]byte(hashedPassword), []byte(req.Password)); err != nil {
		metrics.RecordAuthAttempt(false)
		logging.Warn("login failed: invalid password", zap.String("username", req.Username))
		sendAuthError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}

	tokenStr, expiresAt, err := a.IssueToken(r.Context(), userID, req.Username, isAdmin, req.DeviceName)
	if err != nil {
		metrics.RecordAuthAttempt(false)
		logging.Error("failed to sign token", zap.Error(err))
		sendAuthError(w, http.StatusInternalServerError, "failed to generate token")
		return
	}

	metrics.RecordAuthAttempt(true)
	logging.Info("login successful", zap.String("username", req.Username))

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"token":      tokenStr,
		"expires_at": expiresAt,
		"user": map[string]interface{}{
			"id":       userID,
			"username": req.Username,
			"is_admin": isAdmin,
		},
	})
}

// HandleRegister handles POST /api/v1/auth/register
func (a *Auth) HandleRegister(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Username   string `json:"username"`
		Password   string `json:"password"`
		DeviceName string `json:"device_name"`
	}

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		sendAuthError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.Username == "" || len(req.Password) < 8 {
		sendAuthError(w, http.StatusBadRequest, "username and a password of at least 8 characters required")
		return
	}

	var exists bool
	err := a.db.QueryRowContext(r.Context(),
		`SELECT EXISTS(SELECT 1 FROM users WHERE username = $1)`,
		req.Username).Scan(&exists)
	if err != nil {
		logging.Error("register database error", zap.Error(err))
		sendAuthError(w, http.StatusInternalServerError, "database error")
		return
	}
	if exists {
		sendAuthError(w, http.StatusConflict, "username already taken")
		return
	}

	if err := a.CreateUser(r.Context(), req.Username, req.Password, false); err != nil {
		logging.Error("failed to create user", zap.String("username", req.Username), zap.Error(err))
		sendAuthError(w, http.StatusInternalServerError, "failed to create user")
		return
	}

	var userID int
	if err := a.db.QueryRowContext(r.Context(),
		`SELECT id FROM users WHERE username = $1`,
		req.Username).Scan(&userID); err != nil {
		logging.Error("register database error", zap.Error(err))
		sendAuthError(w, http.StatusInternalServerError, "database error")
		return
	}

	tokenStr, expiresAt, err := a.IssueToken(r.Context(), userID, req.Username, false, req.DeviceName)
	if err != nil {
		logging.Error("failed to sign token", zap.Error(err))
		sendAuthError(w, http.StatusInternalServerError, "failed to generate token")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"token":      tokenStr,
		"expires_at": expiresAt,
		"user": map[string]interface{}{
			"id":       userID,
			"username": req.Username,
			"is_admin": false,
		},
	})
}

// IssueToken generates a JWT and records a device token entry.
func (a *Auth) IssueToken(ctx context.Context, userID int, username string, isAdmin bool, deviceName string) (string, time.Time, error) {
	now := time.Now()
	claims := &Claims{
		UserID:   userID,
		Username: username,
		IsAdmin:  isAdmin,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(tokenLifetime)),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    "peardrive",
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenStr, err := token.SignedString(a.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign token: %w", err)
	}

	if deviceName == "" {
		deviceName = "unknown"
	}
	tokenHash := hashToken(tokenStr)
	_, err = a.db.ExecContext(ctx,
		`INSERT INTO device_tokens (user_id, device_name, token_hash) VALUES ($1, $2, $3)`,
		userID, deviceName, tokenHash)
	if err != nil {
		logging.Error("failed to record device token", zap.Error(err))
	}

	return tokenStr, claims.ExpiresAt.Time, nil
}

// CreateUser creates a new user with the default storage quota.
func (a *Auth) CreateUser(ctx context.Context, username, password string, isAdmin bool) error {
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}

	_, err = a.db.ExecContext(ctx,
		`INSERT INTO users (username, password, is_admin, storage_quota) VALUES ($1, $2, $3, $4)`,
		username, string(hashed), isAdmin, a.defaultQuota)
	if err != nil {
		return fmt.Errorf("insert user: %w", err)
	}

	logging.Info("user created", zap.String("username", username), zap.Bool("is_admin", isAdmin))
	return nil
}

// EnsureDefaultAdmin creates a default admin user if no users exist.
func (a *Auth) EnsureDefaultAdmin(ctx context.Context) error {
	var count int
	err := a.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM users`).Scan(&count)
	if err != nil {
		return fmt.Errorf("count users: %w", err)
	}

	if count == 0 {
		logging.Warn("no users found, creating default admin (admin/admin)")
		logging.Warn("** change the default password immediately! **")
		return a.CreateUser(ctx, "admin", "admin", true)
	}
	return nil
}

func (a *Auth) validateToken(tokenStr string) (*Claims, error) {
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

func (a *Auth) isTokenRevoked(ctx context.Context, tokenStr string) (bool, error) {
	h := hashToken(tokenStr)
	var revoked bool
	err := a.db.QueryRowContext(ctx,
		`SELECT revoked FROM device_tokens WHERE token_hash = $1`, h).Scan(&revoked)
	if err == sql.ErrNoRows {
		return false, nil // Token not tracked = not revoked
	}
	if err != nil {
		return false, err
	}
	return revoked, nil
}

// RevokeToken revokes the current token by its hash.
func (a *Auth) RevokeToken(ctx context.Context, tokenStr string) error {
	h := hashToken(tokenStr)
	result, err := a.db.ExecContext(ctx,
		`UPDATE device_tokens SET revoked = TRUE WHERE token_hash = $1`, h)
	if err != nil {
		return fmt.Errorf("revoke token: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return fmt.Errorf("token not found")
	}
	return nil
}

// ExtractToken returns the bearer token from a request, if present.
func ExtractToken(r *http.Request) string {
	return extractToken(r)
}

func extractToken(r *http.Request) string {
	// Bearer token from Authorization header
	auth := r.Header.Get("Authorization")
	if strings.HasPrefix(auth, "Bearer ") {
		return strings.TrimPrefix(auth, "Bearer ")
	}
	// Query parameter fallback, needed for EventSource clients
	return r.URL.Query().Get("token")
}

func hashToken(token string) string {
	h := sha256.Sum256([]byte(token))
	return hex.EncodeToString(h[:])
}

func sendAuthError(w http.ResponseWriter, code int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(protocol.ErrorResponse{
		Error: message,
		Code:  code,
	})
}
