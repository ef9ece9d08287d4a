package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/example/house-heist/internal/game"
)

const (
	issuer       = "house-heist"
	roleSession  = "session"
	roleOperator = "operator"
)

// TokenConfig holds the HMAC secrets used for player session tokens and
// operator API tokens
type TokenConfig struct {
	SessionSecret  []byte
	OperatorSecret []byte
	SessionTTL     time.Duration
	OperatorTTL    time.Duration

	now func() time.Time
}

// Claims represents the claims carried by both token kinds
type Claims struct {
	Role string `json:"role"`
	// Conn is the connection a session token was issued for.
	Conn int64 `json:"sid,omitempty"`
	jwt.RegisteredClaims
}

type ctxKey struct{}

// NewTokenConfig creates a token configuration from SESSION_SECRET and
// OPERATOR_SECRET. Missing secrets are an error so a server never runs with
// guessable tokens.
func NewTokenConfig() (*TokenConfig, error) {
	session := os.Getenv("SESSION_SECRET")
	operator := os.Getenv("OPERATOR_SECRET")
	if session == "" || operator == "" {
		return nil, errors.New("SESSION_SECRET and OPERATOR_SECRET must be set")
	}
	return NewTokenConfigWithSecrets([]byte(session), []byte(operator)), nil
}

// NewTokenConfigWithSecrets creates a token configuration from explicit secrets
func NewTokenConfigWithSecrets(session, operator []byte) *TokenConfig {
	return &TokenConfig{
		SessionSecret:  session,
		OperatorSecret: operator,
		SessionTTL:     24 * time.Hour,
		OperatorTTL:    12 * time.Hour,
		now:            time.Now,
	}
}

func (c *TokenConfig) sign(claims Claims, secret []byte) (string, error) {
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
}

func (c *TokenConfig) parse(tokenString string, secret []byte) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return secret, nil
	},
		jwt.WithIssuer(issuer),
		jwt.WithTimeFunc(c.now),
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to parse token: %w", err)
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("invalid token or claims")
	}
	return claims, nil
}

func (c *TokenConfig) registered(subject string, ttl time.Duration) jwt.RegisteredClaims {
	now := c.now()
	return jwt.RegisteredClaims{
		Issuer:    issuer,
		Subject:   subject,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}
}

// Issue signs a session token binding player to conn. It implements
// game.Authenticator.
func (c *TokenConfig) Issue(player game.PlayerID, conn game.ConnID) (string, error) {
	return c.sign(Claims{
		Role:             roleSession,
		Conn:             int64(conn),
		RegisteredClaims: c.registered(string(player), c.SessionTTL),
	}, c.SessionSecret)
}

// Verify checks that token was issued for player on conn
func (c *TokenConfig) Verify(token string, player game.PlayerID, conn game.ConnID) error {
	claims, err := c.parse(token, c.SessionSecret)
	if err != nil {
		return fmt.Errorf("%w: %v", game.ErrUnauthorized, err)
	}
	if claims.Role != roleSession || claims.Subject != string(player) || claims.Conn != int64(conn) {
		return game.ErrUnauthorized
	}
	return nil
}

// IssueOperatorToken signs a bearer token for the operator API
func (c *TokenConfig) IssueOperatorToken(name string) (string, error) {
	return c.sign(Claims{
		Role:             roleOperator,
		RegisteredClaims: c.registered(name, c.OperatorTTL),
	}, c.OperatorSecret)
}

// ValidateToken validates an operator bearer token
func (c *TokenConfig) ValidateToken(tokenString string) (*Claims, error) {
	claims, err := c.parse(tokenString, c.OperatorSecret)
	if err != nil {
		return nil, err
	}
	if claims.Role != roleOperator {
		return nil, fmt.Errorf("invalid role: %s", claims.Role)
	}
	return claims, nil
}

// AuthMiddleware creates a middleware for authenticating operator requests
func (c *TokenConfig) AuthMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			http.Error(w, "Authorization header required", http.StatusUnauthorized)
			return
		}

		tokenString := strings.TrimPrefix(authHeader, "Bearer ")
		if tokenString == authHeader {
			http.Error(w, "Bearer token required", http.StatusUnauthorized)
			return
		}

		claims, err := c.ValidateToken(tokenString)
		if err != nil {
			http.Error(w, fmt.Sprintf("Invalid token: %v", err), http.StatusUnauthorized)
			return
		}

		ctx := context.WithValue(r.Context(), ctxKey{}, claims)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// GetUserFromContext extracts operator claims from request context
func GetUserFromContext(ctx context.Context) (*Claims, bool) {
	user, ok := ctx.Value(ctxKey{}).(*Claims)
	return user, ok
}

// String renders the claims for logs.
func (c *Claims) String() string {
	if c.Role == roleSession {
		return c.Subject + "@" + strconv.FormatInt(c.Conn, 10)
	}
	return c.Role + ":" + c.Subject
}
