package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/hongminglow/todo-api/internal/config"
	"github.com/hongminglow/todo-api/internal/models"
)

// ErrInvalidToken is returned for any token that fails verification:
// malformed, wrong key, wrong algorithm, wrong issuer or expired.
var ErrInvalidToken = errors.New("invalid token")

// Kind selects the key and lifetime a token is issued or verified with.
type Kind int

const (
	AccessToken Kind = iota
	RefreshToken
)

func (k Kind) String() string {
	if k == RefreshToken {
		return "refresh"
	}
	return "access"
}

// Claims is the identity carried by both token kinds.
type Claims struct {
	UserID   string `json:"_id"`
	Email    string `json:"email"`
	Username string `json:"username"`
	jwt.RegisteredClaims
}

// TokenPair bundles a short-lived access token and a long-lived refresh token.
type TokenPair struct {
	AccessToken  string
	RefreshToken string
}

// TokenManager issues and verifies HS256 JWTs. Access and refresh tokens are
// signed with different keys.
type TokenManager struct {
	issuer     string
	accessKey  []byte
	refreshKey []byte
	accessTTL  time.Duration
	refreshTTL time.Duration
	now        func() time.Time
}

// Option customises a TokenManager.
type Option func(*TokenManager)

// WithClock replaces time.Now for issuing and verifying.
func WithClock(now func() time.Time) Option {
	return func(t *TokenManager) { t.now = now }
}

// NewTokenManager creates a manager from the token section of the config.
func NewTokenManager(cfg config.TokenConfig, opts ...Option) *TokenManager {
	t := &TokenManager{
		issuer:     cfg.Issuer,
		accessKey:  []byte(cfg.AccessSecret),
		refreshKey: []byte(cfg.RefreshSecret),
		accessTTL:  cfg.AccessTTL,
		refreshTTL: cfg.RefreshTTL,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// IssueAccessToken signs a short-lived token for user.
func (t *TokenManager) IssueAccessToken(user models.User) (string, error) {
	return t.issue(user, AccessToken)
}

// IssueRefreshToken signs a long-lived token for user.
func (t *TokenManager) IssueRefreshToken(user models.User) (string, error) {
	return t.issue(user, RefreshToken)
}

// IssuePair signs both tokens for user.
func (t *TokenManager) IssuePair(user models.User) (TokenPair, error) {
	access, err := t.IssueAccessToken(user)
	if err != nil {
		return TokenPair{}, err
	}
	refresh, err := t.IssueRefreshToken(user)
	if err != nil {
		return TokenPair{}, err
	}
	return TokenPair{AccessToken: access, RefreshToken: refresh}, nil
}

// Verify checks signature, algorithm, issuer and expiry against the key for
// kind and returns the decoded claims.
func (t *TokenManager) Verify(token string, kind Kind) (*Claims, error) {
	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return t.key(kind), nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(t.issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(t.now),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !parsed.Valid || claims.UserID == "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

func (t *TokenManager) issue(user models.User, kind Kind) (string, error) {
	now := t.now()
	claims := Claims{
		UserID:   user.ID,
		Email:    user.Email,
		Username: user.Username,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Issuer:    t.issuer,
			Subject:   user.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(t.ttl(kind))),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(t.key(kind))
	if err != nil {
		return "", fmt.Errorf("sign %s token: %w", kind, err)
	}
	return signed, nil
}

func (t *TokenManager) key(kind Kind) []byte {
	if kind == RefreshToken {
		return t.refreshKey
	}
	return t.accessKey
}

func (t *TokenManager) ttl(kind Kind) time.Duration {
	if kind == RefreshToken {
		return t.refreshTTL
	}
	return t.accessTTL
}
