package authmanager

import (
	"context"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	goerrors "github.com/goliatone/go-errors"
	"github.com/google/uuid"
)

var errTokensNotConfigured = goerrors.New("token service not configured", goerrors.CategoryInternal)

// TokenService signs and verifies identity tokens.
type TokenService struct {
	signingKey []byte
	expiration time.Duration
	issuer     string
	audience   jwt.ClaimStrings
	logger     Logger
	now        func() time.Time
}

// NewTokenService creates a new TokenService. expiration is the token TTL.
func NewTokenService(signingKey []byte, expiration time.Duration, issuer string, audience []string, logger Logger) *TokenService {
	if logger == nil {
		logger = defLogger()
	}
	if expiration <= 0 {
		expiration = 24 * time.Hour
	}
	return &TokenService{
		signingKey: signingKey,
		expiration: expiration,
		issuer:     issuer,
		audience:   jwt.ClaimStrings(audience),
		logger:     logger,
		now:        time.Now,
	}
}

// Generate issues a token for user.
func (ts *TokenService) Generate(user *User) (string, error) {
	if user == nil {
		return "", goerrors.New("user must not be nil", goerrors.CategoryInternal)
	}

	now := ts.now()
	claims := &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Issuer:    ts.issuer,
			Subject:   user.ID.String(),
			Audience:  ts.audience,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ts.expiration)),
		},
		UID:      user.ID.String(),
		Username: user.Username,
		Nonce:    user.Nonce,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(ts.signingKey)
	if err != nil {
		return "", goerrors.Wrap(err, goerrors.CategoryInternal, "failed to sign JWT")
	}
	return signed, nil
}

// Validate parses and validates a token string.
func (ts *TokenService) Validate(tokenString string) (*Claims, error) {
	parserOptions := make([]jwt.ParserOption, 0, 2)
	if ts.issuer != "" {
		parserOptions = append(parserOptions, jwt.WithIssuer(ts.issuer))
	}
	if len(ts.audience) > 0 {
		parserOptions = append(parserOptions, jwt.WithAudience(ts.audience...))
	}

	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			ts.logger.Error("unexpected token signing method", "alg", t.Header["alg"])
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return ts.signingKey, nil
	}, parserOptions...)
	if err != nil {
		if goerrors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, goerrors.Wrap(err, ErrTokenMalformed.Category, ErrTokenMalformed.Message).
			WithTextCode(ErrTokenMalformed.TextCode).
			WithCode(goerrors.CodeUnauthorized)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrTokenMalformed
	}
	return claims, nil
}

// IssueToken signs a token for an active user.
func (m *Manager) IssueToken(ctx context.Context, userID uuid.UUID) (string, error) {
	if m.tokens == nil {
		return "", errTokensNotConfigured
	}
	user, err := m.backend.Users().GetByID(ctx, userID)
	if err != nil {
		return "", err
	}
	if !user.IsActive() {
		return "", ErrInvalidCredential
	}
	return m.tokens.Generate(user)
}

// IdentityFromToken resolves a token back to the user it was issued for. The
// user must still exist, be active and carry the nonce embedded in the token.
func (m *Manager) IdentityFromToken(ctx context.Context, token string) (Identity, error) {
	user, err := m.userFromToken(ctx, token)
	if err != nil {
		return nil, err
	}
	return NewIdentityFromUser(user), nil
}

// RefreshToken exchanges a valid token for a new one with a fresh id, issue
// time and expiration. The same checks as IdentityFromToken apply, so a
// token for a deactivated or recreated account cannot be refreshed.
func (m *Manager) RefreshToken(ctx context.Context, token string) (string, error) {
	user, err := m.userFromToken(ctx, token)
	if err != nil {
		return "", err
	}
	refreshed, err := m.tokens.Generate(user)
	if err != nil {
		return "", err
	}
	m.logger.Debug("token refreshed", "user_id", user.ID.String())
	return refreshed, nil
}

func (m *Manager) userFromToken(ctx context.Context, token string) (*User, error) {
	if m.tokens == nil {
		return nil, errTokensNotConfigured
	}
	claims, err := m.tokens.Validate(token)
	if err != nil {
		return nil, err
	}

	id, err := uuid.Parse(claims.UserID())
	if err != nil {
		return nil, ErrTokenMalformed
	}

	user, err := m.backend.Users().GetByID(ctx, id)
	if err != nil {
		if IsKind(err, ErrNotFound) {
			return nil, ErrInvalidCredential
		}
		return nil, err
	}
	if !user.IsActive() || user.Nonce != claims.Nonce {
		return nil, ErrInvalidCredential
	}
	return user, nil
}
