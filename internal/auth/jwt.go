package auth

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var (
	// ErrExpired is returned when a token's expiry has passed.
	ErrExpired = errors.New("token expired")
	// ErrMalformed covers every other verification failure: bad signature,
	// bad structure, wrong signing method, token of the other kind.
	ErrMalformed = errors.New("token malformed")
)

// Claims is the payload embedded in both access and refresh tokens.
// The subject carries the user ID as a decimal string.
type Claims struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Role     string `json:"role"`
	jwt.RegisteredClaims
}

// UserID parses the subject back into the user's numeric ID.
func (c *Claims) UserID() (int64, error) {
	id, err := strconv.ParseInt(c.Subject, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid subject claim %q: %w", c.Subject, err)
	}
	return id, nil
}

type JWTAuthenticator struct {
	secret        string
	refreshSecret string
	iss           string
	accessExp     time.Duration
	refreshExp    time.Duration
}

func NewJWTAuthenticator(secret, refreshSecret, iss string, accessExp, refreshExp time.Duration) *JWTAuthenticator {
	return &JWTAuthenticator{
		secret:        secret,
		refreshSecret: refreshSecret,
		iss:           iss,
		accessExp:     accessExp,
		refreshExp:    refreshExp,
	}
}

// GenerateTokens generates both access and refresh tokens for the same
// identity. The two kinds are signed with distinct secrets so a refresh
// token never passes access verification and vice versa. Each token carries
// a fresh jti: iat/exp only have one-second resolution and HS256 signing is
// deterministic, so without it two tokens minted within the same second for
// the same identity would be byte-identical, defeating the stored-token
// comparison that makes refresh tokens single-use.
func (a *JWTAuthenticator) GenerateTokens(userID int64, username, email, role string) (string, string, error) {
	now := time.Now()

	accessClaims := &Claims{
		Username: username,
		Email:    email,
		Role:     role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatInt(userID, 10),
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(a.accessExp)),
			Issuer:    a.iss,
			Audience:  jwt.ClaimStrings{a.iss},
		},
	}

	refreshClaims := &Claims{
		Username: username,
		Email:    email,
		Role:     role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatInt(userID, 10),
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(a.refreshExp)),
			Issuer:    a.iss,
		},
	}

	accessToken, err := a.signWithClaims(accessClaims, a.secret)
	if err != nil {
		return "", "", err
	}

	refreshToken, err := a.signWithClaims(refreshClaims, a.refreshSecret)
	if err != nil {
		return "", "", err
	}

	return accessToken, refreshToken, nil
}

func (a *JWTAuthenticator) signWithClaims(claims jwt.Claims, secret string) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)

	tokenString, err := token.SignedString([]byte(secret))
	if err != nil {
		return "", err
	}

	return tokenString, nil
}

// ValidateAccessToken verifies an access token and returns its claims.
func (a *JWTAuthenticator) ValidateAccessToken(token string) (*Claims, error) {
	return a.validate(token, a.secret)
}

// ValidateRefreshToken verifies a refresh token and returns its claims.
func (a *JWTAuthenticator) ValidateRefreshToken(token string) (*Claims, error) {
	return a.validate(token, a.refreshSecret)
}

func (a *JWTAuthenticator) validate(token, secret string) (*Claims, error) {
	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return []byte(secret), nil
	}, jwt.WithExpirationRequired(), jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Name}))

	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpired
		}
		return nil, ErrMalformed
	}
	if !parsed.Valid {
		return nil, ErrMalformed
	}

	return claims, nil
}

// Rotate exchanges a valid refresh token for a brand-new access+refresh pair
// carrying the same identity claims. This layer is stateless: it does not track
// previously issued tokens, so an old refresh token that has not yet expired
// still verifies here. Single-use enforcement happens at the API layer, which
// compares the presented token against the one stored for the user.
func (a *JWTAuthenticator) Rotate(refreshToken string) (string, string, error) {
	claims, err := a.ValidateRefreshToken(refreshToken)
	if err != nil {
		return "", "", err
	}

	userID, err := claims.UserID()
	if err != nil {
		return "", "", ErrMalformed
	}

	return a.GenerateTokens(userID, claims.Username, claims.Email, claims.Role)
}
