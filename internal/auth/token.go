package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v4"
)

// Token lifetime. There is no refresh mechanism: once expired the caller
// re-authenticates through the OAuth provider.
const tokenTTL = 24 * time.Hour

var (
	// ErrTokenInvalid is returned when the signature does not verify or the
	// payload is malformed
	ErrTokenInvalid = errors.New("invalid token")

	// ErrTokenExpired is returned when the token's expiry has passed
	ErrTokenExpired = errors.New("token expired")
)

// Claims is the identity assertion carried by a bearer token. It is
// reconstructed from the token on every request and never stored.
type Claims struct {
	UserID    string
	Email     string
	ExpiresAt time.Time
}

// TokenCodec signs and verifies identity tokens with a fixed server secret.
type TokenCodec struct {
	secret []byte
}

// NewTokenCodec creates a codec for the given signing secret
func NewTokenCodec(secret []byte) *TokenCodec {
	return &TokenCodec{secret: secret}
}

// Issue creates a signed token embedding the user id and email, expiring
// tokenTTL from now
func (c *TokenCodec) Issue(userID, email string) (string, time.Time, error) {
	expiresAt := time.Now().Add(tokenTTL)
	claims := jwt.MapClaims{
		"user_id": userID,
		"email":   email,
		"exp":     expiresAt.Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)

	signedToken, err := token.SignedString(c.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to sign token: %w", err)
	}
	return signedToken, expiresAt, nil
}

// Decode verifies the signature and expiry and returns the embedded claims.
// Expired tokens yield ErrTokenExpired; anything else wrong with the token
// yields ErrTokenInvalid.
func (c *TokenCodec) Decode(tokenString string) (*Claims, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return c.secret, nil
	})
	if err != nil {
		var ve *jwt.ValidationError
		if errors.As(err, &ve) && ve.Errors&jwt.ValidationErrorExpired != 0 {
			return nil, ErrTokenExpired
		}
		return nil, ErrTokenInvalid
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return nil, ErrTokenInvalid
	}

	userID, ok := claims["user_id"].(string)
	if !ok || userID == "" {
		return nil, ErrTokenInvalid
	}
	email, _ := claims["email"].(string)

	var expiresAt time.Time
	if exp, ok := claims["exp"].(float64); ok {
		expiresAt = time.Unix(int64(exp), 0)
	}

	return &Claims{
		UserID:    userID,
		Email:     email,
		ExpiresAt: expiresAt,
	}, nil
}
