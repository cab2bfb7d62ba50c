package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"team-chat/internal/models"
)

// Claims carries the authenticated user record issued by the identity
// provider. This service only validates tokens; it never issues them in
// production paths.
type Claims struct {
	UserID   string `json:"user_id"`
	Name     string `json:"name"`
	Email    string `json:"email"`
	PhotoURL string `json:"photo_url"`
	jwt.RegisteredClaims
}

// User maps the claims onto the viewer identity consumed by the engine.
func (c *Claims) User() models.User {
	return models.User{
		ID:       c.UserID,
		Name:     c.Name,
		Email:    c.Email,
		PhotoURL: c.PhotoURL,
	}
}

// ValidateToken parses and validates a JWT token.
func ValidateToken(tokenString string, secret []byte) (*Claims, error) {
	claims := &Claims{}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		return secret, nil
	})
	if err != nil {
		return nil, err
	}
	if !token.Valid || claims.UserID == "" {
		return nil, errors.New("invalid token")
	}
	return claims, nil
}

// GenerateToken creates a signed token for a user; used by dev tooling and
// tests.
func GenerateToken(user models.User, secret []byte, ttl time.Duration) (string, error) {
	claims := &Claims{
		UserID:   user.ID,
		Name:     user.Name,
		Email:    user.Email,
		PhotoURL: user.PhotoURL,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(ttl)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(secret)
}
