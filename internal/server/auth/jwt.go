// Package auth issues and verifies the bearer tokens that identify actors.
package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/akarpovs/cryptodrive/internal/common"
	"github.com/akarpovs/cryptodrive/internal/server/models"
)

// Claims carries the standard claims plus the actor identity the access
// engine needs. Superuser travels in the token so admin endpoints do not
// hit the users table on every request.
type Claims struct {
	jwt.RegisteredClaims
	Username  string `json:"username"`
	Superuser bool   `json:"superuser"`
}

func GenerateToken(user *models.User, secretKey []byte, validityDuration time.Duration) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(validityDuration)),
		},
		Username:  user.Username,
		Superuser: user.IsSuperuser,
	})

	tokenString, err := token.SignedString(secretKey)
	if err != nil {
		return "", err
	}

	return tokenString, nil
}

// ActorFromToken verifies tokenString and reconstructs the acting user.
// Expired tokens yield common.ErrTokenExpired; any other verification
// failure yields common.ErrInvalidToken.
func ActorFromToken(tokenString string, secretKey []byte) (*models.User, error) {
	claims := &Claims{}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		return secretKey, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, common.ErrTokenExpired
		}
		return nil, common.ErrInvalidToken
	}

	if !token.Valid || claims.Subject == "" {
		return nil, common.ErrInvalidToken
	}

	return &models.User{
		ID:          claims.Subject,
		Username:    claims.Username,
		IsSuperuser: claims.Superuser,
	}, nil
}
