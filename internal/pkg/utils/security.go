package utils

import (
	"errors"

	"telesession-service/internal/app/models"
	"telesession-service/internal/pkg/constvars"
	"telesession-service/internal/pkg/exceptions"

	"github.com/golang-jwt/jwt/v4"
)

// IdentityClaims are issued by the external identity provider.
type IdentityClaims struct {
	Name string `json:"name"`
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// ParseIdentityToken verifies an HS256 identity token and returns the
// participant it names.
func ParseIdentityToken(tokenString, secret string) (models.Participant, error) {
	claims := &IdentityClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("invalid token signing method")
		}
		return []byte(secret), nil
	})
	if err != nil {
		return models.Participant{}, exceptions.ErrTokenInvalidOrExpired(err)
	}
	if !token.Valid || claims.Subject == "" {
		return models.Participant{}, exceptions.ErrTokenInvalidOrExpired(errors.New("token has no subject"))
	}
	if claims.Role != constvars.RoleDoctor && claims.Role != constvars.RolePatient {
		return models.Participant{}, exceptions.ErrTokenInvalidOrExpired(errors.New("token has an unknown role"))
	}

	return models.Participant{
		UserID: claims.Subject,
		Name:   claims.Name,
		Role:   claims.Role,
	}, nil
}
