package utils

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type JWTClaims struct {
	UserID    primitive.ObjectID `json:"user_id"`
	Name      string             `json:"name"`
	CohortKey string             `json:"cohort_key"`
	jwt.RegisteredClaims
}

// GenerateAccessToken signs an HS256 access token for the given user.
func GenerateAccessToken(userID primitive.ObjectID, name, cohortKey, secretKey string) (string, error) {
	claims := &JWTClaims{
		UserID:    userID,
		Name:      name,
		CohortKey: cohortKey,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(JWTAccessTokenTTL)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			NotBefore: jwt.NewNumericDate(time.Now()),
			Issuer:    AppName,
			Subject:   userID.Hex(),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(secretKey))
}

func ValidateToken(tokenString, secretKey string) (*JWTClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &JWTClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return []byte(secretKey), nil
	})

	if err != nil {
		return nil, err
	}

	if claims, ok := token.Claims.(*JWTClaims); ok && token.Valid {
		return claims, nil
	}

	return nil, errors.New(ErrInvalidToken)
}

func ExtractUserIDFromToken(tokenString, secretKey string) (primitive.ObjectID, error) {
	claims, err := ValidateToken(tokenString, secretKey)
	if err != nil {
		return primitive.NilObjectID, err
	}
	return claims.UserID, nil
}
