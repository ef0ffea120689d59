package services

import (
	"context"
	"fmt"
	"strings"

	"ridepool/internal/models"
	"ridepool/internal/repositories/interfaces"
	"ridepool/internal/utils"
)

// AuthService resolves bearer credentials to user identities. It is the only
// component consulted during the WebSocket handshake; nothing joins a room
// until it has answered.
type AuthService interface {
	VerifyAccessToken(ctx context.Context, credential string) (*models.User, error)
}

type authService struct {
	users     interfaces.UserRepository
	jwtSecret string
}

func NewAuthService(users interfaces.UserRepository, jwtSecret string) AuthService {
	return &authService{
		users:     users,
		jwtSecret: jwtSecret,
	}
}

// VerifyAccessToken validates the token's signature and expiry, then resolves
// the claimed user against the user store. Read-only; no side effects.
func (s *authService) VerifyAccessToken(ctx context.Context, credential string) (*models.User, error) {
	credential = strings.TrimSpace(strings.TrimPrefix(credential, "Bearer "))
	if credential == "" {
		return nil, ErrMissingToken
	}

	claims, err := utils.ValidateToken(credential, s.jwtSecret)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	user, err := s.users.GetByID(ctx, claims.UserID)
	if err != nil {
		return nil, ErrUnknownUser
	}
	if user.Status != models.UserStatusActive {
		return nil, ErrUnknownUser
	}

	return user, nil
}
