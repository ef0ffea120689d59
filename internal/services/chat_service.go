package services

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"ridepool/internal/models"
	"ridepool/internal/repositories/interfaces"
	"ridepool/internal/utils"
	"ridepool/pkg/logger"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// ChatService is the single writer of chat history. Validation happens here;
// the repository below it only persists what this layer has accepted.
type ChatService interface {
	// Append validates and persists one message. The returned message carries
	// the server-assigned id and timestamp.
	Append(ctx context.Context, rideID, senderID primitive.ObjectID, text string) (*models.ChatMessage, error)

	// Latest returns up to limit messages in oldest-first order, ready for
	// display. The storage query runs newest-first; the re-sort happens here
	// so every consumer sees one consistent convention.
	Latest(ctx context.Context, rideID primitive.ObjectID, limit int) ([]*models.ChatMessage, error)

	// Page returns one page of history for scroll-back, newest first.
	Page(ctx context.Context, rideID primitive.ObjectID, params *utils.PaginationParams) ([]*models.ChatMessage, int64, error)

	// DeleteAllForRide cascades a ride deletion into its chat history.
	DeleteAllForRide(ctx context.Context, rideID primitive.ObjectID) error
}

type chatService struct {
	messages interfaces.ChatMessageRepository
	log      *logger.Logger
}

func NewChatService(messages interfaces.ChatMessageRepository, log *logger.Logger) ChatService {
	return &chatService{
		messages: messages,
		log:      log,
	}
}

func (s *chatService) Append(ctx context.Context, rideID, senderID primitive.ObjectID, text string) (*models.ChatMessage, error) {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return nil, ErrEmptyMessage
	}
	if len([]rune(trimmed)) > models.MaxChatMessageLength {
		return nil, ErrMessageTooLong
	}

	message := &models.ChatMessage{
		RideID:   rideID,
		SenderID: senderID,
		Text:     trimmed,
	}

	if err := s.messages.Create(ctx, message); err != nil {
		return nil, fmt.Errorf("failed to append chat message: %w", err)
	}

	s.log.WithRideID(rideID).WithUserID(senderID).Debug("Chat message appended")

	return message, nil
}

func (s *chatService) Latest(ctx context.Context, rideID primitive.ObjectID, limit int) ([]*models.ChatMessage, error) {
	if limit <= 0 {
		limit = utils.ChatHistorySeedLimit
	}

	messages, err := s.messages.GetLatestByRide(ctx, rideID, limit)
	if err != nil {
		return nil, err
	}

	sort.Slice(messages, func(i, j int) bool {
		return messages[i].CreatedAt.Before(messages[j].CreatedAt)
	})

	return messages, nil
}

func (s *chatService) Page(ctx context.Context, rideID primitive.ObjectID, params *utils.PaginationParams) ([]*models.ChatMessage, int64, error) {
	return s.messages.GetByRide(ctx, rideID, params)
}

func (s *chatService) DeleteAllForRide(ctx context.Context, rideID primitive.ObjectID) error {
	if err := s.messages.DeleteByRide(ctx, rideID); err != nil {
		return err
	}

	s.log.WithRideID(rideID).Info("Chat history deleted for ride")

	return nil
}
