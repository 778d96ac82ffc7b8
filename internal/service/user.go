package service

import (
	"context"
	"fmt"

	"github.com/aliskhannn/sophia-quiz-bot/internal/domain/entities"
)

type UserService struct {
	repository UserRepository
}

func NewUserService(repository UserRepository) *UserService {
	return &UserService{repository: repository}
}

// EnsureUser creates the user on first contact and keeps the chat ID current.
func (s *UserService) EnsureUser(ctx context.Context, userID, chatID int64) error {
	user := entities.NewUser(userID, chatID)

	if _, err := s.repository.Save(ctx, user); err != nil {
		return fmt.Errorf("ensure user: %w", err)
	}

	return nil
}
