package service

import (
	"fmt"

	"agentchat/internal/domain"
	"agentchat/internal/repository"
)

// SessionService exposes conversation management.
type SessionService struct {
	repo *repository.ConversationRepository
}

// NewSessionService creates a session service.
func NewSessionService(repo *repository.ConversationRepository) *SessionService {
	return &SessionService{repo: repo}
}

// List returns all conversations, most recently active first.
func (s *SessionService) List() ([]*domain.Conversation, error) {
	return s.repo.List()
}

// Get returns the conversation for a session id.
func (s *SessionService) Get(sessionID string) (*domain.Conversation, error) {
	conv, err := s.repo.GetBySessionID(sessionID)
	if err != nil {
		return nil, err
	}
	if conv == nil {
		return nil, fmt.Errorf("%w: session %q", domain.ErrNotFound, sessionID)
	}
	return conv, nil
}

// Messages returns the full message history for a session, oldest first.
func (s *SessionService) Messages(sessionID string) ([]domain.Message, error) {
	conv, err := s.Get(sessionID)
	if err != nil {
		return nil, err
	}
	return s.repo.LoadHistory(conv.ID)
}

// Delete removes a session and its messages.
func (s *SessionService) Delete(sessionID string) error {
	conv, err := s.Get(sessionID)
	if err != nil {
		return err
	}
	return s.repo.Delete(conv.ID)
}
