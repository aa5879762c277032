package service

import (
	"context"
	"fmt"

	"send2me-service/internal/model"
	"send2me-service/internal/repository/scylla"
)

// MessageReader reads a recipient's message log.
type MessageReader interface {
	ListMessages(ctx context.Context, toUID string, filter scylla.Filter, limit int) ([]model.Message, error)
	GetStats(ctx context.Context, toUID string) (*model.MessageStats, error)
}

// InboxService serves a recipient's own messages. Callers must already be
// authenticated; the recipient is always the principal, never a parameter.
type InboxService struct {
	messages MessageReader
}

func NewInboxService(messages MessageReader) *InboxService {
	return &InboxService{messages: messages}
}

// List returns the principal's messages, optionally filtered by sender kind.
func (s *InboxService) List(ctx context.Context, principal *model.Principal, filter string, limit int) ([]model.Message, error) {
	if principal == nil {
		return nil, ErrUnauthorized
	}
	messages, err := s.messages.ListMessages(ctx, principal.UID, scylla.ParseFilter(filter), limit)
	if err != nil {
		return nil, fmt.Errorf("list inbox: %w", err)
	}
	return messages, nil
}

// Stats returns the principal's message counts.
func (s *InboxService) Stats(ctx context.Context, principal *model.Principal) (*model.MessageStats, error) {
	if principal == nil {
		return nil, ErrUnauthorized
	}
	stats, err := s.messages.GetStats(ctx, principal.UID)
	if err != nil {
		return nil, fmt.Errorf("inbox stats: %w", err)
	}
	return stats, nil
}
