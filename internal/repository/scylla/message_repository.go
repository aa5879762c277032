package scylla

import (
	"context"
	"fmt"
	"time"

	"github.com/gocql/gocql"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"send2me-service/internal/model"
	"send2me-service/internal/util"
)

// Filter selects which messages a listing returns.
type Filter string

const (
	FilterAll        Filter = "all"
	FilterAnon       Filter = "anon"
	FilterIdentified Filter = "identified"
)

const defaultListLimit = 100

// ParseFilter maps a query-string value onto a Filter, defaulting to all.
func ParseFilter(value string) Filter {
	switch Filter(value) {
	case FilterAnon:
		return FilterAnon
	case FilterIdentified:
		return FilterIdentified
	default:
		return FilterAll
	}
}

// MessageRepository persists accepted messages. Rows are immutable once
// written; there is no update path.
type MessageRepository struct {
	client *ScyllaClient
}

func NewMessageRepository(client *ScyllaClient) *MessageRepository {
	return &MessageRepository{client: client}
}

// SaveMessage appends one message to the recipient's partition. The message
// id and created-at are assigned here when unset.
func (r *MessageRepository) SaveMessage(ctx context.Context, message *model.Message) error {
	if message.ID == "" {
		message.ID = uuid.New().String()
	}
	if message.CreatedAt.IsZero() {
		message.CreatedAt = time.Now().UTC()
	}

	if err := r.client.ExecuteWithRetry(r.bindInsert(ctx, message), 3); err != nil {
		util.Error("Failed to save message",
			zap.String("to_uid", message.ToUID),
			zap.String("message_id", message.ID),
			zap.Error(err))
		return fmt.Errorf("failed to save message: %w", err)
	}

	util.Info("Message saved",
		zap.String("to_uid", message.ToUID),
		zap.String("message_id", message.ID),
		zap.Bool("anon", message.Anon))

	return nil
}

// bindInsert builds a per-call query from the shared prepared statement.
// WithContext copies the statement before Bind attaches values, so
// concurrent saves never touch each other's bound rows.
func (r *MessageRepository) bindInsert(ctx context.Context, message *model.Message) *gocql.Query {
	return r.client.Prepared.InsertMessage.WithContext(ctx).Bind(
		message.ToUID, message.CreatedAt, message.ID, message.ToUsername,
		message.Text, message.Anon,
		message.FromUID, message.FromUsername, message.FromEmail,
		message.FromGivenName, message.FromFamilyName,
		message.Meta.IPHash, message.Meta.UAHash, message.Meta.Country, message.Meta.Device,
	)
}

// ListMessages returns the recipient's messages newest first, optionally
// narrowed to anonymous or identified senders. The anon filter is applied
// row by row over the partition read and limit counts matching rows only,
// so older matches are still found when the newest rows are all the other
// kind.
func (r *MessageRepository) ListMessages(ctx context.Context, toUID string, filter Filter, limit int) ([]model.Message, error) {
	if limit <= 0 || limit > defaultListLimit {
		limit = defaultListLimit
	}

	iter := r.client.Prepared.ListMessages.WithContext(ctx).Bind(toUID).Iter()

	messages, err := collectMessages(iter, filter, limit)
	if err != nil {
		util.Error("Failed to list messages",
			zap.String("to_uid", toUID),
			zap.Error(err))
		return nil, fmt.Errorf("failed to list messages: %w", err)
	}
	return messages, nil
}

// messageIter is the slice of gocql.Iter the listing needs.
type messageIter interface {
	Scan(dest ...interface{}) bool
	Close() error
}

// collectMessages scans rows until limit messages match the filter or the
// partition is exhausted. Stopping early leaves later pages unfetched.
func collectMessages(iter messageIter, filter Filter, limit int) ([]model.Message, error) {
	messages := make([]model.Message, 0, limit)
	var m model.Message
	for len(messages) < limit && iter.Scan(
		&m.ID, &m.ToUID, &m.ToUsername, &m.Text, &m.Anon,
		&m.FromUID, &m.FromUsername, &m.FromEmail, &m.FromGivenName, &m.FromFamilyName,
		&m.Meta.IPHash, &m.Meta.UAHash, &m.Meta.Country, &m.Meta.Device, &m.CreatedAt,
	) {
		if matchesFilter(m.Anon, filter) {
			messages = append(messages, m)
		}
		m = model.Message{}
	}
	if err := iter.Close(); err != nil {
		return nil, err
	}
	return messages, nil
}

// GetStats counts the recipient's messages by sender kind.
func (r *MessageRepository) GetStats(ctx context.Context, toUID string) (*model.MessageStats, error) {
	iter := r.client.Prepared.ListMessageFlags.WithContext(ctx).Bind(toUID).Iter()

	stats := &model.MessageStats{}
	var anon bool
	for iter.Scan(&anon) {
		stats.Total++
		if anon {
			stats.Anon++
		} else {
			stats.Identified++
		}
	}
	if err := iter.Close(); err != nil {
		util.Error("Failed to count messages",
			zap.String("to_uid", toUID),
			zap.Error(err))
		return nil, fmt.Errorf("failed to count messages: %w", err)
	}

	return stats, nil
}

func matchesFilter(anon bool, filter Filter) bool {
	switch filter {
	case FilterAnon:
		return anon
	case FilterIdentified:
		return !anon
	default:
		return true
	}
}
