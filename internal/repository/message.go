package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/armada-chat/armada/internal/model"
)

// ReactionCount is one emoji's tally on a message.
type ReactionCount struct {
	Emoji string      `json:"emoji"`
	Count int64       `json:"count"`
	Users []uuid.UUID `json:"users"`
}

// IMessageRepository defines the interface for message data operations
type IMessageRepository interface {
	Create(ctx context.Context, msg *model.Message, mentions []*model.Mention, advanceReadFor *uuid.UUID) error
	FindByID(ctx context.Context, id uuid.UUID) (*model.Message, error)
	ListByRoom(ctx context.Context, roomID uuid.UUID, page, pageSize int) ([]*model.Message, int64, error)
	ListUnreadByRoom(ctx context.Context, roomID, userID uuid.UUID, since *time.Time) ([]uuid.UUID, error)
	MarkEdited(ctx context.Context, id uuid.UUID, content string, at time.Time) error
	MarkDeleted(ctx context.Context, id uuid.UUID, at time.Time) error

	SetReaction(ctx context.Context, messageID, userID uuid.UUID, emoji string) error
	RemoveReaction(ctx context.Context, messageID, userID uuid.UUID, emoji string) error
	ReactionSummary(ctx context.Context, messageID uuid.UUID) ([]*ReactionCount, error)

	CreateReceipts(ctx context.Context, userID uuid.UUID, messageIDs []uuid.UUID) error
	ListReceipts(ctx context.Context, messageID uuid.UUID) ([]*model.ReadReceipt, error)
}

// MessageRepository implements IMessageRepository interface
type MessageRepository struct {
	db *gorm.DB
}

// NewMessageRepository creates a new IMessageRepository instance
func NewMessageRepository(db *gorm.DB) IMessageRepository {
	return &MessageRepository{db: db}
}

// Create persists a message with its attachments and mention rows, bumps
// the room's activity timestamp and, when advanceReadFor is set, moves
// that member's read marker up to the message. One transaction: a message
// never lands without its room surfacing in recency ordering.
func (r *MessageRepository) Create(ctx context.Context, msg *model.Message, mentions []*model.Mention, advanceReadFor *uuid.UUID) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(msg).Error; err != nil {
			return err
		}
		for _, m := range mentions {
			if err := tx.Create(m).Error; err != nil {
				return err
			}
		}
		if advanceReadFor != nil {
			if err := tx.Model(&model.Membership{}).
				Where("room_id = ? AND user_id = ?", msg.RoomID, *advanceReadFor).
				Update("last_read_at", msg.CreatedAt).Error; err != nil {
				return err
			}
		}
		return tx.Model(&model.Room{}).
			Where("id = ?", msg.RoomID).
			Update("updated_at", msg.CreatedAt).Error
	})
}

// FindByID finds a message by ID, attachments included
func (r *MessageRepository) FindByID(ctx context.Context, id uuid.UUID) (*model.Message, error) {
	var msg model.Message
	err := r.db.WithContext(ctx).
		Preload("Attachments").
		Where("id = ?", id).
		First(&msg).Error
	if err != nil {
		return nil, err
	}
	return &msg, nil
}

// ListByRoom retrieves a page of a room's messages, newest first. Deleted
// messages are excluded; Seq breaks equal timestamps.
func (r *MessageRepository) ListByRoom(ctx context.Context, roomID uuid.UUID, page, pageSize int) ([]*model.Message, int64, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 50
	}

	base := r.db.WithContext(ctx).
		Model(&model.Message{}).
		Where("room_id = ? AND state <> ?", roomID, model.MessageDeleted)

	var total int64
	if err := base.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var msgs []*model.Message
	err := r.db.WithContext(ctx).
		Preload("Attachments").
		Where("room_id = ? AND state <> ?", roomID, model.MessageDeleted).
		Order("created_at DESC, seq DESC").
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&msgs).Error
	if err != nil {
		return nil, 0, err
	}
	return msgs, total, nil
}

// ListUnreadByRoom returns the IDs of messages in a room the user has not
// receipted yet, bounded below by the membership's last read marker.
func (r *MessageRepository) ListUnreadByRoom(ctx context.Context, roomID, userID uuid.UUID, since *time.Time) ([]uuid.UUID, error) {
	q := r.db.WithContext(ctx).
		Model(&model.Message{}).
		Where("room_id = ? AND state <> ?", roomID, model.MessageDeleted).
		Where("id NOT IN (?)", r.db.Model(&model.ReadReceipt{}).Select("message_id").Where("user_id = ?", userID))
	if since != nil {
		q = q.Where("created_at > ?", *since)
	}

	var ids []uuid.UUID
	if err := q.Pluck("id", &ids).Error; err != nil {
		return nil, err
	}
	return ids, nil
}

// MarkEdited replaces a message's content and tags it edited
func (r *MessageRepository) MarkEdited(ctx context.Context, id uuid.UUID, content string, at time.Time) error {
	return r.db.WithContext(ctx).
		Model(&model.Message{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"content":   content,
			"state":     model.MessageEdited,
			"edited_at": at,
		}).Error
}

// MarkDeleted tags a message deleted; the row stays for reply anchors
func (r *MessageRepository) MarkDeleted(ctx context.Context, id uuid.UUID, at time.Time) error {
	return r.db.WithContext(ctx).
		Model(&model.Message{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"state":      model.MessageDeleted,
			"deleted_at": at,
		}).Error
}

// SetReaction records a user's emoji on a message. A second reaction from the
// same user replaces the first instead of accumulating.
func (r *MessageRepository) SetReaction(ctx context.Context, messageID, userID uuid.UUID, emoji string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing model.Reaction
		err := tx.Where("message_id = ? AND user_id = ?", messageID, userID).First(&existing).Error
		if err == nil {
			return tx.Model(&model.Reaction{}).
				Where("id = ?", existing.ID).
				Update("emoji", emoji).Error
		}
		if err != gorm.ErrRecordNotFound {
			return err
		}
		return tx.Create(&model.Reaction{
			ID:        uuid.New(),
			MessageID: messageID,
			UserID:    userID,
			Emoji:     emoji,
		}).Error
	})
}

// RemoveReaction clears a user's reaction from a message. A non-empty
// emoji removes only a matching reaction, so deleting a stale emoji is
// a no-op.
func (r *MessageRepository) RemoveReaction(ctx context.Context, messageID, userID uuid.UUID, emoji string) error {
	q := r.db.WithContext(ctx).
		Where("message_id = ? AND user_id = ?", messageID, userID)
	if emoji != "" {
		q = q.Where("emoji = ?", emoji)
	}
	return q.Delete(&model.Reaction{}).Error
}

// ReactionSummary tallies a message's reactions per emoji
func (r *MessageRepository) ReactionSummary(ctx context.Context, messageID uuid.UUID) ([]*ReactionCount, error) {
	var rows []*model.Reaction
	err := r.db.WithContext(ctx).
		Where("message_id = ?", messageID).
		Order("created_at ASC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}

	byEmoji := make(map[string]*ReactionCount)
	var order []string
	for _, row := range rows {
		rc, ok := byEmoji[row.Emoji]
		if !ok {
			rc = &ReactionCount{Emoji: row.Emoji}
			byEmoji[row.Emoji] = rc
			order = append(order, row.Emoji)
		}
		rc.Count++
		rc.Users = append(rc.Users, row.UserID)
	}

	out := make([]*ReactionCount, 0, len(order))
	for _, e := range order {
		out = append(out, byEmoji[e])
	}
	return out, nil
}

// CreateReceipts records read receipts for the given messages. Existing
// rows are left alone via ON CONFLICT, so concurrent or repeated marks
// of the same message never error.
func (r *MessageRepository) CreateReceipts(ctx context.Context, userID uuid.UUID, messageIDs []uuid.UUID) error {
	if len(messageIDs) == 0 {
		return nil
	}
	rows := make([]*model.ReadReceipt, 0, len(messageIDs))
	for _, id := range messageIDs {
		rows = append(rows, &model.ReadReceipt{
			ID:        uuid.New(),
			MessageID: id,
			UserID:    userID,
		})
	}
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "message_id"}, {Name: "user_id"}},
			DoNothing: true,
		}).
		Create(&rows).Error
}

// ListReceipts retrieves the read receipts of a message
func (r *MessageRepository) ListReceipts(ctx context.Context, messageID uuid.UUID) ([]*model.ReadReceipt, error) {
	var receipts []*model.ReadReceipt
	err := r.db.WithContext(ctx).
		Where("message_id = ?", messageID).
		Find(&receipts).Error
	if err != nil {
		return nil, err
	}
	return receipts, nil
}
