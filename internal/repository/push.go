package repository

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/armada-chat/armada/internal/model"
)

// IPushRepository defines the interface for push subscription data operations
type IPushRepository interface {
	Save(ctx context.Context, sub *model.PushSubscription) error
	DeleteByEndpoint(ctx context.Context, userID uuid.UUID, endpoint string) error
	ListByUser(ctx context.Context, userID uuid.UUID) ([]*model.PushSubscription, error)
	ListByUsers(ctx context.Context, userIDs []uuid.UUID) ([]*model.PushSubscription, error)
}

// PushRepository implements IPushRepository interface
type PushRepository struct {
	db *gorm.DB
}

// NewPushRepository creates a new IPushRepository instance
func NewPushRepository(db *gorm.DB) IPushRepository {
	return &PushRepository{db: db}
}

// Save stores a subscription, replacing an existing row for the same
// user and endpoint so re-registration never duplicates
func (r *PushRepository) Save(ctx context.Context, sub *model.PushSubscription) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing model.PushSubscription
		err := tx.Where("user_id = ? AND endpoint = ?", sub.UserID, sub.Endpoint).First(&existing).Error
		if err == nil {
			return nil
		}
		if err != gorm.ErrRecordNotFound {
			return err
		}
		return tx.Create(sub).Error
	})
}

// DeleteByEndpoint removes a user's subscription for one endpoint
func (r *PushRepository) DeleteByEndpoint(ctx context.Context, userID uuid.UUID, endpoint string) error {
	return r.db.WithContext(ctx).
		Where("user_id = ? AND endpoint = ?", userID, endpoint).
		Delete(&model.PushSubscription{}).Error
}

// ListByUser retrieves one user's subscriptions
func (r *PushRepository) ListByUser(ctx context.Context, userID uuid.UUID) ([]*model.PushSubscription, error) {
	var subs []*model.PushSubscription
	err := r.db.WithContext(ctx).Where("user_id = ?", userID).Find(&subs).Error
	if err != nil {
		return nil, err
	}
	return subs, nil
}

// ListByUsers retrieves subscriptions across a set of users
func (r *PushRepository) ListByUsers(ctx context.Context, userIDs []uuid.UUID) ([]*model.PushSubscription, error) {
	if len(userIDs) == 0 {
		return nil, nil
	}
	var subs []*model.PushSubscription
	err := r.db.WithContext(ctx).Where("user_id IN ?", userIDs).Find(&subs).Error
	if err != nil {
		return nil, err
	}
	return subs, nil
}
