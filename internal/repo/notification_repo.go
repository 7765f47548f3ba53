// Package repo – Notification persistence.
//
// The notifications table is shared with producers outside this module, so
// no unique constraint on the deduplication token can be assumed; the
// idempotency contract lives at the application layer (see
// services.NotificationService) on top of the bounded recent-row scan
// provided here.
package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/campfirehq/community-backend/internal/domain"
)

// ListRecentNotifications returns the recipient's newest notifications,
// capped at limit. This is the dedup scan window, not an inbox query.
func ListRecentNotifications(ctx context.Context, db *gorm.DB, recipientID string, limit int) ([]domain.Notification, error) {
	var out []domain.Notification
	err := db.WithContext(ctx).
		Where("recipient_id = ?", recipientID).
		Order("created_at desc").
		Limit(limit).
		Find(&out).Error
	return out, err
}

// CreateNotification inserts a notification row with a generated UUID and
// UTC timestamp. Metadata is stored as given; callers that need dedup
// semantics must have merged the notification_id key in already.
func CreateNotification(ctx context.Context, db *gorm.DB, n *domain.Notification) (*domain.Notification, error) {
	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now().UTC()
	}
	if n.Type == "" {
		n.Type = domain.NotificationInfo
	}
	if err := db.WithContext(ctx).Create(n).Error; err != nil {
		return nil, err
	}
	return n, nil
}
