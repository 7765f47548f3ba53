// Package services – NotificationService
//
// This file implements the idempotent notification emitter: at-most-once
// user-facing notifications keyed by a caller-supplied deduplication token.
// The token lives inside the metadata column because the notifications
// table is shared with unrelated producers and carries no unique constraint
// for it; dedup is a bounded scan of the recipient's recent rows.
//
// The dedup is best-effort, not linearizable: two producers racing on the
// same (recipient, token) within the scan window can both miss each other's
// uncommitted insert and both write. That duplicate is rare and cosmetic;
// callers must not use this path for correctness-critical dedup.
package services

import (
	"context"

	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/campfirehq/community-backend/internal/domain"
	"github.com/campfirehq/community-backend/internal/repo"
)

// DefaultNotifyScanLimit bounds the recent-row dedup scan when the service
// is constructed without an explicit window.
const DefaultNotifyScanLimit = 100

// NotifyOptions carries the optional attributes of a notification.
type NotifyOptions struct {
	ActionURL string
	Metadata  map[string]any
}

// NotificationService creates at-most-once notifications.
type NotificationService struct {
	// DB is the database handle used for all notification operations.
	DB *gorm.DB

	// ScanLimit is the dedup window: how many of the recipient's newest
	// rows are checked for a matching token before inserting. Zero means
	// DefaultNotifyScanLimit. A token older than the window can reappear;
	// that trade is deliberate (no dedicated index or constraint).
	ScanLimit int
}

func (s *NotificationService) scanLimit() int {
	if s.ScanLimit > 0 {
		return s.ScanLimit
	}
	return DefaultNotifyScanLimit
}

// NotifyOnce creates a notification for recipientID unless one with the
// same notificationID already exists in the recent window, in which case
// the existing row is returned unchanged.
//
// An empty notificationID is a programmer contract violation, not a
// user-facing error: it is logged and (nil, nil) is returned so callers on
// the best-effort path never fail because of it.
func (s *NotificationService) NotifyOnce(ctx context.Context, recipientID, notificationID, title, message, typ string, opts NotifyOptions) (*domain.Notification, error) {
	if notificationID == "" {
		log.Warn().
			Str("recipient_id", recipientID).
			Str("title", title).
			Msg("notifyOnce called without a notification id; dropping")
		return nil, nil
	}

	recent, err := repo.ListRecentNotifications(ctx, s.DB, recipientID, s.scanLimit())
	if err != nil {
		return nil, err
	}
	for i := range recent {
		if recent[i].NotificationID() == notificationID {
			return &recent[i], nil
		}
	}

	meta := domain.JSONMap{domain.MetadataKeyNotificationID: notificationID}
	for k, v := range opts.Metadata {
		if k == domain.MetadataKeyNotificationID {
			continue
		}
		meta[k] = v
	}

	return repo.CreateNotification(ctx, s.DB, &domain.Notification{
		RecipientID: recipientID,
		Type:        typ,
		Title:       title,
		Message:     message,
		ActionURL:   opts.ActionURL,
		Metadata:    meta,
	})
}
