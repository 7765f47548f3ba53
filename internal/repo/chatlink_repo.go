// Package repo – ChatLink persistence.
//
// Chat identities are keyed by the composite (chat_account_id, community_id)
// pair. The upsert path is called on every observed profile change and must
// stay commutative: concurrent calls from bot-startup sync and a live
// membership event converge to the same row regardless of interleaving.
//
// The user_id column (website owner) is deliberately absent from the upsert
// assignment list. Only SetLinkOwner writes it, and only the linking
// orchestrator calls SetLinkOwner.
package repo

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/campfirehq/community-backend/internal/domain"
)

// ChatProfile carries the display attributes observed for a chat identity.
type ChatProfile struct {
	Username      string
	Discriminator string
	AvatarURL     string
	JoinedAt      *time.Time
}

// UpsertChatLink creates or refreshes the row for (chatAccountID,
// communityID). Display attributes and updated_at are written
// unconditionally; user_id is never touched, so passive observation can
// never overwrite or clear a link.
func UpsertChatLink(ctx context.Context, db *gorm.DB, chatAccountID, communityID string, p ChatProfile) (*domain.ChatLink, error) {
	now := time.Now().UTC()
	row := &domain.ChatLink{
		ID:            uuid.NewString(),
		ChatAccountID: chatAccountID,
		CommunityID:   communityID,
		Username:      p.Username,
		Discriminator: p.Discriminator,
		AvatarURL:     p.AvatarURL,
		JoinedAt:      p.JoinedAt,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	err := db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "chat_account_id"}, {Name: "community_id"}},
			DoUpdates: clause.Assignments(map[string]any{
				"username":      p.Username,
				"discriminator": p.Discriminator,
				"avatar_url":    p.AvatarURL,
				"updated_at":    now,
			}),
		}).
		Create(row).Error
	if err != nil {
		return nil, err
	}
	// On conflict the insert's generated ID is discarded; reload so the
	// caller sees the persisted row.
	return GetChatLink(ctx, db, chatAccountID, communityID)
}

// GetChatLink fetches the identity row for (chatAccountID, communityID).
// Absence is not an error here: it returns (nil, nil) so callers can treat
// "never seen" and "seen but unlinked" uniformly.
func GetChatLink(ctx context.Context, db *gorm.DB, chatAccountID, communityID string) (*domain.ChatLink, error) {
	var l domain.ChatLink
	err := db.WithContext(ctx).
		Where("chat_account_id = ? AND community_id = ?", chatAccountID, communityID).
		First(&l).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &l, nil
}

// ListChatLinksByOwner returns every chat identity linked to a website
// account, newest first. Used by the status endpoint.
func ListChatLinksByOwner(ctx context.Context, db *gorm.DB, userID string) ([]domain.ChatLink, error) {
	var out []domain.ChatLink
	err := db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("updated_at desc").
		Find(&out).Error
	return out, err
}

// SetLinkOwner overwrites the website owner of an identity row. The
// conflict check happens before this call, in the orchestrator; this
// function is the single writer of user_id. Returns ErrNotFound if the
// identity row does not exist (the orchestrator upserts it first).
func SetLinkOwner(ctx context.Context, db *gorm.DB, chatAccountID, communityID, userID string) error {
	res := db.WithContext(ctx).
		Model(&domain.ChatLink{}).
		Where("chat_account_id = ? AND community_id = ?", chatAccountID, communityID).
		Updates(map[string]any{
			"user_id":    userID,
			"updated_at": time.Now().UTC(),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
