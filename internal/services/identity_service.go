// Package services – IdentityService
//
// This file implements the Identity Sync Store: idempotent upserts of
// chat-identity attributes keyed by (chat account, community), lookups,
// and the owner write used exclusively by the linking orchestrator.
//
// The upsert is called from the bot on every observed profile change
// (startup sync, membership events, live messages) including for unlinked
// accounts; it never fails due to an existing link and never touches the
// website owner column.
package services

import (
	"context"

	"gorm.io/gorm"

	"github.com/campfirehq/community-backend/internal/domain"
	"github.com/campfirehq/community-backend/internal/repo"
)

// IdentityService implements the chat-identity sync use-cases.
type IdentityService struct {
	// DB is the database handle used for all identity operations.
	DB *gorm.DB
}

// Upsert creates or refreshes the identity row for (chatAccountID,
// communityID) with the observed display attributes. Commutative and
// idempotent; safe for concurrent callers.
func (s *IdentityService) Upsert(ctx context.Context, chatAccountID, communityID string, p repo.ChatProfile) (*domain.ChatLink, error) {
	return repo.UpsertChatLink(ctx, s.DB, chatAccountID, communityID, p)
}

// Get returns the identity row, or (nil, nil) when the pair has never been
// observed.
func (s *IdentityService) Get(ctx context.Context, chatAccountID, communityID string) (*domain.ChatLink, error) {
	return repo.GetChatLink(ctx, s.DB, chatAccountID, communityID)
}

// ListByOwner returns all chat identities linked to a website account.
func (s *IdentityService) ListByOwner(ctx context.Context, userID string) ([]domain.ChatLink, error) {
	return repo.ListChatLinksByOwner(ctx, s.DB, userID)
}

// SetOwner overwrites the website owner of an identity row. Called only by
// the linking orchestrator, after its conflict check.
func (s *IdentityService) SetOwner(ctx context.Context, chatAccountID, communityID, userID string) error {
	return repo.SetLinkOwner(ctx, s.DB, chatAccountID, communityID, userID)
}
