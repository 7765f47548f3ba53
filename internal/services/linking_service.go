// Package services – LinkingService
//
// This file implements the linking orchestrator: the protocol coordinator
// that turns a submitted code plus a chat identity into a committed link.
// The redemption runs as a short state machine
//
//	received -> code validated -> conflict checked -> linked -> notified
//
// with a short-circuit failure at any step. The consumed code is the sole
// gate and the first write: a failed validation leaves the system
// untouched, and a dependency failure after consumption leaves "code
// consumed, link not written" as a reachable and tolerated state. The
// orchestrator never retries internally; once consumed, a code cannot be
// retried and the user must request a fresh one.
//
// The success notification is best-effort: its failure is logged and never
// rolls back the link. The link is the durable fact, the notice a
// courtesy.
package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/campfirehq/community-backend/internal/domain"
	"github.com/campfirehq/community-backend/internal/repo"
)

// RedeemInput is the full set of attributes a redemption needs. Code,
// ChatAccountID, Username, and CommunityID are required; the rest are
// stored as observed.
type RedeemInput struct {
	Code          string
	ChatAccountID string
	Username      string
	Discriminator string
	AvatarURL     string
	CommunityID   string
}

// LinkResult is what a successful redemption returns to the caller.
type LinkResult struct {
	UserID        string `json:"user_id"`
	Username      string `json:"username"`
	ChatAccountID string `json:"chat_account_id"`
}

// LinkStatus reports whether the owner currently holds an active code and
// which chat identities are linked to the account.
type LinkStatus struct {
	ActiveCode bool              `json:"active_code"`
	ExpiresAt  *time.Time        `json:"expires_at,omitempty"`
	Linked     bool              `json:"linked"`
	Links      []domain.ChatLink `json:"links"`
}

// LinkingService coordinates the code registry, the identity store, and
// the notification emitter into one logical unit of work.
type LinkingService struct {
	DB       *gorm.DB
	Codes    *CodeService
	Identity *IdentityService
	Notify   *NotificationService
}

// Redeem validates and consumes the code, checks for an ownership
// conflict, commits the link, and emits the success notification.
//
// Errors surfaced to callers: ErrMissingField, ErrCodeNotFound,
// ErrCodeAlreadyUsed, ErrCodeExpired, ErrAccountAlreadyLinked, or a raw
// dependency error. Every value is distinguishable so the bot can render
// an actionable message.
func (s *LinkingService) Redeem(ctx context.Context, in RedeemInput) (*LinkResult, error) {
	if strings.TrimSpace(in.Code) == "" ||
		strings.TrimSpace(in.ChatAccountID) == "" ||
		strings.TrimSpace(in.Username) == "" ||
		strings.TrimSpace(in.CommunityID) == "" {
		return nil, ErrMissingField
	}

	// 1) Consume the code. This is the mutual-exclusion point: a retried
	// or concurrent redemption of the same value fails here with
	// ErrCodeAlreadyUsed and causes no further writes.
	ownerID, err := s.Codes.ValidateAndConsume(ctx, in.Code, in.ChatAccountID)
	if err != nil {
		return nil, err
	}

	// 2) Conflict rule: an existing link owned by someone else blocks the
	// operation. Re-linking the same (identity, owner) pair is a no-op
	// re-link, not an error.
	existing, err := s.Identity.Get(ctx, in.ChatAccountID, in.CommunityID)
	if err != nil {
		return nil, err
	}
	if existing != nil && existing.Linked() && *existing.UserID != ownerID {
		return nil, ErrAccountAlreadyLinked
	}

	// 3) Commit: refresh display attributes, then write ownership.
	if _, err := s.Identity.Upsert(ctx, in.ChatAccountID, in.CommunityID, repo.ChatProfile{
		Username:      in.Username,
		Discriminator: in.Discriminator,
		AvatarURL:     in.AvatarURL,
	}); err != nil {
		return nil, err
	}
	if err := s.Identity.SetOwner(ctx, in.ChatAccountID, in.CommunityID, ownerID); err != nil {
		return nil, err
	}

	// 4) Best-effort success notification, deduplicated per chat account.
	if _, err := s.Notify.NotifyOnce(ctx,
		ownerID,
		"account_linked_"+in.ChatAccountID,
		"Chat account linked",
		"Your chat account @"+in.Username+" is now linked to your profile.",
		domain.NotificationSuccess,
		NotifyOptions{Metadata: map[string]any{
			"chat_account_id": in.ChatAccountID,
			"community_id":    in.CommunityID,
		}},
	); err != nil {
		log.Error().Err(err).
			Str("user_id", ownerID).
			Str("chat_account_id", in.ChatAccountID).
			Msg("link succeeded but notification failed")
	}

	result := &LinkResult{UserID: ownerID, Username: in.Username, ChatAccountID: in.ChatAccountID}
	if p, err := repo.GetProfile(ctx, s.DB, ownerID); err == nil {
		result.Username = p.Username
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}
	return result, nil
}

// Status reports the owner's linking state for the website dashboard: an
// active code (with its expiry) and the linked chat identities.
func (s *LinkingService) Status(ctx context.Context, ownerID string) (*LinkStatus, error) {
	st := &LinkStatus{Links: []domain.ChatLink{}}

	code, err := repo.ActiveLinkCode(ctx, s.DB, ownerID, s.Codes.now())
	if err == nil {
		st.ActiveCode = true
		st.ExpiresAt = &code.ExpiresAt
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	links, err := s.Identity.ListByOwner(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	st.Links = links
	st.Linked = len(links) > 0
	return st, nil
}
