// Package services – CodeService
//
// This file implements the Code Registry: issuing one-time linking codes
// and the validate-and-consume primitive the orchestrator builds on.
// Codes are 8 uppercase hex characters from a cryptographically strong
// source, unique across the full history of issued codes (spent codes are
// kept for audit and their values never reused).
package services

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/campfirehq/community-backend/internal/domain"
	"github.com/campfirehq/community-backend/internal/repo"
)

const (
	// codeBytes is the entropy of a generated code: 4 random bytes,
	// hex-encoded to 8 characters.
	codeBytes = 4

	// maxGenerateAttempts bounds the collision-regenerate loop.
	maxGenerateAttempts = 10

	// DefaultCodeTTL is the validity window applied when the service is
	// constructed without an explicit TTL.
	DefaultCodeTTL = 15 * time.Minute
)

// readRand is a test seam over crypto/rand.Read so collision exhaustion
// can be exercised deterministically.
var readRand = rand.Read

// CodeService implements the use-cases around linking codes. It is
// context-aware and safe for concurrent use; the single-consumption
// guarantee is delegated to the storage layer's conditional update.
type CodeService struct {
	// DB is the database handle used for all code operations.
	DB *gorm.DB

	// TTL is the validity window for newly issued codes. Zero means
	// DefaultCodeTTL.
	TTL time.Duration

	// Now supplies the current time; nil means time.Now. Tests inject a
	// fixed clock to drive expiry scenarios.
	Now func() time.Time
}

func (s *CodeService) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

func (s *CodeService) ttl() time.Duration {
	if s.TTL > 0 {
		return s.TTL
	}
	return DefaultCodeTTL
}

// Issue returns the owner's linking code. If an active (unused, unexpired)
// code already exists it is returned unchanged, making repeated requests
// idempotent and avoiding code churn. Otherwise a fresh code is generated,
// checked for uniqueness against all stored codes, and persisted with
// expires_at = now + TTL.
//
// Errors:
//   - ErrCodeGenerationExhausted when maxGenerateAttempts candidates all
//     collided.
//   - The underlying DB error for unexpected failures.
func (s *CodeService) Issue(ctx context.Context, ownerID string) (*domain.LinkCode, error) {
	now := s.now()

	if existing, err := repo.ActiveLinkCode(ctx, s.DB, ownerID, now); err == nil {
		return existing, nil
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	for attempt := 0; attempt < maxGenerateAttempts; attempt++ {
		code, err := generateCode()
		if err != nil {
			return nil, err
		}
		exists, err := repo.LinkCodeExists(ctx, s.DB, code)
		if err != nil {
			return nil, err
		}
		if exists {
			continue
		}
		return repo.CreateLinkCode(ctx, s.DB, code, ownerID, now.Add(s.ttl()))
	}
	return nil, ErrCodeGenerationExhausted
}

// ValidateAndConsume resolves a submitted code to its owner and marks it
// used in the same call. The code value is normalized to uppercase before
// lookup. Consumption is a conditional update at the storage layer: of two
// concurrent redemptions exactly one wins, the other gets
// ErrCodeAlreadyUsed. This must be the first write of any redemption flow.
//
// Errors: ErrCodeNotFound, ErrCodeAlreadyUsed, ErrCodeExpired, or the raw
// DB error.
func (s *CodeService) ValidateAndConsume(ctx context.Context, code, chatAccountID string) (ownerID string, err error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	now := s.now()

	rec, err := repo.GetLinkCode(ctx, s.DB, code)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", ErrCodeNotFound
		}
		return "", err
	}
	if rec.Used {
		return "", ErrCodeAlreadyUsed
	}
	if !rec.ExpiresAt.After(now) {
		return "", ErrCodeExpired
	}

	if err := repo.ConsumeCode(ctx, s.DB, code, chatAccountID, now); err != nil {
		if errors.Is(err, repo.ErrCodeSpent) {
			// Lost the race: another caller consumed it between the read
			// and the update.
			return "", ErrCodeAlreadyUsed
		}
		return "", err
	}
	return rec.UserID, nil
}

// generateCode produces an 8-character uppercase hex code.
func generateCode() (string, error) {
	buf := make([]byte, codeBytes)
	if _, err := readRand(buf); err != nil {
		return "", err
	}
	return strings.ToUpper(hex.EncodeToString(buf)), nil
}
