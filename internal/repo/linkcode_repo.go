// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the LinkCode
// model.
//
// All functions are context-aware and accept a *gorm.DB handle, making them
// safe for use within transactions or connection-scoped operations.
// They follow the "thin repository" approach: no business logic, only CRUD
// persistence and query composition.
//
// Error semantics:
//   - When a code is not found, functions return gorm.ErrRecordNotFound
//     (also exported here as ErrNotFound for convenience).
//   - On DB errors (constraint violations, connectivity issues, etc.),
//     the raw gorm error is propagated.
//
// The one non-trivial function is ConsumeCode: the unused -> used
// transition is a single conditional UPDATE, so that of two concurrent
// redemptions of the same code exactly one observes an affected row. This
// is the mutual-exclusion point of the whole linking protocol; everything
// above it relies on the storage layer for that guarantee.
package repo

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/campfirehq/community-backend/internal/domain"
)

// ErrNotFound is returned when a requested record does not exist.
// It aliases gorm.ErrRecordNotFound for convenience and consistency
// across the service layer and handlers.
var ErrNotFound = gorm.ErrRecordNotFound

// CreateLinkCode inserts a new LinkCode row owned by userID. The caller is
// responsible for generating the code value and checking uniqueness first;
// the primary key constraint is the backstop.
func CreateLinkCode(ctx context.Context, db *gorm.DB, code, userID string, expiresAt time.Time) (*domain.LinkCode, error) {
	c := &domain.LinkCode{
		Code:      code,
		UserID:    userID,
		CreatedAt: time.Now().UTC(),
		ExpiresAt: expiresAt,
	}
	if err := db.WithContext(ctx).Create(c).Error; err != nil {
		return nil, err
	}
	return c, nil
}

// GetLinkCode fetches a code row by its value, used or not. Returns
// ErrNotFound if the value was never issued.
func GetLinkCode(ctx context.Context, db *gorm.DB, code string) (*domain.LinkCode, error) {
	var c domain.LinkCode
	err := db.WithContext(ctx).Where("code = ?", code).First(&c).Error
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// ActiveLinkCode returns the owner's current active (unused, unexpired)
// code, or ErrNotFound when none exists. Codes are never deleted so the
// query filters rather than assumes.
func ActiveLinkCode(ctx context.Context, db *gorm.DB, userID string, now time.Time) (*domain.LinkCode, error) {
	var c domain.LinkCode
	err := db.WithContext(ctx).
		Where("user_id = ? AND used = ? AND expires_at > ?", userID, false, now).
		Order("created_at desc").
		First(&c).Error
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// LinkCodeExists reports whether a code value has ever been issued,
// regardless of state. Used for collision checks during generation.
func LinkCodeExists(ctx context.Context, db *gorm.DB, code string) (bool, error) {
	var n int64
	err := db.WithContext(ctx).
		Model(&domain.LinkCode{}).
		Where("code = ?", code).
		Count(&n).Error
	return n > 0, err
}

// ConsumeCode atomically flips a code from unused to used, recording the
// consuming chat account. The WHERE clause includes used = false so the
// check and the set are a single statement; zero affected rows means some
// other caller won the race (or the code was already spent) and the caller
// must treat the code as used.
func ConsumeCode(ctx context.Context, db *gorm.DB, code, chatAccountID string, now time.Time) error {
	res := db.WithContext(ctx).
		Model(&domain.LinkCode{}).
		Where("code = ? AND used = ?", code, false).
		Updates(map[string]any{
			"used":                true,
			"used_at":             now,
			"consumed_by_chat_id": chatAccountID,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrCodeSpent
	}
	return nil
}

// ErrCodeSpent indicates the conditional consume update matched no row
// because the code was already used.
var ErrCodeSpent = errors.New("link code already consumed")
