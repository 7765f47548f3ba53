// Package repo – Profile reads.
//
// Profiles are owned by the account system; this module only resolves a
// user id to its username for the redeem response.
package repo

import (
	"context"

	"gorm.io/gorm"

	"github.com/campfirehq/community-backend/internal/domain"
)

// GetProfile fetches a profile by user id, or ErrNotFound if missing.
func GetProfile(ctx context.Context, db *gorm.DB, userID string) (*domain.Profile, error) {
	var p domain.Profile
	err := db.WithContext(ctx).Where("id = ?", userID).First(&p).Error
	if err != nil {
		return nil, err
	}
	return &p, nil
}
