package repo

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite" // pure-Go SQLite
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/campfirehq/community-backend/internal/domain"
)

func newRepoDB(t *testing.T, migrate ...any) *gorm.DB {
	t.Helper()

	dsn := filepath.Join(t.TempDir(), fmt.Sprintf("linkcode_repo_test_%d.db", time.Now().UnixNano()))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}

	// Ensure the file handle is released before TempDir cleanup (Windows needs this).
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})

	if len(migrate) > 0 {
		if err := db.AutoMigrate(migrate...); err != nil {
			t.Fatalf("automigrate: %v", err)
		}
	}
	return db
}

func TestCreateLinkCode_Error_NoTable(t *testing.T) {
	db := newRepoDB(t /* no migrations */)
	code, err := CreateLinkCode(context.Background(), db, "AB12CD34", "u1", time.Now().Add(time.Minute))
	if err == nil || code != nil {
		t.Fatalf("expected error creating without table, got code=%v err=%v", code, err)
	}
}

func TestCreateAndGetLinkCode_Roundtrip(t *testing.T) {
	db := newRepoDB(t, &domain.LinkCode{})
	ctx := context.Background()
	exp := time.Now().UTC().Add(15 * time.Minute)

	created, err := CreateLinkCode(ctx, db, "AB12CD34", "u1", exp)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if created.Used || created.UsedAt != nil || created.ConsumedByChatID != nil {
		t.Fatalf("fresh code must be unconsumed: %+v", created)
	}

	got, err := GetLinkCode(ctx, db, "AB12CD34")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.UserID != "u1" {
		t.Fatalf("readback mismatch: %+v", got)
	}
	if d := got.ExpiresAt.Sub(created.ExpiresAt); d < -time.Second || d > time.Second {
		t.Fatalf("expiry not preserved: stored=%v read=%v", created.ExpiresAt, got.ExpiresAt)
	}

	if _, err := GetLinkCode(ctx, db, "FFFFFFFF"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestActiveLinkCode_FiltersUsedAndExpired(t *testing.T) {
	db := newRepoDB(t, &domain.LinkCode{})
	ctx := context.Background()
	now := time.Now().UTC()

	seed := []domain.LinkCode{
		{Code: "AAAA0001", UserID: "u1", Used: true, CreatedAt: now.Add(-3 * time.Minute), ExpiresAt: now.Add(10 * time.Minute)},
		{Code: "AAAA0002", UserID: "u1", CreatedAt: now.Add(-2 * time.Minute), ExpiresAt: now.Add(-time.Second)},
		{Code: "AAAA0003", UserID: "u2", CreatedAt: now.Add(-time.Minute), ExpiresAt: now.Add(10 * time.Minute)},
	}
	for i := range seed {
		if err := db.Create(&seed[i]).Error; err != nil {
			t.Fatalf("seed: %v", err)
		}
	}

	// u1 holds only a used and an expired code; neither counts.
	if _, err := ActiveLinkCode(ctx, db, "u1", now); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for u1, got %v", err)
	}

	got, err := ActiveLinkCode(ctx, db, "u2", now)
	if err != nil {
		t.Fatalf("active for u2: %v", err)
	}
	if got.Code != "AAAA0003" {
		t.Fatalf("expected AAAA0003, got %q", got.Code)
	}
}

func TestLinkCodeExists_CountsSpentCodes(t *testing.T) {
	db := newRepoDB(t, &domain.LinkCode{})
	ctx := context.Background()
	now := time.Now().UTC()

	if err := db.Create(&domain.LinkCode{Code: "AB12CD34", UserID: "u1", Used: true, ExpiresAt: now}).Error; err != nil {
		t.Fatalf("seed: %v", err)
	}

	exists, err := LinkCodeExists(ctx, db, "AB12CD34")
	if err != nil || !exists {
		t.Fatalf("spent codes still occupy their value: exists=%v err=%v", exists, err)
	}
	exists, err = LinkCodeExists(ctx, db, "FFFFFFFF")
	if err != nil || exists {
		t.Fatalf("unexpected: exists=%v err=%v", exists, err)
	}
}

func TestConsumeCode_RecordsAuditTrail(t *testing.T) {
	db := newRepoDB(t, &domain.LinkCode{})
	ctx := context.Background()
	now := time.Now().UTC()

	if _, err := CreateLinkCode(ctx, db, "AB12CD34", "u1", now.Add(15*time.Minute)); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := ConsumeCode(ctx, db, "AB12CD34", "5555", now); err != nil {
		t.Fatalf("consume: %v", err)
	}

	got, err := GetLinkCode(ctx, db, "AB12CD34")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !got.Used || got.UsedAt == nil || got.ConsumedByChatID == nil || *got.ConsumedByChatID != "5555" {
		t.Fatalf("audit fields not written: %+v", got)
	}

	// Second consume matches no row.
	if err := ConsumeCode(ctx, db, "AB12CD34", "6666", now); !errors.Is(err, ErrCodeSpent) {
		t.Fatalf("expected ErrCodeSpent, got %v", err)
	}
	// And must not overwrite the original consumer.
	got, _ = GetLinkCode(ctx, db, "AB12CD34")
	if *got.ConsumedByChatID != "5555" {
		t.Fatalf("losing consume overwrote audit trail: %+v", got)
	}
}

func TestConsumeCode_MissingCode(t *testing.T) {
	db := newRepoDB(t, &domain.LinkCode{})
	if err := ConsumeCode(context.Background(), db, "FFFFFFFF", "5555", time.Now()); !errors.Is(err, ErrCodeSpent) {
		t.Fatalf("expected ErrCodeSpent for unknown code, got %v", err)
	}
}

// TestConsumeCode_ConcurrentRedemptions races two consumers for the same
// code. Exactly one must observe an affected row; the conditional UPDATE is
// the only thing standing between "one link" and "two".
func TestConsumeCode_ConcurrentRedemptions(t *testing.T) {
	db, err := OpenSQLite(filepath.Join(t.TempDir(), "race.db"), false)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	if err := db.AutoMigrate(&domain.LinkCode{}); err != nil {
		t.Fatalf("automigrate: %v", err)
	}

	ctx := context.Background()
	now := time.Now().UTC()
	if _, err := CreateLinkCode(ctx, db, "AB12CD34", "u1", now.Add(15*time.Minute)); err != nil {
		t.Fatalf("create: %v", err)
	}

	const contenders = 8
	var (
		start = make(chan struct{})
		wg    sync.WaitGroup
		mu    sync.Mutex
		wins  []string
	)
	for i := 0; i < contenders; i++ {
		chatID := fmt.Sprintf("chat-%d", i)
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			if err := ConsumeCode(ctx, db, "AB12CD34", chatID, time.Now().UTC()); err == nil {
				mu.Lock()
				wins = append(wins, chatID)
				mu.Unlock()
			} else if !errors.Is(err, ErrCodeSpent) {
				t.Errorf("consumer %s: unexpected error %v", chatID, err)
			}
		}()
	}
	close(start)
	wg.Wait()

	if len(wins) != 1 {
		t.Fatalf("expected exactly one winning consumer, got %d (%v)", len(wins), wins)
	}
	got, err := GetLinkCode(ctx, db, "AB12CD34")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.ConsumedByChatID == nil || *got.ConsumedByChatID != wins[0] {
		t.Fatalf("audit trail disagrees with winner: winner=%s row=%+v", wins[0], got)
	}
}
