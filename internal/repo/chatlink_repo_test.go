package repo

import (
	"context"
	"errors"
	"testing"
	"time"

	"gorm.io/gorm"

	"github.com/campfirehq/community-backend/internal/domain"
)

func TestUpsertChatLink_InsertThenRefresh(t *testing.T) {
	db := newRepoDB(t, &domain.ChatLink{})
	ctx := context.Background()

	joined := time.Now().UTC().Add(-24 * time.Hour)
	first, err := UpsertChatLink(ctx, db, "5555", "g1", ChatProfile{Username: "wanderer", JoinedAt: &joined})
	if err != nil {
		t.Fatalf("insert: %v", err)
	}
	if first.ID == "" || first.Username != "wanderer" {
		t.Fatalf("unexpected row: %+v", first)
	}

	second, err := UpsertChatLink(ctx, db, "5555", "g1", ChatProfile{Username: "renamed", AvatarURL: "https://cdn/x.png"})
	if err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if second.ID != first.ID {
		t.Fatalf("refresh must update in place, got new id %q vs %q", second.ID, first.ID)
	}
	if second.Username != "renamed" || second.AvatarURL != "https://cdn/x.png" {
		t.Fatalf("attributes not refreshed: %+v", second)
	}

	var count int64
	db.Model(&domain.ChatLink{}).Count(&count)
	if count != 1 {
		t.Fatalf("expected 1 row, got %d", count)
	}
}

func TestUpsertChatLink_NeverTouchesOwner(t *testing.T) {
	db := newRepoDB(t, &domain.ChatLink{})
	ctx := context.Background()

	if _, err := UpsertChatLink(ctx, db, "5555", "g1", ChatProfile{Username: "w"}); err != nil {
		t.Fatalf("insert: %v", err)
	}
	if err := SetLinkOwner(ctx, db, "5555", "g1", "U1"); err != nil {
		t.Fatalf("set owner: %v", err)
	}

	got, err := UpsertChatLink(ctx, db, "5555", "g1", ChatProfile{Username: "renamed"})
	if err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if got.UserID == nil || *got.UserID != "U1" {
		t.Fatalf("passive refresh cleared the owner: %+v", got)
	}
}

func TestUpsertChatLink_SameAccountAcrossCommunities(t *testing.T) {
	db := newRepoDB(t, &domain.ChatLink{})
	ctx := context.Background()

	if _, err := UpsertChatLink(ctx, db, "5555", "g1", ChatProfile{Username: "w"}); err != nil {
		t.Fatalf("g1: %v", err)
	}
	if _, err := UpsertChatLink(ctx, db, "5555", "g2", ChatProfile{Username: "w"}); err != nil {
		t.Fatalf("g2: %v", err)
	}

	var count int64
	db.Model(&domain.ChatLink{}).Where("chat_account_id = ?", "5555").Count(&count)
	if count != 2 {
		t.Fatalf("identity is per community; expected 2 rows, got %d", count)
	}
}

func TestGetChatLink_AbsentIsNotAnError(t *testing.T) {
	db := newRepoDB(t, &domain.ChatLink{})
	got, err := GetChatLink(context.Background(), db, "5555", "g1")
	if err != nil || got != nil {
		t.Fatalf("expected (nil, nil), got %v %v", got, err)
	}
}

func TestSetLinkOwner_MissingRow(t *testing.T) {
	db := newRepoDB(t, &domain.ChatLink{})
	err := SetLinkOwner(context.Background(), db, "5555", "g1", "U1")
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		t.Fatalf("expected ErrRecordNotFound, got %v", err)
	}
}

func TestListChatLinksByOwner_NewestFirst(t *testing.T) {
	db := newRepoDB(t, &domain.ChatLink{})
	ctx := context.Background()

	for _, id := range []string{"1111", "2222"} {
		if _, err := UpsertChatLink(ctx, db, id, "g1", ChatProfile{Username: "u" + id}); err != nil {
			t.Fatalf("upsert %s: %v", id, err)
		}
		if err := SetLinkOwner(ctx, db, id, "g1", "U1"); err != nil {
			t.Fatalf("own %s: %v", id, err)
		}
	}

	links, err := ListChatLinksByOwner(ctx, db, "U1")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(links) != 2 {
		t.Fatalf("expected 2 links, got %d", len(links))
	}
	if links[0].UpdatedAt.Before(links[1].UpdatedAt) {
		t.Fatalf("expected newest first ordering")
	}

	links, err = ListChatLinksByOwner(ctx, db, "nobody")
	if err != nil || len(links) != 0 {
		t.Fatalf("expected empty list, got %v %v", links, err)
	}
}
