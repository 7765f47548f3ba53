package services

import (
	"context"
	"testing"

	"github.com/campfirehq/community-backend/internal/repo"
)

func TestIdentity_Upsert_CreatesAndRefreshes(t *testing.T) {
	db := newTestDB(t)
	svc := &IdentityService{DB: db}
	ctx := context.Background()

	first, err := svc.Upsert(ctx, "5555", "g1", repo.ChatProfile{Username: "old_name"})
	if err != nil {
		t.Fatalf("first upsert: %v", err)
	}
	if first.Username != "old_name" {
		t.Fatalf("expected username stored, got %q", first.Username)
	}

	second, err := svc.Upsert(ctx, "5555", "g1", repo.ChatProfile{Username: "new_name", AvatarURL: "https://cdn/a.png"})
	if err != nil {
		t.Fatalf("second upsert: %v", err)
	}
	if second.ID != first.ID {
		t.Fatalf("upsert must update in place, got new row id")
	}
	if second.Username != "new_name" || second.AvatarURL != "https://cdn/a.png" {
		t.Fatalf("attributes not refreshed: %+v", second)
	}
}

func TestIdentity_Upsert_NeverTouchesOwner(t *testing.T) {
	db := newTestDB(t)
	svc := &IdentityService{DB: db}
	ctx := context.Background()

	if _, err := svc.Upsert(ctx, "5555", "g1", repo.ChatProfile{Username: "n"}); err != nil {
		t.Fatalf("seed upsert: %v", err)
	}
	if err := svc.SetOwner(ctx, "5555", "g1", "ownerA"); err != nil {
		t.Fatalf("set owner: %v", err)
	}

	// Passive observation after linking must not clear the owner.
	got, err := svc.Upsert(ctx, "5555", "g1", repo.ChatProfile{Username: "renamed"})
	if err != nil {
		t.Fatalf("post-link upsert: %v", err)
	}
	if !got.Linked() || *got.UserID != "ownerA" {
		t.Fatalf("upsert touched ownership: %+v", got)
	}
	if got.Username != "renamed" {
		t.Fatalf("display attrs should still refresh: %+v", got)
	}
}

func TestIdentity_Get_MissingIsNil(t *testing.T) {
	db := newTestDB(t)
	svc := &IdentityService{DB: db}

	got, err := svc.Get(context.Background(), "never", "seen")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got != nil {
		t.Fatalf("expected nil for unknown identity, got %+v", got)
	}
}

func TestIdentity_SetOwner_MissingRow(t *testing.T) {
	db := newTestDB(t)
	svc := &IdentityService{DB: db}

	if err := svc.SetOwner(context.Background(), "none", "none", "u1"); err == nil {
		t.Fatalf("expected error when identity row missing")
	}
}

func TestIdentity_ListByOwner(t *testing.T) {
	db := newTestDB(t)
	svc := &IdentityService{DB: db}
	ctx := context.Background()

	for _, pair := range [][2]string{{"1", "g1"}, {"1", "g2"}, {"2", "g1"}} {
		if _, err := svc.Upsert(ctx, pair[0], pair[1], repo.ChatProfile{Username: "n" + pair[0]}); err != nil {
			t.Fatalf("seed: %v", err)
		}
	}
	if err := svc.SetOwner(ctx, "1", "g1", "owner"); err != nil {
		t.Fatalf("set owner: %v", err)
	}
	if err := svc.SetOwner(ctx, "1", "g2", "owner"); err != nil {
		t.Fatalf("set owner: %v", err)
	}

	links, err := svc.ListByOwner(ctx, "owner")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(links) != 2 {
		t.Fatalf("expected 2 links, got %d", len(links))
	}
}
