// Package domain defines the persistence models for account linking,
// chat-identity sync, and user notifications. These types are mapped with
// GORM and form the core data layer of the community backend.
package domain

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"time"
)

// Notification type values. The set is open-ended by design: the
// notification table is shared with producers outside this module.
const (
	NotificationInfo    = "info"
	NotificationSuccess = "success"
	NotificationWarning = "warning"
	NotificationError   = "error"
)

// MetadataKeyNotificationID is the metadata key carrying the caller-supplied
// deduplication token. At most one notification per (recipient, token) pair
// may ever exist; see services.NotificationService.
const MetadataKeyNotificationID = "notification_id"

// LinkCode is a short-lived, single-use token proving that a website-account
// holder authorized a chat account to associate with it.
//
// Invariants:
//   - At most one active (unused, unexpired) code per owner; the registry
//     returns the existing active code instead of minting a duplicate.
//   - Codes transition unused -> used exactly once and are never deleted,
//     so the audit trail stays unambiguous and values are never reused.
type LinkCode struct {
	Code             string     `json:"code"        gorm:"type:char(8);primaryKey"`
	UserID           string     `json:"user_id"     gorm:"type:varchar(64);not null;index:idx_owner_codes"`
	Used             bool       `json:"used"        gorm:"not null;default:false"`
	UsedAt           *time.Time `json:"used_at,omitempty"`
	ConsumedByChatID *string    `json:"consumed_by_chat_id,omitempty" gorm:"type:varchar(64)"`
	CreatedAt        time.Time  `json:"created_at"`
	ExpiresAt        time.Time  `json:"expires_at"  gorm:"not null;index"`
}

// TableName returns the database table name for LinkCode.
func (LinkCode) TableName() string { return "link_codes" }

// Active reports whether the code is still redeemable at the given instant.
func (c LinkCode) Active(now time.Time) bool {
	return !c.Used && c.ExpiresAt.After(now)
}

// ChatLink is one chat identity, a (chat account, community) pair, and its
// optional association with a website account.
//
// UserID is nullable and owned exclusively by the linking orchestrator; the
// passive identity-sync path (bot presence sync, membership events) updates
// display attributes only and must never set or clear it.
type ChatLink struct {
	ID            string     `json:"id"              gorm:"type:char(36);primaryKey"`
	ChatAccountID string     `json:"chat_account_id" gorm:"type:varchar(64);not null;uniqueIndex:ux_chat_community,priority:1"`
	CommunityID   string     `json:"community_id"    gorm:"type:varchar(64);not null;uniqueIndex:ux_chat_community,priority:2"`
	UserID        *string    `json:"user_id,omitempty" gorm:"type:varchar(64);index"`
	Username      string     `json:"username"        gorm:"type:varchar(128)"`
	Discriminator string     `json:"discriminator"   gorm:"type:varchar(16)"`
	AvatarURL     string     `json:"avatar_url"      gorm:"type:varchar(512)"`
	JoinedAt      *time.Time `json:"joined_at,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

// TableName returns the database table name for ChatLink.
func (ChatLink) TableName() string { return "chat_links" }

// Linked reports whether the chat identity is associated with a website
// account.
func (l ChatLink) Linked() bool { return l.UserID != nil && *l.UserID != "" }

// Notification is an in-app notification for a website user. Rows are
// written by several producers (linking, content review, ...) and read by
// the notification inbox; this module only ever inserts.
type Notification struct {
	ID          string    `json:"id"           gorm:"type:char(36);primaryKey"`
	RecipientID string    `json:"recipient_id" gorm:"type:varchar(64);not null;index:idx_recipient_created,priority:1"`
	Type        string    `json:"type"         gorm:"type:varchar(16);not null;default:'info'"`
	Title       string    `json:"title"        gorm:"type:varchar(255);not null"`
	Message     string    `json:"message"      gorm:"type:text;not null"`
	ActionURL   string    `json:"action_url,omitempty" gorm:"type:varchar(512)"`
	Metadata    JSONMap   `json:"metadata,omitempty"   gorm:"type:text"`
	Read        bool      `json:"read"         gorm:"not null;default:false"`
	CreatedAt   time.Time `json:"created_at"   gorm:"index:idx_recipient_created,priority:2,sort:desc"`
}

// TableName returns the database table name for Notification.
func (Notification) TableName() string { return "notifications" }

// NotificationID returns the deduplication token stored in the metadata,
// or "" when the row was created without one.
func (n Notification) NotificationID() string {
	if n.Metadata == nil {
		return ""
	}
	s, _ := n.Metadata[MetadataKeyNotificationID].(string)
	return s
}

// Profile is the website user profile. It is owned by the account system;
// this module reads it only to echo the username back to the bot.
type Profile struct {
	ID        string    `json:"id"       gorm:"type:varchar(64);primaryKey"`
	Username  string    `json:"username" gorm:"type:varchar(128);not null"`
	CreatedAt time.Time `json:"created_at"`
}

// TableName returns the database table name for Profile.
func (Profile) TableName() string { return "profiles" }

// JSONMap stores an opaque string-keyed map as a JSON text column.
type JSONMap map[string]any

// Value implements driver.Valuer.
func (m JSONMap) Value() (driver.Value, error) {
	if m == nil {
		return nil, nil
	}
	b, err := json.Marshal(m)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan implements sql.Scanner.
func (m *JSONMap) Scan(src any) error {
	if src == nil {
		*m = nil
		return nil
	}
	var b []byte
	switch v := src.(type) {
	case []byte:
		b = v
	case string:
		b = []byte(v)
	default:
		return errors.New("jsonmap: unsupported source type")
	}
	if len(b) == 0 {
		*m = nil
		return nil
	}
	return json.Unmarshal(b, m)
}
