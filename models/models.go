package models

import (
	"time"

	"gorm.io/gorm"
)

// AutoSign values. Anything other than "on"/"off" is treated as the ID of
// the channel that receives the account's batch summary.
const (
	AutoSignOn  = "on"
	AutoSignOff = "off"
)

// SignResultTopic is the subscription topic for batch run summaries.
const SignResultTopic = "sign-results"

// Binding links a Discord user to one Tajiduo credential set. A Tajiduo
// account may carry several game roles; each role is its own row sharing
// TaygedoUID. RoleID == TaygedoUID marks an account with no bound role yet.
type Binding struct {
	gorm.Model
	UserID       string `gorm:"index;uniqueIndex:idx_user_role,priority:1"` // Discord user ID
	RoleID       string `gorm:"uniqueIndex:idx_user_role,priority:2"`       // game role ID, or TaygedoUID when role-less
	ChannelID    string // channel the binding was created from
	GuildID      string // guild of that channel, empty in DMs
	RefreshToken string // rotated on every successful token refresh
	TaygedoUID   string `gorm:"index"` // Tajiduo account ID, shared across roles
	DeviceID     string // generated once at login, reused for every call
	RoleName     string
	GameID       string `gorm:"default:1256"`
	AutoSign     string `gorm:"default:off"`
}

// HasRole reports whether this binding carries an actual game role.
func (b Binding) HasRole() bool {
	return b.RoleID != "" && b.RoleID != b.TaygedoUID
}

// DisplayName is what result lines call this binding.
func (b Binding) DisplayName() string {
	if b.RoleName != "" {
		return b.RoleName
	}
	return b.TaygedoUID
}

// SignRecord is the per-day idempotency ledger. AppSign is keyed by the
// account's primary RoleID, GameSign by each role's own ID.
type SignRecord struct {
	gorm.Model
	UID      string `gorm:"uniqueIndex:idx_uid_date,priority:1"`
	Date     string `gorm:"uniqueIndex:idx_uid_date,priority:2"` // "2006-01-02"
	AppSign  int    `gorm:"default:0"`
	GameSign int    `gorm:"default:0"`
}

// FullySigned reports whether both the app and game sign-in succeeded.
func (r SignRecord) FullySigned() bool {
	return r.AppSign >= 1 && r.GameSign >= 1
}

// Subscription is one subscriber of a broadcast topic.
type Subscription struct {
	gorm.Model
	Topic     string `gorm:"index"`
	UserID    string
	ChannelID string
	Kind      string // "direct" or "group"
}

// Today returns the calendar day string the ledger is keyed by.
func Today() string {
	return time.Now().Format("2006-01-02")
}

// PurgeCutoff returns the newest date that the daily maintenance job
// removes: everything at least two days old.
func PurgeCutoff(now time.Time) string {
	return now.AddDate(0, 0, -2).Format("2006-01-02")
}
