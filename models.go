package accounts

import (
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// RoleKind identifies the kind of a user level record.
type RoleKind string

const (
	// RoleClient is a self-registered account (parking customers).
	RoleClient RoleKind = "client"
	// RoleStaff is an employee account created by an administrator.
	RoleStaff RoleKind = "staff"
	// RoleAdmin is an administrator account.
	RoleAdmin RoleKind = "admin"
)

// IsValid checks if the kind is one of the predefined role kinds.
func (r RoleKind) IsValid() bool {
	switch r {
	case RoleClient, RoleStaff, RoleAdmin:
		return true
	default:
		return false
	}
}

// ParseRoleKind safely parses a string into a RoleKind.
func ParseRoleKind(s string) (RoleKind, bool) {
	kind := RoleKind(s)
	return kind, kind.IsValid()
}

// ClientTier is the client-kind payload of a user level.
type ClientTier = string

const (
	TierBasic    ClientTier = "basic"
	TierStandard ClientTier = "standard"
	TierPremium  ClientTier = "premium"
)

// TokenKind identifies the purpose of a single-use action token.
type TokenKind string

const (
	TokenRegister                  TokenKind = "REGISTER"
	TokenResetPassword             TokenKind = "RESET_PASSWORD"
	TokenConfirmEmail              TokenKind = "CONFIRM_EMAIL"
	TokenChangeOverwrittenPassword TokenKind = "CHANGE_OVERWRITTEN_PASSWORD"
)

// ActivityLog tracks login attempt metadata for an account. It is embedded
// 1:1 in the account row and always present.
type ActivityLog struct {
	LastSuccessfulLoginAt *time.Time `bun:"last_successful_login_at,nullzero" json:"last_successful_login_at,omitempty"`
	LastSuccessfulLoginIP string     `bun:"last_successful_login_ip" json:"last_successful_login_ip,omitempty"`
	LastFailedLoginAt     *time.Time `bun:"last_failed_login_at,nullzero" json:"last_failed_login_at,omitempty"`
	LastFailedLoginIP     string     `bun:"last_failed_login_ip" json:"last_failed_login_ip,omitempty"`
	FailedLoginCount      int        `bun:"failed_login_count" json:"failed_login_count,omitempty"`
}

// Account is the identity and profile record.
type Account struct {
	bun.BaseModel `bun:"table:accounts,alias:acc"`
	ID            uuid.UUID    `bun:"id,pk,nullzero,type:uuid" json:"id,omitempty"`
	Login         string       `bun:"login,notnull,unique" json:"login,omitempty"`
	PasswordHash  string       `bun:"password_hash,notnull" json:"password_hash,omitempty"`
	FirstName     string       `bun:"first_name,notnull" json:"first_name,omitempty"`
	LastName      string       `bun:"last_name,notnull" json:"last_name,omitempty"`
	Email         string       `bun:"email,notnull,unique" json:"email,omitempty"`
	Phone         string       `bun:"phone_number" json:"phone_number,omitempty"`
	Language      string       `bun:"language" json:"language,omitempty"`
	Active        bool         `bun:"is_active" json:"is_active,omitempty"`
	Blocked       bool         `bun:"is_blocked" json:"is_blocked,omitempty"`
	BlockedTime   *time.Time   `bun:"blocked_time,nullzero" json:"blocked_time,omitempty"`
	Verified      bool         `bun:"is_email_verified" json:"is_email_verified,omitempty"`
	Activity      ActivityLog  `bun:"embed:activity_" json:"activity,omitempty"`
	Levels        []*UserLevel `bun:"rel:has-many,join:id=account_id" json:"levels,omitempty"`
	Version       int64        `bun:"version,notnull,default:0" json:"version,omitempty"`
	CreatedAt     *time.Time   `bun:"created_at,nullzero,default:current_timestamp" json:"created_at,omitempty"`
	UpdatedAt     *time.Time   `bun:"updated_at,nullzero,default:current_timestamp" json:"updated_at,omitempty"`
}

// AdminBlocked reports whether the account was blocked by an administrator.
// An administrative block never carries a BlockedTime; only blocks triggered
// by exceeding the failed-login threshold do.
func (a *Account) AdminBlocked() bool {
	return a.Blocked && a.BlockedTime == nil
}

// AutoBlocked reports whether the block was triggered by failed logins.
func (a *Account) AutoBlocked() bool {
	return a.Blocked && a.BlockedTime != nil
}

// HasLevel reports whether the account holds a role of the given kind.
func (a *Account) HasLevel(kind RoleKind) bool {
	return a.LevelOf(kind) != nil
}

// LevelOf returns the account's role record of the given kind, or nil.
func (a *Account) LevelOf(kind RoleKind) *UserLevel {
	for _, lvl := range a.Levels {
		if lvl != nil && lvl.Kind == kind {
			return lvl
		}
	}
	return nil
}

// RecordFailedLogin bumps the failure counter and failure metadata.
func (a *Account) RecordFailedLogin(at time.Time, ip string) {
	a.Activity.FailedLoginCount++
	a.Activity.LastFailedLoginAt = &at
	a.Activity.LastFailedLoginIP = ip
}

// RecordFailedLoginMetadata records failure time/IP without advancing the
// counter. Used when the attempt cannot succeed regardless of the password
// (inactive or blocked accounts) but the audit trail still matters.
func (a *Account) RecordFailedLoginMetadata(at time.Time, ip string) {
	a.Activity.LastFailedLoginAt = &at
	a.Activity.LastFailedLoginIP = ip
}

// RecordSuccessfulLogin resets the failure counter and stamps the success
// metadata. The counter only ever decreases by this reset.
func (a *Account) RecordSuccessfulLogin(at time.Time, ip string) {
	a.Activity.FailedLoginCount = 0
	a.Activity.LastSuccessfulLoginAt = &at
	a.Activity.LastSuccessfulLoginIP = ip
}

// BlockByAdmin marks the account blocked without a timestamp, the marker
// that distinguishes administrative blocks from threshold blocks.
func (a *Account) BlockByAdmin() {
	a.Blocked = true
	a.BlockedTime = nil
}

// BlockByFailedAttempts marks the account blocked with the block time set.
func (a *Account) BlockByFailedAttempts(at time.Time) {
	a.Blocked = true
	a.BlockedTime = &at
}

// Unblock clears the block flags and the failure counter.
func (a *Account) Unblock() {
	a.Blocked = false
	a.BlockedTime = nil
	a.Activity.FailedLoginCount = 0
}

// UserLevel is one role record attached to an account. An account must hold
// at least one level at all times.
type UserLevel struct {
	bun.BaseModel `bun:"table:user_levels,alias:lvl"`
	ID            uuid.UUID  `bun:"id,pk,nullzero,type:uuid" json:"id,omitempty"`
	AccountID     uuid.UUID  `bun:"account_id,notnull,type:uuid" json:"account_id,omitempty"`
	Kind          RoleKind   `bun:"kind,notnull" json:"kind,omitempty"`
	Tier          ClientTier `bun:"client_tier" json:"client_tier,omitempty"`
	CreatedAt     *time.Time `bun:"created_at,nullzero,default:current_timestamp" json:"created_at,omitempty"`
}

// ActionToken is a persisted single-use action token. At most one live token
// of a given kind exists per account; issuing a new one replaces the old.
type ActionToken struct {
	bun.BaseModel `bun:"table:action_tokens,alias:tok"`
	ID            uuid.UUID  `bun:"id,pk,nullzero,type:uuid" json:"id,omitempty"`
	AccountID     uuid.UUID  `bun:"account_id,notnull,type:uuid" json:"account_id,omitempty"`
	Kind          TokenKind  `bun:"kind,notnull" json:"kind,omitempty"`
	Value         string     `bun:"value,notnull,unique" json:"value,omitempty"`
	CreatedAt     *time.Time `bun:"created_at,nullzero,default:current_timestamp" json:"created_at,omitempty"`
}
