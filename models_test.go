package accounts_test

import (
	"testing"
	"time"

	accounts "github.com/pkwiatkowski242447/eldorado-accounts"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestBlockMarkers(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	t.Run("admin block has no timestamp", func(t *testing.T) {
		a := &accounts.Account{}
		a.BlockByAdmin()

		assert.True(t, a.Blocked)
		assert.Nil(t, a.BlockedTime)
		assert.True(t, a.AdminBlocked())
		assert.False(t, a.AutoBlocked())
	})

	t.Run("threshold block carries the timestamp", func(t *testing.T) {
		a := &accounts.Account{}
		a.BlockByFailedAttempts(now)

		assert.True(t, a.Blocked)
		assert.NotNil(t, a.BlockedTime)
		assert.True(t, a.AutoBlocked())
		assert.False(t, a.AdminBlocked())
	})

	t.Run("unblock clears everything", func(t *testing.T) {
		a := &accounts.Account{}
		a.RecordFailedLogin(now, "10.0.0.2")
		a.BlockByFailedAttempts(now)
		a.Unblock()

		assert.False(t, a.Blocked)
		assert.Nil(t, a.BlockedTime)
		assert.Equal(t, 0, a.Activity.FailedLoginCount)
	})
}

func TestActivityRecording(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	a := &accounts.Account{}

	a.RecordFailedLogin(now, "10.0.0.2")
	a.RecordFailedLogin(now.Add(time.Minute), "10.0.0.3")
	assert.Equal(t, 2, a.Activity.FailedLoginCount)
	assert.Equal(t, "10.0.0.3", a.Activity.LastFailedLoginIP)

	// Metadata-only recording leaves the counter alone.
	a.RecordFailedLoginMetadata(now.Add(2*time.Minute), "10.0.0.4")
	assert.Equal(t, 2, a.Activity.FailedLoginCount)
	assert.Equal(t, "10.0.0.4", a.Activity.LastFailedLoginIP)

	a.RecordSuccessfulLogin(now.Add(3*time.Minute), "10.0.0.1")
	assert.Equal(t, 0, a.Activity.FailedLoginCount)
	assert.Equal(t, "10.0.0.1", a.Activity.LastSuccessfulLoginIP)
	assert.NotNil(t, a.Activity.LastSuccessfulLoginAt)
}

func TestLevels(t *testing.T) {
	id := uuid.New()
	a := &accounts.Account{
		ID: id,
		Levels: []*accounts.UserLevel{
			{ID: uuid.New(), AccountID: id, Kind: accounts.RoleClient, Tier: accounts.TierPremium},
			{ID: uuid.New(), AccountID: id, Kind: accounts.RoleStaff},
		},
	}

	assert.True(t, a.HasLevel(accounts.RoleClient))
	assert.True(t, a.HasLevel(accounts.RoleStaff))
	assert.False(t, a.HasLevel(accounts.RoleAdmin))

	lvl := a.LevelOf(accounts.RoleClient)
	assert.NotNil(t, lvl)
	assert.Equal(t, accounts.TierPremium, lvl.Tier)

	assert.Nil(t, a.LevelOf(accounts.RoleAdmin))
}

func TestParseRoleKind(t *testing.T) {
	kind, ok := accounts.ParseRoleKind("client")
	assert.True(t, ok)
	assert.Equal(t, accounts.RoleClient, kind)

	_, ok = accounts.ParseRoleKind("superuser")
	assert.False(t, ok)

	assert.True(t, accounts.RoleAdmin.IsValid())
	assert.False(t, accounts.RoleKind("").IsValid())
}
