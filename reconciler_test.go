package accounts_test

import (
	"context"
	"testing"
	"time"

	accounts "github.com/pkwiatkowski242447/eldorado-accounts"

	goerrors "github.com/goliatone/go-errors"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type reconcilerFixture struct {
	*lifecycleFixture
	cfg        *accounts.SimpleConfig
	reconciler *accounts.Reconciler
}

func newReconcilerFixture(t *testing.T) *reconcilerFixture {
	t.Helper()

	lf := newLifecycleFixture(t)
	cfg := newTestConfig()

	reconciler := accounts.NewReconciler(lf.store, lf.tokens, lf.manager, lf.notifier, cfg).
		WithClock(lf.clock.Now)

	return &reconcilerFixture{
		lifecycleFixture: lf,
		cfg:              cfg,
		reconciler:       reconciler,
	}
}

func TestExpireUnverifiedRegistrations(t *testing.T) {
	ctx := context.Background()

	t.Run("removes stale registrations with their tokens", func(t *testing.T) {
		f := newReconcilerFixture(t)
		account := f.registerClient(t)

		f.clock.Advance(25 * time.Hour)

		require.NoError(t, f.reconciler.ExpireUnverifiedRegistrations(ctx))

		assert.False(t, f.store.has(account.ID))
		assert.Equal(t, 0, f.tokens.count())

		events := f.sink.byType(accounts.ActivityEventAccountRemoved)
		require.Len(t, events, 1)
		assert.Equal(t, accounts.SystemActor, events[0].Actor)
	})

	t.Run("leaves registrations inside the grace period", func(t *testing.T) {
		f := newReconcilerFixture(t)
		account := f.registerClient(t)

		f.clock.Advance(23 * time.Hour)

		require.NoError(t, f.reconciler.ExpireUnverifiedRegistrations(ctx))

		assert.True(t, f.store.has(account.ID))
	})

	t.Run("leaves activated accounts alone", func(t *testing.T) {
		f := newReconcilerFixture(t)
		account := f.registerClient(t)

		ok, err := f.manager.ActivateAccount(ctx, f.activationTransport(t, account.ID))
		require.NoError(t, err)
		require.True(t, ok)

		f.clock.Advance(25 * time.Hour)

		require.NoError(t, f.reconciler.ExpireUnverifiedRegistrations(ctx))

		assert.True(t, f.store.has(account.ID))
	})

	t.Run("is idempotent", func(t *testing.T) {
		f := newReconcilerFixture(t)
		f.registerClient(t)

		f.clock.Advance(25 * time.Hour)

		require.NoError(t, f.reconciler.ExpireUnverifiedRegistrations(ctx))
		require.NoError(t, f.reconciler.ExpireUnverifiedRegistrations(ctx))
	})

	t.Run("unparseable grace period aborts the run", func(t *testing.T) {
		f := newReconcilerFixture(t)
		f.registerClient(t)
		f.clock.Advance(25 * time.Hour)

		f.cfg.RegistrationGracePeriod = "not-a-duration"

		err := f.reconciler.ExpireUnverifiedRegistrations(ctx)
		require.Error(t, err)

		var rich *goerrors.Error
		require.True(t, goerrors.As(err, &rich))
		assert.Equal(t, "CONFIGURATION_ERROR", rich.TextCode)

		// Nothing was removed.
		assert.Equal(t, 1, f.tokens.count())
	})
}

func TestResendActivationReminders(t *testing.T) {
	ctx := context.Background()

	t.Run("sends a one-shot reminder at the halfway mark", func(t *testing.T) {
		f := newReconcilerFixture(t)
		account := f.registerClient(t)

		token, err := f.tokens.FindByKindAndAccount(ctx, accounts.TokenRegister, account.ID)
		require.NoError(t, err)

		f.clock.Advance(13 * time.Hour)

		require.NoError(t, f.reconciler.ResendActivationReminders(ctx))

		msgs := f.notifier.byTemplate(accounts.TemplateActivationReminder)
		require.Len(t, msgs, 1)
		assert.Equal(t, "marek.kowalski@example.com", msgs[0].Email)
		assert.Contains(t, msgs[0].URL, accounts.EncodeTransport(token.Value))

		// The token is consumed; the reminder never repeats.
		assert.Equal(t, 0, f.tokens.count())

		require.NoError(t, f.reconciler.ResendActivationReminders(ctx))
		assert.Len(t, f.notifier.byTemplate(accounts.TemplateActivationReminder), 1)
	})

	t.Run("leaves recent registrations alone", func(t *testing.T) {
		f := newReconcilerFixture(t)
		f.registerClient(t)

		f.clock.Advance(11 * time.Hour)

		require.NoError(t, f.reconciler.ResendActivationReminders(ctx))

		assert.Empty(t, f.notifier.byTemplate(accounts.TemplateActivationReminder))
		assert.Equal(t, 1, f.tokens.count())
	})

	t.Run("skips accounts that activated meanwhile", func(t *testing.T) {
		f := newReconcilerFixture(t)
		account := f.registerClient(t)

		saved := f.store.mustGet(account.ID)
		saved.Active = true
		_, err := f.store.Update(ctx, saved)
		require.NoError(t, err)

		f.clock.Advance(13 * time.Hour)

		require.NoError(t, f.reconciler.ResendActivationReminders(ctx))

		assert.Empty(t, f.notifier.byTemplate(accounts.TemplateActivationReminder))
	})

	t.Run("drops orphaned tokens", func(t *testing.T) {
		f := newReconcilerFixture(t)

		now := f.clock.Now()
		_, err := f.tokens.Create(ctx, &accounts.ActionToken{
			ID:        uuid.New(),
			AccountID: uuid.New(),
			Kind:      accounts.TokenRegister,
			Value:     "orphaned-value",
			CreatedAt: &now,
		})
		require.NoError(t, err)

		require.NoError(t, f.reconciler.ResendActivationReminders(ctx))

		assert.Equal(t, 0, f.tokens.count())
		assert.Empty(t, f.notifier.byTemplate(accounts.TemplateActivationReminder))
	})
}

func TestAutoUnblockExpiredLockouts(t *testing.T) {
	ctx := context.Background()

	blockAt := func(t *testing.T, f *reconcilerFixture, id uuid.UUID, at time.Time) {
		t.Helper()
		saved := f.store.mustGet(id)
		saved.RecordFailedLogin(at, "10.0.0.2")
		saved.BlockByFailedAttempts(at)
		_, err := f.store.Update(ctx, saved)
		require.NoError(t, err)
	}

	t.Run("lifts expired lockouts", func(t *testing.T) {
		f := newReconcilerFixture(t)
		account := f.registerClient(t)
		blockAt(t, f, account.ID, f.clock.Now())

		f.clock.Advance(3 * time.Hour)

		require.NoError(t, f.reconciler.AutoUnblockExpiredLockouts(ctx))

		saved := f.store.mustGet(account.ID)
		assert.False(t, saved.Blocked)
		assert.Nil(t, saved.BlockedTime)
		assert.Equal(t, 0, saved.Activity.FailedLoginCount)

		events := f.sink.byType(accounts.ActivityEventAccountUnblocked)
		require.Len(t, events, 1)
		assert.Equal(t, accounts.SystemActor, events[0].Actor)
	})

	t.Run("leaves fresh lockouts in place", func(t *testing.T) {
		f := newReconcilerFixture(t)
		account := f.registerClient(t)
		blockAt(t, f, account.ID, f.clock.Now())

		f.clock.Advance(time.Hour)

		require.NoError(t, f.reconciler.AutoUnblockExpiredLockouts(ctx))

		saved := f.store.mustGet(account.ID)
		assert.True(t, saved.Blocked)
	})

	t.Run("never touches administrative blocks", func(t *testing.T) {
		f := newReconcilerFixture(t)
		account := f.registerClient(t)

		saved := f.store.mustGet(account.ID)
		saved.BlockByAdmin()
		_, err := f.store.Update(ctx, saved)
		require.NoError(t, err)

		f.clock.Advance(30 * 24 * time.Hour)

		require.NoError(t, f.reconciler.AutoUnblockExpiredLockouts(ctx))

		saved = f.store.mustGet(account.ID)
		assert.True(t, saved.Blocked)
		assert.True(t, saved.AdminBlocked())
	})

	t.Run("unparseable window aborts the run", func(t *testing.T) {
		f := newReconcilerFixture(t)
		f.cfg.AutoUnblockWindow = "two hours"

		err := f.reconciler.AutoUnblockExpiredLockouts(ctx)
		require.Error(t, err)

		var rich *goerrors.Error
		require.True(t, goerrors.As(err, &rich))
		assert.Equal(t, "CONFIGURATION_ERROR", rich.TextCode)
	})
}

func TestReconcilerStart(t *testing.T) {
	f := newReconcilerFixture(t)
	account := f.registerClient(t)
	f.clock.Advance(25 * time.Hour)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	f.reconciler.
		WithIntervals(accounts.ReconcilerIntervals{
			Expiry:   5 * time.Millisecond,
			Reminder: 5 * time.Millisecond,
			Unblock:  5 * time.Millisecond,
		}).
		Start(ctx)

	deadline := time.Now().Add(2 * time.Second)
	for f.store.has(account.ID) && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}

	assert.False(t, f.store.has(account.ID))
}
