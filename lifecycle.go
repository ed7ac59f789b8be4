package accounts

import (
	"context"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/hashid/pkg/hashid"
	"github.com/google/uuid"
)

const (
	// adminCreatedTokenTTL is the fixed activation window for accounts
	// created by an administrator.
	adminCreatedTokenTTL = 12 * time.Hour
	resetTokenTTL        = 30 * time.Minute
	emailChangeTokenTTL  = 24 * time.Hour
)

// RegistrationInput carries the profile fields of a registration request.
type RegistrationInput struct {
	Login     string `json:"login"`
	Password  string `json:"password"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Email     string `json:"email"`
	Phone     string `json:"phone"`
	Language  string `json:"language"`
}

// ProfilePatch holds the mutable profile fields. Login, email, and password
// never change through this path.
type ProfilePatch struct {
	FirstName *string `json:"first_name,omitempty"`
	LastName  *string `json:"last_name,omitempty"`
	Phone     *string `json:"phone,omitempty"`
	Language  *string `json:"language,omitempty"`
}

// LifecycleManager orchestrates registration, activation, email change,
// password reset, blocking, role management, and optimistic-concurrency
// protected profile edits.
type LifecycleManager struct {
	store        CredentialStore
	tokens       TokenStore
	issuer       *TokenIssuer
	notifier     Notifier
	config       Config
	logger       Logger
	activitySink ActivitySink
	now          func() time.Time
	useHashID    bool
}

// NewLifecycleManager returns a new LifecycleManager.
func NewLifecycleManager(store CredentialStore, tokens TokenStore, issuer *TokenIssuer, notifier Notifier, cfg Config) *LifecycleManager {
	return &LifecycleManager{
		store:        store,
		tokens:       tokens,
		issuer:       issuer,
		notifier:     normalizeNotifier(notifier),
		config:       cfg,
		logger:       defLogger{},
		activitySink: noopActivitySink{},
		now:          time.Now,
	}
}

func (m *LifecycleManager) WithLogger(logger Logger) *LifecycleManager {
	if logger != nil {
		m.logger = logger
	}
	return m
}

// WithActivitySink configures an ActivitySink for emitting lifecycle events.
func (m *LifecycleManager) WithActivitySink(sink ActivitySink) *LifecycleManager {
	m.activitySink = normalizeActivitySink(sink)
	return m
}

// WithClock injects a custom clock (useful for tests).
func (m *LifecycleManager) WithClock(clock func() time.Time) *LifecycleManager {
	if clock != nil {
		m.now = clock
	}
	return m
}

// WithHashIDs derives account ids deterministically from the login instead of
// random UUIDs.
func (m *LifecycleManager) WithHashIDs() *LifecycleManager {
	m.useHashID = true
	return m
}

// RegisterClient registers a self-service client account. The activation
// token lives for half the registration grace period.
func (m *LifecycleManager) RegisterClient(ctx context.Context, input RegistrationInput) (*Account, error) {
	grace, err := ParseThresholdPattern(m.config.GetRegistrationGracePeriod())
	if err != nil {
		return nil, err
	}
	return m.register(ctx, ActorRef{Type: "anonymous"}, input, RoleClient, grace/2)
}

// RegisterStaff registers a staff account on behalf of an administrator.
func (m *LifecycleManager) RegisterStaff(ctx context.Context, actor ActorRef, input RegistrationInput) (*Account, error) {
	return m.register(ctx, actor, input, RoleStaff, adminCreatedTokenTTL)
}

// RegisterAdmin registers an administrator account on behalf of another
// administrator.
func (m *LifecycleManager) RegisterAdmin(ctx context.Context, actor ActorRef, input RegistrationInput) (*Account, error) {
	return m.register(ctx, actor, input, RoleAdmin, adminCreatedTokenTTL)
}

func (m *LifecycleManager) register(ctx context.Context, actor ActorRef, input RegistrationInput, kind RoleKind, tokenTTL time.Duration) (*Account, error) {
	if err := ValidateRegistration(input); err != nil {
		return nil, err
	}

	if err := m.ensureUnique(ctx, input.Login, input.Email); err != nil {
		return nil, err
	}

	hash, err := HashPassword(input.Password)
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to hash password")
	}

	now := m.now()
	account := &Account{
		ID:           uuid.New(),
		Login:        input.Login,
		PasswordHash: hash,
		FirstName:    input.FirstName,
		LastName:     input.LastName,
		Email:        strings.ToLower(input.Email),
		Phone:        input.Phone,
		Language:     input.Language,
		CreatedAt:    &now,
	}
	if account.Language == "" {
		account.Language = m.config.GetDefaultLanguage()
	}
	if m.useHashID {
		if id, err := hashid.NewUUID(input.Login); err == nil {
			account.ID = id
		}
	}

	level := &UserLevel{ID: uuid.New(), AccountID: account.ID, Kind: kind}
	if kind == RoleClient {
		level.Tier = TierBasic
	}
	account.Levels = []*UserLevel{level}

	if account, err = m.store.Create(ctx, account); err != nil {
		// A racing registration can still hit the unique constraint here.
		if IsConflict(err) {
			return nil, ErrAccountConflict
		}
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "could not create account")
	}

	value, err := m.issuer.IssueActionToken(account, TokenRegister, tokenTTL)
	if err != nil {
		return nil, err
	}

	if err := m.replaceToken(ctx, account.ID, TokenRegister, value); err != nil {
		return nil, err
	}

	m.notify(ctx, TemplateActivation, account, m.actionURL(m.config.GetActivationURL(), value))

	if actor.Type == "anonymous" {
		actor = ActorRef{ID: account.ID.String(), Type: "user"}
	}
	emitActivity(ctx, m.activitySink, m.logger, ActivityEvent{
		EventType: ActivityEventAccountCreated,
		Actor:     actor,
		AccountID: account.ID.String(),
		Metadata:  map[string]any{"login": account.Login, "kind": string(kind)},
	})

	return account, nil
}

func (m *LifecycleManager) ensureUnique(ctx context.Context, login, email string) error {
	if _, err := m.store.FindByLogin(ctx, login); err == nil {
		return ErrAccountConflict
	} else if !IsNotFound(err) {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to check login uniqueness")
	}

	if _, err := m.store.FindByEmail(ctx, strings.ToLower(email)); err == nil {
		return ErrAccountConflict
	} else if !IsNotFound(err) {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to check email uniqueness")
	}

	return nil
}

// ActivateAccount consumes a REGISTER token and marks the account active and
// verified. Routine failures (unknown, expired, or already consumed tokens)
// return false without mutating state; retrying with a fresh token is safe.
func (m *LifecycleManager) ActivateAccount(ctx context.Context, transportValue string) (bool, error) {
	value, err := DecodeTransport(transportValue)
	if err != nil {
		return false, nil
	}

	token, err := m.tokens.FindByValue(ctx, value)
	if err != nil {
		if IsNotFound(err) {
			return false, nil
		}
		return false, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to look up activation token")
	}

	account, err := m.store.FindByID(ctx, token.AccountID)
	if err != nil {
		if IsNotFound(err) {
			return false, nil
		}
		return false, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to resolve account for activation")
	}

	if !m.issuer.Verify(value, account.ID, TokenRegister) {
		return false, nil
	}

	account.Active = true
	account.Verified = true
	if _, err := m.store.Update(ctx, account); err != nil {
		return false, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to activate account")
	}

	if err := m.tokens.Remove(ctx, token.ID); err != nil && !IsNotFound(err) {
		m.logger.Warn("failed to consume activation token %s: %v", token.ID.String(), err)
	}

	emitActivity(ctx, m.activitySink, m.logger, ActivityEvent{
		EventType: ActivityEventAccountActivated,
		Actor:     ActorRef{ID: account.ID.String(), Type: "user"},
		AccountID: account.ID.String(),
	})

	return true, nil
}

// ForgetPassword starts the reset flow for the account registered under the
// given email, replacing any reset token already in flight.
func (m *LifecycleManager) ForgetPassword(ctx context.Context, email string) error {
	account, err := m.store.FindByEmail(ctx, strings.ToLower(email))
	if err != nil {
		if IsNotFound(err) {
			return ErrEmailNotFound
		}
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to look up account by email")
	}

	if account.Blocked || !account.Active {
		return ErrIllegalOperation
	}

	value, err := m.issuer.IssueActionToken(account, TokenResetPassword, resetTokenTTL)
	if err != nil {
		return err
	}

	if err := m.replaceToken(ctx, account.ID, TokenResetPassword, value); err != nil {
		return err
	}

	m.notify(ctx, TemplatePasswordReset, account, m.actionURL(m.config.GetPasswordResetURL(), value))
	return nil
}

// ResetPassword consumes a RESET_PASSWORD token and stores the new password
// hash. The account is reloaded fresh to guard against stale in-memory state.
func (m *LifecycleManager) ResetPassword(ctx context.Context, transportValue, newPassword string) error {
	return m.applyPasswordToken(ctx, transportValue, newPassword, TokenResetPassword)
}

func (m *LifecycleManager) applyPasswordToken(ctx context.Context, transportValue, newPassword string, kind TokenKind) error {
	value, err := DecodeTransport(transportValue)
	if err != nil {
		return ErrInvalidOrExpiredToken
	}

	token, err := m.tokens.FindByValue(ctx, value)
	if err != nil {
		if IsNotFound(err) {
			return ErrTokenNotFound
		}
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to look up reset token")
	}

	accountID, err := m.issuer.ExtractAccountID(value)
	if err != nil {
		return ErrInvalidOrExpiredToken
	}

	if !m.issuer.Verify(value, accountID, kind) {
		return ErrInvalidOrExpiredToken
	}

	account, err := m.store.FindByID(ctx, accountID)
	if err != nil {
		if IsNotFound(err) {
			return ErrAccountNotFound
		}
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to reload account for password reset")
	}

	// An overwritten password can be set before the account ever activates;
	// the administrative overwrite flow is independent of activation. Blocked
	// accounts are refused on every path.
	if account.Blocked || (!account.Active && kind != TokenChangeOverwrittenPassword) {
		return ErrIllegalOperation
	}

	hash, err := HashPassword(newPassword)
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to hash new password")
	}

	account.PasswordHash = hash
	if _, err := m.store.Update(ctx, account); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to persist new password")
	}

	if err := m.tokens.Remove(ctx, token.ID); err != nil && !IsNotFound(err) {
		m.logger.Warn("failed to consume reset token %s: %v", token.ID.String(), err)
	}

	emitActivity(ctx, m.activitySink, m.logger, ActivityEvent{
		EventType: ActivityEventPasswordReset,
		Actor:     ActorRef{ID: account.ID.String(), Type: "user"},
		AccountID: account.ID.String(),
	})

	return nil
}

// OverwritePassword is the administrative reset: the current password is
// replaced with a random throwaway hash, locking out the old credential, and
// a CHANGE_OVERWRITTEN_PASSWORD token is mailed so the owner can set a new
// one. Administrators use ChangeOwnPassword for their own account.
func (m *LifecycleManager) OverwritePassword(ctx context.Context, actor ActorRef, accountID uuid.UUID) error {
	if actor.ID == accountID.String() {
		return ErrIllegalOperation
	}

	account, err := m.store.FindByID(ctx, accountID)
	if err != nil {
		if IsNotFound(err) {
			return ErrAccountNotFound
		}
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to load account for password overwrite")
	}

	account.PasswordHash = RandomPasswordHash()
	if _, err := m.store.Update(ctx, account); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to overwrite password")
	}

	value, err := m.issuer.IssueActionToken(account, TokenChangeOverwrittenPassword, adminCreatedTokenTTL)
	if err != nil {
		return err
	}

	if err := m.replaceToken(ctx, account.ID, TokenChangeOverwrittenPassword, value); err != nil {
		return err
	}

	m.notify(ctx, TemplatePasswordReset, account, m.actionURL(m.config.GetPasswordResetURL(), value))

	emitActivity(ctx, m.activitySink, m.logger, ActivityEvent{
		EventType: ActivityEventPasswordReset,
		Actor:     actor,
		AccountID: account.ID.String(),
	})

	return nil
}

// SetOverwrittenPassword consumes a CHANGE_OVERWRITTEN_PASSWORD token and
// stores the owner's chosen password.
func (m *LifecycleManager) SetOverwrittenPassword(ctx context.Context, transportValue, newPassword string) error {
	return m.applyPasswordToken(ctx, transportValue, newPassword, TokenChangeOverwrittenPassword)
}

// ChangeOwnPassword replaces the password after verifying the current one.
func (m *LifecycleManager) ChangeOwnPassword(ctx context.Context, accountID uuid.UUID, current, newPassword string) error {
	account, err := m.store.FindByID(ctx, accountID)
	if err != nil {
		if IsNotFound(err) {
			return ErrAccountNotFound
		}
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to load account for password change")
	}

	if err := ComparePasswordAndHash(current, account.PasswordHash); err != nil {
		return ErrInvalidCredentials
	}

	hash, err := HashPassword(newPassword)
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to hash new password")
	}

	account.PasswordHash = hash
	if _, err := m.store.Update(ctx, account); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to persist new password")
	}

	return nil
}

// ChangeEmail issues a CONFIRM_EMAIL token carrying the candidate address and
// notifies the new address. The change is not applied until confirmed.
func (m *LifecycleManager) ChangeEmail(ctx context.Context, accountID uuid.UUID, newEmail string) error {
	if err := validation.Validate(newEmail, validation.Required, is.Email); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryValidation, "invalid email address")
	}
	newEmail = strings.ToLower(newEmail)

	account, err := m.store.FindByID(ctx, accountID)
	if err != nil {
		if IsNotFound(err) {
			return ErrAccountNotFound
		}
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to load account for email change")
	}

	if strings.EqualFold(account.Email, newEmail) {
		return ErrNoOpEmailChange
	}

	if other, err := m.store.FindByEmail(ctx, newEmail); err == nil && other.ID != account.ID {
		return ErrEmailCollision
	} else if err != nil && !IsNotFound(err) {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to check email availability")
	}

	value, err := m.issuer.IssueEmailChangeToken(account, newEmail, emailChangeTokenTTL)
	if err != nil {
		return err
	}

	if err := m.replaceToken(ctx, account.ID, TokenConfirmEmail, value); err != nil {
		return err
	}

	// The confirmation goes to the candidate address, not the current one.
	m.notifyAddress(ctx, TemplateEmailConfirm, account, newEmail, m.actionURL(m.config.GetEmailConfirmURL(), value))
	return nil
}

// ConfirmEmail consumes a CONFIRM_EMAIL token and applies the candidate
// address. Routine invalidity returns false without mutating state. A
// uniqueness race at persist time surfaces as ErrEmailCollision and the token
// stays live so the user can retry once the collision resolves.
func (m *LifecycleManager) ConfirmEmail(ctx context.Context, transportValue string) (bool, error) {
	value, err := DecodeTransport(transportValue)
	if err != nil {
		return false, nil
	}

	token, err := m.tokens.FindByValue(ctx, value)
	if err != nil {
		if IsNotFound(err) {
			return false, nil
		}
		return false, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to look up confirm-email token")
	}

	account, err := m.store.FindByID(ctx, token.AccountID)
	if err != nil {
		if IsNotFound(err) {
			return false, nil
		}
		return false, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to resolve account for email confirmation")
	}

	if !m.issuer.Verify(value, account.ID, TokenConfirmEmail) {
		return false, nil
	}

	newEmail, err := m.issuer.ExtractEmail(value)
	if err != nil || newEmail == "" {
		// A confirm-email token without a payload is our bug, not the user's.
		return false, ErrEmailMissingInToken
	}

	previous := account.Email
	account.Email = newEmail
	account.Verified = true
	if _, err := m.store.Update(ctx, account); err != nil {
		if IsConflict(err) {
			return false, ErrEmailCollision
		}
		return false, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to persist email change")
	}

	if err := m.tokens.Remove(ctx, token.ID); err != nil && !IsNotFound(err) {
		m.logger.Warn("failed to consume confirm-email token %s: %v", token.ID.String(), err)
	}

	emitActivity(ctx, m.activitySink, m.logger, ActivityEvent{
		EventType: ActivityEventEmailChanged,
		Actor:     ActorRef{ID: account.ID.String(), Type: "user"},
		AccountID: account.ID.String(),
		Metadata:  map[string]any{"from": previous, "to": newEmail},
	})

	return true, nil
}

// ResendEmailConfirmation re-sends the pending email confirmation, minting a
// fresh value but overwriting the existing token record in place so there is
// never more than one live CONFIRM_EMAIL token per account.
func (m *LifecycleManager) ResendEmailConfirmation(ctx context.Context, accountID uuid.UUID) error {
	token, err := m.tokens.FindByKindAndAccount(ctx, TokenConfirmEmail, accountID)
	if err != nil {
		if IsNotFound(err) {
			return ErrTokenNotFound
		}
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to look up pending email confirmation")
	}

	newEmail, err := m.issuer.ExtractEmail(token.Value)
	if err != nil || newEmail == "" {
		return ErrEmailMissingInToken
	}

	account, err := m.store.FindByID(ctx, accountID)
	if err != nil {
		if IsNotFound(err) {
			return ErrAccountNotFound
		}
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to load account for confirmation resend")
	}

	value, err := m.issuer.IssueEmailChangeToken(account, newEmail, emailChangeTokenTTL)
	if err != nil {
		return err
	}

	token.Value = value
	if _, err := m.tokens.Update(ctx, token); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to refresh confirm-email token")
	}

	m.notifyAddress(ctx, TemplateEmailConfirm, account, newEmail, m.actionURL(m.config.GetEmailConfirmURL(), value))
	return nil
}

// BlockAccount applies an administrative block. Admin blocks carry no
// BlockedTime; that marker is reserved for threshold blocks. A threshold
// block can be escalated into an administrative one, which clears the
// timestamp so the auto-unblock sweep never lifts it.
func (m *LifecycleManager) BlockAccount(ctx context.Context, actor ActorRef, accountID uuid.UUID) error {
	if actor.ID == accountID.String() {
		return ErrIllegalOperation
	}

	account, err := m.store.FindByID(ctx, accountID)
	if err != nil {
		if IsNotFound(err) {
			return ErrAccountNotFound
		}
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to load account for blocking")
	}

	if account.AdminBlocked() {
		return ErrAlreadyBlocked
	}

	account.BlockByAdmin()
	if _, err := m.store.Update(ctx, account); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to persist block")
	}

	m.notify(ctx, TemplateAccountBlocked, account, "")

	emitActivity(ctx, m.activitySink, m.logger, ActivityEvent{
		EventType: ActivityEventAccountBlocked,
		Actor:     actor,
		AccountID: account.ID.String(),
	})

	return nil
}

// UnblockAccount lifts a block and clears the failure counter.
func (m *LifecycleManager) UnblockAccount(ctx context.Context, actor ActorRef, accountID uuid.UUID) error {
	account, err := m.store.FindByID(ctx, accountID)
	if err != nil {
		if IsNotFound(err) {
			return ErrAccountNotFound
		}
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to load account for unblocking")
	}

	if !account.Blocked {
		return ErrAlreadyUnblocked
	}

	account.Unblock()
	if _, err := m.store.Update(ctx, account); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to persist unblock")
	}

	m.notify(ctx, TemplateAccountUnblocked, account, "")

	emitActivity(ctx, m.activitySink, m.logger, ActivityEvent{
		EventType: ActivityEventAccountUnblocked,
		Actor:     actor,
		AccountID: account.ID.String(),
	})

	return nil
}

// ListAccounts returns a page of accounts matching the filter together with
// the total match count for pagination.
func (m *LifecycleManager) ListAccounts(ctx context.Context, filter AccountFilter) ([]*Account, int, error) {
	records, err := m.store.List(ctx, filter)
	if err != nil {
		return nil, 0, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to list accounts")
	}

	total, err := m.store.Count(ctx, filter)
	if err != nil {
		return nil, 0, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to count accounts")
	}

	return records, total, nil
}

// ModifyProfile applies the mutable profile fields after comparing the
// caller's expected version against the stored one. A mismatch fails with
// ErrOptimisticLock; the caller must re-fetch and retry.
func (m *LifecycleManager) ModifyProfile(ctx context.Context, login string, patch ProfilePatch, expectedVersion int64) (*Account, error) {
	account, err := m.store.FindByLogin(ctx, login)
	if err != nil {
		if IsNotFound(err) {
			return nil, ErrAccountNotFound
		}
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to load account for profile edit")
	}

	if account.Version != expectedVersion {
		return nil, ErrOptimisticLock
	}

	if patch.FirstName != nil {
		account.FirstName = *patch.FirstName
	}
	if patch.LastName != nil {
		account.LastName = *patch.LastName
	}
	if patch.Phone != nil {
		if *patch.Phone != "" {
			if err := ValidatePhone(*patch.Phone); err != nil {
				return nil, err
			}
		}
		account.Phone = *patch.Phone
	}
	if patch.Language != nil {
		account.Language = *patch.Language
	}

	account, err = m.store.Update(ctx, account)
	if err != nil {
		return nil, err
	}

	return account, nil
}

// AddRole attaches a role record of the given kind.
func (m *LifecycleManager) AddRole(ctx context.Context, actor ActorRef, accountID uuid.UUID, kind RoleKind) error {
	if !kind.IsValid() {
		return ErrIllegalOperation
	}

	account, err := m.store.FindByID(ctx, accountID)
	if err != nil {
		if IsNotFound(err) {
			return ErrAccountNotFound
		}
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to load account for role addition")
	}

	if account.HasLevel(kind) {
		return ErrRoleConflict
	}

	level := &UserLevel{ID: uuid.New(), AccountID: account.ID, Kind: kind}
	if kind == RoleClient {
		level.Tier = TierBasic
	}

	if err := m.store.AddLevel(ctx, level); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to attach role")
	}

	emitActivity(ctx, m.activitySink, m.logger, ActivityEvent{
		EventType: ActivityEventRoleAdded,
		Actor:     actor,
		AccountID: account.ID.String(),
		Metadata:  map[string]any{"kind": string(kind)},
	})

	return nil
}

// RemoveRole detaches a role record. The last remaining role can never be
// removed, and administrators cannot demote their own account.
func (m *LifecycleManager) RemoveRole(ctx context.Context, actor ActorRef, accountID uuid.UUID, kind RoleKind) error {
	account, err := m.store.FindByID(ctx, accountID)
	if err != nil {
		if IsNotFound(err) {
			return ErrAccountNotFound
		}
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to load account for role removal")
	}

	level := account.LevelOf(kind)
	if level == nil {
		return ErrRoleNotFound
	}

	if len(account.Levels) <= 1 {
		return ErrIllegalOperation
	}

	if kind == RoleAdmin && actor.ID == account.ID.String() {
		return ErrIllegalOperation
	}

	if err := m.store.RemoveLevel(ctx, level.ID); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to detach role")
	}

	emitActivity(ctx, m.activitySink, m.logger, ActivityEvent{
		EventType: ActivityEventRoleRemoved,
		Actor:     actor,
		AccountID: account.ID.String(),
		Metadata:  map[string]any{"kind": string(kind)},
	})

	return nil
}

// RemoveAccount deletes an account and all its tokens. Only the
// reconciliation sweep uses this, for registrations that never completed.
func (m *LifecycleManager) RemoveAccount(ctx context.Context, actor ActorRef, accountID uuid.UUID) error {
	if err := m.tokens.RemoveByAccount(ctx, accountID); err != nil && !IsNotFound(err) {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to remove account tokens")
	}

	if err := m.store.Remove(ctx, accountID); err != nil {
		if IsNotFound(err) {
			return ErrAccountNotFound
		}
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to remove account")
	}

	emitActivity(ctx, m.activitySink, m.logger, ActivityEvent{
		EventType: ActivityEventAccountRemoved,
		Actor:     actor,
		AccountID: accountID.String(),
	})

	return nil
}

// replaceToken enforces the at-most-one-live-token-per-kind invariant:
// creating a new token of a kind first removes any existing one.
func (m *LifecycleManager) replaceToken(ctx context.Context, accountID uuid.UUID, kind TokenKind, value string) error {
	if err := m.tokens.RemoveByKindAndAccount(ctx, kind, accountID); err != nil && !IsNotFound(err) {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to replace existing token")
	}

	now := m.now()
	token := &ActionToken{
		ID:        uuid.New(),
		AccountID: accountID,
		Kind:      kind,
		Value:     value,
		CreatedAt: &now,
	}

	if _, err := m.tokens.Create(ctx, token); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to persist token")
	}

	return nil
}

func (m *LifecycleManager) actionURL(base, value string) string {
	if base == "" {
		return EncodeTransport(value)
	}
	return strings.TrimRight(base, "/") + "/" + EncodeTransport(value)
}

func (m *LifecycleManager) notify(ctx context.Context, template TemplateKind, account *Account, url string) {
	m.notifyAddress(ctx, template, account, account.Email, url)
}

func (m *LifecycleManager) notifyAddress(ctx context.Context, template TemplateKind, account *Account, email, url string) {
	locale := account.Language
	if locale == "" {
		locale = m.config.GetDefaultLanguage()
	}
	if err := m.notifier.Send(ctx, template, account.FirstName, email, url, locale); err != nil {
		m.logger.Warn("notifier send failed for template %s: %v", string(template), err)
	}
}
