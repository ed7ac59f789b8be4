package accounts

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

type Logger interface {
	Debug(format string, args ...any)
	Info(format string, args ...any)
	Warn(format string, args ...any)
	Error(format string, args ...any)
}

// AccountFilter narrows paginated account queries.
type AccountFilter struct {
	Active        *bool
	Blocked       *bool
	AutoBlocked   *bool
	Level         RoleKind
	CreatedBefore *time.Time
	Offset        int
	Limit         int
}

// CredentialStore persists accounts, their role records, and the embedded
// activity log. Update performs a compare-and-increment on the account
// version and reports ErrOptimisticLock when another writer got there first.
type CredentialStore interface {
	FindByID(ctx context.Context, id uuid.UUID) (*Account, error)
	FindByLogin(ctx context.Context, login string) (*Account, error)
	FindByEmail(ctx context.Context, email string) (*Account, error)
	List(ctx context.Context, filter AccountFilter) ([]*Account, error)
	Count(ctx context.Context, filter AccountFilter) (int, error)
	Create(ctx context.Context, account *Account) (*Account, error)
	Update(ctx context.Context, account *Account) (*Account, error)
	Remove(ctx context.Context, id uuid.UUID) error
	AddLevel(ctx context.Context, level *UserLevel) error
	RemoveLevel(ctx context.Context, id uuid.UUID) error
	FindUnverifiedCreatedBefore(ctx context.Context, cutoff time.Time) ([]*Account, error)
	FindAutoBlockedBefore(ctx context.Context, cutoff time.Time) ([]*Account, error)
}

// TokenStore persists single-use action tokens keyed by value and by
// (kind, account).
type TokenStore interface {
	FindByValue(ctx context.Context, value string) (*ActionToken, error)
	FindByKindAndAccount(ctx context.Context, kind TokenKind, accountID uuid.UUID) (*ActionToken, error)
	FindByKind(ctx context.Context, kind TokenKind) ([]*ActionToken, error)
	Create(ctx context.Context, token *ActionToken) (*ActionToken, error)
	Update(ctx context.Context, token *ActionToken) (*ActionToken, error)
	Remove(ctx context.Context, id uuid.UUID) error
	RemoveByAccount(ctx context.Context, accountID uuid.UUID) error
	RemoveByKindAndAccount(ctx context.Context, kind TokenKind, accountID uuid.UUID) error
}

// TemplateKind selects a message template for the notifier.
type TemplateKind string

const (
	TemplateActivation         TemplateKind = "account-activation"
	TemplateActivationReminder TemplateKind = "account-activation-reminder"
	TemplatePasswordReset      TemplateKind = "password-reset"
	TemplateEmailConfirm       TemplateKind = "email-confirm"
	TemplateFailedLoginNotice  TemplateKind = "failed-login-notice"
	TemplateAccountBlocked     TemplateKind = "account-blocked"
	TemplateAccountUnblocked   TemplateKind = "account-unblocked"
	TemplateAccountRemoved     TemplateKind = "account-removed"
)

// Notifier delivers templated messages. Calls are fire-and-forget: failures
// are logged by callers, never retried.
type Notifier interface {
	Send(ctx context.Context, template TemplateKind, name, email, url, locale string) error
}

// NotifierFunc adapts a function to the Notifier interface.
type NotifierFunc func(ctx context.Context, template TemplateKind, name, email, url, locale string) error

func (f NotifierFunc) Send(ctx context.Context, template TemplateKind, name, email, url, locale string) error {
	if f == nil {
		return nil
	}
	return f(ctx, template, name, email, url, locale)
}

type noopNotifier struct{}

func (noopNotifier) Send(context.Context, TemplateKind, string, string, string, string) error {
	return nil
}

func normalizeNotifier(n Notifier) Notifier {
	if n == nil {
		return noopNotifier{}
	}
	return n
}

// Config holds account subsystem options.
type Config interface {
	GetSigningKey() string
	GetIssuer() string
	GetMaxFailedLogins() int
	GetSessionTokenExpiration() int
	// GetRegistrationGracePeriod returns a time.ParseDuration pattern, e.g.
	// "48h". Self-registration tokens live for half of it; accounts that do
	// not activate within it are swept.
	GetRegistrationGracePeriod() string
	// GetAutoUnblockWindow returns the pattern after which threshold blocks
	// are lifted automatically.
	GetAutoUnblockWindow() string
	GetActivationURL() string
	GetPasswordResetURL() string
	GetEmailConfirmURL() string
	GetDefaultLanguage() string
}

type defLogger struct{}

func (d defLogger) Error(format string, args ...any) {
	fmt.Printf("[ERR] ACCOUNTS "+newline(format), args...)
}

func (d defLogger) Warn(format string, args ...any) {
	fmt.Printf("[WRN] ACCOUNTS "+newline(format), args...)
}

func (d defLogger) Info(format string, args ...any) {
	fmt.Printf("[INF] ACCOUNTS "+newline(format), args...)
}

func (d defLogger) Debug(format string, args ...any) {
	fmt.Printf("[DBG] ACCOUNTS "+newline(format), args...)
}

func newline(s string) string {
	if len(s) > 0 && s[len(s)-1] != '\n' {
		s += "\n"
	}
	return s
}
