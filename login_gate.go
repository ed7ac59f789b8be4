package accounts

import (
	"context"
	"time"

	goerrors "github.com/goliatone/go-errors"
)

// LoginGate is the login state machine: it validates credentials, tracks
// failed attempts, enforces lockout, and records activity metadata.
type LoginGate struct {
	store        CredentialStore
	issuer       *TokenIssuer
	notifier     Notifier
	config       Config
	logger       Logger
	activitySink ActivitySink
	now          func() time.Time
}

// NewLoginGate returns a new LoginGate.
func NewLoginGate(store CredentialStore, issuer *TokenIssuer, notifier Notifier, cfg Config) *LoginGate {
	return &LoginGate{
		store:        store,
		issuer:       issuer,
		notifier:     normalizeNotifier(notifier),
		config:       cfg,
		logger:       defLogger{},
		activitySink: noopActivitySink{},
		now:          time.Now,
	}
}

func (g *LoginGate) WithLogger(logger Logger) *LoginGate {
	if logger != nil {
		g.logger = logger
	}
	return g
}

// WithActivitySink configures an ActivitySink for emitting auth events.
func (g *LoginGate) WithActivitySink(sink ActivitySink) *LoginGate {
	g.activitySink = normalizeActivitySink(sink)
	return g
}

// WithClock injects a custom clock (useful for tests).
func (g *LoginGate) WithClock(clock func() time.Time) *LoginGate {
	if clock != nil {
		g.now = clock
	}
	return g
}

// AttemptLogin verifies the credentials for login and returns a session
// credential on success.
//
// The check ordering is load-bearing: activation and block checks happen
// before password verification so the failure counter does not advance for
// accounts that cannot log in regardless of password correctness, while
// failure metadata (IP/time) is still recorded for audit on every attempt.
func (g *LoginGate) AttemptLogin(ctx context.Context, login, password, clientIP string) (string, error) {
	account, err := g.store.FindByLogin(ctx, login)
	if err != nil {
		if IsNotFound(err) {
			// Never reveal whether the login exists.
			g.emitLoginFailure(ctx, login, "", "unknown login")
			return "", ErrInvalidCredentials
		}
		return "", goerrors.Wrap(err, goerrors.CategoryInternal, "failed to retrieve account during login")
	}

	now := g.now()

	if !account.Active {
		g.recordMetadataOnly(ctx, account, now, clientIP)
		g.emitLoginFailure(ctx, login, account.ID.String(), "not activated")
		return "", ErrAccountNotActivated
	}

	if account.Blocked {
		g.recordMetadataOnly(ctx, account, now, clientIP)
		g.emitLoginFailure(ctx, login, account.ID.String(), "blocked")
		if account.AdminBlocked() {
			return "", ErrBlockedByAdmin
		}
		return "", ErrBlockedByFailedAttempts
	}

	// Pre-emptive check: the account may already be over the threshold while
	// the blocked bit has not yet been set by the threshold-crossing write.
	if account.Activity.FailedLoginCount > g.config.GetMaxFailedLogins() {
		g.recordMetadataOnly(ctx, account, now, clientIP)
		g.emitLoginFailure(ctx, login, account.ID.String(), "over threshold")
		return "", ErrBlockedByFailedAttempts
	}

	if err := ComparePasswordAndHash(password, account.PasswordHash); err != nil {
		return "", g.handleFailedAttempt(ctx, account, now, clientIP)
	}

	account.RecordSuccessfulLogin(now, clientIP)
	if account, err = g.store.Update(ctx, account); err != nil {
		return "", goerrors.Wrap(err, goerrors.CategoryInternal, "failed to track successful login")
	}

	ttl := time.Duration(g.config.GetSessionTokenExpiration()) * time.Hour
	token, err := g.issuer.IssueSessionToken(account, ttl)
	if err != nil {
		return "", err
	}

	emitActivity(ctx, g.activitySink, g.logger, ActivityEvent{
		EventType: ActivityEventLoginSuccess,
		Actor:     ActorRef{ID: account.ID.String(), Type: "user"},
		AccountID: account.ID.String(),
		Metadata:  map[string]any{"login": login, "ip": clientIP},
	})

	return token, nil
}

func (g *LoginGate) handleFailedAttempt(ctx context.Context, account *Account, now time.Time, clientIP string) error {
	account.RecordFailedLogin(now, clientIP)

	crossed := account.Activity.FailedLoginCount > g.config.GetMaxFailedLogins()
	if crossed {
		account.BlockByFailedAttempts(now)
	}

	if _, err := g.store.Update(ctx, account); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to track login attempt")
	}

	g.emitLoginFailure(ctx, account.Login, account.ID.String(), "bad password")

	template := TemplateFailedLoginNotice
	if crossed {
		template = TemplateAccountBlocked
	}
	g.notify(ctx, template, account, "")

	if crossed {
		return ErrBlockedByFailedAttempts
	}
	return ErrInvalidCredentials
}

// recordMetadataOnly persists failure time/IP without touching the counter.
// A write failure here only costs audit data, so it is logged and swallowed.
func (g *LoginGate) recordMetadataOnly(ctx context.Context, account *Account, now time.Time, clientIP string) {
	account.RecordFailedLoginMetadata(now, clientIP)
	if _, err := g.store.Update(ctx, account); err != nil {
		g.logger.Warn("failed to record login attempt metadata for account %s: %v", account.ID.String(), err)
	}
}

func (g *LoginGate) notify(ctx context.Context, template TemplateKind, account *Account, url string) {
	locale := account.Language
	if locale == "" {
		locale = g.config.GetDefaultLanguage()
	}
	if err := g.notifier.Send(ctx, template, account.FirstName, account.Email, url, locale); err != nil {
		g.logger.Warn("notifier send failed for template %s: %v", string(template), err)
	}
}

func (g *LoginGate) emitLoginFailure(ctx context.Context, login, accountID, reason string) {
	emitActivity(ctx, g.activitySink, g.logger, ActivityEvent{
		EventType: ActivityEventLoginFailure,
		Actor:     ActorRef{Type: "unknown"},
		AccountID: accountID,
		Metadata:  map[string]any{"login": login, "reason": reason},
	})
}
