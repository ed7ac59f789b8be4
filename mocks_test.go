package accounts_test

import (
	"context"
	"strings"
	"sync"
	"time"

	accounts "github.com/pkwiatkowski242447/eldorado-accounts"

	goerrors "github.com/goliatone/go-errors"
	"github.com/google/uuid"
)

// memStore is an in-memory CredentialStore. It clones records on the way in
// and out so optimistic locking behaves like a real database: a stale Version
// on Update fails with ErrOptimisticLock instead of silently matching the
// shared pointer.
type memStore struct {
	mu       sync.Mutex
	accounts map[uuid.UUID]*accounts.Account
}

func newMemStore() *memStore {
	return &memStore{accounts: map[uuid.UUID]*accounts.Account{}}
}

func cloneAccount(a *accounts.Account) *accounts.Account {
	if a == nil {
		return nil
	}
	dup := *a
	if a.BlockedTime != nil {
		t := *a.BlockedTime
		dup.BlockedTime = &t
	}
	dup.Levels = make([]*accounts.UserLevel, 0, len(a.Levels))
	for _, lvl := range a.Levels {
		l := *lvl
		dup.Levels = append(dup.Levels, &l)
	}
	return &dup
}

func (s *memStore) FindByID(_ context.Context, id uuid.UUID) (*accounts.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if a, ok := s.accounts[id]; ok {
		return cloneAccount(a), nil
	}
	return nil, accounts.ErrAccountNotFound
}

func (s *memStore) FindByLogin(_ context.Context, login string) (*accounts.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, a := range s.accounts {
		if a.Login == login {
			return cloneAccount(a), nil
		}
	}
	return nil, accounts.ErrAccountNotFound
}

func (s *memStore) FindByEmail(_ context.Context, email string) (*accounts.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, a := range s.accounts {
		if strings.EqualFold(a.Email, email) {
			return cloneAccount(a), nil
		}
	}
	return nil, accounts.ErrAccountNotFound
}

func (s *memStore) List(_ context.Context, filter accounts.AccountFilter) ([]*accounts.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*accounts.Account
	for _, a := range s.accounts {
		if matchesFilter(a, filter) {
			out = append(out, cloneAccount(a))
		}
	}
	return out, nil
}

func (s *memStore) Count(ctx context.Context, filter accounts.AccountFilter) (int, error) {
	records, err := s.List(ctx, filter)
	return len(records), err
}

func matchesFilter(a *accounts.Account, filter accounts.AccountFilter) bool {
	if filter.Active != nil && a.Active != *filter.Active {
		return false
	}
	if filter.Blocked != nil && a.Blocked != *filter.Blocked {
		return false
	}
	if filter.AutoBlocked != nil && a.AutoBlocked() != *filter.AutoBlocked {
		return false
	}
	if filter.Level != "" && !a.HasLevel(filter.Level) {
		return false
	}
	if filter.CreatedBefore != nil && (a.CreatedAt == nil || !a.CreatedAt.Before(*filter.CreatedBefore)) {
		return false
	}
	return true
}

func (s *memStore) Create(_ context.Context, account *accounts.Account) (*accounts.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, a := range s.accounts {
		if a.Login == account.Login || strings.EqualFold(a.Email, account.Email) {
			return nil, goerrors.New("login or email already taken", goerrors.CategoryConflict)
		}
	}
	s.accounts[account.ID] = cloneAccount(account)
	return cloneAccount(account), nil
}

func (s *memStore) Update(_ context.Context, account *accounts.Account) (*accounts.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	current, ok := s.accounts[account.ID]
	if !ok {
		return nil, accounts.ErrAccountNotFound
	}
	if current.Version != account.Version {
		return nil, accounts.ErrOptimisticLock
	}
	for _, a := range s.accounts {
		if a.ID != account.ID && strings.EqualFold(a.Email, account.Email) {
			return nil, goerrors.New("email already taken", goerrors.CategoryConflict)
		}
	}
	saved := cloneAccount(account)
	saved.Version++
	saved.Levels = current.Levels
	s.accounts[account.ID] = saved
	return cloneAccount(saved), nil
}

func (s *memStore) Remove(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.accounts[id]; !ok {
		return accounts.ErrAccountNotFound
	}
	delete(s.accounts, id)
	return nil
}

func (s *memStore) AddLevel(_ context.Context, level *accounts.UserLevel) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	account, ok := s.accounts[level.AccountID]
	if !ok {
		return accounts.ErrAccountNotFound
	}
	l := *level
	account.Levels = append(account.Levels, &l)
	return nil
}

func (s *memStore) RemoveLevel(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, account := range s.accounts {
		for i, lvl := range account.Levels {
			if lvl.ID == id {
				account.Levels = append(account.Levels[:i], account.Levels[i+1:]...)
				return nil
			}
		}
	}
	return accounts.ErrRoleNotFound
}

func (s *memStore) FindUnverifiedCreatedBefore(_ context.Context, cutoff time.Time) ([]*accounts.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*accounts.Account
	for _, a := range s.accounts {
		if !a.Active && a.CreatedAt != nil && a.CreatedAt.Before(cutoff) {
			out = append(out, cloneAccount(a))
		}
	}
	return out, nil
}

func (s *memStore) FindAutoBlockedBefore(_ context.Context, cutoff time.Time) ([]*accounts.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*accounts.Account
	for _, a := range s.accounts {
		if a.AutoBlocked() && !a.BlockedTime.After(cutoff) {
			out = append(out, cloneAccount(a))
		}
	}
	return out, nil
}

// mustGet fetches an account directly, failing loudly on a miss.
func (s *memStore) mustGet(id uuid.UUID) *accounts.Account {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.accounts[id]
	if !ok {
		panic("account not in store: " + id.String())
	}
	return cloneAccount(a)
}

func (s *memStore) has(id uuid.UUID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.accounts[id]
	return ok
}

// memTokens is an in-memory TokenStore.
type memTokens struct {
	mu     sync.Mutex
	tokens map[uuid.UUID]*accounts.ActionToken
	order  []uuid.UUID
}

func newMemTokens() *memTokens {
	return &memTokens{tokens: map[uuid.UUID]*accounts.ActionToken{}}
}

func cloneToken(t *accounts.ActionToken) *accounts.ActionToken {
	dup := *t
	return &dup
}

func (s *memTokens) FindByValue(_ context.Context, value string) (*accounts.ActionToken, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, t := range s.tokens {
		if t.Value == value {
			return cloneToken(t), nil
		}
	}
	return nil, accounts.ErrTokenNotFound
}

func (s *memTokens) FindByKindAndAccount(_ context.Context, kind accounts.TokenKind, accountID uuid.UUID) (*accounts.ActionToken, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, t := range s.tokens {
		if t.Kind == kind && t.AccountID == accountID {
			return cloneToken(t), nil
		}
	}
	return nil, accounts.ErrTokenNotFound
}

func (s *memTokens) FindByKind(_ context.Context, kind accounts.TokenKind) ([]*accounts.ActionToken, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*accounts.ActionToken
	for _, id := range s.order {
		if t, ok := s.tokens[id]; ok && t.Kind == kind {
			out = append(out, cloneToken(t))
		}
	}
	return out, nil
}

func (s *memTokens) Create(_ context.Context, token *accounts.ActionToken) (*accounts.ActionToken, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, t := range s.tokens {
		if t.Value == token.Value {
			return nil, goerrors.New("token value already exists", goerrors.CategoryConflict)
		}
	}
	s.tokens[token.ID] = cloneToken(token)
	s.order = append(s.order, token.ID)
	return cloneToken(token), nil
}

func (s *memTokens) Update(_ context.Context, token *accounts.ActionToken) (*accounts.ActionToken, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.tokens[token.ID]; !ok {
		return nil, accounts.ErrTokenNotFound
	}
	s.tokens[token.ID] = cloneToken(token)
	return cloneToken(token), nil
}

func (s *memTokens) Remove(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.tokens[id]; !ok {
		return accounts.ErrTokenNotFound
	}
	delete(s.tokens, id)
	return nil
}

func (s *memTokens) RemoveByAccount(_ context.Context, accountID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, t := range s.tokens {
		if t.AccountID == accountID {
			delete(s.tokens, id)
		}
	}
	return nil
}

func (s *memTokens) RemoveByKindAndAccount(_ context.Context, kind accounts.TokenKind, accountID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, t := range s.tokens {
		if t.Kind == kind && t.AccountID == accountID {
			delete(s.tokens, id)
		}
	}
	return nil
}

func (s *memTokens) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.tokens)
}

// sentMessage is one Notifier.Send call captured by recordingNotifier.
type sentMessage struct {
	Template accounts.TemplateKind
	Name     string
	Email    string
	URL      string
	Locale   string
}

type recordingNotifier struct {
	mu   sync.Mutex
	sent []sentMessage
}

func (n *recordingNotifier) Send(_ context.Context, template accounts.TemplateKind, name, email, url, locale string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, sentMessage{Template: template, Name: name, Email: email, URL: url, Locale: locale})
	return nil
}

func (n *recordingNotifier) last() (sentMessage, bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if len(n.sent) == 0 {
		return sentMessage{}, false
	}
	return n.sent[len(n.sent)-1], true
}

func (n *recordingNotifier) byTemplate(template accounts.TemplateKind) []sentMessage {
	n.mu.Lock()
	defer n.mu.Unlock()
	var out []sentMessage
	for _, m := range n.sent {
		if m.Template == template {
			out = append(out, m)
		}
	}
	return out
}

type recordingSink struct {
	mu     sync.Mutex
	events []accounts.ActivityEvent
}

func (s *recordingSink) Record(_ context.Context, event accounts.ActivityEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
	return nil
}

func (s *recordingSink) byType(eventType accounts.ActivityEventType) []accounts.ActivityEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []accounts.ActivityEvent
	for _, e := range s.events {
		if e.EventType == eventType {
			out = append(out, e)
		}
	}
	return out
}

func newTestConfig() *accounts.SimpleConfig {
	return &accounts.SimpleConfig{
		SigningKey:              "test-signing-key",
		Issuer:                  "test-issuer",
		MaxFailedLogins:         3,
		SessionTokenExpiration:  24,
		RegistrationGracePeriod: "24h",
		AutoUnblockWindow:       "2h",
		ActivationURL:           "https://app.example.com/activate",
		PasswordResetURL:        "https://app.example.com/reset",
		EmailConfirmURL:         "https://app.example.com/confirm-email",
		DefaultLanguage:         "en",
	}
}

// testClock is a mutable clock shared between the components under test.
type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock(start time.Time) *testClock {
	return &testClock{now: start}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}
