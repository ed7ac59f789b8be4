package accounts

import (
	"context"
	"database/sql"
	"errors"
	"log"
	"strings"

	repository "github.com/goliatone/go-repository-bun"
	"github.com/uptrace/bun"
)

// RepositoryManager exposes all repositories
type RepositoryManager interface {
	repository.Validator
	repository.TransactionManager
	Accounts() CredentialStore
	Tokens() TokenStore
}

type mngr struct {
	db       *bun.DB
	accounts CredentialStore
	tokens   TokenStore
}

func NewRepositoryManager(db *bun.DB) RepositoryManager {
	return &mngr{
		db:       db,
		accounts: NewAccountsRepository(db),
		tokens:   NewTokensRepository(db),
	}
}

func (m mngr) Validate() error {
	if m.accounts == nil {
		return errors.New("repository accounts should be initialized")
	}

	if m.tokens == nil {
		return errors.New("repository tokens should be initialized")
	}

	return nil
}

func (m mngr) MustValidate() {
	if err := m.Validate(); err != nil {
		log.Panic(err)
	}
}

func (m mngr) RunInTx(ctx context.Context, opts *sql.TxOptions, f func(ctx context.Context, tx bun.Tx) error) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
		return m.db.RunInTx(ctx, opts, f)
	}
}

func (m mngr) Accounts() CredentialStore {
	return m.accounts
}

func (m mngr) Tokens() TokenStore {
	return m.tokens
}

// isUniqueViolation sniffs driver-specific unique constraint errors. Covers
// the sqlite driver used in tests and postgres in deployments.
func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") ||
		strings.Contains(msg, "duplicate key value violates unique constraint") ||
		strings.Contains(msg, "constraint failed")
}
