package accounts

import (
	"context"
	"database/sql"
	"errors"
	"time"

	goerrors "github.com/goliatone/go-errors"
	repository "github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

type accountsRepo struct {
	repository.Repository[*Account]
	db *bun.DB
}

var _ CredentialStore = (*accountsRepo)(nil)

// NewAccountsRepository returns a bun-backed CredentialStore.
func NewAccountsRepository(db *bun.DB) CredentialStore {
	repo := repository.NewRepository[*Account](db, repository.ModelHandlers[*Account]{
		NewRecord: func() *Account { return &Account{} },
		GetID: func(a *Account) uuid.UUID {
			if a == nil {
				return uuid.Nil
			}
			return a.ID
		},
		SetID: func(a *Account, id uuid.UUID) {
			if a != nil {
				a.ID = id
			}
		},
		GetIdentifier: func() string {
			return "login"
		},
	})

	return &accountsRepo{
		Repository: repo,
		db:         db,
	}
}

func (r *accountsRepo) FindByID(ctx context.Context, id uuid.UUID) (*Account, error) {
	return r.findOne(ctx, "?TableAlias.id = ?", id)
}

func (r *accountsRepo) FindByLogin(ctx context.Context, login string) (*Account, error) {
	return r.findOne(ctx, "?TableAlias.login = ?", login)
}

func (r *accountsRepo) FindByEmail(ctx context.Context, email string) (*Account, error) {
	return r.findOne(ctx, "?TableAlias.email = ?", email)
}

func (r *accountsRepo) findOne(ctx context.Context, where string, arg any) (*Account, error) {
	record := &Account{}
	err := r.db.NewSelect().
		Model(record).
		Relation("Levels").
		Where(where, arg).
		Limit(1).
		Scan(ctx)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrAccountNotFound
		}
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "account lookup failed")
	}

	return record, nil
}

func (r *accountsRepo) List(ctx context.Context, filter AccountFilter) ([]*Account, error) {
	var records []*Account
	q := r.db.NewSelect().
		Model(&records).
		Relation("Levels").
		Order("acc.created_at ASC")

	q = applyAccountFilter(q, filter)

	if filter.Limit > 0 {
		q = q.Limit(filter.Limit)
	}
	if filter.Offset > 0 {
		q = q.Offset(filter.Offset)
	}

	if err := q.Scan(ctx); err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "account listing failed")
	}

	return records, nil
}

func (r *accountsRepo) Count(ctx context.Context, filter AccountFilter) (int, error) {
	q := r.db.NewSelect().Model((*Account)(nil))
	q = applyAccountFilter(q, filter)

	count, err := q.Count(ctx)
	if err != nil {
		return 0, goerrors.Wrap(err, goerrors.CategoryInternal, "account count failed")
	}

	return count, nil
}

func applyAccountFilter(q *bun.SelectQuery, filter AccountFilter) *bun.SelectQuery {
	if filter.Active != nil {
		q = q.Where("?TableAlias.is_active = ?", *filter.Active)
	}
	if filter.Blocked != nil {
		q = q.Where("?TableAlias.is_blocked = ?", *filter.Blocked)
	}
	if filter.AutoBlocked != nil {
		if *filter.AutoBlocked {
			q = q.Where("?TableAlias.is_blocked = TRUE").Where("?TableAlias.blocked_time IS NOT NULL")
		} else {
			q = q.Where("?TableAlias.is_blocked = TRUE").Where("?TableAlias.blocked_time IS NULL")
		}
	}
	if filter.Level != "" {
		q = q.Where("EXISTS (SELECT 1 FROM user_levels AS lvl WHERE lvl.account_id = ?TableAlias.id AND lvl.kind = ?)", filter.Level)
	}
	if filter.CreatedBefore != nil {
		q = q.Where("?TableAlias.created_at < ?", *filter.CreatedBefore)
	}
	return q
}

func (r *accountsRepo) Create(ctx context.Context, account *Account) (*Account, error) {
	prepareAccountDefaults(account)

	err := r.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if _, err := r.Repository.CreateTx(ctx, tx, account); err != nil {
			return err
		}

		for _, level := range account.Levels {
			if level.ID == uuid.Nil {
				level.ID = uuid.New()
			}
			level.AccountID = account.ID
			if _, err := tx.NewInsert().Model(level).Exec(ctx); err != nil {
				return err
			}
		}

		return nil
	})

	if err != nil {
		if isUniqueViolation(err) {
			return nil, goerrors.Wrap(err, goerrors.CategoryConflict, "login or email already taken")
		}
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "account insert failed")
	}

	return account, nil
}

// Update writes the account row guarded by a compare-and-increment on the
// version column. Zero rows affected with the row still present means a
// concurrent writer won; the caller gets ErrOptimisticLock and must refetch.
func (r *accountsRepo) Update(ctx context.Context, account *Account) (*Account, error) {
	expected := account.Version
	account.Version = expected + 1
	now := time.Now()
	account.UpdatedAt = &now

	res, err := r.db.NewUpdate().
		Model(account).
		WherePK().
		Where("?TableAlias.version = ?", expected).
		Exec(ctx)

	if err != nil {
		account.Version = expected
		if isUniqueViolation(err) {
			return nil, goerrors.Wrap(err, goerrors.CategoryConflict, "unique constraint violated on account update")
		}
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "account update failed")
	}

	rows, err := res.RowsAffected()
	if err != nil {
		account.Version = expected
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "account update failed")
	}

	if rows == 0 {
		account.Version = expected
		exists, err := r.db.NewSelect().
			Model((*Account)(nil)).
			Where("?TableAlias.id = ?", account.ID).
			Exists(ctx)
		if err != nil {
			return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "account update failed")
		}
		if !exists {
			return nil, ErrAccountNotFound
		}
		return nil, ErrOptimisticLock
	}

	return account, nil
}

func (r *accountsRepo) Remove(ctx context.Context, id uuid.UUID) error {
	return r.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if _, err := tx.NewDelete().
			Model((*UserLevel)(nil)).
			Where("?TableAlias.account_id = ?", id).
			Exec(ctx); err != nil {
			return goerrors.Wrap(err, goerrors.CategoryInternal, "role cleanup failed")
		}

		res, err := tx.NewDelete().
			Model((*Account)(nil)).
			Where("?TableAlias.id = ?", id).
			Exec(ctx)
		if err != nil {
			return goerrors.Wrap(err, goerrors.CategoryInternal, "account delete failed")
		}

		if rows, err := res.RowsAffected(); err == nil && rows == 0 {
			return ErrAccountNotFound
		}

		return nil
	})
}

func (r *accountsRepo) AddLevel(ctx context.Context, level *UserLevel) error {
	if level.ID == uuid.Nil {
		level.ID = uuid.New()
	}

	if _, err := r.db.NewInsert().Model(level).Exec(ctx); err != nil {
		if isUniqueViolation(err) {
			return goerrors.Wrap(err, goerrors.CategoryConflict, "role record already exists")
		}
		return goerrors.Wrap(err, goerrors.CategoryInternal, "role insert failed")
	}

	return nil
}

func (r *accountsRepo) RemoveLevel(ctx context.Context, id uuid.UUID) error {
	res, err := r.db.NewDelete().
		Model((*UserLevel)(nil)).
		Where("?TableAlias.id = ?", id).
		Exec(ctx)
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "role delete failed")
	}

	if rows, err := res.RowsAffected(); err == nil && rows == 0 {
		return ErrRoleNotFound
	}

	return nil
}

func (r *accountsRepo) FindUnverifiedCreatedBefore(ctx context.Context, cutoff time.Time) ([]*Account, error) {
	var records []*Account
	err := r.db.NewSelect().
		Model(&records).
		Relation("Levels").
		Where("?TableAlias.is_active = FALSE").
		Where("?TableAlias.created_at < ?", cutoff).
		Scan(ctx)

	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "stale registration lookup failed")
	}

	return records, nil
}

func (r *accountsRepo) FindAutoBlockedBefore(ctx context.Context, cutoff time.Time) ([]*Account, error) {
	var records []*Account
	err := r.db.NewSelect().
		Model(&records).
		Relation("Levels").
		Where("?TableAlias.is_blocked = TRUE").
		Where("?TableAlias.blocked_time IS NOT NULL").
		Where("?TableAlias.blocked_time <= ?", cutoff).
		Scan(ctx)

	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "expired lockout lookup failed")
	}

	return records, nil
}

func prepareAccountDefaults(record *Account) {
	if record == nil {
		return
	}

	if record.ID == uuid.Nil {
		record.ID = uuid.New()
	}

	if record.CreatedAt == nil {
		now := time.Now()
		record.CreatedAt = &now
	}
}
