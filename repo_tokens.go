package accounts

import (
	"context"
	"database/sql"
	"errors"

	goerrors "github.com/goliatone/go-errors"
	repository "github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

type tokensRepo struct {
	repository.Repository[*ActionToken]
	db *bun.DB
}

var _ TokenStore = (*tokensRepo)(nil)

// NewTokensRepository returns a bun-backed TokenStore.
func NewTokensRepository(db *bun.DB) TokenStore {
	repo := repository.NewRepository[*ActionToken](db, repository.ModelHandlers[*ActionToken]{
		NewRecord: func() *ActionToken { return &ActionToken{} },
		GetID: func(t *ActionToken) uuid.UUID {
			if t == nil {
				return uuid.Nil
			}
			return t.ID
		},
		SetID: func(t *ActionToken, id uuid.UUID) {
			if t != nil {
				t.ID = id
			}
		},
		GetIdentifier: func() string {
			return "value"
		},
	})

	return &tokensRepo{
		Repository: repo,
		db:         db,
	}
}

func (r *tokensRepo) FindByValue(ctx context.Context, value string) (*ActionToken, error) {
	record := &ActionToken{}
	err := r.db.NewSelect().
		Model(record).
		Where("?TableAlias.value = ?", value).
		Limit(1).
		Scan(ctx)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrTokenNotFound
		}
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "token lookup failed")
	}

	return record, nil
}

func (r *tokensRepo) FindByKindAndAccount(ctx context.Context, kind TokenKind, accountID uuid.UUID) (*ActionToken, error) {
	record := &ActionToken{}
	err := r.db.NewSelect().
		Model(record).
		Where("?TableAlias.kind = ?", kind).
		Where("?TableAlias.account_id = ?", accountID).
		Limit(1).
		Scan(ctx)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrTokenNotFound
		}
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "token lookup failed")
	}

	return record, nil
}

func (r *tokensRepo) FindByKind(ctx context.Context, kind TokenKind) ([]*ActionToken, error) {
	var records []*ActionToken
	err := r.db.NewSelect().
		Model(&records).
		Where("?TableAlias.kind = ?", kind).
		Order("tok.created_at ASC").
		Scan(ctx)

	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "token listing failed")
	}

	return records, nil
}

func (r *tokensRepo) Create(ctx context.Context, token *ActionToken) (*ActionToken, error) {
	if token.ID == uuid.Nil {
		token.ID = uuid.New()
	}

	record, err := r.Repository.CreateTx(ctx, r.db, token)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, goerrors.Wrap(err, goerrors.CategoryConflict, "token value already exists")
		}
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "token insert failed")
	}

	return record, nil
}

func (r *tokensRepo) Update(ctx context.Context, token *ActionToken) (*ActionToken, error) {
	record, err := r.Repository.UpdateTx(ctx, r.db, token, repository.UpdateByID(token.ID.String()))
	if err != nil {
		if repository.IsRecordNotFound(err) {
			return nil, ErrTokenNotFound
		}
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "token update failed")
	}

	return record, nil
}

func (r *tokensRepo) Remove(ctx context.Context, id uuid.UUID) error {
	res, err := r.db.NewDelete().
		Model((*ActionToken)(nil)).
		Where("?TableAlias.id = ?", id).
		Exec(ctx)
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "token delete failed")
	}

	if rows, err := res.RowsAffected(); err == nil && rows == 0 {
		return ErrTokenNotFound
	}

	return nil
}

// RemoveByAccount drops every token owned by the account. Removing nothing
// is not an error; the sweeps rely on that idempotence.
func (r *tokensRepo) RemoveByAccount(ctx context.Context, accountID uuid.UUID) error {
	_, err := r.db.NewDelete().
		Model((*ActionToken)(nil)).
		Where("?TableAlias.account_id = ?", accountID).
		Exec(ctx)
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "token cleanup failed")
	}

	return nil
}

func (r *tokensRepo) RemoveByKindAndAccount(ctx context.Context, kind TokenKind, accountID uuid.UUID) error {
	_, err := r.db.NewDelete().
		Model((*ActionToken)(nil)).
		Where("?TableAlias.kind = ?", kind).
		Where("?TableAlias.account_id = ?", accountID).
		Exec(ctx)
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "token cleanup failed")
	}

	return nil
}
