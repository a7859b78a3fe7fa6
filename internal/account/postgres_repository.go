package account

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresRepository implements Repository using PostgreSQL.
type PostgresRepository struct {
	db *pgxpool.Pool
}

// NewPostgresRepository builds a Postgres-backed account repository.
func NewPostgresRepository(db *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const accountColumns = `id, phone, name, alias, password_hash, otp_code, otp_expiry, session_key, session_key_expiry, created_at`

// Create inserts a new account.
func (r *PostgresRepository) Create(ctx context.Context, acc Account) error {
	accID, err := uuid.Parse(acc.ID)
	if err != nil {
		return err
	}
	_, err = r.db.Exec(ctx, `INSERT INTO accounts_auth (id, phone, name, alias, password_hash, created_at)
        VALUES ($1, $2, $3, $4, $5, $6)`, accID, acc.Phone, acc.Name, acc.Alias, acc.PasswordHash, acc.CreatedAt.UTC())
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return ErrDuplicate
	}
	return err
}

// FindByID fetches an account by identifier.
func (r *PostgresRepository) FindByID(ctx context.Context, id string) (Account, error) {
	accID, err := uuid.Parse(id)
	if err != nil {
		return Account{}, ErrNotFound
	}
	return r.scanOne(r.db.QueryRow(ctx, `SELECT `+accountColumns+` FROM accounts_auth WHERE id = $1`, accID))
}

// FindByPhone fetches an account by phone number.
func (r *PostgresRepository) FindByPhone(ctx context.Context, phone string) (Account, error) {
	return r.scanOne(r.db.QueryRow(ctx, `SELECT `+accountColumns+` FROM accounts_auth WHERE phone = $1`, phone))
}

// FindByAlias fetches an account by payment alias.
func (r *PostgresRepository) FindByAlias(ctx context.Context, alias string) (Account, error) {
	return r.scanOne(r.db.QueryRow(ctx, `SELECT `+accountColumns+` FROM accounts_auth WHERE alias = $1`, alias))
}

// SetOTP stores a pending one-time code, replacing any previous one.
func (r *PostgresRepository) SetOTP(ctx context.Context, id string, code int, expiry time.Time) error {
	return r.update(ctx, id, `UPDATE accounts_auth SET otp_code = $2, otp_expiry = $3 WHERE id = $1`, code, expiry.UTC())
}

// ClearOTP removes the pending one-time code.
func (r *PostgresRepository) ClearOTP(ctx context.Context, id string) error {
	return r.update(ctx, id, `UPDATE accounts_auth SET otp_code = NULL, otp_expiry = NULL WHERE id = $1`)
}

// SetSession stores a fresh session key and its expiry.
func (r *PostgresRepository) SetSession(ctx context.Context, id string, key []byte, expiry time.Time) error {
	return r.update(ctx, id, `UPDATE accounts_auth SET session_key = $2, session_key_expiry = $3 WHERE id = $1`, key, expiry.UTC())
}

// ClearSession drops a stale session key.
func (r *PostgresRepository) ClearSession(ctx context.Context, id string) error {
	return r.update(ctx, id, `UPDATE accounts_auth SET session_key = NULL, session_key_expiry = NULL WHERE id = $1`)
}

func (r *PostgresRepository) update(ctx context.Context, id, query string, args ...any) error {
	accID, err := uuid.Parse(id)
	if err != nil {
		return ErrNotFound
	}
	all := append([]any{accID}, args...)
	cmd, err := r.db.Exec(ctx, query, all...)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *PostgresRepository) scanOne(row pgx.Row) (Account, error) {
	var (
		acc       Account
		id        uuid.UUID
		createdAt time.Time
	)
	err := row.Scan(&id, &acc.Phone, &acc.Name, &acc.Alias, &acc.PasswordHash,
		&acc.OTPCode, &acc.OTPExpiry, &acc.SessionKey, &acc.SessionKeyExpiry, &createdAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Account{}, ErrNotFound
		}
		return Account{}, err
	}
	acc.ID = id.String()
	acc.CreatedAt = createdAt.UTC()
	return acc, nil
}
