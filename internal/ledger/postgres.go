package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresLedger persists ledger entries in PostgreSQL ensuring double-entry balance.
type PostgresLedger struct {
	db *pgxpool.Pool
}

// NewPostgresLedger constructs a Postgres-backed ledger implementation.
func NewPostgresLedger(db *pgxpool.Pool) *PostgresLedger {
	return &PostgresLedger{db: db}
}

// EnsureAccount guarantees an account exists for the provided code.
func (l *PostgresLedger) EnsureAccount(ctx context.Context, code string) error {
	_, err := l.db.Exec(ctx, `INSERT INTO accounts (id, code) VALUES ($1, $2)
        ON CONFLICT (code) DO NOTHING`, uuid.New(), code)
	return err
}

// Balance returns the summed balance for the specified account code.
func (l *PostgresLedger) Balance(ctx context.Context, code string) (int64, error) {
	const query = `
        SELECT COALESCE(SUM(e.amount), 0)
        FROM entries e
        INNER JOIN accounts a ON a.id = e.account_id
        WHERE a.code = $1`
	var balance int64
	if err := l.db.QueryRow(ctx, query, code).Scan(&balance); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, ErrAccountNotFound
		}
		return 0, err
	}
	return balance, nil
}

// Transfer records a balanced posting between two accounts. The source row is
// locked with SELECT ... FOR UPDATE so concurrent postings against the same
// sender serialize on the balance check-and-debit; two postings that would
// jointly overdraw the account cannot both commit.
func (l *PostgresLedger) Transfer(ctx context.Context, p Posting) (TransactionResult, error) {
	if err := validatePosting(p); err != nil {
		return TransactionResult{}, err
	}

	tx, err := l.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return TransactionResult{}, err
	}
	defer tx.Rollback(ctx) // nolint:errcheck

	// Lock both account rows in code order so opposing transfers between the
	// same pair cannot deadlock.
	first, second := p.FromCode, p.ToCode
	if second < first {
		first, second = second, first
	}
	lockedIDs := map[string]uuid.UUID{}
	for _, code := range []string{first, second} {
		id, err := accountIDForCode(ctx, tx, code)
		if err != nil {
			return TransactionResult{}, err
		}
		lockedIDs[code] = id
	}
	fromAccountID := lockedIDs[p.FromCode]
	toAccountID := lockedIDs[p.ToCode]

	const existingTxQuery = `SELECT id, status FROM transactions WHERE client_tx_id = $1 AND kind = $2`
	var existingTxID uuid.UUID
	var existingStatus string
	if err := tx.QueryRow(ctx, existingTxQuery, p.ClientTxID, p.Kind).Scan(&existingTxID, &existingStatus); err != nil {
		if !errors.Is(err, pgx.ErrNoRows) {
			return TransactionResult{}, err
		}
	} else {
		fromBal, err := balanceForAccount(ctx, tx, fromAccountID)
		if err != nil {
			return TransactionResult{}, err
		}
		toBal, err := balanceForAccount(ctx, tx, toAccountID)
		if err != nil {
			return TransactionResult{}, err
		}
		return TransactionResult{
			TransactionID: existingTxID.String(),
			Status:        existingStatus,
			FromBalance:   fromBal,
			ToBalance:     toBal,
		}, ErrDuplicateTransaction
	}

	now := time.Now().UTC()
	txID := uuid.New()
	if _, err := tx.Exec(ctx, `INSERT INTO transactions (id, client_tx_id, kind, status, memo, created_at)
        VALUES ($1, $2, $3, $4, $5, $6)`, txID, p.ClientTxID, p.Kind, StatusPending, p.Memo, now); err != nil {
		return TransactionResult{}, err
	}

	fromBalance, err := balanceForAccount(ctx, tx, fromAccountID)
	if err != nil {
		return TransactionResult{}, err
	}
	if fromBalance < p.Amount {
		// Keep the attempt on record: flip the row to failed and commit it,
		// posting no entries.
		if _, err := tx.Exec(ctx, `UPDATE transactions SET status = $2, completed_at = $3 WHERE id = $1`,
			txID, StatusFailed, time.Now().UTC()); err != nil {
			return TransactionResult{}, err
		}
		if err := tx.Commit(ctx); err != nil {
			return TransactionResult{}, err
		}
		return TransactionResult{TransactionID: txID.String(), Status: StatusFailed, FromBalance: fromBalance}, ErrInsufficientFunds
	}

	toBalance, err := balanceForAccount(ctx, tx, toAccountID)
	if err != nil {
		return TransactionResult{}, err
	}

	if _, err := tx.Exec(ctx, `INSERT INTO entries (id, transaction_id, account_id, amount) VALUES ($1, $2, $3, $4)`,
		uuid.New(), txID, fromAccountID, -p.Amount); err != nil {
		return TransactionResult{}, err
	}
	if _, err := tx.Exec(ctx, `INSERT INTO entries (id, transaction_id, account_id, amount) VALUES ($1, $2, $3, $4)`,
		uuid.New(), txID, toAccountID, p.Amount); err != nil {
		return TransactionResult{}, err
	}

	if _, err := tx.Exec(ctx, `UPDATE transactions SET status = $2, completed_at = $3 WHERE id = $1`,
		txID, StatusSuccess, time.Now().UTC()); err != nil {
		return TransactionResult{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return TransactionResult{}, err
	}

	return TransactionResult{
		TransactionID: txID.String(),
		Status:        StatusSuccess,
		FromBalance:   fromBalance - p.Amount,
		ToBalance:     toBalance + p.Amount,
	}, nil
}

func accountIDForCode(ctx context.Context, tx pgx.Tx, code string) (uuid.UUID, error) {
	const query = `SELECT id FROM accounts WHERE code = $1 FOR UPDATE`
	var id uuid.UUID
	if err := tx.QueryRow(ctx, query, code).Scan(&id); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return uuid.Nil, fmt.Errorf("account %s: %w", code, ErrAccountNotFound)
		}
		return uuid.Nil, err
	}
	return id, nil
}

func balanceForAccount(ctx context.Context, tx pgx.Tx, accountID uuid.UUID) (int64, error) {
	const query = `SELECT COALESCE(SUM(amount), 0) FROM entries WHERE account_id = $1`
	var balance int64
	if err := tx.QueryRow(ctx, query, accountID).Scan(&balance); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, nil
		}
		return 0, err
	}
	return balance, nil
}
