package ledger

import (
	"context"
	"errors"
)

var (
	// ErrInsufficientFunds occurs when the source account lacks available balance
	// to cover a requested posting.
	ErrInsufficientFunds = errors.New("insufficient funds")

	// ErrSelfTransfer indicates source and destination are the same account.
	ErrSelfTransfer = errors.New("cannot transfer to self")

	// ErrInvalidAmount indicates the posting amount is zero or negative.
	ErrInvalidAmount = errors.New("amount must be positive")

	// ErrDuplicateTransaction indicates the provided client transaction identifier
	// already exists and therefore the operation should be treated as idempotent.
	ErrDuplicateTransaction = errors.New("duplicate transaction")

	// ErrAccountNotFound indicates a posting references an unknown ledger account.
	ErrAccountNotFound = errors.New("ledger account not found")
)

const (
	// StatusPending marks a transaction whose entries have not been posted yet.
	StatusPending = "pending"
	// StatusSuccess marks a completed, balanced transaction.
	StatusSuccess = "success"
	// StatusFailed marks a transaction whose posting was rejected or rolled back.
	StatusFailed = "failed"

	// KindPayment is a transfer where the receiver was resolved by phone number.
	KindPayment = "payment"
	// KindAliasTransfer is a transfer where the receiver was resolved by payment alias.
	KindAliasTransfer = "alias_transfer"
)

// Posting describes one requested value transfer between two ledger accounts.
type Posting struct {
	FromCode   string
	ToCode     string
	Kind       string
	Memo       string
	ClientTxID string
	Amount     int64
}

// TransactionResult captures the outcome of a ledger posting.
type TransactionResult struct {
	TransactionID string
	Status        string
	FromBalance   int64
	ToBalance     int64
}

// Ledger defines the contract implemented by ledger backends (e.g. Postgres).
//
// Transfer must perform the balance check and the debit/credit pair inside one
// atomic unit, serializing concurrent postings against the same source account.
// A transaction record is created for every attempt and finishes in either
// success or failed status, never pending.
type Ledger interface {
	EnsureAccount(ctx context.Context, code string) error
	Balance(ctx context.Context, code string) (int64, error)
	Transfer(ctx context.Context, posting Posting) (TransactionResult, error)
}

func validatePosting(p Posting) error {
	if p.Amount <= 0 {
		return ErrInvalidAmount
	}
	if p.FromCode == p.ToCode {
		return ErrSelfTransfer
	}
	return nil
}
