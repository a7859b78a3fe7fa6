package ledger

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

type inMemoryLedger struct {
	mu           sync.RWMutex
	balances     map[string]int64
	transactions map[string]TransactionResult // keyed by kind:clientTxID
	statuses     map[string]string            // keyed by transaction ID
}

// NewInMemory creates a concurrency-safe in-memory ledger useful for unit tests
// and standalone development runs.
func NewInMemory() Ledger {
	return &inMemoryLedger{
		balances:     make(map[string]int64),
		transactions: make(map[string]TransactionResult),
		statuses:     make(map[string]string),
	}
}

func (l *inMemoryLedger) EnsureAccount(_ context.Context, code string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, exists := l.balances[code]; !exists {
		l.balances[code] = 0
	}
	return nil
}

func (l *inMemoryLedger) Balance(_ context.Context, code string) (int64, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	balance, exists := l.balances[code]
	if !exists {
		return 0, ErrAccountNotFound
	}
	return balance, nil
}

func (l *inMemoryLedger) Transfer(_ context.Context, p Posting) (TransactionResult, error) {
	if err := validatePosting(p); err != nil {
		return TransactionResult{}, err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	dupKey := p.Kind + ":" + p.ClientTxID
	if res, exists := l.transactions[dupKey]; exists {
		return res, ErrDuplicateTransaction
	}

	fromBalance, ok := l.balances[p.FromCode]
	if !ok {
		return TransactionResult{}, ErrAccountNotFound
	}
	toBalance, ok := l.balances[p.ToCode]
	if !ok {
		return TransactionResult{}, ErrAccountNotFound
	}

	txID := uuid.NewString()

	if fromBalance < p.Amount {
		res := TransactionResult{TransactionID: txID, Status: StatusFailed, FromBalance: fromBalance}
		l.transactions[dupKey] = res
		l.statuses[txID] = StatusFailed
		return res, ErrInsufficientFunds
	}

	fromBalance -= p.Amount
	toBalance += p.Amount
	l.balances[p.FromCode] = fromBalance
	l.balances[p.ToCode] = toBalance

	res := TransactionResult{
		TransactionID: txID,
		Status:        StatusSuccess,
		FromBalance:   fromBalance,
		ToBalance:     toBalance,
	}
	l.transactions[dupKey] = res
	l.statuses[txID] = StatusSuccess
	return res, nil
}
