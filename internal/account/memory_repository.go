package account

import (
	"context"
	"sync"
	"time"
)

type memoryRepository struct {
	mu       sync.RWMutex
	accounts map[string]Account // keyed by ID
}

// NewMemoryRepository builds an in-memory account store for development and tests.
func NewMemoryRepository() Repository {
	return &memoryRepository{accounts: make(map[string]Account)}
}

func (r *memoryRepository) Create(_ context.Context, acc Account) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.accounts {
		if existing.Phone == acc.Phone || (acc.Alias != "" && existing.Alias == acc.Alias) {
			return ErrDuplicate
		}
	}
	r.accounts[acc.ID] = acc
	return nil
}

func (r *memoryRepository) FindByID(_ context.Context, id string) (Account, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	acc, ok := r.accounts[id]
	if !ok {
		return Account{}, ErrNotFound
	}
	return acc, nil
}

func (r *memoryRepository) FindByPhone(_ context.Context, phone string) (Account, error) {
	return r.findBy(func(a Account) bool { return a.Phone == phone })
}

func (r *memoryRepository) FindByAlias(_ context.Context, alias string) (Account, error) {
	return r.findBy(func(a Account) bool { return a.Alias != "" && a.Alias == alias })
}

func (r *memoryRepository) SetOTP(_ context.Context, id string, code int, expiry time.Time) error {
	return r.mutate(id, func(a *Account) {
		c := code
		e := expiry
		a.OTPCode = &c
		a.OTPExpiry = &e
	})
}

func (r *memoryRepository) ClearOTP(_ context.Context, id string) error {
	return r.mutate(id, func(a *Account) {
		a.OTPCode = nil
		a.OTPExpiry = nil
	})
}

func (r *memoryRepository) SetSession(_ context.Context, id string, key []byte, expiry time.Time) error {
	return r.mutate(id, func(a *Account) {
		a.SessionKey = append([]byte(nil), key...)
		e := expiry
		a.SessionKeyExpiry = &e
	})
}

func (r *memoryRepository) ClearSession(_ context.Context, id string) error {
	return r.mutate(id, func(a *Account) {
		a.SessionKey = nil
		a.SessionKeyExpiry = nil
	})
}

func (r *memoryRepository) findBy(match func(Account) bool) (Account, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, acc := range r.accounts {
		if match(acc) {
			return acc, nil
		}
	}
	return Account{}, ErrNotFound
}

func (r *memoryRepository) mutate(id string, fn func(*Account)) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	acc, ok := r.accounts[id]
	if !ok {
		return ErrNotFound
	}
	fn(&acc)
	r.accounts[id] = acc
	return nil
}
