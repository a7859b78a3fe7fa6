package account

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrNotFound indicates no account matches the lookup key.
	ErrNotFound = errors.New("account not found")

	// ErrDuplicate indicates the phone number or alias is already registered.
	ErrDuplicate = errors.New("account already exists")
)

// Repository persists accounts and their authentication fields.
type Repository interface {
	Create(ctx context.Context, acc Account) error
	FindByID(ctx context.Context, id string) (Account, error)
	FindByPhone(ctx context.Context, phone string) (Account, error)
	FindByAlias(ctx context.Context, alias string) (Account, error)

	// SetOTP stores a pending one-time code, overwriting any previous one.
	SetOTP(ctx context.Context, id string, code int, expiry time.Time) error
	// ClearOTP removes the pending one-time code after consumption.
	ClearOTP(ctx context.Context, id string) error

	// SetSession stores a fresh session key and its expiry.
	SetSession(ctx context.Context, id string, key []byte, expiry time.Time) error
	// ClearSession drops a stale session key.
	ClearSession(ctx context.Context, id string) error
}
