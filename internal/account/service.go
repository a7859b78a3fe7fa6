package account

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/text-pay/text_pay/internal/ledger"
)

// ErrInvalidInput indicates a registration field failed validation.
var ErrInvalidInput = errors.New("invalid registration input")

// Service manages account lifecycle and balance lookups.
type Service struct {
	repo   Repository
	ledger ledger.Ledger
}

// NewService creates a new account service.
func NewService(repo Repository, ledgerBackend ledger.Ledger) *Service {
	return &Service{repo: repo, ledger: ledgerBackend}
}

// RegisterInput captures data required to open an account.
type RegisterInput struct {
	Phone    string
	Name     string
	Alias    string
	Password string
}

// Register creates an account with a hashed password and provisions its
// ledger account with a zero balance.
func (s *Service) Register(ctx context.Context, input RegisterInput) (Account, error) {
	phone := NormalizePhone(input.Phone)
	if phone == "" || strings.TrimSpace(input.Name) == "" || strings.TrimSpace(input.Alias) == "" {
		return Account{}, ErrInvalidInput
	}
	if len(input.Password) < 6 {
		return Account{}, fmt.Errorf("%w: password must be at least 6 characters", ErrInvalidInput)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(input.Password), bcrypt.DefaultCost)
	if err != nil {
		return Account{}, err
	}

	acc := Account{
		ID:           uuid.NewString(),
		Phone:        phone,
		Name:         strings.TrimSpace(input.Name),
		Alias:        strings.TrimSpace(input.Alias),
		PasswordHash: hash,
		CreatedAt:    time.Now().UTC(),
	}

	if err := s.ledger.EnsureAccount(ctx, acc.LedgerCode()); err != nil {
		return Account{}, err
	}
	if err := s.repo.Create(ctx, acc); err != nil {
		return Account{}, err
	}

	return acc, nil
}

// Balance returns the current ledger balance for the account in minor units.
func (s *Service) Balance(ctx context.Context, acc Account) (int64, error) {
	return s.ledger.Balance(ctx, acc.LedgerCode())
}

// NormalizePhone strips a leading plus sign and every non-digit character,
// mirroring how the SMS gateway reports sender numbers.
func NormalizePhone(raw string) string {
	var b strings.Builder
	for _, r := range raw {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
