package account

import (
	"context"
	"errors"
	"testing"

	"golang.org/x/crypto/bcrypt"

	"github.com/text-pay/text_pay/internal/ledger"
)

func TestRegisterCreatesLedgerAccount(t *testing.T) {
	repo := NewMemoryRepository()
	led := ledger.NewInMemory()
	svc := NewService(repo, led)

	ctx := context.Background()
	acc, err := svc.Register(ctx, RegisterInput{
		Phone:    "+91 98300-00001",
		Name:     "Asha",
		Alias:    "asha@textpay",
		Password: "hunter22",
	})
	if err != nil {
		t.Fatalf("register: %v", err)
	}

	if acc.Phone != "919830000001" {
		t.Fatalf("phone not normalized: %q", acc.Phone)
	}
	if err := bcrypt.CompareHashAndPassword(acc.PasswordHash, []byte("hunter22")); err != nil {
		t.Fatalf("password hash invalid: %v", err)
	}

	balance, err := svc.Balance(ctx, acc)
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	if balance != 0 {
		t.Fatalf("expected zero opening balance, got %d", balance)
	}

	if _, err := repo.FindByAlias(ctx, "asha@textpay"); err != nil {
		t.Fatalf("find by alias: %v", err)
	}
}

func TestRegisterRejectsDuplicatePhone(t *testing.T) {
	repo := NewMemoryRepository()
	svc := NewService(repo, ledger.NewInMemory())
	ctx := context.Background()

	input := RegisterInput{Phone: "9830000002", Name: "B", Alias: "b@textpay", Password: "secret1"}
	if _, err := svc.Register(ctx, input); err != nil {
		t.Fatalf("first register: %v", err)
	}
	input.Alias = "other@textpay"
	if _, err := svc.Register(ctx, input); !errors.Is(err, ErrDuplicate) {
		t.Fatalf("expected duplicate error, got %v", err)
	}
}

func TestRegisterValidatesInput(t *testing.T) {
	svc := NewService(NewMemoryRepository(), ledger.NewInMemory())
	ctx := context.Background()

	cases := []RegisterInput{
		{Phone: "", Name: "A", Alias: "a@textpay", Password: "secret1"},
		{Phone: "9830000003", Name: " ", Alias: "a@textpay", Password: "secret1"},
		{Phone: "9830000003", Name: "A", Alias: "", Password: "secret1"},
		{Phone: "9830000003", Name: "A", Alias: "a@textpay", Password: "short"},
	}
	for i, input := range cases {
		if _, err := svc.Register(ctx, input); !errors.Is(err, ErrInvalidInput) {
			t.Fatalf("case %d: expected invalid input, got %v", i, err)
		}
	}
}
