package transfer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/text-pay/text_pay/internal/account"
	"github.com/text-pay/text_pay/internal/ledger"
	"github.com/text-pay/text_pay/internal/notification"
)

// ErrReceiverNotFound indicates no account owns the given phone or alias.
// A payment alias that resolves to nothing is a hard failure, never a
// silently parked credit.
var ErrReceiverNotFound = errors.New("receiver not found")

// Service moves funds between accounts through the ledger and notifies
// receivers. It never touches balances itself.
type Service struct {
	ledger   ledger.Ledger
	accounts account.Repository
	notifier notification.Notifier
	logger   *slog.Logger
}

// NewService constructs a transfer service.
func NewService(ledgerBackend ledger.Ledger, accounts account.Repository, notifier notification.Notifier, logger *slog.Logger) *Service {
	return &Service{ledger: ledgerBackend, accounts: accounts, notifier: notifier, logger: logger}
}

// Input captures one requested transfer. Exactly one of ReceiverPhone and
// ReceiverAlias must be set; it decides both the lookup and the recorded kind.
type Input struct {
	Sender        account.Account
	ReceiverPhone string
	ReceiverAlias string
	Amount        int64
	Memo          string
	ClientTxID    string
}

// Result describes a completed transfer, with both post-transfer balances for
// reply composition.
type Result struct {
	TransactionID   string
	Receiver        account.Account
	SenderBalance   int64
	ReceiverBalance int64
	CompletedAt     time.Time
}

// Transfer resolves the receiver, posts the debit/credit pair atomically and
// notifies the receiver. Validation failures surface as ledger errors or
// ErrReceiverNotFound; the sender's reply is composed by the caller.
func (s *Service) Transfer(ctx context.Context, in Input) (Result, error) {
	if in.Amount <= 0 {
		return Result{}, ledger.ErrInvalidAmount
	}
	if in.ClientTxID == "" {
		in.ClientTxID = uuid.NewString()
	}

	receiver, kind, err := s.resolveReceiver(ctx, in)
	if err != nil {
		return Result{}, err
	}
	if receiver.ID == in.Sender.ID {
		return Result{}, ledger.ErrSelfTransfer
	}

	memo := in.Memo
	if memo == "" {
		memo = "Payment"
	}

	res, err := s.ledger.Transfer(ctx, ledger.Posting{
		FromCode:   in.Sender.LedgerCode(),
		ToCode:     receiver.LedgerCode(),
		Kind:       kind,
		Memo:       fmt.Sprintf("To %s: %s", receiver.Name, memo),
		ClientTxID: in.ClientTxID,
		Amount:     in.Amount,
	})
	if err != nil {
		return Result{}, err
	}

	outcome := Result{
		TransactionID:   res.TransactionID,
		Receiver:        receiver,
		SenderBalance:   res.FromBalance,
		ReceiverBalance: res.ToBalance,
		CompletedAt:     time.Now().UTC(),
	}

	// Credit notification is best effort; the transfer already settled.
	if s.notifier != nil {
		msg := notification.Message{
			Kind: notification.KindCredit,
			To:   receiver.Phone,
			Body: fmt.Sprintf("You received %s from %s. Your new balance: %s", FormatAmount(in.Amount), in.Sender.Name, FormatAmount(res.ToBalance)),
		}
		if err := s.notifier.Send(ctx, msg); err != nil && s.logger != nil {
			s.logger.Warn("credit notification failed", "to", receiver.Phone, "error", err)
		}
	}

	return outcome, nil
}

func (s *Service) resolveReceiver(ctx context.Context, in Input) (account.Account, string, error) {
	var (
		receiver account.Account
		kind     string
		err      error
	)
	switch {
	case in.ReceiverAlias != "":
		kind = ledger.KindAliasTransfer
		receiver, err = s.accounts.FindByAlias(ctx, in.ReceiverAlias)
	case in.ReceiverPhone != "":
		kind = ledger.KindPayment
		receiver, err = s.accounts.FindByPhone(ctx, account.NormalizePhone(in.ReceiverPhone))
	default:
		return account.Account{}, "", ErrReceiverNotFound
	}
	if err != nil {
		if errors.Is(err, account.ErrNotFound) {
			return account.Account{}, "", ErrReceiverNotFound
		}
		return account.Account{}, "", err
	}
	return receiver, kind, nil
}

// FormatAmount renders minor units as a decimal string, e.g. 20050 -> "200.50".
func FormatAmount(minor int64) string {
	sign := ""
	if minor < 0 {
		sign = "-"
		minor = -minor
	}
	return fmt.Sprintf("%s%d.%02d", sign, minor/100, minor%100)
}
