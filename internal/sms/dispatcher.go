package sms

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/text-pay/text_pay/internal/account"
	"github.com/text-pay/text_pay/internal/envelope"
	"github.com/text-pay/text_pay/internal/ledger"
	"github.com/text-pay/text_pay/internal/notification"
	"github.com/text-pay/text_pay/internal/session"
	"github.com/text-pay/text_pay/internal/transfer"
)

const helpText = `Available commands:
- LOGIN <password>: Start login and receive an OTP
- VERIFY <otp>: Complete login
- PAY <amount> <phone> [memo] [token]: Pay another account
- TRANSFER <amount> <alias> [memo] [token]: Pay a payment alias
- BALANCE [token]: Check wallet balance
- HELP: Show this menu`

// Dispatcher routes one decrypted inbound message to its verb handler. It
// enforces the session precondition for every verb except the login
// handshake and never mutates ledger or account state itself.
type Dispatcher struct {
	accounts   account.Repository
	accountSvc *account.Service
	sessions   *session.Service
	transfers  *transfer.Service
	notifier   notification.Notifier
	logger     *slog.Logger
}

// NewDispatcher wires the dispatcher's collaborators.
func NewDispatcher(accounts account.Repository, accountSvc *account.Service, sessions *session.Service, transfers *transfer.Service, notifier notification.Notifier, logger *slog.Logger) *Dispatcher {
	return &Dispatcher{
		accounts:   accounts,
		accountSvc: accountSvc,
		sessions:   sessions,
		transfers:  transfers,
		notifier:   notifier,
		logger:     logger,
	}
}

// Handle processes one inbound message body from the given phone number and
// returns the reply to deliver. When the sender holds a live session key the
// body is treated as a sealed envelope and opened before parsing; otherwise
// it is parsed as plaintext, which only the login handshake and HELP may use.
func (d *Dispatcher) Handle(ctx context.Context, fromPhone, rawBody string) Reply {
	phone := account.NormalizePhone(fromPhone)
	if phone == "" || rawBody == "" {
		return malformed("Empty message.")
	}

	acc, err := d.accounts.FindByPhone(ctx, phone)
	if err != nil {
		if errors.Is(err, account.ErrNotFound) {
			return notFound("You are not registered. Please register first.")
		}
		d.logger.Error("account lookup failed", "phone", phone, "error", err)
		return internalError("Something went wrong. Please try again later.")
	}

	body := rawBody
	if acc.SessionLive(time.Now().UTC()) {
		plain, err := envelope.Open(rawBody, acc.SessionKey)
		if err != nil {
			// Authentication failures and integrity failures read the same
			// to the user, but a bad tag is a potential tamper event.
			if errors.Is(err, envelope.ErrAuthentication) {
				d.logger.Warn("envelope integrity check failed, possible tampering", "phone", phone)
			} else {
				d.logger.Warn("unreadable envelope", "phone", phone, "error", err)
			}
			return unauthenticated("Invalid or tampered message. Please LOGIN again.")
		}
		body = string(plain)
	}

	cmd := Parse(body)
	switch cmd.Verb {
	case VerbLogin:
		return d.handleLogin(ctx, acc, cmd)
	case VerbVerify:
		return d.handleVerify(ctx, acc, cmd)
	case VerbPay:
		return d.handleTransfer(ctx, phone, cmd, false)
	case VerbTransfer:
		return d.handleTransfer(ctx, phone, cmd, true)
	case VerbBalance:
		return d.handleBalance(ctx, phone, cmd)
	case VerbHelp:
		return ok(helpText)
	default:
		return malformed("Unrecognized command. Reply HELP for available commands.")
	}
}

// Deliver sends a reply back to the phone, sealed under the sender's session
// key when one is live (the key is re-read so a reply to VERIFY is sealed
// with the key just minted). Delivery failure is logged, never propagated:
// the command outcome is already decided.
func (d *Dispatcher) Deliver(ctx context.Context, fromPhone string, reply Reply) {
	phone := account.NormalizePhone(fromPhone)
	if phone == "" {
		return
	}

	body := reply.Message
	if key, live := d.sessions.LiveSessionKey(ctx, phone); live {
		payload, err := json.Marshal(reply)
		if err == nil {
			if sealed, err := envelope.Seal(payload, key); err == nil {
				body = sealed
			} else {
				d.logger.Error("seal reply failed", "phone", phone, "error", err)
			}
		}
	}

	msg := notification.Message{Kind: notification.KindReply, To: phone, Body: body}
	if err := d.notifier.Send(ctx, msg); err != nil {
		d.logger.Warn("reply delivery failed", "phone", phone, "error", err)
	}
}

func (d *Dispatcher) handleLogin(ctx context.Context, acc account.Account, cmd Command) Reply {
	if len(cmd.Args) != 1 {
		return malformed("Invalid format. Use: LOGIN <password>")
	}

	res, err := d.sessions.Login(ctx, acc.Phone, cmd.Arg(0))
	if err != nil {
		if errors.Is(err, session.ErrInvalidCredentials) || errors.Is(err, account.ErrNotFound) {
			return unauthenticated("Authentication failed. Please check your credentials.")
		}
		d.logger.Error("login failed", "phone", acc.Phone, "error", err)
		return internalError("Something went wrong. Please try again later.")
	}

	if res.SessionValid {
		return ok("Your session is still active. Send commands directly or HELP for the menu.")
	}
	return ok(fmt.Sprintf("Your login OTP is: %06d. Reply with \"VERIFY %06d\" to complete login.", res.OTP, res.OTP))
}

func (d *Dispatcher) handleVerify(ctx context.Context, acc account.Account, cmd Command) Reply {
	if len(cmd.Args) != 1 {
		return malformed("Invalid format. Use: VERIFY <otp>")
	}
	code, err := strconv.Atoi(cmd.Arg(0))
	if err != nil {
		return malformed("Invalid OTP format. Please try again.")
	}

	res, err := d.sessions.Verify(ctx, acc.Phone, code)
	if err != nil {
		if errors.Is(err, session.ErrInvalidOTP) || errors.Is(err, account.ErrNotFound) {
			return unauthenticated("Invalid or expired OTP. Please request a new one.")
		}
		d.logger.Error("otp verification failed", "phone", acc.Phone, "error", err)
		return internalError("Something went wrong. Please try again later.")
	}

	balance, err := d.accountSvc.Balance(ctx, res.Account)
	if err != nil {
		d.logger.Error("balance lookup failed", "phone", acc.Phone, "error", err)
		return internalError("Something went wrong. Please try again later.")
	}
	return ok(fmt.Sprintf("AUTH %s BALANCE %s", res.AccessToken, transfer.FormatAmount(balance)))
}

func (d *Dispatcher) handleTransfer(ctx context.Context, phone string, cmd Command, byAlias bool) Reply {
	usage := "Invalid format. Use: PAY <amount> <phone> [memo] [token]"
	if byAlias {
		usage = "Invalid format. Use: TRANSFER <amount> <alias> [memo] [token]"
	}
	if len(cmd.Args) < 2 {
		return malformed(usage)
	}

	amount, err := ParseAmount(cmd.Arg(0))
	if err != nil {
		return malformed("Invalid amount. Must be a positive number.")
	}

	caller, err := d.sessions.ResolveCaller(ctx, phone, cmd.Arg(3))
	if err != nil {
		return unauthenticated("Session expired. Please LOGIN again.")
	}

	in := transfer.Input{
		Sender: caller,
		Amount: amount,
		Memo:   cmd.Arg(2),
	}
	if byAlias {
		in.ReceiverAlias = cmd.Arg(1)
	} else {
		in.ReceiverPhone = cmd.Arg(1)
	}

	res, err := d.transfers.Transfer(ctx, in)
	switch {
	case err == nil:
		return ok(fmt.Sprintf("Payment of %s sent to %s. Your new balance: %s",
			transfer.FormatAmount(amount), res.Receiver.Name, transfer.FormatAmount(res.SenderBalance)))
	case errors.Is(err, ledger.ErrInsufficientFunds):
		balance, balErr := d.accountSvc.Balance(ctx, caller)
		if balErr != nil {
			return insufficientFunds("Insufficient balance.")
		}
		return insufficientFunds(fmt.Sprintf("Insufficient balance. Your current balance is %s", transfer.FormatAmount(balance)))
	case errors.Is(err, ledger.ErrSelfTransfer):
		return malformed("You cannot send a payment to yourself.")
	case errors.Is(err, ledger.ErrInvalidAmount):
		return malformed("Invalid amount. Must be a positive number.")
	case errors.Is(err, transfer.ErrReceiverNotFound):
		return notFound("Receiver not found. Please check the destination.")
	default:
		d.logger.Error("transfer failed", "phone", phone, "error", err)
		return internalError("Error occurred while processing payment. Please try again later.")
	}
}

func (d *Dispatcher) handleBalance(ctx context.Context, phone string, cmd Command) Reply {
	caller, err := d.sessions.ResolveCaller(ctx, phone, cmd.Arg(0))
	if err != nil {
		return unauthenticated("Session expired. Please LOGIN again.")
	}

	balance, err := d.accountSvc.Balance(ctx, caller)
	if err != nil {
		d.logger.Error("balance lookup failed", "phone", phone, "error", err)
		return internalError("Something went wrong. Please try again later.")
	}
	return ok(fmt.Sprintf("Your current balance is: %s. Alias: %s", transfer.FormatAmount(balance), caller.Alias))
}
