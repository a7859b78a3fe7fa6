package sms

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/text-pay/text_pay/internal/account"
	"github.com/text-pay/text_pay/internal/config"
	"github.com/text-pay/text_pay/internal/envelope"
	"github.com/text-pay/text_pay/internal/ledger"
	"github.com/text-pay/text_pay/internal/logging"
	"github.com/text-pay/text_pay/internal/notification"
	"github.com/text-pay/text_pay/internal/session"
	"github.com/text-pay/text_pay/internal/transfer"
)

const (
	senderPhone   = "919830000030"
	receiverPhone = "919830000031"
)

type captureNotifier struct {
	messages []notification.Message
}

func (n *captureNotifier) Send(_ context.Context, msg notification.Message) error {
	n.messages = append(n.messages, msg)
	return nil
}

type fixture struct {
	dispatcher *Dispatcher
	accounts   account.Repository
	sessions   *session.Service
	ledger     ledger.Ledger
	notifier   *captureNotifier
	sender     account.Account
	receiver   account.Account
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	cfg := config.Config{
		JWTSecret:      "test-secret",
		OTPTTL:         10 * time.Minute,
		SessionTTL:     24 * time.Hour,
		AccessTokenTTL: time.Hour,
	}

	repo := account.NewMemoryRepository()
	led := ledger.NewInMemory()
	accSvc := account.NewService(repo, led)
	sessions := session.NewService(repo, cfg)
	notifier := &captureNotifier{}
	logger := logging.Discard()
	transfers := transfer.NewService(led, repo, notifier, logger)

	ctx := context.Background()
	sender, err := accSvc.Register(ctx, account.RegisterInput{
		Phone: senderPhone, Name: "Asha", Alias: "asha@textpay", Password: "hunter22",
	})
	if err != nil {
		t.Fatalf("register sender: %v", err)
	}
	receiver, err := accSvc.Register(ctx, account.RegisterInput{
		Phone: receiverPhone, Name: "Ravi", Alias: "ravi@textpay", Password: "hunter22",
	})
	if err != nil {
		t.Fatalf("register receiver: %v", err)
	}

	return &fixture{
		dispatcher: NewDispatcher(repo, accSvc, sessions, transfers, notifier, logger),
		accounts:   repo,
		sessions:   sessions,
		ledger:     led,
		notifier:   notifier,
		sender:     sender,
		receiver:   receiver,
	}
}

// establishSession walks the login state machine for the sender and returns
// the freshly minted session key and access token.
func (f *fixture) establishSession(t *testing.T) ([]byte, string) {
	t.Helper()
	ctx := context.Background()
	res, err := f.sessions.Login(ctx, senderPhone, "hunter22")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	verified, err := f.sessions.Verify(ctx, senderPhone, res.OTP)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	return verified.SessionKey, verified.AccessToken
}

func (f *fixture) sealed(t *testing.T, key []byte, body string) string {
	t.Helper()
	sealed, err := envelope.Seal([]byte(body), key)
	if err != nil {
		t.Fatalf("seal: %v", err)
	}
	return sealed
}

func TestHandleUnregisteredPhone(t *testing.T) {
	f := newFixture(t)
	reply := f.dispatcher.Handle(context.Background(), "910000000099", "HELP")
	if reply.Status != http.StatusNotFound || reply.Success {
		t.Fatalf("expected 404, got %+v", reply)
	}
}

func TestHandleHelpWithoutSession(t *testing.T) {
	f := newFixture(t)
	reply := f.dispatcher.Handle(context.Background(), senderPhone, "help")
	if !reply.Success || !strings.Contains(reply.Message, "LOGIN") {
		t.Fatalf("unexpected help reply: %+v", reply)
	}
}

func TestHandleUnrecognizedVerb(t *testing.T) {
	f := newFixture(t)
	key, _ := f.establishSession(t)
	reply := f.dispatcher.Handle(context.Background(), senderPhone, f.sealed(t, key, "FROBNICATE now"))
	if reply.Status != http.StatusBadRequest {
		t.Fatalf("expected 400, got %+v", reply)
	}
}

func TestLoginBadCredentialIssuesNoOTP(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	reply := f.dispatcher.Handle(ctx, senderPhone, "LOGIN wrong-password")
	if reply.Status != http.StatusUnauthorized || reply.Success {
		t.Fatalf("expected generic auth failure, got %+v", reply)
	}
	if strings.Contains(strings.ToLower(reply.Message), "password") == false &&
		strings.Contains(strings.ToLower(reply.Message), "credentials") == false {
		t.Fatalf("unexpected message: %q", reply.Message)
	}

	stored, _ := f.accounts.FindByID(ctx, f.sender.ID)
	if stored.OTPCode != nil {
		t.Fatalf("OTP issued despite bad credential")
	}
}

func TestLoginVerifyHandshake(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	reply := f.dispatcher.Handle(ctx, senderPhone, "LOGIN hunter22")
	if !reply.Success {
		t.Fatalf("login reply: %+v", reply)
	}

	stored, _ := f.accounts.FindByID(ctx, f.sender.ID)
	if stored.OTPCode == nil {
		t.Fatalf("no OTP stored")
	}
	if !strings.Contains(reply.Message, "VERIFY") {
		t.Fatalf("login reply lacks verify instruction: %q", reply.Message)
	}

	verifyReply := f.dispatcher.Handle(ctx, senderPhone, "VERIFY "+strconv.Itoa(*stored.OTPCode))
	if !verifyReply.Success || !strings.HasPrefix(verifyReply.Message, "AUTH ") {
		t.Fatalf("verify reply: %+v", verifyReply)
	}
	if !strings.Contains(verifyReply.Message, "BALANCE 0.00") {
		t.Fatalf("verify reply lacks balance: %q", verifyReply.Message)
	}

	stored, _ = f.accounts.FindByID(ctx, f.sender.ID)
	if !stored.SessionLive(time.Now().UTC()) {
		t.Fatalf("session not live after verify")
	}
}

func TestVerifyWrongCode(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.dispatcher.Handle(ctx, senderPhone, "LOGIN hunter22")
	reply := f.dispatcher.Handle(ctx, senderPhone, "VERIFY 000000")
	if reply.Status != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %+v", reply)
	}
}

func TestSessionGatingBlocksPayBeforeAnyMutation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ledger.SeedBalance(f.ledger, f.sender.LedgerCode(), 50_000)

	reply := f.dispatcher.Handle(ctx, senderPhone, "PAY 200 "+receiverPhone)
	if reply.Status != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %+v", reply)
	}

	balance, _ := f.ledger.Balance(ctx, f.sender.LedgerCode())
	if balance != 50_000 {
		t.Fatalf("balance mutated despite gating: %d", balance)
	}
}

func TestPaySucceedsWithSession(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	key, _ := f.establishSession(t)
	ledger.SeedBalance(f.ledger, f.sender.LedgerCode(), 50_000)

	reply := f.dispatcher.Handle(ctx, senderPhone, f.sealed(t, key, "PAY 200 "+receiverPhone+" lunch"))
	if !reply.Success {
		t.Fatalf("pay reply: %+v", reply)
	}
	if !strings.Contains(reply.Message, "200.00") || !strings.Contains(reply.Message, "300.00") {
		t.Fatalf("unexpected pay reply: %q", reply.Message)
	}

	senderBal, _ := f.ledger.Balance(ctx, f.sender.LedgerCode())
	receiverBal, _ := f.ledger.Balance(ctx, f.receiver.LedgerCode())
	if senderBal != 30_000 || receiverBal != 20_000 {
		t.Fatalf("balances wrong: sender=%d receiver=%d", senderBal, receiverBal)
	}

	// The receiver got a credit notification alongside the sender's reply.
	var creditSeen bool
	for _, msg := range f.notifier.messages {
		if msg.Kind == notification.KindCredit && msg.To == receiverPhone {
			creditSeen = true
		}
	}
	if !creditSeen {
		t.Fatalf("no credit notification sent")
	}
}

func TestPayWithTokenInsteadOfSession(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, token := f.establishSession(t)
	ledger.SeedBalance(f.ledger, f.sender.LedgerCode(), 50_000)

	// Session is forced to expire; the explicit access credential still works.
	f.accounts.ClearSession(ctx, f.sender.ID)

	reply := f.dispatcher.Handle(ctx, senderPhone, "PAY 100 "+receiverPhone+" rent "+token)
	if !reply.Success {
		t.Fatalf("token pay reply: %+v", reply)
	}

	senderBal, _ := f.ledger.Balance(ctx, f.sender.LedgerCode())
	if senderBal != 40_000 {
		t.Fatalf("unexpected sender balance %d", senderBal)
	}
}

func TestPayInsufficientFunds(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	key, _ := f.establishSession(t)
	ledger.SeedBalance(f.ledger, f.sender.LedgerCode(), 10_000)

	reply := f.dispatcher.Handle(ctx, senderPhone, f.sealed(t, key, "PAY 150 "+receiverPhone))
	if reply.Status != http.StatusPaymentRequired || reply.Success {
		t.Fatalf("expected 402, got %+v", reply)
	}
	if !strings.Contains(reply.Message, "100.00") {
		t.Fatalf("reply should carry current balance: %q", reply.Message)
	}

	balance, _ := f.ledger.Balance(ctx, f.sender.LedgerCode())
	if balance != 10_000 {
		t.Fatalf("balance changed on rejected pay: %d", balance)
	}
}

func TestPayToSelfRejected(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	key, _ := f.establishSession(t)
	ledger.SeedBalance(f.ledger, f.sender.LedgerCode(), 10_000)

	reply := f.dispatcher.Handle(ctx, senderPhone, f.sealed(t, key, "PAY 50 "+senderPhone))
	if reply.Status != http.StatusBadRequest {
		t.Fatalf("expected 400, got %+v", reply)
	}

	balance, _ := f.ledger.Balance(ctx, f.sender.LedgerCode())
	if balance != 10_000 {
		t.Fatalf("balance changed on self pay: %d", balance)
	}
}

func TestPayMalformedAmount(t *testing.T) {
	f := newFixture(t)
	key, _ := f.establishSession(t)

	for _, body := range []string{"PAY abc " + receiverPhone, "PAY -5 " + receiverPhone, "PAY 0 " + receiverPhone} {
		reply := f.dispatcher.Handle(context.Background(), senderPhone, f.sealed(t, key, body))
		if reply.Status != http.StatusBadRequest {
			t.Fatalf("body %q: expected 400, got %+v", body, reply)
		}
	}
}

func TestTransferByAliasUnknownReceiver(t *testing.T) {
	f := newFixture(t)
	key, _ := f.establishSession(t)
	ledger.SeedBalance(f.ledger, f.sender.LedgerCode(), 10_000)

	reply := f.dispatcher.Handle(context.Background(), senderPhone, f.sealed(t, key, "TRANSFER 50 nobody@textpay"))
	if reply.Status != http.StatusNotFound {
		t.Fatalf("expected 404, got %+v", reply)
	}
}

func TestTransferByAlias(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	key, _ := f.establishSession(t)
	ledger.SeedBalance(f.ledger, f.sender.LedgerCode(), 10_000)

	reply := f.dispatcher.Handle(ctx, senderPhone, f.sealed(t, key, "TRANSFER 25 ravi@textpay rent"))
	if !reply.Success {
		t.Fatalf("transfer reply: %+v", reply)
	}

	receiverBal, _ := f.ledger.Balance(ctx, f.receiver.LedgerCode())
	if receiverBal != 2_500 {
		t.Fatalf("unexpected receiver balance %d", receiverBal)
	}
}

func TestTamperedEnvelopeRejected(t *testing.T) {
	f := newFixture(t)
	key, _ := f.establishSession(t)

	sealed := f.sealed(t, key, "BALANCE")
	parts := strings.Split(sealed, ":")
	raw := []byte(parts[1])
	raw[0] ^= 0x01
	parts[1] = string(raw)

	reply := f.dispatcher.Handle(context.Background(), senderPhone, strings.Join(parts, ":"))
	if reply.Status != http.StatusUnauthorized {
		t.Fatalf("expected 401 on tampered envelope, got %+v", reply)
	}
}

func TestBalanceVerb(t *testing.T) {
	f := newFixture(t)
	key, _ := f.establishSession(t)
	ledger.SeedBalance(f.ledger, f.sender.LedgerCode(), 12_345)

	reply := f.dispatcher.Handle(context.Background(), senderPhone, f.sealed(t, key, "BALANCE"))
	if !reply.Success || !strings.Contains(reply.Message, "123.45") {
		t.Fatalf("balance reply: %+v", reply)
	}
}

func TestDeliverSealsWithLiveSession(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	key, _ := f.establishSession(t)

	f.dispatcher.Deliver(ctx, senderPhone, Reply{Message: "hello", Status: http.StatusOK, Success: true})
	if len(f.notifier.messages) == 0 {
		t.Fatalf("no message delivered")
	}
	body := f.notifier.messages[len(f.notifier.messages)-1].Body

	plain, err := envelope.Open(body, key)
	if err != nil {
		t.Fatalf("delivered reply not sealed: %v", err)
	}
	var decoded Reply
	if err := json.Unmarshal(plain, &decoded); err != nil {
		t.Fatalf("sealed reply not json: %v", err)
	}
	if decoded.Message != "hello" || !decoded.Success {
		t.Fatalf("unexpected decoded reply: %+v", decoded)
	}
}

func TestDeliverPlaintextWithoutSession(t *testing.T) {
	f := newFixture(t)
	f.dispatcher.Deliver(context.Background(), senderPhone, Reply{Message: "register first", Status: http.StatusNotFound})
	body := f.notifier.messages[len(f.notifier.messages)-1].Body
	if body != "register first" {
		t.Fatalf("expected plaintext delivery, got %q", body)
	}
}
