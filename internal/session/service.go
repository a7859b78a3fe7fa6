package session

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/text-pay/text_pay/internal/account"
	"github.com/text-pay/text_pay/internal/auth"
	"github.com/text-pay/text_pay/internal/config"
	"github.com/text-pay/text_pay/internal/envelope"
)

var (
	// ErrInvalidCredentials indicates the supplied password does not match.
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrInvalidOTP covers a missing, mismatched or expired one-time code.
	// Callers must not learn which of the three it was.
	ErrInvalidOTP = errors.New("invalid or expired OTP")

	// ErrSessionExpired indicates the account has no usable session key.
	ErrSessionExpired = errors.New("session expired")
)

// Service is the session and OTP authority. It owns every authentication
// field on an account: password verification, one-time codes, session keys
// and access tokens.
type Service struct {
	accounts account.Repository
	cfg      config.Config
}

// NewService builds the session authority.
func NewService(accounts account.Repository, cfg config.Config) *Service {
	return &Service{accounts: accounts, cfg: cfg}
}

// LoginResult reports the outcome of a successful credential check.
type LoginResult struct {
	// OTP is the freshly issued one-time code; zero when no code was issued
	// because a live session already exists.
	OTP int
	// OTPExpiry is when the issued code stops being accepted.
	OTPExpiry time.Time
	// SessionValid is true when an unexpired session key is already in place
	// and re-login was skipped.
	SessionValid bool
}

// Login verifies the password for the given phone number and, unless a live
// session already exists, issues a single-use numeric OTP. A previous
// unexpired code is invalidated by the overwrite; a stale session key is
// cleared before the new code is stored.
func (s *Service) Login(ctx context.Context, phone, password string) (LoginResult, error) {
	acc, err := s.accounts.FindByPhone(ctx, phone)
	if err != nil {
		return LoginResult{}, err
	}

	if err := bcrypt.CompareHashAndPassword(acc.PasswordHash, []byte(password)); err != nil {
		return LoginResult{}, ErrInvalidCredentials
	}

	now := time.Now().UTC()
	if acc.SessionLive(now) {
		return LoginResult{SessionValid: true}, nil
	}

	if len(acc.SessionKey) > 0 {
		if err := s.accounts.ClearSession(ctx, acc.ID); err != nil {
			return LoginResult{}, fmt.Errorf("clear stale session: %w", err)
		}
	}

	code, err := generateOTP()
	if err != nil {
		return LoginResult{}, err
	}
	expiry := now.Add(s.cfg.OTPTTL)
	if err := s.accounts.SetOTP(ctx, acc.ID, code, expiry); err != nil {
		return LoginResult{}, fmt.Errorf("store otp: %w", err)
	}

	return LoginResult{OTP: code, OTPExpiry: expiry}, nil
}

// VerifyResult carries the material minted on successful OTP verification.
type VerifyResult struct {
	Account          account.Account
	SessionKey       []byte
	SessionKeyExpiry time.Time
	AccessToken      string
}

// Verify consumes a pending one-time code. On a match it clears the code,
// mints a fresh session key with its expiry, and signs a long-lived access
// token bound to the account. A wrong, expired or absent code all yield the
// same ErrInvalidOTP.
func (s *Service) Verify(ctx context.Context, phone string, code int) (VerifyResult, error) {
	acc, err := s.accounts.FindByPhone(ctx, phone)
	if err != nil {
		return VerifyResult{}, err
	}

	now := time.Now().UTC()
	if !acc.OTPPending(now) || *acc.OTPCode != code {
		return VerifyResult{}, ErrInvalidOTP
	}

	// Single use: the code is gone before any material is handed out.
	if err := s.accounts.ClearOTP(ctx, acc.ID); err != nil {
		return VerifyResult{}, fmt.Errorf("clear otp: %w", err)
	}

	key, err := envelope.NewKey()
	if err != nil {
		return VerifyResult{}, err
	}
	expiry := now.Add(s.cfg.SessionTTL)
	if err := s.accounts.SetSession(ctx, acc.ID, key, expiry); err != nil {
		return VerifyResult{}, fmt.Errorf("store session key: %w", err)
	}

	token, err := s.mintAccessToken(acc, now)
	if err != nil {
		return VerifyResult{}, err
	}

	acc.SessionKey = key
	acc.SessionKeyExpiry = &expiry
	return VerifyResult{
		Account:          acc,
		SessionKey:       key,
		SessionKeyExpiry: expiry,
		AccessToken:      token,
	}, nil
}

// VerifyAccessToken validates a signed access token and resolves its account.
func (s *Service) VerifyAccessToken(ctx context.Context, token string) (account.Account, error) {
	claims, err := auth.ParseAndVerifyHS256(token, []byte(s.cfg.JWTSecret))
	if err != nil {
		return account.Account{}, err
	}
	sub, _ := claims["sub"].(string)
	if sub == "" {
		return account.Account{}, auth.ErrInvalidToken
	}
	return s.accounts.FindByID(ctx, sub)
}

// ResolveCaller authenticates the sender of a command by one of two
// interchangeable strategies: an explicit access token when present,
// otherwise the phone's live session key.
func (s *Service) ResolveCaller(ctx context.Context, phone, token string) (account.Account, error) {
	if token != "" {
		return s.VerifyAccessToken(ctx, token)
	}
	acc, err := s.accounts.FindByPhone(ctx, phone)
	if err != nil {
		return account.Account{}, err
	}
	if !acc.SessionLive(time.Now().UTC()) {
		return account.Account{}, ErrSessionExpired
	}
	return acc, nil
}

// LiveSessionKey returns the account's session key when it is still usable.
func (s *Service) LiveSessionKey(ctx context.Context, phone string) ([]byte, bool) {
	acc, err := s.accounts.FindByPhone(ctx, phone)
	if err != nil || !acc.SessionLive(time.Now().UTC()) {
		return nil, false
	}
	return acc.SessionKey, true
}

func (s *Service) mintAccessToken(acc account.Account, now time.Time) (string, error) {
	claims := map[string]any{
		"sub":   acc.ID,
		"phone": acc.Phone,
		"iat":   now.Unix(),
		"exp":   now.Add(s.cfg.AccessTokenTTL).Unix(),
	}
	return auth.SignHS256(claims, []byte(s.cfg.JWTSecret))
}

// generateOTP draws a uniform 6-digit code from crypto/rand.
func generateOTP() (int, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(900_000))
	if err != nil {
		return 0, fmt.Errorf("generate otp: %w", err)
	}
	return 100_000 + int(n.Int64()), nil
}
