package account

import (
	"fmt"
	"time"
)

// Account represents a registered wallet owner keyed by phone number.
//
// Authentication fields (password hash, OTP, session key) are owned by the
// session authority; the wallet balance lives in the ledger under the
// account's ledger code and is never stored here.
type Account struct {
	ID           string
	Phone        string
	Name         string
	Alias        string // payment handle, e.g. name@textpay
	PasswordHash []byte

	// One-time login code, nil when no login is in flight.
	OTPCode   *int
	OTPExpiry *time.Time

	// Symmetric session key used to seal SMS traffic, nil when expired or
	// never established.
	SessionKey       []byte
	SessionKeyExpiry *time.Time

	CreatedAt time.Time
}

// LedgerCode returns the ledger account code backing this account's balance.
func (a Account) LedgerCode() string {
	return fmt.Sprintf("wallet:%s", a.ID)
}

// SessionLive reports whether the account holds a usable session key at now.
func (a Account) SessionLive(now time.Time) bool {
	return len(a.SessionKey) > 0 && a.SessionKeyExpiry != nil && now.Before(*a.SessionKeyExpiry)
}

// OTPPending reports whether an unexpired one-time code is awaiting verification.
func (a Account) OTPPending(now time.Time) bool {
	return a.OTPCode != nil && a.OTPExpiry != nil && now.Before(*a.OTPExpiry)
}
