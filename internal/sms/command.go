package sms

import (
	"errors"
	"strings"
)

// Supported command verbs.
const (
	VerbLogin    = "LOGIN"
	VerbVerify   = "VERIFY"
	VerbPay      = "PAY"
	VerbTransfer = "TRANSFER"
	VerbBalance  = "BALANCE"
	VerbHelp     = "HELP"
)

// ErrBadAmount indicates the amount token is not a positive decimal number
// with at most two fraction digits.
var ErrBadAmount = errors.New("invalid amount")

// Command is one tokenized instruction: an upper-cased verb plus its
// whitespace-delimited arguments.
type Command struct {
	Verb string
	Args []string
}

// Parse tokenizes a decrypted message body. The verb is case-insensitive and
// surrounding whitespace is ignored. An empty body yields an empty verb.
func Parse(body string) Command {
	fields := strings.Fields(body)
	if len(fields) == 0 {
		return Command{}
	}
	return Command{Verb: strings.ToUpper(fields[0]), Args: fields[1:]}
}

// Arg returns the i-th argument or "" when absent.
func (c Command) Arg(i int) string {
	if i < 0 || i >= len(c.Args) {
		return ""
	}
	return c.Args[i]
}

// maxAmountDigits bounds the integer part so the minor-unit value cannot
// overflow int64.
const maxAmountDigits = 12

// ParseAmount converts a decimal amount string into minor units, e.g.
// "200" -> 20000 and "1.50" -> 150. Zero, negative, non-numeric and
// over-precise inputs are rejected.
func ParseAmount(s string) (int64, error) {
	intPart, fracPart, hasFrac := strings.Cut(s, ".")
	if intPart == "" && fracPart == "" {
		return 0, ErrBadAmount
	}
	if intPart == "" {
		intPart = "0"
	}
	if hasFrac && (fracPart == "" || len(fracPart) > 2) {
		return 0, ErrBadAmount
	}
	if len(intPart) > maxAmountDigits {
		return 0, ErrBadAmount
	}

	var minor int64
	for _, r := range intPart {
		if r < '0' || r > '9' {
			return 0, ErrBadAmount
		}
		minor = minor*10 + int64(r-'0')
	}
	minor *= 100

	if hasFrac {
		frac := int64(0)
		for _, r := range fracPart {
			if r < '0' || r > '9' {
				return 0, ErrBadAmount
			}
			frac = frac*10 + int64(r-'0')
		}
		if len(fracPart) == 1 {
			frac *= 10
		}
		minor += frac
	}

	if minor <= 0 {
		return 0, ErrBadAmount
	}
	return minor, nil
}
