package session

import (
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gofiber/fiber/v2"

	"github.com/text-pay/text_pay/internal/account"
	"github.com/text-pay/text_pay/internal/notification"
)

// Handler exposes the companion-app login flow. It mirrors the SMS
// handshake: a password check that issues an OTP over SMS, then code
// verification that returns the access token and session material.
type Handler struct {
	svc      *Service
	accounts *account.Service
	notifier notification.Notifier
	logger   *slog.Logger
}

// NewHandler constructs a session handler.
func NewHandler(svc *Service, accounts *account.Service, notifier notification.Notifier, logger *slog.Logger) *Handler {
	return &Handler{svc: svc, accounts: accounts, notifier: notifier, logger: logger}
}

type loginRequest struct {
	Phone    string `json:"phone"`
	Password string `json:"password"`
}

// Login checks credentials and sends a one-time code to the account's phone.
func (h *Handler) Login(c *fiber.Ctx) error {
	var req loginRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}

	phone := account.NormalizePhone(req.Phone)
	res, err := h.svc.Login(c.UserContext(), phone, req.Password)
	if err != nil {
		switch {
		case errors.Is(err, account.ErrNotFound), errors.Is(err, ErrInvalidCredentials):
			return fiber.NewError(http.StatusUnauthorized, "invalid phone number or password")
		default:
			return fiber.NewError(http.StatusInternalServerError, err.Error())
		}
	}

	if res.SessionValid {
		return c.JSON(fiber.Map{"status": "session_valid"})
	}

	if err := h.notifier.Send(c.UserContext(), notification.Message{
		Kind: notification.KindOTP,
		To:   phone,
		Body: fmt.Sprintf("Your verification code is %d. It expires in 10 minutes.", res.OTP),
	}); err != nil {
		h.logger.Error("otp delivery failed", "phone", phone, "error", err)
		return fiber.NewError(http.StatusInternalServerError, "could not deliver verification code")
	}

	return c.JSON(fiber.Map{"status": "otp_sent", "expires_at": res.OTPExpiry})
}

type verifyRequest struct {
	Phone string `json:"phone"`
	Code  string `json:"code"`
}

// Verify consumes the one-time code and returns the access token together
// with the session key used to seal SMS traffic.
func (h *Handler) Verify(c *fiber.Ctx) error {
	var req verifyRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}

	code, err := strconv.Atoi(req.Code)
	if err != nil {
		return fiber.NewError(http.StatusBadRequest, "code must be numeric")
	}

	phone := account.NormalizePhone(req.Phone)
	res, err := h.svc.Verify(c.UserContext(), phone, code)
	if err != nil {
		switch {
		case errors.Is(err, account.ErrNotFound), errors.Is(err, ErrInvalidOTP):
			return fiber.NewError(http.StatusUnauthorized, "invalid or expired code")
		default:
			return fiber.NewError(http.StatusInternalServerError, err.Error())
		}
	}

	balance, err := h.accounts.Balance(c.UserContext(), res.Account)
	if err != nil {
		return fiber.NewError(http.StatusInternalServerError, err.Error())
	}

	return c.JSON(fiber.Map{
		"access_token":       res.AccessToken,
		"session_key":        base64.StdEncoding.EncodeToString(res.SessionKey),
		"session_expires_at": res.SessionKeyExpiry,
		"account": fiber.Map{
			"account_id": res.Account.ID,
			"phone":      res.Account.Phone,
			"name":       res.Account.Name,
			"alias":      res.Account.Alias,
		},
		"balance": balance,
	})
}
