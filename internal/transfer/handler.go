package transfer

import (
	"errors"
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/text-pay/text_pay/internal/account"
	"github.com/text-pay/text_pay/internal/ledger"
)

// Handler exposes transfers to the companion app. The SMS path goes
// through the dispatcher instead; both funnel into the same service.
type Handler struct {
	svc      *Service
	accounts account.Repository
}

// NewHandler constructs a transfer handler.
func NewHandler(svc *Service, accounts account.Repository) *Handler {
	return &Handler{svc: svc, accounts: accounts}
}

type createRequest struct {
	ToPhone    string `json:"to_phone"`
	ToAlias    string `json:"to_alias"`
	Amount     int64  `json:"amount"`
	Memo       string `json:"memo"`
	ClientTxID string `json:"client_tx_id"`
}

// Create moves funds from the authenticated account to the receiver named
// by phone number or alias. Amount is in minor units.
func (h *Handler) Create(c *fiber.Ctx) error {
	id, _ := c.Locals("account_id").(string)
	if id == "" {
		return fiber.NewError(http.StatusUnauthorized, "unauthenticated")
	}
	sender, err := h.accounts.FindByID(c.UserContext(), id)
	if err != nil {
		return fiber.NewError(http.StatusUnauthorized, "account not found")
	}

	var req createRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}

	res, err := h.svc.Transfer(c.UserContext(), Input{
		Sender:        sender,
		ReceiverPhone: req.ToPhone,
		ReceiverAlias: req.ToAlias,
		Amount:        req.Amount,
		Memo:          req.Memo,
		ClientTxID:    req.ClientTxID,
	})
	if err != nil {
		switch {
		case errors.Is(err, ledger.ErrInvalidAmount), errors.Is(err, ledger.ErrSelfTransfer):
			return fiber.NewError(http.StatusBadRequest, err.Error())
		case errors.Is(err, ErrReceiverNotFound):
			return fiber.NewError(http.StatusNotFound, "receiver not found")
		case errors.Is(err, ledger.ErrInsufficientFunds):
			return fiber.NewError(http.StatusPaymentRequired, "insufficient funds")
		case errors.Is(err, ledger.ErrDuplicateTransaction):
			return fiber.NewError(http.StatusConflict, "duplicate transaction")
		default:
			return fiber.NewError(http.StatusInternalServerError, err.Error())
		}
	}

	return c.Status(http.StatusCreated).JSON(fiber.Map{
		"transaction_id": res.TransactionID,
		"receiver": fiber.Map{
			"account_id": res.Receiver.ID,
			"name":       res.Receiver.Name,
		},
		"balance":      res.SenderBalance,
		"completed_at": res.CompletedAt,
	})
}
