package account

import (
	"errors"
	"net/http"

	"github.com/gofiber/fiber/v2"
)

// Handler exposes account endpoints for the companion app.
type Handler struct {
	svc  *Service
	repo Repository
}

// NewHandler constructs an account handler.
func NewHandler(svc *Service, repo Repository) *Handler {
	return &Handler{svc: svc, repo: repo}
}

type registerRequest struct {
	Phone    string `json:"phone"`
	Name     string `json:"name"`
	Alias    string `json:"alias"`
	Password string `json:"password"`
}

// Register opens a new account.
func (h *Handler) Register(c *fiber.Ctx) error {
	var req registerRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}

	acc, err := h.svc.Register(c.UserContext(), RegisterInput{
		Phone:    req.Phone,
		Name:     req.Name,
		Alias:    req.Alias,
		Password: req.Password,
	})
	if err != nil {
		switch {
		case errors.Is(err, ErrDuplicate):
			return fiber.NewError(http.StatusConflict, "phone number or alias already registered")
		case errors.Is(err, ErrInvalidInput):
			return fiber.NewError(http.StatusBadRequest, err.Error())
		default:
			return fiber.NewError(http.StatusInternalServerError, err.Error())
		}
	}

	return c.Status(http.StatusCreated).JSON(fiber.Map{
		"account_id": acc.ID,
		"phone":      acc.Phone,
		"alias":      acc.Alias,
		"created_at": acc.CreatedAt,
	})
}

// Me returns the authenticated account's profile.
func (h *Handler) Me(c *fiber.Ctx) error {
	acc, err := h.caller(c)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{
		"account_id": acc.ID,
		"phone":      acc.Phone,
		"name":       acc.Name,
		"alias":      acc.Alias,
		"created_at": acc.CreatedAt,
	})
}

// Balance returns the authenticated account's ledger balance in minor units.
func (h *Handler) Balance(c *fiber.Ctx) error {
	acc, err := h.caller(c)
	if err != nil {
		return err
	}
	balance, err := h.svc.Balance(c.UserContext(), acc)
	if err != nil {
		return fiber.NewError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(fiber.Map{"account_id": acc.ID, "balance": balance})
}

func (h *Handler) caller(c *fiber.Ctx) (Account, error) {
	id, _ := c.Locals("account_id").(string)
	if id == "" {
		return Account{}, fiber.NewError(http.StatusUnauthorized, "unauthenticated")
	}
	acc, err := h.repo.FindByID(c.UserContext(), id)
	if err != nil {
		return Account{}, fiber.NewError(http.StatusUnauthorized, "account not found")
	}
	return acc, nil
}
