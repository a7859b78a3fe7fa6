package routes

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/text-pay/text_pay/internal/sms"
)

// SMSWebhook handles inbound messages posted by the SMS gateway as form
// data. The reply travels out of band through the notifier, so the webhook
// itself always answers 200 with an empty body once the sender is known.
func SMSWebhook(dispatcher *sms.Dispatcher) fiber.Handler {
	return func(c *fiber.Ctx) error {
		from := c.FormValue("From")
		body := c.FormValue("Body")
		if from == "" {
			return fiber.NewError(http.StatusBadRequest, "missing From")
		}

		reply := dispatcher.Handle(c.UserContext(), from, body)
		dispatcher.Deliver(c.UserContext(), from, reply)

		return c.SendStatus(http.StatusOK)
	}
}
