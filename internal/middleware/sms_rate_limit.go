package middleware

import (
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"

	"github.com/text-pay/text_pay/internal/account"
)

const smsRateWindow = 15 * time.Minute

// SMSRateLimit limits inbound webhook messages per phone number using Redis
// if available. Ten messages per fifteen minutes by default.
func SMSRateLimit(cache *redis.Client, maxPerWindow int) fiber.Handler {
	if maxPerWindow <= 0 {
		maxPerWindow = 10
	}
	return func(c *fiber.Ctx) error {
		if cache == nil {
			return c.Next() // no-op without Redis
		}
		phone := account.NormalizePhone(c.FormValue("From"))
		if phone == "" {
			phone = c.IP()
		}
		key := "rl:sms:" + phone
		cnt, err := cache.Incr(c.UserContext(), key).Result()
		if err != nil {
			return c.Next() // fail-open on cache errors
		}
		if cnt == 1 {
			cache.Expire(c.UserContext(), key, smsRateWindow)
		}
		if cnt > int64(maxPerWindow) {
			return fiber.NewError(http.StatusTooManyRequests, "too many messages, try again later")
		}
		return c.Next()
	}
}
