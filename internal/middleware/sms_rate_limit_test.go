package middleware

import (
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
)

func setupRateLimitApp(t *testing.T, max int) (*fiber.App, func()) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("start miniredis: %v", err)
	}

	cache := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	app := fiber.New()
	app.Post("/webhook/sms", SMSRateLimit(cache, max), func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusOK)
	})

	cleanup := func() {
		cache.Close()
		mr.Close()
	}

	return app, cleanup
}

func postSMS(t *testing.T, app *fiber.App, from string) int {
	t.Helper()
	form := url.Values{}
	form.Set("From", from)
	form.Set("Body", "HELP")

	req := httptest.NewRequest(fiber.MethodPost, "/webhook/sms", strings.NewReader(form.Encode()))
	req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationForm)

	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	resp.Body.Close()
	return resp.StatusCode
}

func TestSMSRateLimitBlocksAfterThreshold(t *testing.T) {
	app, cleanup := setupRateLimitApp(t, 3)
	defer cleanup()

	for i := 0; i < 3; i++ {
		if code := postSMS(t, app, "+15550001111"); code != fiber.StatusOK {
			t.Fatalf("request %d: expected %d got %d", i+1, fiber.StatusOK, code)
		}
	}

	if code := postSMS(t, app, "+15550001111"); code != fiber.StatusTooManyRequests {
		t.Fatalf("expected %d got %d", fiber.StatusTooManyRequests, code)
	}
}

func TestSMSRateLimitIsPerPhone(t *testing.T) {
	app, cleanup := setupRateLimitApp(t, 1)
	defer cleanup()

	if code := postSMS(t, app, "+15550001111"); code != fiber.StatusOK {
		t.Fatalf("first sender: expected %d got %d", fiber.StatusOK, code)
	}
	if code := postSMS(t, app, "+15550001111"); code != fiber.StatusTooManyRequests {
		t.Fatalf("first sender repeat: expected %d got %d", fiber.StatusTooManyRequests, code)
	}
	if code := postSMS(t, app, "+15550002222"); code != fiber.StatusOK {
		t.Fatalf("second sender: expected %d got %d", fiber.StatusOK, code)
	}
}

func TestSMSRateLimitWithoutCachePasses(t *testing.T) {
	app := fiber.New()
	app.Post("/webhook/sms", SMSRateLimit(nil, 1), func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusOK)
	})

	for i := 0; i < 5; i++ {
		if code := postSMS(t, app, "+15550001111"); code != fiber.StatusOK {
			t.Fatalf("request %d: expected %d got %d", i+1, fiber.StatusOK, code)
		}
	}
}
