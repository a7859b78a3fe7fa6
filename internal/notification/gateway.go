package notification

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/text-pay/text_pay/internal/config"
)

// SMSGateway delivers messages through a Twilio-compatible REST API. The
// gateway is a process-scoped resource: one client, created at startup and
// injected wherever outbound messages are sent.
type SMSGateway struct {
	accountSID string
	authToken  string
	from       string
	baseURL    string
	client     *http.Client
}

// NewSMSGateway builds the outbound gateway from configuration.
func NewSMSGateway(cfg config.Config) *SMSGateway {
	return &SMSGateway{
		accountSID: cfg.SMSAccountSID,
		authToken:  cfg.SMSAuthToken,
		from:       cfg.SMSFromNumber,
		baseURL:    strings.TrimSuffix(cfg.SMSAPIBaseURL, "/"),
		client:     &http.Client{Timeout: 15 * time.Second},
	}
}

// Send posts the message to the gateway's Messages endpoint.
func (g *SMSGateway) Send(ctx context.Context, message Message) error {
	form := url.Values{}
	form.Set("From", g.from)
	form.Set("To", "+"+message.To)
	form.Set("Body", message.Body)

	endpoint := fmt.Sprintf("%s/2010-04-01/Accounts/%s/Messages.json", g.baseURL, g.accountSID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("build gateway request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.SetBasicAuth(g.accountSID, g.authToken)

	resp, err := g.client.Do(req)
	if err != nil {
		return fmt.Errorf("gateway request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("gateway rejected message: status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	return nil
}
