// Package notify delivers rendered reports over WhatsApp via the CallMeBot
// gateway. Delivery is fire-and-forget: a failed send is logged and the run
// carries on, because a run's value is the scan, not the delivery.
package notify

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/wonny/sepa/pkg/config"
	"github.com/wonny/sepa/pkg/httputil"
	"github.com/wonny/sepa/pkg/logger"
)

const defaultEndpoint = "https://api.callmebot.com/whatsapp.php"

// WhatsApp sends messages through api.callmebot.com. With empty credentials
// it degrades to a logged no-op instead of erroring.
type WhatsApp struct {
	http     *httputil.Client
	logger   *logger.Logger
	endpoint string
	apiKey   string
	phone    string
}

// NewWhatsApp creates a WhatsApp notifier from config.
func NewWhatsApp(cfg config.WhatsAppConfig, httpClient *httputil.Client, log *logger.Logger) *WhatsApp {
	return &WhatsApp{
		http:     httpClient,
		logger:   log,
		endpoint: defaultEndpoint,
		apiKey:   cfg.APIKey,
		phone:    cfg.Phone,
	}
}

// WithEndpoint overrides the gateway URL. Used by tests.
func (w *WhatsApp) WithEndpoint(endpoint string) *WhatsApp {
	w.endpoint = endpoint
	return w
}

// Configured reports whether credentials are present.
func (w *WhatsApp) Configured() bool {
	return w.apiKey != "" && w.phone != ""
}

// Send delivers one message. Missing credentials silently no-op with a log
// line; transport errors are logged and returned for counters only.
func (w *WhatsApp) Send(ctx context.Context, body string) error {
	if !w.Configured() {
		w.logger.Warn("WhatsApp credentials missing, skipping send")
		return nil
	}

	params := url.Values{}
	params.Set("phone", w.phone)
	params.Set("text", body)
	params.Set("apikey", w.apiKey)

	resp, err := w.http.Get(ctx, w.endpoint+"?"+params.Encode())
	if err != nil {
		w.logger.WithError(err).Error("WhatsApp send failed")
		return fmt.Errorf("whatsapp send: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		w.logger.WithField("status_code", resp.StatusCode).Error("WhatsApp gateway rejected message")
		return fmt.Errorf("whatsapp gateway status %d", resp.StatusCode)
	}

	w.logger.Info("WhatsApp message sent")
	return nil
}
