package bulksms

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/stocklaabh/verify-api/internal/config"
)

// Sender delivers verification codes through a bulk-SMS provider over a
// single HTTPS GET: authorization key, routing mode, sender ID and DLT
// template ID go as query parameters alongside the code and the normalized
// phone number. The provider acknowledges with a boolean field in the JSON
// body. The adapter never retries; resend is the caller's recovery path.
type Sender struct {
	client     *http.Client
	baseURL    string
	authKey    string
	route      string
	senderID   string
	templateID string
}

func NewSender(cfg *config.Config) *Sender {
	return &Sender{
		client:     &http.Client{Timeout: 10 * time.Second},
		baseURL:    cfg.BulkSMSBaseURL,
		authKey:    cfg.BulkSMSAuthKey,
		route:      cfg.BulkSMSRoute,
		senderID:   cfg.BulkSMSSenderID,
		templateID: cfg.BulkSMSTemplateID,
	}
}

type providerResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

func (s *Sender) SendSMS(ctx context.Context, to, code string) error {
	mobile := digitsOnly(to)
	if mobile == "" {
		return fmt.Errorf("phone number %q has no digits", to)
	}

	q := url.Values{}
	q.Set("authkey", s.authKey)
	q.Set("route", s.route)
	q.Set("sender", s.senderID)
	q.Set("template_id", s.templateID)
	q.Set("otp", code)
	q.Set("mobile", mobile)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+"?"+q.Encode(), nil)
	if err != nil {
		return fmt.Errorf("build sms request: %w", err)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		slog.Warn("bulk sms transport failure", "mobile", mobile, "err", err)
		return fmt.Errorf("sms provider unreachable: %w", err)
	}
	defer resp.Body.Close()

	var pr providerResponse
	if err := json.NewDecoder(resp.Body).Decode(&pr); err != nil {
		slog.Warn("bulk sms unparseable response", "mobile", mobile, "status", resp.StatusCode, "err", err)
		return fmt.Errorf("decode sms provider response: %w", err)
	}
	if !pr.Success {
		slog.Warn("bulk sms rejected", "mobile", mobile, "status", resp.StatusCode, "message", pr.Message)
		return fmt.Errorf("sms provider rejected send: %s", pr.Message)
	}
	return nil
}

// digitsOnly strips everything but ASCII digits ("+91 98765-43210" → "919876543210").
func digitsOnly(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
