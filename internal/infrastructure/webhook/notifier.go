package webhook

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/stocklaabh/verify-api/internal/domain"
)

// Notifier tells the hosting application that a verification session has
// completed, via a one-shot JSON POST. Failures are logged and dropped: the
// verify response already carries the completion flag, so the webhook is a
// convenience signal, not the source of truth.
type Notifier struct {
	url    string
	client *http.Client
}

func NewNotifier(url string) *Notifier {
	return &Notifier{
		url:    url,
		client: &http.Client{Timeout: 10 * time.Second},
	}
}

type completionEvent struct {
	SessionID   string    `json:"session_id"`
	Email       string    `json:"email"`
	Phone       string    `json:"phone"`
	CompletedAt time.Time `json:"completed_at"`
}

// SessionCompleted posts the completion event. Matches the orchestrator's
// OnComplete hook signature.
func (n *Notifier) SessionCompleted(sess *domain.VerificationSession) {
	payload, err := json.Marshal(completionEvent{
		SessionID:   sess.SessionID,
		Email:       sess.EmailIdentifier,
		Phone:       sess.SMSIdentifier,
		CompletedAt: time.Now().UTC(),
	})
	if err != nil {
		slog.Warn("marshal completion event", "session_id", sess.SessionID, "err", err)
		return
	}
	resp, err := n.client.Post(n.url, "application/json", bytes.NewReader(payload))
	if err != nil {
		slog.Warn("completion webhook failed", "session_id", sess.SessionID, "err", err)
		return
	}
	resp.Body.Close()
	if resp.StatusCode >= 300 {
		slog.Warn("completion webhook rejected", "session_id", sess.SessionID, "status", resp.StatusCode)
	}
}
