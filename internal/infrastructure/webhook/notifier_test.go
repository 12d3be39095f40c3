package webhook

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stocklaabh/verify-api/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func completedSession() *domain.VerificationSession {
	return &domain.VerificationSession{
		SessionID:       "01HZXY0000000000000000TEST",
		EmailState:      domain.StateVerified,
		SMSState:        domain.StateVerified,
		EmailIdentifier: "a@b.com",
		SMSIdentifier:   "+919876543210",
		CreatedAt:       time.Now().UTC(),
	}
}

func TestSessionCompleted_PostsEventOnce(t *testing.T) {
	var requests int
	var got completionEvent
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(srv.Close)

	NewNotifier(srv.URL).SessionCompleted(completedSession())

	require.Equal(t, 1, requests)
	assert.Equal(t, "01HZXY0000000000000000TEST", got.SessionID)
	assert.Equal(t, "a@b.com", got.Email)
	assert.Equal(t, "+919876543210", got.Phone)
	assert.False(t, got.CompletedAt.IsZero())
}

func TestSessionCompleted_RejectionIsSwallowed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	t.Cleanup(srv.Close)

	// Delivery is best-effort; a rejecting receiver must not panic or block.
	NewNotifier(srv.URL).SessionCompleted(completedSession())
}

func TestSessionCompleted_UnreachableReceiverIsSwallowed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close()

	NewNotifier(srv.URL).SessionCompleted(completedSession())
}
