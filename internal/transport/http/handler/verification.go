package handler

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/stocklaabh/verify-api/internal/application/verification"
	"github.com/stocklaabh/verify-api/internal/domain"
	"github.com/stocklaabh/verify-api/internal/pkg/validate"
)

// VerificationHandler exposes the verification session lifecycle: create,
// inspect, send a code on a channel, verify a submitted code.
type VerificationHandler struct {
	svc verification.Service
}

func NewVerificationHandler(svc verification.Service) *VerificationHandler {
	return &VerificationHandler{svc: svc}
}

type sendRequest struct {
	Identifier string `json:"identifier" validate:"required"`
	Channel    string `json:"channel" validate:"required,oneof=email sms"`
}

type verifyRequest struct {
	Identifier string `json:"identifier" validate:"required"`
	Channel    string `json:"channel" validate:"required,oneof=email sms"`
	Code       string `json:"code" validate:"required"`
}

// Create starts a new verification session; the UI calls this on mount.
func (h *VerificationHandler) Create(w http.ResponseWriter, r *http.Request) {
	sess, err := h.svc.StartSession(r.Context())
	if err != nil {
		httpError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, SessionEnvelope{Session: sess})
}

// Get returns the current channel states of a session. The orchestrator is
// the single source of truth here — the UI renders this, it never infers
// completion on its own.
func (h *VerificationHandler) Get(w http.ResponseWriter, r *http.Request) {
	sess, err := h.svc.GetSession(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		httpError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, SessionEnvelope{Session: sess})
}

// Send issues and dispatches a code for one channel.
func (h *VerificationHandler) Send(w http.ResponseWriter, r *http.Request) {
	var body sendRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := validate.Struct(body); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	ch, err := domain.ParseChannel(body.Channel)
	if err != nil {
		httpError(w, err)
		return
	}
	if err := h.svc.SendCode(r.Context(), chi.URLParam(r, "id"), body.Identifier, ch); err != nil {
		httpError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, MessageEnvelope{Message: "verification code sent"})
}

// Verify validates a submitted code for one channel.
func (h *VerificationHandler) Verify(w http.ResponseWriter, r *http.Request) {
	var body verifyRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := validate.Struct(body); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	ch, err := domain.ParseChannel(body.Channel)
	if err != nil {
		httpError(w, err)
		return
	}
	complete, err := h.svc.VerifyCode(r.Context(), chi.URLParam(r, "id"), body.Identifier, ch, body.Code)
	if err != nil {
		httpError(w, err)
		return
	}
	msg := "channel verified"
	if complete {
		msg = "verification complete"
	}
	writeJSON(w, http.StatusOK, VerifyEnvelope{Message: msg, Complete: complete})
}
