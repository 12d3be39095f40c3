package handler_test

import (
	"bytes"
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/json"
	"encoding/pem"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stocklaabh/verify-api/internal/application/verification"
	"github.com/stocklaabh/verify-api/internal/config"
	jwtinfra "github.com/stocklaabh/verify-api/internal/infrastructure/jwt"
	"github.com/stocklaabh/verify-api/internal/infrastructure/memstore"
	transporthttp "github.com/stocklaabh/verify-api/internal/transport/http"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeMailer struct {
	lastCode string
	fail     bool
}

func (f *fakeMailer) SendOTP(to, code string, ttl time.Duration) error {
	f.lastCode = code
	if f.fail {
		return errors.New("smtp down")
	}
	return nil
}

type fakeSMS struct {
	lastCode string
}

func (f *fakeSMS) SendSMS(ctx context.Context, to, code string) error {
	f.lastCode = code
	return nil
}

func newTestServer(t *testing.T) (*httptest.Server, *fakeMailer, *fakeSMS) {
	return newTestServerWithAuth(t, nil)
}

func newTestServerWithAuth(t *testing.T, provider *jwtinfra.Provider) (*httptest.Server, *fakeMailer, *fakeSMS) {
	t.Helper()
	ml := &fakeMailer{}
	sms := &fakeSMS{}
	store := memstore.New()
	t.Cleanup(store.Close)
	svc := verification.NewService(verification.Deps{
		Store:  store,
		Mailer: ml,
		SMS:    sms,
	}, verification.Options{})
	t.Cleanup(svc.Close)

	router := transporthttp.NewRouter(config.Load(), &transporthttp.Deps{
		Verification: svc,
		JWTProvider:  provider,
	}, nil)
	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)
	return srv, ml, sms
}

func newTestJWTProvider(t *testing.T) *jwtinfra.Provider {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	dir := t.TempDir()
	privPath := filepath.Join(dir, "private.pem")
	pubPath := filepath.Join(dir, "public.pem")
	privPEM := pem.EncodeToMemory(&pem.Block{Type: "RSA PRIVATE KEY", Bytes: x509.MarshalPKCS1PrivateKey(key)})
	require.NoError(t, os.WriteFile(privPath, privPEM, 0o600))
	pubDER, err := x509.MarshalPKIXPublicKey(&key.PublicKey)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(pubPath, pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: pubDER}), 0o600))

	p, err := jwtinfra.NewProvider(&config.Config{
		JWTPrivateKeyPath: privPath,
		JWTPublicKeyPath:  pubPath,
		JWTExpiry:         time.Hour,
	})
	require.NoError(t, err)
	return p
}

func postJSON(t *testing.T, url string, body interface{}) (*http.Response, map[string]interface{}) {
	t.Helper()
	payload, err := json.Marshal(body)
	require.NoError(t, err)
	resp, err := http.Post(url, "application/json", bytes.NewReader(payload))
	require.NoError(t, err)
	defer resp.Body.Close()
	var decoded map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&decoded))
	return resp, decoded
}

func createSession(t *testing.T, baseURL string) string {
	t.Helper()
	resp, body := postJSON(t, baseURL+"/v1/verifications", map[string]string{})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	sess, ok := body["session"].(map[string]interface{})
	require.True(t, ok)
	sid, _ := sess["session_id"].(string)
	require.NotEmpty(t, sid)
	return sid
}

func TestVerificationFlow_EndToEnd(t *testing.T) {
	srv, ml, sms := newTestServer(t)
	sid := createSession(t, srv.URL)
	base := fmt.Sprintf("%s/v1/verifications/%s", srv.URL, sid)

	// Send email code.
	resp, _ := postJSON(t, base+"/send", map[string]string{"identifier": "a@b.com", "channel": "email"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Len(t, ml.lastCode, 6)

	// Wrong code is rejected without consuming the right one.
	wrong := "000000"
	if wrong == ml.lastCode {
		wrong = "000001"
	}
	resp, body := postJSON(t, base+"/verify", map[string]string{"identifier": "a@b.com", "channel": "email", "code": wrong})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.NotEmpty(t, body["error"])

	// Right code verifies the email channel; session not complete yet.
	resp, body = postJSON(t, base+"/verify", map[string]string{"identifier": "a@b.com", "channel": "email", "code": ml.lastCode})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, false, body["complete"])

	// Session reflects the email state.
	getResp, err := http.Get(base)
	require.NoError(t, err)
	var sessBody map[string]interface{}
	require.NoError(t, json.NewDecoder(getResp.Body).Decode(&sessBody))
	getResp.Body.Close()
	require.Equal(t, http.StatusOK, getResp.StatusCode)
	sess := sessBody["session"].(map[string]interface{})
	assert.Equal(t, "verified", sess["email_state"])
	assert.Equal(t, "not_sent", sess["sms_state"])

	// SMS channel completes the session.
	resp, _ = postJSON(t, base+"/send", map[string]string{"identifier": "+919876543210", "channel": "sms"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp, body = postJSON(t, base+"/verify", map[string]string{"identifier": "+919876543210", "channel": "sms", "code": sms.lastCode})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, true, body["complete"])

	// A second submission of the consumed code is not-found.
	resp, _ = postJSON(t, base+"/verify", map[string]string{"identifier": "+919876543210", "channel": "sms", "code": sms.lastCode})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestVerificationRoutes_RequireBearerWhenConfigured(t *testing.T) {
	provider := newTestJWTProvider(t)
	srv, _, _ := newTestServerWithAuth(t, provider)

	// No token: the auth group rejects before the handler runs.
	resp, err := http.Post(srv.URL+"/v1/verifications", "application/json", bytes.NewReader([]byte("{}")))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	// Health stays open.
	resp, err = http.Get(srv.URL + "/v1/health-check/ping")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	// A signed marketplace token opens the verification routes.
	token, err := provider.Sign("u-42", "buyer")
	require.NoError(t, err)
	req, err := http.NewRequest(http.MethodPost, srv.URL+"/v1/verifications", bytes.NewReader([]byte("{}")))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusCreated, resp.StatusCode)
}

func TestSend_UnknownChannel(t *testing.T) {
	srv, _, _ := newTestServer(t)
	sid := createSession(t, srv.URL)

	resp, _ := postJSON(t, fmt.Sprintf("%s/v1/verifications/%s/send", srv.URL, sid),
		map[string]string{"identifier": "a@b.com", "channel": "carrier-pigeon"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestSend_MissingIdentifier(t *testing.T) {
	srv, _, _ := newTestServer(t)
	sid := createSession(t, srv.URL)

	resp, _ := postJSON(t, fmt.Sprintf("%s/v1/verifications/%s/send", srv.URL, sid),
		map[string]string{"channel": "email"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestSend_DeliveryFailure(t *testing.T) {
	srv, ml, _ := newTestServer(t)
	ml.fail = true
	sid := createSession(t, srv.URL)

	resp, _ := postJSON(t, fmt.Sprintf("%s/v1/verifications/%s/send", srv.URL, sid),
		map[string]string{"identifier": "a@b.com", "channel": "email"})
	assert.Equal(t, http.StatusBadGateway, resp.StatusCode)
}

func TestVerify_MalformedCode(t *testing.T) {
	srv, _, _ := newTestServer(t)
	sid := createSession(t, srv.URL)
	url := fmt.Sprintf("%s/v1/verifications/%s/verify", srv.URL, sid)

	for _, bad := range []string{"12a45", "123"} {
		resp, _ := postJSON(t, url, map[string]string{"identifier": "a@b.com", "channel": "email", "code": bad})
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode, "code %q", bad)
	}
}

func TestVerify_NoPendingCode(t *testing.T) {
	srv, _, _ := newTestServer(t)
	sid := createSession(t, srv.URL)

	resp, _ := postJSON(t, fmt.Sprintf("%s/v1/verifications/%s/verify", srv.URL, sid),
		map[string]string{"identifier": "a@b.com", "channel": "email", "code": "123456"})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestGet_UnknownSession(t *testing.T) {
	srv, _, _ := newTestServer(t)

	resp, err := http.Get(srv.URL + "/v1/verifications/01HXXXXXXXXXXXXXXXXXXXXXXX")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestHealthCheck_Ping(t *testing.T) {
	srv, _, _ := newTestServer(t)

	resp, err := http.Get(srv.URL + "/v1/health-check/ping")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
