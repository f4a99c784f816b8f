package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/paybridge/paybridge/infra/response"
	"github.com/paybridge/paybridge/provider"
)

type stubPaymentService struct {
	chargeResponse *provider.ChargeResponse
	chargeErr      error
	verifyResponse *provider.VerificationResponse
	verifyErr      error

	chargedProviders []string
	verifiedRef      string
	verifiedProvider string
}

func (s *stubPaymentService) ChargeWithFallback(ctx context.Context, request provider.ChargeRequest, providers ...string) (*provider.ChargeResponse, error) {
	s.chargedProviders = providers
	if s.chargeErr != nil {
		return nil, s.chargeErr
	}
	return s.chargeResponse, nil
}

func (s *stubPaymentService) Verify(ctx context.Context, reference, providerName string) (*provider.VerificationResponse, error) {
	s.verifiedRef = reference
	s.verifiedProvider = providerName
	if s.verifyErr != nil {
		return nil, s.verifyErr
	}
	return s.verifyResponse, nil
}

func (s *stubPaymentService) GetEnabledProviders() map[string]map[string]string {
	return map[string]map[string]string{"paystack": {}, "stripe": {}}
}

func (s *stubPaymentService) GetFallbackChain() []string {
	return []string{"paystack", "stripe"}
}

func (s *stubPaymentService) RefreshHealth(ctx context.Context) map[string]bool {
	return map[string]bool{"paystack": true, "stripe": true}
}

func newPaymentTestServer(t *testing.T, svc *stubPaymentService) *httptest.Server {
	t.Helper()
	r := chi.NewRouter()
	h := NewPaymentHandler(svc)
	r.Post("/v1/payments", h.Charge)
	r.Get("/v1/payments/{reference}", h.Verify)
	r.Get("/v1/providers", h.Providers)
	r.Get("/health", h.Health)
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv
}

func decodeResponse(t *testing.T, resp *http.Response) response.Response {
	t.Helper()
	var body response.Response
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	return body
}

func TestChargeEndpoint(t *testing.T) {
	svc := &stubPaymentService{
		chargeResponse: &provider.ChargeResponse{
			Reference:        "PAYSTACK_abc",
			AuthorizationURL: "https://checkout.paystack.com/abc",
			Status:           "pending",
			Provider:         "paystack",
		},
	}
	srv := newPaymentTestServer(t, svc)

	payload := `{"amount":100.50,"currency":"NGN","email":"a@b.com","providers":["stripe","paystack"]}`
	resp, err := http.Post(srv.URL+"/v1/payments", "application/json", bytes.NewReader([]byte(payload)))
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	body := decodeResponse(t, resp)
	assert.True(t, body.Success)
	assert.Equal(t, []string{"stripe", "paystack"}, svc.chargedProviders)
}

func TestChargeEndpointMalformedBody(t *testing.T) {
	srv := newPaymentTestServer(t, &stubPaymentService{})

	resp, err := http.Post(srv.URL+"/v1/payments", "application/json", bytes.NewReader([]byte("{")))
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestChargeEndpointErrorMapping(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantCode int
	}{
		{
			name:     "invalid_request",
			err:      &provider.InvalidRequestError{Err: assert.AnError},
			wantCode: http.StatusBadRequest,
		},
		{
			name:     "all_providers_failed",
			err:      &provider.AllProvidersFailedError{Op: "charge", Errors: map[string]error{"paystack": assert.AnError}},
			wantCode: http.StatusBadGateway,
		},
		{
			name:     "unknown_provider",
			err:      provider.ErrDriverNotFound,
			wantCode: http.StatusNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newPaymentTestServer(t, &stubPaymentService{chargeErr: tt.err})

			resp, err := http.Post(srv.URL+"/v1/payments", "application/json",
				bytes.NewReader([]byte(`{"amount":10,"currency":"NGN","email":"a@b.com"}`)))
			require.NoError(t, err)
			defer resp.Body.Close()

			assert.Equal(t, tt.wantCode, resp.StatusCode)
		})
	}
}

func TestVerifyEndpoint(t *testing.T) {
	svc := &stubPaymentService{
		verifyResponse: &provider.VerificationResponse{
			Reference: "PAYSTACK_abc",
			Status:    "success",
			Provider:  "paystack",
		},
	}
	srv := newPaymentTestServer(t, svc)

	resp, err := http.Get(srv.URL + "/v1/payments/PAYSTACK_abc?provider=paystack")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "PAYSTACK_abc", svc.verifiedRef)
	assert.Equal(t, "paystack", svc.verifiedProvider)
}

func TestVerifyEndpointNotFound(t *testing.T) {
	srv := newPaymentTestServer(t, &stubPaymentService{verifyErr: provider.ErrTransactionNotFound})

	resp, err := http.Get(srv.URL + "/v1/payments/MISSING")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestProvidersEndpoint(t *testing.T) {
	srv := newPaymentTestServer(t, &stubPaymentService{})

	resp, err := http.Get(srv.URL + "/v1/providers")
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)
	body := decodeResponse(t, resp)

	data, ok := body.Data.(map[string]any)
	require.True(t, ok)
	assert.ElementsMatch(t, []any{"paystack", "stripe"}, data["providers"])
	assert.Equal(t, []any{"paystack", "stripe"}, data["fallbackChain"])
}

func TestHealthEndpoint(t *testing.T) {
	srv := newPaymentTestServer(t, &stubPaymentService{})

	resp, err := http.Get(srv.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
