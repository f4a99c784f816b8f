package handler

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/paybridge/paybridge/infra/queue"
	"github.com/paybridge/paybridge/provider"
)

type stubValidator struct {
	valid bool
	err   error

	mu           sync.Mutex
	providerName string
	headers      map[string]string
	body         []byte
}

func (v *stubValidator) ValidateWebhook(providerName string, headers map[string]string, rawBody []byte) (bool, error) {
	v.mu.Lock()
	v.providerName = providerName
	v.headers = headers
	v.body = rawBody
	v.mu.Unlock()
	return v.valid, v.err
}

func newWebhookTestServer(t *testing.T, validator *stubValidator, q *queue.WebhookQueue) *httptest.Server {
	t.Helper()
	r := chi.NewRouter()
	h := NewWebhookHandler(validator, q)
	r.Post("/v1/webhooks/{provider}", h.Receive)
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv
}

func idleQueue(t *testing.T) *queue.WebhookQueue {
	t.Helper()
	q := queue.NewWebhookQueue(func(ctx context.Context, job queue.Job) error { return nil },
		queue.Options{Workers: 1, BufferSize: 8, Backoff: time.Millisecond})
	q.Start(context.Background())
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = q.Shutdown(ctx)
	})
	return q
}

func TestWebhookAccepted(t *testing.T) {
	validator := &stubValidator{valid: true}
	srv := newWebhookTestServer(t, validator, idleQueue(t))

	body := []byte(`{"event":"charge.success","data":{"reference":"PAYSTACK_1","status":"success"}}`)
	resp, err := http.Post(srv.URL+"/v1/webhooks/paystack", "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	// the validator saw the body byte for byte as it arrived
	assert.Equal(t, body, validator.body)
}

func TestWebhookInvalidSignatureRejected(t *testing.T) {
	var processed int
	q := queue.NewWebhookQueue(func(ctx context.Context, job queue.Job) error {
		processed++
		return nil
	}, queue.Options{Workers: 1, BufferSize: 8})
	q.Start(context.Background())
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = q.Shutdown(ctx)
	})

	validator := &stubValidator{valid: false}
	srv := newWebhookTestServer(t, validator, q)

	resp, err := http.Post(srv.URL+"/v1/webhooks/paystack", "application/json",
		bytes.NewReader([]byte(`{"data":{"reference":"PAYSTACK_1"}}`)))
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	assert.Zero(t, processed)
}

func TestWebhookUnknownProvider(t *testing.T) {
	validator := &stubValidator{err: provider.ErrDriverNotFound}
	srv := newWebhookTestServer(t, validator, idleQueue(t))

	resp, err := http.Post(srv.URL+"/v1/webhooks/razorpay", "application/json",
		bytes.NewReader([]byte(`{}`)))
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestWebhookQueueFull(t *testing.T) {
	// unstarted queue with a single slot: the second delivery overflows
	q := queue.NewWebhookQueue(func(ctx context.Context, job queue.Job) error { return nil },
		queue.Options{Workers: 1, BufferSize: 1})

	validator := &stubValidator{valid: true}
	srv := newWebhookTestServer(t, validator, q)

	first, err := http.Post(srv.URL+"/v1/webhooks/paystack", "application/json", bytes.NewReader([]byte(`{}`)))
	require.NoError(t, err)
	first.Body.Close()
	require.Equal(t, http.StatusOK, first.StatusCode)

	second, err := http.Post(srv.URL+"/v1/webhooks/paystack", "application/json", bytes.NewReader([]byte(`{}`)))
	require.NoError(t, err)
	defer second.Body.Close()
	assert.Equal(t, http.StatusServiceUnavailable, second.StatusCode)
}

func TestWebhookHeaderForwarding(t *testing.T) {
	validator := &stubValidator{valid: true}
	srv := newWebhookTestServer(t, validator, idleQueue(t))

	req, err := http.NewRequest(http.MethodPost, srv.URL+"/v1/webhooks/paystack", bytes.NewReader([]byte(`{}`)))
	require.NoError(t, err)
	req.Header.Set("X-Paystack-Signature", "deadbeef")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "deadbeef", validator.headers["X-Paystack-Signature"])
}

func TestWebhookProviderNameLowercased(t *testing.T) {
	validator := &stubValidator{valid: true}
	srv := newWebhookTestServer(t, validator, idleQueue(t))

	resp, err := http.Post(srv.URL+"/v1/webhooks/PayStack", "application/json", bytes.NewReader([]byte(`{}`)))
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "paystack", validator.providerName)
}
