package api_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trustrail/trustrail/pkg/api"
	"github.com/trustrail/trustrail/pkg/offchain"
)

// recordingHandler captures what the server hands to the engine.
type recordingHandler struct {
	sender string
	body   []byte
	status int
	resp   []byte
}

func (h *recordingHandler) ProcessInboundRequest(_ context.Context, senderAddress string, requestBytes []byte) (int, []byte) {
	h.sender = senderAddress
	h.body = requestBytes
	return h.status, h.resp
}

func newTestServer(t *testing.T, handler api.CommandHandler, rps float64, burst int) *httptest.Server {
	t.Helper()
	srv := api.NewServer(api.Options{
		Handler:      handler,
		RateLimitRPS: rps,
		RateBurst:    burst,
	})
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return ts
}

func TestServer_DelegatesCommand(t *testing.T) {
	handler := &recordingHandler{status: http.StatusOK, resp: []byte("signed-ack")}
	ts := newTestServer(t, handler, 100, 100)

	req, err := http.NewRequest(http.MethodPost, ts.URL+offchain.CommandPath, strings.NewReader("jws-envelope"))
	require.NoError(t, err)
	req.Header.Set(offchain.HeaderSenderAddress, "ttr1counterpart")
	req.Header.Set(offchain.HeaderRequestID, "req-42")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, offchain.ContentType, resp.Header.Get("Content-Type"))
	assert.Equal(t, "req-42", resp.Header.Get(offchain.HeaderRequestID))
	assert.Equal(t, "ttr1counterpart", handler.sender)
	assert.Equal(t, "jws-envelope", string(handler.body))
}

func TestServer_MissingSenderHeader(t *testing.T) {
	ts := newTestServer(t, &recordingHandler{status: http.StatusOK}, 100, 100)

	resp, err := http.Post(ts.URL+offchain.CommandPath, offchain.ContentType, strings.NewReader("x"))
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestServer_GeneratesRequestID(t *testing.T) {
	handler := &recordingHandler{status: http.StatusOK}
	ts := newTestServer(t, handler, 100, 100)

	req, err := http.NewRequest(http.MethodPost, ts.URL+offchain.CommandPath, strings.NewReader("x"))
	require.NoError(t, err)
	req.Header.Set(offchain.HeaderSenderAddress, "ttr1counterpart")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	assert.NotEmpty(t, resp.Header.Get(offchain.HeaderRequestID))
}

func TestServer_RateLimit(t *testing.T) {
	handler := &recordingHandler{status: http.StatusOK}
	ts := newTestServer(t, handler, 0.0001, 1)

	post := func() int {
		req, err := http.NewRequest(http.MethodPost, ts.URL+offchain.CommandPath, strings.NewReader("x"))
		require.NoError(t, err)
		req.Header.Set(offchain.HeaderSenderAddress, "ttr1counterpart")
		resp, err := http.DefaultClient.Do(req)
		require.NoError(t, err)
		defer func() { _ = resp.Body.Close() }()
		return resp.StatusCode
	}

	assert.Equal(t, http.StatusOK, post())
	assert.Equal(t, http.StatusTooManyRequests, post())
}

func TestServer_Health(t *testing.T) {
	ts := newTestServer(t, &recordingHandler{status: http.StatusOK}, 100, 100)

	resp, err := http.Get(ts.URL + "/healthz")
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
