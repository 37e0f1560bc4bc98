package rpcserver_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/R3E-Network/credible-commitment-machine/internal/commitment"
	platformos "github.com/R3E-Network/credible-commitment-machine/platform/os"
	"github.com/R3E-Network/credible-commitment-machine/rpcserver"
	"github.com/R3E-Network/credible-commitment-machine/services/ccm"
)

func newTestHTTPServer(t *testing.T) *httptest.Server {
	t.Helper()
	metrics := platformos.NewPrometheusMetrics()
	serviceOS := platformos.NewHost("ccm-http-test", platformos.WithMetrics(metrics))
	svc, err := ccm.New(serviceOS, "test-enclave", commitment.EnclaveConfig{})
	require.NoError(t, err)
	require.NoError(t, svc.Start(context.Background()))
	t.Cleanup(func() { _ = svc.Stop(context.Background()) })

	handler := rpcserver.NewHandler(svc)
	httpServer := rpcserver.NewHTTPServer("127.0.0.1:0", handler, serviceOS.Logger(), metrics.Handler())

	// exercise HTTPServer's own mux via httptest instead of binding a real
	// port: NewHTTPServer builds the router eagerly, so its handler can be
	// driven directly through net/http/httptest.
	mux := httptest.NewServer(httpServer.Handler())
	t.Cleanup(mux.Close)
	return mux
}

func TestHTTPServer_HealthzReportsRunning(t *testing.T) {
	server := newTestHTTPServer(t)
	resp, err := http.Get(server.URL + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestHTTPServer_RPCRoundTrip(t *testing.T) {
	server := newTestHTTPServer(t)

	body, err := json.Marshal(map[string]any{
		"jsonrpc": "2.0",
		"id":      1,
		"method":  "health",
	})
	require.NoError(t, err)

	resp, err := http.Post(server.URL+"/rpc", "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var decoded rpcserver.Response
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&decoded))
	require.Nil(t, decoded.Error)
}

func TestHTTPServer_MetricsExposesRegisteredCollectors(t *testing.T) {
	server := newTestHTTPServer(t)
	resp, err := http.Get(server.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.Contains(t, string(body), "ccm_locks_created_total")
}

func TestHTTPServer_RPCRejectsMalformedJSON(t *testing.T) {
	server := newTestHTTPServer(t)

	resp, err := http.Post(server.URL+"/rpc", "application/json", bytes.NewReader([]byte("{not json")))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)

	var decoded rpcserver.Response
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&decoded))
	require.NotNil(t, decoded.Error)
	require.Equal(t, -32700, decoded.Error.Code)
}
