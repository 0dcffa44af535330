package httpserver

import (
	"encoding/json"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aircast/signaling-relay/internal/config"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func getJSON(t *testing.T, url string) (int, map[string]any) {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()

	var body map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	return resp.StatusCode, body
}

func TestHealthz(t *testing.T) {
	s := New(config.Config{}, testLogger())
	ts := httptest.NewServer(s.Mux())
	defer ts.Close()

	status, body := getJSON(t, ts.URL+"/healthz")
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, true, body["ok"])
}

func TestReadyz_StartingUntilServe(t *testing.T) {
	s := New(config.Config{ListenAddr: "127.0.0.1:0"}, testLogger())
	ts := httptest.NewServer(s.Mux())
	defer ts.Close()

	status, body := getJSON(t, ts.URL+"/readyz")
	assert.Equal(t, http.StatusServiceUnavailable, status)
	assert.Equal(t, false, body["ready"])
	assert.Equal(t, "starting", body["status"])

	s.ready.Store(true)
	status, body = getJSON(t, ts.URL+"/readyz")
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, true, body["ready"])
}

func TestServeFlipsReady(t *testing.T) {
	s := New(config.Config{ListenAddr: "127.0.0.1:0"}, testLogger())

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() { done <- s.Serve(ln) }()

	require.Eventually(t, func() bool {
		resp, err := http.Get("http://" + ln.Addr().String() + "/readyz")
		if err != nil {
			return false
		}
		defer resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 2*time.Second, 20*time.Millisecond)

	require.NoError(t, s.Close())
	err = <-done
	assert.ErrorIs(t, err, ErrServerClosed)
}

func TestRequestIDMiddleware(t *testing.T) {
	s := New(config.Config{}, testLogger())
	handler := chain(s.Mux(), requestIDMiddleware())
	ts := httptest.NewServer(handler)
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.NotEmpty(t, resp.Header.Get("X-Request-ID"))

	req, err := http.NewRequest(http.MethodGet, ts.URL+"/healthz", nil)
	require.NoError(t, err)
	req.Header.Set("X-Request-ID", "req-42")
	resp2, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp2.Body.Close()
	assert.Equal(t, "req-42", resp2.Header.Get("X-Request-ID"))
}

func TestRecoverMiddleware(t *testing.T) {
	panicking := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	})
	ts := httptest.NewServer(recoverMiddleware(testLogger())(panicking))
	defer ts.Close()

	resp, err := http.Get(ts.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
}
