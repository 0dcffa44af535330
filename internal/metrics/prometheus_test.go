package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPrometheusHandler(t *testing.T) {
	m := New()
	m.Inc(RoomCreated)
	m.Add(ChatDelivered, 2)

	ts := httptest.NewServer(PrometheusHandler(m))
	defer ts.Close()

	resp, err := http.Get(ts.URL)
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Type"), "text/plain")

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	out := string(body)

	assert.Contains(t, out, "# TYPE aircast_signaling_events_total counter")
	assert.Contains(t, out, `aircast_signaling_events_total{event="room_created"} 1`)
	assert.Contains(t, out, `aircast_signaling_events_total{event="chat_delivered"} 2`)

	// Output is sorted by event name for stable scrapes.
	chatIdx := strings.Index(out, "chat_delivered")
	roomIdx := strings.Index(out, "room_created")
	assert.Less(t, chatIdx, roomIdx)
}

func TestPrometheusHandler_NilMetrics(t *testing.T) {
	ts := httptest.NewServer(PrometheusHandler(nil))
	defer ts.Close()

	resp, err := http.Get(ts.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
}
