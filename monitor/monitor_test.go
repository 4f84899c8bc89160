package monitor

import (
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func scrape(t *testing.T, m *Monitor) string {
	t.Helper()
	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	require.Equal(t, 200, rec.Code)
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	return string(body)
}

func TestMonitor_Counters(t *testing.T) {
	m := NewMonitor("test")

	m.IncOnlineConnections()
	m.IncOnlineConnections()
	m.DecOnlineConnections()
	m.SetActiveRooms(3)
	m.IncMessagesReceived("skip")
	m.IncMessagesReceived("skip")
	m.IncMessagesReceived("bop")
	m.IncSendFailures()
	m.DeckReshuffled()
	m.TurnCompleted()
	m.TurnCompleted()
	m.GameFinished()
	m.ObserveMessageLatency(time.Millisecond)

	body := scrape(t, m)
	for _, line := range []string{
		"test_online_connections 1",
		"test_active_rooms 3",
		`test_messages_received_total{type="skip"} 2`,
		`test_messages_received_total{type="bop"} 1`,
		"test_send_failures_total 1",
		"test_deck_reshuffles_total 1",
		"test_turns_completed_total 2",
		"test_games_finished_total 1",
		"test_message_latency_seconds_count 1",
		"test_uptime_seconds",
	} {
		assert.Contains(t, body, line)
	}
}

func TestMonitor_IndependentRegistries(t *testing.T) {
	// Two monitors with the same namespace must not collide.
	a := NewMonitor("dup")
	b := NewMonitor("dup")
	a.GameFinished()

	assert.Contains(t, scrape(t, a), "dup_games_finished_total 1")
	assert.Contains(t, scrape(t, b), "dup_games_finished_total 0")
}
