package monitor

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
)

func newTestMonitor() *Monitor {
	registry := prometheus.NewRegistry()
	return NewMonitorWithRegistry("werewolf_test", registry, registry)
}

func gather(t *testing.T, m *Monitor) string {
	t.Helper()
	srv := httptest.NewServer(m.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/metrics")
	if err != nil {
		t.Fatalf("GET /metrics: %v", err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return string(body)
}

func TestMonitor_CommandCounters(t *testing.T) {
	m := newTestMonitor()

	m.CommandApplied("vote")
	m.CommandApplied("vote")
	m.CommandIgnored("vote", "wrong_phase")

	body := gather(t, m)
	if !strings.Contains(body, `werewolf_test_commands_applied_total{command="vote"} 2`) {
		t.Errorf("Applied counter missing from output:\n%s", body)
	}
	if !strings.Contains(body, `werewolf_test_commands_ignored_total{command="vote",reason="wrong_phase"} 1`) {
		t.Errorf("Ignored counter missing from output:\n%s", body)
	}
}

func TestMonitor_Gauges(t *testing.T) {
	m := newTestMonitor()

	m.IncOnlinePlayers()
	m.IncOnlinePlayers()
	m.DecOnlinePlayers()
	m.SetActiveRooms(3)
	m.IncMessagesReceived("203")
	m.ReplayDropped()

	body := gather(t, m)
	for _, want := range []string{
		"werewolf_test_online_players 1",
		"werewolf_test_active_rooms 3",
		`werewolf_test_messages_received_total{msg="203"} 1`,
		"werewolf_test_replay_events_dropped_total 1",
	} {
		if !strings.Contains(body, want) {
			t.Errorf("Expected %q in metrics output", want)
		}
	}
}
