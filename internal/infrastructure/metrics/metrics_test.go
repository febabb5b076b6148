package metrics

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMQTTCounters(t *testing.T) {
	m := New("", "test")

	m.MessageReceived("home/switch/climate/state")
	m.MessageReceived("home/switch/climate/state")
	m.MessagePublished("home/switch/climate/set")
	m.HandlerFailed("home/switch/climate/state")

	if got := testutil.ToFloat64(m.mqttReceived.WithLabelValues("home/switch/climate/state")); got != 2 {
		t.Errorf("received = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.mqttPublished.WithLabelValues("home/switch/climate/set")); got != 1 {
		t.Errorf("published = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.mqttFailed.WithLabelValues("home/switch/climate/state")); got != 1 {
		t.Errorf("failed = %v, want 1", got)
	}
}

func TestClimateCounters(t *testing.T) {
	m := New("", "test")

	m.PayloadRejected("climate.living", "mode")
	m.CommandPublished("climate.living", "set_temperature")
	m.AutomationRun("climate_mirror", "switch.turn_on", nil)
	m.AutomationRun("climate_mirror", "switch.turn_on", errors.New("boom"))

	if got := testutil.ToFloat64(m.payloadsRejected.WithLabelValues("climate.living", "mode")); got != 1 {
		t.Errorf("payloads rejected = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.commandsPublished.WithLabelValues("climate.living", "set_temperature")); got != 1 {
		t.Errorf("commands published = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.automationRuns.WithLabelValues("climate_mirror", "switch.turn_on", "ok")); got != 1 {
		t.Errorf("automation ok = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.automationRuns.WithLabelValues("climate_mirror", "switch.turn_on", "error")); got != 1 {
		t.Errorf("automation error = %v, want 1", got)
	}
}

func TestObserveState(t *testing.T) {
	m := New("", "test")
	target := 21.5

	m.ObserveState("switch.climate", "on", nil)
	m.ObserveState("binary_sensor.heizung_active", "off", nil)
	m.ObserveState("climate.living", "heat", map[string]any{
		"temperature":         &target,
		"current_temperature": 19.0,
	})

	if got := testutil.ToFloat64(m.entityActive.WithLabelValues("switch.climate")); got != 1 {
		t.Errorf("switch active = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.entityActive.WithLabelValues("binary_sensor.heizung_active")); got != 0 {
		t.Errorf("sensor active = %v, want 0", got)
	}
	if got := testutil.ToFloat64(m.targetTemperature.WithLabelValues("climate.living")); got != 21.5 {
		t.Errorf("target = %v, want 21.5", got)
	}
	if got := testutil.ToFloat64(m.stateChanges.WithLabelValues("climate")); got != 1 {
		t.Errorf("state changes = %v, want 1", got)
	}

	// Unset current temperature removes the series.
	m.ObserveState("climate.living", "heat", map[string]any{"current_temperature": nil})
	if n := testutil.CollectAndCount(m.currentTemperature); n != 0 {
		t.Errorf("current temperature series = %d, want 0", n)
	}

	m.ForgetEntity("switch.climate")
	if n := testutil.CollectAndCount(m.entityActive); n != 1 {
		t.Errorf("entity active series = %d, want 1 after forget", n)
	}
}

func TestHandler(t *testing.T) {
	m := New("cc", "1.2.3")
	m.CommandPublished("climate.living", "set_hvac_mode")

	srv := httptest.NewServer(m.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	if err != nil {
		t.Fatalf("GET /metrics error = %v", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}

	for _, want := range []string{
		`cc_build_info{version="1.2.3"} 1`,
		`cc_climate_commands_published_total{command="set_hvac_mode",entity_id="climate.living"} 1`,
		"go_goroutines",
	} {
		if !strings.Contains(string(body), want) {
			t.Errorf("metrics output missing %q", want)
		}
	}
}
