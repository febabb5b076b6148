package metrics

import (
	"net/http"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// DefaultNamespace prefixes every metric name when none is configured.
const DefaultNamespace = "climate_control"

// Metrics owns a private Prometheus registry and the service's collectors.
//
// It implements the observer hooks of the mqtt, climate, automation and
// history packages so each can count what it does without importing
// Prometheus.
type Metrics struct {
	registry *prometheus.Registry

	mqttReceived  *prometheus.CounterVec
	mqttPublished *prometheus.CounterVec
	mqttFailed    *prometheus.CounterVec

	payloadsRejected  *prometheus.CounterVec
	commandsPublished *prometheus.CounterVec
	automationRuns    *prometheus.CounterVec
	stateChanges      *prometheus.CounterVec

	entityActive       *prometheus.GaugeVec
	targetTemperature  *prometheus.GaugeVec
	currentTemperature *prometheus.GaugeVec
}

// New creates the registry and registers all collectors.
//
// Parameters:
//   - namespace: Metric name prefix (config metrics.namespace)
//   - version: Reported through the build_info gauge
func New(namespace, version string) *Metrics {
	if namespace == "" {
		namespace = DefaultNamespace
	}

	counter := func(subsystem, name, help string, labels ...string) *prometheus.CounterVec {
		return prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      name,
			Help:      help,
		}, labels)
	}
	gauge := func(name, help string, labels ...string) *prometheus.GaugeVec {
		return prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      name,
			Help:      help,
		}, labels)
	}

	m := &Metrics{
		registry: prometheus.NewRegistry(),

		mqttReceived:  counter("mqtt", "messages_received_total", "MQTT messages delivered to handlers", "topic"),
		mqttPublished: counter("mqtt", "messages_published_total", "MQTT messages published", "topic"),
		mqttFailed:    counter("mqtt", "handler_failures_total", "MQTT handlers that returned an error or panicked", "topic"),

		payloadsRejected:  counter("climate", "payloads_rejected_total", "Inbound payloads dropped because they failed to decode", "entity_id", "kind"),
		commandsPublished: counter("climate", "commands_published_total", "Outbound device commands", "entity_id", "command"),
		automationRuns:    counter("automation", "runs_total", "Mirror automation service calls", "automation_id", "service", "result"),
		stateChanges:      counter("", "state_changes_total", "Entity state changes seen on the bus", "domain"),

		entityActive:       gauge("entity_active_bool", "On/off entity state (1=on, 0=off)", "entity_id"),
		targetTemperature:  gauge("target_temperature_celsius", "Climate target temperature", "entity_id"),
		currentTemperature: gauge("current_temperature_celsius", "Climate current temperature", "entity_id"),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace:   namespace,
			Name:        "build_info",
			Help:        "Build information",
			ConstLabels: prometheus.Labels{"version": version},
		}, func() float64 { return 1 }),
		m.mqttReceived,
		m.mqttPublished,
		m.mqttFailed,
		m.payloadsRejected,
		m.commandsPublished,
		m.automationRuns,
		m.stateChanges,
		m.entityActive,
		m.targetTemperature,
		m.currentTemperature,
	)

	return m
}

// Registry exposes the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// MessageReceived implements mqtt.Observer.
func (m *Metrics) MessageReceived(topic string) {
	m.mqttReceived.WithLabelValues(topic).Inc()
}

// MessagePublished implements mqtt.Observer.
func (m *Metrics) MessagePublished(topic string) {
	m.mqttPublished.WithLabelValues(topic).Inc()
}

// HandlerFailed implements mqtt.Observer.
func (m *Metrics) HandlerFailed(topic string) {
	m.mqttFailed.WithLabelValues(topic).Inc()
}

// PayloadRejected counts an inbound payload the codec refused.
// kind is one of mode, temperature, current_temperature.
func (m *Metrics) PayloadRejected(entityID, kind string) {
	m.payloadsRejected.WithLabelValues(entityID, kind).Inc()
}

// CommandPublished counts an outbound device command.
func (m *Metrics) CommandPublished(entityID, command string) {
	m.commandsPublished.WithLabelValues(entityID, command).Inc()
}

// AutomationRun counts a mirror automation service call.
func (m *Metrics) AutomationRun(automationID, service string, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.automationRuns.WithLabelValues(automationID, service, result).Inc()
}

// ObserveState updates gauges from an entity state write.
//
// On/off entities drive entity_active_bool. Climate entities drive the
// temperature gauges from their "temperature" and "current_temperature"
// attributes; an unset current temperature removes that series.
func (m *Metrics) ObserveState(entityID, state string, attrs map[string]any) {
	domain, _, _ := strings.Cut(entityID, ".")
	m.stateChanges.WithLabelValues(domain).Inc()

	switch domain {
	case "switch", "binary_sensor":
		v := 0.0
		if state == "on" {
			v = 1
		}
		m.entityActive.WithLabelValues(entityID).Set(v)
	case "climate":
		if v, ok := asFloat(attrs["temperature"]); ok {
			m.targetTemperature.WithLabelValues(entityID).Set(v)
		}
		if v, ok := asFloat(attrs["current_temperature"]); ok {
			m.currentTemperature.WithLabelValues(entityID).Set(v)
		} else {
			m.currentTemperature.DeleteLabelValues(entityID)
		}
	}
}

// ForgetEntity drops all gauge series for a removed entity.
func (m *Metrics) ForgetEntity(entityID string) {
	m.entityActive.DeleteLabelValues(entityID)
	m.targetTemperature.DeleteLabelValues(entityID)
	m.currentTemperature.DeleteLabelValues(entityID)
}

func asFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case *float64:
		if n == nil {
			return 0, false
		}
		return *n, true
	case int:
		return float64(n), true
	default:
		return 0, false
	}
}
