package configflow

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/nerrad567/climate-control/internal/climate"
	"github.com/nerrad567/climate-control/internal/configentry"
	"github.com/nerrad567/climate-control/internal/platform"
)

// flowTTL bounds how long an abandoned flow is kept.
const flowTTL = time.Hour

// probeQoS is the QoS used for topic probes.
const probeQoS byte = 1

// Logger defines the logging interface used by the Manager.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// EntryStore is the part of the config entry registry the flows need.
// *configentry.Registry satisfies it.
type EntryStore interface {
	HasUniqueID(domain, uniqueID string) bool
	Get(ctx context.Context, id string) (*configentry.Entry, error)
	Create(ctx context.Context, entry *configentry.Entry) error
	UpdateOptions(ctx context.Context, id string, options map[string]any) (*configentry.Entry, error)
}

// MQTTProbe checks broker availability and that topics can be subscribed.
// *platform.Mux satisfies it.
type MQTTProbe interface {
	IsConnected() bool
	Subscribe(topic string, qos byte, handler platform.MessageHandler) (func() error, error)
}

type flowKind int

const (
	kindConfig flowKind = iota
	kindOptions
)

// flow is one wizard in progress. mu serializes submissions to the same
// flow; step and data are written under Manager.mu as well.
type flow struct {
	mu sync.Mutex

	id      string
	kind    flowKind
	handler string
	step    string
	entryID string
	data    map[string]any
	started time.Time
}

// Manager runs the interactive setup wizard (config flow) and the options
// flow of the climate_control integration.
//
// A config flow walks through the "user" step (name and topics) and the
// "climate" step (temperature limits) and finishes by creating a config
// entry. An options flow has a single "init" step and finishes by
// replacing the entry's options.
//
// All public methods are thread-safe.
type Manager struct {
	entries EntryStore
	probe   MQTTProbe
	logger  Logger
	now     func() time.Time

	mu    sync.Mutex
	flows map[string]*flow
}

// NewManager creates a flow manager backed by entries and probe.
func NewManager(entries EntryStore, probe MQTTProbe) *Manager {
	return &Manager{
		entries: entries,
		probe:   probe,
		logger:  noopLogger{},
		now:     time.Now,
		flows:   make(map[string]*flow),
	}
}

// SetLogger sets the logger for the manager.
func (m *Manager) SetLogger(logger Logger) {
	if logger != nil {
		m.logger = logger
	}
}

// Init starts a config flow for domain and returns the "user" form.
//
// Returns:
//   - *Result: The first form of the flow
//   - error: ErrUnknownHandler if domain has no config flow
func (m *Manager) Init(_ context.Context, domain string) (*Result, error) {
	if domain != climate.Domain {
		return nil, fmt.Errorf("%w: %s", ErrUnknownHandler, domain)
	}

	f, err := m.start(kindConfig, domain, StepUser, "")
	if err != nil {
		return nil, err
	}
	return m.userForm(f, nil), nil
}

// InitOptions starts an options flow for an existing entry and returns
// the "init" form prefilled from the entry's options. Only one options
// flow per entry may be open; a second returns ErrFlowInProgress.
func (m *Manager) InitOptions(ctx context.Context, entryID string) (*Result, error) {
	entry, err := m.entries.Get(ctx, entryID)
	if err != nil {
		return nil, err
	}
	if entry.Domain != climate.Domain {
		return nil, fmt.Errorf("%w: %s", ErrUnknownHandler, entry.Domain)
	}

	f, err := m.start(kindOptions, entry.Domain, StepInit, entry.ID)
	if err != nil {
		return nil, err
	}
	return m.optionsForm(f, entry.Options, nil), nil
}

// Configure advances a config flow with the user's input for its
// current step.
//
// Parameters:
//   - ctx: Context for store operations
//   - flowID: ID returned by Init
//   - input: Field values keyed by field name
//
// Returns:
//   - *Result: The next form, a form with errors, an abort or the created entry
//   - error: ErrFlowNotFound if flowID is unknown or not a config flow
func (m *Manager) Configure(ctx context.Context, flowID string, input map[string]any) (*Result, error) {
	f, err := m.acquire(flowID, kindConfig)
	if err != nil {
		return nil, err
	}
	defer f.mu.Unlock()

	return m.guard(f, func() *Result {
		switch m.stepOf(f) {
		case StepUser:
			return m.stepUser(ctx, f, input)
		case StepClimate:
			return m.stepClimate(ctx, f, input)
		}
		return m.formWithErrors(f, map[string]string{ErrorBase: ErrorUnknown})
	}), nil
}

// ConfigureOptions finishes an options flow with the user's input.
func (m *Manager) ConfigureOptions(ctx context.Context, flowID string, input map[string]any) (*Result, error) {
	f, err := m.acquire(flowID, kindOptions)
	if err != nil {
		return nil, err
	}
	defer f.mu.Unlock()

	return m.guard(f, func() *Result {
		return m.stepOptions(ctx, f, input)
	}), nil
}

// Abort discards a flow in progress.
func (m *Manager) Abort(flowID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.flows[flowID]; !ok {
		return ErrFlowNotFound
	}
	delete(m.flows, flowID)
	return nil
}

// InProgress returns the IDs of flows that have not finished, sorted.
func (m *Manager) InProgress() []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.expireLocked()
	return slices.Sorted(maps.Keys(m.flows))
}

// ─── Steps ──────────────────────────────────────────────────────────

func (m *Manager) stepUser(ctx context.Context, f *flow, input map[string]any) *Result {
	name := strings.TrimSpace(stringOf(input[climate.ConfName]))
	if name == "" {
		return m.userForm(f, map[string]string{climate.ConfName: ErrorInvalidName})
	}

	if m.entries.HasUniqueID(climate.Domain, name) {
		m.finish(f)
		return m.abort(f, ReasonAlreadyConfigured)
	}

	data := map[string]any{climate.ConfName: name}
	for _, key := range climate.RequiredTopics {
		topic := strings.TrimSpace(stringOf(input[key]))
		if topic == "" {
			return m.userForm(f, map[string]string{ErrorBase: ErrorInvalidTopic})
		}
		data[key] = topic
	}
	for _, key := range climate.OptionalTopics {
		if topic := strings.TrimSpace(stringOf(input[key])); topic != "" {
			data[key] = topic
		}
	}

	if !m.probe.IsConnected() {
		return m.userForm(f, map[string]string{ErrorBase: ErrorMQTTUnavailable})
	}

	for _, key := range probedTopics {
		if err := m.probeTopic(data[key].(string)); err != nil {
			m.logger.Warn("topic probe failed", "flow_id", f.id, "topic", data[key], "error", err)
			return m.userForm(f, map[string]string{ErrorBase: ErrorTopicNotExist})
		}
	}

	m.mu.Lock()
	f.data = data
	f.step = StepClimate
	m.mu.Unlock()

	return m.climateForm(f, nil)
}

func (m *Manager) stepClimate(ctx context.Context, f *flow, input map[string]any) *Result {
	values, errs := parseTemperatures(input, temperatureSchema(nil))
	if len(errs) == 0 {
		errs = validateTemperatures(values)
	}
	if len(errs) > 0 {
		return m.climateForm(f, errs)
	}

	m.mu.Lock()
	data := maps.Clone(f.data)
	m.mu.Unlock()
	maps.Copy(data, values)

	name := data[climate.ConfName].(string)
	entry := &configentry.Entry{
		Domain:   climate.Domain,
		Title:    name,
		UniqueID: name,
		Data:     data,
	}

	if err := m.entries.Create(ctx, entry); err != nil {
		if errors.Is(err, configentry.ErrEntryExists) {
			m.finish(f)
			return m.abort(f, ReasonAlreadyConfigured)
		}
		if entry.ID == "" || !m.stored(ctx, entry.ID) {
			m.logger.Error("creating config entry failed", "flow_id", f.id, "error", err)
			return m.climateForm(f, map[string]string{ErrorBase: ErrorUnknown})
		}
		m.logger.Warn("config entry created but setup failed", "entry_id", entry.ID, "error", err)
	}

	m.finish(f)
	m.logger.Info("config flow finished", "flow_id", f.id, "entry_id", entry.ID, "title", entry.Title)
	return &Result{
		Type:    ResultCreateEntry,
		FlowID:  f.id,
		Handler: f.handler,
		Title:   entry.Title,
		Data:    data,
		Entry:   entry,
	}
}

func (m *Manager) stepOptions(ctx context.Context, f *flow, input map[string]any) *Result {
	entry, err := m.entries.Get(ctx, f.entryID)
	if err != nil {
		m.finish(f)
		m.logger.Warn("options flow entry vanished", "flow_id", f.id, "entry_id", f.entryID)
		return m.abort(f, ErrorUnknown)
	}

	schema := temperatureSchema(entry.Options)
	values, errs := parseTemperatures(input, schema)
	if len(errs) == 0 {
		errs = validateTemperatures(values)
	}
	if len(errs) > 0 {
		return m.optionsForm(f, entry.Options, errs)
	}

	updated, err := m.entries.UpdateOptions(ctx, f.entryID, values)
	if err != nil && updated == nil {
		m.logger.Error("updating options failed", "flow_id", f.id, "entry_id", f.entryID, "error", err)
		return m.optionsForm(f, entry.Options, map[string]string{ErrorBase: ErrorUnknown})
	}
	if err != nil {
		m.logger.Warn("options stored but reload failed", "entry_id", f.entryID, "error", err)
	}

	m.finish(f)
	m.logger.Info("options flow finished", "flow_id", f.id, "entry_id", f.entryID)
	return &Result{
		Type:    ResultCreateEntry,
		FlowID:  f.id,
		Handler: f.handler,
		Data:    values,
		Entry:   updated,
	}
}

// probedTopics are subscribed once before leaving the user step.
var probedTopics = []string{
	climate.ConfModeCommandTopic,
	climate.ConfTemperatureCommandTopic,
	climate.ConfTemperatureStateTopic,
	climate.ConfCurrentTemperatureTopic,
}

func (m *Manager) probeTopic(topic string) error {
	unsub, err := m.probe.Subscribe(topic, probeQoS, func(string, []byte) error { return nil })
	if err != nil {
		return err
	}
	return unsub()
}

// ─── Flow bookkeeping ───────────────────────────────────────────────

func (m *Manager) start(kind flowKind, handler, step, entryID string) (*flow, error) {
	f := &flow{
		id:      uuid.New().String(),
		kind:    kind,
		handler: handler,
		step:    step,
		entryID: entryID,
		started: m.now(),
	}

	m.mu.Lock()
	m.expireLocked()
	if kind == kindOptions {
		for _, open := range m.flows {
			if open.kind == kindOptions && open.entryID == entryID {
				m.mu.Unlock()
				return nil, fmt.Errorf("%w: options for entry %s", ErrFlowInProgress, entryID)
			}
		}
	}
	m.flows[f.id] = f
	m.mu.Unlock()

	m.logger.Debug("flow started", "flow_id", f.id, "handler", handler, "step", step)
	return f, nil
}

func (m *Manager) lookup(flowID string, kind flowKind) (*flow, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.expireLocked()
	f, ok := m.flows[flowID]
	if !ok || f.kind != kind {
		return nil, ErrFlowNotFound
	}
	return f, nil
}

// acquire looks up a flow and locks it for one submission. A flow that
// finished while the caller waited for the lock is reported as not found.
// The caller unlocks f.mu.
func (m *Manager) acquire(flowID string, kind flowKind) (*flow, error) {
	f, err := m.lookup(flowID, kind)
	if err != nil {
		return nil, err
	}

	f.mu.Lock()
	m.mu.Lock()
	current, ok := m.flows[flowID]
	m.mu.Unlock()
	if !ok || current != f {
		f.mu.Unlock()
		return nil, ErrFlowNotFound
	}
	return f, nil
}

func (m *Manager) stepOf(f *flow) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return f.step
}

func (m *Manager) finish(f *flow) {
	m.mu.Lock()
	delete(m.flows, f.id)
	m.mu.Unlock()
}

func (m *Manager) expireLocked() {
	cutoff := m.now().Add(-flowTTL)
	for id, f := range m.flows {
		if f.started.Before(cutoff) {
			delete(m.flows, id)
		}
	}
}

func (m *Manager) stored(ctx context.Context, id string) bool {
	_, err := m.entries.Get(ctx, id)
	return err == nil
}

// guard turns a panic inside a step into a form with base "unknown".
func (m *Manager) guard(f *flow, step func() *Result) (res *Result) {
	defer func() {
		if r := recover(); r != nil {
			m.logger.Error("flow step panicked", "flow_id", f.id, "step", m.stepOf(f), "panic", r)
			res = m.formWithErrors(f, map[string]string{ErrorBase: ErrorUnknown})
		}
	}()
	return step()
}

// ─── Results ────────────────────────────────────────────────────────

func (m *Manager) formWithErrors(f *flow, errs map[string]string) *Result {
	switch m.stepOf(f) {
	case StepClimate:
		return m.climateForm(f, errs)
	case StepInit:
		return m.optionsForm(f, nil, errs)
	}
	return m.userForm(f, errs)
}

func (m *Manager) userForm(f *flow, errs map[string]string) *Result {
	return form(f, StepUser, userSchema(), errs)
}

func (m *Manager) climateForm(f *flow, errs map[string]string) *Result {
	return form(f, StepClimate, temperatureSchema(nil), errs)
}

func (m *Manager) optionsForm(f *flow, options map[string]any, errs map[string]string) *Result {
	return form(f, StepInit, temperatureSchema(options), errs)
}

func (m *Manager) abort(f *flow, reason string) *Result {
	m.logger.Info("flow aborted", "flow_id", f.id, "reason", reason)
	return &Result{
		Type:    ResultAbort,
		FlowID:  f.id,
		Handler: f.handler,
		Reason:  reason,
	}
}

func form(f *flow, step string, schema []Field, errs map[string]string) *Result {
	if errs == nil {
		errs = map[string]string{}
	}
	return &Result{
		Type:    ResultForm,
		FlowID:  f.id,
		Handler: f.handler,
		StepID:  step,
		Schema:  schema,
		Errors:  errs,
	}
}

func stringOf(v any) string {
	s, _ := v.(string)
	return s
}
