package automation

import (
	"fmt"
	"sort"
	"sync"
)

// Logger defines the logging interface used by the Registry and Engine.
// This allows different logging implementations to be used.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// noopLogger is a logger that does nothing.
type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Registry holds the configured mirror rules.
//
// Rules come from configuration at startup; the registry validates them
// and rejects duplicate IDs. All public methods are thread-safe.
type Registry struct {
	rules  map[string]Rule
	mu     sync.RWMutex
	logger Logger
}

// NewRegistry creates an empty rule registry.
func NewRegistry() *Registry {
	return &Registry{
		rules:  make(map[string]Rule),
		logger: noopLogger{},
	}
}

// SetLogger sets the logger for the registry.
func (r *Registry) SetLogger(logger Logger) {
	r.logger = logger
}

// Add validates and stores a rule. An empty ID is generated.
func (r *Registry) Add(rule Rule) (Rule, error) {
	if rule.ID == "" {
		rule.ID = GenerateID()
	}
	if err := ValidateRule(&rule); err != nil {
		return Rule{}, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.rules[rule.ID]; exists {
		return Rule{}, fmt.Errorf("%w: %s", ErrRuleExists, rule.ID)
	}
	r.rules[rule.ID] = rule

	r.logger.Info("automation rule added", "id", rule.ID, "source", rule.Source, "target", rule.Target)
	return rule, nil
}

// Remove deletes a rule.
func (r *Registry) Remove(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.rules[id]; !exists {
		return ErrRuleNotFound
	}
	delete(r.rules, id)
	return nil
}

// Get returns a rule by ID.
func (r *Registry) Get(id string) (Rule, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rule, ok := r.rules[id]
	if !ok {
		return Rule{}, ErrRuleNotFound
	}
	return rule, nil
}

// List returns all rules sorted by ID.
func (r *Registry) List() []Rule {
	r.mu.RLock()
	out := make([]Rule, 0, len(r.rules))
	for _, rule := range r.rules {
		out = append(out, rule)
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Count returns the number of rules.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.rules)
}
