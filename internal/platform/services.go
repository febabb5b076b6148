package platform

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"sync"
)

// AttrEntityID is the service data key naming the target entities.
const AttrEntityID = "entity_id"

// EntityAll targets every entity of the service's domain.
const EntityAll = "all"

// ServiceCall is one invocation of a registered service.
type ServiceCall struct {
	Domain  string
	Service string
	Data    map[string]any
}

// EntityIDs returns the targets named by Data["entity_id"].
//
// The value may be a single id, a list of ids ([]string or a
// decoded JSON []any), or EntityAll. A missing value is an error.
func (c ServiceCall) EntityIDs() ([]string, error) {
	raw, ok := c.Data[AttrEntityID]
	if !ok {
		return nil, fmt.Errorf("%w: %s.%s requires entity_id", ErrInvalidServiceData, c.Domain, c.Service)
	}

	switch v := raw.(type) {
	case string:
		if v == "" {
			return nil, fmt.Errorf("%w: empty entity_id", ErrInvalidServiceData)
		}
		return []string{v}, nil
	case []string:
		return slices.Clone(v), nil
	case []any:
		ids := make([]string, 0, len(v))
		for _, item := range v {
			s, ok := item.(string)
			if !ok || s == "" {
				return nil, fmt.Errorf("%w: entity_id entries must be strings", ErrInvalidServiceData)
			}
			ids = append(ids, s)
		}
		return ids, nil
	default:
		return nil, fmt.Errorf("%w: entity_id has type %T", ErrInvalidServiceData, raw)
	}
}

// ServiceHandler executes a service call.
type ServiceHandler func(ctx context.Context, call ServiceCall) error

// Services is the registry of callable services keyed by domain and name.
type Services struct {
	mu       sync.RWMutex
	handlers map[string]map[string]ServiceHandler
}

// NewServices creates an empty service registry.
func NewServices() *Services {
	return &Services{handlers: make(map[string]map[string]ServiceHandler)}
}

// Register adds or replaces the handler for domain.service.
func (s *Services) Register(domain, service string, handler ServiceHandler) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.handlers[domain] == nil {
		s.handlers[domain] = make(map[string]ServiceHandler)
	}
	s.handlers[domain][service] = handler
}

// Remove unregisters domain.service.
func (s *Services) Remove(domain, service string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.handlers[domain], service)
	if len(s.handlers[domain]) == 0 {
		delete(s.handlers, domain)
	}
}

// Has reports whether domain.service is registered.
func (s *Services) Has(domain, service string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.handlers[domain][service]
	return ok
}

// Call invokes domain.service with data.
//
// The handler runs on the caller's goroutine. The registry lock is not
// held while it runs.
//
// Returns:
//   - error: ErrServiceNotFound, or whatever the handler returns
func (s *Services) Call(ctx context.Context, domain, service string, data map[string]any) error {
	s.mu.RLock()
	handler, ok := s.handlers[domain][service]
	s.mu.RUnlock()

	if !ok {
		return fmt.Errorf("%w: %s.%s", ErrServiceNotFound, domain, service)
	}
	if data == nil {
		data = map[string]any{}
	}
	return handler(ctx, ServiceCall{Domain: domain, Service: service, Data: data})
}

// List returns registered service names grouped by domain, sorted.
func (s *Services) List() map[string][]string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[string][]string, len(s.handlers))
	for domain, services := range s.handlers {
		names := make([]string, 0, len(services))
		for name := range services {
			names = append(names, name)
		}
		sort.Strings(names)
		out[domain] = names
	}
	return out
}
