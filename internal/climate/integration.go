package climate

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/nerrad567/climate-control/internal/configentry"
	"github.com/nerrad567/climate-control/internal/platform"
)

// Integration manages one Controller per climate_control config entry.
type Integration struct {
	pctx     *platform.Context
	logger   Logger
	observer Observer

	mu          sync.Mutex
	controllers map[string]*Controller // keyed by entry ID
}

// NewIntegration creates the integration and registers its services.
// It stores itself in the context's Domain slot and unregisters the
// services when the context closes.
//
// Parameters:
//   - pctx: Application context
//   - logger: Logger instance (may be nil)
//   - observer: Metrics observer (may be nil)
func NewIntegration(pctx *platform.Context, logger Logger, observer Observer) (*Integration, error) {
	if logger == nil {
		logger = noopLogger{}
	}
	i := &Integration{
		pctx:        pctx,
		logger:      logger,
		observer:    observer,
		controllers: make(map[string]*Controller),
	}

	registerServices(pctx.Host)
	if err := pctx.OnClose(Domain, func(context.Context) error {
		unregisterServices(pctx.Host)
		pctx.DeleteData(Domain)
		return nil
	}); err != nil {
		unregisterServices(pctx.Host)
		return nil, err
	}

	pctx.SetData(Domain, i)
	return i, nil
}

// FromContext returns the integration stored in pctx.
func FromContext(pctx *platform.Context) (*Integration, bool) {
	v, ok := pctx.Data(Domain)
	if !ok {
		return nil, false
	}
	i, ok := v.(*Integration)
	return i, ok
}

// SetupEntry creates and adds the controller for entry.
// Entries of other domains are ignored.
func (i *Integration) SetupEntry(ctx context.Context, entry *configentry.Entry) error {
	if entry.Domain != Domain {
		return nil
	}

	cfg, err := ParseEntryConfig(entry.Data, entry.Options)
	if err != nil {
		return fmt.Errorf("entry %s: %w", entry.ID, err)
	}

	i.mu.Lock()
	defer i.mu.Unlock()

	if _, loaded := i.controllers[entry.ID]; loaded {
		return fmt.Errorf("%w: %s", ErrEntryLoaded, entry.ID)
	}

	host := i.pctx.Host
	entityID := host.AvailableEntityID(EntityDomain, cfg.Name)
	c := NewController(entry.ID, entityID, cfg, i.logger, i.observer)
	if err := host.AddEntity(ctx, c); err != nil {
		return fmt.Errorf("entry %s: %w", entry.ID, err)
	}

	i.controllers[entry.ID] = c
	i.logger.Info("climate entry set up", "entry_id", entry.ID, "entity_id", entityID, "name", cfg.Name)
	return nil
}

// UnloadEntry removes the controller for entry.
func (i *Integration) UnloadEntry(ctx context.Context, entry *configentry.Entry) error {
	if entry.Domain != Domain {
		return nil
	}

	i.mu.Lock()
	c, ok := i.controllers[entry.ID]
	delete(i.controllers, entry.ID)
	i.mu.Unlock()

	if !ok {
		return fmt.Errorf("%w: %s", ErrEntryNotLoaded, entry.ID)
	}

	if err := i.pctx.Host.RemoveEntity(ctx, c.EntityID()); err != nil {
		return fmt.Errorf("entry %s: %w", entry.ID, err)
	}
	i.logger.Info("climate entry unloaded", "entry_id", entry.ID, "entity_id", c.EntityID())
	return nil
}

// ReloadEntry unloads and sets up entry again so new options take effect.
func (i *Integration) ReloadEntry(ctx context.Context, entry *configentry.Entry) error {
	if entry.Domain != Domain {
		return nil
	}
	if err := i.UnloadEntry(ctx, entry); err != nil {
		i.logger.Warn("reload: unload failed", "entry_id", entry.ID, "error", err)
	}
	return i.SetupEntry(ctx, entry)
}

// Controller returns the controller of an entry.
func (i *Integration) Controller(entryID string) (*Controller, bool) {
	i.mu.Lock()
	defer i.mu.Unlock()
	c, ok := i.controllers[entryID]
	return c, ok
}

// Controllers returns all loaded controllers ordered by entity ID.
func (i *Integration) Controllers() []*Controller {
	i.mu.Lock()
	out := make([]*Controller, 0, len(i.controllers))
	for _, c := range i.controllers {
		out = append(out, c)
	}
	i.mu.Unlock()

	slices.SortFunc(out, func(a, b *Controller) int {
		return strings.Compare(a.EntityID(), b.EntityID())
	})
	return out
}
