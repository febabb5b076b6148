package configentry

import (
	"maps"
	"time"
)

// Entry is one stored configuration of an integration.
//
// Data holds what the config flow collected. Options holds what the
// options flow changed afterwards and takes precedence over Data.
type Entry struct {
	ID        string         `json:"entry_id"`
	Domain    string         `json:"domain"`
	Title     string         `json:"title"`
	UniqueID  string         `json:"unique_id,omitempty"`
	Data      map[string]any `json:"data"`
	Options   map[string]any `json:"options"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
}

// Merged returns Data overlaid with Options.
func (e *Entry) Merged() map[string]any {
	out := make(map[string]any, len(e.Data)+len(e.Options))
	maps.Copy(out, e.Data)
	maps.Copy(out, e.Options)
	return out
}

// DeepCopy returns a copy whose maps can be modified independently.
// Values inside Data and Options are flat scalars.
func (e *Entry) DeepCopy() *Entry {
	if e == nil {
		return nil
	}
	c := *e
	c.Data = maps.Clone(e.Data)
	c.Options = maps.Clone(e.Options)
	if c.Data == nil {
		c.Data = map[string]any{}
	}
	if c.Options == nil {
		c.Options = map[string]any{}
	}
	return &c
}
