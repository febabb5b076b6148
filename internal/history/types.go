package history

import "time"

// Entry is one recorded entity state.
//
// Attributes hold the attribute map as it was published; numeric
// attributes come back as float64 after a round trip through storage.
type Entry struct {
	ID         int64          `json:"id"`
	EntityID   string         `json:"entity_id"`
	State      string         `json:"state"`
	Attributes map[string]any `json:"attributes"`
	CreatedAt  time.Time      `json:"created_at"`
}
