package audit

import (
	"errors"
	"time"
)

// Actions recorded by the API.
const (
	ActionServiceCall   = "service_call"
	ActionEntryCreate   = "entry_create"
	ActionEntryDelete   = "entry_delete"
	ActionOptionsUpdate = "options_update"
)

// SourceAPI marks records written by the HTTP API.
const SourceAPI = "api"

// ErrTargetRequired is returned by Create when a record has no target.
var ErrTargetRequired = errors.New("audit: target is required")

// Record is one audit trail entry.
//
// Target names what was acted on: "switch.turn_on" for a service call,
// the entry ID for config entry changes.
type Record struct {
	ID        string         `json:"id"`
	Action    string         `json:"action"`
	Target    string         `json:"target"`
	Subject   string         `json:"subject,omitempty"`
	Role      string         `json:"role,omitempty"`
	Source    string         `json:"source"`
	Details   map[string]any `json:"details,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
}

// Filter controls which records List returns.
type Filter struct {
	Action  string // optional
	Target  string // optional
	Subject string // optional
	Limit   int    // default 50, max 200
	Offset  int
}

// Page is one page of List results.
type Page struct {
	Records []Record `json:"records"`
	Total   int      `json:"total"`
	Limit   int      `json:"limit"`
	Offset  int      `json:"offset"`
}
