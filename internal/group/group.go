// Package group implements static group entities.
//
// A group's only content is its entity_id attribute, the list of member
// entity IDs. Membership is fixed when the group is created. Its state
// is always "unknown".
package group

import (
	"context"
	"fmt"
	"slices"

	"github.com/nerrad567/climate-control/internal/platform"
)

// EntityDomain is the entity domain of groups.
const EntityDomain = "group"

// DefaultClimateGroup is the group the aggregation sensor reads.
const DefaultClimateGroup = "group.heizung_climates"

// StateUnknown is the fixed state of every group.
const StateUnknown = "unknown"

// Group is a named list of entity IDs.
type Group struct {
	entityID string
	name     string
	members  []string
}

// New creates a group.
//
// Returns:
//   - error: platform.ErrInvalidEntityID if entityID is not in the group domain
func New(entityID, name string, members []string) (*Group, error) {
	domain, _, err := platform.SplitEntityID(entityID)
	if err != nil {
		return nil, err
	}
	if domain != EntityDomain {
		return nil, fmt.Errorf("%w: %q is not a group", platform.ErrInvalidEntityID, entityID)
	}
	if name == "" {
		name = entityID
	}
	return &Group{entityID: entityID, name: name, members: slices.Clone(members)}, nil
}

// EntityID implements platform.Entity.
func (g *Group) EntityID() string { return g.entityID }

// UniqueID implements platform.Entity.
func (g *Group) UniqueID() string { return g.entityID }

// State implements platform.Entity.
func (g *Group) State() string { return StateUnknown }

// Members returns the member entity IDs.
func (g *Group) Members() []string { return slices.Clone(g.members) }

// Attributes implements platform.Entity.
func (g *Group) Attributes() map[string]any {
	return map[string]any{
		platform.AttrEntityID: g.Members(),
		"friendly_name":       g.name,
	}
}

// Attach implements platform.Entity. Groups have nothing to set up.
func (g *Group) Attach(context.Context, *platform.Host) error { return nil }

// Detach implements platform.Entity.
func (g *Group) Detach(context.Context) error { return nil }

// MembersOf returns the entity_id attribute of a group state. It accepts
// the []string written by Group and the []any produced by JSON decoding.
func MembersOf(s *platform.State) []string {
	if s == nil {
		return nil
	}
	switch v := s.Attributes[platform.AttrEntityID].(type) {
	case []string:
		return slices.Clone(v)
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if id, ok := item.(string); ok {
				out = append(out, id)
			}
		}
		return out
	case string:
		return []string{v}
	default:
		return nil
	}
}
