package automation

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/google/uuid"
)

const (
	maxIDLength     = 64
	entityIDPattern = `^[a-z_]+\.[a-z0-9_]+$`
)

var entityIDRegex = regexp.MustCompile(entityIDPattern)

// ValidateRule checks a rule's ID, source and target.
// Returns an error describing the first validation failure found.
func ValidateRule(r *Rule) error {
	if r == nil {
		return ErrInvalidRule
	}
	if r.ID == "" || len(r.ID) > maxIDLength {
		return fmt.Errorf("%w: id must be 1-%d characters", ErrInvalidRule, maxIDLength)
	}
	if !entityIDRegex.MatchString(r.Source) {
		return fmt.Errorf("%w: source %q is not an entity id", ErrInvalidRule, r.Source)
	}
	if !entityIDRegex.MatchString(r.Target) {
		return fmt.Errorf("%w: target %q is not an entity id", ErrInvalidRule, r.Target)
	}
	if domainOf(r.Target) != SwitchDomain {
		return fmt.Errorf("%w: target %q is not a switch", ErrInvalidRule, r.Target)
	}
	if r.Source == r.Target {
		return fmt.Errorf("%w: source and target are the same entity", ErrInvalidRule)
	}
	return nil
}

// GenerateID creates a new UUID for a rule.
func GenerateID() string {
	return uuid.New().String()
}

func domainOf(entityID string) string {
	domain, _, _ := strings.Cut(entityID, ".")
	return domain
}
