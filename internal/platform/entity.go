package platform

import (
	"context"
	"fmt"
	"strings"
	"unicode"
)

// Entity is anything the Host can attach and whose state it publishes.
//
// Attach is called once when the entity is added. It receives the Host so
// the entity can subscribe to MQTT topics, track other entities and
// register services. Detach undoes whatever Attach set up.
//
// State and Attributes are read by the Host when writing the entity's
// state and must be safe to call concurrently with the entity's own
// handlers.
type Entity interface {
	EntityID() string
	UniqueID() string
	State() string
	Attributes() map[string]any
	Attach(ctx context.Context, host *Host) error
	Detach(ctx context.Context) error
}

// SplitEntityID returns the domain and object id of "domain.object_id".
func SplitEntityID(entityID string) (domain, objectID string, err error) {
	domain, objectID, ok := strings.Cut(entityID, ".")
	if !ok || domain == "" || objectID == "" || strings.Contains(objectID, ".") {
		return "", "", fmt.Errorf("%w: %q", ErrInvalidEntityID, entityID)
	}
	return domain, objectID, nil
}

// DomainOf returns the domain part of an entity id, or "" if malformed.
func DomainOf(entityID string) string {
	domain, _, err := SplitEntityID(entityID)
	if err != nil {
		return ""
	}
	return domain
}

var transliterations = map[rune]string{
	'ä': "a", 'ö': "o", 'ü': "u", 'ß': "ss",
	'Ä': "a", 'Ö': "o", 'Ü': "u",
	'é': "e", 'è': "e", 'à': "a", 'ç': "c",
}

// Slugify turns a display name into an object id:
// "Heizung Wohnzimmer" -> "heizung_wohnzimmer".
//
// Runs of anything other than ASCII letters and digits collapse to one
// underscore. An empty result becomes "unnamed".
func Slugify(name string) string {
	var b strings.Builder
	pendingSep := false

	write := func(s string) {
		if pendingSep && b.Len() > 0 {
			b.WriteByte('_')
		}
		pendingSep = false
		b.WriteString(s)
	}

	for _, r := range name {
		if t, ok := transliterations[r]; ok {
			write(t)
			continue
		}
		if r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)) {
			write(string(unicode.ToLower(r)))
			continue
		}
		pendingSep = true
	}

	if b.Len() == 0 {
		return "unnamed"
	}
	return b.String()
}
