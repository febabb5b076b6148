package mqtt

import (
	"fmt"
	"strings"
)

// maxTopicLength is the MQTT limit on topic names in bytes.
const maxTopicLength = 65535

// ValidatePublishTopic checks that topic is usable as a publish target.
// Publish topics must not contain wildcards.
func ValidatePublishTopic(topic string) error {
	if err := validateTopic(topic); err != nil {
		return err
	}
	if strings.ContainsAny(topic, "+#") {
		return fmt.Errorf("%w: wildcards not allowed in publish topic %q", ErrInvalidTopic, topic)
	}
	return nil
}

// ValidateSubscribeTopic checks that topic is a well-formed subscription filter.
//
// '+' must occupy a whole level and '#' must be the last level.
func ValidateSubscribeTopic(topic string) error {
	if err := validateTopic(topic); err != nil {
		return err
	}

	levels := strings.Split(topic, "/")
	for i, level := range levels {
		if strings.Contains(level, "+") && level != "+" {
			return fmt.Errorf("%w: '+' must occupy a whole level in %q", ErrInvalidTopic, topic)
		}
		if strings.Contains(level, "#") && (level != "#" || i != len(levels)-1) {
			return fmt.Errorf("%w: '#' must be the last level in %q", ErrInvalidTopic, topic)
		}
	}
	return nil
}

func validateTopic(topic string) error {
	if topic == "" {
		return ErrInvalidTopic
	}
	if len(topic) > maxTopicLength {
		return fmt.Errorf("%w: topic exceeds %d bytes", ErrInvalidTopic, maxTopicLength)
	}
	if strings.ContainsRune(topic, 0) {
		return fmt.Errorf("%w: topic contains NUL", ErrInvalidTopic)
	}
	return nil
}
