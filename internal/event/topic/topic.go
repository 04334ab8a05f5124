package topic

import "strings"

// Topic is a dot-separated event type or event source, or a pattern over them.
type Topic string

const (
	WildcardSingle = "*"  // exactly one segment
	WildcardMulti  = "**" // zero or more segments
	Separator      = "."
)

// Any matches every topic.
const Any Topic = WildcardMulti

func (t Topic) String() string { return string(t) }

// Segments splits the topic on Separator.
func (t Topic) Segments() []string {
	if t == "" {
		return nil
	}
	return strings.Split(string(t), Separator)
}

// Normalize returns the lower-cased topic.
func (t Topic) Normalize() Topic {
	return Topic(strings.ToLower(string(t)))
}

// IsWildcard reports whether the topic is a pattern.
func (t Topic) IsWildcard() bool {
	return strings.Contains(string(t), WildcardSingle)
}

// IsValid reports whether the topic is non-empty with no empty segments.
func (t Topic) IsValid() bool {
	if t == "" {
		return false
	}
	for _, seg := range t.Segments() {
		if seg == "" {
			return false
		}
	}
	return true
}

// Matches reports whether t matches pattern. Comparison ignores case.
func (t Topic) Matches(pattern Topic) bool {
	return matchSegments(t.Normalize().Segments(), pattern.Normalize().Segments())
}

func matchSegments(topic, pattern []string) bool {
	for len(pattern) > 0 {
		switch head := pattern[0]; head {
		case WildcardMulti:
			rest := pattern[1:]
			for skip := 0; skip <= len(topic); skip++ {
				if matchSegments(topic[skip:], rest) {
					return true
				}
			}
			return false
		case WildcardSingle:
			if len(topic) == 0 {
				return false
			}
		default:
			if len(topic) == 0 || topic[0] != head {
				return false
			}
		}
		topic, pattern = topic[1:], pattern[1:]
	}
	return len(topic) == 0
}
