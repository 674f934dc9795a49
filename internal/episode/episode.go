// Package episode identifies releases by the numbers extracted from feed
// entry titles and defines their ordering.
package episode

import (
	"fmt"
	"regexp"
	"strconv"
)

// Number locates a release within a subscription. Episode is the primary
// ordinal; Series is optional and only present when the pattern captures it.
// A nil field means the value is unknown.
type Number struct {
	Series  *int
	Episode *int
}

// After reports whether n is a strictly newer release than other. A Number
// without an episode is never newer than anything; anything with an episode
// is newer than a Number without one. When both sides carry a series and the
// series differ, the series decides; otherwise the episode decides.
func (n Number) After(other Number) bool {
	if n.Episode == nil {
		return false
	}
	if other.Episode == nil {
		return true
	}
	if n.Series != nil && other.Series != nil && *n.Series != *other.Series {
		return *n.Series > *other.Series
	}
	return *n.Episode > *other.Episode
}

// Less orders Numbers oldest first for sorting. Equal Numbers compare false
// both ways, so a stable sort preserves feed order for duplicates.
func Less(a, b Number) bool {
	return b.After(a)
}

// IsZero reports whether no number has been seen yet.
func (n Number) IsZero() bool {
	return n.Series == nil && n.Episode == nil
}

// String renders the number for logs and status output.
func (n Number) String() string {
	switch {
	case n.Series != nil && n.Episode != nil:
		return fmt.Sprintf("S%02dE%02d", *n.Series, *n.Episode)
	case n.Episode != nil:
		return fmt.Sprintf("E%02d", *n.Episode)
	case n.Series != nil:
		return fmt.Sprintf("S%02d", *n.Series)
	default:
		return "none"
	}
}

// Match applies a compiled subscription pattern to an entry title. The
// second return is false when the title does not match or when the matched
// groups do not parse as non-negative integers. The episode group must
// produce a value; the series group is used when present.
func Match(re *regexp.Regexp, title string) (Number, bool) {
	groups := re.FindStringSubmatch(title)
	if groups == nil {
		return Number{}, false
	}
	var number Number
	for i, name := range re.SubexpNames() {
		if i == 0 || i >= len(groups) || groups[i] == "" {
			continue
		}
		switch name {
		case "episode":
			value, err := strconv.Atoi(groups[i])
			if err != nil || value < 0 {
				return Number{}, false
			}
			number.Episode = &value
		case "series":
			value, err := strconv.Atoi(groups[i])
			if err != nil || value < 0 {
				return Number{}, false
			}
			number.Series = &value
		}
	}
	if number.Episode == nil {
		return Number{}, false
	}
	return number, true
}
