package config

import (
	"encoding/json"
	"fmt"

	"torrentrss/internal/fileutil"
)

// Save writes the configuration back to path with the current last-seen
// numbers applied. The document read at load time round-trips unchanged
// apart from series_number and episode_number values (keys are re-sorted by
// the JSON encoder); the write is atomic.
func (c *Config) Save(path string) error {
	raw := c.raw
	if raw == nil {
		// Programmatically built configs have no source document to
		// round-trip; marshal the typed form instead.
		data, err := json.Marshal(c)
		if err != nil {
			return fmt.Errorf("encode config: %w", err)
		}
		raw = map[string]any{}
		if err := json.Unmarshal(data, &raw); err != nil {
			return fmt.Errorf("encode config: %w", err)
		}
	}
	c.applySeenNumbers(raw)

	data, err := json.MarshalIndent(raw, "", "    ")
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	data = append(data, '\n')

	if err := fileutil.WriteFileAtomic(path, data, 0o644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

// applySeenNumbers copies non-nil last-seen numbers into the raw document.
// Absent numbers stay absent; a number is never removed once written.
func (c *Config) applySeenNumbers(raw map[string]any) {
	feeds, ok := raw["feeds"].(map[string]any)
	if !ok {
		return
	}
	for feedName, feed := range c.Feeds {
		rawFeed, ok := feeds[feedName].(map[string]any)
		if !ok {
			continue
		}
		subs, ok := rawFeed["subscriptions"].(map[string]any)
		if !ok {
			continue
		}
		for subName, sub := range feed.Subscriptions {
			rawSub, ok := subs[subName].(map[string]any)
			if !ok {
				continue
			}
			if sub.SeriesNumber != nil {
				rawSub["series_number"] = *sub.SeriesNumber
			}
			if sub.EpisodeNumber != nil {
				rawSub["episode_number"] = *sub.EpisodeNumber
			}
		}
	}
}
