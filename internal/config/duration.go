package config

import (
	"fmt"
	"strings"
	"time"
)

// Interval fields (engine.timeout, poll.refresh, push.reconnect_min, ...)
// are written as Go duration strings so the file reads "30s", not 30000.

// ParseDurationField parses one such field. Empty means unset; callers
// decide the default. Negative values are rejected outright because none of
// the console's cadences can run backwards.
func ParseDurationField(field, raw string) (time.Duration, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(raw)
	switch {
	case err != nil:
		return 0, fmt.Errorf("%s: invalid duration %q: %w", field, raw, err)
	case d < 0:
		return 0, fmt.Errorf("%s: negative duration %q", field, raw)
	}
	return d, nil
}

// ParseDurationOrDefault backs the typed accessors (RequestTimeout,
// RefreshEvery, DismissAfter): an unset field falls back to def.
func ParseDurationOrDefault(field, raw string, def time.Duration) (time.Duration, error) {
	d, err := ParseDurationField(field, raw)
	if err != nil {
		return 0, err
	}
	if d == 0 {
		return def, nil
	}
	return d, nil
}
