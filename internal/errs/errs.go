package errs

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

var (
	ErrConfiguration = errors.New("configuration error")
	ErrFeed          = errors.New("feed error")
	ErrAction        = errors.New("action error")
	ErrStore         = errors.New("store error")
	ErrNotify        = errors.New("notification error")
)

// Wrap builds an error message that includes feed and subscription context
// while tagging it with the provided marker for later classification. The
// marker should be one of the exported sentinel errors above.
func Wrap(marker error, feed, subscription, message string, err error) error {
	detail := buildDetail(feed, subscription, message)
	if marker == nil {
		marker = ErrFeed
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// Fatal reports whether the error should abort the whole run. Only
// configuration errors are fatal; feed, action, store, and notification
// failures degrade the run instead.
func Fatal(err error) bool {
	return errors.Is(err, ErrConfiguration)
}

func buildDetail(feed, subscription, message string) string {
	parts := make([]string, 0, 3)
	if feed = strings.TrimSpace(feed); feed != "" {
		parts = append(parts, "feed "+strconv.Quote(feed))
	}
	if subscription = strings.TrimSpace(subscription); subscription != "" {
		parts = append(parts, "sub "+strconv.Quote(subscription))
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "run failure"
	}
	return strings.Join(parts, ": ")
}
