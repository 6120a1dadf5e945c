package handler

import "time"

var dateLayouts = []string{time.RFC3339, "2006-01-02"}

// parseFlexibleDate accepts either a date-only or RFC3339 timestamp, since
// inbound transactions may carry either depending on source system.
func parseFlexibleDate(s string) (time.Time, error) {
	var lastErr error
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		} else {
			lastErr = err
		}
	}
	return time.Time{}, lastErr
}
