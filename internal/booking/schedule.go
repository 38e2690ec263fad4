package booking

import (
	"fmt"
)

// EstimatedTime derives the wall-clock time-of-day for a queue position.
// Doctors run a daily schedule from startTime with avgMinutes per
// consultation; a very large serial is allowed to run past midnight
// ("25:30") rather than wrap, so the display stays monotonic with the
// queue. Lab tests have no per-resource schedule and share a fixed
// fallback time.
func EstimatedTime(kind ResourceKind, startTime string, serialNumber, avgMinutes int, testFallback string) (string, error) {
	if kind == KindTest {
		return testFallback, nil
	}

	var hours, minutes int
	if _, err := fmt.Sscanf(startTime, "%d:%d", &hours, &minutes); err != nil {
		return "", fmt.Errorf("parse start time %q: %w", startTime, err)
	}
	if hours < 0 || hours > 23 || minutes < 0 || minutes > 59 {
		return "", fmt.Errorf("start time %q out of range", startTime)
	}

	total := hours*60 + minutes + (serialNumber-1)*avgMinutes

	return fmt.Sprintf("%02d:%02d", total/60, total%60), nil
}
