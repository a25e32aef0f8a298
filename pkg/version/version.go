package version

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Prefix returns the <year>.<month> component for t, month zero-padded.
func Prefix(t time.Time) string {
	return fmt.Sprintf("%04d.%02d", t.Year(), int(t.Month()))
}

// Next returns the version following stored at time now.
// The patch number increments while the year-month prefix matches and resets
// to 0 when the month changes.
func Next(stored string, now time.Time) (string, error) {
	prefix := Prefix(now)
	stored = strings.Trim(strings.TrimSpace(stored), `"'`)

	rest, ok := strings.CutPrefix(stored, prefix+".")
	if !ok {
		return prefix + ".0", nil
	}

	patch, err := strconv.Atoi(rest)
	if err != nil || patch < 0 {
		return "", fmt.Errorf("invalid patch number %q in version %q", rest, stored)
	}

	return prefix + "." + strconv.Itoa(patch+1), nil
}
