package store

import (
	"fmt"
	"strconv"
	"strings"
)

const idPrefix = "APP-"

// FormatID renders sequence n as APP-NNN. Values above 999 widen rather than truncate.
func FormatID(n int64) string {
	return fmt.Sprintf("%s%03d", idPrefix, n)
}

// ParseID returns the numeric part of an APP-NNN identifier.
func ParseID(id string) (int64, bool) {
	digits, ok := strings.CutPrefix(id, idPrefix)
	if !ok || digits == "" {
		return 0, false
	}
	n, err := strconv.ParseInt(digits, 10, 64)
	if err != nil || n < 0 {
		return 0, false
	}
	return n, true
}
