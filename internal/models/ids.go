package models

import (
	"fmt"
	"strconv"
	"strings"
)

// FormatID renders prefix followed by n zero-padded to width digits.
func FormatID(prefix string, n int64, width int) string {
	return fmt.Sprintf("%s%0*d", prefix, width, n)
}

// ParseIDNumber extracts the numeric suffix of id. The second result is
// false when id lacks the prefix or the suffix is not a plain decimal number.
func ParseIDNumber(id, prefix string) (int64, bool) {
	if !strings.HasPrefix(id, prefix) {
		return 0, false
	}
	suffix := id[len(prefix):]
	if suffix == "" {
		return 0, false
	}
	for _, r := range suffix {
		if r < '0' || r > '9' {
			return 0, false
		}
	}
	n, err := strconv.ParseInt(suffix, 10, 64)
	if err != nil {
		return 0, false
	}
	return n, true
}
