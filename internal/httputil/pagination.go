package httputil

import (
	"fmt"
	"strconv"
)

// ParsePage parses a 1-indexed page query parameter. Empty means 1 and
// values below 1 are raised to 1.
func ParsePage(pageStr string) (int, error) {
	if pageStr == "" {
		return 1, nil
	}
	p, err := strconv.Atoi(pageStr)
	if err != nil {
		return 0, fmt.Errorf("invalid page parameter: must be an integer")
	}
	return max(p, 1), nil
}

// ParseBool parses an optional boolean query flag such as refresh=1.
func ParseBool(s string) (bool, error) {
	if s == "" {
		return false, nil
	}
	b, err := strconv.ParseBool(s)
	if err != nil {
		return false, fmt.Errorf("invalid boolean parameter %q", s)
	}
	return b, nil
}
