package utils

import (
	"fmt"
	"time"
)

const (
	DateLayout = "2006-01-02"
	TimeLayout = "15:04"
)

// ParseDrawDate parses a YYYY-MM-DD draw date.
func ParseDrawDate(s string) (time.Time, error) {
	d, err := time.Parse(DateLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("draw date %q must be YYYY-MM-DD", s)
	}
	return d, nil
}

// ValidDrawTime reports whether s is empty or an HH:MM time.
func ValidDrawTime(s string) bool {
	if s == "" {
		return true
	}
	_, err := time.Parse(TimeLayout, s)
	return err == nil
}
