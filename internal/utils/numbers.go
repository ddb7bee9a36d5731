package utils

import (
	"fmt"
	"strconv"
	"strings"
)

// Canonicalize turns a raffle number token into its two-digit form.
// "7" and " 07 " both become "07". Non-numeric or out-of-range tokens fail.
func Canonicalize(token string) (string, error) {
	t := strings.TrimSpace(token)
	if t == "" {
		return "", fmt.Errorf("empty number")
	}
	n, err := strconv.Atoi(t)
	if err != nil {
		return "", fmt.Errorf("%q is not a number", token)
	}
	if n < 0 || n > 99 {
		return "", fmt.Errorf("%q is outside 00-99", token)
	}
	return fmt.Sprintf("%02d", n), nil
}

// CanonicalizeAll canonicalizes tokens in order, dropping duplicates.
// Tokens that fail are returned untouched in invalid.
func CanonicalizeAll(tokens []string) (valid []string, invalid []string) {
	seen := make(map[string]bool, len(tokens))
	valid = []string{}
	invalid = []string{}
	for _, tok := range tokens {
		num, err := Canonicalize(tok)
		if err != nil {
			invalid = append(invalid, tok)
			continue
		}
		if seen[num] {
			continue
		}
		seen[num] = true
		valid = append(valid, num)
	}
	return valid, invalid
}

// SplitNumbers splits a comma separated list such as "5, 17,3".
func SplitNumbers(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// AllNumbers returns "00" through "99".
func AllNumbers() []string {
	out := make([]string, 100)
	for i := range out {
		out[i] = fmt.Sprintf("%02d", i)
	}
	return out
}

// FlattenNumbers splits every token on commas, so ["5,17", "3"] reads as
// ["5", "17", "3"].
func FlattenNumbers(tokens []string) []string {
	var out []string
	for _, tok := range tokens {
		out = append(out, SplitNumbers(tok)...)
	}
	return out
}
