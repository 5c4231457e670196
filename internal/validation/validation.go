// Package validation checks user-supplied selection inputs before they reach
// the aggregation layer. Selections never fail a chart render on their own;
// validation only rejects inputs that are malformed, not merely absent from
// the dataset.
package validation

import (
	"errors"
	"strconv"
	"strings"
	"unicode"
)

// ErrNameInvalidChars is returned when a selection name contains disallowed characters.
var ErrNameInvalidChars = errors.New("selection contains invalid characters")

// ErrNameTooLong is returned when a selection name exceeds the maximum length.
var ErrNameTooLong = errors.New("selection name too long")

// ErrTooManySelections is returned when a selection list exceeds the cap.
var ErrTooManySelections = errors.New("too many selections")

// ErrInvalidMode is returned for extreme modes other than min or max.
var ErrInvalidMode = errors.New("mode must be min or max")

// ErrInvalidYear is returned when the year is unparseable or out of range.
var ErrInvalidYear = errors.New("year out of range")

const (
	maxNameLen    = 80
	maxSelections = 50
	defaultMode   = "max"
)

// ParseSelections splits a comma-separated selection list into trimmed names.
// Empty entries are dropped; an empty input yields an empty list, which the
// chart layer renders as an empty chart. Names are checked for length and
// allowed characters: letters (Unicode), digits, space, comma excluded by the
// split itself, hyphen, period, and apostrophe cover real place names.
func ParseSelections(input string) ([]string, error) {
	var names []string
	for _, part := range strings.Split(input, ",") {
		name := strings.TrimSpace(part)
		if name == "" {
			continue
		}
		if len([]rune(name)) > maxNameLen {
			return nil, ErrNameTooLong
		}
		for _, r := range name {
			if !isAllowedNameRune(r) {
				return nil, ErrNameInvalidChars
			}
		}
		names = append(names, name)
	}
	if len(names) > maxSelections {
		return nil, ErrTooManySelections
	}
	return names, nil
}

// ParseMode parses the extreme-mode query value. Blank defaults to max.
func ParseMode(input string) (string, error) {
	mode := strings.TrimSpace(strings.ToLower(input))
	if mode == "" {
		return defaultMode, nil
	}
	switch mode {
	case "min", "max":
		return mode, nil
	}
	return "", ErrInvalidMode
}

// ParseYear parses the year query value and bounds it to [minYear, maxYear].
func ParseYear(input string, minYear, maxYear int) (int, error) {
	year, err := strconv.Atoi(strings.TrimSpace(input))
	if err != nil {
		return 0, ErrInvalidYear
	}
	if year < minYear || year > maxYear {
		return 0, ErrInvalidYear
	}
	return year, nil
}

// isAllowedNameRune returns true for letters (Unicode), digits, space, hyphen,
// period, and apostrophe.
func isAllowedNameRune(r rune) bool {
	if unicode.IsLetter(r) || unicode.IsNumber(r) {
		return true
	}
	switch r {
	case ' ', '-', '.', '\'':
		return true
	}
	return false
}
