package pubdate

import (
	"strconv"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"
)

// Default precision for under-specified dates.
const (
	defaultMonth = 1
	defaultDay   = 1
)

// months maps registry month spellings to month numbers. Keys are in
// capitalized form; "Novembre" is a misspelling found in real records.
var months = map[string]int{
	"Jan": 1, "Feb": 2, "Mar": 3, "Apr": 4, "May": 5, "Jun": 6,
	"Jul": 7, "Aug": 8, "Sep": 9, "Sept": 9, "Oct": 10, "Nov": 11, "Dec": 12,
	"January": 1, "February": 2, "March": 3, "April": 4, "June": 6,
	"July": 7, "August": 8, "September": 9, "October": 10,
	"November": 11, "Novembre": 11, "December": 12,
}

// seasons maps a season to the month that represents it.
var seasons = map[string]int{
	"Spring": 4,
	"Summer": 7,
	"Fall":   10,
	"Autumn": 10,
	"Winter": 1,
}

// capitalize upper-cases the first letter and lower-cases the rest.
func capitalize(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError {
		return s
	}
	return string(unicode.ToUpper(r)) + strings.ToLower(s[size:])
}

// monthNumber resolves a numeric or named month.
func monthNumber(text string) (int, bool) {
	text = strings.TrimSpace(text)
	if text == "" {
		return 0, false
	}
	if n, err := strconv.Atoi(text); err == nil {
		return n, n >= 1 && n <= 12
	}
	m, ok := months[capitalize(text)]
	return m, ok
}

// monthName resolves a named month only.
func monthName(text string) (int, bool) {
	m, ok := months[capitalize(strings.TrimSpace(text))]
	return m, ok
}

// seasonMonth resolves a season name to its representative month.
func seasonMonth(text string) (int, bool) {
	m, ok := seasons[capitalize(strings.TrimSpace(text))]
	return m, ok
}

// number parses a decimal field, rejecting anything else.
func number(text string) (int, bool) {
	n, err := strconv.Atoi(strings.TrimSpace(text))
	if err != nil {
		return 0, false
	}
	return n, true
}

// validDate reports whether year/month/day form a real calendar date.
func validDate(year, month, day int) bool {
	if year <= 0 || month < 1 || month > 12 || day < 1 {
		return false
	}
	last := time.Date(year, time.Month(month)+1, 0, 0, 0, 0, 0, time.UTC).Day()
	return day <= last
}
