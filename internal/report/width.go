package report

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/mattn/go-runewidth"
)

// WidthMode selects how key lengths are measured when aligning columns.
type WidthMode string

const (
	// WidthRunes counts characters. This is the saved-report format.
	WidthRunes WidthMode = "runes"
	// WidthDisplay counts terminal cells, so wide (CJK, emoji) keys line up
	// on screen.
	WidthDisplay WidthMode = "display"
)

// ParseWidthMode accepts "runes", "display" or an empty string (runes).
func ParseWidthMode(s string) (WidthMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", string(WidthRunes), "chars":
		return WidthRunes, nil
	case string(WidthDisplay), "cells":
		return WidthDisplay, nil
	default:
		return "", fmt.Errorf("unknown width mode %q (use runes|display)", s)
	}
}

func (m WidthMode) measure(s string) int {
	if m == WidthDisplay {
		return runewidth.StringWidth(s)
	}
	return utf8.RuneCountInString(s)
}

// MaxKeyWidth returns the longest key, in characters, found on any key/value
// line of the header or of any task segment. It is 0 when there are none.
func MaxKeyWidth(header []string, tasks [][]string) int {
	return maxKeyWidth(WidthRunes, header, tasks)
}

func maxKeyWidth(mode WidthMode, header []string, tasks [][]string) int {
	width := 0
	scan := func(lines []string) {
		for _, ln := range lines {
			key, _, ok := keyOf(ln)
			if !ok {
				continue
			}
			if n := mode.measure(key); n > width {
				width = n
			}
		}
	}
	scan(header)
	for _, block := range tasks {
		scan(block)
	}
	return width
}

func (m WidthMode) pad(key string, width int) string {
	n := width - m.measure(key)
	if n <= 0 {
		return key
	}
	return key + strings.Repeat(" ", n)
}
