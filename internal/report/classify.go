package report

import (
	"strings"
	"unicode"
)

const taskWord = "Task"

// SplitKeyValue splits line at its first colon. Key and value are trimmed of
// surrounding whitespace; any later colons stay in the value. Lines without a
// colon come back unmodified with ok == false.
func SplitKeyValue(line string) (key string, value string, ok bool) {
	i := strings.IndexByte(line, ':')
	if i < 0 {
		return "", line, false
	}
	return strings.TrimSpace(line[:i]), strings.TrimSpace(line[i+1:]), true
}

// keyOf returns the alignable key of line. A colon with nothing before it
// does not make a key.
func keyOf(line string) (string, string, bool) {
	key, value, ok := SplitKeyValue(line)
	if !ok || key == "" {
		return "", line, false
	}
	return key, value, true
}

// IsTaskHeader reports whether line starts, after leading whitespace, with
// "Task", optional whitespace and at least one decimal digit.
func IsTaskHeader(line string) bool {
	_, ok := taskHeaderEnd(line)
	return ok
}

// taskHeaderEnd returns the byte offset just past the digits of a task header.
func taskHeaderEnd(line string) (int, bool) {
	i := len(line) - len(strings.TrimLeftFunc(line, unicode.IsSpace))
	if !strings.HasPrefix(line[i:], taskWord) {
		return 0, false
	}
	i += len(taskWord)
	i += len(line[i:]) - len(strings.TrimLeftFunc(line[i:], unicode.IsSpace))
	start := i
	for i < len(line) && line[i] >= '0' && line[i] <= '9' {
		i++
	}
	if i == start {
		return 0, false
	}
	return i, true
}
