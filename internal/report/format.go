// Package report turns raw "Key: Value" report text into the aligned,
// renumbered layout used for saved work reports.
//
// A document is split into a header (everything before the first
// "Task <n>" line) and task blocks. Every key/value line in the document is
// padded to one shared key width, task headers are renumbered 1..N in source
// order and a separator line follows the header and every task block.
package report

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"
)

// Separator closes the header and every task block.
const Separator = "---------------------------------------"

// HeaderSuffix decides what happens to text after the number on a task header.
type HeaderSuffix string

const (
	// HeaderSuffixKeep rewrites only the number: "Task 7: Cleanup" -> "Task 2: Cleanup".
	HeaderSuffixKeep HeaderSuffix = "keep"
	// HeaderSuffixDrop replaces the whole line: "Task 7: Cleanup" -> "Task 2".
	HeaderSuffixDrop HeaderSuffix = "drop"
)

// ParseHeaderSuffix accepts "keep", "drop" or an empty string (keep).
func ParseHeaderSuffix(s string) (HeaderSuffix, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", string(HeaderSuffixKeep):
		return HeaderSuffixKeep, nil
	case string(HeaderSuffixDrop):
		return HeaderSuffixDrop, nil
	default:
		return "", fmt.Errorf("unknown header suffix policy %q (use keep|drop)", s)
	}
}

// Formatter formats report documents. The zero value keeps header suffixes
// and measures keys in characters.
type Formatter struct {
	HeaderSuffix HeaderSuffix
	WidthMode    WidthMode
}

// Stats describes a formatted document.
type Stats struct {
	Tasks int `json:"tasks"`
	Width int `json:"width"`
	Lines int `json:"lines"`
}

// Format formats raw with the default Formatter.
func Format(raw string) string {
	return Formatter{}.Format(raw)
}

// Format realigns and renumbers raw. A document without task headers is
// returned as is, minus trailing whitespace.
func (f Formatter) Format(raw string) string {
	out, _ := f.FormatStats(raw)
	return out
}

// Stats reports what Format would do with raw.
func (f Formatter) Stats(raw string) Stats {
	_, st := f.FormatStats(raw)
	return st
}

// FormatStats formats raw once and returns the text with its Stats.
func (f Formatter) FormatStats(raw string) (string, Stats) {
	lines := splitLines(raw)
	header, tasks := Segment(lines)
	if len(tasks) == 0 {
		out := strings.TrimRightFunc(raw, unicode.IsSpace)
		return out, Stats{Lines: countLines(out)}
	}

	// Width is taken from the source lines, before headers are renumbered.
	mode := f.WidthMode
	width := maxKeyWidth(mode, header, tasks)
	for i, block := range tasks {
		block[0] = f.renumber(block[0], i+1)
	}

	formatted := make([]string, 0, len(lines)+len(tasks)+1)
	formatted = append(formatted, reformat(mode, header, width)...)
	formatted = append(formatted, Separator)
	for _, block := range tasks {
		formatted = append(formatted, reformat(mode, block, width)...)
		formatted = append(formatted, Separator)
	}
	out := strings.TrimRightFunc(strings.Join(formatted, "\n"), unicode.IsSpace)
	return out, Stats{Tasks: len(tasks), Width: width, Lines: countLines(out)}
}

func (f Formatter) renumber(line string, position int) string {
	if f.HeaderSuffix == HeaderSuffixDrop {
		if IsTaskHeader(line) {
			return taskWord + " " + strconv.Itoa(position)
		}
		return line
	}
	return RenumberHeader(line, position)
}

// Segment splits lines into the header (lines before the first task header)
// and the task blocks. Each block starts with its header line. The returned
// slices are copies; lines is not modified.
func Segment(lines []string) (header []string, tasks [][]string) {
	var starts []int
	for i, ln := range lines {
		if IsTaskHeader(ln) {
			starts = append(starts, i)
		}
	}
	if len(starts) == 0 {
		return append([]string(nil), lines...), nil
	}
	header = append([]string(nil), lines[:starts[0]]...)
	tasks = make([][]string, 0, len(starts))
	for i, start := range starts {
		end := len(lines)
		if i+1 < len(starts) {
			end = starts[i+1]
		}
		tasks = append(tasks, append([]string(nil), lines[start:end]...))
	}
	return header, tasks
}

// RenumberHeader rewrites the "Task <n>" prefix of a task header line to
// "Task <position>", keeping whatever follows the number. Other lines are
// returned unchanged.
func RenumberHeader(line string, position int) string {
	end, ok := taskHeaderEnd(line)
	if !ok {
		return line
	}
	return taskWord + " " + strconv.Itoa(position) + line[end:]
}

// ReformatBlock pads every key/value line to width characters followed by
// " : " and the value. Other lines are trimmed. Output has one line per input
// line.
func ReformatBlock(lines []string, width int) []string {
	return reformat(WidthRunes, lines, width)
}

func reformat(mode WidthMode, lines []string, width int) []string {
	out := make([]string, 0, len(lines))
	for _, ln := range lines {
		key, value, ok := keyOf(ln)
		if !ok {
			out = append(out, strings.TrimSpace(ln))
			continue
		}
		out = append(out, mode.pad(key, width)+" : "+value)
	}
	return out
}

func splitLines(raw string) []string {
	if raw == "" {
		return nil
	}
	raw = strings.ReplaceAll(raw, "\r\n", "\n")
	raw = strings.ReplaceAll(raw, "\r", "\n")
	raw = strings.TrimSuffix(raw, "\n")
	lines := strings.Split(raw, "\n")
	for i, ln := range lines {
		lines[i] = strings.TrimRightFunc(ln, unicode.IsSpace)
	}
	return lines
}

func countLines(s string) int {
	if s == "" {
		return 0
	}
	return strings.Count(s, "\n") + 1
}
