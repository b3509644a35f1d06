package report

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func joinLines(lines ...string) string {
	return strings.Join(lines, "\n")
}

func TestFormatAlignsAndRenumbers(t *testing.T) {
	in := "Name : Bob\nTask 1\nDesc: x\nTask 1\nDesc: y"
	want := joinLines(
		"Name : Bob",
		Separator,
		"Task 1",
		"Desc : x",
		Separator,
		"Task 2",
		"Desc : y",
		Separator,
	)
	assert.Equal(t, want, Format(in))
}

func TestFormatWithoutTasksReturnsInput(t *testing.T) {
	cases := []string{
		"Name: Bob\nDate: today",
		"Name: Bob\nDate: today\n\n  \n",
		"just some text",
		"Tasks: none today",
		"",
	}
	for _, in := range cases {
		assert.Equal(t, strings.TrimRight(in, " \n"), Format(in), "input %q", in)
	}
}

func TestFormatEmptyDocument(t *testing.T) {
	assert.Equal(t, "", Format(""))
	assert.Equal(t, Stats{}, Formatter{}.Stats(""))
}

func TestFormatUsesOneWidthForWholeDocument(t *testing.T) {
	in := joinLines(
		"Name of staff : Dev",
		"Date :- 17/10/2026",
		"Task 4",
		"Progress: Completed",
		"Task 9",
		"Remarks :",
	)
	want := joinLines(
		"Name of staff : Dev",
		"Date          : - 17/10/2026",
		Separator,
		"Task 1",
		"Progress      : Completed",
		Separator,
		"Task 2",
		"Remarks       : ",
		Separator,
	)
	out := Format(in)
	assert.Equal(t, want, out)

	for _, ln := range strings.Split(out, "\n") {
		i := strings.Index(ln, " : ")
		if i < 0 {
			continue
		}
		assert.Equal(t, len("Name of staff"), i, "line %q", ln)
	}
}

func TestFormatRenumbersSequentially(t *testing.T) {
	in := joinLines(
		"Header: h",
		"Task 7",
		"a: 1",
		"  Task3",
		"b: 2",
		"Task 3",
		"Task 100",
		"c: 3",
	)
	out := Format(in)
	var headers []string
	for _, ln := range strings.Split(out, "\n") {
		if IsTaskHeader(ln) {
			headers = append(headers, ln)
		}
	}
	assert.Equal(t, []string{"Task 1", "Task 2", "Task 3", "Task 4"}, headers)
}

func TestFormatPreservesBlockLineCounts(t *testing.T) {
	in := joinLines(
		"Name: n",
		"free text",
		"Task 1",
		"x: 1",
		"",
		"y: 2",
		"Task 2",
	)
	out := strings.Split(Format(in), "\n")
	// header(2) + sep + task1(4) + sep + task2(1) + sep
	require.Len(t, out, 10)
	assert.Equal(t, Separator, out[2])
	assert.Equal(t, "", out[5])
	assert.Equal(t, Separator, out[7])
	assert.Equal(t, Separator, out[9])
}

func TestFormatNormalizesLineEndings(t *testing.T) {
	in := "Name : Bob\r\nTask 5\r\nDesc: x   \r\n"
	want := joinLines("Name : Bob", Separator, "Task 1", "Desc : x", Separator)
	assert.Equal(t, want, Format(in))
}

func TestFormatEmptyHeader(t *testing.T) {
	in := "Task 2\nKey: v"
	want := joinLines(Separator, "Task 1", "Key : v", Separator)
	assert.Equal(t, want, Format(in))
}

func TestFormatHeaderSuffixPolicies(t *testing.T) {
	in := joinLines(
		"Name: Bob",
		"Task 12: Cleanup",
		"Desc: sweep",
		"Task 3 (extra)",
		"Desc: mop",
	)

	keep := Formatter{HeaderSuffix: HeaderSuffixKeep}.Format(in)
	assert.Equal(t, joinLines(
		"Name    : Bob",
		Separator,
		"Task 1  : Cleanup",
		"Desc    : sweep",
		Separator,
		"Task 2 (extra)",
		"Desc    : mop",
		Separator,
	), keep)

	drop := Formatter{HeaderSuffix: HeaderSuffixDrop}.Format(in)
	assert.Equal(t, joinLines(
		"Name    : Bob",
		Separator,
		"Task 1",
		"Desc    : sweep",
		Separator,
		"Task 2",
		"Desc    : mop",
		Separator,
	), drop)
}

func TestFormatMeasuresHeadersBeforeRenumbering(t *testing.T) {
	drop := Formatter{HeaderSuffix: HeaderSuffixDrop}
	cases := []struct {
		in    string
		want  string
		width int
	}{
		{
			in:    "Name: Bob\nTask 12: Cleanup\nDesc: sweep",
			want:  joinLines("Name    : Bob", Separator, "Task 1", "Desc    : sweep", Separator),
			width: 7,
		},
		{
			in:    "Owner: Al\nTask 100: long header label\nDesc: x",
			want:  joinLines("Owner    : Al", Separator, "Task 1", "Desc     : x", Separator),
			width: 8,
		},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, drop.Format(tc.in))
		assert.Equal(t, tc.width, drop.Stats(tc.in).Width)
	}
}

func TestFormatDisplayWidth(t *testing.T) {
	in := "名前: 太郎\nTask 1\nDesc: x"

	runes := Formatter{}.Format(in)
	assert.Equal(t, joinLines("名前   : 太郎", Separator, "Task 1", "Desc : x", Separator), runes)

	cells := Formatter{WidthMode: WidthDisplay}.Format(in)
	assert.Equal(t, joinLines("名前 : 太郎", Separator, "Task 1", "Desc : x", Separator), cells)
}

func TestFormatIsDeterministic(t *testing.T) {
	in := "Name: a\nTask 2\nk: v\nTask 2\nkk: vv"
	first := Format(in)
	for i := 0; i < 5; i++ {
		require.Equal(t, first, Format(in))
	}
}

func TestFormatStats(t *testing.T) {
	st := Formatter{}.Stats("Name : Bob\nTask 1\nDesc: x\nTask 1\nDesc: y")
	assert.Equal(t, Stats{Tasks: 2, Width: 4, Lines: 8}, st)

	st = Formatter{}.Stats("Name: Bob\nDate: today")
	assert.Equal(t, Stats{Lines: 2}, st)
}

func TestFormatStatsMatchesFormat(t *testing.T) {
	in := "Name: Bob\nTask 4: Audit\nDesc: books\nTask 9\nLonger key: x"
	for _, f := range []Formatter{{}, {HeaderSuffix: HeaderSuffixDrop}, {WidthMode: WidthDisplay}} {
		text, st := f.FormatStats(in)
		assert.Equal(t, f.Format(in), text)
		assert.Equal(t, f.Stats(in), st)
		assert.Equal(t, 2, st.Tasks)
		assert.Equal(t, 10, st.Width)
	}
}

func TestSegment(t *testing.T) {
	lines := []string{"h1", "h2", "Task 1", "a", "Task 2", "Task 3", "b"}
	header, tasks := Segment(lines)
	assert.Equal(t, []string{"h1", "h2"}, header)
	assert.Equal(t, [][]string{{"Task 1", "a"}, {"Task 2"}, {"Task 3", "b"}}, tasks)

	header, tasks = Segment([]string{"a: b", "c"})
	assert.Equal(t, []string{"a: b", "c"}, header)
	assert.Nil(t, tasks)
}

func TestSegmentDoesNotAliasInput(t *testing.T) {
	lines := []string{"Task 9", "x"}
	_, tasks := Segment(lines)
	tasks[0][0] = "changed"
	assert.Equal(t, "Task 9", lines[0])
}

func TestRenumberHeader(t *testing.T) {
	cases := []struct {
		line string
		pos  int
		want string
	}{
		{"Task 1", 3, "Task 3"},
		{"   Task   42", 1, "Task 1"},
		{"Task7", 2, "Task 2"},
		{"Task 2: Cleanup", 1, "Task 1: Cleanup"},
		{"Task 10 (extra)", 4, "Task 4 (extra)"},
		{"Tasks 3", 1, "Tasks 3"},
		{"Desc: x", 1, "Desc: x"},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, RenumberHeader(tc.line, tc.pos), "line %q", tc.line)
	}
}

func TestReformatBlock(t *testing.T) {
	in := []string{"Time : 09:00-17:00", "  plain text  ", "-----", "Key:", ": orphan"}
	out := ReformatBlock(in, 6)
	assert.Equal(t, []string{
		"Time   : 09:00-17:00",
		"plain text",
		"-----",
		"Key    : ",
		": orphan",
	}, out)

	assert.Equal(t, out, ReformatBlock(out, 6))
}

func TestReformatBlockNeverTruncates(t *testing.T) {
	out := ReformatBlock([]string{"Longer key: v"}, 3)
	assert.Equal(t, []string{"Longer key : v"}, out)
}

func TestMaxKeyWidth(t *testing.T) {
	header := []string{"Name: a", "plain"}
	tasks := [][]string{{"Task 1", "Description of work: x"}, {"Task 2", "k: v"}}
	assert.Equal(t, len("Description of work"), MaxKeyWidth(header, tasks))
	assert.Equal(t, 0, MaxKeyWidth([]string{"no keys"}, [][]string{{"Task 1"}}))
	assert.Equal(t, 0, MaxKeyWidth(nil, nil))
}

func TestParseOptions(t *testing.T) {
	hs, err := ParseHeaderSuffix("")
	require.NoError(t, err)
	assert.Equal(t, HeaderSuffixKeep, hs)
	hs, err = ParseHeaderSuffix(" DROP ")
	require.NoError(t, err)
	assert.Equal(t, HeaderSuffixDrop, hs)
	_, err = ParseHeaderSuffix("maybe")
	assert.Error(t, err)

	wm, err := ParseWidthMode("display")
	require.NoError(t, err)
	assert.Equal(t, WidthDisplay, wm)
	wm, err = ParseWidthMode("")
	require.NoError(t, err)
	assert.Equal(t, WidthRunes, wm)
	_, err = ParseWidthMode("px")
	assert.Error(t, err)
}

func ExampleFormat() {
	fmt.Println(Format("Name : Bob\nTask 4\nDesc: x"))
	// Output:
	// Name : Bob
	// ---------------------------------------
	// Task 1
	// Desc : x
	// ---------------------------------------
}
