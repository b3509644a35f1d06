package report

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSplitKeyValue(t *testing.T) {
	cases := []struct {
		line  string
		key   string
		value string
		ok    bool
	}{
		{"Time : 09:00-17:00", "Time", "09:00-17:00", true},
		{"  Name of staff :  Dev  ", "Name of staff", "Dev", true},
		{"Date :- 17/10/2026", "Date", "- 17/10/2026", true},
		{"Remarks :", "Remarks", "", true},
		{": value", "", "value", true},
		{"---------------------------------------", "", "---------------------------------------", false},
		{"  free text  ", "", "  free text  ", false},
	}
	for _, tc := range cases {
		key, value, ok := SplitKeyValue(tc.line)
		assert.Equal(t, tc.ok, ok, "line %q", tc.line)
		assert.Equal(t, tc.key, key, "line %q", tc.line)
		assert.Equal(t, tc.value, value, "line %q", tc.line)
	}
}

func TestIsTaskHeader(t *testing.T) {
	yes := []string{"Task 1", "Task1", "  Task 12", "\tTask\t3", "Task 2: Cleanup", "Task 3 (extra)", "Task 0"}
	no := []string{"", "Task", "Task ", "task 1", "TASK 1", "Tasks 1", "My Task 1", "Task one", "Description: Task 1"}
	for _, ln := range yes {
		assert.True(t, IsTaskHeader(ln), "line %q", ln)
	}
	for _, ln := range no {
		assert.False(t, IsTaskHeader(ln), "line %q", ln)
	}
}
