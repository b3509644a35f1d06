package store

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/amirbrooks/workreport/internal/report"
)

func fixClock(t *testing.T) {
	t.Helper()
	setClock(t, time.Date(2026, 10, 19, 8, 30, 0, 0, time.UTC), time.UTC)
}

// setClock pins timeNow to now and the local zone to loc.
func setClock(t *testing.T, now time.Time, loc *time.Location) {
	t.Helper()
	prevNow, prevLocal := timeNow, time.Local
	timeNow = func() time.Time { return now }
	time.Local = loc
	t.Cleanup(func() { timeNow, time.Local = prevNow, prevLocal })
}

func newWorkspace(t *testing.T, staff string) *Workspace {
	t.Helper()
	fixClock(t)
	ws, err := Open(t.TempDir())
	require.NoError(t, err)
	require.NoError(t, ws.Init(staff))
	return ws
}

func strPtr(s string) *string { return &s }

// fillSampleSheet builds the sheet the golden files were produced from.
func fillSampleSheet(t *testing.T, ws *Workspace) {
	t.Helper()
	_, _, err := ws.AddSession("2026-10-19", AddSessionInput{CheckIn: "9:00", CheckOut: "17:00"})
	require.NoError(t, err)
	_, _, err = ws.AddTask("2026-10-19", "", AddTaskInput{Description: "Filing: scanned invoices", Start: "09:00", End: "12:30"})
	require.NoError(t, err)
	_, _, err = ws.AddTask("2026-10-19", "1", AddTaskInput{
		Nature:      "special work",
		Description: "Audit prep",
		Start:       "1:00PM",
		End:         "17:00",
		Progress:    "in progress",
		Reason:      "Waiting on branch",
	})
	require.NoError(t, err)
	_, _, err = ws.AddSession("2026-10-19", AddSessionInput{Branch: "thevara", CheckIn: "18:00", CheckOut: "19:00"})
	require.NoError(t, err)
	_, ref, err := ws.AddTask("2026-10-19", "2", AddTaskInput{Description: "Night close", Start: "18:00", End: "19:00", Remarks: "ok"})
	require.NoError(t, err)
	assert.Equal(t, TaskRef{Session: 1, Index: 0, Number: 3}, ref)
}

func readTestdata(t *testing.T, name string) string {
	t.Helper()
	b, err := os.ReadFile(filepath.Join("testdata", name))
	require.NoError(t, err)
	return strings.TrimRight(string(b), "\n")
}

func TestInitWritesConfig(t *testing.T) {
	ws := newWorkspace(t, "Devadarsh P S")
	cfg := ws.Config()
	assert.Equal(t, "Devadarsh P S", cfg.StaffName)
	assert.Equal(t, []string{"Completed", "In Progress", "Pending"}, cfg.Progress)
	assert.FileExists(t, ws.ConfigPath())
	assert.DirExists(t, filepath.Join(ws.Root, "sheets"))
	assert.DirExists(t, filepath.Join(ws.Root, "reports"))

	reopened, err := Open(ws.Root)
	require.NoError(t, err)
	assert.Equal(t, cfg, reopened.Config())
}

func TestSaveConfigRejectsUnknownReportOptions(t *testing.T) {
	ws := newWorkspace(t, "Dev")
	cfg := ws.Config()
	cfg.Report = &ReportConfig{HeaderSuffix: "sometimes"}
	err := ws.SaveConfig(cfg)
	assert.True(t, errors.Is(err, ErrInvalid))

	cfg.Report = &ReportConfig{HeaderSuffix: "drop", WidthMode: "display"}
	require.NoError(t, ws.SaveConfig(cfg))
	f, err := ws.Config().Formatter()
	require.NoError(t, err)
	assert.Equal(t, report.Formatter{HeaderSuffix: report.HeaderSuffixDrop, WidthMode: report.WidthDisplay}, f)
}

func TestSheetRawTextMatchesReportShape(t *testing.T) {
	ws := newWorkspace(t, "Devadarsh P S")
	fillSampleSheet(t, ws)

	s, err := ws.GetSheet("2026-10-19")
	require.NoError(t, err)
	assert.Equal(t, readTestdata(t, "sheet_raw.txt"), s.RawText())
}

func TestGenerateReportMatchesGolden(t *testing.T) {
	ws := newWorkspace(t, "Devadarsh P S")
	fillSampleSheet(t, ws)

	text, stats, err := ws.GenerateReport("2026-10-19", report.Formatter{})
	require.NoError(t, err)
	assert.Equal(t, readTestdata(t, "sheet_report.golden"), text)
	assert.Equal(t, 3, stats.Tasks)
	assert.Equal(t, len("Duration and time spent on work"), stats.Width)
}

func TestGenerateReportMissingSheet(t *testing.T) {
	ws := newWorkspace(t, "Dev")
	_, _, err := ws.GenerateReport("2026-01-01", report.Formatter{})
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestSheetRoundTripsThroughFrontmatter(t *testing.T) {
	ws := newWorkspace(t, "Dev")
	fillSampleSheet(t, ws)
	_, err := ws.AddNote("2026-10-19", "left early for the bank")
	require.NoError(t, err)

	s, err := ws.GetSheet("19/10/2026")
	require.NoError(t, err)
	require.Len(t, s.Sessions, 2)
	assert.Equal(t, "Head Office", s.Sessions[0].Branch)
	assert.Equal(t, "Thevara", s.Sessions[1].Branch)
	assert.Equal(t, "13:00", s.Sessions[0].Tasks[1].Start)
	assert.Equal(t, "Special Work", s.Sessions[0].Tasks[1].Nature)
	assert.True(t, strings.HasPrefix(s.ID, "sht_"))
	assert.True(t, strings.HasPrefix(s.Sessions[0].ID, "ses_"))
	assert.True(t, strings.HasPrefix(s.Sessions[0].Tasks[0].ID, "tsk_"))
	assert.Contains(t, s.Body, "left early for the bank")

	raw, err := os.ReadFile(s.Path)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(raw), "---\n"))
	assert.Contains(t, string(raw), "## Notes")
}

func TestResolveTaskSelectors(t *testing.T) {
	ws := newWorkspace(t, "Dev")
	fillSampleSheet(t, ws)
	s, err := ws.GetSheet("2026-10-19")
	require.NoError(t, err)

	ref, err := s.ResolveTask("3")
	require.NoError(t, err)
	assert.Equal(t, TaskRef{Session: 1, Index: 0, Number: 3}, ref)

	ref, err = s.ResolveTask("1.2")
	require.NoError(t, err)
	assert.Equal(t, TaskRef{Session: 0, Index: 1, Number: 2}, ref)

	id := s.Sessions[0].Tasks[1].ID
	ref, err = s.ResolveTask(strings.ToLower(id))
	require.NoError(t, err)
	assert.Equal(t, 2, ref.Number)

	ref, err = s.ResolveTask(strings.TrimPrefix(id, "tsk_"))
	require.NoError(t, err)
	assert.Equal(t, 2, ref.Number)

	_, err = s.ResolveTask("9")
	assert.True(t, errors.Is(err, ErrNotFound))
	_, err = s.ResolveTask("3.1")
	assert.True(t, errors.Is(err, ErrNotFound))
	_, err = s.ResolveTask("")
	assert.True(t, errors.Is(err, ErrInvalid))

	// Every task ID shares the "tsk_" prefix.
	_, err = s.ResolveTask("tsk_")
	var conflict *MatchConflictError
	require.True(t, errors.As(err, &conflict))
	assert.True(t, errors.Is(err, ErrConflict))
	assert.Len(t, conflict.Matches, 3)
}

func TestUpdateAndDeleteTask(t *testing.T) {
	ws := newWorkspace(t, "Dev")
	fillSampleSheet(t, ws)

	task, ref, err := ws.UpdateTask("2026-10-19", "2", TaskPatch{Progress: strPtr("completed"), Reason: strPtr("")})
	require.NoError(t, err)
	assert.Equal(t, "Completed", task.Progress)
	assert.Equal(t, "", task.Reason)
	assert.Equal(t, 2, ref.Number)

	_, _, err = ws.UpdateTask("2026-10-19", "2", TaskPatch{End: strPtr("late")})
	assert.True(t, errors.Is(err, ErrInvalid))

	removed, err := ws.DeleteTask("2026-10-19", "1")
	require.NoError(t, err)
	assert.Equal(t, "Filing: scanned invoices", removed.Description)

	s, err := ws.GetSheet("2026-10-19")
	require.NoError(t, err)
	assert.Equal(t, 2, s.TaskCount())
	assert.Equal(t, "Audit prep", s.Sessions[0].Tasks[0].Description)
}

func TestUpdateAndDeleteSession(t *testing.T) {
	ws := newWorkspace(t, "Dev")
	fillSampleSheet(t, ws)

	sess, err := ws.UpdateSession("2026-10-19", "2", SessionPatch{CheckOut: strPtr("20:15")})
	require.NoError(t, err)
	assert.Equal(t, "20:15", sess.CheckOut)

	removed, err := ws.DeleteSession("2026-10-19", "1")
	require.NoError(t, err)
	assert.Len(t, removed.Tasks, 2)

	s, err := ws.GetSheet("2026-10-19")
	require.NoError(t, err)
	require.Len(t, s.Sessions, 1)
	assert.Equal(t, "Thevara", s.Sessions[0].Branch)

	_, err = ws.DeleteSession("2026-10-19", "5")
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestEditsDoNotCreateSheets(t *testing.T) {
	ws := newWorkspace(t, "Dev")
	_, err := ws.DeleteTask("2026-10-18", "1")
	assert.True(t, errors.Is(err, ErrNotFound))
	_, err = ws.GetSheet("2026-10-18")
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestAddTaskCreatesSessionWhenSheetEmpty(t *testing.T) {
	ws := newWorkspace(t, "Dev")
	_, ref, err := ws.AddTask("today", "", AddTaskInput{Description: "first"})
	require.NoError(t, err)
	assert.Equal(t, TaskRef{Session: 0, Index: 0, Number: 1}, ref)

	s, err := ws.GetSheet("2026-10-19")
	require.NoError(t, err)
	require.Len(t, s.Sessions, 1)
	assert.Equal(t, "09:00", s.Sessions[0].CheckIn)
	assert.Equal(t, "Viswam Sir", s.Sessions[0].Tasks[0].AssignedBy)
}

func TestListAndDeleteSheets(t *testing.T) {
	ws := newWorkspace(t, "Dev")
	for _, d := range []string{"2026-10-17", "2026-10-19", "2026-10-18"} {
		_, err := ws.OpenSheet(d)
		require.NoError(t, err)
	}
	sheets, err := ws.ListSheets()
	require.NoError(t, err)
	require.Len(t, sheets, 3)
	assert.Equal(t, "2026-10-19", sheets[0].Date)
	assert.Equal(t, "2026-10-17", sheets[2].Date)

	require.NoError(t, ws.DeleteSheet("2026-10-18"))
	sheets, err = ws.ListSheets()
	require.NoError(t, err)
	assert.Len(t, sheets, 2)
}

func TestSaveAndListReports(t *testing.T) {
	ws := newWorkspace(t, "Dev")
	fillSampleSheet(t, ws)
	text, _, err := ws.GenerateReport("2026-10-19", report.Formatter{})
	require.NoError(t, err)

	path, err := ws.SaveReport("2026-10-19", text)
	require.NoError(t, err)
	assert.Equal(t, "WorkReport_2026-10-19.txt", filepath.Base(path))

	saved, err := ws.ReadReport("2026-10-19")
	require.NoError(t, err)
	assert.Equal(t, text, saved)

	reports, err := ws.ListReports()
	require.NoError(t, err)
	require.Len(t, reports, 1)
	assert.Equal(t, "2026-10-19", reports[0].Date)
	assert.Equal(t, int64(len(text)), reports[0].Size)

	_, err = ws.ReadReport("2026-10-01")
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestParseDateFollowsLocalCalendar(t *testing.T) {
	ist := time.FixedZone("IST", 5*3600+1800)
	setClock(t, time.Date(2026, 10, 18, 20, 0, 0, 0, time.UTC), ist)

	got, err := ParseDate("today")
	require.NoError(t, err)
	assert.Equal(t, "2026-10-19", got)
	got, err = ParseDate("yesterday")
	require.NoError(t, err)
	assert.Equal(t, "2026-10-18", got)

	ws, err := Open(t.TempDir())
	require.NoError(t, err)
	require.NoError(t, ws.Init("Dev"))
	s, err := ws.OpenSheet("")
	require.NoError(t, err)
	assert.Equal(t, "2026-10-19", s.Date)
	assert.Equal(t, "19/10/2026", displayDate(s.Date))
	require.NotNil(t, s.CreatedAt)
	assert.Equal(t, time.UTC, s.CreatedAt.Location())
	assert.Equal(t, filepath.Join(ws.Root, "sheets", "2026-10-19.md"), s.Path)
}

func TestParseDateAndClock(t *testing.T) {
	fixClock(t)
	cases := map[string]string{
		"":           "2026-10-19",
		"today":      "2026-10-19",
		"Yesterday":  "2026-10-18",
		"tomorrow":   "2026-10-20",
		"2026-01-05": "2026-01-05",
		"05/01/2026": "2026-01-05",
	}
	for in, want := range cases {
		got, err := ParseDate(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
	_, err := ParseDate("next tuesday")
	assert.True(t, errors.Is(err, ErrInvalid))

	clocks := map[string]string{
		"9:00":     "09:00",
		"09:00:00": "09:00",
		"5:30PM":   "17:30",
		"5:30 pm":  "17:30",
		"3pm":      "15:00",
	}
	for in, want := range clocks {
		got, err := ParseClock(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
	_, err = ParseClock("25:00")
	assert.True(t, errors.Is(err, ErrInvalid))
}

func TestRenderHuman(t *testing.T) {
	ws := newWorkspace(t, "Dev")
	fillSampleSheet(t, ws)
	s, err := ws.GetSheet("2026-10-19")
	require.NoError(t, err)

	out := s.RenderHuman()
	assert.Contains(t, out, "2026-10-19 — Dev")
	assert.Contains(t, out, "Sessions: 2, tasks: 3")
	assert.Contains(t, out, "  3. [Completed] Regular Work — Night close (18:00-19:00)")
}
