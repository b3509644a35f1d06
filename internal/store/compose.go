package store

import (
	"fmt"
	"strings"
	"time"

	"github.com/amirbrooks/workreport/internal/report"
)

// RawLines serializes the sheet into the line shape the report formatter
// expects: "Label : value" fields, a "Task <n>" line per task (numbered
// within its session) and separator lines between blocks.
func (s *Sheet) RawLines() []string {
	lines := []string{
		"Name of staff : " + s.Staff,
		"Date :- " + displayDate(s.Date),
		report.Separator,
	}
	for _, sess := range s.Sessions {
		lines = append(lines, "Check in time :- "+sess.CheckIn)
		for i, t := range sess.Tasks {
			lines = append(lines,
				fmt.Sprintf("Task %d", i+1),
				"Work assigned by : "+t.AssignedBy,
				"Nature of work : "+t.Nature,
				"Description of work : "+oneLine(t.Description),
				fmt.Sprintf("Duration and time spent on work:- %s--%s", t.Start, t.End),
				"Progress : "+t.Progress,
				"Reason for incomplete : "+oneLine(t.Reason),
				"Remarks : "+oneLine(t.Remarks),
				report.Separator,
			)
		}
		lines = append(lines,
			"Office check out time : "+sess.CheckOut,
			report.Separator,
		)
	}
	return lines
}

// RawText is RawLines joined with newlines.
func (s *Sheet) RawText() string {
	return strings.Join(s.RawLines(), "\n")
}

func displayDate(date string) string {
	t, err := time.Parse("2006-01-02", date)
	if err != nil {
		return date
	}
	return t.Format("02/01/2006")
}

func oneLine(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	return strings.Join(strings.Fields(strings.ReplaceAll(s, "\n", " ")), " ")
}

func (s *Sheet) RenderHuman() string {
	var b strings.Builder
	b.WriteString(fmt.Sprintf("%s — %s\n", s.Date, staffLabel(s.Staff)))
	b.WriteString(fmt.Sprintf("Sessions: %d, tasks: %d\n", len(s.Sessions), s.TaskCount()))
	if len(s.Sessions) == 0 {
		b.WriteString("\n(no sessions)\n")
	}
	n := 0
	for i, sess := range s.Sessions {
		b.WriteString(fmt.Sprintf("\nSession %d  %s  %s  %s-%s\n", i+1, sess.ID, sess.Branch, sess.CheckIn, sess.CheckOut))
		if len(sess.Tasks) == 0 {
			b.WriteString("  (no tasks)\n")
		}
		for _, t := range sess.Tasks {
			n++
			desc := truncate(oneLine(t.Description), 60)
			if desc == "" {
				desc = "(no description)"
			}
			b.WriteString(fmt.Sprintf("  %d. [%s] %s — %s (%s-%s) %s\n", n, t.Progress, t.Nature, desc, t.Start, t.End, t.ID))
		}
	}
	if strings.TrimSpace(s.Body) != "" {
		b.WriteString("\n")
		b.WriteString(strings.TrimRight(s.Body, "\n"))
		b.WriteString("\n")
	}
	return b.String()
}

func staffLabel(staff string) string {
	if strings.TrimSpace(staff) == "" {
		return "(no staff name)"
	}
	return staff
}
