package store

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/amirbrooks/workreport/internal/report"
)

const reportPrefix = "WorkReport_"

// SavedReport describes a report file under <root>/reports.
type SavedReport struct {
	Date    string    `json:"date"`
	Path    string    `json:"path"`
	Size    int64     `json:"size"`
	ModTime time.Time `json:"mod_time"`
}

// GenerateReport serializes the sheet for date and formats it.
func (w *Workspace) GenerateReport(date string, f report.Formatter) (string, report.Stats, error) {
	s, err := w.GetSheet(date)
	if err != nil {
		return "", report.Stats{}, err
	}
	text, stats := f.FormatStats(s.RawText())
	return text, stats, nil
}

func (w *Workspace) reportPath(date string) string {
	return filepath.Join(w.reportsDir(), reportPrefix+date+".txt")
}

// SaveReport writes text as the report for date, replacing any earlier one.
// The file holds text byte for byte.
func (w *Workspace) SaveReport(date string, text string) (string, error) {
	date, err := ParseDate(date)
	if err != nil {
		return "", err
	}
	path := w.reportPath(date)
	if err := atomicWriteFile(path, []byte(text), 0o644); err != nil {
		return "", err
	}
	return path, nil
}

func (w *Workspace) ReadReport(date string) (string, error) {
	date, err := ParseDate(date)
	if err != nil {
		return "", err
	}
	b, err := os.ReadFile(w.reportPath(date))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", fmt.Errorf("%w: no saved report for %s", ErrNotFound, date)
		}
		return "", err
	}
	return string(b), nil
}

// ListReports returns saved reports, newest date first.
func (w *Workspace) ListReports() ([]SavedReport, error) {
	entries, err := os.ReadDir(w.reportsDir())
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return []SavedReport{}, nil
		}
		return nil, err
	}
	out := []SavedReport{}
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasPrefix(name, reportPrefix) || !strings.HasSuffix(name, ".txt") {
			continue
		}
		date := strings.TrimSuffix(strings.TrimPrefix(name, reportPrefix), ".txt")
		if _, err := time.Parse("2006-01-02", date); err != nil {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		out = append(out, SavedReport{
			Date:    date,
			Path:    filepath.Join(w.reportsDir(), name),
			Size:    info.Size(),
			ModTime: info.ModTime().UTC(),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date > out[j].Date })
	return out, nil
}
