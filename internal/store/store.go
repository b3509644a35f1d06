package store

import (
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/amirbrooks/workreport/internal/report"
)

type randReader struct{}

func (randReader) Read(p []byte) (int, error) { return rand.Read(p) }

var (
	ErrNotFound = errors.New("not found")
	ErrConflict = errors.New("conflict")
	ErrInvalid  = errors.New("invalid")
	timeNow     = func() time.Time { return time.Now().UTC() }
)

// MatchConflictError provides details when a selector matches several
// sessions or tasks. It still satisfies errors.Is(err, ErrConflict).
type MatchConflictError struct {
	Reason  string
	Matches []string
}

func (e *MatchConflictError) Error() string {
	if e == nil || strings.TrimSpace(e.Reason) == "" {
		return "conflict"
	}
	if len(e.Matches) > 0 {
		return fmt.Sprintf("conflict: %s matches %s", e.Reason, strings.Join(e.Matches, ", "))
	}
	return "conflict: " + e.Reason
}

func (e *MatchConflictError) Is(target error) bool {
	return target == ErrConflict
}

type Workspace struct {
	Root string
	cfg  Config
}

type Config struct {
	Schema    int            `json:"schema"`
	StaffName string         `json:"staff_name"`
	Branches  []string       `json:"branches"`
	Assigners []string       `json:"assigners"`
	Natures   []string       `json:"natures"`
	Progress  []string       `json:"progress"`
	Defaults  DefaultsConfig `json:"defaults"`
	Report    *ReportConfig  `json:"report,omitempty"`
}

// DefaultsConfig pre-fills new sessions and tasks.
type DefaultsConfig struct {
	Branch     string `json:"branch"`
	CheckIn    string `json:"check_in"`
	CheckOut   string `json:"check_out"`
	AssignedBy string `json:"assigned_by"`
	Nature     string `json:"nature"`
	Progress   string `json:"progress"`
	Start      string `json:"start"`
	End        string `json:"end"`
}

type ReportConfig struct {
	HeaderSuffix string `json:"header_suffix"` // keep|drop
	WidthMode    string `json:"width_mode"`    // runes|display
}

// Formatter returns the report formatter configured for this store.
func (c Config) Formatter() (report.Formatter, error) {
	var f report.Formatter
	if c.Report == nil {
		return f, nil
	}
	hs, err := report.ParseHeaderSuffix(c.Report.HeaderSuffix)
	if err != nil {
		return f, fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	wm, err := report.ParseWidthMode(c.Report.WidthMode)
	if err != nil {
		return f, fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	f.HeaderSuffix = hs
	f.WidthMode = wm
	return f, nil
}

// Open opens a workspace rooted at root. It does not create files until Init is called.
func Open(root string) (*Workspace, error) {
	ws := &Workspace{Root: expandHome(root)}
	if err := ws.loadOrDefaultConfig(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return ws, nil
}

func (w *Workspace) Init(staffName string) error {
	for _, dir := range []string{w.Root, w.sheetsDir(), w.reportsDir()} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	if err := w.ensureConfig(); err != nil {
		return err
	}
	staffName = strings.TrimSpace(staffName)
	if staffName != "" && staffName != w.cfg.StaffName {
		cfg := w.cfg
		cfg.StaffName = staffName
		return w.SaveConfig(cfg)
	}
	return nil
}

func (w *Workspace) ConfigPath() string {
	return filepath.Join(w.Root, "config.json")
}

func (w *Workspace) ensureConfig() error {
	cfgPath := w.ConfigPath()
	if _, err := os.Stat(cfgPath); err == nil {
		return w.loadOrDefaultConfig()
	}
	w.cfg = defaultConfig()
	b, _ := json.MarshalIndent(w.cfg, "", "  ")
	return atomicWriteFile(cfgPath, b, 0o644)
}

func defaultConfig() Config {
	return Config{
		Schema:    1,
		Branches:  []string{"Head Office", "Thevara"},
		Assigners: []string{"Viswam Sir", "Custom..."},
		Natures:   []string{"Regular Work", "Special Work"},
		Progress:  []string{"Completed", "In Progress", "Pending"},
		Defaults: DefaultsConfig{
			Branch:     "Head Office",
			CheckIn:    "09:00",
			CheckOut:   "17:00",
			AssignedBy: "Viswam Sir",
			Nature:     "Regular Work",
			Progress:   "Completed",
			Start:      "09:00",
			End:        "17:00",
		},
	}
}

func (w *Workspace) loadOrDefaultConfig() error {
	b, err := os.ReadFile(w.ConfigPath())
	if err != nil {
		w.cfg = defaultConfig()
		return err
	}
	var cfg Config
	if err := json.Unmarshal(b, &cfg); err != nil {
		w.cfg = defaultConfig()
		return err
	}
	w.cfg = mergeConfigDefaults(cfg)
	return nil
}

func mergeConfigDefaults(cfg Config) Config {
	def := defaultConfig()
	if cfg.Schema == 0 {
		cfg.Schema = 1
	}
	if len(cfg.Branches) == 0 {
		cfg.Branches = def.Branches
	}
	if len(cfg.Assigners) == 0 {
		cfg.Assigners = def.Assigners
	}
	if len(cfg.Natures) == 0 {
		cfg.Natures = def.Natures
	}
	if len(cfg.Progress) == 0 {
		cfg.Progress = def.Progress
	}
	d := &cfg.Defaults
	if d.Branch == "" {
		d.Branch = def.Defaults.Branch
	}
	if d.CheckIn == "" {
		d.CheckIn = def.Defaults.CheckIn
	}
	if d.CheckOut == "" {
		d.CheckOut = def.Defaults.CheckOut
	}
	if d.AssignedBy == "" {
		d.AssignedBy = def.Defaults.AssignedBy
	}
	if d.Nature == "" {
		d.Nature = def.Defaults.Nature
	}
	if d.Progress == "" {
		d.Progress = def.Defaults.Progress
	}
	if d.Start == "" {
		d.Start = def.Defaults.Start
	}
	if d.End == "" {
		d.End = def.Defaults.End
	}
	return cfg
}

func (w *Workspace) Config() Config {
	return w.cfg
}

func (w *Workspace) SaveConfig(cfg Config) error {
	cfg = mergeConfigDefaults(cfg)
	cfg.Branches = dedupeStrings(cfg.Branches)
	cfg.Assigners = dedupeStrings(cfg.Assigners)
	cfg.Natures = dedupeStrings(cfg.Natures)
	cfg.Progress = dedupeStrings(cfg.Progress)
	if _, err := cfg.Formatter(); err != nil {
		return err
	}
	w.cfg = cfg
	b, _ := json.MarshalIndent(cfg, "", "  ")
	return atomicWriteFile(w.ConfigPath(), b, 0o644)
}

func (w *Workspace) sheetsDir() string {
	return filepath.Join(w.Root, "sheets")
}

func (w *Workspace) reportsDir() string {
	return filepath.Join(w.Root, "reports")
}

// ParseDate accepts YYYY-MM-DD, DD/MM/YYYY, today, yesterday and tomorrow.
// An empty string means today. Relative dates follow the local calendar.
func ParseDate(s string) (string, error) {
	s = strings.TrimSpace(strings.ToLower(s))
	today := localToday()
	switch s {
	case "", "today":
		return today.Format("2006-01-02"), nil
	case "yesterday":
		return today.AddDate(0, 0, -1).Format("2006-01-02"), nil
	case "tomorrow":
		return today.AddDate(0, 0, 1).Format("2006-01-02"), nil
	}
	for _, layout := range []string{"2006-01-02", "02/01/2006"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.Format("2006-01-02"), nil
		}
	}
	return "", fmt.Errorf("%w: date %q (use YYYY-MM-DD or DD/MM/YYYY)", ErrInvalid, s)
}

// localToday is the current instant on the local calendar. Timestamps stay
// in UTC; only calendar dates use the local zone.
func localToday() time.Time {
	return timeNow().In(time.Local)
}

// ParseClock normalizes a time of day to HH:MM.
func ParseClock(s string) (string, error) {
	s = strings.TrimSpace(s)
	for _, layout := range []string{"15:04", "15:04:05", "3:04PM", "3:04pm", "3PM", "3pm"} {
		if t, err := time.Parse(layout, strings.ReplaceAll(s, " ", "")); err == nil {
			return t.Format("15:04"), nil
		}
	}
	return "", fmt.Errorf("%w: time %q (use HH:MM)", ErrInvalid, s)
}

// normalizeChoice returns the configured spelling of v when it matches one
// of the options case-insensitively.
func normalizeChoice(options []string, v string) string {
	v = strings.TrimSpace(v)
	for _, o := range options {
		if strings.EqualFold(o, v) {
			return o
		}
	}
	return v
}

func newULID() string {
	t := ulid.Timestamp(timeNow())
	entropy := ulid.Monotonic(randReader{}, 0)
	id, err := ulid.New(t, entropy)
	if err != nil {
		// fallback
		return fmt.Sprintf("%d", timeNow().UnixNano())
	}
	return strings.ToUpper(id.String())
}

func dedupeStrings(in []string) []string {
	seen := map[string]bool{}
	var out []string
	for _, s := range in {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		key := strings.ToLower(s)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, s)
	}
	return out
}

func truncate(s string, n int) string {
	s = strings.TrimSpace(s)
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	if n <= 3 {
		return string(r[:n])
	}
	return string(r[:n-1]) + "…"
}

func sortedKeys(m map[string]bool) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func expandHome(path string) string {
	if strings.HasPrefix(path, "~"+string(os.PathSeparator)) || path == "~" {
		home, _ := os.UserHomeDir()
		if home != "" {
			return filepath.Join(home, strings.TrimPrefix(path, "~"))
		}
	}
	return path
}

func atomicWriteFile(path string, data []byte, perm fs.FileMode) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	tmp := filepath.Join(dir, fmt.Sprintf(".tmp-%d", time.Now().UnixNano()))
	if err := os.WriteFile(tmp, data, perm); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	// Rename is atomic on same filesystem.
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	return nil
}
