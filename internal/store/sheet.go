package store

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Task is one unit of work inside a session.
type Task struct {
	ID          string `yaml:"id" json:"id"`
	AssignedBy  string `yaml:"assigned_by" json:"assigned_by"`
	Nature      string `yaml:"nature" json:"nature"`
	Description string `yaml:"description" json:"description"`
	Start       string `yaml:"start" json:"start"`
	End         string `yaml:"end" json:"end"`
	Progress    string `yaml:"progress" json:"progress"`
	Reason      string `yaml:"reason,omitempty" json:"reason,omitempty"`
	Remarks     string `yaml:"remarks,omitempty" json:"remarks,omitempty"`
}

// Session is one check-in/check-out period at a branch.
type Session struct {
	ID       string `yaml:"id" json:"id"`
	Branch   string `yaml:"branch" json:"branch"`
	CheckIn  string `yaml:"check_in" json:"check_in"`
	CheckOut string `yaml:"check_out" json:"check_out"`
	Tasks    []Task `yaml:"tasks" json:"tasks"`
}

type SheetMeta struct {
	Schema    int        `yaml:"schema" json:"schema"`
	ID        string     `yaml:"id" json:"id"`
	Date      string     `yaml:"date" json:"date"`
	Staff     string     `yaml:"staff" json:"staff"`
	CreatedAt *time.Time `yaml:"created_at" json:"created_at"`
	UpdatedAt *time.Time `yaml:"updated_at" json:"updated_at"`
	Sessions  []Session  `yaml:"sessions" json:"sessions"`
}

// Sheet is the day's work record: ordered sessions, each owning ordered
// tasks. It is stored as Markdown with YAML frontmatter; the body holds notes.
type Sheet struct {
	SheetMeta `json:",inline"`
	Path      string `json:"path"`
	Body      string `json:"-"`
}

type AddSessionInput struct {
	Branch   string
	CheckIn  string
	CheckOut string
}

// SessionPatch updates the non-nil fields of a session.
type SessionPatch struct {
	Branch   *string
	CheckIn  *string
	CheckOut *string
}

type AddTaskInput struct {
	AssignedBy  string
	Nature      string
	Description string
	Start       string
	End         string
	Progress    string
	Reason      string
	Remarks     string
}

// TaskPatch updates the non-nil fields of a task.
type TaskPatch struct {
	AssignedBy  *string
	Nature      *string
	Description *string
	Start       *string
	End         *string
	Progress    *string
	Reason      *string
	Remarks     *string
}

// TaskRef locates a task inside a sheet. Number is the 1-based position of
// the task across the whole sheet, the same number the formatted report uses.
type TaskRef struct {
	Session int
	Index   int
	Number  int
}

func (w *Workspace) sheetPath(date string) string {
	return filepath.Join(w.sheetsDir(), date+".md")
}

// OpenSheet returns the sheet for date, creating an empty one if needed.
func (w *Workspace) OpenSheet(date string) (*Sheet, error) {
	date, err := ParseDate(date)
	if err != nil {
		return nil, err
	}
	s, err := w.GetSheet(date)
	if err == nil {
		return s, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, err
	}
	now := timeNow()
	s = &Sheet{
		SheetMeta: SheetMeta{
			Schema:    1,
			ID:        "sht_" + newULID(),
			Date:      date,
			Staff:     strings.TrimSpace(w.cfg.StaffName),
			CreatedAt: &now,
			UpdatedAt: &now,
		},
		Path: w.sheetPath(date),
	}
	if err := writeSheetFile(s); err != nil {
		return nil, err
	}
	return s, nil
}

func (w *Workspace) GetSheet(date string) (*Sheet, error) {
	date, err := ParseDate(date)
	if err != nil {
		return nil, err
	}
	s, err := readSheetFile(w.sheetPath(date))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: no sheet for %s", ErrNotFound, date)
		}
		return nil, err
	}
	return s, nil
}

// ListSheets returns all sheets, newest date first.
func (w *Workspace) ListSheets() ([]Sheet, error) {
	entries, err := os.ReadDir(w.sheetsDir())
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return []Sheet{}, nil
		}
		return nil, err
	}
	var out []Sheet
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(strings.ToLower(e.Name()), ".md") {
			continue
		}
		s, err := readSheetFile(filepath.Join(w.sheetsDir(), e.Name()))
		if err != nil {
			// ignore broken sheets
			continue
		}
		out = append(out, *s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date > out[j].Date })
	return out, nil
}

func (w *Workspace) DeleteSheet(date string) error {
	s, err := w.GetSheet(date)
	if err != nil {
		return err
	}
	return os.Remove(s.Path)
}

// SaveSheet writes s back to its file, stamping UpdatedAt.
func (w *Workspace) SaveSheet(s *Sheet) error {
	if s.Path == "" {
		s.Path = w.sheetPath(s.Date)
	}
	now := timeNow()
	s.UpdatedAt = &now
	if s.CreatedAt == nil {
		s.CreatedAt = &now
	}
	return writeSheetFile(s)
}

func (w *Workspace) updateSheet(date string, create bool, fn func(s *Sheet) error) (*Sheet, error) {
	load := w.GetSheet
	if create {
		load = w.OpenSheet
	}
	s, err := load(date)
	if err != nil {
		return nil, err
	}
	if err := fn(s); err != nil {
		return nil, err
	}
	if err := w.SaveSheet(s); err != nil {
		return nil, err
	}
	return s, nil
}

func (w *Workspace) AddSession(date string, in AddSessionInput) (*Sheet, *Session, error) {
	sess, err := w.newSession(in)
	if err != nil {
		return nil, nil, err
	}
	s, err := w.updateSheet(date, true, func(s *Sheet) error {
		s.Sessions = append(s.Sessions, sess)
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	return s, &s.Sessions[len(s.Sessions)-1], nil
}

func (w *Workspace) newSession(in AddSessionInput) (Session, error) {
	d := w.cfg.Defaults
	branch := strings.TrimSpace(in.Branch)
	if branch == "" {
		branch = d.Branch
	}
	checkIn, err := ParseClock(firstNonEmpty(in.CheckIn, d.CheckIn))
	if err != nil {
		return Session{}, err
	}
	checkOut, err := ParseClock(firstNonEmpty(in.CheckOut, d.CheckOut))
	if err != nil {
		return Session{}, err
	}
	return Session{
		ID:       "ses_" + newULID(),
		Branch:   normalizeChoice(w.cfg.Branches, branch),
		CheckIn:  checkIn,
		CheckOut: checkOut,
		Tasks:    []Task{},
	}, nil
}

func (w *Workspace) UpdateSession(date string, selector string, p SessionPatch) (*Session, error) {
	var out Session
	_, err := w.updateSheet(date, false, func(s *Sheet) error {
		i, err := s.ResolveSession(selector)
		if err != nil {
			return err
		}
		sess := &s.Sessions[i]
		if p.Branch != nil {
			sess.Branch = normalizeChoice(w.cfg.Branches, *p.Branch)
		}
		if p.CheckIn != nil {
			v, err := ParseClock(*p.CheckIn)
			if err != nil {
				return err
			}
			sess.CheckIn = v
		}
		if p.CheckOut != nil {
			v, err := ParseClock(*p.CheckOut)
			if err != nil {
				return err
			}
			sess.CheckOut = v
		}
		out = *sess
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (w *Workspace) DeleteSession(date string, selector string) (*Session, error) {
	var out Session
	_, err := w.updateSheet(date, false, func(s *Sheet) error {
		i, err := s.ResolveSession(selector)
		if err != nil {
			return err
		}
		out = s.Sessions[i]
		s.Sessions = append(s.Sessions[:i], s.Sessions[i+1:]...)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// AddTask appends a task to the session matched by sessionSelector. An empty
// selector means the last session; a sheet without sessions gets one.
func (w *Workspace) AddTask(date string, sessionSelector string, in AddTaskInput) (*Task, TaskRef, error) {
	task, err := w.newTask(in)
	if err != nil {
		return nil, TaskRef{}, err
	}
	var ref TaskRef
	_, err = w.updateSheet(date, true, func(s *Sheet) error {
		i := len(s.Sessions) - 1
		if strings.TrimSpace(sessionSelector) != "" {
			var err error
			if i, err = s.ResolveSession(sessionSelector); err != nil {
				return err
			}
		} else if i < 0 {
			sess, err := w.newSession(AddSessionInput{})
			if err != nil {
				return err
			}
			s.Sessions = append(s.Sessions, sess)
			i = 0
		}
		s.Sessions[i].Tasks = append(s.Sessions[i].Tasks, task)
		ref = s.taskRef(i, len(s.Sessions[i].Tasks)-1)
		return nil
	})
	if err != nil {
		return nil, TaskRef{}, err
	}
	return &task, ref, nil
}

func (w *Workspace) newTask(in AddTaskInput) (Task, error) {
	d := w.cfg.Defaults
	start, err := ParseClock(firstNonEmpty(in.Start, d.Start))
	if err != nil {
		return Task{}, err
	}
	end, err := ParseClock(firstNonEmpty(in.End, d.End))
	if err != nil {
		return Task{}, err
	}
	return Task{
		ID:          "tsk_" + newULID(),
		AssignedBy:  normalizeChoice(w.cfg.Assigners, firstNonEmpty(in.AssignedBy, d.AssignedBy)),
		Nature:      normalizeChoice(w.cfg.Natures, firstNonEmpty(in.Nature, d.Nature)),
		Description: strings.TrimSpace(in.Description),
		Start:       start,
		End:         end,
		Progress:    normalizeChoice(w.cfg.Progress, firstNonEmpty(in.Progress, d.Progress)),
		Reason:      strings.TrimSpace(in.Reason),
		Remarks:     strings.TrimSpace(in.Remarks),
	}, nil
}

func (w *Workspace) UpdateTask(date string, selector string, p TaskPatch) (*Task, TaskRef, error) {
	var out Task
	var ref TaskRef
	_, err := w.updateSheet(date, false, func(s *Sheet) error {
		r, err := s.ResolveTask(selector)
		if err != nil {
			return err
		}
		t := &s.Sessions[r.Session].Tasks[r.Index]
		if err := w.applyTaskPatch(t, p); err != nil {
			return err
		}
		out, ref = *t, r
		return nil
	})
	if err != nil {
		return nil, TaskRef{}, err
	}
	return &out, ref, nil
}

func (w *Workspace) applyTaskPatch(t *Task, p TaskPatch) error {
	if p.Start != nil {
		v, err := ParseClock(*p.Start)
		if err != nil {
			return err
		}
		t.Start = v
	}
	if p.End != nil {
		v, err := ParseClock(*p.End)
		if err != nil {
			return err
		}
		t.End = v
	}
	if p.AssignedBy != nil {
		t.AssignedBy = normalizeChoice(w.cfg.Assigners, *p.AssignedBy)
	}
	if p.Nature != nil {
		t.Nature = normalizeChoice(w.cfg.Natures, *p.Nature)
	}
	if p.Progress != nil {
		t.Progress = normalizeChoice(w.cfg.Progress, *p.Progress)
	}
	if p.Description != nil {
		t.Description = strings.TrimSpace(*p.Description)
	}
	if p.Reason != nil {
		t.Reason = strings.TrimSpace(*p.Reason)
	}
	if p.Remarks != nil {
		t.Remarks = strings.TrimSpace(*p.Remarks)
	}
	return nil
}

func (w *Workspace) DeleteTask(date string, selector string) (*Task, error) {
	var out Task
	_, err := w.updateSheet(date, false, func(s *Sheet) error {
		r, err := s.ResolveTask(selector)
		if err != nil {
			return err
		}
		tasks := s.Sessions[r.Session].Tasks
		out = tasks[r.Index]
		s.Sessions[r.Session].Tasks = append(tasks[:r.Index], tasks[r.Index+1:]...)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// AddNote appends a timestamped line to the sheet body.
func (w *Workspace) AddNote(date string, note string) (*Sheet, error) {
	note = strings.TrimSpace(note)
	if note == "" {
		return nil, fmt.Errorf("%w: note text is required", ErrInvalid)
	}
	return w.updateSheet(date, true, func(s *Sheet) error {
		entry := fmt.Sprintf("- %s — %s\n", timeNow().Format(time.RFC3339), note)
		if strings.TrimSpace(s.Body) == "" {
			s.Body = "## Notes\n\n" + entry
		} else {
			s.Body = strings.TrimRight(s.Body, "\n") + "\n" + entry
		}
		return nil
	})
}

// ResolveSession finds a session by 1-based position or by ID prefix.
func (s *Sheet) ResolveSession(selector string) (int, error) {
	selector = strings.TrimSpace(selector)
	if selector == "" {
		return 0, fmt.Errorf("%w: session selector is required", ErrInvalid)
	}
	if n, err := strconv.Atoi(selector); err == nil {
		if n < 1 || n > len(s.Sessions) {
			return 0, fmt.Errorf("%w: session %d (sheet has %d)", ErrNotFound, n, len(s.Sessions))
		}
		return n - 1, nil
	}
	var hits []int
	for i, sess := range s.Sessions {
		if matchesIDPrefix(sess.ID, "ses_", selector) {
			hits = append(hits, i)
		}
	}
	switch len(hits) {
	case 0:
		return 0, fmt.Errorf("%w: session %q", ErrNotFound, selector)
	case 1:
		return hits[0], nil
	}
	ids := make([]string, 0, len(hits))
	for _, i := range hits {
		ids = append(ids, s.Sessions[i].ID)
	}
	return 0, &MatchConflictError{Reason: "session prefix", Matches: ids}
}

// ResolveTask finds a task by its sheet-wide number ("3"), by session and
// position within it ("2.1") or by ID prefix.
func (s *Sheet) ResolveTask(selector string) (TaskRef, error) {
	selector = strings.TrimSpace(selector)
	if selector == "" {
		return TaskRef{}, fmt.Errorf("%w: task selector is required", ErrInvalid)
	}
	if n, err := strconv.Atoi(selector); err == nil {
		for _, ref := range s.TaskRefs() {
			if ref.Number == n {
				return ref, nil
			}
		}
		return TaskRef{}, fmt.Errorf("%w: task %d (sheet has %d)", ErrNotFound, n, s.TaskCount())
	}
	if sp, tp, ok := strings.Cut(selector, "."); ok {
		si, err1 := strconv.Atoi(sp)
		ti, err2 := strconv.Atoi(tp)
		if err1 == nil && err2 == nil {
			if si < 1 || si > len(s.Sessions) || ti < 1 || ti > len(s.Sessions[si-1].Tasks) {
				return TaskRef{}, fmt.Errorf("%w: task %s", ErrNotFound, selector)
			}
			return s.taskRef(si-1, ti-1), nil
		}
	}
	var hits []TaskRef
	var ids []string
	for _, ref := range s.TaskRefs() {
		t := s.Sessions[ref.Session].Tasks[ref.Index]
		if matchesIDPrefix(t.ID, "tsk_", selector) {
			hits = append(hits, ref)
			ids = append(ids, t.ID)
		}
	}
	switch len(hits) {
	case 0:
		return TaskRef{}, fmt.Errorf("%w: task %q", ErrNotFound, selector)
	case 1:
		return hits[0], nil
	}
	return TaskRef{}, &MatchConflictError{Reason: "task prefix", Matches: ids}
}

// TaskRefs lists every task in sheet order.
func (s *Sheet) TaskRefs() []TaskRef {
	var out []TaskRef
	n := 0
	for si, sess := range s.Sessions {
		for ti := range sess.Tasks {
			n++
			out = append(out, TaskRef{Session: si, Index: ti, Number: n})
		}
	}
	return out
}

func (s *Sheet) TaskCount() int {
	n := 0
	for _, sess := range s.Sessions {
		n += len(sess.Tasks)
	}
	return n
}

func (s *Sheet) taskRef(si, ti int) TaskRef {
	n := ti + 1
	for _, sess := range s.Sessions[:si] {
		n += len(sess.Tasks)
	}
	return TaskRef{Session: si, Index: ti, Number: n}
}

func matchesIDPrefix(id, kind, selector string) bool {
	id = strings.ToUpper(id)
	sel := strings.ToUpper(strings.TrimSpace(selector))
	if sel == "" {
		return false
	}
	if strings.HasPrefix(id, sel) {
		return true
	}
	return strings.HasPrefix(strings.TrimPrefix(id, strings.ToUpper(kind)), sel)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}

func writeSheetFile(s *Sheet) error {
	yamlBytes, err := yaml.Marshal(&s.SheetMeta)
	if err != nil {
		return err
	}
	var buf bytes.Buffer
	buf.WriteString("---\n")
	buf.Write(yamlBytes)
	buf.WriteString("---\n\n")
	if strings.TrimSpace(s.Body) != "" {
		buf.WriteString(s.Body)
		if !strings.HasSuffix(s.Body, "\n") {
			buf.WriteString("\n")
		}
	}
	return atomicWriteFile(s.Path, buf.Bytes(), 0o644)
}

func readSheetFile(path string) (*Sheet, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	meta, body, err := parseFrontmatter(b)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", filepath.Base(path), err)
	}
	return &Sheet{SheetMeta: *meta, Path: path, Body: strings.TrimLeft(body, "\n")}, nil
}

func parseFrontmatter(b []byte) (*SheetMeta, string, error) {
	s := strings.ReplaceAll(string(b), "\r\n", "\n")
	s = strings.ReplaceAll(s, "\r", "\n")
	if !strings.HasPrefix(s, "---\n") {
		return nil, "", fmt.Errorf("%w: missing frontmatter", ErrInvalid)
	}
	parts := strings.SplitN(s, "\n---\n", 2)
	if len(parts) != 2 {
		return nil, "", fmt.Errorf("%w: invalid frontmatter delimiters", ErrInvalid)
	}
	// parts[0] includes leading ---\n
	yamlPart := strings.TrimPrefix(parts[0], "---\n")
	body := parts[1]
	var meta SheetMeta
	if err := yaml.Unmarshal([]byte(yamlPart), &meta); err != nil {
		return nil, "", err
	}
	if meta.Schema == 0 {
		meta.Schema = 1
	}
	return &meta, body, nil
}
