package cli

import (
	"errors"
	"flag"
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/amirbrooks/workreport/internal/store"
)

var dateFlag = map[string]bool{"--date": true, "-date": true}

func withValueFlags(extra ...string) map[string]bool {
	m := map[string]bool{}
	for k, v := range dateFlag {
		m[k] = v
	}
	for _, name := range extra {
		m["--"+name] = true
		m["-"+name] = true
	}
	return m
}

func (a *app) cmdSheet(args []string) int {
	if len(args) == 0 {
		return a.cmdSheetShow(nil)
	}
	switch args[0] {
	case "show":
		return a.cmdSheetShow(args[1:])
	case "ls", "list":
		return a.cmdSheetList(args[1:])
	case "rm", "delete":
		return a.cmdSheetRemove(args[1:])
	case "note", "notes":
		return a.cmdSheetNote(args[1:])
	default:
		if strings.HasPrefix(args[0], "-") {
			return a.cmdSheetShow(args)
		}
		fmt.Fprintln(stderr, "Usage: workreport sheet <show|ls|rm|note> ...")
		return ExitUsage
	}
}

func (a *app) cmdSheetShow(args []string) int {
	fs := flag.NewFlagSet("sheet show", flag.ContinueOnError)
	fs.SetOutput(stderr)
	date := fs.String("date", "", "Sheet date")
	raw := fs.Bool("raw", false, "Print the unformatted report text")
	if err := fs.Parse(reorderFlags(args, withValueFlags())); err != nil {
		return ExitUsage
	}
	d, err := store.ParseDate(*date)
	if err != nil {
		return a.fail("sheet show", err)
	}
	s, err := a.ws.GetSheet(d)
	if err != nil {
		return a.fail("sheet show", err)
	}
	if code, ok := a.emitStructured("sheet show", "sheet-"+s.Date, s); ok {
		return code
	}
	if *raw {
		fmt.Fprintln(stdout, s.RawText())
		return ExitOK
	}
	if a.gf.Plain {
		fmt.Fprintln(stdout, "NUM\tSESSION\tBRANCH\tSTART\tEND\tPROGRESS\tNATURE\tDESCRIPTION\tID")
		for _, ref := range s.TaskRefs() {
			sess := s.Sessions[ref.Session]
			t := sess.Tasks[ref.Index]
			fmt.Fprintf(stdout, "%d\t%d\t%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
				ref.Number, ref.Session+1, sess.Branch, t.Start, t.End, t.Progress, t.Nature, t.Description, t.ID)
		}
		return ExitOK
	}
	fmt.Fprint(stdout, s.RenderHuman())
	if body := strings.TrimSpace(s.Body); body != "" {
		fmt.Fprintln(stdout)
		fmt.Fprintln(stdout, body)
	}
	return ExitOK
}

func (a *app) cmdSheetList(args []string) int {
	fs := flag.NewFlagSet("sheet ls", flag.ContinueOnError)
	fs.SetOutput(stderr)
	limit := fs.Int("limit", 0, "Show at most N sheets")
	if err := fs.Parse(reorderFlags(args, withValueFlags("limit"))); err != nil {
		return ExitUsage
	}
	sheets, err := a.ws.ListSheets()
	if err != nil {
		return a.fail("sheet ls", err)
	}
	if *limit > 0 && len(sheets) > *limit {
		sheets = sheets[:*limit]
	}

	type row struct {
		Date     string `json:"date"`
		Staff    string `json:"staff"`
		Sessions int    `json:"sessions"`
		Tasks    int    `json:"tasks"`
		Path     string `json:"path"`
	}
	rows := make([]row, 0, len(sheets))
	items := make([]any, 0, len(sheets))
	for i := range sheets {
		s := &sheets[i]
		r := row{Date: s.Date, Staff: s.Staff, Sessions: len(s.Sessions), Tasks: s.TaskCount(), Path: s.Path}
		rows = append(rows, r)
		items = append(items, r)
	}
	if code, ok := a.emitStructured("sheet ls", "sheets", rows, items...); ok {
		return code
	}
	if len(rows) == 0 {
		if !a.gf.Quiet {
			fmt.Fprintln(stdout, "No sheets yet. Start one with: workreport session add")
		}
		return ExitOK
	}
	if a.gf.Plain {
		fmt.Fprintln(stdout, "DATE\tSTAFF\tSESSIONS\tTASKS")
		for _, r := range rows {
			fmt.Fprintf(stdout, "%s\t%s\t%d\t%d\n", r.Date, r.Staff, r.Sessions, r.Tasks)
		}
		return ExitOK
	}
	w := tabwriter.NewWriter(stdout, 2, 4, 2, ' ', 0)
	fmt.Fprintln(w, "Date\tStaff\tSessions\tTasks")
	for _, r := range rows {
		fmt.Fprintf(w, "%s\t%s\t%d\t%d\n", r.Date, r.Staff, r.Sessions, r.Tasks)
	}
	_ = w.Flush()
	return ExitOK
}

func (a *app) cmdSheetRemove(args []string) int {
	fs := flag.NewFlagSet("sheet rm", flag.ContinueOnError)
	fs.SetOutput(stderr)
	date := fs.String("date", "", "Sheet date")
	if err := fs.Parse(reorderFlags(args, withValueFlags())); err != nil {
		return ExitUsage
	}
	if *date == "" && fs.NArg() > 0 {
		*date = fs.Arg(0)
	}
	d, err := store.ParseDate(*date)
	if err != nil {
		return a.fail("sheet rm", err)
	}
	if err := a.ws.DeleteSheet(d); err != nil {
		return a.fail("sheet rm", err)
	}
	if !a.gf.Quiet {
		fmt.Fprintln(stdout, "Deleted sheet", d)
	}
	return ExitOK
}

func (a *app) cmdSheetNote(args []string) int {
	fs := flag.NewFlagSet("sheet note", flag.ContinueOnError)
	fs.SetOutput(stderr)
	date := fs.String("date", "", "Sheet date")
	if err := fs.Parse(reorderFlags(args, withValueFlags())); err != nil {
		return ExitUsage
	}
	note := strings.TrimSpace(strings.Join(fs.Args(), " "))
	if note == "" {
		fmt.Fprintln(stderr, "Usage: workreport sheet note \"<text>\" [--date <d>]")
		return ExitUsage
	}
	s, err := a.ws.AddNote(*date, note)
	if err != nil {
		return a.fail("sheet note", err)
	}
	if !a.gf.Quiet {
		fmt.Fprintln(stdout, "Added note to", s.Date)
	}
	return ExitOK
}

func (a *app) cmdSession(args []string) int {
	if len(args) == 0 {
		fmt.Fprintln(stderr, "Usage: workreport session <add|set|rm|ls> ...")
		return ExitUsage
	}
	switch args[0] {
	case "add", "new":
		return a.cmdSessionAdd(args[1:])
	case "set", "edit":
		return a.cmdSessionSet(args[1:])
	case "rm", "delete":
		return a.cmdSessionRemove(args[1:])
	case "ls", "list":
		return a.cmdSessionList(args[1:])
	default:
		fmt.Fprintln(stderr, "Usage: workreport session <add|set|rm|ls> ...")
		return ExitUsage
	}
}

type sessionFlags struct {
	date, branch, in, out *string
}

func newSessionFlags(name string) (*flag.FlagSet, sessionFlags) {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(stderr)
	return fs, sessionFlags{
		date:   fs.String("date", "", "Sheet date"),
		branch: fs.String("branch", "", "Branch name"),
		in:     fs.String("in", "", "Check-in time (HH:MM)"),
		out:    fs.String("out", "", "Check-out time (HH:MM)"),
	}
}

func (a *app) cmdSessionAdd(args []string) int {
	fs, sf := newSessionFlags("session add")
	if err := fs.Parse(reorderFlags(args, withValueFlags("branch", "in", "out"))); err != nil {
		return ExitUsage
	}
	s, sess, err := a.ws.AddSession(*sf.date, store.AddSessionInput{Branch: *sf.branch, CheckIn: *sf.in, CheckOut: *sf.out})
	if err != nil {
		return a.fail("session add", err)
	}
	a.log.Debug("session added", "date", s.Date, "id", sess.ID)
	if code, ok := a.emitStructured("session add", "session", sess); ok {
		return code
	}
	if !a.gf.Quiet {
		fmt.Fprintf(stdout, "Added session %d (%s) %s %s-%s\n", len(s.Sessions), sess.ID, sess.Branch, sess.CheckIn, sess.CheckOut)
	}
	return ExitOK
}

func (a *app) cmdSessionSet(args []string) int {
	fs, sf := newSessionFlags("session set")
	if err := fs.Parse(reorderFlags(args, withValueFlags("branch", "in", "out"))); err != nil {
		return ExitUsage
	}
	if fs.NArg() != 1 {
		fmt.Fprintln(stderr, "Usage: workreport session set <n|id> [--branch <b>] [--in HH:MM] [--out HH:MM]")
		return ExitUsage
	}
	var p store.SessionPatch
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "branch":
			p.Branch = sf.branch
		case "in":
			p.CheckIn = sf.in
		case "out":
			p.CheckOut = sf.out
		}
	})
	if p == (store.SessionPatch{}) {
		fmt.Fprintln(stderr, "session set: nothing to change")
		return ExitUsage
	}
	sess, err := a.ws.UpdateSession(*sf.date, fs.Arg(0), p)
	if err != nil {
		return a.fail("session set", err)
	}
	if code, ok := a.emitStructured("session set", "session", sess); ok {
		return code
	}
	if !a.gf.Quiet {
		fmt.Fprintf(stdout, "Updated session %s %s %s-%s\n", sess.ID, sess.Branch, sess.CheckIn, sess.CheckOut)
	}
	return ExitOK
}

func (a *app) cmdSessionRemove(args []string) int {
	fs := flag.NewFlagSet("session rm", flag.ContinueOnError)
	fs.SetOutput(stderr)
	date := fs.String("date", "", "Sheet date")
	if err := fs.Parse(reorderFlags(args, withValueFlags())); err != nil {
		return ExitUsage
	}
	if fs.NArg() != 1 {
		fmt.Fprintln(stderr, "Usage: workreport session rm <n|id> [--date <d>]")
		return ExitUsage
	}
	sess, err := a.ws.DeleteSession(*date, fs.Arg(0))
	if err != nil {
		return a.fail("session rm", err)
	}
	if !a.gf.Quiet {
		fmt.Fprintf(stdout, "Deleted session %s (%d tasks)\n", sess.ID, len(sess.Tasks))
	}
	return ExitOK
}

func (a *app) cmdSessionList(args []string) int {
	fs := flag.NewFlagSet("session ls", flag.ContinueOnError)
	fs.SetOutput(stderr)
	date := fs.String("date", "", "Sheet date")
	if err := fs.Parse(reorderFlags(args, withValueFlags())); err != nil {
		return ExitUsage
	}
	d, err := store.ParseDate(*date)
	if err != nil {
		return a.fail("session ls", err)
	}
	s, err := a.ws.GetSheet(d)
	if err != nil {
		return a.fail("session ls", err)
	}
	items := make([]any, 0, len(s.Sessions))
	for _, sess := range s.Sessions {
		items = append(items, sess)
	}
	if code, ok := a.emitStructured("session ls", "sessions-"+s.Date, s.Sessions, items...); ok {
		return code
	}
	if a.gf.Plain {
		fmt.Fprintln(stdout, "NUM\tBRANCH\tIN\tOUT\tTASKS\tID")
		for i, sess := range s.Sessions {
			fmt.Fprintf(stdout, "%d\t%s\t%s\t%s\t%d\t%s\n", i+1, sess.Branch, sess.CheckIn, sess.CheckOut, len(sess.Tasks), sess.ID)
		}
		return ExitOK
	}
	if len(s.Sessions) == 0 {
		fmt.Fprintln(stdout, "No sessions on", s.Date)
		return ExitOK
	}
	w := tabwriter.NewWriter(stdout, 2, 4, 2, ' ', 0)
	fmt.Fprintln(w, "#\tBranch\tIn\tOut\tTasks\tID")
	for i, sess := range s.Sessions {
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%d\t%s\n", i+1, sess.Branch, sess.CheckIn, sess.CheckOut, len(sess.Tasks), sess.ID)
	}
	_ = w.Flush()
	return ExitOK
}

func (a *app) cmdTask(args []string) int {
	if len(args) == 0 {
		fmt.Fprintln(stderr, "Usage: workreport task <add|set|rm> ...")
		return ExitUsage
	}
	switch args[0] {
	case "add", "new":
		return a.cmdTaskAdd(args[1:])
	case "set", "edit":
		return a.cmdTaskSet(args[1:])
	case "rm", "delete":
		return a.cmdTaskRemove(args[1:])
	case "ls", "list":
		return a.cmdSheetShow(args[1:])
	default:
		fmt.Fprintln(stderr, "Usage: workreport task <add|set|rm> ...")
		return ExitUsage
	}
}

var taskValueFlags = []string{"session", "by", "nature", "desc", "start", "end", "progress", "reason", "remarks"}

type taskFlags struct {
	date, session                *string
	by, nature, desc, start, end *string
	progress, reason, remarks    *string
}

func newTaskFlags(name string) (*flag.FlagSet, taskFlags) {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(stderr)
	return fs, taskFlags{
		date:     fs.String("date", "", "Sheet date"),
		session:  fs.String("session", "", "Session number or ID (default: last session)"),
		by:       fs.String("by", "", "Work assigned by"),
		nature:   fs.String("nature", "", "Nature of work"),
		desc:     fs.String("desc", "", "Description of work"),
		start:    fs.String("start", "", "Start time (HH:MM)"),
		end:      fs.String("end", "", "End time (HH:MM)"),
		progress: fs.String("progress", "", "Progress"),
		reason:   fs.String("reason", "", "Reason for incomplete"),
		remarks:  fs.String("remarks", "", "Remarks"),
	}
}

func (a *app) cmdTaskAdd(args []string) int {
	fs, tf := newTaskFlags("task add")
	if err := fs.Parse(reorderFlags(args, withValueFlags(taskValueFlags...))); err != nil {
		return ExitUsage
	}
	desc := *tf.desc
	if desc == "" && fs.NArg() > 0 {
		desc = strings.Join(fs.Args(), " ")
	}
	t, ref, err := a.ws.AddTask(*tf.date, *tf.session, store.AddTaskInput{
		AssignedBy:  *tf.by,
		Nature:      *tf.nature,
		Description: desc,
		Start:       *tf.start,
		End:         *tf.end,
		Progress:    *tf.progress,
		Reason:      *tf.reason,
		Remarks:     *tf.remarks,
	})
	if err != nil {
		return a.fail("task add", err)
	}
	a.log.Debug("task added", "id", t.ID, "number", ref.Number, "session", ref.Session+1)
	if code, ok := a.emitStructured("task add", "task", t); ok {
		return code
	}
	if !a.gf.Quiet {
		fmt.Fprintf(stdout, "Added task %d (%s) in session %d\n", ref.Number, t.ID, ref.Session+1)
	}
	return ExitOK
}

func (a *app) cmdTaskSet(args []string) int {
	fs, tf := newTaskFlags("task set")
	if err := fs.Parse(reorderFlags(args, withValueFlags(taskValueFlags...))); err != nil {
		return ExitUsage
	}
	if fs.NArg() != 1 {
		fmt.Fprintln(stderr, "Usage: workreport task set <n|s.t|id> [--by ...] [--desc ...] [--progress ...]")
		return ExitUsage
	}
	var p store.TaskPatch
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "by":
			p.AssignedBy = tf.by
		case "nature":
			p.Nature = tf.nature
		case "desc":
			p.Description = tf.desc
		case "start":
			p.Start = tf.start
		case "end":
			p.End = tf.end
		case "progress":
			p.Progress = tf.progress
		case "reason":
			p.Reason = tf.reason
		case "remarks":
			p.Remarks = tf.remarks
		}
	})
	if p == (store.TaskPatch{}) {
		fmt.Fprintln(stderr, "task set: nothing to change")
		return ExitUsage
	}
	t, ref, err := a.ws.UpdateTask(*tf.date, fs.Arg(0), p)
	if err != nil {
		return a.fail("task set", err)
	}
	if code, ok := a.emitStructured("task set", "task", t); ok {
		return code
	}
	if !a.gf.Quiet {
		fmt.Fprintf(stdout, "Updated task %d (%s)\n", ref.Number, t.ID)
	}
	return ExitOK
}

func (a *app) cmdTaskRemove(args []string) int {
	fs := flag.NewFlagSet("task rm", flag.ContinueOnError)
	fs.SetOutput(stderr)
	date := fs.String("date", "", "Sheet date")
	if err := fs.Parse(reorderFlags(args, withValueFlags())); err != nil {
		return ExitUsage
	}
	if fs.NArg() != 1 {
		fmt.Fprintln(stderr, "Usage: workreport task rm <n|s.t|id> [--date <d>]")
		return ExitUsage
	}
	t, err := a.ws.DeleteTask(*date, fs.Arg(0))
	if err != nil {
		return a.fail("task rm", err)
	}
	if !a.gf.Quiet {
		fmt.Fprintf(stdout, "Deleted task %s %q\n", t.ID, t.Description)
	}
	return ExitOK
}

func (a *app) cmdImport(args []string) int {
	fs := flag.NewFlagSet("import", flag.ContinueOnError)
	fs.SetOutput(stderr)
	date := fs.String("date", "", "Override the document date")
	force := fs.Bool("force", false, "Replace an existing sheet")
	if err := fs.Parse(reorderFlags(args, withValueFlags())); err != nil {
		return ExitUsage
	}
	if fs.NArg() != 1 {
		fmt.Fprintln(stderr, "Usage: workreport import <file.yaml|file.toml|file.json> [--date <d>] [--force]")
		return ExitUsage
	}
	s, err := a.ws.ImportSheet(fs.Arg(0), store.ImportOptions{Date: *date, Force: *force})
	if err != nil {
		var ve *store.ValidationError
		if errors.As(err, &ve) {
			fmt.Fprintln(stderr, "import: invalid sheet document")
			for _, p := range ve.Problems {
				fmt.Fprintln(stderr, "  -", p)
			}
			return ExitUsage
		}
		return a.fail("import", err)
	}
	a.log.Debug("imported sheet", "file", fs.Arg(0), "date", s.Date, "sessions", len(s.Sessions))
	if code, ok := a.emitStructured("import", "sheet-"+s.Date, s); ok {
		return code
	}
	if !a.gf.Quiet {
		fmt.Fprintf(stdout, "Imported %s: %d sessions, %d tasks\n", s.Date, len(s.Sessions), s.TaskCount())
	}
	return ExitOK
}
