package cli

import (
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/amirbrooks/workreport/internal/report"
	"github.com/amirbrooks/workreport/internal/store"
)

// Exit codes
const (
	ExitOK       = 0
	ExitUsage    = 2
	ExitNotFound = 3
	ExitConflict = 4
	ExitInternal = 10
)

var (
	stdin  io.Reader = os.Stdin
	stdout io.Writer = os.Stdout
	stderr io.Writer = os.Stderr
)

type GlobalFlags struct {
	Root         string
	JSON         bool
	NDJSON       bool
	Plain        bool
	Quiet        bool
	Verbose      bool
	StdoutJSON   bool
	StdoutNDJSON bool
	ExportDir    string
}

func reorderFlags(args []string, takesValue map[string]bool) []string {
	if len(args) == 0 {
		return args
	}
	var flags []string
	var rest []string
	for i := 0; i < len(args); i++ {
		a := args[i]
		if a == "--" {
			if i+1 < len(args) {
				rest = append(rest, args[i+1:]...)
			}
			break
		}
		if strings.HasPrefix(a, "-") && a != "-" {
			flags = append(flags, a)
			if takesValue[a] && !strings.Contains(a, "=") {
				if i+1 < len(args) {
					flags = append(flags, args[i+1])
					i++
				}
			}
			continue
		}
		rest = append(rest, a)
	}
	return append(flags, rest...)
}

func Run(args []string) int {
	gf, rest, err := extractGlobalFlags(args)
	if err != nil {
		fmt.Fprintln(stderr, err.Error())
		return ExitUsage
	}

	if len(rest) == 0 {
		printHelp()
		return ExitUsage
	}

	cmd := rest[0]
	cmdArgs := rest[1:]

	logger := newLogger(gf)
	ws, err := store.Open(gf.Root)
	if err != nil {
		fmt.Fprintln(stderr, "workreport:", err)
		return ExitInternal
	}
	logger.Debug("opened store", "root", ws.Root, "command", cmd)

	a := &app{ws: ws, gf: gf, log: logger}
	switch cmd {
	case "help", "--help", "-h":
		printHelp()
		return ExitOK
	case "init":
		return a.cmdInit(cmdArgs)
	case "config", "cfg":
		return a.cmdConfig(cmdArgs)
	case "sheet", "day":
		return a.cmdSheet(cmdArgs)
	case "session", "sessions":
		return a.cmdSession(cmdArgs)
	case "task", "tasks":
		return a.cmdTask(cmdArgs)
	case "import":
		return a.cmdImport(cmdArgs)
	case "format", "fmt":
		return a.cmdFormat(cmdArgs)
	case "generate", "gen":
		return a.cmdGenerate(cmdArgs)
	case "preview":
		return a.cmdPreview(cmdArgs)
	case "reports", "report":
		return a.cmdReports(cmdArgs)
	default:
		fmt.Fprintf(stderr, "Unknown command: %s\n\n", cmd)
		printHelp()
		return ExitUsage
	}
}

func printHelp() {
	fmt.Fprint(stdout, `workreport — daily work report generator (no DB)

Usage:
  workreport [global flags] <command> [args]

Global flags:
  --root <path>    Store root (default: ~/.workreport or WORKREPORT_ROOT)
  --json           Write JSON output to <root>/exports (no stdout JSON)
  --ndjson         Write NDJSON output to <root>/exports (no stdout NDJSON)
  --stdout-json    Allow JSON to stdout (debug only)
  --stdout-ndjson  Allow NDJSON to stdout (debug only)
  --export-dir     Override export directory (default: <root>/exports)
  --plain          TSV / undecorated output
  --quiet
  --verbose

Commands:
  init [--staff <name>]
  config show
  config set <key> <value>
  sheet show|ls|rm [--date <d>]
  sheet note "<text>" [--date <d>]
  session add [--branch <b>] [--in HH:MM] [--out HH:MM] [--date <d>]
  session set <n|id> [--branch <b>] [--in HH:MM] [--out HH:MM] [--date <d>]
  session rm <n|id> [--date <d>]
  session ls [--date <d>]
  task add [--session <n|id>] [--by <name>] [--nature <n>] [--desc <text>] [--start HH:MM] [--end HH:MM]
           [--progress <p>] [--reason <text>] [--remarks <text>] [--date <d>]
  task set <n|s.t|id> [same flags as add]
  task rm <n|s.t|id> [--date <d>]
  import <file.yaml|file.toml|file.json> [--date <d>] [--force]
  format [<file>|-] [--header-suffix keep|drop] [--display-width] [--out <file>]
  generate [--date <d>] [--save] [--header-suffix keep|drop] [--display-width]
  preview [--date <d>] [--header-suffix keep|drop] [--display-width]
  reports ls
  reports show <date>

Dates:
  YYYY-MM-DD, DD/MM/YYYY, today (default), yesterday, tomorrow
`)
}

func extractGlobalFlags(args []string) (GlobalFlags, []string, error) {
	// Allow flags anywhere by scanning and stripping known globals.
	gf := GlobalFlags{}

	// Default root from env or home.
	if env := os.Getenv("WORKREPORT_ROOT"); env != "" {
		gf.Root = env
	} else {
		home, _ := os.UserHomeDir()
		if home != "" {
			gf.Root = filepath.Join(home, ".workreport")
		} else {
			gf.Root = ".workreport"
		}
	}

	out := make([]string, 0, len(args))
	skip := 0

	for i := 0; i < len(args); i++ {
		if skip > 0 {
			skip--
			continue
		}
		a := args[i]
		switch a {
		case "--root":
			if i+1 >= len(args) {
				return gf, nil, errors.New("--root requires a value")
			}
			gf.Root = args[i+1]
			skip = 1
		case "--json":
			gf.JSON = true
		case "--ndjson":
			gf.NDJSON = true
		case "--stdout-json":
			gf.StdoutJSON = true
		case "--stdout-ndjson":
			gf.StdoutNDJSON = true
		case "--export-dir":
			if i+1 >= len(args) {
				return gf, nil, errors.New("--export-dir requires a value")
			}
			gf.ExportDir = args[i+1]
			skip = 1
		case "--plain":
			gf.Plain = true
		case "--quiet":
			gf.Quiet = true
		case "--verbose":
			gf.Verbose = true
		default:
			out = append(out, a)
		}
	}

	if gf.JSON && gf.NDJSON {
		return gf, nil, errors.New("--json and --ndjson are mutually exclusive")
	}
	if gf.StdoutJSON && !gf.JSON {
		return gf, nil, errors.New("--stdout-json requires --json")
	}
	if gf.StdoutNDJSON && !gf.NDJSON {
		return gf, nil, errors.New("--stdout-ndjson requires --ndjson")
	}
	if gf.Quiet && gf.Verbose {
		return gf, nil, errors.New("--quiet and --verbose are mutually exclusive")
	}
	if gf.ExportDir == "" {
		gf.ExportDir = filepath.Join(gf.Root, "exports")
	}
	return gf, out, nil
}

// fail prints err for cmd and maps it to an exit code.
func (a *app) fail(cmd string, err error) int {
	fmt.Fprintln(stderr, cmd+":", err)
	switch {
	case errors.Is(err, store.ErrNotFound):
		return ExitNotFound
	case errors.Is(err, store.ErrConflict):
		return ExitConflict
	case errors.Is(err, store.ErrInvalid):
		return ExitUsage
	default:
		a.log.Error("command failed", "command", cmd, "err", err)
		return ExitInternal
	}
}

// emitStructured handles --json and --ndjson output. The bool reports
// whether output was handled. items defaults to the payload itself.
func (a *app) emitStructured(cmd, base string, payload any, items ...any) (int, bool) {
	gf := a.gf
	if gf.NDJSON {
		if len(items) == 0 {
			items = []any{payload}
		}
		if gf.StdoutNDJSON {
			for _, it := range items {
				b, _ := json.Marshal(it)
				fmt.Fprintln(stdout, string(b))
			}
			return ExitOK, true
		}
		path, err := writeNDJSONExport(gf, base, items)
		if err != nil {
			return a.fail(cmd, err), true
		}
		a.log.Debug("wrote export", "path", path)
		if !gf.Quiet {
			fmt.Fprintln(stdout, "Wrote NDJSON to:", path)
		}
		return ExitOK, true
	}
	if gf.JSON {
		if gf.StdoutJSON {
			enc := json.NewEncoder(stdout)
			enc.SetIndent("", "  ")
			_ = enc.Encode(payload)
			return ExitOK, true
		}
		path, err := writeJSONExport(gf, base, payload)
		if err != nil {
			return a.fail(cmd, err), true
		}
		a.log.Debug("wrote export", "path", path)
		if !gf.Quiet {
			fmt.Fprintln(stdout, "Wrote JSON to:", path)
		}
		return ExitOK, true
	}
	return ExitOK, false
}

func (a *app) cmdInit(args []string) int {
	fs := flag.NewFlagSet("init", flag.ContinueOnError)
	fs.SetOutput(stderr)
	staff := fs.String("staff", "", "Staff name printed on reports")
	if err := fs.Parse(reorderFlags(args, map[string]bool{"--staff": true})); err != nil {
		return ExitUsage
	}
	name := strings.TrimSpace(*staff)
	if name == "" && len(fs.Args()) > 0 {
		name = strings.Join(fs.Args(), " ")
	}
	if err := a.ws.Init(name); err != nil {
		return a.fail("init", err)
	}
	if !a.gf.Quiet {
		fmt.Fprintln(stdout, "Initialized workreport store at:", a.ws.Root)
		if a.ws.Config().StaffName == "" {
			fmt.Fprintln(stdout, "Tip: set your name with: workreport config set staff_name \"<name>\"")
		}
	}
	return ExitOK
}

func (a *app) cmdConfig(args []string) int {
	if len(args) == 0 {
		fmt.Fprintln(stderr, "Usage: workreport config <show|set> ...")
		return ExitUsage
	}
	switch args[0] {
	case "show":
		// handled below
	case "set":
		return a.cmdConfigSet(args[1:])
	default:
		fmt.Fprintln(stderr, "Usage: workreport config <show|set> ...")
		return ExitUsage
	}

	cfg := a.ws.Config()
	cfgPath := a.ws.ConfigPath()
	_, err := os.Stat(cfgPath)
	exists := err == nil

	payload := map[string]any{
		"root":        a.ws.Root,
		"config_path": cfgPath,
		"exists":      exists,
		"config":      cfg,
	}
	if code, ok := a.emitStructured("config show", "config", payload); ok {
		return code
	}

	rc := cfg.Report
	if rc == nil {
		rc = &store.ReportConfig{}
	}
	rows := [][2]string{
		{"root", a.ws.Root},
		{"config_path", cfgPath},
		{"staff_name", cfg.StaffName},
		{"branches", strings.Join(cfg.Branches, ", ")},
		{"assigners", strings.Join(cfg.Assigners, ", ")},
		{"natures", strings.Join(cfg.Natures, ", ")},
		{"progress", strings.Join(cfg.Progress, ", ")},
		{"defaults.branch", cfg.Defaults.Branch},
		{"defaults.check_in", cfg.Defaults.CheckIn},
		{"defaults.check_out", cfg.Defaults.CheckOut},
		{"defaults.assigned_by", cfg.Defaults.AssignedBy},
		{"defaults.nature", cfg.Defaults.Nature},
		{"defaults.progress", cfg.Defaults.Progress},
		{"defaults.start", cfg.Defaults.Start},
		{"defaults.end", cfg.Defaults.End},
		{"report.header_suffix", orDefault(rc.HeaderSuffix, string(report.HeaderSuffixKeep))},
		{"report.width_mode", orDefault(rc.WidthMode, string(report.WidthRunes))},
	}

	if a.gf.Plain {
		fmt.Fprintln(stdout, "KEY\tVALUE")
		for _, r := range rows {
			fmt.Fprintf(stdout, "%s\t%s\n", r[0], r[1])
		}
		return ExitOK
	}

	if !exists {
		fmt.Fprintln(stdout, "Config file not found; defaults shown. Run: workreport init")
		fmt.Fprintln(stdout)
	}
	w := tabwriter.NewWriter(stdout, 2, 4, 2, ' ', 0)
	for _, r := range rows {
		fmt.Fprintf(w, "%s\t%s\n", r[0], r[1])
	}
	_ = w.Flush()
	return ExitOK
}

func (a *app) cmdConfigSet(args []string) int {
	if len(args) < 2 {
		fmt.Fprintln(stderr, "Usage: workreport config set <key> <value>")
		return ExitUsage
	}
	key := strings.ToLower(strings.TrimSpace(args[0]))
	value := strings.TrimSpace(strings.Join(args[1:], " "))
	cfg := a.ws.Config()
	if cfg.Report == nil {
		cfg.Report = &store.ReportConfig{}
	}

	clock := func(dst *string) int {
		v, err := store.ParseClock(value)
		if err != nil {
			return configSetInvalid(key, value)
		}
		*dst = v
		return ExitOK
	}

	code := ExitOK
	switch key {
	case "staff_name", "staff":
		cfg.StaffName = value
	case "branches":
		cfg.Branches = splitList(value)
	case "assigners":
		cfg.Assigners = splitList(value)
	case "natures":
		cfg.Natures = splitList(value)
	case "progress":
		cfg.Progress = splitList(value)
	case "defaults.branch":
		cfg.Defaults.Branch = value
	case "defaults.assigned_by":
		cfg.Defaults.AssignedBy = value
	case "defaults.nature":
		cfg.Defaults.Nature = value
	case "defaults.progress":
		cfg.Defaults.Progress = value
	case "defaults.check_in":
		code = clock(&cfg.Defaults.CheckIn)
	case "defaults.check_out":
		code = clock(&cfg.Defaults.CheckOut)
	case "defaults.start":
		code = clock(&cfg.Defaults.Start)
	case "defaults.end":
		code = clock(&cfg.Defaults.End)
	case "report.header_suffix":
		hs, err := report.ParseHeaderSuffix(value)
		if err != nil {
			return configSetInvalid(key, value)
		}
		cfg.Report.HeaderSuffix = string(hs)
	case "report.width_mode":
		wm, err := report.ParseWidthMode(value)
		if err != nil {
			return configSetInvalid(key, value)
		}
		cfg.Report.WidthMode = string(wm)
	default:
		fmt.Fprintln(stderr, "Unknown config key:", key)
		fmt.Fprintln(stderr, "Allowed keys: staff_name, branches, assigners, natures, progress, defaults.branch, defaults.check_in, defaults.check_out, defaults.assigned_by, defaults.nature, defaults.progress, defaults.start, defaults.end, report.header_suffix, report.width_mode")
		return ExitUsage
	}
	if code != ExitOK {
		return code
	}

	if err := a.ws.SaveConfig(cfg); err != nil {
		return a.fail("config set", err)
	}
	a.log.Debug("config updated", "key", key, "value", value)
	if !a.gf.Quiet {
		fmt.Fprintf(stdout, "Updated %s\n", key)
	}
	return ExitOK
}

func configSetInvalid(key, value string) int {
	fmt.Fprintf(stderr, "Invalid value for %s: %q\n", key, value)
	return ExitUsage
}

func splitList(value string) []string {
	var out []string
	for _, part := range strings.Split(value, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func orDefault(v, def string) string {
	if strings.TrimSpace(v) == "" {
		return def
	}
	return v
}

func writeJSONExport(gf GlobalFlags, base string, payload any) (string, error) {
	data, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return "", err
	}
	return writeExportFile(gf.ExportDir, base, "json", data)
}

func writeNDJSONExport(gf GlobalFlags, base string, items []any) (string, error) {
	var b strings.Builder
	for _, item := range items {
		line, err := json.Marshal(item)
		if err != nil {
			return "", err
		}
		b.Write(line)
		b.WriteByte('\n')
	}
	return writeExportFile(gf.ExportDir, base, "ndjson", []byte(b.String()))
}

func writeExportFile(dir, base, ext string, data []byte) (string, error) {
	if strings.TrimSpace(dir) == "" {
		return "", errors.New("export directory is empty")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	t := time.Now().UTC()
	ts := t.Format("20060102-150405")
	name := fmt.Sprintf("%s-%s.%s", base, ts, ext)
	path := filepath.Join(dir, name)
	for i := 1; ; i++ {
		if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
			break
		}
		name = fmt.Sprintf("%s-%s-%d.%s", base, ts, i, ext)
		path = filepath.Join(dir, name)
	}
	tmp := filepath.Join(dir, fmt.Sprintf(".tmp-%d", time.Now().UTC().UnixNano()))
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		_ = os.Remove(tmp)
		return "", err
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return "", err
	}
	return path, nil
}
