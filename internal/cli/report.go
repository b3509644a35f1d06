package cli

import (
	"flag"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/charmbracelet/lipgloss"

	"github.com/amirbrooks/workreport/internal/report"
	"github.com/amirbrooks/workreport/internal/store"
)

var formatValueFlags = []string{"header-suffix", "out"}

type formatterFlags struct {
	headerSuffix *string
	displayWidth *bool
}

func addFormatterFlags(fs *flag.FlagSet) formatterFlags {
	return formatterFlags{
		headerSuffix: fs.String("header-suffix", "", "Task header suffix policy: keep|drop (default from config)"),
		displayWidth: fs.Bool("display-width", false, "Measure keys in terminal cells instead of characters"),
	}
}

// formatter resolves the configured formatter, then applies flag overrides.
func (a *app) formatter(ff formatterFlags) (report.Formatter, error) {
	f, err := a.ws.Config().Formatter()
	if err != nil {
		return f, err
	}
	if *ff.headerSuffix != "" {
		hs, err := report.ParseHeaderSuffix(*ff.headerSuffix)
		if err != nil {
			return f, fmt.Errorf("%w: %v", store.ErrInvalid, err)
		}
		f.HeaderSuffix = hs
	}
	if *ff.displayWidth {
		f.WidthMode = report.WidthDisplay
	}
	return f, nil
}

type formatResult struct {
	Date  string       `json:"date,omitempty"`
	Text  string       `json:"text"`
	Stats report.Stats `json:"stats"`
	Path  string       `json:"path,omitempty"`
}

// cmdFormat formats arbitrary report text from a file or stdin.
func (a *app) cmdFormat(args []string) int {
	fs := flag.NewFlagSet("format", flag.ContinueOnError)
	fs.SetOutput(stderr)
	ff := addFormatterFlags(fs)
	out := fs.String("out", "", "Write the formatted text to a file")
	if err := fs.Parse(reorderFlags(args, withValueFlags(formatValueFlags...))); err != nil {
		return ExitUsage
	}
	if fs.NArg() > 1 {
		fmt.Fprintln(stderr, "Usage: workreport format [<file>|-] [--header-suffix keep|drop] [--display-width] [--out <file>]")
		return ExitUsage
	}
	f, err := a.formatter(ff)
	if err != nil {
		return a.fail("format", err)
	}

	var raw []byte
	src := fs.Arg(0)
	if src == "" || src == "-" {
		raw, err = io.ReadAll(stdin)
	} else {
		raw, err = os.ReadFile(src)
	}
	if err != nil {
		return a.fail("format", err)
	}

	text, stats := f.FormatStats(string(raw))
	a.log.Debug("formatted", "tasks", stats.Tasks, "width", stats.Width, "lines", stats.Lines)
	if stats.Tasks == 0 {
		a.log.Warn("no task headers found; text left unaligned")
	}

	res := formatResult{Text: text, Stats: stats}
	if *out != "" {
		if err := os.WriteFile(*out, []byte(text), 0o644); err != nil {
			return a.fail("format", err)
		}
		res.Path = *out
	}
	if code, ok := a.emitStructured("format", "format", res); ok {
		return code
	}
	if *out != "" {
		if !a.gf.Quiet {
			fmt.Fprintln(stdout, "Wrote formatted report to:", *out)
		}
		return ExitOK
	}
	fmt.Fprintln(stdout, text)
	return ExitOK
}

func (a *app) generate(cmd string, date string, ff formatterFlags) (formatResult, error) {
	d, err := store.ParseDate(date)
	if err != nil {
		return formatResult{}, err
	}
	f, err := a.formatter(ff)
	if err != nil {
		return formatResult{}, err
	}
	text, stats, err := a.ws.GenerateReport(d, f)
	if err != nil {
		return formatResult{}, err
	}
	a.log.Debug(cmd, "date", d, "tasks", stats.Tasks, "width", stats.Width, "lines", stats.Lines)
	return formatResult{Date: d, Text: text, Stats: stats}, nil
}

// cmdGenerate builds the formatted report for a stored sheet.
func (a *app) cmdGenerate(args []string) int {
	fs := flag.NewFlagSet("generate", flag.ContinueOnError)
	fs.SetOutput(stderr)
	date := fs.String("date", "", "Sheet date")
	save := fs.Bool("save", false, "Save the report under <root>/reports")
	ff := addFormatterFlags(fs)
	if err := fs.Parse(reorderFlags(args, withValueFlags(formatValueFlags...))); err != nil {
		return ExitUsage
	}
	res, err := a.generate("generate", *date, ff)
	if err != nil {
		return a.fail("generate", err)
	}
	if *save {
		path, err := a.ws.SaveReport(res.Date, res.Text)
		if err != nil {
			return a.fail("generate", err)
		}
		res.Path = path
		a.log.Info("saved report", "path", path)
	}
	if code, ok := a.emitStructured("generate", "report-"+res.Date, res); ok {
		return code
	}
	if *save && a.gf.Quiet {
		return ExitOK
	}
	fmt.Fprintln(stdout, res.Text)
	if *save {
		fmt.Fprintln(stderr, "Saved to:", res.Path)
	}
	return ExitOK
}

var (
	previewTitle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	previewBox   = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	previewFoot  = lipgloss.NewStyle().Faint(true)
)

// cmdPreview shows the formatted report framed for the terminal.
func (a *app) cmdPreview(args []string) int {
	fs := flag.NewFlagSet("preview", flag.ContinueOnError)
	fs.SetOutput(stderr)
	date := fs.String("date", "", "Sheet date")
	ff := addFormatterFlags(fs)
	if err := fs.Parse(reorderFlags(args, withValueFlags(formatValueFlags...))); err != nil {
		return ExitUsage
	}
	res, err := a.generate("preview", *date, ff)
	if err != nil {
		return a.fail("preview", err)
	}
	if a.gf.Plain {
		fmt.Fprintln(stdout, res.Text)
		return ExitOK
	}
	fmt.Fprintln(stdout, previewTitle.Render("Work report — "+res.Date))
	fmt.Fprintln(stdout, previewBox.Render(res.Text))
	fmt.Fprintln(stdout, previewFoot.Render(fmt.Sprintf("%d tasks, key width %d", res.Stats.Tasks, res.Stats.Width)))
	return ExitOK
}

func (a *app) cmdReports(args []string) int {
	if len(args) == 0 {
		return a.cmdReportsList()
	}
	switch args[0] {
	case "ls", "list":
		return a.cmdReportsList()
	case "show", "cat":
		if len(args) != 2 {
			fmt.Fprintln(stderr, "Usage: workreport reports show <date>")
			return ExitUsage
		}
		text, err := a.ws.ReadReport(args[1])
		if err != nil {
			return a.fail("reports show", err)
		}
		fmt.Fprintln(stdout, text)
		return ExitOK
	default:
		fmt.Fprintln(stderr, "Usage: workreport reports <ls|show> ...")
		return ExitUsage
	}
}

func (a *app) cmdReportsList() int {
	reports, err := a.ws.ListReports()
	if err != nil {
		return a.fail("reports ls", err)
	}
	items := make([]any, 0, len(reports))
	for _, r := range reports {
		items = append(items, r)
	}
	if code, ok := a.emitStructured("reports ls", "reports", reports, items...); ok {
		return code
	}
	if len(reports) == 0 {
		if !a.gf.Quiet {
			fmt.Fprintln(stdout, "No saved reports. Save one with: workreport generate --save")
		}
		return ExitOK
	}
	if a.gf.Plain {
		fmt.Fprintln(stdout, "DATE\tSIZE\tPATH")
		for _, r := range reports {
			fmt.Fprintf(stdout, "%s\t%d\t%s\n", r.Date, r.Size, r.Path)
		}
		return ExitOK
	}
	w := tabwriter.NewWriter(stdout, 2, 4, 2, ' ', 0)
	fmt.Fprintln(w, "Date\tSize\tPath")
	for _, r := range reports {
		fmt.Fprintf(w, "%s\t%d\t%s\n", r.Date, r.Size, r.Path)
	}
	_ = w.Flush()
	return ExitOK
}
