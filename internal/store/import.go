package store

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/santhosh-tekuri/jsonschema/v5"
	"gopkg.in/yaml.v3"
)

//go:embed schema/sheet.schema.json
var sheetSchemaJSON string

const sheetSchemaURL = "sheet.schema.json"

var (
	sheetSchemaOnce sync.Once
	sheetSchema     *jsonschema.Schema
	sheetSchemaErr  error
)

// SheetDoc is the import document: a sheet written by hand in YAML, TOML or
// JSON. IDs and timestamps are assigned on import.
type SheetDoc struct {
	Date     string       `json:"date"`
	Staff    string       `json:"staff"`
	Notes    string       `json:"notes"`
	Sessions []SessionDoc `json:"sessions"`
}

type SessionDoc struct {
	Branch   string    `json:"branch"`
	CheckIn  string    `json:"check_in"`
	CheckOut string    `json:"check_out"`
	Tasks    []TaskDoc `json:"tasks"`
}

type TaskDoc struct {
	AssignedBy  string `json:"assigned_by"`
	Nature      string `json:"nature"`
	Description string `json:"description"`
	Start       string `json:"start"`
	End         string `json:"end"`
	Progress    string `json:"progress"`
	Reason      string `json:"reason"`
	Remarks     string `json:"remarks"`
}

type ImportOptions struct {
	// Date overrides the date in the document.
	Date string
	// Force replaces an existing sheet for the same date.
	Force bool
}

// ValidationError lists schema violations of an import document.
// It satisfies errors.Is(err, ErrInvalid).
type ValidationError struct {
	Problems []string
}

func (e *ValidationError) Error() string {
	if e == nil || len(e.Problems) == 0 {
		return "invalid sheet document"
	}
	return "invalid sheet document: " + strings.Join(e.Problems, "; ")
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrInvalid
}

// ImportSheet reads a sheet document from path. The format follows the file
// extension: .yaml/.yml, .toml or .json.
func (w *Workspace) ImportSheet(path string, opts ImportOptions) (*Sheet, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return w.ImportSheetData(data, strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), "."), opts)
}

// ImportSheetData decodes, validates and stores a sheet document.
func (w *Workspace) ImportSheetData(data []byte, format string, opts ImportOptions) (*Sheet, error) {
	doc, err := DecodeSheetDoc(data, format)
	if err != nil {
		return nil, err
	}
	date, err := ParseDate(firstNonEmpty(opts.Date, doc.Date))
	if err != nil {
		return nil, err
	}
	if existing, err := w.GetSheet(date); err == nil && !opts.Force {
		return nil, fmt.Errorf("%w: sheet for %s already exists (%d sessions)", ErrConflict, date, len(existing.Sessions))
	} else if err != nil && !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	now := timeNow()
	s := &Sheet{
		SheetMeta: SheetMeta{
			Schema:    1,
			ID:        "sht_" + newULID(),
			Date:      date,
			Staff:     firstNonEmpty(doc.Staff, w.cfg.StaffName),
			CreatedAt: &now,
			UpdatedAt: &now,
			Sessions:  make([]Session, 0, len(doc.Sessions)),
		},
		Path: w.sheetPath(date),
	}
	for i, sd := range doc.Sessions {
		sess, err := w.newSession(AddSessionInput{Branch: sd.Branch, CheckIn: sd.CheckIn, CheckOut: sd.CheckOut})
		if err != nil {
			return nil, fmt.Errorf("session %d: %w", i+1, err)
		}
		for j, td := range sd.Tasks {
			t, err := w.newTask(AddTaskInput(td))
			if err != nil {
				return nil, fmt.Errorf("session %d task %d: %w", i+1, j+1, err)
			}
			sess.Tasks = append(sess.Tasks, t)
		}
		s.Sessions = append(s.Sessions, sess)
	}
	if notes := strings.TrimSpace(doc.Notes); notes != "" {
		s.Body = "## Notes\n\n" + notes + "\n"
	}
	if err := writeSheetFile(s); err != nil {
		return nil, err
	}
	return s, nil
}

// DecodeSheetDoc parses data in the given format (yaml, yml, toml or json)
// and validates it against the sheet schema.
func DecodeSheetDoc(data []byte, format string) (*SheetDoc, error) {
	var generic any
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "yaml", "yml":
		if err := yaml.Unmarshal(data, &generic); err != nil {
			return nil, fmt.Errorf("%w: yaml: %v", ErrInvalid, err)
		}
	case "toml":
		var m map[string]any
		if err := toml.Unmarshal(data, &m); err != nil {
			return nil, fmt.Errorf("%w: toml: %v", ErrInvalid, err)
		}
		generic = normalizeTOML(m)
	case "json":
		if err := json.Unmarshal(data, &generic); err != nil {
			return nil, fmt.Errorf("%w: json: %v", ErrInvalid, err)
		}
	default:
		return nil, fmt.Errorf("%w: unsupported import format %q (use yaml|toml|json)", ErrInvalid, format)
	}
	if generic == nil {
		generic = map[string]any{}
	}

	// Round-trip through JSON so the validator sees JSON types only.
	canonical, err := json.Marshal(generic)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	if err := validateSheetDoc(canonical); err != nil {
		return nil, err
	}
	var doc SheetDoc
	if err := json.Unmarshal(canonical, &doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	return &doc, nil
}

func compiledSheetSchema() (*jsonschema.Schema, error) {
	sheetSchemaOnce.Do(func() {
		c := jsonschema.NewCompiler()
		if err := c.AddResource(sheetSchemaURL, strings.NewReader(sheetSchemaJSON)); err != nil {
			sheetSchemaErr = err
			return
		}
		sheetSchema, sheetSchemaErr = c.Compile(sheetSchemaURL)
	})
	return sheetSchema, sheetSchemaErr
}

func validateSheetDoc(canonical []byte) error {
	schema, err := compiledSheetSchema()
	if err != nil {
		return fmt.Errorf("compile sheet schema: %w", err)
	}
	dec := json.NewDecoder(bytes.NewReader(canonical))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	err = schema.Validate(v)
	if err == nil {
		return nil
	}
	var ve *jsonschema.ValidationError
	if !errors.As(err, &ve) {
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	problems := map[string]bool{}
	collectSchemaProblems(ve, problems)
	return &ValidationError{Problems: sortedKeys(problems)}
}

func collectSchemaProblems(err *jsonschema.ValidationError, out map[string]bool) {
	if err == nil {
		return
	}
	if len(err.Causes) == 0 {
		loc := err.InstanceLocation
		if loc == "" {
			loc = "/"
		}
		out[loc+": "+err.Message] = true
		return
	}
	for _, c := range err.Causes {
		collectSchemaProblems(c, out)
	}
}

// normalizeTOML turns TOML local dates and times into the strings the sheet
// schema expects.
func normalizeTOML(v any) any {
	switch x := v.(type) {
	case map[string]any:
		for k, val := range x {
			x[k] = normalizeTOML(val)
		}
		return x
	case []map[string]any:
		out := make([]any, 0, len(x))
		for _, m := range x {
			out = append(out, normalizeTOML(m))
		}
		return out
	case []any:
		for i, val := range x {
			x[i] = normalizeTOML(val)
		}
		return x
	case time.Time:
		switch x.Location().String() {
		case "date-local":
			return x.Format("2006-01-02")
		case "time-local":
			return x.Format("15:04")
		default:
			return x.Format(time.RFC3339)
		}
	default:
		return v
	}
}
