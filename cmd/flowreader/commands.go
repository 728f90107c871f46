package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/rendis/flowreader/internal/diagram"
	"github.com/rendis/flowreader/internal/engine"
	"github.com/rendis/flowreader/internal/reader"
	"github.com/rendis/flowreader/internal/store"
	"github.com/rendis/flowreader/pkg/schema"
)

func (c *cli) runRead(ctx context.Context, args []string) error {
	fs, cfg := c.flagSet("read")
	asJSON := fs.Bool("json", false, "print the workflow as JSON")
	if err := parse(fs, args, 1, 1); err != nil {
		return err
	}

	a, err := newApp(ctx, *cfg, c.stderr)
	if err != nil {
		return err
	}
	defer a.Close()

	wf, err := a.reader.Read(ctx, fs.Arg(0))
	if err != nil {
		return err
	}
	if *asJSON {
		return writeJSON(c.stdout, wf)
	}

	fmt.Fprintln(c.stdout, wf.Title)
	tw := tabwriter.NewWriter(c.stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ORDER\tID\tNAME\tCONDITION\tLAST")
	for _, e := range wf.Tasks.Entries() {
		last := ""
		if e.Last {
			last = "yes"
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\n", e.Ordering, e.ID, e.Name, e.Condition, last)
	}
	return tw.Flush()
}

func (c *cli) runRender(ctx context.Context, args []string) error {
	fs, cfg := c.flagSet("render")
	format := fs.String("format", "mermaid", "output format: mermaid, ascii, png or svg")
	output := fs.String("o", "", "write to this file instead of stdout")
	annotate := fs.Bool("annotate", true, "annotate tasks with ordering, condition and last flag")
	if err := parse(fs, args, 1, 1); err != nil {
		return err
	}

	a, err := newApp(ctx, *cfg, c.stderr)
	if err != nil {
		return err
	}
	defer a.Close()

	d, err := a.reader.Load(ctx, fs.Arg(0))
	if err != nil {
		return err
	}
	var tasks *schema.TaskTable
	if *annotate {
		wf, readErr := reader.ReadDiagram(d)
		if readErr != nil {
			fmt.Fprintf(c.stderr, "Warning: rendering without annotations: %v\n", readErr)
		} else {
			tasks = wf.Tasks
		}
	}

	var out []byte
	switch *format {
	case "mermaid":
		out = []byte(diagram.RenderMermaid(d, tasks))
	case "ascii":
		out = []byte(diagram.RenderASCII(d, tasks))
	case "png", "svg":
		out, err = diagram.RenderImage(ctx, d, tasks, diagram.ImageFormat(*format))
		if err != nil {
			return err
		}
	default:
		return &usageError{msg: fmt.Sprintf("unknown format %q (want mermaid, ascii, png or svg)", *format)}
	}

	if *output == "" {
		_, err = c.stdout.Write(out)
		return err
	}
	if err := os.WriteFile(*output, out, 0o644); err != nil {
		return err
	}
	fmt.Fprintf(c.stdout, "Wrote %s\n", *output)
	return nil
}

func (c *cli) runLint(ctx context.Context, args []string) error {
	fs, cfg := c.flagSet("lint")
	asJSON := fs.Bool("json", false, "print issues as JSON")
	if err := parse(fs, args, 1, 1); err != nil {
		return err
	}

	a, err := newApp(ctx, *cfg, c.stderr)
	if err != nil {
		return err
	}
	defer a.Close()

	d, err := a.reader.Load(ctx, fs.Arg(0))
	if err != nil {
		return err
	}
	result := reader.Lint(d, a.conds)

	if *asJSON {
		if err := writeJSON(c.stdout, result); err != nil {
			return err
		}
	} else if err := result.WriteText(c.stdout); err != nil {
		return err
	}
	return result.ToError()
}

func (c *cli) runRoute(ctx context.Context, args []string) error {
	fs, cfg := c.flagSet("route")
	varsText := fs.String("vars", "", "process variables as a YAML or JSON mapping")
	varsFile := fs.String("vars-file", "", "file holding the process variables (YAML or JSON)")
	if err := parse(fs, args, 1, 1); err != nil {
		return err
	}

	vars, err := loadVars(*varsText, *varsFile)
	if err != nil {
		return err
	}

	a, err := newApp(ctx, *cfg, c.stderr)
	if err != nil {
		return err
	}
	defer a.Close()

	wf, err := a.reader.Read(ctx, fs.Arg(0))
	if err != nil {
		return err
	}
	plan, err := engine.BuildPlan(wf.Tasks, a.conds)
	if err != nil {
		return err
	}
	route, err := plan.Route(ctx, vars)
	if err != nil {
		return err
	}

	tw := tabwriter.NewWriter(c.stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ORDER\tID\tNAME")
	for _, e := range route {
		fmt.Fprintf(tw, "%d\t%s\t%s\n", e.Ordering, e.ID, e.Name)
	}
	return tw.Flush()
}

// loadVars reads process variables from an inline mapping or a file. YAML
// is a superset of JSON, so both are accepted.
func loadVars(text, path string) (map[string]any, error) {
	if text != "" && path != "" {
		return nil, &usageError{msg: "use either -vars or -vars-file"}
	}
	data := []byte(text)
	if path != "" {
		var err error
		if data, err = os.ReadFile(path); err != nil {
			return nil, err
		}
	}
	vars := map[string]any{}
	if len(strings.TrimSpace(string(data))) == 0 {
		return vars, nil
	}
	if err := yaml.Unmarshal(data, &vars); err != nil {
		return nil, schema.NewError(schema.ErrCodeParse, "process variables must be a mapping").WithCause(err)
	}
	return vars, nil
}

func (c *cli) runImport(ctx context.Context, args []string) error {
	fs, cfg := c.flagSet("import")
	id := fs.String("id", "", "store under this ID (single file only)")
	force := fs.Bool("force", false, "store diagrams that fail to read")
	if err := parse(fs, args, 1, -1); err != nil {
		return err
	}
	if *id != "" && fs.NArg() > 1 {
		return &usageError{msg: "-id needs exactly one file"}
	}

	a, err := newApp(ctx, *cfg, c.stderr)
	if err != nil {
		return err
	}
	defer a.Close()

	for _, path := range fs.Args() {
		docID := *id
		if docID == "" {
			docID = idFromPath(path)
		}
		format := store.FormatFromPath(path)
		if format == "" {
			return schema.NewErrorf(schema.ErrCodeValidation, "%s: unknown diagram format", path)
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}

		d, err := a.reader.Decode(format, data)
		if err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
		tasks := 0
		wf, readErr := reader.ReadDiagram(d)
		switch {
		case readErr == nil:
			tasks = wf.Tasks.Len()
		case *force:
			fmt.Fprintf(c.stderr, "Warning: %s: %v\n", path, readErr)
		default:
			return fmt.Errorf("%s: %w", path, readErr)
		}

		if err := a.store.PutDiagram(ctx, &store.Diagram{ID: docID, Format: format, Content: data}); err != nil {
			return err
		}
		fmt.Fprintf(c.stdout, "imported %s (%s, %d tasks)\n", docID, format, tasks)
	}
	return nil
}

// idFromPath strips the directory and the diagram extension from a path.
func idFromPath(path string) string {
	base := filepath.Base(path)
	lower := strings.ToLower(base)
	for _, suffix := range []string{".bpmn20.xml", ".bpmn", ".xml", ".yaml", ".yml"} {
		if strings.HasSuffix(lower, suffix) {
			return base[:len(base)-len(suffix)]
		}
	}
	return base
}

func (c *cli) runList(ctx context.Context, args []string) error {
	fs, cfg := c.flagSet("list")
	prefix := fs.String("prefix", "", "only IDs starting with this prefix")
	format := fs.String("format", "", "only diagrams in this format: bpmn or yaml")
	limit := fs.Int("limit", 0, "maximum number of results (0: no limit)")
	if err := parse(fs, args, 0, 0); err != nil {
		return err
	}

	a, err := newApp(ctx, *cfg, c.stderr)
	if err != nil {
		return err
	}
	defer a.Close()

	infos, err := a.store.ListDiagrams(ctx, store.DiagramFilter{
		Prefix: *prefix,
		Format: store.Format(*format),
		Limit:  *limit,
	})
	if err != nil {
		return err
	}

	tw := tabwriter.NewWriter(c.stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tFORMAT\tSIZE\tUPDATED")
	for _, info := range infos {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%s\n", info.ID, info.Format, info.Size, info.UpdatedAt.Format(time.RFC3339))
	}
	return tw.Flush()
}

func (c *cli) runHistory(ctx context.Context, args []string) error {
	fs, cfg := c.flagSet("history")
	since := fs.Int64("since", 0, "only reads after this sequence number")
	if err := parse(fs, args, 1, 1); err != nil {
		return err
	}

	a, err := newApp(ctx, *cfg, c.stderr)
	if err != nil {
		return err
	}
	defer a.Close()

	if a.readLog == nil {
		return &usageError{msg: "history needs the libsql source"}
	}
	records, err := a.readLog.ListReads(ctx, fs.Arg(0), *since)
	if err != nil {
		return err
	}

	tw := tabwriter.NewWriter(c.stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "SEQ\tTIME\tREAD\tRESULT")
	for _, rec := range records {
		result := fmt.Sprintf("ok: %s, %d tasks", rec.Title, rec.TaskCount)
		if rec.Failed() {
			result = rec.ErrorCode
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\n", rec.Sequence, rec.Timestamp.Format(time.RFC3339), rec.ReadID, result)
	}
	return tw.Flush()
}

func (c *cli) runInit(args []string) error {
	fs, cfg := c.flagSet("init")
	if err := parse(fs, args, 0, 0); err != nil {
		return err
	}
	if err := cfg.validate(); err != nil {
		return &usageError{msg: err.Error()}
	}

	if err := writeSettings(c.settings, *cfg); err != nil {
		return err
	}
	fmt.Fprintf(c.stdout, "Config written to %s\n", c.settings)

	if cfg.Source == sourceDir {
		if err := os.MkdirAll(cfg.DiagramDir, 0o755); err != nil {
			return fmt.Errorf("create %s: %w", cfg.DiagramDir, err)
		}
		fmt.Fprintf(c.stdout, "Diagram directory: %s\n", cfg.DiagramDir)
	}
	return nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
