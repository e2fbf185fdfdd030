// Command uml renders, lays out, exports and generates UML design documents.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"

	"github.com/dustin/go-humanize"
	"go.uber.org/zap"

	"github.com/ha1tch/uml-toolkit/internal/config"
	"github.com/ha1tch/uml-toolkit/internal/logging"
	"github.com/ha1tch/uml-toolkit/internal/render"
	"github.com/ha1tch/uml-toolkit/internal/server"
	"github.com/ha1tch/uml-toolkit/internal/watch"
	"github.com/ha1tch/uml-toolkit/pkg/design"
	"github.com/ha1tch/uml-toolkit/pkg/diagram"
	"github.com/ha1tch/uml-toolkit/pkg/generate"
)

const usage = `uml - UML design toolkit

Usage:
  uml <command> [options]

Commands:
  render     Render use-case and class diagrams (svg, png, dot)
  layout     Print node positions as JSON
  export     Write requirements and narratives as markdown
  generate   Generate a design document from a description
  serve      Run the HTTP API
  watch      Re-render design files when they change
  info       Show design document information
  validate   Validate design document files

Common options:
  -c, --config <file>   YAML configuration file

Examples:
  uml render loja.json -f svg,png -o out/
  uml render 'designs/**/*.json' --markdown -j 8
  uml layout loja.json -k class --pretty
  uml render loja.json -s layered -f dot
  uml generate "Um sistema de biblioteca" -o biblioteca.json --render
  uml serve --addr :8080
  uml watch designs/

Use "uml <command> -h" for more information about a command.
`

func main() {
	if len(os.Args) < 2 {
		fmt.Print(usage)
		os.Exit(1)
	}

	cmd := os.Args[1]
	args := os.Args[2:]

	switch cmd {
	case "render":
		cmdRender(args)
	case "layout":
		cmdLayout(args)
	case "export":
		cmdExport(args)
	case "generate":
		cmdGenerate(args)
	case "serve":
		cmdServe(args)
	case "watch":
		cmdWatch(args)
	case "info":
		cmdInfo(args)
	case "validate":
		cmdValidate(args)
	case "-h", "--help", "help":
		fmt.Print(usage)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", cmd)
		fmt.Print(usage)
		os.Exit(1)
	}
}

// options holds the flags shared by every command plus the positional
// arguments.
type options struct {
	config     string
	output     string
	formats    []render.Format
	kind       string
	palette    string
	strategy   string
	addr       string
	lang       string
	jobs       int
	markdown   bool
	pretty     bool
	renderToo  bool
	help       bool
	positional []string
}

func parseArgs(args []string) options {
	var o options
	next := func(i *int) string {
		if *i+1 < len(args) {
			*i++
			return args[*i]
		}
		fail("Missing value for %s", args[*i])
		return ""
	}
	for i := 0; i < len(args); i++ {
		switch args[i] {
		case "-c", "--config":
			o.config = next(&i)
		case "-o", "--output":
			o.output = next(&i)
		case "-f", "--format":
			for _, s := range strings.Split(next(&i), ",") {
				f, err := render.ParseFormat(strings.TrimSpace(s))
				if err != nil {
					fail("%v", err)
				}
				o.formats = append(o.formats, f)
			}
		case "-k", "--kind":
			o.kind = next(&i)
		case "-p", "--palette":
			o.palette = next(&i)
		case "-s", "--strategy":
			o.strategy = next(&i)
		case "--addr":
			o.addr = next(&i)
		case "--lang":
			o.lang = next(&i)
		case "-j", "--jobs":
			n, err := strconv.Atoi(next(&i))
			if err != nil || n < 1 {
				fail("Invalid job count: %s", args[i])
			}
			o.jobs = n
		case "--markdown":
			o.markdown = true
		case "--pretty":
			o.pretty = true
		case "--render":
			o.renderToo = true
		case "-h", "--help":
			o.help = true
		default:
			o.positional = append(o.positional, args[i])
		}
	}
	return o
}

func fail(format string, a ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", a...)
	os.Exit(1)
}

func loadConfig(o options) *config.Config {
	cfg, err := config.Load(o.config)
	if err != nil {
		fail("Error loading config: %v", err)
	}
	if o.palette != "" {
		cfg.Render.Palette = o.palette
	}
	if o.strategy != "" {
		cfg.Layout.ClassStrategy = o.strategy
	}
	if o.jobs > 0 {
		cfg.Render.Concurrency = o.jobs
	}
	if o.addr != "" {
		cfg.Server.Addr = o.addr
	}
	if o.lang != "" {
		cfg.Generate.Language = o.lang
	}
	if err := cfg.Validate(); err != nil {
		fail("Invalid configuration: %v", err)
	}
	return cfg
}

func newLogger(cfg *config.Config) *zap.Logger {
	logger, err := logging.New(cfg.Log)
	if err != nil {
		fail("Error creating logger: %v", err)
	}
	return logger
}

func newRenderer(cfg *config.Config) *render.Renderer {
	r, err := render.New(cfg)
	if err != nil {
		fail("Error: %v", err)
	}
	return r
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func loadDocument(path string) *design.Document {
	doc, err := design.Load(path)
	if err != nil {
		fail("Error loading %s: %v", path, err)
	}
	return doc
}

func printOutputs(outs []render.Output) {
	for _, o := range outs {
		fmt.Printf("Written: %s (%s)\n", o.Path, humanize.Bytes(uint64(o.Size)))
	}
}

func cmdRender(args []string) {
	o := parseArgs(args)
	if o.help || len(o.positional) < 1 {
		fmt.Fprintln(os.Stderr, "Usage: uml render <input|glob>... [-o dir] [-f svg,png,dot] [-p palette] [-s force|layered] [--markdown] [-j jobs] [-c config]")
		os.Exit(1)
	}
	cfg := loadConfig(o)
	paths, err := render.ExpandPatterns(o.positional)
	if err != nil {
		fail("Error: %v", err)
	}
	if o.output != "" {
		if err := os.MkdirAll(o.output, 0755); err != nil {
			fail("Error creating %s: %v", o.output, err)
		}
	}

	ctx, cancel := signalContext()
	defer cancel()
	outs, err := newRenderer(cfg).Batch(ctx, paths, render.BatchOptions{
		OutDir:      o.output,
		Formats:     o.formats,
		Markdown:    o.markdown,
		Concurrency: cfg.Render.Concurrency,
	})
	printOutputs(outs)
	if err != nil {
		fail("Error rendering: %v", err)
	}
}

// layoutOutput is the JSON printed by the layout command.
type layoutOutput struct {
	System   string                   `json:"systemName,omitempty"`
	Kind     string                   `json:"kind"`
	Strategy string                   `json:"strategy"`
	ViewBox  diagram.Box              `json:"viewBox"`
	Ticks    int                      `json:"ticks,omitempty"`
	Nodes    map[string]diagram.Point `json:"nodes"`
	Overlaps int                      `json:"overlaps"`
}

func cmdLayout(args []string) {
	o := parseArgs(args)
	if o.help || len(o.positional) != 1 {
		fmt.Fprintln(os.Stderr, "Usage: uml layout <input> [-k class|useCase] [-s force|layered] [-o output.json] [--pretty] [-c config]")
		os.Exit(1)
	}
	cfg := loadConfig(o)
	input := o.positional[0]
	doc := loadDocument(input)

	kinds := render.Kinds
	if o.kind != "" {
		k, err := diagram.ParseKind(o.kind)
		if err != nil {
			fail("Error: %v", err)
		}
		kinds = []diagram.Kind{k}
	}

	r := newRenderer(cfg)
	var out []layoutOutput
	for _, k := range kinds {
		sc, lr, err := r.Scene(context.Background(), doc, k)
		if err != nil {
			fail("Error laying out %s: %v", input, err)
		}
		out = append(out, layoutOutput{
			System:   doc.SystemName,
			Kind:     k.String(),
			Strategy: lr.Strategy.String(),
			ViewBox:  sc.ViewBox,
			Ticks:    lr.Ticks,
			Nodes:    lr.Positions(),
			Overlaps: len(sc.Overlaps()),
		})
	}

	var data []byte
	var err error
	if o.pretty {
		data, err = json.MarshalIndent(out, "", "  ")
	} else {
		data, err = json.Marshal(out)
	}
	if err != nil {
		fail("Error: %v", err)
	}
	if o.output == "" {
		fmt.Println(string(data))
		return
	}
	if err := os.WriteFile(o.output, append(data, '\n'), 0644); err != nil {
		fail("Error writing %s: %v", o.output, err)
	}
	fmt.Printf("Written: %s\n", o.output)
}

func cmdExport(args []string) {
	o := parseArgs(args)
	if o.help || len(o.positional) < 1 || len(o.positional) > 2 {
		fmt.Fprintln(os.Stderr, "Usage: uml export <input> [requirements|narratives|all] [-o dir]")
		os.Exit(1)
	}
	input := o.positional[0]
	what := "all"
	if len(o.positional) == 2 {
		what = o.positional[1]
	}
	doc := loadDocument(input)

	dir := o.output
	if dir == "" {
		dir = filepath.Dir(input)
	}
	type export struct{ suffix, text string }
	var exports []export
	switch what {
	case "requirements":
		exports = []export{{"Requisitos", design.RequirementsMarkdown(doc)}}
	case "narratives":
		exports = []export{{"Narrativas", design.NarrativesMarkdown(doc)}}
	case "all":
		exports = []export{
			{"Requisitos", design.RequirementsMarkdown(doc)},
			{"Narrativas", design.NarrativesMarkdown(doc)},
		}
	default:
		fail("Unknown export: %s", what)
	}

	for _, e := range exports {
		out := filepath.Join(dir, design.ExportName(doc.SystemName, e.suffix, "md"))
		if err := os.WriteFile(out, []byte(e.text), 0644); err != nil {
			fail("Error writing %s: %v", out, err)
		}
		fmt.Printf("Written: %s (%s)\n", out, humanize.Bytes(uint64(len(e.text))))
	}
}

func cmdGenerate(args []string) {
	o := parseArgs(args)
	if o.help || len(o.positional) < 1 {
		fmt.Fprintln(os.Stderr, `Usage: uml generate "<description>" [-o output.json] [--lang pt-BR] [--render] [-f svg,png] [-c config]`)
		os.Exit(1)
	}
	cfg := loadConfig(o)
	if cfg.Generate.APIKey == "" {
		fail("Error: no API key; set GEMINI_API_KEY or generate.api_key")
	}
	logger := newLogger(cfg)
	defer logger.Sync()

	ctx, cancel := signalContext()
	defer cancel()

	client := generate.NewClient(cfg.GenerateOptions(), logger)
	pipeline := generate.NewPipeline(client, cfg.Generate.Language, logger)
	doc, err := pipeline.Generate(ctx, strings.Join(o.positional, " "))
	if err != nil {
		var apiErr *generate.APIError
		if errors.As(err, &apiErr) && apiErr.InvalidKey() {
			fail("Error: the API key was rejected (%v)", err)
		}
		fail("Error generating design: %v", err)
	}

	output := o.output
	if output == "" {
		output = design.ExportName(doc.SystemName, "", "json")
	}
	data, err := design.ToJSON(doc, true)
	if err != nil {
		fail("Error: %v", err)
	}
	if err := os.WriteFile(output, append(data, '\n'), 0644); err != nil {
		fail("Error writing %s: %v", output, err)
	}
	fmt.Printf("Written: %s (%s)\n", output, humanize.Bytes(uint64(len(data)+1)))

	if o.renderToo {
		outs, err := newRenderer(cfg).RenderFile(ctx, output, render.BatchOptions{
			Formats:  o.formats,
			Markdown: true,
		})
		printOutputs(outs)
		if err != nil {
			fail("Error rendering: %v", err)
		}
	}
}

func cmdServe(args []string) {
	o := parseArgs(args)
	if o.help {
		fmt.Fprintln(os.Stderr, "Usage: uml serve [--addr host:port] [-c config]")
		os.Exit(1)
	}
	cfg := loadConfig(o)
	logger := newLogger(cfg)
	defer logger.Sync()

	var gen server.Generator
	if cfg.Generate.APIKey != "" {
		client := generate.NewClient(cfg.GenerateOptions(), logger)
		gen = generate.NewPipeline(client, cfg.Generate.Language, logger)
	} else {
		logger.Warn("No API key configured; generation is disabled")
	}

	srv, err := server.New(cfg, logger, gen)
	if err != nil {
		fail("Error: %v", err)
	}
	ctx, cancel := signalContext()
	defer cancel()
	if err := srv.ListenAndServe(ctx); err != nil {
		fail("Error: %v", err)
	}
}

func cmdWatch(args []string) {
	o := parseArgs(args)
	if o.help || len(o.positional) < 1 {
		fmt.Fprintln(os.Stderr, "Usage: uml watch <file|dir>... [-o dir] [-f svg,png] [--markdown] [-c config]")
		os.Exit(1)
	}
	cfg := loadConfig(o)
	logger := newLogger(cfg)
	defer logger.Sync()

	w, err := watch.New(o.positional, watch.Options{
		Ignore:   cfg.Watch.Ignore,
		Debounce: cfg.Watch.Debounce,
	}, logger)
	if err != nil {
		fail("Error: %v", err)
	}

	r := newRenderer(cfg)
	opts := render.BatchOptions{
		OutDir:      o.output,
		Formats:     o.formats,
		Markdown:    o.markdown,
		Concurrency: cfg.Render.Concurrency,
	}
	ctx, cancel := signalContext()
	defer cancel()

	fmt.Printf("Watching %s (Ctrl+C to stop)\n", w)
	err = w.Run(ctx, func(ctx context.Context, paths []string) {
		outs, err := r.Batch(ctx, paths, opts)
		printOutputs(outs)
		if err != nil {
			// Keep watching; the next save may fix the document.
			fmt.Fprintf(os.Stderr, "Error rendering: %v\n", err)
		}
	})
	if err != nil {
		fail("Error: %v", err)
	}
}

func cmdInfo(args []string) {
	o := parseArgs(args)
	if o.help || len(o.positional) != 1 {
		fmt.Fprintln(os.Stderr, "Usage: uml info <input>")
		os.Exit(1)
	}
	input := o.positional[0]
	doc := loadDocument(input)
	st := doc.Stats()

	if doc.SystemName != "" {
		fmt.Printf("System:        %s\n", doc.SystemName)
	}
	fmt.Printf("Actors:        %d\n", st.Actors)
	fmt.Printf("Use cases:     %d\n", st.UseCases)
	fmt.Printf("Classes:       %d\n", st.Classes)
	fmt.Printf("Relationships: %d\n", st.Relationships)
	if st.Dangling > 0 {
		fmt.Printf("  dangling:    %d\n", st.Dangling)
	}
	fmt.Printf("Narratives:    %d\n", st.Narratives)
	fmt.Printf("Requirements:  %d functional, %d non-functional\n", st.Functional, st.NonFunctional)

	useCase, class := diagram.FromDocument(doc)
	fmt.Println()
	fmt.Printf("Use-case diagram: %d nodes, %d edges\n", len(useCase.Nodes), len(useCase.Edges))
	fmt.Printf("Class diagram:    %d nodes, %d edges\n", len(class.Nodes), len(class.Edges))

	r := render.Default()
	sc, _, err := r.Scene(context.Background(), doc, diagram.KindUseCase)
	if err == nil {
		if ov := sc.Overlaps(); len(ov) > 0 {
			fmt.Printf("Warning: %d overlapping use-case shapes (largest: %s / %s)\n", len(ov), ov[0].A, ov[0].B)
		}
	}
}

func cmdValidate(args []string) {
	o := parseArgs(args)
	if o.help || len(o.positional) < 1 {
		fmt.Fprintln(os.Stderr, "Usage: uml validate <input|glob>...")
		os.Exit(1)
	}
	paths, err := render.ExpandPatterns(o.positional)
	if err != nil {
		fail("Error: %v", err)
	}

	failed := 0
	for _, p := range paths {
		doc, err := design.Load(p)
		if err != nil {
			var verrs design.ValidationErrors
			if errors.As(err, &verrs) {
				fmt.Fprintf(os.Stderr, "%s: validation failed\n", p)
				for _, e := range verrs {
					fmt.Fprintf(os.Stderr, "  %v\n", e)
				}
			} else {
				fmt.Fprintf(os.Stderr, "Error loading %s: %v\n", p, err)
			}
			failed++
			continue
		}
		st := doc.Stats()
		fmt.Printf("%s: valid design with %d actors, %d use cases, %d classes\n",
			p, st.Actors, st.UseCases, st.Classes)
	}
	if failed > 0 {
		os.Exit(1)
	}
}
