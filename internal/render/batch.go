package render

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/bmatcuk/doublestar/v4"
	"golang.org/x/sync/errgroup"

	"github.com/ha1tch/uml-toolkit/pkg/design"
)

// BatchOptions configures file rendering.
type BatchOptions struct {
	OutDir      string   // empty writes next to each input
	Formats     []Format // empty means svg only
	Markdown    bool     // also write requirements and narratives
	Concurrency int      // files rendered at once, at least 1
}

// Output describes one written file.
type Output struct {
	Input string
	Path  string
	Size  int64
}

// ExpandPatterns resolves doublestar glob patterns to a sorted list of
// unique files. A pattern without matches is an error so typos surface.
func ExpandPatterns(patterns []string) ([]string, error) {
	seen := make(map[string]bool)
	var out []string
	for _, p := range patterns {
		matches, err := doublestar.FilepathGlob(p, doublestar.WithFilesOnly())
		if err != nil {
			return nil, fmt.Errorf("bad pattern %q: %w", p, err)
		}
		if len(matches) == 0 {
			return nil, fmt.Errorf("no files match %q", p)
		}
		for _, m := range matches {
			if !seen[m] {
				seen[m] = true
				out = append(out, m)
			}
		}
	}
	sort.Strings(out)
	return out, nil
}

// RenderFile loads one design document and writes its diagrams, plus the
// markdown exports when asked. Empty diagrams produce no file.
func (r *Renderer) RenderFile(ctx context.Context, path string, opts BatchOptions) ([]Output, error) {
	doc, err := design.Load(path)
	if err != nil {
		return nil, err
	}
	dir := opts.OutDir
	if dir == "" {
		dir = filepath.Dir(path)
	}
	formats := opts.Formats
	if len(formats) == 0 {
		formats = []Format{FormatSVG}
	}

	var outs []Output
	write := func(name string, data []byte) error {
		if len(data) == 0 {
			return nil
		}
		out := filepath.Join(dir, name)
		if err := os.WriteFile(out, data, 0644); err != nil {
			return err
		}
		outs = append(outs, Output{Input: path, Path: out, Size: int64(len(data))})
		return nil
	}

	for _, kind := range Kinds {
		sc, _, err := r.Scene(ctx, doc, kind)
		if err != nil {
			return outs, fmt.Errorf("%s: %w", path, err)
		}
		for _, f := range formats {
			var buf bytes.Buffer
			if err := r.WriteScene(ctx, &buf, sc, f); err != nil {
				return outs, fmt.Errorf("%s: %s %s: %w", path, kind, f, err)
			}
			if err := write(OutputName(doc, kind, f), buf.Bytes()); err != nil {
				return outs, err
			}
		}
	}

	if opts.Markdown {
		if len(doc.Requirements.Functional)+len(doc.Requirements.NonFunctional) > 0 {
			if err := write(design.ExportName(doc.SystemName, "Requisitos", "md"), []byte(design.RequirementsMarkdown(doc))); err != nil {
				return outs, err
			}
		}
		if len(doc.Narratives) > 0 {
			if err := write(design.ExportName(doc.SystemName, "Narrativas", "md"), []byte(design.NarrativesMarkdown(doc))); err != nil {
				return outs, err
			}
		}
	}
	return outs, nil
}

// Batch renders many files concurrently. The first failure cancels the
// remaining work; outputs already written are still returned, ordered by
// input.
func (r *Renderer) Batch(ctx context.Context, paths []string, opts BatchOptions) ([]Output, error) {
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(max(1, opts.Concurrency))

	var mu sync.Mutex
	results := make(map[string][]Output, len(paths))
	for _, p := range paths {
		g.Go(func() error {
			outs, err := r.RenderFile(ctx, p, opts)
			mu.Lock()
			results[p] = outs
			mu.Unlock()
			return err
		})
	}
	err := g.Wait()

	var all []Output
	for _, p := range paths {
		all = append(all, results[p]...)
	}
	return all, err
}
