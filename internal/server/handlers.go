package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"github.com/ha1tch/uml-toolkit/internal/render"
	"github.com/ha1tch/uml-toolkit/pkg/design"
	"github.com/ha1tch/uml-toolkit/pkg/diagram"
	"github.com/ha1tch/uml-toolkit/pkg/generate"
)

var errNoGenerator = errors.New("design generation is not configured")

// badRequest marks client input errors.
type badRequest struct{ err error }

func (e badRequest) Error() string { return e.err.Error() }
func (e badRequest) Unwrap() error { return e.err }

func (s *Server) health(w http.ResponseWriter, _ *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]any{
		"status":    "healthy",
		"generator": s.gen != nil,
		"cached":    s.cache.Len(),
	})
}

type generateRequest struct {
	Description string `json:"description"`
}

func (s *Server) generate(w http.ResponseWriter, r *http.Request) {
	if s.gen == nil {
		s.respondError(w, r, errNoGenerator)
		return
	}
	var req generateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, r, badRequest{fmt.Errorf("invalid request body: %w", err)})
		return
	}
	doc, err := s.gen.Generate(r.Context(), req.Description)
	if err != nil {
		s.metrics.GenerateCalls.WithLabelValues("error").Inc()
		// A generated document that fails the schema is an upstream fault.
		if errors.Is(err, design.ErrSchema) {
			err = fmt.Errorf("%w: %w", generate.ErrMalformed, err)
		}
		s.respondError(w, r, err)
		return
	}
	s.metrics.GenerateCalls.WithLabelValues("ok").Inc()
	s.respondJSON(w, http.StatusOK, doc)
}

// readDocument reads the request body as a design document and validates
// it. The raw bytes are returned for cache keys.
func (s *Server) readDocument(r *http.Request) (*design.Document, []byte, error) {
	raw, err := io.ReadAll(r.Body)
	if err != nil {
		return nil, nil, err
	}
	doc, err := design.Parse(raw)
	if err != nil {
		return nil, nil, badRequest{fmt.Errorf("invalid design document: %w", err)}
	}
	if err := doc.Validate(); err != nil {
		return nil, nil, err
	}
	return doc, raw, nil
}

func (s *Server) kindParam(r *http.Request) (diagram.Kind, error) {
	kind, err := diagram.ParseKind(chi.URLParam(r, "kind"))
	if err != nil {
		return 0, badRequest{err}
	}
	return kind, nil
}

// rendererFor returns the server renderer, switched to the palette named in
// the query when there is one.
func (s *Server) rendererFor(r *http.Request) (*render.Renderer, string, error) {
	name := r.URL.Query().Get("palette")
	if name == "" {
		return s.renderer, "", nil
	}
	p, err := diagram.PaletteByName(name)
	if err != nil {
		return nil, "", badRequest{err}
	}
	return s.renderer.WithPalette(p), name, nil
}

func (s *Server) render(w http.ResponseWriter, r *http.Request) {
	kind, err := s.kindParam(r)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	format, err := render.ParseFormat(chi.URLParam(r, "format"))
	if err != nil {
		s.respondError(w, r, badRequest{err})
		return
	}
	rd, paletteName, err := s.rendererFor(r)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	doc, raw, err := s.readDocument(r)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	key := CacheKey([]byte(kind.String()), []byte(format), []byte(paletteName), raw)
	if out, ok := s.cache.Get(key); ok {
		s.metrics.CacheHits.Inc()
		w.Header().Set("X-Cache", "HIT")
		s.respondBytes(w, out, render.OutputName(doc, kind, format))
		return
	}
	s.metrics.CacheMisses.Inc()

	start := time.Now()
	body, err := rd.Bytes(r.Context(), doc, kind, format)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	s.metrics.RenderDuration.WithLabelValues(kind.String(), string(format)).Observe(time.Since(start).Seconds())
	if len(body) == 0 {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	out := Rendered{ContentType: format.ContentType(), Body: body}
	s.cache.Add(key, out)
	w.Header().Set("X-Cache", "MISS")
	s.respondBytes(w, out, render.OutputName(doc, kind, format))
}

// LayoutNode is one positioned node in a layout response.
type LayoutNode struct {
	ID     string        `json:"id"`
	Group  diagram.Group `json:"group"`
	Name   string        `json:"name"`
	X      float64       `json:"x"`
	Y      float64       `json:"y"`
	Placed bool          `json:"placed"`
	Pinned bool          `json:"pinned,omitempty"`
}

// LayoutEdge is one drawable edge in a layout response.
type LayoutEdge struct {
	Source string           `json:"source"`
	Target string           `json:"target"`
	Type   diagram.EdgeType `json:"type"`
	From   diagram.Point    `json:"from"`
	To     diagram.Point    `json:"to"`
}

// LayoutResponse is the body of the layout endpoint.
type LayoutResponse struct {
	Kind     string       `json:"kind"`
	Strategy string       `json:"strategy"`
	ViewBox  diagram.Box  `json:"viewBox"`
	Ticks    int          `json:"ticks,omitempty"`
	Settled  bool         `json:"settled"`
	Nodes    []LayoutNode `json:"nodes"`
	Edges    []LayoutEdge `json:"edges"`
}

func (s *Server) layout(w http.ResponseWriter, r *http.Request) {
	kind, err := s.kindParam(r)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	doc, _, err := s.readDocument(r)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	sc, lr, err := s.renderer.Scene(r.Context(), doc, kind)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	resp := LayoutResponse{
		Kind:     kind.String(),
		Strategy: lr.Strategy.String(),
		ViewBox:  sc.ViewBox,
		Ticks:    lr.Ticks,
		Settled:  lr.Settled,
		Nodes:    make([]LayoutNode, 0, len(sc.Nodes)),
		Edges:    make([]LayoutEdge, 0, len(sc.Edges)),
	}
	for _, n := range sc.Nodes {
		resp.Nodes = append(resp.Nodes, LayoutNode{
			ID: n.ID, Group: n.Group, Name: n.Data.Name,
			X: n.Pos.X, Y: n.Pos.Y, Placed: n.Placed,
			Pinned: lr.Nodes[n.ID].Pinned,
		})
	}
	for _, e := range sc.Edges {
		if !e.Visible {
			continue
		}
		resp.Edges = append(resp.Edges, LayoutEdge{Source: e.Source, Target: e.Target, Type: e.Type, From: e.From, To: e.To})
	}
	s.respondJSON(w, http.StatusOK, resp)
}

// streamLayout runs the class diagram simulation live and writes one JSON
// frame per tick. It ends when the layout settles or the client goes away.
func (s *Server) streamLayout(w http.ResponseWriter, r *http.Request) {
	doc, _, err := s.readDocument(r)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	interval := s.cfg.Server.StreamInterval
	if v := r.URL.Query().Get("interval"); v != "" {
		ms, err := strconv.Atoi(v)
		if err != nil || ms <= 0 {
			s.respondError(w, r, badRequest{fmt.Errorf("invalid interval %q", v)})
			return
		}
		interval = time.Duration(ms) * time.Millisecond
	}

	flusher, _ := w.(http.Flusher)
	w.Header().Set("Content-Type", "application/x-ndjson")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)

	opts := s.renderer.Layout(diagram.KindClass)
	sim := diagram.NewSimulation(render.Graph(doc, diagram.KindClass), opts.Force)
	enc := json.NewEncoder(w)
	frames := 0
	err = sim.Run(r.Context(), interval, func(f diagram.Frame) {
		if enc.Encode(f) != nil {
			return
		}
		frames++
		s.metrics.StreamFrames.Inc()
		if flusher != nil {
			flusher.Flush()
		}
	})

	fields := []zap.Field{
		zap.String("requestID", middleware.GetReqID(r.Context())),
		zap.Int("frames", frames),
		zap.Bool("settled", sim.Settled()),
	}
	if err != nil && !errors.Is(err, context.Canceled) {
		fields = append(fields, zap.Error(err))
	}
	s.logger.Debug("Layout stream ended", fields...)
}

func (s *Server) export(w http.ResponseWriter, r *http.Request) {
	doc, _, err := s.readDocument(r)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	var text, suffix string
	switch chi.URLParam(r, "doc") {
	case "requirements":
		text, suffix = design.RequirementsMarkdown(doc), "Requisitos"
	case "narratives":
		text, suffix = design.NarrativesMarkdown(doc), "Narrativas"
	default:
		s.respondError(w, r, badRequest{fmt.Errorf("unknown export %q", chi.URLParam(r, "doc"))})
		return
	}
	s.respondBytes(w, Rendered{ContentType: "text/markdown; charset=utf-8", Body: []byte(text)},
		design.ExportName(doc.SystemName, suffix, "md"))
}

func (s *Server) respondBytes(w http.ResponseWriter, out Rendered, filename string) {
	w.Header().Set("Content-Type", out.ContentType)
	w.Header().Set("Content-Length", strconv.Itoa(len(out.Body)))
	w.Header().Set("Content-Disposition", fmt.Sprintf("inline; filename=%q", filename))
	w.WriteHeader(http.StatusOK)
	_, _ = io.Copy(w, bytes.NewReader(out.Body))
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Warn("Failed to encode response", zap.Error(err))
	}
}

func (s *Server) respondError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status >= 500 {
		s.logger.Error("Request failed",
			zap.String("requestID", middleware.GetReqID(r.Context())),
			zap.Int("status", status),
			zap.Error(err))
	}
	s.respondJSON(w, status, map[string]string{"error": err.Error()})
}

// statusFor maps an error to its HTTP status.
func statusFor(err error) int {
	var br badRequest
	var maxBytes *http.MaxBytesError
	var apiErr *generate.APIError
	switch {
	case errors.As(err, &maxBytes):
		return http.StatusRequestEntityTooLarge
	case errors.As(err, &br), errors.Is(err, generate.ErrNoDescription):
		return http.StatusBadRequest
	case errors.Is(err, generate.ErrMalformed):
		return http.StatusBadGateway
	case errors.Is(err, design.ErrSchema):
		return http.StatusBadRequest
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests), errors.Is(err, errNoGenerator):
		return http.StatusServiceUnavailable
	case errors.As(err, &apiErr), errors.Is(err, generate.ErrBlocked), errors.Is(err, generate.ErrEmpty):
		return http.StatusBadGateway
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	}
	return http.StatusInternalServerError
}
