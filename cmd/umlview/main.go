// Command umlview is a terminal viewer for UML design documents. The class
// diagram settles live and nodes can be dragged; both diagrams can be
// panned, zoomed and exported.
package main

import (
	"context"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"time"

	"github.com/gdamore/tcell/v2"
	"gopkg.in/yaml.v3"

	"github.com/ha1tch/uml-toolkit/internal/render"
	"github.com/ha1tch/uml-toolkit/pkg/design"
	"github.com/ha1tch/uml-toolkit/pkg/diagram"
)

// Settings holds persistent viewer settings.
type Settings struct {
	Palette   string        `yaml:"palette"`    // "default" or "print"
	Format    string        `yaml:"format"`     // export format, "svg" or "png"
	ExportDir string        `yaml:"export_dir"` // empty exports next to the document
	Interval  time.Duration `yaml:"tick_interval"`
}

// DefaultSettings returns default settings.
func DefaultSettings() Settings {
	return Settings{
		Palette:  "default",
		Format:   "svg",
		Interval: 16 * time.Millisecond,
	}
}

// SettingsPath returns the path to the settings file.
func SettingsPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".umlview.yaml"
	}
	return filepath.Join(home, ".umlview.yaml")
}

// LoadSettings reads settings from path. A missing or unreadable file
// yields the defaults; unknown values fall back to the default one.
func LoadSettings(path string) Settings {
	s := DefaultSettings()
	data, err := os.ReadFile(path)
	if err != nil {
		return s
	}
	var file Settings
	if err := yaml.Unmarshal(data, &file); err != nil {
		return s
	}
	if file.Palette == "default" || file.Palette == "print" {
		s.Palette = file.Palette
	}
	if file.Format == "svg" || file.Format == "png" {
		s.Format = file.Format
	}
	if file.ExportDir != "" {
		s.ExportDir = file.ExportDir
	}
	if file.Interval > 0 {
		s.Interval = file.Interval
	}
	return s
}

// SaveSettings writes settings to path.
func SaveSettings(path string, s Settings) error {
	data, err := yaml.Marshal(s)
	if err != nil {
		return err
	}
	return os.WriteFile(path, append([]byte("# umlview settings\n"), data...), 0644)
}

// Viewer holds all viewer state.
type Viewer struct {
	screen       tcell.Screen
	doc          *design.Document
	filename     string
	renderer     *render.Renderer
	settings     Settings
	settingsPath string
	details      bool // draw class members

	tabs   []*tab
	active int

	message           string
	messageType       MessageType
	messageFlashStart int64              // Unix milliseconds when message was shown
	flashStop         context.CancelFunc // stops the flash refresh; nil when idle

	// Mouse state
	mouseDown  bool
	dragNode   string // node held by the mouse, force tabs only
	panning    bool
	lastMouseX int
	lastMouseY int

	hits []hitbox // node extents from the last draw
}

// tab is one diagram of the document.
type tab struct {
	kind   diagram.Kind
	graph  *diagram.Graph
	sim    *diagram.Simulation   // force layout, live
	layout *diagram.LayoutResult // any other strategy, computed once
	view   diagram.Viewport
	stop   context.CancelFunc // stops the tick source; nil when idle
}

// result is the tab's current layout.
func (t *tab) result() *diagram.LayoutResult {
	if t.sim != nil {
		return diagram.ForceResult(t.sim)
	}
	return t.layout
}

func (t *tab) title() string {
	if t.kind == diagram.KindClass {
		return "Classes"
	}
	return "Use cases"
}

// tickEvent asks the event loop to advance a tab's simulation.
type tickEvent struct{ tab *tab }

// flashEvent asks the event loop to redraw a flashing status message.
type flashEvent struct{}

const (
	flashWindow  = 700 * time.Millisecond
	flashRefresh = 50 * time.Millisecond
)

// MessageType for status messages
type MessageType int

const (
	MsgInfo    MessageType = iota // Informative, no flash
	MsgError                      // Errors, flash
	MsgSuccess                    // Completed actions, flash
)

// Zoom step per wheel notch or key press, in wheel pixels.
const wheelDelta = 100

// Padding around content when fitting the view.
const fitPadding = 40

func main() {
	if len(os.Args) != 2 {
		fmt.Fprintln(os.Stderr, "Usage: umlview <design.json>")
		os.Exit(1)
	}

	v := &Viewer{settingsPath: SettingsPath(), details: true}
	v.settings = LoadSettings(v.settingsPath)
	if err := v.loadFile(os.Args[1]); err != nil {
		fmt.Fprintf(os.Stderr, "Error loading %s: %v\n", os.Args[1], err)
		os.Exit(1)
	}

	// Initialize screen
	screen, err := tcell.NewScreen()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error creating screen: %v\n", err)
		os.Exit(1)
	}
	if err := screen.Init(); err != nil {
		fmt.Fprintf(os.Stderr, "Error initializing screen: %v\n", err)
		os.Exit(1)
	}
	screen.EnableMouse()
	screen.Clear()
	v.screen = screen

	v.selectTab(v.active)
	v.run()

	v.stopAll()
	screen.Fini()
}

// loadFile reads a design document and prepares one tab per diagram.
func (v *Viewer) loadFile(path string) error {
	doc, err := design.Load(path)
	if err != nil {
		return err
	}
	p, err := diagram.PaletteByName(v.settings.Palette)
	if err != nil {
		return err
	}
	if v.renderer == nil {
		v.renderer = render.Default()
	}
	v.renderer = v.renderer.WithPalette(p)
	v.doc = doc
	v.filename = path

	v.stopAll()
	v.tabs = v.tabs[:0]
	for _, kind := range render.Kinds {
		t, err := v.newTab(kind)
		if err != nil {
			return err
		}
		v.tabs = append(v.tabs, t)
	}
	// Open on the first diagram with content.
	v.active = 0
	for i, t := range v.tabs {
		if !t.graph.Empty() {
			v.active = i
			break
		}
	}
	return nil
}

func (v *Viewer) newTab(kind diagram.Kind) (*tab, error) {
	g := render.Graph(v.doc, kind)
	opts := v.renderer.Layout(kind)
	t := &tab{kind: kind, graph: g}
	if opts.Strategy == diagram.StrategyForce {
		t.sim = diagram.NewSimulation(g, opts.Force)
	} else {
		lr, err := diagram.Arrange(context.Background(), g, opts)
		if err != nil {
			return nil, err
		}
		t.layout = lr
	}
	t.view = diagram.NewViewport(v.scene(t).ViewBox)
	return t, nil
}

func (v *Viewer) tab() *tab { return v.tabs[v.active] }

// scene composes the tab at its current positions.
func (v *Viewer) scene(t *tab) *diagram.Scene {
	sc := diagram.Compose(t.graph, t.result(), v.renderer.Palette, v.renderer.Measurer)
	sc.Title = v.doc.SystemName
	return sc
}

// selectTab switches tabs. The simulation of the tab left behind stops
// ticking; the new one resumes if it has not settled.
func (v *Viewer) selectTab(i int) {
	if i < 0 || i >= len(v.tabs) {
		return
	}
	if i != v.active {
		v.stopTicker(v.tab())
		v.endDrag()
	}
	v.active = i
	if t := v.tab(); t.sim != nil && !t.sim.Settled() {
		v.startTicker(t)
	}
}

// startTicker posts a tick event for t once per interval until stopped.
func (v *Viewer) startTicker(t *tab) {
	if t.stop != nil || t.sim == nil || v.screen == nil {
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	t.stop = cancel
	screen := v.screen
	interval := v.settings.Interval
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				screen.PostEvent(tcell.NewEventInterrupt(tickEvent{tab: t}))
			}
		}
	}()
}

func (v *Viewer) stopTicker(t *tab) {
	if t.stop != nil {
		t.stop()
		t.stop = nil
	}
}

func (v *Viewer) stopAll() {
	for _, t := range v.tabs {
		v.stopTicker(t)
	}
	v.stopFlash()
}

// startFlash posts redraw events until the flash window of the current
// message has passed. Only the event loop touches the message itself.
func (v *Viewer) startFlash() {
	v.stopFlash()
	if v.screen == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), flashWindow)
	v.flashStop = cancel
	go postUntilDone(ctx, v.screen.PostEvent, flashRefresh)
}

func (v *Viewer) stopFlash() {
	if v.flashStop != nil {
		v.flashStop()
		v.flashStop = nil
	}
}

// postUntilDone posts a flashEvent once per interval until ctx ends.
func postUntilDone(ctx context.Context, post func(tcell.Event) error, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			_ = post(tcell.NewEventInterrupt(flashEvent{}))
		}
	}
}

// handleTick advances t by one tick. Ticks for a tab that is no longer
// shown are stale and ignored.
func (v *Viewer) handleTick(t *tab) {
	if t != v.tab() || t.sim == nil {
		return
	}
	if !t.sim.Step() && v.dragNode == "" {
		v.stopTicker(t)
	}
}

func (v *Viewer) run() {
	for {
		v.draw()
		v.screen.Show()

		ev := v.screen.PollEvent()
		switch ev := ev.(type) {
		case *tcell.EventResize:
			v.screen.Sync()
		case *tcell.EventKey:
			if v.handleKey(ev) {
				return
			}
		case *tcell.EventMouse:
			v.handleMouse(ev)
		case *tcell.EventInterrupt:
			// flashEvent needs nothing beyond the redraw at the loop head.
			if tick, ok := ev.Data().(tickEvent); ok {
				v.handleTick(tick.tab)
			}
		}
	}
}

// handleKey handles a key press and reports whether to quit.
func (v *Viewer) handleKey(ev *tcell.EventKey) bool {
	t := v.tab()
	pw, ph := v.surfaceSize()
	switch ev.Key() {
	case tcell.KeyCtrlC, tcell.KeyEscape:
		return true
	case tcell.KeyTab:
		v.selectTab((v.active + 1) % len(v.tabs))
		return false
	case tcell.KeyBacktab:
		v.selectTab((v.active + len(v.tabs) - 1) % len(v.tabs))
		return false
	case tcell.KeyLeft:
		t.view = t.view.PanPixels(4, 0, pw, ph)
		return false
	case tcell.KeyRight:
		t.view = t.view.PanPixels(-4, 0, pw, ph)
		return false
	case tcell.KeyUp:
		t.view = t.view.PanPixels(0, 4, pw, ph)
		return false
	case tcell.KeyDown:
		t.view = t.view.PanPixels(0, -4, pw, ph)
		return false
	}

	center := diagram.Point{X: pw / 2, Y: ph / 2}
	switch ev.Rune() {
	case 'q':
		return true
	case '1', '2':
		v.selectTab(int(ev.Rune() - '1'))
	case '+', '=':
		t.view = t.view.WheelAt(center, -wheelDelta, pw, ph)
	case '-':
		t.view = t.view.WheelAt(center, wheelDelta, pw, ph)
	case '0':
		t.view = diagram.NewViewport(t.view.ViewBox)
	case 'f':
		v.fit(t)
	case 'r':
		if t.sim != nil {
			t.sim.Reheat(1)
			v.startTicker(t)
			v.showMessage("Layout restarted", MsgInfo)
		}
	case 'd':
		v.details = !v.details
	case 'p':
		v.togglePalette()
	case 'e':
		v.export()
	}
	return false
}

// fit frames the tab's content.
func (v *Viewer) fit(t *tab) {
	sc := v.scene(t)
	if sc.Empty() {
		return
	}
	t.view = t.view.Fit(sc.Bounds(), fitPadding)
}

func (v *Viewer) togglePalette() {
	name := "print"
	if v.settings.Palette == "print" {
		name = "default"
	}
	p, err := diagram.PaletteByName(name)
	if err != nil {
		v.showMessage(err.Error(), MsgError)
		return
	}
	v.settings.Palette = name
	v.renderer = v.renderer.WithPalette(p)
	if err := SaveSettings(v.settingsPath, v.settings); err != nil {
		v.showMessage("Palette: "+name+" (settings not saved)", MsgError)
		return
	}
	v.showMessage("Palette: "+name, MsgSuccess)
}

// export writes the active diagram at its current positions.
func (v *Viewer) export() {
	t := v.tab()
	sc := v.scene(t)
	if sc.Empty() {
		v.showMessage("Nothing to export", MsgError)
		return
	}
	format, err := render.ParseFormat(v.settings.Format)
	if err != nil {
		v.showMessage(err.Error(), MsgError)
		return
	}
	dir := v.settings.ExportDir
	if dir == "" {
		dir = filepath.Dir(v.filename)
	}
	path := filepath.Join(dir, render.OutputName(v.doc, t.kind, format))

	f, err := os.Create(path)
	if err != nil {
		v.showMessage("Export failed: "+err.Error(), MsgError)
		return
	}
	err = v.renderer.WriteScene(context.Background(), f, sc, format)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		v.showMessage("Export failed: "+err.Error(), MsgError)
		return
	}
	v.showMessage("Exported "+path, MsgSuccess)
}

func (v *Viewer) handleMouse(ev *tcell.EventMouse) {
	x, y := ev.Position()
	btn := ev.Buttons()
	t := v.tab()
	pw, ph := v.surfaceSize()

	switch {
	case btn&tcell.WheelUp != 0:
		t.view = t.view.WheelAt(cellPoint(x, y), -wheelDelta, pw, ph)
	case btn&tcell.WheelDown != 0:
		t.view = t.view.WheelAt(cellPoint(x, y), wheelDelta, pw, ph)
	case btn&tcell.Button1 != 0:
		if !v.mouseDown {
			v.mouseDown = true
			v.lastMouseX, v.lastMouseY = x, y
			if y == 0 {
				v.clickTab(x)
				return
			}
			if id := v.hit(x, y); id != "" && t.sim != nil {
				if err := t.sim.BeginDrag(id); err == nil {
					v.dragNode = id
					v.startTicker(t)
				}
				return
			}
			v.panning = true
			return
		}
		if v.dragNode != "" {
			p := t.view.Unproject(cellPoint(x, y), pw, ph)
			_ = t.sim.Drag(v.dragNode, p.X, p.Y)
		} else if v.panning {
			dx := float64(x - v.lastMouseX)
			dy := float64(y-v.lastMouseY) * 2
			t.view = t.view.PanPixels(dx, dy, pw, ph)
		}
		v.lastMouseX, v.lastMouseY = x, y
	default:
		v.endDrag()
		v.mouseDown = false
		v.panning = false
	}
}

// endDrag releases the node held by the mouse, if any.
func (v *Viewer) endDrag() {
	if v.dragNode == "" {
		return
	}
	if t := v.tab(); t.sim != nil {
		_ = t.sim.EndDrag(v.dragNode)
	}
	v.dragNode = ""
}

func (v *Viewer) showMessage(msg string, msgType MessageType) {
	v.message = msg
	v.messageType = msgType
	v.messageFlashStart = time.Now().UnixMilli()
	if v.screen != nil {
		v.screen.PostEvent(tcell.NewEventInterrupt(nil))
	}
	if msgType == MsgInfo {
		v.stopFlash()
	} else {
		v.startFlash()
	}
}

// surfaceSize is the canvas in surface pixels. A terminal cell is about
// twice as tall as it is wide, so each cell row spans two pixels.
func (v *Viewer) surfaceSize() (float64, float64) {
	if v.screen == nil {
		return 80, 2 * 20
	}
	w, h := v.screen.Size()
	cw, ch := v.canvasSize(w, h)
	return float64(cw), float64(2 * ch)
}

// cellPoint is the surface pixel at the center of a canvas cell.
func cellPoint(x, y int) diagram.Point {
	return diagram.Point{X: float64(x) + 0.5, Y: float64(y-canvasTop)*2 + 1}
}

// pointCell is the canvas cell containing a surface pixel.
func pointCell(p diagram.Point) (int, int) {
	return int(math.Floor(p.X)), int(math.Floor(p.Y/2)) + canvasTop
}
