package main

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ha1tch/uml-toolkit/pkg/diagram"
)

const sampleDoc = "../../examples/loja_online.json"

func newTestViewer(t *testing.T) *Viewer {
	t.Helper()
	screen := tcell.NewSimulationScreen("UTF-8")
	require.NoError(t, screen.Init())
	screen.SetSize(120, 40)

	v := &Viewer{
		screen:       screen,
		settings:     DefaultSettings(),
		settingsPath: filepath.Join(t.TempDir(), "umlview.yaml"),
		details:      true,
	}
	require.NoError(t, v.loadFile(sampleDoc))
	t.Cleanup(func() {
		v.stopAll()
		screen.Fini()
	})
	return v
}

// canvasText returns the canvas rows of the last shown frame.
func canvasText(t *testing.T, v *Viewer) string {
	t.Helper()
	v.draw()
	v.screen.Show()
	sim := v.screen.(tcell.SimulationScreen)
	cells, w, h := sim.GetContents()
	cw, ch := v.canvasSize(w, h)

	var sb strings.Builder
	for y := canvasTop; y < canvasTop+ch; y++ {
		for x := 0; x < cw; x++ {
			if r := cells[y*w+x].Runes; len(r) > 0 {
				sb.WriteRune(r[0])
			}
		}
		sb.WriteByte('\n')
	}
	return sb.String()
}

func key(r rune) *tcell.EventKey {
	return tcell.NewEventKey(tcell.KeyRune, r, tcell.ModNone)
}

func TestLoadSettings(t *testing.T) {
	dir := t.TempDir()

	t.Run("missing file", func(t *testing.T) {
		assert.Equal(t, DefaultSettings(), LoadSettings(filepath.Join(dir, "nope.yaml")))
	})

	t.Run("values", func(t *testing.T) {
		path := filepath.Join(dir, "a.yaml")
		require.NoError(t, os.WriteFile(path, []byte("palette: print\nformat: png\nexport_dir: /tmp/out\ntick_interval: 50ms\n"), 0644))
		s := LoadSettings(path)
		assert.Equal(t, "print", s.Palette)
		assert.Equal(t, "png", s.Format)
		assert.Equal(t, "/tmp/out", s.ExportDir)
		assert.Equal(t, 50*time.Millisecond, s.Interval)
	})

	t.Run("unknown values keep defaults", func(t *testing.T) {
		path := filepath.Join(dir, "b.yaml")
		require.NoError(t, os.WriteFile(path, []byte("palette: neon\nformat: gif\n"), 0644))
		assert.Equal(t, DefaultSettings(), LoadSettings(path))
	})

	t.Run("save and load", func(t *testing.T) {
		path := filepath.Join(dir, "c.yaml")
		want := Settings{Palette: "print", Format: "png", ExportDir: "out", Interval: 20 * time.Millisecond}
		require.NoError(t, SaveSettings(path, want))
		assert.Equal(t, want, LoadSettings(path))
	})
}

func TestFlashInverted(t *testing.T) {
	// Flash pattern: normal(0-125) -> inverted(125-250) -> normal(250-375) -> inverted(375-500) -> normal(500+)
	tests := []struct {
		elapsed int64
		msgType MessageType
		want    bool
	}{
		{0, MsgError, false},
		{124, MsgError, false},
		{125, MsgError, true},
		{249, MsgError, true},
		{250, MsgSuccess, false},
		{375, MsgSuccess, true},
		{499, MsgSuccess, true},
		{500, MsgError, false},
		{1000, MsgError, false},
		{-5, MsgError, false},
		{125, MsgInfo, false},
		{375, MsgInfo, false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, flashInverted(tt.elapsed, tt.msgType), "elapsed=%d type=%d", tt.elapsed, tt.msgType)
	}
}

func TestPostUntilDoneStopsAfterWindow(t *testing.T) {
	var posted []tcell.Event
	post := func(ev tcell.Event) error {
		posted = append(posted, ev)
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Millisecond)
	defer cancel()

	done := make(chan struct{})
	go func() {
		postUntilDone(ctx, post, 10*time.Millisecond)
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("flash refresh did not stop")
	}

	require.NotEmpty(t, posted)
	for _, ev := range posted {
		intr, ok := ev.(*tcell.EventInterrupt)
		require.True(t, ok)
		assert.Equal(t, flashEvent{}, intr.Data())
	}
}

func TestShowMessageFlash(t *testing.T) {
	v := newTestViewer(t)

	v.showMessage("saved", MsgSuccess)
	assert.NotNil(t, v.flashStop)

	v.showMessage("hint", MsgInfo)
	assert.Nil(t, v.flashStop)

	v.showMessage("failed", MsgError)
	require.NotNil(t, v.flashStop)
	v.stopAll()
	assert.Nil(t, v.flashStop)
}

func TestLoadFileTabs(t *testing.T) {
	v := newTestViewer(t)

	require.Len(t, v.tabs, 2)
	assert.Equal(t, 0, v.active)
	assert.Equal(t, diagram.KindUseCase, v.tabs[0].kind)
	assert.Nil(t, v.tabs[0].sim, "use cases use the column layout")
	assert.NotNil(t, v.tabs[0].layout)
	assert.Equal(t, diagram.KindClass, v.tabs[1].kind)
	assert.NotNil(t, v.tabs[1].sim, "classes settle live")

	assert.Error(t, (&Viewer{settings: DefaultSettings()}).loadFile(filepath.Join(t.TempDir(), "missing.json")))
}

func TestDrawShowsDiagram(t *testing.T) {
	v := newTestViewer(t)
	text := canvasText(t, v)
	assert.Contains(t, text, "Buscar Produtos")
	assert.NotEmpty(t, v.hits)

	v.selectTab(1)
	v.tab().sim.Settle(diagram.DefaultMaxTicks)
	text = canvasText(t, v)
	assert.Contains(t, text, "┌")
	assert.Len(t, v.hits, len(v.tab().graph.Nodes))
}

func TestTabSwitchStopsSimulation(t *testing.T) {
	v := newTestViewer(t)

	assert.False(t, v.handleKey(tcell.NewEventKey(tcell.KeyTab, 0, tcell.ModNone)))
	assert.Equal(t, 1, v.active)
	assert.NotNil(t, v.tabs[1].stop, "an unsettled layout ticks")

	v.handleKey(key('1'))
	assert.Equal(t, 0, v.active)
	assert.Nil(t, v.tabs[1].stop)

	// Ticks queued for a hidden tab are ignored.
	before := v.tabs[1].sim.Tick()
	v.handleTick(v.tabs[1])
	assert.Equal(t, before, v.tabs[1].sim.Tick())

	v.selectTab(1)
	v.handleTick(v.tabs[1])
	assert.Equal(t, before+1, v.tabs[1].sim.Tick())
}

func TestTickerStopsWhenSettled(t *testing.T) {
	v := newTestViewer(t)
	v.selectTab(1)
	tb := v.tab()
	tb.sim.Settle(diagram.DefaultMaxTicks)
	require.True(t, tb.sim.Settled())

	v.handleTick(tb)
	assert.Nil(t, tb.stop)

	v.handleKey(key('r'))
	assert.False(t, tb.sim.Settled())
	assert.NotNil(t, tb.stop)
}

func TestDragPinsNode(t *testing.T) {
	v := newTestViewer(t)
	v.selectTab(1)
	tb := v.tab()
	tb.sim.Settle(diagram.DefaultMaxTicks)
	canvasText(t, v)
	require.NotEmpty(t, v.hits)

	b := v.hits[len(v.hits)-1]
	x, y := (b.x0+b.x1)/2, (b.y0+b.y1)/2
	require.Greater(t, y, 0)
	id := v.hit(x, y)
	require.NotEmpty(t, id)

	v.handleMouse(tcell.NewEventMouse(x, y, tcell.Button1, tcell.ModNone))
	assert.Equal(t, id, v.dragNode)
	assert.True(t, tb.sim.Pinned(id))
	assert.Equal(t, "DRAG", v.modeString())

	v.handleMouse(tcell.NewEventMouse(x+3, y+1, tcell.Button1, tcell.ModNone))
	pw, ph := v.surfaceSize()
	want := tb.view.Unproject(cellPoint(x+3, y+1), pw, ph)
	got, ok := tb.sim.Position(id)
	require.True(t, ok)
	assert.InDelta(t, want.X, got.X, 1e-9)
	assert.InDelta(t, want.Y, got.Y, 1e-9)

	v.handleMouse(tcell.NewEventMouse(x+3, y+1, tcell.ButtonNone, tcell.ModNone))
	assert.Empty(t, v.dragNode)
	assert.False(t, tb.sim.Pinned(id))
}

func TestPanColumnsWithMouse(t *testing.T) {
	v := newTestViewer(t)
	canvasText(t, v)
	tb := v.tab()

	// The bottom right canvas corner is clear of the column layout.
	w, h := v.screen.Size()
	cw, ch := v.canvasSize(w, h)
	x, y := cw-1, canvasTop+ch-1
	require.Empty(t, v.hit(x, y))

	v.handleMouse(tcell.NewEventMouse(x, y, tcell.Button1, tcell.ModNone))
	v.handleMouse(tcell.NewEventMouse(x-5, y, tcell.Button1, tcell.ModNone))
	assert.Equal(t, "PAN", v.modeString())
	assert.Less(t, tb.view.Transform.X, 0.0)
	v.handleMouse(tcell.NewEventMouse(x-5, y, tcell.ButtonNone, tcell.ModNone))
	assert.Empty(t, v.modeString())
}

func TestZoomKeys(t *testing.T) {
	v := newTestViewer(t)
	tb := v.tab()

	v.handleKey(key('+'))
	assert.Greater(t, tb.view.Transform.K, 1.0)
	v.handleKey(key('-'))
	assert.InDelta(t, 1.0, tb.view.Transform.K, 1e-9)

	for range 20 {
		v.handleKey(key('+'))
	}
	assert.Equal(t, float64(diagram.MaxScale), tb.view.Transform.K)

	v.handleMouse(tcell.NewEventMouse(10, 10, tcell.WheelDown, tcell.ModNone))
	assert.Less(t, tb.view.Transform.K, float64(diagram.MaxScale))

	v.handleKey(key('0'))
	assert.Equal(t, diagram.Identity, tb.view.Transform)

	v.handleKey(tcell.NewEventKey(tcell.KeyLeft, 0, tcell.ModNone))
	assert.Greater(t, tb.view.Transform.X, 0.0)

	v.handleKey(key('f'))
	assert.Equal(t, diagram.Identity, tb.view.Transform)
	assert.Equal(t, v.scene(tb).Bounds().Pad(fitPadding), tb.view.ViewBox)
}

func TestTogglePalette(t *testing.T) {
	v := newTestViewer(t)

	v.handleKey(key('p'))
	assert.Equal(t, "print", v.settings.Palette)
	assert.Equal(t, diagram.PrintPalette(), v.renderer.Palette)
	assert.Equal(t, "print", LoadSettings(v.settingsPath).Palette)
	assert.Equal(t, MsgSuccess, v.messageType)

	v.handleKey(key('p'))
	assert.Equal(t, diagram.DefaultPalette(), v.renderer.Palette)
}

func TestExport(t *testing.T) {
	v := newTestViewer(t)
	v.settings.ExportDir = t.TempDir()

	v.handleKey(key('e'))
	require.Equal(t, MsgSuccess, v.messageType, v.message)
	data, err := os.ReadFile(filepath.Join(v.settings.ExportDir, "Loja_Online_useCase.svg"))
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(data), "<?xml"))

	v.settings.Format = "png"
	v.selectTab(1)
	v.handleKey(key('e'))
	require.Equal(t, MsgSuccess, v.messageType, v.message)
	info, err := os.Stat(filepath.Join(v.settings.ExportDir, "Loja_Online_class.png"))
	require.NoError(t, err)
	assert.Positive(t, info.Size())
}

func TestClickTab(t *testing.T) {
	v := newTestViewer(t)
	// " 1 Use cases " spans columns 1-13, the second label starts at 15.
	v.handleMouse(tcell.NewEventMouse(16, 0, tcell.Button1, tcell.ModNone))
	assert.Equal(t, 1, v.active)
	v.handleMouse(tcell.NewEventMouse(16, 0, tcell.ButtonNone, tcell.ModNone))
	v.handleMouse(tcell.NewEventMouse(2, 0, tcell.Button1, tcell.ModNone))
	assert.Equal(t, 0, v.active)
}

func TestQuitKeys(t *testing.T) {
	v := newTestViewer(t)
	assert.True(t, v.handleKey(key('q')))
	assert.True(t, v.handleKey(tcell.NewEventKey(tcell.KeyCtrlC, 0, tcell.ModCtrl)))
	assert.False(t, v.handleKey(key('x')))
}

func TestCellGeometry(t *testing.T) {
	for _, c := range [][2]int{{0, 1}, {5, 7}, {79, 30}} {
		x, y := pointCell(cellPoint(c[0], c[1]))
		assert.Equal(t, c, [2]int{x, y})
	}
}

func TestPlotLine(t *testing.T) {
	var cells [][2]int
	plotLine(0, 0, 3, 0, func(x, y int) { cells = append(cells, [2]int{x, y}) })
	assert.Equal(t, [][2]int{{0, 0}, {1, 0}, {2, 0}, {3, 0}}, cells)

	cells = nil
	plotLine(2, 2, 0, 0, func(x, y int) { cells = append(cells, [2]int{x, y}) })
	assert.Equal(t, [][2]int{{2, 2}, {1, 1}, {0, 0}}, cells)
}

func TestLineAndArrowRunes(t *testing.T) {
	assert.Equal(t, '─', lineRune(10, 1))
	assert.Equal(t, '│', lineRune(1, -10))
	assert.Equal(t, '╲', lineRune(4, 3))
	assert.Equal(t, '╱', lineRune(-4, 3))

	o := diagram.Point{}
	assert.Equal(t, '▶', arrowRune(o, diagram.Point{X: 10, Y: 4}))
	assert.Equal(t, '◀', arrowRune(o, diagram.Point{X: -10}))
	assert.Equal(t, '▼', arrowRune(o, diagram.Point{X: 1, Y: 10}))
	assert.Equal(t, '▲', arrowRune(o, diagram.Point{Y: -10}))
}

func TestPaletteColor(t *testing.T) {
	assert.Equal(t, tcell.GetColor("#999999"), paletteColor("#999"))
	assert.Equal(t, tcell.NewRGBColor(0x1f, 0x29, 0x37), paletteColor("#1f2937"))
}
