package main

import (
	"fmt"
	"math"
	"path/filepath"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/mattn/go-runewidth"

	"github.com/ha1tch/uml-toolkit/pkg/diagram"
)

// Styles
var (
	styleDefault  = tcell.StyleDefault
	styleTab      = tcell.StyleDefault.Foreground(tcell.ColorSilver)
	styleTabSel   = tcell.StyleDefault.Background(tcell.ColorBlue).Foreground(tcell.ColorWhite).Bold(true)
	styleSidebar  = tcell.StyleDefault.Foreground(tcell.ColorWhite)
	styleSidebarH = tcell.StyleDefault.Foreground(tcell.ColorYellow).Bold(true)
	styleStatus   = tcell.StyleDefault.Foreground(tcell.ColorWhite).Background(tcell.ColorNavy)
	styleMsgInfo  = tcell.StyleDefault.Foreground(tcell.ColorSilver).Background(tcell.ColorNavy)
	styleMsgError = tcell.StyleDefault.Foreground(tcell.ColorRed).Background(tcell.ColorNavy).Bold(true)
	styleMsgOK    = tcell.StyleDefault.Foreground(tcell.ColorSilver).Background(tcell.ColorNavy)
	styleHelp     = tcell.StyleDefault.Foreground(tcell.ColorGray)
	styleBorder   = tcell.StyleDefault.Foreground(tcell.ColorGray)
	styleDragging = tcell.StyleDefault.Background(tcell.ColorPurple).Foreground(tcell.ColorWhite)
)

// Screen layout
const (
	canvasTop    = 1 // row 0 holds the tabs
	sidebarWidth = 28
	minSidebarW  = 70 // narrower terminals hide the sidebar
)

// hitbox is the cell extent of a drawn node, inclusive.
type hitbox struct {
	id             string
	x0, y0, x1, y1 int
}

func (b hitbox) contains(x, y int) bool {
	return x >= b.x0 && x <= b.x1 && y >= b.y0 && y <= b.y1
}

// canvasSize returns the canvas width and height in cells.
func (v *Viewer) canvasSize(w, h int) (int, int) {
	cw := w
	if w >= minSidebarW {
		cw = w - sidebarWidth - 1
	}
	ch := h - canvasTop - 2 // help bar and status bar
	return max(cw, 1), max(ch, 1)
}

// hit returns the topmost node drawn at a cell.
func (v *Viewer) hit(x, y int) string {
	for i := len(v.hits) - 1; i >= 0; i-- {
		if v.hits[i].contains(x, y) {
			return v.hits[i].id
		}
	}
	return ""
}

func (v *Viewer) draw() {
	v.screen.Clear()
	w, h := v.screen.Size()

	v.drawTabs(w)
	v.drawCanvas(w, h)
	if w >= minSidebarW {
		v.drawSidebar(w, h)
	}
	v.drawStatusBar(w, h)
}

func (v *Viewer) drawTabs(w int) {
	for x := 0; x < w; x++ {
		v.screen.SetContent(x, 0, ' ', nil, styleDefault)
	}
	x := 1
	for i, t := range v.tabs {
		style := styleTab
		if i == v.active {
			style = styleTabSel
		}
		label := fmt.Sprintf(" %d %s ", i+1, t.title())
		x += v.drawString(x, 0, label, style) + 1
	}
}

// clickTab selects the tab under column x of the tab bar.
func (v *Viewer) clickTab(x int) {
	pos := 1
	for i, t := range v.tabs {
		width := runewidth.StringWidth(fmt.Sprintf(" %d %s ", i+1, t.title()))
		if x >= pos && x < pos+width {
			v.selectTab(i)
			return
		}
		pos += width + 1
	}
}

// nodeBox is a node ready to draw: its cells and label lines.
type nodeBox struct {
	node  diagram.SceneNode
	lines []string
	boxed bool // draw a border, classes only
	hitbox
}

func (v *Viewer) drawCanvas(w, h int) {
	cw, ch := v.canvasSize(w, h)
	pw, ph := float64(cw), float64(2*ch)
	t := v.tab()
	sc := v.scene(t)
	pal := sc.Palette

	bg := styleDefault
	if pal.Background != "" {
		bg = bg.Background(paletteColor(pal.Background))
	}
	for y := canvasTop; y < canvasTop+ch; y++ {
		for x := 0; x < cw; x++ {
			v.screen.SetContent(x, y, ' ', nil, bg)
		}
	}
	if w >= minSidebarW {
		for y := canvasTop; y < canvasTop+ch; y++ {
			v.screen.SetContent(cw, y, '│', nil, styleBorder)
		}
	}
	v.hits = v.hits[:0]

	if sc.Empty() {
		msg := "(empty diagram)"
		v.drawString((cw-len(msg))/2, canvasTop+ch/2, msg, styleHelp)
		return
	}

	boxes := make(map[string]*nodeBox, len(sc.Nodes))
	order := make([]*nodeBox, 0, len(sc.Nodes))
	for _, n := range sc.Nodes {
		b := v.layoutNode(n, t.view.Project(n.Pos, pw, ph))
		boxes[n.ID] = b
		order = append(order, b)
	}

	clip := hitbox{x0: 0, y0: canvasTop, x1: cw - 1, y1: canvasTop + ch - 1}
	link := bg.Foreground(paletteColor(pal.LinkColor))
	arrow := bg.Foreground(paletteColor(pal.ArrowStroke))
	for _, e := range sc.Edges {
		if !e.Visible {
			continue
		}
		// Cells are coarser than glyph outlines, so lines run between
		// centers and the node boxes mask the ends.
		src, dst := boxes[e.Source], boxes[e.Target]
		a := t.view.Project(src.node.Pos, pw, ph)
		b := t.view.Project(dst.node.Pos, pw, ph)
		last, ok := v.drawLine(a, b, clip, link, src, dst)
		if ok && e.Arrow() {
			v.screen.SetContent(last[0], last[1], arrowRune(a, b), nil, arrow)
		}
	}

	for _, b := range order {
		v.drawNode(b, bg, clip)
		v.hits = append(v.hits, b.hitbox)
	}
}

// layoutNode sizes a node's label around its projected center.
func (v *Viewer) layoutNode(n diagram.SceneNode, at diagram.Point) *nodeBox {
	b := &nodeBox{node: n}
	switch n.Group {
	case diagram.GroupActor:
		b.lines = []string{"☺", n.Data.Name}
	case diagram.GroupUseCase:
		b.lines = []string{"( " + n.Data.Name + " )"}
	default:
		b.boxed = true
		b.lines = []string{n.Data.Name}
		if v.details && (len(n.Data.Attributes) > 0 || len(n.Data.Methods) > 0) {
			b.lines = append(b.lines, "")
			b.lines = append(b.lines, n.Data.Attributes...)
			b.lines = append(b.lines, "")
			b.lines = append(b.lines, n.Data.Methods...)
		}
	}

	width := 0
	for _, l := range b.lines {
		width = max(width, runewidth.StringWidth(l))
	}
	height := len(b.lines)
	if b.boxed {
		width += 4
		height += 2
	}
	cx, cy := pointCell(at)
	b.x0 = cx - width/2
	b.y0 = cy - height/2
	b.x1 = b.x0 + width - 1
	b.y1 = b.y0 + height - 1
	b.id = n.ID
	return b
}

func (v *Viewer) drawNode(b *nodeBox, bg tcell.Style, clip hitbox) {
	pal := v.renderer.Palette
	var text, border tcell.Style
	switch b.node.Group {
	case diagram.GroupActor:
		text = bg.Foreground(paletteColor(pal.ActorText))
		border = bg.Foreground(paletteColor(pal.ActorStroke))
	case diagram.GroupUseCase:
		text = bg.Foreground(paletteColor(pal.UseCaseText)).Background(paletteColor(pal.UseCaseFill))
		border = text
	default:
		fill := paletteColor(pal.ClassFill)
		text = bg.Foreground(paletteColor(pal.ClassText)).Background(fill)
		border = bg.Foreground(paletteColor(pal.ClassStroke)).Background(fill)
	}
	if b.id == v.dragNode {
		text, border = styleDragging, styleDragging
	}

	set := func(x, y int, r rune, style tcell.Style) {
		if clip.contains(x, y) {
			v.screen.SetContent(x, y, r, nil, style)
		}
	}

	if !b.boxed {
		for i, line := range b.lines {
			style := text
			if i == 0 && b.node.Group == diagram.GroupActor {
				style = border
			}
			lw := runewidth.StringWidth(line)
			x := b.x0 + (b.x1-b.x0+1-lw)/2
			v.drawClipped(x, b.y0+i, line, style, clip)
		}
		return
	}

	// Class box with separators between name, attributes and methods.
	for x := b.x0; x <= b.x1; x++ {
		set(x, b.y0, '─', border)
		set(x, b.y1, '─', border)
	}
	for y := b.y0; y <= b.y1; y++ {
		set(b.x0, y, '│', border)
		set(b.x1, y, '│', border)
	}
	set(b.x0, b.y0, '┌', border)
	set(b.x1, b.y0, '┐', border)
	set(b.x0, b.y1, '└', border)
	set(b.x1, b.y1, '┘', border)

	for i, line := range b.lines {
		y := b.y0 + 1 + i
		if line == "" && i > 0 {
			for x := b.x0 + 1; x < b.x1; x++ {
				set(x, y, '─', border)
			}
			set(b.x0, y, '├', border)
			set(b.x1, y, '┤', border)
			continue
		}
		for x := b.x0 + 1; x < b.x1; x++ {
			set(x, y, ' ', text)
		}
		x := b.x0 + 2
		style := text
		if i == 0 {
			x = b.x0 + (b.x1-b.x0+1-runewidth.StringWidth(line))/2
			style = style.Bold(true)
		}
		v.drawClipped(x, y, line, style, clip)
	}
}

// drawLine rasterizes a segment between two surface points, skipping
// cells covered by either endpoint node. It returns the last cell drawn
// before the target node, where an arrowhead goes.
func (v *Viewer) drawLine(a, b diagram.Point, clip hitbox, style tcell.Style, src, dst *nodeBox) ([2]int, bool) {
	x0, y0 := pointCell(a)
	x1, y1 := pointCell(b)
	r := lineRune(x1-x0, y1-y0)

	var last [2]int
	drawn := false
	plotLine(x0, y0, x1, y1, func(x, y int) {
		if src != nil && src.contains(x, y) {
			return
		}
		if dst != nil && dst.contains(x, y) {
			return
		}
		if !clip.contains(x, y) {
			return
		}
		v.screen.SetContent(x, y, r, nil, style)
		last = [2]int{x, y}
		drawn = true
	})
	return last, drawn
}

// plotLine calls plot for every cell on the Bresenham line from (x0, y0)
// to (x1, y1), in order.
func plotLine(x0, y0, x1, y1 int, plot func(x, y int)) {
	dx := abs(x1 - x0)
	dy := -abs(y1 - y0)
	sx, sy := 1, 1
	if x0 > x1 {
		sx = -1
	}
	if y0 > y1 {
		sy = -1
	}
	err := dx + dy
	for {
		plot(x0, y0)
		if x0 == x1 && y0 == y1 {
			return
		}
		e2 := 2 * err
		if e2 >= dy {
			err += dy
			x0 += sx
		}
		if e2 <= dx {
			err += dx
			y0 += sy
		}
	}
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}

// lineRune picks the box-drawing character closest to a cell direction.
func lineRune(dx, dy int) rune {
	ax, ay := abs(dx), abs(dy)
	switch {
	case ay*2 <= ax:
		return '─'
	case ax*2 <= ay:
		return '│'
	case (dx > 0) == (dy > 0):
		return '╲'
	default:
		return '╱'
	}
}

// arrowRune points from a toward b. Cells are twice as tall as wide, so
// vertical pixel distance counts half.
func arrowRune(a, b diagram.Point) rune {
	dx, dy := b.X-a.X, (b.Y-a.Y)/2
	if math.Abs(dx) >= math.Abs(dy) {
		if dx >= 0 {
			return '▶'
		}
		return '◀'
	}
	if dy >= 0 {
		return '▼'
	}
	return '▲'
}

// paletteColor converts a palette hex color, including the #rgb short
// form, to a terminal color.
func paletteColor(hex string) tcell.Color {
	if len(hex) == 4 && hex[0] == '#' {
		hex = string([]byte{'#', hex[1], hex[1], hex[2], hex[2], hex[3], hex[3]})
	}
	return tcell.GetColor(hex)
}

func (v *Viewer) drawSidebar(w, h int) {
	x := w - sidebarWidth + 1
	y := canvasTop
	t := v.tab()
	width := sidebarWidth - 2

	line := func(s string, style tcell.Style) bool {
		if y >= h-2 {
			return false
		}
		v.drawString(x, y, truncate(s, width), style)
		y++
		return true
	}

	name := v.doc.SystemName
	if name == "" {
		name = "(unnamed)"
	}
	line("SYSTEM", styleSidebarH)
	line(name, styleSidebar)
	y++

	line("LAYOUT", styleSidebarH)
	if t.sim != nil {
		state := "settled"
		if !t.sim.Settled() {
			state = "running"
		}
		line(fmt.Sprintf("force, %s", state), styleSidebar)
		line(fmt.Sprintf("tick %d  alpha %.3f", t.sim.Tick(), t.sim.Alpha()), styleSidebar)
	} else {
		line(t.layout.Strategy.String(), styleSidebar)
	}
	line(fmt.Sprintf("zoom %.2fx", t.view.Transform.K), styleSidebar)
	y++

	line(fmt.Sprintf("NODES (%d)", len(t.graph.Nodes)), styleSidebarH)
	for _, n := range t.graph.Nodes {
		mark := " "
		switch {
		case n.ID == v.dragNode:
			mark = ">"
		case t.sim != nil && t.sim.Pinned(n.ID):
			mark = "*"
		}
		if !line(mark+" "+n.Data.Name, styleSidebar) {
			return
		}
	}
}

func (v *Viewer) drawStatusBar(w, h int) {
	y := h - 1

	for x := 0; x < w; x++ {
		v.screen.SetContent(x, y, ' ', nil, styleStatus)
	}

	fileInfo := v.filename
	if len(fileInfo) > 30 {
		fileInfo = filepath.Base(fileInfo)
	}
	v.drawString(1, y, fileInfo, styleStatus)

	modeStr := v.modeString()
	v.drawString(w/2-len(modeStr)/2, y, modeStr, styleStatus)

	if v.message != "" {
		style := styleMsgInfo
		switch v.messageType {
		case MsgError:
			style = styleMsgError
		case MsgSuccess:
			style = styleMsgOK
		}
		elapsed := time.Now().UnixMilli() - v.messageFlashStart
		if flashInverted(elapsed, v.messageType) {
			style = style.Reverse(true)
		}
		v.drawString(w-runewidth.StringWidth(v.message)-2, y, v.message, style)
	}

	y = h - 2
	for x := 0; x < w; x++ {
		v.screen.SetContent(x, y, ' ', nil, styleDefault)
	}
	v.drawString(1, y, v.helpString(), styleHelp)
}

// flashInverted reports whether a message shown elapsed milliseconds ago
// is in an inverted phase: normal, inverted, normal, inverted, then
// steady after 500ms. Informative messages never flash.
func flashInverted(elapsed int64, msgType MessageType) bool {
	if msgType == MsgInfo || elapsed < 0 || elapsed >= 500 {
		return false
	}
	phase := elapsed / 125
	return phase == 1 || phase == 3
}

func (v *Viewer) modeString() string {
	switch {
	case v.dragNode != "":
		return "DRAG"
	case v.panning:
		return "PAN"
	}
	return ""
}

func (v *Viewer) helpString() string {
	if v.tab().sim != nil {
		return "Tab:Diagram  Drag:Move  Wheel/+/-:Zoom  f:Fit  0:Reset  r:Relayout  d:Details  p:Palette  e:Export  q:Quit"
	}
	return "Tab:Diagram  Drag:Pan  Wheel/+/-:Zoom  f:Fit  0:Reset  d:Details  p:Palette  e:Export  q:Quit"
}

// drawString draws s from column x and returns the columns used.
func (v *Viewer) drawString(x, y int, s string, style tcell.Style) int {
	col := 0
	for _, r := range s {
		v.screen.SetContent(x+col, y, r, nil, style)
		col += runewidth.RuneWidth(r)
	}
	return col
}

// drawClipped is drawString limited to the clip box.
func (v *Viewer) drawClipped(x, y int, s string, style tcell.Style, clip hitbox) {
	col := 0
	for _, r := range s {
		if clip.contains(x+col, y) {
			v.screen.SetContent(x+col, y, r, nil, style)
		}
		col += runewidth.RuneWidth(r)
	}
}

func truncate(s string, maxLen int) string {
	if runewidth.StringWidth(s) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return runewidth.Truncate(s, maxLen, "")
	}
	return runewidth.Truncate(s, maxLen, "...")
}
