package diagram

import (
	"context"
	"fmt"
	"math"
	"math/rand/v2"
	"time"
)

// ForceOptions configures the force simulation.
type ForceOptions struct {
	Width, Height float64 // viewport size; the center force pulls to its midpoint

	LinkDistance  float64 // target length of every edge
	Charge        float64 // many-body strength, negative repels
	CollideRadius float64 // per-node collision radius

	AlphaMin      float64 // stop threshold
	AlphaDecay    float64 // per-tick approach of alpha toward its target
	VelocityDecay float64 // fraction of velocity lost per tick
	ReheatTarget  float64 // alpha target while a node is dragged

	Seed    uint64           // seeds the jiggle applied to coincident nodes
	Initial map[string]Point // optional starting positions
}

// DefaultForceOptions returns the class diagram defaults.
func DefaultForceOptions() ForceOptions {
	return ForceOptions{
		Width:         1000,
		Height:        800,
		LinkDistance:  250,
		Charge:        -1000,
		CollideRadius: 150,
		AlphaMin:      0.001,
		AlphaDecay:    1 - math.Pow(0.001, 1.0/300),
		VelocityDecay: 0.4,
		ReheatTarget:  0.3,
		Seed:          1,
	}
}

func (o *ForceOptions) fill() {
	d := DefaultForceOptions()
	if o.Width <= 0 {
		o.Width = d.Width
	}
	if o.Height <= 0 {
		o.Height = d.Height
	}
	if o.LinkDistance == 0 {
		o.LinkDistance = d.LinkDistance
	}
	if o.Charge == 0 {
		o.Charge = d.Charge
	}
	if o.CollideRadius == 0 {
		o.CollideRadius = d.CollideRadius
	}
	if o.AlphaMin <= 0 {
		o.AlphaMin = d.AlphaMin
	}
	if o.AlphaDecay <= 0 {
		o.AlphaDecay = d.AlphaDecay
	}
	if o.VelocityDecay <= 0 {
		o.VelocityDecay = d.VelocityDecay
	}
	if o.ReheatTarget <= 0 {
		o.ReheatTarget = d.ReheatTarget
	}
}

type simNode struct {
	id     string
	x, y   float64
	vx, vy float64
	pinned bool
	fx, fy float64
}

type simLink struct {
	source, target int
	strength       float64
	bias           float64
}

// Frame is the published state after one tick.
type Frame struct {
	Tick      int              `json:"tick"`
	Alpha     float64          `json:"alpha"`
	Positions map[string]Point `json:"positions"`
}

// Simulation is a tick-stepped force layout. Its state is the node
// positions and velocities plus the energy term alpha; Step advances it by
// one tick and the simulation is settled once alpha drops below AlphaMin.
//
// A Simulation is not safe for concurrent use. Drag input and Step must be
// called from the same goroutine.
type Simulation struct {
	opts  ForceOptions
	nodes []simNode
	index map[string]int
	links []simLink

	alpha       float64
	alphaTarget float64
	ticks       int
	dragging    string

	rng *rand.Rand
}

// NewSimulation prepares a simulation for the graph. Zero or one node
// needs no simulation: a single node is centered and the result is
// already settled.
func NewSimulation(g *Graph, opts ForceOptions) *Simulation {
	opts.fill()
	s := &Simulation{
		opts:  opts,
		index: make(map[string]int),
		alpha: 1,
		rng:   rand.New(rand.NewPCG(opts.Seed, opts.Seed^0x9e3779b97f4a7c15)),
	}
	if g == nil {
		s.alpha = 0
		return s
	}

	cx, cy := opts.Width/2, opts.Height/2
	// Phyllotaxis spiral around the center, like d3's initial arrangement.
	const initialRadius = 10.0
	initialAngle := math.Pi * (3 - math.Sqrt(5))
	for i, n := range g.Nodes {
		sn := simNode{id: n.ID}
		if p, ok := opts.Initial[n.ID]; ok {
			sn.x, sn.y = p.X, p.Y
		} else {
			r := initialRadius * math.Sqrt(0.5+float64(i))
			a := float64(i) * initialAngle
			sn.x = cx + r*math.Cos(a)
			sn.y = cy + r*math.Sin(a)
		}
		s.index[n.ID] = len(s.nodes)
		s.nodes = append(s.nodes, sn)
	}

	if len(s.nodes) <= 1 {
		for i := range s.nodes {
			s.nodes[i].x, s.nodes[i].y = cx, cy
		}
		s.alpha = 0
		return s
	}

	count := make([]int, len(s.nodes))
	for _, e := range g.Edges {
		si, okS := s.index[e.Source]
		ti, okT := s.index[e.Target]
		if !okS || !okT || si == ti {
			continue
		}
		count[si]++
		count[ti]++
		s.links = append(s.links, simLink{source: si, target: ti})
	}
	for i := range s.links {
		l := &s.links[i]
		cs, ct := float64(count[l.source]), float64(count[l.target])
		l.strength = 1 / math.Min(cs, ct)
		l.bias = cs / (cs + ct)
	}
	return s
}

// Step advances the simulation by one tick and reports whether it is
// still running. A settled simulation keeps stepping when a drag has
// raised the alpha target.
func (s *Simulation) Step() bool {
	if len(s.nodes) <= 1 {
		return false
	}
	s.alpha += (s.alphaTarget - s.alpha) * s.opts.AlphaDecay

	s.applyLinks()
	s.applyCharge()
	s.applyCenter()
	s.applyCollide()

	keep := 1 - s.opts.VelocityDecay
	for i := range s.nodes {
		n := &s.nodes[i]
		if n.pinned {
			n.x, n.y = n.fx, n.fy
			n.vx, n.vy = 0, 0
			continue
		}
		n.vx *= keep
		n.vy *= keep
		n.x += n.vx
		n.y += n.vy
	}
	s.ticks++
	return !s.Settled()
}

func (s *Simulation) applyLinks() {
	for _, l := range s.links {
		src, dst := &s.nodes[l.source], &s.nodes[l.target]
		x := dst.x + dst.vx - src.x - src.vx
		y := dst.y + dst.vy - src.y - src.vy
		if x == 0 {
			x = s.jiggle()
		}
		if y == 0 {
			y = s.jiggle()
		}
		d := math.Sqrt(x*x + y*y)
		k := (d - s.opts.LinkDistance) / d * s.alpha * l.strength
		x *= k
		y *= k
		dst.vx -= x * l.bias
		dst.vy -= y * l.bias
		src.vx += x * (1 - l.bias)
		src.vy += y * (1 - l.bias)
	}
}

func (s *Simulation) applyCharge() {
	w := s.opts.Charge * s.alpha
	for i := range s.nodes {
		n := &s.nodes[i]
		for j := range s.nodes {
			if i == j {
				continue
			}
			o := &s.nodes[j]
			x := o.x - n.x
			y := o.y - n.y
			l := x*x + y*y
			if x == 0 {
				x = s.jiggle()
				l += x * x
			}
			if y == 0 {
				y = s.jiggle()
				l += y * y
			}
			if l < 1 {
				l = math.Sqrt(l)
			}
			n.vx += x * w / l
			n.vy += y * w / l
		}
	}
}

func (s *Simulation) applyCenter() {
	var sx, sy float64
	for _, n := range s.nodes {
		sx += n.x
		sy += n.y
	}
	k := float64(len(s.nodes))
	sx = sx/k - s.opts.Width/2
	sy = sy/k - s.opts.Height/2
	for i := range s.nodes {
		s.nodes[i].x -= sx
		s.nodes[i].y -= sy
	}
}

func (s *Simulation) applyCollide() {
	r := s.opts.CollideRadius
	minDist := 2 * r
	for i := range s.nodes {
		n := &s.nodes[i]
		xi, yi := n.x+n.vx, n.y+n.vy
		for j := i + 1; j < len(s.nodes); j++ {
			o := &s.nodes[j]
			x := xi - o.x - o.vx
			y := yi - o.y - o.vy
			l := x*x + y*y
			if l >= minDist*minDist {
				continue
			}
			if x == 0 {
				x = s.jiggle()
				l += x * x
			}
			if y == 0 {
				y = s.jiggle()
				l += y * y
			}
			d := math.Sqrt(l)
			k := (minDist - d) / d
			x *= k
			y *= k
			// Equal radii split the correction evenly.
			n.vx += x * 0.5
			n.vy += y * 0.5
			o.vx -= x * 0.5
			o.vy -= y * 0.5
		}
	}
}

func (s *Simulation) jiggle() float64 {
	return (s.rng.Float64() - 0.5) * 1e-6
}

// Settled reports whether the energy has decayed below the stop threshold.
func (s *Simulation) Settled() bool {
	return s.alpha < s.opts.AlphaMin
}

// Alpha returns the current energy term.
func (s *Simulation) Alpha() float64 { return s.alpha }

// Tick returns the number of ticks run so far.
func (s *Simulation) Tick() int { return s.ticks }

// Positions returns a copy of the current node positions.
func (s *Simulation) Positions() map[string]Point {
	out := make(map[string]Point, len(s.nodes))
	for _, n := range s.nodes {
		out[n.id] = Point{n.x, n.y}
	}
	return out
}

// Position returns one node's current position.
func (s *Simulation) Position(id string) (Point, bool) {
	i, ok := s.index[id]
	if !ok {
		return Point{}, false
	}
	return Point{s.nodes[i].x, s.nodes[i].y}, true
}

// Frame snapshots the current tick.
func (s *Simulation) Frame() Frame {
	return Frame{Tick: s.ticks, Alpha: s.alpha, Positions: s.Positions()}
}

// Pinned reports whether a node is held at a fixed position.
func (s *Simulation) Pinned(id string) bool {
	i, ok := s.index[id]
	return ok && s.nodes[i].pinned
}

// Dragging returns the id of the node being dragged, if any.
func (s *Simulation) Dragging() string { return s.dragging }

// Pin fixes a node at (x, y) until Unpin.
func (s *Simulation) Pin(id string, x, y float64) error {
	i, ok := s.index[id]
	if !ok {
		return fmt.Errorf("pin %q: %w", id, ErrNotFound)
	}
	n := &s.nodes[i]
	n.pinned = true
	n.fx, n.fy = x, y
	n.x, n.y = x, y
	return nil
}

// Unpin releases a node back to the simulation forces.
func (s *Simulation) Unpin(id string) error {
	i, ok := s.index[id]
	if !ok {
		return fmt.Errorf("unpin %q: %w", id, ErrNotFound)
	}
	s.nodes[i].pinned = false
	return nil
}

// Reheat sets alpha directly, restarting a settled simulation.
func (s *Simulation) Reheat(alpha float64) {
	if len(s.nodes) <= 1 {
		return
	}
	s.alpha = alpha
}

// BeginDrag pins a node where it stands and raises the alpha target so the
// rest of the layout keeps adjusting while it is dragged.
func (s *Simulation) BeginDrag(id string) error {
	p, ok := s.Position(id)
	if !ok {
		return fmt.Errorf("drag %q: %w", id, ErrNotFound)
	}
	s.dragging = id
	s.alphaTarget = s.opts.ReheatTarget
	return s.Pin(id, p.X, p.Y)
}

// Drag moves the pinned node to (x, y).
func (s *Simulation) Drag(id string, x, y float64) error {
	return s.Pin(id, x, y)
}

// EndDrag unpins the node and lets the energy decay back to rest.
func (s *Simulation) EndDrag(id string) error {
	if s.dragging == id {
		s.dragging = ""
	}
	s.alphaTarget = 0
	return s.Unpin(id)
}

// Settle steps until the simulation settles or maxTicks ticks have run,
// and returns the number of ticks taken. Offline export uses this in place
// of a wall-clock settle delay.
func (s *Simulation) Settle(maxTicks int) int {
	n := 0
	for n < maxTicks && !s.Settled() {
		s.Step()
		n++
	}
	return n
}

// Run steps the simulation once per interval and publishes every frame
// until it settles or ctx is done. Cancelling ctx stops the ticker; no
// timer outlives the call.
func (s *Simulation) Run(ctx context.Context, interval time.Duration, publish func(Frame)) error {
	if s.Settled() {
		publish(s.Frame())
		return nil
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			running := s.Step()
			publish(s.Frame())
			if !running {
				return nil
			}
		}
	}
}
