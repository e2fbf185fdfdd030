package diagram

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func classGraph() *Graph {
	return NewGraph(KindClass,
		[]Node{
			class("C1", "Pedido", []string{"+ id: int", "+ total: float"}, []string{"+ fechar(): void"}),
			class("C2", "Item", nil, nil),
			class("C3", "Produto", []string{"+ nome: string"}, nil),
			class("C4", "Cliente", nil, nil),
		},
		[]Edge{
			{"C1", "C2", EdgeComposition},
			{"C2", "C3", EdgeAssociation},
			{"C4", "C1", EdgeAssociation},
			{"C2", "C1", EdgeGeneralization},
		},
	)
}

func TestSimulationTrivial(t *testing.T) {
	g := NewGraph(KindClass, []Node{class("ONLY", "Solo", nil, nil)}, nil)
	sim := NewSimulation(g, DefaultForceOptions())

	assert.True(t, sim.Settled())
	assert.False(t, sim.Step())
	p, ok := sim.Position("ONLY")
	require.True(t, ok)
	assert.Equal(t, Point{500, 400}, p)

	empty := NewSimulation(NewGraph(KindClass, nil, nil), DefaultForceOptions())
	assert.True(t, empty.Settled())
	assert.Empty(t, empty.Positions())
}

func TestSimulationSettles(t *testing.T) {
	sim := NewSimulation(classGraph(), DefaultForceOptions())
	n := sim.Settle(1000)

	assert.True(t, sim.Settled())
	assert.Less(t, n, 1000)
	assert.Less(t, sim.Alpha(), DefaultForceOptions().AlphaMin)

	// Collision keeps every pair well apart.
	pos := sim.Positions()
	ids := []string{"C1", "C2", "C3", "C4"}
	for i := range ids {
		for j := i + 1; j < len(ids); j++ {
			d := pos[ids[i]].Sub(pos[ids[j]]).Len()
			assert.Greater(t, d, 150.0, "%s and %s too close", ids[i], ids[j])
		}
	}
}

func TestSimulationTranslationCovariant(t *testing.T) {
	base := map[string]Point{
		"C1": {100, 120}, "C2": {340, 90}, "C3": {220, 400}, "C4": {610, 260},
	}
	shift := Point{137.5, -64.25}
	moved := make(map[string]Point, len(base))
	for id, p := range base {
		moved[id] = p.Add(shift)
	}

	run := func(initial map[string]Point) map[string]Point {
		opts := DefaultForceOptions()
		opts.Initial = initial
		sim := NewSimulation(classGraph(), opts)
		for range 120 {
			sim.Step()
		}
		return sim.Positions()
	}
	a, b := run(base), run(moved)

	relative := func(pos map[string]Point, id string) Point { return pos[id].Sub(pos["C1"]) }
	for _, id := range []string{"C2", "C3", "C4"} {
		ra, rb := relative(a, id), relative(b, id)
		assert.InDelta(t, ra.X, rb.X, 1e-6, id)
		assert.InDelta(t, ra.Y, rb.Y, 1e-6, id)
	}
}

func TestSimulationDragAndRelease(t *testing.T) {
	sim := NewSimulation(classGraph(), DefaultForceOptions())
	sim.Settle(1000)
	require.True(t, sim.Settled())

	require.NoError(t, sim.BeginDrag("C3"))
	assert.Equal(t, "C3", sim.Dragging())
	assert.True(t, sim.Pinned("C3"))

	target := Point{900, 700}
	for range 10 {
		require.NoError(t, sim.Drag("C3", target.X, target.Y))
		sim.Step()
	}
	p, _ := sim.Position("C3")
	assert.Equal(t, target, p)
	assert.False(t, sim.Settled(), "dragging reheats the simulation")

	require.NoError(t, sim.EndDrag("C3"))
	assert.False(t, sim.Pinned("C3"))
	assert.Empty(t, sim.Dragging())

	before, _ := sim.Position("C3")
	sim.Step()
	sim.Step()
	after, _ := sim.Position("C3")
	assert.NotEqual(t, before, after, "released node moves with the forces again")
}

func TestSimulationPinUnknown(t *testing.T) {
	sim := NewSimulation(classGraph(), DefaultForceOptions())
	assert.True(t, errors.Is(sim.Pin("NOPE", 0, 0), ErrNotFound))
	assert.True(t, errors.Is(sim.Unpin("NOPE"), ErrNotFound))
	assert.True(t, errors.Is(sim.BeginDrag("NOPE"), ErrNotFound))
}

func TestSimulationPinHoldsPosition(t *testing.T) {
	sim := NewSimulation(classGraph(), DefaultForceOptions())
	require.NoError(t, sim.Pin("C1", 10, 20))
	sim.Settle(50)
	p, _ := sim.Position("C1")
	assert.Equal(t, Point{10, 20}, p)
}

func TestSimulationRunPublishesUntilSettled(t *testing.T) {
	opts := DefaultForceOptions()
	opts.AlphaMin = 0.5 // settle after a handful of ticks
	sim := NewSimulation(classGraph(), opts)

	var frames []Frame
	err := sim.Run(context.Background(), time.Millisecond, func(f Frame) {
		frames = append(frames, f)
	})
	require.NoError(t, err)
	require.NotEmpty(t, frames)
	assert.True(t, sim.Settled())
	last := frames[len(frames)-1]
	assert.Equal(t, sim.Tick(), last.Tick)
	assert.Len(t, last.Positions, 4)
}

func TestSimulationRunCancel(t *testing.T) {
	sim := NewSimulation(classGraph(), DefaultForceOptions())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := sim.Run(ctx, time.Hour, func(Frame) {
		t.Fatal("no frame after cancel")
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, sim.Tick())
}

func TestArrange(t *testing.T) {
	ctx := context.Background()

	lr, err := Arrange(ctx, classGraph(), DefaultLayoutOptions(KindClass))
	require.NoError(t, err)
	assert.Equal(t, StrategyForce, lr.Strategy)
	assert.True(t, lr.Settled)
	assert.Equal(t, Box{Width: 1000, Height: 800}, lr.ViewBox)
	for _, p := range lr.Positions() {
		assert.False(t, math.IsNaN(p.X) || math.IsNaN(p.Y))
	}

	uc := NewGraph(KindUseCase, []Node{actor("A", "Cliente")}, nil)
	lr, err = Arrange(ctx, uc, DefaultLayoutOptions(KindUseCase))
	require.NoError(t, err)
	assert.Equal(t, StrategyColumns, lr.Strategy)

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	_, err = Arrange(cancelled, classGraph(), DefaultLayoutOptions(KindClass))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestParseStrategy(t *testing.T) {
	s, err := ParseStrategy("deterministic")
	require.NoError(t, err)
	assert.Equal(t, StrategyColumns, s)
	s, err = ParseStrategy("layered")
	require.NoError(t, err)
	assert.Equal(t, StrategyLayered, s)
	assert.Equal(t, "layered", s.String())
	_, err = ParseStrategy("spring")
	assert.Error(t, err)
}
