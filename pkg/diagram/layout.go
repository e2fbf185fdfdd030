package diagram

import (
	"context"
	"fmt"
)

// Strategy represents a layout strategy.
type Strategy int

const (
	StrategyForce   Strategy = iota // iterative physics simulation
	StrategyColumns                 // deterministic two-column chart
	StrategyLayered                 // deterministic rows by generalization depth
)

func (s Strategy) String() string {
	switch s {
	case StrategyColumns:
		return "columns"
	case StrategyLayered:
		return "layered"
	}
	return "force"
}

// ParseStrategy accepts "force", "columns" (alias "deterministic") and
// "layered" (alias "hierarchical").
func ParseStrategy(s string) (Strategy, error) {
	switch s {
	case "force":
		return StrategyForce, nil
	case "columns", "deterministic":
		return StrategyColumns, nil
	case "layered", "hierarchical":
		return StrategyLayered, nil
	}
	return 0, fmt.Errorf("unknown layout strategy %q", s)
}

// DefaultStrategy picks the strategy a diagram kind is drawn with:
// columns for use-case diagrams and force for class diagrams.
func DefaultStrategy(kind Kind) Strategy {
	if kind == KindUseCase {
		return StrategyColumns
	}
	return StrategyForce
}

// LayoutOptions selects and configures a layout pass.
type LayoutOptions struct {
	Strategy Strategy
	Force    ForceOptions
	Columns  ColumnOptions
	Layered  LayeredOptions

	// MaxTicks bounds an offline force run. Zero means DefaultMaxTicks.
	MaxTicks int
}

// DefaultMaxTicks is enough for alpha to decay from 1 below the default
// stop threshold.
const DefaultMaxTicks = 400

// DefaultLayoutOptions returns options for the kind's default strategy.
func DefaultLayoutOptions(kind Kind) LayoutOptions {
	return LayoutOptions{
		Strategy: DefaultStrategy(kind),
		Force:    DefaultForceOptions(),
		Columns:  DefaultColumnOptions(),
		Layered:  DefaultLayeredOptions(),
		MaxTicks: DefaultMaxTicks,
	}
}

// Arrange runs a complete layout pass. For the force strategy the
// simulation is stepped offline until it settles, MaxTicks is reached or
// ctx is done; the view box is the fixed simulation viewport. For the
// column and layered strategies the view box fits the content.
func Arrange(ctx context.Context, g *Graph, opts LayoutOptions) (*LayoutResult, error) {
	switch opts.Strategy {
	case StrategyColumns:
		return LayoutColumns(g, opts.Columns), nil
	case StrategyLayered:
		return LayoutLayered(g, opts.Layered), nil
	}

	sim := NewSimulation(g, opts.Force)
	maxTicks := opts.MaxTicks
	if maxTicks <= 0 {
		maxTicks = DefaultMaxTicks
	}
	const batch = 50
	for sim.Tick() < maxTicks && !sim.Settled() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		sim.Settle(min(batch, maxTicks-sim.Tick()))
	}
	return ForceResult(sim), nil
}

// ForceResult captures a simulation's current state as a LayoutResult.
func ForceResult(sim *Simulation) *LayoutResult {
	lr := NewLayoutResult(StrategyForce)
	for _, n := range sim.nodes {
		lr.set(n.id, NodeLayout{X: n.x, Y: n.y, Pinned: n.pinned})
	}
	lr.ViewBox = Box{Width: sim.opts.Width, Height: sim.opts.Height}
	lr.Ticks = sim.Tick()
	lr.Settled = sim.Settled()
	return lr
}
