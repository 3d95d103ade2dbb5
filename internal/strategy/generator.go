package strategy

import "alphafx/internal/model"

// Generator applies a Rule to a stream of snapshots and debounces the
// result: a Buy is only emitted when the last action was not a Buy, and a
// Sell only when the last action was a Buy.
// Designed for single-goroutine usage; callers serialize Next.
type Generator struct {
	rule Rule
	prev *model.IndicatorSnapshot
	last Signal
}

// NewGenerator creates a generator for the given rule.
func NewGenerator(rule Rule) *Generator {
	return &Generator{rule: rule}
}

// NewGeneratorFor creates a generator for a strategy identifier.
func NewGeneratorFor(kind Kind) (*Generator, error) {
	rule, err := NewRule(kind)
	if err != nil {
		return nil, err
	}
	return NewGenerator(rule), nil
}

// Switch returns a generator for rule that continues g's debounce state:
// the last action carries over, the previous snapshot does not.
func (g *Generator) Switch(rule Rule) *Generator {
	return &Generator{rule: rule, last: g.last}
}

// Rule returns the wrapped rule.
func (g *Generator) Rule() Rule { return g.rule }

// Next evaluates one snapshot and returns the debounced signal.
func (g *Generator) Next(cur model.IndicatorSnapshot) Signal {
	raw := g.rule.Evaluate(g.prev, cur)
	snap := cur
	g.prev = &snap

	switch {
	case raw == Buy && g.last != Buy:
		g.last = Buy
		return Buy
	case raw == Sell && g.last == Buy:
		g.last = Sell
		return Sell
	}
	return Hold
}

// LastAction returns the last non-Hold signal emitted, or Hold before any.
func (g *Generator) LastAction() Signal { return g.last }

// Reset forgets the previous snapshot and the last action.
func (g *Generator) Reset() {
	g.prev = nil
	g.last = Hold
}
