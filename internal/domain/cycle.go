package domain

import (
	"strings"
	"time"
)

// Triangle is a candidate (stable, X, Y) used only as a search key while the
// catalogue is built.
type Triangle struct {
	Stable string
	X      string
	Y      string
}

// Cycle is a validated, ordered triple of pair symbols: X/stable, then X/Y or
// Y/X, then Y/stable.
type Cycle [3]string

// Stable returns the stablecoin the cycle starts and ends in.
func (c Cycle) Stable() string {
	p, ok := ParsePair(c[0])
	if !ok {
		return ""
	}
	return p.Quote
}

func (c Cycle) String() string {
	return strings.Join(c[:], " -> ")
}

// Catalogue is the immutable ordered list of cycles produced by a build or a
// load. A new catalogue replaces the previous one wholesale.
type Catalogue struct {
	cycles  []Cycle
	builtAt time.Time
}

// NewCatalogue copies cycles into a new Catalogue.
func NewCatalogue(cycles []Cycle, builtAt time.Time) *Catalogue {
	cp := make([]Cycle, len(cycles))
	copy(cp, cycles)
	return &Catalogue{cycles: cp, builtAt: builtAt.UTC()}
}

// Len returns the number of cycles. A nil catalogue is empty.
func (c *Catalogue) Len() int {
	if c == nil {
		return 0
	}
	return len(c.cycles)
}

// At returns the i-th cycle.
func (c *Catalogue) At(i int) Cycle {
	return c.cycles[i]
}

// Cycles returns a copy of the cycle list.
func (c *Catalogue) Cycles() []Cycle {
	if c == nil {
		return nil
	}
	cp := make([]Cycle, len(c.cycles))
	copy(cp, c.cycles)
	return cp
}

// BuiltAt returns when the catalogue was built.
func (c *Catalogue) BuiltAt() time.Time {
	if c == nil {
		return time.Time{}
	}
	return c.builtAt
}

// Head returns at most n cycles from the front of the catalogue.
func (c *Catalogue) Head(n int) []Cycle {
	if c == nil {
		return nil
	}
	if n > len(c.cycles) {
		n = len(c.cycles)
	}
	cp := make([]Cycle, n)
	copy(cp, c.cycles[:n])
	return cp
}
