package sheetgraph

import (
	"fmt"
	"unicode/utf8"

	"golang.org/x/exp/maps"
)

// kind tags which of the three variants a Cell currently holds.
type kind int

const (
	kindEmpty kind = iota
	kindTextCell
	kindFormulaCell
)

// Cell holds one of three variants (Empty, Text, Formula), owns its cached
// formula value, and owns the adjacency sets used for cycle detection and
// cache invalidation. A Cell is never destroyed while another Cell holds it
// in inRefs; Sheet.Clear demotes the variant but preserves identity.
type Cell struct {
	sheet *Sheet
	pos   Position

	variant kind
	text    string   // Text: string as set by the user; Formula: sign + canonical form; Empty: ""
	formula *formula // populated only for kindFormulaCell
	cache   *CellValue

	// outRefs is populated only for kindFormulaCell: the cells this cell
	// reads from. inRefs is populated for any cell another cell reads from.
	outRefs map[Position]*Cell
	inRefs  map[Position]*Cell
}

func newCell(sheet *Sheet, pos Position) *Cell {
	return &Cell{
		sheet:   sheet,
		pos:     pos,
		variant: kindEmpty,
		outRefs: make(map[Position]*Cell),
		inRefs:  make(map[Position]*Cell),
	}
}

// Value evaluates (memoized, for Formula cells) this cell's current value.
func (c *Cell) Value() CellValue {
	switch c.variant {
	case kindEmpty:
		return NumberValue(0)
	case kindTextCell:
		if r, size := utf8.DecodeRuneInString(c.text); r != utf8.RuneError && r == c.sheet.escape {
			return TextValue(c.text[size:])
		}
		return TextValue(c.text)
	case kindFormulaCell:
		if c.cache == nil {
			v := c.formula.evaluate(c.sheet)
			c.cache = &v
		}
		return *c.cache
	default:
		return NumberValue(0)
	}
}

// Text returns this cell's text: "" for Empty, the string as set (escape
// included) for Text, and the formula sign plus the canonical expression
// for Formula, which may differ from the string originally set.
func (c *Cell) Text() string {
	switch c.variant {
	case kindEmpty:
		return ""
	case kindTextCell:
		return c.text
	case kindFormulaCell:
		return string(c.sheet.formulaSign) + c.formula.print()
	default:
		return ""
	}
}

// ReferencedCells returns the ordered, duplicate-free positions this cell's
// current variant depends on. Empty/Text cells always return nil.
func (c *Cell) ReferencedCells() []Position {
	if c.variant != kindFormulaCell {
		return nil
	}
	return c.formula.referencedCells(c.sheet.maxRows, c.sheet.maxCols)
}

// set applies text to this cell, following spec.md §4.1's five-step
// protocol. On a cycle error the cell is left completely unchanged.
func (c *Cell) set(text string) error {
	newVariant, newText, newFormula, err := c.build(text)
	if err != nil {
		return err
	}

	var tentativeRefs []Position
	if newFormula != nil {
		tentativeRefs = newFormula.referencedCells(c.sheet.maxRows, c.sheet.maxCols)
	}

	if c.sheet.wouldIntroduceCycle(c, tentativeRefs) {
		return fmt.Errorf("%w: setting %s would create a cycle", ErrCircularRef, c.pos)
	}

	// commit
	c.unbindOutRefs()
	c.variant = newVariant
	c.text = newText
	c.formula = newFormula
	c.cache = nil

	if newFormula != nil {
		for _, pos := range tentativeRefs {
			target := c.sheet.materialize(pos)
			c.outRefs[pos] = target
			target.inRefs[c.pos] = c
		}
	}

	c.sheet.log("set", c.pos, c.variant)
	c.invalidateDependents()
	return nil
}

// build parses text into a tentative variant without mutating c, per
// spec.md §4.1's "build a tentative new variant" step. A parse error (only
// possible for the Formula branch) leaves c entirely untouched.
func (c *Cell) build(text string) (kind, string, *formula, error) {
	lead, size := utf8.DecodeRuneInString(text)
	switch {
	case text == "":
		return kindEmpty, "", nil, nil
	case lead != utf8.RuneError && lead == c.sheet.formulaSign && size < len(text):
		ast, err := ParseExpr(text[size:])
		if err != nil {
			return 0, "", nil, fmt.Errorf("%w: %v", ErrParseFormula, err)
		}
		f := newFormula(ast)
		return kindFormulaCell, string(c.sheet.formulaSign) + f.print(), f, nil
	default:
		return kindTextCell, text, nil, nil
	}
}

// clear collapses this cell to Empty. Outgoing edges are dropped
// symmetrically; incoming edges are retained so dependents keep their
// identity and read 0.0 on next evaluation.
func (c *Cell) clear() {
	c.unbindOutRefs()
	c.variant = kindEmpty
	c.text = ""
	c.formula = nil
	c.cache = nil
	c.sheet.log("clear", c.pos, c.variant)
	c.invalidateDependents()
}

// unbindOutRefs removes this cell from each of its current out-reference's
// in-reference set and empties outRefs, preserving invariant I1.
func (c *Cell) unbindOutRefs() {
	for _, target := range c.outRefs {
		delete(target.inRefs, c.pos)
	}
	maps.Clear(c.outRefs)
}

// invalidateDependents forwards one invalidation pass to every cell that
// references c, unconditionally — c's own text/value just changed by
// definition, independent of whether c's own (freshly reset) cache reports
// as populated. See DESIGN.md Open Question decision 3.
func (c *Cell) invalidateDependents() {
	for _, dep := range c.inRefs {
		dep.propagateInvalidate()
	}
}

// propagateInvalidate implements the "has-fresh-cache" gate of spec.md
// §4.1.2/§9: a Formula cell only clears and recurses if its cache is
// currently populated (pruning safely by invariant I3); a non-Formula cell
// has no cache to gate on and always forwards once. In a well-formed graph
// every member of inRefs is itself a Formula cell (only formulas populate
// another cell's inRefs), so the non-Formula branch below is defensive.
func (c *Cell) propagateInvalidate() {
	if c.variant != kindFormulaCell {
		c.invalidateDependents()
		return
	}
	if c.cache == nil {
		return
	}
	c.cache = nil
	c.invalidateDependents()
}
