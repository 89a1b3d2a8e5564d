package sheetgraph

import "github.com/sirupsen/logrus"

// Sheet owns all cells indexed by position, routes mutations, and exposes
// lookup and printable-region queries.
type Sheet struct {
	cells map[Position]*Cell

	maxRows, maxCols             int
	escape, formulaSign          rune
	logger                       logrus.FieldLogger
	printableRows, printableCols int
}

// NewSheet creates an empty Sheet. ESCAPE and FORMULA default to ' and =;
// grid bounds default to DefaultMaxRows/DefaultMaxCols. See Option.
func NewSheet(opts ...Option) *Sheet {
	s := &Sheet{
		cells:       make(map[Position]*Cell),
		maxRows:     DefaultMaxRows,
		maxCols:     DefaultMaxCols,
		escape:      '\'',
		formulaSign: '=',
		logger:      discardLogger(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Set validates pos, ensures a Cell exists there, and applies text to it.
// On a cycle error the cell's previous contents are rolled back and the
// error is returned; on a parse error the cell is never touched.
func (s *Sheet) Set(pos Position, text string) error {
	if !pos.Valid(s.maxRows, s.maxCols) {
		return invalidPositionErr(pos)
	}
	cell := s.materialize(pos)
	prevVariant, prevText, prevFormula, prevCache := cell.variant, cell.text, cell.formula, cell.cache

	if err := cell.set(text); err != nil {
		// roll back to the previous cell contents verbatim (P5); set()
		// never mutated outRefs/cache on a cycle error since the cycle
		// check runs before any commit step, so only these scalar fields
		// could have diverged in principle — restored defensively.
		cell.variant, cell.text, cell.formula, cell.cache = prevVariant, prevText, prevFormula, prevCache
		return err
	}
	s.resize()
	return nil
}

// Get returns the cell at pos if pos lies within the printable region,
// otherwise nil. An invalid position returns an error.
func (s *Sheet) Get(pos Position) (*Cell, error) {
	if !pos.Valid(s.maxRows, s.maxCols) {
		return nil, invalidPositionErr(pos)
	}
	if pos.Row >= s.printableRows || pos.Col >= s.printableCols {
		return nil, nil
	}
	return s.cells[pos], nil
}

// Clear collapses the cell at pos to Empty, if pos lies within the
// printable region, then recomputes the printable region.
func (s *Sheet) Clear(pos Position) error {
	if !pos.Valid(s.maxRows, s.maxCols) {
		return invalidPositionErr(pos)
	}
	if pos.Row < s.printableRows && pos.Col < s.printableCols {
		if cell, ok := s.cells[pos]; ok {
			cell.clear()
		}
	}
	s.resize()
	return nil
}

// PrintableSize returns the bounding rectangle of the backing grid, which
// may include trailing empty cells.
func (s *Sheet) PrintableSize() Size {
	return Size{Rows: s.printableRows, Cols: s.printableCols}
}

// EffectiveSize returns the bounding rectangle of cells whose text is
// non-empty — what Resize shrinks the printable region to.
func (s *Sheet) EffectiveSize() Size {
	var size Size
	for pos, cell := range s.cells {
		if cell.Text() == "" {
			continue
		}
		if pos.Row+1 > size.Rows {
			size.Rows = pos.Row + 1
		}
		if pos.Col+1 > size.Cols {
			size.Cols = pos.Col + 1
		}
	}
	return size
}

// resize trims the printable region to EffectiveSize and materializes Empty
// cells in any hole inside the retained rectangle, so Get is total there.
func (s *Sheet) resize() {
	size := s.EffectiveSize()
	if size.Rows != s.printableRows || size.Cols != s.printableCols {
		s.logger.WithFields(logrus.Fields{"event": "resize", "rows": size.Rows, "cols": size.Cols}).Debug("sheetgraph: resized printable region")
	}
	s.printableRows, s.printableCols = size.Rows, size.Cols
	for row := 0; row < size.Rows; row++ {
		for col := 0; col < size.Cols; col++ {
			pos := Position{Row: row, Col: col}
			if _, ok := s.cells[pos]; !ok {
				s.cells[pos] = newCell(s, pos)
			}
		}
	}
}

// materialize looks up the cell at pos, creating an Empty one if absent.
// This is the spec.md §9 resolution of referenced-but-unset cells: create
// on first reference so reverse edges are always storable.
func (s *Sheet) materialize(pos Position) *Cell {
	if cell, ok := s.cells[pos]; ok {
		return cell
	}
	cell := newCell(s, pos)
	s.cells[pos] = cell
	return cell
}

// wouldIntroduceCycle implements spec.md §4.1.1: true iff any cell
// reachable from any position in tentativeRefs, following outgoing
// references transitively, equals origin. An explicit visited set guards
// termination regardless of whether the pre-mutation graph is a DAG (see
// DESIGN.md Open Question decision 1).
func (s *Sheet) wouldIntroduceCycle(origin *Cell, tentativeRefs []Position) bool {
	visited := make(map[Position]struct{})
	var reaches func(pos Position) bool
	reaches = func(pos Position) bool {
		if pos == origin.pos {
			return true
		}
		if _, seen := visited[pos]; seen {
			return false
		}
		visited[pos] = struct{}{}
		cell, ok := s.cells[pos]
		if !ok {
			return false // unset positions cannot participate in the graph
		}
		for out := range cell.outRefs {
			if reaches(out) {
				return true
			}
		}
		return false
	}
	for _, ref := range tentativeRefs {
		if reaches(ref) {
			return true
		}
	}
	return false
}

// readForFormula and limits implement cellReader, the minimal surface
// formula.evaluate needs from a Sheet.
func (s *Sheet) readForFormula(pos Position) (CellValue, bool) {
	cell, ok := s.cells[pos]
	if !ok {
		return CellValue{}, false
	}
	return cell.Value(), true
}

func (s *Sheet) limits() (int, int) { return s.maxRows, s.maxCols }

func (s *Sheet) log(event string, pos Position, variant kind) {
	s.logger.WithFields(logrus.Fields{"event": event, "pos": pos.String(), "kind": variant}).Debug("sheetgraph: cell mutated")
}

func invalidPositionErr(pos Position) error {
	return &positionError{pos: pos}
}

type positionError struct{ pos Position }

func (e *positionError) Error() string { return ErrInvalidPosition.Error() + ": " + e.pos.String() }
func (e *positionError) Unwrap() error { return ErrInvalidPosition }

func (k kind) String() string {
	switch k {
	case kindEmpty:
		return "empty"
	case kindTextCell:
		return "text"
	case kindFormulaCell:
		return "formula"
	default:
		return "unknown"
	}
}
