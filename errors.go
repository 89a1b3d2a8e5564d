package sheetgraph

import "errors"

var (
	// ErrInvalidPosition is returned by Sheet APIs given an out-of-range position.
	ErrInvalidPosition = errors.New("sheetgraph: invalid position")
	// ErrParseFormula is returned by Sheet.Set when the text after the formula
	// sentinel cannot be parsed. The cell's prior contents are preserved.
	ErrParseFormula = errors.New("sheetgraph: formula parse error")
	// ErrCircularRef is returned by Sheet.Set when the tentative cell would
	// introduce a reference cycle. The cell's prior contents are preserved.
	ErrCircularRef = errors.New("sheetgraph: circular reference")
)
