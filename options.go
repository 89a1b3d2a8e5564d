package sheetgraph

import (
	"io"

	"github.com/sirupsen/logrus"
)

// Option configures a Sheet at construction time. sheetgraph is an
// embeddable library, not a CLI or service, so configuration is the
// functional-options pattern rather than a file/env config library — see
// DESIGN.md.
type Option func(*Sheet)

// WithLogger routes the sheet's debug-level structured logging (committed
// cell sets and clears, printable-region resizes) through logger instead of
// a discarding default. Cycle rejections and cache invalidation are not
// logged.
func WithLogger(logger logrus.FieldLogger) Option {
	return func(s *Sheet) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithLimits overrides the default grid bounds (DefaultMaxRows,
// DefaultMaxCols). Both must be positive.
func WithLimits(maxRows, maxCols int) Option {
	return func(s *Sheet) {
		if maxRows > 0 {
			s.maxRows = maxRows
		}
		if maxCols > 0 {
			s.maxCols = maxCols
		}
	}
}

// WithSentinels overrides the default ESCAPE (') and FORMULA (=) leading
// characters recognized by Sheet.Set.
func WithSentinels(escape, formula rune) Option {
	return func(s *Sheet) {
		s.escape = escape
		s.formulaSign = formula
	}
}

// discardLogger returns a logrus.FieldLogger that drops everything, the
// default until an embedder opts in via WithLogger.
func discardLogger() logrus.FieldLogger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}
