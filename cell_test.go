package sheetgraph

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCell_set_variants(t *testing.T) {
	t.Run("empty", func(t *testing.T) {
		s := NewSheet()
		pos := Position{Row: 0, Col: 0}
		assert.NoError(t, s.Set(pos, ""))
		c := s.cells[pos]
		assert.Equal(t, kindEmpty, c.variant)
		assert.Equal(t, "", c.Text())
		n, ok := c.Value().IsNumber()
		assert.True(t, ok)
		assert.Equal(t, float64(0), n)
	})

	t.Run("text", func(t *testing.T) {
		s := NewSheet()
		pos := Position{Row: 0, Col: 0}
		assert.NoError(t, s.Set(pos, "hello"))
		c := s.cells[pos]
		assert.Equal(t, kindTextCell, c.variant)
		assert.Equal(t, "hello", c.Text())
		text, ok := c.Value().IsText()
		assert.True(t, ok)
		assert.Equal(t, "hello", text)
	})

	t.Run("escaped text that looks like a formula", func(t *testing.T) {
		s := NewSheet()
		pos := Position{Row: 0, Col: 0}
		assert.NoError(t, s.Set(pos, "'=1+1"))
		c := s.cells[pos]
		assert.Equal(t, kindTextCell, c.variant)
		assert.Equal(t, "'=1+1", c.Text())
		text, ok := c.Value().IsText()
		assert.True(t, ok)
		assert.Equal(t, "=1+1", text)
	})

	t.Run("formula", func(t *testing.T) {
		s := NewSheet()
		pos := Position{Row: 0, Col: 0}
		assert.NoError(t, s.Set(pos, "=1+1"))
		c := s.cells[pos]
		assert.Equal(t, kindFormulaCell, c.variant)
		assert.Equal(t, "=1+1", c.Text())
		n, ok := c.Value().IsNumber()
		assert.True(t, ok)
		assert.Equal(t, float64(2), n)
	})
}

func TestCell_set_parseErrorLeavesCellUntouched(t *testing.T) {
	s := NewSheet()
	pos := Position{Row: 0, Col: 0}
	assert.NoError(t, s.Set(pos, "hello"))
	err := s.Set(pos, "=1+")
	assert.ErrorIs(t, err, ErrParseFormula)
	c := s.cells[pos]
	assert.Equal(t, kindTextCell, c.variant)
	assert.Equal(t, "hello", c.Text())
}

func TestCell_set_cycleRollsBackVerbatim(t *testing.T) {
	s := NewSheet()
	a1 := Position{Row: 0, Col: 0}
	b1 := Position{Row: 0, Col: 1}

	assert.NoError(t, s.Set(a1, "hello"))
	assert.NoError(t, s.Set(b1, "=A1"))

	err := s.Set(a1, "=B1")
	assert.ErrorIs(t, err, ErrCircularRef)

	c := s.cells[a1]
	assert.Equal(t, kindTextCell, c.variant)
	assert.Equal(t, "hello", c.Text())
}

func TestCell_invalidation_cascadesThroughMemoizedFormulas(t *testing.T) {
	s := NewSheet()
	a1 := Position{Row: 0, Col: 0}
	b1 := Position{Row: 0, Col: 1}
	c1 := Position{Row: 0, Col: 2}

	assert.NoError(t, s.Set(a1, "1"))
	assert.NoError(t, s.Set(b1, "=A1*2"))
	assert.NoError(t, s.Set(c1, "=B1+1"))

	n, _ := s.cells[c1].Value().IsNumber()
	assert.Equal(t, float64(3), n)

	// populate caches along the chain, then mutate the root.
	_ = s.cells[b1].Value()
	_ = s.cells[c1].Value()
	assert.NoError(t, s.Set(a1, "10"))

	n, _ = s.cells[b1].Value().IsNumber()
	assert.Equal(t, float64(20), n)
	n, _ = s.cells[c1].Value().IsNumber()
	assert.Equal(t, float64(21), n)
}

func TestCell_invalidation_onFormulaCellReset(t *testing.T) {
	// DESIGN.md Open Question decision 3: re-setting a formula cell that
	// already has dependents must still cascade to them, regardless of
	// whether the freshly reset cell's own cache happens to be populated.
	s := NewSheet()
	a1 := Position{Row: 0, Col: 0}
	b1 := Position{Row: 0, Col: 1}
	c1 := Position{Row: 0, Col: 2}

	assert.NoError(t, s.Set(a1, "1"))
	assert.NoError(t, s.Set(b1, "=A1"))
	assert.NoError(t, s.Set(c1, "=B1+100"))

	n, _ := s.cells[c1].Value().IsNumber()
	assert.Equal(t, float64(101), n)

	assert.NoError(t, s.Set(b1, "=A1+1"))

	n, _ = s.cells[c1].Value().IsNumber()
	assert.Equal(t, float64(102), n)
}

func TestCell_clear_retainsDependentsButReadsZero(t *testing.T) {
	s := NewSheet()
	a1 := Position{Row: 0, Col: 0}
	b1 := Position{Row: 0, Col: 1}

	assert.NoError(t, s.Set(a1, "5"))
	assert.NoError(t, s.Set(b1, "=A1+1"))
	n, _ := s.cells[b1].Value().IsNumber()
	assert.Equal(t, float64(6), n)

	assert.NoError(t, s.Clear(a1))
	n, _ = s.cells[b1].Value().IsNumber()
	assert.Equal(t, float64(1), n)
}

func TestCell_ReferencedCells(t *testing.T) {
	s := NewSheet()
	a1 := Position{Row: 0, Col: 0}
	b2 := Position{Row: 1, Col: 1}
	c1 := Position{Row: 0, Col: 2}

	assert.NoError(t, s.Set(c1, "=A1+B2"))
	got := s.cells[c1].ReferencedCells()
	assert.Equal(t, []Position{a1, b2}, got)

	assert.NoError(t, s.Set(a1, "1"))
	assert.Nil(t, s.cells[a1].ReferencedCells())
}

func TestCell_formulaErrorPropagation(t *testing.T) {
	s := NewSheet()
	a1 := Position{Row: 0, Col: 0}
	b1 := Position{Row: 0, Col: 1}
	c1 := Position{Row: 0, Col: 2}

	outOfBounds := Position{Row: 0, Col: DefaultMaxCols}.String()

	assert.NoError(t, s.Set(a1, "=1/0"))
	assert.NoError(t, s.Set(b1, "=A1+1"))
	assert.NoError(t, s.Set(c1, "="+outOfBounds))

	ferr, ok := s.cells[a1].Value().IsError()
	assert.True(t, ok)
	assert.Equal(t, Div0, ferr.Kind)

	ferr, ok = s.cells[b1].Value().IsError()
	assert.True(t, ok)
	assert.Equal(t, Value, ferr.Kind)

	ferr, ok = s.cells[c1].Value().IsError()
	assert.True(t, ok)
	assert.Equal(t, Ref, ferr.Kind)
}
