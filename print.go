package sheetgraph

import (
	"fmt"
	"io"
)

// PrintValues writes the printable region to w, one row per line, columns
// tab-separated, each cell rendered via Cell.Value.String(). Mirrors
// original_source/spreadsheet/sheet.cpp's PrintValues.
func (s *Sheet) PrintValues(w io.Writer) error {
	return s.print(w, func(c *Cell) string { return c.Value().String() })
}

// PrintTexts writes the printable region to w, one row per line, columns
// tab-separated, each cell rendered via Cell.Text().
func (s *Sheet) PrintTexts(w io.Writer) error {
	return s.print(w, func(c *Cell) string { return c.Text() })
}

func (s *Sheet) print(w io.Writer, render func(*Cell) string) error {
	for row := 0; row < s.printableRows; row++ {
		for col := 0; col < s.printableCols; col++ {
			if col > 0 {
				if _, err := io.WriteString(w, "\t"); err != nil {
					return err
				}
			}
			pos := Position{Row: row, Col: col}
			if cell, ok := s.cells[pos]; ok && cell.Text() != "" {
				if _, err := io.WriteString(w, render(cell)); err != nil {
					return err
				}
			}
		}
		if _, err := fmt.Fprintln(w); err != nil {
			return err
		}
	}
	return nil
}
