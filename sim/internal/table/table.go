// Package table reads and writes the plain two-column numeric tables used for
// material caches and QE exports.
//
// The format matches numpy's loadtxt/savetxt defaults: one row per line,
// columns separated by whitespace, '#' starting a comment line. Rows are
// written as "%.18e %.18e" so files round-trip bit-exactly.
package table

import (
	"bufio"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
)

// Row is one (x, y) pair.
type Row [2]float64

// Read parses every row from r. Blank lines and '#' comments are skipped;
// any other line must hold exactly two finite numbers.
func Read(r io.Reader) ([]Row, error) {
	var rows []Row
	sc := bufio.NewScanner(r)
	line := 0
	for sc.Scan() {
		line++
		text := strings.TrimSpace(sc.Text())
		if i := strings.IndexByte(text, '#'); i >= 0 {
			text = strings.TrimSpace(text[:i])
		}
		if text == "" {
			continue
		}
		fields := strings.Fields(text)
		if len(fields) != 2 {
			return nil, fmt.Errorf("line %d: expected 2 columns, got %d", line, len(fields))
		}
		var row Row
		for j, f := range fields {
			v, err := strconv.ParseFloat(f, 64)
			if err != nil {
				return nil, fmt.Errorf("line %d: column %d: %w", line, j+1, err)
			}
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return nil, fmt.Errorf("line %d: column %d: non-finite value %q", line, j+1, f)
			}
			row[j] = v
		}
		rows = append(rows, row)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read table: %w", err)
	}
	return rows, nil
}

// Write emits rows in savetxt format.
func Write(w io.Writer, rows []Row) error {
	bw := bufio.NewWriter(w)
	for _, row := range rows {
		if _, err := fmt.Fprintf(bw, "%.18e %.18e\n", row[0], row[1]); err != nil {
			return err
		}
	}
	return bw.Flush()
}

// Zip pairs two equal-length columns into rows.
func Zip(xs, ys []float64) ([]Row, error) {
	if len(xs) != len(ys) {
		return nil, fmt.Errorf("column length mismatch: %d vs %d", len(xs), len(ys))
	}
	rows := make([]Row, len(xs))
	for i := range xs {
		rows[i] = Row{xs[i], ys[i]}
	}
	return rows, nil
}
