package evaluation

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
)

// ErrDatasetTooLarge reports a dataset object longer than the read limit.
var ErrDatasetTooLarge = errors.New("dataset exceeds size limit")

// cappedReader passes through at most limit bytes and fails instead of
// stopping short, so an oversized dataset never parses as a shorter one.
type cappedReader struct {
	r         io.Reader
	limit     int64
	remaining int64
}

func newCappedReader(r io.Reader, limit int64) *cappedReader {
	return &cappedReader{r: r, limit: limit, remaining: limit}
}

func (c *cappedReader) Read(p []byte) (int, error) {
	if int64(len(p)) > c.remaining+1 {
		p = p[:c.remaining+1]
	}
	n, err := c.r.Read(p)
	c.remaining -= int64(n)
	if c.remaining < 0 {
		return 0, fmt.Errorf("%w: more than %d bytes", ErrDatasetTooLarge, c.limit)
	}
	return n, err
}

// Row is one labeled example. Features are already row-normalized.
type Row struct {
	Label    float64
	Features []float64
}

// ParseDataset reads a header-less CSV whose first column is the label and the
// remaining columns are features. Every row must have the same width. Feature
// vectors are L2-normalized row by row.
func ParseDataset(r io.Reader) ([]Row, error) {
	cr := csv.NewReader(r)
	cr.ReuseRecord = true
	cr.TrimLeadingSpace = true

	var rows []Row
	width := 0
	for line := 1; ; line++ {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		if width == 0 {
			width = len(rec)
			if width < 2 {
				return nil, fmt.Errorf("line %d: need a label and at least one feature, got %d columns", line, width)
			}
		}
		if len(rec) != width {
			return nil, fmt.Errorf("line %d: expected %d columns, got %d", line, width, len(rec))
		}
		row := Row{Features: make([]float64, width-1)}
		if row.Label, err = parseCell(rec[0]); err != nil {
			return nil, fmt.Errorf("line %d column 1: %w", line, err)
		}
		for i, cell := range rec[1:] {
			if row.Features[i], err = parseCell(cell); err != nil {
				return nil, fmt.Errorf("line %d column %d: %w", line, i+2, err)
			}
		}
		Normalize(row.Features)
		rows = append(rows, row)
	}
	if len(rows) == 0 {
		return nil, errors.New("dataset has no rows")
	}
	return rows, nil
}

func parseCell(s string) (float64, error) {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0, fmt.Errorf("%q is not a number", s)
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("%q is not finite", s)
	}
	return v, nil
}

// Normalize scales v in place to unit L2 norm. A zero vector is left unchanged.
func Normalize(v []float64) {
	var sum float64
	for _, x := range v {
		sum += x * x
	}
	if sum == 0 {
		return
	}
	norm := math.Sqrt(sum)
	for i := range v {
		v[i] /= norm
	}
}
