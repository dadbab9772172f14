// Package matrix holds the numeric grid exchanged between fixtures, the
// library under test and the comparison engine.
package matrix

import (
	"errors"
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"

	"gonum.org/v1/gonum/mat"
)

var (
	// ErrBadShape is returned when width or height is not positive, when
	// width*height does not fit a C int, or when the value count does not
	// equal width*height.
	ErrBadShape = errors.New("matrix: invalid shape")

	// ErrFormat is returned when a .matrix fixture cannot be parsed.
	ErrFormat = errors.New("matrix: malformed fixture")
)

// Matrix is a W×H grid of float32 samples stored row-major.
// len(Values) == W*H always holds for values built by this package.
type Matrix struct {
	W      int
	H      int
	Values []float32
}

// New builds a matrix from a literal value list. The slice is used as is.
func New(w, h int, values []float32) (*Matrix, error) {
	if w <= 0 || h <= 0 {
		return nil, fmt.Errorf("%w: %dx%d", ErrBadShape, w, h)
	}
	if w > math.MaxInt32/h {
		return nil, fmt.Errorf("%w: %dx%d is too large", ErrBadShape, w, h)
	}
	if len(values) != w*h {
		return nil, fmt.Errorf("%w: %dx%d needs %d values, got %d", ErrBadShape, w, h, w*h, len(values))
	}
	return &Matrix{W: w, H: h, Values: values}, nil
}

// Zeros returns a zero-filled w×h matrix, used as a library output buffer.
// Callers pass dimensions taken from an already validated matrix.
func Zeros(w, h int) *Matrix {
	return &Matrix{W: w, H: h, Values: make([]float32, w*h)}
}

// At returns the sample at column x, row y.
func (m *Matrix) At(x, y int) float32 {
	return m.Values[y*m.W+x]
}

// Len returns the number of samples.
func (m *Matrix) Len() int {
	return len(m.Values)
}

// Clone returns a deep copy. Cases hand clones to the library so the fixture
// matrix stays intact for diagnostics.
func (m *Matrix) Clone() *Matrix {
	values := make([]float32, len(m.Values))
	copy(values, m.Values)
	return &Matrix{W: m.W, H: m.H, Values: values}
}

// String renders the grid for verbose diagnostics.
func (m *Matrix) String() string {
	return Format(m.Values, m.W, m.H)
}

// Format renders the first w*h entries of a raw buffer as a w×h grid.
// Missing entries render as zero so a short library buffer is still shown.
func Format(values []float32, w, h int) string {
	if w <= 0 || h <= 0 {
		return "[]"
	}
	data := make([]float64, w*h)
	for i := range data {
		if i < len(values) {
			data[i] = widen(values[i])
		}
	}
	return fmt.Sprintf("%v", mat.Formatted(mat.NewDense(h, w, data), mat.Squeeze()))
}

// widen converts through the shortest float32 decimal so 0.1 prints as 0.1.
func widen(v float32) float64 {
	f, err := strconv.ParseFloat(strconv.FormatFloat(float64(v), 'g', -1, 32), 64)
	if err != nil {
		return float64(v)
	}
	return f
}

// Parse decodes the .matrix fixture format: whitespace separated tokens,
// '#' comments to end of line, width and height first, then W*H floats.
func Parse(text string) (*Matrix, error) {
	tokens := tokenize(text)
	if len(tokens) < 2 {
		return nil, fmt.Errorf("%w: missing width and height", ErrFormat)
	}

	w, err := strconv.Atoi(tokens[0])
	if err != nil {
		return nil, fmt.Errorf("%w: width %q is not an integer", ErrFormat, tokens[0])
	}
	h, err := strconv.Atoi(tokens[1])
	if err != nil {
		return nil, fmt.Errorf("%w: height %q is not an integer", ErrFormat, tokens[1])
	}
	if w <= 0 || h <= 0 {
		return nil, fmt.Errorf("%w: %dx%d", ErrBadShape, w, h)
	}
	if w > math.MaxInt32/h {
		return nil, fmt.Errorf("%w: %dx%d is too large", ErrBadShape, w, h)
	}

	tokens = tokens[2:]
	if len(tokens) != w*h {
		return nil, fmt.Errorf("%w: %dx%d needs %d values, got %d", ErrFormat, w, h, w*h, len(tokens))
	}

	values := make([]float32, len(tokens))
	for i, tok := range tokens {
		v, err := strconv.ParseFloat(tok, 32)
		if err != nil {
			return nil, fmt.Errorf("%w: value %d (%q) is not a number", ErrFormat, i, tok)
		}
		values[i] = float32(v)
	}
	return &Matrix{W: w, H: h, Values: values}, nil
}

// FromFile reads and parses a .matrix fixture.
func FromFile(path string) (*Matrix, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read matrix fixture: %w", err)
	}
	m, err := Parse(string(data))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return m, nil
}

func tokenize(text string) []string {
	var tokens []string
	for _, line := range strings.Split(text, "\n") {
		if i := strings.IndexByte(line, '#'); i >= 0 {
			line = line[:i]
		}
		tokens = append(tokens, strings.Fields(line)...)
	}
	return tokens
}
