// Package pgm reads the plain-text grayscale image format ("P2") that the
// library under test writes, and checks such files against expectations.
package pgm

import (
	"errors"
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"
)

// Tag is the format specifier every file must start with.
const Tag = "P2"

// MaxValue is the only maximum gray value the harness accepts.
const MaxValue = 255

// ErrFormat is wrapped by every *FormatError.
var ErrFormat = errors.New("pgm: invalid format")

// FormatError describes why a P2 text could not be decoded.
type FormatError struct {
	Msg string
}

func (e *FormatError) Error() string { return e.Msg }

// Unwrap lets callers match with errors.Is(err, ErrFormat).
func (e *FormatError) Unwrap() error { return ErrFormat }

// Image is a decoded P2 file. Header values are taken literally.
type Image struct {
	W        int
	H        int
	MaxValue int
	Pixels   []int
}

// Parse decodes a P2 text. The header is not cross-validated beyond the
// token count: width, height and maximum value are reported as written.
func Parse(text string) (*Image, error) {
	tokens := strings.Fields(text)
	if len(tokens) < 4 {
		return nil, &FormatError{Msg: "Invalid file format."}
	}
	if tokens[0] != Tag {
		return nil, &FormatError{Msg: "Missing file type specifier (should be P2)."}
	}

	header := make([]int, 3)
	for i, name := range []string{"width", "height", "maximum value"} {
		v, err := strconv.Atoi(tokens[i+1])
		if err != nil {
			return nil, &FormatError{Msg: fmt.Sprintf("Failed to parse %s %s.", name, tokens[i+1])}
		}
		header[i] = v
	}
	img := &Image{W: header[0], H: header[1], MaxValue: header[2]}

	if img.W > math.MaxInt32 || img.H > math.MaxInt32 || (img.H > 0 && img.W > math.MaxInt32/img.H) {
		return nil, &FormatError{Msg: fmt.Sprintf("Image dimensions %dx%d are too large.", img.W, img.H)}
	}
	if img.W < 0 || img.H < 0 || len(tokens)-4 != img.W*img.H {
		return nil, &FormatError{Msg: "Number of pixels does not match."}
	}

	img.Pixels = make([]int, len(tokens)-4)
	for i, tok := range tokens[4:] {
		v, err := strconv.Atoi(tok)
		if err != nil {
			return nil, &FormatError{Msg: fmt.Sprintf("Failed to parse pixel value %s.", tok)}
		}
		img.Pixels[i] = v
	}
	return img, nil
}

// ReadFile reads and decodes a P2 file.
func ReadFile(path string) (*Image, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	img, err := Parse(string(data))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return img, nil
}

// Expected is one expected pixel. A wildcard matches any actual value when
// the check allows wildcards.
type Expected struct {
	Value    int
	Wildcard bool
}

// Exact returns a concrete expectation.
func Exact(v int) Expected { return Expected{Value: v} }

// Any returns a wildcard expectation.
func Any() Expected { return Expected{Wildcard: true} }

func (e Expected) String() string {
	if e.Wildcard {
		return "any"
	}
	return strconv.Itoa(e.Value)
}

// Expectation is the header and pixels a P2 text must match.
type Expectation struct {
	W      int
	H      int
	Pixels []Expected
}

// ExpectImage turns a decoded image into a wildcard-free expectation.
func ExpectImage(img *Image) Expectation {
	pixels := make([]Expected, len(img.Pixels))
	for i, v := range img.Pixels {
		pixels[i] = Exact(v)
	}
	return Expectation{W: img.W, H: img.H, Pixels: pixels}
}

// Check compares a P2 text against exp and returns the first mismatch, or ""
// when the text matches. Pixel values match when they differ by at most
// tolerance; wildcard expectations match anything when allowWildcard is set.
func Check(text string, exp Expectation, tolerance float64, allowWildcard bool) string {
	tokens := strings.Fields(text)

	if len(tokens) < 4 {
		return "Invalid file format."
	}
	if tokens[0] != Tag {
		return "Missing file type specifier (should be P2)."
	}
	if tokens[1] != strconv.Itoa(exp.W) {
		return fmt.Sprintf("Incorrect width (expected %d but was %s).", exp.W, tokens[1])
	}
	if tokens[2] != strconv.Itoa(exp.H) {
		return fmt.Sprintf("Incorrect height (expected %d but was %s).", exp.H, tokens[2])
	}
	if tokens[3] != strconv.Itoa(MaxValue) {
		return fmt.Sprintf("Incorrect maximum value (expected %d but was %s).", MaxValue, tokens[3])
	}
	if len(tokens) != len(exp.Pixels)+4 {
		return "Number of pixels does not match."
	}

	for i, tok := range tokens[4:] {
		actual, err := strconv.Atoi(tok)
		if err != nil {
			return fmt.Sprintf("Failed to parse pixel value %s.", tok)
		}
		want := exp.Pixels[i]
		if want.Wildcard {
			if allowWildcard {
				continue
			}
			return fmt.Sprintf("Incorrect pixel color at pixel %d (expected %s but was %d).", i, want, actual)
		}
		if math.Abs(float64(actual-want.Value)) > tolerance {
			return fmt.Sprintf("Incorrect pixel color at pixel %d (expected %d but was %d).", i, want.Value, actual)
		}
	}
	return ""
}

// ReadMinMax reads the two-float range file that accompanies a quantized
// gradient-magnitude golden.
func ReadMinMax(path string) (lo, hi float64, err error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, 0, err
	}
	tokens := strings.Fields(string(data))
	if len(tokens) != 2 {
		return 0, 0, fmt.Errorf("%s: expected 2 values, got %d", path, len(tokens))
	}
	lo, err = strconv.ParseFloat(tokens[0], 64)
	if err != nil {
		return 0, 0, fmt.Errorf("%s: min: %w", path, err)
	}
	hi, err = strconv.ParseFloat(tokens[1], 64)
	if err != nil {
		return 0, 0, fmt.Errorf("%s: max: %w", path, err)
	}
	return lo, hi, nil
}
