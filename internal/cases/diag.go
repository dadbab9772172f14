package cases

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/AndreyAkinshin/edgecheck/internal/compare"
)

// field is one labeled value of a verbose diagnostic.
type field struct {
	label string
	value string
}

// detail renders a verbose diagnostic: a highlighted headline followed by
// one labeled line (or block, for matrices) per field.
func (r *run) detail(headline string, fields ...field) string {
	var b strings.Builder
	b.WriteString(r.env.Style.Fail(headline))
	for _, f := range fields {
		b.WriteByte('\n')
		b.WriteString(r.env.Style.Labeled(f.label, f.value))
	}
	return b.String()
}

// mismatchAt points at the first sample of actual outside eps of expected,
// with its coordinates in a row-major grid w samples wide.
func mismatchAt(actual, expected []float32, w int, eps float64) field {
	i := compare.FirstMismatch(actual, expected, eps)
	if i < 0 {
		return field{"first mismatch", "none"}
	}
	got := "missing"
	if i < len(actual) {
		got = formatFloat(actual[i])
	}
	return field{"first mismatch", fmt.Sprintf("index %d (x=%d, y=%d): expected %s but was %s",
		i, i%w, i/w, formatFloat(expected[i]), got)}
}

func formatFloat(v float32) string {
	return strconv.FormatFloat(float64(v), 'g', -1, 32)
}

// fixtureProblem describes a fixture that exists but cannot be used.
func fixtureProblem(path string, err error) string {
	return fmt.Sprintf("Invalid fixture %s: %v", path, err)
}
