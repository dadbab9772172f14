// Package compare is the tolerance-aware equality every test case judges
// library output with.
//
// All functions are pure and safe for concurrent use.
package compare

import (
	"github.com/AndreyAkinshin/edgecheck/internal/pgm"
	"github.com/AndreyAkinshin/edgecheck/pkg/tolerance"
)

// Epsilon bands used across the suite.
const (
	// SmallEpsilon is for exact kernels: pixel access, thresholding, decoding.
	SmallEpsilon = 0.00001
	// LargeEpsilon is for kernels with accumulated floating error: scaling,
	// convolution, gradient magnitude.
	LargeEpsilon = 0.1
	// PixelTolerance is the allowed difference between integer pixels in
	// files written by the library.
	PixelTolerance = 1
)

// ScalarEqual reports |a-b| <= eps.
func ScalarEqual(a, b, eps float64) bool {
	return tolerance.Equal(b, a, eps)
}

// ArrayEqual reports whether the first len(expected) entries of actual are
// each within eps of expected. Extra trailing entries in actual are ignored;
// a shorter actual never matches.
func ArrayEqual(actual, expected []float32, eps float64) bool {
	if len(actual) < len(expected) {
		return false
	}
	for i := range expected {
		if !ScalarEqual(float64(actual[i]), float64(expected[i]), eps) {
			return false
		}
	}
	return true
}

// FirstMismatch returns the index of the first entry outside eps, or -1.
// A shorter actual mismatches at its length.
func FirstMismatch(actual, expected []float32, eps float64) int {
	for i := range expected {
		if i >= len(actual) || !ScalarEqual(float64(actual[i]), float64(expected[i]), eps) {
			return i
		}
	}
	return -1
}

// ImageFilesEqual decodes the expected P2 text and checks the actual text
// against it without wildcards. It returns "" on match, otherwise the first
// mismatch description.
func ImageFilesEqual(actualText, expectedText string, eps float64) string {
	expected, err := pgm.Parse(expectedText)
	if err != nil {
		return "Invalid expected file: " + err.Error()
	}
	return pgm.Check(actualText, pgm.ExpectImage(expected), eps, false)
}
