// Package tolerance provides the floating-point closeness predicate edgecheck
// judges library output with. It has no dependencies so that golden-file tests
// outside the harness can apply the same rule.
package tolerance

import "math"

// Equal reports whether |expected-actual| <= tol.
// NaN never matches; infinities only match infinities of the same sign.
func Equal(expected, actual, tol float64) bool {
	if math.IsInf(expected, 0) || math.IsInf(actual, 0) {
		return expected == actual
	}
	if math.IsNaN(expected) || math.IsNaN(actual) {
		return false
	}
	return math.Abs(expected-actual) <= tol
}
