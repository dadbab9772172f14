package cases

import (
	"math"

	"github.com/AndreyAkinshin/edgecheck/internal/pgm"
)

// DeriveEdges computes the expected thresholded edge image from the gradient
// magnitude image the library produced.
//
// gm holds magnitudes quantized to 0..255 from the float range [lo, hi].
// Each pixel is mapped back with unscale(v) = v/255*(hi-lo)+lo. Pixels whose
// unscaled value lies within max(unscale(1), 1) of the threshold may land on
// either side after quantization and become wildcards; the rest must be 0
// below the threshold and 255 at or above it.
func DeriveEdges(gm *pgm.Image, lo, hi float64, threshold int) pgm.Expectation {
	span := hi - lo
	unscale := func(v float64) float64 {
		return v/pgm.MaxValue*span + lo
	}
	tol := math.Max(unscale(1), 1)
	t := float64(threshold)

	pixels := make([]pgm.Expected, len(gm.Pixels))
	for i, v := range gm.Pixels {
		u := unscale(float64(v))
		switch {
		case math.Abs(u-t) <= tol:
			pixels[i] = pgm.Any()
		case u < t:
			pixels[i] = pgm.Exact(0)
		default:
			pixels[i] = pgm.Exact(pgm.MaxValue)
		}
	}
	return pgm.Expectation{W: gm.W, H: gm.H, Pixels: pixels}
}
