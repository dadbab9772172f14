// Package integration runs the shipped sample suite end to end.
package integration

import (
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/AndreyAkinshin/edgecheck/internal/cases"
	"github.com/AndreyAkinshin/edgecheck/internal/config"
	"github.com/AndreyAkinshin/edgecheck/internal/native"
)

var (
	repoRootOnce sync.Once
	repoRootPath string
)

// repoRoot returns the module root, where edgecheck.yaml and tests/ live.
func repoRoot() string {
	repoRootOnce.Do(func() {
		_, filename, _, _ := runtime.Caller(0)
		repoRootPath = filepath.Join(filepath.Dir(filename), "..", "..")
	})
	return repoRootPath
}

// sampleConfig loads the repository configuration and points the build and
// work directories at fresh temp dirs. Empty artifacts are created for the
// given modules so that the presence check passes.
func sampleConfig(t *testing.T, modules ...string) *config.Config {
	t.Helper()
	root := repoRoot()
	cfg, err := config.LoadOptional(filepath.Join(root, config.DefaultConfigFile), true)
	if err != nil {
		t.Fatalf("failed to load repository configuration: %v", err)
	}
	if err := cfg.Resolve(root); err != nil {
		t.Fatalf("failed to resolve configuration: %v", err)
	}
	cfg.BuildDir = t.TempDir()
	cfg.WorkDir = t.TempDir()
	for _, m := range modules {
		if err := os.WriteFile(cfg.ArtifactPath(m), nil, 0644); err != nil {
			t.Fatal(err)
		}
	}
	return cfg
}

func allModules() []string {
	return []string{cases.ModuleImage, cases.ModuleConvolution, cases.ModuleDerivation, cases.ModuleMain}
}

func openReference(lib *referenceLib) cases.Opener {
	return func(string) (cases.Library, error) { return lib, nil }
}

var errNoMain = errors.New("reference library has no main")

// referenceLib is a straightforward Go rendition of the library contract,
// used to check that the sample fixtures agree with it.
type referenceLib struct {
	// scaleBias is added to every scaled pixel to simulate a broken build.
	scaleBias float32
}

func (l *referenceLib) GetPixelValue() (native.GetPixelValueFunc, error) {
	return mirrored, nil
}

func (l *referenceLib) ApplyThreshold() (native.ApplyThresholdFunc, error) {
	return func(img []float32, w, h, threshold int) {
		for i := range img[:w*h] {
			if img[i] > float32(threshold) {
				img[i] = 255
			} else {
				img[i] = 0
			}
		}
	}, nil
}

func (l *referenceLib) ScaleImage() (native.ScaleImageFunc, error) {
	return func(result, img []float32, w, h int) {
		lo, hi := img[0], img[0]
		for _, v := range img[:w*h] {
			lo = min(lo, v)
			hi = max(hi, v)
		}
		for i, v := range img[:w*h] {
			if hi == lo {
				result[i] = 0
				continue
			}
			result[i] = (v-lo)/(hi-lo)*255 + l.scaleBias
		}
	}, nil
}

func (l *referenceLib) Convolve() (native.ConvolveFunc, error) {
	return func(result, img []float32, w, h int, kernel []float32, kw, kh int) {
		a, b := kw/2, kh/2
		for y := 0; y < h; y++ {
			for x := 0; x < w; x++ {
				var sum float32
				for j := 0; j < kh; j++ {
					for i := 0; i < kw; i++ {
						sum += mirrored(img, w, h, x-a+i, y-b+j) * kernel[j*kw+i]
					}
				}
				result[y*w+x] = sum
			}
		}
	}, nil
}

func (l *referenceLib) GradientMagnitude() (native.GradientMagnitudeFunc, error) {
	return func(result, dx, dy []float32, w, h int) {
		for i := range result[:w*h] {
			result[i] = float32(math.Hypot(float64(dx[i]), float64(dy[i])))
		}
	}, nil
}

func (l *referenceLib) ReadImage() (native.ReadImageFunc, error) {
	return func(path string) ([]float32, int, int, bool) {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, 0, 0, false
		}
		tokens := strings.Fields(string(data))
		if len(tokens) < 4 || tokens[0] != "P2" || tokens[3] != "255" {
			return nil, 0, 0, false
		}
		w, errW := strconv.Atoi(tokens[1])
		h, errH := strconv.Atoi(tokens[2])
		if errW != nil || errH != nil || w <= 0 || h <= 0 || len(tokens) < 4+w*h {
			return nil, 0, 0, false
		}
		pixels := make([]float32, w*h)
		for i := range pixels {
			v, err := strconv.Atoi(tokens[4+i])
			if err != nil || v < 0 || v > 255 {
				return nil, 0, 0, false
			}
			pixels[i] = float32(v)
		}
		return pixels, w, h, true
	}, nil
}

func (l *referenceLib) WriteImage() (native.WriteImageFunc, error) {
	return func(img []float32, w, h int, path string) {
		var sb strings.Builder
		fmt.Fprintf(&sb, "P2\n%d %d\n255\n", w, h)
		for i, v := range img[:w*h] {
			if i%w == 0 && i != 0 {
				sb.WriteString("\n")
			}
			fmt.Fprintf(&sb, "%d ", int(v))
		}
		_ = os.WriteFile(path, []byte(sb.String()), 0644)
	}, nil
}

func (l *referenceLib) Main() (native.MainFunc, error) {
	return nil, errNoMain
}

func (l *referenceLib) Close() error { return nil }

// mirrored reads a pixel with mirror padding outside the image.
func mirrored(img []float32, w, h, x, y int) float32 {
	if x < 0 {
		x = -x - 1
	} else if x >= w {
		x = 2*w - x - 1
	}
	if y < 0 {
		y = -y - 1
	} else if y >= h {
		y = 2*h - y - 1
	}
	return img[y*w+x]
}
