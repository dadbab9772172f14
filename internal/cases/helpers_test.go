package cases

import (
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/AndreyAkinshin/edgecheck/internal/config"
	"github.com/AndreyAkinshin/edgecheck/internal/native"
)

// fakeLib is an in-process stand-in for a loaded library module. Nil entry
// points behave like missing symbols.
type fakeLib struct {
	getPixelValue     native.GetPixelValueFunc
	applyThreshold    native.ApplyThresholdFunc
	scaleImage        native.ScaleImageFunc
	convolve          native.ConvolveFunc
	gradientMagnitude native.GradientMagnitudeFunc
	readImage         native.ReadImageFunc
	writeImage        native.WriteImageFunc
	main              native.MainFunc

	closed int
}

func missing(name string) error {
	return fmt.Errorf("fake.so does not export %s", name)
}

func (f *fakeLib) GetPixelValue() (native.GetPixelValueFunc, error) {
	if f.getPixelValue == nil {
		return nil, missing(native.SymGetPixelValue)
	}
	return f.getPixelValue, nil
}

func (f *fakeLib) ApplyThreshold() (native.ApplyThresholdFunc, error) {
	if f.applyThreshold == nil {
		return nil, missing(native.SymApplyThreshold)
	}
	return f.applyThreshold, nil
}

func (f *fakeLib) ScaleImage() (native.ScaleImageFunc, error) {
	if f.scaleImage == nil {
		return nil, missing(native.SymScaleImage)
	}
	return f.scaleImage, nil
}

func (f *fakeLib) Convolve() (native.ConvolveFunc, error) {
	if f.convolve == nil {
		return nil, missing(native.SymConvolve)
	}
	return f.convolve, nil
}

func (f *fakeLib) GradientMagnitude() (native.GradientMagnitudeFunc, error) {
	if f.gradientMagnitude == nil {
		return nil, missing(native.SymGradientMagnitude)
	}
	return f.gradientMagnitude, nil
}

func (f *fakeLib) ReadImage() (native.ReadImageFunc, error) {
	if f.readImage == nil {
		return nil, missing(native.SymReadImage)
	}
	return f.readImage, nil
}

func (f *fakeLib) WriteImage() (native.WriteImageFunc, error) {
	if f.writeImage == nil {
		return nil, missing(native.SymWriteImage)
	}
	return f.writeImage, nil
}

func (f *fakeLib) Main() (native.MainFunc, error) {
	if f.main == nil {
		return nil, missing(native.SymMain)
	}
	return f.main, nil
}

func (f *fakeLib) Close() error {
	f.closed++
	return nil
}

// fixtures is a temporary build/data/work tree.
type fixtures struct {
	t   *testing.T
	cfg *config.Config
}

func newFixtures(t *testing.T) *fixtures {
	t.Helper()
	root := t.TempDir()
	cfg := config.Default()
	cfg.BuildDir = filepath.Join(root, "bin")
	cfg.DataDir = filepath.Join(root, "data")
	cfg.WorkDir = filepath.Join(root, "work")
	cfg.Suite = filepath.Join(root, "suite.yaml")
	for _, dir := range []string{
		cfg.BuildDir,
		cfg.WorkDir,
		filepath.Join(cfg.DataDir, "input"),
		filepath.Join(cfg.DataDir, "expected"),
	} {
		require.NoError(t, os.MkdirAll(dir, 0755))
	}
	return &fixtures{t: t, cfg: cfg}
}

func (f *fixtures) write(path, content string) {
	f.t.Helper()
	require.NoError(f.t, os.WriteFile(path, []byte(content), 0644))
}

// artifact creates an empty <module>.so so the build check passes.
func (f *fixtures) artifact(module string) {
	f.write(f.cfg.ArtifactPath(module), "")
}

func (f *fixtures) inputMatrix(name string, w, h int, values ...float32) {
	f.write(f.cfg.InputPath(name, ".matrix"), encodeMatrix(w, h, values))
}

func (f *fixtures) expectedMatrix(name string, w, h int, values ...float32) {
	f.write(f.cfg.ExpectedPath(name, ".matrix"), encodeMatrix(w, h, values))
}

func (f *fixtures) inputPGM(name string, w, h int, pixels ...int) {
	f.write(f.cfg.InputPath(name, ".pgm"), encodePGM(w, h, pixels))
}

func (f *fixtures) expectedPGM(name string, w, h int, pixels ...int) {
	f.write(f.cfg.ExpectedPath(name, ".pgm"), encodePGM(w, h, pixels))
}

// env returns an Env whose opener hands out lib for every artifact.
func (f *fixtures) env(lib *fakeLib) Env {
	return Env{
		Config: f.cfg,
		Open: func(string) (Library, error) {
			return lib, nil
		},
	}
}

func (f *fixtures) outputExists(name string) bool {
	_, err := os.Stat(f.cfg.OutputPath(name))
	return !errors.Is(err, os.ErrNotExist)
}

func encodeMatrix(w, h int, values []float32) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# test fixture\n%d %d\n", w, h)
	for i, v := range values {
		if i > 0 {
			b.WriteByte(' ')
		}
		fmt.Fprintf(&b, "%g", v)
	}
	b.WriteByte('\n')
	return b.String()
}

func encodePGM(w, h int, pixels []int) string {
	var b strings.Builder
	fmt.Fprintf(&b, "P2\n%d %d\n255\n", w, h)
	for i, p := range pixels {
		if i > 0 {
			b.WriteByte(' ')
		}
		fmt.Fprintf(&b, "%d", p)
	}
	b.WriteByte('\n')
	return b.String()
}

// writePGMFloats is a write_image_to_file that rounds samples to integers.
func writePGMFloats(img []float32, w, h int, path string) {
	pixels := make([]int, w*h)
	for i := range pixels {
		pixels[i] = int(math.Round(float64(img[i])))
	}
	_ = os.WriteFile(path, []byte(encodePGM(w, h, pixels)), 0644)
}
