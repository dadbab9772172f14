// Package cases defines the conformance cases run against the native image
// library and the single dispatch that executes one of them.
package cases

import (
	"os"
	"strconv"
	"strings"

	"github.com/AndreyAkinshin/edgecheck/internal/config"
	"github.com/AndreyAkinshin/edgecheck/internal/native"
	"github.com/AndreyAkinshin/edgecheck/internal/output"
)

// Library modules, one shared object each.
const (
	ModuleImage       = "image"
	ModuleConvolution = "convolution"
	ModuleDerivation  = "derivation"
	ModuleMain        = "main"
)

// Case is one registered conformance case.
type Case struct {
	// Type is the category label shown in IDs and list headings.
	Type string
	// Module names the library artifact (<BuildDir>/<Module>.so).
	Module string
	// Function is the library entry point under test.
	Function string
	// Name is the display name.
	Name string
	// Variant holds the kind-specific parameters.
	Variant Variant
	// Index is the position in the suite file. Sandbox children locate
	// their case by it.
	Index int
}

// ID returns the display key "type.function.name" used for output and filtering.
func (c *Case) ID() string {
	return c.Type + "." + c.Function + "." + c.Name
}

// Variant is the closed set of case kinds.
type Variant interface {
	// Kind returns the suite-file kind name.
	Kind() string
	isVariant()
}

// Point is a pixel coordinate with the value get_pixel_value should return.
type Point struct {
	X, Y int
	Want float32
}

// PixelValue checks get_pixel_value at a list of coordinates.
type PixelValue struct {
	Input  string
	Points []Point
}

// ApplyThreshold checks in-place thresholding.
type ApplyThreshold struct {
	Input     string
	Expected  string
	Threshold int
}

// ScaleImage checks rescaling to the 0..255 range.
type ScaleImage struct {
	Input    string
	Expected string
}

// Convolve checks 2D convolution with a kernel fixture.
type Convolve struct {
	Input    string
	Expected string
	Kernel   string
}

// GradientMagnitude combines two derivative fixtures.
type GradientMagnitude struct {
	Expected string
	DX       string
	DY       string
}

// ReadImage decodes a valid PGM file through the library.
type ReadImage struct {
	Input    string
	Expected string
}

// ReadBrokenImage expects the library to reject a malformed PGM file.
type ReadBrokenImage struct {
	Input string
}

// WriteImage checks the PGM file the library writes.
type WriteImage struct {
	Input    string
	Expected string
	// Filename is the output file name without the .pgm extension.
	Filename string
}

// Pipeline drives the library's main entry point end to end.
type Pipeline struct {
	Input     string
	Threshold int
}

func (PixelValue) Kind() string        { return "pixel_value" }
func (ApplyThreshold) Kind() string    { return "apply_threshold" }
func (ScaleImage) Kind() string        { return "scale_image" }
func (Convolve) Kind() string          { return "convolve" }
func (GradientMagnitude) Kind() string { return "gradient_magnitude" }
func (ReadImage) Kind() string         { return "read_image" }
func (ReadBrokenImage) Kind() string   { return "read_broken_image" }
func (WriteImage) Kind() string        { return "write_image" }
func (Pipeline) Kind() string          { return "pipeline" }

func (PixelValue) isVariant()        {}
func (ApplyThreshold) isVariant()    {}
func (ScaleImage) isVariant()        {}
func (Convolve) isVariant()          {}
func (GradientMagnitude) isVariant() {}
func (ReadImage) isVariant()         {}
func (ReadBrokenImage) isVariant()   {}
func (WriteImage) isVariant()        {}
func (Pipeline) isVariant()          {}

// Pipeline output files, written by the library into the working directory.
const (
	OutBlur  = "out_blur.pgm"
	OutDX    = "out_d_x.pgm"
	OutDY    = "out_d_y.pgm"
	OutGM    = "out_gm.pgm"
	OutEdges = "out_edges.pgm"
)

// PipelineOutputs lists the pipeline output files in production order.
var PipelineOutputs = []string{OutBlur, OutDX, OutDY, OutGM, OutEdges}

// New builds a case for v, filling in module, function and display name.
// An empty name falls back to the input fixture name; pipelines fall back
// to "<input>-<threshold>".
func New(testType, name string, v Variant) *Case {
	module, function := entryPoint(v)
	if name == "" {
		name = defaultName(v)
	}
	return &Case{
		Type:     testType,
		Module:   module,
		Function: function,
		Name:     name,
		Variant:  v,
	}
}

func entryPoint(v Variant) (module, function string) {
	switch v.(type) {
	case PixelValue:
		return ModuleImage, native.SymGetPixelValue
	case ApplyThreshold:
		return ModuleImage, native.SymApplyThreshold
	case ScaleImage:
		return ModuleImage, native.SymScaleImage
	case ReadImage, ReadBrokenImage:
		return ModuleImage, native.SymReadImage
	case WriteImage:
		return ModuleImage, native.SymWriteImage
	case Convolve:
		return ModuleConvolution, native.SymConvolve
	case GradientMagnitude:
		return ModuleDerivation, native.SymGradientMagnitude
	case Pipeline:
		return ModuleMain, native.SymMain
	}
	return "", ""
}

func defaultName(v Variant) string {
	switch v := v.(type) {
	case PixelValue:
		return baseName(v.Input)
	case ApplyThreshold:
		return baseName(v.Input)
	case ScaleImage:
		return baseName(v.Input)
	case Convolve:
		return baseName(v.Input)
	case ReadImage:
		return baseName(v.Input)
	case ReadBrokenImage:
		return baseName(v.Input)
	case WriteImage:
		return baseName(v.Input)
	case Pipeline:
		return baseName(v.Input) + "-" + strconv.Itoa(v.Threshold)
	}
	return ""
}

// baseName strips everything from the first dot.
func baseName(fixture string) string {
	name, _, _ := strings.Cut(fixture, ".")
	return name
}

// Fixtures returns every fixture path the case reads, in the order the case
// reads them.
func (c *Case) Fixtures(cfg *config.Config) []string {
	switch v := c.Variant.(type) {
	case PixelValue:
		return []string{cfg.InputPath(v.Input, ".matrix")}
	case ApplyThreshold:
		return []string{cfg.InputPath(v.Input, ".matrix"), cfg.ExpectedPath(v.Expected, ".matrix")}
	case ScaleImage:
		return []string{cfg.InputPath(v.Input, ".matrix"), cfg.ExpectedPath(v.Expected, ".matrix")}
	case Convolve:
		return []string{
			cfg.InputPath(v.Input, ".matrix"),
			cfg.ExpectedPath(v.Expected, ".matrix"),
			cfg.InputPath(v.Kernel, ".matrix"),
		}
	case GradientMagnitude:
		return []string{
			cfg.ExpectedPath(v.Expected, ".matrix"),
			cfg.InputPath(v.DX, ".matrix"),
			cfg.InputPath(v.DY, ".matrix"),
		}
	case ReadImage:
		return []string{cfg.InputPath(v.Input, ".pgm"), cfg.ExpectedPath(v.Expected, ".matrix")}
	case ReadBrokenImage:
		return []string{cfg.InputPath(v.Input, ".pgm")}
	case WriteImage:
		return []string{cfg.InputPath(v.Input, ".matrix"), cfg.ExpectedPath(v.Expected, ".pgm")}
	case Pipeline:
		return []string{
			cfg.InputPath(v.Input, ".pgm"),
			cfg.ExpectedPath("blur_"+v.Input, ".pgm"),
			cfg.ExpectedPath("d_x_"+v.Input, ".pgm"),
			cfg.ExpectedPath("d_y_"+v.Input, ".pgm"),
			cfg.ExpectedPath("gm_"+v.Input, ".pgm"),
			cfg.ExpectedPath("edges_"+v.Input, ".pgm"),
			minMaxPath(cfg, v.Input),
		}
	}
	return nil
}

func minMaxPath(cfg *config.Config, input string) string {
	return cfg.ExpectedPath(input, ".minmax")
}

// Library is the set of entry points a case may bind. *native.Library
// implements it; tests substitute in-process fakes.
type Library interface {
	GetPixelValue() (native.GetPixelValueFunc, error)
	ApplyThreshold() (native.ApplyThresholdFunc, error)
	ScaleImage() (native.ScaleImageFunc, error)
	Convolve() (native.ConvolveFunc, error)
	GradientMagnitude() (native.GradientMagnitudeFunc, error)
	ReadImage() (native.ReadImageFunc, error)
	WriteImage() (native.WriteImageFunc, error)
	Main() (native.MainFunc, error)
	Close() error
}

// Opener loads the library artifact at path.
type Opener func(path string) (Library, error)

// OpenNative loads a shared object with the dynamic loader.
func OpenNative(path string) (Library, error) {
	lib, err := native.Open(path)
	if err != nil {
		return nil, err
	}
	return lib, nil
}

// Env is everything a case needs to run besides its own parameters.
type Env struct {
	Config *config.Config
	// Verbose selects multi-line diagnostics with inputs and results.
	Verbose bool
	Style   output.Style
	// Open loads library artifacts; nil means OpenNative.
	Open Opener
}

func (e Env) open(path string) (Library, error) {
	if e.Open != nil {
		return e.Open(path)
	}
	return OpenNative(path)
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
