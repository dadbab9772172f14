package cases

import (
	"fmt"
	"os"
	"strconv"

	"github.com/AndreyAkinshin/edgecheck/internal/compare"
	"github.com/AndreyAkinshin/edgecheck/internal/logging"
	"github.com/AndreyAkinshin/edgecheck/internal/matrix"
	"github.com/AndreyAkinshin/edgecheck/internal/pgm"
)

// Run executes the case against the library artifact of its module and
// returns "" on success or a diagnostic.
//
// A missing artifact is reported as "Failed to build <module>.". Every file
// the library writes is removed before Run returns.
func (c *Case) Run(env Env) string {
	artifact := env.Config.ArtifactPath(c.Module)
	if !fileExists(artifact) {
		return fmt.Sprintf("Failed to build %s.", c.Module)
	}

	lib, err := env.open(artifact)
	if err != nil {
		return err.Error()
	}
	defer func() {
		if err := lib.Close(); err != nil {
			logging.Logger().Debug("close library", "path", artifact, "error", err)
		}
	}()

	r := &run{env: env, lib: lib}
	switch v := c.Variant.(type) {
	case PixelValue:
		return r.pixelValue(v)
	case ApplyThreshold:
		return r.applyThreshold(v)
	case ScaleImage:
		return r.scaleImage(v)
	case Convolve:
		return r.convolve(v)
	case GradientMagnitude:
		return r.gradientMagnitude(v)
	case ReadImage:
		return r.readImage(v)
	case ReadBrokenImage:
		return r.readBrokenImage(v)
	case WriteImage:
		return r.writeImage(v)
	case Pipeline:
		return r.pipeline(v)
	default:
		return fmt.Sprintf("Unsupported case kind %T.", c.Variant)
	}
}

// run carries the state of one Case.Run invocation.
type run struct {
	env Env
	lib Library
}

func (r *run) loadMatrix(path string) (*matrix.Matrix, string) {
	m, err := matrix.FromFile(path)
	if err != nil {
		return nil, fixtureProblem(path, err)
	}
	return m, ""
}

func (r *run) pixelValue(v PixelValue) string {
	fn, err := r.lib.GetPixelValue()
	if err != nil {
		return err.Error()
	}
	img, problem := r.loadMatrix(r.env.Config.InputPath(v.Input, ".matrix"))
	if problem != "" {
		return problem
	}

	for _, p := range v.Points {
		actual := fn(img.Values, img.W, img.H, p.X, p.Y)
		if compare.ScalarEqual(float64(actual), float64(p.Want), compare.SmallEpsilon) {
			continue
		}
		if r.env.Verbose {
			return r.detail("Incorrect result after calling get_pixel_value with:",
				field{"x", strconv.Itoa(p.X)},
				field{"y", strconv.Itoa(p.Y)},
				field{"img", img.String()},
				field{"result", formatFloat(actual)},
				field{"expected", formatFloat(p.Want)},
			)
		}
		return r.env.Style.Fail("Incorrect result for get_pixel_value:") +
			fmt.Sprintf(" expected %s but was %s.", formatFloat(p.Want), formatFloat(actual))
	}
	return ""
}

func (r *run) applyThreshold(v ApplyThreshold) string {
	fn, err := r.lib.ApplyThreshold()
	if err != nil {
		return err.Error()
	}
	img, problem := r.loadMatrix(r.env.Config.InputPath(v.Input, ".matrix"))
	if problem != "" {
		return problem
	}
	expected, problem := r.loadMatrix(r.env.Config.ExpectedPath(v.Expected, ".matrix"))
	if problem != "" {
		return problem
	}

	result := img.Clone()
	fn(result.Values, result.W, result.H, v.Threshold)

	if compare.ArrayEqual(result.Values, expected.Values, compare.SmallEpsilon) {
		return ""
	}
	if r.env.Verbose {
		return r.detail("Incorrect result after calling apply_threshold with:",
			field{"T", strconv.Itoa(v.Threshold)},
			field{"img", img.String()},
			field{"result", result.String()},
			mismatchAt(result.Values, expected.Values, expected.W, compare.SmallEpsilon),
			field{"expected", expected.String()},
		)
	}
	return r.env.Style.Fail("Incorrect result for apply_threshold.")
}

func (r *run) scaleImage(v ScaleImage) string {
	fn, err := r.lib.ScaleImage()
	if err != nil {
		return err.Error()
	}
	img, problem := r.loadMatrix(r.env.Config.InputPath(v.Input, ".matrix"))
	if problem != "" {
		return problem
	}
	expected, problem := r.loadMatrix(r.env.Config.ExpectedPath(v.Expected, ".matrix"))
	if problem != "" {
		return problem
	}

	result := matrix.Zeros(img.W, img.H)
	fn(result.Values, img.Values, img.W, img.H)

	if compare.ArrayEqual(result.Values, expected.Values, compare.LargeEpsilon) {
		return ""
	}
	if r.env.Verbose {
		return r.detail("Incorrect result after calling scale_image with:",
			field{"img", img.String()},
			field{"result", result.String()},
			mismatchAt(result.Values, expected.Values, expected.W, compare.LargeEpsilon),
			field{"expected", expected.String()},
		)
	}
	return r.env.Style.Fail("Incorrect result for scale_image.")
}

func (r *run) convolve(v Convolve) string {
	fn, err := r.lib.Convolve()
	if err != nil {
		return err.Error()
	}
	img, problem := r.loadMatrix(r.env.Config.InputPath(v.Input, ".matrix"))
	if problem != "" {
		return problem
	}
	expected, problem := r.loadMatrix(r.env.Config.ExpectedPath(v.Expected, ".matrix"))
	if problem != "" {
		return problem
	}
	kernel, problem := r.loadMatrix(r.env.Config.InputPath(v.Kernel, ".matrix"))
	if problem != "" {
		return problem
	}

	result := matrix.Zeros(img.W, img.H)
	fn(result.Values, img.Values, img.W, img.H, kernel.Values, kernel.W, kernel.H)

	if compare.ArrayEqual(result.Values, expected.Values, compare.LargeEpsilon) {
		return ""
	}
	if r.env.Verbose {
		return r.detail("Incorrect result after calling convolve with:",
			field{"img", img.String()},
			field{"kernel", kernel.String()},
			field{"result", matrix.Format(result.Values, expected.W, expected.H)},
			mismatchAt(result.Values, expected.Values, expected.W, compare.LargeEpsilon),
			field{"expected", expected.String()},
		)
	}
	return r.env.Style.Fail("Incorrect result for convolve.")
}

func (r *run) gradientMagnitude(v GradientMagnitude) string {
	fn, err := r.lib.GradientMagnitude()
	if err != nil {
		return err.Error()
	}
	expected, problem := r.loadMatrix(r.env.Config.ExpectedPath(v.Expected, ".matrix"))
	if problem != "" {
		return problem
	}
	dxPath := r.env.Config.InputPath(v.DX, ".matrix")
	dx, problem := r.loadMatrix(dxPath)
	if problem != "" {
		return problem
	}
	dyPath := r.env.Config.InputPath(v.DY, ".matrix")
	dy, problem := r.loadMatrix(dyPath)
	if problem != "" {
		return problem
	}
	// The library reads w*h samples from both derivative buffers.
	if dx.Len() < expected.Len() {
		return fixtureProblem(dxPath, fmt.Errorf("%d values, want at least %d", dx.Len(), expected.Len()))
	}
	if dy.Len() < expected.Len() {
		return fixtureProblem(dyPath, fmt.Errorf("%d values, want at least %d", dy.Len(), expected.Len()))
	}

	result := matrix.Zeros(expected.W, expected.H)
	fn(result.Values, dx.Values, dy.Values, expected.W, expected.H)

	if compare.ArrayEqual(result.Values, expected.Values, compare.LargeEpsilon) {
		return ""
	}
	if r.env.Verbose {
		return r.detail("Incorrect result after calling gradient_magnitude with:",
			field{"d_x", dx.String()},
			field{"d_y", dy.String()},
			field{"result", result.String()},
			mismatchAt(result.Values, expected.Values, expected.W, compare.LargeEpsilon),
			field{"expected", expected.String()},
		)
	}
	return r.env.Style.Fail("Incorrect result for gradient_magnitude.")
}

func (r *run) readImage(v ReadImage) string {
	fn, err := r.lib.ReadImage()
	if err != nil {
		return err.Error()
	}
	inputPath := r.env.Config.InputPath(v.Input, ".pgm")
	expected, problem := r.loadMatrix(r.env.Config.ExpectedPath(v.Expected, ".matrix"))
	if problem != "" {
		return problem
	}

	pixels, w, h, ok := fn(inputPath)
	if !ok {
		return r.env.Style.Fail("Read image function returned NULL for a valid image file.")
	}
	if w != expected.W {
		return fmt.Sprintf("Incorrect width (expected %d but was %d).", expected.W, w)
	}
	if h != expected.H {
		return fmt.Sprintf("Incorrect height (expected %d but was %d).", expected.H, h)
	}

	if compare.ArrayEqual(pixels, expected.Values, compare.SmallEpsilon) {
		return ""
	}
	if r.env.Verbose {
		return r.detail(fmt.Sprintf("Incorrect result after reading image %s:", inputPath),
			field{"result", matrix.Format(pixels, expected.W, expected.H)},
			mismatchAt(pixels, expected.Values, expected.W, compare.SmallEpsilon),
			field{"expected", expected.String()},
		)
	}
	return r.env.Style.Fail("Incorrect result for read_image_from_file.")
}

func (r *run) readBrokenImage(v ReadBrokenImage) string {
	fn, err := r.lib.ReadImage()
	if err != nil {
		return err.Error()
	}
	if _, _, _, ok := fn(r.env.Config.InputPath(v.Input, ".pgm")); !ok {
		return ""
	}
	return r.env.Style.Fail("Read image function did not return NULL for an invalid image file.")
}

func (r *run) writeImage(v WriteImage) string {
	fn, err := r.lib.WriteImage()
	if err != nil {
		return err.Error()
	}
	img, problem := r.loadMatrix(r.env.Config.InputPath(v.Input, ".matrix"))
	if problem != "" {
		return problem
	}
	expectedPath := r.env.Config.ExpectedPath(v.Expected, ".pgm")
	expected, err := os.ReadFile(expectedPath)
	if err != nil {
		return fixtureProblem(expectedPath, err)
	}

	out := r.env.Config.OutputPath(v.Filename + ".pgm")
	removeOutputs(out)
	defer removeOutputs(out)

	fn(img.Values, img.W, img.H, out)

	actual, err := os.ReadFile(out)
	if err != nil {
		return r.env.Style.Fail("No output file written.")
	}
	return compare.ImageFilesEqual(string(actual), string(expected), compare.PixelTolerance)
}

func (r *run) pipeline(v Pipeline) string {
	fn, err := r.lib.Main()
	if err != nil {
		return err.Error()
	}
	cfg := r.env.Config

	outputs := make([]string, len(PipelineOutputs))
	for i, name := range PipelineOutputs {
		outputs[i] = cfg.OutputPath(name)
	}
	removeOutputs(outputs...)
	defer removeOutputs(outputs...)

	inputPath := cfg.InputPath(v.Input, ".pgm")
	rc := fn([]string{"main", "-T", strconv.Itoa(v.Threshold), inputPath})
	logging.Logger().Debug("pipeline returned", "input", v.Input, "code", rc)

	goldens := []struct{ out, golden string }{
		{OutBlur, "blur_" + v.Input},
		{OutDX, "d_x_" + v.Input},
		{OutDY, "d_y_" + v.Input},
		{OutGM, "gm_" + v.Input},
	}
	for _, g := range goldens {
		if msg := r.checkArtifact(g.out, cfg.ExpectedPath(g.golden, ".pgm")); msg != "" {
			return msg
		}
	}

	gm, err := pgm.ReadFile(cfg.OutputPath(OutGM))
	if err != nil {
		return r.env.Style.Fail("Error in "+OutGM+".") + " " + err.Error()
	}
	rangePath := minMaxPath(cfg, v.Input)
	lo, hi, err := pgm.ReadMinMax(rangePath)
	if err != nil {
		return fixtureProblem(rangePath, err)
	}
	if lo > hi {
		return fixtureProblem(rangePath, fmt.Errorf("min %g is greater than max %g", lo, hi))
	}

	edges, err := os.ReadFile(cfg.OutputPath(OutEdges))
	if err != nil {
		return r.env.Style.Fail(fmt.Sprintf("No %s file written.", OutEdges))
	}
	exp := DeriveEdges(gm, lo, hi, v.Threshold)
	if msg := pgm.Check(string(edges), exp, 0, true); msg != "" {
		return r.env.Style.Fail("Error in "+OutEdges+".") + " " + msg
	}
	return ""
}

// checkArtifact compares one pipeline output against its golden file.
func (r *run) checkArtifact(name, goldenPath string) string {
	actual, err := os.ReadFile(r.env.Config.OutputPath(name))
	if err != nil {
		return r.env.Style.Fail(fmt.Sprintf("No %s file written.", name))
	}
	golden, err := os.ReadFile(goldenPath)
	if err != nil {
		return fixtureProblem(goldenPath, err)
	}
	if msg := compare.ImageFilesEqual(string(actual), string(golden), compare.PixelTolerance); msg != "" {
		return r.env.Style.Fail("Error in "+name+".") + " " + msg
	}
	return ""
}

func removeOutputs(paths ...string) {
	for _, p := range paths {
		if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
			logging.Logger().Debug("remove output", "path", p, "error", err)
		}
	}
}
