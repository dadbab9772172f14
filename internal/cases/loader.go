package cases

import (
	"encoding/json"
	"fmt"
	"os"
	"regexp"

	"github.com/AndreyAkinshin/edgecheck/internal/config"
	"github.com/AndreyAkinshin/edgecheck/internal/errors"
	"github.com/AndreyAkinshin/edgecheck/internal/logging"
	"github.com/AndreyAkinshin/edgecheck/internal/pgm"
	"github.com/AndreyAkinshin/edgecheck/internal/schema"
)

// suiteFile is the decoded registration file.
type suiteFile struct {
	Tests []entry `json:"tests"`
}

// entry is one registration, the union of every kind's parameters.
type entry struct {
	Kind      string      `json:"kind"`
	Type      string      `json:"type"`
	Name      string      `json:"name"`
	Input     string      `json:"input"`
	Expected  string      `json:"expected"`
	Kernel    string      `json:"kernel"`
	DX        string      `json:"dx"`
	DY        string      `json:"dy"`
	Filename  string      `json:"filename"`
	Threshold int         `json:"threshold"`
	Points    [][]float64 `json:"points"`
}

func (e entry) variant() (Variant, error) {
	switch e.Kind {
	case "pixel_value":
		points := make([]Point, len(e.Points))
		for i, p := range e.Points {
			points[i] = Point{X: int(p[0]), Y: int(p[1]), Want: float32(p[2])}
		}
		return PixelValue{Input: e.Input, Points: points}, nil
	case "apply_threshold":
		return ApplyThreshold{Input: e.Input, Expected: e.Expected, Threshold: e.Threshold}, nil
	case "scale_image":
		return ScaleImage{Input: e.Input, Expected: e.Expected}, nil
	case "convolve":
		return Convolve{Input: e.Input, Expected: e.Expected, Kernel: e.Kernel}, nil
	case "gradient_magnitude":
		return GradientMagnitude{Expected: e.Expected, DX: e.DX, DY: e.DY}, nil
	case "read_image":
		return ReadImage{Input: e.Input, Expected: e.Expected}, nil
	case "read_broken_image":
		return ReadBrokenImage{Input: e.Input}, nil
	case "write_image":
		return WriteImage{Input: e.Input, Expected: e.Expected, Filename: e.Filename}, nil
	case "pipeline":
		return Pipeline{Input: e.Input, Threshold: e.Threshold}, nil
	}
	return nil, fmt.Errorf("unknown case kind %q", e.Kind)
}

// Load reads the suite file named by cfg.Suite and checks that every
// referenced fixture exists.
func Load(cfg *config.Config) ([]*Case, error) {
	data, err := os.ReadFile(cfg.Suite)
	if err != nil {
		return nil, errors.WrapKind(errors.KindConfig, err, "failed to read suite file")
	}
	cases, err := Decode(data, cfg)
	if err != nil {
		return nil, err
	}
	logging.Logger().Debug("suite loaded", "path", cfg.Suite, "cases", len(cases))
	return cases, nil
}

// Decode builds cases from suite YAML. The document is validated against
// the suite schema first; fixture integrity is checked afterwards and a
// broken fixture aborts loading with a KindFixture error.
func Decode(data []byte, cfg *config.Config) ([]*Case, error) {
	jsonData, err := schema.ValidateSuiteYAML(data)
	if err != nil {
		return nil, errors.WrapKind(errors.KindConfig, err, "invalid suite file")
	}

	var file suiteFile
	if err := json.Unmarshal(jsonData, &file); err != nil {
		return nil, errors.WrapKind(errors.KindConfig, err, "invalid suite file")
	}

	cases := make([]*Case, 0, len(file.Tests))
	for i, e := range file.Tests {
		v, err := e.variant()
		if err != nil {
			return nil, errors.WrapKind(errors.KindConfig, err, fmt.Sprintf("tests[%d]", i))
		}
		c := New(e.Type, e.Name, v)
		c.Index = i
		if err := CheckFixtures(c, cfg); err != nil {
			return nil, err
		}
		cases = append(cases, c)
	}
	return cases, nil
}

// CheckFixtures verifies that every fixture of c exists. Pipelines also need
// a well-formed range file with min <= max.
func CheckFixtures(c *Case, cfg *config.Config) error {
	for _, path := range c.Fixtures(cfg) {
		if _, err := os.Stat(path); err != nil {
			return errors.Fixture(c.ID(), "missing fixture "+path, err)
		}
	}
	if p, ok := c.Variant.(Pipeline); ok {
		path := minMaxPath(cfg, p.Input)
		lo, hi, err := pgm.ReadMinMax(path)
		if err != nil {
			return errors.Fixture(c.ID(), "invalid range fixture", err)
		}
		if lo > hi {
			return errors.Fixture(c.ID(), fmt.Sprintf("range fixture %s has min %g greater than max %g", path, lo, hi), nil)
		}
	}
	return nil
}

// Filter returns the cases whose ID matches pattern. An empty pattern keeps
// every case. Registration order is preserved.
func Filter(cases []*Case, pattern string) ([]*Case, error) {
	if pattern == "" {
		return cases, nil
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, errors.WrapKind(errors.KindConfig, err, fmt.Sprintf("invalid filter %q", pattern))
	}
	var matched []*Case
	for _, c := range cases {
		if re.MatchString(c.ID()) {
			matched = append(matched, c)
		}
	}
	return matched, nil
}

// Group partitions cases by Type, keeping first-appearance order of types
// and registration order within each type.
func Group(cases []*Case) (types []string, byType map[string][]*Case) {
	byType = make(map[string][]*Case)
	for _, c := range cases {
		if _, seen := byType[c.Type]; !seen {
			types = append(types, c.Type)
		}
		byType[c.Type] = append(byType[c.Type], c)
	}
	return types, byType
}
