// Package scenario loads computation inputs from YAML or JSON files
package scenario

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/mrcode/promille/internal/models"
)

// Format of a scenario file
type Format string

const (
	FormatYAML Format = "yaml"
	FormatJSON Format = "json"
)

// Measurement is an optional measured BAC to validate against the curves
type Measurement struct {
	Time   time.Time                `json:"time" yaml:"time"`
	BAC    float64                  `json:"bac" yaml:"bac"`
	Method models.MeasurementMethod `json:"method" yaml:"method"`
	Model  models.ModelID           `json:"model,omitempty" yaml:"model,omitempty"` // empty = all models
}

// Scenario is one complete set of inputs
type Scenario struct {
	Name        string                     `json:"name" yaml:"name"`
	Subject     models.Subject             `json:"subject" yaml:"subject"`
	Drinks      []models.DrinkEvent        `json:"drinks" yaml:"drinks"`
	Settings    models.CalculationSettings `json:"settings" yaml:"settings"`
	Now         *time.Time                 `json:"now,omitempty" yaml:"now,omitempty"` // evaluation instant, default wall time
	Measurement *Measurement               `json:"measurement,omitempty" yaml:"measurement,omitempty"`

	// Source file, set by Load
	Path string `json:"-" yaml:"-"`
}

// New returns a scenario prefilled with the default subject and settings
func New() *Scenario {
	return &Scenario{
		Subject:  models.DefaultSubject(),
		Settings: *models.DefaultCalculationSettings(),
	}
}

// FormatFromPath picks the format by file extension
func FormatFromPath(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML, nil
	case ".json":
		return FormatJSON, nil
	default:
		return "", fmt.Errorf("unsupported scenario file extension %q", filepath.Ext(path))
	}
}

// Parse decodes a scenario; fields missing from data keep their defaults
func Parse(data []byte, format Format) (*Scenario, error) {
	s := New()

	switch format {
	case FormatYAML:
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(s); err != nil {
			return nil, fmt.Errorf("decoding yaml: %w", err)
		}
	case FormatJSON:
		dec := json.NewDecoder(bytes.NewReader(data))
		dec.DisallowUnknownFields()
		if err := dec.Decode(s); err != nil {
			return nil, fmt.Errorf("decoding json: %w", err)
		}
	default:
		return nil, fmt.Errorf("unknown scenario format %q", format)
	}

	if s.Measurement != nil && s.Measurement.Method == "" {
		s.Measurement.Method = models.MethodOther
	}

	return s, nil
}

// Load reads and decodes a scenario file
func Load(path string) (*Scenario, error) {
	format, err := FormatFromPath(path)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path) //nolint:gosec // Path comes from the command line
	if err != nil {
		return nil, err
	}

	s, err := Parse(data, format)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	s.Path = path
	if s.Name == "" {
		s.Name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	return s, nil
}

// Expand resolves the arguments to scenario file paths. Directories yield
// their YAML and JSON files, other arguments are treated as glob patterns.
func Expand(args []string) ([]string, error) {
	var paths []string
	for _, arg := range args {
		info, err := os.Stat(arg)
		if err == nil && info.IsDir() {
			entries, err := os.ReadDir(arg)
			if err != nil {
				return nil, err
			}
			for _, e := range entries {
				if e.IsDir() {
					continue
				}
				if _, err := FormatFromPath(e.Name()); err == nil {
					paths = append(paths, filepath.Join(arg, e.Name()))
				}
			}
			continue
		}

		matches, err := filepath.Glob(arg)
		if err != nil {
			return nil, err
		}
		if len(matches) == 0 {
			return nil, fmt.Errorf("no scenario files match %q", arg)
		}
		paths = append(paths, matches...)
	}

	sort.Strings(paths)
	return paths, nil
}

// EvaluatedAt returns the scenario's evaluation instant or fallback
func (s *Scenario) EvaluatedAt(fallback time.Time) time.Time {
	if s.Now != nil {
		return *s.Now
	}
	return fallback
}
