package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// Scenario defines a conformance test scenario.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Models is the CUE models directory. Relative paths are resolved
	// against the scenario file's directory by LoadScenario.
	Models string `yaml:"models"`

	// Codec names the identifier codec. Empty selects objectid.
	Codec string `yaml:"codec,omitempty"`

	// Request is the query request, in the request file format.
	Request yaml.Node `yaml:"request"`

	// Assertions validate the compiled pipeline or the compile error.
	Assertions []Assertion `yaml:"assertions"`

	// Golden enables golden file comparison in RunWithGolden.
	Golden bool `yaml:"golden,omitempty"`
}

// Assertion validates the compile outcome.
type Assertion struct {
	// Type is one of the Assert* constants.
	Type string `yaml:"type"`

	// Stages is the expected operator sequence (stage_order).
	Stages []string `yaml:"stages,omitempty"`

	// Stage is the operator inspected by stage_count and stage_contains.
	Stage string `yaml:"stage,omitempty"`

	// Count is the expected number of stages (stage_count).
	Count *int `yaml:"count,omitempty"`

	// Value is the expected subset of the stage value (stage_contains).
	Value map[string]any `yaml:"value,omitempty"`

	// Code is the expected error code (error_code).
	Code string `yaml:"code,omitempty"`
}

// Assertion type constants.
const (
	AssertStageOrder    = "stage_order"
	AssertStageCount    = "stage_count"
	AssertStageContains = "stage_contains"
	AssertErrorCode     = "error_code"
)

// LoadScenario reads and parses a scenario YAML file. Unknown fields are
// rejected, and the models path is resolved against the file's directory.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	scenario, err := ParseScenario(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	if scenario.Models != "" && !filepath.IsAbs(scenario.Models) {
		scenario.Models = filepath.Join(filepath.Dir(path), scenario.Models)
	}
	if _, err := os.Stat(scenario.Models); err != nil {
		return nil, fmt.Errorf("%s: invalid scenario: models directory not found: %s", path, scenario.Models)
	}
	return scenario, nil
}

// ParseScenario decodes scenario YAML and checks required fields. The models
// path is kept as written.
func ParseScenario(data []byte) (*Scenario, error) {
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

// LoadScenarios loads every .yaml and .yml file in dir, sorted by file name.
func LoadScenarios(dir string) ([]*Scenario, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read scenarios directory: %w", err)
	}
	var names []string
	for _, e := range entries {
		ext := strings.ToLower(filepath.Ext(e.Name()))
		if !e.IsDir() && (ext == ".yaml" || ext == ".yml") {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	scenarios := make([]*Scenario, 0, len(names))
	for _, name := range names {
		s, err := LoadScenario(filepath.Join(dir, name))
		if err != nil {
			return nil, err
		}
		scenarios = append(scenarios, s)
	}
	return scenarios, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if s.Models == "" {
		return fmt.Errorf("models is required")
	}
	if s.Request.Kind != yaml.MappingNode {
		return fmt.Errorf("request is required and must be a mapping")
	}
	if len(s.Assertions) == 0 {
		return fmt.Errorf("assertions list is required and must be non-empty")
	}
	for i := range s.Assertions {
		if err := validateAssertion(i, &s.Assertions[i]); err != nil {
			return err
		}
	}
	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}
	switch a.Type {
	case AssertStageOrder:
		if len(a.Stages) == 0 {
			return fmt.Errorf("assertions[%d]: stages list is required for stage_order", index)
		}
	case AssertStageCount:
		if a.Count == nil {
			return fmt.Errorf("assertions[%d]: count is required for stage_count", index)
		}
		if *a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for stage_count", index)
		}
	case AssertStageContains:
		if a.Stage == "" {
			return fmt.Errorf("assertions[%d]: stage is required for stage_contains", index)
		}
		if len(a.Value) == 0 {
			return fmt.Errorf("assertions[%d]: value is required for stage_contains", index)
		}
	case AssertErrorCode:
		if a.Code == "" {
			return fmt.Errorf("assertions[%d]: code is required for error_code", index)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}
	return nil
}

// expectsError reports whether the scenario asserts a compile error.
func (s *Scenario) expectsError() bool {
	for _, a := range s.Assertions {
		if a.Type == AssertErrorCode {
			return true
		}
	}
	return false
}
