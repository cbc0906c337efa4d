package harness

import (
	"fmt"
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/docmap/internal/document"
)

// RunWithGolden executes a scenario and, when the scenario enables it,
// compares the indented canonical pipeline against
// testdata/golden/{scenario.Name}.golden.
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
//
// Returns error if the scenario cannot be executed. Golden mismatches fail
// the test through goldie.
func RunWithGolden(t *testing.T, scenario *Scenario) (*Result, error) {
	t.Helper()

	result, err := Run(scenario)
	if err != nil {
		return nil, err
	}
	if scenario.Golden {
		if err := AssertGolden(t, scenario.Name, result); err != nil {
			return result, err
		}
	}
	return result, nil
}

// AssertGolden compares an already computed result's pipeline against a
// golden file.
func AssertGolden(t *testing.T, name string, result *Result) error {
	t.Helper()

	if result.Stages == nil {
		return fmt.Errorf("golden %s: no pipeline to compare (compile error: %v)", name, result.Err)
	}
	out, err := document.Indent(result.Stages)
	if err != nil {
		return err
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, name, out)
	return nil
}
