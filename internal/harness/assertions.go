package harness

import (
	"encoding/json"
	"fmt"
	"reflect"
	"strings"

	"github.com/roach88/docmap/internal/document"
)

// AssertionError is returned when an assertion fails.
type AssertionError struct {
	Type      string   // Assertion type for categorization
	Expected  string   // Human-readable expected outcome
	Actual    string   // Human-readable actual outcome
	Operators []string // Compiled stage operators for context
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder
	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)
	if len(e.Operators) > 0 {
		fmt.Fprintf(&buf, "\nStages: %s\n", strings.Join(e.Operators, " "))
	}
	return buf.String()
}

// assertStageOrder checks the exact operator sequence.
func assertStageOrder(result *Result, assertion Assertion) error {
	if slicesEqual(result.Operators, assertion.Stages) {
		return nil
	}
	return &AssertionError{
		Type:      AssertStageOrder,
		Expected:  strings.Join(assertion.Stages, " "),
		Actual:    strings.Join(result.Operators, " "),
		Operators: result.Operators,
	}
}

// assertStageCount counts stages using assertion.Stage, or all stages when
// it is empty.
func assertStageCount(result *Result, assertion Assertion) error {
	count := 0
	for _, op := range result.Operators {
		if assertion.Stage == "" || op == assertion.Stage {
			count++
		}
	}
	if count == *assertion.Count {
		return nil
	}
	what := "stages"
	if assertion.Stage != "" {
		what = assertion.Stage + " stages"
	}
	return &AssertionError{
		Type:      AssertStageCount,
		Expected:  fmt.Sprintf("%d %s", *assertion.Count, what),
		Actual:    fmt.Sprintf("%d %s", count, what),
		Operators: result.Operators,
	}
}

// assertStageContains checks that some stage with the operator has a value
// containing the expected subset. Values are compared in their canonical
// JSON form, so ObjectIDs are written as {"$oid": "..."}.
func assertStageContains(result *Result, assertion Assertion) error {
	expected, err := plain(assertion.Value)
	if err != nil {
		return fmt.Errorf("stage_contains: expected value: %w", err)
	}
	for _, stage := range result.Stages {
		if len(stage) == 0 || stage[0].Key != assertion.Stage {
			continue
		}
		actual, err := canonicalPlain(stage[0].Value)
		if err != nil {
			return fmt.Errorf("stage_contains: %w", err)
		}
		if containsSubset(actual, expected) {
			return nil
		}
	}
	return &AssertionError{
		Type:      AssertStageContains,
		Expected:  fmt.Sprintf("%s stage containing %v", assertion.Stage, assertion.Value),
		Actual:    "no matching stage",
		Operators: result.Operators,
	}
}

// assertErrorCode checks the compile error's code.
func assertErrorCode(result *Result, assertion Assertion) error {
	if result.Err != nil && result.ErrorCode == assertion.Code {
		return nil
	}
	actual := "compiled without error"
	if result.Err != nil {
		actual = fmt.Sprintf("%s (%v)", result.ErrorCode, result.Err)
	}
	return &AssertionError{
		Type:      AssertErrorCode,
		Expected:  assertion.Code,
		Actual:    actual,
		Operators: result.Operators,
	}
}

// EvaluateAssertions evaluates all assertions against the result.
// Returns a slice of error messages for failed assertions.
func EvaluateAssertions(result *Result, assertions []Assertion) []string {
	var errors []string
	for i, assertion := range assertions {
		var err error
		switch assertion.Type {
		case AssertStageOrder:
			err = assertStageOrder(result, assertion)
		case AssertStageCount:
			err = assertStageCount(result, assertion)
		case AssertStageContains:
			err = assertStageContains(result, assertion)
		case AssertErrorCode:
			err = assertErrorCode(result, assertion)
		default:
			err = fmt.Errorf("assertion[%d]: unknown assertion type %q", i, assertion.Type)
		}
		if err != nil {
			errors = append(errors, err.Error())
		}
	}
	return errors
}

// canonicalPlain converts a stage value into plain JSON values.
func canonicalPlain(v any) (any, error) {
	data, err := document.MarshalCanonical(v)
	if err != nil {
		return nil, err
	}
	var out any
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// plain round-trips YAML-decoded values through JSON so that numbers compare
// as float64 on both sides.
func plain(v any) (any, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var out any
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// containsSubset reports whether actual contains expected: objects match on
// the expected keys only, everything else must be equal.
func containsSubset(actual, expected any) bool {
	expectedMap, ok := expected.(map[string]any)
	if !ok {
		return reflect.DeepEqual(actual, expected)
	}
	actualMap, ok := actual.(map[string]any)
	if !ok {
		return false
	}
	for key, want := range expectedMap {
		got, exists := actualMap[key]
		if !exists || !containsSubset(got, want) {
			return false
		}
	}
	return true
}

func slicesEqual(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
