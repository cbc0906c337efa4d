// Package harness provides conformance testing for compiled pipelines.
//
// A scenario names a models directory, a request against one of its models,
// and assertions over the compiled stages or the compile error.
//
// # Scenario Format
//
// Scenarios are defined in YAML files with the following structure:
//
//	name: author_with_posts
//	description: "What this scenario validates"
//	models: ../models          # relative to the scenario file
//	codec: objectid            # optional: objectid (default) or uuid
//	request:
//	  model: Author
//	  views: [posts]
//	  filter:
//	    name: {op: eq, value: Ada}
//	  sort:
//	    - {column: name, order: desc}
//	  page: {start: 0, count: 10}
//	assertions:
//	  - type: stage_order
//	    stages: [$match, $lookup, $unwind, $project]
//	  - type: stage_count
//	    stage: $lookup
//	    count: 1
//	  - type: stage_contains
//	    stage: $lookup
//	    value: {from: posts}
//	  - type: error_code
//	    code: E201
//	golden: true
//
// # Assertion Types
//
//   - stage_order: the pipeline's stage operators, exactly and in order
//   - stage_count: how many stages use an operator, or the total without one
//   - stage_contains: some stage with the operator has a value containing
//     the given subset
//   - error_code: compilation fails with the given error code
//
// A scenario without an error_code assertion fails on any compile error.
//
// # Golden Files
//
// With golden: true, RunWithGolden compares the indented canonical pipeline
// against testdata/golden/<name>.golden. To regenerate golden files, run:
//
//	go test ./internal/harness -update
package harness
