package harness

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/roach88/docmap/internal/catalog"
	"github.com/roach88/docmap/internal/model"
	"github.com/roach88/docmap/internal/pipeline"
	"github.com/roach88/docmap/internal/query"
)

// Run compiles the scenario's request and evaluates its assertions.
//
// An error is returned when the scenario cannot be executed at all (models
// fail to load, bad codec, malformed request). Compile errors are part of the
// result and are checked by error_code assertions.
func Run(scenario *Scenario) (*Result, error) {
	return RunWithLogger(scenario, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

// RunWithLogger is Run with compiler debug output sent to logger.
func RunWithLogger(scenario *Scenario, logger *slog.Logger) (*Result, error) {
	loaded, errs := catalog.LoadDir(scenario.Models, catalog.LoadModeFailFast)
	if len(errs) > 0 {
		return nil, fmt.Errorf("failed to load models: %w", errs[0])
	}

	codec, err := pipeline.CodecByName(scenario.Codec)
	if err != nil {
		return nil, err
	}

	req, err := query.DecodeRequest(&scenario.Request)
	if err != nil {
		return nil, fmt.Errorf("failed to decode request: %w", err)
	}

	compiler := pipeline.New(
		pipeline.WithIdentifierCodec(codec),
		pipeline.WithLogger(logger),
	)

	result := NewResult()
	stages, err := compiler.Compile(loaded.Catalog, req)
	if err != nil {
		result.Err = err
		result.ErrorCode = string(model.CodeOf(err))
		if !scenario.expectsError() {
			result.AddError(fmt.Sprintf("unexpected compile error: %v", err))
		}
	} else {
		result.setStages(stages)
	}

	for _, msg := range EvaluateAssertions(result, scenario.Assertions) {
		result.AddError(msg)
	}
	return result, nil
}
