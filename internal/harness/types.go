package harness

import (
	"go.mongodb.org/mongo-driver/mongo"
)

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass is true when every assertion held.
	Pass bool `json:"pass"`

	// Stages is the compiled pipeline; nil when compilation failed.
	Stages mongo.Pipeline `json:"-"`

	// Operators lists each stage's operator, in order.
	Operators []string `json:"operators"`

	// Err is the compile error, if any, and ErrorCode its code.
	Err       error  `json:"-"`
	ErrorCode string `json:"error_code,omitempty"`

	// Errors contains failed assertion messages.
	Errors []string `json:"errors,omitempty"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:      true,
		Operators: []string{},
		Errors:    []string{},
	}
}

// AddError adds a validation error and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// setStages records the compiled pipeline and its operators.
func (r *Result) setStages(stages mongo.Pipeline) {
	r.Stages = stages
	r.Operators = make([]string, len(stages))
	for i, stage := range stages {
		if len(stage) > 0 {
			r.Operators[i] = stage[0].Key
		}
	}
}
