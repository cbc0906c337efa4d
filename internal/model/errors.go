package model

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorCode identifies a compilation failure category.
// Codes are stable and surface in CLI output and conformance scenarios.
type ErrorCode string

const (
	// CodeUnknownColumn: a filter, sort key or relation names a column the model lacks.
	CodeUnknownColumn ErrorCode = "E201"

	// CodeCyclicModel: relation traversal re-entered a model already on the path.
	CodeCyclicModel ErrorCode = "E202"

	// CodeUnsupportedFormat: a format tag has no validator mapping.
	CodeUnsupportedFormat ErrorCode = "E203"

	// CodeInvalidIdentifier: an identifier value is neither a well-formed
	// string form nor the native identifier type.
	CodeInvalidIdentifier ErrorCode = "E204"

	// CodeInvalidOperation: an operation value does not fit its operator.
	CodeInvalidOperation ErrorCode = "E205"

	// CodeInvalidDescriptor: a descriptor breaks a construction invariant.
	CodeInvalidDescriptor ErrorCode = "E206"
)

// CodedError is implemented by every error in this package.
type CodedError interface {
	error
	ErrorCode() ErrorCode
}

// UnknownColumnError reports a column name the model does not declare.
type UnknownColumnError struct {
	Model  string
	Column string
}

func (e *UnknownColumnError) Error() string {
	if e.Model == "" {
		return fmt.Sprintf("%s: column %q does not exist", CodeUnknownColumn, e.Column)
	}
	return fmt.Sprintf("%s: column %q does not exist in model %s", CodeUnknownColumn, e.Column, e.Model)
}

func (e *UnknownColumnError) ErrorCode() ErrorCode { return CodeUnknownColumn }

// CyclicModelError reports a relation path that returns to a model already
// being traversed. Path lists model names from the entry model to the
// repeated one.
type CyclicModelError struct {
	Path []string
}

func (e *CyclicModelError) Error() string {
	return fmt.Sprintf("%s: cyclic model relation %s", CodeCyclicModel, strings.Join(e.Path, " → "))
}

func (e *CyclicModelError) ErrorCode() ErrorCode { return CodeCyclicModel }

// UnsupportedFormatError reports a format tag with no mapping.
type UnsupportedFormatError struct {
	Column string
	Tag    string
}

func (e *UnsupportedFormatError) Error() string {
	if e.Column == "" {
		return fmt.Sprintf("%s: unsupported format %q", CodeUnsupportedFormat, e.Tag)
	}
	return fmt.Sprintf("%s: unsupported format %q on column %q", CodeUnsupportedFormat, e.Tag, e.Column)
}

func (e *UnsupportedFormatError) ErrorCode() ErrorCode { return CodeUnsupportedFormat }

// InvalidIdentifierError reports a primary identifier value that cannot be
// used to address a document.
type InvalidIdentifierError struct {
	Model string
	Value any
}

func (e *InvalidIdentifierError) Error() string {
	return fmt.Sprintf("%s: invalid identifier %v (%T) for model %s", CodeInvalidIdentifier, e.Value, e.Value, e.Model)
}

func (e *InvalidIdentifierError) ErrorCode() ErrorCode { return CodeInvalidIdentifier }

// InvalidOperationError reports an operation whose value does not fit its
// operator, e.g. a BETWEEN value that is not a two-element sequence.
type InvalidOperationError struct {
	Column  string
	Message string
}

func (e *InvalidOperationError) Error() string {
	return fmt.Sprintf("%s: column %q: %s", CodeInvalidOperation, e.Column, e.Message)
}

func (e *InvalidOperationError) ErrorCode() ErrorCode { return CodeInvalidOperation }

// DescriptorError reports a descriptor that breaks a construction invariant.
type DescriptorError struct {
	Model   string
	Column  string
	Message string
}

func (e *DescriptorError) Error() string {
	if e.Column == "" {
		return fmt.Sprintf("%s: model %s: %s", CodeInvalidDescriptor, e.Model, e.Message)
	}
	return fmt.Sprintf("%s: model %s, column %q: %s", CodeInvalidDescriptor, e.Model, e.Column, e.Message)
}

func (e *DescriptorError) ErrorCode() ErrorCode { return CodeInvalidDescriptor }

// CodeOf returns the code of the first CodedError in err's chain, or "".
func CodeOf(err error) ErrorCode {
	var ce CodedError
	if errors.As(err, &ce) {
		return ce.ErrorCode()
	}
	return ""
}

// IsUnknownColumn reports whether err wraps an UnknownColumnError.
func IsUnknownColumn(err error) bool {
	var e *UnknownColumnError
	return errors.As(err, &e)
}

// IsCyclicModel reports whether err wraps a CyclicModelError.
func IsCyclicModel(err error) bool {
	var e *CyclicModelError
	return errors.As(err, &e)
}

// IsUnsupportedFormat reports whether err wraps an UnsupportedFormatError.
func IsUnsupportedFormat(err error) bool {
	var e *UnsupportedFormatError
	return errors.As(err, &e)
}

// IsInvalidIdentifier reports whether err wraps an InvalidIdentifierError.
func IsInvalidIdentifier(err error) bool {
	var e *InvalidIdentifierError
	return errors.As(err, &e)
}
