package catalog

import (
	"errors"
	"fmt"
	"strings"

	"github.com/roach88/docmap/internal/model"
	"github.com/roach88/docmap/internal/validator"
)

// Descriptor error codes (E100-E199)
const (
	ErrCodeInvalidValue   = "E100" // CUE value does not evaluate
	ErrCodeNoColumns      = "E101" // model declares no columns
	ErrCodeInvalidFormats = "E102" // missing or unknown format tag
	ErrCodeUnknownModel   = "E103" // relation names an undeclared model
	ErrCodeInvalidType    = "E104" // attribute has the wrong CUE type
	ErrCodeInvalidForeign = "E105" // malformed foreign relation
	ErrCodeInvalidPrimary = "E106" // primary column is not an identifier
	ErrCodeEmbeddedCycle  = "E107" // embedded models contain themselves
	ErrCodeUnknownKey     = "E108" // relation key or filter column is not declared
)

// ValidationError is one problem found in a catalog.
type ValidationError struct {
	Model   string `json:"model"`
	Column  string `json:"column,omitempty"`
	Message string `json:"message"`
	Code    string `json:"code"`
}

// Error implements the error interface.
func (e ValidationError) Error() string {
	if e.Column != "" {
		return fmt.Sprintf("[%s] %s.%s: %s", e.Code, e.Model, e.Column, e.Message)
	}
	return fmt.Sprintf("[%s] %s: %s", e.Code, e.Model, e.Message)
}

// MapFieldToErrorCode maps a compile error field to an error code. Column
// attributes are addressed as "<column>.<attribute>".
func MapFieldToErrorCode(field string) string {
	if field == "foreign" || strings.Contains(field, ".foreign") {
		return ErrCodeInvalidForeign
	}
	attr := field
	if i := strings.LastIndexByte(field, '.'); i >= 0 {
		attr = field[i+1:]
	}
	switch attr {
	case "cue":
		return ErrCodeInvalidValue
	case "columns":
		return ErrCodeNoColumns
	case "formats":
		return ErrCodeInvalidFormats
	case "model":
		return ErrCodeUnknownModel
	case "":
		return ErrCodeGeneric
	default:
		return ErrCodeInvalidType
	}
}

// Validate checks every model of the catalog and returns all problems found.
func Validate(cat *Catalog) []ValidationError {
	var errs []ValidationError
	for _, m := range cat.Models() {
		errs = append(errs, validateModel(m)...)
	}
	return errs
}

func validateModel(m *model.Model) []ValidationError {
	var errs []ValidationError

	if err := m.Validate(); err != nil {
		errs = append(errs, relationError(m, err))
	}

	if pk := m.PrimaryColumn(); pk != nil && !pk.Has(model.FormatID) {
		errs = append(errs, ValidationError{
			Model:   m.Name,
			Column:  pk.Name,
			Message: "primary column must carry the Id format",
			Code:    ErrCodeInvalidPrimary,
		})
	}

	if _, err := validator.Build(m); err != nil {
		errs = append(errs, schemaError(m, err))
	}
	return errs
}

func relationError(m *model.Model, err error) ValidationError {
	var (
		unknown *model.UnknownColumnError
		desc    *model.DescriptorError
	)
	switch {
	case errors.As(err, &unknown):
		return ValidationError{Model: unknown.Model, Column: unknown.Column, Message: "relation key or filter column is not declared", Code: ErrCodeUnknownKey}
	case errors.As(err, &desc):
		return ValidationError{Model: desc.Model, Column: desc.Column, Message: desc.Message, Code: ErrCodeInvalidForeign}
	default:
		return ValidationError{Model: m.Name, Message: err.Error(), Code: ErrCodeGeneric}
	}
}

func schemaError(m *model.Model, err error) ValidationError {
	var (
		cyclic *model.CyclicModelError
		format *model.UnsupportedFormatError
	)
	switch {
	case errors.As(err, &cyclic):
		return ValidationError{Model: m.Name, Message: fmt.Sprintf("embedded models contain themselves: %s", strings.Join(cyclic.Path, " → ")), Code: ErrCodeEmbeddedCycle}
	case errors.As(err, &format):
		return ValidationError{Model: m.Name, Column: format.Column, Message: err.Error(), Code: ErrCodeInvalidFormats}
	default:
		return ValidationError{Model: m.Name, Message: err.Error(), Code: ErrCodeGeneric}
	}
}
