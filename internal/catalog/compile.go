package catalog

import (
	"fmt"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"

	"github.com/roach88/docmap/internal/model"
	"github.com/roach88/docmap/internal/query"
)

// CompileError reports a malformed model declaration.
type CompileError struct {
	Model   string
	Field   string
	Message string
	Pos     token.Pos
}

func (e *CompileError) Error() string {
	where := e.Field
	if e.Model != "" {
		where = e.Model + "." + e.Field
	}
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s",
			e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(),
			where, e.Message)
	}
	return fmt.Sprintf("%s: %s", where, e.Message)
}

// formatCUEError extracts position info from CUE errors.
func formatCUEError(err error) error {
	if err == nil {
		return nil
	}
	errs := errors.Errors(err)
	if len(errs) == 0 {
		return err
	}
	first := errs[0]
	if positions := errors.Positions(first); len(positions) > 0 {
		return &CompileError{
			Field:   "cue",
			Message: first.Error(),
			Pos:     positions[0],
		}
	}
	return err
}

// pendingRef is a relation column whose target is resolved once every model
// of the catalog has been declared.
type pendingRef struct {
	model  *model.Model
	column string
	target string
	pos    token.Pos
}

// Compile builds a catalog from the "model" struct of v. References between
// models, including self references, are bound after every model is defined.
func Compile(v cue.Value) (*Catalog, error) {
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}
	models := v.LookupPath(cue.ParsePath("model"))
	if !models.Exists() {
		return nil, &CompileError{Field: "model", Message: "no models declared", Pos: v.Pos()}
	}
	iter, err := models.Fields()
	if err != nil {
		return nil, formatCUEError(err)
	}

	cat := New()
	var pending []pendingRef
	for iter.Next() {
		m, refs, err := CompileModel(iter.Value())
		if err != nil {
			return nil, err
		}
		if err := cat.Add(m); err != nil {
			return nil, err
		}
		pending = append(pending, refs...)
	}
	if err := bind(cat, pending); err != nil {
		return nil, err
	}
	return cat, nil
}

func bind(cat *Catalog, pending []pendingRef) error {
	for _, ref := range pending {
		target, ok := cat.Model(ref.target)
		if !ok {
			return &CompileError{
				Model:   ref.model.Name,
				Field:   "model",
				Message: fmt.Sprintf("column %q references undeclared model %q", ref.column, ref.target),
				Pos:     ref.pos,
			}
		}
		if err := ref.model.Bind(ref.column, target); err != nil {
			return err
		}
	}
	return nil
}

// CompileModel parses one model struct. Composite references are returned
// unresolved; primitive markers are bound directly.
func CompileModel(v cue.Value) (*model.Model, []pendingRef, error) {
	if err := v.Err(); err != nil {
		return nil, nil, formatCUEError(err)
	}

	var name string
	if sels := v.Path().Selectors(); len(sels) > 0 {
		name = sels[len(sels)-1].String()
	}

	collection, err := optionalString(v, name, "collection")
	if err != nil {
		return nil, nil, err
	}
	primary, err := optionalString(v, name, "primary")
	if err != nil {
		return nil, nil, err
	}

	colsVal := v.LookupPath(cue.ParsePath("columns"))
	if !colsVal.Exists() {
		return nil, nil, &CompileError{Model: name, Field: "columns", Message: "columns are required", Pos: v.Pos()}
	}
	iter, err := colsVal.Fields()
	if err != nil {
		return nil, nil, formatCUEError(err)
	}

	var (
		columns []model.Column
		targets = make(map[string]string)
		posOf   = make(map[string]token.Pos)
	)
	for iter.Next() {
		col, target, err := compileColumn(name, iter.Label(), iter.Value())
		if err != nil {
			return nil, nil, err
		}
		columns = append(columns, col)
		if target != "" {
			targets[col.Name] = target
			posOf[col.Name] = iter.Value().Pos()
		}
	}
	if len(columns) == 0 {
		return nil, nil, &CompileError{Model: name, Field: "columns", Message: "at least one column is required", Pos: colsVal.Pos()}
	}

	m, err := model.Define(name, collection, primary, columns...)
	if err != nil {
		return nil, nil, err
	}

	var refs []pendingRef
	for _, col := range m.Columns() {
		if target, ok := targets[col.Name]; ok {
			refs = append(refs, pendingRef{model: m, column: col.Name, target: target, pos: posOf[col.Name]})
		}
	}
	return m, refs, nil
}

// compileColumn parses a column struct. It returns the name of a composite
// target model when the column references one.
func compileColumn(modelName, name string, v cue.Value) (model.Column, string, error) {
	col := model.Column{Name: name}
	fail := func(field, msg string, pos token.Pos) (model.Column, string, error) {
		return model.Column{}, "", &CompileError{Model: modelName, Field: name + "." + field, Message: msg, Pos: pos}
	}

	formatsVal := v.LookupPath(cue.ParsePath("formats"))
	if !formatsVal.Exists() {
		return fail("formats", "formats are required", v.Pos())
	}
	tags, err := stringList(formatsVal)
	if err != nil {
		return fail("formats", err.Error(), formatsVal.Pos())
	}
	for _, tag := range tags {
		f, err := model.ParseFormat(tag)
		if err != nil {
			return fail("formats", err.Error(), formatsVal.Pos())
		}
		col.Formats = append(col.Formats, f)
	}

	if col.Alias, err = optionalString(v, modelName, "alias"); err != nil {
		return model.Column{}, "", err
	}
	if col.Pattern, err = optionalString(v, modelName, "pattern"); err != nil {
		return model.Column{}, "", err
	}
	if col.Minimum, err = optionalNumber(v, "minimum"); err != nil {
		return fail("minimum", err.Error(), v.Pos())
	}
	if col.Maximum, err = optionalNumber(v, "maximum"); err != nil {
		return fail("maximum", err.Error(), v.Pos())
	}
	if col.Unique, err = optionalBool(v, "unique"); err != nil {
		return fail("unique", err.Error(), v.Pos())
	}
	if col.Required, err = optionalBool(v, "required"); err != nil {
		return fail("required", err.Error(), v.Pos())
	}
	if values := v.LookupPath(cue.ParsePath("values")); values.Exists() {
		if col.Values, err = stringList(values); err != nil {
			return fail("values", err.Error(), values.Pos())
		}
	}
	if views := v.LookupPath(cue.ParsePath("views")); views.Exists() {
		if col.Views, err = stringList(views); err != nil {
			return fail("views", err.Error(), views.Pos())
		}
	}

	var target string
	if ref := v.LookupPath(cue.ParsePath("model")); ref.Exists() {
		s, err := ref.String()
		if err != nil {
			return fail("model", "model must be a string", ref.Pos())
		}
		if p, ok := model.ParsePrimitive(s); ok {
			col.Model = model.Marker(p)
		} else {
			target = s
		}
	}

	if fv := v.LookupPath(cue.ParsePath("foreign")); fv.Exists() {
		foreign, err := compileForeign(modelName, name, fv)
		if err != nil {
			return model.Column{}, "", err
		}
		col.Foreign = foreign
	}
	return col, target, nil
}

func compileForeign(modelName, column string, v cue.Value) (*model.Foreign, error) {
	f := &model.Foreign{}
	var err error
	if f.Local, err = optionalString(v, modelName, "local"); err != nil {
		return nil, err
	}
	if f.Foreign, err = optionalString(v, modelName, "foreign"); err != nil {
		return nil, err
	}
	if f.Collection, err = optionalString(v, modelName, "collection"); err != nil {
		return nil, err
	}
	if f.Local == "" || f.Foreign == "" {
		return nil, &CompileError{Model: modelName, Field: column + ".foreign", Message: "local and foreign keys are required", Pos: v.Pos()}
	}

	filterVal := v.LookupPath(cue.ParsePath("filter"))
	if !filterVal.Exists() {
		return f, nil
	}
	iter, err := filterVal.Fields()
	if err != nil {
		return nil, formatCUEError(err)
	}
	f.Filter = make(query.Filter)
	for iter.Next() {
		opVal := iter.Value().LookupPath(cue.ParsePath("op"))
		opName, err := opVal.String()
		if err != nil {
			return nil, &CompileError{Model: modelName, Field: column + ".foreign.filter." + iter.Label(), Message: "op must be a string", Pos: iter.Value().Pos()}
		}
		op, err := query.ParseOperator(opName)
		if err != nil {
			return nil, &CompileError{Model: modelName, Field: column + ".foreign.filter." + iter.Label(), Message: err.Error(), Pos: opVal.Pos()}
		}
		var value any
		if raw := iter.Value().LookupPath(cue.ParsePath("value")); raw.Exists() {
			if err := raw.Decode(&value); err != nil {
				return nil, formatCUEError(err)
			}
		}
		f.Filter[iter.Label()] = query.Operation{Operator: op, Value: value}
	}
	return f, nil
}

func optionalString(v cue.Value, modelName, field string) (string, error) {
	fv := v.LookupPath(cue.ParsePath(field))
	if !fv.Exists() {
		return "", nil
	}
	s, err := fv.String()
	if err != nil {
		return "", &CompileError{Model: modelName, Field: field, Message: field + " must be a string", Pos: fv.Pos()}
	}
	return s, nil
}

func optionalNumber(v cue.Value, field string) (*float64, error) {
	fv := v.LookupPath(cue.ParsePath(field))
	if !fv.Exists() {
		return nil, nil
	}
	f, err := fv.Float64()
	if err != nil {
		return nil, fmt.Errorf("%s must be a number", field)
	}
	return &f, nil
}

func optionalBool(v cue.Value, field string) (bool, error) {
	fv := v.LookupPath(cue.ParsePath(field))
	if !fv.Exists() {
		return false, nil
	}
	b, err := fv.Bool()
	if err != nil {
		return false, fmt.Errorf("%s must be a boolean", field)
	}
	return b, nil
}

func stringList(v cue.Value) ([]string, error) {
	iter, err := v.List()
	if err != nil {
		return nil, fmt.Errorf("expected a list of strings")
	}
	var out []string
	for iter.Next() {
		s, err := iter.Value().String()
		if err != nil {
			return nil, fmt.Errorf("expected a list of strings")
		}
		out = append(out, s)
	}
	return out, nil
}
