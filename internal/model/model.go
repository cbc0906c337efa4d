package model

import (
	"fmt"
	"slices"

	"github.com/roach88/docmap/internal/query"
)

// IDField is the storage name of a document's own identifier.
const IDField = "_id"

// RelationKind classifies how a column reaches its referenced model.
type RelationKind int

const (
	RelationNone RelationKind = iota
	RelationNested
	RelationForeign
)

func (k RelationKind) String() string {
	switch k {
	case RelationNested:
		return "nested"
	case RelationForeign:
		return "foreign"
	default:
		return "none"
	}
}

// Foreign describes how a relation column joins documents from another
// collection.
type Foreign struct {
	// Collection overrides the referenced model's collection.
	Collection string

	// Local is the logical name of the joining column in the owning model.
	Local string

	// Foreign is the logical name of the joined column in the referenced model.
	Foreign string

	// Filter narrows the joined documents. Its keys are columns of the
	// referenced model.
	Filter query.Filter
}

// Column describes one field of a model.
type Column struct {
	Name     string
	Alias    string
	Formats  []Format
	Minimum  *float64
	Maximum  *float64
	Unique   bool
	Values   []string
	Pattern  string
	Model    *Ref
	Foreign  *Foreign
	Views    []string
	Required bool
}

// StorageName is the field name used in stored documents.
func (c *Column) StorageName() string {
	if c.Alias != "" {
		return c.Alias
	}
	return c.Name
}

// Has reports whether the column carries format f.
func (c *Column) Has(f Format) bool {
	return slices.Contains(c.Formats, f)
}

// Multiple reports whether the column holds a sequence.
func (c *Column) Multiple() bool {
	return c.Has(FormatArray)
}

// Relation returns the column's relation kind.
func (c *Column) Relation() RelationKind {
	if !c.Model.IsComposite() {
		return RelationNone
	}
	if c.Foreign != nil {
		return RelationForeign
	}
	return RelationNested
}

// Target returns the referenced composite model, or nil.
func (c *Column) Target() *Model {
	if c.Model.IsComposite() {
		return c.Model.Model
	}
	return nil
}

// VisibleIn reports whether the column is projected under the given view
// modes. Unrestricted columns are always visible; restricted columns need at
// least one of their views to be active.
func (c *Column) VisibleIn(views []string) bool {
	if len(c.Views) == 0 {
		return true
	}
	for _, v := range c.Views {
		if slices.Contains(views, v) {
			return true
		}
	}
	return false
}

// Source returns the collection joined by a foreign relation.
func (c *Column) Source() string {
	if c.Foreign != nil && c.Foreign.Collection != "" {
		return c.Foreign.Collection
	}
	if t := c.Target(); t != nil {
		return t.Collection
	}
	return ""
}

// Model is an ordered set of columns bound to a collection.
type Model struct {
	Name       string
	Collection string

	// Primary is the logical name of the primary identifier column.
	Primary string

	columns []*Column
	byName  map[string]*Column
	byAlias map[string]*Column
}

// Define builds a model and checks per-column invariants:
// non-empty formats, Pattern columns carry a pattern, Enumeration columns
// carry values, and names and aliases are unique. Relation keys are checked
// later by Validate, once every referenced model has been bound.
func Define(name, collection, primary string, columns ...Column) (*Model, error) {
	if name == "" {
		return nil, &DescriptorError{Message: "model name is required"}
	}
	m := &Model{
		Name:       name,
		Collection: collection,
		Primary:    primary,
		byName:     make(map[string]*Column, len(columns)),
		byAlias:    make(map[string]*Column, len(columns)),
	}
	for i := range columns {
		col := columns[i]
		if err := m.add(&col); err != nil {
			return nil, err
		}
	}
	if primary != "" && m.byName[primary] == nil {
		return nil, &DescriptorError{Model: name, Column: primary, Message: "primary column is not declared"}
	}
	return m, nil
}

// MustDefine is Define for static descriptors; it panics on error.
func MustDefine(name, collection, primary string, columns ...Column) *Model {
	m, err := Define(name, collection, primary, columns...)
	if err != nil {
		panic(err)
	}
	return m
}

func (m *Model) add(col *Column) error {
	if col.Name == "" {
		return &DescriptorError{Model: m.Name, Message: fmt.Sprintf("column %d has no name", len(m.columns))}
	}
	if col.Alias == "" {
		col.Alias = col.Name
	}
	if _, dup := m.byName[col.Name]; dup {
		return &DescriptorError{Model: m.Name, Column: col.Name, Message: "duplicate column name"}
	}
	if other, dup := m.byAlias[col.Alias]; dup {
		return &DescriptorError{Model: m.Name, Column: col.Name, Message: fmt.Sprintf("alias %q already used by %q", col.Alias, other.Name)}
	}
	if len(col.Formats) == 0 {
		return &DescriptorError{Model: m.Name, Column: col.Name, Message: "at least one format is required"}
	}
	if col.Has(FormatPattern) && col.Pattern == "" {
		return &DescriptorError{Model: m.Name, Column: col.Name, Message: "Pattern format requires a pattern"}
	}
	if col.Has(FormatEnumeration) && len(col.Values) == 0 {
		return &DescriptorError{Model: m.Name, Column: col.Name, Message: "Enumeration format requires values"}
	}
	if col.Foreign != nil && (col.Foreign.Local == "" || col.Foreign.Foreign == "") {
		return &DescriptorError{Model: m.Name, Column: col.Name, Message: "foreign relation requires local and foreign keys"}
	}
	m.columns = append(m.columns, col)
	m.byName[col.Name] = col
	m.byAlias[col.Alias] = col
	return nil
}

// Columns returns the columns in declaration order.
func (m *Model) Columns() []*Column {
	return slices.Clone(m.columns)
}

// Column returns the column with the given logical name, or nil.
func (m *Model) Column(name string) *Column {
	return m.byName[name]
}

// ColumnByAlias returns the column stored under alias, or nil.
func (m *Model) ColumnByAlias(alias string) *Column {
	return m.byAlias[alias]
}

// PrimaryColumn returns the primary identifier column, or nil.
func (m *Model) PrimaryColumn() *Column {
	if m.Primary == "" {
		return nil
	}
	return m.byName[m.Primary]
}

// DocumentID returns the column stored as the document's own identifier.
func (m *Model) DocumentID() *Column {
	return m.byAlias[IDField]
}

// Bind points a relation column at a composite model. It is how models that
// reference themselves, or each other, are linked after definition.
func (m *Model) Bind(column string, target *Model) error {
	col := m.byName[column]
	if col == nil {
		return &UnknownColumnError{Model: m.Name, Column: column}
	}
	if target == nil {
		return &DescriptorError{Model: m.Name, Column: column, Message: "cannot bind to a nil model"}
	}
	col.Model = Composite(target)
	return nil
}

// Validate checks relation invariants that need bound targets: foreign
// relations reference composite models, their keys exist on both sides, and
// a collection can be resolved.
func (m *Model) Validate() error {
	for _, col := range m.columns {
		if col.Foreign == nil {
			continue
		}
		target := col.Target()
		if target == nil {
			return &DescriptorError{Model: m.Name, Column: col.Name, Message: "foreign relation must reference a composite model"}
		}
		if m.byName[col.Foreign.Local] == nil {
			return &UnknownColumnError{Model: m.Name, Column: col.Foreign.Local}
		}
		if target.Column(col.Foreign.Foreign) == nil {
			return &UnknownColumnError{Model: target.Name, Column: col.Foreign.Foreign}
		}
		if col.Source() == "" {
			return &DescriptorError{Model: m.Name, Column: col.Name, Message: "foreign relation has no collection"}
		}
		for key := range col.Foreign.Filter {
			if target.Column(key) == nil {
				return &UnknownColumnError{Model: target.Name, Column: key}
			}
		}
	}
	return nil
}

func (m *Model) String() string {
	return m.Name
}
