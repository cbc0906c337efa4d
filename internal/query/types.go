package query

import (
	"fmt"
	"sort"
	"strings"
)

// Operator is a comparison or membership test applied to one column.
type Operator int

const (
	Less Operator = iota + 1
	LessOrEqual
	Equal
	NotEqual
	GreaterOrEqual
	Greater
	Between
	Contain
	NotContain
)

var operatorNames = map[Operator]string{
	Less:           "LESS",
	LessOrEqual:    "LESS_OR_EQUAL",
	Equal:          "EQUAL",
	NotEqual:       "NOT_EQUAL",
	GreaterOrEqual: "GREATER_OR_EQUAL",
	Greater:        "GREATER",
	Between:        "BETWEEN",
	Contain:        "CONTAIN",
	NotContain:     "NOT_CONTAIN",
}

var operatorAliases = map[string]Operator{
	"<":   Less,
	"lt":  Less,
	"<=":  LessOrEqual,
	"lte": LessOrEqual,
	"==":  Equal,
	"=":   Equal,
	"eq":  Equal,
	"!=":  NotEqual,
	"ne":  NotEqual,
	"neq": NotEqual,
	">=":  GreaterOrEqual,
	"gte": GreaterOrEqual,
	">":   Greater,
	"gt":  Greater,
	"in":  Contain,
	"nin": NotContain,
}

func (o Operator) String() string {
	if name, ok := operatorNames[o]; ok {
		return name
	}
	return fmt.Sprintf("Operator(%d)", int(o))
}

// Valid reports whether o is one of the declared operators.
func (o Operator) Valid() bool {
	_, ok := operatorNames[o]
	return ok
}

// Sequential reports whether the operator takes a sequence value.
func (o Operator) Sequential() bool {
	return o == Between || o == Contain || o == NotContain
}

// ParseOperator accepts canonical names (any case, "-" or "_" separated)
// and the short forms "<", "<=", "==", "!=", ">=", ">", "in", "nin".
func ParseOperator(s string) (Operator, error) {
	key := strings.ToLower(strings.TrimSpace(s))
	if op, ok := operatorAliases[key]; ok {
		return op, nil
	}
	canonical := strings.ToUpper(strings.ReplaceAll(key, "-", "_"))
	for op, name := range operatorNames {
		if name == canonical {
			return op, nil
		}
	}
	return 0, fmt.Errorf("unknown operator %q", s)
}

// Operation pairs an operator with its operand. BETWEEN takes a two-element
// sequence; CONTAIN and NOT_CONTAIN take a sequence of any length.
type Operation struct {
	Operator Operator
	Value    any
}

// Filter maps logical column names to operations. All entries must hold.
type Filter map[string]Operation

// Columns returns the filtered column names in sorted order.
func (f Filter) Columns() []string {
	names := make([]string, 0, len(f))
	for name := range f {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Order is a sort direction. The numeric values are the ones the storage
// dialect expects.
type Order int

const (
	Ascending  Order = 1
	Descending Order = -1
)

func (o Order) String() string {
	if o == Descending {
		return "desc"
	}
	return "asc"
}

// ParseOrder accepts "asc", "ascending", "1", "desc", "descending" and "-1".
func ParseOrder(s string) (Order, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "asc", "ascending", "1":
		return Ascending, nil
	case "desc", "descending", "-1":
		return Descending, nil
	}
	return 0, fmt.Errorf("unknown sort order %q", s)
}

// SortKey orders results by one column.
type SortKey struct {
	Column string
	Order  Order
}

// Sort is an ordered list of sort keys; earlier keys take precedence.
type Sort []SortKey

// Pagination selects a window of results.
type Pagination struct {
	Start int64
	Count int64
}
