package query

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseOperator(t *testing.T) {
	tests := []struct {
		in   string
		want Operator
	}{
		{"LESS", Less},
		{"less_or_equal", LessOrEqual},
		{"less-or-equal", LessOrEqual},
		{"==", Equal},
		{"!=", NotEqual},
		{">=", GreaterOrEqual},
		{"gt", Greater},
		{"between", Between},
		{"in", Contain},
		{"NOT_CONTAIN", NotContain},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseOperator(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := ParseOperator("like")
	assert.Error(t, err)
}

func TestOperatorSequential(t *testing.T) {
	assert.True(t, Between.Sequential())
	assert.True(t, Contain.Sequential())
	assert.True(t, NotContain.Sequential())
	assert.False(t, Equal.Sequential())
	assert.False(t, Operator(99).Valid())
}

func TestParseOrder(t *testing.T) {
	asc, err := ParseOrder("")
	require.NoError(t, err)
	assert.Equal(t, Ascending, asc)

	desc, err := ParseOrder("DESC")
	require.NoError(t, err)
	assert.Equal(t, Descending, desc)
	assert.Equal(t, -1, int(desc))

	_, err = ParseOrder("sideways")
	assert.Error(t, err)
}

func TestFilterColumnsSorted(t *testing.T) {
	f := Filter{
		"zeta":  {Operator: Equal, Value: 1},
		"alpha": {Operator: Equal, Value: 2},
	}
	assert.Equal(t, []string{"alpha", "zeta"}, f.Columns())
}

func TestParseRequest(t *testing.T) {
	data := []byte(`
model: User
views: [detail]
filter:
  age: {op: between, value: [18, 30]}
  firstName: {op: "==", value: Ada}
sort:
  - {column: lastName, order: desc}
  - {column: firstName}
page: {start: 10, count: 5}
`)
	req, err := ParseRequest(data)
	require.NoError(t, err)

	assert.Equal(t, "User", req.Model)
	assert.Equal(t, []string{"detail"}, req.Views)
	require.Len(t, req.Filter, 2)
	assert.Equal(t, Between, req.Filter["age"].Operator)
	assert.Equal(t, []any{18, 30}, req.Filter["age"].Value)
	assert.Equal(t, Operation{Operator: Equal, Value: "Ada"}, req.Filter["firstName"])
	assert.Equal(t, Sort{
		{Column: "lastName", Order: Descending},
		{Column: "firstName", Order: Ascending},
	}, req.Sort)
	assert.Equal(t, &Pagination{Start: 10, Count: 5}, req.Page)
}

func TestParseRequestErrors(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"unknown field", "model: User\nlimit: 3\n"},
		{"bad operator", "model: User\nfilter:\n  a: {op: like, value: x}\n"},
		{"sort without column", "model: User\nsort:\n  - {order: asc}\n"},
		{"negative page", "model: User\npage: {start: -1, count: 2}\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseRequest([]byte(tt.data))
			assert.Error(t, err)
		})
	}
}
