package catalog

import (
	"os"
	"path/filepath"
	"testing"

	"cuelang.org/go/cue/cuecontext"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/docmap/internal/model"
	"github.com/roach88/docmap/internal/query"
)

func modelsDir() string {
	return filepath.Join("..", "..", "testdata", "models")
}

func compileString(t *testing.T, src string) (*Catalog, error) {
	t.Helper()
	v := cuecontext.New().CompileString(src)
	return Compile(v)
}

func TestCompileBlogCatalog(t *testing.T) {
	result, errs := LoadDir(modelsDir(), LoadModeFailFast)
	require.Empty(t, errs)
	require.NotNil(t, result.Catalog)
	assert.Equal(t, 1, result.FileCount)

	cat := result.Catalog
	assert.Equal(t, []string{"Author", "Profile", "Post", "Comment"}, cat.Names())

	author, ok := cat.Model("Author")
	require.True(t, ok)
	assert.Equal(t, "authors", author.Collection)
	assert.Equal(t, "id", author.Primary)

	var names []string
	for _, col := range author.Columns() {
		names = append(names, col.Name)
	}
	assert.Equal(t, []string{"id", "name", "email", "profileId", "profile", "posts"}, names)

	name := author.Column("name")
	require.NotNil(t, name.Minimum)
	assert.Equal(t, float64(1), *name.Minimum)
	assert.Equal(t, float64(80), *name.Maximum)
	assert.True(t, name.Required)

	posts := author.Column("posts")
	assert.Equal(t, model.RelationForeign, posts.Relation())
	assert.Equal(t, "Post", posts.Target().Name)
	assert.Equal(t, []string{"posts"}, posts.Views)
	assert.Equal(t, "authorId", posts.Foreign.Foreign)
	assert.Equal(t, query.Operation{Operator: query.Equal, Value: "published"}, posts.Foreign.Filter["status"])

	post, _ := cat.Model("Post")
	tags := post.Column("tags")
	assert.False(t, tags.Model.IsComposite())
	assert.Equal(t, model.PrimitiveString, tags.Model.Primitive)
	assert.Equal(t, model.RelationNested, post.Column("comments").Relation())
}

func TestCompileSelfReference(t *testing.T) {
	cat, err := compileString(t, `
model: Employee: {
	collection: "employees"
	primary: "id"
	columns: {
		id:        {formats: ["Id"], alias: "_id"}
		managerId: {formats: ["Id", "Null"]}
		manager: {
			formats: ["Object"]
			model: "Employee"
			views: ["chain"]
			foreign: {local: "managerId", foreign: "id"}
		}
	}
}
`)
	require.NoError(t, err)
	emp, _ := cat.Model("Employee")
	assert.Same(t, emp, emp.Column("manager").Target())
}

func TestCompileErrors(t *testing.T) {
	tests := []struct {
		name  string
		src   string
		field string
		code  string
	}{
		{
			name:  "no models",
			src:   `other: 1`,
			field: "model",
			code:  ErrCodeUnknownModel,
		},
		{
			name:  "missing columns",
			src:   `model: A: {collection: "a"}`,
			field: "columns",
			code:  ErrCodeNoColumns,
		},
		{
			name:  "missing formats",
			src:   `model: A: columns: x: {alias: "y"}`,
			field: "x.formats",
			code:  ErrCodeInvalidFormats,
		},
		{
			name:  "unknown format",
			src:   `model: A: columns: x: {formats: ["Geo"]}`,
			field: "x.formats",
			code:  ErrCodeInvalidFormats,
		},
		{
			name:  "undeclared model",
			src:   `model: A: columns: x: {formats: ["Object"], model: "Missing"}`,
			field: "model",
			code:  ErrCodeUnknownModel,
		},
		{
			name:  "bad maximum",
			src:   `model: A: columns: x: {formats: ["String"], maximum: "ten"}`,
			field: "x.maximum",
			code:  ErrCodeInvalidType,
		},
		{
			name:  "foreign without keys",
			src:   `model: A: columns: x: {formats: ["Object"], model: "A", foreign: {local: "x"}}`,
			field: "x.foreign",
			code:  ErrCodeInvalidForeign,
		},
		{
			name:  "bad filter operator",
			src:   `model: A: columns: x: {formats: ["Object"], model: "A", foreign: {local: "x", foreign: "x", filter: x: {op: "like"}}}`,
			field: "x.foreign.filter.x",
			code:  ErrCodeInvalidForeign,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := compileString(t, tt.src)
			var ce *CompileError
			require.ErrorAs(t, err, &ce)
			assert.Equal(t, tt.field, ce.Field)
			assert.Equal(t, tt.code, MapFieldToErrorCode(ce.Field))
		})
	}
}

func TestCompileDescriptorError(t *testing.T) {
	_, err := compileString(t, `model: A: {primary: "id", columns: x: {formats: ["String"]}}`)
	var de *model.DescriptorError
	require.ErrorAs(t, err, &de)
	assert.Equal(t, "id", de.Column)
}

func TestLoadDirErrors(t *testing.T) {
	_, errs := LoadDir("/nonexistent/models", LoadModeFailFast)
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0].Error(), ErrCodeNotFound)

	empty := t.TempDir()
	_, errs = LoadDir(empty, LoadModeFailFast)
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0].Error(), ErrCodeNoFiles)
}

func TestLoadDirCollectAll(t *testing.T) {
	dir := t.TempDir()
	src := `package models

model: Good: {
	collection: "good"
	columns: id: {formats: ["Id"], alias: "_id"}
}
model: NoFormats: columns: x: {}
model: Dangling: columns: ref: {formats: ["Object"], model: "NoFormats"}
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "models.cue"), []byte(src), 0644))

	result, errs := LoadDir(dir, LoadModeCollectAll)
	require.Len(t, errs, 2)

	var codes []string
	for _, err := range errs {
		var le *LoadError
		require.ErrorAs(t, err, &le)
		codes = append(codes, le.Code)
	}
	assert.Equal(t, []string{ErrCodeInvalidFormats, ErrCodeUnknownModel}, codes)
	assert.Equal(t, []string{"Good", "Dangling"}, result.Catalog.Names())

	_, errs = LoadDir(dir, LoadModeFailFast)
	assert.Len(t, errs, 1)
}

func TestCatalogAddDuplicate(t *testing.T) {
	cat := New()
	m := model.MustDefine("A", "a", "", model.Column{Name: "x", Formats: []model.Format{model.FormatString}})
	require.NoError(t, cat.Add(m))
	assert.Error(t, cat.Add(m))
	assert.Equal(t, 1, cat.Len())
}

func TestFindCUEFiles(t *testing.T) {
	files, err := FindCUEFiles(modelsDir())
	require.NoError(t, err)
	assert.Len(t, files, 1)
	assert.Equal(t, "blog.cue", filepath.Base(files[0]))
}
