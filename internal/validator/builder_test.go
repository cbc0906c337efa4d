package validator

import (
	"testing"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"

	"github.com/roach88/docmap/internal/document"
	"github.com/roach88/docmap/internal/model"
)

func bound(v float64) *float64 { return &v }

func productModel(t *testing.T) *model.Model {
	t.Helper()
	dims := model.MustDefine("Dimensions", "", "",
		model.Column{Name: "w", Formats: []model.Format{model.FormatNumber}},
		model.Column{Name: "h", Formats: []model.Format{model.FormatNumber}, Required: true},
	)
	vendor := model.MustDefine("Vendor", "vendors", "id",
		model.Column{Name: "id", Alias: "_id", Formats: []model.Format{model.FormatID}},
	)
	m, err := model.Define("Product", "products", "id",
		model.Column{Name: "id", Alias: "_id", Formats: []model.Format{model.FormatID}, Required: true},
		model.Column{Name: "name", Formats: []model.Format{model.FormatString}, Minimum: bound(1), Maximum: bound(50), Required: true},
		model.Column{Name: "price", Formats: []model.Format{model.FormatDecimal, model.FormatNull}, Minimum: bound(0)},
		model.Column{Name: "status", Formats: []model.Format{model.FormatEnumeration}, Values: []string{"draft", "live"}},
		model.Column{Name: "sku", Formats: []model.Format{model.FormatPattern}, Pattern: `/^[A-Z]{3}-\d+$/`},
		model.Column{Name: "tags", Formats: []model.Format{model.FormatArray}, Maximum: bound(10), Unique: true, Model: model.Marker(model.PrimitiveString)},
		model.Column{Name: "attrs", Formats: []model.Format{model.FormatMap}, Model: model.Marker(model.PrimitiveNumber)},
		model.Column{Name: "dims", Formats: []model.Format{model.FormatObject}, Model: model.Composite(dims)},
		model.Column{Name: "meta", Formats: []model.Format{model.FormatObject}, Model: model.Marker(model.PrimitiveObject)},
		model.Column{Name: "createdAt", Alias: "created_at", Formats: []model.Format{model.FormatDate}},
		model.Column{Name: "vendorId", Formats: []model.Format{model.FormatID}},
		model.Column{Name: "vendor", Formats: []model.Format{model.FormatObject}, Model: model.Composite(vendor),
			Foreign: &model.Foreign{Local: "vendorId", Foreign: "id"}},
	)
	require.NoError(t, err)
	return m
}

func TestBuildGolden(t *testing.T) {
	schema, err := Validator(productModel(t))
	require.NoError(t, err)

	out, err := document.Indent(schema)
	require.NoError(t, err)

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, "product_validator", out)
}

func TestBuildRequiredStringWithMaxLength(t *testing.T) {
	m := model.MustDefine("Tag", "tags", "",
		model.Column{Name: "label", Alias: "l", Formats: []model.Format{model.FormatString}, Maximum: bound(10), Required: true},
	)
	schema, err := Build(m)
	require.NoError(t, err)

	assert.Equal(t, bson.D{
		{Key: "bsonType", Value: "object"},
		{Key: "properties", Value: bson.D{
			{Key: "l", Value: bson.D{
				{Key: "bsonType", Value: bson.A{"string"}},
				{Key: "maxLength", Value: float64(10)},
			}},
		}},
		{Key: "additionalProperties", Value: false},
		{Key: "required", Value: bson.A{"l"}},
	}, schema)
}

func TestBuildOmitsEmptyRequired(t *testing.T) {
	m := model.MustDefine("Loose", "loose", "",
		model.Column{Name: "a", Formats: []model.Format{model.FormatBoolean}},
	)
	schema, err := Build(m)
	require.NoError(t, err)
	for _, e := range schema {
		assert.NotEqual(t, "required", e.Key)
	}
}

func TestBuildTypeUnion(t *testing.T) {
	m := model.MustDefine("U", "u", "",
		model.Column{Name: "v", Formats: []model.Format{model.FormatInteger, model.FormatDecimal, model.FormatNull},
			Minimum: bound(1), Maximum: bound(9)},
		model.Column{Name: "code", Formats: []model.Format{model.FormatString, model.FormatPattern}, Pattern: "^x"},
	)
	schema, err := Build(m)
	require.NoError(t, err)
	props := schema[1].Value.(bson.D)

	assert.Equal(t, bson.D{
		{Key: "bsonType", Value: bson.A{"int", "double", "null"}},
		{Key: "minimum", Value: float64(1)},
		{Key: "maximum", Value: float64(9)},
	}, props[0].Value)

	assert.Equal(t, bson.D{
		{Key: "bsonType", Value: bson.A{"string"}},
		{Key: "pattern", Value: "^x"},
	}, props[1].Value)
}

func TestBuildArrayOfDocuments(t *testing.T) {
	line := model.MustDefine("Line", "", "",
		model.Column{Name: "qty", Formats: []model.Format{model.FormatInteger}, Required: true},
	)
	order := model.MustDefine("Order", "orders", "",
		model.Column{Name: "lines", Formats: []model.Format{model.FormatArray}, Minimum: bound(1), Model: model.Composite(line)},
		model.Column{Name: "raw", Formats: []model.Format{model.FormatArray}},
	)
	schema, err := Build(order)
	require.NoError(t, err)
	props := schema[1].Value.(bson.D)

	assert.Equal(t, bson.D{
		{Key: "bsonType", Value: bson.A{"array"}},
		{Key: "minItems", Value: float64(1)},
		{Key: "items", Value: bson.D{
			{Key: "bsonType", Value: "object"},
			{Key: "properties", Value: bson.D{
				{Key: "qty", Value: bson.D{{Key: "bsonType", Value: bson.A{"int"}}}},
			}},
			{Key: "additionalProperties", Value: false},
			{Key: "required", Value: bson.A{"qty"}},
		}},
	}, props[0].Value)

	assert.Equal(t, bson.D{{Key: "bsonType", Value: bson.A{"array"}}}, props[1].Value)
}

func TestBuildUnsupportedFormat(t *testing.T) {
	m := model.MustDefine("Odd", "odd", "",
		model.Column{Name: "geo", Formats: []model.Format{model.Format(99)}},
	)
	_, err := Build(m)
	var ufe *model.UnsupportedFormatError
	require.ErrorAs(t, err, &ufe)
	assert.Equal(t, "geo", ufe.Column)
}

func TestBuildEmbeddedCycle(t *testing.T) {
	node := model.MustDefine("Node", "nodes", "",
		model.Column{Name: "child", Formats: []model.Format{model.FormatObject}},
	)
	require.NoError(t, node.Bind("child", node))

	_, err := Build(node)
	var cme *model.CyclicModelError
	require.ErrorAs(t, err, &cme)
	assert.Equal(t, []string{"Node", "Node"}, cme.Path)
}

func TestBuildJSONDialect(t *testing.T) {
	schema, err := BuildDialect(productModel(t), JSON)
	require.NoError(t, err)
	assert.Equal(t, "type", schema[0].Key)

	props := schema[1].Value.(bson.D)
	assert.Equal(t, bson.E{Key: "_id", Value: bson.D{{Key: "type", Value: bson.A{"string"}}}}, props[0])
}
