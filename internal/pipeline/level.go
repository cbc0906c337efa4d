package pipeline

import (
	"strings"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/roach88/docmap/internal/model"
)

const (
	rootKey    = "l0"
	itemsField = "__items"
)

// Level is a decomposition point in the result shape: an array that was
// unwound so that relations inside its elements could be resolved one
// element per row.
//
// A real level comes from a to-many join; its elements are identified by the
// joined document's _id. A virtual level comes from an embedded array whose
// elements need joins; its elements are identified by their array index.
// The root level stands for the base document itself.
type Level struct {
	// Name is the level's key inside composed group identifiers.
	Name string

	// Path is the stored field path from the document root.
	Path []string

	Real bool

	// Index is the field holding the element's position after unwinding.
	Index string

	Parent   *Level
	Children []*Level
}

func newRootLevel() *Level {
	return &Level{Name: rootKey}
}

// IsRoot reports whether l stands for the base document.
func (l *Level) IsRoot() bool {
	return l.Parent == nil
}

// Field returns the dotted field path of the level's array.
func (l *Level) Field() string {
	return strings.Join(l.Path, ".")
}

// key is the expression identifying one element of this level.
func (l *Level) key() string {
	switch {
	case l.IsRoot():
		return "$" + model.IDField
	case l.Real:
		return "$" + l.Field() + "." + model.IDField
	default:
		return "$" + l.Index
	}
}

// Group is one re-aggregation unit: rows sharing ID are folded back into a
// single row, carrying Fields and collecting Level's elements into an array.
type Group struct {
	ID     bson.D
	Fields []string
	Open   []*Level
	Level  *Level
}

// decomposeAll flattens the level tree below root in pre-order, so every
// level appears after its ancestors.
func decomposeAll(root *Level) []*Level {
	var levels []*Level
	var walk func(*Level)
	walk = func(l *Level) {
		for _, child := range l.Children {
			levels = append(levels, child)
			walk(child)
		}
	}
	walk(root)
	return levels
}

// composeAll rebuilds the document shape, innermost level first. fields are
// the top-level stored fields of the result.
func composeAll(root *Level, fields []string) mongo.Pipeline {
	levels := decomposeAll(root)
	stages := mongo.Pipeline{}
	for i := len(levels) - 1; i >= 0; i-- {
		// Levels after i have been composed already; those before it are
		// still unwound and must stay distinct.
		stages = append(stages, composeSubgroup(levels[i], levels[:i], fields)...)
	}
	return stages
}

// composeSubgroup groups the rows of level by the composed identifier of
// every level that is still unwound.
func composeSubgroup(level *Level, open []*Level, fields []string) []bson.D {
	return composeGroup(Group{
		ID:     composedID(open),
		Fields: fields,
		Open:   open,
		Level:  level,
	})
}

// composedID keys a group by the base document and the current element of
// each open level, ancestors first.
func composedID(open []*Level) bson.D {
	id := bson.D{{Key: rootKey, Value: "$" + model.IDField}}
	for _, l := range open {
		id = append(id, bson.E{Key: l.Name, Value: l.key()})
	}
	return id
}

// composeGroup emits the $group that collects the level's elements with their
// indexes and the $project that writes them back, in index order, at the
// level's path.
func composeGroup(g Group) []bson.D {
	top := g.Level.Path[0]

	group := bson.D{{Key: "_id", Value: g.ID}}
	for _, f := range g.Fields {
		if f == top && len(g.Level.Path) == 1 {
			continue
		}
		group = append(group, bson.E{Key: f, Value: bson.D{{Key: "$first", Value: "$" + f}}})
	}
	for _, l := range g.Open {
		group = append(group, bson.E{Key: l.Index, Value: bson.D{{Key: "$first", Value: "$" + l.Index}}})
	}
	group = append(group, bson.E{Key: itemsField, Value: bson.D{{Key: "$push", Value: bson.D{
		{Key: "i", Value: "$" + g.Level.Index},
		{Key: "v", Value: "$" + g.Level.Field()},
	}}}})

	project := bson.D{{Key: "_id", Value: "$_id." + rootKey}}
	for _, f := range g.Fields {
		if f == top {
			project = append(project, bson.E{Key: f, Value: restore(g.Level.Path)})
			continue
		}
		project = append(project, bson.E{Key: f, Value: 1})
	}
	for _, l := range g.Open {
		project = append(project, bson.E{Key: l.Index, Value: 1})
	}

	return []bson.D{
		{{Key: "$group", Value: group}},
		{{Key: "$project", Value: project}},
	}
}

// restore rebuilds the value stored at path from the collected items.
// Items whose index is null came from rows where the array was missing or
// empty and are dropped.
func restore(path []string) any {
	var expr any = bson.D{{Key: "$map", Value: bson.D{
		{Key: "input", Value: bson.D{{Key: "$sortArray", Value: bson.D{
			{Key: "input", Value: bson.D{{Key: "$filter", Value: bson.D{
				{Key: "input", Value: "$" + itemsField},
				{Key: "as", Value: "item"},
				{Key: "cond", Value: bson.D{{Key: "$ne", Value: bson.A{"$$item.i", nil}}}},
			}}}},
			{Key: "sortBy", Value: bson.D{{Key: "i", Value: 1}}},
		}}}},
		{Key: "as", Value: "item"},
		{Key: "in", Value: "$$item.v"},
	}}}

	for k := len(path) - 1; k >= 1; k-- {
		expr = bson.D{{Key: "$mergeObjects", Value: bson.A{
			"$" + strings.Join(path[:k], "."),
			bson.D{{Key: path[k], Value: expr}},
		}}}
	}
	return expr
}
