package pipeline

import (
	"fmt"
	"slices"
	"strings"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/roach88/docmap/internal/model"
)

// resolution carries the state of one relationship walk: emitted join
// stages, the level tree and the models on the current recursion path.
type resolution struct {
	c      *Compiler
	views  []string
	stages mongo.Pipeline
	root   *Level
	opened int
	trail  []*model.Model
}

func newResolution(c *Compiler, base *model.Model, views []string) *resolution {
	return &resolution{
		c:     c,
		views: views,
		root:  newRootLevel(),
		trail: []*model.Model{base},
	}
}

// enter pushes m onto the recursion path, failing if it is already there.
func (r *resolution) enter(m *model.Model) error {
	if slices.Contains(r.trail, m) {
		path := make([]string, 0, len(r.trail)+1)
		for _, seen := range r.trail {
			path = append(path, seen.Name)
		}
		return &model.CyclicModelError{Path: append(path, m.Name)}
	}
	r.trail = append(r.trail, m)
	return nil
}

func (r *resolution) leave() {
	r.trail = r.trail[:len(r.trail)-1]
}

// open registers a new level below parent at path.
func (r *resolution) open(parent *Level, path []string, real bool) *Level {
	r.opened++
	l := &Level{
		Name:   fmt.Sprintf("l%d", r.opened),
		Path:   slices.Clone(path),
		Real:   real,
		Index:  fmt.Sprintf("__idx_%d", r.opened),
		Parent: parent,
	}
	parent.Children = append(parent.Children, l)
	return l
}

// resolveRelationships walks current's visible columns and returns the
// projection for them. Join and unwind stages are appended to r.stages as
// relations are met; levels are opened below level for arrays that had to
// be unwound. path is the stored path of current from the document root.
func (r *resolution) resolveRelationships(current *model.Model, path []string, level *Level) (bson.D, error) {
	projection := bson.D{}
	for _, col := range current.Columns() {
		if !col.VisibleIn(r.views) {
			continue
		}
		at := append(slices.Clone(path), col.StorageName())

		var (
			value any = 1
			err   error
		)
		switch col.Relation() {
		case model.RelationForeign:
			value, err = r.resolveForeignRelation(current, col, path, at, level)
		case model.RelationNested:
			value, err = r.resolveNestedRelation(col, at, level)
		}
		if err != nil {
			return nil, err
		}
		projection = append(projection, bson.E{Key: col.StorageName(), Value: value})
	}
	return projection, nil
}

// resolveForeignRelation joins the referenced collection at `at`, unwinds
// the joined array and resolves the referenced model's own columns.
func (r *resolution) resolveForeignRelation(owner *model.Model, col *model.Column, path, at []string, level *Level) (any, error) {
	target := col.Target()
	local := owner.Column(col.Foreign.Local)
	if local == nil {
		return nil, &model.UnknownColumnError{Model: owner.Name, Column: col.Foreign.Local}
	}
	foreign := target.Column(col.Foreign.Foreign)
	if foreign == nil {
		return nil, &model.UnknownColumnError{Model: target.Name, Column: col.Foreign.Foreign}
	}
	if err := r.enter(target); err != nil {
		return nil, err
	}
	defer r.leave()

	as := strings.Join(at, ".")
	localPath := strings.Join(append(slices.Clone(path), local.StorageName()), ".")
	lookup, err := r.lookup(col, local, foreign, localPath, as)
	if err != nil {
		return nil, err
	}
	r.stages = append(r.stages, lookup)

	if col.Multiple() {
		next := r.open(level, at, true)
		r.stages = append(r.stages, unwind(as, next.Index))
		return r.subProjection(target, at, next)
	}

	r.stages = append(r.stages, unwind(as, ""))
	joined := len(r.stages)
	sub, err := r.subProjection(target, at, level)
	if err != nil {
		return nil, err
	}
	if len(r.stages) > joined {
		// Joins below an unmatched to-one relation write into it and leave
		// an empty document behind.
		r.stages = append(r.stages, dropUnmatched(as))
	}
	return sub, nil
}

// dropUnmatched removes the joined document at path when it has no _id,
// which only happens when the join matched nothing.
func dropUnmatched(path string) bson.D {
	field := "$" + path
	return bson.D{{Key: "$set", Value: bson.D{{Key: path, Value: bson.D{{Key: "$cond", Value: bson.D{
		{Key: "if", Value: bson.D{{Key: "$eq", Value: bson.A{
			bson.D{{Key: "$type", Value: field + "." + model.IDField}},
			"missing",
		}}}},
		{Key: "then", Value: "$$REMOVE"},
		{Key: "else", Value: field},
	}}}}}}}
}

// resolveNestedRelation recurses into an embedded document. Embedded arrays
// whose elements need joins are unwound first so each element is joined on
// its own row.
func (r *resolution) resolveNestedRelation(col *model.Column, at []string, level *Level) (any, error) {
	if col.Has(model.FormatMap) {
		return 1, nil
	}
	target := col.Target()
	if err := r.enter(target); err != nil {
		return nil, err
	}
	defer r.leave()

	next := level
	if col.Multiple() && r.joinsBelow(target, map[*model.Model]bool{}) {
		next = r.open(level, at, false)
		r.stages = append(r.stages, unwind(strings.Join(at, "."), next.Index))
	}
	return r.subProjection(target, at, next)
}

func (r *resolution) subProjection(target *model.Model, at []string, level *Level) (any, error) {
	sub, err := r.resolveRelationships(target, at, level)
	if err != nil {
		return nil, err
	}
	if len(sub) == 0 {
		return 1, nil
	}
	return sub, nil
}

// joinsBelow reports whether m, or any model embedded in it, has a visible
// foreign relation.
func (r *resolution) joinsBelow(m *model.Model, seen map[*model.Model]bool) bool {
	if seen[m] {
		return false
	}
	seen[m] = true
	for _, col := range m.Columns() {
		if !col.VisibleIn(r.views) {
			continue
		}
		switch col.Relation() {
		case model.RelationForeign:
			return true
		case model.RelationNested:
			if !col.Has(model.FormatMap) && r.joinsBelow(col.Target(), seen) {
				return true
			}
		}
	}
	return false
}

// lookup emits the join for a foreign relation. Without a join filter this
// is the equality form; with one, the let/pipeline form whose inner match
// carries the compiled filter.
func (r *resolution) lookup(col *model.Column, local, foreign *model.Column, localPath, as string) (bson.D, error) {
	if len(col.Foreign.Filter) == 0 {
		return bson.D{{Key: "$lookup", Value: bson.D{
			{Key: "from", Value: col.Source()},
			{Key: "localField", Value: localPath},
			{Key: "foreignField", Value: foreign.StorageName()},
			{Key: "as", Value: as},
		}}}, nil
	}

	predicate, err := r.c.Predicate(col.Target(), col.Foreign.Filter)
	if err != nil {
		return nil, err
	}

	field := "$" + foreign.StorageName()
	var match bson.D
	switch {
	case local.Multiple():
		match = bson.D{{Key: "$in", Value: bson.A{field, bson.D{{Key: "$ifNull", Value: bson.A{"$$key", bson.A{}}}}}}}
	case foreign.Multiple():
		match = bson.D{{Key: "$in", Value: bson.A{"$$key", bson.D{{Key: "$ifNull", Value: bson.A{field, bson.A{}}}}}}}
	default:
		match = bson.D{{Key: "$eq", Value: bson.A{field, "$$key"}}}
	}

	return bson.D{{Key: "$lookup", Value: bson.D{
		{Key: "from", Value: col.Source()},
		{Key: "let", Value: bson.D{{Key: "key", Value: "$" + localPath}}},
		{Key: "pipeline", Value: bson.A{
			bson.D{{Key: "$match", Value: bson.D{{Key: "$expr", Value: match}}}},
			bson.D{{Key: "$match", Value: predicate}},
		}},
		{Key: "as", Value: as},
	}}}, nil
}

// unwind flattens the array at path, keeping rows whose array is missing or
// empty. A non-empty index field records each element's position.
func unwind(path, index string) bson.D {
	spec := bson.D{{Key: "path", Value: "$" + path}}
	if index != "" {
		spec = append(spec, bson.E{Key: "includeArrayIndex", Value: index})
	}
	spec = append(spec, bson.E{Key: "preserveNullAndEmptyArrays", Value: true})
	return bson.D{{Key: "$unwind", Value: spec}}
}
