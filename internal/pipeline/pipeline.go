package pipeline

import (
	"fmt"
	"log/slog"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/roach88/docmap/internal/model"
	"github.com/roach88/docmap/internal/query"
)

// ModelSource looks up model descriptors by name.
type ModelSource interface {
	Model(name string) (*model.Model, bool)
}

// Pipeline compiles a read of m into aggregation stages, in this order:
//
//  1. $match on the base documents, if filter is non-empty
//  2. $lookup/$unwind for every visible relation, in discovery order, with a
//     $set after a to-one join whose own joins could leave it as {}
//  3. $group/$project pairs folding unwound arrays back, innermost first
//  4. the final $project of every visible column
//  5. $sort, if sort is non-empty
//  6. $skip and $limit, if page is set ($limit only when Count > 0)
//
// Nothing is returned on error; errors are never partial pipelines.
func (c *Compiler) Pipeline(m *model.Model, views []string, filter query.Filter, sort query.Sort, page *query.Pagination) (mongo.Pipeline, error) {
	stages := mongo.Pipeline{}

	if len(filter) > 0 {
		predicate, err := c.Predicate(m, filter)
		if err != nil {
			return nil, err
		}
		stages = append(stages, bson.D{{Key: "$match", Value: predicate}})
	}

	r := newResolution(c, m, views)
	projection, err := r.resolveRelationships(m, nil, r.root)
	if err != nil {
		return nil, err
	}
	stages = append(stages, r.stages...)
	stages = append(stages, composeAll(r.root, topLevelFields(projection))...)
	stages = append(stages, bson.D{{Key: "$project", Value: finalProjection(projection)}})

	if len(sort) > 0 {
		sortStage, err := sortDocument(m, views, sort)
		if err != nil {
			return nil, err
		}
		stages = append(stages, bson.D{{Key: "$sort", Value: sortStage}})
	}

	if page != nil {
		if page.Start < 0 || page.Count < 0 {
			return nil, &model.InvalidOperationError{
				Column:  "page",
				Message: fmt.Sprintf("start and count must be non-negative, got %d and %d", page.Start, page.Count),
			}
		}
		stages = append(stages, bson.D{{Key: "$skip", Value: page.Start}})
		if page.Count > 0 {
			stages = append(stages, bson.D{{Key: "$limit", Value: page.Count}})
		}
	}

	c.logger.Debug("compiled pipeline",
		slog.String("model", m.Name),
		slog.Any("views", views),
		slog.Int("stages", len(stages)),
		slog.Int("levels", len(decomposeAll(r.root))),
	)
	return stages, nil
}

// Compile resolves req.Model through models and compiles the request.
func (c *Compiler) Compile(models ModelSource, req *query.Request) (mongo.Pipeline, error) {
	m, ok := models.Model(req.Model)
	if !ok {
		return nil, fmt.Errorf("unknown model %q", req.Model)
	}
	return c.Pipeline(m, req.Views, req.Filter, req.Sort, req.Page)
}

// sortDocument keys the sort on projected fields. The sort runs after the
// final $project, so columns hidden by views are unknown, and joined
// relations are rejected.
func sortDocument(m *model.Model, views []string, sort query.Sort) (bson.D, error) {
	doc := make(bson.D, 0, len(sort))
	for _, key := range sort {
		col := m.Column(key.Column)
		if col == nil || !col.VisibleIn(views) {
			return nil, &model.UnknownColumnError{Model: m.Name, Column: key.Column}
		}
		if col.Relation() == model.RelationForeign {
			return nil, &model.InvalidOperationError{Column: key.Column, Message: "cannot sort on a joined relation"}
		}
		order := key.Order
		if order != query.Descending {
			order = query.Ascending
		}
		doc = append(doc, bson.E{Key: col.StorageName(), Value: int(order)})
	}
	return doc, nil
}

func topLevelFields(projection bson.D) []string {
	fields := make([]string, 0, len(projection))
	for _, e := range projection {
		if e.Key == model.IDField {
			continue
		}
		fields = append(fields, e.Key)
	}
	return fields
}

// finalProjection suppresses the implicit _id unless a visible column is
// stored there.
func finalProjection(projection bson.D) bson.D {
	for _, e := range projection {
		if e.Key == model.IDField {
			return projection
		}
	}
	return append(bson.D{{Key: model.IDField, Value: 0}}, projection...)
}
