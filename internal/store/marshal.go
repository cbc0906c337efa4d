package store

import (
	"encoding/json"
	"fmt"
	"slices"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/roach88/docmap/internal/document"
)

// normalizeViews sorts and deduplicates view modes; they act as a set.
func normalizeViews(views []string) []string {
	out := slices.Clone(views)
	slices.Sort(out)
	out = slices.Compact(out)
	if out == nil {
		out = []string{}
	}
	return out
}

func marshalViews(views []string) (string, error) {
	data, err := document.MarshalCanonical(views)
	if err != nil {
		return "", fmt.Errorf("marshal views: %w", err)
	}
	return string(data), nil
}

func unmarshalViews(data string) ([]string, error) {
	views := []string{}
	if data == "" {
		return views, nil
	}
	if err := json.Unmarshal([]byte(data), &views); err != nil {
		return nil, fmt.Errorf("unmarshal views: %w", err)
	}
	return views, nil
}

func marshalStages(stages mongo.Pipeline) (string, error) {
	if stages == nil {
		stages = mongo.Pipeline{}
	}
	data, err := document.MarshalCanonical(stages)
	if err != nil {
		return "", fmt.Errorf("marshal stages: %w", err)
	}
	return string(data), nil
}

func unmarshalStages(data string) (mongo.Pipeline, error) {
	stages, err := document.DecodePipeline([]byte(data))
	if err != nil {
		return nil, fmt.Errorf("unmarshal stages: %w", err)
	}
	if stages == nil {
		stages = mongo.Pipeline{}
	}
	return stages, nil
}

func marshalDocument(doc bson.D) (string, error) {
	data, err := document.MarshalCanonical(doc)
	if err != nil {
		return "", fmt.Errorf("marshal document: %w", err)
	}
	return string(data), nil
}

func unmarshalDocument(data string) (bson.D, error) {
	doc, err := document.DecodeDocument([]byte(data))
	if err != nil {
		return nil, fmt.Errorf("unmarshal document: %w", err)
	}
	return doc, nil
}

// pipelineIdentity is the value fingerprinted to identify a stored pipeline.
func pipelineIdentity(model string, views []string, stages mongo.Pipeline) bson.D {
	return bson.D{
		{Key: "model", Value: model},
		{Key: "views", Value: views},
		{Key: "stages", Value: stages},
	}
}
