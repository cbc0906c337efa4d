package query

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Request is a complete read request against one model.
type Request struct {
	Model  string
	Views  []string
	Filter Filter
	Sort   Sort
	Page   *Pagination
}

type requestFile struct {
	Model  string                   `yaml:"model"`
	Views  []string                 `yaml:"views,omitempty"`
	Filter map[string]operationFile `yaml:"filter,omitempty"`
	Sort   []sortKeyFile            `yaml:"sort,omitempty"`
	Page   *pageFile                `yaml:"page,omitempty"`
}

type operationFile struct {
	Op    string `yaml:"op"`
	Value any    `yaml:"value"`
}

type sortKeyFile struct {
	Column string `yaml:"column"`
	Order  string `yaml:"order,omitempty"`
}

type pageFile struct {
	Start int64 `yaml:"start"`
	Count int64 `yaml:"count"`
}

// LoadRequest reads a request from a YAML file.
func LoadRequest(path string) (*Request, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read request file: %w", err)
	}
	req, err := ParseRequest(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return req, nil
}

// ParseRequest decodes a YAML request. Unknown fields are rejected.
func ParseRequest(data []byte) (*Request, error) {
	var raw requestFile
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&raw); err != nil {
		return nil, fmt.Errorf("parse request YAML: %w", err)
	}
	return raw.toRequest()
}

// DecodeRequest converts an already-decoded YAML node into a Request.
// Scenario files embed requests this way.
func DecodeRequest(node *yaml.Node) (*Request, error) {
	var raw requestFile
	if err := node.Decode(&raw); err != nil {
		return nil, fmt.Errorf("decode request: %w", err)
	}
	return raw.toRequest()
}

func (raw requestFile) toRequest() (*Request, error) {
	req := &Request{
		Model: raw.Model,
		Views: raw.Views,
	}

	if len(raw.Filter) > 0 {
		req.Filter = make(Filter, len(raw.Filter))
		for column, op := range raw.Filter {
			operator, err := ParseOperator(op.Op)
			if err != nil {
				return nil, fmt.Errorf("filter %q: %w", column, err)
			}
			req.Filter[column] = Operation{Operator: operator, Value: op.Value}
		}
	}

	for i, key := range raw.Sort {
		if key.Column == "" {
			return nil, fmt.Errorf("sort[%d]: column is required", i)
		}
		order, err := ParseOrder(key.Order)
		if err != nil {
			return nil, fmt.Errorf("sort[%d]: %w", i, err)
		}
		req.Sort = append(req.Sort, SortKey{Column: key.Column, Order: order})
	}

	if raw.Page != nil {
		if raw.Page.Start < 0 || raw.Page.Count < 0 {
			return nil, fmt.Errorf("page: start and count must be non-negative")
		}
		req.Page = &Pagination{Start: raw.Page.Start, Count: raw.Page.Count}
	}

	return req, nil
}
