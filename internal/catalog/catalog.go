// Package catalog loads model descriptors declared in CUE and checks them as
// a whole: relation targets, keys, embedded cycles and validator coverage.
//
// A catalog file declares models under the top-level "model" struct:
//
//	model: Author: {
//		collection: "authors"
//		primary:    "id"
//		columns: {
//			id:    {formats: ["Id"], alias: "_id", required: true}
//			name:  {formats: ["String"], maximum: 80}
//			posts: {
//				formats: ["Array"]
//				model:   "Post"
//				views:   ["posts"]
//				foreign: {local: "id", foreign: "authorId"}
//			}
//		}
//	}
//
// Column order follows declaration order, which is also projection order.
package catalog

import (
	"fmt"

	"github.com/roach88/docmap/internal/model"
)

// Catalog is an ordered set of models keyed by name.
type Catalog struct {
	order  []string
	models map[string]*model.Model
}

// New returns an empty catalog.
func New() *Catalog {
	return &Catalog{models: make(map[string]*model.Model)}
}

// Add registers m. Model names must be unique within a catalog.
func (c *Catalog) Add(m *model.Model) error {
	if m == nil {
		return fmt.Errorf("catalog: nil model")
	}
	if _, dup := c.models[m.Name]; dup {
		return &model.DescriptorError{Model: m.Name, Message: "model declared twice"}
	}
	c.order = append(c.order, m.Name)
	c.models[m.Name] = m
	return nil
}

// Model returns the named model.
func (c *Catalog) Model(name string) (*model.Model, bool) {
	m, ok := c.models[name]
	return m, ok
}

// Names returns model names in declaration order.
func (c *Catalog) Names() []string {
	out := make([]string, len(c.order))
	copy(out, c.order)
	return out
}

// Models returns the models in declaration order.
func (c *Catalog) Models() []*model.Model {
	out := make([]*model.Model, 0, len(c.order))
	for _, name := range c.order {
		out = append(out, c.models[name])
	}
	return out
}

// Len returns the number of models.
func (c *Catalog) Len() int {
	return len(c.order)
}
