// Package catalog loads the closed set of request categories offered by the portal.
package catalog

import (
	_ "embed"
	"fmt"
	"sort"
	"strings"

	"sigede/internal/models"

	"gopkg.in/yaml.v3"
)

//go:embed categories.yml
var defaultCatalog []byte

// Category is one selectable request category.
type Category struct {
	Code           string             `yaml:"code" json:"code"`
	Label          string             `yaml:"label" json:"label"`
	Kind           models.RequestKind `yaml:"-" json:"kind"`
	RequiredFields []string           `yaml:"required_fields" json:"required_fields"`
}

// Catalog indexes categories by kind and code.
type Catalog struct {
	byKind map[models.RequestKind][]Category
	index  map[models.RequestKind]map[string]Category
}

// Default returns the catalog compiled into the binary.
func Default() *Catalog {
	c, err := Parse(defaultCatalog)
	if err != nil {
		panic(fmt.Sprintf("catalog: embedded categories.yml is invalid: %v", err))
	}
	return c
}

// Parse builds a catalog from YAML keyed by request kind.
func Parse(data []byte) (*Catalog, error) {
	var raw map[string][]Category
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse categories: %w", err)
	}

	c := &Catalog{
		byKind: make(map[models.RequestKind][]Category),
		index:  make(map[models.RequestKind]map[string]Category),
	}
	for kindRaw, cats := range raw {
		kind := models.RequestKind(kindRaw)
		if kind != models.KindLayanan && kind != models.KindPengaduan {
			return nil, fmt.Errorf("unknown request kind %q", kindRaw)
		}
		c.index[kind] = make(map[string]Category, len(cats))
		for _, cat := range cats {
			cat.Code = strings.TrimSpace(cat.Code)
			if cat.Code == "" {
				return nil, fmt.Errorf("category without code under %q", kindRaw)
			}
			if _, dup := c.index[kind][cat.Code]; dup {
				return nil, fmt.Errorf("duplicate category %q under %q", cat.Code, kindRaw)
			}
			cat.Kind = kind
			c.index[kind][cat.Code] = cat
			c.byKind[kind] = append(c.byKind[kind], cat)
		}
	}
	return c, nil
}

// Lookup returns the category with the given code under kind.
func (c *Catalog) Lookup(kind models.RequestKind, code string) (Category, bool) {
	cat, ok := c.index[kind][code]
	return cat, ok
}

// Kinds returns the configured kinds in a stable order.
func (c *Catalog) Kinds() []models.RequestKind {
	out := make([]models.RequestKind, 0, len(c.byKind))
	for k := range c.byKind {
		out = append(out, k)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// List returns the categories for a kind in file order.
func (c *Catalog) List(kind models.RequestKind) []Category {
	return append([]Category(nil), c.byKind[kind]...)
}

// All returns every category grouped by kind.
func (c *Catalog) All() map[models.RequestKind][]Category {
	out := make(map[models.RequestKind][]Category, len(c.byKind))
	for k := range c.byKind {
		out[k] = c.List(k)
	}
	return out
}

// Validate checks a submission's kind, category and required payload fields.
func (c *Catalog) Validate(kind models.RequestKind, code string, payload map[string]string) error {
	if _, ok := c.index[kind]; !ok {
		return models.NewValidationError(fmt.Sprintf("unknown request kind %q", kind))
	}
	cat, ok := c.Lookup(kind, code)
	if !ok {
		return models.NewValidationError(fmt.Sprintf("unknown category %q for %s", code, kind))
	}
	var missing []string
	for _, field := range cat.RequiredFields {
		if strings.TrimSpace(payload[field]) == "" {
			missing = append(missing, field)
		}
	}
	if len(missing) > 0 {
		return models.NewValidationError("missing required fields: " + strings.Join(missing, ", "))
	}
	return nil
}
