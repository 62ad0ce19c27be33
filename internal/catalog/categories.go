package catalog

import (
	_ "embed"
	"fmt"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

//go:embed categories.yaml
var categoriesYAML []byte

// Category is a selectable product category.
type Category struct {
	Name string `yaml:"name"`
	Slug string `yaml:"slug"`
}

// Categories is an ordered category list.
type Categories []Category

// Contains reports whether name matches a category exactly.
func (c Categories) Contains(name string) bool {
	for _, cat := range c {
		if cat.Name == name {
			return true
		}
	}
	return false
}

// BySlug looks up a category by slug, case-insensitively.
func (c Categories) BySlug(slug string) (Category, bool) {
	slug = strings.TrimSpace(slug)
	for _, cat := range c {
		if strings.EqualFold(cat.Slug, slug) {
			return cat, true
		}
	}
	return Category{}, false
}

var (
	defaultOnce       sync.Once
	defaultCategories Categories
	defaultErr        error
)

// DefaultCategories returns the embedded category list.
func DefaultCategories() (Categories, error) {
	defaultOnce.Do(func() {
		defaultCategories, defaultErr = ParseCategories(categoriesYAML)
	})
	return defaultCategories, defaultErr
}

// ParseCategories decodes a YAML category document.
func ParseCategories(data []byte) (Categories, error) {
	var doc struct {
		Categories Categories `yaml:"categories"`
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("catalog: parse categories: %w", err)
	}
	seen := make(map[string]struct{}, len(doc.Categories))
	for _, cat := range doc.Categories {
		if strings.TrimSpace(cat.Name) == "" || strings.TrimSpace(cat.Slug) == "" {
			return nil, fmt.Errorf("catalog: category requires name and slug")
		}
		if _, dup := seen[cat.Slug]; dup {
			return nil, fmt.Errorf("catalog: duplicate category slug %q", cat.Slug)
		}
		seen[cat.Slug] = struct{}{}
	}
	return doc.Categories, nil
}
