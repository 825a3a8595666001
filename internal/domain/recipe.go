// Package domain holds the core data model of the recipe box: recipes,
// the singleton metadata document, image references, and the fixed
// category set. It performs no I/O; persistence adapters and the
// application service build on these types.
package domain

import "strings"

// DefaultTheme is applied whenever a document carries no theme.
const DefaultTheme = "theme-morkgron"

// Themes lists the selectable UI themes.
var Themes = []string{"theme-morkgron", "theme-klassisk", "theme-pastell"}

// Recipe is a user-entered dish record. Field tags follow the historical
// wire format so old exports load unchanged.
type Recipe struct {
	ID           string     `json:"id"`
	Title        string     `json:"title"`
	Category     string     `json:"cat"`
	Favorite     bool       `json:"fav"`
	Images       []ImageRef `json:"images"`
	Ingredients  []string   `json:"ings"`
	Instructions string     `json:"inst"`
	Tags         []string   `json:"tags"`
	CreatedAt    int64      `json:"createdAt"` // epoch milliseconds
}

// Document is the singleton metadata document: every recipe plus app
// settings. Exactly one current document exists per installation.
type Document struct {
	Recipes []Recipe `json:"recipes"`
	Theme   string   `json:"theme"`
}

// NewDocument returns a fresh empty document with the default theme.
func NewDocument() *Document {
	return &Document{Recipes: []Recipe{}, Theme: DefaultTheme}
}

// Find returns the recipe with the given id, or nil.
func (d *Document) Find(id string) *Recipe {
	for i := range d.Recipes {
		if d.Recipes[i].ID == id {
			return &d.Recipes[i]
		}
	}
	return nil
}

// Remove deletes the recipe with the given id, reporting whether it was
// present. Insertion order of the remaining recipes is preserved.
func (d *Document) Remove(id string) bool {
	for i := range d.Recipes {
		if d.Recipes[i].ID == id {
			d.Recipes = append(d.Recipes[:i], d.Recipes[i+1:]...)
			return true
		}
	}
	return false
}

// Merge appends every recipe from src whose id is not already present
// (first occurrence wins) and adopts src's theme only when d has none.
// It returns the number of recipes added.
func (d *Document) Merge(src *Document) int {
	have := make(map[string]struct{}, len(d.Recipes))
	for _, r := range d.Recipes {
		have[r.ID] = struct{}{}
	}
	added := 0
	for _, r := range src.Recipes {
		if _, ok := have[r.ID]; ok {
			continue
		}
		have[r.ID] = struct{}{}
		d.Recipes = append(d.Recipes, r)
		added++
	}
	if d.Theme == "" && src.Theme != "" {
		d.Theme = src.Theme
	}
	return added
}

// ParseTags splits a comma-separated tag string into trimmed, lowercased,
// non-empty tags.
func ParseTags(s string) []string {
	var out []string
	for _, t := range strings.Split(s, ",") {
		t = strings.ToLower(strings.TrimSpace(t))
		if t != "" {
			out = append(out, t)
		}
	}
	return out
}

// ParseLines splits free text into trimmed non-empty lines, used for
// ingredient lists.
func ParseLines(s string) []string {
	var out []string
	for _, l := range strings.Split(strings.ReplaceAll(s, "\r\n", "\n"), "\n") {
		l = strings.TrimSpace(l)
		if l != "" {
			out = append(out, l)
		}
	}
	return out
}
