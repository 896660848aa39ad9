package catalog

import (
	"fmt"
	"slices"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"beatshop/internal/services"
	"beatshop/internal/textutil"
)

var titleCaser = cases.Title(language.Und)

// Category is a member of the configured category set.
type Category string

// Label returns the display name, e.g. "Afro" or "Lo-Fi".
func (c Category) Label() string {
	return titleCaser.String(strings.ReplaceAll(string(c), "_", " "))
}

// Set is the fixed, ordered set of categories a shop accepts.
type Set struct {
	ordered []Category
	index   map[Category]struct{}
}

// NewSet validates names and preserves their order, dropping duplicates.
func NewSet(names []string) (Set, error) {
	s := Set{index: make(map[Category]struct{}, len(names))}
	for _, raw := range names {
		name := strings.ToLower(strings.TrimSpace(raw))
		if !textutil.IsSlug(name) {
			return Set{}, services.Wrap(services.ErrConfiguration, "catalog", "categories", fmt.Sprintf("invalid category %q", raw), nil)
		}
		c := Category(name)
		if _, dup := s.index[c]; dup {
			continue
		}
		s.index[c] = struct{}{}
		s.ordered = append(s.ordered, c)
	}
	if len(s.ordered) == 0 {
		return Set{}, services.Wrap(services.ErrConfiguration, "catalog", "categories", "no categories configured", nil)
	}
	return s, nil
}

// Resolve maps user input to a member of the set. Matching ignores case and
// surrounding whitespace.
func (s Set) Resolve(name string) (Category, bool) {
	c := Category(strings.ToLower(strings.TrimSpace(name)))
	_, ok := s.index[c]
	return c, ok
}

// All returns the categories in configured order.
func (s Set) All() []Category {
	return slices.Clone(s.ordered)
}

// Len reports the number of categories.
func (s Set) Len() int { return len(s.ordered) }
