package notebook

import (
	"fmt"
	"path/filepath"
)

// HomeSlug selects the landing page rather than a notebook.
const HomeSlug = "home"

type Entry struct {
	Label string `json:"label"`
	Slug  string `json:"slug"`
	// Path is the file location as configured: absolute, or relative to the
	// catalog base directory.
	Path string `json:"path"`
}

// Catalog is the fixed, ordered notebook menu.
type Catalog struct {
	entries []Entry
	bySlug  map[string]int
}

// NewCatalog joins relative entry paths onto baseDir. Slugs must be unique and
// must not collide with HomeSlug.
func NewCatalog(baseDir string, entries []Entry) (*Catalog, error) {
	c := &Catalog{
		entries: make([]Entry, 0, len(entries)),
		bySlug:  make(map[string]int, len(entries)),
	}

	for _, e := range entries {
		if e.Slug == "" || e.Slug == HomeSlug {
			return nil, fmt.Errorf("invalid notebook slug %q", e.Slug)
		}
		if _, dup := c.bySlug[e.Slug]; dup {
			return nil, fmt.Errorf("duplicate notebook slug %q", e.Slug)
		}
		if e.Path == "" {
			return nil, fmt.Errorf("notebook %q has no file", e.Slug)
		}
		if !filepath.IsAbs(e.Path) && baseDir != "" {
			e.Path = filepath.Join(baseDir, e.Path)
		}
		if e.Label == "" {
			e.Label = e.Slug
		}

		c.bySlug[e.Slug] = len(c.entries)
		c.entries = append(c.entries, e)
	}

	return c, nil
}

// Entries returns a copy of the menu in display order.
func (c *Catalog) Entries() []Entry {
	out := make([]Entry, len(c.entries))
	copy(out, c.entries)
	return out
}

func (c *Catalog) Lookup(slug string) (Entry, error) {
	i, ok := c.bySlug[slug]
	if !ok {
		return Entry{}, fmt.Errorf("%w: %s", ErrUnknownEntry, slug)
	}
	return c.entries[i], nil
}
