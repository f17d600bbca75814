// Package catalog holds the in-memory item list served by the demo page
// server and the test mock source.
package catalog

import (
	"fmt"
	"strings"

	"github.com/samber/lo"
)

// Item is one entry of a paged listing.
type Item struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

// Catalog is an immutable ordered item list split into fixed-size pages.
type Catalog struct {
	items   []Item
	perPage int
}

// New creates a catalog serving items perPage at a time.
func New(items []Item, perPage int) *Catalog {
	if perPage <= 0 {
		perPage = 10
	}
	return &Catalog{items: append([]Item(nil), items...), perPage: perPage}
}

// Generate builds n items named "<prefix> <id>".
func Generate(prefix string, n int) []Item {
	return lo.Times(n, func(i int) Item {
		return Item{ID: i + 1, Name: fmt.Sprintf("%s %d", prefix, i+1)}
	})
}

// PerPage returns the page size.
func (c *Catalog) PerPage() int {
	return c.perPage
}

// Page returns the items of 1-based page for query along with the page
// count of the filtered listing. An empty listing still has one page.
func (c *Catalog) Page(page int, query string) ([]Item, int) {
	matches := c.filter(query)
	total := (len(matches) + c.perPage - 1) / c.perPage
	if total < 1 {
		total = 1
	}
	if page < 1 || page > total {
		return []Item{}, total
	}
	start := (page - 1) * c.perPage
	end := min(start+c.perPage, len(matches))
	return append([]Item(nil), matches[start:end]...), total
}

func (c *Catalog) filter(query string) []Item {
	query = strings.ToLower(strings.TrimSpace(query))
	if query == "" {
		return c.items
	}
	return lo.Filter(c.items, func(it Item, _ int) bool {
		return strings.Contains(strings.ToLower(it.Name), query)
	})
}
