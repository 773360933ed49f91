// Package catalog provides the immutable item index built once at startup
// from the merchant configuration, optionally supplemented by items bulk
// loaded into the database by catalog-ingest.
package catalog

import (
	"context"

	"github.com/ucpify/ucpify/internal/merchant"
)

// Item is a resolved catalog listing. Price is in minor currency units.
type Item struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	Price       int64  `json:"price"`
	SKU         string `json:"sku,omitempty"`
}

// Repository provides read access to database-ingested catalog items.
type Repository interface {
	ListItems(ctx context.Context) ([]Item, error)
}

// Index is an immutable lookup from item ID to listing. It is built once and
// safe for concurrent reads.
type Index struct {
	items map[string]Item
	order []string
}

// NewIndex builds an index from config items alone.
func NewIndex(items []merchant.Item) *Index {
	idx := &Index{items: make(map[string]Item, len(items))}
	for _, it := range items {
		idx.add(Item{
			ID:          it.ID,
			Title:       it.Title,
			Description: it.Description,
			Price:       it.Price,
			SKU:         it.SKU,
		})
	}
	return idx
}

// NewIndexWithRepository builds an index from config items plus everything in
// the repository. Config items win on ID collision.
func NewIndexWithRepository(ctx context.Context, items []merchant.Item, repo Repository) (*Index, error) {
	idx := NewIndex(items)

	stored, err := repo.ListItems(ctx)
	if err != nil {
		return nil, err
	}
	for _, it := range stored {
		if _, exists := idx.items[it.ID]; exists {
			continue
		}
		idx.add(it)
	}
	return idx, nil
}

func (idx *Index) add(it Item) {
	idx.items[it.ID] = it
	idx.order = append(idx.order, it.ID)
}

// Lookup returns the listing for id and whether it exists.
func (idx *Index) Lookup(id string) (Item, bool) {
	it, ok := idx.items[id]
	return it, ok
}

// Items returns all listings in insertion order.
func (idx *Index) Items() []Item {
	out := make([]Item, 0, len(idx.order))
	for _, id := range idx.order {
		out = append(out, idx.items[id])
	}
	return out
}

// Len returns the number of listings.
func (idx *Index) Len() int {
	return len(idx.items)
}
