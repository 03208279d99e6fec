package models

import "fmt"

// ItemType discriminates the tagged union of vote targets.
type ItemType string

const (
	ItemTypeRestaurant ItemType = "restaurant"
	ItemTypeRecipe     ItemType = "recipe"
)

// Item is the thing a round votes on. The Type field selects which of the
// variant fields are meaningful; payloads are validated at the gateway
// boundary rather than passed through as opaque blobs.
type Item struct {
	ID       string   `json:"id"`
	Type     ItemType `json:"itemType"`
	Name     string   `json:"name"`
	ImageURL string   `json:"imageUrl,omitempty"`
	Rating   float64  `json:"rating,omitempty"`
	Tags     []string `json:"tags,omitempty"`

	// Restaurant variant.
	Address  string `json:"address,omitempty"`
	PriceTag string `json:"priceTag,omitempty"`

	// Recipe variant.
	SourceURL   string `json:"sourceUrl,omitempty"`
	CookMinutes int    `json:"cookMinutes,omitempty"`
}

// Validate checks the fields required for the item's declared type.
func (i *Item) Validate() error {
	if i.ID == "" {
		return fmt.Errorf("item id is required")
	}
	if i.Name == "" {
		return fmt.Errorf("item name is required")
	}
	switch i.Type {
	case ItemTypeRestaurant, ItemTypeRecipe:
		return nil
	case "":
		return fmt.Errorf("item type is required")
	default:
		return fmt.Errorf("unknown item type %q", i.Type)
	}
}
