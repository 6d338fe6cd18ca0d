package tomato

import (
	"errors"
	"fmt"

	"community-bot/internal/game"
)

// ErrUnknownItem is returned for names outside the item catalog.
var ErrUnknownItem = errors.New("unknown item")

// Item names a throwable tomato. The value is also the inventory key.
type Item string

const (
	ItemRegular Item = "Regular Tomato"
	ItemRotten  Item = "Rotten Tomato"
	ItemGolden  Item = "Golden Tomato"
)

// ItemConfig holds the catalog entry for an item.
type ItemConfig struct {
	Item        Item
	Emoji       string
	Weight      float64 // lootbox drop chance
	Description string
}

// Catalog lists every item in lootbox order.
var Catalog = []ItemConfig{
	{
		Item:        ItemRegular,
		Emoji:       "🍅",
		Weight:      0.70,
		Description: "A perfectly ordinary tomato.",
	},
	{
		Item:        ItemRotten,
		Emoji:       "🤢",
		Weight:      0.25,
		Description: "Leaves a stain, but may fall apart in your hand.",
	},
	{
		Item:        ItemGolden,
		Emoji:       "✨",
		Weight:      0.05,
		Description: "Pays the thrower a coin bonus when it lands.",
	},
}

// Lookup returns the catalog entry for item.
func Lookup(item Item) (ItemConfig, bool) {
	for _, c := range Catalog {
		if c.Item == item {
			return c, true
		}
	}
	return ItemConfig{}, false
}

// ParseItem converts a raw name into an Item. An empty name means a regular tomato.
func ParseItem(name string) (Item, error) {
	if name == "" {
		return ItemRegular, nil
	}
	if _, ok := Lookup(Item(name)); !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownItem, name)
	}
	return Item(name), nil
}

// RollLoot picks an item with the catalog weights.
func RollLoot(r game.Rand) Item {
	var total float64
	for _, c := range Catalog {
		total += c.Weight
	}

	x := r.Float64() * total
	for _, c := range Catalog {
		if x < c.Weight {
			return c.Item
		}
		x -= c.Weight
	}
	return Catalog[len(Catalog)-1].Item
}
