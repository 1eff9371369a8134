package classify

import (
	"strings"

	"gardenbot/internal/config"
	"gardenbot/internal/feed"
)

// Category is a notification bucket. It decides whether and how a feed item
// becomes a notification, and keys the stock cache.
type Category string

const (
	CategoryRare         Category = "rare_item"
	CategoryPriorityRare Category = "priority_rare_item"
	CategorySummerSeed   Category = "summer_seed"
	CategoryWeather      Category = "weather"
	CategoryEggs         Category = "egg_stock"
	CategoryEvents       Category = "event_stock"
	CategoryCosmetics    Category = "cosmetic_stock"
	CategoryShop         Category = "shop_stock"
)

// Match is one classification outcome. A single item can produce several
// (e.g. a rare summer seed yields both a rare and a summer-seed match).
type Match struct {
	Category Category
}

// Tables holds the static membership sets. Build one with NewTables and swap
// it atomically on config reload; a Tables value itself is immutable.
type Tables struct {
	rareNormal   map[string]struct{}
	rarePriority map[string]struct{}
	summerSeeds  map[string]struct{}
}

func NewTables(items config.ItemsConfig) *Tables {
	return &Tables{
		rareNormal:   nameSet(items.RareNormal),
		rarePriority: nameSet(items.RarePriority),
		summerSeeds:  nameSet(items.SummerSeeds),
	}
}

func nameSet(names []string) map[string]struct{} {
	m := make(map[string]struct{}, len(names))
	for _, n := range names {
		n = strings.ToLower(strings.TrimSpace(n))
		if n != "" {
			m[n] = struct{}{}
		}
	}
	return m
}

// trackedSources maps plain-tracked stock categories to their notification
// category. Seeds are deliberately absent: the seed stock only notifies
// through the summer-seed rule.
var trackedSources = map[feed.Source]Category{
	feed.SourceWeather:   CategoryWeather,
	feed.SourceEgg:       CategoryEggs,
	feed.SourceEventShop: CategoryEvents,
	feed.SourceCosmetic:  CategoryCosmetics,
	feed.SourceGear:      CategoryShop,
}

// Classify maps an item to zero or more notification categories.
// Pure function of the tables and the item's fields.
func (t *Tables) Classify(it feed.Item) []Match {
	name := strings.ToLower(strings.TrimSpace(it.DisplayName))
	if name == "" {
		return nil
	}

	var out []Match
	if _, ok := t.rarePriority[name]; ok {
		out = append(out, Match{Category: CategoryPriorityRare})
	} else if _, ok := t.rareNormal[name]; ok {
		out = append(out, Match{Category: CategoryRare})
	}

	// Summer seeds only qualify out of the seed stock: the same name under a
	// different source is some other thing (e.g. a crop, not a seed).
	if it.Source == feed.SourceSeed {
		if _, ok := t.summerSeeds[name]; ok {
			out = append(out, Match{Category: CategorySummerSeed})
		}
	}

	if cat, ok := trackedSources[it.Source]; ok {
		out = append(out, Match{Category: cat})
	}
	return out
}

// IsRare reports whether a match is one of the rare categories.
func (m Match) IsRare() bool {
	return m.Category == CategoryRare || m.Category == CategoryPriorityRare
}
