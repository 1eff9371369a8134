package feed

import "math"

// Source is the upstream stock category an item belongs to.
type Source string

const (
	SourceSeed      Source = "seed"
	SourceGear      Source = "gear"
	SourceEgg       Source = "egg"
	SourceCosmetic  Source = "cosmetic"
	SourceEventShop Source = "eventshop"
	SourceWeather   Source = "weather"
)

// Item is one decoded feed entry. Ephemeral: it lives for the duration of a
// single frame's processing and is never persisted.
type Item struct {
	DisplayName string
	Quantity    int
	// EndUnix is the unix timestamp at which the item rotates out of stock.
	// nil when the feed did not provide one.
	EndUnix *float64
	Source  Source
}

// EndsAt reports the end time, and whether it is present and finite.
func (it Item) EndsAt() (int64, bool) {
	if it.EndUnix == nil {
		return 0, false
	}
	v := *it.EndUnix
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return int64(v), true
}

// Event is one decoded feed frame.
type Event struct {
	Items []Item
}
