package feed

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// The upstream has shipped two frame shapes over its lifetime:
//
//	shape A: {"topic": 632, "content": {"item_name": ..., "quantity": ...}}
//	shape B: {"seed_stock": [...], "gear_stock": [...], "weather": [...], ...}
//
// Decode sniffs the shape once at the boundary and hands the rest of the
// pipeline a uniform Event. Unknown shapes are an error, not a guess.

var ErrUnknownShape = errors.New("feed: unknown frame shape")

// Topic ids used by shape A frames.
const (
	topicWeather     = 9
	topicEggs        = 8
	topicEvents      = 2
	topicCosmetics   = 3
	topicShop        = 4
	topicRare        = 632
	topicSummerEvent = 5939
)

func Decode(raw []byte) (Event, error) {
	var probe struct {
		Topic *int `json:"topic"`
	}
	if err := json.Unmarshal(raw, &probe); err != nil {
		return Event{}, fmt.Errorf("feed: decode frame: %w", err)
	}
	if probe.Topic != nil {
		return decodeTopicFrame(raw)
	}
	return decodeStockFrame(raw)
}

// decodeTopicFrame handles shape A: a single item under a numeric topic.
func decodeTopicFrame(raw []byte) (Event, error) {
	// Older feed builds used camelCase keys, newer ones snake_case.
	// Accept both; first non-empty spelling wins.
	var frame struct {
		Topic   int `json:"topic"`
		Content struct {
			ItemName    string   `json:"item_name"`
			ItemNameOld string   `json:"itemName"`
			Quantity    int      `json:"quantity"`
			EndUnix     *float64 `json:"end_time_unix"`
			EndUnixOld  *float64 `json:"endTimeUnix"`
		} `json:"content"`
	}
	if err := json.Unmarshal(raw, &frame); err != nil {
		return Event{}, fmt.Errorf("feed: decode topic frame: %w", err)
	}

	src, ok := topicSource(frame.Topic)
	if !ok {
		// Unknown topics flow through with no source; the classifier's
		// name-based rules still apply to them.
		src = ""
	}
	name := strings.TrimSpace(frame.Content.ItemName)
	if name == "" {
		name = strings.TrimSpace(frame.Content.ItemNameOld)
	}
	end := frame.Content.EndUnix
	if end == nil {
		end = frame.Content.EndUnixOld
	}
	if name == "" {
		return Event{}, fmt.Errorf("feed: topic %d frame has no item name", frame.Topic)
	}
	return Event{Items: []Item{{
		DisplayName: name,
		Quantity:    frame.Content.Quantity,
		EndUnix:     end,
		Source:      src,
	}}}, nil
}

func topicSource(topic int) (Source, bool) {
	switch topic {
	case topicWeather:
		return SourceWeather, true
	case topicEggs:
		return SourceEgg, true
	case topicEvents:
		return SourceEventShop, true
	case topicCosmetics:
		return SourceCosmetic, true
	case topicShop:
		return SourceGear, true
	case topicSummerEvent:
		// Summer event frames carry seed items.
		return SourceSeed, true
	case topicRare:
		// Rare frames don't map to a stock category.
		return "", true
	default:
		return "", false
	}
}

// decodeStockFrame handles shape B: category-keyed item arrays.
func decodeStockFrame(raw []byte) (Event, error) {
	var frame struct {
		SeedStock      []stockItem `json:"seed_stock"`
		GearStock      []stockItem `json:"gear_stock"`
		EggStock       []stockItem `json:"egg_stock"`
		CosmeticStock  []stockItem `json:"cosmetic_stock"`
		EventShopStock []stockItem `json:"eventshop_stock"`
		Weather        []stockItem `json:"weather"`
	}
	if err := json.Unmarshal(raw, &frame); err != nil {
		return Event{}, fmt.Errorf("feed: decode stock frame: %w", err)
	}

	// A frame with none of the stock keys at all is some other message kind;
	// a frame whose arrays are merely empty is a valid no-op update.
	var keys map[string]json.RawMessage
	if err := json.Unmarshal(raw, &keys); err != nil {
		return Event{}, fmt.Errorf("feed: decode stock frame: %w", err)
	}
	known := false
	for _, k := range []string{"seed_stock", "gear_stock", "egg_stock", "cosmetic_stock", "eventshop_stock", "weather"} {
		if _, ok := keys[k]; ok {
			known = true
			break
		}
	}
	if !known {
		return Event{}, ErrUnknownShape
	}

	var items []Item
	appendAll := func(src Source, in []stockItem) {
		for _, si := range in {
			name := strings.TrimSpace(si.DisplayName)
			if name == "" {
				continue
			}
			items = append(items, Item{
				DisplayName: name,
				Quantity:    si.Quantity,
				EndUnix:     si.EndUnix,
				Source:      src,
			})
		}
	}
	appendAll(SourceSeed, frame.SeedStock)
	appendAll(SourceGear, frame.GearStock)
	appendAll(SourceEgg, frame.EggStock)
	appendAll(SourceCosmetic, frame.CosmeticStock)
	appendAll(SourceEventShop, frame.EventShopStock)
	appendAll(SourceWeather, frame.Weather)

	return Event{Items: items}, nil
}

type stockItem struct {
	DisplayName string   `json:"display_name"`
	Quantity    int      `json:"quantity"`
	EndUnix     *float64 `json:"end_date_unix"`
}
