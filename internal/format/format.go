// Package format renders notification categories into the user-visible
// Messenger text. Templates are deterministic; tests pin the exact
// time-remaining wording.
package format

import (
	"fmt"
	"strings"
	"time"

	"gardenbot/internal/classify"
	"gardenbot/internal/feed"
	"gardenbot/internal/stock"
)

// TimeLeft renders the time remaining until an item's end time as
// "{h}h {m}m {s}s", omitting zero-valued higher units. Elapsed end times
// collapse to "Expired"; absent or non-finite end times to "Time unknown".
func TimeLeft(it feed.Item, now time.Time) string {
	end, ok := it.EndsAt()
	if !ok {
		return "Time unknown"
	}
	rem := end - now.Unix()
	if rem <= 0 {
		return "Expired"
	}
	h := rem / 3600
	m := (rem % 3600) / 60
	s := rem % 60
	switch {
	case h > 0:
		return fmt.Sprintf("%dh %dm %ds", h, m, s)
	case m > 0:
		return fmt.Sprintf("%dm %ds", m, s)
	default:
		return fmt.Sprintf("%ds", s)
	}
}

// Rare renders the rare-item alert. Priority rares get a louder header.
func Rare(it feed.Item, priority bool, now time.Time) string {
	header := "🎯 Rare Item Alert!"
	if priority {
		header = "🚨 Priority Rare Item Alert!"
	}
	return fmt.Sprintf("%s\n%s is now available!\nQuantity: %d\nTime left: %s",
		header, it.DisplayName, it.Quantity, TimeLeft(it, now))
}

// SummerSeed renders the summer-event seed alert.
func SummerSeed(it feed.Item, now time.Time) string {
	return fmt.Sprintf("🌞 Summer Event Update!\n%s seeds are available!\nQuantity: %d\nTime left: %s",
		it.DisplayName, it.Quantity, TimeLeft(it, now))
}

// Weather renders a weather update.
func Weather(it feed.Item, now time.Time) string {
	return fmt.Sprintf("🌦 Weather Update!\n%s\nEnds in: %s", it.DisplayName, TimeLeft(it, now))
}

var listingHeaders = map[classify.Category]string{
	classify.CategoryEggs:      "🥚 Egg Stocks",
	classify.CategoryEvents:    "🎪 Event Stocks",
	classify.CategoryCosmetics: "💄 Cosmetics Stock",
	classify.CategoryShop:      "🛒 Shop Stocks",
}

// Listing renders a multi-item listing for one shop category.
func Listing(cat classify.Category, items []feed.Item, now time.Time) string {
	header, ok := listingHeaders[cat]
	if !ok {
		header = string(cat)
	}
	var b strings.Builder
	b.WriteString(header)
	for _, it := range items {
		b.WriteString(fmt.Sprintf("\n• %s x%d (%s)", it.DisplayName, it.Quantity, TimeLeft(it, now)))
	}
	return b.String()
}

var summaryTitles = map[classify.Category]string{
	classify.CategoryRare:         "Rare item",
	classify.CategoryPriorityRare: "Priority rare",
	classify.CategorySummerSeed:   "Summer seed",
	classify.CategoryWeather:      "Weather",
	classify.CategoryEggs:         "Eggs",
	classify.CategoryEvents:       "Events",
	classify.CategoryCosmetics:    "Cosmetics",
	classify.CategoryShop:         "Shop",
}

// Summary renders the current-stock overview sent to new subscribers, built
// from the stock cache. Empty cache yields a friendly placeholder.
func Summary(entries []stock.Entry, now time.Time) string {
	if len(entries) == 0 {
		return "No stock sightings yet. You'll hear from us as soon as something shows up!"
	}
	var b strings.Builder
	b.WriteString("📋 Last seen stock:")
	for _, e := range entries {
		title, ok := summaryTitles[e.Category]
		if !ok {
			title = string(e.Category)
		}
		b.WriteString(fmt.Sprintf("\n• %s: %s x%d (%s)",
			title, e.Item.DisplayName, e.Item.Quantity, TimeLeft(e.Item, now)))
	}
	return b.String()
}
