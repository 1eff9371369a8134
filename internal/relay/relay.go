// Package relay turns raw feed frames into outgoing notifications. It sits
// between the websocket controller and the broadcaster: decode, classify,
// remember, render, send.
package relay

import (
	"context"
	"sync/atomic"
	"time"

	"gardenbot/internal/classify"
	"gardenbot/internal/feed"
	"gardenbot/internal/format"
	"gardenbot/internal/stats"
	"gardenbot/internal/stock"
	"gardenbot/pkg/logx"
)

// Broadcaster delivers one rendered notification to every subscriber.
type Broadcaster interface {
	Broadcast(ctx context.Context, text, category string) error
}

// listingOrder fixes the send order for grouped stock listings so a frame
// always produces the same sequence of messages.
var listingOrder = []classify.Category{
	classify.CategoryEggs,
	classify.CategoryEvents,
	classify.CategoryCosmetics,
	classify.CategoryShop,
}

type Relay struct {
	tables   atomic.Pointer[classify.Tables]
	cache    *stock.Cache
	bcast    Broadcaster
	counters *stats.Counters
	log      logx.Logger
	now      func() time.Time
}

func New(tables *classify.Tables, cache *stock.Cache, bcast Broadcaster, counters *stats.Counters, log logx.Logger) *Relay {
	r := &Relay{
		cache:    cache,
		bcast:    bcast,
		counters: counters,
		log:      log,
		now:      time.Now,
	}
	r.tables.Store(tables)
	return r
}

// SetTables swaps the classification tables. Safe to call while frames are
// in flight; the swap takes effect on the next frame.
func (r *Relay) SetTables(t *classify.Tables) {
	if t != nil {
		r.tables.Store(t)
	}
}

// Summary renders the last-seen-stock overview for a fresh subscriber.
func (r *Relay) Summary() string {
	return format.Summary(r.cache.Snapshot(), r.now())
}

// HandleFrame processes one raw feed frame end to end. Decode failures are
// counted and logged, never propagated: one bad frame must not take down
// the read loop.
func (r *Relay) HandleFrame(ctx context.Context, raw []byte) {
	ev, err := feed.Decode(raw)
	if err != nil {
		if r.counters != nil {
			r.counters.FeedErrors.Add(1)
		}
		r.log.Warn("feed frame rejected", logx.Err(err), logx.Int("bytes", len(raw)))
		return
	}
	if r.counters != nil {
		r.counters.FeedEvents.Add(1)
	}

	tables := r.tables.Load()
	now := r.now()
	grouped := make(map[classify.Category][]feed.Item)

	for _, it := range ev.Items {
		for _, m := range tables.Classify(it) {
			r.cache.Update(m.Category, it)
			switch m.Category {
			case classify.CategoryPriorityRare:
				r.send(ctx, format.Rare(it, true, now), m.Category)
			case classify.CategoryRare:
				r.send(ctx, format.Rare(it, false, now), m.Category)
			case classify.CategorySummerSeed:
				r.send(ctx, format.SummerSeed(it, now), m.Category)
			case classify.CategoryWeather:
				r.send(ctx, format.Weather(it, now), m.Category)
			default:
				grouped[m.Category] = append(grouped[m.Category], it)
			}
		}
	}

	for _, cat := range listingOrder {
		items := grouped[cat]
		if len(items) == 0 {
			continue
		}
		r.send(ctx, format.Listing(cat, items, now), cat)
	}
}

func (r *Relay) send(ctx context.Context, text string, cat classify.Category) {
	if err := r.bcast.Broadcast(ctx, text, string(cat)); err != nil {
		r.log.Warn("notification broadcast failed",
			logx.String("category", string(cat)), logx.Err(err))
	}
}
