package feed

import (
	"errors"
	"testing"
)

func TestDecodeTopicFrame(t *testing.T) {
	raw := []byte(`{"topic":632,"content":{"item_name":"Grape","quantity":3,"end_time_unix":1700000300}}`)
	ev, err := Decode(raw)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(ev.Items) != 1 {
		t.Fatalf("expected 1 item, got %d", len(ev.Items))
	}
	it := ev.Items[0]
	if it.DisplayName != "Grape" || it.Quantity != 3 {
		t.Fatalf("unexpected item %+v", it)
	}
	if end, ok := it.EndsAt(); !ok || end != 1700000300 {
		t.Fatalf("unexpected end time %v %v", end, ok)
	}
	if it.Source != "" {
		t.Fatalf("rare topic must not imply a stock source, got %q", it.Source)
	}
}

func TestDecodeTopicFrameLegacyKeys(t *testing.T) {
	raw := []byte(`{"topic":5939,"content":{"itemName":"Cauliflower","quantity":2}}`)
	ev, err := Decode(raw)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	it := ev.Items[0]
	if it.DisplayName != "Cauliflower" {
		t.Fatalf("legacy itemName key not honored: %+v", it)
	}
	if it.Source != SourceSeed {
		t.Fatalf("summer event topic should map to the seed stock, got %q", it.Source)
	}
	if _, ok := it.EndsAt(); ok {
		t.Fatalf("absent end time must report not-ok")
	}
}

func TestDecodeTopicSourceMapping(t *testing.T) {
	cases := []struct {
		topic int
		want  Source
	}{
		{9, SourceWeather},
		{8, SourceEgg},
		{2, SourceEventShop},
		{3, SourceCosmetic},
		{4, SourceGear},
	}
	for _, tc := range cases {
		raw := []byte(`{"topic":` + itoa(tc.topic) + `,"content":{"item_name":"X","quantity":1}}`)
		ev, err := Decode(raw)
		if err != nil {
			t.Fatalf("topic %d: %v", tc.topic, err)
		}
		if ev.Items[0].Source != tc.want {
			t.Fatalf("topic %d: got source %q, want %q", tc.topic, ev.Items[0].Source, tc.want)
		}
	}
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	var b []byte
	for n > 0 {
		b = append([]byte{byte('0' + n%10)}, b...)
		n /= 10
	}
	return string(b)
}

func TestDecodeStockFrame(t *testing.T) {
	raw := []byte(`{
		"seed_stock":[{"display_name":"Carrot","quantity":20},{"display_name":"Cauliflower","quantity":5}],
		"egg_stock":[{"display_name":"Common Egg","quantity":1,"end_date_unix":1700000600}],
		"weather":[{"display_name":"Rain","end_date_unix":1700000900}]
	}`)
	ev, err := Decode(raw)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(ev.Items) != 4 {
		t.Fatalf("expected 4 items, got %d: %+v", len(ev.Items), ev.Items)
	}

	bySource := map[Source]int{}
	for _, it := range ev.Items {
		bySource[it.Source]++
	}
	if bySource[SourceSeed] != 2 || bySource[SourceEgg] != 1 || bySource[SourceWeather] != 1 {
		t.Fatalf("unexpected source split %v", bySource)
	}
}

func TestDecodeMalformed(t *testing.T) {
	if _, err := Decode([]byte(`not json`)); err == nil {
		t.Fatalf("expected error for malformed frame")
	}
	if _, err := Decode([]byte(`{"unrelated":true}`)); !errors.Is(err, ErrUnknownShape) {
		t.Fatalf("expected ErrUnknownShape, got %v", err)
	}
	if _, err := Decode([]byte(`{"topic":632,"content":{}}`)); err == nil {
		t.Fatalf("expected error for topic frame without item name")
	}
}

func TestDecodeEmptyStockFrame(t *testing.T) {
	// All arrays empty is a valid no-op update, not an unknown shape.
	ev, err := Decode([]byte(`{"seed_stock":[],"weather":[]}`))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if len(ev.Items) != 0 {
		t.Fatalf("expected no items, got %v", ev.Items)
	}
}
