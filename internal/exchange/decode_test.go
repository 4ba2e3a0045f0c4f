package exchange

import "testing"

func TestNormalize_SortsSidesWhenSourceUnsorted(t *testing.T) {
	msg := depthMessage{
		Bids: []rawLevel{{"10.0", "1"}, {"12.0", "1"}, {"11.0", "1"}},
		Asks: []rawLevel{{"15.0", "1"}, {"13.0", "1"}, {"14.0", "1"}},
	}

	got, err := normalize("binance", msg, 10, false)
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	wantBids := []float64{12.0, 11.0, 10.0}
	for i, l := range got.Bids {
		if l.Price != wantBids[i] {
			t.Fatalf("bids[%d] = %v, want %v", i, l.Price, wantBids[i])
		}
		if l.Exchange != "binance" {
			t.Fatalf("bids[%d].Exchange = %v, want binance", i, l.Exchange)
		}
	}
	wantAsks := []float64{13.0, 14.0, 15.0}
	for i, l := range got.Asks {
		if l.Price != wantAsks[i] {
			t.Fatalf("asks[%d] = %v, want %v", i, l.Price, wantAsks[i])
		}
	}
}

func TestNormalize_TrustsPresortedSource(t *testing.T) {
	// sorted=true: normalize must not reorder even if this would look
	// unsorted, so a pathological input here proves the flag is honored.
	msg := depthMessage{
		Bids: []rawLevel{{"9.0", "1"}, {"10.0", "1"}},
	}
	got, err := normalize("bitstamp", msg, 10, true)
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	if got.Bids[0].Price != 9.0 || got.Bids[1].Price != 10.0 {
		t.Fatalf("sorted=true must not reorder, got %v", got.Bids)
	}
}

func TestNormalize_TrimsToDepth(t *testing.T) {
	msg := depthMessage{
		Asks: []rawLevel{{"1", "1"}, {"2", "1"}, {"3", "1"}},
	}
	got, err := normalize("binance", msg, 2, true)
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	if len(got.Asks) != 2 {
		t.Fatalf("len(Asks) = %d, want 2", len(got.Asks))
	}
}

func TestNormalize_RejectsMalformedNumbers(t *testing.T) {
	msg := depthMessage{Bids: []rawLevel{{"not-a-number", "1"}}}
	if _, err := normalize("binance", msg, 10, true); err == nil {
		t.Fatal("expected error for malformed price, got nil")
	}
}

func TestNormalize_RejectsNegativeAmount(t *testing.T) {
	msg := depthMessage{Asks: []rawLevel{{"10.0", "-1"}}}
	if _, err := normalize("binance", msg, 10, true); err == nil {
		t.Fatal("expected error for negative amount, got nil")
	}
}

func TestNormalize_EmptySidesProduceEmptySlices(t *testing.T) {
	got, err := normalize("binance", depthMessage{}, 10, true)
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	if len(got.Bids) != 0 || len(got.Asks) != 0 {
		t.Fatalf("expected empty sides, got bids=%v asks=%v", got.Bids, got.Asks)
	}
}
