package ledger

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/realpay/supply-engine/internal/model"
)

func event(i int) model.RecentEvent {
	return model.RecentEvent{
		ID:        fmt.Sprintf("evt_%d", i),
		ReceiptID: fmt.Sprintf("evt_%d", i),
		TSUnix:    int64(i),
		TxHash:    fmt.Sprintf("sim:%d", i),
	}
}

func TestRecentEvents_Recent(t *testing.T) {
	buf := NewRecentEvents(10)
	for i := 0; i < 5; i++ {
		buf.Push(event(i))
	}

	got := buf.Recent(3)
	if len(got) != 3 {
		t.Fatalf("expected 3 events, got %d", len(got))
	}
	// Newest first.
	for i, e := range got {
		want := fmt.Sprintf("evt_%d", 4-i)
		if e.ID != want {
			t.Errorf("event %d: expected %s, got %s", i, want, e.ID)
		}
	}
}

func TestRecentEvents_RecentMoreThanBuffered(t *testing.T) {
	buf := NewRecentEvents(10)
	buf.Push(event(0))

	got := buf.Recent(100)
	if len(got) != 1 {
		t.Errorf("expected 1 event, got %d", len(got))
	}
}

func TestRecentEvents_FIFOEviction(t *testing.T) {
	buf := NewRecentEvents(1000)
	for i := 0; i < 1001; i++ {
		buf.Push(event(i))
	}

	if buf.Len() != 1000 {
		t.Fatalf("expected 1000 buffered events, got %d", buf.Len())
	}

	all := buf.Recent(1000)
	// The first inserted event is gone; the 2nd through 1001st remain.
	if newest := all[0].ID; newest != "evt_1000" {
		t.Errorf("newest should be evt_1000, got %s", newest)
	}
	if oldest := all[len(all)-1].ID; oldest != "evt_1" {
		t.Errorf("oldest should be evt_1 (evt_0 evicted), got %s", oldest)
	}
}

func TestRecentEvents_DefaultCap(t *testing.T) {
	buf := NewRecentEvents(0)
	if buf.cap != DefaultEventCap {
		t.Errorf("expected default cap %d, got %d", DefaultEventCap, buf.cap)
	}
}

func TestSimClient_MintReceipt(t *testing.T) {
	c := NewSimClient()
	r, err := c.MintReceipt(context.Background(), "route_sim", map[string]any{"route_id": "r1"})
	if err != nil {
		t.Fatalf("sim mint should never fail: %v", err)
	}
	if r.ReceiptID == "" {
		t.Error("expected non-empty receipt id")
	}
	if !strings.HasPrefix(r.TxHash, "sim:") {
		t.Errorf("expected sim: tx hash, got %s", r.TxHash)
	}
}
