package shipment

import (
	"math"
	"testing"
	"time"

	"github.com/realpay/supply-engine/internal/ledger"
	"github.com/realpay/supply-engine/internal/model"
	"github.com/realpay/supply-engine/internal/store"
)

// flatDistance treats one degree as ten meters, giving round numbers for
// motion arithmetic.
func flatDistance(a, b model.Point) float64 {
	dLat := b.Lat - a.Lat
	dLng := b.Lng - a.Lng
	return 10 * math.Sqrt(dLat*dLat+dLng*dLng)
}

func newTestSim(t *testing.T) (*Simulator, *store.Registry, *ledger.RecentEvents) {
	t.Helper()
	reg := store.NewRegistry()
	events := ledger.NewRecentEvents(ledger.DefaultEventCap)
	sim := NewSimulator(reg, NewHub(), events, ledger.NewSimClient())
	sim.SetInterval(time.Second)
	sim.SetDistanceFunc(flatDistance)
	return sim, reg, events
}

func seedMoving(t *testing.T, reg *store.Registry, id string) {
	t.Helper()
	err := reg.Insert(&model.Shipment{
		ID:     id,
		Status: model.StatusInTransit,
		Path: []model.Point{
			{Lat: 0, Lng: 0},
			{Lat: 0, Lng: 1},
			{Lat: 0, Lng: 2},
		},
		SpeedMS:           1,
		NextCheckpointAtM: 1000,
	})
	if err != nil {
		t.Fatalf("insert: %v", err)
	}
}

func TestSimulator_AdvancesAlongSegment(t *testing.T) {
	sim, reg, _ := newTestSim(t)
	seedMoving(t, reg, "route_1")

	// 1 m/s over a 1 s tick, segments are 10 m each.
	for i := 0; i < 5; i++ {
		sim.Tick(time.Now())
	}

	s, ok := reg.Get("route_1")
	if !ok {
		t.Fatal("shipment not found")
	}
	if s.SegmentIndex != 0 {
		t.Errorf("expected segment 0, got %d", s.SegmentIndex)
	}
	if math.Abs(s.SegmentProgressM-5) > 1e-9 {
		t.Errorf("expected 5 m of segment progress, got %v", s.SegmentProgressM)
	}
	if math.Abs(s.TotalProgressM-5) > 1e-9 {
		t.Errorf("expected 5 m of total progress, got %v", s.TotalProgressM)
	}
}

func TestSimulator_SegmentCarryOver(t *testing.T) {
	sim, reg, _ := newTestSim(t)
	seedMoving(t, reg, "route_1")

	// 10 ticks cover exactly one 10 m segment: the leftover lands the
	// shipment at the start of segment 1.
	for i := 0; i < 10; i++ {
		sim.Tick(time.Now())
	}

	s, _ := reg.Get("route_1")
	if s.Status != model.StatusInTransit {
		t.Fatalf("expected in_transit, got %s", s.Status)
	}
	if s.SegmentIndex != 1 {
		t.Errorf("expected segment 1, got %d", s.SegmentIndex)
	}
	if math.Abs(s.SegmentProgressM) > 1e-9 {
		t.Errorf("expected 0 m into segment 1, got %v", s.SegmentProgressM)
	}
}

func TestSimulator_DeliversAtRouteEnd(t *testing.T) {
	sim, reg, _ := newTestSim(t)
	seedMoving(t, reg, "route_1")

	for i := 0; i < 20; i++ {
		sim.Tick(time.Now())
	}

	s, _ := reg.Get("route_1")
	if s.Status != model.StatusDelivered {
		t.Fatalf("expected delivered, got %s", s.Status)
	}
	pos, ok := sim.hub.Position("route_1")
	if !ok {
		t.Fatal("expected a final broadcast position")
	}
	if pos.Lat != 0 || pos.Lng != 2 {
		t.Errorf("expected final position (0, 2), got (%v, %v)", pos.Lat, pos.Lng)
	}
}

func TestSimulator_DeliveredShipmentStaysPut(t *testing.T) {
	sim, reg, _ := newTestSim(t)
	seedMoving(t, reg, "route_1")

	for i := 0; i < 25; i++ {
		sim.Tick(time.Now())
	}

	s, _ := reg.Get("route_1")
	if s.Status != model.StatusDelivered {
		t.Fatalf("expected delivered, got %s", s.Status)
	}
	total := s.TotalProgressM

	sim.Tick(time.Now())

	s, _ = reg.Get("route_1")
	if s.TotalProgressM != total {
		t.Errorf("delivered shipment moved: %v -> %v", total, s.TotalProgressM)
	}
}

func TestSimulator_PausedShipmentDoesNotMove(t *testing.T) {
	sim, reg, _ := newTestSim(t)
	seedMoving(t, reg, "route_1")
	if err := reg.SetStatus("route_1", model.StatusPaused); err != nil {
		t.Fatalf("pause: %v", err)
	}

	sim.Tick(time.Now())

	s, _ := reg.Get("route_1")
	if s.TotalProgressM != 0 || s.SegmentProgressM != 0 {
		t.Errorf("paused shipment moved: total=%v seg=%v", s.TotalProgressM, s.SegmentProgressM)
	}

	// Resume and it picks up where it stopped.
	if err := reg.SetStatus("route_1", model.StatusInTransit); err != nil {
		t.Fatalf("resume: %v", err)
	}
	sim.Tick(time.Now())
	s, _ = reg.Get("route_1")
	if s.TotalProgressM != 1 {
		t.Errorf("expected 1 m after resume, got %v", s.TotalProgressM)
	}
}

func TestSimulator_CheckpointThresholdAdvancesByFixedStep(t *testing.T) {
	sim, reg, events := newTestSim(t)

	// A long two-point route with a generous speed so one tick overshoots
	// the first threshold by a wide margin.
	err := reg.Insert(&model.Shipment{
		ID:     "route_1",
		Status: model.StatusInTransit,
		Path: []model.Point{
			{Lat: 0, Lng: 0},
			{Lat: 0, Lng: 100000},
		},
		SpeedMS:           1500,
		NextCheckpointAtM: 1000,
	})
	if err != nil {
		t.Fatalf("insert: %v", err)
	}

	sim.Tick(time.Now())

	s, _ := reg.Get("route_1")
	// 1500 m covered; the threshold steps once to 2000, not to 2500.
	if s.NextCheckpointAtM != 2000 {
		t.Errorf("expected next checkpoint at 2000, got %v", s.NextCheckpointAtM)
	}

	sim.Tick(time.Now())
	s, _ = reg.Get("route_1")
	// 3000 m covered; one more step to 3000 already fired, next is 3000+1000.
	if s.NextCheckpointAtM != 3000 {
		t.Errorf("expected next checkpoint at 3000, got %v", s.NextCheckpointAtM)
	}

	// Receipts are minted fire-and-forget; wait for both to land.
	deadline := time.Now().Add(2 * time.Second)
	for events.Len() < 2 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if events.Len() != 2 {
		t.Fatalf("expected 2 checkpoint receipts, got %d", events.Len())
	}
	for _, e := range events.Recent(2) {
		if e.TxHash == "" {
			t.Error("checkpoint receipt missing tx hash")
		}
	}
}

func TestSimulator_MalformedShipmentDoesNotHaltBatch(t *testing.T) {
	sim, reg, _ := newTestSim(t)

	// A shipment whose segment index points outside its path panics when
	// interpolating; the tick must recover and still advance the healthy one.
	err := reg.Insert(&model.Shipment{
		ID:           "route_bad",
		Status:       model.StatusInTransit,
		Path:         []model.Point{{Lat: 0, Lng: 0}, {Lat: 0, Lng: 1}},
		SegmentIndex: -5,
		SpeedMS:      1,
	})
	if err != nil {
		t.Fatalf("insert: %v", err)
	}
	seedMoving(t, reg, "route_good")

	sim.Tick(time.Now())

	s, _ := reg.Get("route_good")
	if s.TotalProgressM != 1 {
		t.Errorf("healthy shipment should advance past the malformed one, got %v", s.TotalProgressM)
	}
}

func TestSimulator_ZeroLengthSegmentFloors(t *testing.T) {
	sim, reg, _ := newTestSim(t)

	// Duplicate joint point: the zero-length first segment is floored to
	// 1 m and crossed in a single tick instead of dividing by zero.
	err := reg.Insert(&model.Shipment{
		ID:     "route_1",
		Status: model.StatusInTransit,
		Path: []model.Point{
			{Lat: 0, Lng: 0},
			{Lat: 0, Lng: 0},
			{Lat: 0, Lng: 1},
		},
		SpeedMS:           1,
		NextCheckpointAtM: 1000,
	})
	if err != nil {
		t.Fatalf("insert: %v", err)
	}

	sim.Tick(time.Now())

	s, _ := reg.Get("route_1")
	if s.SegmentIndex != 1 {
		t.Errorf("expected carry-over past the zero-length segment, got segment %d", s.SegmentIndex)
	}
}
