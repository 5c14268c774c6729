package shipment

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/realpay/supply-engine/internal/geo"
	"github.com/realpay/supply-engine/internal/ledger"
	"github.com/realpay/supply-engine/internal/metrics"
	"github.com/realpay/supply-engine/internal/model"
	"github.com/realpay/supply-engine/internal/store"
)

// DefaultTickInterval is the simulator period.
const DefaultTickInterval = 500 * time.Millisecond

// CheckpointStepM is the fixed distance between checkpoint events. The
// threshold advances by exactly this step on each fire, regardless of
// overshoot within a tick.
const CheckpointStepM = 1000

const mintTimeout = 5 * time.Second

// DistanceFunc measures the length of a path segment in meters.
type DistanceFunc func(a, b model.Point) float64

// Simulator advances every in-transit shipment along its path on a single
// recurring tick. Mutation happens only inside the registry's write lock;
// ledger minting is dispatched fire-and-forget so it never blocks a tick.
type Simulator struct {
	reg    *store.Registry
	hub    *Hub
	events *ledger.RecentEvents
	minter ledger.Minter

	// distance is injectable for tests; defaults to geo.HaversineM.
	distance DistanceFunc
	interval time.Duration

	mu      sync.Mutex
	running bool
	stop    chan struct{}
	done    chan struct{}

	ticking atomic.Bool
}

// NewSimulator creates a simulator over the given registry, hub, event
// buffer and minter.
func NewSimulator(reg *store.Registry, hub *Hub, events *ledger.RecentEvents, minter ledger.Minter) *Simulator {
	return &Simulator{
		reg:      reg,
		hub:      hub,
		events:   events,
		minter:   minter,
		distance: geo.HaversineM,
		interval: DefaultTickInterval,
	}
}

// SetInterval overrides the tick period. Must be called before EnsureRunning.
func (sim *Simulator) SetInterval(d time.Duration) {
	if d > 0 {
		sim.interval = d
	}
}

// SetDistanceFunc overrides the segment distance function. Must be called
// before the first tick.
func (sim *Simulator) SetDistanceFunc(fn DistanceFunc) {
	if fn != nil {
		sim.distance = fn
	}
}

// EnsureRunning starts the tick loop if it is not already running. Called
// whenever a shipment is created or seeded.
func (sim *Simulator) EnsureRunning() {
	sim.mu.Lock()
	defer sim.mu.Unlock()
	if sim.running {
		return
	}
	sim.running = true
	sim.stop = make(chan struct{})
	sim.done = make(chan struct{})

	go func() {
		ticker := time.NewTicker(sim.interval)
		defer ticker.Stop()
		defer close(sim.done)
		for {
			select {
			case <-sim.stop:
				return
			case <-ticker.C:
				// Skip this tick if the previous one is still running.
				if !sim.ticking.CompareAndSwap(false, true) {
					metrics.TicksSkipped.Inc()
					continue
				}
				sim.Tick(time.Now())
				sim.ticking.Store(false)
			}
		}
	}()
	slog.Info("simulator started", "interval", sim.interval)
}

// Stop halts the tick loop and waits for it to exit.
func (sim *Simulator) Stop() {
	sim.mu.Lock()
	defer sim.mu.Unlock()
	if !sim.running {
		return
	}
	close(sim.stop)
	<-sim.done
	sim.running = false
	slog.Info("simulator stopped")
}

// tickResult captures what a shipment's advancement produced, so that
// broadcasting and checkpoint dispatch happen outside the registry lock.
type tickResult struct {
	moved      bool
	delivered  bool
	checkpoint bool
	pos        model.Point
}

// Tick advances every in-transit shipment by one interval's worth of
// distance. A failure in one shipment never halts the others.
func (sim *Simulator) Tick(now time.Time) {
	start := time.Now()
	defer func() {
		metrics.TicksTotal.Inc()
		metrics.TickDuration.Observe(time.Since(start).Seconds())
	}()

	dt := sim.interval.Seconds()
	for _, id := range sim.reg.IDs() {
		sim.tickShipment(id, now, dt)
	}
}

// tickShipment advances a single shipment, isolating panics from malformed
// path data so the rest of the tick batch still runs.
func (sim *Simulator) tickShipment(id string, now time.Time, dt float64) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("shipment tick panicked, skipping", "shipment_id", id, "err", r)
		}
	}()

	var res tickResult
	err := sim.reg.Update(id, func(s *model.Shipment) {
		res = sim.advance(s, now, dt)
	})
	if err != nil {
		return
	}

	if res.moved {
		sim.hub.UpdatePosition(id, res.pos.Lat, res.pos.Lng, now)
	}
	if res.delivered {
		slog.Info("shipment delivered", "shipment_id", id, "lat", res.pos.Lat, "lng", res.pos.Lng)
	}
	if res.checkpoint {
		go sim.emitCheckpoint(id, res.pos, now)
	}
}

// advance performs the per-tick motion update on a shipment. Called under
// the registry write lock.
func (sim *Simulator) advance(s *model.Shipment, now time.Time, dt float64) tickResult {
	if s.Status != model.StatusInTransit {
		return tickResult{}
	}

	// No next point: the route is already exhausted.
	if s.SegmentIndex+1 > len(s.Path)-1 {
		s.Status = model.StatusDelivered
		s.LastUpdate = now
		if len(s.Path) == 0 {
			return tickResult{}
		}
		last := s.Path[len(s.Path)-1]
		return tickResult{moved: true, delivered: true, pos: last}
	}

	if s.SegmentLengthM <= 0 {
		s.SegmentLengthM = segLen(sim.distance, s.Path[s.SegmentIndex], s.Path[s.SegmentIndex+1])
	}

	step := s.SpeedMS * dt
	s.SegmentProgressM += step
	s.TotalProgressM += step

	// Carry over across as many segment boundaries as the step spans.
	p := s.SegmentProgressM / s.SegmentLengthM
	for p >= 1 && s.SegmentIndex < len(s.Path)-2 {
		s.SegmentIndex++
		s.SegmentProgressM -= s.SegmentLengthM
		s.SegmentLengthM = segLen(sim.distance, s.Path[s.SegmentIndex], s.Path[s.SegmentIndex+1])
		p = s.SegmentProgressM / s.SegmentLengthM
	}

	// Past the end of the final segment: delivered.
	if p >= 1 {
		s.Status = model.StatusDelivered
		s.LastUpdate = now
		last := s.Path[len(s.Path)-1]
		return tickResult{moved: true, delivered: true, pos: last}
	}

	pos := geo.Interpolate(s.Path[s.SegmentIndex], s.Path[s.SegmentIndex+1], p)
	s.LastUpdate = now

	fire := false
	if s.TotalProgressM >= s.NextCheckpointAtM {
		s.NextCheckpointAtM += CheckpointStepM
		fire = true
	}
	return tickResult{moved: true, checkpoint: fire, pos: pos}
}

// segLen measures a segment, floored at 1 m to avoid division by zero on
// zero-length segments.
func segLen(distance DistanceFunc, a, b model.Point) float64 {
	d := distance(a, b)
	if d < 1 {
		return 1
	}
	return d
}

// emitCheckpoint mints a custody receipt for a threshold crossing and
// records it in the recent-events buffer. Best effort: mint errors are
// swallowed and replaced with a simulated transaction hash.
func (sim *Simulator) emitCheckpoint(id string, pos model.Point, now time.Time) {
	ctx, cancel := context.WithTimeout(context.Background(), mintTimeout)
	defer cancel()

	tsUnix := now.Unix()
	res, err := sim.minter.MintReceipt(ctx, "route_sim", map[string]any{
		"route_id": id,
		"lat":      pos.Lat,
		"lng":      pos.Lng,
		"ts_unix":  tsUnix,
	})
	txHash := res.TxHash
	if err != nil || txHash == "" {
		txHash = ledger.SimTxHash()
	}

	receiptID := uuid.New().String()
	sim.events.Push(model.RecentEvent{
		ID:          receiptID,
		ReceiptID:   receiptID,
		AmountUnits: 0,
		TSUnix:      tsUnix,
		TxHash:      txHash,
	})
	metrics.CheckpointsTotal.Inc()
}
