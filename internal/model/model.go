// Package model defines the core domain types shared across the supply engine.
// Cargo values use shopspring/decimal, never float64 for money.
package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Shipment statuses.
const (
	StatusInTransit = "in_transit"
	StatusDelivered = "delivered"
	StatusPaused    = "paused"
	StatusCancelled = "cancelled"
)

// ValidStatus reports whether s is one of the recognized shipment statuses.
func ValidStatus(s string) bool {
	switch s {
	case StatusInTransit, StatusDelivered, StatusPaused, StatusCancelled:
		return true
	}
	return false
}

// TerminalStatus reports whether s freezes a shipment. Terminal shipments
// are skipped by the simulator and status transitions out are refused.
func TerminalStatus(s string) bool {
	return s == StatusDelivered || s == StatusCancelled
}

// SLA statuses for display and checkpoint payloads.
const (
	SLAMet    = "MET"
	SLARisk   = "RISK"
	SLABreach = "BREACH"
)

// Point is a bare geographic coordinate on the dense animation path.
type Point struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Waypoint is a named input point for route building. Immutable once a
// route has been built from it.
type Waypoint struct {
	Name string  `json:"name,omitempty"`
	Lat  float64 `json:"lat"`
	Lng  float64 `json:"lng"`
}

// Stop types.
const (
	StopHub   = "hub"
	StopProof = "proof"
)

// Stop is a labeled point of interest along a route, distinct from the
// dense path used for animation. Created at route-build time, never mutated.
type Stop struct {
	Lat   float64 `json:"lat"`
	Lng   float64 `json:"lng"`
	Label string  `json:"label"`
	Type  string  `json:"type"` // "hub" or "proof"
}

// Item is a cargo line on a shipment.
type Item struct {
	ID       string          `json:"id"`
	Name     string          `json:"name"`
	Quantity int             `json:"quantity"`
	Weight   float64         `json:"weight"`
	Value    decimal.Decimal `json:"value"`
}

// Batch is a registered cargo batch carried by a shipment.
type Batch struct {
	ID       string          `json:"id"`
	BatchID  string          `json:"batch_id"`
	SKU      string          `json:"sku"`
	Quantity int             `json:"quantity"`
	Weight   float64         `json:"weight"`
	Value    decimal.Decimal `json:"value"`
}

// SpeedCategory is a named [min,max] km/h band. The actual speed is sampled
// uniformly within the band at creation time and fixed thereafter.
type SpeedCategory struct {
	Name   string  `json:"name"`
	MinKmh float64 `json:"min_kmh"`
	MaxKmh float64 `json:"max_kmh"`
}

// Shipment is the central mutable entity. Route data (Path, Stops) and
// cargo metadata are immutable after creation; motion state is mutated by
// the simulator tick only, under the registry's write lock.
type Shipment struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Status string `json:"status"`

	Path  []Point `json:"path"`
	Stops []Stop  `json:"stops"`

	// Motion state. SegmentIndex points at the start of the current
	// segment; SegmentProgressM may transiently exceed SegmentLengthM
	// before carry-over. SegmentLengthM is floored at 1 m.
	SegmentIndex      int     `json:"segment_index"`
	SegmentProgressM  float64 `json:"segment_progress_m"`
	SegmentLengthM    float64 `json:"segment_length_m"`
	SpeedMS           float64 `json:"speed_m_s"`
	SpeedCategory     string  `json:"speed_category"`
	TotalProgressM    float64 `json:"total_progress_m"`
	NextCheckpointAtM float64 `json:"next_checkpoint_at_m"`

	Items     []Item  `json:"items"`
	Batches   []Batch `json:"batches"`
	Custodian string  `json:"custodian"`
	ETA       string  `json:"eta"`
	SLA       string  `json:"sla"`
	Leg       string  `json:"leg"` // e.g. "2/4"

	CreatedAt  time.Time `json:"created_at"`
	LastUpdate time.Time `json:"last_update"`
}

// DeclaredValue is the total declared monetary value across batches.
func (s *Shipment) DeclaredValue() decimal.Decimal {
	total := decimal.Zero
	for _, b := range s.Batches {
		total = total.Add(b.Value)
	}
	return total
}

// LivePosition is the most recently computed position of a shipment.
// Overwritten on every update, never appended.
type LivePosition struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
	TS  int64   `json:"ts"` // unix milliseconds
}

// RecentEvent is a checkpoint/receipt record held in the bounded
// recent-events buffer.
type RecentEvent struct {
	ID          string `json:"id"`
	ReceiptID   string `json:"receipt_id"`
	AmountUnits int64  `json:"amount_units"`
	TSUnix      int64  `json:"ts_unix"`
	TxHash      string `json:"tx_hash"`
	BatchID     string `json:"batch_id,omitempty"`
	SKU         string `json:"sku,omitempty"`
}

// Progress is the computed delivery progress included in shipment detail.
// TotalDistanceM is the great-circle distance from path start to path end,
// not the summed segment lengths.
type Progress struct {
	TotalDistanceM     float64 `json:"total_distance_m"`
	CompletedDistanceM float64 `json:"completed_distance_m"`
	Percentage         float64 `json:"percentage"`
}
