// Package shipment provides the HTTP handlers and business logic for the
// supply-chain demo: shipment creation and seeding, the motion simulator,
// checkpoint receipts, and the live position stream.
package shipment

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"math/rand"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/realpay/supply-engine/internal/geo"
	"github.com/realpay/supply-engine/internal/ledger"
	"github.com/realpay/supply-engine/internal/metrics"
	"github.com/realpay/supply-engine/internal/model"
	"github.com/realpay/supply-engine/internal/route"
	"github.com/realpay/supply-engine/internal/store"
)

// Service handles shipment operations. All state lives in the injected
// registry, hub and event buffer; the service itself is stateless.
type Service struct {
	reg    *store.Registry
	hub    *Hub
	events *ledger.RecentEvents
	sim    *Simulator
	routes *route.Builder
	minter ledger.Minter
}

// NewService creates a new shipment service.
func NewService(reg *store.Registry, hub *Hub, events *ledger.RecentEvents, sim *Simulator, routes *route.Builder, minter ledger.Minter) *Service {
	return &Service{
		reg:    reg,
		hub:    hub,
		events: events,
		sim:    sim,
		routes: routes,
		minter: minter,
	}
}

// --- Request/Response types ---

// CreateShipmentRequest is the JSON body for POST /shipments.
type CreateShipmentRequest struct {
	Name    string        `json:"name"`
	Batches []model.Batch `json:"batches"`
}

// SeedRequest is the JSON body for POST /shipments/seed.
type SeedRequest struct {
	Count int `json:"count"`
}

// StatusRequest is the JSON body for POST /shipments/{shipmentID}/status.
type StatusRequest struct {
	Status string `json:"status"`
}

// GPSUpdateRequest is the JSON body for POST /gps/update, reporting an
// out-of-band position independent of the simulator.
type GPSUpdateRequest struct {
	ShipmentID string  `json:"shipment_id"`
	Lat        float64 `json:"lat"`
	Lng        float64 `json:"lng"`
}

// CheckpointRequest is the JSON body for POST /checkpoint (manual custody
// checkpoint, e.g. from a QR scan).
type CheckpointRequest struct {
	RouteID    string  `json:"route_id"`
	HopIndex   *int    `json:"hop_index"`
	UnitIDHash string  `json:"unit_id_hash"`
	Lat        float64 `json:"lat"`
	Lng        float64 `json:"lng"`
}

// RegisterBatchRequest is the JSON body for POST /register-batch.
type RegisterBatchRequest struct {
	BatchID  string          `json:"batch_id"`
	SKU      string          `json:"sku"`
	Quantity int             `json:"quantity"`
	Weight   float64         `json:"weight"`
	Value    decimal.Decimal `json:"value"`
}

// ShipmentSummary is the list-endpoint view of a shipment: route, cargo and
// bookkeeping, no motion internals.
type ShipmentSummary struct {
	ID            string          `json:"id"`
	Name          string          `json:"name"`
	Status        string          `json:"status"`
	Path          []model.Point   `json:"path"`
	Stops         []model.Stop    `json:"stops"`
	Items         []model.Item    `json:"items"`
	Batches       []model.Batch   `json:"batches"`
	Custodian     string          `json:"custodian"`
	ETA           string          `json:"eta"`
	SLA           string          `json:"sla"`
	Leg           string          `json:"leg"`
	SpeedCategory string          `json:"speed_category"`
	DeclaredValue decimal.Decimal `json:"declared_value"`
	CreatedAt     time.Time       `json:"created_at"`
	LastUpdate    time.Time       `json:"last_update"`
}

// ShipmentDetail is the single-shipment view with live position and
// computed progress.
type ShipmentDetail struct {
	ShipmentSummary
	CurrentPosition *model.LivePosition `json:"current_position"`
	Progress        model.Progress      `json:"progress"`
}

func summarize(s *model.Shipment) ShipmentSummary {
	return ShipmentSummary{
		ID:            s.ID,
		Name:          s.Name,
		Status:        s.Status,
		Path:          s.Path,
		Stops:         s.Stops,
		Items:         s.Items,
		Batches:       s.Batches,
		Custodian:     s.Custodian,
		ETA:           s.ETA,
		SLA:           s.SLA,
		Leg:           s.Leg,
		SpeedCategory: s.SpeedCategory,
		DeclaredValue: s.DeclaredValue(),
		CreatedAt:     s.CreatedAt,
		LastUpdate:    s.LastUpdate,
	}
}

// --- HTTP Handlers ---

// Ping handles GET /api/v1/ping.
func (svc *Service) Ping(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"ok":      true,
		"service": "supply",
		"ts":      time.Now().UnixMilli(),
	})
}

// ListShipments handles GET /api/v1/shipments.
func (svc *Service) ListShipments(w http.ResponseWriter, r *http.Request) {
	shipments := svc.reg.List()
	summaries := make([]ShipmentSummary, 0, len(shipments))
	for i := range shipments {
		summaries = append(summaries, summarize(&shipments[i]))
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "shipments": summaries})
}

// GetShipment handles GET /api/v1/shipments/{shipmentID}.
func (svc *Service) GetShipment(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "shipmentID")

	s, ok := svc.reg.Get(id)
	if !ok {
		writeError(w, "shipment not found", http.StatusNotFound)
		return
	}

	detail := ShipmentDetail{
		ShipmentSummary: summarize(&s),
		Progress:        progress(&s),
	}
	if pos, ok := svc.hub.Position(id); ok {
		detail.CurrentPosition = &pos
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "shipment": detail})
}

// progress computes delivery progress. Total distance is the straight-line
// start-to-end great-circle distance, not the summed segment lengths.
func progress(s *model.Shipment) model.Progress {
	if len(s.Path) < 2 {
		return model.Progress{}
	}
	total := geo.HaversineM(s.Path[0], s.Path[len(s.Path)-1])
	pct := 0.0
	if total > 0 {
		pct = math.Min(100, s.TotalProgressM/total*100)
	}
	return model.Progress{
		TotalDistanceM:     total,
		CompletedDistanceM: s.TotalProgressM,
		Percentage:         pct,
	}
}

// CreateShipment handles POST /api/v1/shipments. Builds a route over a
// random demo city chain and starts the simulator.
func (svc *Service) CreateShipment(w http.ResponseWriter, r *http.Request) {
	var req CreateShipmentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.Name == "" || req.Batches == nil {
		writeError(w, "name and batches array are required", http.StatusBadRequest)
		return
	}

	chain := cityChains[rand.Intn(len(cityChains))]
	cat := speedCategories[rand.Intn(len(speedCategories))]

	s := svc.assemble(r.Context(), assembleSpec{
		name:      req.Name,
		chain:     chain,
		category:  cat,
		batches:   req.Batches,
		items:     []model.Item{},
		custodian: custodians[rand.Intn(len(custodians))],
		sla:       model.SLAMet,
		status:    model.StatusInTransit,
		startLeg:  1,
	})

	if err := svc.register(s); err != nil {
		writeError(w, err.Error(), http.StatusConflict)
		return
	}

	slog.Info("shipment created",
		"id", s.ID,
		"name", s.Name,
		"speed_category", s.SpeedCategory,
		"path_points", len(s.Path),
	)
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "shipment_id": s.ID})
}

// SeedShipments handles POST /api/v1/shipments/seed. Seeds 1–10 demo
// shipments (default 3) over cyclic fixtures.
func (svc *Service) SeedShipments(w http.ResponseWriter, r *http.Request) {
	var req SeedRequest
	// Empty or malformed body falls back to the default count.
	_ = json.NewDecoder(r.Body).Decode(&req)
	count := req.Count
	if count == 0 {
		count = 3
	}
	if count < 1 {
		count = 1
	}
	if count > 10 {
		count = 10
	}

	ids := make([]string, 0, count)
	for i := 0; i < count; i++ {
		cat := speedCategories[i%len(speedCategories)]
		s := svc.assemble(r.Context(), assembleSpec{
			name:      fmt.Sprintf("%s Shipment %d", titleCase(cat.Name), i+1),
			chain:     cityChains[i%len(cityChains)],
			category:  cat,
			batches:   randomBatches(i),
			items:     itemTypes[i%len(itemTypes)],
			custodian: custodians[i%len(custodians)],
			sla:       seedSLAs[i%len(seedSLAs)],
			status:    seedStatuses[i%len(seedStatuses)],
			startLeg:  1 + rand.Intn(3),
		})
		if err := svc.register(s); err != nil {
			writeError(w, err.Error(), http.StatusInternalServerError)
			return
		}
		ids = append(ids, s.ID)

		// Initial custody receipt for the origin hop, fire-and-forget.
		if len(s.Path) > 0 {
			go svc.mintSeedReceipt(s.ID, s.Path[0])
		}
	}

	slog.Info("shipments seeded", "count", count)
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "count": count, "route_ids": ids})
}

// SeedSecret handles POST /api/v1/shipments/seed-secret: the reserved
// fixed-route bootstrap shipment used by the QR scanning simulation. It is
// driven by the regular simulator at a very slow fixed speed.
func (svc *Service) SeedSecret(w http.ResponseWriter, r *http.Request) {
	if _, ok := svc.reg.Get(SecretRouteID); ok {
		writeError(w, "secret route already seeded", http.StatusConflict)
		return
	}

	now := time.Now()
	items := make([]model.Item, 0, len(secretBatches))
	for _, b := range secretBatches {
		items = append(items, model.Item{ID: b.ID, Name: b.SKU, Quantity: b.Quantity, Weight: b.Weight, Value: b.Value})
	}

	s := &model.Shipment{
		ID:                SecretRouteID,
		Name:              "Secret Supply Route",
		Status:            model.StatusInTransit,
		Path:              secretPath,
		Stops:             secretStops,
		SegmentLengthM:    firstSegmentM(secretPath),
		SpeedMS:           5 * 1000.0 / 3600, // 5 km/h, deliberately slow
		SpeedCategory:     "classified",
		NextCheckpointAtM: CheckpointStepM,
		Items:             items,
		Batches:           secretBatches,
		Custodian:         "H(secret_agent)",
		ETA:               "23:59",
		SLA:               model.SLAMet,
		Leg:               fmt.Sprintf("1/%d", len(secretStops)),
		CreatedAt:         now,
		LastUpdate:        now,
	}

	if err := svc.register(s); err != nil {
		writeError(w, err.Error(), http.StatusConflict)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"ok":              true,
		"secret_route_id": SecretRouteID,
		"message":         "Secret route created for QR scanning simulation",
	})
}

// UpdateStatus handles POST /api/v1/shipments/{shipmentID}/status.
// Transitions out of delivered or cancelled are refused.
func (svc *Service) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "shipmentID")

	var req StatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if !model.ValidStatus(req.Status) {
		writeError(w, "status must be one of in_transit, delivered, paused, cancelled", http.StatusBadRequest)
		return
	}

	switch err := svc.reg.SetStatus(id, req.Status); err {
	case nil:
	case store.ErrNotFound:
		writeError(w, "shipment not found", http.StatusNotFound)
		return
	case store.ErrTerminalStatus:
		writeError(w, "shipment is in a terminal status", http.StatusConflict)
		return
	default:
		writeError(w, err.Error(), http.StatusInternalServerError)
		return
	}

	slog.Info("shipment status updated", "id", id, "status", req.Status)
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

// UpdateGPS handles POST /api/v1/gps/update: an externally reported
// position, broadcast identically to a simulator-driven update.
func (svc *Service) UpdateGPS(w http.ResponseWriter, r *http.Request) {
	var req GPSUpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.ShipmentID == "" || !finiteCoord(req.Lat, req.Lng) {
		writeError(w, "shipment_id and finite lat/lng are required", http.StatusBadRequest)
		return
	}

	svc.hub.UpdatePosition(req.ShipmentID, req.Lat, req.Lng, time.Now())
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

// RecentReceipts handles GET /api/v1/receipts/recent?n=. Returns the last
// n (1..100, default 10) checkpoint/receipt events, newest first.
func (svc *Service) RecentReceipts(w http.ResponseWriter, r *http.Request) {
	n := 10
	if raw := r.URL.Query().Get("n"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil {
			n = parsed
		}
	}
	if n < 1 {
		n = 1
	}
	if n > 100 {
		n = 100
	}
	writeJSON(w, http.StatusOK, svc.events.Recent(n))
}

// Checkpoint handles POST /api/v1/checkpoint: a manual custody checkpoint
// report. Receipt minting is simulated; signature and party-proof
// verification belong to the signing service and are not performed here.
func (svc *Service) Checkpoint(w http.ResponseWriter, r *http.Request) {
	var req CheckpointRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.RouteID == "" || req.HopIndex == nil || req.UnitIDHash == "" {
		writeError(w, "route_id, hop_index and unit_id_hash are required", http.StatusBadRequest)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"ok":         true,
		"receipt_id": uuid.New().String(),
		"tx_hash":    ledger.SimTxHash(),
	})
}

// RegisterBatch handles POST /api/v1/register-batch: mints a registration
// receipt for a cargo batch and records it in the recent events.
func (svc *Service) RegisterBatch(w http.ResponseWriter, r *http.Request) {
	var req RegisterBatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.BatchID == "" || req.SKU == "" || req.Quantity <= 0 {
		writeError(w, "invalid batch data", http.StatusBadRequest)
		return
	}

	now := time.Now().Unix()
	res, err := svc.minter.MintReceipt(r.Context(), "batch_registration", map[string]any{
		"batch_id_hash": req.BatchID,
		"sku":           req.SKU,
		"quantity":      req.Quantity,
		"weight":        req.Weight,
		"value":         req.Value.String(),
		"ts_unix":       now,
	})
	receiptID := res.ReceiptID
	txHash := res.TxHash
	if err != nil || receiptID == "" {
		receiptID = uuid.New().String()
	}
	if err != nil || txHash == "" {
		txHash = ledger.SimTxHash()
	}

	svc.events.Push(model.RecentEvent{
		ID:          receiptID,
		ReceiptID:   receiptID,
		AmountUnits: 0,
		TSUnix:      now,
		TxHash:      txHash,
		BatchID:     req.BatchID,
		SKU:         req.SKU,
	})

	slog.Info("batch registered", "batch_id", req.BatchID, "sku", req.SKU, "tx_hash", txHash)
	writeJSON(w, http.StatusOK, map[string]any{
		"ok":            true,
		"batch_id":      req.BatchID,
		"receipt_id":    receiptID,
		"tx_hash":       txHash,
		"registered_at": now,
		"simulated":     true,
	})
}

// SecretQR handles GET /api/v1/secret-route/qr/{segmentIndex}: the QR
// payload for one secret-route stop, including the location gate.
func (svc *Service) SecretQR(w http.ResponseWriter, r *http.Request) {
	idx, err := strconv.Atoi(chi.URLParam(r, "segmentIndex"))
	if err != nil || idx < 0 {
		writeError(w, "invalid segment index", http.StatusBadRequest)
		return
	}

	s, ok := svc.reg.Get(SecretRouteID)
	if !ok || idx >= len(s.Stops) {
		writeError(w, "secret route or segment not found", http.StatusNotFound)
		return
	}

	stop := s.Stops[idx]
	writeJSON(w, http.StatusOK, map[string]any{
		"ok": true,
		"qr_data": map[string]any{
			"route_id":      SecretRouteID,
			"segment_index": idx,
			"checkpoint": map[string]any{
				"lat":   stop.Lat,
				"lng":   stop.Lng,
				"label": stop.Label,
				"type":  stop.Type,
			},
			"required_location": map[string]any{
				"lat":    stop.Lat,
				"lng":    stop.Lng,
				"radius": 50, // meters
			},
			"timestamp": time.Now().UnixMilli(),
		},
	})
}

// --- Assembly helpers ---

type assembleSpec struct {
	name      string
	chain     []model.Waypoint
	category  model.SpeedCategory
	batches   []model.Batch
	items     []model.Item
	custodian string
	sla       string
	status    string
	startLeg  int
}

// assemble builds the route and motion state for a new shipment. The speed
// is sampled uniformly within the category band and fixed for the
// shipment's lifetime.
func (svc *Service) assemble(ctx context.Context, spec assembleSpec) *model.Shipment {
	now := time.Now()
	path, stops := svc.routes.Build(ctx, spec.chain)

	baseKmh := spec.category.MinKmh + rand.Float64()*(spec.category.MaxKmh-spec.category.MinKmh)
	speedMS := baseKmh * 1000 / 3600

	eta := now.Add(time.Hour)
	if len(path) >= 2 {
		straight := geo.HaversineM(path[0], path[len(path)-1])
		eta = now.Add(time.Duration(straight / speedMS * float64(time.Second)))
	}

	return &model.Shipment{
		ID:                "route_" + uuid.New().String(),
		Name:              spec.name,
		Status:            spec.status,
		Path:              path,
		Stops:             stops,
		SegmentLengthM:    firstSegmentM(path),
		SpeedMS:           speedMS,
		SpeedCategory:     spec.category.Name,
		NextCheckpointAtM: CheckpointStepM,
		Items:             spec.items,
		Batches:           spec.batches,
		Custodian:         spec.custodian,
		ETA:               eta.Format("15:04"),
		SLA:               spec.sla,
		Leg:               fmt.Sprintf("%d/%d", spec.startLeg, len(stops)),
		CreatedAt:         now,
		LastUpdate:        now,
	}
}

// register inserts the shipment, publishes its origin position, and makes
// sure the simulator is running.
func (svc *Service) register(s *model.Shipment) error {
	if err := svc.reg.Insert(s); err != nil {
		return err
	}
	if len(s.Path) > 0 {
		svc.hub.UpdatePosition(s.ID, s.Path[0].Lat, s.Path[0].Lng, s.CreatedAt)
	}
	metrics.ActiveShipments.Set(float64(svc.reg.Len()))
	svc.sim.EnsureRunning()
	return nil
}

func (svc *Service) mintSeedReceipt(id string, origin model.Point) {
	ctx, cancel := context.WithTimeout(context.Background(), mintTimeout)
	defer cancel()

	tsUnix := time.Now().Unix()
	res, err := svc.minter.MintReceipt(ctx, "api_seeder", map[string]any{
		"route_id": id,
		"hop":      0,
		"lat":      origin.Lat,
		"lng":      origin.Lng,
		"ts_unix":  tsUnix,
	})
	txHash := res.TxHash
	if err != nil || txHash == "" {
		txHash = ledger.SimTxHash()
	}
	receiptID := uuid.New().String()
	svc.events.Push(model.RecentEvent{
		ID:          receiptID,
		ReceiptID:   receiptID,
		AmountUnits: 0,
		TSUnix:      tsUnix,
		TxHash:      txHash,
	})
}

func firstSegmentM(path []model.Point) float64 {
	if len(path) < 2 {
		return 1
	}
	return segLen(geo.HaversineM, path[0], path[1])
}

func randomBatches(seedIndex int) []model.Batch {
	count := 1 + rand.Intn(3)
	batches := make([]model.Batch, 0, count)
	for j := 0; j < count; j++ {
		batches = append(batches, model.Batch{
			ID:       "batch_" + uuid.New().String(),
			BatchID:  fmt.Sprintf("BATCH-%03d-%02d", seedIndex+1, j+1),
			SKU:      fmt.Sprintf("SKU-%c%03d", 'A'+j, seedIndex+1),
			Quantity: 10 + rand.Intn(50),
			Weight:   5 + rand.Float64()*20,
			Value:    decimal.NewFromFloat(1000 + rand.Float64()*5000).Round(2),
		})
	}
	return batches
}

func titleCase(s string) string {
	if s == "" {
		return s
	}
	return string(s[0]-'a'+'A') + s[1:]
}

func finiteCoord(lat, lng float64) bool {
	return !math.IsNaN(lat) && !math.IsInf(lat, 0) &&
		!math.IsNaN(lng) && !math.IsInf(lng, 0) &&
		lat >= -90 && lat <= 90 && lng >= -180 && lng <= 180
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, message string, status int) {
	writeJSON(w, status, map[string]any{"ok": false, "error": message})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
