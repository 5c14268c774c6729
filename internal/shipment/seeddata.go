package shipment

import (
	"github.com/shopspring/decimal"

	"github.com/realpay/supply-engine/internal/model"
)

// Demo fixtures for seeded shipments. Mirrors the dashboard's UK routes.

var custodians = []string{
	"H(dist_7ac2)",
	"H(hub_a)",
	"H(orig_9b1x)",
	"H(warehouse_3k)",
	"H(logistics_5m)",
}

var cityChains = [][]model.Waypoint{
	{
		{Name: "London", Lat: 51.5074, Lng: -0.1278},
		{Name: "Birmingham", Lat: 52.4862, Lng: -1.8904},
		{Name: "Manchester", Lat: 53.4808, Lng: -2.2426},
	},
	{
		{Name: "Edinburgh", Lat: 55.9533, Lng: -3.1883},
		{Name: "Glasgow", Lat: 55.8642, Lng: -4.2518},
		{Name: "Newcastle", Lat: 54.9783, Lng: -1.6178},
	},
	{
		{Name: "Liverpool", Lat: 53.4084, Lng: -2.9916},
		{Name: "Leeds", Lat: 53.8008, Lng: -1.5491},
		{Name: "Sheffield", Lat: 53.3811, Lng: -1.4701},
	},
	{
		{Name: "Bristol", Lat: 51.4545, Lng: -2.5879},
		{Name: "Cardiff", Lat: 51.4816, Lng: -3.1791},
		{Name: "Swansea", Lat: 51.6214, Lng: -3.9436},
	},
	{
		{Name: "Norwich", Lat: 52.6309, Lng: 1.2974},
		{Name: "Cambridge", Lat: 52.2053, Lng: 0.1218},
		{Name: "Oxford", Lat: 51.7520, Lng: -1.2577},
	},
}

var speedCategories = []model.SpeedCategory{
	{Name: "urban", MinKmh: 30, MaxKmh: 50},      // city delivery trucks
	{Name: "highway", MinKmh: 60, MaxKmh: 80},    // highway trucks
	{Name: "express", MinKmh: 90, MaxKmh: 110},   // express delivery
	{Name: "heavy", MinKmh: 20, MaxKmh: 40},      // heavy cargo trucks
	{Name: "standard", MinKmh: 70, MaxKmh: 90},   // standard freight
}

func dv(f float64) decimal.Decimal { return decimal.NewFromFloat(f) }

var itemTypes = [][]model.Item{
	{
		{ID: "item_1", Name: "Electronics Components", Quantity: 50, Weight: 25.5, Value: dv(12500)},
		{ID: "item_2", Name: "Circuit Boards", Quantity: 100, Weight: 12.3, Value: dv(8500)},
	},
	{
		{ID: "item_3", Name: "Medical Supplies", Quantity: 200, Weight: 45.2, Value: dv(18500)},
		{ID: "item_4", Name: "Pharmaceuticals", Quantity: 75, Weight: 8.7, Value: dv(22000)},
	},
	{
		{ID: "item_5", Name: "Auto Parts", Quantity: 30, Weight: 120.8, Value: dv(15600)},
		{ID: "item_6", Name: "Engine Components", Quantity: 15, Weight: 85.3, Value: dv(32000)},
	},
	{
		{ID: "item_7", Name: "Textiles", Quantity: 500, Weight: 75.2, Value: dv(9800)},
		{ID: "item_8", Name: "Fabric Rolls", Quantity: 80, Weight: 45.6, Value: dv(12000)},
	},
	{
		{ID: "item_9", Name: "Food Products", Quantity: 300, Weight: 95.4, Value: dv(6800)},
		{ID: "item_10", Name: "Beverages", Quantity: 150, Weight: 60.1, Value: dv(4500)},
	},
}

// Seeded shipments cycle these so most of them actually move.
var seedStatuses = []string{
	model.StatusInTransit,
	model.StatusInTransit,
	model.StatusInTransit,
	model.StatusPaused,
	model.StatusInTransit,
}

var seedSLAs = []string{
	model.SLAMet,
	model.SLAMet,
	model.SLARisk,
	model.SLABreach,
	model.SLAMet,
}

// Secret route fixture for the QR scanning simulation.

// SecretRouteID is the reserved id of the bootstrap demo route.
const SecretRouteID = "secret_route_001"

var secretPath = []model.Point{
	{Lat: 51.5074, Lng: -0.1278}, // London (start)
	{Lat: 51.5074, Lng: -0.1278}, // London checkpoint (QR scan location)
	{Lat: 52.4862, Lng: -1.8904}, // Birmingham
	{Lat: 53.4808, Lng: -2.2426}, // Manchester (end)
}

var secretStops = []model.Stop{
	{Lat: 51.5074, Lng: -0.1278, Label: "Secret Hub Alpha", Type: model.StopHub},
	{Lat: 52.4862, Lng: -1.8904, Label: "Birmingham Checkpoint", Type: model.StopProof},
	{Lat: 53.4808, Lng: -2.2426, Label: "Manchester Terminal", Type: model.StopHub},
}

var secretBatches = []model.Batch{
	{ID: "secret_batch_001", BatchID: "SECRET-001", SKU: "CLASSIFIED", Quantity: 1, Weight: 0.1, Value: dv(999999)},
	{ID: "secret_batch_002", BatchID: "SECRET-002", SKU: "RESTRICTED", Quantity: 1, Weight: 0.1, Value: dv(999999)},
}
