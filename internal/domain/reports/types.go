// Package reports provides stock reports derived from the batch ledger.
package reports

import (
	"time"

	"pharmastock/internal/core/dates"
	"pharmastock/internal/core/id"
	"pharmastock/internal/core/types"
	"pharmastock/internal/domain/stock"
)

// --- Stock level reports ---

// ProductStock is one product row of a stock level report.
type ProductStock struct {
	ProductID   id.ID              `json:"productId"`
	ProductName string             `json:"productName"`
	Company     *string            `json:"company,omitempty"`
	Packing     *string            `json:"packing,omitempty"`
	Category    *string            `json:"category,omitempty"`
	Status      stock.Status       `json:"status"`
	TotalStock  int64              `json:"totalStock"`
	Batches     []stock.BatchStock `json:"batches"`
}

// StockLevelReport lists products in one stock status.
type StockLevelReport struct {
	Status      stock.Status   `json:"status"`
	Threshold   int64          `json:"threshold"`
	GeneratedAt time.Time      `json:"generatedAt"`
	Items       []ProductStock `json:"items"`
	TotalItems  int            `json:"totalItems"`
}

// --- Expiry report ---

// ExpiringItem is a batch close to (or past) its expiry.
type ExpiringItem struct {
	stock.ExpiringBatch
	ProductName string `json:"productName"`
}

// ExpiringReport lists batches with stock that expire on or before AsOf + WindowDays.
type ExpiringReport struct {
	AsOf       dates.Date     `json:"asOf"`
	WindowDays int            `json:"windowDays"`
	Items      []ExpiringItem `json:"items"`
	TotalItems int            `json:"totalItems"`

	// Summary
	ExpiredUnits  int64 `json:"expiredUnits"`
	ExpiringUnits int64 `json:"expiringUnits"`
}

// --- Stock value report ---

// StockValueItem values one in-stock product at the average MRP of its purchases.
type StockValueItem struct {
	ProductID   id.ID       `json:"productId"`
	ProductName string      `json:"productName"`
	Stock       int64       `json:"stock"`
	AverageMRP  types.Money `json:"averageMrp"`
	Value       types.Money `json:"value"`
}

// StockValueReport represents the full stock valuation.
type StockValueReport struct {
	GeneratedAt time.Time        `json:"generatedAt"`
	Items       []StockValueItem `json:"items"`
	TotalItems  int              `json:"totalItems"`
	TotalUnits  int64            `json:"totalUnits"`
	TotalValue  types.Money      `json:"totalValue"`
}

// --- Alerts ---

// Digest counts the products and batches that need attention.
type Digest struct {
	LowStock       int   `json:"lowStock"`
	OutOfStock     int   `json:"outOfStock"`
	ExpiringSoon   int   `json:"expiringSoon"`
	Expired        int   `json:"expired"`
	UnitsAtRisk    int64 `json:"unitsAtRisk"`
	ProductsViewed int   `json:"productsViewed"`
}
