package reports

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"gudang-system/internal/database/models"
)

// Aggregator computes read-only projections over items, sales, orders and
// purchase requests. It never mutates and never calls the ledger.
type Aggregator struct {
	db *gorm.DB
}

func NewAggregator(db *gorm.DB) *Aggregator {
	return &Aggregator{db: db}
}

type InventoryReportItem struct {
	ID         int64   `json:"id"`
	Code       string  `json:"code"`
	Name       string  `json:"name"`
	Quantity   int64   `json:"quantity"`
	Price      *string `json:"price,omitempty"`
	TotalValue string  `json:"total_value"`
	CreatedAt  time.Time `json:"created_at"`
}

type InventoryReport struct {
	Items           []InventoryReportItem `json:"items"`
	TotalItems      int                   `json:"total_items"`
	TotalValue      string                `json:"total_value"`
	ItemsAddedToday int                   `json:"items_added_today"`
}

// Inventory values the catalog as of now; it takes no date range.
func (a *Aggregator) Inventory(ctx context.Context, now time.Time) (*InventoryReport, error) {
	var items []models.Item
	if err := a.db.WithContext(ctx).Order("name ASC").Find(&items).Error; err != nil {
		return nil, fmt.Errorf("load items: %w", err)
	}

	startOfDay := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())

	report := &InventoryReport{Items: make([]InventoryReportItem, 0, len(items))}
	totalValue := decimal.Zero
	for _, item := range items {
		value := decimal.Zero
		if item.Price != nil {
			price, err := decimal.NewFromString(*item.Price)
			if err != nil {
				return nil, fmt.Errorf("item %d has malformed price %q: %w", item.ID, *item.Price, err)
			}
			value = price.Mul(decimal.NewFromInt(item.Quantity))
		}
		totalValue = totalValue.Add(value)

		if !item.CreatedAt.Before(startOfDay) {
			report.ItemsAddedToday++
		}

		report.Items = append(report.Items, InventoryReportItem{
			ID:         item.ID,
			Code:       item.Code,
			Name:       item.Name,
			Quantity:   item.Quantity,
			Price:      item.Price,
			TotalValue: value.StringFixed(2),
			CreatedAt:  item.CreatedAt,
		})
	}

	report.TotalItems = len(items)
	report.TotalValue = totalValue.StringFixed(2)
	return report, nil
}

type SalesReportItem struct {
	ItemCode      string `json:"item_code"`
	ItemName      string `json:"item_name"`
	TotalQuantity int64  `json:"total_quantity"`
	TotalRevenue  string `json:"total_revenue"`
	SalesCount    int64  `json:"sales_count"`
}

type SalesReport struct {
	Items        []SalesReportItem `json:"items"`
	TotalRevenue string            `json:"total_revenue"`
	TotalSales   int64             `json:"total_sales"`
}

func (a *Aggregator) Sales(ctx context.Context, from, to time.Time) (*SalesReport, error) {
	empty := &SalesReport{Items: []SalesReportItem{}, TotalRevenue: "0.00"}
	if from.After(to) {
		return empty, nil
	}

	var sales []models.Sale
	err := a.db.WithContext(ctx).Preload("Item").
		Where("sale_date >= ? AND sale_date <= ?", from, to).
		Find(&sales).Error
	if err != nil {
		return nil, fmt.Errorf("load sales: %w", err)
	}

	type bucket struct {
		code     string
		name     string
		quantity int64
		revenue  decimal.Decimal
		count    int64
	}
	buckets := map[int64]*bucket{}
	totalRevenue := decimal.Zero

	for _, sale := range sales {
		total, err := decimal.NewFromString(sale.TotalPrice)
		if err != nil {
			return nil, fmt.Errorf("sale %d has malformed total %q: %w", sale.ID, sale.TotalPrice, err)
		}
		b, ok := buckets[sale.ItemID]
		if !ok {
			b = &bucket{}
			if sale.Item != nil {
				b.code = sale.Item.Code
				b.name = sale.Item.Name
			}
			buckets[sale.ItemID] = b
		}
		b.quantity += sale.Quantity
		b.revenue = b.revenue.Add(total)
		b.count++
		totalRevenue = totalRevenue.Add(total)
	}

	ordered := make([]*bucket, 0, len(buckets))
	for _, b := range buckets {
		ordered = append(ordered, b)
	}
	sort.Slice(ordered, func(i, j int) bool {
		return ordered[i].revenue.GreaterThan(ordered[j].revenue)
	})

	report := &SalesReport{
		Items:        make([]SalesReportItem, 0, len(ordered)),
		TotalRevenue: totalRevenue.StringFixed(2),
		TotalSales:   int64(len(sales)),
	}
	for _, b := range ordered {
		report.Items = append(report.Items, SalesReportItem{
			ItemCode:      b.code,
			ItemName:      b.name,
			TotalQuantity: b.quantity,
			TotalRevenue:  b.revenue.StringFixed(2),
			SalesCount:    b.count,
		})
	}
	return report, nil
}

type PurchaseReportItem struct {
	ItemName           string  `json:"item_name"`
	ItemCode           *string `json:"item_code,omitempty"`
	TotalQuantity      int64   `json:"total_quantity"`
	TotalEstimatedCost string  `json:"total_estimated_cost"`
	RequestCount       int64   `json:"request_count"`
	ApprovedCount      int64   `json:"approved_count"`
	DeniedCount        int64   `json:"denied_count"`
}

type PurchaseReport struct {
	Items              []PurchaseReportItem `json:"items"`
	TotalEstimatedCost string               `json:"total_estimated_cost"`
	TotalRequests      int64                `json:"total_requests"`
}

func (a *Aggregator) Purchases(ctx context.Context, from, to time.Time) (*PurchaseReport, error) {
	empty := &PurchaseReport{Items: []PurchaseReportItem{}, TotalEstimatedCost: "0.00"}
	if from.After(to) {
		return empty, nil
	}

	var requests []models.PurchaseRequest
	err := a.db.WithContext(ctx).
		Where("created_at >= ? AND created_at <= ?", from, to).
		Find(&requests).Error
	if err != nil {
		return nil, fmt.Errorf("load purchase requests: %w", err)
	}

	type bucket struct {
		name     string
		code     *string
		quantity int64
		cost     decimal.Decimal
		total    int64
		approved int64
		denied   int64
	}
	buckets := map[string]*bucket{}
	totalCost := decimal.Zero

	for _, req := range requests {
		b, ok := buckets[req.ItemName]
		if !ok {
			b = &bucket{name: req.ItemName, code: req.ItemCode}
			buckets[req.ItemName] = b
		}
		b.quantity += req.Quantity
		b.total++
		switch req.Status {
		case models.PurchaseStatusApproved:
			b.approved++
		case models.PurchaseStatusDenied:
			b.denied++
		}
		if req.EstimatedPrice != nil {
			price, err := decimal.NewFromString(*req.EstimatedPrice)
			if err != nil {
				return nil, fmt.Errorf("request %d has malformed price %q: %w", req.ID, *req.EstimatedPrice, err)
			}
			cost := price.Mul(decimal.NewFromInt(req.Quantity))
			b.cost = b.cost.Add(cost)
			totalCost = totalCost.Add(cost)
		}
	}

	ordered := make([]*bucket, 0, len(buckets))
	for _, b := range buckets {
		ordered = append(ordered, b)
	}
	sort.Slice(ordered, func(i, j int) bool {
		return ordered[i].cost.GreaterThan(ordered[j].cost)
	})

	report := &PurchaseReport{
		Items:              make([]PurchaseReportItem, 0, len(ordered)),
		TotalEstimatedCost: totalCost.StringFixed(2),
		TotalRequests:      int64(len(requests)),
	}
	for _, b := range ordered {
		report.Items = append(report.Items, PurchaseReportItem{
			ItemName:           b.name,
			ItemCode:           b.code,
			TotalQuantity:      b.quantity,
			TotalEstimatedCost: b.cost.StringFixed(2),
			RequestCount:       b.total,
			ApprovedCount:      b.approved,
			DeniedCount:        b.denied,
		})
	}
	return report, nil
}

type OrdersReportItem struct {
	ItemName      string `json:"item_name"`
	TotalQuantity int64  `json:"total_quantity"`
	TotalRevenue  string `json:"total_revenue"`
	OrdersCount   int64  `json:"orders_count"`
}

type OrdersByPaymentMethod struct {
	PaymentMethod string `json:"payment_method"`
	Count         int64  `json:"count"`
	TotalRevenue  string `json:"total_revenue"`
}

type OrdersByStatus struct {
	Status string `json:"status"`
	Count  int64  `json:"count"`
}

type OrdersReport struct {
	Items           []OrdersReportItem      `json:"items"`
	ByPaymentMethod []OrdersByPaymentMethod `json:"by_payment_method"`
	ByStatus        []OrdersByStatus        `json:"by_status"`
	TotalRevenue    string                  `json:"total_revenue"`
	TotalOrders     int64                   `json:"total_orders"`
}

func (a *Aggregator) Orders(ctx context.Context, from, to time.Time) (*OrdersReport, error) {
	empty := &OrdersReport{
		Items:           []OrdersReportItem{},
		ByPaymentMethod: []OrdersByPaymentMethod{},
		ByStatus:        []OrdersByStatus{},
		TotalRevenue:    "0.00",
	}
	if from.After(to) {
		return empty, nil
	}

	var orders []models.Order
	err := a.db.WithContext(ctx).
		Where("created_at >= ? AND created_at <= ?", from, to).
		Find(&orders).Error
	if err != nil {
		return nil, fmt.Errorf("load orders: %w", err)
	}

	type itemBucket struct {
		name     string
		quantity int64
		revenue  decimal.Decimal
		count    int64
	}
	type paymentBucket struct {
		count   int64
		revenue decimal.Decimal
	}
	itemBuckets := map[string]*itemBucket{}
	paymentBuckets := map[string]*paymentBucket{}
	statusCounts := map[string]int64{}
	totalRevenue := decimal.Zero

	for _, order := range orders {
		total, err := decimal.NewFromString(order.TotalPrice)
		if err != nil {
			return nil, fmt.Errorf("order %d has malformed total %q: %w", order.ID, order.TotalPrice, err)
		}

		ib, ok := itemBuckets[order.ItemName]
		if !ok {
			ib = &itemBucket{name: order.ItemName}
			itemBuckets[order.ItemName] = ib
		}
		ib.quantity += order.Quantity
		ib.revenue = ib.revenue.Add(total)
		ib.count++

		pb, ok := paymentBuckets[order.PaymentMethod]
		if !ok {
			pb = &paymentBucket{}
			paymentBuckets[order.PaymentMethod] = pb
		}
		pb.count++
		pb.revenue = pb.revenue.Add(total)

		statusCounts[order.Status]++
		totalRevenue = totalRevenue.Add(total)
	}

	orderedItems := make([]*itemBucket, 0, len(itemBuckets))
	for _, b := range itemBuckets {
		orderedItems = append(orderedItems, b)
	}
	sort.Slice(orderedItems, func(i, j int) bool {
		return orderedItems[i].revenue.GreaterThan(orderedItems[j].revenue)
	})

	report := &OrdersReport{
		Items:           make([]OrdersReportItem, 0, len(orderedItems)),
		ByPaymentMethod: make([]OrdersByPaymentMethod, 0, len(paymentBuckets)),
		ByStatus:        make([]OrdersByStatus, 0, len(statusCounts)),
		TotalRevenue:    totalRevenue.StringFixed(2),
		TotalOrders:     int64(len(orders)),
	}
	for _, b := range orderedItems {
		report.Items = append(report.Items, OrdersReportItem{
			ItemName:      b.name,
			TotalQuantity: b.quantity,
			TotalRevenue:  b.revenue.StringFixed(2),
			OrdersCount:   b.count,
		})
	}
	for method, b := range paymentBuckets {
		report.ByPaymentMethod = append(report.ByPaymentMethod, OrdersByPaymentMethod{
			PaymentMethod: method,
			Count:         b.count,
			TotalRevenue:  b.revenue.StringFixed(2),
		})
	}
	sort.Slice(report.ByPaymentMethod, func(i, j int) bool {
		return report.ByPaymentMethod[i].PaymentMethod < report.ByPaymentMethod[j].PaymentMethod
	})
	for status, count := range statusCounts {
		report.ByStatus = append(report.ByStatus, OrdersByStatus{Status: status, Count: count})
	}
	sort.Slice(report.ByStatus, func(i, j int) bool {
		return report.ByStatus[i].Status < report.ByStatus[j].Status
	})
	return report, nil
}
