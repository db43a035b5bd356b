package reporting

import (
	"time"

	"github.com/Andres1439/verify-cod-orders/internal/orders"

	"github.com/shopspring/decimal"
)

// PageSize is the number of recent calls per report page.
const PageSize = 10

// ConfirmationsRequest asks for one shop's report page.
// Shop isolation: ShopDomain is required.
type ConfirmationsRequest struct {
	ShopDomain string `json:"shop_domain"`
	// Page is 1-based; values below 1 mean the first page.
	Page int `json:"page"`
}

type ConfirmationSummary struct {
	ShopDomain string `json:"shop_domain"`

	TotalOrders int `json:"total_orders"`
	PendingCall int `json:"pending_call"`
	Confirmed   int `json:"confirmed"`
	Declined    int `json:"declined"`
	NoAnswer    int `json:"no_answer"`
	Expired     int `json:"expired"`

	// ConfirmationRate is confirmed over decided (confirmed + declined).
	ConfirmationRate float64 `json:"confirmation_rate"`
	// ReachRate is decided over every order that left PENDING_CALL.
	ReachRate float64 `json:"reach_rate"`
}

type RecentCall struct {
	OrderID             string            `json:"order_id"`
	InternalOrderNumber string            `json:"internal_order_number"`
	CustomerName        string            `json:"customer_name,omitempty"`
	CustomerPhone       string            `json:"customer_phone"`
	Total               decimal.Decimal   `json:"total"`
	Currency            string            `json:"currency"`
	Status              orders.Status     `json:"status"`
	CallStatus          orders.CallStatus `json:"call_status"`
	DTMFResponse        string            `json:"dtmf_response,omitempty"`
	CallAttempts        int               `json:"call_attempts"`
	CreatedAt           time.Time         `json:"created_at"`
	CallStartedAt       *time.Time        `json:"call_started_at,omitempty"`
}

type ConfirmationsReport struct {
	Summary  ConfirmationSummary `json:"summary"`
	Page     int                 `json:"page"`
	PageSize int                 `json:"page_size"`
	Recent   []RecentCall        `json:"recent"`
}
