package calls

import (
	"time"

	"github.com/Andres1439/verify-cod-orders/internal/orders"

	"github.com/shopspring/decimal"
)

// Outcome is the result of one keypress on the confirmation prompt.
type Outcome string

const (
	OutcomeConfirmed  Outcome = "confirmed"
	OutcomeDeclined   Outcome = "declined"
	OutcomeReprompt   Outcome = "reprompt"
	OutcomeNoResponse Outcome = "no_response"
)

// classify maps a keypress to an outcome given how many retries the current
// leg has already used. Timeouts arrive as an empty digit.
func classify(digits string, retryCount int) Outcome {
	switch digits {
	case "1":
		return OutcomeConfirmed
	case "2":
		return OutcomeDeclined
	}
	if retryCount == 0 {
		return OutcomeReprompt
	}
	return OutcomeNoResponse
}

// InitiateResult is returned once the provider accepted the call.
type InitiateResult struct {
	CallUUID         string `json:"call_uuid"`
	OrderID          string `json:"order_id"`
	Phone            string `json:"phone"`
	Status           string `json:"status"`
	ConversationUUID string `json:"conversation_uuid,omitempty"`
}

// PendingOrder is an order waiting for its confirmation call.
type PendingOrder struct {
	ID                  string                 `json:"id"`
	CustomerPhone       string                 `json:"customer_phone"`
	CustomerName        string                 `json:"customer_name,omitempty"`
	CustomerEmail       string                 `json:"customer_email,omitempty"`
	ShopDomain          string                 `json:"shop_domain"`
	OrderTotal          decimal.Decimal        `json:"order_total"`
	ShopCurrency        string                 `json:"shop_currency"`
	InternalOrderNumber string                 `json:"internal_order_number"`
	CommerceOrderName   string                 `json:"shopify_order_name,omitempty"`
	Products            []orders.LineItem      `json:"products"`
	ShippingAddress     orders.ShippingAddress `json:"shipping_address"`
	CreatedAt           time.Time              `json:"created_at"`
	CallStatus          orders.CallStatus      `json:"call_status"`
	CallUUID            string                 `json:"call_uuid,omitempty"`
	HoursOld            int                    `json:"hours_old"`
}

func newPendingOrder(o orders.Order, now time.Time) PendingOrder {
	items := o.Items
	if items == nil {
		items = []orders.LineItem{}
	}
	return PendingOrder{
		ID:                  o.ID,
		CustomerPhone:       o.CustomerPhone,
		CustomerName:        o.CustomerName,
		CustomerEmail:       o.CustomerEmail,
		ShopDomain:          o.ShopDomain,
		OrderTotal:          o.Total,
		ShopCurrency:        o.Currency,
		InternalOrderNumber: o.InternalOrderNumber,
		CommerceOrderName:   o.CommerceOrderName,
		Products:            items,
		ShippingAddress:     o.ShippingAddress,
		CreatedAt:           o.CreatedAt,
		CallStatus:          o.CallStatus,
		CallUUID:            o.CallUUID,
		HoursOld:            int(o.Age(now).Hours()),
	}
}
