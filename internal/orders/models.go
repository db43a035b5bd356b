package orders

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Order is a cash-on-delivery order awaiting (or done with) phone confirmation.
//
// Items, Total, Currency, CountryCode and Timezone are a snapshot taken at
// intake and never re-fetched from the commerce backend.
//
// CallUUID is the provider correlation id of the current call leg. Provider
// callbacks are resolved by it, never by ID.
type Order struct {
	ID                  string `json:"id" db:"id"`
	ShopDomain          string `json:"shop_domain" db:"shop_domain"`
	InternalOrderNumber string `json:"internal_order_number" db:"internal_order_number"`
	CommerceOrderID     string `json:"commerce_order_id,omitempty" db:"commerce_order_id"`
	CommerceOrderName   string `json:"commerce_order_name,omitempty" db:"commerce_order_name"`

	CustomerPhone string `json:"customer_phone" db:"customer_phone"`
	CustomerName  string `json:"customer_name,omitempty" db:"customer_name"`
	CustomerEmail string `json:"customer_email,omitempty" db:"customer_email"`

	Items           []LineItem      `json:"items" db:"order_items"`
	Total           decimal.Decimal `json:"total" db:"order_total"`
	Currency        string          `json:"currency" db:"shop_currency"`
	CountryCode     string          `json:"country_code" db:"shop_country_code"`
	Timezone        string          `json:"timezone" db:"shop_timezone"`
	ShippingAddress ShippingAddress `json:"shipping_address" db:"shipping_address"`

	Status       Status     `json:"status" db:"status"`
	CallStatus   CallStatus `json:"call_status" db:"call_status"`
	CallUUID     string     `json:"call_uuid,omitempty" db:"call_uuid"`
	DTMFResponse string     `json:"dtmf_response,omitempty" db:"dtmf_response"`
	RetryCount   int        `json:"retry_count" db:"retry_count"`
	CallAttempts int        `json:"call_attempts" db:"call_attempts"`

	CreatedAt     time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at" db:"updated_at"`
	CallStartedAt *time.Time `json:"call_started_at,omitempty" db:"call_started_at"`
	ConfirmedAt   *time.Time `json:"confirmed_at,omitempty" db:"confirmed_at"`
	DeclinedAt    *time.Time `json:"declined_at,omitempty" db:"declined_at"`
	LastEventAt   *time.Time `json:"last_event_at,omitempty" db:"last_event_at"`
	ExpiresAt     *time.Time `json:"expires_at,omitempty" db:"expires_at"`
}

// State returns the joint status pair of the order.
func (o Order) State() State {
	return State{Status: o.Status, CallStatus: o.CallStatus}
}

// Age is the time elapsed since creation.
func (o Order) Age(now time.Time) time.Duration {
	return now.Sub(o.CreatedAt)
}

// ProductTitles returns non-empty item titles in order.
func (o Order) ProductTitles() []string {
	out := make([]string, 0, len(o.Items))
	for _, it := range o.Items {
		if t := strings.TrimSpace(it.Title); t != "" {
			out = append(out, t)
		}
	}
	return out
}

type LineItem struct {
	Title    string          `json:"title"`
	Quantity int             `json:"quantity"`
	Price    decimal.Decimal `json:"price"`
}

// Subtotal is Price * Quantity.
func (li LineItem) Subtotal() decimal.Decimal {
	return li.Price.Mul(decimal.NewFromInt(int64(li.Quantity)))
}

type ShippingAddress struct {
	FirstName string `json:"firstName,omitempty"`
	LastName  string `json:"lastName,omitempty"`
	Address1  string `json:"address1,omitempty"`
	City      string `json:"city,omitempty"`
	Province  string `json:"province,omitempty"`
	Country   string `json:"country,omitempty"`
	Zip       string `json:"zip,omitempty"`
	Phone     string `json:"phone,omitempty"`
}

// DeliveryLine joins address1, city and province, skipping empty parts.
func (a ShippingAddress) DeliveryLine() string {
	parts := make([]string, 0, 3)
	for _, p := range []string{a.Address1, a.City, a.Province} {
		if p = strings.TrimSpace(p); p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, ", ")
}

// Shop is a merchant store. AccessToken is opaque to this service; it is
// stored and forwarded as received from the install flow.
type Shop struct {
	Domain      string    `json:"shop_domain" db:"shop_domain"`
	AccessToken string    `json:"-" db:"access_token"`
	Currency    string    `json:"currency" db:"currency"`
	CountryCode string    `json:"country_code" db:"country_code"`
	Timezone    string    `json:"timezone" db:"timezone"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time `json:"updated_at" db:"updated_at"`
}

// SumItems totals the line items.
func SumItems(items []LineItem) decimal.Decimal {
	total := decimal.Zero
	for _, it := range items {
		total = total.Add(it.Subtotal())
	}
	return total
}
