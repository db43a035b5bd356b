// Package intake turns chatbot order requests into orders awaiting a
// confirmation call.
package intake

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"strings"
	"time"

	"github.com/Andres1439/verify-cod-orders/internal/audit"
	"github.com/Andres1439/verify-cod-orders/internal/commerce"
	"github.com/Andres1439/verify-cod-orders/internal/orders"
	"github.com/Andres1439/verify-cod-orders/internal/phone"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type ItemRequest struct {
	Title    string          `json:"title" validate:"required,max=255"`
	Quantity int             `json:"quantity" validate:"required,min=1,max=1000"`
	Price    decimal.Decimal `json:"price"`
}

// OrderRequest is the body of POST /v1/orders.
type OrderRequest struct {
	ShopDomain        string                 `json:"shop_domain" validate:"required,fqdn"`
	CommerceOrderID   string                 `json:"shopify_order_id,omitempty" validate:"omitempty,numeric"`
	CommerceOrderName string                 `json:"shopify_order_name,omitempty" validate:"omitempty,max=64"`
	CustomerPhone     string                 `json:"customer_phone" validate:"required,min=6,max=32"`
	CustomerName      string                 `json:"customer_name,omitempty" validate:"omitempty,max=255"`
	CustomerEmail     string                 `json:"customer_email,omitempty" validate:"omitempty,email"`
	Items             []ItemRequest          `json:"items" validate:"required,min=1,max=100,dive"`
	ShippingAddress   orders.ShippingAddress `json:"shipping_address"`
}

// ShopInfoSource resolves currency, country and timezone for a shop.
type ShopInfoSource interface {
	ShopInfo(ctx context.Context, shopDomain string) (commerce.ShopInfo, error)
}

type Service struct {
	store    orders.Store
	shops    ShopInfoSource
	audit    *audit.Service
	validate *validator.Validate
	log      *slog.Logger

	Now       func() time.Time
	NewNumber func(now time.Time) string
}

func NewService(store orders.Store, shops ShopInfoSource, auditSvc *audit.Service, validate *validator.Validate, log *slog.Logger) *Service {
	if validate == nil {
		validate = validator.New(validator.WithRequiredStructEnabled())
	}
	if log == nil {
		log = slog.Default()
	}
	return &Service{
		store:     store,
		shops:     shops,
		audit:     auditSvc,
		validate:  validate,
		log:       log.With("component", "intake"),
		Now:       time.Now,
		NewNumber: OrderNumber,
	}
}

// OrderNumber formats ORD-<unix millis>-<3 digits>-<4 hex>.
func OrderNumber(now time.Time) string {
	return fmt.Sprintf("ORD-%d-%03d-%s", now.UnixMilli(), rand.IntN(1000), uuid.NewString()[:4])
}

// Create validates req and stores a PENDING_CALL order. The shop's
// currency, country and timezone are captured now and never refreshed.
func (s *Service) Create(ctx context.Context, req OrderRequest, actor string) (orders.Order, error) {
	req.ShopDomain = strings.ToLower(strings.TrimSpace(req.ShopDomain))
	if err := s.validate.StructCtx(ctx, req); err != nil {
		return orders.Order{}, fmt.Errorf("%w: %s", orders.ErrInvalidInput, describe(err))
	}
	items := make([]orders.LineItem, 0, len(req.Items))
	for i, it := range req.Items {
		if it.Price.IsNegative() {
			return orders.Order{}, fmt.Errorf("%w: items[%d].price must not be negative", orders.ErrInvalidInput, i)
		}
		items = append(items, orders.LineItem{Title: strings.TrimSpace(it.Title), Quantity: it.Quantity, Price: it.Price})
	}

	info, err := s.shops.ShopInfo(ctx, req.ShopDomain)
	if errors.Is(err, orders.ErrNotFound) {
		return orders.Order{}, err
	}
	if err != nil {
		s.log.WarnContext(ctx, "shop info unavailable, using defaults", "shop", req.ShopDomain, "err", err)
		info = commerce.DefaultShopInfo
	}

	country := strings.ToUpper(strings.TrimSpace(req.ShippingAddress.Country))
	if country == "" {
		country = info.CountryCode
	}
	to, err := phone.Format(req.CustomerPhone, country)
	if err != nil {
		return orders.Order{}, fmt.Errorf("%w: customer_phone: %v", orders.ErrInvalidInput, err)
	}

	now := s.Now().UTC()
	o := orders.Order{
		ID:                  uuid.NewString(),
		ShopDomain:          req.ShopDomain,
		InternalOrderNumber: s.NewNumber(now),
		CommerceOrderID:     req.CommerceOrderID,
		CommerceOrderName:   req.CommerceOrderName,
		CustomerPhone:       to,
		CustomerName:        strings.TrimSpace(req.CustomerName),
		CustomerEmail:       strings.TrimSpace(req.CustomerEmail),
		Items:               items,
		Total:               orders.SumItems(items),
		Currency:            info.Currency,
		CountryCode:         info.CountryCode,
		Timezone:            info.Timezone,
		ShippingAddress:     req.ShippingAddress,
		Status:              orders.StatusPendingCall,
		CreatedAt:           now,
		UpdatedAt:           now,
	}
	if err := s.store.Create(ctx, o); err != nil {
		return orders.Order{}, fmt.Errorf("create order: %w", err)
	}
	s.log.InfoContext(ctx, "order created", "order_id", o.ID, "shop", o.ShopDomain, "number", o.InternalOrderNumber)

	if s.audit != nil {
		if err := s.audit.Record(ctx, audit.Event{
			ShopDomain: o.ShopDomain,
			OrderID:    o.ID,
			Type:       audit.EventTypeOrderCreated,
			Actor:      actor,
			Message:    o.InternalOrderNumber,
		}, map[string]any{"total": o.Total.StringFixed(2), "currency": o.Currency, "items": len(o.Items)}); err != nil {
			s.log.WarnContext(ctx, "audit append failed", "order_id", o.ID, "err", err)
		}
	}
	return o, nil
}

// describe flattens validation errors into "field: tag" pairs.
func describe(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}
	parts := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		parts = append(parts, fe.Namespace()+": "+fe.Tag())
	}
	return strings.Join(parts, "; ")
}
