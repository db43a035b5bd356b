package commerce

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/Andres1439/verify-cod-orders/internal/metrics"

	"github.com/go-resty/resty/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// Credentials address one merchant shop.
type Credentials struct {
	Shop        string
	AccessToken string
}

// ShopInfo is the shop-level data captured on each order at intake.
type ShopInfo struct {
	Currency    string `json:"currency"`
	CountryCode string `json:"country_code"`
	Timezone    string `json:"timezone"`
}

// DefaultShopInfo is returned when the backend cannot be reached.
var DefaultShopInfo = ShopInfo{Currency: "USD", CountryCode: "PE", Timezone: "America/Lima"}

// APIError is a failed Admin API call: a non-2xx status, GraphQL errors, or
// mutation userErrors.
type APIError struct {
	Op         string
	StatusCode int
	Messages   []string
}

func (e *APIError) Error() string {
	if e.StatusCode != 0 && len(e.Messages) == 0 {
		return fmt.Sprintf("commerce: %s: status %d", e.Op, e.StatusCode)
	}
	return fmt.Sprintf("commerce: %s: %s", e.Op, strings.Join(e.Messages, "; "))
}

type ShopifyOptions struct {
	APIVersion string
	// Scheme is https except against local fakes.
	Scheme  string
	Timeout time.Duration
}

// ShopifyClient talks to the Admin API of any shop it is given credentials for.
type ShopifyClient struct {
	http    *resty.Client
	version string
	scheme  string
	log     *slog.Logger
}

func NewShopifyClient(opts ShopifyOptions, log *slog.Logger) *ShopifyClient {
	if opts.APIVersion == "" {
		opts.APIVersion = "2025-04"
	}
	if opts.Scheme == "" {
		opts.Scheme = "https"
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}
	if log == nil {
		log = slog.Default()
	}
	return &ShopifyClient{
		http:    resty.New().SetTimeout(opts.Timeout).SetHeader("Accept", "application/json"),
		version: opts.APIVersion,
		scheme:  opts.Scheme,
		log:     log.With("component", "shopify"),
	}
}

func (c *ShopifyClient) adminURL(shop, path string) string {
	return fmt.Sprintf("%s://%s/admin/api/%s/%s", c.scheme, shop, c.version, path)
}

// OrderGID builds the GraphQL id of a numeric order id.
func OrderGID(orderID string) string {
	if strings.HasPrefix(orderID, "gid://") {
		return orderID
	}
	return "gid://shopify/Order/" + orderID
}

type gqlRequest struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables,omitempty"`
}

type gqlError struct {
	Message string `json:"message"`
}

type gqlResponse struct {
	Data   json.RawMessage `json:"data"`
	Errors []gqlError      `json:"errors"`
}

type userError struct {
	Field   []string `json:"field"`
	Message string   `json:"message"`
}

func (c *ShopifyClient) graphQL(ctx context.Context, cred Credentials, op, query string, vars map[string]any, out any) error {
	ctx, span := otel.Tracer("commerce").Start(ctx, "shopify."+op)
	defer span.End()
	span.SetAttributes(attribute.String("cod.shop", cred.Shop))

	start := time.Now()
	var env gqlResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetHeader("X-Shopify-Access-Token", cred.AccessToken).
		SetBody(gqlRequest{Query: query, Variables: vars}).
		SetResult(&env).
		Post(c.adminURL(cred.Shop, "graphql.json"))
	metrics.ObserveProvider("shopify", op, start)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "transport")
		return fmt.Errorf("commerce: %s: %w", op, err)
	}
	if resp.IsError() {
		span.SetStatus(codes.Error, resp.Status())
		return &APIError{Op: op, StatusCode: resp.StatusCode()}
	}
	if len(env.Errors) > 0 {
		msgs := make([]string, 0, len(env.Errors))
		for _, e := range env.Errors {
			msgs = append(msgs, e.Message)
		}
		span.SetStatus(codes.Error, "graphql errors")
		return &APIError{Op: op, Messages: msgs}
	}
	if out == nil || len(env.Data) == 0 {
		return nil
	}
	return json.Unmarshal(env.Data, out)
}

const orderTagsQuery = `query GetOrder($id: ID!) {
  order(id: $id) {
    id
    tags
  }
}`

const orderUpdateMutation = `mutation OrderUpdate($input: OrderInput!) {
  orderUpdate(input: $input) {
    order {
      id
    }
    userErrors {
      field
      message
    }
  }
}`

// ErrOrderNotFound means the shop has no order with the given id.
var ErrOrderNotFound = errors.New("commerce: order not found")

func (c *ShopifyClient) OrderTags(ctx context.Context, cred Credentials, orderID string) ([]string, error) {
	var out struct {
		Order *struct {
			Tags []string `json:"tags"`
		} `json:"order"`
	}
	if err := c.graphQL(ctx, cred, "get_order", orderTagsQuery, map[string]any{"id": OrderGID(orderID)}, &out); err != nil {
		return nil, err
	}
	if out.Order == nil {
		return nil, ErrOrderNotFound
	}
	return out.Order.Tags, nil
}

func (c *ShopifyClient) updateOrder(ctx context.Context, cred Credentials, op string, input map[string]any) error {
	var out struct {
		OrderUpdate struct {
			UserErrors []userError `json:"userErrors"`
		} `json:"orderUpdate"`
	}
	if err := c.graphQL(ctx, cred, op, orderUpdateMutation, map[string]any{"input": input}, &out); err != nil {
		return err
	}
	if ue := out.OrderUpdate.UserErrors; len(ue) > 0 {
		msgs := make([]string, 0, len(ue))
		for _, e := range ue {
			msgs = append(msgs, e.Message)
		}
		return &APIError{Op: op, Messages: msgs}
	}
	return nil
}

// UpdateOrderTag replaces any previous call-outcome tag with tag. The write
// is skipped when the order already carries exactly that outcome, so
// replays do not touch the order.
func (c *ShopifyClient) UpdateOrderTag(ctx context.Context, cred Credentials, orderID, tag string) (bool, error) {
	current, err := c.OrderTags(ctx, cred, orderID)
	if err != nil {
		return false, err
	}
	next, changed := MergeOutcomeTag(current, tag)
	if !changed {
		c.log.DebugContext(ctx, "order tags unchanged", "shop", cred.Shop, "order", orderID, "tag", tag)
		return false, nil
	}
	if err := c.updateOrder(ctx, cred, "update_tags", map[string]any{"id": OrderGID(orderID), "tags": next}); err != nil {
		return false, err
	}
	c.log.InfoContext(ctx, "order tags updated", "shop", cred.Shop, "order", orderID, "tag", tag, "removed", len(current)+1-len(next))
	return true, nil
}

func (c *ShopifyClient) UpdateOrderNote(ctx context.Context, cred Credentials, orderID, note string) error {
	return c.updateOrder(ctx, cred, "update_note", map[string]any{"id": OrderGID(orderID), "note": note})
}

const shopInfoQuery = `query {
  shop {
    currencyCode
    ianaTimezone
    billingAddress {
      countryCodeV2
    }
  }
}`

// GetShopInfo tries GraphQL, then the REST shop resource. When both fail it
// returns DefaultShopInfo together with the last error.
func (c *ShopifyClient) GetShopInfo(ctx context.Context, cred Credentials) (ShopInfo, error) {
	info, err := c.shopInfoGraphQL(ctx, cred)
	if err == nil {
		return info, nil
	}
	c.log.WarnContext(ctx, "shop info via graphql failed", "shop", cred.Shop, "err", err)

	info, err = c.shopInfoREST(ctx, cred)
	if err == nil {
		return info, nil
	}
	c.log.WarnContext(ctx, "shop info via rest failed, using defaults", "shop", cred.Shop, "err", err)
	return DefaultShopInfo, err
}

func (c *ShopifyClient) shopInfoGraphQL(ctx context.Context, cred Credentials) (ShopInfo, error) {
	var out struct {
		Shop struct {
			CurrencyCode   string `json:"currencyCode"`
			IanaTimezone   string `json:"ianaTimezone"`
			BillingAddress struct {
				CountryCodeV2 string `json:"countryCodeV2"`
			} `json:"billingAddress"`
		} `json:"shop"`
	}
	if err := c.graphQL(ctx, cred, "shop_info", shopInfoQuery, nil, &out); err != nil {
		return ShopInfo{}, err
	}
	return withDefaults(ShopInfo{
		Currency:    out.Shop.CurrencyCode,
		CountryCode: out.Shop.BillingAddress.CountryCodeV2,
		Timezone:    out.Shop.IanaTimezone,
	}), nil
}

func (c *ShopifyClient) shopInfoREST(ctx context.Context, cred Credentials) (ShopInfo, error) {
	start := time.Now()
	var out struct {
		Shop struct {
			Currency     string `json:"currency"`
			CountryCode  string `json:"country_code"`
			IanaTimezone string `json:"iana_timezone"`
		} `json:"shop"`
	}
	resp, err := c.http.R().
		SetContext(ctx).
		SetHeader("X-Shopify-Access-Token", cred.AccessToken).
		SetResult(&out).
		Get(c.adminURL(cred.Shop, "shop.json"))
	metrics.ObserveProvider("shopify", "shop_info_rest", start)
	if err != nil {
		return ShopInfo{}, fmt.Errorf("commerce: shop_info_rest: %w", err)
	}
	if resp.IsError() {
		return ShopInfo{}, &APIError{Op: "shop_info_rest", StatusCode: resp.StatusCode()}
	}
	return withDefaults(ShopInfo{
		Currency:    out.Shop.Currency,
		CountryCode: out.Shop.CountryCode,
		Timezone:    out.Shop.IanaTimezone,
	}), nil
}

func withDefaults(in ShopInfo) ShopInfo {
	if in.Currency == "" {
		in.Currency = DefaultShopInfo.Currency
	}
	if in.CountryCode == "" {
		in.CountryCode = DefaultShopInfo.CountryCode
	}
	if in.Timezone == "" {
		in.Timezone = DefaultShopInfo.Timezone
	}
	return in
}
