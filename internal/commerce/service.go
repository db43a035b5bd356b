package commerce

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/Andres1439/verify-cod-orders/internal/orders"
)

// ErrNoCommerceOrder means the order was never created in the commerce
// backend, so there is nothing to tag.
var ErrNoCommerceOrder = errors.New("commerce: order has no commerce id")

// Service resolves shop credentials from the shop store and applies
// call outcomes to commerce orders.
type Service struct {
	client *ShopifyClient
	shops  orders.ShopStore
	cache  ShopInfoCache
	ttl    time.Duration
	log    *slog.Logger
}

func NewService(client *ShopifyClient, shops orders.ShopStore, cache ShopInfoCache, ttl time.Duration, log *slog.Logger) *Service {
	if cache == nil {
		cache = NewMemoryShopInfoCache()
	}
	if ttl <= 0 {
		ttl = time.Hour
	}
	if log == nil {
		log = slog.Default()
	}
	return &Service{client: client, shops: shops, cache: cache, ttl: ttl, log: log.With("component", "commerce")}
}

func (s *Service) credentials(ctx context.Context, shopDomain string) (Credentials, error) {
	sh, err := s.shops.GetShop(ctx, shopDomain)
	if err != nil {
		return Credentials{}, fmt.Errorf("resolve shop %s: %w", shopDomain, err)
	}
	if sh.AccessToken == "" {
		return Credentials{}, fmt.Errorf("shop %s has no access token: %w", shopDomain, orders.ErrNotFound)
	}
	return Credentials{Shop: sh.Domain, AccessToken: sh.AccessToken}, nil
}

// TagOrder sets the call-outcome tag on the order's commerce counterpart.
func (s *Service) TagOrder(ctx context.Context, o orders.Order, tag string) error {
	if o.CommerceOrderID == "" {
		return ErrNoCommerceOrder
	}
	cred, err := s.credentials(ctx, o.ShopDomain)
	if err != nil {
		return err
	}
	_, err = s.client.UpdateOrderTag(ctx, cred, o.CommerceOrderID, tag)
	return err
}

func (s *Service) NoteOrder(ctx context.Context, o orders.Order, note string) error {
	if o.CommerceOrderID == "" {
		return ErrNoCommerceOrder
	}
	cred, err := s.credentials(ctx, o.ShopDomain)
	if err != nil {
		return err
	}
	return s.client.UpdateOrderNote(ctx, cred, o.CommerceOrderID, note)
}

// ShopInfo returns cached shop info, fetching it on a miss. Fallback values
// from a failed fetch are returned but not cached.
func (s *Service) ShopInfo(ctx context.Context, shopDomain string) (ShopInfo, error) {
	if info, ok, err := s.cache.Get(ctx, shopDomain); err != nil {
		s.log.WarnContext(ctx, "shop info cache read failed", "shop", shopDomain, "err", err)
	} else if ok {
		return info, nil
	}

	cred, err := s.credentials(ctx, shopDomain)
	if err != nil {
		return ShopInfo{}, err
	}
	info, err := s.client.GetShopInfo(ctx, cred)
	if err != nil {
		return info, nil
	}
	if err := s.cache.Set(ctx, shopDomain, info, s.ttl); err != nil {
		s.log.WarnContext(ctx, "shop info cache write failed", "shop", shopDomain, "err", err)
	}
	return info, nil
}
