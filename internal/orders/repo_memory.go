package orders

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// MemoryRepo is an in-memory Store and ShopStore useful for tests.
// It is not intended for production use.
type MemoryRepo struct {
	mu     sync.Mutex
	orders map[string]Order
	shops  map[string]Shop
}

func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{orders: map[string]Order{}, shops: map[string]Shop{}}
}

func (r *MemoryRepo) Create(ctx context.Context, o Order) error {
	if o.ID == "" {
		return ErrInvalidInput
	}
	if err := o.State().Validate(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.orders[o.ID]; exists {
		return fmt.Errorf("%w: order %s already exists", ErrConflict, o.ID)
	}
	r.orders[o.ID] = cloneOrder(o)
	return nil
}

func (r *MemoryRepo) Get(ctx context.Context, id string) (Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.orders[id]
	if !ok {
		return Order{}, ErrNotFound
	}
	return cloneOrder(o), nil
}

func (r *MemoryRepo) GetByCallUUID(ctx context.Context, callUUID string) (Order, error) {
	if callUUID == "" {
		return Order{}, ErrNotFound
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, o := range r.orders {
		if o.CallUUID == callUUID {
			return cloneOrder(o), nil
		}
	}
	return Order{}, ErrNotFound
}

func (r *MemoryRepo) Apply(ctx context.Context, id string, t Transition, ch Changes) (Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.orders[id]
	if !ok {
		return Order{}, ErrNotFound
	}
	if !guardMatches(o, t, ch) {
		return Order{}, fmt.Errorf("%w: %s not allowed from %s", ErrConflict, t.Name, o.State())
	}
	r.orders[id] = applyTo(o, t, ch)
	return cloneOrder(r.orders[id]), nil
}

func (r *MemoryRepo) ApplyByCallUUID(ctx context.Context, callUUID string, t Transition, ch Changes) (int64, error) {
	if callUUID == "" {
		return 0, nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for id, o := range r.orders {
		if o.CallUUID != callUUID || !guardMatches(o, t, ch) {
			continue
		}
		r.orders[id] = applyTo(o, t, ch)
		n++
	}
	return n, nil
}

func (r *MemoryRepo) ListPending(ctx context.Context, limit int) ([]Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Order
	for _, o := range r.orders {
		if o.Status == StatusPendingCall && !o.CallStatus.Failed() {
			out = append(out, cloneOrder(o))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return truncate(out, limit), nil
}

func (r *MemoryRepo) ListStale(ctx context.Context, q StaleQuery) ([]Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Order
	for _, o := range r.orders {
		if !containsCallStatus(q.CallStatuses, o.CallStatus) || containsStatus(q.ExcludeStatuses, o.Status) {
			continue
		}
		if !o.UpdatedAt.Before(q.UpdatedBefore) || o.CreatedAt.Before(q.CreatedAfter) {
			continue
		}
		out = append(out, cloneOrder(o))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UpdatedAt.Before(out[j].UpdatedAt) })
	return truncate(out, q.Limit), nil
}

// CountByStatus tallies the shop's orders by status.
func (r *MemoryRepo) CountByStatus(ctx context.Context, shopDomain string) (StatusCounts, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := StatusCounts{}
	for _, o := range r.orders {
		if o.ShopDomain == shopDomain {
			out[o.Status]++
		}
	}
	return out, nil
}

// ListRecent returns the shop's orders, newest first.
func (r *MemoryRepo) ListRecent(ctx context.Context, shopDomain string, limit, offset int) ([]Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Order
	for _, o := range r.orders {
		if o.ShopDomain == shopDomain {
			out = append(out, cloneOrder(o))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if offset >= len(out) {
		return nil, nil
	}
	return truncate(out[offset:], limit), nil
}

func (r *MemoryRepo) GetShop(ctx context.Context, domain string) (Shop, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.shops[domain]
	if !ok {
		return Shop{}, ErrNotFound
	}
	return s, nil
}

func (r *MemoryRepo) UpsertShop(ctx context.Context, s Shop) error {
	if s.Domain == "" {
		return ErrInvalidInput
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.shops[s.Domain] = s
	return nil
}

func guardMatches(o Order, t Transition, ch Changes) bool {
	if !t.Allows(o.State()) {
		return false
	}
	if ch.IfRetryCount != nil && o.RetryCount != *ch.IfRetryCount {
		return false
	}
	return true
}

func applyTo(o Order, t Transition, ch Changes) Order {
	next := t.Target(o.State())
	o.Status = next.Status
	o.CallStatus = next.CallStatus
	ch.apply(&o)
	return o
}

func cloneOrder(o Order) Order {
	if o.Items != nil {
		items := make([]LineItem, len(o.Items))
		copy(items, o.Items)
		o.Items = items
	}
	return o
}

func truncate(in []Order, limit int) []Order {
	if limit > 0 && len(in) > limit {
		return in[:limit]
	}
	return in
}

func containsStatus(list []Status, s Status) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func containsCallStatus(list []CallStatus, s CallStatus) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
