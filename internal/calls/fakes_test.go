package calls

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/Andres1439/verify-cod-orders/internal/audit"
	"github.com/Andres1439/verify-cod-orders/internal/orders"
	"github.com/Andres1439/verify-cod-orders/internal/ratelimit"
	"github.com/Andres1439/verify-cod-orders/internal/telephony"
	"github.com/Andres1439/verify-cod-orders/pkg/logger"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

const testOrderID = "3f2b8c1e-9a4d-4e7f-8b21-6c5d4e3f2a10"

var testNow = time.Date(2026, 3, 10, 15, 0, 0, 0, time.UTC)

type fakeGateway struct {
	mu   sync.Mutex
	reqs []telephony.CallRequest
	res  telephony.CallResult
	err  error
}

func (g *fakeGateway) Name() string { return "fake" }

func (g *fakeGateway) PlaceCall(ctx context.Context, req telephony.CallRequest) (telephony.CallResult, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.reqs = append(g.reqs, req)
	return g.res, g.err
}

func (g *fakeGateway) calls() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.reqs)
}

type fakeCommerce struct {
	mu    sync.Mutex
	tags  []string
	notes []string
}

func (c *fakeCommerce) TagOrder(ctx context.Context, o orders.Order, tag string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.tags = append(c.tags, tag)
	return nil
}

func (c *fakeCommerce) NoteOrder(ctx context.Context, o orders.Order, note string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.notes = append(c.notes, note)
	return nil
}

func (c *fakeCommerce) snapshot() (tags, notes []string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.tags...), append([]string(nil), c.notes...)
}

type harness struct {
	wf       *Workflow
	store    *orders.MemoryRepo
	gateway  *fakeGateway
	commerce *fakeCommerce
	locker   *ratelimit.MemoryLocker
	audit    *audit.MemoryRepo
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		store:    orders.NewMemoryRepo(),
		gateway:  &fakeGateway{res: telephony.CallResult{CallUUID: "call-1", ConversationUUID: "conv-1", Status: "started"}},
		commerce: &fakeCommerce{},
		locker:   ratelimit.NewMemoryLocker(),
		audit:    audit.NewMemoryRepo(),
	}
	h.wf = NewWorkflow(Deps{
		Store:    h.store,
		Gateway:  h.gateway,
		Commerce: h.commerce,
		Locker:   h.locker,
		Audit:    audit.NewService(h.audit),
		Log:      logger.Discard(),
	}, Options{PublicURL: "https://cod.example.com"})
	h.wf.Now = func() time.Time { return testNow }
	return h
}

func sampleOrder() orders.Order {
	return orders.Order{
		ID:                  testOrderID,
		ShopDomain:          "tienda.myshopify.com",
		InternalOrderNumber: "ORD-1741600000000-123-abcd",
		CommerceOrderID:     "5551234",
		CustomerPhone:       "987 654 321",
		CustomerName:        "María",
		Items: []orders.LineItem{
			{Title: "Zapatillas", Quantity: 1, Price: decimal.RequireFromString("150.00")},
			{Title: "Medias", Quantity: 2, Price: decimal.RequireFromString("10.50")},
		},
		Total:           decimal.RequireFromString("171.00"),
		Currency:        "PEN",
		CountryCode:     "PE",
		Timezone:        "America/Lima",
		ShippingAddress: orders.ShippingAddress{Address1: "Av. Arequipa 123", City: "Lima", Province: "Lima"},
		Status:          orders.StatusPendingCall,
		CreatedAt:       testNow.Add(-time.Hour),
		UpdatedAt:       testNow.Add(-time.Hour),
	}
}

func (h *harness) seed(t *testing.T, o orders.Order) {
	t.Helper()
	require.NoError(t, h.store.Create(context.Background(), o))
}

func (h *harness) get(t *testing.T, id string) orders.Order {
	t.Helper()
	o, err := h.store.Get(context.Background(), id)
	require.NoError(t, err)
	return o
}
