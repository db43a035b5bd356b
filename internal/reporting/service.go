package reporting

import (
	"context"
	"errors"

	"github.com/Andres1439/verify-cod-orders/internal/orders"
)

var ErrInvalidRequest = errors.New("reporting: invalid request")

// Repository abstracts data access for reporting.
//
// IMPORTANT:
// - Methods must filter by shop.
// - orders.MemoryRepo and orders.PostgresStore both satisfy it.
type Repository interface {
	CountByStatus(ctx context.Context, shopDomain string) (orders.StatusCounts, error)
	ListRecent(ctx context.Context, shopDomain string, limit, offset int) ([]orders.Order, error)
}

type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service { return &Service{repo: repo} }

func (s *Service) Confirmations(ctx context.Context, req ConfirmationsRequest) (ConfirmationsReport, error) {
	if req.ShopDomain == "" {
		return ConfirmationsReport{}, ErrInvalidRequest
	}
	if s.repo == nil {
		return ConfirmationsReport{}, errors.New("reporting: repository not configured")
	}
	if req.Page < 1 {
		req.Page = 1
	}

	counts, err := s.repo.CountByStatus(ctx, req.ShopDomain)
	if err != nil {
		return ConfirmationsReport{}, err
	}
	rows, err := s.repo.ListRecent(ctx, req.ShopDomain, PageSize, (req.Page-1)*PageSize)
	if err != nil {
		return ConfirmationsReport{}, err
	}

	out := ConfirmationsReport{
		Summary:  summarize(req.ShopDomain, counts),
		Page:     req.Page,
		PageSize: PageSize,
		Recent:   make([]RecentCall, 0, len(rows)),
	}
	for _, o := range rows {
		out.Recent = append(out.Recent, RecentCall{
			OrderID:             o.ID,
			InternalOrderNumber: o.InternalOrderNumber,
			CustomerName:        o.CustomerName,
			CustomerPhone:       o.CustomerPhone,
			Total:               o.Total,
			Currency:            o.Currency,
			Status:              o.Status,
			CallStatus:          o.CallStatus,
			DTMFResponse:        o.DTMFResponse,
			CallAttempts:        o.CallAttempts,
			CreatedAt:           o.CreatedAt,
			CallStartedAt:       o.CallStartedAt,
		})
	}
	return out, nil
}

func summarize(shop string, counts orders.StatusCounts) ConfirmationSummary {
	out := ConfirmationSummary{
		ShopDomain:  shop,
		PendingCall: counts[orders.StatusPendingCall],
		Confirmed:   counts[orders.StatusConfirmed],
		Declined:    counts[orders.StatusDeclined],
		NoAnswer:    counts[orders.StatusNoAnswer],
		Expired:     counts[orders.StatusExpired],
	}
	for _, n := range counts {
		out.TotalOrders += n
	}

	decided := out.Confirmed + out.Declined
	if decided > 0 {
		out.ConfirmationRate = float64(out.Confirmed) / float64(decided)
	}
	if left := out.TotalOrders - out.PendingCall; left > 0 {
		out.ReachRate = float64(decided) / float64(left)
	}
	return out
}
