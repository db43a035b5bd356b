package httpapi

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/Andres1439/verify-cod-orders/internal/auth"
	"github.com/Andres1439/verify-cod-orders/internal/calls"
	"github.com/Andres1439/verify-cod-orders/internal/events"
	"github.com/Andres1439/verify-cod-orders/internal/intake"
	"github.com/Andres1439/verify-cod-orders/internal/reporting"
	"github.com/Andres1439/verify-cod-orders/internal/retry"

	"github.com/gin-gonic/gin"
)

// Handlers groups HTTP handlers for dependency injection.
// Keep these thin: parse/validate input, call internal services, return JSON.
type Handlers struct {
	Calls   *calls.Workflow
	Events  *events.Ingestor
	Retry   *retry.Sweep
	Intake  *intake.Service
	Reports *reporting.Service
}

// --- Calls ---

type initiateRequest struct {
	OrderID string `json:"orderId"`
}

func (h Handlers) InitiateCall(c *gin.Context) {
	var req initiateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid json")
		return
	}
	if strings.TrimSpace(req.OrderID) == "" {
		badRequest(c, "orderId required")
		return
	}
	res, err := h.Calls.Initiate(c.Request.Context(), strings.TrimSpace(req.OrderID))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success":           true,
		"call_uuid":         res.CallUUID,
		"order_id":          res.OrderID,
		"phone":             res.Phone,
		"status":            res.Status,
		"conversation_uuid": res.ConversationUUID,
	})
}

func (h Handlers) PendingCalls(c *gin.Context) {
	limit, ok := intQuery(c, "limit", 10)
	if !ok {
		return
	}
	list, err := h.Calls.Pending(c.Request.Context(), limit)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "count": len(list), "orders": list})
}

// --- Retry ---

func (h Handlers) RetryCandidates(c *gin.Context) {
	limit, ok := intQuery(c, "limit", retry.DefaultLimit)
	if !ok {
		return
	}
	hoursAgo, ok := intQuery(c, "hoursAgo", 0)
	if !ok {
		return
	}
	res, err := h.Retry.Candidates(c.Request.Context(), retry.Query{Limit: limit, HoursAgo: hoursAgo})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

type retryActionRequest struct {
	OrderID string       `json:"orderId"`
	Action  retry.Action `json:"action"`
}

func (h Handlers) RetryAction(c *gin.Context) {
	var req retryActionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid json")
		return
	}
	if req.OrderID == "" || req.Action == "" {
		badRequest(c, "orderId and action required")
		return
	}
	actor, _ := auth.Subject(c.Request.Context())
	res, err := h.Retry.Act(c.Request.Context(), req.OrderID, req.Action, actor)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// --- Orders ---

func (h Handlers) CreateOrder(c *gin.Context) {
	var req intake.OrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid json")
		return
	}
	actor, _ := auth.Subject(c.Request.Context())
	o, err := h.Intake.Create(c.Request.Context(), req, actor)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"success":               true,
		"order_id":              o.ID,
		"internal_order_number": o.InternalOrderNumber,
		"customer_phone":        o.CustomerPhone,
		"order_total":           o.Total,
		"currency":              o.Currency,
		"status":                o.Status,
	})
}

// --- Reports ---

func (h Handlers) Confirmations(c *gin.Context) {
	page, ok := intQuery(c, "page", 1)
	if !ok {
		return
	}
	out, err := h.Reports.Confirmations(c.Request.Context(), reporting.ConfirmationsRequest{
		ShopDomain: strings.ToLower(strings.TrimSpace(c.Query("shop"))),
		Page:       page,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

// intQuery reads an optional integer query parameter; it writes 400 and
// returns false when the value is not a number.
func intQuery(c *gin.Context, key string, def int) (int, bool) {
	raw := strings.TrimSpace(c.Query(key))
	if raw == "" {
		return def, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		badRequest(c, key+" must be an integer")
		return 0, false
	}
	return n, true
}
