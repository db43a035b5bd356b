package httpapi

import (
	"errors"
	"net/http"

	"github.com/Andres1439/verify-cod-orders/internal/events"
	"github.com/Andres1439/verify-cod-orders/internal/telephony"
	"github.com/Andres1439/verify-cod-orders/pkg/logger"

	"github.com/gin-gonic/gin"
)

// Provider webhooks always answer 200: the voice provider treats anything
// else as a dead application and hangs up.

func (h Handlers) VonageAnswer(c *gin.Context) {
	req, err := telephony.ParseAnswer(c.Request)
	if err != nil {
		logger.FromGin(c).WarnContext(c.Request.Context(), "answer: unreadable body", "err", err)
	}
	writeNCCO(c, h.Calls.Answer(c.Request.Context(), req))
}

func (h Handlers) VonageDTMF(c *gin.Context) {
	req, err := telephony.ParseDTMF(c.Request)
	if err != nil {
		logger.FromGin(c).WarnContext(c.Request.Context(), "dtmf: unreadable body", "err", err, "call_uuid", req.CallUUID)
	}
	writeNCCO(c, h.Calls.DTMF(c.Request.Context(), req))
}

func (h Handlers) VonageEvents(c *gin.Context) {
	log := logger.FromGin(c)

	ev, err := telephony.ParseEvent(c.Request)
	if err != nil {
		log.WarnContext(c.Request.Context(), "events: unreadable body", "err", err)
		c.JSON(http.StatusOK, gin.H{"message": events.MessageReceived})
		return
	}

	res, err := h.Events.Ingest(c.Request.Context(), ev)
	switch {
	case err == nil:
		c.JSON(http.StatusOK, res)
	case errors.Is(err, events.ErrMissingData), errors.Is(err, events.ErrUnknownStatus):
		c.JSON(http.StatusOK, gin.H{"message": res.Message, "status": ev.Status})
	default:
		log.ErrorContext(c.Request.Context(), "events: ingest failed", "err", err, "call_uuid", ev.UUID)
		c.JSON(http.StatusOK, gin.H{"message": events.MessageReceived})
	}
}

func writeNCCO(c *gin.Context, ncco telephony.NCCO) {
	logger.FromGin(c).DebugContext(c.Request.Context(), "ncco", "actions", len(ncco), "collects_input", ncco.CollectsInput())
	c.Header("Cache-Control", "no-cache")
	c.JSON(http.StatusOK, ncco)
}
