package telephony

import (
	"context"
	"log/slog"
	"time"

	"github.com/Andres1439/verify-cod-orders/internal/metrics"

	"github.com/go-resty/resty/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

type VonageOptions struct {
	BaseURL    string
	FromNumber string
	Timeout    time.Duration
}

// VonageClient places calls through the Voice API.
type VonageClient struct {
	http   *resty.Client
	signer Signer
	from   string
	log    *slog.Logger

	Now func() time.Time
}

func NewVonageClient(opts VonageOptions, signer Signer, log *slog.Logger) *VonageClient {
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}
	if log == nil {
		log = slog.Default()
	}
	client := resty.New().
		SetBaseURL(opts.BaseURL).
		SetTimeout(opts.Timeout).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json")

	return &VonageClient{
		http:   client,
		signer: signer,
		from:   opts.FromNumber,
		log:    log.With("component", "vonage"),
		Now:    time.Now,
	}
}

func (c *VonageClient) Name() string { return "vonage" }

type vonageEndpoint struct {
	Type   string `json:"type"`
	Number string `json:"number"`
}

type vonageCallPayload struct {
	To           []vonageEndpoint `json:"to"`
	From         vonageEndpoint   `json:"from"`
	AnswerURL    []string         `json:"answer_url"`
	EventURL     []string         `json:"event_url"`
	FallbackURL  []string         `json:"fallback_url,omitempty"`
	RingingTimer int              `json:"ringing_timer"`
	LengthTimer  int              `json:"length_timer"`
}

type vonageCallResponse struct {
	UUID             string `json:"uuid"`
	Status           string `json:"status"`
	Direction        string `json:"direction"`
	ConversationUUID string `json:"conversation_uuid"`
}

func (c *VonageClient) PlaceCall(ctx context.Context, req CallRequest) (CallResult, error) {
	ctx, span := otel.Tracer("telephony").Start(ctx, "vonage.create_call")
	defer span.End()
	span.SetAttributes(attribute.String("cod.order_id", req.OrderID))

	token, err := c.signer.Sign(c.Now())
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "sign credential")
		return CallResult{}, &ProviderError{Provider: c.Name(), Op: "sign", Err: err}
	}

	payload := vonageCallPayload{
		To:           []vonageEndpoint{{Type: "phone", Number: req.To}},
		From:         vonageEndpoint{Type: "phone", Number: c.from},
		AnswerURL:    []string{req.AnswerURL},
		EventURL:     []string{req.EventURL},
		RingingTimer: int(req.RingingTimer / time.Second),
		LengthTimer:  int(req.LengthTimer / time.Second),
	}
	if req.FallbackURL != "" {
		payload.FallbackURL = []string{req.FallbackURL}
	}

	start := time.Now()
	var out vonageCallResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetAuthToken(token).
		SetBody(payload).
		SetResult(&out).
		Post("/v1/calls")
	metrics.ObserveProvider(c.Name(), "create_call", start)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "transport")
		return CallResult{}, &ProviderError{Provider: c.Name(), Op: "create_call", Err: err}
	}
	if resp.IsError() {
		perr := &ProviderError{Provider: c.Name(), Op: "create_call", StatusCode: resp.StatusCode(), Body: resp.String()}
		span.SetStatus(codes.Error, perr.Error())
		c.log.WarnContext(ctx, "call rejected", "order_id", req.OrderID, "status_code", perr.StatusCode, "body", perr.Body)
		return CallResult{}, perr
	}

	span.SetAttributes(attribute.String("cod.call_uuid", out.UUID))
	return CallResult{
		CallUUID:         out.UUID,
		ConversationUUID: out.ConversationUUID,
		Status:           out.Status,
		Direction:        out.Direction,
	}, nil
}
