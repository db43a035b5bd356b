package telephony

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// Gateway is the provider-agnostic voice interface used by the call workflow.
//
// Rules:
// - No provider HTTP calls outside telephony adapters.
// - Keep request/response types provider-agnostic.
type Gateway interface {
	Name() string
	PlaceCall(ctx context.Context, req CallRequest) (CallResult, error)
}

// CallRequest describes one outbound call leg.
type CallRequest struct {
	OrderID string `json:"order_id"`

	// To is the destination in digits-only international form.
	To string `json:"to"`

	AnswerURL   string `json:"answer_url"`
	EventURL    string `json:"event_url"`
	FallbackURL string `json:"fallback_url"`

	RingingTimer time.Duration `json:"ringing_timer"`
	LengthTimer  time.Duration `json:"length_timer"`
}

// CallResult is the provider's acknowledgement of a placed call.
type CallResult struct {
	CallUUID         string `json:"call_uuid"`
	ConversationUUID string `json:"conversation_uuid,omitempty"`
	Status           string `json:"status"`
	Direction        string `json:"direction,omitempty"`
}

// ErrInvalidNumber matches provider rejections caused by an unreachable
// destination. Use errors.Is.
var ErrInvalidNumber = errors.New("telephony: invalid or unallocated number")

var invalidNumberMarkers = []string{"invalid", "unallocated", "not found"}

// ProviderError is a non-2xx or transport failure from the provider.
type ProviderError struct {
	Provider   string
	Op         string
	StatusCode int
	Body       string
	Err        error
}

func (e *ProviderError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("telephony: %s %s: %v", e.Provider, e.Op, e.Err)
	}
	return fmt.Sprintf("telephony: %s %s: status %d: %s", e.Provider, e.Op, e.StatusCode, e.Body)
}

func (e *ProviderError) Unwrap() error { return e.Err }

// Is reports ErrInvalidNumber when a request rejection (400, 404 or 422)
// names the destination as invalid or unallocated.
func (e *ProviderError) Is(target error) bool {
	if target != ErrInvalidNumber {
		return false
	}
	switch e.StatusCode {
	case http.StatusBadRequest, http.StatusNotFound, http.StatusUnprocessableEntity:
	default:
		return false
	}
	body := strings.ToLower(e.Body)
	for _, m := range invalidNumberMarkers {
		if strings.Contains(body, m) {
			return true
		}
	}
	return false
}
