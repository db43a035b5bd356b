package telephony

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
)

// Provider callbacks carry their correlation data in the query string, the
// JSON body, or a form body depending on method and provider version. The
// parsers below accept all three and never fail on a missing field; callers
// decide what is required.

// AnswerRequest is the answer (and fallback) webhook.
type AnswerRequest struct {
	OrderID  string
	CallUUID string
	Fallback bool
}

// DTMFRequest is the input webhook.
type DTMFRequest struct {
	CallUUID string
	OrderID  string
	Digits   string
	TimedOut bool
	// Retry is the flag echoed back from the re-prompt URL. It is advisory.
	Retry bool
}

// Event is a call lifecycle callback.
type Event struct {
	Status           string `json:"status"`
	UUID             string `json:"uuid"`
	ConversationUUID string `json:"conversation_uuid"`
	Timestamp        string `json:"timestamp"`
	Reason           string `json:"reason"`
	Direction        string `json:"direction"`
}

// dtmfField decodes either "1" or {"digits":"1","timed_out":false}.
type dtmfField struct {
	Digits   string
	TimedOut bool
}

func (d *dtmfField) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		d.Digits = s
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err == nil {
		d.Digits = n.String()
		return nil
	}
	var obj struct {
		Digits   string `json:"digits"`
		TimedOut bool   `json:"timed_out"`
	}
	if err := json.Unmarshal(b, &obj); err != nil {
		return err
	}
	d.Digits = obj.Digits
	d.TimedOut = obj.TimedOut
	return nil
}

type answerBody struct {
	OrderID  string `json:"orderId"`
	UUID     string `json:"uuid"`
	CallUUID string `json:"call_uuid"`
}

type dtmfBody struct {
	DTMF     *dtmfField `json:"dtmf"`
	CallUUID string     `json:"call_uuid"`
	UUID     string     `json:"uuid"`
	OrderID  string     `json:"order_id"`
}

func ParseAnswer(r *http.Request) (AnswerRequest, error) {
	q := r.URL.Query()
	out := AnswerRequest{
		OrderID:  strings.TrimSpace(q.Get("orderId")),
		CallUUID: firstNonEmpty(q.Get("uuid"), q.Get("call_uuid")),
		Fallback: q.Get("fallback") == "true",
	}
	if r.Method != http.MethodPost {
		return out, nil
	}
	var body answerBody
	if err := decodeBody(r, &body); err != nil {
		return out, err
	}
	out.OrderID = firstNonEmpty(out.OrderID, body.OrderID)
	out.CallUUID = firstNonEmpty(out.CallUUID, body.UUID, body.CallUUID)
	return out, nil
}

// ParseDTMF returns whatever could be read even when the body is malformed.
func ParseDTMF(r *http.Request) (DTMFRequest, error) {
	q := r.URL.Query()
	out := DTMFRequest{
		CallUUID: strings.TrimSpace(q.Get("call_uuid")),
		OrderID:  strings.TrimSpace(q.Get("order_id")),
		Retry:    q.Get("retry") == "true",
	}
	if r.Method != http.MethodPost {
		out.Digits = strings.TrimSpace(q.Get("dtmf"))
		return out, nil
	}

	var body dtmfBody
	if err := decodeBody(r, &body); err != nil {
		out.Digits = strings.TrimSpace(q.Get("dtmf"))
		return out, err
	}
	if body.DTMF != nil {
		out.Digits = strings.TrimSpace(body.DTMF.Digits)
		out.TimedOut = body.DTMF.TimedOut
	}
	out.CallUUID = firstNonEmpty(out.CallUUID, body.CallUUID, body.UUID)
	out.OrderID = firstNonEmpty(out.OrderID, body.OrderID)
	return out, nil
}

func ParseEvent(r *http.Request) (Event, error) {
	var ev Event
	if err := decodeBody(r, &ev); err != nil {
		return Event{}, err
	}
	ev.Status = strings.ToLower(strings.TrimSpace(ev.Status))
	ev.UUID = strings.TrimSpace(ev.UUID)
	return ev, nil
}

// decodeBody reads JSON, or a form when the provider posts urlencoded.
// An empty body is not an error.
func decodeBody(r *http.Request, dst any) error {
	if r.Body == nil {
		return nil
	}
	ct := r.Header.Get("Content-Type")
	if strings.HasPrefix(ct, "application/x-www-form-urlencoded") {
		if err := r.ParseForm(); err != nil {
			return err
		}
		m := map[string]string{}
		for k := range r.PostForm {
			m[k] = r.PostForm.Get(k)
		}
		b, _ := json.Marshal(m)
		return json.Unmarshal(b, dst)
	}
	err := json.NewDecoder(r.Body).Decode(dst)
	if errors.Is(err, io.EOF) {
		return nil
	}
	return err
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
