package calls

import (
	"strings"

	"github.com/Andres1439/verify-cod-orders/internal/orders"
	"github.com/Andres1439/verify-cod-orders/internal/telephony"

	"github.com/shopspring/decimal"
)

// Prompts. The voice is Spanish for every shop.
const (
	textFallback   = "Lo sentimos, hubo un problema técnico. Te contactaremos nuevamente para confirmar tu pedido."
	textAnswerErr  = "Hola, confirma tu pedido. Presiona 1 para SI, 2 para NO."
	textConfirmed  = "Perfecto, tu pedido ha sido confirmado. Gracias por tu compra."
	textDeclined   = "Entendido, tu pedido ha sido cancelado. No se realizará ningún cargo. Gracias."
	textReprompt   = "Opción no válida. Por favor, presiona 1 para confirmar tu pedido o 2 para cancelarlo."
	textNoResponse = "No pudimos procesar tu respuesta. Te puedes contactar nuevamente para solucionarlo."
	textThanks     = "Gracias por tu respuesta."

	defaultCustomerName = "Cliente"
)

// testOrder stands in for ids that are not order uuids, so the provider's
// application can be exercised without touching the store.
func testOrder(token string) orders.Order {
	return orders.Order{
		ID:           token,
		CustomerName: "Cliente Test",
		Total:        decimal.RequireFromString("299.99"),
		Currency:     "PEN",
		Status:       orders.StatusPendingCall,
	}
}

// Greeting builds the confirmation prompt for o.
func Greeting(o orders.Order) string {
	var b strings.Builder

	name := strings.TrimSpace(o.CustomerName)
	if name == "" {
		name = defaultCustomerName
	}
	b.WriteString("Hola ")
	b.WriteString(name)

	if titles := o.ProductTitles(); len(titles) > 0 {
		b.WriteString(", tienes un pedido de ")
		b.WriteString(joinSpanish(titles))
	} else {
		b.WriteString(", tienes un pedido pendiente")
	}

	if o.Total.IsPositive() {
		b.WriteString(" por ")
		b.WriteString(o.Total.StringFixed(2))
		if o.Currency != "" {
			b.WriteString(" ")
			b.WriteString(o.Currency)
		}
	}

	if line := o.ShippingAddress.DeliveryLine(); line != "" {
		b.WriteString(" para entregar en ")
		b.WriteString(line)
	}

	b.WriteString(". Para confirmar presiona 1, para cancelar presiona 2.")
	return b.String()
}

// joinSpanish renders a list as "a", "a y b" or "a, b y c".
func joinSpanish(items []string) string {
	switch len(items) {
	case 0:
		return ""
	case 1:
		return items[0]
	}
	return strings.Join(items[:len(items)-1], ", ") + " y " + items[len(items)-1]
}

func answerScript(o orders.Order, dtmfURL string) telephony.NCCO {
	return telephony.NCCO{telephony.Talk(Greeting(o)), telephony.Input(dtmfURL)}
}

func fallbackScript() telephony.NCCO {
	return telephony.NCCO{telephony.FinalTalk(textFallback)}
}

func answerErrorScript() telephony.NCCO {
	return telephony.NCCO{telephony.Talk(textAnswerErr)}
}

func thanksScript() telephony.NCCO {
	return telephony.NCCO{telephony.FinalTalk(textThanks)}
}

func repromptScript(dtmfURL string) telephony.NCCO {
	return telephony.NCCO{telephony.Talk(textReprompt), telephony.Input(dtmfURL)}
}

// outcomeScript is the terminal script for a decided outcome. Reprompt is
// not terminal and is built with repromptScript.
func outcomeScript(out Outcome) telephony.NCCO {
	switch out {
	case OutcomeConfirmed:
		return telephony.NCCO{telephony.FinalTalk(textConfirmed)}
	case OutcomeDeclined:
		return telephony.NCCO{telephony.FinalTalk(textDeclined)}
	case OutcomeNoResponse:
		return telephony.NCCO{telephony.FinalTalk(textNoResponse)}
	}
	return thanksScript()
}
