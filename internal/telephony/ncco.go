package telephony

// NCCO is the ordered list of call-control actions returned to the voice
// provider from answer and input webhooks.
type NCCO []Action

// Action is one NCCO step. Only talk and input are used here.
type Action struct {
	Action   string   `json:"action"`
	Text     string   `json:"text,omitempty"`
	Language string   `json:"language,omitempty"`
	Style    *int     `json:"style,omitempty"`
	BargeIn  *bool    `json:"bargeIn,omitempty"`
	EventURL []string `json:"eventUrl,omitempty"`
	TimeOut  int      `json:"timeOut,omitempty"`
	MaxDigit int      `json:"maxDigits,omitempty"`
}

const (
	ActionTalk  = "talk"
	ActionInput = "input"

	// Language of every synthesized prompt.
	Language = "es-ES"

	InputTimeoutSeconds = 5
)

// Talk speaks text and lets the callee interrupt with a keypress.
func Talk(text string) Action {
	return Action{Action: ActionTalk, Text: text, Language: Language}
}

// FinalTalk speaks text with the default voice style and no barge-in; the
// call ends after it.
func FinalTalk(text string) Action {
	style := 0
	bargeIn := false
	return Action{Action: ActionTalk, Text: text, Language: Language, Style: &style, BargeIn: &bargeIn}
}

// Input collects a single digit and posts it to eventURL.
func Input(eventURL string) Action {
	return Action{
		Action:   ActionInput,
		EventURL: []string{eventURL},
		TimeOut:  InputTimeoutSeconds,
		MaxDigit: 1,
	}
}

// CollectsInput reports whether the script waits for a keypress.
func (n NCCO) CollectsInput() bool {
	for _, a := range n {
		if a.Action == ActionInput {
			return true
		}
	}
	return false
}
