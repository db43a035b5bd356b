package commerce

import "strings"

// Outcome tags written to the commerce order.
const (
	TagConfirmed  = "confirmado-por-llamada"
	TagDeclined   = "cancelado-por-llamada"
	TagNoResponse = "cod-sin-respuesta"
	TagNoAnswer   = "sin-respuesta-llamada"

	NoteConfirmed = "Confirmado por llamada telefónica"
)

// outcomeMarkers match current and legacy call-outcome tags.
var outcomeMarkers = []string{
	"cod-confirmado",
	"cod-cancelado",
	"cod-sin-respuesta",
	"confirmado-por-llamada",
	"cancelado-por-llamada",
	"sin-respuesta-llamada",
}

func isOutcomeTag(tag string) bool {
	for _, m := range outcomeMarkers {
		if strings.Contains(tag, m) {
			return true
		}
	}
	return false
}

// MergeOutcomeTag drops every prior outcome tag and appends tag. changed is
// false when current already is the result, so callers can skip the write.
func MergeOutcomeTag(current []string, tag string) (next []string, changed bool) {
	next = make([]string, 0, len(current)+1)
	for _, t := range current {
		if !isOutcomeTag(t) {
			next = append(next, t)
		}
	}
	next = append(next, tag)

	if len(next) != len(current) {
		return next, true
	}
	for i := range next {
		if next[i] != current[i] {
			return next, true
		}
	}
	return next, false
}
