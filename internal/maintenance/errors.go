package maintenance

import "fmt"

// InvalidInputError reports a malformed event that makes the whole evaluation unusable
type InvalidInputError struct {
	Record string // human-readable locator, e.g. "event 12" or "line 40"
	Field  string
	Value  string
	Reason string
}

func (e *InvalidInputError) Error() string {
	msg := fmt.Sprintf("invalid input at %s", e.Record)
	if e.Field != "" {
		msg += fmt.Sprintf(": field %s", e.Field)
	}
	if e.Value != "" {
		msg += fmt.Sprintf(" (value %q)", e.Value)
	}
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	return msg
}
