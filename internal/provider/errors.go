package provider

import (
	"errors"
	"fmt"
)

// ErrParsing is wrapped by every ParsingError.
var ErrParsing = errors.New("parsing error")

// ParsingError reports a notification that cannot be classified or is
// missing mandatory data. It is fatal for the message.
type ParsingError struct {
	Provider string
	// Field names the missing or malformed field, empty when the message as
	// a whole was not understood.
	Field  string
	Reason string
	Err    error
}

func (e *ParsingError) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Provider, e.Reason)
	if e.Field != "" {
		msg = fmt.Sprintf("%s: %s: %s", e.Provider, e.Field, e.Reason)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ParsingError) Unwrap() []error {
	if e.Err != nil {
		return []error{ErrParsing, e.Err}
	}
	return []error{ErrParsing}
}

// IsParsingError reports whether err (or any error in its chain) is a
// ParsingError.
func IsParsingError(err error) bool {
	var pe *ParsingError
	return errors.As(err, &pe)
}

// Missing reports an absent mandatory field.
func Missing(provider, field string) error {
	return &ParsingError{Provider: provider, Field: field, Reason: "missing"}
}

// Invalid reports a field that is present but malformed.
func Invalid(provider, field string, err error) error {
	return &ParsingError{Provider: provider, Field: field, Reason: "invalid", Err: err}
}

// Unclassified reports a message that matches none of the provider's known
// notification kinds.
func Unclassified(provider, subject string) error {
	return &ParsingError{Provider: provider, Reason: fmt.Sprintf("unrecognized notification %q", subject)}
}
