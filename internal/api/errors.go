package api

import (
	"errors"
	"fmt"
	"regexp"
)

// Error is an error object returned by the server in place of a result.
type Error struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Field   string         `json:"field,omitempty"`
	Details map[string]any `json:"details,omitempty"`
}

func (e *Error) Error() string {
	return fmt.Sprintf("api error %s: %s", e.Code, e.Message)
}

// IsRetryable returns true if the error is transient.
func (e *Error) IsRetryable() bool {
	switch e.Code {
	case "RateLimit", "ServiceUnavailable", "InternalServerError", "WrongResponse":
		return true
	}
	return false
}

// AsError extracts an *Error from err.
func AsError(err error) (*Error, bool) {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr, true
	}
	return nil, false
}

// FieldError is a server validation error attributed to a form field.
type FieldError struct {
	Field   string `json:"field,omitempty"` // "amount", "duration", "barrier", "symbol" or ""
	Message string `json:"message"`
}

// codeMessages are user-facing messages for codes whose server text is not
// meant for end users.
var codeMessages = map[string]FieldError{
	"InvalidSymbol":         {Field: "symbol", Message: "This symbol is not available."},
	"MarketIsClosed":        {Message: "This market is presently closed."},
	"RateLimit":             {Message: "You have reached the rate limit of requests per second. Please try later."},
	"InvalidToken":          {Message: "Your session has expired. Please log in again."},
	"AuthorizationRequired": {Message: "Please log in to continue."},
	"InsufficientBalance":   {Field: "amount", Message: "Your account balance is insufficient for this trade."},
	"InvalidOfferings":      {Message: "Trading is not offered for this contract type."},
	"InvalidtoBuy":          {Message: "This contract cannot be purchased with the chosen parameters."},
}

// defaultMessages apply only when the server sent no text of its own; the
// server text usually names the limit that was broken.
var defaultMessages = map[string]string{
	"ContractBuyValidationError": "Please check the contract parameters and try again.",
	"InputValidationFailed":      "Please check your input and try again.",
}

// ErrorMessage returns the user-facing message for a known error code.
func ErrorMessage(code string) (string, bool) {
	if fe, ok := codeMessages[code]; ok {
		return fe.Message, true
	}
	msg, ok := defaultMessages[code]
	return msg, ok
}

// fieldPatterns attribute validation messages to form fields by content.
var fieldPatterns = []struct {
	field string
	re    *regexp.Regexp
}{
	{"amount", regexp.MustCompile(`(?i)\b(stake|amount|payout)\b`)},
	{"duration", regexp.MustCompile(`(?i)\b(duration|expiry|expiration)\b`)},
	{"barrier", regexp.MustCompile(`(?i)\bbarrier`)},
	{"symbol", regexp.MustCompile(`(?i)\b(symbol|underlying)\b`)},
}

// ToFieldError maps a server error to a field-level validation message.
// Known codes use fixed messages; otherwise the server message is kept and
// attributed to a field by content.
func ToFieldError(e *Error) FieldError {
	if e == nil {
		return FieldError{}
	}
	if fe, ok := codeMessages[e.Code]; ok {
		return fe
	}

	fe := FieldError{Message: e.Message}
	if fe.Message == "" {
		fe.Message = defaultMessages[e.Code]
	}
	if e.Field != "" {
		fe.Field = e.Field
		return fe
	}
	if field, ok := e.Details["field"].(string); ok && field != "" {
		fe.Field = field
		return fe
	}
	for _, p := range fieldPatterns {
		if p.re.MatchString(e.Message) {
			fe.Field = p.field
			break
		}
	}
	return fe
}
