package exchange

import "fmt"

// GatewayError is the typed error taxonomy for exchange interactions (spec
// §7): ExchangeRejected is terminal per operation, ExchangeUnavailable and
// RateLimited are transient and retried with back-off.
type GatewayError struct {
	Kind    string
	Code    int
	Message string
}

func (e *GatewayError) Error() string {
	if e.Code != 0 {
		return fmt.Sprintf("exchange: %s (code=%d): %s", e.Kind, e.Code, e.Message)
	}
	return fmt.Sprintf("exchange: %s: %s", e.Kind, e.Message)
}

func Rejected(code int, message string) error {
	return &GatewayError{Kind: "ExchangeRejected", Code: code, Message: message}
}

func Unavailable(message string) error {
	return &GatewayError{Kind: "ExchangeUnavailable", Message: message}
}

func RateLimited(message string) error {
	return &GatewayError{Kind: "RateLimited", Message: message}
}

func UnknownSymbol(symbol string) error {
	return &GatewayError{Kind: "UnknownSymbol", Message: "symbol not found: " + symbol}
}

// IsRetryable reports whether err warrants a back-off retry.
func IsRetryable(err error) bool {
	ge, ok := err.(*GatewayError)
	if !ok {
		return false
	}
	return ge.Kind == "ExchangeUnavailable" || ge.Kind == "RateLimited"
}
