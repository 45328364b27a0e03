package executor

import "fmt"

// AdmissionError is the explicit Result-style error carried by the
// admission pipeline (spec §9's re-architecture note: "explicit result
// types... Err(AdmissionError{kind, detail})").
type AdmissionError struct {
	Kind   string
	Detail string
}

func (e *AdmissionError) Error() string {
	return fmt.Sprintf("admission: %s: %s", e.Kind, e.Detail)
}

func symbolBlocked(reason string) *AdmissionError {
	return &AdmissionError{Kind: "SymbolBlocked", Detail: reason}
}

func concurrencyLimitReached(detail string) *AdmissionError {
	return &AdmissionError{Kind: "ConcurrencyLimitReached", Detail: detail}
}

func priceQualityRejected(detail string) *AdmissionError {
	return &AdmissionError{Kind: "PriceQualityRejected", Detail: detail}
}

func undersizedPosition(detail string) *AdmissionError {
	return &AdmissionError{Kind: "UndersizedPosition", Detail: detail}
}

// EnqueueFailedWithPlacedOrder is the gravest admission-pipeline fault
// (spec §4.2 item 8, §7): the exchange order was placed but could not be
// registered with the Watchdog within the retry deadline.
type EnqueueFailedWithPlacedOrder struct {
	OrderID string
	Cause   error
}

func (e *EnqueueFailedWithPlacedOrder) Error() string {
	return fmt.Sprintf("admission: EnqueueFailedWithPlacedOrder(order_id=%s): %v", e.OrderID, e.Cause)
}

func (e *EnqueueFailedWithPlacedOrder) Unwrap() error { return e.Cause }
