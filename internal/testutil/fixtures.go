package testutil

import (
	"time"

	"github.com/biopro/interface-exception-collector/internal/domain/exception"
)

// ExceptionFixture builds a retryable ORDER exception in status NEW with
// sensible defaults, applying any overrides.
func ExceptionFixture(overrides ...func(*exception.Exception)) *exception.Exception {
	ex, err := exception.New(exception.NewParams{
		TransactionID:   "TXN-" + time.Now().Format("150405.000000000"),
		InterfaceType:   exception.InterfaceOrder,
		ExceptionReason: "Order service timeout",
		Operation:       "CREATE_ORDER",
		ExternalID:      "ORD-1001",
		CustomerID:      "CUST-42",
		LocationCode:    "LOC-NORTH",
		Category:        exception.CategoryTimeout,
		Severity:        exception.SeverityHigh,
		Retryable:       true,
		MaxRetries:      3,
	})
	if err != nil {
		panic(err)
	}
	for _, o := range overrides {
		o(ex)
	}
	return ex
}
