package enums

import "fmt"

// TransactionStatus tracks the lifecycle of a ticket purchase.
type TransactionStatus string

const (
	TransactionStatusWaitingPayment      TransactionStatus = "waiting_payment"
	TransactionStatusWaitingConfirmation TransactionStatus = "waiting_confirmation"
	TransactionStatusDone                TransactionStatus = "done"
	TransactionStatusRejected            TransactionStatus = "rejected"
	TransactionStatusExpired             TransactionStatus = "expired"
	TransactionStatusCanceled            TransactionStatus = "canceled"
)

var validTransactionStatuses = []TransactionStatus{
	TransactionStatusWaitingPayment,
	TransactionStatusWaitingConfirmation,
	TransactionStatusDone,
	TransactionStatusRejected,
	TransactionStatusExpired,
	TransactionStatusCanceled,
}

// String implements fmt.Stringer.
func (s TransactionStatus) String() string {
	return string(s)
}

// IsValid reports whether the value is a known TransactionStatus.
func (s TransactionStatus) IsValid() bool {
	for _, candidate := range validTransactionStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no further transition may leave this status.
func (s TransactionStatus) IsTerminal() bool {
	switch s {
	case TransactionStatusDone, TransactionStatusRejected, TransactionStatusExpired, TransactionStatusCanceled:
		return true
	}
	return false
}

// ParseTransactionStatus converts raw input into a TransactionStatus.
func ParseTransactionStatus(value string) (TransactionStatus, error) {
	for _, candidate := range validTransactionStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid transaction status %q", value)
}
