package core

import "strings"

// RetryablePrefix marks an embedding status as a transient failure.
const RetryablePrefix = "A retryable error occurred:"

// IsRetryable reports whether an embedding status describes a transient failure.
// Rows with a retryable status are never written to the destination, so they
// remain pending for the next iteration or the next run.
func IsRetryable(status string) bool {
	return strings.HasPrefix(status, RetryablePrefix)
}

// Accept reports whether an embedded row should be inserted into the destination.
// Successful rows and rows with terminal failures are accepted.
func Accept(row Row) bool {
	return !IsRetryable(row.Status())
}

// RetryableStatus formats a retryable status for the given cause.
func RetryableStatus(cause string) string {
	return RetryablePrefix + " " + cause
}

// FilterAccepted returns the rows accepted by Accept, preserving order.
func FilterAccepted(rows []Row) []Row {
	accepted := make([]Row, 0, len(rows))
	for _, row := range rows {
		if Accept(row) {
			accepted = append(accepted, row)
		}
	}
	return accepted
}
