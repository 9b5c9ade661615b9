package payment

import (
	"fmt"
	"strings"
)

// MapStatus converts a Xendit invoice status into a local transaction status and the
// error text to record alongside it. Matching is case-sensitive, as Xendit sends
// upper-case statuses; anything unrecognised maps to StatusUnknown.
func MapStatus(remote string) (LocalStatus, string) {
	switch strings.TrimSpace(remote) {
	case "PAID":
		return StatusComplete, ""
	case "EXPIRED":
		return StatusExpired, "payment expired"
	case "PENDING":
		return StatusPending, ""
	case "FAILED":
		return StatusFailed, "payment failed"
	}
	return StatusUnknown, fmt.Sprintf("unrecognized payment status: %q", remote)
}
