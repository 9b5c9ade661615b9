package payment_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/billing-xendit/internal/payment"
)

func TestMapStatus(t *testing.T) {
	cases := []struct {
		remote string
		status payment.LocalStatus
		errMsg string
	}{
		{"PAID", payment.StatusComplete, ""},
		{"EXPIRED", payment.StatusExpired, "payment expired"},
		{"PENDING", payment.StatusPending, ""},
		{"FAILED", payment.StatusFailed, "payment failed"},
		{" PAID ", payment.StatusComplete, ""},
		{"SETTLED", payment.StatusUnknown, `unrecognized payment status: "SETTLED"`},
		{"paid", payment.StatusUnknown, `unrecognized payment status: "paid"`},
		{"", payment.StatusUnknown, `unrecognized payment status: ""`},
	}
	for _, tc := range cases {
		status, errMsg := payment.MapStatus(tc.remote)
		require.Equal(t, tc.status, status, tc.remote)
		require.Equal(t, tc.errMsg, errMsg, tc.remote)
	}
}
