package payment_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/billing-xendit/internal/payment"
)

func TestRenderForm(t *testing.T) {
	html, err := payment.RenderForm("https://checkout.xendit.co/web/abc123", "42")
	require.NoError(t, err)

	out := string(html)
	require.Contains(t, out, `id="xendit-payment-form"`)
	require.Contains(t, out, `method="get"`)
	require.Contains(t, out, `action="https://checkout.xendit.co/web/abc123"`)
	require.Contains(t, out, `name="external_id" value="42"`)
	require.Contains(t, out, `style="display:none;"`)
	require.Contains(t, out, `document.getElementById("xendit-payment-form").submit();`)
}

func TestRenderFormEscapes(t *testing.T) {
	html, err := payment.RenderForm(`https://x.example/"><script>alert(1)</script>`, `"><b>`)
	require.NoError(t, err)
	require.Equal(t, 1, strings.Count(string(html), "<script"))
	require.NotContains(t, string(html), "<b>")
}

func TestRenderFormRequiresURL(t *testing.T) {
	_, err := payment.RenderForm(" ", "42")
	require.Error(t, err)
}
