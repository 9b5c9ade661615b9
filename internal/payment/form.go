package payment

import (
	"bytes"
	"errors"
	"html/template"
	"strings"
)

var paymentFormTemplate = template.Must(template.New("xendit-form").Parse(
	`<form id="xendit-payment-form" method="get" action="{{.URL}}">` +
		`<input type="hidden" name="external_id" value="{{.InvoiceID}}">` +
		`<input type="submit" value="Pay with Xendit" style="display:none;">` +
		`</form>` +
		`<script type="text/javascript">document.getElementById("xendit-payment-form").submit();</script>`,
))

// RenderForm produces a self-submitting form that sends the payer's browser to the
// remote invoice page, tagged with the local invoice identifier.
func RenderForm(redirectURL, invoiceID string) (template.HTML, error) {
	if strings.TrimSpace(redirectURL) == "" {
		return "", errors.New("payment form: redirect url is required")
	}
	var buf bytes.Buffer
	err := paymentFormTemplate.Execute(&buf, struct {
		URL       string
		InvoiceID string
	}{URL: redirectURL, InvoiceID: invoiceID})
	if err != nil {
		return "", err
	}
	return template.HTML(buf.String()), nil
}
