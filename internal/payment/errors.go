package payment

import (
	"errors"
	"fmt"
)

// maxErrorBody bounds how much of a remote response is kept on an error.
const maxErrorBody = 2048

var (
	// ErrConfiguration marks a gateway that cannot be constructed.
	ErrConfiguration = errors.New("payment: gateway not configured")
	// ErrAuthentication is returned when a webhook carries an invalid callback token.
	ErrAuthentication = errors.New("payment: invalid callback token")
	// ErrInvoiceAlreadyPaid rejects checkout for a settled invoice.
	ErrInvoiceAlreadyPaid = errors.New("payment: invoice already paid")
	// ErrInvoiceNotFound is returned by InvoiceService implementations for unknown ids.
	ErrInvoiceNotFound = errors.New("payment: invoice not found")
)

// ConfigurationError names the credential that is missing from the active mode.
type ConfigurationError struct {
	Gateway string
	Missing string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("the %q payment gateway is not fully configured, please configure the %s", e.Gateway, e.Missing)
}

// Is lets callers match any configuration failure with errors.Is(err, ErrConfiguration).
func (e *ConfigurationError) Is(target error) bool {
	return target == ErrConfiguration
}

// GatewayCommunicationError wraps a transport failure talking to the remote API.
type GatewayCommunicationError struct {
	Endpoint string
	Err      error
}

func (e *GatewayCommunicationError) Error() string {
	return fmt.Sprintf("error creating remote invoice at %s: %v", e.Endpoint, e.Err)
}

func (e *GatewayCommunicationError) Unwrap() error {
	return e.Err
}

// InvalidGatewayResponseError carries the raw body of an unexpected remote response.
type InvalidGatewayResponseError struct {
	StatusCode int
	Body       string
}

func newInvalidResponse(status int, body []byte) *InvalidGatewayResponseError {
	raw := string(body)
	if len(raw) > maxErrorBody {
		raw = raw[:maxErrorBody] + "..."
	}
	return &InvalidGatewayResponseError{StatusCode: status, Body: raw}
}

func (e *InvalidGatewayResponseError) Error() string {
	return fmt.Sprintf("invalid response from gateway (status %d): %s", e.StatusCode, e.Body)
}

// MalformedNotificationError rejects a webhook payload that cannot be reconciled.
type MalformedNotificationError struct {
	Reason string
}

func (e *MalformedNotificationError) Error() string {
	return "malformed notification: " + e.Reason
}

// IsMalformed reports whether err is a MalformedNotificationError.
func IsMalformed(err error) bool {
	var target *MalformedNotificationError
	return errors.As(err, &target)
}
