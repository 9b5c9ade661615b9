package payment

import "strings"

// Setting keys understood by the resolver. Sandbox variants carry the sandbox prefix.
const (
	KeyAPIKey       = "api_key"
	KeyWebhookToken = "webhook_token"

	sandboxPrefix = "sandbox_"
)

// GatewayName is the label used in ledger notes, metrics and events.
const GatewayName = "Xendit"

// Settings is the raw adapter configuration as entered by an operator.
type Settings struct {
	Values        map[string]string
	UseSandbox    bool
	EnableLogging bool
}

// Value returns the credential for key in the active mode. Sandbox mode reads the
// sandbox_-prefixed variant and never falls back to the live value.
func (s Settings) Value(key string) string {
	if s.UseSandbox {
		key = sandboxPrefix + key
	}
	return strings.TrimSpace(s.Values[key])
}

// Credentials are the resolved, immutable secrets for one gateway instance.
type Credentials struct {
	APIKey        string
	WebhookToken  string
	Sandbox       bool
	EnableLogging bool
}

// ResolveCredentials selects the active credentials and refuses a half-configured gateway.
func ResolveCredentials(s Settings) (Credentials, error) {
	creds := Credentials{
		APIKey:        s.Value(KeyAPIKey),
		WebhookToken:  s.Value(KeyWebhookToken),
		Sandbox:       s.UseSandbox,
		EnableLogging: s.EnableLogging,
	}
	if creds.APIKey == "" {
		return Credentials{}, &ConfigurationError{Gateway: GatewayName, Missing: "API Key"}
	}
	if creds.WebhookToken == "" {
		return Credentials{}, &ConfigurationError{Gateway: GatewayName, Missing: "Webhook Verification Token"}
	}
	return creds, nil
}
