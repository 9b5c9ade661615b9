package payment

import (
	"crypto/sha256"
	"crypto/subtle"
)

// CallbackTokenHeader carries the shared webhook verification token.
const CallbackTokenHeader = "X-CALLBACK-TOKEN"

// WebhookAuthenticator checks the callback token Xendit attaches to every webhook.
type WebhookAuthenticator struct {
	digest [sha256.Size]byte
}

// NewWebhookAuthenticator pins the configured verification token.
func NewWebhookAuthenticator(token string) WebhookAuthenticator {
	return WebhookAuthenticator{digest: sha256.Sum256([]byte(token))}
}

// Verify reports whether supplied equals the configured token. Both sides are hashed
// to a fixed length before the constant-time compare.
func (a WebhookAuthenticator) Verify(supplied string) bool {
	if supplied == "" {
		return false
	}
	sum := sha256.Sum256([]byte(supplied))
	return subtle.ConstantTimeCompare(a.digest[:], sum[:]) == 1
}
